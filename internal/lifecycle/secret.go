package lifecycle

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"github.com/kiranshivaraju/authgraph/internal/apperr"
	"golang.org/x/crypto/bcrypt"
)

const secretBytes = 32

// bcryptCost is lowered by tests.
var bcryptCost = bcrypt.DefaultCost

// newClientSecret returns a random secret and its bcrypt hash.
func newClientSecret() (secret, hash string, err error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", apperr.Internal(err, "Failed to generate client secret")
	}
	secret = base64.RawURLEncoding.EncodeToString(buf)

	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return "", "", apperr.Internal(err, "Failed to hash client secret")
	}
	return secret, string(h), nil
}

func secretMatches(secret, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, apperr.Internal(err, "Failed to verify client secret")
	}
}
