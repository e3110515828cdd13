package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/kiranshivaraju/authgraph/internal/api/response"
	"github.com/kiranshivaraju/authgraph/internal/apperr"
)

const (
	// DefaultCredentialTTL bounds how long a verified credential skips the
	// bcrypt compare. A rotated secret keeps working for at most this long.
	DefaultCredentialTTL = 10 * time.Second

	credentialCacheSize = 1024
)

// ClientVerifier checks a client credential pair.
type ClientVerifier interface {
	VerifySecret(ctx context.Context, clientID, secret string) (bool, error)
}

// Auth authenticates admin API callers with their service client credentials.
// Successful verifications are remembered per client id as a SHA-256 digest
// of the secret, so repeated calls do not each pay for a bcrypt compare.
type Auth struct {
	verifier ClientVerifier
	verified *lru.LRU[string, [sha256.Size]byte]
}

// NewAuth uses DefaultCredentialTTL.
func NewAuth(v ClientVerifier) *Auth {
	return NewAuthWithTTL(v, DefaultCredentialTTL)
}

// NewAuthWithTTL remembers verified credentials for ttl. A non-positive ttl
// verifies every request.
func NewAuthWithTTL(v ClientVerifier, ttl time.Duration) *Auth {
	a := &Auth{verifier: v}
	if ttl > 0 {
		a.verified = lru.NewLRU[string, [sha256.Size]byte](credentialCacheSize, nil, ttl)
	}
	return a
}

// Forget drops a remembered credential, e.g. after its secret was rotated.
func (a *Auth) Forget(clientID string) {
	if a.verified != nil {
		a.verified.Remove(clientID)
	}
}

func (a *Auth) remembered(clientID string, digest [sha256.Size]byte) bool {
	if a.verified == nil {
		return false
	}
	known, ok := a.verified.Get(clientID)
	return ok && subtle.ConstantTimeCompare(known[:], digest[:]) == 1
}

// Authenticate validates HTTP Basic client_id:secret credentials and sets the
// client id in the request context.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID, secret, ok := r.BasicAuth()
		if !ok || clientID == "" || secret == "" {
			w.Header().Set("WWW-Authenticate", `Basic realm="authgraph"`)
			response.Error(w, http.StatusUnauthorized,
				"INVALID_CREDENTIALS", "Missing or invalid Authorization header", nil)
			return
		}

		digest := sha256.Sum256([]byte(secret))
		if !a.remembered(clientID, digest) {
			valid, err := a.verifier.VerifySecret(r.Context(), clientID, secret)
			if err != nil && !errors.Is(err, apperr.ErrNotFound) {
				slog.Error("client verification failed", "client_id", clientID, "error", err)
				response.Error(w, http.StatusInternalServerError,
					"INTERNAL_ERROR", "Failed to validate client credentials", nil)
				return
			}
			if !valid {
				response.Error(w, http.StatusUnauthorized,
					"INVALID_CREDENTIALS", "Invalid client credentials", nil)
				return
			}
			if a.verified != nil {
				a.verified.Add(clientID, digest)
			}
		}

		next.ServeHTTP(w, r.WithContext(SetClientID(r.Context(), clientID)))
	})
}
