package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/kiranshivaraju/authgraph/internal/apperr"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{"not found", apperr.NotFound("Tenant %s not found", "x"), apperr.KindNotFound},
		{"conflict", apperr.Conflict("dup"), apperr.KindConflict},
		{"bad request", apperr.BadRequest("bad"), apperr.KindBadRequest},
		{"forbidden", apperr.Forbidden("no"), apperr.KindForbidden},
		{"wrapped", fmt.Errorf("delete tenant: %w", apperr.NotFound("gone")), apperr.KindNotFound},
		{"untyped", errors.New("boom"), apperr.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperr.KindOf(tt.err))
		})
	}
}

func TestErrorsIs_MatchesSentinelOfKind(t *testing.T) {
	err := fmt.Errorf("outer: %w", apperr.Conflict("Tenant with slug '%s' already exists", "acme"))

	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.NotErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "Tenant with slug 'acme' already exists", apperr.Message(err))
}

func TestInternal_KeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := apperr.Internal(cause, "commit transaction")

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, apperr.ErrInternal)
	assert.Equal(t, "commit transaction: connection reset", err.Error())
	assert.Equal(t, "commit transaction", apperr.Message(err))
}

func TestMessage_HidesUntypedErrors(t *testing.T) {
	assert.Equal(t, "An unexpected error occurred", apperr.Message(errors.New("pq: secret detail")))
}
