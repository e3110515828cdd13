package validate_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/authgraph/internal/apperr"
	"github.com/kiranshivaraju/authgraph/internal/validate"
	"github.com/kiranshivaraju/authgraph/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPermissionCode(t *testing.T) {
	valid := []string{"user:read", "report:export:pdf", "a1:b2"}
	invalid := []string{"user", "User:read", "user:", ":read", "user::read", "1user:read", "user-read:x"}

	for _, c := range valid {
		assert.True(t, validate.IsPermissionCode(c), c)
	}
	for _, c := range invalid {
		assert.False(t, validate.IsPermissionCode(c), c)
	}
}

func TestIsSlug(t *testing.T) {
	assert.True(t, validate.IsSlug("acme"))
	assert.True(t, validate.IsSlug("acme-corp-2"))
	assert.False(t, validate.IsSlug("Acme"))
	assert.False(t, validate.IsSlug("acme--corp"))
	assert.False(t, validate.IsSlug("-acme"))
	assert.False(t, validate.IsSlug("acme_corp"))
}

func TestStruct_ReportsFields(t *testing.T) {
	err := validate.Struct(models.CreatePermissionInput{
		ServiceID: uuid.New(),
		Code:      "not a code",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	assert.Contains(t, e.Details, "code")
	assert.Contains(t, e.Details, "name")
	assert.Equal(t, "Validation failed: code, name", e.Message)
}

func TestStruct_Valid(t *testing.T) {
	err := validate.Struct(models.CreateRoleInput{ServiceID: uuid.New(), Name: "admin"})
	assert.NoError(t, err)
}

func TestStruct_RoleNameTooLong(t *testing.T) {
	long := make([]byte, 101)
	for i := range long {
		long[i] = 'a'
	}
	err := validate.Struct(models.CreateRoleInput{ServiceID: uuid.New(), Name: string(long)})
	assert.ErrorIs(t, err, apperr.ErrBadRequest)
}
