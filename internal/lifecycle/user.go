package lifecycle

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/authgraph/internal/apperr"
	"github.com/kiranshivaraju/authgraph/internal/cascade"
	"github.com/kiranshivaraju/authgraph/internal/idp"
	"github.com/kiranshivaraju/authgraph/internal/store"
	"github.com/kiranshivaraju/authgraph/internal/validate"
	"github.com/kiranshivaraju/authgraph/pkg/models"
)

// UserService manages users and their tenant memberships.
type UserService struct {
	Deps
}

func NewUserService(deps Deps) *UserService {
	return &UserService{Deps: deps.withDefaults()}
}

func notMember() error {
	return apperr.NotFound("User not in tenant")
}

// Create registers a user known to the identity provider as keycloakID.
// Emails are not unique: several provider accounts may share one.
func (s *UserService) Create(ctx context.Context, keycloakID string, in *models.CreateUserInput) (*models.User, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if keycloakID == "" {
		return nil, apperr.BadRequest("Keycloak id is required")
	}
	u, err := s.Repos.Users.CreateUser(ctx, keycloakID, in)
	if errors.Is(err, store.ErrDuplicateKey) {
		return nil, apperr.Conflict("User with keycloak_id '%s' already exists", keycloakID)
	}
	return u, err
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := s.Repos.Users.FindUserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("User %s not found", id)
	}
	return u, err
}

func (s *UserService) GetByKeycloakID(ctx context.Context, keycloakID string) (*models.User, error) {
	u, err := s.Repos.Users.FindUserByKeycloakID(ctx, keycloakID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	return u, err
}

func (s *UserService) List(ctx context.Context, page, perPage int) ([]*models.User, int, error) {
	offset, limit := pageBounds(page, perPage)
	return s.Repos.Users.ListUsers(ctx, offset, limit)
}

func (s *UserService) Update(ctx context.Context, id uuid.UUID, in *models.UpdateUserInput) (*models.User, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	u, err := s.Repos.Users.UpdateUser(ctx, id, in)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("User %s not found", id)
	}
	return u, err
}

// --- Memberships ---

// AddToTenant makes an existing user a member of an active tenant.
func (s *UserService) AddToTenant(ctx context.Context, in *models.AddUserToTenantInput) (*models.TenantUser, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if _, err := requireActiveTenant(ctx, s.Repos.Tenants, in.TenantID); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, in.UserID); err != nil {
		return nil, err
	}
	tu, err := s.Repos.Users.AddToTenant(ctx, in)
	if errors.Is(err, store.ErrDuplicateKey) {
		return nil, apperr.Conflict("User is already a member of this tenant")
	}
	return tu, err
}

func (s *UserService) UpdateRoleInTenant(ctx context.Context, userID, tenantID uuid.UUID, role string) (*models.TenantUser, error) {
	if role == "" || len(role) > 50 {
		return nil, apperr.BadRequest("Role must be between 1 and 50 characters")
	}
	tu, err := s.Repos.Users.UpdateRoleInTenant(ctx, userID, tenantID, role)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notMember()
	}
	return tu, err
}

// RemoveFromTenant deletes a membership and the role assignments hanging
// off it in one unit of work.
func (s *UserService) RemoveFromTenant(ctx context.Context, userID, tenantID uuid.UUID) error {
	err := store.InTx(ctx, s.UnitOfWork, func(repos store.Repositories) error {
		tuID, err := repos.RBAC.FindTenantUserID(ctx, userID, tenantID)
		if errors.Is(err, store.ErrNotFound) {
			return notMember()
		}
		if err != nil {
			return err
		}
		if _, err := repos.RBAC.DeleteUserRolesByTenantUser(ctx, tuID); err != nil {
			return err
		}
		err = repos.Users.RemoveFromTenant(ctx, userID, tenantID)
		if errors.Is(err, store.ErrNotFound) {
			return notMember()
		}
		return err
	})
	if err != nil {
		return err
	}
	s.Cache.InvalidateUserRolesForTenant(ctx, userID, tenantID)
	return nil
}

func (s *UserService) GetTenants(ctx context.Context, userID uuid.UUID) ([]*models.TenantUser, error) {
	return s.Repos.Users.FindUserTenants(ctx, userID)
}

func (s *UserService) GetTenantsWithDetail(ctx context.Context, userID uuid.UUID) ([]*models.TenantUserWithTenant, error) {
	return s.Repos.Users.FindUserTenantsWithTenant(ctx, userID)
}

// Delete removes a user everywhere. Once the cascade has committed the user
// is deleted from the identity provider as well; a user the provider no
// longer knows is not an error.
func (s *UserService) Delete(ctx context.Context, id uuid.UUID) (*cascade.Result, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	memberships, err := s.Repos.Users.FindUserTenants(ctx, id)
	if err != nil {
		return nil, err
	}

	res, err := s.Engine.Execute(ctx, s.UnitOfWork, UserPlan(id))
	if err != nil {
		return res, err
	}
	for _, m := range memberships {
		s.Cache.InvalidateUserRolesForTenant(ctx, id, m.TenantID)
	}

	if err := s.IdP.DeleteUser(ctx, user.KeycloakID); err != nil {
		if !errors.Is(err, idp.ErrUserNotFound) {
			return res, apperr.Internal(err, "Failed to delete user from identity provider")
		}
		s.Logger.Warn("user not found in identity provider during delete, continuing",
			"user_id", id, "keycloak_id", user.KeycloakID)
	}

	s.publish(ctx, models.EventUserDeleted, map[string]any{
		"user_id": id.String(),
		"email":   user.Email,
	})
	return res, nil
}
