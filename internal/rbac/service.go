package rbac

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/authgraph/internal/apperr"
	"github.com/kiranshivaraju/authgraph/internal/store"
	"github.com/kiranshivaraju/authgraph/internal/validate"
	"github.com/kiranshivaraju/authgraph/pkg/models"
)

// RoleCache is the slice of the cache manager used for resolved user roles.
type RoleCache interface {
	GetUserRoles(ctx context.Context, userID, tenantID uuid.UUID) (*models.UserRolesInTenant, int64, bool)
	SetUserRoles(ctx context.Context, version int64, roles *models.UserRolesInTenant)
	GetUserRolesForService(ctx context.Context, userID, tenantID, serviceID uuid.UUID) (*models.UserRolesInTenant, int64, bool)
	SetUserRolesForService(ctx context.Context, version int64, serviceID uuid.UUID, roles *models.UserRolesInTenant)
	InvalidateAllUserRoles(ctx context.Context)
	InvalidateUserRolesForTenant(ctx context.Context, userID, tenantID uuid.UUID)
}

type noCache struct{}

func (noCache) GetUserRoles(context.Context, uuid.UUID, uuid.UUID) (*models.UserRolesInTenant, int64, bool) {
	return nil, -1, false
}
func (noCache) SetUserRoles(context.Context, int64, *models.UserRolesInTenant) {}
func (noCache) GetUserRolesForService(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) (*models.UserRolesInTenant, int64, bool) {
	return nil, -1, false
}
func (noCache) SetUserRolesForService(context.Context, int64, uuid.UUID, *models.UserRolesInTenant) {}
func (noCache) InvalidateAllUserRoles(context.Context) {}
func (noCache) InvalidateUserRolesForTenant(context.Context, uuid.UUID, uuid.UUID) {}

// Service owns permission, role and role-assignment writes. Every mutation
// invalidates cached user roles after it has been committed.
type Service struct {
	repos  store.Repositories
	uow    store.UnitOfWork
	cache  RoleCache
	logger *slog.Logger
}

// NewService wires the service. A nil uow runs every write directly against
// repos; a nil cache disables caching.
func NewService(repos store.Repositories, uow store.UnitOfWork, cache RoleCache, logger *slog.Logger) *Service {
	if uow == nil {
		uow = store.PassThrough(repos)
	}
	if cache == nil {
		cache = noCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repos: repos, uow: uow, cache: cache, logger: logger}
}

func (s *Service) requireService(ctx context.Context, id uuid.UUID) error {
	_, err := s.repos.Services.FindServiceByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("Service %s not found", id)
	}
	return err
}

func crossServiceError(perm *models.Permission, role *models.Role) error {
	return apperr.BadRequest("Cannot assign permission from service %s to role in service %s",
		perm.ServiceID, role.ServiceID)
}

func findPermission(ctx context.Context, repo store.RbacRepository, id uuid.UUID) (*models.Permission, error) {
	p, err := repo.FindPermissionByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Permission %s not found", id)
	}
	return p, err
}

func findRole(ctx context.Context, repo store.RbacRepository, id uuid.UUID) (*models.Role, error) {
	r, err := repo.FindRoleByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Role %s not found", id)
	}
	return r, err
}

// --- Permissions ---

func (s *Service) CreatePermission(ctx context.Context, in *models.CreatePermissionInput) (*models.Permission, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if err := s.requireService(ctx, in.ServiceID); err != nil {
		return nil, err
	}
	p, err := s.repos.RBAC.CreatePermission(ctx, in)
	if errors.Is(err, store.ErrDuplicateKey) {
		return nil, apperr.Conflict("Permission code '%s' already exists in this service", in.Code)
	}
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateAllUserRoles(ctx)
	return p, nil
}

func (s *Service) GetPermission(ctx context.Context, id uuid.UUID) (*models.Permission, error) {
	return findPermission(ctx, s.repos.RBAC, id)
}

func (s *Service) ListPermissions(ctx context.Context, serviceID uuid.UUID) ([]*models.Permission, error) {
	return s.repos.RBAC.ListPermissionsByService(ctx, serviceID)
}

// DeletePermission removes the permission and its role grants.
func (s *Service) DeletePermission(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetPermission(ctx, id); err != nil {
		return err
	}
	err := s.repos.RBAC.DeletePermission(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("Permission %s not found", id)
	}
	if err != nil {
		return err
	}
	s.cache.InvalidateAllUserRoles(ctx)
	return nil
}

// --- Roles ---

// CreateRole inserts a role and its initial permission grants in one unit of
// work. With a parent, the service's hierarchy is locked while the chain
// above the parent is validated.
func (s *Service) CreateRole(ctx context.Context, in *models.CreateRoleInput) (*models.Role, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if err := s.requireService(ctx, in.ServiceID); err != nil {
		return nil, err
	}

	var role *models.Role
	err := store.InTx(ctx, s.uow, func(repos store.Repositories) error {
		if in.ParentRoleID != nil {
			if err := repos.RBAC.LockRoleHierarchy(ctx, in.ServiceID); err != nil {
				return err
			}
			parent, err := findAncestor(ctx, repos.RBAC, *in.ParentRoleID)
			if err != nil {
				return err
			}
			if parent.ServiceID != in.ServiceID {
				return apperr.BadRequest("Parent role %s belongs to a different service", parent.ID)
			}
			if err := CheckParentChainDepth(ctx, repos.RBAC, *in.ParentRoleID); err != nil {
				return err
			}
		}

		created, err := repos.RBAC.CreateRole(ctx, in)
		if err != nil {
			return err
		}
		for _, pid := range in.PermissionIDs {
			perm, err := findPermission(ctx, repos.RBAC, pid)
			if err != nil {
				return err
			}
			if perm.ServiceID != created.ServiceID {
				return crossServiceError(perm, created)
			}
			if err := repos.RBAC.AssignPermissionToRole(ctx, created.ID, pid); err != nil {
				return err
			}
		}
		role = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateAllUserRoles(ctx)
	return role, nil
}

func (s *Service) GetRole(ctx context.Context, id uuid.UUID) (*models.Role, error) {
	return findRole(ctx, s.repos.RBAC, id)
}

func (s *Service) GetRoleWithPermissions(ctx context.Context, id uuid.UUID) (*models.RoleWithPermissions, error) {
	role, err := s.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	perms, err := s.repos.RBAC.FindRolePermissions(ctx, id)
	if err != nil {
		return nil, err
	}
	if perms == nil {
		perms = []*models.Permission{}
	}
	return &models.RoleWithPermissions{Role: *role, Permissions: perms}, nil
}

func (s *Service) ListRoles(ctx context.Context, serviceID uuid.UUID) ([]*models.Role, error) {
	return s.repos.RBAC.ListRolesByService(ctx, serviceID)
}

// UpdateRole applies in to an existing role. A new parent is validated and
// written while the service's hierarchy lock is held, so two concurrent
// re-parentings cannot both pass validation against the same graph.
func (s *Service) UpdateRole(ctx context.Context, id uuid.UUID, in *models.UpdateRoleInput) (*models.Role, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if in.ParentRoleID != nil && in.ClearParent {
		return nil, apperr.BadRequest("parent_role_id and clear_parent cannot both be set")
	}
	existing, err := s.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}

	var role *models.Role
	err = store.InTx(ctx, s.uow, func(repos store.Repositories) error {
		if in.ParentRoleID != nil {
			if err := repos.RBAC.LockRoleHierarchy(ctx, existing.ServiceID); err != nil {
				return err
			}
			if _, err := findRole(ctx, repos.RBAC, id); err != nil {
				return err
			}
			if err := CheckCircularInheritance(ctx, repos.RBAC, id, *in.ParentRoleID); err != nil {
				return err
			}
			parent, err := findAncestor(ctx, repos.RBAC, *in.ParentRoleID)
			if err != nil {
				return err
			}
			if parent.ServiceID != existing.ServiceID {
				return apperr.BadRequest("Parent role %s belongs to a different service", parent.ID)
			}
		}

		updated, err := repos.RBAC.UpdateRole(ctx, id, in)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Role %s not found", id)
		}
		if err != nil {
			return err
		}
		role = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateAllUserRoles(ctx)
	return role, nil
}

// DeleteRole detaches child roles, then removes the role together with its
// grants and assignments.
func (s *Service) DeleteRole(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetRole(ctx, id); err != nil {
		return err
	}
	err := store.InTx(ctx, s.uow, func(repos store.Repositories) error {
		if _, err := repos.RBAC.ClearParentRoleReferenceByID(ctx, id); err != nil {
			return err
		}
		err := repos.RBAC.DeleteRole(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Role %s not found", id)
		}
		return err
	})
	if err != nil {
		return err
	}
	s.cache.InvalidateAllUserRoles(ctx)
	return nil
}

// --- Role permissions ---

func (s *Service) AssignPermissionToRole(ctx context.Context, roleID, permissionID uuid.UUID) error {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	perm, err := s.GetPermission(ctx, permissionID)
	if err != nil {
		return err
	}
	if role.ServiceID != perm.ServiceID {
		return crossServiceError(perm, role)
	}
	if err := s.repos.RBAC.AssignPermissionToRole(ctx, roleID, permissionID); err != nil {
		return err
	}
	s.cache.InvalidateAllUserRoles(ctx)
	return nil
}

func (s *Service) RemovePermissionFromRole(ctx context.Context, roleID, permissionID uuid.UUID) error {
	err := s.repos.RBAC.RemovePermissionFromRole(ctx, roleID, permissionID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("Permission %s is not granted to role %s", permissionID, roleID)
	}
	if err != nil {
		return err
	}
	s.cache.InvalidateAllUserRoles(ctx)
	return nil
}

// --- User role assignments ---

func (s *Service) tenantUserID(ctx context.Context, userID, tenantID uuid.UUID) (uuid.UUID, error) {
	id, err := s.repos.RBAC.FindTenantUserID(ctx, userID, tenantID)
	if errors.Is(err, store.ErrNotFound) {
		return uuid.Nil, apperr.NotFound("User not in tenant")
	}
	return id, err
}

// AssignRoles grants roles to a member of an active tenant. Roles the member
// already holds are left as they are.
func (s *Service) AssignRoles(ctx context.Context, in *models.AssignRolesInput, grantedBy *uuid.UUID) error {
	if err := validate.Struct(in); err != nil {
		return err
	}
	tenant, err := s.repos.Tenants.FindTenantByID(ctx, in.TenantID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("Tenant %s not found", in.TenantID)
	}
	if err != nil {
		return err
	}
	if !tenant.IsActive() {
		return apperr.Forbidden("Tenant %s is not active", tenant.ID)
	}
	tuID, err := s.tenantUserID(ctx, in.UserID, in.TenantID)
	if err != nil {
		return err
	}
	for _, roleID := range in.RoleIDs {
		if _, err := s.GetRole(ctx, roleID); err != nil {
			return err
		}
	}
	if err := s.repos.RBAC.AssignRolesToUser(ctx, tuID, in.RoleIDs, grantedBy); err != nil {
		return err
	}
	s.cache.InvalidateUserRolesForTenant(ctx, in.UserID, in.TenantID)
	return nil
}

func (s *Service) UnassignRole(ctx context.Context, userID, tenantID, roleID uuid.UUID) error {
	tuID, err := s.tenantUserID(ctx, userID, tenantID)
	if err != nil {
		return err
	}
	err = s.repos.RBAC.RemoveRoleFromUser(ctx, tuID, roleID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("Role %s is not assigned to user", roleID)
	}
	if err != nil {
		return err
	}
	s.cache.InvalidateUserRolesForTenant(ctx, userID, tenantID)
	return nil
}

// GetUserRoles resolves the roles a member holds in a tenant, inherited ones
// included, and the permission codes they grant. Results are cached.
func (s *Service) GetUserRoles(ctx context.Context, userID, tenantID uuid.UUID) (*models.UserRolesInTenant, error) {
	cached, version, ok := s.cache.GetUserRoles(ctx, userID, tenantID)
	if ok {
		return cached, nil
	}
	resolved, err := s.resolve(ctx, userID, tenantID, nil)
	if err != nil {
		return nil, err
	}
	s.cache.SetUserRoles(ctx, version, resolved)
	return resolved, nil
}

// GetUserRolesForService is GetUserRoles restricted to the roles of one
// service. It is cached separately from the tenant-wide view.
func (s *Service) GetUserRolesForService(ctx context.Context, userID, tenantID, serviceID uuid.UUID) (*models.UserRolesInTenant, error) {
	cached, version, ok := s.cache.GetUserRolesForService(ctx, userID, tenantID, serviceID)
	if ok {
		return cached, nil
	}
	resolved, err := s.resolve(ctx, userID, tenantID, &serviceID)
	if err != nil {
		return nil, err
	}
	s.cache.SetUserRolesForService(ctx, version, serviceID, resolved)
	return resolved, nil
}

func (s *Service) resolve(ctx context.Context, userID, tenantID uuid.UUID, serviceID *uuid.UUID) (*models.UserRolesInTenant, error) {
	direct, err := s.repos.RBAC.FindUserRolesInTenant(ctx, userID, tenantID, serviceID)
	if err != nil {
		return nil, err
	}
	roles, err := s.withAncestors(ctx, direct)
	if err != nil {
		return nil, err
	}

	names := make(map[string]struct{})
	codes := make(map[string]struct{})
	for _, r := range roles {
		names[r.Name] = struct{}{}
		perms, err := s.repos.RBAC.FindRolePermissions(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range perms {
			codes[p.Code] = struct{}{}
		}
	}
	return &models.UserRolesInTenant{
		UserID:      userID,
		TenantID:    tenantID,
		Roles:       sortedKeys(names),
		Permissions: sortedKeys(codes),
	}, nil
}

// withAncestors adds every role reachable through parent links, walking at
// most MaxInheritanceDepth levels from each assigned role. A dangling parent
// link ends that walk.
func (s *Service) withAncestors(ctx context.Context, direct []*models.Role) ([]*models.Role, error) {
	seen := make(map[uuid.UUID]struct{})
	var out []*models.Role
	for _, r := range direct {
		current := r
		for depth := 1; current != nil && depth <= MaxInheritanceDepth; depth++ {
			if _, ok := seen[current.ID]; ok {
				break
			}
			seen[current.ID] = struct{}{}
			out = append(out, current)
			if current.ParentRoleID == nil {
				break
			}
			parent, err := s.repos.RBAC.FindRoleByID(ctx, *current.ParentRoleID)
			if errors.Is(err, store.ErrNotFound) {
				s.logger.Debug("dangling parent role link", "role_id", current.ID, "parent_role_id", *current.ParentRoleID)
				break
			}
			if err != nil {
				return nil, err
			}
			current = parent
		}
	}
	return out, nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
