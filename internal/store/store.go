package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/authgraph/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// TenantRepository persists tenants.
type TenantRepository interface {
	FindTenantByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	FindTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	CreateTenant(ctx context.Context, in *models.CreateTenantInput) (*models.Tenant, error)
	UpdateTenant(ctx context.Context, id uuid.UUID, in *models.UpdateTenantInput) (*models.Tenant, error)
	DeleteTenant(ctx context.Context, id uuid.UUID) (int64, error)
	ListTenants(ctx context.Context, offset, limit int) ([]*models.Tenant, error)
	CountTenants(ctx context.Context) (int, error)
	SearchTenants(ctx context.Context, query string, offset, limit int) ([]*models.Tenant, int, error)
}

// ServiceRepository persists services and their clients.
type ServiceRepository interface {
	CreateService(ctx context.Context, in *models.CreateServiceInput) (*models.Service, error)
	FindServiceByID(ctx context.Context, id uuid.UUID) (*models.Service, error)
	ListServices(ctx context.Context, tenantID *uuid.UUID, offset, limit int) ([]*models.Service, int, error)
	ListServicesByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.Service, error)
	UpdateService(ctx context.Context, id uuid.UUID, in *models.UpdateServiceInput) (*models.Service, error)
	DeleteService(ctx context.Context, id uuid.UUID) (int64, error)

	CreateClient(ctx context.Context, serviceID uuid.UUID, clientID, secretHash string, name *string) (*models.Client, error)
	FindClientByClientID(ctx context.Context, clientID string) (*models.Client, error)
	ListClients(ctx context.Context, serviceID uuid.UUID) ([]*models.Client, error)
	UpdateClientSecretHash(ctx context.Context, clientID, secretHash string) error
	DeleteClient(ctx context.Context, serviceID uuid.UUID, clientID string) error
	DeleteClientsByService(ctx context.Context, serviceID uuid.UUID) (int64, error)
}

// RbacRepository persists roles, permissions and their join tables.
// DeletePermission and DeleteRole remove the join rows of the deleted entity;
// DeleteRolesByService and DeletePermissionsByService do the same for a whole service.
type RbacRepository interface {
	CreatePermission(ctx context.Context, in *models.CreatePermissionInput) (*models.Permission, error)
	FindPermissionByID(ctx context.Context, id uuid.UUID) (*models.Permission, error)
	ListPermissionsByService(ctx context.Context, serviceID uuid.UUID) ([]*models.Permission, error)
	DeletePermission(ctx context.Context, id uuid.UUID) error

	CreateRole(ctx context.Context, in *models.CreateRoleInput) (*models.Role, error)
	FindRoleByID(ctx context.Context, id uuid.UUID) (*models.Role, error)
	ListRolesByService(ctx context.Context, serviceID uuid.UUID) ([]*models.Role, error)
	UpdateRole(ctx context.Context, id uuid.UUID, in *models.UpdateRoleInput) (*models.Role, error)
	DeleteRole(ctx context.Context, id uuid.UUID) error

	// LockRoleHierarchy serializes hierarchy edits of one service for the
	// rest of the current transaction. Outside a transaction it does nothing.
	LockRoleHierarchy(ctx context.Context, serviceID uuid.UUID) error
	ClearParentRoleReferenceByID(ctx context.Context, roleID uuid.UUID) (int64, error)
	ClearParentRoleReferences(ctx context.Context, serviceID uuid.UUID) (int64, error)
	DeleteRolesByService(ctx context.Context, serviceID uuid.UUID) (int64, error)
	DeletePermissionsByService(ctx context.Context, serviceID uuid.UUID) (int64, error)

	AssignPermissionToRole(ctx context.Context, roleID, permissionID uuid.UUID) error
	RemovePermissionFromRole(ctx context.Context, roleID, permissionID uuid.UUID) error
	FindRolePermissions(ctx context.Context, roleID uuid.UUID) ([]*models.Permission, error)

	AssignRolesToUser(ctx context.Context, tenantUserID uuid.UUID, roleIDs []uuid.UUID, grantedBy *uuid.UUID) error
	RemoveRoleFromUser(ctx context.Context, tenantUserID, roleID uuid.UUID) error
	FindTenantUserID(ctx context.Context, userID, tenantID uuid.UUID) (uuid.UUID, error)
	DeleteUserRolesByTenantUser(ctx context.Context, tenantUserID uuid.UUID) (int64, error)
	// FindUserRolesInTenant returns the directly assigned roles of a member,
	// optionally restricted to one service.
	FindUserRolesInTenant(ctx context.Context, userID, tenantID uuid.UUID, serviceID *uuid.UUID) ([]*models.Role, error)
}

// UserRepository persists users and tenant memberships.
type UserRepository interface {
	CreateUser(ctx context.Context, keycloakID string, in *models.CreateUserInput) (*models.User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindUserByKeycloakID(ctx context.Context, keycloakID string) (*models.User, error)
	ListUsers(ctx context.Context, offset, limit int) ([]*models.User, int, error)
	UpdateUser(ctx context.Context, id uuid.UUID, in *models.UpdateUserInput) (*models.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) (int64, error)

	AddToTenant(ctx context.Context, in *models.AddUserToTenantInput) (*models.TenantUser, error)
	UpdateRoleInTenant(ctx context.Context, userID, tenantID uuid.UUID, role string) (*models.TenantUser, error)
	RemoveFromTenant(ctx context.Context, userID, tenantID uuid.UUID) error
	ListTenantUserIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	ListTenantUserIDsByTenant(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error)
	DeleteAllTenantMemberships(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteTenantMembershipsByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
	FindUserTenants(ctx context.Context, userID uuid.UUID) ([]*models.TenantUser, error)
	FindUserTenantsWithTenant(ctx context.Context, userID uuid.UUID) ([]*models.TenantUserWithTenant, error)
}

type SessionRepository interface {
	DeleteSessionsByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

type PasswordResetRepository interface {
	DeletePasswordResetsByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

type LinkedIdentityRepository interface {
	DeleteLinkedIdentitiesByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

type LoginEventRepository interface {
	NullifyLoginEventUser(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteLoginEventsByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

type SecurityAlertRepository interface {
	NullifySecurityAlertUser(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteSecurityAlertsByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

type AuditRepository interface {
	NullifyAuditActor(ctx context.Context, userID uuid.UUID) (int64, error)
}

type WebhookRepository interface {
	DeleteWebhooksByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

type InvitationRepository interface {
	DeleteInvitationsByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

type ActionRepository interface {
	DeleteActionsByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
	DeleteActionsByService(ctx context.Context, serviceID uuid.UUID) (int64, error)
}

type BrandingRepository interface {
	DeleteBrandingByService(ctx context.Context, serviceID uuid.UUID) (int64, error)
}

// Repositories bundles every repository the services and cascades touch.
// Actions and Branding are optional collaborators and may be nil.
type Repositories struct {
	Tenants          TenantRepository
	Services         ServiceRepository
	RBAC             RbacRepository
	Users            UserRepository
	Sessions         SessionRepository
	PasswordResets   PasswordResetRepository
	LinkedIdentities LinkedIdentityRepository
	LoginEvents      LoginEventRepository
	SecurityAlerts   SecurityAlertRepository
	Audit            AuditRepository
	Webhooks         WebhookRepository
	Invitations      InvitationRepository
	Actions          ActionRepository
	Branding         BrandingRepository
}

// Store is the full data access surface of one backend. A Store can hand out
// its repositories and a unit of work over them.
type Store interface {
	TenantRepository
	ServiceRepository
	RbacRepository
	UserRepository
	SessionRepository
	PasswordResetRepository
	LinkedIdentityRepository
	LoginEventRepository
	SecurityAlertRepository
	AuditRepository
	WebhookRepository
	InvitationRepository
	ActionRepository
	BrandingRepository

	Ping(ctx context.Context) error
}

// RepositoriesOf exposes every repository of s.
func RepositoriesOf(s Store) Repositories {
	return Repositories{
		Tenants:          s,
		Services:         s,
		RBAC:             s,
		Users:            s,
		Sessions:         s,
		PasswordResets:   s,
		LinkedIdentities: s,
		LoginEvents:      s,
		SecurityAlerts:   s,
		Audit:            s,
		Webhooks:         s,
		Invitations:      s,
		Actions:          s,
		Branding:         s,
	}
}
