package models

import (
	"time"

	"github.com/google/uuid"
)

// Permission is a named capability scoped to one service. Codes look like "user:read".
type Permission struct {
	ID          uuid.UUID `db:"id"          json:"id"`
	ServiceID   uuid.UUID `db:"service_id"  json:"service_id"`
	Code        string    `db:"code"        json:"code"`
	Name        string    `db:"name"        json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
}

// Role groups permissions within a service. ParentRoleID links roles into a
// forest; the chain from any role must stay acyclic and at most ten deep.
type Role struct {
	ID           uuid.UUID  `db:"id"             json:"id"`
	ServiceID    uuid.UUID  `db:"service_id"     json:"service_id"`
	Name         string     `db:"name"           json:"name"`
	Description  *string    `db:"description"    json:"description,omitempty"`
	ParentRoleID *uuid.UUID `db:"parent_role_id" json:"parent_role_id,omitempty"`
	CreatedAt    time.Time  `db:"created_at"     json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"     json:"updated_at"`
}

type RoleWithPermissions struct {
	Role
	Permissions []*Permission `json:"permissions"`
}

// UserRoleAssignment is a row of user_tenant_roles.
type UserRoleAssignment struct {
	TenantUserID uuid.UUID  `db:"tenant_user_id" json:"tenant_user_id"`
	RoleID       uuid.UUID  `db:"role_id"        json:"role_id"`
	GrantedBy    *uuid.UUID `db:"granted_by"     json:"granted_by,omitempty"`
	GrantedAt    time.Time  `db:"granted_at"     json:"granted_at"`
}

// UserRolesInTenant is the resolved view of a member's roles, including
// inherited ones, and the distinct permission codes they grant.
type UserRolesInTenant struct {
	UserID      uuid.UUID `json:"user_id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	Roles       []string  `json:"roles"`
	Permissions []string  `json:"permissions"`
}

type CreatePermissionInput struct {
	ServiceID   uuid.UUID `json:"service_id"  validate:"required"`
	Code        string    `json:"code"        validate:"required,max=100,permcode"`
	Name        string    `json:"name"        validate:"required,min=1,max=200"`
	Description *string   `json:"description" validate:"omitempty,max=1000"`
}

type CreateRoleInput struct {
	ServiceID     uuid.UUID   `json:"service_id"     validate:"required"`
	Name          string      `json:"name"           validate:"required,min=1,max=100"`
	Description   *string     `json:"description"    validate:"omitempty,max=1000"`
	ParentRoleID  *uuid.UUID  `json:"parent_role_id"`
	PermissionIDs []uuid.UUID `json:"permission_ids"`
}

// UpdateRoleInput changes a role. ParentRoleID sets a new parent and
// ClearParent detaches the role; setting both is rejected.
type UpdateRoleInput struct {
	Name         *string    `json:"name"           validate:"omitempty,min=1,max=100"`
	Description  *string    `json:"description"    validate:"omitempty,max=1000"`
	ParentRoleID *uuid.UUID `json:"parent_role_id"`
	ClearParent  bool       `json:"clear_parent"`
}

type AssignRolesInput struct {
	UserID   uuid.UUID   `json:"user_id"   validate:"required"`
	TenantID uuid.UUID   `json:"tenant_id" validate:"required"`
	RoleIDs  []uuid.UUID `json:"role_ids"  validate:"required,min=1"`
}
