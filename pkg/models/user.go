package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a person known to the identity provider through KeycloakID.
type User struct {
	ID          uuid.UUID `db:"id"           json:"id"`
	KeycloakID  string    `db:"keycloak_id"  json:"keycloak_id"`
	Email       string    `db:"email"        json:"email"`
	DisplayName *string   `db:"display_name" json:"display_name,omitempty"`
	AvatarURL   *string   `db:"avatar_url"   json:"avatar_url,omitempty"`
	MFAEnabled  bool      `db:"mfa_enabled"  json:"mfa_enabled"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"   json:"updated_at"`
}

// TenantUser is the membership of a user in a tenant. It anchors role assignments.
type TenantUser struct {
	ID           uuid.UUID `db:"id"             json:"id"`
	TenantID     uuid.UUID `db:"tenant_id"      json:"tenant_id"`
	UserID       uuid.UUID `db:"user_id"        json:"user_id"`
	RoleInTenant string    `db:"role_in_tenant" json:"role_in_tenant"`
	JoinedAt     time.Time `db:"joined_at"      json:"joined_at"`
}

// TenantSummary is the tenant part of a membership listing.
type TenantSummary struct {
	ID      uuid.UUID    `json:"id"`
	Name    string       `json:"name"`
	Slug    string       `json:"slug"`
	LogoURL *string      `json:"logo_url,omitempty"`
	Status  TenantStatus `json:"status"`
}

type TenantUserWithTenant struct {
	TenantUser
	Tenant TenantSummary `json:"tenant"`
}

type CreateUserInput struct {
	Email       string  `json:"email"        validate:"required,email"`
	DisplayName *string `json:"display_name" validate:"omitempty,max=255"`
	AvatarURL   *string `json:"avatar_url"   validate:"omitempty,url"`
}

type UpdateUserInput struct {
	DisplayName *string `json:"display_name" validate:"omitempty,max=255"`
	AvatarURL   *string `json:"avatar_url"   validate:"omitempty,url"`
	MFAEnabled  *bool   `json:"mfa_enabled"`
}

type AddUserToTenantInput struct {
	UserID       uuid.UUID `json:"user_id"        validate:"required"`
	TenantID     uuid.UUID `json:"tenant_id"      validate:"required"`
	RoleInTenant string    `json:"role_in_tenant" validate:"required,min=1,max=50"`
}
