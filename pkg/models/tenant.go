package models

import (
	"time"

	"github.com/google/uuid"
)

// TenantStatus is the lifecycle state of a tenant. Deletion is row removal, not a status.
type TenantStatus string

const (
	TenantStatusActive   TenantStatus = "active"
	TenantStatusPending  TenantStatus = "pending"
	TenantStatusInactive TenantStatus = "inactive"
)

// tenantTransitions lists the status changes an update may make. Pending is
// only entered by self-service onboarding, which writes it directly, and is
// left through approval.
var tenantTransitions = map[TenantStatus][]TenantStatus{
	TenantStatusActive:   {TenantStatusInactive},
	TenantStatusInactive: {TenantStatusActive},
	TenantStatusPending:  {TenantStatusActive},
}

// Valid reports whether s is a known status.
func (s TenantStatus) Valid() bool {
	_, ok := tenantTransitions[s]
	return ok
}

// CanTransitionTo reports whether a tenant in status s may move to next.
// Staying in the same status is always allowed.
func (s TenantStatus) CanTransitionTo(next TenantStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range tenantTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TenantBranding is the per-tenant look of hosted pages.
type TenantBranding struct {
	LogoURL      *string `json:"logo_url,omitempty"`
	PrimaryColor *string `json:"primary_color,omitempty"`
}

// TenantSettings is stored as JSONB on the tenant row.
type TenantSettings struct {
	RequireMFA         bool           `json:"require_mfa"`
	AllowedAuthMethods []string       `json:"allowed_auth_methods,omitempty"`
	SessionTimeoutSecs int64          `json:"session_timeout_secs"`
	Branding           TenantBranding `json:"branding"`
}

// DefaultTenantSettings returns the settings applied when none are supplied.
func DefaultTenantSettings() TenantSettings {
	return TenantSettings{
		AllowedAuthMethods: []string{"password"},
		SessionTimeoutSecs: 3600,
	}
}

// Tenant is an isolated organization. It owns services, memberships and the
// audit-style collections (login events, security alerts, webhooks, invitations, actions).
type Tenant struct {
	ID        uuid.UUID      `db:"id"         json:"id"`
	Name      string         `db:"name"       json:"name"`
	Slug      string         `db:"slug"       json:"slug"`
	Domain    *string        `db:"domain"     json:"domain,omitempty"`
	LogoURL   *string        `db:"logo_url"   json:"logo_url,omitempty"`
	Settings  TenantSettings `db:"settings"   json:"settings"`
	Status    TenantStatus   `db:"status"     json:"status"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether writes are allowed against the tenant.
func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}

type CreateTenantInput struct {
	Name     string          `json:"name"     validate:"required,min=1,max=255"`
	Slug     string          `json:"slug"     validate:"required,max=63,slug"`
	Domain   *string         `json:"domain"   validate:"omitempty,fqdn"`
	LogoURL  *string         `json:"logo_url" validate:"omitempty,url"`
	Settings *TenantSettings `json:"settings"`
}

type UpdateTenantInput struct {
	Name     *string         `json:"name"     validate:"omitempty,min=1,max=255"`
	LogoURL  *string         `json:"logo_url" validate:"omitempty,url"`
	Settings *TenantSettings `json:"settings"`
	Status   *TenantStatus   `json:"status"   validate:"omitempty,oneof=active pending inactive"`
}

// CreateOrganizationInput is submitted by a signed-in user creating their own tenant.
type CreateOrganizationInput struct {
	Name    string  `json:"name"     validate:"required,min=1,max=255"`
	Slug    string  `json:"slug"     validate:"required,max=63,slug"`
	Domain  string  `json:"domain"   validate:"required,fqdn"`
	LogoURL *string `json:"logo_url" validate:"omitempty,url"`
}
