package models

import (
	"time"

	"github.com/google/uuid"
)

// The types below are rows that only matter to the cascade engine: they are
// written by collaborators outside this service and removed or detached here.

// LoginEvent is kept after its user is deleted; UserID is nulled instead.
type LoginEvent struct {
	ID        uuid.UUID  `db:"id"         json:"id"`
	UserID    *uuid.UUID `db:"user_id"    json:"user_id,omitempty"`
	TenantID  *uuid.UUID `db:"tenant_id"  json:"tenant_id,omitempty"`
	EventType string     `db:"event_type" json:"event_type"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// SecurityAlert is kept after its user is deleted; UserID is nulled instead.
type SecurityAlert struct {
	ID        uuid.UUID  `db:"id"         json:"id"`
	UserID    *uuid.UUID `db:"user_id"    json:"user_id,omitempty"`
	TenantID  *uuid.UUID `db:"tenant_id"  json:"tenant_id,omitempty"`
	AlertType string     `db:"alert_type" json:"alert_type"`
	Severity  string     `db:"severity"   json:"severity"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// AuditLog is kept after its actor is deleted; ActorID is nulled instead.
type AuditLog struct {
	ID           uuid.UUID  `db:"id"            json:"id"`
	ActorID      *uuid.UUID `db:"actor_id"      json:"actor_id,omitempty"`
	Action       string     `db:"action"        json:"action"`
	ResourceType string     `db:"resource_type" json:"resource_type"`
	ResourceID   *uuid.UUID `db:"resource_id"   json:"resource_id,omitempty"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
}

type Webhook struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	TenantID  uuid.UUID `db:"tenant_id"  json:"tenant_id"`
	URL       string    `db:"url"        json:"url"`
	Events    []string  `db:"events"     json:"events"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Invitation struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	TenantID  uuid.UUID `db:"tenant_id"  json:"tenant_id"`
	Email     string    `db:"email"      json:"email"`
	Status    string    `db:"status"     json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Action is a scripted hook owned by a tenant and optionally bound to one service.
type Action struct {
	ID        uuid.UUID  `db:"id"         json:"id"`
	TenantID  uuid.UUID  `db:"tenant_id"  json:"tenant_id"`
	ServiceID *uuid.UUID `db:"service_id" json:"service_id,omitempty"`
	Name      string     `db:"name"       json:"name"`
	Trigger   string     `db:"trigger_id" json:"trigger_id"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

type ServiceBranding struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	ServiceID uuid.UUID `db:"service_id" json:"service_id"`
	Config    []byte    `db:"config"     json:"config"`
}

type Session struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	UserID    uuid.UUID `db:"user_id"    json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type PasswordResetToken struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	UserID    uuid.UUID `db:"user_id"    json:"user_id"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}

type LinkedIdentity struct {
	ID           uuid.UUID `db:"id"            json:"id"`
	UserID       uuid.UUID `db:"user_id"       json:"user_id"`
	ProviderType string    `db:"provider_type" json:"provider_type"`
	ExternalID   string    `db:"external_id"   json:"external_id"`
}
