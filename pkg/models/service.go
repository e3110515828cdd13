package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ServiceStatusActive   = "active"
	ServiceStatusInactive = "inactive"
)

// Service is a registered application. A nil TenantID marks a platform-level service.
type Service struct {
	ID           uuid.UUID  `db:"id"            json:"id"`
	TenantID     *uuid.UUID `db:"tenant_id"     json:"tenant_id,omitempty"`
	Name         string     `db:"name"          json:"name"`
	BaseURL      *string    `db:"base_url"      json:"base_url,omitempty"`
	RedirectURIs []string   `db:"redirect_uris" json:"redirect_uris"`
	LogoutURIs   []string   `db:"logout_uris"   json:"logout_uris"`
	Status       string     `db:"status"        json:"status"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"    json:"updated_at"`
}

// Client is an OAuth client credential of a service.
// Raw secrets are returned once at creation; only the bcrypt hash is stored.
type Client struct {
	ID         uuid.UUID `db:"id"          json:"id"`
	ServiceID  uuid.UUID `db:"service_id"  json:"service_id"`
	ClientID   string    `db:"client_id"   json:"client_id"`
	Name       *string   `db:"name"        json:"name,omitempty"`
	SecretHash string    `db:"secret_hash" json:"-"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
}

// ClientWithSecret carries the plaintext secret right after issuance or rotation.
type ClientWithSecret struct {
	Client
	ClientSecret string `json:"client_secret"`
}

type ServiceWithClient struct {
	Service *Service          `json:"service"`
	Client  *ClientWithSecret `json:"client"`
}

type CreateServiceInput struct {
	TenantID     *uuid.UUID `json:"tenant_id"`
	Name         string     `json:"name"          validate:"required,min=1,max=255"`
	ClientID     string     `json:"client_id"     validate:"required,min=1,max=255"`
	BaseURL      *string    `json:"base_url"      validate:"omitempty,url"`
	RedirectURIs []string   `json:"redirect_uris" validate:"dive,url"`
	LogoutURIs   []string   `json:"logout_uris"   validate:"dive,url"`
}

type UpdateServiceInput struct {
	Name         *string  `json:"name"          validate:"omitempty,min=1,max=255"`
	BaseURL      *string  `json:"base_url"      validate:"omitempty,url"`
	RedirectURIs []string `json:"redirect_uris" validate:"omitempty,dive,url"`
	LogoutURIs   []string `json:"logout_uris"   validate:"omitempty,dive,url"`
	Status       *string  `json:"status"        validate:"omitempty,oneof=active inactive"`
}
