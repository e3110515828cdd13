// Package lifecycle creates, updates and deletes tenants, services and users.
// Deletes run a cascade plan through the cascade engine and touch the cache,
// the identity provider and the notification channel only after commit.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/authgraph/internal/apperr"
	"github.com/kiranshivaraju/authgraph/internal/cascade"
	"github.com/kiranshivaraju/authgraph/internal/events"
	"github.com/kiranshivaraju/authgraph/internal/idp"
	"github.com/kiranshivaraju/authgraph/internal/store"
	"github.com/kiranshivaraju/authgraph/pkg/models"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Cache is the part of the cache manager the lifecycles use.
type Cache interface {
	GetTenantConfig(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, bool)
	SetTenantConfig(ctx context.Context, t *models.Tenant)
	InvalidateTenantConfig(ctx context.Context, tenantID uuid.UUID)
	GetServiceConfig(ctx context.Context, serviceID uuid.UUID) (*models.Service, bool)
	SetServiceConfig(ctx context.Context, s *models.Service)
	InvalidateServiceConfig(ctx context.Context, serviceID uuid.UUID)
	InvalidateAllUserRoles(ctx context.Context)
	InvalidateUserRolesForTenant(ctx context.Context, userID, tenantID uuid.UUID)
}

type noCache struct{}

func (noCache) GetTenantConfig(context.Context, uuid.UUID) (*models.Tenant, bool) { return nil, false }
func (noCache) SetTenantConfig(context.Context, *models.Tenant) {}
func (noCache) InvalidateTenantConfig(context.Context, uuid.UUID) {}
func (noCache) GetServiceConfig(context.Context, uuid.UUID) (*models.Service, bool) { return nil, false }
func (noCache) SetServiceConfig(context.Context, *models.Service) {}
func (noCache) InvalidateServiceConfig(context.Context, uuid.UUID) {}
func (noCache) InvalidateAllUserRoles(context.Context) {}
func (noCache) InvalidateUserRolesForTenant(context.Context, uuid.UUID, uuid.UUID) {}

// Deps are the collaborators shared by the lifecycle services. Only Repos is
// required. A nil UnitOfWork runs every statement directly against Repos,
// which makes cascades sequential.
type Deps struct {
	Repos      store.Repositories
	UnitOfWork store.UnitOfWork
	Engine     *cascade.Engine
	Cache      Cache
	IdP        idp.Provider
	Publisher  events.Publisher
	Logger     *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.UnitOfWork == nil {
		d.UnitOfWork = store.PassThrough(d.Repos)
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Engine == nil {
		d.Engine = cascade.NewEngine(d.Logger)
	}
	if d.Cache == nil {
		d.Cache = noCache{}
	}
	if d.IdP == nil {
		d.IdP = idp.Noop{}
	}
	if d.Publisher == nil {
		d.Publisher = events.Discard{}
	}
	return d
}

// publish sends a notification. Failures are logged and dropped.
func (d Deps) publish(ctx context.Context, eventType string, data map[string]any) {
	e := models.Event{Type: eventType, Timestamp: time.Now().UTC(), Data: data}
	if err := d.Publisher.Publish(ctx, e); err != nil {
		d.Logger.Warn("failed to publish event", "event_type", eventType, "error", err)
	}
}

// requireActiveTenant loads a tenant from the repository and rejects writes
// against it unless it is active.
func requireActiveTenant(ctx context.Context, repo store.TenantRepository, id uuid.UUID) (*models.Tenant, error) {
	t, err := findTenant(ctx, repo, id)
	if err != nil {
		return nil, err
	}
	if !t.IsActive() {
		return nil, inactiveTenant(t)
	}
	return t, nil
}

func inactiveTenant(t *models.Tenant) error {
	return apperr.Forbidden("Tenant is not active (status: '%s'). Write operations are not allowed on non-active tenants.", t.Status)
}

func findTenant(ctx context.Context, repo store.TenantRepository, id uuid.UUID) (*models.Tenant, error) {
	t, err := repo.FindTenantByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Tenant %s not found", id)
	}
	return t, err
}

// pageBounds turns a 1-based page into an offset and limit.
func pageBounds(page, perPage int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	switch {
	case perPage < 1:
		perPage = defaultPerPage
	case perPage > maxPerPage:
		perPage = maxPerPage
	}
	return (page - 1) * perPage, perPage
}
