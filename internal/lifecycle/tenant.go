package lifecycle

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/authgraph/internal/apperr"
	"github.com/kiranshivaraju/authgraph/internal/cascade"
	"github.com/kiranshivaraju/authgraph/internal/store"
	"github.com/kiranshivaraju/authgraph/internal/validate"
	"github.com/kiranshivaraju/authgraph/pkg/models"
	"golang.org/x/sync/singleflight"
)

// OwnerRole is the membership role given to the creator of an organization.
const OwnerRole = "owner"

// TenantService manages tenants and their status.
type TenantService struct {
	Deps
	group singleflight.Group
}

func NewTenantService(deps Deps) *TenantService {
	return &TenantService{Deps: deps.withDefaults()}
}

func (s *TenantService) Create(ctx context.Context, in *models.CreateTenantInput) (*models.Tenant, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	t, err := s.Repos.Tenants.CreateTenant(ctx, in)
	if errors.Is(err, store.ErrDuplicateKey) {
		return nil, apperr.Conflict("Tenant with slug '%s' already exists", in.Slug)
	}
	if err != nil {
		return nil, err
	}
	s.Cache.SetTenantConfig(ctx, t)
	return t, nil
}

// CreateOrganization is self-service onboarding. The creator becomes the
// owner of a new tenant, which stays active only when the creator's email
// domain matches the organization's domain; otherwise it waits in pending
// for approval.
func (s *TenantService) CreateOrganization(ctx context.Context, in *models.CreateOrganizationInput, creatorID uuid.UUID, creatorEmail string) (*models.Tenant, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if _, err := s.Repos.Users.FindUserByID(ctx, creatorID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("User %s not found", creatorID)
		}
		return nil, err
	}

	var tenant *models.Tenant
	err := store.InTx(ctx, s.UnitOfWork, func(repos store.Repositories) error {
		domain := in.Domain
		t, err := repos.Tenants.CreateTenant(ctx, &models.CreateTenantInput{
			Name:    in.Name,
			Slug:    in.Slug,
			Domain:  &domain,
			LogoURL: in.LogoURL,
		})
		if errors.Is(err, store.ErrDuplicateKey) {
			return apperr.Conflict("Organization with slug '%s' already exists", in.Slug)
		}
		if err != nil {
			return err
		}

		_, err = repos.Users.AddToTenant(ctx, &models.AddUserToTenantInput{
			UserID:       creatorID,
			TenantID:     t.ID,
			RoleInTenant: OwnerRole,
		})
		if err != nil {
			return err
		}

		if !strings.EqualFold(emailDomain(creatorEmail), in.Domain) {
			pending := models.TenantStatusPending
			t, err = repos.Tenants.UpdateTenant(ctx, t.ID, &models.UpdateTenantInput{Status: &pending})
			if err != nil {
				return err
			}
		}
		tenant = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Cache.SetTenantConfig(ctx, tenant)
	return tenant, nil
}

func emailDomain(email string) string {
	i := strings.LastIndexByte(email, '@')
	if i < 0 {
		return ""
	}
	return email[i+1:]
}

// Get returns a tenant, served from the cache when possible. Concurrent
// misses for the same tenant share one database read.
func (s *TenantService) Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	if t, ok := s.Cache.GetTenantConfig(ctx, id); ok {
		return t, nil
	}
	v, err, _ := s.group.Do(id.String(), func() (any, error) {
		// Waiters share this read, so it must outlive a cancelled first caller.
		ctx := context.WithoutCancel(ctx)
		t, err := findTenant(ctx, s.Repos.Tenants, id)
		if err != nil {
			return nil, err
		}
		s.Cache.SetTenantConfig(ctx, t)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	t := *v.(*models.Tenant)
	return &t, nil
}

func (s *TenantService) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	t, err := s.Repos.Tenants.FindTenantBySlug(ctx, slug)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Tenant '%s' not found", slug)
	}
	if err != nil {
		return nil, err
	}
	s.Cache.SetTenantConfig(ctx, t)
	return t, nil
}

func (s *TenantService) List(ctx context.Context, page, perPage int) ([]*models.Tenant, int, error) {
	offset, limit := pageBounds(page, perPage)
	tenants, err := s.Repos.Tenants.ListTenants(ctx, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Repos.Tenants.CountTenants(ctx)
	if err != nil {
		return nil, 0, err
	}
	return tenants, total, nil
}

func (s *TenantService) Search(ctx context.Context, query string, page, perPage int) ([]*models.Tenant, int, error) {
	offset, limit := pageBounds(page, perPage)
	return s.Repos.Tenants.SearchTenants(ctx, query, offset, limit)
}

// Update changes a tenant. A status change must follow the tenant state
// machine; any other change requires the tenant to be active.
func (s *TenantService) Update(ctx context.Context, id uuid.UUID, in *models.UpdateTenantInput) (*models.Tenant, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	current, err := findTenant(ctx, s.Repos.Tenants, id)
	if err != nil {
		return nil, err
	}
	if in.Status != nil && !current.Status.CanTransitionTo(*in.Status) {
		return nil, apperr.BadRequest("Cannot change tenant status from '%s' to '%s'", current.Status, *in.Status)
	}
	changesFields := in.Name != nil || in.LogoURL != nil || in.Settings != nil
	if changesFields && !current.IsActive() {
		return nil, inactiveTenant(current)
	}

	t, err := s.Repos.Tenants.UpdateTenant(ctx, id, in)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Tenant %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	s.Cache.InvalidateTenantConfig(ctx, id)
	return t, nil
}

// Disable moves an active tenant to inactive.
func (s *TenantService) Disable(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	inactive := models.TenantStatusInactive
	return s.Update(ctx, id, &models.UpdateTenantInput{Status: &inactive})
}

// RequireActive fails with Forbidden unless the tenant is active.
func (s *TenantService) RequireActive(ctx context.Context, id uuid.UUID) error {
	t, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !t.IsActive() {
		return inactiveTenant(t)
	}
	return nil
}

// Delete removes a tenant and everything it owns. The services to remove are
// read before the cascade starts.
func (s *TenantService) Delete(ctx context.Context, id uuid.UUID) (*cascade.Result, error) {
	if _, err := findTenant(ctx, s.Repos.Tenants, id); err != nil {
		return nil, err
	}
	services, err := s.Repos.Services.ListServicesByTenant(ctx, id)
	if err != nil {
		return nil, err
	}
	serviceIDs := make([]uuid.UUID, len(services))
	for i, svc := range services {
		serviceIDs[i] = svc.ID
	}

	res, err := s.Engine.Execute(ctx, s.UnitOfWork, TenantPlan(id, serviceIDs, s.Repos))
	if err != nil {
		return res, err
	}

	for _, sid := range serviceIDs {
		s.Cache.InvalidateServiceConfig(ctx, sid)
	}
	s.Cache.InvalidateTenantConfig(ctx, id)
	s.Cache.InvalidateAllUserRoles(ctx)
	s.publish(ctx, models.EventTenantDeleted, map[string]any{
		"tenant_id":        id.String(),
		"deleted_services": len(serviceIDs),
	})
	return res, nil
}
