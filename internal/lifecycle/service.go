package lifecycle

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/authgraph/internal/apperr"
	"github.com/kiranshivaraju/authgraph/internal/cascade"
	"github.com/kiranshivaraju/authgraph/internal/store"
	"github.com/kiranshivaraju/authgraph/internal/validate"
	"github.com/kiranshivaraju/authgraph/pkg/models"
	"golang.org/x/sync/singleflight"
)

// ServiceService manages services and their OAuth clients.
type ServiceService struct {
	Deps
	group singleflight.Group
}

func NewServiceService(deps Deps) *ServiceService {
	return &ServiceService{Deps: deps.withDefaults()}
}

func clientConflict(clientID string) error {
	return apperr.Conflict("Client with client_id '%s' already exists", clientID)
}

// Create registers a service with its first client. The plaintext secret is
// only ever returned here.
func (s *ServiceService) Create(ctx context.Context, in *models.CreateServiceInput) (*models.ServiceWithClient, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if in.TenantID != nil {
		if _, err := requireActiveTenant(ctx, s.Repos.Tenants, *in.TenantID); err != nil {
			return nil, err
		}
	}
	secret, hash, err := newClientSecret()
	if err != nil {
		return nil, err
	}

	var out *models.ServiceWithClient
	err = store.InTx(ctx, s.UnitOfWork, func(repos store.Repositories) error {
		svc, err := repos.Services.CreateService(ctx, in)
		if err != nil {
			return err
		}
		c, err := repos.Services.CreateClient(ctx, svc.ID, in.ClientID, hash, nil)
		if errors.Is(err, store.ErrDuplicateKey) {
			return clientConflict(in.ClientID)
		}
		if err != nil {
			return err
		}
		out = &models.ServiceWithClient{
			Service: svc,
			Client:  &models.ClientWithSecret{Client: *c, ClientSecret: secret},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ServiceService) find(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	svc, err := s.Repos.Services.FindServiceByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Service %s not found", id)
	}
	return svc, err
}

// Get returns a service, served from the cache when possible.
func (s *ServiceService) Get(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	if svc, ok := s.Cache.GetServiceConfig(ctx, id); ok {
		return svc, nil
	}
	v, err, _ := s.group.Do(id.String(), func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		svc, err := s.find(ctx, id)
		if err != nil {
			return nil, err
		}
		s.Cache.SetServiceConfig(ctx, svc)
		return svc, nil
	})
	if err != nil {
		return nil, err
	}
	svc := *v.(*models.Service)
	return &svc, nil
}

// List returns services of one tenant, or of every tenant when tenantID is nil.
func (s *ServiceService) List(ctx context.Context, tenantID *uuid.UUID, page, perPage int) ([]*models.Service, int, error) {
	offset, limit := pageBounds(page, perPage)
	return s.Repos.Services.ListServices(ctx, tenantID, offset, limit)
}

func (s *ServiceService) Update(ctx context.Context, id uuid.UUID, in *models.UpdateServiceInput) (*models.Service, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	svc, err := s.Repos.Services.UpdateService(ctx, id, in)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Service %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	s.Cache.InvalidateServiceConfig(ctx, id)
	return svc, nil
}

// Delete removes a service with its clients, roles and permissions.
func (s *ServiceService) Delete(ctx context.Context, id uuid.UUID) (*cascade.Result, error) {
	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}
	res, err := s.Engine.Execute(ctx, s.UnitOfWork, ServicePlan(id, s.Repos))
	if err != nil {
		return res, err
	}
	s.Cache.InvalidateServiceConfig(ctx, id)
	s.Cache.InvalidateAllUserRoles(ctx)
	return res, nil
}

// --- Clients ---

// CreateClient issues an additional client for a service with a generated
// client id.
func (s *ServiceService) CreateClient(ctx context.Context, serviceID uuid.UUID, name *string) (*models.ClientWithSecret, error) {
	if _, err := s.find(ctx, serviceID); err != nil {
		return nil, err
	}
	secret, hash, err := newClientSecret()
	if err != nil {
		return nil, err
	}
	clientID := uuid.NewString()
	c, err := s.Repos.Services.CreateClient(ctx, serviceID, clientID, hash, name)
	if errors.Is(err, store.ErrDuplicateKey) {
		return nil, clientConflict(clientID)
	}
	if err != nil {
		return nil, err
	}
	return &models.ClientWithSecret{Client: *c, ClientSecret: secret}, nil
}

func (s *ServiceService) ListClients(ctx context.Context, serviceID uuid.UUID) ([]*models.Client, error) {
	if _, err := s.find(ctx, serviceID); err != nil {
		return nil, err
	}
	return s.Repos.Services.ListClients(ctx, serviceID)
}

func (s *ServiceService) DeleteClient(ctx context.Context, serviceID uuid.UUID, clientID string) error {
	err := s.Repos.Services.DeleteClient(ctx, serviceID, clientID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("Client '%s' not found", clientID)
	}
	return err
}

func (s *ServiceService) findClient(ctx context.Context, clientID string) (*models.Client, error) {
	c, err := s.Repos.Services.FindClientByClientID(ctx, clientID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Client '%s' not found", clientID)
	}
	return c, err
}

// RegenerateSecret replaces a client's secret and returns the new plaintext.
// The old secret stops working immediately.
func (s *ServiceService) RegenerateSecret(ctx context.Context, clientID string) (string, error) {
	if _, err := s.findClient(ctx, clientID); err != nil {
		return "", err
	}
	secret, hash, err := newClientSecret()
	if err != nil {
		return "", err
	}
	err = s.Repos.Services.UpdateClientSecretHash(ctx, clientID, hash)
	if errors.Is(err, store.ErrNotFound) {
		return "", apperr.NotFound("Client '%s' not found", clientID)
	}
	if err != nil {
		return "", err
	}
	return secret, nil
}

// VerifySecret reports whether secret belongs to the client. An unknown
// client is NotFound.
func (s *ServiceService) VerifySecret(ctx context.Context, clientID, secret string) (bool, error) {
	c, err := s.findClient(ctx, clientID)
	if err != nil {
		return false, err
	}
	return secretMatches(secret, c.SecretHash)
}
