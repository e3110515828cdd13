package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/authgraph/internal/store"
	"github.com/kiranshivaraju/authgraph/pkg/models"
)

// --- Services ---

func (s *Store) CreateService(_ context.Context, in *models.CreateServiceInput) (*models.Service, error) {
	err := s.enter("CreateService")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	now := s.now()
	svc := &models.Service{
		ID:           uuid.New(),
		TenantID:     in.TenantID,
		Name:         in.Name,
		BaseURL:      in.BaseURL,
		RedirectURIs: append([]string{}, in.RedirectURIs...),
		LogoutURIs:   append([]string{}, in.LogoutURIs...),
		Status:       models.ServiceStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.t.services[svc.ID] = svc
	c := *svc
	return &c, nil
}

func (s *Store) FindServiceByID(_ context.Context, id uuid.UUID) (*models.Service, error) {
	err := s.enter("FindServiceByID")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	svc, ok := s.t.services[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *svc
	return &c, nil
}

func (s *Store) servicesWhere(match func(*models.Service) bool) []*models.Service {
	all := sortedValues(s.t.services, func(a, b *models.Service) bool {
		return a.CreatedAt.Before(b.CreatedAt)
	})
	out := all[:0]
	for _, svc := range all {
		if match(svc) {
			out = append(out, svc)
		}
	}
	return out
}

func (s *Store) ListServices(_ context.Context, tenantID *uuid.UUID, offset, limit int) ([]*models.Service, int, error) {
	err := s.enter("ListServices")
	defer s.mu.Unlock()
	if err != nil {
		return nil, 0, err
	}
	matches := s.servicesWhere(func(svc *models.Service) bool {
		return tenantID == nil || (svc.TenantID != nil && *svc.TenantID == *tenantID)
	})
	return paginate(matches, offset, limit), len(matches), nil
}

func (s *Store) ListServicesByTenant(_ context.Context, tenantID uuid.UUID) ([]*models.Service, error) {
	err := s.enter("ListServicesByTenant")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.servicesWhere(func(svc *models.Service) bool {
		return svc.TenantID != nil && *svc.TenantID == tenantID
	}), nil
}

func (s *Store) UpdateService(_ context.Context, id uuid.UUID, in *models.UpdateServiceInput) (*models.Service, error) {
	err := s.enter("UpdateService")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	svc, ok := s.t.services[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if in.Name != nil {
		svc.Name = *in.Name
	}
	if in.BaseURL != nil {
		svc.BaseURL = in.BaseURL
	}
	if in.RedirectURIs != nil {
		svc.RedirectURIs = append([]string{}, in.RedirectURIs...)
	}
	if in.LogoutURIs != nil {
		svc.LogoutURIs = append([]string{}, in.LogoutURIs...)
	}
	if in.Status != nil {
		svc.Status = *in.Status
	}
	svc.UpdatedAt = s.now()
	c := *svc
	return &c, nil
}

func (s *Store) DeleteService(_ context.Context, id uuid.UUID) (int64, error) {
	err := s.enter("DeleteService")
	defer s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if _, ok := s.t.services[id]; !ok {
		return 0, nil
	}
	delete(s.t.services, id)
	return 1, nil
}

// --- Clients ---

func (s *Store) CreateClient(_ context.Context, serviceID uuid.UUID, clientID, secretHash string, name *string) (*models.Client, error) {
	err := s.enter("CreateClient")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	for _, c := range s.t.clients {
		if c.ClientID == clientID {
			return nil, store.ErrDuplicateKey
		}
	}
	c := &models.Client{
		ID:         uuid.New(),
		ServiceID:  serviceID,
		ClientID:   clientID,
		Name:       name,
		SecretHash: secretHash,
		CreatedAt:  s.now(),
	}
	s.t.clients[c.ID] = c
	out := *c
	return &out, nil
}

func (s *Store) findClient(clientID string) *models.Client {
	for _, c := range s.t.clients {
		if c.ClientID == clientID {
			return c
		}
	}
	return nil
}

func (s *Store) FindClientByClientID(_ context.Context, clientID string) (*models.Client, error) {
	err := s.enter("FindClientByClientID")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	c := s.findClient(clientID)
	if c == nil {
		return nil, store.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (s *Store) ListClients(_ context.Context, serviceID uuid.UUID) ([]*models.Client, error) {
	err := s.enter("ListClients")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	all := sortedValues(s.t.clients, func(a, b *models.Client) bool {
		return a.CreatedAt.Before(b.CreatedAt)
	})
	out := all[:0]
	for _, c := range all {
		if c.ServiceID == serviceID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) UpdateClientSecretHash(_ context.Context, clientID, secretHash string) error {
	err := s.enter("UpdateClientSecretHash")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	c := s.findClient(clientID)
	if c == nil {
		return store.ErrNotFound
	}
	c.SecretHash = secretHash
	return nil
}

func (s *Store) DeleteClient(_ context.Context, serviceID uuid.UUID, clientID string) error {
	err := s.enter("DeleteClient")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	c := s.findClient(clientID)
	if c == nil || c.ServiceID != serviceID {
		return store.ErrNotFound
	}
	delete(s.t.clients, c.ID)
	return nil
}

func (s *Store) DeleteClientsByService(_ context.Context, serviceID uuid.UUID) (int64, error) {
	err := s.enter("DeleteClientsByService")
	defer s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	var n int64
	for id, c := range s.t.clients {
		if c.ServiceID == serviceID {
			delete(s.t.clients, id)
			n++
		}
	}
	return n, nil
}
