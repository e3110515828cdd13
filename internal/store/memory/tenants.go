package memory

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/authgraph/internal/store"
	"github.com/kiranshivaraju/authgraph/pkg/models"
)

func (s *Store) FindTenantByID(_ context.Context, id uuid.UUID) (*models.Tenant, error) {
	err := s.enter("FindTenantByID")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	t, ok := s.t.tenants[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (s *Store) FindTenantBySlug(_ context.Context, slug string) (*models.Tenant, error) {
	err := s.enter("FindTenantBySlug")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	for _, t := range s.t.tenants {
		if t.Slug == slug {
			c := *t
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateTenant(_ context.Context, in *models.CreateTenantInput) (*models.Tenant, error) {
	err := s.enter("CreateTenant")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	for _, t := range s.t.tenants {
		if t.Slug == in.Slug {
			return nil, store.ErrDuplicateKey
		}
	}
	settings := models.DefaultTenantSettings()
	if in.Settings != nil {
		settings = *in.Settings
	}
	now := s.now()
	t := &models.Tenant{
		ID:        uuid.New(),
		Name:      in.Name,
		Slug:      in.Slug,
		Domain:    in.Domain,
		LogoURL:   in.LogoURL,
		Settings:  settings,
		Status:    models.TenantStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.t.tenants[t.ID] = t
	c := *t
	return &c, nil
}

func (s *Store) UpdateTenant(_ context.Context, id uuid.UUID, in *models.UpdateTenantInput) (*models.Tenant, error) {
	err := s.enter("UpdateTenant")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	t, ok := s.t.tenants[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if in.Name != nil {
		t.Name = *in.Name
	}
	if in.LogoURL != nil {
		t.LogoURL = in.LogoURL
	}
	if in.Settings != nil {
		t.Settings = *in.Settings
	}
	if in.Status != nil {
		t.Status = *in.Status
	}
	t.UpdatedAt = s.now()
	c := *t
	return &c, nil
}

func (s *Store) DeleteTenant(_ context.Context, id uuid.UUID) (int64, error) {
	err := s.enter("DeleteTenant")
	defer s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if _, ok := s.t.tenants[id]; !ok {
		return 0, nil
	}
	delete(s.t.tenants, id)
	return 1, nil
}

func (s *Store) sortedTenants(match func(*models.Tenant) bool) []*models.Tenant {
	all := sortedValues(s.t.tenants, func(a, b *models.Tenant) bool {
		return a.CreatedAt.After(b.CreatedAt)
	})
	out := all[:0]
	for _, t := range all {
		if match(t) {
			out = append(out, t)
		}
	}
	return out
}

func (s *Store) ListTenants(_ context.Context, offset, limit int) ([]*models.Tenant, error) {
	err := s.enter("ListTenants")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	all := s.sortedTenants(func(*models.Tenant) bool { return true })
	return paginate(all, offset, limit), nil
}

func (s *Store) CountTenants(context.Context) (int, error) {
	err := s.enter("CountTenants")
	defer s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return len(s.t.tenants), nil
}

func (s *Store) SearchTenants(_ context.Context, query string, offset, limit int) ([]*models.Tenant, int, error) {
	err := s.enter("SearchTenants")
	defer s.mu.Unlock()
	if err != nil {
		return nil, 0, err
	}
	q := strings.ToLower(query)
	matches := s.sortedTenants(func(t *models.Tenant) bool {
		return strings.Contains(strings.ToLower(t.Name), q) || strings.Contains(strings.ToLower(t.Slug), q)
	})
	return paginate(matches, offset, limit), len(matches), nil
}
