package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/authgraph/internal/store"
	"github.com/kiranshivaraju/authgraph/pkg/models"
)

// --- Users ---

func (s *Store) CreateUser(_ context.Context, keycloakID string, in *models.CreateUserInput) (*models.User, error) {
	err := s.enter("CreateUser")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	for _, u := range s.t.users {
		if u.KeycloakID == keycloakID {
			return nil, store.ErrDuplicateKey
		}
	}
	now := s.now()
	u := &models.User{
		ID:          uuid.New(),
		KeycloakID:  keycloakID,
		Email:       in.Email,
		DisplayName: in.DisplayName,
		AvatarURL:   in.AvatarURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.t.users[u.ID] = u
	c := *u
	return &c, nil
}

func (s *Store) FindUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	err := s.enter("FindUserByID")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	u, ok := s.t.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (s *Store) FindUserByKeycloakID(_ context.Context, keycloakID string) (*models.User, error) {
	err := s.enter("FindUserByKeycloakID")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	for _, u := range s.t.users {
		if u.KeycloakID == keycloakID {
			c := *u
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context, offset, limit int) ([]*models.User, int, error) {
	err := s.enter("ListUsers")
	defer s.mu.Unlock()
	if err != nil {
		return nil, 0, err
	}
	all := sortedValues(s.t.users, func(a, b *models.User) bool { return a.CreatedAt.After(b.CreatedAt) })
	return paginate(all, offset, limit), len(all), nil
}

func (s *Store) UpdateUser(_ context.Context, id uuid.UUID, in *models.UpdateUserInput) (*models.User, error) {
	err := s.enter("UpdateUser")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	u, ok := s.t.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if in.DisplayName != nil {
		u.DisplayName = in.DisplayName
	}
	if in.AvatarURL != nil {
		u.AvatarURL = in.AvatarURL
	}
	if in.MFAEnabled != nil {
		u.MFAEnabled = *in.MFAEnabled
	}
	u.UpdatedAt = s.now()
	c := *u
	return &c, nil
}

func (s *Store) DeleteUser(_ context.Context, id uuid.UUID) (int64, error) {
	err := s.enter("DeleteUser")
	defer s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if _, ok := s.t.users[id]; !ok {
		return 0, nil
	}
	delete(s.t.users, id)
	return 1, nil
}

// --- Tenant memberships ---

func (s *Store) AddToTenant(_ context.Context, in *models.AddUserToTenantInput) (*models.TenantUser, error) {
	err := s.enter("AddToTenant")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	for _, tu := range s.t.tenantUsers {
		if tu.TenantID == in.TenantID && tu.UserID == in.UserID {
			return nil, store.ErrDuplicateKey
		}
	}
	tu := &models.TenantUser{
		ID:           uuid.New(),
		TenantID:     in.TenantID,
		UserID:       in.UserID,
		RoleInTenant: in.RoleInTenant,
		JoinedAt:     s.now(),
	}
	s.t.tenantUsers[tu.ID] = tu
	c := *tu
	return &c, nil
}

func (s *Store) findMembership(userID, tenantID uuid.UUID) *models.TenantUser {
	for _, tu := range s.t.tenantUsers {
		if tu.UserID == userID && tu.TenantID == tenantID {
			return tu
		}
	}
	return nil
}

func (s *Store) UpdateRoleInTenant(_ context.Context, userID, tenantID uuid.UUID, role string) (*models.TenantUser, error) {
	err := s.enter("UpdateRoleInTenant")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	tu := s.findMembership(userID, tenantID)
	if tu == nil {
		return nil, store.ErrNotFound
	}
	tu.RoleInTenant = role
	c := *tu
	return &c, nil
}

func (s *Store) RemoveFromTenant(_ context.Context, userID, tenantID uuid.UUID) error {
	err := s.enter("RemoveFromTenant")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	tu := s.findMembership(userID, tenantID)
	if tu == nil {
		return store.ErrNotFound
	}
	delete(s.t.tenantUsers, tu.ID)
	return nil
}

func (s *Store) membershipsWhere(match func(*models.TenantUser) bool) []*models.TenantUser {
	all := sortedValues(s.t.tenantUsers, func(a, b *models.TenantUser) bool {
		return a.JoinedAt.Before(b.JoinedAt)
	})
	out := all[:0]
	for _, tu := range all {
		if match(tu) {
			out = append(out, tu)
		}
	}
	return out
}

func ids(memberships []*models.TenantUser) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(memberships))
	for _, tu := range memberships {
		out = append(out, tu.ID)
	}
	return out
}

func (s *Store) ListTenantUserIDs(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	err := s.enter("ListTenantUserIDs")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return ids(s.membershipsWhere(func(tu *models.TenantUser) bool { return tu.UserID == userID })), nil
}

func (s *Store) ListTenantUserIDsByTenant(_ context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	err := s.enter("ListTenantUserIDsByTenant")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return ids(s.membershipsWhere(func(tu *models.TenantUser) bool { return tu.TenantID == tenantID })), nil
}

func (s *Store) deleteMemberships(match func(*models.TenantUser) bool) int64 {
	var n int64
	for id, tu := range s.t.tenantUsers {
		if match(tu) {
			delete(s.t.tenantUsers, id)
			n++
		}
	}
	return n
}

func (s *Store) DeleteAllTenantMemberships(_ context.Context, userID uuid.UUID) (int64, error) {
	err := s.enter("DeleteAllTenantMemberships")
	defer s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return s.deleteMemberships(func(tu *models.TenantUser) bool { return tu.UserID == userID }), nil
}

func (s *Store) DeleteTenantMembershipsByTenant(_ context.Context, tenantID uuid.UUID) (int64, error) {
	err := s.enter("DeleteTenantMembershipsByTenant")
	defer s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return s.deleteMemberships(func(tu *models.TenantUser) bool { return tu.TenantID == tenantID }), nil
}

func (s *Store) FindUserTenants(_ context.Context, userID uuid.UUID) ([]*models.TenantUser, error) {
	err := s.enter("FindUserTenants")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.membershipsWhere(func(tu *models.TenantUser) bool { return tu.UserID == userID }), nil
}

func (s *Store) FindUserTenantsWithTenant(_ context.Context, userID uuid.UUID) ([]*models.TenantUserWithTenant, error) {
	err := s.enter("FindUserTenantsWithTenant")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var out []*models.TenantUserWithTenant
	for _, tu := range s.membershipsWhere(func(tu *models.TenantUser) bool { return tu.UserID == userID }) {
		t, ok := s.t.tenants[tu.TenantID]
		if !ok {
			continue
		}
		out = append(out, &models.TenantUserWithTenant{
			TenantUser: *tu,
			Tenant: models.TenantSummary{
				ID:      t.ID,
				Name:    t.Name,
				Slug:    t.Slug,
				LogoURL: t.LogoURL,
				Status:  t.Status,
			},
		})
	}
	return out, nil
}
