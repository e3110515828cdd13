package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/authgraph/internal/store"
	"github.com/kiranshivaraju/authgraph/pkg/models"
)

// --- Permissions ---

func (s *Store) CreatePermission(_ context.Context, in *models.CreatePermissionInput) (*models.Permission, error) {
	err := s.enter("CreatePermission")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	for _, p := range s.t.permissions {
		if p.ServiceID == in.ServiceID && p.Code == in.Code {
			return nil, store.ErrDuplicateKey
		}
	}
	p := &models.Permission{
		ID:          uuid.New(),
		ServiceID:   in.ServiceID,
		Code:        in.Code,
		Name:        in.Name,
		Description: in.Description,
	}
	s.t.permissions[p.ID] = p
	c := *p
	return &c, nil
}

func (s *Store) FindPermissionByID(_ context.Context, id uuid.UUID) (*models.Permission, error) {
	err := s.enter("FindPermissionByID")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	p, ok := s.t.permissions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (s *Store) ListPermissionsByService(_ context.Context, serviceID uuid.UUID) ([]*models.Permission, error) {
	err := s.enter("ListPermissionsByService")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	all := sortedValues(s.t.permissions, func(a, b *models.Permission) bool { return a.Code < b.Code })
	out := all[:0]
	for _, p := range all {
		if p.ServiceID == serviceID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) DeletePermission(_ context.Context, id uuid.UUID) error {
	err := s.enter("DeletePermission")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	for k := range s.t.rolePermissions {
		if k.permissionID == id {
			delete(s.t.rolePermissions, k)
		}
	}
	if _, ok := s.t.permissions[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.t.permissions, id)
	return nil
}

func (s *Store) DeletePermissionsByService(_ context.Context, serviceID uuid.UUID) (int64, error) {
	err := s.enter("DeletePermissionsByService")
	defer s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	var n int64
	for id, p := range s.t.permissions {
		if p.ServiceID != serviceID {
			continue
		}
		for k := range s.t.rolePermissions {
			if k.permissionID == id {
				delete(s.t.rolePermissions, k)
			}
		}
		delete(s.t.permissions, id)
		n++
	}
	return n, nil
}

// --- Roles ---

func (s *Store) CreateRole(_ context.Context, in *models.CreateRoleInput) (*models.Role, error) {
	err := s.enter("CreateRole")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	now := s.now()
	r := &models.Role{
		ID:           uuid.New(),
		ServiceID:    in.ServiceID,
		Name:         in.Name,
		Description:  in.Description,
		ParentRoleID: in.ParentRoleID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.t.roles[r.ID] = r
	c := *r
	return &c, nil
}

func (s *Store) FindRoleByID(_ context.Context, id uuid.UUID) (*models.Role, error) {
	err := s.enter("FindRoleByID")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	r, ok := s.t.roles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *r
	return &c, nil
}

func (s *Store) ListRolesByService(_ context.Context, serviceID uuid.UUID) ([]*models.Role, error) {
	err := s.enter("ListRolesByService")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.rolesWhere(func(r *models.Role) bool { return r.ServiceID == serviceID }), nil
}

func (s *Store) rolesWhere(match func(*models.Role) bool) []*models.Role {
	all := sortedValues(s.t.roles, func(a, b *models.Role) bool { return a.Name < b.Name })
	out := all[:0]
	for _, r := range all {
		if match(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s *Store) UpdateRole(_ context.Context, id uuid.UUID, in *models.UpdateRoleInput) (*models.Role, error) {
	err := s.enter("UpdateRole")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	r, ok := s.t.roles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if in.Name != nil {
		r.Name = *in.Name
	}
	if in.Description != nil {
		r.Description = in.Description
	}
	switch {
	case in.ClearParent:
		r.ParentRoleID = nil
	case in.ParentRoleID != nil:
		parent := *in.ParentRoleID
		r.ParentRoleID = &parent
	}
	r.UpdatedAt = s.now()
	c := *r
	return &c, nil
}

func (s *Store) DeleteRole(_ context.Context, id uuid.UUID) error {
	err := s.enter("DeleteRole")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	s.dropRoleJoins(id)
	if _, ok := s.t.roles[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.t.roles, id)
	return nil
}

func (s *Store) dropRoleJoins(roleID uuid.UUID) {
	for k := range s.t.rolePermissions {
		if k.roleID == roleID {
			delete(s.t.rolePermissions, k)
		}
	}
	for k := range s.t.userTenantRoles {
		if k.roleID == roleID {
			delete(s.t.userTenantRoles, k)
		}
	}
}

// LockRoleHierarchy is a no-op: the store has no transaction to scope a lock to.
func (s *Store) LockRoleHierarchy(context.Context, uuid.UUID) error {
	err := s.enter("LockRoleHierarchy")
	defer s.mu.Unlock()
	return err
}

func (s *Store) ClearParentRoleReferenceByID(_ context.Context, roleID uuid.UUID) (int64, error) {
	err := s.enter("ClearParentRoleReferenceByID")
	defer s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	var n int64
	for _, r := range s.t.roles {
		if r.ParentRoleID != nil && *r.ParentRoleID == roleID {
			r.ParentRoleID = nil
			n++
		}
	}
	return n, nil
}

func (s *Store) ClearParentRoleReferences(_ context.Context, serviceID uuid.UUID) (int64, error) {
	err := s.enter("ClearParentRoleReferences")
	defer s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	var n int64
	for _, r := range s.t.roles {
		if r.ServiceID == serviceID && r.ParentRoleID != nil {
			r.ParentRoleID = nil
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteRolesByService(_ context.Context, serviceID uuid.UUID) (int64, error) {
	err := s.enter("DeleteRolesByService")
	defer s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	var n int64
	for id, r := range s.t.roles {
		if r.ServiceID != serviceID {
			continue
		}
		s.dropRoleJoins(id)
		delete(s.t.roles, id)
		n++
	}
	return n, nil
}

// --- Role permissions ---

func (s *Store) AssignPermissionToRole(_ context.Context, roleID, permissionID uuid.UUID) error {
	err := s.enter("AssignPermissionToRole")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	s.t.rolePermissions[rolePermission{roleID: roleID, permissionID: permissionID}] = struct{}{}
	return nil
}

func (s *Store) RemovePermissionFromRole(_ context.Context, roleID, permissionID uuid.UUID) error {
	err := s.enter("RemovePermissionFromRole")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	k := rolePermission{roleID: roleID, permissionID: permissionID}
	if _, ok := s.t.rolePermissions[k]; !ok {
		return store.ErrNotFound
	}
	delete(s.t.rolePermissions, k)
	return nil
}

func (s *Store) FindRolePermissions(_ context.Context, roleID uuid.UUID) ([]*models.Permission, error) {
	err := s.enter("FindRolePermissions")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var out []*models.Permission
	for k := range s.t.rolePermissions {
		if k.roleID != roleID {
			continue
		}
		if p, ok := s.t.permissions[k.permissionID]; ok {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// --- User role assignments ---

func (s *Store) AssignRolesToUser(_ context.Context, tenantUserID uuid.UUID, roleIDs []uuid.UUID, grantedBy *uuid.UUID) error {
	err := s.enter("AssignRolesToUser")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	for _, roleID := range roleIDs {
		k := roleAssignment{tenantUserID: tenantUserID, roleID: roleID}
		if _, exists := s.t.userTenantRoles[k]; exists {
			continue
		}
		s.t.userTenantRoles[k] = &models.UserRoleAssignment{
			TenantUserID: tenantUserID,
			RoleID:       roleID,
			GrantedBy:    grantedBy,
			GrantedAt:    s.now(),
		}
	}
	return nil
}

func (s *Store) RemoveRoleFromUser(_ context.Context, tenantUserID, roleID uuid.UUID) error {
	err := s.enter("RemoveRoleFromUser")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	k := roleAssignment{tenantUserID: tenantUserID, roleID: roleID}
	if _, ok := s.t.userTenantRoles[k]; !ok {
		return store.ErrNotFound
	}
	delete(s.t.userTenantRoles, k)
	return nil
}

func (s *Store) FindTenantUserID(_ context.Context, userID, tenantID uuid.UUID) (uuid.UUID, error) {
	err := s.enter("FindTenantUserID")
	defer s.mu.Unlock()
	if err != nil {
		return uuid.Nil, err
	}
	for _, tu := range s.t.tenantUsers {
		if tu.UserID == userID && tu.TenantID == tenantID {
			return tu.ID, nil
		}
	}
	return uuid.Nil, store.ErrNotFound
}

func (s *Store) DeleteUserRolesByTenantUser(_ context.Context, tenantUserID uuid.UUID) (int64, error) {
	err := s.enter("DeleteUserRolesByTenantUser")
	defer s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	var n int64
	for k := range s.t.userTenantRoles {
		if k.tenantUserID == tenantUserID {
			delete(s.t.userTenantRoles, k)
			n++
		}
	}
	return n, nil
}

func (s *Store) FindUserRolesInTenant(_ context.Context, userID, tenantID uuid.UUID, serviceID *uuid.UUID) ([]*models.Role, error) {
	err := s.enter("FindUserRolesInTenant")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	assigned := map[uuid.UUID]bool{}
	for k := range s.t.userTenantRoles {
		tu, ok := s.t.tenantUsers[k.tenantUserID]
		if ok && tu.UserID == userID && tu.TenantID == tenantID {
			assigned[k.roleID] = true
		}
	}
	return s.rolesWhere(func(r *models.Role) bool {
		return assigned[r.ID] && (serviceID == nil || r.ServiceID == *serviceID)
	}), nil
}
