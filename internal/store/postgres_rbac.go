package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kiranshivaraju/authgraph/pkg/models"
)

// --- Permissions ---

const permissionColumns = `id, service_id, code, name, description`

func scanPermission(row pgx.Row) (*models.Permission, error) {
	var p models.Permission
	if err := row.Scan(&p.ID, &p.ServiceID, &p.Code, &p.Name, &p.Description); err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPermissions(rows pgx.Rows) ([]*models.Permission, error) {
	var perms []*models.Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (s *PostgresStore) CreatePermission(ctx context.Context, in *models.CreatePermissionInput) (*models.Permission, error) {
	p, err := scanPermission(s.db.QueryRow(ctx,
		`INSERT INTO permissions (id, service_id, code, name, description)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+permissionColumns,
		uuid.New(), in.ServiceID, in.Code, in.Name, in.Description))
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("create permission: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) FindPermissionByID(ctx context.Context, id uuid.UUID) (*models.Permission, error) {
	p, err := scanPermission(s.db.QueryRow(ctx,
		`SELECT `+permissionColumns+` FROM permissions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get permission: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListPermissionsByService(ctx context.Context, serviceID uuid.UUID) ([]*models.Permission, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+permissionColumns+` FROM permissions WHERE service_id = $1 ORDER BY code`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	defer rows.Close()
	return collectPermissions(rows)
}

func (s *PostgresStore) DeletePermission(ctx context.Context, id uuid.UUID) error {
	if _, err := s.execCount(ctx, "delete permission grants",
		`DELETE FROM role_permissions WHERE permission_id = $1`, id); err != nil {
		return err
	}
	n, err := s.execCount(ctx, "delete permission", `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeletePermissionsByService(ctx context.Context, serviceID uuid.UUID) (int64, error) {
	if _, err := s.execCount(ctx, "delete permission grants by service",
		`DELETE FROM role_permissions
		 WHERE permission_id IN (SELECT id FROM permissions WHERE service_id = $1)`, serviceID); err != nil {
		return 0, err
	}
	return s.execCount(ctx, "delete permissions by service",
		`DELETE FROM permissions WHERE service_id = $1`, serviceID)
}

// --- Roles ---

const roleColumns = `id, service_id, name, description, parent_role_id, created_at, updated_at`

func scanRole(row pgx.Row) (*models.Role, error) {
	var r models.Role
	if err := row.Scan(&r.ID, &r.ServiceID, &r.Name, &r.Description, &r.ParentRoleID,
		&r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func collectRoles(rows pgx.Rows) ([]*models.Role, error) {
	var roles []*models.Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func (s *PostgresStore) CreateRole(ctx context.Context, in *models.CreateRoleInput) (*models.Role, error) {
	r, err := scanRole(s.db.QueryRow(ctx,
		`INSERT INTO roles (id, service_id, name, description, parent_role_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+roleColumns,
		uuid.New(), in.ServiceID, in.Name, in.Description, in.ParentRoleID))
	if err != nil {
		return nil, fmt.Errorf("create role: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) FindRoleByID(ctx context.Context, id uuid.UUID) (*models.Role, error) {
	r, err := scanRole(s.db.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get role: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListRolesByService(ctx context.Context, serviceID uuid.UUID) ([]*models.Role, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE service_id = $1 ORDER BY name`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()
	return collectRoles(rows)
}

func (s *PostgresStore) UpdateRole(ctx context.Context, id uuid.UUID, in *models.UpdateRoleInput) (*models.Role, error) {
	r, err := scanRole(s.db.QueryRow(ctx,
		`UPDATE roles SET
		   name = COALESCE($2, name),
		   description = COALESCE($3, description),
		   parent_role_id = CASE WHEN $5::boolean THEN NULL ELSE COALESCE($4, parent_role_id) END,
		   updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+roleColumns,
		id, in.Name, in.Description, in.ParentRoleID, in.ClearParent))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) DeleteRole(ctx context.Context, id uuid.UUID) error {
	if _, err := s.execCount(ctx, "delete role grants",
		`DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
		return err
	}
	if _, err := s.execCount(ctx, "delete role assignments",
		`DELETE FROM user_tenant_roles WHERE role_id = $1`, id); err != nil {
		return err
	}
	n, err := s.execCount(ctx, "delete role", `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) LockRoleHierarchy(ctx context.Context, serviceID uuid.UUID) error {
	if !s.inTx {
		return nil
	}
	if _, err := s.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, serviceID.String()); err != nil {
		return fmt.Errorf("lock role hierarchy: %w", err)
	}
	return nil
}

func (s *PostgresStore) ClearParentRoleReferenceByID(ctx context.Context, roleID uuid.UUID) (int64, error) {
	return s.execCount(ctx, "clear parent role reference",
		`UPDATE roles SET parent_role_id = NULL, updated_at = NOW() WHERE parent_role_id = $1`, roleID)
}

func (s *PostgresStore) ClearParentRoleReferences(ctx context.Context, serviceID uuid.UUID) (int64, error) {
	return s.execCount(ctx, "clear parent role references",
		`UPDATE roles SET parent_role_id = NULL, updated_at = NOW()
		 WHERE service_id = $1 AND parent_role_id IS NOT NULL`, serviceID)
}

func (s *PostgresStore) DeleteRolesByService(ctx context.Context, serviceID uuid.UUID) (int64, error) {
	if _, err := s.execCount(ctx, "delete role assignments by service",
		`DELETE FROM user_tenant_roles
		 WHERE role_id IN (SELECT id FROM roles WHERE service_id = $1)`, serviceID); err != nil {
		return 0, err
	}
	if _, err := s.execCount(ctx, "delete role grants by service",
		`DELETE FROM role_permissions
		 WHERE role_id IN (SELECT id FROM roles WHERE service_id = $1)`, serviceID); err != nil {
		return 0, err
	}
	return s.execCount(ctx, "delete roles by service", `DELETE FROM roles WHERE service_id = $1`, serviceID)
}

// --- Role permissions ---

func (s *PostgresStore) AssignPermissionToRole(ctx context.Context, roleID, permissionID uuid.UUID) error {
	_, err := s.execCount(ctx, "assign permission to role",
		`INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)
		 ON CONFLICT (role_id, permission_id) DO NOTHING`, roleID, permissionID)
	return err
}

func (s *PostgresStore) RemovePermissionFromRole(ctx context.Context, roleID, permissionID uuid.UUID) error {
	n, err := s.execCount(ctx, "remove permission from role",
		`DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindRolePermissions(ctx context.Context, roleID uuid.UUID) ([]*models.Permission, error) {
	rows, err := s.db.Query(ctx,
		`SELECT p.id, p.service_id, p.code, p.name, p.description
		 FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 WHERE rp.role_id = $1
		 ORDER BY p.code`, roleID)
	if err != nil {
		return nil, fmt.Errorf("find role permissions: %w", err)
	}
	defer rows.Close()
	return collectPermissions(rows)
}

// --- User role assignments ---

func (s *PostgresStore) AssignRolesToUser(ctx context.Context, tenantUserID uuid.UUID, roleIDs []uuid.UUID, grantedBy *uuid.UUID) error {
	_, err := s.execCount(ctx, "assign roles to user",
		`INSERT INTO user_tenant_roles (id, tenant_user_id, role_id, granted_by)
		 SELECT gen_random_uuid(), $1, r, $3 FROM unnest($2::uuid[]) AS r
		 ON CONFLICT (tenant_user_id, role_id) DO NOTHING`,
		tenantUserID, roleIDs, grantedBy)
	return err
}

func (s *PostgresStore) RemoveRoleFromUser(ctx context.Context, tenantUserID, roleID uuid.UUID) error {
	n, err := s.execCount(ctx, "remove role from user",
		`DELETE FROM user_tenant_roles WHERE tenant_user_id = $1 AND role_id = $2`, tenantUserID, roleID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindTenantUserID(ctx context.Context, userID, tenantID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx,
		`SELECT id FROM tenant_users WHERE user_id = $1 AND tenant_id = $2`, userID, tenantID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("find tenant user: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) DeleteUserRolesByTenantUser(ctx context.Context, tenantUserID uuid.UUID) (int64, error) {
	return s.execCount(ctx, "delete user roles by tenant user",
		`DELETE FROM user_tenant_roles WHERE tenant_user_id = $1`, tenantUserID)
}

func (s *PostgresStore) FindUserRolesInTenant(ctx context.Context, userID, tenantID uuid.UUID, serviceID *uuid.UUID) ([]*models.Role, error) {
	rows, err := s.db.Query(ctx,
		`SELECT r.id, r.service_id, r.name, r.description, r.parent_role_id, r.created_at, r.updated_at
		 FROM roles r
		 JOIN user_tenant_roles utr ON utr.role_id = r.id
		 JOIN tenant_users tu ON tu.id = utr.tenant_user_id
		 WHERE tu.user_id = $1 AND tu.tenant_id = $2
		   AND ($3::uuid IS NULL OR r.service_id = $3)
		 ORDER BY r.name`, userID, tenantID, serviceID)
	if err != nil {
		return nil, fmt.Errorf("find user roles in tenant: %w", err)
	}
	defer rows.Close()
	return collectRoles(rows)
}
