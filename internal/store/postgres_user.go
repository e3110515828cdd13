package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kiranshivaraju/authgraph/pkg/models"
)

// --- Users ---

const userColumns = `id, keycloak_id, email, display_name, avatar_url, mfa_enabled, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.KeycloakID, &u.Email, &u.DisplayName, &u.AvatarURL, &u.MFAEnabled,
		&u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, keycloakID string, in *models.CreateUserInput) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx,
		`INSERT INTO users (id, keycloak_id, email, display_name, avatar_url)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+userColumns,
		uuid.New(), keycloakID, in.Email, in.DisplayName, in.AvatarURL))
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) FindUserByKeycloakID(ctx context.Context, keycloakID string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE keycloak_id = $1`, keycloakID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by keycloak id: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context, offset, limit int) ([]*models.User, int, error) {
	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func (s *PostgresStore) UpdateUser(ctx context.Context, id uuid.UUID, in *models.UpdateUserInput) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx,
		`UPDATE users SET
		   display_name = COALESCE($2, display_name),
		   avatar_url = COALESCE($3, avatar_url),
		   mfa_enabled = COALESCE($4, mfa_enabled),
		   updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, in.DisplayName, in.AvatarURL, in.MFAEnabled))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, id uuid.UUID) (int64, error) {
	return s.execCount(ctx, "delete user", `DELETE FROM users WHERE id = $1`, id)
}

// --- Tenant memberships ---

const tenantUserColumns = `id, tenant_id, user_id, role_in_tenant, joined_at`

func scanTenantUser(row pgx.Row) (*models.TenantUser, error) {
	var tu models.TenantUser
	if err := row.Scan(&tu.ID, &tu.TenantID, &tu.UserID, &tu.RoleInTenant, &tu.JoinedAt); err != nil {
		return nil, err
	}
	return &tu, nil
}

func (s *PostgresStore) AddToTenant(ctx context.Context, in *models.AddUserToTenantInput) (*models.TenantUser, error) {
	tu, err := scanTenantUser(s.db.QueryRow(ctx,
		`INSERT INTO tenant_users (id, tenant_id, user_id, role_in_tenant)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+tenantUserColumns,
		uuid.New(), in.TenantID, in.UserID, in.RoleInTenant))
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("add user to tenant: %w", err)
	}
	return tu, nil
}

func (s *PostgresStore) UpdateRoleInTenant(ctx context.Context, userID, tenantID uuid.UUID, role string) (*models.TenantUser, error) {
	tu, err := scanTenantUser(s.db.QueryRow(ctx,
		`UPDATE tenant_users SET role_in_tenant = $3
		 WHERE user_id = $1 AND tenant_id = $2
		 RETURNING `+tenantUserColumns,
		userID, tenantID, role))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update role in tenant: %w", err)
	}
	return tu, nil
}

func (s *PostgresStore) RemoveFromTenant(ctx context.Context, userID, tenantID uuid.UUID) error {
	n, err := s.execCount(ctx, "remove user from tenant",
		`DELETE FROM tenant_users WHERE user_id = $1 AND tenant_id = $2`, userID, tenantID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListTenantUserIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return s.queryIDs(ctx, "list tenant user ids",
		`SELECT id FROM tenant_users WHERE user_id = $1 ORDER BY joined_at`, userID)
}

func (s *PostgresStore) ListTenantUserIDsByTenant(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	return s.queryIDs(ctx, "list tenant user ids by tenant",
		`SELECT id FROM tenant_users WHERE tenant_id = $1 ORDER BY joined_at`, tenantID)
}

func (s *PostgresStore) DeleteAllTenantMemberships(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.execCount(ctx, "delete tenant memberships", `DELETE FROM tenant_users WHERE user_id = $1`, userID)
}

func (s *PostgresStore) DeleteTenantMembershipsByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return s.execCount(ctx, "delete tenant memberships by tenant",
		`DELETE FROM tenant_users WHERE tenant_id = $1`, tenantID)
}

func (s *PostgresStore) FindUserTenants(ctx context.Context, userID uuid.UUID) ([]*models.TenantUser, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+tenantUserColumns+` FROM tenant_users WHERE user_id = $1 ORDER BY joined_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("find user tenants: %w", err)
	}
	defer rows.Close()

	var memberships []*models.TenantUser
	for rows.Next() {
		tu, err := scanTenantUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant user: %w", err)
		}
		memberships = append(memberships, tu)
	}
	return memberships, rows.Err()
}

func (s *PostgresStore) FindUserTenantsWithTenant(ctx context.Context, userID uuid.UUID) ([]*models.TenantUserWithTenant, error) {
	rows, err := s.db.Query(ctx,
		`SELECT tu.id, tu.tenant_id, tu.user_id, tu.role_in_tenant, tu.joined_at,
		        t.id, t.name, t.slug, t.logo_url, t.status
		 FROM tenant_users tu
		 JOIN tenants t ON t.id = tu.tenant_id
		 WHERE tu.user_id = $1
		 ORDER BY tu.joined_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("find user tenants with tenant: %w", err)
	}
	defer rows.Close()

	var memberships []*models.TenantUserWithTenant
	for rows.Next() {
		var m models.TenantUserWithTenant
		if err := rows.Scan(&m.ID, &m.TenantID, &m.UserID, &m.RoleInTenant, &m.JoinedAt,
			&m.Tenant.ID, &m.Tenant.Name, &m.Tenant.Slug, &m.Tenant.LogoURL, &m.Tenant.Status); err != nil {
			return nil, fmt.Errorf("scan tenant user with tenant: %w", err)
		}
		memberships = append(memberships, &m)
	}
	return memberships, rows.Err()
}

func (s *PostgresStore) queryIDs(ctx context.Context, op, sql string, args ...any) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
