package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/authgraph/pkg/models"
)

// PostgresStore implements Store using pgx/v5. A store created by withTx
// issues every statement on that transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
	db   DBTX
	inTx bool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, db: pool}
}

func (s *PostgresStore) withTx(tx pgx.Tx) *PostgresStore {
	return &PostgresStore{pool: s.pool, db: tx, inTx: true}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// execCount runs a write and returns the number of affected rows.
func (s *PostgresStore) execCount(ctx context.Context, op, sql string, args ...any) (int64, error) {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return tag.RowsAffected(), nil
}

// --- Tenants ---

const tenantColumns = `id, name, slug, domain, logo_url, settings, status, created_at, updated_at`

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	var t models.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Domain, &t.LogoURL, &t.Settings, &t.Status,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) FindTenantByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	t, err := scanTenant(s.db.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) FindTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	t, err := scanTenant(s.db.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant by slug: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) CreateTenant(ctx context.Context, in *models.CreateTenantInput) (*models.Tenant, error) {
	settings := models.DefaultTenantSettings()
	if in.Settings != nil {
		settings = *in.Settings
	}
	t, err := scanTenant(s.db.QueryRow(ctx,
		`INSERT INTO tenants (id, name, slug, domain, logo_url, settings, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+tenantColumns,
		uuid.New(), in.Name, in.Slug, in.Domain, in.LogoURL, settings, models.TenantStatusActive))
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("create tenant: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) UpdateTenant(ctx context.Context, id uuid.UUID, in *models.UpdateTenantInput) (*models.Tenant, error) {
	t, err := scanTenant(s.db.QueryRow(ctx,
		`UPDATE tenants SET
		   name = COALESCE($2, name),
		   logo_url = COALESCE($3, logo_url),
		   settings = COALESCE($4, settings),
		   status = COALESCE($5, status),
		   updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+tenantColumns,
		id, in.Name, in.LogoURL, in.Settings, in.Status))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update tenant: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) DeleteTenant(ctx context.Context, id uuid.UUID) (int64, error) {
	return s.execCount(ctx, "delete tenant", `DELETE FROM tenants WHERE id = $1`, id)
}

func (s *PostgresStore) ListTenants(ctx context.Context, offset, limit int) ([]*models.Tenant, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants ORDER BY created_at DESC OFFSET $1 LIMIT $2`,
		offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()
	return collectTenants(rows)
}

func (s *PostgresStore) CountTenants(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM tenants`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tenants: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) SearchTenants(ctx context.Context, query string, offset, limit int) ([]*models.Tenant, int, error) {
	pattern := "%" + escapeLike(query) + "%"

	var total int
	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM tenants WHERE name ILIKE $1 OR slug ILIKE $1`, pattern,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tenant search: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants
		 WHERE name ILIKE $1 OR slug ILIKE $1
		 ORDER BY created_at DESC OFFSET $2 LIMIT $3`,
		pattern, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("search tenants: %w", err)
	}
	defer rows.Close()

	tenants, err := collectTenants(rows)
	if err != nil {
		return nil, 0, err
	}
	return tenants, total, nil
}

func collectTenants(rows pgx.Rows) ([]*models.Tenant, error) {
	var tenants []*models.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// --- Helpers ---

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
