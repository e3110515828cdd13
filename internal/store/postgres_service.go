package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kiranshivaraju/authgraph/pkg/models"
)

// --- Services ---

const serviceColumns = `id, tenant_id, name, base_url, redirect_uris, logout_uris, status, created_at, updated_at`

func scanService(row pgx.Row) (*models.Service, error) {
	var svc models.Service
	err := row.Scan(&svc.ID, &svc.TenantID, &svc.Name, &svc.BaseURL, &svc.RedirectURIs,
		&svc.LogoutURIs, &svc.Status, &svc.CreatedAt, &svc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

func collectServices(rows pgx.Rows) ([]*models.Service, error) {
	var services []*models.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

func (s *PostgresStore) CreateService(ctx context.Context, in *models.CreateServiceInput) (*models.Service, error) {
	redirects := in.RedirectURIs
	if redirects == nil {
		redirects = []string{}
	}
	logouts := in.LogoutURIs
	if logouts == nil {
		logouts = []string{}
	}
	svc, err := scanService(s.db.QueryRow(ctx,
		`INSERT INTO services (id, tenant_id, name, base_url, redirect_uris, logout_uris, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+serviceColumns,
		uuid.New(), in.TenantID, in.Name, in.BaseURL, redirects, logouts, models.ServiceStatusActive))
	if err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}
	return svc, nil
}

func (s *PostgresStore) FindServiceByID(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	svc, err := scanService(s.db.QueryRow(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	return svc, nil
}

func (s *PostgresStore) ListServices(ctx context.Context, tenantID *uuid.UUID, offset, limit int) ([]*models.Service, int, error) {
	var total int
	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM services WHERE ($1::uuid IS NULL OR tenant_id = $1)`, tenantID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count services: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+serviceColumns+` FROM services
		 WHERE ($1::uuid IS NULL OR tenant_id = $1)
		 ORDER BY created_at DESC OFFSET $2 LIMIT $3`,
		tenantID, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	services, err := collectServices(rows)
	if err != nil {
		return nil, 0, err
	}
	return services, total, nil
}

func (s *PostgresStore) ListServicesByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.Service, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE tenant_id = $1 ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list services by tenant: %w", err)
	}
	defer rows.Close()
	return collectServices(rows)
}

func (s *PostgresStore) UpdateService(ctx context.Context, id uuid.UUID, in *models.UpdateServiceInput) (*models.Service, error) {
	svc, err := scanService(s.db.QueryRow(ctx,
		`UPDATE services SET
		   name = COALESCE($2, name),
		   base_url = COALESCE($3, base_url),
		   redirect_uris = COALESCE($4, redirect_uris),
		   logout_uris = COALESCE($5, logout_uris),
		   status = COALESCE($6, status),
		   updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+serviceColumns,
		id, in.Name, in.BaseURL, in.RedirectURIs, in.LogoutURIs, in.Status))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update service: %w", err)
	}
	return svc, nil
}

func (s *PostgresStore) DeleteService(ctx context.Context, id uuid.UUID) (int64, error) {
	return s.execCount(ctx, "delete service", `DELETE FROM services WHERE id = $1`, id)
}

// --- Clients ---

const clientColumns = `id, service_id, client_id, name, secret_hash, created_at`

func scanClient(row pgx.Row) (*models.Client, error) {
	var c models.Client
	if err := row.Scan(&c.ID, &c.ServiceID, &c.ClientID, &c.Name, &c.SecretHash, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) CreateClient(ctx context.Context, serviceID uuid.UUID, clientID, secretHash string, name *string) (*models.Client, error) {
	c, err := scanClient(s.db.QueryRow(ctx,
		`INSERT INTO clients (id, service_id, client_id, name, secret_hash)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+clientColumns,
		uuid.New(), serviceID, clientID, name, secretHash))
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("create client: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) FindClientByClientID(ctx context.Context, clientID string) (*models.Client, error) {
	c, err := scanClient(s.db.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE client_id = $1`, clientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListClients(ctx context.Context, serviceID uuid.UUID) ([]*models.Client, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE service_id = $1 ORDER BY created_at`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var clients []*models.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (s *PostgresStore) UpdateClientSecretHash(ctx context.Context, clientID, secretHash string) error {
	n, err := s.execCount(ctx, "update client secret",
		`UPDATE clients SET secret_hash = $2 WHERE client_id = $1`, clientID, secretHash)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteClient(ctx context.Context, serviceID uuid.UUID, clientID string) error {
	n, err := s.execCount(ctx, "delete client",
		`DELETE FROM clients WHERE service_id = $1 AND client_id = $2`, serviceID, clientID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteClientsByService(ctx context.Context, serviceID uuid.UUID) (int64, error) {
	return s.execCount(ctx, "delete clients by service",
		`DELETE FROM clients WHERE service_id = $1`, serviceID)
}
