package store

import (
	"context"

	"github.com/google/uuid"
)

// Rows below are written by other components. This store only removes them,
// or detaches them from a deleted user.

// --- User-owned rows ---

func (s *PostgresStore) DeleteSessionsByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.execCount(ctx, "delete sessions", `DELETE FROM sessions WHERE user_id = $1`, userID)
}

func (s *PostgresStore) DeletePasswordResetsByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.execCount(ctx, "delete password reset tokens",
		`DELETE FROM password_reset_tokens WHERE user_id = $1`, userID)
}

func (s *PostgresStore) DeleteLinkedIdentitiesByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.execCount(ctx, "delete linked identities",
		`DELETE FROM linked_identities WHERE user_id = $1`, userID)
}

// --- Audit trail ---

func (s *PostgresStore) NullifyLoginEventUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.execCount(ctx, "nullify login event user",
		`UPDATE login_events SET user_id = NULL WHERE user_id = $1`, userID)
}

func (s *PostgresStore) DeleteLoginEventsByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return s.execCount(ctx, "delete login events", `DELETE FROM login_events WHERE tenant_id = $1`, tenantID)
}

func (s *PostgresStore) NullifySecurityAlertUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.execCount(ctx, "nullify security alert user",
		`UPDATE security_alerts SET user_id = NULL WHERE user_id = $1`, userID)
}

func (s *PostgresStore) DeleteSecurityAlertsByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return s.execCount(ctx, "delete security alerts",
		`DELETE FROM security_alerts WHERE tenant_id = $1`, tenantID)
}

func (s *PostgresStore) NullifyAuditActor(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.execCount(ctx, "nullify audit actor",
		`UPDATE audit_logs SET actor_id = NULL WHERE actor_id = $1`, userID)
}

// --- Tenant-owned rows ---

func (s *PostgresStore) DeleteWebhooksByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return s.execCount(ctx, "delete webhooks", `DELETE FROM webhooks WHERE tenant_id = $1`, tenantID)
}

func (s *PostgresStore) DeleteInvitationsByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return s.execCount(ctx, "delete invitations", `DELETE FROM invitations WHERE tenant_id = $1`, tenantID)
}

func (s *PostgresStore) DeleteActionsByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return s.execCount(ctx, "delete actions", `DELETE FROM actions WHERE tenant_id = $1`, tenantID)
}

// --- Service-owned rows ---

func (s *PostgresStore) DeleteActionsByService(ctx context.Context, serviceID uuid.UUID) (int64, error) {
	return s.execCount(ctx, "delete service actions", `DELETE FROM actions WHERE service_id = $1`, serviceID)
}

func (s *PostgresStore) DeleteBrandingByService(ctx context.Context, serviceID uuid.UUID) (int64, error) {
	return s.execCount(ctx, "delete service branding",
		`DELETE FROM service_branding WHERE service_id = $1`, serviceID)
}
