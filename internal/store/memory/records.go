package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/authgraph/pkg/models"
)

// --- Seeding ---

// Seed inserts rows that other components own. Each value must be one of the
// record types from pkg/models; zero IDs are filled in.
func (s *Store) Seed(records ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		switch r := rec.(type) {
		case models.Webhook:
			r.ID = idOrNew(r.ID)
			s.t.webhooks[r.ID] = &r
		case models.Invitation:
			r.ID = idOrNew(r.ID)
			s.t.invitations[r.ID] = &r
		case models.LoginEvent:
			r.ID = idOrNew(r.ID)
			s.t.loginEvents[r.ID] = &r
		case models.SecurityAlert:
			r.ID = idOrNew(r.ID)
			s.t.securityAlerts[r.ID] = &r
		case models.Action:
			r.ID = idOrNew(r.ID)
			s.t.actions[r.ID] = &r
		case models.ServiceBranding:
			r.ID = idOrNew(r.ID)
			s.t.branding[r.ID] = &r
		case models.Session:
			r.ID = idOrNew(r.ID)
			s.t.sessions[r.ID] = &r
		case models.PasswordResetToken:
			r.ID = idOrNew(r.ID)
			s.t.passwordResets[r.ID] = &r
		case models.LinkedIdentity:
			r.ID = idOrNew(r.ID)
			s.t.linkedIdentities[r.ID] = &r
		case models.AuditLog:
			r.ID = idOrNew(r.ID)
			s.t.auditLogs[r.ID] = &r
		default:
			panic("memory: cannot seed record of this type")
		}
	}
}

func idOrNew(id uuid.UUID) uuid.UUID {
	if id == uuid.Nil {
		return uuid.New()
	}
	return id
}

// LoginEvents returns copies of all login events.
func (s *Store) LoginEvents() []*models.LoginEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.t.loginEvents, func(a, b *models.LoginEvent) bool { return a.ID.String() < b.ID.String() })
}

// SecurityAlerts returns copies of all security alerts.
func (s *Store) SecurityAlerts() []*models.SecurityAlert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.t.securityAlerts, func(a, b *models.SecurityAlert) bool { return a.ID.String() < b.ID.String() })
}

// AuditLogs returns copies of all audit log rows.
func (s *Store) AuditLogs() []*models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.t.auditLogs, func(a, b *models.AuditLog) bool { return a.ID.String() < b.ID.String() })
}

// --- User-owned rows ---

func deleteWhere[V any](m map[uuid.UUID]*V, match func(*V) bool) int64 {
	var n int64
	for id, v := range m {
		if match(v) {
			delete(m, id)
			n++
		}
	}
	return n
}

func (s *Store) DeleteSessionsByUser(_ context.Context, userID uuid.UUID) (int64, error) {
	err := s.enter("DeleteSessionsByUser")
	defer s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return deleteWhere(s.t.sessions, func(r *models.Session) bool { return r.UserID == userID }), nil
}

func (s *Store) DeletePasswordResetsByUser(_ context.Context, userID uuid.UUID) (int64, error) {
	err := s.enter("DeletePasswordResetsByUser")
	defer s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return deleteWhere(s.t.passwordResets, func(r *models.PasswordResetToken) bool { return r.UserID == userID }), nil
}

func (s *Store) DeleteLinkedIdentitiesByUser(_ context.Context, userID uuid.UUID) (int64, error) {
	err := s.enter("DeleteLinkedIdentitiesByUser")
	defer s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return deleteWhere(s.t.linkedIdentities, func(r *models.LinkedIdentity) bool { return r.UserID == userID }), nil
}

// --- Audit trail ---

func pointsTo(ref *uuid.UUID, id uuid.UUID) bool {
	return ref != nil && *ref == id
}

func (s *Store) NullifyLoginEventUser(_ context.Context, userID uuid.UUID) (int64, error) {
	err := s.enter("NullifyLoginEventUser")
	defer s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	var n int64
	for _, e := range s.t.loginEvents {
		if pointsTo(e.UserID, userID) {
			e.UserID = nil
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteLoginEventsByTenant(_ context.Context, tenantID uuid.UUID) (int64, error) {
	err := s.enter("DeleteLoginEventsByTenant")
	defer s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return deleteWhere(s.t.loginEvents, func(r *models.LoginEvent) bool { return pointsTo(r.TenantID, tenantID) }), nil
}

func (s *Store) NullifySecurityAlertUser(_ context.Context, userID uuid.UUID) (int64, error) {
	err := s.enter("NullifySecurityAlertUser")
	defer s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	var n int64
	for _, a := range s.t.securityAlerts {
		if pointsTo(a.UserID, userID) {
			a.UserID = nil
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteSecurityAlertsByTenant(_ context.Context, tenantID uuid.UUID) (int64, error) {
	err := s.enter("DeleteSecurityAlertsByTenant")
	defer s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return deleteWhere(s.t.securityAlerts, func(r *models.SecurityAlert) bool { return pointsTo(r.TenantID, tenantID) }), nil
}

func (s *Store) NullifyAuditActor(_ context.Context, userID uuid.UUID) (int64, error) {
	err := s.enter("NullifyAuditActor")
	defer s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	var n int64
	for _, l := range s.t.auditLogs {
		if pointsTo(l.ActorID, userID) {
			l.ActorID = nil
			n++
		}
	}
	return n, nil
}

// --- Tenant-owned rows ---

func (s *Store) DeleteWebhooksByTenant(_ context.Context, tenantID uuid.UUID) (int64, error) {
	err := s.enter("DeleteWebhooksByTenant")
	defer s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return deleteWhere(s.t.webhooks, func(r *models.Webhook) bool { return r.TenantID == tenantID }), nil
}

func (s *Store) DeleteInvitationsByTenant(_ context.Context, tenantID uuid.UUID) (int64, error) {
	err := s.enter("DeleteInvitationsByTenant")
	defer s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return deleteWhere(s.t.invitations, func(r *models.Invitation) bool { return r.TenantID == tenantID }), nil
}

func (s *Store) DeleteActionsByTenant(_ context.Context, tenantID uuid.UUID) (int64, error) {
	err := s.enter("DeleteActionsByTenant")
	defer s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return deleteWhere(s.t.actions, func(r *models.Action) bool { return r.TenantID == tenantID }), nil
}

// --- Service-owned rows ---

func (s *Store) DeleteActionsByService(_ context.Context, serviceID uuid.UUID) (int64, error) {
	err := s.enter("DeleteActionsByService")
	defer s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return deleteWhere(s.t.actions, func(r *models.Action) bool { return pointsTo(r.ServiceID, serviceID) }), nil
}

func (s *Store) DeleteBrandingByService(_ context.Context, serviceID uuid.UUID) (int64, error) {
	err := s.enter("DeleteBrandingByService")
	defer s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return deleteWhere(s.t.branding, func(r *models.ServiceBranding) bool { return r.ServiceID == serviceID }), nil
}
