// Package memory is an in-memory implementation of every store repository.
// It mirrors the Postgres store's semantics (uniqueness, join-row cleanup,
// affected-row counts) and adds hooks for tests: snapshot/restore to emulate
// transactions, per-method failure injection and a call log.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/authgraph/internal/store"
	"github.com/kiranshivaraju/authgraph/pkg/models"
)

type rolePermission struct {
	roleID       uuid.UUID
	permissionID uuid.UUID
}

type roleAssignment struct {
	tenantUserID uuid.UUID
	roleID       uuid.UUID
}

type tables struct {
	tenants          map[uuid.UUID]*models.Tenant
	services         map[uuid.UUID]*models.Service
	clients          map[uuid.UUID]*models.Client
	permissions      map[uuid.UUID]*models.Permission
	roles            map[uuid.UUID]*models.Role
	rolePermissions  map[rolePermission]struct{}
	users            map[uuid.UUID]*models.User
	tenantUsers      map[uuid.UUID]*models.TenantUser
	userTenantRoles  map[roleAssignment]*models.UserRoleAssignment
	webhooks         map[uuid.UUID]*models.Webhook
	invitations      map[uuid.UUID]*models.Invitation
	loginEvents      map[uuid.UUID]*models.LoginEvent
	securityAlerts   map[uuid.UUID]*models.SecurityAlert
	actions          map[uuid.UUID]*models.Action
	branding         map[uuid.UUID]*models.ServiceBranding
	sessions         map[uuid.UUID]*models.Session
	passwordResets   map[uuid.UUID]*models.PasswordResetToken
	linkedIdentities map[uuid.UUID]*models.LinkedIdentity
	auditLogs        map[uuid.UUID]*models.AuditLog
}

func newTables() *tables {
	return &tables{
		tenants:          map[uuid.UUID]*models.Tenant{},
		services:         map[uuid.UUID]*models.Service{},
		clients:          map[uuid.UUID]*models.Client{},
		permissions:      map[uuid.UUID]*models.Permission{},
		roles:            map[uuid.UUID]*models.Role{},
		rolePermissions:  map[rolePermission]struct{}{},
		users:            map[uuid.UUID]*models.User{},
		tenantUsers:      map[uuid.UUID]*models.TenantUser{},
		userTenantRoles:  map[roleAssignment]*models.UserRoleAssignment{},
		webhooks:         map[uuid.UUID]*models.Webhook{},
		invitations:      map[uuid.UUID]*models.Invitation{},
		loginEvents:      map[uuid.UUID]*models.LoginEvent{},
		securityAlerts:   map[uuid.UUID]*models.SecurityAlert{},
		actions:          map[uuid.UUID]*models.Action{},
		branding:         map[uuid.UUID]*models.ServiceBranding{},
		sessions:         map[uuid.UUID]*models.Session{},
		passwordResets:   map[uuid.UUID]*models.PasswordResetToken{},
		linkedIdentities: map[uuid.UUID]*models.LinkedIdentity{},
		auditLogs:        map[uuid.UUID]*models.AuditLog{},
	}
}

func cloneMap[K comparable, V any](m map[K]*V) map[K]*V {
	out := make(map[K]*V, len(m))
	for k, v := range m {
		c := *v
		out[k] = &c
	}
	return out
}

func (t *tables) clone() *tables {
	rp := make(map[rolePermission]struct{}, len(t.rolePermissions))
	for k := range t.rolePermissions {
		rp[k] = struct{}{}
	}
	return &tables{
		tenants:          cloneMap(t.tenants),
		services:         cloneMap(t.services),
		clients:          cloneMap(t.clients),
		permissions:      cloneMap(t.permissions),
		roles:            cloneMap(t.roles),
		rolePermissions:  rp,
		users:            cloneMap(t.users),
		tenantUsers:      cloneMap(t.tenantUsers),
		userTenantRoles:  cloneMap(t.userTenantRoles),
		webhooks:         cloneMap(t.webhooks),
		invitations:      cloneMap(t.invitations),
		loginEvents:      cloneMap(t.loginEvents),
		securityAlerts:   cloneMap(t.securityAlerts),
		actions:          cloneMap(t.actions),
		branding:         cloneMap(t.branding),
		sessions:         cloneMap(t.sessions),
		passwordResets:   cloneMap(t.passwordResets),
		linkedIdentities: cloneMap(t.linkedIdentities),
		auditLogs:        cloneMap(t.auditLogs),
	}
}

// Store is safe for concurrent use. Returned entities are copies.
type Store struct {
	mu       sync.Mutex
	t        *tables
	clock    time.Time
	failures map[string]error
	calls    []string
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		t:        newTables(),
		clock:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		failures: map[string]error{},
	}
}

func (s *Store) Ping(context.Context) error { return nil }

// Repositories exposes every repository of the store.
func (s *Store) Repositories() store.Repositories {
	return store.RepositoriesOf(s)
}

// FailOn makes every later call of method return err until cleared with a nil err.
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

// Calls returns the repository methods invoked so far, in order.
func (s *Store) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// ResetCalls clears the call log.
func (s *Store) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// enter locks the store, records the call and reports an injected failure.
// Callers must defer s.mu.Unlock().
func (s *Store) enter(method string) error {
	s.mu.Lock()
	s.calls = append(s.calls, method)
	return s.failures[method]
}

func (s *Store) now() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

// --- Transactions ---

func (s *Store) snapshot() *tables {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.clone()
}

func (s *Store) restore(t *tables) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t = t
}

// UnitOfWork returns a unit of work that snapshots the store on Begin and
// restores the snapshot on Rollback. It gives atomicity but no isolation from
// concurrent writers.
func (s *Store) UnitOfWork() store.UnitOfWork {
	return &snapshotUnitOfWork{s: s}
}

type snapshotUnitOfWork struct {
	s *Store
}

func (u *snapshotUnitOfWork) Transactional() bool { return true }

func (u *snapshotUnitOfWork) Begin(ctx context.Context) (store.Tx, error) {
	if err := u.s.enter("Begin"); err != nil {
		u.s.mu.Unlock()
		return nil, err
	}
	u.s.mu.Unlock()
	return &snapshotTx{s: u.s, saved: u.s.snapshot()}, nil
}

type snapshotTx struct {
	s     *Store
	saved *tables
	done  bool
}

func (t *snapshotTx) Repositories() store.Repositories { return t.s.Repositories() }

func (t *snapshotTx) Commit(context.Context) error {
	err := t.s.enter("Commit")
	t.s.mu.Unlock()
	if err != nil {
		t.s.restore(t.saved)
		t.done = true
		return err
	}
	t.done = true
	return nil
}

func (t *snapshotTx) Rollback(context.Context) error {
	if t.done {
		return nil
	}
	t.s.restore(t.saved)
	t.done = true
	return nil
}

// --- Inspection ---

// Count returns the number of rows in a table, using the SQL table names.
func (s *Store) Count(table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch table {
	case "tenants":
		return len(s.t.tenants)
	case "services":
		return len(s.t.services)
	case "clients":
		return len(s.t.clients)
	case "permissions":
		return len(s.t.permissions)
	case "roles":
		return len(s.t.roles)
	case "role_permissions":
		return len(s.t.rolePermissions)
	case "users":
		return len(s.t.users)
	case "tenant_users":
		return len(s.t.tenantUsers)
	case "user_tenant_roles":
		return len(s.t.userTenantRoles)
	case "webhooks":
		return len(s.t.webhooks)
	case "invitations":
		return len(s.t.invitations)
	case "login_events":
		return len(s.t.loginEvents)
	case "security_alerts":
		return len(s.t.securityAlerts)
	case "actions":
		return len(s.t.actions)
	case "service_branding":
		return len(s.t.branding)
	case "sessions":
		return len(s.t.sessions)
	case "password_reset_tokens":
		return len(s.t.passwordResets)
	case "linked_identities":
		return len(s.t.linkedIdentities)
	case "audit_logs":
		return len(s.t.auditLogs)
	default:
		panic("memory: unknown table " + table)
	}
}

func sortedValues[V any](m map[uuid.UUID]*V, less func(a, b *V) bool) []*V {
	out := make([]*V, 0, len(m))
	for _, v := range m {
		c := *v
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func paginate[V any](items []*V, offset, limit int) []*V {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
