package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/authgraph/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	DefaultUserRolesTTL = 300 * time.Second
	DefaultConfigTTL    = 600 * time.Second
)

var cacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "authgraph",
	Subsystem: "cache",
	Name:      "errors_total",
	Help:      "Cache operations that failed and were ignored, by operation.",
}, []string{"op"})

// Manager is the typed cache used by the service layer. Every method is
// best-effort: failures are logged and reported as a miss or a no-op, so a
// Redis outage degrades to reading the database.
type Manager struct {
	cache     Cache
	rolesTTL  time.Duration
	configTTL time.Duration
	logger    *slog.Logger
}

// NewManager wraps c. Zero TTLs fall back to the defaults.
func NewManager(c Cache, rolesTTL, configTTL time.Duration, logger *slog.Logger) *Manager {
	if rolesTTL <= 0 {
		rolesTTL = DefaultUserRolesTTL
	}
	if configTTL <= 0 {
		configTTL = DefaultConfigTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{cache: c, rolesTTL: rolesTTL, configTTL: configTTL, logger: logger}
}

func (m *Manager) warn(op, key string, err error) {
	cacheErrors.WithLabelValues(op).Inc()
	m.logger.Warn("cache operation failed", "op", op, "key", key, "error", err)
}

func (m *Manager) getJSON(ctx context.Context, op, key string, dst any) bool {
	raw, ok, err := m.cache.Get(ctx, key)
	if err != nil {
		m.warn(op, key, err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		m.warn(op, key, err)
		return false
	}
	return true
}

func (m *Manager) setJSON(ctx context.Context, op, key string, v any, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		m.warn(op, key, err)
		return
	}
	if err := m.cache.Set(ctx, key, raw, ttl); err != nil {
		m.warn(op, key, err)
	}
}

func (m *Manager) del(ctx context.Context, op string, keys ...string) {
	if err := m.cache.Delete(ctx, keys...); err != nil {
		m.warn(op, keys[0], err)
	}
}

// --- Tenant and service config ---

func (m *Manager) GetTenantConfig(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, bool) {
	var t models.Tenant
	if !m.getJSON(ctx, "get_tenant_config", TenantConfigKey(tenantID), &t) {
		return nil, false
	}
	return &t, true
}

func (m *Manager) SetTenantConfig(ctx context.Context, t *models.Tenant) {
	m.setJSON(ctx, "set_tenant_config", TenantConfigKey(t.ID), t, m.configTTL)
}

func (m *Manager) InvalidateTenantConfig(ctx context.Context, tenantID uuid.UUID) {
	m.del(ctx, "invalidate_tenant_config", TenantConfigKey(tenantID))
}

func (m *Manager) GetServiceConfig(ctx context.Context, serviceID uuid.UUID) (*models.Service, bool) {
	var s models.Service
	if !m.getJSON(ctx, "get_service_config", ServiceConfigKey(serviceID), &s) {
		return nil, false
	}
	return &s, true
}

func (m *Manager) SetServiceConfig(ctx context.Context, s *models.Service) {
	m.setJSON(ctx, "set_service_config", ServiceConfigKey(s.ID), s, m.configTTL)
}

func (m *Manager) InvalidateServiceConfig(ctx context.Context, serviceID uuid.UUID) {
	m.del(ctx, "invalidate_service_config", ServiceConfigKey(serviceID))
}

// --- User roles ---

type rolesEntry struct {
	Version int64                     `json:"version"`
	Roles   *models.UserRolesInTenant `json:"roles"`
}

// RolesVersion returns the current role-graph version, or -1 when it cannot
// be read. An entry is only written for a non-negative version.
func (m *Manager) RolesVersion(ctx context.Context) int64 {
	raw, ok, err := m.cache.Get(ctx, RolesVersionKey)
	if err != nil {
		m.warn("roles_version", RolesVersionKey, err)
		return -1
	}
	if !ok {
		return 0
	}
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		m.warn("roles_version", RolesVersionKey, err)
		return -1
	}
	return v
}

func (m *Manager) getRoles(ctx context.Context, op, key string) (*models.UserRolesInTenant, int64, bool) {
	version := m.RolesVersion(ctx)
	if version < 0 {
		return nil, version, false
	}
	var e rolesEntry
	if !m.getJSON(ctx, op, key, &e) {
		return nil, version, false
	}
	if e.Version != version || e.Roles == nil {
		return nil, version, false
	}
	return e.Roles, version, true
}

func (m *Manager) setRoles(ctx context.Context, op, key string, version int64, roles *models.UserRolesInTenant) {
	if version < 0 {
		return
	}
	m.setJSON(ctx, op, key, rolesEntry{Version: version, Roles: roles}, m.rolesTTL)
}

// GetUserRoles returns the cached roles of a user in a tenant together with
// the role-graph version observed. An entry computed at another version is a
// miss. The version should be passed to SetUserRoles after a recomputation.
func (m *Manager) GetUserRoles(ctx context.Context, userID, tenantID uuid.UUID) (*models.UserRolesInTenant, int64, bool) {
	return m.getRoles(ctx, "get_user_roles", UserRolesKey(userID, tenantID))
}

// SetUserRoles caches roles computed while the role graph was at version.
func (m *Manager) SetUserRoles(ctx context.Context, version int64, roles *models.UserRolesInTenant) {
	m.setRoles(ctx, "set_user_roles", UserRolesKey(roles.UserID, roles.TenantID), version, roles)
}

// GetUserRolesForService is GetUserRoles for the view restricted to one
// service. Both views share the role-graph version.
func (m *Manager) GetUserRolesForService(ctx context.Context, userID, tenantID, serviceID uuid.UUID) (*models.UserRolesInTenant, int64, bool) {
	return m.getRoles(ctx, "get_user_roles_for_service", UserServiceRolesKey(userID, tenantID, serviceID))
}

func (m *Manager) SetUserRolesForService(ctx context.Context, version int64, serviceID uuid.UUID, roles *models.UserRolesInTenant) {
	m.setRoles(ctx, "set_user_roles_for_service", UserServiceRolesKey(roles.UserID, roles.TenantID, serviceID), version, roles)
}

// InvalidateAllUserRoles bumps the role-graph version, which turns every
// cached role entry into a miss.
func (m *Manager) InvalidateAllUserRoles(ctx context.Context) {
	if _, err := m.cache.Incr(ctx, RolesVersionKey); err != nil {
		m.warn("invalidate_all_user_roles", RolesVersionKey, err)
	}
}

// InvalidateUserRolesForTenant drops the cached roles of one membership, the
// service-scoped views included.
func (m *Manager) InvalidateUserRolesForTenant(ctx context.Context, userID, tenantID uuid.UUID) {
	m.del(ctx, "invalidate_user_roles", UserRolesKey(userID, tenantID))
	pattern := UserServiceRolesPattern(userID, tenantID)
	if _, err := m.cache.DeletePattern(ctx, pattern); err != nil {
		m.warn("invalidate_user_roles", pattern, err)
	}
}
