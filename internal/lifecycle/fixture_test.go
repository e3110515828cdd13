package lifecycle_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/authgraph/internal/lifecycle"
	"github.com/kiranshivaraju/authgraph/internal/store"
	"github.com/kiranshivaraju/authgraph/internal/store/memory"
	"github.com/kiranshivaraju/authgraph/pkg/models"
	"github.com/stretchr/testify/require"
)

// fakeCache stores configs in maps and records every invalidation.
type fakeCache struct {
	mu                  sync.Mutex
	tenants             map[uuid.UUID]*models.Tenant
	services            map[uuid.UUID]*models.Service
	invalidatedTenants  []uuid.UUID
	invalidatedServices []uuid.UUID
	bumps               int
	pairs               [][2]uuid.UUID
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		tenants:  map[uuid.UUID]*models.Tenant{},
		services: map[uuid.UUID]*models.Service{},
	}
}

func (c *fakeCache) GetTenantConfig(_ context.Context, id uuid.UUID) (*models.Tenant, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tenants[id]
	if !ok {
		return nil, false
	}
	cp := *t
	return &cp, true
}

func (c *fakeCache) SetTenantConfig(_ context.Context, t *models.Tenant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *t
	c.tenants[t.ID] = &cp
}

func (c *fakeCache) InvalidateTenantConfig(_ context.Context, id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tenants, id)
	c.invalidatedTenants = append(c.invalidatedTenants, id)
}

func (c *fakeCache) GetServiceConfig(_ context.Context, id uuid.UUID) (*models.Service, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.services[id]
	if !ok {
		return nil, false
	}
	cp := *s
	return &cp, true
}

func (c *fakeCache) SetServiceConfig(_ context.Context, s *models.Service) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *s
	c.services[s.ID] = &cp
}

func (c *fakeCache) InvalidateServiceConfig(_ context.Context, id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.services, id)
	c.invalidatedServices = append(c.invalidatedServices, id)
}

func (c *fakeCache) InvalidateAllUserRoles(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bumps++
}

func (c *fakeCache) InvalidateUserRolesForTenant(_ context.Context, userID, tenantID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pairs = append(c.pairs, [2]uuid.UUID{userID, tenantID})
}

// ctxTenants and ctxServices fail lookups whose context is already done, the
// way a pgx query does.
type ctxTenants struct{ store.TenantRepository }

func (r ctxTenants) FindTenantByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.TenantRepository.FindTenantByID(ctx, id)
}

type ctxServices struct{ store.ServiceRepository }

func (r ctxServices) FindServiceByID(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.ServiceRepository.FindServiceByID(ctx, id)
}

type fakeIdP struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (p *fakeIdP) DeleteUser(_ context.Context, externalID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, externalID)
	return p.err
}

type fakePublisher struct {
	mu     sync.Mutex
	err    error
	events []models.Event
}

func (p *fakePublisher) Publish(_ context.Context, e models.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

type fixture struct {
	ctx       context.Context
	mem       *memory.Store
	cache     *fakeCache
	idp       *fakeIdP
	publisher *fakePublisher

	tenants  *lifecycle.TenantService
	services *lifecycle.ServiceService
	users    *lifecycle.UserService
}

// newFixture wires the services over a memory store. With transactional set
// they share the store's snapshot unit of work; otherwise every statement
// applies directly.
func newFixture(t *testing.T, transactional bool) *fixture {
	t.Helper()
	f := &fixture{
		ctx:       context.Background(),
		mem:       memory.New(),
		cache:     newFakeCache(),
		idp:       &fakeIdP{},
		publisher: &fakePublisher{},
	}
	deps := lifecycle.Deps{
		Repos:     f.mem.Repositories(),
		Cache:     f.cache,
		IdP:       f.idp,
		Publisher: f.publisher,
	}
	if transactional {
		deps.UnitOfWork = f.mem.UnitOfWork()
	}
	f.tenants = lifecycle.NewTenantService(deps)
	f.services = lifecycle.NewServiceService(deps)
	f.users = lifecycle.NewUserService(deps)
	return f
}

func (f *fixture) tenant(t *testing.T) *models.Tenant {
	t.Helper()
	tenant, err := f.mem.CreateTenant(f.ctx, &models.CreateTenantInput{Name: "Acme", Slug: "acme-" + uuid.NewString()[:8]})
	require.NoError(t, err)
	return tenant
}

func (f *fixture) setStatus(t *testing.T, tenantID uuid.UUID, status models.TenantStatus) {
	t.Helper()
	_, err := f.mem.UpdateTenant(f.ctx, tenantID, &models.UpdateTenantInput{Status: &status})
	require.NoError(t, err)
}

func (f *fixture) service(t *testing.T, tenantID uuid.UUID) *models.Service {
	t.Helper()
	svc, err := f.mem.CreateService(f.ctx, &models.CreateServiceInput{TenantID: &tenantID, Name: "portal", ClientID: "unused"})
	require.NoError(t, err)
	return svc
}

func (f *fixture) client(t *testing.T, serviceID uuid.UUID) *models.Client {
	t.Helper()
	c, err := f.mem.CreateClient(f.ctx, serviceID, uuid.NewString(), "hash", nil)
	require.NoError(t, err)
	return c
}

func (f *fixture) permission(t *testing.T, serviceID uuid.UUID) *models.Permission {
	t.Helper()
	code := "res" + uuid.NewString()[:4] + ":read"
	p, err := f.mem.CreatePermission(f.ctx, &models.CreatePermissionInput{ServiceID: serviceID, Code: code, Name: code})
	require.NoError(t, err)
	return p
}

func (f *fixture) role(t *testing.T, serviceID uuid.UUID, parent *uuid.UUID) *models.Role {
	t.Helper()
	r, err := f.mem.CreateRole(f.ctx, &models.CreateRoleInput{ServiceID: serviceID, Name: "role", ParentRoleID: parent})
	require.NoError(t, err)
	return r
}

func (f *fixture) user(t *testing.T) *models.User {
	t.Helper()
	u, err := f.mem.CreateUser(f.ctx, "kc-"+uuid.NewString(), &models.CreateUserInput{Email: "jane@acme.io"})
	require.NoError(t, err)
	return u
}

// member adds userID to tenantID and assigns roleIDs to the membership.
func (f *fixture) member(t *testing.T, userID, tenantID uuid.UUID, roleIDs ...uuid.UUID) uuid.UUID {
	t.Helper()
	tu, err := f.mem.AddToTenant(f.ctx, &models.AddUserToTenantInput{UserID: userID, TenantID: tenantID, RoleInTenant: "member"})
	require.NoError(t, err)
	if len(roleIDs) > 0 {
		require.NoError(t, f.mem.AssignRolesToUser(f.ctx, tu.ID, roleIDs, nil))
	}
	return tu.ID
}
