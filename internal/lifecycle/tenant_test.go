package lifecycle_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/authgraph/internal/apperr"
	"github.com/kiranshivaraju/authgraph/internal/lifecycle"
	"github.com/kiranshivaraju/authgraph/internal/store/memory"
	"github.com/kiranshivaraju/authgraph/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantCreate(t *testing.T) {
	f := newFixture(t, true)

	tenant, err := f.tenants.Create(f.ctx, &models.CreateTenantInput{Name: "Acme", Slug: "acme"})
	require.NoError(t, err)
	assert.Equal(t, models.TenantStatusActive, tenant.Status)
	assert.Contains(t, f.cache.tenants, tenant.ID)

	_, err = f.tenants.Create(f.ctx, &models.CreateTenantInput{Name: "Acme 2", Slug: "acme"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, "Tenant with slug 'acme' already exists", apperr.Message(err))

	_, err = f.tenants.Create(f.ctx, &models.CreateTenantInput{Name: "Bad", Slug: "Not A Slug"})
	assert.ErrorIs(t, err, apperr.ErrBadRequest)
}

func TestCreateOrganization(t *testing.T) {
	tests := []struct {
		name   string
		email  string
		status models.TenantStatus
	}{
		{"matching domain stays active", "jane@Acme.io", models.TenantStatusActive},
		{"other domain waits for approval", "jane@gmail.com", models.TenantStatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)
			creator := f.user(t)

			tenant, err := f.tenants.CreateOrganization(f.ctx, &models.CreateOrganizationInput{
				Name: "Acme", Slug: "acme", Domain: "acme.io",
			}, creator.ID, tt.email)
			require.NoError(t, err)
			assert.Equal(t, tt.status, tenant.Status)

			memberships, err := f.users.GetTenants(f.ctx, creator.ID)
			require.NoError(t, err)
			require.Len(t, memberships, 1)
			assert.Equal(t, tenant.ID, memberships[0].TenantID)
			assert.Equal(t, lifecycle.OwnerRole, memberships[0].RoleInTenant)
		})
	}
}

func TestCreateOrganization_UnknownCreator(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.tenants.CreateOrganization(f.ctx, &models.CreateOrganizationInput{
		Name: "Acme", Slug: "acme", Domain: "acme.io",
	}, uuid.New(), "jane@acme.io")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, 0, f.mem.Count("tenants"))
}

func TestTenantGet_CacheAside(t *testing.T) {
	f := newFixture(t, true)
	tenant := f.tenant(t)
	f.mem.ResetCalls()

	got, err := f.tenants.Get(f.ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, tenant.Slug, got.Slug)
	assert.Equal(t, []string{"FindTenantByID"}, f.mem.Calls())

	f.mem.ResetCalls()
	_, err = f.tenants.Get(f.ctx, tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, f.mem.Calls())
}

func TestTenantGet_SharedReadIgnoresCallerCancellation(t *testing.T) {
	mem := memory.New()
	repos := mem.Repositories()
	repos.Tenants = ctxTenants{repos.Tenants}
	tenants := lifecycle.NewTenantService(lifecycle.Deps{Repos: repos})

	tenant, err := mem.CreateTenant(context.Background(), &models.CreateTenantInput{Name: "Acme", Slug: "acme"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err := tenants.Get(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, got.ID)
}

func TestTenantGet_NotFound(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.tenants.Get(f.ctx, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.tenants.GetBySlug(f.ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTenantListAndSearch(t *testing.T) {
	f := newFixture(t, true)
	for i := 0; i < 3; i++ {
		f.tenant(t)
	}

	page, total, err := f.tenants.List(f.ctx, 1, 2)
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, 3, total)

	found, total, err := f.tenants.Search(f.ctx, "acme", 0, 0)
	require.NoError(t, err)
	assert.Len(t, found, 3)
	assert.Equal(t, 3, total)
}

func TestTenantUpdate(t *testing.T) {
	f := newFixture(t, true)
	tenant := f.tenant(t)
	name := "Acme Corp"

	updated, err := f.tenants.Update(f.ctx, tenant.ID, &models.UpdateTenantInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, []uuid.UUID{tenant.ID}, f.cache.invalidatedTenants)

	disabled, err := f.tenants.Disable(f.ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TenantStatusInactive, disabled.Status)

	_, err = f.tenants.Update(f.ctx, tenant.ID, &models.UpdateTenantInput{Name: &name})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	pending := models.TenantStatusPending
	_, err = f.tenants.Update(f.ctx, tenant.ID, &models.UpdateTenantInput{Status: &pending})
	assert.ErrorIs(t, err, apperr.ErrBadRequest)

	active := models.TenantStatusActive
	reactivated, err := f.tenants.Update(f.ctx, tenant.ID, &models.UpdateTenantInput{Status: &active})
	require.NoError(t, err)
	assert.True(t, reactivated.IsActive())

	_, err = f.tenants.Update(f.ctx, uuid.New(), &models.UpdateTenantInput{Name: &name})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTenantUpdate_ActiveCannotBeMovedToPending(t *testing.T) {
	f := newFixture(t, true)
	tenant := f.tenant(t)
	pending := models.TenantStatusPending

	_, err := f.tenants.Update(f.ctx, tenant.ID, &models.UpdateTenantInput{Status: &pending})
	assert.ErrorIs(t, err, apperr.ErrBadRequest)

	got, err := f.tenants.Get(f.ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TenantStatusActive, got.Status)
}

func TestTenantUpdate_NextGetSeesCommittedState(t *testing.T) {
	f := newFixture(t, true)
	tenant := f.tenant(t)
	_, err := f.tenants.Get(f.ctx, tenant.ID)
	require.NoError(t, err)

	name := "Renamed"
	_, err = f.tenants.Update(f.ctx, tenant.ID, &models.UpdateTenantInput{Name: &name})
	require.NoError(t, err)

	got, err := f.tenants.Get(f.ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, name, got.Name)
}

func TestTenantRequireActive(t *testing.T) {
	f := newFixture(t, true)
	tenant := f.tenant(t)
	require.NoError(t, f.tenants.RequireActive(f.ctx, tenant.ID))

	f.setStatus(t, tenant.ID, models.TenantStatusPending)
	f.cache.InvalidateTenantConfig(f.ctx, tenant.ID)
	err := f.tenants.RequireActive(f.ctx, tenant.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.Contains(t, apperr.Message(err), "pending")
}

// populatedTenant builds a tenant owning one service with 2 clients, 3 roles,
// 5 permissions, one member holding 2 roles, 10 login events, 5 security
// alerts and 3 actions.
func populatedTenant(t *testing.T, f *fixture) (*models.Tenant, *models.Service) {
	t.Helper()
	tenant := f.tenant(t)
	svc := f.service(t, tenant.ID)
	f.client(t, svc.ID)
	f.client(t, svc.ID)

	root := f.role(t, svc.ID, nil)
	mid := f.role(t, svc.ID, &root.ID)
	leaf := f.role(t, svc.ID, &mid.ID)
	for i := 0; i < 5; i++ {
		p := f.permission(t, svc.ID)
		require.NoError(t, f.mem.AssignPermissionToRole(f.ctx, root.ID, p.ID))
	}

	u := f.user(t)
	f.member(t, u.ID, tenant.ID, mid.ID, leaf.ID)

	for i := 0; i < 10; i++ {
		f.mem.Seed(models.LoginEvent{UserID: &u.ID, TenantID: &tenant.ID, EventType: "login"})
	}
	for i := 0; i < 5; i++ {
		f.mem.Seed(models.SecurityAlert{UserID: &u.ID, TenantID: &tenant.ID, AlertType: "brute_force", Severity: "high"})
	}
	f.mem.Seed(
		models.Action{TenantID: tenant.ID, Name: "a"},
		models.Action{TenantID: tenant.ID, Name: "b"},
		models.Action{TenantID: tenant.ID, ServiceID: &svc.ID, Name: "c"},
		models.Webhook{TenantID: tenant.ID, URL: "https://hooks.acme.io"},
		models.Invitation{TenantID: tenant.ID, Email: "bob@acme.io", Status: "pending"},
		models.ServiceBranding{ServiceID: svc.ID},
	)
	return tenant, svc
}

var tenantOwnedTables = []string{
	"services", "clients", "roles", "permissions", "role_permissions", "user_tenant_roles",
	"tenant_users", "webhooks", "invitations", "login_events", "security_alerts", "actions",
	"service_branding", "tenants",
}

func TestTenantDelete_RemovesEverythingItOwns(t *testing.T) {
	for _, transactional := range []bool{true, false} {
		name := map[bool]string{true: "transactional", false: "sequential"}[transactional]
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, transactional)
			tenant, svc := populatedTenant(t, f)
			_, err := f.tenants.Get(f.ctx, tenant.ID)
			require.NoError(t, err)

			res, err := f.tenants.Delete(f.ctx, tenant.ID)
			require.NoError(t, err)
			assert.Equal(t, name, res.Mode)
			assert.Equal(t, int64(10), res.Rows("login_events"))
			assert.Equal(t, int64(3), res.Rows("actions"))

			for _, table := range tenantOwnedTables {
				assert.Zero(t, f.mem.Count(table), table)
			}
			assert.Equal(t, 1, f.mem.Count("users"))

			_, err = f.tenants.Get(f.ctx, tenant.ID)
			assert.ErrorIs(t, err, apperr.ErrNotFound)

			assert.Equal(t, []uuid.UUID{svc.ID}, f.cache.invalidatedServices)
			assert.Equal(t, []uuid.UUID{tenant.ID}, f.cache.invalidatedTenants)
			assert.Equal(t, 1, f.cache.bumps)
			require.Len(t, f.publisher.events, 1)
			assert.Equal(t, models.EventTenantDeleted, f.publisher.events[0].Type)
		})
	}
}

func TestTenantDelete_LeavesOtherTenantsAlone(t *testing.T) {
	f := newFixture(t, true)
	tenant, _ := populatedTenant(t, f)
	other, otherSvc := populatedTenant(t, f)

	_, err := f.tenants.Delete(f.ctx, tenant.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, f.mem.Count("tenants"))
	assert.Equal(t, 1, f.mem.Count("services"))
	assert.Equal(t, 2, f.mem.Count("clients"))
	assert.Equal(t, 3, f.mem.Count("roles"))
	assert.Equal(t, 5, f.mem.Count("permissions"))
	assert.Equal(t, 2, f.mem.Count("user_tenant_roles"))
	assert.Equal(t, 10, f.mem.Count("login_events"))
	assert.Equal(t, 3, f.mem.Count("actions"))

	_, err = f.tenants.Get(f.ctx, other.ID)
	require.NoError(t, err)
	roles, err := f.mem.ListRolesByService(f.ctx, otherSvc.ID)
	require.NoError(t, err)
	assert.Len(t, roles, 3)
}

func TestTenantDelete_Missing(t *testing.T) {
	f := newFixture(t, true)
	tenant := f.tenant(t)
	_, err := f.tenants.Delete(f.ctx, tenant.ID)
	require.NoError(t, err)
	f.mem.ResetCalls()

	_, err = f.tenants.Delete(f.ctx, tenant.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, []string{"FindTenantByID"}, f.mem.Calls())
	assert.Len(t, f.cache.invalidatedTenants, 1)
	assert.Equal(t, 1, f.cache.bumps)
	assert.Len(t, f.publisher.events, 1)
}

func TestTenantDelete_TransactionalFailureRollsBack(t *testing.T) {
	f := newFixture(t, true)
	tenant, _ := populatedTenant(t, f)
	f.mem.FailOn("DeleteSecurityAlertsByTenant", errors.New("connection reset"))

	_, err := f.tenants.Delete(f.ctx, tenant.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))

	assert.Equal(t, 1, f.mem.Count("tenants"))
	assert.Equal(t, 2, f.mem.Count("clients"))
	assert.Equal(t, 10, f.mem.Count("login_events"))
	assert.Equal(t, 1, f.mem.Count("webhooks"))
	assert.Empty(t, f.cache.invalidatedTenants)
	assert.Zero(t, f.cache.bumps)
	assert.Empty(t, f.publisher.events)
}

func TestTenantDelete_SequentialFailureKeepsEarlierSteps(t *testing.T) {
	f := newFixture(t, false)
	tenant, _ := populatedTenant(t, f)
	f.mem.FailOn("DeleteSecurityAlertsByTenant", errors.New("connection reset"))

	_, err := f.tenants.Delete(f.ctx, tenant.ID)
	require.Error(t, err)

	assert.Zero(t, f.mem.Count("clients"))
	assert.Zero(t, f.mem.Count("webhooks"))
	assert.Zero(t, f.mem.Count("login_events"))
	assert.Equal(t, 5, f.mem.Count("security_alerts"))
	assert.Equal(t, 1, f.mem.Count("tenants"))
	assert.Empty(t, f.cache.invalidatedTenants)
}

func TestTenantDelete_SameOrderInBothModes(t *testing.T) {
	callsFor := func(transactional bool) []string {
		f := newFixture(t, transactional)
		tenant, _ := populatedTenant(t, f)
		f.mem.ResetCalls()
		_, err := f.tenants.Delete(f.ctx, tenant.ID)
		require.NoError(t, err)

		var out []string
		for _, c := range f.mem.Calls() {
			if c != "Begin" && c != "Commit" {
				out = append(out, c)
			}
		}
		return out
	}

	tx := callsFor(true)
	assert.Equal(t, tx, callsFor(false))
	assert.Equal(t, "DeleteClientsByService", tx[2])
	assert.Equal(t, "ClearParentRoleReferences", tx[3])
	assert.Equal(t, "DeleteTenant", tx[len(tx)-1])
}
