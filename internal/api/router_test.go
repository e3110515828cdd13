package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kiranshivaraju/authgraph/internal/api"
	"github.com/kiranshivaraju/authgraph/internal/api/handler"
	mw "github.com/kiranshivaraju/authgraph/internal/api/middleware"
	"github.com/kiranshivaraju/authgraph/internal/lifecycle"
	"github.com/kiranshivaraju/authgraph/internal/rbac"
	"github.com/kiranshivaraju/authgraph/internal/store/memory"
	"github.com/kiranshivaraju/authgraph/pkg/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router       http.Handler
	serviceID    string
	clientID     string
	clientSecret string
}

// newTestServer wires the full admin API over the in-memory store and issues
// one admin client credential.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mem := memory.New()
	deps := lifecycle.Deps{Repos: mem.Repositories(), UnitOfWork: mem.UnitOfWork()}
	services := lifecycle.NewServiceService(deps)

	admin, err := services.Create(context.Background(), &models.CreateServiceInput{Name: "Admin", ClientID: "admin-cli"})
	require.NoError(t, err)

	auth := mw.NewAuth(services)
	servicesHandler := handler.NewServices(services)
	servicesHandler.SecretRotated = auth.Forget

	router := api.NewRouter(api.Dependencies{
		Auth: auth,
		HealthHandler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		},
		Metrics:  promhttp.Handler(),
		Tenants:  handler.NewTenants(lifecycle.NewTenantService(deps)),
		Services: servicesHandler,
		RBAC:     handler.NewRBAC(rbac.NewService(mem.Repositories(), mem.UnitOfWork(), nil, nil)),
		Users:    handler.NewUsers(lifecycle.NewUserService(deps)),
	})
	return &testServer{
		router:       router,
		serviceID:    admin.Service.ID.String(),
		clientID:     "admin-cli",
		clientSecret: admin.Client.ClientSecret,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if authed {
		req.SetBasicAuth(s.clientID, s.clientSecret)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestRouter_PublicEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, "GET", "/api/v1/health", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, "GET", "/metrics", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_ProtectedEndpoints_RequireAuth(t *testing.T) {
	s := newTestServer(t)

	endpoints := []struct {
		method string
		path   string
	}{
		{"GET", "/api/v1/tenants"},
		{"POST", "/api/v1/tenants"},
		{"DELETE", "/api/v1/tenants/00000000-0000-0000-0000-000000000001"},
		{"POST", "/api/v1/services"},
		{"POST", "/api/v1/services/00000000-0000-0000-0000-000000000001/secret"},
		{"POST", "/api/v1/permissions"},
		{"POST", "/api/v1/roles"},
		{"POST", "/api/v1/users"},
		{"GET", "/api/v1/tenants/00000000-0000-0000-0000-000000000001/users/00000000-0000-0000-0000-000000000002/roles"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			w := s.do(t, ep.method, ep.path, nil, false)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "INVALID_CREDENTIALS", errCode(t, w))
		})
	}
}

func TestRouter_WrongSecret(t *testing.T) {
	s := newTestServer(t)
	s.clientSecret = "not-the-secret"

	w := s.do(t, "GET", "/api/v1/tenants", nil, true)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_RotatedSecretIsRejectedImmediately(t *testing.T) {
	s := newTestServer(t)
	oldSecret := s.clientSecret

	w := s.do(t, "GET", "/api/v1/tenants", nil, true)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, "POST", "/api/v1/services/"+s.serviceID+"/secret", map[string]any{"client_id": s.clientID}, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rotated struct {
		Data struct {
			ClientSecret string `json:"client_secret"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rotated))
	require.NotEqual(t, oldSecret, rotated.Data.ClientSecret)

	w = s.do(t, "GET", "/api/v1/tenants", nil, true)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	s.clientSecret = rotated.Data.ClientSecret
	w = s.do(t, "GET", "/api/v1/tenants", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_TenantFlow(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, "POST", "/api/v1/tenants", map[string]any{"name": "Acme", "slug": "acme"}, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Data models.Tenant `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	path := "/api/v1/tenants/" + created.Data.ID.String()

	w = s.do(t, "POST", "/api/v1/tenants", map[string]any{"name": "Acme", "slug": "acme"}, true)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", errCode(t, w))

	w = s.do(t, "POST", "/api/v1/tenants", map[string]any{"name": "", "slug": "x"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", errCode(t, w))

	w = s.do(t, "GET", path, nil, true)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, "DELETE", path, nil, true)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, "GET", path, nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errCode(t, w))
}

func TestRouter_UnconfiguredHandlers(t *testing.T) {
	mem := memory.New()
	services := lifecycle.NewServiceService(lifecycle.Deps{Repos: mem.Repositories()})
	out, err := services.Create(context.Background(), &models.CreateServiceInput{Name: "Admin", ClientID: "admin-cli"})
	require.NoError(t, err)

	router := api.NewRouter(api.Dependencies{Auth: mw.NewAuth(services)})
	s := &testServer{router: router, clientID: "admin-cli", clientSecret: out.Client.ClientSecret}

	w := s.do(t, "GET", "/api/v1/health", nil, false)
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	w = s.do(t, "GET", "/api/v1/tenants", nil, true)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
	assert.Equal(t, "NOT_IMPLEMENTED", errCode(t, w))

	w = s.do(t, "GET", "/metrics", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_NotFound(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, "GET", "/api/v1/nonexistent", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
