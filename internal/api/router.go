package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/kiranshivaraju/authgraph/internal/api/handler"
	mw "github.com/kiranshivaraju/authgraph/internal/api/middleware"
	"github.com/kiranshivaraju/authgraph/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
// A nil resource handler leaves its routes answering 501.
type Dependencies struct {
	Auth *mw.Auth

	HealthHandler http.HandlerFunc
	Metrics       http.Handler

	Tenants  *handler.Tenants
	Services *handler.Services
	RBAC     *handler.RBAC
	Users    *handler.Users
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)

		t := deps.Tenants
		r.Post("/api/v1/tenants", bind(t, (*handler.Tenants).Create))
		r.Get("/api/v1/tenants", bind(t, (*handler.Tenants).List))
		r.Get("/api/v1/tenants/{id}", bind(t, (*handler.Tenants).Get))
		r.Patch("/api/v1/tenants/{id}", bind(t, (*handler.Tenants).Update))
		r.Delete("/api/v1/tenants/{id}", bind(t, (*handler.Tenants).Delete))

		s := deps.Services
		r.Post("/api/v1/services", bind(s, (*handler.Services).Create))
		r.Get("/api/v1/services/{id}", bind(s, (*handler.Services).Get))
		r.Delete("/api/v1/services/{id}", bind(s, (*handler.Services).Delete))
		r.Post("/api/v1/services/{id}/secret", bind(s, (*handler.Services).RotateSecret))

		a := deps.RBAC
		r.Post("/api/v1/permissions", bind(a, (*handler.RBAC).CreatePermission))
		r.Delete("/api/v1/permissions/{id}", bind(a, (*handler.RBAC).DeletePermission))
		r.Post("/api/v1/roles", bind(a, (*handler.RBAC).CreateRole))
		r.Get("/api/v1/roles/{id}", bind(a, (*handler.RBAC).GetRole))
		r.Patch("/api/v1/roles/{id}", bind(a, (*handler.RBAC).UpdateRole))
		r.Delete("/api/v1/roles/{id}", bind(a, (*handler.RBAC).DeleteRole))
		r.Post("/api/v1/roles/{id}/permissions/{permissionID}", bind(a, (*handler.RBAC).AssignPermission))
		r.Delete("/api/v1/roles/{id}/permissions/{permissionID}", bind(a, (*handler.RBAC).RemovePermission))

		u := deps.Users
		r.Post("/api/v1/users", bind(u, (*handler.Users).Create))
		r.Delete("/api/v1/users/{id}", bind(u, (*handler.Users).Delete))
		r.Post("/api/v1/tenants/{id}/users", bind(u, (*handler.Users).AddToTenant))
		r.Delete("/api/v1/tenants/{id}/users/{userID}", bind(u, (*handler.Users).RemoveFromTenant))

		r.Post("/api/v1/tenants/{id}/users/{userID}/roles", bind(a, (*handler.RBAC).AssignRoles))
		r.Get("/api/v1/tenants/{id}/users/{userID}/roles", bind(a, (*handler.RBAC).UserRoles))
		r.Delete("/api/v1/tenants/{id}/users/{userID}/roles/{roleID}", bind(a, (*handler.RBAC).UnassignRole))
	})

	return r
}

// bind turns a handler method into a HandlerFunc, or a 501 placeholder when
// the resource handler is not configured.
func bind[H any](h *H, method func(*H, http.ResponseWriter, *http.Request)) http.HandlerFunc {
	if h == nil {
		return orNotImplemented(nil)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		method(h, w, r)
	}
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
