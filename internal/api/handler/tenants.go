package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/authgraph/internal/api/response"
	"github.com/kiranshivaraju/authgraph/internal/cascade"
	"github.com/kiranshivaraju/authgraph/pkg/models"
)

// TenantService is the part of lifecycle.TenantService the API uses.
type TenantService interface {
	Create(ctx context.Context, in *models.CreateTenantInput) (*models.Tenant, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	List(ctx context.Context, page, perPage int) ([]*models.Tenant, int, error)
	Search(ctx context.Context, query string, page, perPage int) ([]*models.Tenant, int, error)
	Update(ctx context.Context, id uuid.UUID, in *models.UpdateTenantInput) (*models.Tenant, error)
	Delete(ctx context.Context, id uuid.UUID) (*cascade.Result, error)
}

type Tenants struct {
	svc TenantService
}

func NewTenants(svc TenantService) *Tenants {
	return &Tenants{svc: svc}
}

// Create handles POST /api/v1/tenants.
func (h *Tenants) Create(w http.ResponseWriter, r *http.Request) {
	var in models.CreateTenantInput
	if !decodeJSON(w, r, &in) {
		return
	}
	t, err := h.svc.Create(r.Context(), &in)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Created(w, t)
}

// List handles GET /api/v1/tenants. A non-empty q searches names and slugs.
func (h *Tenants) List(w http.ResponseWriter, r *http.Request) {
	page, perPage, ok := pageParams(w, r)
	if !ok {
		return
	}

	var (
		tenants []*models.Tenant
		total   int
		err     error
	)
	if q := r.URL.Query().Get("q"); q != "" {
		tenants, total, err = h.svc.Search(r.Context(), q, page, perPage)
	} else {
		tenants, total, err = h.svc.List(r.Context(), page, perPage)
	}
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	if tenants == nil {
		tenants = []*models.Tenant{}
	}
	response.Collection(w, tenants, response.NewPaginationMeta(page, perPage, total))
}

func (h *Tenants) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	t, err := h.svc.Get(r.Context(), id)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, t)
}

func (h *Tenants) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var in models.UpdateTenantInput
	if !decodeJSON(w, r, &in) {
		return
	}
	t, err := h.svc.Update(r.Context(), id, &in)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, t)
}

// Delete handles DELETE /api/v1/tenants/{id}, removing the tenant with all of
// its services and memberships.
func (h *Tenants) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.svc.Delete(r.Context(), id); err != nil {
		response.FromError(w, r, err)
		return
	}
	response.NoContent(w)
}
