package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/authgraph/internal/api/response"
	"github.com/kiranshivaraju/authgraph/internal/cascade"
	"github.com/kiranshivaraju/authgraph/pkg/models"
)

// UserService is the part of lifecycle.UserService the API uses.
type UserService interface {
	Create(ctx context.Context, keycloakID string, in *models.CreateUserInput) (*models.User, error)
	Delete(ctx context.Context, id uuid.UUID) (*cascade.Result, error)
	AddToTenant(ctx context.Context, in *models.AddUserToTenantInput) (*models.TenantUser, error)
	RemoveFromTenant(ctx context.Context, userID, tenantID uuid.UUID) error
}

type Users struct {
	svc UserService
}

func NewUsers(svc UserService) *Users {
	return &Users{svc: svc}
}

type createUserRequest struct {
	KeycloakID string `json:"keycloak_id"`
	models.CreateUserInput
}

// Create handles POST /api/v1/users. Users are provisioned for an existing
// identity provider account named by keycloak_id.
func (h *Users) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := h.svc.Create(r.Context(), req.KeycloakID, &req.CreateUserInput)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Created(w, u)
}

func (h *Users) Delete(w http.ResponseWriter, r *http.Request) {
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

type addMemberRequest struct {
	UserID       uuid.UUID `json:"user_id"`
	RoleInTenant string    `json:"role_in_tenant"`
}

// AddToTenant handles POST /api/v1/tenants/{id}/users.
func (h *Users) AddToTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req addMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RoleInTenant == "" {
		req.RoleInTenant = "member"
	}
	tu, err := h.svc.AddToTenant(r.Context(), &models.AddUserToTenantInput{
		UserID:       req.UserID,
		TenantID:     tenantID,
		RoleInTenant: req.RoleInTenant,
	})
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Created(w, tu)
}

func (h *Users) RemoveFromTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := member(w, r)
	if !ok {
		return
	}
	if err := h.svc.RemoveFromTenant(r.Context(), userID, tenantID); err != nil {
		response.FromError(w, r, err)
		return
	}
	response.NoContent(w)
}
