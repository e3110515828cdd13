package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/authgraph/internal/api/response"
	"github.com/kiranshivaraju/authgraph/pkg/models"
)

// RBACService is the part of rbac.Service the API uses.
type RBACService interface {
	CreatePermission(ctx context.Context, in *models.CreatePermissionInput) (*models.Permission, error)
	DeletePermission(ctx context.Context, id uuid.UUID) error
	CreateRole(ctx context.Context, in *models.CreateRoleInput) (*models.Role, error)
	GetRoleWithPermissions(ctx context.Context, id uuid.UUID) (*models.RoleWithPermissions, error)
	UpdateRole(ctx context.Context, id uuid.UUID, in *models.UpdateRoleInput) (*models.Role, error)
	DeleteRole(ctx context.Context, id uuid.UUID) error
	AssignPermissionToRole(ctx context.Context, roleID, permissionID uuid.UUID) error
	RemovePermissionFromRole(ctx context.Context, roleID, permissionID uuid.UUID) error
	AssignRoles(ctx context.Context, in *models.AssignRolesInput, grantedBy *uuid.UUID) error
	UnassignRole(ctx context.Context, userID, tenantID, roleID uuid.UUID) error
	GetUserRoles(ctx context.Context, userID, tenantID uuid.UUID) (*models.UserRolesInTenant, error)
	GetUserRolesForService(ctx context.Context, userID, tenantID, serviceID uuid.UUID) (*models.UserRolesInTenant, error)
}

// RBAC serves permissions, roles and the role assignments of tenant members.
type RBAC struct {
	svc RBACService
}

func NewRBAC(svc RBACService) *RBAC {
	return &RBAC{svc: svc}
}

func (h *RBAC) CreatePermission(w http.ResponseWriter, r *http.Request) {
	var in models.CreatePermissionInput
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := h.svc.CreatePermission(r.Context(), &in)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Created(w, p)
}

func (h *RBAC) DeletePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeletePermission(r.Context(), id); err != nil {
		response.FromError(w, r, err)
		return
	}
	response.NoContent(w)
}

func (h *RBAC) CreateRole(w http.ResponseWriter, r *http.Request) {
	var in models.CreateRoleInput
	if !decodeJSON(w, r, &in) {
		return
	}
	role, err := h.svc.CreateRole(r.Context(), &in)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Created(w, role)
}

// GetRole returns the role together with its directly granted permissions.
func (h *RBAC) GetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	role, err := h.svc.GetRoleWithPermissions(r.Context(), id)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, role)
}

func (h *RBAC) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var in models.UpdateRoleInput
	if !decodeJSON(w, r, &in) {
		return
	}
	role, err := h.svc.UpdateRole(r.Context(), id, &in)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, role)
}

func (h *RBAC) DeleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteRole(r.Context(), id); err != nil {
		response.FromError(w, r, err)
		return
	}
	response.NoContent(w)
}

func (h *RBAC) rolePermission(w http.ResponseWriter, r *http.Request) (roleID, permissionID uuid.UUID, ok bool) {
	if roleID, ok = pathUUID(w, r, "id"); !ok {
		return
	}
	permissionID, ok = pathUUID(w, r, "permissionID")
	return
}

func (h *RBAC) AssignPermission(w http.ResponseWriter, r *http.Request) {
	roleID, permissionID, ok := h.rolePermission(w, r)
	if !ok {
		return
	}
	if err := h.svc.AssignPermissionToRole(r.Context(), roleID, permissionID); err != nil {
		response.FromError(w, r, err)
		return
	}
	response.NoContent(w)
}

func (h *RBAC) RemovePermission(w http.ResponseWriter, r *http.Request) {
	roleID, permissionID, ok := h.rolePermission(w, r)
	if !ok {
		return
	}
	if err := h.svc.RemovePermissionFromRole(r.Context(), roleID, permissionID); err != nil {
		response.FromError(w, r, err)
		return
	}
	response.NoContent(w)
}

func member(w http.ResponseWriter, r *http.Request) (tenantID, userID uuid.UUID, ok bool) {
	if tenantID, ok = pathUUID(w, r, "id"); !ok {
		return
	}
	userID, ok = pathUUID(w, r, "userID")
	return
}

type assignRolesRequest struct {
	RoleIDs []uuid.UUID `json:"role_ids"`
}

// AssignRoles handles POST /api/v1/tenants/{id}/users/{userID}/roles.
func (h *RBAC) AssignRoles(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := member(w, r)
	if !ok {
		return
	}
	var req assignRolesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in := &models.AssignRolesInput{UserID: userID, TenantID: tenantID, RoleIDs: req.RoleIDs}
	if err := h.svc.AssignRoles(r.Context(), in, nil); err != nil {
		response.FromError(w, r, err)
		return
	}
	roles, err := h.svc.GetUserRoles(r.Context(), userID, tenantID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, roles)
}

func (h *RBAC) UnassignRole(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := member(w, r)
	if !ok {
		return
	}
	roleID, ok := pathUUID(w, r, "roleID")
	if !ok {
		return
	}
	if err := h.svc.UnassignRole(r.Context(), userID, tenantID, roleID); err != nil {
		response.FromError(w, r, err)
		return
	}
	response.NoContent(w)
}

// UserRoles handles GET /api/v1/tenants/{id}/users/{userID}/roles. An optional
// service_id query parameter restricts the result to one service.
func (h *RBAC) UserRoles(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := member(w, r)
	if !ok {
		return
	}

	var (
		roles *models.UserRolesInTenant
		err   error
	)
	if v := r.URL.Query().Get("service_id"); v != "" {
		serviceID, perr := uuid.Parse(v)
		if perr != nil {
			badRequest(w, "service_id must be a valid UUID")
			return
		}
		roles, err = h.svc.GetUserRolesForService(r.Context(), userID, tenantID, serviceID)
	} else {
		roles, err = h.svc.GetUserRoles(r.Context(), userID, tenantID)
	}
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, roles)
}
