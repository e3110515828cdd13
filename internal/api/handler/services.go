package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/authgraph/internal/api/response"
	"github.com/kiranshivaraju/authgraph/internal/cascade"
	"github.com/kiranshivaraju/authgraph/pkg/models"
)

// ServiceService is the part of lifecycle.ServiceService the API uses.
type ServiceService interface {
	Create(ctx context.Context, in *models.CreateServiceInput) (*models.ServiceWithClient, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Service, error)
	Delete(ctx context.Context, id uuid.UUID) (*cascade.Result, error)
	ListClients(ctx context.Context, serviceID uuid.UUID) ([]*models.Client, error)
	RegenerateSecret(ctx context.Context, clientID string) (string, error)
}

type Services struct {
	svc ServiceService

	// SecretRotated, when set, is called with the client id after a rotation.
	SecretRotated func(clientID string)
}

func NewServices(svc ServiceService) *Services {
	return &Services{svc: svc}
}

// Create handles POST /api/v1/services. The response carries the client
// secret; it is never returned again.
func (h *Services) Create(w http.ResponseWriter, r *http.Request) {
	var in models.CreateServiceInput
	if !decodeJSON(w, r, &in) {
		return
	}
	out, err := h.svc.Create(r.Context(), &in)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Created(w, out)
}

func (h *Services) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	s, err := h.svc.Get(r.Context(), id)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, s)
}

func (h *Services) Delete(w http.ResponseWriter, r *http.Request) {
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

type rotateSecretRequest struct {
	ClientID string `json:"client_id"`
}

type rotateSecretResponse struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// RotateSecret handles POST /api/v1/services/{id}/secret. The client must
// belong to the service in the path.
func (h *Services) RotateSecret(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req rotateSecretRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ClientID == "" {
		badRequest(w, "client_id is required")
		return
	}

	clients, err := h.svc.ListClients(r.Context(), id)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	owned := false
	for _, c := range clients {
		if c.ClientID == req.ClientID {
			owned = true
			break
		}
	}
	if !owned {
		response.Error(w, http.StatusNotFound, "NOT_FOUND",
			"Client '"+req.ClientID+"' not found", nil)
		return
	}

	secret, err := h.svc.RegenerateSecret(r.Context(), req.ClientID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	if h.SecretRotated != nil {
		h.SecretRotated(req.ClientID)
	}
	response.JSON(w, rotateSecretResponse{ClientID: req.ClientID, ClientSecret: secret})
}
