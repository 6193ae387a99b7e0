package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aegis/internal/messaging"
)

// KeyService provisions encryption key pairs. Satisfied by the messaging key
// service.
type KeyService interface {
	Provision(ctx context.Context, userID string) (*messaging.KeyMaterial, error)
}

type KeyHandler struct {
	keys KeyService
}

func NewKeyHandler(keys KeyService) *KeyHandler {
	return &KeyHandler{keys: keys}
}

func (h *KeyHandler) Register(r chi.Router) {
	r.Post("/keys", h.handleProvision)
}

type provisionRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

func (h *KeyHandler) handleProvision(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	material, err := h.keys.Provision(r.Context(), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, material)
}
