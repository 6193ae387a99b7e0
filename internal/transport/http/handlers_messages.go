package httptransport

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"aegis/internal/auth"
	"aegis/internal/messaging"
	dErrors "aegis/pkg/domain-errors"
)

// MessagingService is the slice of the messaging service this handler needs.
type MessagingService interface {
	Send(ctx context.Context, senderID, recipientID string, kind messaging.Kind, plaintext string) (*messaging.SendResult, error)
	Delete(ctx context.Context, messageID, requesterID string) error
}

// TokenValidator verifies bearer tokens. Satisfied by the auth token service.
type TokenValidator interface {
	Validate(tokenString string) (*auth.Claims, error)
}

type MessageHandler struct {
	messaging MessagingService
	tokens    TokenValidator
}

func NewMessageHandler(messaging MessagingService, tokens TokenValidator) *MessageHandler {
	return &MessageHandler{messaging: messaging, tokens: tokens}
}

func (h *MessageHandler) Register(r chi.Router) {
	r.Post("/messages", h.handleSend)
	r.Delete("/messages/{messageID}", h.handleDelete)
}

type sendRequest struct {
	SenderID    string `json:"sender_id" validate:"required"`
	RecipientID string `json:"recipient_id" validate:"required"`
	Kind        string `json:"kind" validate:"required,oneof=text image"`
	Content     string `json:"content" validate:"required"`
}

func (h *MessageHandler) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.messaging.Send(r.Context(), req.SenderID, req.RecipientID,
		messaging.Kind(req.Kind), req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *MessageHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	claims, err := h.bearer(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.messaging.Delete(r.Context(), chi.URLParam(r, "messageID"), claims.UserID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MessageHandler) bearer(r *http.Request) (*auth.Claims, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "bearer token is required")
	}
	return h.tokens.Validate(token)
}
