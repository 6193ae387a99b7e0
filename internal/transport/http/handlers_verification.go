package httptransport

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"aegis/internal/verification"
	dErrors "aegis/pkg/domain-errors"
)

// VerificationService is the slice of the verification service this handler
// needs.
type VerificationService interface {
	SubmitIdentityDocument(ctx context.Context, userID string, doc verification.IdentityDocument) (*verification.IdentityOutcome, error)
	SubmitCertification(ctx context.Context, userID string, certType verification.CertType, doc verification.CertificationDocument) (*verification.CertificationOutcome, error)
	Status(ctx context.Context, userID string, role verification.Role) (*verification.StatusView, error)
}

type VerificationHandler struct {
	verification VerificationService
}

func NewVerificationHandler(verification VerificationService) *VerificationHandler {
	return &VerificationHandler{verification: verification}
}

func (h *VerificationHandler) Register(r chi.Router) {
	r.Post("/verify/identity", h.handleIdentity)
	r.Post("/verify/certification", h.handleCertification)
	r.Get("/verify/status/{userID}", h.handleStatus)
}

type identityRequest struct {
	UserID         string    `json:"user_id" validate:"required"`
	DocumentType   string    `json:"document_type" validate:"required"`
	DocumentNumber string    `json:"document_number" validate:"required"`
	DateOfBirth    time.Time `json:"date_of_birth" validate:"required"`
	ExpiresAt      time.Time `json:"expires_at"`
}

func (h *VerificationHandler) handleIdentity(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	outcome, err := h.verification.SubmitIdentityDocument(r.Context(), req.UserID, verification.IdentityDocument{
		Type:        req.DocumentType,
		Number:      req.DocumentNumber,
		DateOfBirth: req.DateOfBirth,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

type certificationRequest struct {
	UserID string `json:"user_id" validate:"required"`
	// CertType is deliberately not enum-validated here: an unrecognized type
	// must produce a rejected outcome, not a 422.
	CertType       string    `json:"cert_type" validate:"required"`
	DocumentNumber string    `json:"document_number" validate:"required"`
	IssuedAt       time.Time `json:"issued_at"`
}

func (h *VerificationHandler) handleCertification(w http.ResponseWriter, r *http.Request) {
	var req certificationRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	outcome, err := h.verification.SubmitCertification(r.Context(), req.UserID,
		verification.CertType(req.CertType), verification.CertificationDocument{
			Number:   req.DocumentNumber,
			IssuedAt: req.IssuedAt,
		})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *VerificationHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	role := verification.Role(r.URL.Query().Get("role"))
	if role == "" {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "role query parameter is required"))
		return
	}

	view, err := h.verification.Status(r.Context(), userID, role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
