package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aegis/internal/platform/middleware"
)

const requestTimeout = 30 * time.Second

// Services are the domain dependencies of the HTTP layer.
type Services struct {
	Verification VerificationService
	Auth         AuthService
	Messaging    MessagingService
	Keys         KeyService
	Tokens       TokenValidator
}

// NewRouter wires the public endpoints behind the shared middleware chain.
func NewRouter(svc Services, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.ContentTypeJSON)

	NewVerificationHandler(svc.Verification).Register(r)
	NewAuthHandler(svc.Auth).Register(r)
	NewMessageHandler(svc.Messaging, svc.Tokens).Register(r)
	NewKeyHandler(svc.Keys).Register(r)

	r.Get("/healthz", handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
