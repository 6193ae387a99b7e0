// Package service exposes sliding-window admission control for heterogeneous
// identifiers: login attempts per account, registrations per IP, messages per
// sender. Policies share one store; windows never interfere because every key
// is namespaced by policy name.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"aegis/internal/platform/metrics"
	"aegis/internal/ratelimit/models"
	dErrors "aegis/pkg/domain-errors"
)

// WindowStore manages sliding-window admission counters. Implementations must
// make the check-and-record step atomic per key.
type WindowStore interface {
	// Allow admits one request if the window count is under limit, recording
	// it; rejection records nothing.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)

	// Reset clears the window for a key.
	Reset(ctx context.Context, key string) error

	// CurrentCount returns the current admission count inside the window.
	CurrentCount(ctx context.Context, key string) (int, error)
}

// Service evaluates named rate-limit policies against a window store.
type Service struct {
	store    WindowStore
	policies map[string]models.Policy
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a structured logger for denial audit lines.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New creates a rate-limit service with the given policies.
func New(store WindowStore, policies []models.Policy, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("window store is required")
	}
	byName := make(map[string]models.Policy, len(policies))
	for _, p := range policies {
		if p.Limit <= 0 || p.Window <= 0 {
			return nil, fmt.Errorf("policy %q: limit and window must be positive", p.Name)
		}
		byName[p.Name] = p
	}

	svc := &Service{store: store, policies: byName}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Admit checks the named policy for an identifier. Unknown identifiers start
// with an empty window; unknown policies are a wiring bug and error out.
func (s *Service) Admit(ctx context.Context, policy, identifier string) (*models.Result, error) {
	p, ok := s.policies[policy]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeInternal, "unknown rate limit policy %q", policy)
	}
	return s.admit(ctx, p, identifier)
}

// AdmitCustom checks an ad-hoc limit/window pair for an identifier. It serves
// callers whose limits are not part of the named policy table.
func (s *Service) AdmitCustom(ctx context.Context, identifier string, limit int, window time.Duration) (*models.Result, error) {
	return s.admit(ctx, models.Policy{Name: "custom", Limit: limit, Window: window}, identifier)
}

func (s *Service) admit(ctx context.Context, p models.Policy, identifier string) (*models.Result, error) {
	key := p.Name + ":" + identifier
	result, err := s.store.Allow(ctx, key, p.Limit, p.Window)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check rate limit")
	}

	if !result.Allowed {
		if s.metrics != nil {
			s.metrics.RateLimitDenials.WithLabelValues(p.Name).Inc()
		}
		if s.logger != nil {
			s.logger.InfoContext(ctx, "rate limit exceeded",
				"policy", p.Name,
				"identifier", identifier,
				"limit", p.Limit,
				"window_seconds", int(p.Window.Seconds()),
				"retry_after", result.RetryAfter,
				"log_type", "audit",
			)
		}
	}
	return result, nil
}

// Reset clears the window for an identifier under a named policy.
func (s *Service) Reset(ctx context.Context, policy, identifier string) error {
	return s.store.Reset(ctx, policy+":"+identifier)
}
