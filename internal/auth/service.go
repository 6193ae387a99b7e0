package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mssola/useragent"

	"aegis/internal/audit"
	"aegis/internal/platform/metrics"
	"aegis/internal/ratelimit/models"
	"aegis/internal/verification"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/requestcontext"
	"aegis/pkg/sentinel"
)

// Limiter admits login attempts under the named policy. Satisfied by the
// rate-limit service.
type Limiter interface {
	Admit(ctx context.Context, policy, identifier string) (*models.Result, error)
}

// Auditor records security events. Satisfied by the audit service.
type Auditor interface {
	Record(ctx context.Context, eventType audit.EventType, subjectUserID string, details map[string]any, severity audit.Severity) (*audit.SecurityEvent, error)
}

// ClientInfo is what the transport layer knows about the caller.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// Service runs the login flow: throttle, gate, token.
type Service struct {
	directory Directory
	gate      *Gate
	tokens    *TokenService
	limiter   Limiter
	auditor   Auditor
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLimiter throttles login attempts per account.
func WithLimiter(l Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

// WithAuditor records blocked logins.
func WithAuditor(a Auditor) Option {
	return func(s *Service) { s.auditor = a }
}

// NewService creates the auth service.
func NewService(directory Directory, gate *Gate, tokens *TokenService, opts ...Option) (*Service, error) {
	if directory == nil {
		return nil, errors.New("user directory is required")
	}
	if gate == nil {
		return nil, errors.New("login gate is required")
	}
	if tokens == nil {
		return nil, errors.New("token service is required")
	}
	svc := &Service{directory: directory, gate: gate, tokens: tokens}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Register creates a user account. Registrations are throttled per client
// address; new accounts always start unverified.
func (s *Service) Register(ctx context.Context, userID, email string, role verification.Role, client ClientInfo) (*User, error) {
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	if !role.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown role %q", role)
	}

	if s.limiter != nil && client.IP != "" {
		result, err := s.limiter.Admit(ctx, models.PolicyRegistration, client.IP)
		if err != nil {
			return nil, err
		}
		if !result.Allowed {
			return nil, dErrors.Newf(dErrors.CodeRateLimited, "too many registrations from this address, retry in %ds", result.RetryAfter)
		}
	}

	if _, err := s.directory.Lookup(ctx, userID); err == nil {
		return nil, dErrors.Newf(dErrors.CodeConflict, "user %s already exists", userID)
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}

	user := &User{
		ID:        userID,
		Email:     email,
		Role:      role,
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := s.directory.Register(ctx, user); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register user")
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "user registered",
			"user_id", user.ID,
			"role", user.Role,
			"client_ip", client.IP,
			"log_type", "audit",
		)
	}
	return user, nil
}

// Login admits, gates, and issues a token. A gate denial is recorded as a
// login_blocked event carrying the missing facet and parsed client details.
func (s *Service) Login(ctx context.Context, userID string, client ClientInfo) (*LoginResult, error) {
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}

	if s.limiter != nil {
		result, err := s.limiter.Admit(ctx, models.PolicyLogin, userID)
		if err != nil {
			return nil, err
		}
		if !result.Allowed {
			s.recordBlocked(ctx, userID, "too many login attempts", client)
			return nil, dErrors.Newf(dErrors.CodeRateLimited, "too many login attempts, retry in %ds", result.RetryAfter)
		}
	}

	user, err := s.directory.Lookup(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "unknown user")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}

	if err := s.gate.Authorize(ctx, user.ID, user.Role); err != nil {
		if dErrors.HasCode(err, dErrors.CodeForbidden) {
			s.recordBlocked(ctx, user.ID, dErrors.MessageOf(err), client)
			if s.metrics != nil {
				s.metrics.LoginDenials.WithLabelValues(dErrors.MessageOf(err)).Inc()
			}
		}
		return nil, err
	}

	now := requestcontext.Now(ctx)
	token, expiresAt, err := s.tokens.Generate(user.ID, string(user.Role), now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "login allowed",
			"user_id", user.ID,
			"role", user.Role,
			"log_type", "audit",
		)
	}
	return &LoginResult{
		UserID:    user.ID,
		Role:      string(user.Role),
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *Service) recordBlocked(ctx context.Context, userID, reason string, client ClientInfo) {
	if s.auditor == nil {
		return
	}
	details := map[string]any{
		"reason":    reason,
		"client_ip": client.IP,
	}
	if client.UserAgent != "" {
		ua := useragent.New(client.UserAgent)
		browser, version := ua.Browser()
		details["browser"] = browser
		details["browser_version"] = version
		details["os"] = ua.OS()
		details["mobile"] = ua.Mobile()
		details["bot"] = ua.Bot()
	}
	if _, err := s.auditor.Record(ctx, audit.EventLoginBlocked, userID, details, audit.SeverityWarning); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "audit record failed", "error", err)
	}
}
