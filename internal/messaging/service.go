package messaging

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"aegis/internal/audit"
	"aegis/internal/crypto/envelope"
	"aegis/internal/platform/metrics"
	"aegis/internal/ratelimit/models"
	"aegis/internal/risk"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/requestcontext"
	"aegis/pkg/sentinel"
)

// Store persists messages.
type Store interface {
	Save(ctx context.Context, msg *Message) error
	Get(ctx context.Context, id string) (*Message, error)
	ListConversation(ctx context.Context, userA, userB string) ([]*Message, error)
	SoftDelete(ctx context.Context, id string, at time.Time) error
}

// Limiter admits sends under the named policy. Satisfied by the rate-limit
// service.
type Limiter interface {
	Admit(ctx context.Context, policy, identifier string) (*models.Result, error)
}

// Auditor records security events. Satisfied by the audit service.
type Auditor interface {
	Record(ctx context.Context, eventType audit.EventType, subjectUserID string, details map[string]any, severity audit.Severity) (*audit.SecurityEvent, error)
}

// Service is the message send pipeline.
type Service struct {
	store   Store
	keys    KeyDirectory
	pool    *envelope.Pool
	scorer  *risk.Scorer
	limiter Limiter
	auditor Auditor
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
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

// WithLimiter throttles sends per sender.
func WithLimiter(l Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

// WithAuditor routes suspicious verdicts into the audit trail.
func WithAuditor(a Auditor) Option {
	return func(s *Service) { s.auditor = a }
}

// New creates the messaging service.
func New(store Store, keys KeyDirectory, pool *envelope.Pool, scorer *risk.Scorer, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("message store is required")
	}
	if keys == nil {
		return nil, errors.New("key directory is required")
	}
	if pool == nil {
		return nil, errors.New("crypto pool is required")
	}
	if scorer == nil {
		return nil, errors.New("risk scorer is required")
	}
	svc := &Service{
		store:  store,
		keys:   keys,
		pool:   pool,
		scorer: scorer,
		tracer: otel.Tracer("aegis/messaging"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Send runs the pipeline: admission, scoring, escalation, encryption,
// persistence. Plaintext is scored and encrypted but never returned or
// stored. A suspicious verdict that cannot be audited fails the send.
func (s *Service) Send(ctx context.Context, senderID, recipientID string, kind Kind, plaintext string) (*SendResult, error) {
	ctx, span := s.tracer.Start(ctx, "messaging.Send",
		trace.WithAttributes(attribute.String("message.kind", string(kind))))
	defer span.End()

	if senderID == "" || recipientID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "sender and recipient are required")
	}
	if !kind.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown message kind %q", kind)
	}
	if strings.TrimSpace(plaintext) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "message content is required")
	}

	if s.limiter != nil {
		result, err := s.limiter.Admit(ctx, models.PolicyMessages, senderID)
		if err != nil {
			return nil, err
		}
		if !result.Allowed {
			s.record(ctx, audit.EventRateLimitExceeded, senderID,
				map[string]any{"policy": models.PolicyMessages, "retry_after": result.RetryAfter},
				audit.SeverityInfo, false)
			return nil, dErrors.Newf(dErrors.CodeRateLimited, "message rate limit exceeded, retry in %ds", result.RetryAfter)
		}
	}

	assessment := s.scorer.Score(plaintext)
	if s.metrics != nil {
		s.metrics.MessagesScored.Inc()
		if assessment.Suspicious {
			s.metrics.MessagesFlagged.Inc()
		}
	}
	span.SetAttributes(
		attribute.Int("risk.score", assessment.Score),
		attribute.Bool("risk.flagged", assessment.Suspicious),
	)

	if assessment.Suspicious {
		eventType, severity := classify(assessment.Flags)
		if err := s.record(ctx, eventType, senderID, map[string]any{
			"recipient_id":    recipientID,
			"suspicion_score": assessment.Score,
			"flags":           assessment.Flags,
		}, severity, true); err != nil {
			return nil, err
		}
	}

	publicPEM, err := s.keys.PublicKey(ctx, recipientID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "recipient has no registered public key")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve recipient key")
	}

	sealed, err := s.pool.Encrypt(ctx, []byte(plaintext), publicPEM)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeCryptoFailure, "failed to encrypt message")
	}

	msg := &Message{
		ID:          uuid.NewString(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Kind:        kind,
		Envelope:    sealed,
		Score:       assessment.Score,
		Flags:       assessment.Flags,
		Flagged:     assessment.Suspicious,
		CreatedAt:   requestcontext.Now(ctx),
	}
	if err := s.store.Save(ctx, msg); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save message")
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "message sent",
			"message_id", msg.ID,
			"sender_id", senderID,
			"recipient_id", recipientID,
			"suspicion_score", assessment.Score,
			"flagged", assessment.Suspicious,
		)
	}
	return &SendResult{
		MessageID: msg.ID,
		Score:     assessment.Score,
		Flags:     assessment.Flags,
		Flagged:   assessment.Suspicious,
	}, nil
}

// Delete soft-deletes a message. Only the sender may delete; the moderation
// verdict survives deletion.
func (s *Service) Delete(ctx context.Context, messageID, requesterID string) error {
	msg, err := s.store.Get(ctx, messageID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "message %s not found", messageID)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load message")
	}
	if msg.SenderID != requesterID {
		return dErrors.New(dErrors.CodeForbidden, "only the sender can delete a message")
	}
	if msg.Deleted() {
		return dErrors.New(dErrors.CodeConflict, "message is already deleted")
	}
	if err := s.store.SoftDelete(ctx, messageID, requestcontext.Now(ctx)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete message")
	}
	return nil
}

// Conversation lists the non-deleted messages between two users.
func (s *Service) Conversation(ctx context.Context, userA, userB string) ([]*Message, error) {
	return s.store.ListConversation(ctx, userA, userB)
}

// record writes an audit event; when required is true a failure fails the
// caller instead of being logged away.
func (s *Service) record(ctx context.Context, eventType audit.EventType, subjectID string, details map[string]any, severity audit.Severity, required bool) error {
	if s.auditor == nil {
		return nil
	}
	_, err := s.auditor.Record(ctx, eventType, subjectID, details, severity)
	if err == nil {
		return nil
	}
	if required {
		return err
	}
	if s.logger != nil {
		s.logger.WarnContext(ctx, "audit record failed", "error", err)
	}
	return nil
}

// classify maps a suspicious assessment to its audit event. A grooming
// pattern escalates; everything else is a warning-level observation.
func classify(flags []string) (audit.EventType, audit.Severity) {
	for _, f := range flags {
		if strings.HasPrefix(f, "grooming_pattern:") {
			return audit.EventGroomingDetected, audit.SeverityHigh
		}
	}
	return audit.EventSuspiciousMessage, audit.SeverityWarning
}
