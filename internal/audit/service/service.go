// Package service is the single point through which detector verdicts become
// actionable: every producer (scorer, verification, login gate) records here
// and nothing may bypass it. A HIGH or CRITICAL event and its review task are
// one logical transaction; losing either is a safety regression, so persist
// failures are retried with backoff and surfaced as an operational alarm when
// exhausted.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"aegis/internal/audit"
	"aegis/internal/platform/metrics"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/requestcontext"
	"aegis/pkg/sentinel"
)

// Store persists events and review tasks. Append must be atomic across both
// arguments.
type Store interface {
	Append(ctx context.Context, event *audit.SecurityEvent, task *audit.ReviewTask) error
	ListBySubject(ctx context.Context, userID string) ([]*audit.SecurityEvent, error)
	ListOpenTasks(ctx context.Context) ([]*audit.ReviewTask, error)
	GetTask(ctx context.Context, id string) (*audit.ReviewTask, error)
	UpdateTask(ctx context.Context, task *audit.ReviewTask) error
}

// Publisher fans escalated events out to external monitoring. Best-effort.
type Publisher interface {
	Publish(ctx context.Context, event *audit.SecurityEvent) error
}

// Service records security events and manages their review tasks.
type Service struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics

	maxRetries  uint64
	baseBackoff time.Duration
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

// WithPublisher sets the SIEM fan-out publisher.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithRetry overrides the persist retry policy (mainly for tests).
func WithRetry(maxRetries uint64, baseBackoff time.Duration) Option {
	return func(s *Service) {
		s.maxRetries = maxRetries
		s.baseBackoff = baseBackoff
	}
}

// New creates the audit service.
func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("audit store is required")
	}
	svc := &Service{
		store:       store,
		maxRetries:  3,
		baseBackoff: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Record persists a security event; HIGH/CRITICAL severity also creates
// exactly one pending review task in the same store transaction. Returns the
// immutable event on success, CodeEscalationFailure after retries exhaust.
func (s *Service) Record(ctx context.Context, eventType audit.EventType, subjectUserID string, details map[string]any, severity audit.Severity) (*audit.SecurityEvent, error) {
	if !severity.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown severity %q", severity)
	}
	if subjectUserID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject user id is required")
	}

	now := requestcontext.Now(ctx)
	event := &audit.SecurityEvent{
		ID:            uuid.NewString(),
		Type:          eventType,
		SubjectUserID: subjectUserID,
		Details:       details,
		Severity:      severity,
		Timestamp:     now,
	}

	var task *audit.ReviewTask
	if severity.Escalates() {
		task = &audit.ReviewTask{
			ID:            uuid.NewString(),
			EventID:       event.ID,
			SubjectUserID: subjectUserID,
			Reason:        string(eventType),
			Priority:      audit.PriorityFor(eventType),
			Status:        audit.TaskPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}

	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.baseBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.store.Append(ctx, event, task); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		// Alarm: a safety event could not be made durable. This must never
		// be swallowed, even under backpressure.
		if s.metrics != nil {
			s.metrics.EscalationAlarms.Inc()
		}
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "ALARM: security event persistence failed after retries",
				"event_type", eventType,
				"subject_user_id", subjectUserID,
				"severity", severity,
				"error", err,
			)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeEscalationFailure, "security event could not be persisted")
	}

	if s.metrics != nil {
		s.metrics.EventsRecorded.WithLabelValues(string(severity)).Inc()
		if task != nil {
			s.metrics.ReviewTasksCreated.Inc()
		}
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "security event recorded",
			"event_id", event.ID,
			"event_type", eventType,
			"subject_user_id", subjectUserID,
			"severity", severity,
			"escalated", task != nil,
			"log_type", "audit",
		)
	}

	if s.publisher != nil && severity.Escalates() {
		if err := s.publisher.Publish(ctx, event); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "siem fan-out failed", "event_id", event.ID, "error", err)
		}
	}

	return event, nil
}

// ListBySubject returns the audit trail for one subject user.
func (s *Service) ListBySubject(ctx context.Context, userID string) ([]*audit.SecurityEvent, error) {
	return s.store.ListBySubject(ctx, userID)
}

// ListOpenTasks returns the unresolved review queue.
func (s *Service) ListOpenTasks(ctx context.Context) ([]*audit.ReviewTask, error) {
	return s.store.ListOpenTasks(ctx)
}

// AssignTask moves a pending task to in_review for a named reviewer.
func (s *Service) AssignTask(ctx context.Context, taskID, reviewer string) (*audit.ReviewTask, error) {
	if reviewer == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "reviewer is required")
	}
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != audit.TaskPending {
		return nil, dErrors.Newf(dErrors.CodeConflict, "task is %s, only pending tasks can be assigned", task.Status)
	}
	task.Status = audit.TaskInReview
	task.AssignedReviewer = reviewer
	task.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to assign task")
	}
	return task, nil
}

// ResolveTask closes a task with the reviewer's resolution.
func (s *Service) ResolveTask(ctx context.Context, taskID, resolution string) (*audit.ReviewTask, error) {
	if resolution == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "resolution is required")
	}
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status == audit.TaskResolved {
		return nil, dErrors.New(dErrors.CodeConflict, "task is already resolved")
	}
	task.Status = audit.TaskResolved
	task.Resolution = resolution
	task.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve task")
	}
	return task, nil
}

func (s *Service) getTask(ctx context.Context, taskID string) (*audit.ReviewTask, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "review task %s not found", taskID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load task")
	}
	return task, nil
}
