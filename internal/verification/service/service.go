// Package service runs the verification state machine: it evaluates identity
// and certification submissions, persists the per-user record, and routes
// rejections into the audit trail.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"aegis/internal/audit"
	"aegis/internal/platform/metrics"
	"aegis/internal/verification"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/requestcontext"
	"aegis/pkg/sentinel"
)

const defaultVerifierTimeout = 10 * time.Second

// Store persists verification records.
type Store interface {
	Get(ctx context.Context, userID string) (*verification.Record, error)
	Save(ctx context.Context, record *verification.Record) error
}

// Auditor records security events. Satisfied by the audit service.
type Auditor interface {
	Record(ctx context.Context, eventType audit.EventType, subjectUserID string, details map[string]any, severity audit.Severity) (*audit.SecurityEvent, error)
}

// Service evaluates verification submissions.
type Service struct {
	store    Store
	verifier verification.DocumentVerifier
	auditor  Auditor
	logger   *slog.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration
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

// WithAuditor routes rejections into the audit trail.
func WithAuditor(a Auditor) Option {
	return func(s *Service) { s.auditor = a }
}

// WithTimeout bounds each document verifier call.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates the verification service.
func New(store Store, verifier verification.DocumentVerifier, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("verification store is required")
	}
	if verifier == nil {
		return nil, errors.New("document verifier is required")
	}
	svc := &Service{
		store:    store,
		verifier: verifier,
		timeout:  defaultVerifierTimeout,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// SubmitIdentityDocument evaluates an identity document. Age must fall within
// the allowed bounds before the document itself is examined. A forged
// document escalates as a fake_id event; every rejection leaves an audit
// trace.
func (s *Service) SubmitIdentityDocument(ctx context.Context, userID string, doc verification.IdentityDocument) (*verification.IdentityOutcome, error) {
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	if doc.DateOfBirth.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "date of birth is required")
	}

	now := requestcontext.Now(ctx)
	age := ageAt(doc.DateOfBirth, now)

	if age < verification.MinAge {
		return s.rejectIdentity(ctx, userID, age, "under minimum age")
	}
	if age > verification.MaxAge {
		return s.rejectIdentity(ctx, userID, age, "over maximum age")
	}

	check, err := s.checkIdentity(ctx, doc)
	if err != nil {
		return nil, err
	}

	if check.Forged {
		// Forgery is an attack signal, not a paperwork problem.
		if _, aerr := s.record(ctx, audit.EventFakeID, userID,
			map[string]any{"reason": check.Reason, "document_type": doc.Type},
			audit.SeverityHigh); aerr != nil {
			return nil, aerr
		}
		return s.rejectIdentity(ctx, userID, age, check.Reason)
	}
	if !check.Valid {
		return s.rejectIdentity(ctx, userID, age, check.Reason)
	}

	rec, err := s.load(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	rec.AgeVerified = true
	rec.RejectionReason = ""
	rec.UpdatedAt = now
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save verification record")
	}

	s.observe(ctx, "identity", verification.OutcomeApproved, userID, "")
	return &verification.IdentityOutcome{
		Status:      verification.OutcomeApproved,
		AgeVerified: true,
		Age:         age,
	}, nil
}

// SubmitCertification evaluates a professional credential. An unrecognized
// certification type is rejected before the document is looked at.
func (s *Service) SubmitCertification(ctx context.Context, userID string, certType verification.CertType, doc verification.CertificationDocument) (*verification.CertificationOutcome, error) {
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}

	if !certType.IsValid() {
		return s.rejectCertification(ctx, userID, "type not recognized")
	}

	check, err := s.checkCertification(ctx, certType, doc)
	if err != nil {
		return nil, err
	}
	if !check.Valid {
		return s.rejectCertification(ctx, userID, check.Reason)
	}

	now := requestcontext.Now(ctx)
	rec, err := s.load(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	rec.CertSubmitted = true
	rec.CertVerified = true
	rec.CertType = certType
	rec.CertExpiry = check.Expiry
	rec.RejectionReason = ""
	rec.UpdatedAt = now
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save verification record")
	}

	s.observe(ctx, "certification", verification.OutcomeApproved, userID, "")
	return &verification.CertificationOutcome{
		Status:       verification.OutcomeApproved,
		CertVerified: true,
		Expiry:       check.Expiry,
	}, nil
}

// Status derives the read model for one user. Users with no record yet are
// reported as id_required, not as an error.
func (s *Service) Status(ctx context.Context, userID string, role verification.Role) (*verification.StatusView, error) {
	if !role.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown role %q", role)
	}
	rec, err := s.store.Get(ctx, userID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification record")
	}
	view := &verification.StatusView{
		UserID:                userID,
		OverallStatus:         rec.OverallStatus(role),
		RequiresCertification: role.RequiresCertification(),
	}
	if rec != nil {
		view.AgeVerified = rec.AgeVerified
		view.CertVerified = rec.CertVerified
	}
	return view, nil
}

// checkIdentity bounds the verifier call; a deadline resolves to a rejection,
// never a stuck record.
func (s *Service) checkIdentity(ctx context.Context, doc verification.IdentityDocument) (verification.IdentityCheck, error) {
	vctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	check, err := s.verifier.VerifyIdentity(vctx, doc)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return verification.IdentityCheck{Reason: "verification timed out"}, nil
		}
		return verification.IdentityCheck{}, dErrors.Wrap(err, dErrors.CodeInternal, "document verifier failed")
	}
	return check, nil
}

func (s *Service) checkCertification(ctx context.Context, certType verification.CertType, doc verification.CertificationDocument) (verification.CertificationCheck, error) {
	vctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	check, err := s.verifier.VerifyCertification(vctx, certType, doc)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return verification.CertificationCheck{Reason: "verification timed out"}, nil
		}
		return verification.CertificationCheck{}, dErrors.Wrap(err, dErrors.CodeInternal, "document verifier failed")
	}
	return check, nil
}

func (s *Service) rejectIdentity(ctx context.Context, userID string, age int, reason string) (*verification.IdentityOutcome, error) {
	now := requestcontext.Now(ctx)
	rec, err := s.load(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	rec.AgeVerified = false
	rec.RejectionReason = reason
	rec.UpdatedAt = now
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save verification record")
	}

	s.observe(ctx, "identity", verification.OutcomeRejected, userID, reason)
	if _, err := s.record(ctx, audit.EventVerificationRejected, userID,
		map[string]any{"reason": reason}, audit.SeverityWarning); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "audit record failed", "error", err)
	}
	return &verification.IdentityOutcome{
		Status:          verification.OutcomeRejected,
		Age:             age,
		RejectionReason: reason,
	}, nil
}

func (s *Service) rejectCertification(ctx context.Context, userID, reason string) (*verification.CertificationOutcome, error) {
	now := requestcontext.Now(ctx)
	rec, err := s.load(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	rec.CertSubmitted = true
	rec.CertVerified = false
	rec.CertType = ""
	rec.RejectionReason = reason
	rec.UpdatedAt = now
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save verification record")
	}

	s.observe(ctx, "certification", verification.OutcomeRejected, userID, reason)
	if _, err := s.record(ctx, audit.EventCertificationRejected, userID,
		map[string]any{"reason": reason}, audit.SeverityWarning); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "audit record failed", "error", err)
	}
	return &verification.CertificationOutcome{
		Status:          verification.OutcomeRejected,
		RejectionReason: reason,
	}, nil
}

// load returns the user's record, creating an empty one on first submission.
func (s *Service) load(ctx context.Context, userID string, now time.Time) (*verification.Record, error) {
	rec, err := s.store.Get(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return &verification.Record{UserID: userID, CreatedAt: now}, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification record")
	}
	return rec, nil
}

func (s *Service) record(ctx context.Context, eventType audit.EventType, userID string, details map[string]any, severity audit.Severity) (*audit.SecurityEvent, error) {
	if s.auditor == nil {
		return nil, nil
	}
	return s.auditor.Record(ctx, eventType, userID, details, severity)
}

func (s *Service) observe(ctx context.Context, facet string, status verification.OutcomeStatus, userID, reason string) {
	if s.metrics != nil {
		s.metrics.VerificationResults.WithLabelValues(facet, string(status)).Inc()
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "verification submission evaluated",
			"facet", facet,
			"status", status,
			"user_id", userID,
			"reason", reason,
			"log_type", "audit",
		)
	}
}

// ageAt is the subject's age in whole years at the reference time.
func ageAt(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if dob.AddDate(age, 0, 0).After(now) {
		age--
	}
	return age
}
