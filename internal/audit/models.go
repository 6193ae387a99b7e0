// Package audit defines the security event trail and its escalation records.
// Events are immutable once recorded; review tasks are the only mutable
// follow-up, and only reviewer actors resolve them.
package audit

import "time"

// Severity classifies a security event. HIGH and CRITICAL events demand a
// manual review task.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// IsValid checks the severity is one of the supported enum values.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Escalates reports whether events of this severity require a review task.
func (s Severity) Escalates() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// EventType names what a detector observed.
type EventType string

const (
	EventGroomingDetected      EventType = "grooming_detected"
	EventSuspiciousMessage     EventType = "suspicious_message"
	EventFakeID                EventType = "fake_id"
	EventVerificationRejected  EventType = "verification_rejected"
	EventCertificationRejected EventType = "certification_rejected"
	EventLoginBlocked          EventType = "login_blocked"
	EventRateLimitExceeded     EventType = "rate_limit_exceeded"
)

// InvestigationStatus is derived from severity, never stored independently.
type InvestigationStatus string

const (
	InvestigationPending InvestigationStatus = "pending"
	InvestigationClosed  InvestigationStatus = "closed"
)

// SecurityEvent is one entry in the audit trail. Created once by any detector
// component, immutable thereafter.
type SecurityEvent struct {
	ID            string         `json:"id"`
	Type          EventType      `json:"event_type"`
	SubjectUserID string         `json:"subject_user_id"`
	Details       map[string]any `json:"details,omitempty"`
	Severity      Severity       `json:"severity"`
	Timestamp     time.Time      `json:"timestamp"`
}

// InvestigationStatus derives the investigation state from severity.
func (e *SecurityEvent) InvestigationStatus() InvestigationStatus {
	if e.Severity.Escalates() {
		return InvestigationPending
	}
	return InvestigationClosed
}

// TaskPriority orders the review queue.
type TaskPriority string

const (
	PriorityHigh   TaskPriority = "high"
	PriorityMedium TaskPriority = "medium"
)

// PriorityFor maps an event type to its review priority: child-safety and
// identity-fraud signals jump the queue.
func PriorityFor(t EventType) TaskPriority {
	if t == EventGroomingDetected || t == EventFakeID {
		return PriorityHigh
	}
	return PriorityMedium
}

// TaskStatus tracks a review task through its lifecycle.
type TaskStatus string

const (
	TaskPending  TaskStatus = "pending"
	TaskInReview TaskStatus = "in_review"
	TaskResolved TaskStatus = "resolved"
)

// ReviewTask is a human-actionable record created automatically for
// high-severity events and resolved exclusively by an external reviewer.
type ReviewTask struct {
	ID               string       `json:"id"`
	EventID          string       `json:"event_id"`
	SubjectUserID    string       `json:"subject_user_id"`
	Reason           string       `json:"reason"`
	Priority         TaskPriority `json:"priority"`
	Status           TaskStatus   `json:"status"`
	AssignedReviewer string       `json:"assigned_reviewer,omitempty"`
	Resolution       string       `json:"resolution,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}
