package models

import "time"

// Result represents the outcome of an admission check.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// Policy names a sliding-window limit. The same store serves every policy;
// keys are namespaced per policy so heterogeneous identifiers (IPs, user IDs,
// action types) never interfere.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Policy names used across the engine.
const (
	PolicyLogin        = "login"
	PolicyRegistration = "registration"
	PolicyMessages     = "messages"
)
