// Package verification tracks per-user identity and credential verification
// progress. The overall status is always derived from the record's facets and
// the user's role, never stored, so it cannot drift from the underlying
// booleans.
package verification

import "time"

// Role determines which verification facets a user must clear.
type Role string

const (
	RoleEnthusiast Role = "enthusiast"
	RoleTrainer    Role = "trainer"
)

// IsValid reports whether the role is a recognized value.
func (r Role) IsValid() bool {
	return r == RoleEnthusiast || r == RoleTrainer
}

// RequiresCertification reports whether the role must also clear the
// certification facet.
func (r Role) RequiresCertification() bool {
	return r == RoleTrainer
}

// CertType is a recognized certifying body. Anything outside this set is
// rejected before the document is even looked at.
type CertType string

const (
	CertNASM CertType = "NASM"
	CertACSM CertType = "ACSM"
	CertACE  CertType = "ACE"
	CertNSCA CertType = "NSCA"
	CertISSA CertType = "ISSA"
	CertNCSF CertType = "NCSF"
)

// IsValid reports whether the certification type is recognized.
func (c CertType) IsValid() bool {
	switch c {
	case CertNASM, CertACSM, CertACE, CertNSCA, CertISSA, CertNCSF:
		return true
	}
	return false
}

// Status is the derived overall verification state.
type Status string

const (
	StatusIDRequired    Status = "id_required"
	StatusAgeVerified   Status = "age_verified"
	StatusPendingCert   Status = "pending_cert"
	StatusCertRejected  Status = "cert_rejected"
	StatusFullyVerified Status = "fully_verified"
)

// Age bounds for identity verification, inclusive.
const (
	MinAge = 18
	MaxAge = 80
)

// OutcomeStatus is the terminal result of one submission.
type OutcomeStatus string

const (
	OutcomeApproved OutcomeStatus = "approved"
	OutcomeRejected OutcomeStatus = "rejected"
)

// IdentityDocument is the subject's proof of identity as submitted.
type IdentityDocument struct {
	Type        string    `json:"document_type" validate:"required"`
	Number      string    `json:"document_number" validate:"required"`
	DateOfBirth time.Time `json:"date_of_birth" validate:"required"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// CertificationDocument is the submitted proof of a professional credential.
type CertificationDocument struct {
	Number   string    `json:"document_number" validate:"required"`
	IssuedAt time.Time `json:"issued_at"`
}

// IdentityOutcome is the result of an identity submission.
type IdentityOutcome struct {
	Status          OutcomeStatus `json:"status"`
	AgeVerified     bool          `json:"age_verified"`
	Age             int           `json:"age,omitempty"`
	RejectionReason string        `json:"rejection_reason,omitempty"`
}

// CertificationOutcome is the result of a certification submission.
type CertificationOutcome struct {
	Status          OutcomeStatus `json:"status"`
	CertVerified    bool          `json:"cert_verified"`
	Expiry          time.Time     `json:"expiry_date,omitzero"`
	RejectionReason string        `json:"rejection_reason,omitempty"`
}

// Record is one user's verification state. OverallStatus is computed on
// demand; only the facet booleans and their evidence are persisted.
type Record struct {
	UserID          string    `json:"user_id"`
	AgeVerified     bool      `json:"age_verified"`
	CertVerified    bool      `json:"cert_verified"`
	CertSubmitted   bool      `json:"cert_submitted"`
	CertType        CertType  `json:"cert_type,omitempty"`
	CertExpiry      time.Time `json:"cert_expiry,omitzero"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// OverallStatus derives the single summary state from the record's facets and
// the subject's role.
func (r *Record) OverallStatus(role Role) Status {
	if r == nil || !r.AgeVerified {
		return StatusIDRequired
	}
	if !role.RequiresCertification() {
		return StatusAgeVerified
	}
	switch {
	case r.CertVerified:
		return StatusFullyVerified
	case r.CertSubmitted:
		return StatusCertRejected
	default:
		return StatusPendingCert
	}
}

// StatusView is the read model returned by the status query.
type StatusView struct {
	UserID                string `json:"user_id"`
	AgeVerified           bool   `json:"age_verified"`
	CertVerified          bool   `json:"cert_verified"`
	OverallStatus         Status `json:"overall_status"`
	RequiresCertification bool   `json:"requires_certification"`
}
