// Package verifier provides the built-in document verifier. It applies
// deterministic structural checks only; a production deployment swaps in an
// OCR or registry-backed implementation behind the same interface.
package verifier

import (
	"context"
	"strings"
	"time"

	"aegis/internal/verification"
	"aegis/pkg/requestcontext"
)

// Certifications are treated as current for two years from issue.
const certValidity = 2 * 365 * 24 * time.Hour

// Static evaluates documents by structure alone.
type Static struct{}

// NewStatic creates the built-in verifier.
func NewStatic() *Static {
	return &Static{}
}

// VerifyIdentity checks the document for the structural failure modes the
// pipeline must handle: a missing number, a known-forged number pattern, and
// expiry.
func (v *Static) VerifyIdentity(ctx context.Context, doc verification.IdentityDocument) (verification.IdentityCheck, error) {
	if err := ctx.Err(); err != nil {
		return verification.IdentityCheck{}, err
	}
	if strings.TrimSpace(doc.Number) == "" {
		return verification.IdentityCheck{Reason: "document number missing"}, nil
	}
	if looksForged(doc.Number) {
		return verification.IdentityCheck{Forged: true, Reason: "document appears forged"}, nil
	}
	if !doc.ExpiresAt.IsZero() && doc.ExpiresAt.Before(requestcontext.Now(ctx)) {
		return verification.IdentityCheck{Reason: "document expired"}, nil
	}
	return verification.IdentityCheck{Valid: true}, nil
}

// VerifyCertification checks the credential and, when valid, assigns its
// expiry from the issue date.
func (v *Static) VerifyCertification(ctx context.Context, _ verification.CertType, doc verification.CertificationDocument) (verification.CertificationCheck, error) {
	if err := ctx.Err(); err != nil {
		return verification.CertificationCheck{}, err
	}
	if strings.TrimSpace(doc.Number) == "" {
		return verification.CertificationCheck{Reason: "certificate number missing"}, nil
	}
	if looksForged(doc.Number) {
		return verification.CertificationCheck{Reason: "certificate appears forged"}, nil
	}
	issued := doc.IssuedAt
	if issued.IsZero() {
		issued = requestcontext.Now(ctx)
	}
	expiry := issued.Add(certValidity)
	if expiry.Before(requestcontext.Now(ctx)) {
		return verification.CertificationCheck{Reason: "certificate expired"}, nil
	}
	return verification.CertificationCheck{Valid: true, Expiry: expiry}, nil
}

func looksForged(number string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(number)), "FAKE")
}
