package verification

import (
	"context"
	"time"
)

// IdentityCheck is a document verifier's judgement on an identity document.
// Forged implies invalid and is escalated separately from ordinary rejections.
type IdentityCheck struct {
	Valid  bool
	Forged bool
	Reason string
}

// CertificationCheck is a document verifier's judgement on a credential.
type CertificationCheck struct {
	Valid  bool
	Expiry time.Time
	Reason string
}

// DocumentVerifier is the external document evaluation contract (OCR,
// liveness, registry lookups). Implementations may be slow; callers bound
// every call with a timeout.
type DocumentVerifier interface {
	VerifyIdentity(ctx context.Context, doc IdentityDocument) (IdentityCheck, error)
	VerifyCertification(ctx context.Context, certType CertType, doc CertificationDocument) (CertificationCheck, error)
}
