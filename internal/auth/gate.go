package auth

import (
	"context"

	"aegis/internal/verification"
	dErrors "aegis/pkg/domain-errors"
)

// Denial reasons. Callers and clients must be able to tell which facet is
// missing.
const (
	ReasonAgeRequired  = "age verification required"
	ReasonCertRequired = "certification verification required"
)

// StatusProvider reads a user's derived verification state. Satisfied by the
// verification service.
type StatusProvider interface {
	Status(ctx context.Context, userID string, role verification.Role) (*verification.StatusView, error)
}

// Gate decides whether a user's verification state permits login.
type Gate struct {
	status StatusProvider
}

// NewGate creates the login gate.
func NewGate(status StatusProvider) *Gate {
	return &Gate{status: status}
}

// Authorize rejects any enthusiast without age verification and any trainer
// without both age and certification verification. The returned error carries
// a reason naming the missing facet.
func (g *Gate) Authorize(ctx context.Context, userID string, role verification.Role) error {
	view, err := g.status.Status(ctx, userID, role)
	if err != nil {
		return err
	}
	if !view.AgeVerified {
		return dErrors.New(dErrors.CodeForbidden, ReasonAgeRequired)
	}
	if role.RequiresCertification() && !view.CertVerified {
		return dErrors.New(dErrors.CodeForbidden, ReasonCertRequired)
	}
	return nil
}
