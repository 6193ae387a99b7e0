package messaging

import (
	"context"
	"errors"

	"aegis/internal/crypto/envelope"
	dErrors "aegis/pkg/domain-errors"
)

// KeyRegistrar accepts public keys for the directory.
type KeyRegistrar interface {
	KeyDirectory
	Register(ctx context.Context, userID, publicPEM string) error
}

// KeyMaterial is what provisioning hands back to the caller. The private key
// is sealed under the master seed; the plaintext PEM never leaves the call.
type KeyMaterial struct {
	UserID           string `json:"user_id"`
	PublicPEM        string `json:"public_key"`
	SealedPrivatePEM string `json:"sealed_private_key"`
}

// KeyService provisions per-user encryption key pairs.
type KeyService struct {
	registry KeyRegistrar
	keystore *envelope.Keystore
}

// NewKeyService creates the key provisioning service.
func NewKeyService(registry KeyRegistrar, keystore *envelope.Keystore) (*KeyService, error) {
	if registry == nil {
		return nil, errors.New("key registry is required")
	}
	if keystore == nil {
		return nil, errors.New("keystore is required")
	}
	return &KeyService{registry: registry, keystore: keystore}, nil
}

// Provision generates a key pair for a user, registers the public half, and
// returns the private half sealed at rest.
func (s *KeyService) Provision(ctx context.Context, userID string) (*KeyMaterial, error) {
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}

	pair, err := envelope.GenerateKeyPair()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeCryptoFailure, "key generation failed")
	}
	publicPEM, err := pair.PublicPEM()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeCryptoFailure, "public key encoding failed")
	}
	privatePEM, err := pair.PrivatePEM()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeCryptoFailure, "private key encoding failed")
	}
	sealed, err := s.keystore.Seal(privatePEM)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeCryptoFailure, "private key sealing failed")
	}

	if err := s.registry.Register(ctx, userID, publicPEM); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register public key")
	}
	return &KeyMaterial{
		UserID:           userID,
		PublicPEM:        publicPEM,
		SealedPrivatePEM: sealed,
	}, nil
}
