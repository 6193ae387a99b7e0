package messaging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"aegis/internal/crypto/envelope"
	dErrors "aegis/pkg/domain-errors"
)

func TestKeyServiceProvision(t *testing.T) {
	keystore, err := envelope.NewKeystore("test-master-seed")
	require.NoError(t, err)
	registry := NewInMemoryKeyRegistry()
	svc, err := NewKeyService(registry, keystore)
	require.NoError(t, err)

	ctx := context.Background()
	material, err := svc.Provision(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "alice", material.UserID)
	require.NotEmpty(t, material.PublicPEM)
	require.NotEmpty(t, material.SealedPrivatePEM)

	// The registry serves the public half for encryption.
	pubPEM, err := registry.PublicKey(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, material.PublicPEM, pubPEM)

	// The sealed private half opens back to a usable key.
	privatePEM, err := keystore.Open(material.SealedPrivatePEM)
	require.NoError(t, err)
	require.NotContains(t, material.SealedPrivatePEM, privatePEM)

	pool := envelope.NewPool(1)
	sealed, err := pool.Encrypt(ctx, []byte("round trip through provisioned keys"), material.PublicPEM)
	require.NoError(t, err)
	recovered, err := pool.Decrypt(ctx, sealed, privatePEM)
	require.NoError(t, err)
	require.Equal(t, "round trip through provisioned keys", string(recovered))
}

func TestKeyServiceProvisionValidation(t *testing.T) {
	keystore, err := envelope.NewKeystore("test-master-seed")
	require.NoError(t, err)
	svc, err := NewKeyService(NewInMemoryKeyRegistry(), keystore)
	require.NoError(t, err)

	_, err = svc.Provision(context.Background(), "")
	require.Error(t, err)
	require.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
