package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// keystoreSalt versions the key derivation; bump it when parameters change.
var keystoreSalt = []byte("aegis-keystore-v1")

// Keystore seals private key material for persistence. Private keys are never
// stored unencrypted: the PEM is wrapped with AES-GCM under an argon2id key
// derived from the configured master seed.
type Keystore struct {
	aead cipher.AEAD
}

// NewKeystore derives the sealing key from the master seed.
func NewKeystore(masterSeed string) (*Keystore, error) {
	if masterSeed == "" {
		return nil, fmt.Errorf("master seed is required")
	}
	key := argon2.IDKey([]byte(masterSeed), keystoreSalt, 1, 64*1024, 4, 32)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return &Keystore{aead: aead}, nil
}

// Seal encrypts a private key PEM for storage. Output is base64(nonce||ct).
func (k *Keystore) Seal(privatePEM string) (string, error) {
	nonce := make([]byte, k.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := k.aead.Seal(nonce, nonce, []byte(privatePEM), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a sealed private key PEM.
func (k *Keystore) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: base64: %v", ErrMalformedEnvelope, err)
	}
	ns := k.aead.NonceSize()
	if len(raw) < ns {
		return "", fmt.Errorf("%w: sealed key too short", ErrMalformedEnvelope)
	}
	pt, err := k.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: keystore open: %v", ErrCipherFailure, err)
	}
	return string(pt), nil
}
