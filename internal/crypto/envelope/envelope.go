// Package envelope implements hybrid asymmetric/symmetric message encryption.
//
// Plaintexts up to the RSA-OAEP capacity of a 2048-bit key (190 bytes with
// SHA-256) are encrypted directly with the recipient's public key. Larger
// plaintexts get a fresh AES-256 key, are sealed with AES-GCM, and only the
// symmetric key is RSA-wrapped. The serialized envelope carries an explicit
// mode tag; decryption dispatches on the tag, never by attempting one
// interpretation and falling back on failure, so corrupted hybrid data can
// never be misread as a raw asymmetric blob.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Envelope modes. The tag is part of the stored form.
const (
	ModeDirect = "direct"
	ModeHybrid = "hybrid"
)

// directCapacity is the largest plaintext a 2048-bit RSA-OAEP-SHA256 block
// can carry: 256 - 2*32 - 2.
const directCapacity = 190

const symmetricKeySize = 32

// Envelope is the self-describing container for an encrypted message. All
// byte fields are base64 in the serialized JSON form.
type Envelope struct {
	Version int    `json:"v"`
	Mode    string `json:"mode"`
	// Ciphertext is the RSA-OAEP block for direct mode, or the AES-GCM
	// payload for hybrid mode.
	Ciphertext []byte `json:"ciphertext"`
	// EncryptedKey and Nonce are set in hybrid mode only.
	EncryptedKey []byte `json:"encrypted_key,omitempty"`
	Nonce        []byte `json:"nonce,omitempty"`
}

// Encrypt seals plaintext for the recipient. The mode is chosen from the
// plaintext size alone so the round-trip boundary sits exactly at the OAEP
// capacity.
func Encrypt(plaintext []byte, pub *rsa.PublicKey) (*Envelope, error) {
	if len(plaintext) <= directCapacity {
		ct, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, plaintext, nil)
		if err != nil {
			return nil, fmt.Errorf("oaep encrypt: %w", err)
		}
		return &Envelope{Version: 1, Mode: ModeDirect, Ciphertext: ct}, nil
	}

	key := make([]byte, symmetricKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate symmetric key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	ct := aead.Seal(nil, nonce, plaintext, nil)

	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, key, nil)
	if err != nil {
		return nil, fmt.Errorf("wrap symmetric key: %w", err)
	}

	return &Envelope{
		Version:      1,
		Mode:         ModeHybrid,
		Ciphertext:   ct,
		EncryptedKey: wrapped,
		Nonce:        nonce,
	}, nil
}

// Decrypt recovers the exact original plaintext from an envelope. Dispatch is
// by the mode tag; every failure maps to one of the three sentinel errors.
func Decrypt(env *Envelope, priv *rsa.PrivateKey) ([]byte, error) {
	if env == nil {
		return nil, fmt.Errorf("%w: nil envelope", ErrMalformedEnvelope)
	}

	switch env.Mode {
	case ModeDirect:
		if env.EncryptedKey != nil || env.Nonce != nil {
			return nil, fmt.Errorf("%w: direct envelope carries hybrid fields", ErrMalformedEnvelope)
		}
		pt, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, env.Ciphertext, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: oaep decrypt: %v", ErrKeyMismatch, err)
		}
		return pt, nil

	case ModeHybrid:
		if len(env.EncryptedKey) == 0 || len(env.Nonce) == 0 {
			return nil, fmt.Errorf("%w: hybrid envelope missing key or nonce", ErrMalformedEnvelope)
		}
		key, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, env.EncryptedKey, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: unwrap symmetric key: %v", ErrKeyMismatch, err)
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("%w: aes cipher: %v", ErrCipherFailure, err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("%w: gcm: %v", ErrCipherFailure, err)
		}
		if len(env.Nonce) != aead.NonceSize() {
			return nil, fmt.Errorf("%w: bad nonce size %d", ErrCipherFailure, len(env.Nonce))
		}
		pt, err := aead.Open(nil, env.Nonce, env.Ciphertext, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: gcm open: %v", ErrCipherFailure, err)
		}
		return pt, nil

	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrMalformedEnvelope, env.Mode)
	}
}

// Marshal serializes an envelope to its storage form: base64 of JSON. The
// result is opaque to the message store.
func Marshal(env *Envelope) (string, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Unmarshal parses the storage form back into an envelope. Anything that is
// not base64-of-JSON with a known tag is malformed; there is no fallback
// interpretation.
func Unmarshal(s string) (*Envelope, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrMalformedEnvelope, err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: json: %v", ErrMalformedEnvelope, err)
	}
	if env.Mode != ModeDirect && env.Mode != ModeHybrid {
		return nil, fmt.Errorf("%w: unknown mode %q", ErrMalformedEnvelope, env.Mode)
	}
	return &env, nil
}
