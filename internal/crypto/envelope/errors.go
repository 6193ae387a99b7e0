package envelope

import "errors"

// Decryption failures are distinguishable and never silently swallowed.
// Callers translate these into domain errors with CodeCryptoFailure and must
// treat them as data-loss risk: no fallback interpretation, no partial output.
var (
	// ErrMalformedEnvelope: the serialized envelope could not be decoded, its
	// tag is unknown, or a required field is missing.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrKeyMismatch: the asymmetric decryption failed, which for RSA-OAEP
	// means the private key does not match or the wrapped block is corrupt.
	ErrKeyMismatch = errors.New("key mismatch")

	// ErrCipherFailure: the symmetric cipher rejected the payload
	// (authentication tag mismatch, bad key size, truncated nonce).
	ErrCipherFailure = errors.New("cipher failure")
)
