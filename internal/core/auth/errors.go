package auth

import "errors"

// Signature verification errors.
var (
	ErrMissingSignature       = errors.New("rules signature required in X-Rules-Signature header")
	ErrInvalidSignatureFormat = errors.New("invalid rules signature format")
	ErrUnknownKey             = errors.New("unknown signing key ID")
	ErrInvalidSignature       = errors.New("rules signature does not match document")
)
