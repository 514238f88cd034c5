// Package auth verifies HMAC signatures on uploaded rule documents.
package auth

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// SignatureHeader carries the document signature on rule uploads.
const SignatureHeader = "X-Rules-Signature"

// Verifier checks rule document signatures against a set of signing keys.
// Keys are addressed by ID so old and new secrets can overlap during rotation.
type Verifier struct {
	keys   map[string][]byte
	logger *slog.Logger
}

// NewVerifier creates a verifier. With no keys every document is accepted.
func NewVerifier(keys map[string][]byte, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Verifier{keys: keys, logger: logger}
}

// Enabled reports whether signatures are enforced.
func (v *Verifier) Enabled() bool {
	return len(v.keys) > 0
}

// Verify checks header against body.
func (v *Verifier) Verify(body []byte, header string) error {
	if !v.Enabled() {
		return nil
	}
	if header == "" {
		return ErrMissingSignature
	}

	keyID, mac, err := ParseSignature(header)
	if err != nil {
		return err
	}

	secret, ok := v.keys[keyID]
	if !ok {
		return ErrUnknownKey
	}
	if !VerifyHMAC(mac, ComputeHMAC(secret, body)) {
		return ErrInvalidSignature
	}
	return nil
}

// Middleware rejects requests whose body does not carry a valid signature.
// The body is buffered and replaced so downstream handlers can read it.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !v.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		if err := v.Verify(body, r.Header.Get(SignatureHeader)); err != nil {
			v.logger.Warn("Rejected unsigned rules upload",
				"remote", r.RemoteAddr,
				"error", err,
			)
			// every verification failure maps to 401
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}
