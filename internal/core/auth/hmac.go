package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ParseSignature extracts key_id and MAC from a signature header value.
// Format: lr-v1-<key_id>-<hex_hmac_sha256> (key_id 32 hex, MAC 64 hex).
func ParseSignature(header string) (keyID string, mac []byte, err error) {
	parts := strings.Split(header, "-")
	if len(parts) != 4 || parts[0] != "lr" || parts[1] != "v1" {
		return "", nil, ErrInvalidSignatureFormat
	}

	keyID = parts[2]
	if len(keyID) != 32 || len(parts[3]) != 64 {
		return "", nil, ErrInvalidSignatureFormat
	}
	for _, c := range keyID + parts[3] {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", nil, ErrInvalidSignatureFormat
		}
	}

	mac, err = hex.DecodeString(parts[3])
	if err != nil {
		return "", nil, ErrInvalidSignatureFormat
	}
	return keyID, mac, nil
}

// ComputeHMAC computes the HMAC-SHA256 of body using secret.
func ComputeHMAC(secret, body []byte) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write(body)
	return h.Sum(nil)
}

// VerifyHMAC compares MACs in constant time.
func VerifyHMAC(expected, computed []byte) bool {
	return hmac.Equal(expected, computed)
}

// FormatSignature builds the header value for body signed with secret.
func FormatSignature(keyID string, secret, body []byte) string {
	return fmt.Sprintf("lr-v1-%s-%x", keyID, ComputeHMAC(secret, body))
}
