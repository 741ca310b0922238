// Package signature computes and verifies HMAC-SHA256 message
// authentication codes over outbound webhook payloads.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HeaderName is the HTTP header carrying the payload signature.
const HeaderName = "X-Signature-256"

// headerPrefix identifies the digest algorithm in the header value.
const headerPrefix = "sha256="

// Sign returns the lowercase hex HMAC-SHA256 of payload keyed by secret.
// Deterministic: the same payload and secret always produce the same
// signature.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature for payload and compares it to the
// supplied hex signature in constant time. A mismatched secret or a
// tampered payload always fails.
func Verify(payload []byte, sig, secret string) bool {
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(sig), []byte(expected))
}

// HeaderValue formats a signature for the X-Signature-256 header.
func HeaderValue(sig string) string {
	return headerPrefix + sig
}

// VerifyHeader validates a raw X-Signature-256 header value
// ("sha256=<hex>") against the payload. Unknown prefixes fail closed.
func VerifyHeader(payload []byte, header, secret string) bool {
	if !strings.HasPrefix(header, headerPrefix) {
		return false
	}
	return Verify(payload, strings.TrimPrefix(header, headerPrefix), secret)
}
