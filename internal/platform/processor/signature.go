package processor

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// SignatureHeader carries the hex-encoded HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Processor-Signature"

// ErrBadSignature is returned for a missing, malformed, or mismatched webhook
// signature. The payload must not be parsed when verification fails.
var ErrBadSignature = errors.New("webhook signature verification failed")

// VerifySignature checks the signature header against an HMAC-SHA256 computed
// over the raw, untouched request body. Signatures are byte-exact: callers
// must pass the body exactly as received, before any decoding.
func VerifySignature(payload []byte, signatureHeader, secret string) error {
	sig := strings.TrimSpace(signatureHeader)
	if sig == "" || secret == "" {
		return ErrBadSignature
	}

	decoded, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return ErrBadSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	if !hmac.Equal(mac.Sum(nil), decoded) {
		return ErrBadSignature
	}
	return nil
}

// Sign computes the signature header value for a body. Used by tests and by
// local tooling that replays captured events.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
