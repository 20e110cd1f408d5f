package httphandler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// signatureSentinel stands in for an absent or malformed signature header so
// the rejection path performs the same comparison as a genuine mismatch.
const signatureSentinel = "sha256=" + "0000000000000000000000000000000000000000000000000000000000000000"

// VerifySignature checks a raw request body against the X-Hub-Signature-256
// header value using HMAC-SHA256 under the shared secret. The comparison is
// constant time, and a missing header is never a panic or a short-circuit.
func VerifySignature(secret, body []byte, header string) bool {
	if len(secret) == 0 {
		return false
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	if header == "" {
		header = signatureSentinel
	}

	return hmac.Equal([]byte(header), []byte(expected))
}
