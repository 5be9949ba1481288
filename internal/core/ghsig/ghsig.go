// Package ghsig verifies GitHub webhook signatures
package ghsig

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const prefix = "sha256="

// Verify reports whether header is a valid HMAC-SHA256 signature of body
// under secret. Header format is "sha256=<hex>". A missing or malformed
// header is simply invalid; the comparison is constant time
func Verify(body []byte, header, secret string) bool {
	if header == "" || secret == "" {
		return false
	}
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	claim, err := hex.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(claim, mac.Sum(nil))
}

// Sign computes the header value for body under secret
// mostly useful for tests and local delivery tooling
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return prefix + hex.EncodeToString(mac.Sum(nil))
}
