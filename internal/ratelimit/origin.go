package ratelimit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// OriginKey derives the rate-limit bucket key for a client. The client IP and
// optional fingerprint are folded through HMAC-SHA256 so raw addresses never
// reach the store or the logs; the digest is truncated to 16 hex characters,
// which is plenty for bucketing.
func OriginKey(secret, clientIP, fingerprint string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(clientIP))
	if fingerprint != "" {
		mac.Write([]byte{0})
		mac.Write([]byte(fingerprint))
	}
	return hex.EncodeToString(mac.Sum(nil)[:8])
}
