package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const fingerprintDelimiter = "|"

// Fingerprint derives the stable device fingerprint hash from normalized
// request signals. Missing signals normalize to "unknown" so partial clients
// still produce a stable value. Only this hash is ever persisted.
func Fingerprint(userAgent, acceptLanguage, screenResolution, timezone string) string {
	composite := strings.Join([]string{
		normalizeSignal(userAgent),
		normalizeSignal(acceptLanguage),
		normalizeSignal(screenResolution),
		normalizeSignal(timezone),
	}, fingerprintDelimiter)

	sum := sha256.Sum256([]byte(composite))
	return hex.EncodeToString(sum[:])
}

func normalizeSignal(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return "unknown"
	}
	return v
}

// TruncateUserAgent caps stored user agent strings at 500 bytes.
func TruncateUserAgent(ua string) string {
	if len(ua) > 500 {
		return ua[:500]
	}
	return ua
}
