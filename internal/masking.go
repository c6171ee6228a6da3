package internal

import "strings"

// PII masking for the audit export and operator-facing logs. Output is
// irreversible display text, never a storage format.

// MaskEmail masks an address as j***@example.com.
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at < 0 {
		return "***"
	}
	if at <= 1 {
		return "***" + email[at:]
	}
	return email[:1] + "***" + email[at:]
}

// MaskPhone masks a number as +971****5678.
func MaskPhone(phone string) string {
	if len(phone) < 6 {
		return "***"
	}
	return phone[:4] + "****" + phone[len(phone)-4:]
}

// MaskNationalID masks a national ID as 784-****-*******-0.
func MaskNationalID(id string) string {
	if len(id) < 5 {
		return "***"
	}
	return id[:4] + "****-*******-" + id[len(id)-1:]
}

// MaskName keeps the first name and the first letter of the second.
func MaskName(name string) string {
	if len(name) < 2 {
		return "***"
	}
	parts := strings.Fields(name)
	if len(parts) <= 1 {
		return name[:1] + "***"
	}
	return parts[0] + " " + parts[1][:1] + "***"
}

// MaskUUID keeps the first eight characters.
func MaskUUID(id string) string {
	if len(id) < 8 {
		return "***"
	}
	return id[:8] + "-****"
}

// MaskIP keeps the first two octets of an IPv4 address. Anything else,
// IPv6 included, is fully masked.
func MaskIP(ip string) string {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return "***"
	}
	return parts[0] + "." + parts[1] + ".*.*"
}

// Mask keeps the first visible characters of an arbitrary value.
func Mask(value string, visible int) string {
	if value == "" {
		return "***"
	}
	if len(value) <= visible {
		return value
	}
	return value[:visible] + "***"
}
