package domain

import (
	"net"
	"strings"
)

// NormalizeIdentifier canonicalizes an identifier as received from the feed.
// It never fails; an empty result means the identifier is unusable.
func NormalizeIdentifier(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ParseIdentifier validates a hardware address supplied by a caller.
// Supports formats: "XX:XX:XX:XX:XX:XX", "XX-XX-XX-XX-XX-XX", "XXXXXXXXXXXX"
func ParseIdentifier(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", &ValidationError{Field: "mac", Value: s, Err: ErrInvalidIdentifier}
	}

	normalized := strings.ReplaceAll(trimmed, "-", ":")
	if !strings.Contains(normalized, ":") && len(normalized) == 12 {
		var parts []string
		for i := 0; i < len(normalized); i += 2 {
			parts = append(parts, normalized[i:i+2])
		}
		normalized = strings.Join(parts, ":")
	}

	hw, err := net.ParseMAC(normalized)
	if err != nil || len(hw) != 6 {
		return "", &ValidationError{Field: "mac", Value: s, Err: ErrInvalidIdentifier}
	}
	return strings.ToUpper(hw.String()), nil
}
