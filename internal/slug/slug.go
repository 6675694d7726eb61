// Package slug normalizes the human-chosen handles of actors and tasks.
package slug

import (
	"fmt"
	"strings"
)

const maxLen = 64

// Normalize lower-cases s, turns spaces and underscores into hyphens and
// drops everything outside [a-z0-9-]. The result must start with a letter
// or digit.
func Normalize(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("slug cannot be empty")
	}
	s = strings.NewReplacer(" ", "-", "_", "-").Replace(s)

	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	s = strings.Trim(b.String(), "-")

	if s == "" {
		return "", fmt.Errorf("slug must contain a letter or digit")
	}
	if len(s) > maxLen {
		return "", fmt.Errorf("slug exceeds maximum length of %d bytes", maxLen)
	}
	return s, nil
}

// IsFriendlyID reports whether s looks like a generated id (A-00001, T-00001,
// C-00001), which slugs must not imitate.
func IsFriendlyID(s string) bool {
	if len(s) != 7 || s[1] != '-' {
		return false
	}
	switch s[0] {
	case 'a', 'A', 't', 'T', 'c', 'C':
	default:
		return false
	}
	for _, r := range s[2:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
