package badge

import (
	"regexp"
	"strings"
)

// Length is the number of characters in a canonical badge identifier.
const Length = 14

var (
	validRe  = regexp.MustCompile(`^[a-z0-9]{14}$`)
	formatRe = regexp.MustCompile(`^(.{5})(.{2})(.{6})$`)
)

// Normalize strips every character that is not an ASCII letter or digit and
// lowercases what is left. It never fails; empty input yields empty output.
func Normalize(raw string) string {
	var sb strings.Builder
	sb.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			sb.WriteByte(c)
		case c >= 'A' && c <= 'Z':
			sb.WriteByte(c + ('a' - 'A'))
		}
	}
	return sb.String()
}

// IsValid reports whether s is a canonical badge identifier: exactly 14
// characters from [a-z0-9]. It does not assume Normalize was applied.
func IsValid(s string) bool {
	return validRe.MatchString(s)
}

// Format groups an identifier for display as 5-2-6 characters joined by
// hyphens. The pattern only matches 13-character input, so a valid 14-character
// identifier is returned unchanged, as is anything else that does not match.
func Format(s string) string {
	if s == "" {
		return ""
	}
	m := formatRe.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	return m[1] + "-" + m[2] + "-" + m[3]
}
