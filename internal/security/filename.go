// Package security guards file names built from operator input.
package security

import "strings"

// maxFilenameLen bounds sanitized names.
const maxFilenameLen = 128

// SanitizeFilename makes a safe file name component from an arbitrary
// string such as a machine selector. Characters other than ASCII letters,
// digits, dot, underscore and dash become a single underscore. Leading and
// trailing dots and underscores are trimmed, so the result can never be a
// path element like "..". An empty result becomes "unknown".
func SanitizeFilename(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.' || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case r == '_':
			if !lastUnderscore {
				b.WriteRune(r)
			}
			lastUnderscore = true
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
