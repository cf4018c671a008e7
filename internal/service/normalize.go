package service

import "strings"

// NormalizeName canonicalizes a free-text item label for comparison:
// lowercase, only [a-z0-9 ], single spaces, no leading or trailing space.
// It never modifies stored text.
func NormalizeName(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	pendingSpace := false
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		case r == ' ':
			pendingSpace = true
		}
	}
	return b.String()
}
