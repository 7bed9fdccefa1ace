package sanitize

import "strings"

// ID strips every character outside [a-fA-F0-9-] from a path or query
// identifier before it reaches the query layer. A string that survives
// unchanged is not guaranteed to be a well-formed UUID; callers that need
// full validation should parse it separately.
func ID(raw string) string {
	if raw == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'f',
			r >= 'A' && r <= 'F',
			r >= '0' && r <= '9',
			r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}
