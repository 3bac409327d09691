package task

import (
	"fmt"
	"strings"
)

// normalizeName trims whitespace. Empty names remain empty.
func normalizeName(name string) string {
	return strings.TrimSpace(name)
}

// checkName normalizes name and validates it for registration. Empty means unnamed.
// Allowed: [A-Za-z0-9._-].
func checkName(name string) (string, error) {
	name = normalizeName(name)
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-':
		case r == '/':
			return name, fmt.Errorf("%w: %q: contains '/'", ErrInvalidName, name)
		case r == ' ' || r == '\t' || r == '\r' || r == '\n':
			return name, fmt.Errorf("%w: %q: contains whitespace", ErrInvalidName, name)
		default:
			return name, fmt.Errorf("%w: %q: contains %q (allowed: [A-Za-z0-9._-])", ErrInvalidName, name, r)
		}
	}
	return name, nil
}
