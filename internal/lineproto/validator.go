package lineproto

import "strings"

// Validate checks an identifier (measurement, tag key, tag value or field
// key). Rules are checked in order and the first failure is returned.
func Validate(s string) error {
	if strings.HasPrefix(s, "_") {
		return ErrStartsWithUnderscore
	}
	if strings.Contains(s, "\n") {
		return ErrContainsNewline
	}
	if strings.Contains(s, `"`) {
		return ErrContainsQuotes
	}
	return nil
}
