package lineproto

import "errors"

// Identifier validation errors, returned by Validate in this order of
// precedence.
var (
	// ErrStartsWithUnderscore indicates an identifier beginning with '_'.
	ErrStartsWithUnderscore = errors.New("lineproto: identifier starts with underscore")

	// ErrContainsNewline indicates an identifier containing '\n'.
	ErrContainsNewline = errors.New("lineproto: identifier contains newline")

	// ErrContainsQuotes indicates an identifier containing '"'.
	ErrContainsQuotes = errors.New("lineproto: identifier contains quotes")
)

// Sink errors.
var (
	// ErrSink wraps any failure reported by the underlying sink.
	ErrSink = errors.New("lineproto: sink failure")

	// ErrBufferFull indicates a Buffer has no room for the write.
	ErrBufferFull = errors.New("lineproto: buffer full")
)

// IsValidationError reports whether err was caused by a rejected identifier.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrStartsWithUnderscore) ||
		errors.Is(err, ErrContainsNewline) ||
		errors.Is(err, ErrContainsQuotes)
}
