package object

import (
	"errors"
	"fmt"
)

// ErrObjectNotFound reports a hash present in neither the loose area nor any
// pack.
var ErrObjectNotFound = errors.New("object not found")

// DecodeError reports malformed serialized object data. Field names the part
// of the encoding that failed ("mode", "target", "author", ...), so callers
// and humans can tell a bad tree entry from a bad commit header.
type DecodeError struct {
	Kind   Kind
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("decode object: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("decode %s: %s: %s", e.Kind, e.Field, e.Reason)
}

func decodeErrf(kind Kind, field, format string, args ...any) *DecodeError {
	return &DecodeError{Kind: kind, Field: field, Reason: fmt.Sprintf(format, args...)}
}
