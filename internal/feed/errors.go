package feed

import (
	"errors"
	"fmt"
)

// Sentinel errors for the parsing pipeline.
var (
	// ErrMalformedFeed indicates the document could not be parsed as a feed at
	// all (missing root or channel, broken tag nesting).
	ErrMalformedFeed = errors.New("malformed feed")

	// ErrUnparsableDate is the typed outcome for a date token no known format
	// matched. Callers default instead of aborting the document.
	ErrUnparsableDate = errors.New("unparsable date")
)

// StructuralError is fatal: the document's framing is broken and the parse
// stops. Show metadata mutated before the failure point is left in place.
type StructuralError struct {
	Reason string
	Err    error
}

func (e *StructuralError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("structural parse error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("structural parse error: %s", e.Reason)
}

func (e *StructuralError) Unwrap() error { return e.Err }

func (e *StructuralError) Is(target error) bool { return target == ErrMalformedFeed }

func newStructuralError(reason string, err error) *StructuralError {
	return &StructuralError{Reason: reason, Err: err}
}
