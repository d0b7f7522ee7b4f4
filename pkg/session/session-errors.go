package session

import "github.com/pkg/errors"

var (
	ErrInert          = errors.New("jitdump session is inert")
	ErrBadSymbolName  = errors.New("symbol name contains a NUL byte")
	ErrBadFileName    = errors.New("line entry file name cannot be encoded")
	ErrUnreadableCode = errors.New("code range is not readable")
	ErrBadCodeRange   = errors.New("code range wraps around the address space")
)

// InertError records why Init left the session Inert. It matches
// ErrInert and unwraps to the failing step.
type InertError struct {
	Cause error
}

func (e *InertError) Error() string {
	return ErrInert.Error() + ": " + e.Cause.Error()
}

func (e *InertError) Is(target error) bool {
	return target == ErrInert
}

func (e *InertError) Unwrap() error {
	return e.Cause
}
