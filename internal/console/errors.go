package console

import (
	"errors"
	"fmt"
)

// Failure kinds carried by FatalError.
var (
	ErrCapsuleSource    = errors.New("capsule output source failed")
	ErrHypervisorSource = errors.New("hypervisor output source failed")
	ErrRegistration     = errors.New("console service registration failed")
	ErrTerminal         = errors.New("terminal write failed")
)

// FatalError reports a host failure the console cannot recover from. The
// service stops every worker when one is returned; turning it into a process
// exit is left to the caller.
type FatalError struct {
	// Op names the operation that failed, e.g. "gather capsule output".
	Op string
	// Kind is one of the Err* failure kinds.
	Kind error
	// Worker is the id of the worker that observed the failure.
	Worker int
	// Err is the underlying host error.
	Err error
}

func (e *FatalError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}

	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the failure kind and the host error to errors.Is/As.
func (e *FatalError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}

// IsFatal reports whether err carries a FatalError.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

func fatal(op string, kind, err error) *FatalError {
	return &FatalError{Op: op, Kind: kind, Err: err}
}
