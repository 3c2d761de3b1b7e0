package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNotRunning is returned when a conversion is requested outside the Running state.
	ErrNotRunning = errors.New("engine not running")
	// ErrStartFailed marks a failed engine start. The handle is left in the Failed state.
	ErrStartFailed = errors.New("engine start failed")
	// ErrBusy reports that no conversion slot became free in time.
	ErrBusy = errors.New("engine busy")
	// ErrInternalFault wraps unexpected engine failures outside a conversion.
	ErrInternalFault = errors.New("engine internal fault")
	// ErrInvalidTransition reports a lifecycle call that is not legal from the current state.
	ErrInvalidTransition = errors.New("invalid engine state transition")
)

// FaultKind classifies a failed conversion.
type FaultKind int

const (
	// EngineFault means the engine itself failed to convert the document.
	EngineFault FaultKind = iota
	// IOFault means reading the input or writing the output failed.
	IOFault
)

func (k FaultKind) String() string {
	switch k {
	case EngineFault:
		return "engine_fault"
	case IOFault:
		return "io_fault"
	default:
		return "unknown_fault"
	}
}

// ConversionError describes why a single conversion failed.
type ConversionError struct {
	Kind FaultKind
	Op   string
	Err  error
}

func (e *ConversionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Op == "" {
		return fmt.Sprintf("conversion %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("conversion %s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *ConversionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Fault builds a ConversionError.
func Fault(kind FaultKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &ConversionError{Kind: kind, Op: op, Err: err}
}

// FaultKindOf extracts the fault classification from err.
func FaultKindOf(err error) (FaultKind, bool) {
	var convErr *ConversionError
	if errors.As(err, &convErr) {
		return convErr.Kind, true
	}
	return 0, false
}
