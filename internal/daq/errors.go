package daq

import (
	"errors"
	"fmt"
)

// ErrTransportOpen marks a failure to open or configure the serial transport
// at session start. It is fatal: no session resources are retained.
var ErrTransportOpen = errors.New("transport open")

// FatalError reports that the failure threshold of consecutive read errors
// was exceeded and the polling loop stopped.
type FatalError struct {
	Consecutive int
	Last        error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("transport failed after %d consecutive read errors: %v", e.Consecutive, e.Last)
}

func (e *FatalError) Unwrap() error { return e.Last }

// IsFatal reports whether err represents a fatal transport failure.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}
