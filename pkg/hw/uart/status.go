// Package uart provides the timeout-bounded byte transport used by the console.
package uart

// The transport moves exactly one byte per call over a Channel, which stands
// for the DMA engine of a real UART: a transfer is started, and completion is
// signaled asynchronously (from "interrupt" context) through a callback.
// The Port waits for that signal with a bounded poll and never retries.

import (
	"errors"
	"fmt"
)

// Status is the outcome of a single byte transfer.
type Status int

// Transfer status codes.
const (
	// Success means the byte was transferred within the wait window.
	Success Status = iota
	// Busy means the channel could not start a transfer because one is
	// already in progress.
	Busy
	// Error means the channel could not start a transfer at all.
	Error
	// Timeout means the transfer started but did not complete in time.
	Timeout
)

var (
	// ErrBusy is the error form of Busy.
	ErrBusy = errors.New("uart busy")
	// ErrChannel is the error form of Error.
	ErrChannel = errors.New("uart channel error")
	// ErrTimeout is the error form of Timeout.
	ErrTimeout = errors.New("uart timeout")
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Busy:
		return "busy"
	case Error:
		return "error"
	case Timeout:
		return "timeout"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Err converts the status into an error, nil for Success.
func (s Status) Err() error {
	switch s {
	case Success:
		return nil
	case Busy:
		return ErrBusy
	case Timeout:
		return ErrTimeout
	}
	return ErrChannel
}
