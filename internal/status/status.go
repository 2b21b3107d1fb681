package status

import (
	"errors"
	"fmt"
)

var (
	ErrNoBranch         = errors.New("branch: no branch identity paired")
	ErrEmptyCart        = errors.New("cart: no order to pay for")
	ErrNotSendable      = errors.New("channel: message is not sendable")
	ErrPrintUnsupported = errors.New("print: printing is not supported on this platform")
	ErrNoPrinter        = errors.New("print: no printer reachable")
	ErrPaymentDeadline  = errors.New("payment: deadline elapsed before completion")
)

// ConfigurationError means the kiosk cannot continue without re-pairing.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: configuration: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ChannelError covers connect, send and read failures on the controller
// channel. Callers treat it as "no signal".
type ChannelError struct {
	Op  string
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("%s: channel: %v", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// RemoteServiceError is returned by the order and position clients.
type RemoteServiceError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *RemoteServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: remote service (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: remote service: %v", e.Op, e.Err)
}

func (e *RemoteServiceError) Unwrap() error { return e.Err }

type PrintError struct {
	Op  string
	Err error
}

func (e *PrintError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PrintError) Unwrap() error { return e.Err }

// TimeoutError marks the normal end of a payment that never completed.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timeout: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// IsConfiguration reports whether err requires re-pairing.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
