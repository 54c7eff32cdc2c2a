// Package chaterr holds the error taxonomy shared by the engine packages.
//
// ValidationError is returned synchronously for bad user input and is never
// retried. TransportError wraps a failed or timed out collaborator call and
// may be retried by re-issuing the same request.
package chaterr

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Code identifies the kind of validation failure.
type Code string

const (
	EmptyMessage    Code = "EmptyMessage"
	NoActiveChannel Code = "NoActiveChannel"
	UnknownReaction Code = "UnknownReaction"
	InvalidChannel  Code = "InvalidChannel"
	MessageTooLong  Code = "MessageTooLong"
)

// ValidationError rejects user input before any side effect happens.
type ValidationError struct {
	Code   Code
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return "validation: " + string(e.Code)
	}
	return fmt.Sprintf("validation: %s: %s", e.Code, e.Detail)
}

// Is matches another ValidationError with the same code, so callers can
// write errors.Is(err, chaterr.ErrEmptyMessage).
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Code == e.Code
}

// Validation builds a ValidationError.
func Validation(code Code, detail string) error {
	return &ValidationError{Code: code, Detail: detail}
}

var (
	ErrEmptyMessage    = &ValidationError{Code: EmptyMessage}
	ErrNoActiveChannel = &ValidationError{Code: NoActiveChannel}
	ErrUnknownReaction = &ValidationError{Code: UnknownReaction}
	ErrInvalidChannel  = &ValidationError{Code: InvalidChannel}
	ErrMessageTooLong  = &ValidationError{Code: MessageTooLong}
)

// Op names the collaborator call that failed.
type Op string

const (
	OpFetch     Op = "fetch"
	OpDispatch  Op = "dispatch"
	OpSubscribe Op = "subscribe"
	OpReact     Op = "react"
)

// TransportError wraps a failed collaborator call.
type TransportError struct {
	Op      Op
	Channel string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Channel != "" {
		return fmt.Sprintf("transport: %s %s: %v", e.Op, e.Channel, e.Err)
	}
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the call ran past its deadline.
func (e *TransportError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// Transport wraps err as a TransportError. A nil err returns nil.
func Transport(op Op, channel string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Channel: channel, Err: err}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var t *TransportError
	return errors.As(err, &t)
}

// Retryable reports whether re-issuing the failed request makes sense.
func Retryable(err error) bool {
	return IsTransport(err)
}
