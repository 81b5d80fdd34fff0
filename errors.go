// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"errors"
	"fmt"
)

// ErrorCode represents the category of a failure raised by the engine.
type ErrorCode int

const (
	// ErrTransport indicates a read or write failure on the underlying stream.
	ErrTransport ErrorCode = iota
	// ErrProtocol indicates a structure on the wire that could not be decoded.
	ErrProtocol
	// ErrValidation indicates caller-supplied input that failed validation.
	ErrValidation
	// ErrUnsupported indicates a feature the peer or the engine does not support.
	ErrUnsupported
	// ErrConfiguration indicates an invalid engine or session configuration.
	ErrConfiguration
	// ErrClosed indicates the session was shut down before the operation completed.
	ErrClosed
)

// String returns the string representation of the error code.
func (e ErrorCode) String() string {
	switch e {
	case ErrTransport:
		return "transport"
	case ErrProtocol:
		return "protocol"
	case ErrValidation:
		return "validation"
	case ErrUnsupported:
		return "unsupported"
	case ErrConfiguration:
		return "configuration"
	case ErrClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Error carries the operation name, error category and, where one applies,
// the session the failure belongs to. Callers use it to present a status
// change without parsing message text.
type Error struct {
	Op        string
	Code      ErrorCode
	SessionID string
	Message   string
	Err       error
}

// Error returns the formatted error message.
func (e *Error) Error() string {
	prefix := "rfb " + e.Code.String() + ": " + e.Op
	if e.SessionID != "" {
		prefix += " [" + e.SessionID + "]"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying error for error chain unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether this error matches the target error.
// Two engine errors match when their code and operation are equal.
func (e *Error) Is(target error) bool {
	var rfbErr *Error
	if errors.As(target, &rfbErr) {
		return e.Code == rfbErr.Code && e.Op == rfbErr.Op
	}
	return false
}

// NewError creates a new Error with the specified parameters.
func NewError(op string, code ErrorCode, message string, err error) *Error {
	return &Error{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WrapError wraps an existing error with engine context.
// Returns nil if the input error is nil.
func WrapError(op string, code ErrorCode, message string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(op, code, message, err)
}

// IsError checks if an error is an *Error and optionally matches specific codes.
// With no codes it returns true for any *Error in the chain.
func IsError(err error, code ...ErrorCode) bool {
	var rfbErr *Error
	if !errors.As(err, &rfbErr) {
		return false
	}

	if len(code) == 0 {
		return true
	}

	for _, c := range code {
		if rfbErr.Code == c {
			return true
		}
	}
	return false
}

// ErrorCodeOf extracts the error code from an *Error.
// Returns -1 if err does not carry one.
func ErrorCodeOf(err error) ErrorCode {
	var rfbErr *Error
	if errors.As(err, &rfbErr) {
		return rfbErr.Code
	}
	return ErrorCode(-1)
}

// withSession stamps the session id onto an *Error in place and returns it.
// Errors of other types are wrapped so the id is never lost.
func withSession(err error, op, sessionID string) error {
	if err == nil {
		return nil
	}
	var rfbErr *Error
	if errors.As(err, &rfbErr) {
		if rfbErr.SessionID == "" {
			rfbErr.SessionID = sessionID
		}
		return err
	}
	return &Error{Op: op, Code: ErrTransport, SessionID: sessionID, Message: "session failure", Err: err}
}

func transportError(op, message string, err error) error {
	return NewError(op, ErrTransport, message, err)
}

func protocolError(op, message string, err error) error {
	return NewError(op, ErrProtocol, message, err)
}

func validationError(op, message string, err error) error {
	return NewError(op, ErrValidation, message, err)
}

func unsupportedError(op, message string, err error) error {
	return NewError(op, ErrUnsupported, message, err)
}

func configurationError(op, message string, err error) error {
	return NewError(op, ErrConfiguration, message, err)
}

func closedError(op, sessionID string) error {
	return &Error{Op: op, Code: ErrClosed, SessionID: sessionID, Message: "session is closed"}
}
