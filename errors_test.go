// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrors_ErrorCodeString(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected string
	}{
		{ErrTransport, "transport"},
		{ErrProtocol, "protocol"},
		{ErrValidation, "validation"},
		{ErrUnsupported, "unsupported"},
		{ErrConfiguration, "configuration"},
		{ErrClosed, "closed"},
		{ErrorCode(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.code.String())
		})
	}
}

func TestErrors_ErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "with underlying error",
			err:      NewError("read_message", ErrTransport, "short read", io.ErrUnexpectedEOF),
			expected: "rfb transport: read_message: short read: unexpected EOF",
		},
		{
			name:     "without underlying error",
			err:      NewError("pixel_format", ErrValidation, "invalid bpp", nil),
			expected: "rfb validation: pixel_format: invalid bpp",
		},
		{
			name:     "with session id",
			err:      &Error{Op: "control", Code: ErrUnsupported, SessionID: "s1", Message: "sign out"},
			expected: "rfb unsupported: control [s1]: sign out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestErrors_UnwrapAndIs(t *testing.T) {
	underlying := errors.New("broken pipe")
	err := NewError("write", ErrTransport, "write failed", underlying)

	assert.Same(t, underlying, err.Unwrap())
	assert.ErrorIs(t, err, underlying)
	assert.ErrorIs(t, err, &Error{Op: "write", Code: ErrTransport})
	assert.NotErrorIs(t, err, &Error{Op: "read", Code: ErrTransport})
	assert.NotErrorIs(t, err, &Error{Op: "write", Code: ErrProtocol})
	assert.False(t, errors.Is(err, nil))
}

func TestErrors_WrapError(t *testing.T) {
	assert.NoError(t, WrapError("op", ErrTransport, "msg", nil))

	err := WrapError("op", ErrTransport, "msg", errors.New("x"))
	require.Error(t, err)
	assert.True(t, IsError(err, ErrTransport))
}

func TestErrors_IsError(t *testing.T) {
	rfbErr := &Error{Code: ErrProtocol}
	wrapped := fmt.Errorf("outer: %w", rfbErr)

	tests := []struct {
		name     string
		err      error
		codes    []ErrorCode
		expected bool
	}{
		{"no code filter", rfbErr, nil, true},
		{"matching code", rfbErr, []ErrorCode{ErrProtocol}, true},
		{"non-matching code", rfbErr, []ErrorCode{ErrTransport}, false},
		{"one of several codes", rfbErr, []ErrorCode{ErrTransport, ErrProtocol}, true},
		{"wrapped by fmt", wrapped, []ErrorCode{ErrProtocol}, true},
		{"plain error", errors.New("plain"), nil, false},
		{"nil", nil, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsError(tt.err, tt.codes...))
		})
	}
}

func TestErrors_ErrorCodeOf(t *testing.T) {
	assert.Equal(t, ErrClosed, ErrorCodeOf(closedError("input", "abc")))
	assert.Equal(t, ErrorCode(-1), ErrorCodeOf(errors.New("plain")))
	assert.Equal(t, ErrorCode(-1), ErrorCodeOf(nil))
}

func TestErrors_Constructors(t *testing.T) {
	underlying := errors.New("underlying")

	tests := []struct {
		name         string
		constructor  func(string, string, error) error
		expectedCode ErrorCode
	}{
		{"transport", transportError, ErrTransport},
		{"protocol", protocolError, ErrProtocol},
		{"validation", validationError, ErrValidation},
		{"unsupported", unsupportedError, ErrUnsupported},
		{"configuration", configurationError, ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.constructor("test_op", "test message", underlying)

			var rfbErr *Error
			require.ErrorAs(t, err, &rfbErr)
			assert.Equal(t, tt.expectedCode, rfbErr.Code)
			assert.Equal(t, "test_op", rfbErr.Op)
			assert.Equal(t, "test message", rfbErr.Message)
			assert.Same(t, underlying, rfbErr.Err)
		})
	}
}

func TestErrors_WithSession(t *testing.T) {
	assert.NoError(t, withSession(nil, "op", "s1"))

	stamped := withSession(protocolError("decode", "bad", nil), "op", "s1")
	var rfbErr *Error
	require.ErrorAs(t, stamped, &rfbErr)
	assert.Equal(t, "s1", rfbErr.SessionID)
	assert.Equal(t, "decode", rfbErr.Op)

	kept := withSession(&Error{Op: "x", SessionID: "other"}, "op", "s1")
	require.ErrorAs(t, kept, &rfbErr)
	assert.Equal(t, "other", rfbErr.SessionID)

	plain := withSession(io.EOF, "read", "s2")
	require.ErrorAs(t, plain, &rfbErr)
	assert.Equal(t, ErrTransport, rfbErr.Code)
	assert.Equal(t, "s2", rfbErr.SessionID)
	assert.ErrorIs(t, plain, io.EOF)
}

func ExampleIsError() {
	err := NewError("control", ErrUnsupported, "peer does not support power control", nil)

	fmt.Println("Error:", err)
	fmt.Println("Is unsupported:", IsError(err, ErrUnsupported))
	fmt.Println("Error code:", ErrorCodeOf(err))

	// Output:
	// Error: rfb unsupported: control: peer does not support power control
	// Is unsupported: true
	// Error code: unsupported
}
