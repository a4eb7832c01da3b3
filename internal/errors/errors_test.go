package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredError_Error(t *testing.T) {
	plain := New(ErrCodeInternal, "boom")
	assert.Equal(t, "[INTERNAL] boom", plain.Error())

	wrapped := Wrap(ErrCodeToolFailure, "export failed", errors.New("exit status 1"))
	assert.Equal(t, "[TOOL_FAILURE] export failed: exit status 1", wrapped.Error())
}

func TestStructuredError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := Wrap(ErrCodeTransient, "dial failed", cause)

	require.ErrorIs(t, wrapped, cause)

	var se *StructuredError
	require.ErrorAs(t, wrapped, &se)
	assert.Equal(t, ErrCodeTransient, se.Code)
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want bool
	}{
		{ErrCodeTransient, true},
		{ErrCodeReentrant, true},
		{ErrCodeTimeout, true},
		{ErrCodeUnavailable, true},
		{ErrCodeToolFailure, false},
		{ErrCodeMalformedMessage, false},
		{ErrCodeFatal, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, IsRetryable(c.code), "code=%s", c.code)
	}
}

func TestNewWithContext(t *testing.T) {
	err := NewWithContext(ErrCodeMalformedMessage, "bad cursor", map[string]any{"queue": "compute-head"})
	assert.Equal(t, "bad cursor", err.Message)
	assert.Equal(t, "compute-head", err.Context["queue"])
}
