package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	err := NewError(ErrNotFound, "question 42 not found")
	assert.Equal(t, "[NOT_FOUND] question 42 not found", err.Error())

	cause := errors.New("record not found")
	err = NewError(ErrNotFound, "question 42 not found").WithCause(cause)
	assert.Contains(t, err.Error(), "record not found")
	assert.ErrorIs(t, err, cause)
}

func TestError_Builders(t *testing.T) {
	err := NewError(ErrUpstreamTimeout, "generate timed out").
		WithHTTPStatus(504).
		WithRetryable(true)

	assert.Equal(t, ErrUpstreamTimeout, err.Code)
	assert.Equal(t, 504, err.HTTPStatus)
	assert.True(t, err.Retryable)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
	assert.Equal(t, ErrInternalError, CodeOf(errors.New("boom")))
	assert.Equal(t, ErrRateLimited, CodeOf(NewError(ErrRateLimited, "slow down")))

	// Wrapped structured errors are still recognized.
	wrapped := fmt.Errorf("handle: %w", NewError(ErrUpstreamError, "bad gateway"))
	assert.Equal(t, ErrUpstreamError, CodeOf(wrapped))
}
