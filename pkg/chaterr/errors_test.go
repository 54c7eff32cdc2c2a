package chaterr

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationErrorMatchesByCode(t *testing.T) {
	err := errors.Wrap(Validation(EmptyMessage, "body is blank"), "submit")

	assert.True(t, errors.Is(err, ErrEmptyMessage))
	assert.False(t, errors.Is(err, ErrNoActiveChannel))
	assert.True(t, IsValidation(err))
	assert.False(t, IsTransport(err))
	assert.False(t, Retryable(err))
}

func TestTransportErrorTimeout(t *testing.T) {
	err := Transport(OpFetch, "general", errors.Wrap(context.DeadlineExceeded, "history"))

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.True(t, te.Timeout())
	assert.Equal(t, OpFetch, te.Op)
	assert.True(t, Retryable(err))
	assert.Contains(t, err.Error(), "general")
}

func TestTransportNil(t *testing.T) {
	assert.NoError(t, Transport(OpDispatch, "x", nil))
}
