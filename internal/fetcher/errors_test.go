package fetcher

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyHTTPError(t *testing.T) {
	tests := []struct {
		status    int
		wantType  ErrorType
		retryable bool
	}{
		{429, ErrorTypeRateLimit, true},
		{500, ErrorTypeServer, true},
		{503, ErrorTypeServer, true},
		{404, ErrorTypeClient, false},
		{401, ErrorTypeClient, false},
		{302, ErrorTypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := ClassifyHTTPError(tt.status)
			assert.Equal(t, tt.wantType, err.Type)
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, tt.status, err.StatusCode)
			assert.Contains(t, err.Error(), fmt.Sprintf("status %d", tt.status))
		})
	}
}

func TestClassifyError(t *testing.T) {
	require.Nil(t, ClassifyError(nil))

	timeout := ClassifyError(fmt.Errorf("get: %w", context.DeadlineExceeded))
	assert.Equal(t, ErrorTypeTimeout, timeout.Type)
	assert.True(t, errors.Is(timeout, context.DeadlineExceeded))

	existing := NewValidationError("bad payload")
	assert.Same(t, existing, ClassifyError(fmt.Errorf("wrapped: %w", existing)))

	unknown := ClassifyError(errors.New("boom"))
	assert.Equal(t, ErrorTypeUnknown, unknown.Type)
	assert.Equal(t, "unknown error: boom", unknown.Error())
}

func TestIsUnconfigured(t *testing.T) {
	err := NewUnconfiguredError("alphavantage", "ALPHAVANTAGE_API_KEY")
	assert.True(t, IsUnconfigured(err))
	assert.True(t, IsUnconfigured(fmt.Errorf("strategy: %w", err)))
	assert.Contains(t, err.Error(), "ALPHAVANTAGE_API_KEY")

	assert.False(t, IsUnconfigured(NewServerError(500)))
	assert.False(t, IsUnconfigured(errors.New("plain")))
	assert.False(t, IsUnconfigured(nil))
}
