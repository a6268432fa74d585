package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRetryCount(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeStoreOperationFailed, 3},
		{ErrCodeNotificationSendFailed, 3},
		{ErrCodeValidationFailed, 0},
		{ErrCodeInvalidTransition, 0},
		{ErrCodeWorkerBusy, 0},
		{"TIMEOUT_ERROR", 2},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, GetRetryCount(tt.code))
		})
	}
}

func TestConvertToBPMNError(t *testing.T) {
	retryable := ConvertToBPMNError(NewStoreOperationFailedError("assign complaint", stderrors.New("deadlock")))
	assert.Equal(t, "STORE_OPERATION_FAILED", retryable.Code)
	assert.True(t, retryable.Retryable)
	assert.Equal(t, 3, retryable.Retries)
	assert.Equal(t, "STORE_OPERATION_FAILED", retryable.ErrorVariables["originalErrorCode"])

	final := ConvertToBPMNError(NewInvalidTransitionError(1, "in_progress", "in_progress"))
	assert.Equal(t, "INVALID_TRANSITION", final.Code)
	assert.False(t, final.Retryable)
	assert.Zero(t, final.Retries)
}

func TestAsStandardError_Wrapped(t *testing.T) {
	inner := NewWorkerBusyError(5, 2)
	wrapped := fmt.Errorf("remove worker: %w", inner)

	got, ok := AsStandardError(wrapped)
	require.True(t, ok)
	assert.Same(t, inner, got)
	assert.True(t, HasCode(wrapped, ErrCodeWorkerBusy))
	assert.False(t, HasCode(stderrors.New("plain"), ErrCodeWorkerBusy))
}

func TestErrorHandler_NormalizeError(t *testing.T) {
	h := NewErrorHandler(nil)

	std := NewCategoryMismatchError("IT", "Plumbing")
	assert.Same(t, std, h.normalizeError(fmt.Errorf("ctx: %w", std)))

	internal := h.normalizeError(stderrors.New("nil pointer"))
	assert.Equal(t, ErrCodeInternal, internal.Code)
	assert.Equal(t, "nil pointer", internal.Details)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeValidationFailed))
	assert.Equal(t, "NOT_FOUND", GetErrorCategory(ErrCodeComplaintNotFound))
	assert.Equal(t, "CONFLICT", GetErrorCategory(ErrCodeWorkerUnavailable))
	assert.Equal(t, "CONFLICT", GetErrorCategory(ErrCodeInvalidTransition))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeStoreOperationFailed))
}

func TestErrorHandler_WithSender(t *testing.T) {
	h := NewErrorHandler(nil)
	calls := 0
	direct := func(ctx context.Context) error { calls++; return nil }

	require.NoError(t, h.send(context.Background(), "fail job", direct))
	assert.Equal(t, 1, calls)

	var ops []string
	h.WithSender(func(ctx context.Context, op string, send func(context.Context) error) error {
		ops = append(ops, op)
		return send(ctx)
	})
	require.NoError(t, h.send(context.Background(), "throw error", direct))
	assert.Equal(t, []string{"throw error"}, ops)
	assert.Equal(t, 2, calls)

	h.WithSender(nil)
	require.NoError(t, h.send(context.Background(), "fail job", direct))
	assert.Len(t, ops, 2, "nil sender keeps the current one")
}
