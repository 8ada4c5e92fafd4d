package errorutil

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestRetryableFlag 可重试标记驱动队列动作判定
func TestRetryableFlag(t *testing.T) {
	assert.True(t, IsRetryable(Retriable("mysql gone away")))
	assert.False(t, IsRetryable(NonRetriable("invalid filename")))
	assert.False(t, IsRetryable(errors.New("plain error")))
	assert.False(t, IsRetryable(nil))
}

// TestWrappedErrorKeepsFlag 包装后仍可判定
func TestWrappedErrorKeepsFlag(t *testing.T) {
	inner := Retriable("flexo chunk query failed")
	wrapped := fmt.Errorf("processor[1] failed: %w", inner)

	assert.True(t, IsRetryable(wrapped))

	e := Wrap(wrapped)
	assert.Equal(t, 500, e.Code)
	assert.True(t, e.Retryable)
}

// TestWrapPlainError 非结构化错误默认不可重试
func TestWrapPlainError(t *testing.T) {
	e := Wrap(errors.New("boom"))
	assert.False(t, e.Retryable)
	assert.Equal(t, "boom", e.Message)
	assert.Nil(t, Wrap(nil))
}
