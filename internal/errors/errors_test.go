package errors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	t.Parallel()

	reset := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tcs := []struct {
		name string
		err  error
		code ErrCode
	}{
		{name: "not found", err: NewNotFoundError("repository octo/repo"), code: ErrCodeNotFound},
		{name: "transient", err: NewTransientError("get repository", fmt.Errorf("boom")), code: ErrCodeTransient},
		{name: "rate limited", err: NewRateLimitedError("budget exhausted", reset), code: ErrCodeRateLimited},
		{name: "aborted", err: NewAbortedError("run aborted"), code: ErrCodeAborted},
		{name: "plain error", err: fmt.Errorf("plain"), code: ErrCodeInternal},
	}

	for _, tc := range tcs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			wrapped := fmt.Errorf("count commits: %w", tc.err)
			assert.Equal(t, tc.code, CodeOf(wrapped))
			assert.Equal(t, tc.code == ErrCodeNotFound, IsNotFound(wrapped))
			assert.Equal(t, tc.code == ErrCodeRateLimited, IsRateLimited(wrapped))
			assert.Equal(t, tc.code == ErrCodeTransient, IsTransient(wrapped))
		})
	}
}

func TestResetAt(t *testing.T) {
	t.Parallel()

	reset := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	got, ok := ResetAt(fmt.Errorf("wrap: %w", NewRateLimitedError("exhausted", reset)))
	assert.True(t, ok)
	assert.Equal(t, reset, got)

	_, ok = ResetAt(NewNotFoundError("x"))
	assert.False(t, ok)
}

func TestAppErrorMessage(t *testing.T) {
	t.Parallel()

	err := NewTransientError("list commits", fmt.Errorf("connection reset"))
	assert.Equal(t, "TRANSIENT: list commits (connection reset)", err.Error())
	assert.Equal(t, "NOT_FOUND: issue 7 not found", NewNotFoundError("issue 7").Error())
}
