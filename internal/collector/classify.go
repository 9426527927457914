package collector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/go-github/v55/github"

	apperrors "github.com/kurihiro0119/bucket-harvest/internal/errors"
)

const (
	headerRateRemaining = "X-RateLimit-Remaining"
	headerRetryAfter    = "Retry-After"

	// defaultRetryAfter is used when a secondary limit names no wait.
	defaultRetryAfter = time.Minute
)

// classifyError translates a go-github failure into an AppError. Rate limit
// responses are also reported to the limiter.
func (c *githubCollector) classifyError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewAbortedError(fmt.Sprintf("%s: %v", op, err))
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		resetAt := rateErr.Rate.Reset.Time
		if resetAt.IsZero() {
			var h http.Header
			if rateErr.Response != nil {
				h = rateErr.Response.Header
			}
			resetAt = c.now().Add(retryAfter(h))
		}
		c.limiter.Exhaust(resetAt)
		return apperrors.NewRateLimitedError(fmt.Sprintf("%s: %s", op, rateErr.Message), resetAt)
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		wait := defaultRetryAfter
		if abuseErr.RetryAfter != nil {
			wait = *abuseErr.RetryAfter
		}
		resetAt := c.now().Add(wait)
		c.limiter.Exhaust(resetAt)
		return apperrors.NewRateLimitedError(fmt.Sprintf("%s: secondary rate limit", op), resetAt)
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return c.classifyStatus(op, respErr.Response, err)
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return apperrors.NewTransientError(op, err)
	}

	return apperrors.NewInternalError(op, err)
}

func (c *githubCollector) classifyStatus(op string, resp *http.Response, err error) error {
	status := resp.StatusCode
	switch {
	case status == http.StatusNotFound:
		return &apperrors.AppError{Code: apperrors.ErrCodeNotFound, Message: op, Err: err}
	case status == http.StatusTooManyRequests,
		status == http.StatusForbidden && resp.Header.Get(headerRateRemaining) == "0":
		resetAt := c.now().Add(retryAfter(resp.Header))
		c.limiter.Exhaust(resetAt)
		return apperrors.NewRateLimitedError(fmt.Sprintf("%s: status %d", op, status), resetAt)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return apperrors.NewUnauthorizedError(op, err)
	case status >= 500:
		return apperrors.NewTransientError(op, err)
	}
	return apperrors.NewInternalError(op, err)
}

func retryAfter(h http.Header) time.Duration {
	if v := h.Get(headerRetryAfter); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds >= 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultRetryAfter
}

// statusOf returns the HTTP status behind err, or 0
func statusOf(err error) int {
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return respErr.Response.StatusCode
	}
	return 0
}
