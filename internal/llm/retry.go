package llm

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"resume-agent/internal/shared/telemetry"
)

const (
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 300 * time.Millisecond
)

// RetryPolicy bounds how a gateway call is re-attempted.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

type retryingGateway struct {
	base   Gateway
	policy RetryPolicy
}

// WithRetry wraps base so that transient failures are retried with
// exponential backoff. Each attempt is a full, independent Complete call.
func WithRetry(base Gateway, policy RetryPolicy) Gateway {
	if base == nil {
		return nil
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = defaultRetryAttempts
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = defaultRetryBaseDelay
	}
	if policy.Sleep == nil {
		policy.Sleep = sleepContext
	}
	return retryingGateway{base: base, policy: policy}
}

func (r retryingGateway) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	delay := r.policy.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		text, err := r.base.Complete(ctx, system, messages)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if attempt == r.policy.MaxAttempts || !ShouldRetry(err) {
			break
		}
		telemetry.Warn("llm.retry", map[string]any{
			"attempt":  attempt,
			"delay_ms": delay.Milliseconds(),
			"error":    err.Error(),
		})
		if err := r.policy.Sleep(ctx, delay); err != nil {
			return "", err
		}
		delay *= 2
	}
	return "", lastErr
}

// ShouldRetry classifies transport, timeout, rate-limit and 5xx failures as transient.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") {
		return true
	}
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "unexpected eof") {
		return true
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
