package llm

import (
	"context"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/kaiji/internal/common"
)

// clientBase carries the plumbing every provider shares: identity, the
// factory-wide request-rate ceiling, and the retry budget.
type clientBase struct {
	provider   string
	model      string
	limiter    *rate.Limiter
	maxRetries int
	timeout    time.Duration
	logger     arbor.ILogger
}

func (b *clientBase) ModelName() string    { return b.model }
func (b *clientBase) ProviderName() string { return b.provider }

// invoke runs one provider call under the rate limiter and timeout,
// retrying transient failures. Rate-limited calls back off harder.
func (b *clientBase) invoke(ctx context.Context, fn func(ctx context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if b.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, b.timeout)
		}
		text, err := fn(callCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return text, nil
		}
		lastErr = err

		if attempt == b.maxRetries {
			break
		}

		backoff := time.Duration(attempt+1) * 2 * time.Second
		if isRateLimitMessage(err.Error()) {
			backoff = time.Duration(attempt+1) * 10 * time.Second
		}
		b.logger.Warn().
			Str("provider", b.provider).
			Str("model", b.model).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(err).
			Msg("Retrying LLM call")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}

	return "", &common.LLMProviderError{
		Provider: b.provider,
		Model:    b.model,
		Message:  "call failed after retries",
		Cause:    lastErr,
	}
}

func isRateLimitMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "429") ||
		strings.Contains(lower, "quota") ||
		strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "resource_exhausted")
}

func (b *clientBase) structuredError(message string, cause error) error {
	return &common.LLMProviderError{
		Provider: b.provider,
		Model:    b.model,
		Message:  message,
		Cause:    cause,
	}
}
