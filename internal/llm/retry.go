package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/pavelanni/interviewprep/internal/llm")

// RetryPolicy bounds how a failing model call is retried. A call fails when
// the backend returns an error or an empty response.
type RetryPolicy struct {
	// MaxAttempts is the total number of calls, including the first.
	MaxAttempts int
	// Backoff is the fixed sleep between attempts.
	Backoff time.Duration
	// Timeout bounds each individual attempt. Zero means no per-call limit.
	Timeout time.Duration
}

// DefaultRetryPolicy is two attempts with a 1.5s pause and a 60s call timeout.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2, Backoff: 1500 * time.Millisecond, Timeout: 60 * time.Second}
}

// Retrying wraps a Model with a RetryPolicy.
type Retrying struct {
	next   Model
	policy RetryPolicy
	logger *slog.Logger
}

// WithRetry returns m wrapped in policy p.
func WithRetry(m Model, p RetryPolicy) *Retrying {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	return &Retrying{next: m, policy: p, logger: slog.Default()}
}

// Generate calls the wrapped model until it succeeds or the attempts run out.
func (r *Retrying) Generate(ctx context.Context, req Request) (string, error) {
	ctx, span := tracer.Start(ctx, "llm.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.mode", req.Mode.String()),
		attribute.Bool("llm.json", req.JSON),
		attribute.Int("llm.prompt_chars", len(req.Prompt)),
	)

	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		out, err := r.call(ctx, req)
		if err == nil {
			span.SetAttributes(attribute.Int("llm.attempts", attempt))
			return out, nil
		}
		lastErr = err
		r.logger.Warn("model call failed", "attempt", attempt, "mode", req.Mode.String(), "error", err)

		if attempt == r.policy.MaxAttempts {
			break
		}
		if err := sleep(ctx, r.policy.Backoff); err != nil {
			lastErr = err
			break
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "model call failed")
	return "", fmt.Errorf("generate failed after retries: %w", lastErr)
}

func (r *Retrying) call(ctx context.Context, req Request) (string, error) {
	if r.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.policy.Timeout)
		defer cancel()
	}
	out, err := r.next.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
