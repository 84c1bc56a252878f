package crawl

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fitsched/schedule-crawler/internal/metrics"
	"github.com/fitsched/schedule-crawler/internal/status"
)

// Operation is one unit of browser work run under retry.
type Operation struct {
	// Description names the operation in logs, events and screenshots.
	Description string
	// Club correlates the operation with the club being processed.
	// Empty for run-level work such as discovery.
	Club string
	// Fn performs a single attempt.
	Fn func(ctx context.Context) error
}

// RetryConfig tunes a Retryer.
type RetryConfig struct {
	// MaxAttempts is the total attempt count, first try included.
	MaxAttempts int
	// Delay is the pause between attempts.
	Delay time.Duration
	// Events receives warning and error broadcasts. Optional.
	Events status.Emitter
	// Capturer stores the diagnostic screenshot on terminal failure.
	// Optional.
	Capturer ErrorCapturer
	Logger   *zap.Logger
}

// Retryer runs operations with bounded attempts. It checks the stop
// signal before every attempt and every delay, broadcasts a warning per
// failed attempt, and on terminal failure captures one diagnostic
// screenshot before returning an *OperationError.
type Retryer struct {
	cfg RetryConfig
}

// NewRetryer builds a Retryer, applying defaults for zero values.
func NewRetryer(cfg RetryConfig) *Retryer {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.Delay <= 0 {
		cfg.Delay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Retryer{cfg: cfg}
}

// Do runs op until it succeeds or the attempt budget is spent. A stop
// request or an expired run context aborts between attempts without a
// screenshot.
func (r *Retryer) Do(ctx context.Context, stop *StopSignal, op Operation) error {
	if op.Fn == nil {
		return fmt.Errorf("operation %q has no function", op.Description)
	}

	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if err := stop.Check(op.Description); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s aborted: %w", op.Description, err)
		}

		lastErr = op.Fn(ctx)
		if lastErr == nil {
			if attempt > 1 {
				r.cfg.Logger.Info("operation recovered",
					zap.String("operation", op.Description),
					zap.String("club", op.Club),
					zap.Int("attempt", attempt))
			}
			return nil
		}

		r.cfg.Logger.Warn("operation attempt failed",
			zap.String("operation", op.Description),
			zap.String("club", op.Club),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.cfg.MaxAttempts),
			zap.Error(lastErr))
		metrics.ObserveRetry(op.Description)

		if attempt == r.cfg.MaxAttempts {
			break
		}

		r.publish(status.Event{
			Type:        status.TypeWarning,
			Message:     fmt.Sprintf("%s failed, retrying: %v", op.Description, lastErr),
			Club:        op.Club,
			Attempt:     attempt,
			MaxAttempts: r.cfg.MaxAttempts,
		})

		if err := r.wait(ctx, stop, op.Description); err != nil {
			return err
		}
	}

	screenshot := r.captureFailure(ctx, op)
	r.publish(status.Event{
		Type:    status.TypeError,
		Message: fmt.Sprintf("%s failed after %d attempts: %v", op.Description, r.cfg.MaxAttempts, lastErr),
		Club:    op.Club,
	})

	return &OperationError{
		Description: op.Description,
		Club:        op.Club,
		Attempts:    r.cfg.MaxAttempts,
		Screenshot:  screenshot,
		Err:         lastErr,
	}
}

// wait sleeps the configured delay, aborting early when the run context
// ends. The stop signal is checked on both sides of the sleep so a stop
// raised mid-delay is honored before the next attempt.
func (r *Retryer) wait(ctx context.Context, stop *StopSignal, during string) error {
	if err := stop.Check(during); err != nil {
		return err
	}
	timer := time.NewTimer(r.cfg.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s aborted: %w", during, ctx.Err())
	case <-timer.C:
	}
	return stop.Check(during)
}

func (r *Retryer) captureFailure(ctx context.Context, op Operation) string {
	if r.cfg.Capturer == nil {
		return ""
	}
	ref, err := r.cfg.Capturer.CaptureError(ctx, op.Description, op.Club)
	if err != nil {
		r.cfg.Logger.Warn("diagnostic screenshot failed",
			zap.String("operation", op.Description),
			zap.String("club", op.Club),
			zap.Error(err))
		return ""
	}
	metrics.ObserveScreenshot()
	r.publish(status.Event{
		Type:       status.TypeErrorScreenshot,
		Message:    op.Description,
		Club:       op.Club,
		Screenshot: ref,
	})
	return ref
}

func (r *Retryer) publish(ev status.Event) {
	if r.cfg.Events == nil {
		return
	}
	r.cfg.Events.Publish(ev)
}
