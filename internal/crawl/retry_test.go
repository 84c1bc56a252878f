package crawl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fitsched/schedule-crawler/internal/status"
)

// countingCapturer records capture calls.
type countingCapturer struct {
	calls int
	ref   string
	err   error
}

func (c *countingCapturer) CaptureError(_ context.Context, stage, club string) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.ref, nil
}

func newTestRetryer(emitter *recordingEmitter, capturer ErrorCapturer) *Retryer {
	return NewRetryer(RetryConfig{
		MaxAttempts: 3,
		Delay:       time.Millisecond,
		Events:      emitter,
		Capturer:    capturer,
	})
}

// TestRetrySucceedsOnThirdAttempt verifies two failures followed by a
// success yield no error and no screenshot.
func TestRetrySucceedsOnThirdAttempt(t *testing.T) {
	t.Parallel()

	emitter := &recordingEmitter{}
	capturer := &countingCapturer{ref: "error_x.png"}
	r := newTestRetryer(emitter, capturer)

	attempts := 0
	err := r.Do(context.Background(), NewStopSignal(), Operation{
		Description: "open club page",
		Club:        "תל אביב",
		Fn: func(context.Context) error {
			attempts++
			if attempts < 3 {
				return errBoom
			}
			return nil
		},
	})

	require.NoError(t, err)
	require.Equal(t, 3, attempts)
	require.Zero(t, capturer.calls)
	require.Len(t, emitter.byType(status.TypeWarning), 2)
	require.Empty(t, emitter.byType(status.TypeError))

	warn := emitter.byType(status.TypeWarning)[0]
	require.Equal(t, "תל אביב", warn.Club)
	require.Equal(t, 1, warn.Attempt)
	require.Equal(t, 3, warn.MaxAttempts)
}

// TestRetryExhaustionCapturesOneScreenshot verifies the attempt budget,
// the single diagnostic capture, and the OperationError shape.
func TestRetryExhaustionCapturesOneScreenshot(t *testing.T) {
	t.Parallel()

	emitter := &recordingEmitter{}
	capturer := &countingCapturer{ref: "error_open_club_page_20250427_100000.png"}
	r := newTestRetryer(emitter, capturer)

	attempts := 0
	err := r.Do(context.Background(), NewStopSignal(), Operation{
		Description: "open club page",
		Club:        "חיפה",
		Fn: func(context.Context) error {
			attempts++
			return errBoom
		},
	})

	require.Error(t, err)
	require.Equal(t, 3, attempts)
	require.Equal(t, 1, capturer.calls)

	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	require.Equal(t, "open club page", opErr.Description)
	require.Equal(t, "חיפה", opErr.Club)
	require.Equal(t, 3, opErr.Attempts)
	require.Equal(t, capturer.ref, opErr.Screenshot)
	require.ErrorIs(t, err, errBoom)

	require.Len(t, emitter.byType(status.TypeWarning), 2)
	require.Len(t, emitter.byType(status.TypeError), 1)
	shots := emitter.byType(status.TypeErrorScreenshot)
	require.Len(t, shots, 1)
	require.Equal(t, capturer.ref, shots[0].Screenshot)
}

// TestRetryCaptureFailureDegrades ensures a failing screenshot does not
// mask the operation error.
func TestRetryCaptureFailureDegrades(t *testing.T) {
	t.Parallel()

	emitter := &recordingEmitter{}
	capturer := &countingCapturer{err: errors.New("browser gone")}
	r := newTestRetryer(emitter, capturer)

	err := r.Do(context.Background(), NewStopSignal(), Operation{
		Description: "wait for schedule",
		Club:        "רעננה",
		Fn:          func(context.Context) error { return errBoom },
	})

	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	require.Empty(t, opErr.Screenshot)
	require.Empty(t, emitter.byType(status.TypeErrorScreenshot))
}

// TestRetryStopBeforeAttempt verifies a pre-set stop prevents the first
// attempt entirely.
func TestRetryStopBeforeAttempt(t *testing.T) {
	t.Parallel()

	r := newTestRetryer(&recordingEmitter{}, &countingCapturer{})
	stop := NewStopSignal()
	stop.Set()

	attempts := 0
	err := r.Do(context.Background(), stop, Operation{
		Description: "load home page",
		Fn: func(context.Context) error {
			attempts++
			return nil
		},
	})

	require.True(t, IsStopped(err))
	require.Zero(t, attempts)
}

// TestRetryStopBeforeDelay verifies a stop raised during an attempt is
// honored before the retry delay, with no screenshot taken.
func TestRetryStopBeforeDelay(t *testing.T) {
	t.Parallel()

	capturer := &countingCapturer{ref: "x.png"}
	r := newTestRetryer(&recordingEmitter{}, capturer)
	stop := NewStopSignal()

	attempts := 0
	err := r.Do(context.Background(), stop, Operation{
		Description: "open schedule page",
		Club:        "נתניה",
		Fn: func(context.Context) error {
			attempts++
			stop.Set()
			return errBoom
		},
	})

	require.True(t, IsStopped(err))
	require.Equal(t, 1, attempts)
	require.Zero(t, capturer.calls)
}

// TestRetryContextCancelAborts verifies run-context cancellation ends
// the loop between attempts.
func TestRetryContextCancelAborts(t *testing.T) {
	t.Parallel()

	r := newTestRetryer(&recordingEmitter{}, &countingCapturer{})
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := r.Do(ctx, NewStopSignal(), Operation{
		Description: "open club page",
		Fn: func(context.Context) error {
			attempts++
			cancel()
			return errBoom
		},
	})

	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, attempts)
}

// TestRetryNilFunction rejects a misconfigured operation.
func TestRetryNilFunction(t *testing.T) {
	t.Parallel()

	r := newTestRetryer(&recordingEmitter{}, nil)
	err := r.Do(context.Background(), NewStopSignal(), Operation{Description: "noop"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no function")
}
