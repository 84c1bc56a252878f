package crawl

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestCaptureErrorNaming verifies the stored artifact name carries the
// sanitized stage and a timestamp.
func TestCaptureErrorNaming(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	store := newFakeArtifactStore()
	cap := NewScreenshotCapturer(sess, store, newFakeClock())

	ref, err := cap.CaptureError(context.Background(), "open club page", "תל אביב")
	require.NoError(t, err)
	require.Regexp(t, `^error_open_club_page_\d{8}_\d{6}\.png$`, ref)
	require.Equal(t, 1, store.count())
}

// TestCaptureErrorSessionFailure surfaces screenshot failures.
func TestCaptureErrorSessionFailure(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	sess.screenshotErr = errors.New("target crashed")
	cap := NewScreenshotCapturer(sess, newFakeArtifactStore(), newFakeClock())

	_, err := cap.CaptureError(context.Background(), "wait for schedule", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "capture screenshot")
}

// TestCaptureErrorWithoutStore degrades cleanly.
func TestCaptureErrorWithoutStore(t *testing.T) {
	t.Parallel()

	cap := NewScreenshotCapturer(newFakeSession(), nil, newFakeClock())
	_, err := cap.CaptureError(context.Background(), "x", "")
	require.Error(t, err)
}

// TestSanitizeStage covers the filename fragment mapping.
func TestSanitizeStage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"open club page", "open_club_page"},
		{"Wait for Schedule", "wait_for_schedule"},
		{"load home page!!!", "load_home_page"},
		{"", "operation"},
		{"///", "operation"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, sanitizeStage(tt.in), "input %q", tt.in)
	}
}
