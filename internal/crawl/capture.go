package crawl

import (
	"context"
	"fmt"
	"strings"
)

// ScreenshotCapturer snapshots the run's browser session into the
// artifact store. One capturer is wired per run, bound to that run's
// session.
type ScreenshotCapturer struct {
	session BrowserSession
	store   ArtifactStore
	clock   Clock
}

// NewScreenshotCapturer binds a capturer to a session and store.
func NewScreenshotCapturer(session BrowserSession, store ArtifactStore, clock Clock) *ScreenshotCapturer {
	return &ScreenshotCapturer{session: session, store: store, clock: clock}
}

// CaptureError stores the current viewport under an error_<stage>_<ts>
// name and returns the stored reference.
func (c *ScreenshotCapturer) CaptureError(ctx context.Context, stage, club string) (string, error) {
	if c.session == nil || c.store == nil {
		return "", fmt.Errorf("screenshot capture unavailable")
	}
	data, err := c.session.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("capture screenshot: %w", err)
	}
	name := fmt.Sprintf("error_%s_%s.png", sanitizeStage(stage), c.clock.Now().Format("20060102_150405"))
	ref, err := c.store.SavePNG(ctx, name, data)
	if err != nil {
		return "", fmt.Errorf("store screenshot %s: %w", name, err)
	}
	return ref, nil
}

// sanitizeStage maps a free-form operation description onto a safe file
// name fragment.
func sanitizeStage(stage string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(stage) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.TrimSuffix(b.String(), "_")
	if out == "" {
		return "operation"
	}
	return out
}
