package crawl

import (
	"context"
	"time"
)

// BrowserSession is a live browser tab. A session drives exactly one
// page; implementations apply their own per-action timeouts.
type BrowserSession interface {
	// Navigate loads url and waits for the page to settle.
	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until the CSS selector matches a visible node.
	WaitVisible(ctx context.Context, selector string) error
	// Click clicks the first visible match of the CSS selector.
	Click(ctx context.Context, selector string) error
	// Exists reports whether the CSS selector matches at least one
	// node right now, without waiting.
	Exists(ctx context.Context, selector string) (bool, error)
	// HTML returns the current serialized DOM.
	HTML(ctx context.Context) (string, error)
	// Screenshot captures the current viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// Close releases the tab and its browser resources.
	Close() error
}

// SessionFactory opens browser sessions. Each run acquires one session
// and releases it when the run ends, whatever the outcome.
type SessionFactory interface {
	OpenSession(ctx context.Context) (BrowserSession, error)
}

// Parser turns rendered HTML into structured schedule data.
type Parser interface {
	// ClubLinks extracts club pages from the site footer, resolved
	// against baseURL and filtered to known club naming.
	ClubLinks(html, baseURL string) ([]ClubTarget, error)
	// ScheduleLink finds the full-schedule link on a club page,
	// resolved against pageURL. Empty when the page has none.
	ScheduleLink(html, pageURL string) (string, error)
	// ClubFacts pulls address and opening hours off a club page.
	// Missing details leave the corresponding fields empty.
	ClubFacts(html string) ClubFacts
	// Schedule parses a rendered schedule into per-day groups with
	// invalid items dropped. now anchors date fallbacks and the
	// entries' extraction timestamps.
	Schedule(html, club string, now time.Time) ([]DaySchedule, error)
}

// RecordStore persists crawl records.
type RecordStore interface {
	Append(ctx context.Context, rec CrawlRecord) error
	// Latest returns the most recent record, reporting false when no
	// record has been persisted yet.
	Latest(ctx context.Context) (CrawlRecord, bool, error)
}

// StatusStore persists the per-club outcomes of the most recent run.
// The saved map feeds the retry-failed flow.
type StatusStore interface {
	SaveRunStatus(ctx context.Context, statuses map[string]ClubOutcome) error
	LoadRunStatus(ctx context.Context) (map[string]ClubOutcome, bool, error)
}

// ArtifactStore keeps diagnostic screenshots. SavePNG returns the
// stored reference (path or object URI).
type ArtifactStore interface {
	SavePNG(ctx context.Context, name string, data []byte) (string, error)
}

// RunPublisher pushes terminal run summaries to an external channel.
type RunPublisher interface {
	PublishRunResult(ctx context.Context, summary RunSummary) (string, error)
}

// ErrorCapturer stores a diagnostic screenshot for a failed operation
// and returns its reference.
type ErrorCapturer interface {
	CaptureError(ctx context.Context, stage, club string) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
