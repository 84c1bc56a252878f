// Package status defines crawl status events and their broadcast fan-out.
package status

import (
	"fmt"
	"time"
)

// Type identifies the kind of status event.
type Type string

// Event types emitted over the lifetime of a crawl run.
const (
	TypeCrawlStarted    Type = "crawl_started"
	TypeClubsFound      Type = "clubs_found"
	TypeClubProcessing  Type = "club_processing"
	TypeClubSuccess     Type = "club_success"
	TypeClubFailed      Type = "club_failed"
	TypeDayProcessing   Type = "day_processing"
	TypeClassesFound    Type = "classes_found"
	TypeProgress        Type = "progress"
	TypeWarning         Type = "warning"
	TypeError           Type = "error"
	TypeErrorScreenshot Type = "error_screenshot"
	TypeCrawlComplete   Type = "crawl_complete"
	TypeCrawlFailed     Type = "crawl_failed"
	TypeStatus          Type = "status"
)

// Event is the envelope delivered to status subscribers. Only fields
// relevant to the event type are populated; the rest stay at their zero
// value and are omitted from the wire form.
type Event struct {
	// Type discriminates the event payload.
	Type Type `json:"type"`
	// Timestamp records when the event was produced, in UTC.
	Timestamp time.Time `json:"timestamp"`
	// RunID ties the event to a crawl run.
	RunID string `json:"run_id,omitempty"`
	// Message carries human-readable detail for warning and error events.
	Message string `json:"message,omitempty"`
	// Club names the club the event concerns.
	Club string `json:"club,omitempty"`
	// URL is the club page involved, when known.
	URL string `json:"url,omitempty"`
	// Day labels the schedule day being processed.
	Day string `json:"day,omitempty"`
	// Index and Total position a club within the run (1-based).
	Index int `json:"index,omitempty"`
	Total int `json:"total,omitempty"`
	// Count carries found-item totals (clubs discovered, classes parsed).
	Count int `json:"count,omitempty"`
	// Clubs lists discovered club names on clubs_found events.
	Clubs []string `json:"clubs,omitempty"`
	// Percent is the overall run progress, 0 to 100.
	Percent int `json:"percent,omitempty"`
	// Attempt and MaxAttempts describe retry state on warning events.
	Attempt     int `json:"attempt,omitempty"`
	MaxAttempts int `json:"max_attempts,omitempty"`
	// Screenshot references a stored diagnostic capture.
	Screenshot string `json:"screenshot,omitempty"`
	// Error describes the failure on club_failed, error and crawl_failed.
	Error string `json:"error,omitempty"`
	// Run totals, set on crawl_complete and synthetic status events.
	TotalClubs      int `json:"total_clubs,omitempty"`
	ProcessedClubs  int `json:"processed_clubs,omitempty"`
	SuccessfulClubs int `json:"successful_clubs,omitempty"`
	FailedClubs     int `json:"failed_clubs,omitempty"`
	TotalClasses    int `json:"total_classes,omitempty"`
	// WasComplete reports whether every club succeeded. Pointer so that
	// an explicit false survives serialization on terminal events.
	WasComplete *bool `json:"was_complete,omitempty"`
	// IsRunning appears on synthetic status events only.
	IsRunning *bool `json:"is_running,omitempty"`
	// CurrentClub appears on progress and synthetic status events.
	CurrentClub string `json:"current_club,omitempty"`
}

// Validate checks the event is internally consistent.
func (e Event) Validate() error {
	switch e.Type {
	case TypeCrawlStarted, TypeClubsFound, TypeClubProcessing, TypeClubSuccess,
		TypeClubFailed, TypeDayProcessing, TypeClassesFound, TypeProgress,
		TypeWarning, TypeError, TypeErrorScreenshot, TypeCrawlComplete,
		TypeCrawlFailed, TypeStatus:
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("event %s missing timestamp", e.Type)
	}
	if e.Percent < 0 || e.Percent > 100 {
		return fmt.Errorf("event %s percent %d out of range", e.Type, e.Percent)
	}
	switch e.Type {
	case TypeClubProcessing, TypeClubSuccess, TypeClubFailed:
		if e.Club == "" {
			return fmt.Errorf("event %s missing club", e.Type)
		}
	case TypeCrawlFailed:
		if e.Error == "" {
			return fmt.Errorf("event %s missing error", e.Type)
		}
	}
	return nil
}

// Terminal reports whether the event ends a run.
func (e Event) Terminal() bool {
	return e.Type == TypeCrawlComplete || e.Type == TypeCrawlFailed
}

// Bool returns a pointer to b, for the optional boolean event fields.
func Bool(b bool) *bool {
	return &b
}
