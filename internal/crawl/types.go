package crawl

import (
	"fmt"
	"time"
)

// RunState describes where a crawl run is in its lifecycle.
type RunState string

// Run lifecycle states. A run leaves StateRunning for exactly one of the
// three terminal states.
const (
	StateIdle      RunState = "idle"
	StateRunning   RunState = "running"
	StateCompleted RunState = "completed"
	StateStopped   RunState = "stopped"
	StateFailed    RunState = "failed"
)

// ClubStatus is the per-club outcome within a run.
type ClubStatus string

// Per-club statuses as persisted in the run status file.
const (
	ClubSucceeded ClubStatus = "success"
	ClubFailed    ClubStatus = "failed"
)

// SourceMode selects how a run obtains its club list.
type SourceMode string

const (
	// SourceDiscovered walks the site footer to find clubs.
	SourceDiscovered SourceMode = "discovered"
	// SourceExplicit crawls a caller-supplied club list, skipping discovery.
	SourceExplicit SourceMode = "explicit"
)

// ClubSource tells a run where its clubs come from.
type ClubSource struct {
	Mode  SourceMode
	Clubs []ClubTarget
}

// Discovered returns a source that finds clubs on the site.
func Discovered() ClubSource {
	return ClubSource{Mode: SourceDiscovered}
}

// ExplicitList returns a source that crawls exactly the given clubs.
func ExplicitList(clubs []ClubTarget) ClubSource {
	return ClubSource{Mode: SourceExplicit, Clubs: clubs}
}

// ClubTarget is a club page to crawl.
type ClubTarget struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ClubFacts holds supplementary details scraped off a club page.
// OpeningHours maps a day label to its hours line.
type ClubFacts struct {
	Address      string            `json:"address,omitempty"`
	OpeningHours map[string]string `json:"opening_hours,omitempty"`
}

// ScheduleEntry is one normalized class occurrence. Date holds an ISO
// date (2006-01-02) when the day header carried one, otherwise the
// English weekday name derived from the Hebrew label.
type ScheduleEntry struct {
	Club        string    `json:"club"`
	Date        string    `json:"day"`
	DayLabel    string    `json:"day_name_hebrew"`
	Time        string    `json:"time"`
	Name        string    `json:"name"`
	Instructor  string    `json:"instructor"`
	Duration    string    `json:"duration,omitempty"`
	Location    string    `json:"location,omitempty"`
	ExtractedAt time.Time `json:"timestamp"`
}

// Valid reports whether the entry carries the minimum usable data. An
// entry without a start time or a class name is dropped.
func (e ScheduleEntry) Valid() bool {
	return e.Time != "" && e.Name != ""
}

// DaySchedule groups the normalized entries of a single schedule column.
type DaySchedule struct {
	// Label is the Hebrew day name from the column header.
	Label string
	// Date is the ISO date or weekday fallback shared by the entries.
	Date string
	// Entries holds the valid entries in document order.
	Entries []ScheduleEntry
	// Skipped counts raw items dropped for missing a name or time.
	Skipped int
}

// ClubOutcome records how one club fared within a run.
type ClubOutcome struct {
	URL          string            `json:"url"`
	Status       ClubStatus        `json:"status"`
	Error        string            `json:"error_reason,omitempty"`
	Screenshot   string            `json:"screenshot,omitempty"`
	Address      string            `json:"address,omitempty"`
	OpeningHours map[string]string `json:"opening_hours,omitempty"`
	Region       string            `json:"region,omitempty"`
	ClassCount   int               `json:"classes_count"`
}

// CrawlRecord is the persisted result of a run that extracted at least
// one club successfully. Clubs is keyed by club name.
type CrawlRecord struct {
	RunID      string                 `json:"run_id"`
	CrawledAt  time.Time              `json:"crawl_timestamp"`
	TotalClubs int                    `json:"total_clubs"`
	Succeeded  int                    `json:"successful_clubs"`
	Failed     int                    `json:"failed_clubs"`
	Clubs      map[string]ClubOutcome `json:"clubs"`
	Entries    []ScheduleEntry        `json:"classes"`
}

// Validate checks the record's internal accounting.
func (r CrawlRecord) Validate() error {
	if r.RunID == "" {
		return fmt.Errorf("record missing run id")
	}
	if r.CrawledAt.IsZero() {
		return fmt.Errorf("record missing crawl timestamp")
	}
	if r.Succeeded+r.Failed != r.TotalClubs {
		return fmt.Errorf("club tally mismatch: %d succeeded + %d failed != %d total",
			r.Succeeded, r.Failed, r.TotalClubs)
	}
	if r.Succeeded < 1 {
		return fmt.Errorf("record requires at least one successful club")
	}
	return nil
}

// RunSummary is the terminal notification published when a run ends.
type RunSummary struct {
	RunID           string    `json:"run_id"`
	State           RunState  `json:"state"`
	TotalClubs      int       `json:"total_clubs"`
	SuccessfulClubs int       `json:"successful_clubs"`
	FailedClubs     int       `json:"failed_clubs"`
	TotalClasses    int       `json:"total_classes"`
	FinishedAt      time.Time `json:"finished_at"`
	Error           string    `json:"error,omitempty"`
}

// Snapshot is the aggregate run status served to clients and used as the
// synthetic first event for new status subscribers.
type Snapshot struct {
	State           RunState   `json:"state"`
	RunID           string     `json:"run_id,omitempty"`
	IsRunning       bool       `json:"is_running"`
	Percent         int        `json:"progress"`
	CurrentClub     string     `json:"current_club,omitempty"`
	TotalClubs      int        `json:"total_clubs,omitempty"`
	ProcessedClubs  int        `json:"processed_clubs,omitempty"`
	SuccessfulClubs int        `json:"successful_clubs,omitempty"`
	FailedClubs     int        `json:"failed_clubs,omitempty"`
	Error           string     `json:"error,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}
