package crawl

import (
	"sync"

	"github.com/fitsched/schedule-crawler/internal/status"
)

// StatusBoard tracks the aggregate status of the engine: which run is
// active, how far along it is, and how the last run ended. Reads and
// writes may come from the run goroutine, HTTP handlers and status
// subscribers concurrently.
type StatusBoard struct {
	clock Clock

	mu   sync.RWMutex
	snap Snapshot
}

// NewStatusBoard returns a board in the idle state.
func NewStatusBoard(clock Clock) *StatusBoard {
	return &StatusBoard{clock: clock, snap: Snapshot{State: StateIdle}}
}

// BeginRun resets the board for a new run.
func (b *StatusBoard) BeginRun(runID string) {
	now := b.clock.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snap = Snapshot{
		State:     StateRunning,
		RunID:     runID,
		IsRunning: true,
		StartedAt: &now,
	}
}

// SetProgress advances the progress percentage and the club currently
// being processed. Progress never moves backwards.
func (b *StatusBoard) SetProgress(percent int, currentClub string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snap.State != StateRunning {
		return
	}
	if percent > b.snap.Percent {
		b.snap.Percent = percent
	}
	b.snap.CurrentClub = currentClub
}

// SetTargets records how many clubs the run will process.
func (b *StatusBoard) SetTargets(total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snap.State != StateRunning {
		return
	}
	b.snap.TotalClubs = total
}

// RecordOutcome tallies one processed club.
func (b *StatusBoard) RecordOutcome(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snap.State != StateRunning {
		return
	}
	b.snap.ProcessedClubs++
	if success {
		b.snap.SuccessfulClubs++
	} else {
		b.snap.FailedClubs++
	}
}

// Finish moves the board to a terminal state.
func (b *StatusBoard) Finish(state RunState, errMsg string) {
	now := b.clock.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snap.State = state
	b.snap.IsRunning = false
	b.snap.Error = errMsg
	b.snap.CurrentClub = ""
	b.snap.FinishedAt = &now
	if state == StateCompleted {
		b.snap.Percent = 100
	}
}

// Snapshot returns a copy of the current aggregate status.
func (b *StatusBoard) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := b.snap
	if b.snap.StartedAt != nil {
		t := *b.snap.StartedAt
		s.StartedAt = &t
	}
	if b.snap.FinishedAt != nil {
		t := *b.snap.FinishedAt
		s.FinishedAt = &t
	}
	return s
}

// StatusEvent renders the snapshot as the synthetic status event handed
// to new subscribers.
func (b *StatusBoard) StatusEvent() status.Event {
	s := b.Snapshot()
	return status.Event{
		Type:            status.TypeStatus,
		RunID:           s.RunID,
		IsRunning:       status.Bool(s.IsRunning),
		Percent:         s.Percent,
		CurrentClub:     s.CurrentClub,
		TotalClubs:      s.TotalClubs,
		ProcessedClubs:  s.ProcessedClubs,
		SuccessfulClubs: s.SuccessfulClubs,
		FailedClubs:     s.FailedClubs,
		Error:           s.Error,
	}
}
