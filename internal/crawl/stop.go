package crawl

import "sync/atomic"

// StopSignal is a level-triggered flag asking the active run to wind
// down. The run polls it at its checkpoints (between clubs, between
// days, before retry attempts and delays), so a stop takes effect at
// the next checkpoint rather than mid-action.
type StopSignal struct {
	set atomic.Bool
}

// NewStopSignal returns an unset signal.
func NewStopSignal() *StopSignal {
	return &StopSignal{}
}

// Set requests a stop. Idempotent.
func (s *StopSignal) Set() {
	s.set.Store(true)
}

// Clear rearms the signal for a new run.
func (s *StopSignal) Clear() {
	s.set.Store(false)
}

// IsSet reports whether a stop has been requested.
func (s *StopSignal) IsSet() bool {
	return s.set.Load()
}

// Check returns a *StoppedError naming the interrupted work when the
// signal is set, nil otherwise.
func (s *StopSignal) Check(during string) error {
	if s.set.Load() {
		return &StoppedError{During: during}
	}
	return nil
}
