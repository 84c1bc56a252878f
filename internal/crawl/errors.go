package crawl

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced through the service facade.
var (
	// ErrAlreadyRunning rejects a start while a run is in flight.
	ErrAlreadyRunning = errors.New("a crawl is already running")
	// ErrNoPreviousRun rejects a retry when no status file exists yet.
	ErrNoPreviousRun = errors.New("no previous crawl to retry")
	// ErrNothingToRetry means the previous run left no failed clubs.
	ErrNothingToRetry = errors.New("no failed clubs to retry")
	// ErrNoClubs aborts a run whose club list came up empty.
	ErrNoClubs = errors.New("no clubs to crawl")
)

// StoppedError reports that work was interrupted by a stop request.
type StoppedError struct {
	// During names what was interrupted.
	During string
}

func (e *StoppedError) Error() string {
	return fmt.Sprintf("crawl stopped during %s", e.During)
}

// IsStopped reports whether err stems from a stop request.
func IsStopped(err error) bool {
	var se *StoppedError
	return errors.As(err, &se)
}

// OperationError reports a retryable operation that exhausted all its
// attempts. Screenshot references the diagnostic capture, when one
// could be taken.
type OperationError struct {
	Description string
	Club        string
	Attempts    int
	Screenshot  string
	Err         error
}

func (e *OperationError) Error() string {
	if e.Club != "" {
		return fmt.Sprintf("%s failed for %s after %d attempts: %v", e.Description, e.Club, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Description, e.Attempts, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// CriticalError aborts a whole run rather than a single club.
type CriticalError struct {
	// Stage names the run phase that failed.
	Stage string
	Err   error
}

func (e *CriticalError) Error() string {
	return fmt.Sprintf("critical failure in %s: %v", e.Stage, e.Err)
}

func (e *CriticalError) Unwrap() error {
	return e.Err
}
