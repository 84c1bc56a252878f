package crawl

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/fitsched/schedule-crawler/internal/metrics"
	"github.com/fitsched/schedule-crawler/internal/status"
)

// RunnerConfig wires the run facade.
type RunnerConfig struct {
	Orchestrator *Orchestrator
	Statuses     StatusStore
	Board        *StatusBoard
	IDs          IDGenerator
	// Events receives the stop-requested notice. Optional.
	Events status.Emitter
	Logger *zap.Logger
	// BaseContext outlives individual HTTP requests; runs execute
	// under it so a finished request does not cancel the crawl.
	BaseContext context.Context
}

// Runner is the service facade over the orchestrator: it enforces the
// single-active-run rule, allocates run IDs, owns the shared stop
// signal, and executes runs on a background goroutine.
type Runner struct {
	cfg  RunnerConfig
	stop *StopSignal

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// NewRunner validates the wiring and builds a Runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	switch {
	case cfg.Orchestrator == nil:
		return nil, fmt.Errorf("runner requires an orchestrator")
	case cfg.Statuses == nil:
		return nil, fmt.Errorf("runner requires a status store")
	case cfg.Board == nil:
		return nil, fmt.Errorf("runner requires a status board")
	case cfg.IDs == nil:
		return nil, fmt.Errorf("runner requires an id generator")
	case cfg.BaseContext == nil:
		return nil, fmt.Errorf("runner requires a base context")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, stop: NewStopSignal()}, nil
}

// StartDiscovery launches a run that discovers clubs from the site.
// Returns ErrAlreadyRunning while a run is in flight.
func (r *Runner) StartDiscovery() (string, error) {
	return r.start(Discovered())
}

// StartRetry launches a run over the clubs the previous run left
// failed. Returns ErrNoPreviousRun when no status file exists and
// ErrNothingToRetry when the previous run has no failed clubs.
func (r *Runner) StartRetry(ctx context.Context) (string, []string, error) {
	statuses, ok, err := r.cfg.Statuses.LoadRunStatus(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("load previous run status: %w", err)
	}
	if !ok {
		return "", nil, ErrNoPreviousRun
	}

	var clubs []ClubTarget
	for name, outcome := range statuses {
		if outcome.Status == ClubFailed {
			clubs = append(clubs, ClubTarget{Name: name, URL: outcome.URL})
		}
	}
	if len(clubs) == 0 {
		return "", nil, ErrNothingToRetry
	}
	sort.Slice(clubs, func(i, j int) bool { return clubs[i].Name < clubs[j].Name })

	runID, err := r.start(ExplicitList(clubs))
	if err != nil {
		return "", nil, err
	}
	names := make([]string, len(clubs))
	for i, club := range clubs {
		names[i] = club.Name
	}
	return runID, names, nil
}

func (r *Runner) start(source ClubSource) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return "", ErrAlreadyRunning
	}
	runID, err := r.cfg.IDs.NewID()
	if err != nil {
		return "", fmt.Errorf("allocate run id: %w", err)
	}
	r.running = true
	r.stop.Clear()
	r.done = make(chan struct{})
	metrics.SetRunActive(true)
	go r.execute(runID, source, r.done)
	return runID, nil
}

func (r *Runner) execute(runID string, source ClubSource, done chan struct{}) {
	defer func() {
		r.mu.Lock()
		r.running = false
		metrics.SetRunActive(false)
		r.mu.Unlock()
		close(done)
	}()

	err := r.cfg.Orchestrator.Run(r.cfg.BaseContext, r.stop, runID, source)
	switch {
	case err == nil:
	case IsStopped(err):
		r.cfg.Logger.Info("crawl run stopped", zap.String("run_id", runID))
	default:
		r.cfg.Logger.Error("crawl run failed", zap.String("run_id", runID), zap.Error(err))
	}
}

// RequestStop asks the active run to wind down at its next checkpoint.
// It reports whether a run was active.
func (r *Runner) RequestStop() bool {
	r.mu.Lock()
	active := r.running
	r.mu.Unlock()
	if !active {
		return false
	}
	r.stop.Set()
	if r.cfg.Events != nil {
		r.cfg.Events.Publish(status.Event{Type: status.TypeWarning, Message: "stop requested"})
	}
	r.cfg.Logger.Info("stop requested")
	return true
}

// Running reports whether a run is in flight.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Status returns the current aggregate snapshot.
func (r *Runner) Status() Snapshot {
	return r.cfg.Board.Snapshot()
}

// Wait blocks until the active run finishes or ctx ends. Used during
// shutdown so terminal duties can complete.
func (r *Runner) Wait(ctx context.Context) error {
	r.mu.Lock()
	running, done := r.running, r.done
	r.mu.Unlock()
	if !running || done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
