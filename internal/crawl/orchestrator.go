package crawl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fitsched/schedule-crawler/internal/metrics"
	"github.com/fitsched/schedule-crawler/internal/status"
)

var errNoClasses = errors.New("no classes extracted")

// OrchestratorConfig wires the engine's collaborators.
type OrchestratorConfig struct {
	Sessions  SessionFactory
	Parser    Parser
	Records   RecordStore
	Statuses  StatusStore
	Artifacts ArtifactStore
	Events    status.Emitter
	Board     *StatusBoard
	// Publisher receives the terminal run summary. Optional.
	Publisher RunPublisher
	// Region maps a club name onto its region label. Optional.
	Region func(name string) string
	Clock  Clock
	Logger *zap.Logger

	// BaseURL is the site entry point for club discovery.
	BaseURL string
	// MaxAttempts and RetryDelay parameterize the per-operation retry.
	MaxAttempts int
	RetryDelay  time.Duration
}

// Orchestrator executes crawl runs end to end: club discovery or an
// explicit retry list, per-club schedule extraction with failure
// isolation, and the terminal duties that every run performs exactly
// once whatever its outcome.
type Orchestrator struct {
	cfg OrchestratorConfig
}

// NewOrchestrator validates the wiring and builds an Orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	switch {
	case cfg.Sessions == nil:
		return nil, fmt.Errorf("orchestrator requires a session factory")
	case cfg.Parser == nil:
		return nil, fmt.Errorf("orchestrator requires a parser")
	case cfg.Records == nil:
		return nil, fmt.Errorf("orchestrator requires a record store")
	case cfg.Statuses == nil:
		return nil, fmt.Errorf("orchestrator requires a status store")
	case cfg.Events == nil:
		return nil, fmt.Errorf("orchestrator requires an event emitter")
	case cfg.Board == nil:
		return nil, fmt.Errorf("orchestrator requires a status board")
	case cfg.Clock == nil:
		return nil, fmt.Errorf("orchestrator requires a clock")
	case cfg.BaseURL == "":
		return nil, fmt.Errorf("orchestrator requires a base url")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Orchestrator{cfg: cfg}, nil
}

// runTally accumulates what a run produced before its terminal duties.
type runTally struct {
	targets  []ClubTarget
	outcomes map[string]ClubOutcome
	entries  []ScheduleEntry
	critical error
}

// Run executes one crawl run. It returns the critical error that
// aborted the run, a summary error when no club succeeded, or nil.
// Per-club failures alone never fail the run.
func (o *Orchestrator) Run(ctx context.Context, stop *StopSignal, runID string, source ClubSource) error {
	startedAt := o.cfg.Clock.Now()
	logger := o.cfg.Logger.With(zap.String("run_id", runID))

	o.cfg.Board.BeginRun(runID)
	o.cfg.Events.Publish(status.Event{Type: status.TypeCrawlStarted, RunID: runID, Message: "crawl started"})
	o.progress(runID, 5, "")
	logger.Info("crawl run started", zap.String("source", string(source.Mode)))

	tally := o.execute(ctx, stop, runID, source, logger)
	return o.finalize(ctx, runID, startedAt, tally, logger)
}

func (o *Orchestrator) execute(ctx context.Context, stop *StopSignal, runID string, source ClubSource, logger *zap.Logger) (t runTally) {
	t.outcomes = make(map[string]ClubOutcome)
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("crawl run panicked", zap.Any("panic", rec), zap.Stack("stack"))
			t.critical = &CriticalError{Stage: "crawl", Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	sess, err := o.cfg.Sessions.OpenSession(ctx)
	if err != nil {
		t.critical = &CriticalError{Stage: "browser start", Err: err}
		return t
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			logger.Warn("browser session close failed", zap.Error(cerr))
		}
	}()

	retryer := NewRetryer(RetryConfig{
		MaxAttempts: o.cfg.MaxAttempts,
		Delay:       o.cfg.RetryDelay,
		Events:      o.cfg.Events,
		Capturer:    NewScreenshotCapturer(sess, o.cfg.Artifacts, o.cfg.Clock),
		Logger:      logger,
	})
	pipeline := NewPipeline(PipelineConfig{
		Session: sess,
		Parser:  o.cfg.Parser,
		Retryer: retryer,
		Events:  o.cfg.Events,
		Clock:   o.cfg.Clock,
		Logger:  logger,
		BaseURL: o.cfg.BaseURL,
	})

	targets, err := o.resolveTargets(ctx, stop, pipeline, source)
	if err != nil {
		t.critical = err
		return t
	}
	t.targets = targets

	names := make([]string, 0, len(targets))
	for _, club := range targets {
		names = append(names, club.Name)
	}
	o.cfg.Events.Publish(status.Event{Type: status.TypeClubsFound, RunID: runID, Count: len(targets), Clubs: names})
	o.cfg.Board.SetTargets(len(targets))
	o.progress(runID, 10, "")

	for i, club := range targets {
		if err := stop.Check("club processing"); err != nil {
			t.critical = err
			return t
		}

		o.progress(runID, 15+(80*i)/len(targets), club.Name)
		o.cfg.Events.Publish(status.Event{
			Type:  status.TypeClubProcessing,
			RunID: runID,
			Club:  club.Name,
			URL:   club.URL,
			Index: i + 1,
			Total: len(targets),
		})
		logger.Info("processing club",
			zap.String("club", club.Name),
			zap.Int("index", i+1),
			zap.Int("total", len(targets)))

		res, err := pipeline.ProcessClub(ctx, stop, club)
		if err != nil {
			if IsStopped(err) {
				t.outcomes[club.Name] = o.failedOutcome(club, res.Facts, err, "")
				o.cfg.Board.RecordOutcome(false)
				t.critical = err
				return t
			}
			var opErr *OperationError
			screenshot := ""
			if errors.As(err, &opErr) {
				screenshot = opErr.Screenshot
			}
			t.outcomes[club.Name] = o.failedOutcome(club, res.Facts, err, screenshot)
			o.cfg.Board.RecordOutcome(false)
			o.cfg.Events.Publish(status.Event{Type: status.TypeClubFailed, RunID: runID, Club: club.Name, Error: err.Error()})
			metrics.ObserveClub("failed")
			logger.Warn("club failed", zap.String("club", club.Name), zap.Error(err))
			continue
		}

		// The orchestrator alone decides success, from the entry count.
		if len(res.Entries) == 0 {
			t.outcomes[club.Name] = o.failedOutcome(club, res.Facts, errNoClasses, "")
			o.cfg.Board.RecordOutcome(false)
			o.cfg.Events.Publish(status.Event{Type: status.TypeClubFailed, RunID: runID, Club: club.Name, Error: errNoClasses.Error()})
			metrics.ObserveClub("failed")
			logger.Warn("club yielded no classes", zap.String("club", club.Name))
			continue
		}

		t.outcomes[club.Name] = ClubOutcome{
			URL:          club.URL,
			Status:       ClubSucceeded,
			Address:      res.Facts.Address,
			OpeningHours: res.Facts.OpeningHours,
			Region:       o.region(club.Name),
			ClassCount:   len(res.Entries),
		}
		t.entries = append(t.entries, res.Entries...)
		o.cfg.Board.RecordOutcome(true)
		o.cfg.Events.Publish(status.Event{Type: status.TypeClubSuccess, RunID: runID, Club: club.Name, Count: len(res.Entries)})
		metrics.ObserveClub("success")
		logger.Info("club succeeded", zap.String("club", club.Name), zap.Int("classes", len(res.Entries)))
	}

	o.progress(runID, 95, "")
	return t
}

func (o *Orchestrator) resolveTargets(ctx context.Context, stop *StopSignal, pipeline *Pipeline, source ClubSource) ([]ClubTarget, error) {
	var targets []ClubTarget
	switch source.Mode {
	case SourceExplicit:
		targets = source.Clubs
	default:
		found, err := pipeline.DiscoverClubs(ctx, stop)
		if err != nil {
			if IsStopped(err) {
				return nil, err
			}
			return nil, &CriticalError{Stage: "club discovery", Err: err}
		}
		targets = found
	}
	if len(targets) == 0 {
		return nil, &CriticalError{Stage: "club discovery", Err: ErrNoClubs}
	}
	return targets, nil
}

// finalize performs the terminal duties in a fixed order: persist the
// status file, persist the record when the run earned one, notify the
// publisher, settle the board, then broadcast exactly one terminal
// event.
func (o *Orchestrator) finalize(ctx context.Context, runID string, startedAt time.Time, t runTally, logger *zap.Logger) error {
	// Terminal duties must survive service shutdown cancelling ctx.
	ctx = context.WithoutCancel(ctx)
	finishedAt := o.cfg.Clock.Now()

	total := len(t.targets)
	succeeded := 0
	for _, outcome := range t.outcomes {
		if outcome.Status == ClubSucceeded {
			succeeded++
		}
	}
	failed := total - succeeded

	state := StateCompleted
	var errMsg string
	switch {
	case t.critical != nil && IsStopped(t.critical):
		state = StateStopped
		errMsg = t.critical.Error()
	case t.critical != nil:
		state = StateFailed
		errMsg = t.critical.Error()
	case succeeded == 0:
		state = StateFailed
		errMsg = "no clubs crawled successfully"
	}

	// The status file is written whatever the outcome so a later
	// retry-failed run can see which clubs need another pass.
	if err := o.cfg.Statuses.SaveRunStatus(ctx, t.outcomes); err != nil {
		logger.Error("save run status failed", zap.Error(err))
	}

	if succeeded >= 1 && t.critical == nil {
		rec := CrawlRecord{
			RunID:      runID,
			CrawledAt:  finishedAt,
			TotalClubs: total,
			Succeeded:  succeeded,
			Failed:     failed,
			Clubs:      t.outcomes,
			Entries:    t.entries,
		}
		if err := rec.Validate(); err != nil {
			logger.Error("crawl record failed validation", zap.Error(err))
		} else if err := o.cfg.Records.Append(ctx, rec); err != nil {
			logger.Error("persist crawl record failed", zap.Error(err))
			o.cfg.Events.Publish(status.Event{Type: status.TypeError, RunID: runID, Message: fmt.Sprintf("persist crawl record: %v", err)})
		}
	}

	if o.cfg.Publisher != nil {
		summary := RunSummary{
			RunID:           runID,
			State:           state,
			TotalClubs:      total,
			SuccessfulClubs: succeeded,
			FailedClubs:     failed,
			TotalClasses:    len(t.entries),
			FinishedAt:      finishedAt,
			Error:           errMsg,
		}
		if _, err := o.cfg.Publisher.PublishRunResult(ctx, summary); err != nil {
			logger.Warn("publish run summary failed", zap.Error(err))
		}
	}

	o.cfg.Board.Finish(state, errMsg)

	if state == StateCompleted {
		o.cfg.Events.Publish(status.Event{
			Type:            status.TypeCrawlComplete,
			RunID:           runID,
			TotalClubs:      total,
			SuccessfulClubs: succeeded,
			FailedClubs:     failed,
			TotalClasses:    len(t.entries),
			WasComplete:     status.Bool(failed == 0),
		})
	} else {
		o.cfg.Events.Publish(status.Event{
			Type:        status.TypeCrawlFailed,
			RunID:       runID,
			Error:       errMsg,
			WasComplete: status.Bool(false),
		})
	}

	metrics.ObserveRun(string(state), finishedAt.Sub(startedAt).Seconds())
	metrics.ObserveClasses(len(t.entries))

	logger.Info("crawl run finished",
		zap.String("state", string(state)),
		zap.Int("total_clubs", total),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
		zap.Int("classes", len(t.entries)),
		zap.Duration("duration", finishedAt.Sub(startedAt)))

	if t.critical != nil {
		return t.critical
	}
	if state == StateFailed {
		return errors.New(errMsg)
	}
	return nil
}

func (o *Orchestrator) failedOutcome(club ClubTarget, facts ClubFacts, err error, screenshot string) ClubOutcome {
	return ClubOutcome{
		URL:          club.URL,
		Status:       ClubFailed,
		Error:        err.Error(),
		Screenshot:   screenshot,
		Address:      facts.Address,
		OpeningHours: facts.OpeningHours,
		Region:       o.region(club.Name),
	}
}

func (o *Orchestrator) region(name string) string {
	if o.cfg.Region == nil {
		return ""
	}
	return o.cfg.Region(name)
}

func (o *Orchestrator) progress(runID string, percent int, club string) {
	o.cfg.Board.SetProgress(percent, club)
	o.cfg.Events.Publish(status.Event{Type: status.TypeProgress, RunID: runID, Percent: percent, CurrentClub: club})
}
