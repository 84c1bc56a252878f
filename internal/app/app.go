// Package app builds the schedule crawler's long-lived services and owns
// their startup and shutdown order.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/fitsched/schedule-crawler/internal/api"
	"github.com/fitsched/schedule-crawler/internal/browser"
	"github.com/fitsched/schedule-crawler/internal/clock/system"
	"github.com/fitsched/schedule-crawler/internal/config"
	"github.com/fitsched/schedule-crawler/internal/crawl"
	"github.com/fitsched/schedule-crawler/internal/discovery"
	"github.com/fitsched/schedule-crawler/internal/extract"
	"github.com/fitsched/schedule-crawler/internal/id/uuid"
	memorypublisher "github.com/fitsched/schedule-crawler/internal/publisher/memory"
	gcppublisher "github.com/fitsched/schedule-crawler/internal/publisher/pubsub"
	"github.com/fitsched/schedule-crawler/internal/status"
	gcsstorage "github.com/fitsched/schedule-crawler/internal/storage/gcs"
	localstorage "github.com/fitsched/schedule-crawler/internal/storage/local"
	pgstore "github.com/fitsched/schedule-crawler/internal/storage/postgres"
)

// App contains the application's dependencies.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	apiServer   *api.Server
	runner      *crawl.Runner
	broadcaster *status.Broadcaster

	// cancelRuns hard-cancels an in-flight crawl that ignored the
	// cooperative stop during shutdown.
	cancelRuns context.CancelFunc

	pgRecords       *pgstore.RecordStore
	gcsClient       *gcsclient.Client
	pubsubClient    *pubsub.Client
	pubsubPublisher *gcppublisher.Publisher
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}
	a.logger.Info("building application dependencies")

	clk := system.New()
	parser := extract.New(extract.Config{ClubKeywords: cfg.Crawl.ClubKeywords})
	sessions := browser.NewFactory(browser.Config{
		Headless:       cfg.Browser.Headless,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		UserAgent:      cfg.Browser.UserAgent,
		ActionTimeout:  cfg.Browser.ActionTimeout(),
		NavTimeout:     cfg.Browser.NavTimeout(),
		LaunchTimeout:  cfg.Browser.LaunchTimeout(),
		MinNavInterval: cfg.Browser.MinNavInterval(),
	}, logger.Named("browser"))

	records, err := a.setupRecords(ctx)
	if err != nil {
		return nil, err
	}

	statuses, err := localstorage.NewStatusFile(filepath.Join(cfg.Storage.DataDir, cfg.Storage.StatusFile))
	if err != nil {
		return nil, fmt.Errorf("status file init failed: %w", err)
	}

	artifacts, screenshotDir, err := a.setupArtifacts(ctx)
	if err != nil {
		return nil, err
	}

	publisher, err := a.setupPublisher(ctx)
	if err != nil {
		return nil, err
	}

	board := crawl.NewStatusBoard(clk)
	a.broadcaster = status.NewBroadcaster(status.Config{
		SubscriberBuffer: cfg.Events.SubscriberBuffer,
	}, board.StatusEvent, logger.Named("events"))

	orch, err := crawl.NewOrchestrator(crawl.OrchestratorConfig{
		Sessions:    sessions,
		Parser:      parser,
		Records:     records,
		Statuses:    statuses,
		Artifacts:   artifacts,
		Events:      a.broadcaster,
		Board:       board,
		Publisher:   publisher,
		Region:      extract.Region,
		Clock:       clk,
		Logger:      logger.Named("crawl"),
		BaseURL:     cfg.Crawl.BaseURL,
		MaxAttempts: cfg.Crawl.MaxAttempts,
		RetryDelay:  cfg.Crawl.RetryDelay(),
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator init failed: %w", err)
	}

	// Runs execute under their own context rather than the signal
	// context, so shutdown can stop them cooperatively first.
	runCtx, cancel := context.WithCancel(context.Background())
	a.cancelRuns = cancel

	a.runner, err = crawl.NewRunner(crawl.RunnerConfig{
		Orchestrator: orch,
		Statuses:     statuses,
		Board:        board,
		IDs:          uuid.New(),
		Events:       a.broadcaster,
		Logger:       logger.Named("runner"),
		BaseContext:  runCtx,
	})
	if err != nil {
		return nil, fmt.Errorf("runner init failed: %w", err)
	}

	prober, err := discovery.New(discovery.Config{
		BaseURL:       cfg.Crawl.BaseURL,
		UserAgent:     cfg.Browser.UserAgent,
		RespectRobots: true,
		Timeout:       cfg.Crawl.PreviewBudget(),
	}, parser, logger.Named("discovery"))
	if err != nil {
		return nil, fmt.Errorf("prober init failed: %w", err)
	}

	a.apiServer, err = api.NewServer(cfg, api.Deps{
		Runner:        a.runner,
		Records:       records,
		Broadcaster:   a.broadcaster,
		Clock:         clk,
		Previewer:     prober,
		ScreenshotDir: screenshotDir,
		Logger:        logger.Named("api"),
	})
	if err != nil {
		return nil, fmt.Errorf("api server init failed: %w", err)
	}

	return a, nil
}

// Runner exposes the crawl runner, mainly for tests.
func (a *App) Runner() *crawl.Runner {
	return a.runner
}

// Handler exposes the HTTP routing tree, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the HTTP server and blocks until the context is canceled or a
// termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.runner.RequestStop() {
		a.logger.Info("waiting for in-flight crawl to stop")
	}
	if err := a.runner.Wait(shutdownCtx); err != nil {
		a.logger.Warn("crawl did not stop in time, canceling", zap.Error(err))
		a.cancelRuns()
	}

	// Detaching subscribers ends the open event streams, otherwise
	// server shutdown stalls on them until the deadline.
	a.broadcaster.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close()
}

// Close releases external clients. It is safe to call after a failed Run or
// on an App that never ran.
func (a *App) Close() error {
	if a.cancelRuns != nil {
		a.cancelRuns()
	}
	a.broadcaster.Close()
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pgRecords != nil {
		a.pgRecords.Close()
	}
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) setupRecords(ctx context.Context) (crawl.RecordStore, error) {
	if a.cfg.DB.Enabled {
		a.logger.Info("using postgres record store")
		store, err := pgstore.NewRecordStore(ctx, pgstore.RecordStoreConfig{
			DSN:      a.cfg.DB.DSN,
			MaxConns: int32(a.cfg.DB.MaxConns),
		})
		if err != nil {
			return nil, fmt.Errorf("record store init failed: %w", err)
		}
		a.pgRecords = store
		return store, nil
	}

	path := filepath.Join(a.cfg.Storage.DataDir, a.cfg.Storage.RecordsFile)
	a.logger.Info("using local record log", zap.String("path", path))
	log, err := localstorage.NewRecordLog(path)
	if err != nil {
		return nil, fmt.Errorf("record log init failed: %w", err)
	}
	return log, nil
}

// setupArtifacts returns the screenshot store plus the directory the API
// should serve screenshots from, empty when the backend is remote.
func (a *App) setupArtifacts(ctx context.Context) (crawl.ArtifactStore, string, error) {
	if a.cfg.Storage.ArtifactBackend == config.BackendGCS {
		a.logger.Info("using GCS artifact store", zap.String("bucket", a.cfg.Storage.GCSBucket))
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("gcs client init failed: %w", err)
		}
		a.gcsClient = client
		store, err := gcsstorage.New(client, gcsstorage.Config{
			Bucket: a.cfg.Storage.GCSBucket,
			Prefix: a.cfg.Storage.GCSPrefix,
		})
		if err != nil {
			return nil, "", fmt.Errorf("gcs artifact store init failed: %w", err)
		}
		return store, "", nil
	}

	dir := filepath.Join(a.cfg.Storage.DataDir, a.cfg.Storage.ScreenshotsDir)
	a.logger.Info("using local screenshot store", zap.String("dir", dir))
	store, err := localstorage.NewScreenshotStore(dir)
	if err != nil {
		return nil, "", fmt.Errorf("screenshot store init failed: %w", err)
	}
	return store, store.Dir(), nil
}

func (a *App) setupPublisher(ctx context.Context) (crawl.RunPublisher, error) {
	if !a.cfg.PubSub.Enabled {
		a.logger.Info("pubsub disabled, using in-memory run publisher")
		return memorypublisher.New(), nil
	}

	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubClient = client
	a.pubsubPublisher = gcppublisher.New(client.Topic(a.cfg.PubSub.TopicName))
	a.logger.Info("pubsub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return a.pubsubPublisher, nil
}
