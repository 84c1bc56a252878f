// Package browser drives the club chain's site in headless Chrome and
// exposes it to the crawl engine as a single-page session.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fitsched/schedule-crawler/internal/crawl"
)

// Schedule parsing keys off Hebrew day labels, so sessions always ask for
// the Hebrew page variant.
const acceptLanguage = "he-IL,he;q=0.9,en;q=0.6"

// Config controls how sessions are launched and paced.
type Config struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	UserAgent      string
	// ActionTimeout bounds waits, clicks and DOM reads.
	ActionTimeout time.Duration
	// NavTimeout bounds a navigation including its document load.
	NavTimeout time.Duration
	// LaunchTimeout bounds the browser start, which on a cold host
	// includes fetching nothing but still forks the Chrome process.
	LaunchTimeout time.Duration
	// MinNavInterval spaces navigations so the site is not hammered.
	MinNavInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = 1280
	}
	if c.ViewportHeight <= 0 {
		c.ViewportHeight = 800
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = 4 * time.Second
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 10 * time.Second
	}
	if c.LaunchTimeout <= 0 {
		c.LaunchTimeout = 2 * time.Minute
	}
	return c
}

// Factory launches one headless Chrome per crawl run.
type Factory struct {
	cfg    Config
	logger *zap.Logger
}

// NewFactory builds a session factory.
func NewFactory(cfg Config, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{cfg: cfg.withDefaults(), logger: logger}
}

// OpenSession starts a browser under ctx and returns it once Chrome is
// up. The session dies with ctx or with Close, whichever comes first.
func (f *Factory) OpenSession(ctx context.Context) (crawl.BrowserSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(f.cfg.ViewportWidth, f.cfg.ViewportHeight),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	launchCtx, cancel := context.WithTimeout(browserCtx, f.cfg.LaunchTimeout)
	defer cancel()
	if err := chromedp.Run(launchCtx, f.sessionSetupAction()); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	f.logger.Info("browser session started",
		zap.Bool("headless", f.cfg.Headless),
		zap.Int("viewport_width", f.cfg.ViewportWidth),
		zap.Int("viewport_height", f.cfg.ViewportHeight))

	return &Session{
		cfg:           f.cfg,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		pace:          newPacer(f.cfg.MinNavInterval),
		logger:        f.logger,
	}, nil
}

func (f *Factory) sessionSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		headers := network.Headers{"Accept-Language": acceptLanguage}
		if err := network.SetExtraHTTPHeaders(headers).Do(ctx); err != nil {
			return fmt.Errorf("set extra headers: %w", err)
		}
		return nil
	})
}

// Session is a live Chrome with a single page, shared by all the
// operations of one crawl run.
type Session struct {
	cfg           Config
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	pace          *rate.Limiter
	logger        *zap.Logger
	closeOnce     sync.Once
}

func newPacer(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Navigate loads url on the session's page and waits for the document
// body, pacing successive navigations per the configured interval.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.pace.Wait(ctx); err != nil {
		return fmt.Errorf("navigation pacing: %w", err)
	}
	err := s.run(ctx, s.cfg.NavTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	s.logger.Debug("navigated", zap.String("url", url))
	return nil
}

// WaitVisible blocks until selector is rendered and visible.
func (s *Session) WaitVisible(ctx context.Context, selector string) error {
	err := s.run(ctx, s.cfg.ActionTimeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
	if err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	return nil
}

// Click clicks the first element matching selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// Exists probes the DOM for selector without waiting for it to appear.
func (s *Session) Exists(ctx context.Context, selector string) (bool, error) {
	var found bool
	err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Evaluate(existsScript(selector), &found))
	if err != nil {
		return false, fmt.Errorf("probe %s: %w", selector, err)
	}
	return found, nil
}

// HTML returns the page's current outer HTML.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, s.cfg.ActionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	if err != nil {
		return "", fmt.Errorf("read dom: %w", err)
	}
	return html, nil
}

// Screenshot captures the visible viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var shot []byte
	err := s.run(ctx, s.cfg.ActionTimeout, chromedp.CaptureScreenshot(&shot))
	if err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return shot, nil
}

// Close tears down the page and the Chrome process. Safe to call twice.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.browserCancel()
		s.allocCancel()
		s.logger.Info("browser session closed")
	})
	return nil
}

// run executes actions against the session's page under timeout,
// forwarding cancellation from the caller's ctx. chromedp only accepts
// contexts descending from its own, so the caller's cannot be passed
// straight through.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.browserCtx, timeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// existsScript builds the querySelector probe. %q escaping is valid in
// JavaScript string literals for the selectors in use.
func existsScript(selector string) string {
	return fmt.Sprintf("document.querySelector(%q) !== null", selector)
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
