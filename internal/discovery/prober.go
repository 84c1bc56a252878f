// Package discovery probes the public club list over plain HTTP,
// without spinning up a browser. The API uses it to preview which
// clubs a crawl run would visit.
package discovery

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/fitsched/schedule-crawler/internal/crawl"
	"github.com/fitsched/schedule-crawler/internal/extract"
)

// Config controls the preview collector.
type Config struct {
	BaseURL       string
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
}

// Prober fetches the site's landing page with Colly and extracts the
// footer club links from it.
type Prober struct {
	cfg           Config
	parser        *extract.Parser
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// New builds a Prober.
func New(cfg Config, parser *extract.Parser, logger *zap.Logger) (*Prober, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if parser == nil {
		return nil, fmt.Errorf("parser is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = !cfg.RespectRobots
	c.WithTransport(newHTTPTransport())
	return &Prober{
		cfg:           cfg,
		parser:        parser,
		baseCollector: c,
		logger:        logger,
	}, nil
}

// Preview fetches the landing page and returns the clubs a run would
// crawl.
func (p *Prober) Preview(ctx context.Context) ([]crawl.ClubTarget, error) {
	collector := p.baseCollector.Clone()
	if p.cfg.UserAgent != "" {
		collector.UserAgent = p.cfg.UserAgent
	}
	timeout := p.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	var (
		body     []byte
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	start := time.Now()
	if err := p.visit(ctx, collector, &fetchErr); err != nil {
		return nil, err
	}

	clubs, err := p.parser.ClubLinks(string(body), p.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("extract club links: %w", err)
	}
	p.logger.Debug("club preview fetched",
		zap.Int("clubs", len(clubs)),
		zap.Duration("duration", time.Since(start)),
	)
	return clubs, nil
}

func (p *Prober) visit(ctx context.Context, collector *colly.Collector, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(p.cfg.BaseURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("club preview canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("fetch landing page: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("fetch landing page: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
