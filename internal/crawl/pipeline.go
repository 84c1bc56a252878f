package crawl

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fitsched/schedule-crawler/internal/status"
)

// CSS selectors for the club chain's site.
const (
	// selFooterNav hosts the club links on the home page.
	selFooterNav = "div.footer-navigation"
	// selOverlayHost matches promotional modals, excluding the club
	// picker which is part of the normal flow.
	selOverlayHost = "div.modal.fade.show[id]:not(#select-club)"
	// selOverlayClose is the dismiss control inside such a modal.
	selOverlayClose = selOverlayHost + " button.close, " + selOverlayHost + " [aria-label='Close']"
	// selScheduleHost marks a rendered schedule, with the legacy
	// wrapper as fallback.
	selScheduleHost = "#pills-tab-studioContent, div.schedule-wrap"
)

// maxOverlayDismissals caps the popup-closing loop per page.
const maxOverlayDismissals = 3

// ClubResult carries everything extracted for one club.
type ClubResult struct {
	Entries []ScheduleEntry
	Facts   ClubFacts
}

// PipelineConfig wires one run's pipeline.
type PipelineConfig struct {
	Session BrowserSession
	Parser  Parser
	Retryer *Retryer
	Events  status.Emitter
	Clock   Clock
	Logger  *zap.Logger
	// BaseURL is the site entry point used for club discovery.
	BaseURL string
}

// Pipeline drives a browser session through the site: club discovery
// off the home page footer, then per club the navigation, overlay
// dismissal, schedule rendering and extraction into normalized entries.
type Pipeline struct {
	cfg PipelineConfig
}

// NewPipeline builds a pipeline for a single run.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Pipeline{cfg: cfg}
}

// DiscoverClubs loads the home page and collects the club links from
// the footer navigation.
func (p *Pipeline) DiscoverClubs(ctx context.Context, stop *StopSignal) ([]ClubTarget, error) {
	err := p.cfg.Retryer.Do(ctx, stop, Operation{
		Description: "load home page",
		Fn: func(ctx context.Context) error {
			if err := p.cfg.Session.Navigate(ctx, p.cfg.BaseURL); err != nil {
				return err
			}
			return p.cfg.Session.WaitVisible(ctx, selFooterNav)
		},
	})
	if err != nil {
		return nil, err
	}

	html, err := p.cfg.Session.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read home page: %w", err)
	}
	clubs, err := p.cfg.Parser.ClubLinks(html, p.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse club links: %w", err)
	}
	p.cfg.Logger.Info("clubs discovered", zap.Int("count", len(clubs)))
	return clubs, nil
}

// ProcessClub walks one club page to its schedule and returns the
// normalized entries plus any club details found along the way. Day
// progress is broadcast as the schedule is consumed.
func (p *Pipeline) ProcessClub(ctx context.Context, stop *StopSignal, club ClubTarget) (ClubResult, error) {
	var res ClubResult

	err := p.cfg.Retryer.Do(ctx, stop, Operation{
		Description: "open club page",
		Club:        club.Name,
		Fn: func(ctx context.Context) error {
			return p.cfg.Session.Navigate(ctx, club.URL)
		},
	})
	if err != nil {
		return res, err
	}

	p.dismissOverlays(ctx, club.Name)

	clubHTML, err := p.cfg.Session.HTML(ctx)
	if err != nil {
		p.cfg.Logger.Warn("read club page failed",
			zap.String("club", club.Name), zap.Error(err))
	} else {
		res.Facts = p.cfg.Parser.ClubFacts(clubHTML)
	}

	// The full schedule usually sits behind a dedicated link; some club
	// pages render it inline instead.
	if scheduleURL := p.scheduleLink(clubHTML, club); scheduleURL != "" {
		err = p.cfg.Retryer.Do(ctx, stop, Operation{
			Description: "open schedule page",
			Club:        club.Name,
			Fn: func(ctx context.Context) error {
				return p.cfg.Session.Navigate(ctx, scheduleURL)
			},
		})
		if err != nil {
			return res, err
		}
		p.dismissOverlays(ctx, club.Name)
	}

	err = p.cfg.Retryer.Do(ctx, stop, Operation{
		Description: "wait for schedule",
		Club:        club.Name,
		Fn: func(ctx context.Context) error {
			return p.cfg.Session.WaitVisible(ctx, selScheduleHost)
		},
	})
	if err != nil {
		return res, err
	}

	html, err := p.cfg.Session.HTML(ctx)
	if err != nil {
		return res, fmt.Errorf("read schedule for %s: %w", club.Name, err)
	}
	days, err := p.cfg.Parser.Schedule(html, club.Name, p.now())
	if err != nil {
		return res, fmt.Errorf("parse schedule for %s: %w", club.Name, err)
	}

	for _, day := range days {
		if err := stop.Check("schedule days"); err != nil {
			return res, err
		}
		p.publish(status.Event{Type: status.TypeDayProcessing, Club: club.Name, Day: day.Label})
		res.Entries = append(res.Entries, day.Entries...)
		p.publish(status.Event{Type: status.TypeClassesFound, Club: club.Name, Day: day.Label, Count: len(day.Entries)})
		if day.Skipped > 0 {
			p.cfg.Logger.Debug("dropped incomplete class items",
				zap.String("club", club.Name),
				zap.String("day", day.Label),
				zap.Int("skipped", day.Skipped))
		}
	}
	return res, nil
}

// dismissOverlays closes promotional modals covering the page. The site
// shows them intermittently, so absence is the common case and click
// failures are not fatal.
func (p *Pipeline) dismissOverlays(ctx context.Context, club string) {
	for i := 0; i < maxOverlayDismissals; i++ {
		found, err := p.cfg.Session.Exists(ctx, selOverlayHost)
		if err != nil || !found {
			return
		}
		if err := p.cfg.Session.Click(ctx, selOverlayClose); err != nil {
			p.cfg.Logger.Debug("overlay dismiss failed",
				zap.String("club", club), zap.Error(err))
			return
		}
	}
}

func (p *Pipeline) scheduleLink(clubHTML string, club ClubTarget) string {
	if clubHTML == "" {
		return ""
	}
	link, err := p.cfg.Parser.ScheduleLink(clubHTML, club.URL)
	if err != nil {
		p.cfg.Logger.Warn("schedule link lookup failed",
			zap.String("club", club.Name), zap.Error(err))
		return ""
	}
	return link
}

func (p *Pipeline) now() time.Time {
	if p.cfg.Clock != nil {
		return p.cfg.Clock.Now()
	}
	return time.Now().UTC()
}

func (p *Pipeline) publish(ev status.Event) {
	if p.cfg.Events == nil {
		return
	}
	p.cfg.Events.Publish(ev)
}
