package crawl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/fitsched/schedule-crawler/internal/metrics"
	"github.com/fitsched/schedule-crawler/internal/status"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

// fakeSession is a scriptable BrowserSession.
type fakeSession struct {
	mu          sync.Mutex
	pages       map[string]string // url -> html served after navigation
	current     string
	navigations []string
	waits       []string
	clicks      []string
	closed      int

	failNavigate  map[string]int // url -> failures before success
	failWait      map[string]int // selector -> failures before success
	htmlErr       error
	existing      map[string]bool // selector -> Exists result
	screenshot    []byte
	screenshotErr error
	closeErr      error
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		pages:        map[string]string{},
		failNavigate: map[string]int{},
		failWait:     map[string]int{},
		existing:     map[string]bool{},
		screenshot:   []byte("png"),
	}
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigations = append(s.navigations, url)
	if n := s.failNavigate[url]; n > 0 {
		s.failNavigate[url] = n - 1
		return fmt.Errorf("navigate %s: connection reset", url)
	}
	s.current = s.pages[url]
	return nil
}

func (s *fakeSession) WaitVisible(_ context.Context, selector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, selector)
	if n := s.failWait[selector]; n > 0 {
		s.failWait[selector] = n - 1
		return fmt.Errorf("wait %s: timed out", selector)
	}
	return nil
}

func (s *fakeSession) Click(_ context.Context, selector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clicks = append(s.clicks, selector)
	// Clicking an overlay close dismisses it.
	s.existing[selOverlayHost] = false
	return nil
}

func (s *fakeSession) Exists(_ context.Context, selector string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.existing[selector], nil
}

func (s *fakeSession) HTML(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.htmlErr != nil {
		return "", s.htmlErr
	}
	return s.current, nil
}

func (s *fakeSession) Screenshot(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.screenshotErr != nil {
		return nil, s.screenshotErr
	}
	return s.screenshot, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return s.closeErr
}

func (s *fakeSession) closedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeSessionFactory struct {
	mu      sync.Mutex
	session *fakeSession
	openErr error
	opened  int
}

func (f *fakeSessionFactory) OpenSession(context.Context) (BrowserSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened++
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.session, nil
}

// fakeParser scripts the HTML-to-data layer.
type fakeParser struct {
	mu         sync.Mutex
	clubs      []ClubTarget
	clubsErr   error
	links      map[string]string // page url -> schedule link
	facts      ClubFacts
	schedules  map[string][]DaySchedule // club name -> days
	schedErrs  map[string]error
	onSchedule func(club string)
	linkCalls  int
	clubCalls  int
}

func newFakeParser() *fakeParser {
	return &fakeParser{
		links:     map[string]string{},
		schedules: map[string][]DaySchedule{},
		schedErrs: map[string]error{},
	}
}

func (p *fakeParser) ClubLinks(_, _ string) ([]ClubTarget, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clubCalls++
	return p.clubs, p.clubsErr
}

func (p *fakeParser) ScheduleLink(_, pageURL string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.linkCalls++
	return p.links[pageURL], nil
}

func (p *fakeParser) ClubFacts(string) ClubFacts {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.facts
}

func (p *fakeParser) Schedule(_, club string, _ time.Time) ([]DaySchedule, error) {
	p.mu.Lock()
	hook := p.onSchedule
	days := p.schedules[club]
	err := p.schedErrs[club]
	p.mu.Unlock()
	if hook != nil {
		hook(club)
	}
	return days, err
}

func (p *fakeParser) discoveryCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clubCalls
}

type fakeRecordStore struct {
	mu        sync.Mutex
	records   []CrawlRecord
	appendErr error
}

func (s *fakeRecordStore) Append(_ context.Context, rec CrawlRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *fakeRecordStore) Latest(context.Context) (CrawlRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return CrawlRecord{}, false, nil
	}
	return s.records[len(s.records)-1], true, nil
}

func (s *fakeRecordStore) all() []CrawlRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CrawlRecord, len(s.records))
	copy(out, s.records)
	return out
}

type fakeStatusStore struct {
	mu      sync.Mutex
	saved   []map[string]ClubOutcome
	loaded  map[string]ClubOutcome
	hasLoad bool
	saveErr error
	loadErr error
}

func (s *fakeStatusStore) SaveRunStatus(_ context.Context, statuses map[string]ClubOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	cp := make(map[string]ClubOutcome, len(statuses))
	for k, v := range statuses {
		cp[k] = v
	}
	s.saved = append(s.saved, cp)
	return nil
}

func (s *fakeStatusStore) LoadRunStatus(context.Context) (map[string]ClubOutcome, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, false, s.loadErr
	}
	return s.loaded, s.hasLoad, nil
}

func (s *fakeStatusStore) lastSaved() map[string]ClubOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saved) == 0 {
		return nil
	}
	return s.saved[len(s.saved)-1]
}

type fakeArtifactStore struct {
	mu      sync.Mutex
	saved   map[string][]byte
	saveErr error
}

func newFakeArtifactStore() *fakeArtifactStore {
	return &fakeArtifactStore{saved: map[string][]byte{}}
}

func (s *fakeArtifactStore) SavePNG(_ context.Context, name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return "", s.saveErr
	}
	s.saved[name] = data
	return name, nil
}

func (s *fakeArtifactStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

// recordingEmitter captures published events for assertions. onPublish,
// when set, runs after recording and lets tests inject stops at exact
// points in the run.
type recordingEmitter struct {
	mu        sync.Mutex
	events    []status.Event
	onPublish func(status.Event)
}

func (e *recordingEmitter) Publish(ev status.Event) {
	e.mu.Lock()
	e.events = append(e.events, ev)
	hook := e.onPublish
	e.mu.Unlock()
	if hook != nil {
		hook(ev)
	}
}

func (e *recordingEmitter) byType(t status.Type) []status.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []status.Event
	for _, ev := range e.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (e *recordingEmitter) terminals() []status.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []status.Event
	for _, ev := range e.events {
		if ev.Terminal() {
			out = append(out, ev)
		}
	}
	return out
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 4, 27, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fakeIDs struct {
	mu  sync.Mutex
	n   int
	err error
}

func (g *fakeIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	g.n++
	return fmt.Sprintf("run-%04d", g.n), nil
}

// day builds a DaySchedule with n valid entries for club.
func day(club, label, date string, n int) DaySchedule {
	d := DaySchedule{Label: label, Date: date}
	for i := 0; i < n; i++ {
		d.Entries = append(d.Entries, ScheduleEntry{
			Club:     club,
			Date:     date,
			DayLabel: label,
			Time:     fmt.Sprintf("%02d:00", 8+i),
			Name:     fmt.Sprintf("class-%d", i),
		})
	}
	return d
}

var errBoom = errors.New("boom")
