// Package memory contains an in-memory run publisher for tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/fitsched/schedule-crawler/internal/crawl"
)

// Publisher stores published run summaries for inspection.
type Publisher struct {
	mu        sync.RWMutex
	summaries []crawl.RunSummary
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// PublishRunResult records the summary and returns a pseudo ID.
func (p *Publisher) PublishRunResult(_ context.Context, summary crawl.RunSummary) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.summaries = append(p.summaries, summary)
	return fmt.Sprintf("memory-%d", len(p.summaries)), nil
}

// Summaries returns the recorded publishes.
func (p *Publisher) Summaries() []crawl.RunSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]crawl.RunSummary, len(p.summaries))
	copy(out, p.summaries)
	return out
}
