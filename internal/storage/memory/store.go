// Package memory offers in-process stores for tests and for runs that
// do not need durable output.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/fitsched/schedule-crawler/internal/crawl"
)

// RecordStore keeps crawl records in memory, newest last.
type RecordStore struct {
	mu      sync.RWMutex
	records []crawl.CrawlRecord
}

// NewRecordStore returns an empty record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{}
}

// Append stores a copy of rec.
func (s *RecordStore) Append(_ context.Context, rec crawl.CrawlRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, cloneRecord(rec))
	return nil
}

// Latest returns the most recently appended record.
func (s *RecordStore) Latest(_ context.Context) (crawl.CrawlRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return crawl.CrawlRecord{}, false, nil
	}
	return cloneRecord(s.records[len(s.records)-1]), true, nil
}

// All returns every stored record in append order.
func (s *RecordStore) All() []crawl.CrawlRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawl.CrawlRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, cloneRecord(rec))
	}
	return out
}

// StatusStore keeps the latest run's club outcomes in memory.
type StatusStore struct {
	mu       sync.RWMutex
	statuses map[string]crawl.ClubOutcome
	saved    bool
}

// NewStatusStore returns an empty status store.
func NewStatusStore() *StatusStore {
	return &StatusStore{}
}

// SaveRunStatus replaces the stored outcomes.
func (s *StatusStore) SaveRunStatus(_ context.Context, statuses map[string]crawl.ClubOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = cloneStatuses(statuses)
	s.saved = true
	return nil
}

// LoadRunStatus returns the outcomes of the last saved run.
func (s *StatusStore) LoadRunStatus(_ context.Context) (map[string]crawl.ClubOutcome, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.saved {
		return nil, false, nil
	}
	return cloneStatuses(s.statuses), true, nil
}

// ArtifactStore keeps screenshots in memory keyed by name.
type ArtifactStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewArtifactStore returns an empty artifact store.
func NewArtifactStore() *ArtifactStore {
	return &ArtifactStore{blobs: make(map[string][]byte)}
}

// SavePNG stores a copy of data under name and returns the name.
func (s *ArtifactStore) SavePNG(_ context.Context, name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.blobs[name] = buf
	return name, nil
}

// Get returns the blob stored under name.
func (s *ArtifactStore) Get(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.blobs[name]
	if !ok {
		return nil, false
	}
	buf := make([]byte, len(blob))
	copy(buf, blob)
	return buf, true
}

// Len reports how many blobs are stored.
func (s *ArtifactStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

func cloneRecord(rec crawl.CrawlRecord) crawl.CrawlRecord {
	out := rec
	out.Clubs = cloneStatuses(rec.Clubs)
	if rec.Entries != nil {
		out.Entries = make([]crawl.ScheduleEntry, len(rec.Entries))
		copy(out.Entries, rec.Entries)
	}
	return out
}

func cloneStatuses(statuses map[string]crawl.ClubOutcome) map[string]crawl.ClubOutcome {
	if statuses == nil {
		return nil
	}
	out := make(map[string]crawl.ClubOutcome, len(statuses))
	for name, outcome := range statuses {
		copied := outcome
		copied.OpeningHours = maps.Clone(outcome.OpeningHours)
		out[name] = copied
	}
	return out
}
