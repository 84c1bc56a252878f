// Package local persists crawl output on the local filesystem: an
// append-only record log, the last-run status file, and the error
// screenshot directory.
package local

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fitsched/schedule-crawler/internal/crawl"
)

// maxRecordBytes bounds a single record line on read. A full crawl of
// the chain stays well under this.
const maxRecordBytes = 32 << 20

// RecordLog appends crawl records to a JSONL file, one record per line.
type RecordLog struct {
	path string
	mu   sync.Mutex
}

// NewRecordLog creates the log's directory and returns the log.
func NewRecordLog(path string) (*RecordLog, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("record log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create record log dir: %w", err)
	}
	return &RecordLog{path: path}, nil
}

// Append writes rec as one JSON line at the end of the log.
func (l *RecordLog) Append(ctx context.Context, rec crawl.CrawlRecord) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal crawl record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open record log: %w", err)
	}
	if _, err := f.Write(append(payload, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("append crawl record: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close record log: %w", err)
	}
	return nil
}

// Latest returns the last well-formed record in the log. Malformed
// lines are skipped, so a torn write cannot hide earlier runs.
func (l *RecordLog) Latest(ctx context.Context) (crawl.CrawlRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return crawl.CrawlRecord{}, false, fmt.Errorf("context canceled: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return crawl.CrawlRecord{}, false, nil
		}
		return crawl.CrawlRecord{}, false, fmt.Errorf("open record log: %w", err)
	}
	defer f.Close()

	var (
		latest crawl.CrawlRecord
		found  bool
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(nil, maxRecordBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec crawl.CrawlRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		latest = rec
		found = true
	}
	if err := scanner.Err(); err != nil {
		return crawl.CrawlRecord{}, false, fmt.Errorf("read record log: %w", err)
	}
	return latest, found, nil
}

// StatusFile stores the per-club outcomes of the most recent run,
// rewritten whole at every run end.
type StatusFile struct {
	path string
	mu   sync.Mutex
}

// NewStatusFile creates the file's directory and returns the store.
func NewStatusFile(path string) (*StatusFile, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("status file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create status file dir: %w", err)
	}
	return &StatusFile{path: path}, nil
}

// SaveRunStatus replaces the file with the given outcomes.
func (s *StatusFile) SaveRunStatus(ctx context.Context, statuses map[string]crawl.ClubOutcome) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	payload, err := json.MarshalIndent(statuses, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run status: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.path, payload, 0o600); err != nil {
		return fmt.Errorf("write run status: %w", err)
	}
	return nil
}

// LoadRunStatus reads the outcomes of the previous run. The second
// return is false when no run has been recorded yet.
func (s *StatusFile) LoadRunStatus(ctx context.Context) (map[string]crawl.ClubOutcome, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("context canceled: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read run status: %w", err)
	}
	statuses := make(map[string]crawl.ClubOutcome)
	if err := json.Unmarshal(payload, &statuses); err != nil {
		return nil, false, fmt.Errorf("decode run status: %w", err)
	}
	return statuses, true, nil
}

// ScreenshotStore writes error screenshots under a single directory.
type ScreenshotStore struct {
	dir string
}

// NewScreenshotStore creates dir and returns the store.
func NewScreenshotStore(dir string) (*ScreenshotStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("screenshot dir is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create screenshot dir: %w", err)
	}
	return &ScreenshotStore{dir: dir}, nil
}

// SavePNG writes data under name and returns the name as the artifact
// reference. Names must be bare filenames; anything resembling a path
// is rejected.
func (s *ScreenshotStore) SavePNG(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context canceled: %w", err)
	}
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("screenshot name is required")
	}
	if filepath.Base(name) != name || name == "." || name == ".." {
		return "", fmt.Errorf("invalid screenshot name %q", name)
	}
	target := filepath.Join(s.dir, name)
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return name, nil
}

// Dir returns the directory screenshots are written to.
func (s *ScreenshotStore) Dir() string {
	return s.dir
}
