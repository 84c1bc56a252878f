package api

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fitsched/schedule-crawler/internal/crawl"
	"github.com/fitsched/schedule-crawler/internal/extract"
)

// classDTO is a schedule entry annotated with its region.
type classDTO struct {
	crawl.ScheduleEntry
	Region string `json:"region"`
}

// latestSchedule handles GET /v1/schedule/latest.
func (s *Server) latestSchedule(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadLatest(w, r)
	if !ok {
		return
	}
	stale := false
	if maxAge := s.cfg.Crawl.StaleAfter(); maxAge > 0 {
		stale = s.clock.Now().Sub(rec.CrawledAt) > maxAge
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"crawl_timestamp": rec.CrawledAt,
		"count":           len(rec.Entries),
		"stale":           stale,
		"record":          rec,
	})
}

// listClasses handles GET /v1/schedule/classes. All filters accept
// multiple values; club, name and instructor match case-insensitive
// substrings while day, date and region match exactly.
func (s *Server) listClasses(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadLatest(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	var (
		clubs       = q["club"]
		names       = q["name"]
		instructors = q["instructor"]
		days        = q["day"]
		dates       = q["date"]
		regions     = q["region"]
	)

	classes := make([]classDTO, 0, len(rec.Entries))
	regionSet := make(map[string]struct{})
	for _, entry := range rec.Entries {
		if len(dates) > 0 && !matchAnyExact(entry.Date, dates) {
			continue
		}
		if len(days) > 0 && !matchAnyExact(entry.DayLabel, days) {
			continue
		}
		if len(names) > 0 && !matchAnyFold(entry.Name, names) {
			continue
		}
		if len(clubs) > 0 && !matchAnyFold(entry.Club, clubs) {
			continue
		}
		if len(instructors) > 0 && (entry.Instructor == "" || !matchAnyFold(entry.Instructor, instructors)) {
			continue
		}
		region := extract.Region(entry.Club)
		if len(regions) > 0 && !matchAnyExact(region, regions) {
			continue
		}
		classes = append(classes, classDTO{ScheduleEntry: entry, Region: region})
		regionSet[region] = struct{}{}
	}

	regionsFound := make([]string, 0, len(regionSet))
	for region := range regionSet {
		regionsFound = append(regionsFound, region)
	}
	extract.SortRegions(regionsFound)

	writeJSON(w, http.StatusOK, map[string]any{
		"count":         len(classes),
		"classes":       classes,
		"regions_found": regionsFound,
	})
}

// listClubs handles GET /v1/schedule/clubs.
func (s *Server) listClubs(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadLatest(w, r)
	if !ok {
		return
	}
	clubs := distinct(rec.Entries, func(e crawl.ScheduleEntry) string { return e.Club })
	writeJSON(w, http.StatusOK, map[string]any{"count": len(clubs), "clubs": clubs})
}

// listClassNames handles GET /v1/schedule/class-names.
func (s *Server) listClassNames(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadLatest(w, r)
	if !ok {
		return
	}
	names := distinct(rec.Entries, func(e crawl.ScheduleEntry) string { return e.Name })
	writeJSON(w, http.StatusOK, map[string]any{"count": len(names), "class_names": names})
}

// listInstructors handles GET /v1/schedule/instructors.
func (s *Server) listInstructors(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadLatest(w, r)
	if !ok {
		return
	}
	instructors := distinct(rec.Entries, func(e crawl.ScheduleEntry) string { return e.Instructor })
	writeJSON(w, http.StatusOK, map[string]any{"count": len(instructors), "instructors": instructors})
}

// previewClubs handles GET /v1/clubs/preview via the browserless probe.
func (s *Server) previewClubs(w http.ResponseWriter, r *http.Request) {
	if s.previewer == nil {
		writeError(w, http.StatusServiceUnavailable, "club preview is not configured")
		return
	}
	ctx := r.Context()
	if budget := s.cfg.Crawl.PreviewBudget(); budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}
	clubs, err := s.previewer.Preview(ctx)
	if err != nil {
		s.logger.Error("club preview failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to fetch club list")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(clubs), "clubs": clubs})
}

// serveScreenshot handles GET /screenshots/{name}.
func (s *Server) serveScreenshot(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" || filepath.Base(name) != name || name == "." || name == ".." {
		writeError(w, http.StatusBadRequest, "invalid screenshot name")
		return
	}
	path := filepath.Join(s.screenshotDir, name)
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "screenshot not found")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, path)
}

func (s *Server) loadLatest(w http.ResponseWriter, r *http.Request) (crawl.CrawlRecord, bool) {
	rec, found, err := s.records.Latest(r.Context())
	if err != nil {
		s.logger.Error("load latest crawl failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load latest crawl")
		return crawl.CrawlRecord{}, false
	}
	if !found {
		writeError(w, http.StatusNotFound, "no crawl data available")
		return crawl.CrawlRecord{}, false
	}
	return rec, true
}

func matchAnyExact(value string, filters []string) bool {
	for _, f := range filters {
		if value == f {
			return true
		}
	}
	return false
}

func matchAnyFold(value string, filters []string) bool {
	lowered := strings.ToLower(value)
	for _, f := range filters {
		if strings.Contains(lowered, strings.ToLower(f)) {
			return true
		}
	}
	return false
}

func distinct(entries []crawl.ScheduleEntry, key func(crawl.ScheduleEntry) string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, e := range entries {
		k := key(e)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
