package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fitsched/schedule-crawler/internal/crawl"
	"github.com/fitsched/schedule-crawler/internal/metrics"
	"github.com/fitsched/schedule-crawler/internal/status"
)

const sseKeepalive = 15 * time.Second

// startCrawl handles POST /v1/crawl/start. It launches a discovery run
// and returns its ID, or 409 while another run is active.
func (s *Server) startCrawl(w http.ResponseWriter, _ *http.Request) {
	runID, err := s.runner.StartDiscovery()
	if err != nil {
		if errors.Is(err, crawl.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("start crawl failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start crawl")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

// retryCrawl handles POST /v1/crawl/retry. It re-crawls the clubs the
// previous run left failed.
func (s *Server) retryCrawl(w http.ResponseWriter, r *http.Request) {
	runID, clubs, err := s.runner.StartRetry(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, crawl.ErrAlreadyRunning):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, crawl.ErrNoPreviousRun):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, crawl.ErrNothingToRetry):
			writeJSON(w, http.StatusOK, map[string]string{"status": err.Error()})
		default:
			s.logger.Error("retry crawl failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to start retry")
		}
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id": runID,
		"clubs":  clubs,
	})
}

// stopCrawl handles POST /v1/crawl/stop. Repeating the request during
// the same run is harmless; with no run in flight it returns 409.
func (s *Server) stopCrawl(w http.ResponseWriter, _ *http.Request) {
	if !s.runner.RequestStop() {
		writeError(w, http.StatusConflict, "no crawl is running")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stop requested"})
}

// crawlStatus handles GET /v1/crawl/status.
func (s *Server) crawlStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Status())
}

// streamEvents handles GET /v1/crawl/events as a server-sent event
// stream. The first event is always the synthetic status snapshot;
// afterwards the subscriber sees live run events until it disconnects
// or falls behind.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(sub)
	metrics.IncSubscribers()
	defer metrics.DecSubscribers()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepalive := time.NewTicker(sseKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-sub.Events():
			if !open {
				return
			}
			if err := writeSSE(w, flusher, ev); err != nil {
				return
			}
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, ev status.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	flusher.Flush()
	return nil
}
