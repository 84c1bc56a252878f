package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fitsched/schedule-crawler/internal/config"
	"github.com/fitsched/schedule-crawler/internal/crawl"
	"github.com/fitsched/schedule-crawler/internal/metrics"
	"github.com/fitsched/schedule-crawler/internal/status"
)

const requestTimeout = 60 * time.Second

// ClubPreviewer lists the clubs a run would crawl, without a browser.
type ClubPreviewer interface {
	Preview(ctx context.Context) ([]crawl.ClubTarget, error)
}

// Deps carries the collaborators the server exposes over HTTP.
type Deps struct {
	Runner      *crawl.Runner
	Records     crawl.RecordStore
	Broadcaster *status.Broadcaster
	Clock       crawl.Clock
	// Previewer is optional; without it /v1/clubs/preview returns 503.
	Previewer ClubPreviewer
	// ScreenshotDir is optional; when set, saved error screenshots are
	// served under /screenshots/{name}.
	ScreenshotDir string
	Logger        *zap.Logger
}

// Server wires HTTP handlers to the crawl runner and stores.
type Server struct {
	runner        *crawl.Runner
	records       crawl.RecordStore
	broadcaster   *status.Broadcaster
	clock         crawl.Clock
	previewer     ClubPreviewer
	screenshotDir string
	cfg           config.Config
	logger        *zap.Logger
	router        chi.Router
}

// NewServer constructs a Server with middleware and routes.
func NewServer(cfg config.Config, deps Deps) (*Server, error) {
	switch {
	case deps.Runner == nil:
		return nil, fmt.Errorf("server requires a runner")
	case deps.Records == nil:
		return nil, fmt.Errorf("server requires a record store")
	case deps.Broadcaster == nil:
		return nil, fmt.Errorf("server requires a broadcaster")
	case deps.Clock == nil:
		return nil, fmt.Errorf("server requires a clock")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runner:        deps.Runner,
		records:       deps.Records,
		broadcaster:   deps.Broadcaster,
		clock:         deps.Clock,
		previewer:     deps.Previewer,
		screenshotDir: deps.ScreenshotDir,
		cfg:           cfg,
		logger:        logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	if s.screenshotDir != "" {
		r.Get("/screenshots/{name}", s.serveScreenshot)
	}

	r.Route("/v1", func(r chi.Router) {
		// The SSE stream stays outside the timeout handler; a timed-out
		// writer cannot flush.
		r.Get("/crawl/events", s.streamEvents)

		r.Group(func(r chi.Router) {
			r.Use(timeoutMiddleware(requestTimeout))
			r.Route("/crawl", func(r chi.Router) {
				r.Post("/start", s.startCrawl)
				r.Post("/retry", s.retryCrawl)
				r.Post("/stop", s.stopCrawl)
				r.Get("/status", s.crawlStatus)
			})
			r.Route("/schedule", func(r chi.Router) {
				r.Get("/latest", s.latestSchedule)
				r.Get("/classes", s.listClasses)
				r.Get("/clubs", s.listClubs)
				r.Get("/class-names", s.listClassNames)
				r.Get("/instructors", s.listInstructors)
			})
			r.Get("/clubs/preview", s.previewClubs)
		})
	})

	s.router = r
	return s, nil
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if _, _, err := s.records.Latest(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "record store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.String("request_id", requestIDFrom(r.Context())),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.Any("error", rec),
						zap.String("path", r.URL.Path),
					)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
