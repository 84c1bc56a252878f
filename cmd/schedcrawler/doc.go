// Package main hosts the schedule crawler service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, crawl control (start, retry, stop,
//     status), schedule queries with filtering, a Server-Sent Events stream of crawl progress, and
//     failure screenshots. Requests pass through request ID, logging, recovery, and metrics
//     middleware; an optional API key gate covers the whole tree.
//   - Crawl engine: internal/crawl.Runner admits one run at a time and executes it on a background
//     context so client disconnects never abort a crawl. The Orchestrator drives a headless Chrome
//     session (chromedp) through club discovery on the landing page, popup dismissal, and per-club
//     schedule extraction, retrying navigations with a fixed delay and capturing a screenshot when
//     a club fails.
//   - Extraction: internal/extract parses footer navigation into club targets, club pages into
//     address and opening hours, and weekly schedule tables into per-day class entries keyed by
//     Hebrew day names. Club names map onto region labels for query-time grouping.
//   - Persistence & fanout: full crawl records append to a local JSONL log or a Postgres table
//     (pgx) depending on config; screenshots are written to local disk or GCS; per-club statuses
//     persist as JSON so a later retry can target only the failures. A compact run summary is
//     published to Pub/Sub when a topic is configured.
//   - Status & observability: internal/status.Broadcaster fans crawl events out to SSE
//     subscribers, replaying the current snapshot to each new subscriber. Prometheus
//     counters/histograms cover runs, clubs, classes, retries, and HTTP traffic; zap provides
//     structured logging throughout.
//   - Configuration: Viper populates config from a YAML file and SCHEDCRAWLER_* env overrides.
//
// Operational notes:
//   - Concurrency model: a single crawl at a time; concurrent start requests receive 409. Stop is
//     cooperative and lands between clubs, so already-collected clubs still persist. Shutdown
//     requests a stop, waits bounded time, then hard-cancels the run context.
//   - Pacing: browser navigations are spaced by browser.min_nav_interval_ms so the target site is
//     not hammered; per-action and per-navigation budgets bound every page interaction.
//   - The club preview endpoint fetches the landing page over plain HTTP (Colly) without starting
//     a browser, making it cheap enough for dashboards to poll.
//
// Quick checklist:
//   - Configure env vars: SCHEDCRAWLER_SERVER_PORT, SCHEDCRAWLER_CRAWL_BASE_URL,
//     SCHEDCRAWLER_AUTH_ENABLED/SCHEDCRAWLER_AUTH_API_KEY, storage (SCHEDCRAWLER_STORAGE_*),
//     SCHEDCRAWLER_DB_* for Postgres records, and SCHEDCRAWLER_PUBSUB_* for run notifications.
//   - Run locally: go run ./cmd/schedcrawler -config config.yaml (or rely solely on env
//     overrides). A Chrome or Chromium binary must be installed for crawls to run.
//   - The server listens on the configured port, stays stateless across requests apart from the
//     single active run, and drains cleanly on SIGTERM.
package main
