// Package api hosts the HTTP server, middleware, and REST handlers for
// operator access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/crawl/... for starting, retrying and stopping runs.
//   - GET /v1/crawl/events for the SSE status stream.
//   - GET /v1/schedule/... for querying the latest crawled schedule.
package api
