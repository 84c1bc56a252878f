// Package crawl contains the core crawl-orchestration engine: the run
// lifecycle, the per-club processing pipeline, retry handling with
// diagnostic screenshots, cooperative stop, and the aggregate status
// board. The package owns the domain types and the interfaces its
// storage, browser and publishing adapters implement, so adapters
// depend on crawl and never the other way around.
package crawl
