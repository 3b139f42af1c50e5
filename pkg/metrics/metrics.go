// Package metrics provides the centralized Prometheus registry for the
// booru client. All metrics are defined in their respective packages
// (scheduler, ratelimit, cache, media) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the booru client.
// All metrics are automatically registered via promauto in their respective
// packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Scheduler Metrics (pkg/scheduler):
//   - booru_jobs_submitted_total (Counter): Total jobs submitted to the scheduler
//   - booru_jobs_completed_total{outcome} (Counter): Jobs completed by outcome (ok, http_error, transport_error)
//   - booru_active_workers (Gauge): Currently active worker goroutines
//   - booru_queue_depth (Gauge): Jobs waiting in the scheduler queue
//   - booru_job_duration_seconds (Histogram): Job execution duration
//
// Pacer Metrics (pkg/ratelimit):
//   - booru_pacer_burst_requests (Gauge): Consecutive burst-interval dispatches in the current burst period
//   - booru_pacer_intervals_total{class} (Counter): Dispatch intervals handed out by rate class (base, burst)
//   - booru_pacer_burst_periods_total (Counter): Burst periods entered
//   - booru_pacer_cooldowns_forced_total (Counter): Forced resets of burst state into a cooldown window
//
// Cache Metrics (pkg/cache):
//   - booru_cache_extensions_total{kind, outcome} (Counter): Cache extensions from the source
//   - booru_cache_records{kind} (Gauge): Records currently held per cache kind
//   - booru_cache_corruptions_total (Counter): Cache files discarded as corrupt
//   - booru_cache_persisted_bytes_total (Counter): Bytes persisted to cache files
//
// Media Metrics (pkg/media):
//   - booru_media_bytes_written_total (Counter): Bytes written to the media cache
//   - booru_media_cache_queries_total{result} (Counter): Media cache existence checks (hit, miss)
//   - booru_media_downloads_total{outcome} (Counter): Media downloads by outcome (written, failed)
//
// Example Prometheus Queries:
//
//   # Burst Share of Dispatches
//   rate(booru_pacer_intervals_total{class="burst"}[5m]) /
//   sum(rate(booru_pacer_intervals_total[5m]))
//
//   # Media Cache Hit Rate
//   rate(booru_media_cache_queries_total{result="hit"}[5m]) /
//   sum(rate(booru_media_cache_queries_total[5m]))
//
//   # Queue Backlog
//   booru_queue_depth > 100
//
//   # P95 Job Latency
//   histogram_quantile(0.95, rate(booru_job_duration_seconds_bucket[5m]))
