package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Extensions tracks source extensions by kind and outcome.
	Extensions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booru_cache_extensions_total",
			Help: "Total cache extensions from the source",
		},
		[]string{"kind", "outcome"}, // "appended", "exhausted"
	)

	// Records tracks the record count per store kind.
	Records = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "booru_cache_records",
			Help: "Records currently held per cache kind",
		},
		[]string{"kind"},
	)

	// Corruptions tracks cache files that failed to deserialize.
	Corruptions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booru_cache_corruptions_total",
			Help: "Total cache files discarded as corrupt",
		},
	)

	// PersistedBytes tracks bytes written to cache files.
	PersistedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booru_cache_persisted_bytes_total",
			Help: "Total bytes persisted to cache files",
		},
	)
)
