// Package media provides a rate-limited download cache for binary board
// content. Successful responses land at deterministic paths derived from
// the source URL so repeated downloads can be skipped.
package media

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/nforsman/booru-client/pkg/ratelimit"
	"github.com/nforsman/booru-client/pkg/scheduler"
)

var (
	mediaBytesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booru_media_bytes_written_total",
		Help: "Total bytes written to the media cache",
	})

	mediaCacheQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booru_media_cache_queries_total",
		Help: "Media cache existence checks by result",
	}, []string{"result"}) // "hit", "miss"

	mediaDownloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booru_media_downloads_total",
		Help: "Media downloads by outcome",
	}, []string{"outcome"}) // "written", "failed"
)

// Config holds media cache tuning knobs.
type Config struct {
	// Root is the directory downloaded files are written under.
	Root string

	// Scheduler tunes the embedded download scheduler. Zero values get the
	// media defaults (wide concurrency, aggressive pacing).
	Scheduler scheduler.Config
}

// DefaultConfig returns the download pacing used for media hosts, which
// allow far higher rates than the board API itself.
func DefaultConfig(root string) Config {
	pacer := ratelimit.NewPacer(ratelimit.Config{
		BaseRequestsPerMinute:      500,
		BurstRequestsPerMinute:     1000,
		MaxBurstLength:             120 * time.Second,
		MinBurstLength:             60 * time.Second,
		BurstCooldown:              30 * time.Second,
		MaxConsecutiveBurstPeriods: 4,
	}, zerolog.Nop())

	return Config{
		Root: root,
		Scheduler: scheduler.Config{
			MaxConcurrent:   32,
			NewJobThreshold: 1,
			Pacer:           pacer,
		},
	}
}

// Cache downloads binary content through its own paced scheduler and
// persists successful responses. Duplicate concurrent downloads of the same
// URL are an accepted race, not deduplicated.
type Cache struct {
	root   string
	sched  *scheduler.Scheduler
	logger zerolog.Logger
	wg     sync.WaitGroup
}

// New creates a media cache rooted at cfg.Root.
func New(cfg Config, logger zerolog.Logger) *Cache {
	return &Cache{
		root:   cfg.Root,
		sched:  scheduler.New(cfg.Scheduler, logger),
		logger: logger,
	}
}

// PathFromURL derives the deterministic cache path for a source URL:
// <root>/<md5(url)>.<original extension>.
func (c *Cache) PathFromURL(rawURL string) string {
	sum := md5.Sum([]byte(rawURL))
	name := hex.EncodeToString(sum[:])

	ext := extensionOf(rawURL)
	if ext != "" {
		name = name + "." + ext
	}
	return filepath.Join(c.root, name)
}

func extensionOf(rawURL string) string {
	trimmed := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		trimmed = u.Path
	}
	i := strings.LastIndex(trimmed, ".")
	if i < 0 || i == len(trimmed)-1 {
		return ""
	}
	return trimmed[i+1:]
}

// QueryCache reports whether a successful download for the URL already
// exists on disk.
func (c *Cache) QueryCache(rawURL string) bool {
	_, err := os.Stat(c.PathFromURL(rawURL))
	if err == nil {
		mediaCacheQueries.WithLabelValues("hit").Inc()
		return true
	}
	mediaCacheQueries.WithLabelValues("miss").Inc()
	return false
}

// Download submits a paced fetch for the URL and writes the body to the
// cache path once it completes with a status below 400. Failures are
// discarded without retry; that is the caller's decision to make. The
// returned job id identifies the download; its result is consumed by the
// cache writer.
func (c *Cache) Download(rawURL string) string {
	jobID := c.sched.Submit(rawURL, "GET", nil, nil)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		res, err := c.sched.Await(context.Background(), jobID, 0)
		if err != nil {
			mediaDownloadsTotal.WithLabelValues("failed").Inc()
			c.logger.Warn().Err(err).Str("url", rawURL).Msg("Media download lost")
			return
		}
		if !res.OK() {
			mediaDownloadsTotal.WithLabelValues("failed").Inc()
			c.logger.Debug().
				Str("url", rawURL).
				Int("status", res.StatusCode).
				Msg("Media download failed, result discarded")
			return
		}
		c.write(rawURL, res.Body)
	}()

	return jobID
}

func (c *Cache) write(rawURL string, data []byte) {
	path := c.PathFromURL(rawURL)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		mediaDownloadsTotal.WithLabelValues("failed").Inc()
		c.logger.Warn().Err(err).Str("path", path).Msg("Media cache dir create failed")
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		mediaDownloadsTotal.WithLabelValues("failed").Inc()
		c.logger.Warn().Err(err).Str("path", path).Msg("Media cache write failed")
		return
	}
	mediaBytesWritten.Add(float64(len(data)))
	mediaDownloadsTotal.WithLabelValues("written").Inc()
	c.logger.Debug().
		Str("url", rawURL).
		Str("path", path).
		Int("bytes", len(data)).
		Msg("Media cached")
}

// Wait blocks until all pending downloads have been written or discarded.
func (c *Cache) Wait() {
	c.wg.Wait()
}
