// Command booru-fetch crawls a tag search into the local cache and prints
// the most frequent tags of the result set.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/nforsman/booru-client/internal/config"
	"github.com/nforsman/booru-client/pkg/cache"
	"github.com/nforsman/booru-client/pkg/client"
	"github.com/nforsman/booru-client/pkg/counts"
	"github.com/nforsman/booru-client/pkg/iterator"
	"github.com/nforsman/booru-client/pkg/logging"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults to BOORU_* environment)")
	tags := flag.String("tags", "", "space-separated search tags")
	maxRecords := flag.Int("max", 1000, "stop after this many cached records")
	topN := flag.Int("top", 25, "number of tag counts to print")
	tagCategory := flag.String("category", "general", "tag category to count")
	downloadMedia := flag.Bool("media", false, "download media files for fetched posts")
	overwrite := flag.Bool("overwrite", false, "discard the existing cache for this search")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "booru-fetch: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LoggingConfig())

	c, err := client.New(cfg.ClientConfig())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create client")
	}

	it, err := c.ListPosts(strings.Fields(*tags), nil, true, *overwrite)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create post listing")
	}

	var onRecord func(cache.Record)
	if *downloadMedia {
		onRecord = func(rec cache.Record) {
			if url := mediaURL(rec); url != "" {
				c.Media().Download(url)
			}
		}
	}

	fetched, err := crawl(it.Store(), *maxRecords, onRecord)
	if err != nil {
		logger.Fatal().Err(err).Msg("fetch failed")
	}
	logger.Info().Int("records", fetched).Msg("listing fetched")

	tally, err := counts.Attribute(counts.Cached(it.Store()), iterator.Field("tags", *tagCategory), false)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to count tags")
	}
	for _, pair := range tally.Apply(counts.Top(*topN)).Pairs() {
		fmt.Printf("%8d  %s\n", pair.Count, pair.Value)
	}

	if *downloadMedia {
		c.Media().Wait()
	}
}

// crawl extends the store until max records are cached or the search is
// exhausted. Records land in the store before onRecord sees them, so the id
// cursor keeps advancing across runs.
func crawl(store *cache.Store, max int, onRecord func(cache.Record)) (int, error) {
	for store.CachedLen() < max && !store.Exhausted() {
		before := store.CachedLen()
		grew, err := store.Extend()
		if err != nil {
			return store.CachedLen(), err
		}
		if !grew {
			break
		}
		if onRecord != nil {
			for i := before; i < store.CachedLen(); i++ {
				rec, err := store.CachedAt(i)
				if err != nil {
					return store.CachedLen(), err
				}
				onRecord(rec)
			}
		}
	}
	return store.CachedLen(), nil
}

// mediaURL finds the file URL in either nested (file.url) or flat
// (file_url) listing shapes.
func mediaURL(rec cache.Record) string {
	if url := iterator.Field("file", "url").Text(rec, ""); url != "" {
		return url
	}
	return iterator.Field("file_url").Text(rec, "")
}
