// Package feeds aggregates syndication entries from the configured feed
// registry and normalizes them for clustering.
package feeds

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/lexica-app/lexica-pipeline/internal/core/feed"
	"github.com/lexica-app/lexica-pipeline/internal/platform/observability"
	"github.com/lexica-app/lexica-pipeline/internal/platform/worker"
)

const (
	unknownSource = "unknown"

	statusOK    = "ok"
	statusError = "error"
)

// Source is one feed endpoint to fetch.
type Source struct {
	URL  string
	Name string
}

// Aggregator fetches all configured feeds concurrently with per-feed fault
// isolation and filters entries to the recency window.
type Aggregator struct {
	parser *gofeed.Parser
	window time.Duration
	logger *zerolog.Logger

	// now is swappable for tests.
	now func() time.Time
}

func NewAggregator(window, fetchTimeout time.Duration, logger *zerolog.Logger) *Aggregator {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: fetchTimeout}

	return &Aggregator{
		parser: parser,
		window: window,
		logger: logger,
		now:    time.Now,
	}
}

// FetchAll fans out one fetch per source and waits for all of them. A failing
// feed contributes zero articles and never aborts the others; it is not
// retried within the run. Output order across feeds is not significant
// downstream.
func (a *Aggregator) FetchAll(ctx context.Context, sources []Source) []feed.Article {
	cutoff := a.now().Add(-a.window)
	perFeed := make([][]feed.Article, len(sources))

	var wg sync.WaitGroup

	for i, src := range sources {
		wg.Add(1)

		go func(i int, src Source) {
			defer wg.Done()
			defer worker.RecoverPanic(a.logger, "fetch feed")

			articles, err := a.fetchOne(ctx, src, cutoff)
			if err != nil {
				observability.FeedFetches.WithLabelValues(src.URL, statusError).Inc()
				a.logger.Warn().Err(err).Str("feed", src.URL).Msg("feed fetch failed")

				return
			}

			observability.FeedFetches.WithLabelValues(src.URL, statusOK).Inc()

			perFeed[i] = articles
		}(i, src)
	}

	wg.Wait()

	var out []feed.Article
	for _, articles := range perFeed {
		out = append(out, articles...)
	}

	observability.ArticlesAggregated.Add(float64(len(out)))

	return out
}

func (a *Aggregator) fetchOne(ctx context.Context, src Source, cutoff time.Time) ([]feed.Article, error) {
	parsed, err := a.parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, err
	}

	sourceName := parsed.Title
	if sourceName == "" {
		sourceName = src.Name
	}

	if sourceName == "" {
		sourceName = unknownSource
	}

	var articles []feed.Article

	for _, item := range parsed.Items {
		if item == nil {
			continue
		}

		published, ok := effectiveTimestamp(item)
		if !ok || published.Before(cutoff) {
			continue
		}

		articles = append(articles, feed.Article{
			Title:       item.Title,
			Summary:     item.Description,
			Link:        item.Link,
			Source:      sourceName,
			PublishedAt: publishedString(item),
		})
	}

	return articles, nil
}

// effectiveTimestamp resolves the entry's publish time: the parsed publish
// date, falling back to the updated date, falling back to best-effort parsing
// of the raw strings. An entry with no parseable timestamp is outside the
// window by definition.
func effectiveTimestamp(item *gofeed.Item) (time.Time, bool) {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed, true
	}

	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed, true
	}

	for _, raw := range []string{item.Published, item.Updated} {
		if raw == "" {
			continue
		}

		if t, err := dateparse.ParseAny(raw); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

func publishedString(item *gofeed.Item) string {
	if item.Published != "" {
		return item.Published
	}

	return item.Updated
}
