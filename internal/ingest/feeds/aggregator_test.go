package feeds

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>%s</title>
%s
</channel>
</rss>`

func rssItem(title, link, pubDate string) string {
	dateTag := ""
	if pubDate != "" {
		dateTag = "<pubDate>" + pubDate + "</pubDate>"
	}

	return fmt.Sprintf(`<item><title>%s</title><link>%s</link><description>%s summary</description>%s</item>`,
		title, link, title, dateTag)
}

func serveRSS(t *testing.T, feedTitle string, items ...string) *httptest.Server {
	t.Helper()

	body := ""
	for _, item := range items {
		body += item
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, rssTemplate, feedTitle, body)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func newTestAggregator(now time.Time) *Aggregator {
	logger := zerolog.Nop()
	agg := NewAggregator(24*time.Hour, 5*time.Second, &logger)
	agg.now = func() time.Time { return now }

	return agg
}

func TestFetchAllWindowFilter(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	recent := now.Add(-time.Hour).Format(time.RFC1123Z)
	stale := now.Add(-48 * time.Hour).Format(time.RFC1123Z)

	srv := serveRSS(t, "World News",
		rssItem("Fresh story", "https://example.com/fresh", recent),
		rssItem("Old story", "https://example.com/old", stale),
		rssItem("Undated story", "https://example.com/undated", ""),
	)

	agg := newTestAggregator(now)

	articles := agg.FetchAll(context.Background(), []Source{{URL: srv.URL, Name: "fallback"}})

	require.Len(t, articles, 1)
	assert.Equal(t, "Fresh story", articles[0].Title)
	assert.Equal(t, "https://example.com/fresh", articles[0].Link)
	assert.Equal(t, "World News", articles[0].Source)
	assert.Equal(t, recent, articles[0].PublishedAt)
	assert.Equal(t, "Fresh story summary", articles[0].Summary)
}

func TestFetchAllFaultIsolation(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-time.Hour).Format(time.RFC1123Z)

	good := serveRSS(t, "Good Feed", rssItem("Survivor", "https://example.com/ok", recent))

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(bad.Close)

	garbled := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "this is not xml")
	}))
	t.Cleanup(garbled.Close)

	agg := newTestAggregator(now)

	articles := agg.FetchAll(context.Background(), []Source{
		{URL: bad.URL},
		{URL: good.URL},
		{URL: garbled.URL},
		{URL: "http://127.0.0.1:1/unreachable"},
	})

	require.Len(t, articles, 1)
	assert.Equal(t, "Survivor", articles[0].Title)
}

func TestFetchAllSourceNameFallback(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-time.Hour).Format(time.RFC1123Z)

	srv := serveRSS(t, "", rssItem("Story", "https://example.com/s", recent))

	agg := newTestAggregator(now)

	articles := agg.FetchAll(context.Background(), []Source{{URL: srv.URL, Name: "Registry Name"}})
	require.Len(t, articles, 1)
	assert.Equal(t, "Registry Name", articles[0].Source)

	articles = agg.FetchAll(context.Background(), []Source{{URL: srv.URL}})
	require.Len(t, articles, 1)
	assert.Equal(t, unknownSource, articles[0].Source)
}

func TestFetchAllNoSources(t *testing.T) {
	agg := newTestAggregator(time.Now())

	articles := agg.FetchAll(context.Background(), nil)
	assert.Empty(t, articles)
}
