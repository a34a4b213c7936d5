package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexica-app/lexica-pipeline/internal/core/feed"
	"github.com/lexica-app/lexica-pipeline/internal/core/topics"
	"github.com/lexica-app/lexica-pipeline/internal/ingest/feeds"
	db "github.com/lexica-app/lexica-pipeline/internal/storage"
)

var (
	errStoreDown = errors.New("store down")
	errQueueDown = errors.New("queue down")
)

// events is a shared call log used to assert store-before-enqueue ordering.
type events struct {
	log []string
}

type fakeStore struct {
	events  *events
	sources []db.FeedSource

	upserts   []db.Topic
	upsertErr error
}

func (s *fakeStore) GetActiveSources(context.Context) ([]db.FeedSource, error) {
	return s.sources, nil
}

func (s *fakeStore) UpsertTopic(_ context.Context, t db.Topic) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}

	s.upserts = append(s.upserts, t)
	s.events.log = append(s.events.log, "store:"+t.Slug)

	return nil
}

type fakeQueue struct {
	events *events

	bodies     [][]byte
	enqueueErr error
}

func (q *fakeQueue) Enqueue(_ context.Context, slug, _ string, body []byte) (string, error) {
	if q.enqueueErr != nil {
		return "", q.enqueueErr
	}

	q.bodies = append(q.bodies, body)
	q.events.log = append(q.events.log, "enqueue:"+slug)

	return "msg-1", nil
}

type fakeLLM struct {
	clusters   []topics.TopicCluster
	clusterErr error

	gotArticles []feed.Article
}

func (l *fakeLLM) ClusterTopics(_ context.Context, articles []feed.Article) ([]topics.TopicCluster, error) {
	l.gotArticles = articles

	return l.clusters, l.clusterErr
}

func (l *fakeLLM) GenerateResearch(context.Context, topics.TopicCluster) (*topics.ResearchArticle, error) {
	return nil, errors.New("not used by the pipeline")
}

// serveFeed publishes a two-item RSS feed dated now.
func serveFeed(t *testing.T) *httptest.Server {
	t.Helper()

	pubDate := time.Now().Add(-time.Hour).Format(time.RFC1123Z)
	body := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Test Feed</title>
<item><title>First</title><link>https://example.com/1</link><pubDate>%s</pubDate></item>
<item><title>Second</title><link>https://example.com/2</link><pubDate>%s</pubDate></item>
</channel></rss>`, pubDate, pubDate)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func newTestPipeline(t *testing.T, store *fakeStore, queue *fakeQueue, client *fakeLLM) *Pipeline {
	t.Helper()

	srv := serveFeed(t)
	store.sources = []db.FeedSource{{URL: srv.URL, Name: "Test Feed", Active: true}}

	logger := zerolog.Nop()
	aggregator := feeds.NewAggregator(24*time.Hour, 5*time.Second, &logger)

	p := New(store, queue, client, aggregator, &logger)
	p.now = func() time.Time { return time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC) }

	return p
}

func cluster(label string, relevancy float64) topics.TopicCluster {
	return topics.TopicCluster{
		Topic:     label,
		Relevancy: relevancy,
		Articles:  []topics.ArticleRef{{Title: "First", Link: "https://example.com/1"}},
	}
}

func TestRunThresholdBoundary(t *testing.T) {
	ev := &events{}
	store := &fakeStore{events: ev}
	queue := &fakeQueue{events: ev}
	client := &fakeLLM{clusters: []topics.TopicCluster{
		cluster("At Threshold", RelevancyThreshold),
		cluster("Just Below", RelevancyThreshold-0.1),
		cluster("Well Above", 95),
	}}

	p := newTestPipeline(t, store, queue, client)

	dispatched, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, dispatched)

	require.Len(t, store.upserts, 2)
	assert.Equal(t, "at-threshold", store.upserts[0].Slug)
	assert.Equal(t, "well-above", store.upserts[1].Slug)
	assert.Equal(t, db.TopicStatusPending, store.upserts[0].Status)
	assert.Equal(t, "2026-08-31", store.upserts[0].Date)
	assert.Equal(t, 1, store.upserts[0].ArticleCount)
	assert.Len(t, queue.bodies, 2)
}

func TestRunDispatchMessageShape(t *testing.T) {
	ev := &events{}
	store := &fakeStore{events: ev}
	queue := &fakeQueue{events: ev}
	accepted := cluster("Central Banks", 80)
	client := &fakeLLM{clusters: []topics.TopicCluster{accepted}}

	p := newTestPipeline(t, store, queue, client)

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, queue.bodies, 1)

	var msg topics.DispatchMessage
	require.NoError(t, json.Unmarshal(queue.bodies[0], &msg))
	assert.Equal(t, "central-banks", msg.Slug)
	assert.Equal(t, "2026-08-31", msg.Date)
	assert.Equal(t, accepted, msg.Topic)
}

func TestRunStoreBeforeEnqueue(t *testing.T) {
	ev := &events{}
	store := &fakeStore{events: ev}
	queue := &fakeQueue{events: ev}
	client := &fakeLLM{clusters: []topics.TopicCluster{cluster("One", 70), cluster("Two", 70)}}

	p := newTestPipeline(t, store, queue, client)

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"store:one", "enqueue:one", "store:two", "enqueue:two"}, ev.log)
}

func TestRunClustersArticles(t *testing.T) {
	ev := &events{}
	store := &fakeStore{events: ev}
	queue := &fakeQueue{events: ev}
	client := &fakeLLM{}

	p := newTestPipeline(t, store, queue, client)

	dispatched, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, dispatched)
	require.Len(t, client.gotArticles, 2)
	assert.Equal(t, "First", client.gotArticles[0].Title)
	assert.Equal(t, "Test Feed", client.gotArticles[0].Source)
}

func TestRunStoreFailure(t *testing.T) {
	ev := &events{}
	store := &fakeStore{events: ev, upsertErr: errStoreDown}
	queue := &fakeQueue{events: ev}
	client := &fakeLLM{clusters: []topics.TopicCluster{cluster("One", 70)}}

	p := newTestPipeline(t, store, queue, client)

	dispatched, err := p.Run(context.Background())
	require.ErrorIs(t, err, errStoreDown)
	assert.Zero(t, dispatched)
	assert.Empty(t, queue.bodies)
}

func TestRunEnqueueFailure(t *testing.T) {
	ev := &events{}
	store := &fakeStore{events: ev}
	queue := &fakeQueue{events: ev, enqueueErr: errQueueDown}
	client := &fakeLLM{clusters: []topics.TopicCluster{cluster("One", 70)}}

	p := newTestPipeline(t, store, queue, client)

	dispatched, err := p.Run(context.Background())
	require.ErrorIs(t, err, errQueueDown)
	assert.Zero(t, dispatched)

	// The topic record survives for the reconciliation sweep.
	require.Len(t, store.upserts, 1)
	assert.Equal(t, db.TopicStatusPending, store.upserts[0].Status)
}

func TestPreviewTopicsDoesNotDispatch(t *testing.T) {
	ev := &events{}
	store := &fakeStore{events: ev}
	queue := &fakeQueue{events: ev}
	client := &fakeLLM{clusters: []topics.TopicCluster{
		cluster("Accepted", 75),
		cluster("Rejected", 10),
	}}

	p := newTestPipeline(t, store, queue, client)

	accepted, err := p.PreviewTopics(context.Background())
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.Equal(t, "Accepted", accepted[0].Topic)

	assert.Empty(t, store.upserts)
	assert.Empty(t, queue.bodies)
}

func TestPreviewArticles(t *testing.T) {
	ev := &events{}
	store := &fakeStore{events: ev}
	queue := &fakeQueue{events: ev}

	p := newTestPipeline(t, store, queue, &fakeLLM{})

	articles, err := p.PreviewArticles(context.Background())
	require.NoError(t, err)
	assert.Len(t, articles, 2)
}
