// Package pipeline runs the daily ingestion-and-dispatch sequence:
// aggregate feeds, normalize, cluster into topics, persist accepted topics
// and enqueue one dispatch message per topic.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexica-app/lexica-pipeline/internal/core/feed"
	"github.com/lexica-app/lexica-pipeline/internal/core/llm"
	"github.com/lexica-app/lexica-pipeline/internal/core/topics"
	"github.com/lexica-app/lexica-pipeline/internal/ingest/feeds"
	"github.com/lexica-app/lexica-pipeline/internal/platform/observability"
	"github.com/lexica-app/lexica-pipeline/internal/platform/slug"
	db "github.com/lexica-app/lexica-pipeline/internal/storage"
)

// RelevancyThreshold is the fixed cutoff below which a clustered topic is
// discarded before storage. Inclusive: a topic scoring exactly the threshold
// is accepted. Policy constant, deliberately not configurable.
const RelevancyThreshold = 60

const dateLayout = "2006-01-02"

// Store persists topics and exposes the feed registry.
type Store interface {
	GetActiveSources(ctx context.Context) ([]db.FeedSource, error)
	UpsertTopic(ctx context.Context, t db.Topic) error
}

// Queue dispatches one message per accepted topic.
type Queue interface {
	Enqueue(ctx context.Context, slug, date string, body []byte) (string, error)
}

// Pipeline wires the registry, aggregator, clusterer and dispatcher.
type Pipeline struct {
	store      Store
	queue      Queue
	llm        llm.Client
	aggregator *feeds.Aggregator
	logger     *zerolog.Logger

	// now is swappable for tests.
	now func() time.Time
}

func New(store Store, queue Queue, client llm.Client, aggregator *feeds.Aggregator, logger *zerolog.Logger) *Pipeline {
	return &Pipeline{
		store:      store,
		queue:      queue,
		llm:        client,
		aggregator: aggregator,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes one full pipeline pass and returns the number of dispatched
// topics. Topics are stored before they are enqueued; a dispatch failure
// after a successful store leaves that topic pending for the reconciliation
// sweep rather than producing a message with no backing record.
func (p *Pipeline) Run(ctx context.Context) (int, error) {
	clean, err := p.collect(ctx)
	if err != nil {
		return 0, err
	}

	if len(clean) == 0 {
		p.logger.Info().Msg("no recent articles, skipping clustering")

		return 0, nil
	}

	clusters, err := p.llm.ClusterTopics(ctx, clean)
	if err != nil {
		return 0, fmt.Errorf("cluster topics: %w", err)
	}

	observability.TopicsClustered.Add(float64(len(clusters)))

	date := p.now().UTC().Format(dateLayout)
	dispatched := 0

	for _, cluster := range clusters {
		if cluster.Relevancy < RelevancyThreshold {
			continue
		}

		if err := p.dispatch(ctx, cluster, date); err != nil {
			return dispatched, err
		}

		dispatched++
	}

	p.logger.Info().
		Int("articles", len(clean)).
		Int("clusters", len(clusters)).
		Int("dispatched", dispatched).
		Str("date", date).
		Msg("pipeline run finished")

	return dispatched, nil
}

// PreviewArticles returns the aggregated, normalized article list without
// clustering or storing anything.
func (p *Pipeline) PreviewArticles(ctx context.Context) ([]feed.Article, error) {
	return p.collect(ctx)
}

// PreviewTopics clusters the current article list and returns the accepted
// topics without storing or dispatching them.
func (p *Pipeline) PreviewTopics(ctx context.Context) ([]topics.TopicCluster, error) {
	clean, err := p.collect(ctx)
	if err != nil {
		return nil, err
	}

	if len(clean) == 0 {
		return nil, nil
	}

	clusters, err := p.llm.ClusterTopics(ctx, clean)
	if err != nil {
		return nil, fmt.Errorf("cluster topics: %w", err)
	}

	accepted := make([]topics.TopicCluster, 0, len(clusters))

	for _, cluster := range clusters {
		if cluster.Relevancy >= RelevancyThreshold {
			accepted = append(accepted, cluster)
		}
	}

	return accepted, nil
}

func (p *Pipeline) collect(ctx context.Context) ([]feed.Article, error) {
	sources, err := p.store.GetActiveSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("load feed registry: %w", err)
	}

	endpoints := make([]feeds.Source, len(sources))
	for i, src := range sources {
		endpoints[i] = feeds.Source{URL: src.URL, Name: src.Name}
	}

	raw := p.aggregator.FetchAll(ctx, endpoints)

	return feeds.Normalize(raw), nil
}

// dispatch persists the topic and then enqueues its message, in that order.
func (p *Pipeline) dispatch(ctx context.Context, cluster topics.TopicCluster, date string) error {
	topicSlug := slug.Make(cluster.Topic)

	record := db.Topic{
		Date:         date,
		Slug:         topicSlug,
		Label:        cluster.Topic,
		Relevancy:    cluster.Relevancy,
		ArticleCount: len(cluster.Articles),
		Status:       db.TopicStatusPending,
		Articles:     cluster.Articles,
	}

	if err := p.store.UpsertTopic(ctx, record); err != nil {
		return fmt.Errorf("store topic %s/%s: %w", date, topicSlug, err)
	}

	body, err := json.Marshal(topics.DispatchMessage{Topic: cluster, Slug: topicSlug, Date: date})
	if err != nil {
		return fmt.Errorf("marshal dispatch message %s/%s: %w", date, topicSlug, err)
	}

	if _, err := p.queue.Enqueue(ctx, topicSlug, date, body); err != nil {
		return fmt.Errorf("dispatch topic %s/%s: %w", date, topicSlug, err)
	}

	observability.TopicsDispatched.Inc()

	return nil
}
