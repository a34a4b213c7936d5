package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FeedFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lexica_feed_fetches_total",
		Help: "The total number of feed fetch attempts by outcome",
	}, []string{"source", "status"})

	ArticlesAggregated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lexica_articles_aggregated_total",
		Help: "The total number of articles kept after the recency window filter",
	})

	ArticlesDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lexica_articles_deduplicated_total",
		Help: "The total number of duplicate articles dropped by the normalizer",
	})

	TopicsClustered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lexica_topics_clustered_total",
		Help: "The total number of topics returned by clustering",
	})

	TopicsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lexica_topics_dispatched_total",
		Help: "The total number of topics stored and enqueued for research",
	})

	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lexica_pipeline_runs_total",
		Help: "The total number of pipeline runs by outcome",
	}, []string{"status"})

	LLMRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lexica_llm_request_duration_seconds",
		Help:    "Duration of reasoning capability requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	ResearchProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lexica_research_processed_total",
		Help: "The total number of dispatch messages processed by outcome",
	}, []string{"status"})

	ResearchLevelsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lexica_research_levels_stored_total",
		Help: "The total number of research levels persisted",
	})

	MessagesDeadLettered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lexica_messages_dead_lettered_total",
		Help: "The total number of dispatch messages moved to the dead letter table",
	})

	TopicsReconciled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lexica_topics_reconciled_total",
		Help: "The total number of stale pending topics re-enqueued by the sweep",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lexica_queue_depth",
		Help: "Number of messages currently in the dispatch queue",
	})

	QueueOldestAgeSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lexica_queue_oldest_age_seconds",
		Help: "Age in seconds of the oldest message in the dispatch queue",
	})
)
