// Package research consumes dispatch messages and generates the five-level
// research content for each topic. The worker applies no retry or backoff of
// its own: a failed message is simply left unacked and the queue's
// visibility-timeout redelivery governs recovery.
package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexica-app/lexica-pipeline/internal/core/llm"
	"github.com/lexica-app/lexica-pipeline/internal/core/topics"
	"github.com/lexica-app/lexica-pipeline/internal/platform/observability"
	"github.com/lexica-app/lexica-pipeline/internal/platform/worker"
	db "github.com/lexica-app/lexica-pipeline/internal/storage"
)

const (
	workerName = "research"

	blobContentType = "text/markdown"

	queueStatsInterval = time.Minute

	statusCompleted    = "completed"
	statusFailed       = "failed"
	statusDeadLettered = "dead_lettered"

	reasonMaxReceives = "max receive count exceeded"
)

// Store persists research output and topic lifecycle transitions.
type Store interface {
	SetTopicStatus(ctx context.Context, date, slug, status string) error
	PutResearchLevel(ctx context.Context, rl db.ResearchLevel) error
	PutBlob(ctx context.Context, key, contentType string, body []byte) error
	ListStalePendingTopics(ctx context.Context, olderThan time.Duration) ([]db.Topic, error)
}

// Queue is the dispatch queue consumed by the worker.
type Queue interface {
	Receive(ctx context.Context, max int, visibility time.Duration) ([]db.QueueMessage, error)
	Ack(ctx context.Context, id string) error
	DeadLetter(ctx context.Context, msg db.QueueMessage, reason string) error
	Enqueue(ctx context.Context, slug, date string, body []byte) (string, error)
	Stats(ctx context.Context) (db.QueueStats, error)
}

// Config tunes the worker loop and queue discipline.
type Config struct {
	BatchSize           int
	PollInterval        time.Duration
	VisibilityTimeout   time.Duration
	MaxReceiveCount     int
	ReconcileInterval   time.Duration
	ReconcileStaleAfter time.Duration
}

// Worker is one queue consumer instance. Horizontal scaling is additional
// instances reading the same queue; SKIP LOCKED receive keeps an in-flight
// message away from other consumers until its visibility timeout lapses.
type Worker struct {
	store  Store
	queue  Queue
	llm    llm.Client
	cfg    Config
	logger *zerolog.Logger
}

func NewWorker(store Store, queue Queue, client llm.Client, cfg Config, logger *zerolog.Logger) *Worker {
	return &Worker{
		store:  store,
		queue:  queue,
		llm:    client,
		cfg:    cfg,
		logger: logger,
	}
}

// Run blocks consuming the queue until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	return worker.Loop(ctx, worker.Config{
		Name:         workerName,
		PollInterval: w.cfg.PollInterval,
		Process:      w.processBatch,
		PeriodicTasks: []worker.PeriodicTask{
			{Name: "reconcile pending topics", Interval: w.cfg.ReconcileInterval, Run: w.reconcile},
			{Name: "queue stats", Interval: queueStatsInterval, Run: w.publishQueueStats},
		},
		Logger: w.logger,
	})
}

// processBatch receives up to one batch and handles messages one at a time.
// A message failure is logged and the message abandoned for this attempt;
// the batch continues.
func (w *Worker) processBatch(ctx context.Context) error {
	msgs, err := w.queue.Receive(ctx, w.cfg.BatchSize, w.cfg.VisibilityTimeout)
	if err != nil {
		return fmt.Errorf("receive batch: %w", err)
	}

	for _, msg := range msgs {
		if err := w.handle(ctx, msg); err != nil {
			observability.ResearchProcessed.WithLabelValues(statusFailed).Inc()
			w.logger.Error().Err(err).
				Str("message_id", msg.ID).
				Str("slug", msg.Slug).
				Str("date", msg.Date).
				Int("receive_count", msg.ReceiveCount).
				Msg("failed to process dispatch message")

			continue
		}

		if err := w.queue.Ack(ctx, msg.ID); err != nil {
			w.logger.Error().Err(err).Str("message_id", msg.ID).Msg("failed to ack dispatch message")
		}
	}

	return nil
}

// handle processes a single dispatch message. Level writes are independent
// idempotent overwrites keyed by (slug, date, level), so a crash mid-loop
// leaves a partial subset that the redelivered message simply rewrites.
func (w *Worker) handle(ctx context.Context, msg db.QueueMessage) error {
	if msg.ReceiveCount > w.cfg.MaxReceiveCount {
		if err := w.queue.DeadLetter(ctx, msg, reasonMaxReceives); err != nil {
			return fmt.Errorf("dead letter: %w", err)
		}

		observability.MessagesDeadLettered.Inc()
		observability.ResearchProcessed.WithLabelValues(statusDeadLettered).Inc()
		w.logger.Warn().
			Str("message_id", msg.ID).
			Str("slug", msg.Slug).
			Str("date", msg.Date).
			Int("receive_count", msg.ReceiveCount).
			Msg("message exceeded max receives, dead lettered")

		return nil
	}

	var dm topics.DispatchMessage
	if err := json.Unmarshal(msg.Body, &dm); err != nil {
		return fmt.Errorf("decode dispatch message: %w", err)
	}

	if err := w.store.SetTopicStatus(ctx, dm.Date, dm.Slug, db.TopicStatusProcessing); err != nil {
		return fmt.Errorf("mark topic processing: %w", err)
	}

	article, err := w.llm.GenerateResearch(ctx, dm.Topic)
	if err != nil {
		w.markFailed(ctx, dm)

		return err
	}

	if err := w.persistLevels(ctx, dm, article); err != nil {
		w.markFailed(ctx, dm)

		return err
	}

	if err := w.store.SetTopicStatus(ctx, dm.Date, dm.Slug, db.TopicStatusCompleted); err != nil {
		return fmt.Errorf("mark topic completed: %w", err)
	}

	observability.ResearchProcessed.WithLabelValues(statusCompleted).Inc()
	w.logger.Info().Str("slug", dm.Slug).Str("date", dm.Date).Msg("research generated")

	return nil
}

func (w *Worker) persistLevels(ctx context.Context, dm topics.DispatchMessage, article *topics.ResearchArticle) error {
	for level := 1; level <= topics.LevelCount; level++ {
		body, err := article.Level(level)
		if err != nil {
			return err
		}

		key := blobKey(dm.Date, dm.Slug, level)

		if err := w.store.PutBlob(ctx, key, blobContentType, []byte(body)); err != nil {
			return fmt.Errorf("store level %d body for %s/%s: %w", level, dm.Date, dm.Slug, err)
		}

		err = w.store.PutResearchLevel(ctx, db.ResearchLevel{
			Slug:       dm.Slug,
			Date:       dm.Date,
			Level:      level,
			BlobKey:    key,
			References: article.References,
		})
		if err != nil {
			return fmt.Errorf("index level %d for %s/%s: %w", level, dm.Date, dm.Slug, err)
		}

		observability.ResearchLevelsStored.Inc()
	}

	return nil
}

// markFailed is best effort: the message stays unacked either way and the
// status converges on the next successful delivery.
func (w *Worker) markFailed(ctx context.Context, dm topics.DispatchMessage) {
	if err := w.store.SetTopicStatus(ctx, dm.Date, dm.Slug, db.TopicStatusFailed); err != nil {
		w.logger.Warn().Err(err).Str("slug", dm.Slug).Str("date", dm.Date).Msg("failed to mark topic failed")
	}
}

func (w *Worker) publishQueueStats(ctx context.Context) {
	stats, err := w.queue.Stats(ctx)
	if err != nil {
		w.logger.Warn().Err(err).Msg("failed to read queue stats")

		return
	}

	observability.QueueDepth.Set(float64(stats.Depth))
	observability.QueueOldestAgeSeconds.Set(stats.OldestAge.Seconds())
}

// blobKey mirrors the research body layout: YYYY/MM/DD/<slug>/level-N.md.
func blobKey(date, slug string, level int) string {
	return fmt.Sprintf("%s/%s/level-%d.md", strings.ReplaceAll(date, "-", "/"), slug, level)
}
