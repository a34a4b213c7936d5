package research

import (
	"context"
	"encoding/json"

	"github.com/lexica-app/lexica-pipeline/internal/core/topics"
	"github.com/lexica-app/lexica-pipeline/internal/platform/observability"
	db "github.com/lexica-app/lexica-pipeline/internal/storage"
)

// reconcile re-enqueues topics that were stored but never made it onto the
// queue, which happens when the pipeline crashes between UpsertTopic and
// Enqueue. The stale query excludes topics that still have a queue message,
// so a slow consumer is never double dispatched.
func (w *Worker) reconcile(ctx context.Context) {
	stale, err := w.store.ListStalePendingTopics(ctx, w.cfg.ReconcileStaleAfter)
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to list stale pending topics")

		return
	}

	for _, topic := range stale {
		if err := w.redispatch(ctx, topic); err != nil {
			w.logger.Error().Err(err).
				Str("slug", topic.Slug).
				Str("date", topic.Date).
				Msg("failed to re-enqueue stale topic")

			continue
		}

		observability.TopicsReconciled.Inc()
		w.logger.Info().
			Str("slug", topic.Slug).
			Str("date", topic.Date).
			Msg("re-enqueued stale pending topic")
	}
}

// redispatch rebuilds the dispatch message from the stored topic record. The
// member articles are kept on the topic row for exactly this purpose.
func (w *Worker) redispatch(ctx context.Context, topic db.Topic) error {
	body, err := json.Marshal(topics.DispatchMessage{
		Topic: topics.TopicCluster{
			Topic:     topic.Label,
			Relevancy: topic.Relevancy,
			Articles:  topic.Articles,
		},
		Slug: topic.Slug,
		Date: topic.Date,
	})
	if err != nil {
		return err
	}

	_, err = w.queue.Enqueue(ctx, topic.Slug, topic.Date, body)

	return err
}
