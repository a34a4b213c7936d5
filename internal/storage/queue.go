package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// QueueMessage is one dispatch message as delivered to a consumer.
// Delivery is at-least-once with no ordering guarantee: a message becomes
// invisible for the visibility timeout after a receive and reappears if the
// consumer does not ack in time.
type QueueMessage struct {
	ID           string
	Slug         string
	Date         string
	Body         []byte
	ReceiveCount int
	EnqueuedAt   time.Time
}

// QueueStats is a point-in-time snapshot of the dispatch queue.
type QueueStats struct {
	Depth     int64
	OldestAge time.Duration
}

// Enqueue sends one message onto the dispatch queue and returns its id.
func (db *DB) Enqueue(ctx context.Context, slug, date string, body []byte) (string, error) {
	id := uuid.NewString()

	_, err := db.Pool.Exec(ctx, `
		INSERT INTO dispatch_queue (id, slug, topic_date, body)
		VALUES ($1, $2, $3, $4)
	`, id, slug, date, body)
	if err != nil {
		return "", fmt.Errorf("enqueue dispatch %s/%s: %w", date, slug, err)
	}

	return id, nil
}

// Receive claims up to max visible messages and hides them for the
// visibility timeout. SKIP LOCKED keeps concurrent consumers from claiming
// the same in-flight message; an unacked message is redelivered once the
// timeout lapses, with its receive count incremented.
func (db *DB) Receive(ctx context.Context, max int, visibility time.Duration) ([]QueueMessage, error) {
	rows, err := db.Pool.Query(ctx, `
		WITH next AS (
			SELECT id FROM dispatch_queue
			WHERE visible_at <= now()
			ORDER BY enqueued_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE dispatch_queue q
		SET visible_at = now() + make_interval(secs => $2),
		    receive_count = q.receive_count + 1
		FROM next
		WHERE q.id = next.id
		RETURNING q.id, q.slug, q.topic_date, q.body, q.receive_count, q.enqueued_at
	`, max, visibility.Seconds())
	if err != nil {
		return nil, fmt.Errorf("receive dispatch messages: %w", err)
	}
	defer rows.Close()

	var msgs []QueueMessage

	for rows.Next() {
		var m QueueMessage
		if err := rows.Scan(&m.ID, &m.Slug, &m.Date, &m.Body, &m.ReceiveCount, &m.EnqueuedAt); err != nil {
			return nil, fmt.Errorf("scan dispatch message: %w", err)
		}

		msgs = append(msgs, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispatch messages: %w", err)
	}

	return msgs, nil
}

// Ack deletes a processed message. Acking an already-deleted message is a
// no-op, which keeps redelivered duplicates harmless.
func (db *DB) Ack(ctx context.Context, id string) error {
	if _, err := db.Pool.Exec(ctx, "DELETE FROM dispatch_queue WHERE id = $1", id); err != nil {
		return fmt.Errorf("ack dispatch message %s: %w", id, err)
	}

	return nil
}

// DeadLetter moves a message out of the queue into the dead letter table.
// Both statements run in one transaction so the message cannot end up in
// both places or neither.
func (db *DB) DeadLetter(ctx context.Context, msg QueueMessage, reason string) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("dead letter begin: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO dispatch_dead_letters (id, slug, topic_date, body, receive_count, reason, enqueued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, msg.ID, msg.Slug, msg.Date, msg.Body, msg.ReceiveCount, reason, msg.EnqueuedAt)
	if err != nil {
		return fmt.Errorf("dead letter insert %s: %w", msg.ID, err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM dispatch_queue WHERE id = $1", msg.ID); err != nil {
		return fmt.Errorf("dead letter delete %s: %w", msg.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("dead letter commit %s: %w", msg.ID, err)
	}

	return nil
}

// Stats reports queue depth and the age of the oldest message for metrics.
func (db *DB) Stats(ctx context.Context) (QueueStats, error) {
	var (
		depth  int64
		oldest *time.Time
	)

	err := db.Pool.QueryRow(ctx,
		"SELECT count(*), min(enqueued_at) FROM dispatch_queue").Scan(&depth, &oldest)
	if err != nil {
		return QueueStats{}, fmt.Errorf("queue stats: %w", err)
	}

	stats := QueueStats{Depth: depth}
	if oldest != nil {
		stats.OldestAge = time.Since(*oldest)
	}

	return stats, nil
}
