package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lexica-app/lexica-pipeline/internal/core/topics"
)

// Topic lifecycle statuses.
const (
	TopicStatusPending    = "pending"
	TopicStatusProcessing = "processing"
	TopicStatusCompleted  = "completed"
	TopicStatusFailed     = "failed"
)

// Sentinel errors for topic queries.
var (
	ErrTopicNotFound = errors.New("topic not found")
)

// Topic is one durable clustered-topic record, keyed by (date, slug).
// Articles carries the member-article payload so a stuck pending topic can be
// re-dispatched without re-clustering.
type Topic struct {
	Date         string
	Slug         string
	Label        string
	Relevancy    float64
	ArticleCount int
	Status       string
	Articles     []topics.ArticleRef
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const sqlSelectTopics = `
	SELECT topic_date, slug, label, relevancy, article_count, status, articles, created_at, updated_at
	FROM topics
`

// UpsertTopic writes a topic record, unconditionally overwriting any prior
// record at the same (date, slug) key. Last write wins on collision.
func (db *DB) UpsertTopic(ctx context.Context, t Topic) error {
	articles, err := json.Marshal(t.Articles)
	if err != nil {
		return fmt.Errorf("marshal topic articles: %w", err)
	}

	_, err = db.Pool.Exec(ctx, `
		INSERT INTO topics (topic_date, slug, label, relevancy, article_count, status, articles)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (topic_date, slug) DO UPDATE
		SET label = EXCLUDED.label,
		    relevancy = EXCLUDED.relevancy,
		    article_count = EXCLUDED.article_count,
		    status = EXCLUDED.status,
		    articles = EXCLUDED.articles,
		    updated_at = now()
	`, t.Date, t.Slug, t.Label, t.Relevancy, t.ArticleCount, t.Status, articles)
	if err != nil {
		return fmt.Errorf("upsert topic %s/%s: %w", t.Date, t.Slug, err)
	}

	return nil
}

// SetTopicStatus moves a topic through its lifecycle
// (pending → processing → completed|failed).
func (db *DB) SetTopicStatus(ctx context.Context, date, slug, status string) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE topics SET status = $3, updated_at = now()
		WHERE topic_date = $1 AND slug = $2
	`, date, slug, status)
	if err != nil {
		return fmt.Errorf("set topic status %s/%s: %w", date, slug, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set topic status %s/%s: %w", date, slug, ErrTopicNotFound)
	}

	return nil
}

// GetTopic fetches one topic by its (date, slug) identity.
func (db *DB) GetTopic(ctx context.Context, date, slug string) (Topic, error) {
	row := db.Pool.QueryRow(ctx, sqlSelectTopics+" WHERE topic_date = $1 AND slug = $2", date, slug)

	t, err := scanTopic(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Topic{}, ErrTopicNotFound
	}

	if err != nil {
		return Topic{}, fmt.Errorf("get topic %s/%s: %w", date, slug, err)
	}

	return t, nil
}

// ListTopicsByDate returns all topics ingested on a given UTC date.
func (db *DB) ListTopicsByDate(ctx context.Context, date string) ([]Topic, error) {
	rows, err := db.Pool.Query(ctx, sqlSelectTopics+" WHERE topic_date = $1 ORDER BY slug", date)
	if err != nil {
		return nil, fmt.Errorf("list topics by date: %w", err)
	}
	defer rows.Close()

	return scanTopics(rows)
}

// ListTopicsByStatus returns up to limit topics in the given status,
// newest first.
func (db *DB) ListTopicsByStatus(ctx context.Context, status string, limit int) ([]Topic, error) {
	rows, err := db.Pool.Query(ctx,
		sqlSelectTopics+" WHERE status = $1 ORDER BY created_at DESC LIMIT $2", status, limit)
	if err != nil {
		return nil, fmt.Errorf("list topics by status: %w", err)
	}
	defer rows.Close()

	return scanTopics(rows)
}

// ListStalePendingTopics returns topics still pending after the staleness
// window with no in-flight dispatch message, i.e. topics whose enqueue was
// lost after the store write succeeded.
func (db *DB) ListStalePendingTopics(ctx context.Context, olderThan time.Duration) ([]Topic, error) {
	rows, err := db.Pool.Query(ctx, sqlSelectTopics+`
		WHERE status = $1
		  AND updated_at < now() - make_interval(secs => $2)
		  AND NOT EXISTS (
			SELECT 1 FROM dispatch_queue q
			WHERE q.topic_date = topics.topic_date AND q.slug = topics.slug
		  )
		ORDER BY updated_at
	`, TopicStatusPending, olderThan.Seconds())
	if err != nil {
		return nil, fmt.Errorf("list stale pending topics: %w", err)
	}
	defer rows.Close()

	return scanTopics(rows)
}

type scanRow interface {
	Scan(dest ...any) error
}

func scanTopic(row scanRow) (Topic, error) {
	var (
		t        Topic
		articles []byte
	)

	if err := row.Scan(&t.Date, &t.Slug, &t.Label, &t.Relevancy, &t.ArticleCount, &t.Status, &articles, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return Topic{}, err
	}

	if len(articles) > 0 {
		if err := json.Unmarshal(articles, &t.Articles); err != nil {
			return Topic{}, fmt.Errorf("unmarshal topic articles: %w", err)
		}
	}

	return t, nil
}

func scanTopics(rows pgx.Rows) ([]Topic, error) {
	var out []Topic

	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}

		out = append(out, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topics: %w", err)
	}

	return out, nil
}
