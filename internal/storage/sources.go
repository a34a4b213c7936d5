package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrSourceNotFound is returned when a feed source id does not exist.
var ErrSourceNotFound = errors.New("feed source not found")

const defaultSourceCategory = "general"

// FeedSource is a configured feed endpoint of the registry. Sources are
// soft-deactivated via the active flag, never deleted.
type FeedSource struct {
	ID        string
	URL       string
	Name      string
	Category  string
	Active    bool
	AddedBy   string
	CreatedAt time.Time
}

const sqlSelectSources = `
	SELECT id, url, name, category, active, added_by, created_at
	FROM feed_sources
`

// GetActiveSources returns the feed endpoints the aggregator should fetch.
func (db *DB) GetActiveSources(ctx context.Context) ([]FeedSource, error) {
	rows, err := db.Pool.Query(ctx, sqlSelectSources+" WHERE active ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("get active sources: %w", err)
	}
	defer rows.Close()

	return scanSources(rows)
}

// ListSources returns every registered source, active or not.
func (db *DB) ListSources(ctx context.Context) ([]FeedSource, error) {
	rows, err := db.Pool.Query(ctx, sqlSelectSources+" ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	return scanSources(rows)
}

// AddSource registers a feed endpoint. Re-adding an existing URL updates its
// metadata and reactivates it.
func (db *DB) AddSource(ctx context.Context, url, name, category, addedBy string) (FeedSource, error) {
	if category == "" {
		category = defaultSourceCategory
	}

	var src FeedSource

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO feed_sources (url, name, category, added_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (url) DO UPDATE
		SET name = EXCLUDED.name, category = EXCLUDED.category, active = TRUE
		RETURNING id, url, name, category, active, added_by, created_at
	`, url, name, category, addedBy).Scan(
		&src.ID, &src.URL, &src.Name, &src.Category, &src.Active, &src.AddedBy, &src.CreatedAt,
	)
	if err != nil {
		return FeedSource{}, fmt.Errorf("add source: %w", err)
	}

	return src, nil
}

// SetSourceActive toggles a source's activation flag.
func (db *DB) SetSourceActive(ctx context.Context, id string, active bool) error {
	tag, err := db.Pool.Exec(ctx, "UPDATE feed_sources SET active = $2 WHERE id = $1", id, active)
	if err != nil {
		return fmt.Errorf("set source active: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrSourceNotFound
	}

	return nil
}

func scanSources(rows pgx.Rows) ([]FeedSource, error) {
	var sources []FeedSource

	for rows.Next() {
		var src FeedSource
		if err := rows.Scan(&src.ID, &src.URL, &src.Name, &src.Category, &src.Active, &src.AddedBy, &src.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}

		sources = append(sources, src)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}

	return sources, nil
}
