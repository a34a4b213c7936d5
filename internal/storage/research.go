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

// ErrResearchLevelNotFound is returned when no level exists for the key.
var ErrResearchLevelNotFound = errors.New("research level not found")

// ResearchLevel is the index record for one generated difficulty level.
// Identity is (slug, date, level); the body itself lives in the blob store
// under BlobKey. A topic may have zero, some or all five levels at any time.
type ResearchLevel struct {
	Slug       string
	Date       string
	Level      int
	BlobKey    string
	References []topics.Reference
	CreatedAt  time.Time
}

const sqlSelectResearchLevels = `
	SELECT slug, topic_date, level, blob_key, citations, created_at
	FROM research_levels
`

// PutResearchLevel writes a level index record, overwriting any prior record
// at the same key. Redelivered messages therefore converge instead of
// producing duplicates.
func (db *DB) PutResearchLevel(ctx context.Context, rl ResearchLevel) error {
	refs, err := json.Marshal(rl.References)
	if err != nil {
		return fmt.Errorf("marshal references: %w", err)
	}

	_, err = db.Pool.Exec(ctx, `
		INSERT INTO research_levels (slug, topic_date, level, blob_key, citations)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (slug, topic_date, level) DO UPDATE
		SET blob_key = EXCLUDED.blob_key, citations = EXCLUDED.citations
	`, rl.Slug, rl.Date, rl.Level, rl.BlobKey, refs)
	if err != nil {
		return fmt.Errorf("put research level %s/%s/%d: %w", rl.Date, rl.Slug, rl.Level, err)
	}

	return nil
}

// GetResearchLevel fetches one level index record.
func (db *DB) GetResearchLevel(ctx context.Context, slug, date string, level int) (ResearchLevel, error) {
	row := db.Pool.QueryRow(ctx,
		sqlSelectResearchLevels+" WHERE slug = $1 AND topic_date = $2 AND level = $3", slug, date, level)

	rl, err := scanResearchLevel(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ResearchLevel{}, ErrResearchLevelNotFound
	}

	if err != nil {
		return ResearchLevel{}, fmt.Errorf("get research level %s/%s/%d: %w", date, slug, level, err)
	}

	return rl, nil
}

// ListResearchBySlug returns every stored level for a topic slug across
// dates, ordered by date then level. Readers must tolerate partial sets.
func (db *DB) ListResearchBySlug(ctx context.Context, slug string) ([]ResearchLevel, error) {
	rows, err := db.Pool.Query(ctx,
		sqlSelectResearchLevels+" WHERE slug = $1 ORDER BY topic_date, level", slug)
	if err != nil {
		return nil, fmt.Errorf("list research by slug: %w", err)
	}
	defer rows.Close()

	var out []ResearchLevel

	for rows.Next() {
		rl, err := scanResearchLevel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan research level: %w", err)
		}

		out = append(out, rl)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate research levels: %w", err)
	}

	return out, nil
}

// GetResearchContent fetches a level record together with its blob body.
func (db *DB) GetResearchContent(ctx context.Context, slug, date string, level int) (ResearchLevel, []byte, error) {
	rl, err := db.GetResearchLevel(ctx, slug, date, level)
	if err != nil {
		return ResearchLevel{}, nil, err
	}

	body, _, err := db.GetBlob(ctx, rl.BlobKey)
	if err != nil {
		return ResearchLevel{}, nil, fmt.Errorf("research content %s/%s/%d: %w", date, slug, level, err)
	}

	return rl, body, nil
}

func scanResearchLevel(row scanRow) (ResearchLevel, error) {
	var (
		rl   ResearchLevel
		refs []byte
	)

	if err := row.Scan(&rl.Slug, &rl.Date, &rl.Level, &rl.BlobKey, &refs, &rl.CreatedAt); err != nil {
		return ResearchLevel{}, err
	}

	if len(refs) > 0 {
		if err := json.Unmarshal(refs, &rl.References); err != nil {
			return ResearchLevel{}, fmt.Errorf("unmarshal references: %w", err)
		}
	}

	return rl, nil
}
