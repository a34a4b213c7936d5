package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrBlobNotFound is returned when no blob exists under the key.
var ErrBlobNotFound = errors.New("blob not found")

// PutBlob stores an opaque body under the key with its content-type tag,
// overwriting any existing body.
func (db *DB) PutBlob(ctx context.Context, key, contentType string, body []byte) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO research_blobs (key, content_type, body)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET content_type = EXCLUDED.content_type, body = EXCLUDED.body, updated_at = now()
	`, key, contentType, body)
	if err != nil {
		return fmt.Errorf("put blob %s: %w", key, err)
	}

	return nil
}

// GetBlob fetches a stored body and its content type.
func (db *DB) GetBlob(ctx context.Context, key string) ([]byte, string, error) {
	var (
		body        []byte
		contentType string
	)

	err := db.Pool.QueryRow(ctx,
		"SELECT body, content_type FROM research_blobs WHERE key = $1", key).Scan(&body, &contentType)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", fmt.Errorf("%w: %s", ErrBlobNotFound, key)
	}

	if err != nil {
		return nil, "", fmt.Errorf("get blob %s: %w", key, err)
	}

	return body, contentType, nil
}
