package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/scrypster/volition/internal/storage"
	"github.com/scrypster/volition/pkg/types"
)

// ErrSimilarityUnavailable is returned when the pgvector extension is not
// installed in the connected database.
var ErrSimilarityUnavailable = fmt.Errorf("pgvector extension not available")

// StoreEmbedding attaches an embedding vector to an item for similarity
// queries. Requires pgvector.
func (s *GraphStore) StoreEmbedding(ctx context.Context, itemID string, embedding []float32) error {
	if !s.hasVector {
		return ErrSimilarityUnavailable
	}
	if itemID == "" {
		return fmt.Errorf("%w: item ID is required", storage.ErrInvalidInput)
	}
	if len(embedding) == 0 {
		return fmt.Errorf("%w: embedding vector cannot be empty", storage.ErrInvalidInput)
	}

	vec := pgvector.NewVector(embedding)
	result, err := s.db.ExecContext(ctx,
		"UPDATE items SET embedding = $1 WHERE id = $2", vec, itemID)
	if err != nil {
		return fmt.Errorf("failed to store embedding for %s: %w", itemID, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SimilarItems returns up to limit items nearest to the given item's
// embedding by cosine distance, excluding the item itself. Items without
// embeddings are skipped. Returns an empty slice when the item has no
// embedding yet.
func (s *GraphStore) SimilarItems(ctx context.Context, itemID string, limit int) ([]storage.SimilarItem, error) {
	if !s.hasVector {
		return nil, ErrSimilarityUnavailable
	}
	if itemID == "" {
		return nil, storage.ErrInvalidInput
	}
	if limit < 1 {
		limit = 5
	}

	var hasEmbedding bool
	err := s.db.QueryRowContext(ctx,
		"SELECT embedding IS NOT NULL FROM items WHERE id = $1", itemID).
		Scan(&hasEmbedding)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check embedding for %s: %w", itemID, err)
	}
	if !hasEmbedding {
		return []storage.SimilarItem{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`,
			embedding <=> (SELECT embedding FROM items WHERE id = $1) AS distance
		FROM items
		WHERE id != $1 AND embedding IS NOT NULL
		ORDER BY distance ASC
		LIMIT $2`, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query similar items for %s: %w", itemID, err)
	}
	defer rows.Close()

	var results []storage.SimilarItem
	for rows.Next() {
		item, distance, err := scanItemWithDistance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan similarity row: %w", err)
		}
		results = append(results, storage.SimilarItem{Item: item, Distance: distance})
	}
	return results, rows.Err()
}

// scanItemWithDistance reads an item row followed by a trailing cosine
// distance.
func scanItemWithDistance(rows *sql.Rows) (*types.MemoryItem, float64, error) {
	var (
		item         types.MemoryItem
		itemType     string
		status       string
		parentID     sql.NullString
		lastError    sql.NullString
		metadataJSON []byte
		deadline     sql.NullTime
		completedAt  sql.NullTime
		owner        sql.NullString
		leaseUntil   sql.NullTime
		distance     float64
	)

	err := rows.Scan(
		&item.ID, &itemType, &item.Content, &status, &item.Priority,
		&item.Weight, &parentID, &item.RetryCount, &lastError, &metadataJSON,
		&deadline, &item.CreatedAt, &completedAt, &item.Revision, &owner,
		&leaseUntil, &distance,
	)
	if err != nil {
		return nil, 0, err
	}

	item.Type = types.ItemType(itemType)
	item.Status = types.ItemStatus(status)
	item.ParentID = parentID.String
	item.LastError = lastError.String
	item.Owner = owner.String
	item.Deadline = timePtr(deadline)
	item.CompletedAt = timePtr(completedAt)
	item.LeaseUntil = timePtr(leaseUntil)

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &item.Metadata); err != nil {
			return nil, 0, fmt.Errorf("failed to unmarshal metadata for %s: %w", item.ID, err)
		}
	}

	return &item, distance, nil
}

// Compile-time assertion that GraphStore satisfies the similarity interface.
var _ storage.SimilarityProvider = (*GraphStore)(nil)
