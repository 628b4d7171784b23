package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/volition/pkg/types"
)

// rowScanner abstracts *sql.Row and *sql.Rows for the shared scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanItem reads one item row in itemColumns order.
func scanItem(row rowScanner) (*types.MemoryItem, error) {
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
	)

	err := row.Scan(
		&item.ID, &itemType, &item.Content, &status, &item.Priority,
		&item.Weight, &parentID, &item.RetryCount, &lastError, &metadataJSON,
		&deadline, &item.CreatedAt, &completedAt, &item.Revision, &owner,
		&leaseUntil,
	)
	if err != nil {
		return nil, err
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
			return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", item.ID, err)
		}
	}

	return &item, nil
}

// scanItemWithCount reads an item row followed by a trailing child_count.
func scanItemWithCount(row rowScanner) (*types.MemoryItem, int, error) {
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
		childCount   int
	)

	err := row.Scan(
		&item.ID, &itemType, &item.Content, &status, &item.Priority,
		&item.Weight, &parentID, &item.RetryCount, &lastError, &metadataJSON,
		&deadline, &item.CreatedAt, &completedAt, &item.Revision, &owner,
		&leaseUntil, &childCount,
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

	return &item, childCount, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// newEventID generates an identifier for system events.
func newEventID() string {
	return "evt:" + uuid.NewString()
}
