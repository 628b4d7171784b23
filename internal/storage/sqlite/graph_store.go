// Package sqlite provides the SQLite implementation of the graph store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scrypster/volition/internal/storage"
	"github.com/scrypster/volition/pkg/types"
)

// GraphStore implements storage.GraphStore using SQLite.
type GraphStore struct {
	db *sql.DB
}

// NewGraphStore opens a SQLite database, configures WAL mode, and creates
// the schema.
func NewGraphStore(dsn string) (*GraphStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Using a single open
	// connection serialises writes and avoids SQLITE_BUSY errors when
	// several loop processes share the file. WAL mode lets readers proceed
	// without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Wait instead of failing immediately when the connection is busy.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &GraphStore{db: db}, nil
}

// DB exposes the underlying connection for hygiene tooling and tests.
func (s *GraphStore) DB() *sql.DB {
	return s.db
}

// Close releases the database connection.
func (s *GraphStore) Close() error {
	return s.db.Close()
}

const itemColumns = `id, type, content, status, priority, weight, parent_id,
	retry_count, last_error, metadata, deadline, created_at, completed_at,
	revision, owner, lease_until`

// validateItem enforces the invariants every writer must honor.
func validateItem(item *types.MemoryItem) error {
	if item == nil {
		return storage.ErrInvalidInput
	}
	if item.ID == "" {
		return fmt.Errorf("%w: item ID is required", storage.ErrInvalidInput)
	}
	if item.Content == "" {
		return fmt.Errorf("%w: item content is required", storage.ErrInvalidInput)
	}
	if !types.IsValidItemType(item.Type) {
		return fmt.Errorf("%w: unknown item type %q", storage.ErrInvalidInput, item.Type)
	}
	if item.Status != "" && !types.IsValidItemStatus(item.Status) {
		return fmt.Errorf("%w: unknown status %q", storage.ErrInvalidInput, item.Status)
	}
	return nil
}

// Insert persists a new item with revision 1.
func (s *GraphStore) Insert(ctx context.Context, item *types.MemoryItem) error {
	if err := validateItem(item); err != nil {
		return err
	}

	if item.Status == "" {
		item.Status = types.StatusPending
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	item.Revision = 1

	metadataJSON, err := marshalMetadata(item.Metadata)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO items (
			id, type, content, status, priority, weight, parent_id,
			retry_count, last_error, metadata, deadline, created_at,
			completed_at, revision, owner, lease_until
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		item.ID, string(item.Type), item.Content, string(item.Status),
		item.Priority, item.Weight, nullString(item.ParentID),
		item.RetryCount, nullString(item.LastError), metadataJSON,
		nullTime(item.Deadline), item.CreatedAt, nullTime(item.CompletedAt),
		nullString(item.Owner), nullTime(item.LeaseUntil),
	)
	if err != nil {
		return fmt.Errorf("failed to insert item %s: %w", item.ID, err)
	}
	return nil
}

// Get retrieves an item by ID.
func (s *GraphStore) Get(ctx context.Context, id string) (*types.MemoryItem, error) {
	if id == "" {
		return nil, storage.ErrInvalidInput
	}
	row := s.db.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM items WHERE id = ?", id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item %s: %w", id, err)
	}
	return item, nil
}

// List retrieves items filtered by type, status and parent.
func (s *GraphStore) List(ctx context.Context, opts storage.ListOptions) ([]*types.MemoryItem, error) {
	opts.Normalize()

	query := "SELECT " + itemColumns + " FROM items WHERE 1=1"
	args := []interface{}{}

	if opts.Type != "" {
		query += " AND type = ?"
		args = append(args, string(opts.Type))
	}
	if opts.Status != "" {
		query += " AND status = ?"
		args = append(args, string(opts.Status))
	}
	if opts.RootOnly {
		query += " AND parent_id IS NULL"
	} else if opts.ParentID != "" {
		query += " AND parent_id = ?"
		args = append(args, opts.ParentID)
	}

	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, opts.Limit, opts.Offset)

	return s.queryItems(ctx, query, args...)
}

// Update overwrites an item unconditionally and increments its revision.
func (s *GraphStore) Update(ctx context.Context, item *types.MemoryItem) error {
	return s.update(ctx, item, -1)
}

// UpdateIf overwrites an item only when its stored revision matches.
func (s *GraphStore) UpdateIf(ctx context.Context, item *types.MemoryItem, expectedRevision int64) error {
	if expectedRevision < 1 {
		return fmt.Errorf("%w: expected revision must be >= 1", storage.ErrInvalidInput)
	}
	return s.update(ctx, item, expectedRevision)
}

// update performs the shared write. expectedRevision < 0 means unconditional.
func (s *GraphStore) update(ctx context.Context, item *types.MemoryItem, expectedRevision int64) error {
	if err := validateItem(item); err != nil {
		return err
	}

	metadataJSON, err := marshalMetadata(item.Metadata)
	if err != nil {
		return err
	}

	query := `
		UPDATE items SET
			type = ?, content = ?, status = ?, priority = ?, weight = ?,
			parent_id = ?, retry_count = ?, last_error = ?, metadata = ?,
			deadline = ?, completed_at = ?, owner = ?, lease_until = ?,
			revision = revision + 1
		WHERE id = ?`
	args := []interface{}{
		string(item.Type), item.Content, string(item.Status), item.Priority,
		item.Weight, nullString(item.ParentID), item.RetryCount,
		nullString(item.LastError), metadataJSON, nullTime(item.Deadline),
		nullTime(item.CompletedAt), nullString(item.Owner),
		nullTime(item.LeaseUntil), item.ID,
	}
	if expectedRevision >= 0 {
		query += " AND revision = ?"
		args = append(args, expectedRevision)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update item %s: %w", item.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update of item %s: %w", item.ID, err)
	}
	if rows == 0 {
		if expectedRevision < 0 {
			return storage.ErrNotFound
		}
		// Distinguish a missing item from a lost race.
		var exists int
		if err := s.db.QueryRowContext(ctx,
			"SELECT 1 FROM items WHERE id = ?", item.ID).Scan(&exists); err == sql.ErrNoRows {
			return storage.ErrNotFound
		}
		return storage.ErrStaleRevision
	}

	item.Revision++
	return nil
}

// Delete removes an item permanently.
func (s *GraphStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return storage.ErrInvalidInput
	}
	result, err := s.db.ExecContext(ctx, "DELETE FROM items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete item %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ActiveGoalsWithChildCounts returns active/pending goals with direct child
// counts, ordered by priority descending then age (oldest first).
func (s *GraphStore) ActiveGoalsWithChildCounts(ctx context.Context) ([]storage.GoalWithChildren, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`,
			(SELECT COUNT(*) FROM items c WHERE c.parent_id = items.id) AS child_count
		FROM items
		WHERE type = 'goal' AND status IN ('active', 'pending')
		ORDER BY priority DESC, created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query goals: %w", err)
	}
	defer rows.Close()

	var results []storage.GoalWithChildren
	for rows.Next() {
		item, count, err := scanItemWithCount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal row: %w", err)
		}
		results = append(results, storage.GoalWithChildren{Goal: item, ChildCount: count})
	}
	return results, rows.Err()
}

// PendingActions returns pending actions by priority then age.
func (s *GraphStore) PendingActions(ctx context.Context, limit int) ([]*types.MemoryItem, error) {
	if limit < 1 {
		limit = 50
	}
	return s.queryItems(ctx, `
		SELECT `+itemColumns+` FROM items
		WHERE type = 'action' AND status = 'pending'
		ORDER BY priority DESC, created_at ASC
		LIMIT ?`, limit)
}

// ActiveStrategies returns active strategies by weight then recency.
func (s *GraphStore) ActiveStrategies(ctx context.Context, limit int) ([]*types.MemoryItem, error) {
	if limit < 1 {
		limit = 20
	}
	return s.queryItems(ctx, `
		SELECT `+itemColumns+` FROM items
		WHERE type = 'strategy' AND status = 'active'
		ORDER BY weight DESC, created_at DESC
		LIMIT ?`, limit)
}

// RecentReflections returns the newest reflections first.
func (s *GraphStore) RecentReflections(ctx context.Context, limit int) ([]*types.MemoryItem, error) {
	if limit < 1 {
		limit = 10
	}
	return s.queryItems(ctx, `
		SELECT `+itemColumns+` FROM items
		WHERE type = 'reflection'
		ORDER BY created_at DESC
		LIMIT ?`, limit)
}

// GetCounters returns the aggregate counters for situation reports.
func (s *GraphStore) GetCounters(ctx context.Context) (*storage.Counters, error) {
	c := &storage.Counters{}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM items WHERE type = 'goal' AND status = 'active'),
			(SELECT COUNT(*) FROM items WHERE type = 'action' AND status = 'pending'),
			(SELECT COUNT(*) FROM items WHERE status = 'blocked'),
			(SELECT COUNT(*) FROM items WHERE last_error IS NOT NULL
				AND created_at > datetime('now', '-1 day'))`).
		Scan(&c.ActiveGoals, &c.PendingActions, &c.BlockedItems, &c.RecentErrors)
	if err != nil {
		return nil, fmt.Errorf("failed to query counters: %w", err)
	}
	return c, nil
}

// MarkActionCompleted sets an action to completed and stamps completed_at.
func (s *GraphStore) MarkActionCompleted(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE items SET status = 'completed', completed_at = CURRENT_TIMESTAMP,
			owner = NULL, lease_until = NULL, revision = revision + 1
		WHERE id = ? AND type = 'action'`, id)
	if err != nil {
		return fmt.Errorf("failed to complete action %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MarkActionBlocked sets an action to blocked with a reason.
func (s *GraphStore) MarkActionBlocked(ctx context.Context, id string, reason string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE items SET status = 'blocked', last_error = ?,
			owner = NULL, lease_until = NULL, revision = revision + 1
		WHERE id = ? AND type = 'action'`, reason, id)
	if err != nil {
		return fmt.Errorf("failed to block action %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CompleteGoalCascade completes a goal and its direct children — exactly one
// level. Grandchildren are deliberately untouched.
func (s *GraphStore) CompleteGoalCascade(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin cascade: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE items SET type = 'completed_goal', status = 'completed',
			completed_at = CURRENT_TIMESTAMP, revision = revision + 1
		WHERE id = ? AND type = 'goal'`, id)
	if err != nil {
		return fmt.Errorf("failed to complete goal %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return storage.ErrNotFound
	}

	// Shallow cascade: direct children only.
	if _, err := tx.ExecContext(ctx, `
		UPDATE items SET status = 'completed', completed_at = CURRENT_TIMESTAMP,
			revision = revision + 1
		WHERE parent_id = ? AND status != 'completed'`, id); err != nil {
		return fmt.Errorf("failed to cascade goal %s: %w", id, err)
	}

	return tx.Commit()
}

// BlockGoal sets a goal to blocked with a reason.
func (s *GraphStore) BlockGoal(ctx context.Context, id string, reason string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE items SET status = 'blocked', last_error = ?, revision = revision + 1
		WHERE id = ? AND type = 'goal'`, reason, id)
	if err != nil {
		return fmt.Errorf("failed to block goal %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DecomposeGoal atomically inserts a decomposition's children under a goal.
func (s *GraphStore) DecomposeGoal(ctx context.Context, goalID string, children []*types.MemoryItem) error {
	if goalID == "" {
		return storage.ErrInvalidInput
	}
	if len(children) == 0 {
		return nil
	}

	// Children may only be attached to an existing, already-persisted parent.
	if _, err := s.Get(ctx, goalID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin decomposition: %w", err)
	}
	defer tx.Rollback()

	for _, child := range children {
		child.ParentID = goalID
		if err := validateItem(child); err != nil {
			return err
		}
		if child.Status == "" {
			child.Status = types.StatusPending
		}
		if child.CreatedAt.IsZero() {
			child.CreatedAt = time.Now().UTC()
		}
		metadataJSON, err := marshalMetadata(child.Metadata)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO items (
				id, type, content, status, priority, weight, parent_id,
				retry_count, last_error, metadata, deadline, created_at,
				completed_at, revision
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
			child.ID, string(child.Type), child.Content, string(child.Status),
			child.Priority, child.Weight, goalID, child.RetryCount,
			nullString(child.LastError), metadataJSON, nullTime(child.Deadline),
			child.CreatedAt, nullTime(child.CompletedAt),
		); err != nil {
			return fmt.Errorf("failed to insert child %s: %w", child.ID, err)
		}
		child.Revision = 1
	}

	return tx.Commit()
}

// ClaimAction atomically assigns owner and a lease to a pending action. The
// single UPDATE with lease predicates makes the claim race-free under the
// store's single-writer discipline.
func (s *GraphStore) ClaimAction(ctx context.Context, id, owner string, lease time.Duration) (*storage.Claim, error) {
	if id == "" || owner == "" || lease <= 0 {
		return nil, storage.ErrInvalidInput
	}

	// UTC so the stored lease compares correctly against CURRENT_TIMESTAMP.
	leaseUntil := time.Now().UTC().Add(lease)
	result, err := s.db.ExecContext(ctx, `
		UPDATE items SET owner = ?, lease_until = ?, revision = revision + 1
		WHERE id = ? AND type = 'action' AND status = 'pending'
			AND (owner IS NULL OR lease_until IS NULL OR lease_until < CURRENT_TIMESTAMP)`,
		owner, leaseUntil, id)
	if err != nil {
		return nil, fmt.Errorf("failed to claim action %s: %w", id, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx,
			"SELECT 1 FROM items WHERE id = ? AND type = 'action'", id).Scan(&exists); err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, storage.ErrAlreadyClaimed
	}

	return &storage.Claim{ItemID: id, Owner: owner, LeaseUntil: leaseUntil}, nil
}

// ReleaseClaim clears an action's claim if held by owner. Releasing an
// unclaimed or foreign claim is a no-op, not an error.
func (s *GraphStore) ReleaseClaim(ctx context.Context, id, owner string) error {
	if id == "" || owner == "" {
		return storage.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE items SET owner = NULL, lease_until = NULL, revision = revision + 1
		WHERE id = ? AND owner = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("failed to release claim on %s: %w", id, err)
	}
	return nil
}

// LogSystemEvent records a system_event item.
func (s *GraphStore) LogSystemEvent(ctx context.Context, content string, metadata map[string]interface{}) error {
	if content == "" {
		return storage.ErrInvalidInput
	}
	item := &types.MemoryItem{
		ID:       newEventID(),
		Type:     types.TypeSystemEvent,
		Content:  content,
		Status:   types.StatusArchived,
		Metadata: metadata,
	}
	return s.Insert(ctx, item)
}

// queryItems runs a SELECT over itemColumns and scans the results.
func (s *GraphStore) queryItems(ctx context.Context, query string, args ...interface{}) ([]*types.MemoryItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []*types.MemoryItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// marshalMetadata serialises the metadata bag, returning nil for empty bags
// so the column stays NULL.
func marshalMetadata(metadata map[string]interface{}) ([]byte, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return data, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) interface{} {
	if t == nil || t.IsZero() {
		return nil
	}
	return *t
}

// Compile-time assertion that GraphStore satisfies the storage interface.
var _ storage.GraphStore = (*GraphStore)(nil)
