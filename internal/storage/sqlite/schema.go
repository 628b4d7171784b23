package sqlite

// Schema contains the SQL statements to create the database schema for the
// SQLite graph store. Items form a forest via parent_id; revision supports
// optimistic versioning and owner/lease_until support action claiming.
const Schema = `
CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    content TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',

    priority INTEGER NOT NULL DEFAULT 0,
    weight REAL NOT NULL DEFAULT 0,
    parent_id TEXT,

    retry_count INTEGER NOT NULL DEFAULT 0,
    last_error TEXT,
    metadata TEXT,

    deadline TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    completed_at TIMESTAMP,

    revision INTEGER NOT NULL DEFAULT 1,
    owner TEXT,
    lease_until TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_items_type_status ON items(type, status);
CREATE INDEX IF NOT EXISTS idx_items_parent ON items(parent_id);
CREATE INDEX IF NOT EXISTS idx_items_created ON items(created_at);
`
