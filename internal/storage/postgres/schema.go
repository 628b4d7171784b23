// Package postgres provides the PostgreSQL implementation of the graph store.
package postgres

// Schema contains the SQL statements to create the graph-store schema for
// PostgreSQL. The embedding column backs the pgvector similarity provider;
// it is created only when the pgvector extension is available.
const Schema = `
CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    content TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',

    priority INTEGER NOT NULL DEFAULT 0,
    weight DOUBLE PRECISION NOT NULL DEFAULT 0,
    parent_id TEXT,

    retry_count INTEGER NOT NULL DEFAULT 0,
    last_error TEXT,
    metadata JSONB,

    deadline TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    completed_at TIMESTAMPTZ,

    revision BIGINT NOT NULL DEFAULT 1,
    owner TEXT,
    lease_until TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_items_type_status ON items(type, status);
CREATE INDEX IF NOT EXISTS idx_items_parent ON items(parent_id);
CREATE INDEX IF NOT EXISTS idx_items_created ON items(created_at);
`

// VectorSchema adds the embedding column used by the similarity provider.
// Applied only when the pgvector extension is installed.
const VectorSchema = `
ALTER TABLE items ADD COLUMN IF NOT EXISTS embedding vector(768);
`
