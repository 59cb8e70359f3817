package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the audit table. seq is assigned by SQLite and is the
// tie-breaker for entries recorded within the same nanosecond. Timestamps are
// stored as UTC Unix nanoseconds so ordering is numeric.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_entries (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    action TEXT NOT NULL,
    proposal_id TEXT NOT NULL DEFAULT '',
    entity_type TEXT NOT NULL DEFAULT '',
    entity_id TEXT NOT NULL DEFAULT '',
    actor TEXT NOT NULL DEFAULT '',
    details TEXT,
    content_hash TEXT NOT NULL,
    recorded_at_ns INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_proposal ON audit_entries(proposal_id, recorded_at_ns, seq);
CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_entries(action);
CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_entries(actor);
CREATE INDEX IF NOT EXISTS idx_audit_time ON audit_entries(recorded_at_ns, seq);

-- Entries are immutable.
CREATE TRIGGER IF NOT EXISTS audit_entries_no_update
BEFORE UPDATE ON audit_entries
BEGIN
    SELECT RAISE(ABORT, 'audit entries are append-only');
END;

CREATE TRIGGER IF NOT EXISTS audit_entries_no_delete
BEFORE DELETE ON audit_entries
BEGIN
    SELECT RAISE(ABORT, 'audit entries are append-only');
END;

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// InsertSchemaVersion records the schema version if it is not already present.
const InsertSchemaVersion = `
INSERT INTO schema_version (version) VALUES (?)
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion returns the highest applied schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const insertEntry = `
INSERT INTO audit_entries (
    id, action, proposal_id, entity_type, entity_id, actor, details, content_hash, recorded_at_ns
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
`

const selectColumns = `seq, id, action, proposal_id, entity_type, entity_id, actor, details, content_hash, recorded_at_ns`
