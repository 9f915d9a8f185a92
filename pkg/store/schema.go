package store

// Schema contains the SQL statements to create the state database schema.
const Schema = `
-- Current state per service
CREATE TABLE IF NOT EXISTS service_states (
    service    TEXT PRIMARY KEY,
    state      TEXT NOT NULL CHECK (state IN ('down', 'changing', 'up')),
    updated_at DATETIME NOT NULL
);

-- Every accepted write, in order
CREATE TABLE IF NOT EXISTS state_history (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    service    TEXT NOT NULL,
    state      TEXT NOT NULL CHECK (state IN ('down', 'changing', 'up')),
    changed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_state_history_service ON state_history(service, id);
`

// serviceNameMaxLength is the maximum length of a service name.
const serviceNameMaxLength = 128

// defaultHistoryLimit is used when History is called with a non-positive limit.
const defaultHistoryLimit = 50

// maxHistoryLimit caps a single History call.
const maxHistoryLimit = 1000
