package store

// schema contains the SQL statements to create the sharelens report schema.
const schema = `
-- One row per generation pass
CREATE TABLE IF NOT EXISTS passes (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    name            TEXT NOT NULL UNIQUE,
    server_dirs     TEXT NOT NULL,
    client_dirs     TEXT NOT NULL,
    server_packages INTEGER NOT NULL DEFAULT 0,
    client_packages INTEGER NOT NULL DEFAULT 0,
    shared_files    INTEGER NOT NULL DEFAULT 0,
    failures        INTEGER NOT NULL DEFAULT 0,
    scanned_at      TEXT NOT NULL
);

-- Classified server entities
CREATE TABLE IF NOT EXISTS entities (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    pass_id    INTEGER NOT NULL,
    key        TEXT NOT NULL,
    kind       TEXT NOT NULL,
    type_name  TEXT NOT NULL,
    member     TEXT,
    params     TEXT,
    share_kind TEXT NOT NULL,
    FOREIGN KEY (pass_id) REFERENCES passes(id) ON DELETE CASCADE
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_entities_unique ON entities(pass_id, key);
CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(type_name);
CREATE INDEX IF NOT EXISTS idx_entities_share_kind ON entities(share_kind);
CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities(kind);

-- Source files recorded for each entity
CREATE TABLE IF NOT EXISTS entity_files (
    entity_id INTEGER NOT NULL,
    file      TEXT NOT NULL,
    PRIMARY KEY (entity_id, file),
    FOREIGN KEY (entity_id) REFERENCES entities(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_entity_files_file ON entity_files(file);

-- Member/type mismatches reported to the generator
CREATE TABLE IF NOT EXISTS diagnostics (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    pass_id    INTEGER NOT NULL,
    type_key   TEXT NOT NULL,
    member_key TEXT NOT NULL,
    message    TEXT NOT NULL,
    FOREIGN KEY (pass_id) REFERENCES passes(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_diagnostics_pass ON diagnostics(pass_id);

-- Metadata table for report info
CREATE TABLE IF NOT EXISTS metadata (
    key   TEXT PRIMARY KEY,
    value TEXT
);
`
