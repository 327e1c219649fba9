package storage

// Schema contains SQL statements to create database tables.
const Schema = `
-- Visits table: one row per navigation attempt
CREATE TABLE IF NOT EXISTS visits (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT NOT NULL,
    normalized_url TEXT NOT NULL,
    final_url TEXT,
    status_code INTEGER DEFAULT 0,
    content_type TEXT,
    charset TEXT,
    title TEXT,
    error_message TEXT,
    opened_external BOOLEAN DEFAULT 0,
    response_time_ms INTEGER DEFAULT 0,
    visited_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_visits_normalized ON visits(normalized_url);
CREATE INDEX IF NOT EXISTS idx_visits_visited_at ON visits(visited_at);
`
