package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS agencies (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    abbreviation TEXT,
    department TEXT,
    tier TEXT,
    is_active INTEGER DEFAULT 1,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS opportunities (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    notice_id TEXT UNIQUE NOT NULL,
    title TEXT NOT NULL,
    solicitation_number TEXT,
    description TEXT,
    notice_type TEXT NOT NULL DEFAULT 'Unknown',
    posted_date TEXT,
    response_deadline TEXT,
    naics_code TEXT,
    set_aside TEXT,
    classification_code TEXT,
    agency_id INTEGER REFERENCES agencies(id),
    office_name TEXT,
    pop_city TEXT,
    pop_state TEXT,
    pop_country TEXT,
    pop_zip TEXT,
    archive_type TEXT,
    ui_link TEXT,
    additional_info_link TEXT,
    is_active INTEGER DEFAULT 0,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS opportunity_scores (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    opportunity_id INTEGER NOT NULL REFERENCES opportunities(id),
    score_type TEXT NOT NULL,
    score_value INTEGER NOT NULL,
    confidence REAL,
    metadata TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS sync_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT UNIQUE NOT NULL,
    sync_type TEXT NOT NULL,
    status TEXT NOT NULL,
    records_processed INTEGER DEFAULT 0,
    error_count INTEGER DEFAULT 0,
    error_log TEXT,
    started_at TEXT,
    completed_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS alert_dispatches (
    score_id INTEGER PRIMARY KEY REFERENCES opportunity_scores(id),
    dispatched_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_opportunities_notice ON opportunities(notice_id);
CREATE INDEX IF NOT EXISTS idx_opportunities_posted ON opportunities(posted_date);
CREATE INDEX IF NOT EXISTS idx_scores_opportunity ON opportunity_scores(opportunity_id, score_type);
CREATE INDEX IF NOT EXISTS idx_scores_created ON opportunity_scores(created_at);
CREATE INDEX IF NOT EXISTS idx_agencies_name ON agencies(name);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
