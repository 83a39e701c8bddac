package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// baseSchema is idempotent.
const baseSchema = `
CREATE TABLE IF NOT EXISTS companies (
    stock_code TEXT PRIMARY KEY,
    name TEXT UNIQUE NOT NULL,
    corp_code TEXT,
    tracked INTEGER DEFAULT 0,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS news (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT UNIQUE NOT NULL,
    stock_code TEXT NOT NULL,
    title TEXT NOT NULL,
    translated_title TEXT,
    body TEXT,
    translated_body TEXT,
    source TEXT,
    published_date TEXT,
    content_fetched INTEGER DEFAULT 0,
    collected_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS esg_results (
    article_id TEXT PRIMARY KEY,
    article_title TEXT NOT NULL,
    esg_label TEXT NOT NULL,
    esg_category TEXT,
    esg_sentiment TEXT,
    esg_fls TEXT,
    esg_score INTEGER NOT NULL,
    stock_code TEXT,
    analyzed_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_news_stock_code ON news(stock_code);
CREATE INDEX IF NOT EXISTS idx_esg_results_stock_code ON esg_results(stock_code);
`

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "companies, news and esg results",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(baseSchema)
			return err
		},
	},
	{
		Version:     2,
		Description: "analysis run log",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS analysis_runs (
    id TEXT PRIMARY KEY,
    stock_code TEXT NOT NULL,
    started_at TEXT NOT NULL,
    finished_at TEXT,
    articles INTEGER DEFAULT 0,
    esg INTEGER DEFAULT 0,
    non_esg INTEGER DEFAULT 0,
    failed INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_analysis_runs_stock_code ON analysis_runs(stock_code);
`)
			return err
		},
	},
	{
		Version:     3,
		Description: "mark news classified as non-ESG",
		Up: func(tx *sql.Tx) error {
			// Databases stamped as legacy skipped version 1.
			if _, err := tx.Exec(baseSchema); err != nil {
				return err
			}
			_, err := tx.Exec(`ALTER TABLE news ADD COLUMN non_esg INTEGER DEFAULT 0`)
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
