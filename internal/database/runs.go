package database

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

const timeLayout = "2006-01-02 15:04:05"

// StartRun opens an analysis run for a company and returns its id.
func (db *DB) StartRun(stockCode string) (string, error) {
	id := uuid.NewString()
	_, err := db.conn.Exec(
		"INSERT INTO analysis_runs (id, stock_code, started_at) VALUES (?, ?, ?)",
		id, stockCode, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// FinishRun stores the counters of a completed run.
func (db *DB) FinishRun(id string, articles, esg, nonESG, failed int) error {
	_, err := db.conn.Exec(
		`UPDATE analysis_runs SET finished_at = ?, articles = ?, esg = ?, non_esg = ?, failed = ?
		WHERE id = ?`,
		time.Now().UTC().Format(timeLayout), articles, esg, nonESG, failed, id,
	)
	return err
}

// GetRun returns a run by id, or nil.
func (db *DB) GetRun(id string) (*AnalysisRun, error) {
	var r AnalysisRun
	err := db.conn.QueryRow(
		`SELECT id, stock_code, started_at, finished_at, articles, esg, non_esg, failed
		FROM analysis_runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.StockCode, &r.StartedAt, &r.FinishedAt, &r.Articles, &r.ESG, &r.NonESG, &r.Failed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetLastRunDate returns the start date (YYYY-MM-DD) of the most recent
// finished run, or "" when nothing has run yet.
func (db *DB) GetLastRunDate() (string, error) {
	var started *string
	err := db.conn.QueryRow(
		"SELECT MAX(started_at) FROM analysis_runs WHERE finished_at IS NOT NULL",
	).Scan(&started)
	if err != nil {
		return "", err
	}
	if started == nil || len(*started) < 10 {
		return "", nil
	}
	return (*started)[:10], nil
}
