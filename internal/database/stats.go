package database

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	var s Stats
	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM companies", &s.Companies},
		{"SELECT COUNT(*) FROM companies WHERE tracked = 1", &s.TrackedCompanies},
		{"SELECT COUNT(*) FROM news", &s.NewsArticles},
		{"SELECT COUNT(*) FROM news WHERE (body IS NULL OR body = '') AND content_fetched = 0", &s.PendingFetch},
		{"SELECT COUNT(*) FROM esg_results", &s.Results},
		{"SELECT COUNT(*) FROM analysis_runs", &s.Runs},
	}
	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}
	if err := db.conn.QueryRow("SELECT MAX(started_at) FROM analysis_runs").Scan(&s.LastRunAt); err != nil {
		return nil, err
	}
	return &s, nil
}
