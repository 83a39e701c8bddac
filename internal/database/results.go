package database

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

var resultColumns = []string{
	"article_id", "article_title", "esg_label", "esg_category", "esg_sentiment",
	"esg_fls", "esg_score", "stock_code", "analyzed_at",
}

// SaveResult stores an analysis unless a row for the article already exists.
// The check and insert are a single statement, so concurrent saves of the
// same article leave exactly one row. Returns true if this call inserted it.
func (db *DB) SaveResult(r ESGResult) (bool, error) {
	res, err := db.conn.Exec(
		`INSERT INTO esg_results
		(article_id, article_title, esg_label, esg_category, esg_sentiment, esg_fls, esg_score, stock_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(article_id) DO NOTHING`,
		r.ArticleID, r.ArticleTitle, r.ESGLabel, r.Category, r.Sentiment, r.FLS, r.Score, r.StockCode,
	)
	if err != nil {
		return false, fmt.Errorf("saving result for article %s: %w", r.ArticleID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetResult returns the stored result for an article, or nil.
func (db *DB) GetResult(articleID string) (*ESGResult, error) {
	results, err := db.QueryResults(ResultFilter{}, sq.Eq{"article_id": articleID})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return &results[0], nil
}

// GetResultsByCompany returns every stored result for a stock code,
// highest score first.
func (db *DB) GetResultsByCompany(stockCode string) ([]ESGResult, error) {
	return db.QueryResults(ResultFilter{StockCode: stockCode})
}

// QueryResults returns results matching the filter plus any extra conditions.
func (db *DB) QueryResults(f ResultFilter, extra ...sq.Sqlizer) ([]ESGResult, error) {
	q := sq.Select(resultColumns...).From("esg_results")
	if f.StockCode != "" {
		q = q.Where(sq.Eq{"stock_code": f.StockCode})
	}
	if f.Label != "" {
		q = q.Where(sq.Eq{"esg_label": f.Label})
	}
	if f.MinScore != nil {
		q = q.Where(sq.GtOrEq{"esg_score": *f.MinScore})
	}
	if f.Since != "" {
		q = q.Where(sq.GtOrEq{"analyzed_at": f.Since})
	}
	for _, cond := range extra {
		q = q.Where(cond)
	}
	q = q.OrderBy("esg_score DESC", "analyzed_at DESC", "article_id")
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building results query: %w", err)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ESGResult
	for rows.Next() {
		var r ESGResult
		if err := rows.Scan(&r.ArticleID, &r.ArticleTitle, &r.ESGLabel, &r.Category, &r.Sentiment,
			&r.FLS, &r.Score, &r.StockCode, &r.AnalyzedAt); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// GetLabelSummary returns per-label counts and average scores for a company.
func (db *DB) GetLabelSummary(stockCode string) ([]LabelSummary, error) {
	query, args, err := sq.Select("esg_label", "COUNT(*)", "AVG(esg_score)").
		From("esg_results").
		Where(sq.Eq{"stock_code": stockCode}).
		GroupBy("esg_label").
		OrderBy("esg_label").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building summary query: %w", err)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LabelSummary
	for rows.Next() {
		var s LabelSummary
		if err := rows.Scan(&s.Label, &s.Count, &s.AverageScore); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
