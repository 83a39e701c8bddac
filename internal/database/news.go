package database

import (
	"database/sql"
	"errors"
	"strings"
)

const newsColumns = `id, url, stock_code, title, translated_title, body, translated_body,
	source, published_date, content_fetched, collected_at`

// InsertNews inserts a news article. Returns the ID on success, 0 if the URL
// is already stored.
func (db *DB) InsertNews(a NewsArticle) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO news (url, stock_code, title, translated_title, body, translated_body, source, published_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO NOTHING`,
		a.URL, a.StockCode, a.Title, a.TranslatedTitle, a.Body, a.TranslatedBody, a.Source, a.PublishedDate,
	)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil || n == 0 {
		return 0, err
	}
	return result.LastInsertId()
}

// GetNewsByCompany returns a company's articles, newest first.
func (db *DB) GetNewsByCompany(stockCode string) ([]NewsArticle, error) {
	rows, err := db.conn.Query(
		`SELECT `+newsColumns+` FROM news WHERE stock_code = ? ORDER BY collected_at DESC, id DESC`, stockCode,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNewsRows(rows)
}

// GetUnanalyzedNews returns a company's articles that have neither a stored
// result nor a non-ESG mark.
func (db *DB) GetUnanalyzedNews(stockCode string) ([]NewsArticle, error) {
	rows, err := db.conn.Query(
		`SELECT `+prefixed("n.", newsColumns)+`
		FROM news n LEFT JOIN esg_results r ON r.article_id = CAST(n.id AS TEXT)
		WHERE n.stock_code = ? AND r.article_id IS NULL AND n.non_esg = 0
		ORDER BY n.collected_at DESC, n.id DESC`, stockCode,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNewsRows(rows)
}

// GetNewsNeedingFetch returns articles with an empty body that haven't been fetched.
func (db *DB) GetNewsNeedingFetch(stockCode *string) ([]NewsArticle, error) {
	query := `SELECT ` + newsColumns + ` FROM news
		WHERE (body IS NULL OR body = '') AND content_fetched = 0`
	var args []any
	if stockCode != nil {
		query += " AND stock_code = ?"
		args = append(args, *stockCode)
	}
	query += " ORDER BY collected_at DESC"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNewsRows(rows)
}

// UpdateNewsBody stores a fetched body.
func (db *DB) UpdateNewsBody(id int64, body *string) error {
	_, err := db.conn.Exec(
		"UPDATE news SET body = ?, content_fetched = 1 WHERE id = ?", body, id,
	)
	return err
}

// MarkNewsFetchAttempted marks that we tried to fetch the body.
func (db *DB) MarkNewsFetchAttempted(id int64) error {
	_, err := db.conn.Exec("UPDATE news SET content_fetched = 1 WHERE id = ?", id)
	return err
}

// MarkNewsNonESG records that the article was classified as not ESG related.
func (db *DB) MarkNewsNonESG(id int64) error {
	_, err := db.conn.Exec("UPDATE news SET non_esg = 1 WHERE id = ?", id)
	return err
}

// GetNewsByID returns a single article by ID, or nil.
func (db *DB) GetNewsByID(id int64) (*NewsArticle, error) {
	rows, err := db.conn.Query(`SELECT `+newsColumns+` FROM news WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	articles, err := scanNewsRows(rows)
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, nil
	}
	return &articles[0], nil
}

func scanNewsRows(rows *sql.Rows) ([]NewsArticle, error) {
	var articles []NewsArticle
	for rows.Next() {
		var a NewsArticle
		var fetched int
		if err := rows.Scan(&a.ID, &a.URL, &a.StockCode, &a.Title, &a.TranslatedTitle, &a.Body,
			&a.TranslatedBody, &a.Source, &a.PublishedDate, &fetched, &a.CollectedAt); err != nil {
			return nil, err
		}
		a.ContentFetched = fetched != 0
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return articles, nil
}

func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
