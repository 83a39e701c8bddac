package database

import (
	"database/sql"
	"errors"
	"fmt"
)

// UpsertCompany inserts a company or updates its name and corp code.
// The tracked flag of an existing row is preserved.
func (db *DB) UpsertCompany(stockCode, name string, corpCode *string) error {
	_, err := db.conn.Exec(
		`INSERT INTO companies (stock_code, name, corp_code) VALUES (?, ?, ?)
		ON CONFLICT(stock_code) DO UPDATE SET
			name = excluded.name,
			corp_code = COALESCE(excluded.corp_code, companies.corp_code)`,
		stockCode, name, corpCode,
	)
	if err != nil {
		return fmt.Errorf("upserting company %s: %w", stockCode, err)
	}
	return nil
}

// SetTracked marks a company for scheduled collection and analysis.
// Returns false if the company does not exist.
func (db *DB) SetTracked(stockCode string, tracked bool) (bool, error) {
	v := 0
	if tracked {
		v = 1
	}
	res, err := db.conn.Exec("UPDATE companies SET tracked = ? WHERE stock_code = ?", v, stockCode)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetCompanyByName returns the company with the exact name, or nil.
func (db *DB) GetCompanyByName(name string) (*Company, error) {
	return scanCompany(db.conn.QueryRow(
		`SELECT stock_code, name, corp_code, tracked, created_at FROM companies WHERE name = ?`, name,
	))
}

// GetCompanyByCode returns the company with the stock code, or nil.
func (db *DB) GetCompanyByCode(stockCode string) (*Company, error) {
	return scanCompany(db.conn.QueryRow(
		`SELECT stock_code, name, corp_code, tracked, created_at FROM companies WHERE stock_code = ?`, stockCode,
	))
}

// ListCompanies returns companies ordered by name.
func (db *DB) ListCompanies(trackedOnly bool) ([]Company, error) {
	query := `SELECT stock_code, name, corp_code, tracked, created_at FROM companies`
	if trackedOnly {
		query += " WHERE tracked = 1"
	}
	query += " ORDER BY name"

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var companies []Company
	for rows.Next() {
		var c Company
		var tracked int
		if err := rows.Scan(&c.StockCode, &c.Name, &c.CorpCode, &tracked, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Tracked = tracked != 0
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

func scanCompany(row *sql.Row) (*Company, error) {
	var c Company
	var tracked int
	if err := row.Scan(&c.StockCode, &c.Name, &c.CorpCode, &tracked, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.Tracked = tracked != 0
	return &c, nil
}
