package disclosure

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"
)

// Statement kinds.
const (
	KindIncome              = "IS"
	KindComprehensiveIncome = "CIS"
)

// Row is one account across periods, keyed by period end date (YYYYMMDD).
type Row struct {
	Name       string           `json:"Name"`
	AccountID  string           `json:"account_id,omitempty"`
	PeriodData map[string]int64 `json:"periodData"`
}

// Statement is an income statement over a range of periodic reports.
type Statement struct {
	CorpCode string   `json:"corp_code"`
	Kind     string   `json:"statement"`
	Periods  []string `json:"periods"`
	Rows     []Row    `json:"rows"`
}

// IncomeStatement collects the quarterly income statement of a company for
// the last 3 or 5 years. When no report carries an income statement (IS)
// the comprehensive income statement (CIS) is used instead.
func (c *Client) IncomeStatement(ctx context.Context, corpCode string, years int, now time.Time) (*Statement, error) {
	if !ValidYears(years) {
		return nil, ErrInvalidPeriod
	}

	periods := QuarterlyPeriods(now, years)

	p := pool.NewWithResults[periodAccounts]().WithErrors().WithContext(ctx).WithMaxGoroutines(4)
	for _, period := range periods {
		p.Go(func(ctx context.Context) (periodAccounts, error) {
			accounts, err := c.Accounts(ctx, corpCode, period.Year, period.ReportCode)
			if IsNoData(err) {
				// Not filed yet, or the company did not exist then.
				c.logger.Debug("no report", "corp_code", corpCode, "period", period.String())
				return periodAccounts{period: period}, nil
			}
			if err != nil {
				return periodAccounts{}, fmt.Errorf("%s: %w", period, err)
			}
			return periodAccounts{period: period, accounts: accounts}, nil
		})
	}
	results, err := p.Wait()
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].period.End.Before(results[j].period.End) })

	for _, kind := range []string{KindIncome, KindComprehensiveIncome} {
		stmt := buildStatement(corpCode, kind, filterKind(results, kind))
		if len(stmt.Rows) > 0 {
			return stmt, nil
		}
	}
	return nil, &APIError{Status: StatusNoData, Message: "no income statement data for the requested period"}
}

type periodAccounts struct {
	period   Period
	accounts []Account
}

// filterKind keeps the accounts of one statement kind, dropping periods
// left empty.
func filterKind(results []periodAccounts, kind string) []periodAccounts {
	out := make([]periodAccounts, 0, len(results))
	for _, r := range results {
		var filtered []Account
		for _, a := range r.accounts {
			if a.StatementKind == kind {
				filtered = append(filtered, a)
			}
		}
		if len(filtered) > 0 {
			out = append(out, periodAccounts{period: r.period, accounts: filtered})
		}
	}
	return out
}

// buildStatement pivots per-period account lists into rows. Row order
// follows first appearance; names are simplified and made unique.
func buildStatement(corpCode, kind string, data []periodAccounts) *Statement {
	stmt := &Statement{CorpCode: corpCode, Kind: kind}
	index := map[string]int{}

	for _, pa := range data {
		key := pa.period.Key()
		stmt.Periods = append(stmt.Periods, key)
		for _, a := range pa.accounts {
			rowKey := a.AccountID + "|" + a.AccountName
			i, ok := index[rowKey]
			if !ok {
				i = len(stmt.Rows)
				index[rowKey] = i
				stmt.Rows = append(stmt.Rows, Row{
					Name:       SimplifyName(a.AccountName),
					AccountID:  accountID(a.AccountID),
					PeriodData: map[string]int64{},
				})
			}
			if amount, ok := ParseAmount(a.Amount); ok {
				stmt.Rows[i].PeriodData[key] = amount
			}
		}
	}

	names := make([]string, len(stmt.Rows))
	for i, r := range stmt.Rows {
		names[i] = r.Name
	}
	for i, n := range MakeUnique(names) {
		stmt.Rows[i].Name = n
	}
	return stmt
}

// Compact keeps only the earliest and latest period of every row.
func (s *Statement) Compact() *Statement {
	out := &Statement{CorpCode: s.CorpCode, Kind: s.Kind}
	if len(s.Periods) > 0 {
		out.Periods = []string{s.Periods[0]}
		if len(s.Periods) > 1 {
			out.Periods = append(out.Periods, s.Periods[len(s.Periods)-1])
		}
	}
	for _, r := range s.Rows {
		keys := make([]string, 0, len(r.PeriodData))
		for k := range r.PeriodData {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		data := map[string]int64{}
		if len(keys) > 0 {
			data[keys[0]] = r.PeriodData[keys[0]]
			data[keys[len(keys)-1]] = r.PeriodData[keys[len(keys)-1]]
		}
		out.Rows = append(out.Rows, Row{Name: r.Name, AccountID: r.AccountID, PeriodData: data})
	}
	return out
}

var (
	bracketed   = regexp.MustCompile(`\[.*?\]|\(.*?\)|\s\|\s.*`)
	nonWordChar = regexp.MustCompile(`[^a-zA-Z0-9가-힣]`)
)

// SimplifyName strips bracketed and parenthesised parts, any " | ..."
// suffix, and every character that is not a Latin letter, digit or Hangul.
func SimplifyName(name string) string {
	name = bracketed.ReplaceAllString(name, "")
	return nonWordChar.ReplaceAllString(name, "")
}

// MakeUnique suffixes repeated names with _1, _2, ... in order of appearance.
func MakeUnique(names []string) []string {
	seen := map[string]int{}
	out := make([]string, len(names))
	for i, n := range names {
		if count, ok := seen[n]; ok {
			seen[n] = count + 1
			out[i] = fmt.Sprintf("%s_%d", n, count+1)
			continue
		}
		seen[n] = 0
		out[i] = n
	}
	return out
}

// ParseAmount parses a DART amount such as "1,234,000" or "-56".
// Empty values and "-" report false.
func ParseAmount(s string) (int64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" || s == "-" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func accountID(id string) string {
	// DART marks company-specific lines with a placeholder id.
	if strings.HasPrefix(id, "-") {
		return ""
	}
	return id
}
