// Package report builds per-company ESG reports in Markdown and HTML.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/TobiSchelling/ESGLens/internal/database"
)

// DefaultTopN is how many articles the report lists.
const DefaultTopN = 10

// ErrUnknownCompany is returned when the stock code is not stored.
var ErrUnknownCompany = errors.New("company not found")

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// Store is the subset of the database the report reads.
type Store interface {
	GetCompanyByCode(stockCode string) (*database.Company, error)
	GetLabelSummary(stockCode string) ([]database.LabelSummary, error)
	QueryResults(f database.ResultFilter, extra ...sq.Sqlizer) ([]database.ESGResult, error)
}

// Report is a company's ESG summary.
type Report struct {
	Company      database.Company
	Labels       []database.LabelSummary
	Total        int
	AverageScore float64
	Top          []database.ESGResult
	Negative     []database.ESGResult
}

// Builder assembles reports from stored results.
type Builder struct {
	store Store
	topN  int
}

// NewBuilder creates a report builder. topN <= 0 uses DefaultTopN.
func NewBuilder(store Store, topN int) *Builder {
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &Builder{store: store, topN: topN}
}

// Build collects the report data for one company.
func (b *Builder) Build(stockCode string) (*Report, error) {
	company, err := b.store.GetCompanyByCode(stockCode)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCompany, stockCode)
	}

	labels, err := b.store.GetLabelSummary(stockCode)
	if err != nil {
		return nil, fmt.Errorf("summarising labels: %w", err)
	}

	r := &Report{Company: *company, Labels: labels}
	var sum float64
	for _, l := range labels {
		r.Total += l.Count
		sum += l.AverageScore * float64(l.Count)
	}
	if r.Total > 0 {
		r.AverageScore = sum / float64(r.Total)
	}

	r.Top, err = b.store.QueryResults(database.ResultFilter{StockCode: stockCode, Limit: b.topN})
	if err != nil {
		return nil, fmt.Errorf("loading top results: %w", err)
	}
	r.Negative, err = b.store.QueryResults(
		database.ResultFilter{StockCode: stockCode, Limit: b.topN},
		sq.Eq{"esg_sentiment": "Negative"},
	)
	if err != nil {
		return nil, fmt.Errorf("loading negative results: %w", err)
	}
	return r, nil
}

// Markdown renders the report as Markdown.
func (r *Report) Markdown() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s (%s) ESG report\n\n", r.Company.Name, r.Company.StockCode)

	if r.Total == 0 {
		sb.WriteString("No analyzed articles yet.\n")
		return sb.String()
	}

	fmt.Fprintf(&sb, "%d analyzed articles, average investment score **%.1f**.\n\n", r.Total, r.AverageScore)

	sb.WriteString("## Labels\n\n| Label | Articles | Average score |\n|---|---:|---:|\n")
	for _, l := range r.Labels {
		fmt.Fprintf(&sb, "| %s | %d | %.1f |\n", l.Label, l.Count, l.AverageScore)
	}

	sb.WriteString("\n## Top articles\n\n")
	writeResults(&sb, r.Top)

	if len(r.Negative) > 0 {
		sb.WriteString("\n## Negative coverage\n\n")
		writeResults(&sb, r.Negative)
	}
	return sb.String()
}

func writeResults(sb *strings.Builder, results []database.ESGResult) {
	for _, res := range results {
		line := fmt.Sprintf("- **%d** %s", res.Score, escape(res.ArticleTitle))
		var tags []string
		for _, t := range []*string{res.Category, res.Sentiment, res.FLS} {
			if t != nil && *t != "" {
				tags = append(tags, *t)
			}
		}
		if len(tags) > 0 {
			line += " (" + strings.Join(tags, ", ") + ")"
		}
		sb.WriteString(line + "\n")
	}
}

// HTML renders the report's Markdown to HTML.
func (r *Report) HTML() (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(r.Markdown()), &buf); err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}
	return buf.String(), nil
}

var mdEscaper = strings.NewReplacer("*", `\*`, "_", `\_`, "|", `\|`, "[", `\[`, "]", `\]`, "<", "&lt;", ">", "&gt;")

func escape(s string) string {
	return mdEscaper.Replace(s)
}
