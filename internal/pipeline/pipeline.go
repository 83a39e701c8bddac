package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/TobiSchelling/ESGLens/internal/analysis"
	"github.com/TobiSchelling/ESGLens/internal/collect"
	"github.com/TobiSchelling/ESGLens/internal/database"
	"github.com/TobiSchelling/ESGLens/internal/fetch"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	Steps   []StepResult
	Batches []*analysis.BatchReport
}

// Err joins the errors of every step.
func (r *Result) Err() error {
	var errs []error
	for _, s := range r.Steps {
		if s.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, s.Err))
		}
	}
	return errors.Join(errs...)
}

// Store is the subset of the database the pipeline reads directly.
type Store interface {
	ListCompanies(trackedOnly bool) ([]database.Company, error)
	GetNewsNeedingFetch(stockCode *string) ([]database.NewsArticle, error)
	GetUnanalyzedNews(stockCode string) ([]database.NewsArticle, error)
}

// Collector gathers new articles.
type Collector interface {
	Collect(ctx context.Context) *collect.Result
}

// Fetcher fills missing article bodies.
type Fetcher interface {
	FetchMissingContent(ctx context.Context, stockCode *string) *fetch.Result
}

// Analyzer runs the ESG analysis over a company's unanalyzed articles.
type Analyzer interface {
	AnalyzePending(ctx context.Context, stockCode string) (*analysis.BatchReport, error)
}

// Notifier announces the outcome of a batch.
type Notifier interface {
	NotifyBatch(ctx context.Context, report *analysis.BatchReport) (int, error)
}

// Pipeline orchestrates collect → fetch → analyze → notify for every
// tracked company.
type Pipeline struct {
	store     Store
	collector Collector
	fetcher   Fetcher
	analyzer  Analyzer
	notifier  Notifier
	logger    *slog.Logger
}

// New creates a new pipeline. notifier may be nil.
func New(store Store, collector Collector, fetcher Fetcher, analyzer Analyzer, notifier Notifier, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:     store,
		collector: collector,
		fetcher:   fetcher,
		analyzer:  analyzer,
		notifier:  notifier,
		logger:    logger.With("component", "pipeline"),
	}
}

// Run executes the full pipeline. A failing company does not stop the
// others; its error is reported in the Analyze step.
func (p *Pipeline) Run(ctx context.Context) *Result {
	r := &Result{}

	companies, err := p.store.ListCompanies(true)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Collect", Err: fmt.Errorf("listing tracked companies: %w", err)})
		return r
	}
	if len(companies) == 0 {
		r.Steps = append(r.Steps, StepResult{Name: "Collect", Summary: "No tracked companies; add one with 'esglens companies track'"})
		return r
	}

	r.Steps = append(r.Steps, p.runCollect(ctx))
	if ctx.Err() != nil {
		return r
	}
	r.Steps = append(r.Steps, p.runFetch(ctx))
	if ctx.Err() != nil {
		return r
	}

	step, batches := p.runAnalyze(ctx, companies)
	r.Steps = append(r.Steps, step)
	r.Batches = batches

	if p.notifier != nil {
		r.Steps = append(r.Steps, p.runNotify(ctx, batches))
	}
	return r
}

// DryRun shows what would be done without executing.
func (p *Pipeline) DryRun() *Result {
	r := &Result{}

	companies, err := p.store.ListCompanies(true)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Collect", Err: err})
		return r
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Collect",
		Summary: fmt.Sprintf("[dry-run] Would collect news for %d tracked companies", len(companies)),
	})

	needing, err := p.store.GetNewsNeedingFetch(nil)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Fetch",
		Summary: fmt.Sprintf("[dry-run] %d articles need content fetching", len(needing)),
		Err:     err,
	})

	var pending int
	var errs []error
	for _, c := range companies {
		news, err := p.store.GetUnanalyzedNews(c.StockCode)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		pending += len(news)
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Analyze",
		Summary: fmt.Sprintf("[dry-run] %d articles await ESG analysis", pending),
		Err:     errors.Join(errs...),
	})

	if p.notifier != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Notify", Summary: "[dry-run] Would send alerts for new high-scoring articles"})
	}
	return r
}

func (p *Pipeline) runCollect(ctx context.Context) StepResult {
	p.logger.Info("step 1/4: collecting news")
	result := p.collector.Collect(ctx)
	return StepResult{
		Name:    "Collect",
		Summary: fmt.Sprintf("Found %d new articles (%d total, %d duplicates)", result.NewArticles, result.TotalFound, result.Duplicates),
	}
}

func (p *Pipeline) runFetch(ctx context.Context) StepResult {
	p.logger.Info("step 2/4: fetching article content")
	result := p.fetcher.FetchMissingContent(ctx, nil)
	return StepResult{
		Name:    "Fetch",
		Summary: fmt.Sprintf("Fetched %d articles, %d failed", result.Fetched, result.Failed),
	}
}

func (p *Pipeline) runAnalyze(ctx context.Context, companies []database.Company) (StepResult, []*analysis.BatchReport) {
	p.logger.Info("step 3/4: analyzing articles", "companies", len(companies))

	var (
		batches               []*analysis.BatchReport
		errs                  []error
		articles, esg, nonESG int
	)
	for _, c := range companies {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		report, err := p.analyzer.AnalyzePending(ctx, c.StockCode)
		if err != nil {
			p.logger.Error("analysis failed", "stock_code", c.StockCode, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", c.StockCode, err))
		}
		if report == nil {
			continue
		}
		batches = append(batches, report)
		articles += report.Articles
		esg += len(report.Records)
		nonESG += report.NonESG
	}

	return StepResult{
		Name:    "Analyze",
		Summary: fmt.Sprintf("Analyzed %d articles: %d ESG, %d non-ESG", articles, esg, nonESG),
		Err:     errors.Join(errs...),
	}, batches
}

func (p *Pipeline) runNotify(ctx context.Context, batches []*analysis.BatchReport) StepResult {
	p.logger.Info("step 4/4: sending alerts")

	var sent int
	var errs []error
	var companies []string
	for _, b := range batches {
		n, err := p.notifier.NotifyBatch(ctx, b)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.Company.StockCode, err))
			continue
		}
		if n > 0 {
			sent += n
			companies = append(companies, b.Company.StockCode)
		}
	}

	summary := "No new articles above the alert threshold"
	if sent > 0 {
		summary = fmt.Sprintf("Announced %d articles for %s", sent, strings.Join(companies, ", "))
	}
	return StepResult{Name: "Notify", Summary: summary, Err: errors.Join(errs...)}
}
