package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/TobiSchelling/ESGLens/internal/database"
	"github.com/TobiSchelling/ESGLens/internal/fetch"
)

// Repository is the storage the service needs.
type Repository interface {
	ResultStore
	GetCompanyByName(name string) (*database.Company, error)
	GetCompanyByCode(stockCode string) (*database.Company, error)
	GetNewsByCompany(stockCode string) ([]database.NewsArticle, error)
	GetUnanalyzedNews(stockCode string) ([]database.NewsArticle, error)
	MarkNewsNonESG(id int64) error
	GetResultsByCompany(stockCode string) ([]database.ESGResult, error)
	StartRun(stockCode string) (string, error)
	FinishRun(id string, articles, esg, nonESG, failed int) error
}

// ArticleSource fetches a single article from an external article API.
type ArticleSource interface {
	Fetch(ctx context.Context, apiURL, apiKey, articleID string) (*fetch.RemoteArticle, error)
}

// CompanyRef identifies a company by name or stock code. StockCode wins
// when both are set.
type CompanyRef struct {
	Name      string `json:"company_name"`
	StockCode string `json:"company_stock_code"`
}

// Empty reports whether neither field is set.
func (r CompanyRef) Empty() bool {
	return strings.TrimSpace(r.Name) == "" && strings.TrimSpace(r.StockCode) == ""
}

func (r CompanyRef) String() string {
	if r.StockCode != "" {
		return r.StockCode
	}
	return r.Name
}

// Record is the external representation of a stored analysis.
type Record struct {
	ArticleID    string `json:"article_id"`
	ArticleTitle string `json:"article_title"`
	ESGLabel     string `json:"esg_label"`
	Score        int    `json:"esg_score"`
	StockCode    string `json:"stock_code"`
	Category     string `json:"category,omitempty"`
	Sentiment    string `json:"sentiment,omitempty"`
	FLS          string `json:"fls,omitempty"`
	AnalyzedAt   string `json:"analyzed_at,omitempty"`
}

// RecordFromResult converts a stored row.
func RecordFromResult(r database.ESGResult) Record {
	return Record{
		ArticleID:    r.ArticleID,
		ArticleTitle: r.ArticleTitle,
		ESGLabel:     r.ESGLabel,
		Score:        r.Score,
		StockCode:    deref(r.StockCode),
		Category:     deref(r.Category),
		Sentiment:    deref(r.Sentiment),
		FLS:          deref(r.FLS),
		AnalyzedAt:   deref(r.AnalyzedAt),
	}
}

// BatchReport summarises one company batch.
type BatchReport struct {
	RunID    string
	Company  database.Company
	Records  []Record // ESG articles analyzed in this batch
	Created  []Record // subset of Records stored for the first time
	Articles int
	NonESG   int
	Failed   int
}

// RemoteRequest asks for the analysis of one article held by an article API.
type RemoteRequest struct {
	ArticleID string `json:"article_id"`
	APIURL    string `json:"api_url"`
	APIKey    string `json:"api_key"`
}

// RemoteResult is the single-article response.
type RemoteResult struct {
	Result          string  `json:"result"` // "ESG" or "Non-ESG"
	ArticleID       string  `json:"article_id"`
	Label           string  `json:"label,omitempty"`
	Category        string  `json:"category,omitempty"`
	CategoryScore   float64 `json:"category_score,omitempty"`
	Sentiment       string  `json:"sentiment,omitempty"`
	SentimentScore  float64 `json:"sentiment_score,omitempty"`
	FLS             string  `json:"fls,omitempty"`
	FLSScore        float64 `json:"fls_score,omitempty"`
	InvestmentScore int     `json:"investment_score,omitempty"`
	Saved           bool    `json:"saved"`
}

// Service ties company lookup, news storage and the analyzer together.
type Service struct {
	repo     Repository
	analyzer *Analyzer
	articles ArticleSource
	apiURL   string
	apiKey   string
	logger   *slog.Logger
}

// NewService creates a service. articles may be nil when remote analysis
// is not used; apiURL and apiKey are the defaults for remote requests.
func NewService(repo Repository, analyzer *Analyzer, articles ArticleSource, apiURL, apiKey string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		analyzer: analyzer,
		articles: articles,
		apiURL:   apiURL,
		apiKey:   apiKey,
		logger:   logger.With("component", "analysis"),
	}
}

// ResolveCompany looks a company up by stock code or name.
func (s *Service) ResolveCompany(ref CompanyRef) (*database.Company, error) {
	var (
		c   *database.Company
		err error
	)
	if code := strings.TrimSpace(ref.StockCode); code != "" {
		c, err = s.repo.GetCompanyByCode(code)
	} else {
		c, err = s.repo.GetCompanyByName(strings.TrimSpace(ref.Name))
	}
	if err != nil {
		return nil, fmt.Errorf("looking up company %q: %w", ref, err)
	}
	if c == nil {
		return nil, fmt.Errorf("company %q: %w", ref, ErrNotFound)
	}
	return c, nil
}

// AnalyzeCompany analyzes every stored article of a company.
func (s *Service) AnalyzeCompany(ctx context.Context, ref CompanyRef) (*BatchReport, error) {
	c, err := s.ResolveCompany(ref)
	if err != nil {
		return nil, err
	}
	news, err := s.repo.GetNewsByCompany(c.StockCode)
	if err != nil {
		return nil, fmt.Errorf("loading articles for %s: %w", c.StockCode, err)
	}
	if len(news) == 0 {
		return nil, fmt.Errorf("no articles for company %s: %w", c.StockCode, ErrNotFound)
	}
	return s.runBatch(ctx, *c, news)
}

// AnalyzePending analyzes only the company's articles without a stored
// result. An empty backlog is not an error.
func (s *Service) AnalyzePending(ctx context.Context, stockCode string) (*BatchReport, error) {
	c, err := s.ResolveCompany(CompanyRef{StockCode: stockCode})
	if err != nil {
		return nil, err
	}
	news, err := s.repo.GetUnanalyzedNews(c.StockCode)
	if err != nil {
		return nil, fmt.Errorf("loading pending articles for %s: %w", c.StockCode, err)
	}
	if len(news) == 0 {
		return &BatchReport{Company: *c}, nil
	}
	return s.runBatch(ctx, *c, news)
}

func (s *Service) runBatch(ctx context.Context, c database.Company, news []database.NewsArticle) (*BatchReport, error) {
	runID, err := s.repo.StartRun(c.StockCode)
	if err != nil {
		return nil, fmt.Errorf("starting run: %w", err)
	}

	articles := make([]Article, len(news))
	newsIDs := make(map[string]int64, len(news))
	for i, n := range news {
		newsIDs[fmt.Sprint(n.ID)] = n.ID
		articles[i] = Article{
			ID:        fmt.Sprint(n.ID),
			Title:     n.Title,
			Text:      n.AnalysisText(),
			StockCode: c.StockCode,
		}
	}

	s.logger.Info("analyzing articles", "stock_code", c.StockCode, "count", len(articles), "run_id", runID)
	report := &BatchReport{RunID: runID, Company: c, Articles: len(articles)}
	var firstErr error
	for _, o := range s.analyzer.AnalyzeBatch(ctx, articles) {
		switch {
		case o.Err != nil:
			report.Failed++
			if firstErr == nil {
				firstErr = o.Err
			}
		case o.Analysis.NonESG:
			report.NonESG++
			if err := s.repo.MarkNewsNonESG(newsIDs[o.Article.ID]); err != nil {
				s.logger.Warn("marking non-ESG article failed", "article_id", o.Article.ID, "error", err)
			}
		default:
			rec := RecordFromResult(o.Analysis.Record(o.Article))
			report.Records = append(report.Records, rec)
			if o.Saved {
				report.Created = append(report.Created, rec)
			}
		}
	}

	if err := s.repo.FinishRun(runID, report.Articles, len(report.Records), report.NonESG, report.Failed); err != nil {
		s.logger.Warn("recording run failed", "run_id", runID, "error", err)
	}
	s.logger.Info("analysis complete",
		"stock_code", c.StockCode, "esg", len(report.Records), "non_esg", report.NonESG, "failed", report.Failed)

	if report.Failed == report.Articles && firstErr != nil {
		return report, fmt.Errorf("all %d articles failed: %w", report.Failed, firstErr)
	}
	return report, nil
}

// Results returns the stored results of a company.
func (s *Service) Results(ctx context.Context, ref CompanyRef) ([]Record, error) {
	c, err := s.ResolveCompany(ref)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.GetResultsByCompany(c.StockCode)
	if err != nil {
		return nil, fmt.Errorf("loading results for %s: %w", c.StockCode, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no ESG results for company %s: %w", c.StockCode, ErrNotFound)
	}
	records := make([]Record, len(rows))
	for i, r := range rows {
		records[i] = RecordFromResult(r)
	}
	return records, nil
}

// AnalyzeRemote fetches one article from an article API, analyzes and
// stores it. Empty URL or key fall back to the configured defaults.
func (s *Service) AnalyzeRemote(ctx context.Context, req RemoteRequest) (*RemoteResult, error) {
	if s.articles == nil {
		return nil, fmt.Errorf("article API not configured")
	}
	apiURL, apiKey := req.APIURL, req.APIKey
	if apiURL == "" {
		apiURL = s.apiURL
	}
	if apiKey == "" {
		apiKey = s.apiKey
	}

	remote, err := s.articles.Fetch(ctx, apiURL, apiKey, req.ArticleID)
	if err != nil {
		return nil, err
	}

	article := Article{ID: req.ArticleID, Title: remote.Title, Text: remote.Content}
	result, saved, err := s.analyzer.AnalyzeArticle(ctx, article)
	if err != nil {
		return nil, err
	}
	if result.NonESG {
		return &RemoteResult{Result: "Non-ESG", ArticleID: req.ArticleID}, nil
	}
	return &RemoteResult{
		Result:          "ESG",
		ArticleID:       req.ArticleID,
		Label:           string(result.ESGLabel),
		Category:        string(result.Category),
		CategoryScore:   result.CategoryConfidence,
		Sentiment:       string(result.Sentiment),
		SentimentScore:  result.SentimentConfidence,
		FLS:             string(result.FLS),
		FLSScore:        result.FLSConfidence,
		InvestmentScore: result.Score,
		Saved:           saved,
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
