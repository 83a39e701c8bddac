package database

// Company is a listed company the analyzer knows about.
type Company struct {
	StockCode string
	Name      string
	CorpCode  *string // DART corporation code
	Tracked   bool
	CreatedAt *string
}

// NewsArticle is a collected news item about one company.
type NewsArticle struct {
	ID              int64
	URL             string
	StockCode       string
	Title           string
	TranslatedTitle *string
	Body            *string
	TranslatedBody  *string
	Source          *string
	PublishedDate   *string
	ContentFetched  bool
	CollectedAt     *string
}

// AnalysisText returns the text fed to the classifiers: the translated body
// when present, then the original body, then the title.
func (a NewsArticle) AnalysisText() string {
	for _, s := range []*string{a.TranslatedBody, a.Body} {
		if s != nil && *s != "" {
			return *s
		}
	}
	return a.Title
}

// ESGResult is a persisted analysis, keyed by the external article id.
type ESGResult struct {
	ArticleID    string
	ArticleTitle string
	ESGLabel     string
	Category     *string
	Sentiment    *string
	FLS          *string
	Score        int
	StockCode    *string
	AnalyzedAt   *string
}

// ResultFilter narrows QueryResults. Zero values are ignored.
type ResultFilter struct {
	StockCode string
	Label     string
	MinScore  *int
	Since     string // YYYY-MM-DD, compared against analyzed_at
	Limit     int
}

// AnalysisRun records one batch analysis of a company's articles.
type AnalysisRun struct {
	ID         string
	StockCode  string
	StartedAt  string
	FinishedAt *string
	Articles   int
	ESG        int
	NonESG     int
	Failed     int
}

// LabelSummary aggregates results for one ESG label.
type LabelSummary struct {
	Label        string
	Count        int
	AverageScore float64
}

// Stats contains aggregate database statistics.
type Stats struct {
	Companies        int
	TrackedCompanies int
	NewsArticles     int
	PendingFetch     int
	Results          int
	Runs             int
	LastRunAt        *string
}
