// Package analysis runs the four classification pipelines over article text,
// turns the winning labels into an investment score and stores the result.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/conc/pool"

	"github.com/TobiSchelling/ESGLens/internal/classify"
	"github.com/TobiSchelling/ESGLens/internal/database"
	"github.com/TobiSchelling/ESGLens/internal/score"
)

// DefaultWorkers bounds concurrent article analyses in a batch.
const DefaultWorkers = 4

// ErrNotFound is returned for unknown companies and empty result sets.
var ErrNotFound = errors.New("not found")

// Article is the unit of analysis.
type Article struct {
	ID        string
	Title     string
	Text      string
	StockCode string
}

// Analysis holds the winning label of each pipeline and the derived score.
// When NonESG is set only ESGLabel is populated.
type Analysis struct {
	NonESG    bool
	ESGLabel  score.ESGLabel
	Category  score.Category
	Sentiment score.Sentiment
	FLS       score.FLS
	Score     int

	ESGConfidence       float64
	CategoryConfidence  float64
	SentimentConfidence float64
	FLSConfidence       float64
}

// Outcome is the result of one article in a batch.
type Outcome struct {
	Article  Article
	Analysis *Analysis
	Saved    bool
	Err      error
}

// ResultStore persists analyses at most once per article id. GetResult
// returns nil when the article has no stored result.
type ResultStore interface {
	GetResult(articleID string) (*database.ESGResult, error)
	SaveResult(r database.ESGResult) (bool, error)
}

// Analyzer orchestrates the classifiers. It is safe for concurrent use.
type Analyzer struct {
	classifier classify.Classifier
	store      ResultStore
	workers    int
	logger     *slog.Logger
}

// NewAnalyzer creates an analyzer. store may be nil, in which case nothing
// is persisted. workers <= 0 selects DefaultWorkers.
func NewAnalyzer(classifier classify.Classifier, store ResultStore, workers int, logger *slog.Logger) *Analyzer {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		classifier: classifier,
		store:      store,
		workers:    workers,
		logger:     logger.With("component", "analysis"),
	}
}

// Analyze classifies text. A "None" relevance label returns immediately
// with NonESG set and no further classifier calls.
func (a *Analyzer) Analyze(ctx context.Context, text string) (*Analysis, error) {
	if a.classifier == nil {
		return nil, fmt.Errorf("%w: no classifier configured", classify.ErrUpstreamUnavailable)
	}

	esg, err := a.best(ctx, classify.PipelineESG, text)
	if err != nil {
		return nil, err
	}
	label := score.ESGLabel(esg.Label)
	if label == score.NonESG {
		return &Analysis{NonESG: true, ESGLabel: label, ESGConfidence: esg.Score}, nil
	}

	var category, sentiment, fls classify.Prediction
	p := pool.New().WithErrors().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		var err error
		category, err = a.best(ctx, classify.PipelineCategory, text)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		sentiment, err = a.best(ctx, classify.PipelineSentiment, text)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		fls, err = a.best(ctx, classify.PipelineFLS, text)
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, err
	}

	result := &Analysis{
		ESGLabel:            label,
		Category:            score.Category(category.Label),
		Sentiment:           score.NormalizeSentiment(sentiment.Label),
		FLS:                 score.NormalizeFLS(fls.Label),
		ESGConfidence:       esg.Score,
		CategoryConfidence:  category.Score,
		SentimentConfidence: sentiment.Score,
		FLSConfidence:       fls.Score,
	}
	a.warnUnknown(result)
	result.Score = score.Calculate(result.ESGLabel, result.Category, result.Sentiment, result.FLS)
	return result, nil
}

// AnalyzeArticle analyzes one article and stores the result. An article
// that already has a stored result is returned from the store without
// calling the classifiers. Non-ESG articles are returned but not stored.
// Saved reports whether this call created the stored row.
func (a *Analyzer) AnalyzeArticle(ctx context.Context, article Article) (*Analysis, bool, error) {
	if a.store != nil {
		stored, err := a.store.GetResult(article.ID)
		if err != nil {
			return nil, false, fmt.Errorf("article %s: %w", article.ID, err)
		}
		if stored != nil {
			a.logger.Debug("result already stored", "article_id", article.ID)
			return analysisFromResult(*stored), false, nil
		}
	}

	result, err := a.Analyze(ctx, article.Text)
	if err != nil {
		return nil, false, fmt.Errorf("article %s: %w", article.ID, err)
	}
	if result.NonESG {
		a.logger.Debug("article is not ESG related", "article_id", article.ID)
		return result, false, nil
	}
	if a.store == nil {
		return result, false, nil
	}

	saved, err := a.store.SaveResult(result.Record(article))
	if err != nil {
		return nil, false, fmt.Errorf("article %s: %w", article.ID, err)
	}
	if !saved {
		a.logger.Info("result stored concurrently", "article_id", article.ID)
	}
	return result, saved, nil
}

// AnalyzeBatch analyzes articles on a bounded pool. Each outcome carries the
// article it belongs to; a failing article never cancels the others.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, articles []Article) []Outcome {
	p := pool.NewWithResults[Outcome]().WithMaxGoroutines(a.workers)
	for _, article := range articles {
		p.Go(func() Outcome {
			result, saved, err := a.AnalyzeArticle(ctx, article)
			if err != nil {
				a.logger.Warn("analysis failed", "article_id", article.ID, "error", err)
			}
			return Outcome{Article: article, Analysis: result, Saved: saved, Err: err}
		})
	}
	return p.Wait()
}

func (a *Analyzer) best(ctx context.Context, pipeline classify.Pipeline, text string) (classify.Prediction, error) {
	preds, err := a.classifier.Classify(ctx, pipeline, text)
	if err != nil {
		return classify.Prediction{}, fmt.Errorf("%s pipeline: %w", pipeline, err)
	}
	best, err := classify.Best(preds)
	if err != nil {
		return classify.Prediction{}, fmt.Errorf("%s pipeline: %w", pipeline, err)
	}
	return best, nil
}

func (a *Analyzer) warnUnknown(r *Analysis) {
	if !r.ESGLabel.Known() {
		a.logger.Warn("unrecognised ESG label", "label", r.ESGLabel)
	}
	if !r.Category.Known() {
		a.logger.Warn("unrecognised category", "label", r.Category)
	}
	if !r.Sentiment.Known() {
		a.logger.Warn("unrecognised sentiment", "label", r.Sentiment)
	}
	if !r.FLS.Known() {
		a.logger.Warn("unrecognised FLS label", "label", r.FLS)
	}
}

// Record converts an ESG analysis into its stored form.
func (r *Analysis) Record(article Article) database.ESGResult {
	res := database.ESGResult{
		ArticleID:    article.ID,
		ArticleTitle: article.Title,
		ESGLabel:     string(r.ESGLabel),
		Category:     optional(string(r.Category)),
		Sentiment:    optional(string(r.Sentiment)),
		FLS:          optional(string(r.FLS)),
		Score:        r.Score,
		StockCode:    optional(article.StockCode),
	}
	return res
}

func analysisFromResult(r database.ESGResult) *Analysis {
	return &Analysis{
		ESGLabel:  score.ESGLabel(r.ESGLabel),
		Category:  score.Category(deref(r.Category)),
		Sentiment: score.Sentiment(deref(r.Sentiment)),
		FLS:       score.FLS(deref(r.FLS)),
		Score:     r.Score,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
