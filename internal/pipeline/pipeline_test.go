package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/ESGLens/internal/analysis"
	"github.com/TobiSchelling/ESGLens/internal/collect"
	"github.com/TobiSchelling/ESGLens/internal/database"
	"github.com/TobiSchelling/ESGLens/internal/fetch"
)

type fakeStore struct {
	companies []database.Company
	pending   map[string]int
}

func (f *fakeStore) ListCompanies(bool) ([]database.Company, error) { return f.companies, nil }

func (f *fakeStore) GetNewsNeedingFetch(*string) ([]database.NewsArticle, error) {
	return make([]database.NewsArticle, 3), nil
}

func (f *fakeStore) GetUnanalyzedNews(code string) ([]database.NewsArticle, error) {
	return make([]database.NewsArticle, f.pending[code]), nil
}

type fakeCollector struct{ calls int }

func (f *fakeCollector) Collect(context.Context) *collect.Result {
	f.calls++
	return &collect.Result{TotalFound: 5, NewArticles: 4, Duplicates: 1}
}

type fakeFetcher struct{ calls int }

func (f *fakeFetcher) FetchMissingContent(context.Context, *string) *fetch.Result {
	f.calls++
	return &fetch.Result{Fetched: 3}
}

type fakeAnalyzer struct {
	failures map[string]error
	analyzed []string
}

func (f *fakeAnalyzer) AnalyzePending(_ context.Context, code string) (*analysis.BatchReport, error) {
	f.analyzed = append(f.analyzed, code)
	if err := f.failures[code]; err != nil {
		return nil, err
	}
	return &analysis.BatchReport{
		Company:  database.Company{StockCode: code},
		Articles: 2,
		NonESG:   1,
		Records:  []analysis.Record{{ArticleID: code + "-1", Score: 120}},
		Created:  []analysis.Record{{ArticleID: code + "-1", Score: 120}},
	}, nil
}

type fakeNotifier struct{ batches int }

func (f *fakeNotifier) NotifyBatch(_ context.Context, b *analysis.BatchReport) (int, error) {
	f.batches++
	return len(b.Created), nil
}

func tracked(codes ...string) []database.Company {
	var out []database.Company
	for _, c := range codes {
		out = append(out, database.Company{StockCode: c, Name: c, Tracked: true})
	}
	return out
}

func TestRun(t *testing.T) {
	store := &fakeStore{companies: tracked("005930", "000660")}
	col, fet, an, no := &fakeCollector{}, &fakeFetcher{}, &fakeAnalyzer{}, &fakeNotifier{}

	r := New(store, col, fet, an, no, nil).Run(context.Background())

	require.NoError(t, r.Err())
	require.Len(t, r.Steps, 4)
	assert.Equal(t, []string{"Collect", "Fetch", "Analyze", "Notify"},
		[]string{r.Steps[0].Name, r.Steps[1].Name, r.Steps[2].Name, r.Steps[3].Name})
	assert.Equal(t, "Found 4 new articles (5 total, 1 duplicates)", r.Steps[0].Summary)
	assert.Equal(t, "Analyzed 4 articles: 2 ESG, 2 non-ESG", r.Steps[2].Summary)
	assert.Equal(t, "Announced 2 articles for 005930, 000660", r.Steps[3].Summary)
	assert.Equal(t, []string{"005930", "000660"}, an.analyzed)
	assert.Len(t, r.Batches, 2)
	assert.Equal(t, 2, no.batches)
}

func TestRunContinuesAfterCompanyFailure(t *testing.T) {
	store := &fakeStore{companies: tracked("005930", "000660")}
	an := &fakeAnalyzer{failures: map[string]error{"005930": errors.New("classifier down")}}

	r := New(store, &fakeCollector{}, &fakeFetcher{}, an, nil, nil).Run(context.Background())

	require.Len(t, r.Steps, 3, "no notify step without notifier")
	assert.Equal(t, []string{"005930", "000660"}, an.analyzed)
	assert.Len(t, r.Batches, 1)
	assert.ErrorContains(t, r.Err(), "classifier down")
}

func TestRunWithoutTrackedCompanies(t *testing.T) {
	col := &fakeCollector{}
	r := New(&fakeStore{}, col, &fakeFetcher{}, &fakeAnalyzer{}, nil, nil).Run(context.Background())

	require.Len(t, r.Steps, 1)
	assert.Contains(t, r.Steps[0].Summary, "No tracked companies")
	assert.Zero(t, col.calls)
}

func TestDryRun(t *testing.T) {
	store := &fakeStore{companies: tracked("005930", "000660"), pending: map[string]int{"005930": 2, "000660": 5}}
	col, fet, an := &fakeCollector{}, &fakeFetcher{}, &fakeAnalyzer{}

	r := New(store, col, fet, an, &fakeNotifier{}, nil).DryRun()

	require.NoError(t, r.Err())
	require.Len(t, r.Steps, 4)
	assert.Contains(t, r.Steps[0].Summary, "2 tracked companies")
	assert.Contains(t, r.Steps[1].Summary, "3 articles need content fetching")
	assert.Contains(t, r.Steps[2].Summary, "7 articles await ESG analysis")
	assert.Zero(t, col.calls)
	assert.Zero(t, fet.calls)
	assert.Empty(t, an.analyzed)
}
