package fetch

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/TobiSchelling/ESGLens/internal/database"
)

// minBodyChars is the shortest extracted text accepted as an article body.
const minBodyChars = 100

// Result holds the results of a content fetch run.
type Result struct {
	Fetched int
	Failed  int
}

// NewsStore is the subset of the database the fetcher needs.
type NewsStore interface {
	GetNewsNeedingFetch(stockCode *string) ([]database.NewsArticle, error)
	UpdateNewsBody(id int64, body *string) error
	MarkNewsFetchAttempted(id int64) error
}

// ContentFetcher fills empty article bodies via HTTP + readability extraction.
type ContentFetcher struct {
	store  NewsStore
	client *http.Client
	logger *slog.Logger
}

// NewContentFetcher creates a new content fetcher.
func NewContentFetcher(store NewsStore, timeout time.Duration, logger *slog.Logger) *ContentFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentFetcher{
		store: store,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		logger: logger.With("component", "fetch"),
	}
}

// FetchMissingContent fetches bodies for articles stored without one.
// After an HTTP error status the rest of that domain is skipped.
func (f *ContentFetcher) FetchMissingContent(ctx context.Context, stockCode *string) *Result {
	articles, err := f.store.GetNewsNeedingFetch(stockCode)
	if err != nil {
		f.logger.Error("listing articles needing fetch", "error", err)
		return &Result{}
	}
	if len(articles) == 0 {
		f.logger.Info("no articles need content fetching")
		return &Result{}
	}

	result := &Result{}
	failedDomains := make(map[string]struct{})

	for _, article := range articles {
		if ctx.Err() != nil {
			break
		}
		domain := ""
		if u, err := url.Parse(article.URL); err == nil {
			domain = strings.ToLower(u.Host)
		}

		if _, failed := failedDomains[domain]; failed {
			f.store.MarkNewsFetchAttempted(article.ID)
			result.Failed++
			continue
		}

		content, httpErr := f.fetchArticleContent(ctx, article.URL)
		if httpErr != nil {
			f.store.MarkNewsFetchAttempted(article.ID)
			result.Failed++
			if domain != "" {
				failedDomains[domain] = struct{}{}
			}
			f.logger.Warn("http error, skipping domain", "url", article.URL, "domain", domain, "status", httpErr.code)
			continue
		}

		if content == "" {
			f.store.MarkNewsFetchAttempted(article.ID)
			result.Failed++
			f.logger.Debug("no extractable content", "url", article.URL)
			continue
		}
		if err := f.store.UpdateNewsBody(article.ID, &content); err != nil {
			f.logger.Error("storing body", "id", article.ID, "error", err)
			result.Failed++
			continue
		}
		result.Fetched++
	}

	f.logger.Info("content fetch complete", "fetched", result.Fetched, "failed", result.Failed)
	return result
}

// fetchArticleContent returns "" with a nil error for transport or
// extraction failures; only HTTP error statuses produce an *httpError.
func (f *ContentFetcher) fetchArticleContent(ctx context.Context, articleURL string) (string, *httpError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return "", nil
	}
	req.Header.Set("User-Agent", "ESGLens/1.0 (news analysis)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil
	}

	parsedURL, _ := url.Parse(articleURL)
	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		return "", nil
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) > minBodyChars {
		return text, nil
	}
	return "", nil
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return http.StatusText(e.code)
}
