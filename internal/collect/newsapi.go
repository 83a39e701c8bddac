package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/TobiSchelling/ESGLens/internal/httputil"
)

// DefaultNewsAPIURL is the NewsAPI "everything" endpoint.
const DefaultNewsAPIURL = "https://newsapi.org/v2/everything"

// NewsAPIClient searches NewsAPI for company news.
type NewsAPIClient struct {
	BaseURL  string
	Language string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

// NewNewsAPIClient creates a new NewsAPI client.
func NewNewsAPIClient(apiKey, language string, logger *slog.Logger) *NewsAPIClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &NewsAPIClient{
		BaseURL:  DefaultNewsAPIURL,
		Language: language,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

// IsConfigured returns whether the API key is available.
func (c *NewsAPIClient) IsConfigured() bool {
	return c.apiKey != ""
}

type newsAPIResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		URL         string `json:"url"`
		Title       string `json:"title"`
		PublishedAt string `json:"publishedAt"`
		Content     string `json:"content"`
		Description string `json:"description"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

// SearchCompany returns recent articles mentioning the company name,
// attributed to its stock code.
func (c *NewsAPIClient) SearchCompany(ctx context.Context, name, stockCode string, daysBack, pageSize int) ([]Entry, error) {
	if !c.IsConfigured() {
		return nil, fmt.Errorf("NewsAPI key not configured")
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}

	now := time.Now()
	params := url.Values{
		"q":        {fmt.Sprintf("%q", name)},
		"from":     {now.AddDate(0, 0, -daysBack).Format("2006-01-02")},
		"to":       {now.Format("2006-01-02")},
		"pageSize": {fmt.Sprint(pageSize)},
		"sortBy":   {"publishedAt"},
	}
	if c.Language != "" {
		params.Set("language", c.Language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := httputil.DoWithRetry(ctx, c.client, req, 2)
	if err != nil {
		return nil, fmt.Errorf("NewsAPI request failed: %w", err)
	}
	defer resp.Body.Close()

	var result newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding NewsAPI response (HTTP %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || result.Status != "ok" {
		return nil, fmt.Errorf("NewsAPI error %s: %s", result.Code, result.Message)
	}

	var entries []Entry
	for _, a := range result.Articles {
		if a.URL == "" || a.Title == "" || a.Title == "[Removed]" || a.URL == "https://removed.com" {
			continue
		}

		var pubDate string
		if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			pubDate = t.Format("2006-01-02")
		}

		content := a.Content
		if content == "" {
			content = a.Description
		}

		source := "NewsAPI"
		if a.Source.Name != "" {
			source = a.Source.Name
		}

		entries = append(entries, Entry{
			URL:           a.URL,
			StockCode:     stockCode,
			Title:         strings.TrimSpace(a.Title),
			PublishedDate: pubDate,
			Content:       stripHTML(content),
			Source:        source,
		})
	}

	c.logger.Info("searched NewsAPI", "company", name, "articles", len(entries))
	return entries, nil
}
