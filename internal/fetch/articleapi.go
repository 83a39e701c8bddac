package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/TobiSchelling/ESGLens/internal/httputil"
)

var (
	// ErrArticleNotFound is returned when the article API answers 404.
	ErrArticleNotFound = errors.New("article not found")
	// ErrIncompleteArticle is returned when the response lacks title or content.
	ErrIncompleteArticle = errors.New("article response missing title or content")
)

// RemoteArticle is an article served by an external article API.
type RemoteArticle struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ArticleAPI reads articles from GET {api_url}/articles/{id} with bearer auth.
type ArticleAPI struct {
	client *http.Client
}

// NewArticleAPI creates a client with the given request timeout.
func NewArticleAPI(timeout time.Duration) *ArticleAPI {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &ArticleAPI{client: &http.Client{Timeout: timeout}}
}

// Fetch retrieves one article.
func (a *ArticleAPI) Fetch(ctx context.Context, apiURL, apiKey, articleID string) (*RemoteArticle, error) {
	if apiURL == "" {
		return nil, fmt.Errorf("article API URL not set")
	}
	if strings.TrimSpace(articleID) == "" {
		return nil, fmt.Errorf("article id is empty")
	}

	endpoint := strings.TrimRight(apiURL, "/") + "/articles/" + url.PathEscape(articleID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httputil.DoWithRetry(ctx, a.client, req, 2)
	if err != nil {
		return nil, fmt.Errorf("article API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("article %s: %w", articleID, ErrArticleNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("article API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var article RemoteArticle
	if err := json.NewDecoder(resp.Body).Decode(&article); err != nil {
		return nil, fmt.Errorf("decoding article: %w", err)
	}
	if strings.TrimSpace(article.Title) == "" || strings.TrimSpace(article.Content) == "" {
		return nil, fmt.Errorf("article %s: %w", articleID, ErrIncompleteArticle)
	}
	if article.ID == "" {
		article.ID = articleID
	}
	return &article, nil
}
