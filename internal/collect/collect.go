// Package collect gathers company news from RSS feeds and NewsAPI.
package collect

import (
	"context"
	"log/slog"

	"github.com/TobiSchelling/ESGLens/internal/config"
	"github.com/TobiSchelling/ESGLens/internal/database"
)

// Result holds the results of a collection run.
type Result struct {
	TotalFound  int
	NewArticles int
	Duplicates  int
	Failed      int
	Companies   map[string]int // new articles per stock code
}

// Store is the subset of the database the collector needs.
type Store interface {
	InsertNews(a database.NewsArticle) (int64, error)
	ListCompanies(trackedOnly bool) ([]database.Company, error)
}

// Collector orchestrates news collection for tracked companies.
type Collector struct {
	store      Store
	feedParser *FeedParser
	newsClient *NewsAPIClient
	pageSize   int
	daysBack   int
	logger     *slog.Logger
}

// NewCollector creates a collector from the sources section of the config.
func NewCollector(cfg *config.Config, store Store, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "collect")

	apiCfg := cfg.Sources.APIs.NewsAPI
	c := &Collector{
		store:    store,
		pageSize: apiCfg.PageSize,
		daysBack: apiCfg.Days,
		logger:   logger,
	}
	if c.daysBack <= 0 {
		c.daysBack = 7
	}

	if len(cfg.Sources.Feeds) > 0 {
		feeds := make([]FeedConfig, len(cfg.Sources.Feeds))
		for i, f := range cfg.Sources.Feeds {
			feeds[i] = FeedConfig{URL: f.URL, Name: f.Name, StockCode: f.StockCode}
		}
		c.feedParser = NewFeedParser(feeds, logger)
	}

	if apiCfg.Enabled {
		c.newsClient = NewNewsAPIClient(config.Secret(apiCfg.APIKeyEnv), apiCfg.Language, logger)
	}
	return c
}

// WithNewsAPI replaces the NewsAPI client.
func (c *Collector) WithNewsAPI(client *NewsAPIClient) *Collector {
	c.newsClient = client
	return c
}

// Collect collects news from all configured sources and stores new
// articles. Source failures are logged and counted, never fatal.
func (c *Collector) Collect(ctx context.Context) *Result {
	r := &Result{Companies: make(map[string]int)}

	if c.feedParser != nil {
		c.logger.Info("collecting from RSS feeds")
		c.save(r, c.feedParser.ParseAll(ctx, c.daysBack))
	}

	if c.newsClient != nil && c.newsClient.IsConfigured() {
		companies, err := c.store.ListCompanies(true)
		if err != nil {
			c.logger.Error("listing tracked companies", "error", err)
		}
		for _, co := range companies {
			if ctx.Err() != nil {
				break
			}
			entries, err := c.newsClient.SearchCompany(ctx, co.Name, co.StockCode, c.daysBack, c.pageSize)
			if err != nil {
				c.logger.Warn("NewsAPI search failed", "company", co.Name, "error", err)
				r.Failed++
				continue
			}
			c.save(r, entries)
		}
	}

	c.logger.Info("collection complete", "found", r.TotalFound, "new", r.NewArticles, "duplicates", r.Duplicates)
	return r
}

func (c *Collector) save(r *Result, entries []Entry) {
	r.TotalFound += len(entries)
	for _, e := range entries {
		id, err := c.store.InsertNews(database.NewsArticle{
			URL:           e.URL,
			StockCode:     e.StockCode,
			Title:         e.Title,
			Body:          optional(e.Content),
			Source:        optional(e.Source),
			PublishedDate: optional(e.PublishedDate),
		})
		if err != nil {
			c.logger.Error("storing article", "url", e.URL, "error", err)
			r.Failed++
			continue
		}
		if id > 0 {
			r.NewArticles++
			r.Companies[e.StockCode]++
		} else {
			r.Duplicates++
		}
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
