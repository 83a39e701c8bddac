package collect

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/ESGLens/internal/config"
	"github.com/TobiSchelling/ESGLens/internal/database"
)

type memoryStore struct {
	mu        sync.Mutex
	byURL     map[string]database.NewsArticle
	companies []database.Company
	nextID    int64
}

func newMemoryStore(companies ...database.Company) *memoryStore {
	return &memoryStore{byURL: map[string]database.NewsArticle{}, companies: companies}
}

func (m *memoryStore) InsertNews(a database.NewsArticle) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byURL[a.URL]; ok {
		return 0, nil
	}
	m.nextID++
	a.ID = m.nextID
	m.byURL[a.URL] = a
	return a.ID, nil
}

func (m *memoryStore) ListCompanies(trackedOnly bool) ([]database.Company, error) {
	var out []database.Company
	for _, c := range m.companies {
		if !trackedOnly || c.Tracked {
			out = append(out, c)
		}
	}
	return out, nil
}

func rssFeed(items ...string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Company news</title>` + strings.Join(items, "") + `</channel></rss>`
}

func rssItem(link, title, desc string, pub time.Time) string {
	return fmt.Sprintf(`<item><link>%s</link><title>%s</title><description><![CDATA[%s]]></description><pubDate>%s</pubDate></item>`,
		link, title, desc, pub.Format(time.RFC1123Z))
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "Hello world & friends", stripHTML("<p>Hello <b>world</b></p><p>&amp; friends</p>"))
	assert.Equal(t, "a b", stripHTML("a<br>b<script>alert(1)</script>"))
	assert.Equal(t, "", stripHTML("   "))
	assert.Equal(t, "plain text", stripHTML("plain   text"))
}

func TestExtractSourceName(t *testing.T) {
	assert.Equal(t, "Hankyung", extractSourceName("https://www.hankyung.com/feed/economy"))
	assert.Equal(t, "Donga", extractSourceName("https://rss.donga.com/total.xml"))
	assert.Equal(t, "::bad", extractSourceName("::bad"))
}

func TestIsWithinWindow(t *testing.T) {
	cutoff := time.Now().AddDate(0, 0, -7)
	assert.True(t, isWithinWindow("", cutoff))
	assert.True(t, isWithinWindow("not a date", cutoff))
	assert.True(t, isWithinWindow(time.Now().Format("2006-01-02"), cutoff))
	assert.False(t, isWithinWindow("2001-01-01", cutoff))
}

func TestFeedParserAttributesStockCode(t *testing.T) {
	now := time.Now()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssFeed(
			rssItem("https://news.example.com/1", "Samsung cuts emissions", "<p>Plan <b>announced</b></p>", now),
			rssItem("https://news.example.com/old", "Old news", "stale", now.AddDate(0, -3, 0)),
		))
	}))
	defer srv.Close()

	fp := NewFeedParser([]FeedConfig{{URL: srv.URL, Name: "Example", StockCode: "005930"}}, nil)
	entries := fp.ParseAll(context.Background(), 7)

	require.Len(t, entries, 1)
	assert.Equal(t, "005930", entries[0].StockCode)
	assert.Equal(t, "Samsung cuts emissions", entries[0].Title)
	assert.Equal(t, "Plan announced", entries[0].Content)
	assert.Equal(t, "Example", entries[0].Source)
}

func TestFeedParserSkipsBrokenFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	fp := NewFeedParser([]FeedConfig{{URL: srv.URL, StockCode: "005930"}}, nil)
	assert.Empty(t, fp.ParseAll(context.Background(), 7))
}

func newsAPIServer(t *testing.T, queries *[]string) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		q := r.URL.Query().Get("q")
		mu.Lock()
		*queries = append(*queries, q)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if q == `"Broken Corp"` {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"status":"error","code":"apiKeyInvalid","message":"bad key"}`)
			return
		}
		fmt.Fprintf(w, `{"status":"ok","articles":[
			{"url":"https://example.com/a","title":"%s invests in solar","publishedAt":"2024-05-01T10:00:00Z","content":"<p>Solar</p>","source":{"name":"Wire"}},
			{"url":"https://removed.com","title":"[Removed]"},
			{"url":"https://example.com/shared","title":"Sector roundup","description":"roundup"}
		]}`, strings.Trim(q, `"`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewsAPISearchCompany(t *testing.T) {
	var queries []string
	srv := newsAPIServer(t, &queries)

	client := NewNewsAPIClient("test-key", "en", nil)
	client.BaseURL = srv.URL
	entries, err := client.SearchCompany(context.Background(), "Samsung Electronics", "005930", 7, 20)
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, []string{`"Samsung Electronics"`}, queries)
	assert.Equal(t, "Samsung Electronics invests in solar", entries[0].Title)
	assert.Equal(t, "005930", entries[0].StockCode)
	assert.Equal(t, "2024-05-01", entries[0].PublishedDate)
	assert.Equal(t, "Solar", entries[0].Content)
	assert.Equal(t, "Wire", entries[0].Source)
	assert.Equal(t, "roundup", entries[1].Content)
	assert.Equal(t, "NewsAPI", entries[1].Source)
}

func TestNewsAPIErrorStatus(t *testing.T) {
	var queries []string
	srv := newsAPIServer(t, &queries)

	client := NewNewsAPIClient("test-key", "", nil)
	client.BaseURL = srv.URL
	_, err := client.SearchCompany(context.Background(), "Broken Corp", "000001", 7, 20)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apiKeyInvalid")
}

func TestNewsAPINotConfigured(t *testing.T) {
	client := NewNewsAPIClient("", "", nil)
	assert.False(t, client.IsConfigured())
	_, err := client.SearchCompany(context.Background(), "Samsung", "005930", 7, 20)
	assert.Error(t, err)
}

func TestCollectSearchesTrackedCompanies(t *testing.T) {
	var queries []string
	srv := newsAPIServer(t, &queries)

	store := newMemoryStore(
		database.Company{StockCode: "005930", Name: "Samsung", Tracked: true},
		database.Company{StockCode: "000660", Name: "SK hynix", Tracked: true},
		database.Company{StockCode: "000001", Name: "Broken Corp", Tracked: true},
		database.Company{StockCode: "035720", Name: "Kakao", Tracked: false},
	)

	cfg := &config.Config{}
	cfg.Sources.APIs.NewsAPI.Days = 7
	client := NewNewsAPIClient("test-key", "", nil)
	client.BaseURL = srv.URL

	c := NewCollector(cfg, store, nil).WithNewsAPI(client)
	r := c.Collect(context.Background())

	assert.ElementsMatch(t, []string{`"Samsung"`, `"SK hynix"`, `"Broken Corp"`}, queries)
	// Both companies get the same two URLs; the second company's copies are duplicates.
	assert.Equal(t, 4, r.TotalFound)
	assert.Equal(t, 2, r.NewArticles)
	assert.Equal(t, 2, r.Duplicates)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, 2, r.Companies["005930"])
	assert.Len(t, store.byURL, 2)
}

func TestCollectWithoutSources(t *testing.T) {
	c := NewCollector(&config.Config{}, newMemoryStore(), nil)
	r := c.Collect(context.Background())
	assert.Zero(t, r.TotalFound)
}
