package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/ESGLens/internal/database"
)

type fakeNewsStore struct {
	pending   []database.NewsArticle
	bodies    map[int64]string
	attempted map[int64]bool
}

func newFakeNewsStore(articles ...database.NewsArticle) *fakeNewsStore {
	return &fakeNewsStore{pending: articles, bodies: map[int64]string{}, attempted: map[int64]bool{}}
}

func (s *fakeNewsStore) GetNewsNeedingFetch(*string) ([]database.NewsArticle, error) {
	return s.pending, nil
}

func (s *fakeNewsStore) UpdateNewsBody(id int64, body *string) error {
	s.bodies[id] = *body
	return nil
}

func (s *fakeNewsStore) MarkNewsFetchAttempted(id int64) error {
	s.attempted[id] = true
	return nil
}

const articleHTML = `<html><head><title>Plant cuts emissions</title></head><body>
<article><h1>Plant cuts emissions</h1>
<p>The company said on Monday that its main semiconductor plant reduced greenhouse gas emissions by thirty percent compared with last year.</p>
<p>Executives attributed the reduction to renewable power purchase agreements and a new heat recovery system installed in the spring.</p>
<p>Analysts expect further disclosures in the annual sustainability report due later this year.</p>
<p>The plant, which employs roughly eleven thousand people, has been the focus of community complaints about water usage during the dry season, and local officials welcomed the announcement.</p>
<p>The company also reiterated its commitment to reach net zero emissions across its domestic operations by 2040, with an interim target of sourcing sixty percent renewable electricity by 2030.</p>
</article></body></html>`

func TestFetchMissingContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			http.Error(w, "gone", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	store := newFakeNewsStore(
		database.NewsArticle{ID: 1, URL: srv.URL + "/ok", Title: "ok"},
		database.NewsArticle{ID: 2, URL: srv.URL + "/gone", Title: "forbidden"},
		database.NewsArticle{ID: 3, URL: srv.URL + "/ok-again", Title: "same domain"},
	)

	res := NewContentFetcher(store, 0, nil).FetchMissingContent(context.Background(), nil)

	assert.Equal(t, 1, res.Fetched)
	assert.Equal(t, 2, res.Failed)
	assert.Contains(t, store.bodies[1], "greenhouse gas")
	assert.True(t, store.attempted[2])
	assert.True(t, store.attempted[3], "remaining articles of a failed domain are skipped")
}

func TestFetchShortContentIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>tiny</p></body></html>`))
	}))
	defer srv.Close()

	store := newFakeNewsStore(database.NewsArticle{ID: 9, URL: srv.URL})
	res := NewContentFetcher(store, 0, nil).FetchMissingContent(context.Background(), nil)

	assert.Equal(t, 0, res.Fetched)
	assert.Equal(t, 1, res.Failed)
	assert.True(t, store.attempted[9])
}

func TestArticleAPIFetch(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]string{"title": "Board reshuffle", "content": "The board appointed..."})
	}))
	defer srv.Close()

	a, err := NewArticleAPI(0).Fetch(context.Background(), srv.URL+"/", "k3y", "abc-1")
	require.NoError(t, err)

	assert.Equal(t, "Bearer k3y", gotAuth)
	assert.Equal(t, "/articles/abc-1", gotPath)
	assert.Equal(t, "Board reshuffle", a.Title)
	assert.Equal(t, "abc-1", a.ID)
}

func TestArticleAPIMissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"title":"only a title"}`))
	}))
	defer srv.Close()

	_, err := NewArticleAPI(0).Fetch(context.Background(), srv.URL, "", "1")
	assert.True(t, errors.Is(err, ErrIncompleteArticle), "got %v", err)
}

func TestArticleAPINotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewArticleAPI(0).Fetch(context.Background(), srv.URL, "", "1")
	assert.ErrorIs(t, err, ErrArticleNotFound)
}

func TestArticleAPIErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewArticleAPI(0).Fetch(context.Background(), srv.URL, "bad", "1")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "401"))
}

func TestArticleAPIRequiresURL(t *testing.T) {
	_, err := NewArticleAPI(0).Fetch(context.Background(), "", "", "1")
	assert.Error(t, err)
}
