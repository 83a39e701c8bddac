package clova

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPath = "/testapp/v1/skillsets/abc/versions/1/final-answer"

func newExecutor(t *testing.T, handler http.HandlerFunc) *Executor {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewExecutor(srv.URL, testPath, "studio-key", "gateway-key", time.Second, nil)
}

func finalAnswerLine(answer string) string {
	b, _ := json.Marshal(map[string]any{"result": map[string]any{"finalAnswer": answer}})
	return string(b)
}

func TestAskReturnsFinalAnswer(t *testing.T) {
	e := newExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testPath, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "studio-key", r.Header.Get("X-NCP-CLOVASTUDIO-API-KEY"))
		assert.Equal(t, "gateway-key", r.Header.Get("X-NCP-APIGW-API-KEY"))
		_, err := uuid.Parse(r.Header.Get("X-NCP-CLOVASTUDIO-REQUEST-ID"))
		assert.NoError(t, err)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "삼성전자 ESG 현황", body["query"])
		assert.Equal(t, false, body["tokenStream"])

		fmt.Fprintln(w, `{"result":{"thought":"searching"}}`)
		fmt.Fprintln(w)
		fmt.Fprintln(w, finalAnswerLine(`{"answer":"좋음","score":3}`))
		fmt.Fprintln(w, finalAnswerLine(`{"answer":"ignored"}`))
	})

	answer, err := e.Ask(context.Background(), "삼성전자 ESG 현황")
	require.NoError(t, err)
	assert.Equal(t, "좋음", answer["answer"])
	assert.Equal(t, float64(3), answer["score"])
}

func TestAskUnwrapsCodeFence(t *testing.T) {
	e := newExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "data:"+finalAnswerLine("```json\n{\"ok\":true}\n```"))
	})

	answer, err := e.Ask(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, true, answer["ok"])
}

func TestAskWithoutFinalAnswer(t *testing.T) {
	e := newExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"result":{"thought":"nothing"}}`)
	})

	_, err := e.Ask(context.Background(), "q")
	assert.ErrorIs(t, err, ErrNoFinalAnswer)
}

func TestAskNonJSONAnswer(t *testing.T) {
	e := newExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, finalAnswerLine("plain text answer"))
	})

	_, err := e.Ask(context.Background(), "q")
	assert.ErrorIs(t, err, ErrNoFinalAnswer)
}

func TestAskHTTPError(t *testing.T) {
	e := newExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})

	_, err := e.Ask(context.Background(), "q")
	assert.ErrorIs(t, err, ErrNoFinalAnswer)
}

func TestNotConfigured(t *testing.T) {
	e := NewExecutor("https://example.com", testPath, "", "", time.Second, nil)
	assert.False(t, e.IsConfigured())
	_, err := e.Ask(context.Background(), "q")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestParseAnswer(t *testing.T) {
	got, err := parseAnswer("```\n{\"a\":1}\n```")
	require.NoError(t, err)
	assert.Equal(t, float64(1), got["a"])

	_, err = parseAnswer("  ")
	assert.Error(t, err)

	_, err = parseAnswer("[1,2]")
	assert.Error(t, err)
}
