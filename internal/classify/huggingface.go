package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/TobiSchelling/ESGLens/internal/httputil"
)

// DefaultHuggingFaceURL is the serverless inference router.
const DefaultHuggingFaceURL = "https://router.huggingface.co/hf-inference/models"

// HuggingFaceClassifier calls the hosted inference API, one model per pipeline.
type HuggingFaceClassifier struct {
	BaseURL       string
	APIKey        string
	Models        map[Pipeline]string
	MaxInputChars int
	MaxRetries    int
	client        *http.Client
}

// NewHuggingFaceClassifier reads the token from apiKeyEnv. Missing models
// fall back to DefaultModels.
func NewHuggingFaceClassifier(baseURL, apiKeyEnv string, models map[Pipeline]string, maxChars, timeoutSeconds int) *HuggingFaceClassifier {
	if baseURL == "" {
		baseURL = DefaultHuggingFaceURL
	}
	merged := make(map[Pipeline]string, len(DefaultModels))
	for p, m := range DefaultModels {
		merged[p] = m
	}
	for p, m := range models {
		if m != "" {
			merged[p] = m
		}
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxInputChars
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = 60
	}
	var key string
	if apiKeyEnv != "" {
		key = os.Getenv(apiKeyEnv)
	}
	return &HuggingFaceClassifier{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		APIKey:        key,
		Models:        merged,
		MaxInputChars: maxChars,
		client:        &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
	}
}

// IsConfigured checks that an API token is present.
func (h *HuggingFaceClassifier) IsConfigured() bool {
	return h.APIKey != ""
}

// Classify sends text to the pipeline's model.
func (h *HuggingFaceClassifier) Classify(ctx context.Context, pipeline Pipeline, text string) ([]Prediction, error) {
	model, ok := h.Models[pipeline]
	if !ok {
		return nil, fmt.Errorf("unknown pipeline %q", pipeline)
	}

	body := map[string]any{
		"inputs": Truncate(text, h.MaxInputChars),
		"parameters": map[string]any{
			"top_k": nil,
		},
		"options": map[string]any{
			"wait_for_model": true,
		},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/"+model, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.APIKey)
	}

	resp, err := httputil.DoWithRetry(ctx, h.client, req, h.MaxRetries)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, model, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s response: %v", ErrUpstreamUnavailable, model, err)
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: %s returned %d: %s", ErrUpstreamUnavailable, model, resp.StatusCode, snippet(respBody))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d: %s", model, resp.StatusCode, snippet(respBody))
	}

	return decodePredictions(respBody)
}

// decodePredictions accepts both the batched [[...]] and flat [...] shapes.
func decodePredictions(data []byte) ([]Prediction, error) {
	var nested [][]Prediction
	if err := json.Unmarshal(data, &nested); err == nil {
		if len(nested) == 0 {
			return nil, nil
		}
		return nested[0], nil
	}
	var flat []Prediction
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, fmt.Errorf("decoding predictions: %w", err)
	}
	return flat, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
