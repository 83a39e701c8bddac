package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SidecarClassifier talks to a self-hosted inference service that keeps
// the four models resident.
type SidecarClassifier struct {
	BaseURL       string
	MaxInputChars int
	client        *http.Client
}

// NewSidecarClassifier creates a client for the sidecar at baseURL.
func NewSidecarClassifier(baseURL string, maxChars, timeoutSeconds int) *SidecarClassifier {
	if maxChars <= 0 {
		maxChars = DefaultMaxInputChars
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = 60
	}
	return &SidecarClassifier{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		MaxInputChars: maxChars,
		client:        &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
	}
}

// IsConfigured pings the sidecar's health endpoint.
func (s *SidecarClassifier) IsConfigured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Classify posts the text to /classify.
func (s *SidecarClassifier) Classify(ctx context.Context, pipeline Pipeline, text string) ([]Prediction, error) {
	data, err := json.Marshal(map[string]string{
		"pipeline": string(pipeline),
		"text":     Truncate(text, s.MaxInputChars),
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/classify", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: sidecar returned %d: %s", ErrUpstreamUnavailable, resp.StatusCode, snippet(body))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("sidecar returned %d: %s", resp.StatusCode, snippet(body))
	}

	var result struct {
		Predictions []Prediction `json:"predictions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return result.Predictions, nil
}
