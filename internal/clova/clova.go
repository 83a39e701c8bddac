// Package clova relays questions to a CLOVA Studio skill set and returns
// its final answer.
package clova

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNoFinalAnswer is returned when the stream carries no parseable final answer.
	ErrNoFinalAnswer = errors.New("Failed to retrieve final answer")
	// ErrNotConfigured is returned when host, path or keys are missing.
	ErrNotConfigured = errors.New("CLOVA Studio not configured")
)

// Executor calls the final-answer endpoint of one skill set.
type Executor struct {
	Host         string
	SkillsetPath string
	APIKey       string
	GatewayKey   string
	client       *http.Client
	logger       *slog.Logger
}

// NewExecutor creates a skill-set executor.
func NewExecutor(host, skillsetPath, apiKey, gatewayKey string, timeout time.Duration, logger *slog.Logger) *Executor {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		Host:         strings.TrimRight(host, "/"),
		SkillsetPath: "/" + strings.TrimLeft(skillsetPath, "/"),
		APIKey:       apiKey,
		GatewayKey:   gatewayKey,
		client:       &http.Client{Timeout: timeout},
		logger:       logger.With("component", "clova"),
	}
}

// IsConfigured checks that the endpoint and API key are set.
func (e *Executor) IsConfigured() bool {
	return e.Host != "" && e.SkillsetPath != "/" && e.APIKey != ""
}

type request struct {
	Query       string `json:"query"`
	TokenStream bool   `json:"tokenStream"`
}

type streamLine struct {
	Result struct {
		FinalAnswer string `json:"finalAnswer"`
	} `json:"result"`
}

// Ask sends a query and returns the first final answer in the response
// stream, decoded as a JSON object.
func (e *Executor) Ask(ctx context.Context, query string) (map[string]any, error) {
	if !e.IsConfigured() {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(request{Query: query, TokenStream: false})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.Host+e.SkillsetPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-NCP-CLOVASTUDIO-API-KEY", e.APIKey)
	req.Header.Set("X-NCP-APIGW-API-KEY", e.GatewayKey)
	req.Header.Set("X-NCP-CLOVASTUDIO-REQUEST-ID", requestID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("CLOVA request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		e.logger.Warn("skill set returned error", "status", resp.StatusCode, "request_id", requestID, "body", string(msg))
		return nil, ErrNoFinalAnswer
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		// Event-stream framing.
		line = bytes.TrimPrefix(line, []byte("data:"))

		var sl streamLine
		if err := json.Unmarshal(line, &sl); err != nil {
			e.logger.Debug("skipping non-JSON line", "request_id", requestID)
			continue
		}
		if sl.Result.FinalAnswer == "" {
			continue
		}
		answer, err := parseAnswer(sl.Result.FinalAnswer)
		if err != nil {
			e.logger.Warn("final answer is not JSON", "request_id", requestID, "error", err)
			return nil, ErrNoFinalAnswer
		}
		return answer, nil
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading CLOVA stream: %w", err)
	}
	return nil, ErrNoFinalAnswer
}
