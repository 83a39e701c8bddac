package classify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// Pipeline names one of the four text-classification models.
type Pipeline string

const (
	PipelineESG       Pipeline = "esg"
	PipelineCategory  Pipeline = "category"
	PipelineSentiment Pipeline = "sentiment"
	PipelineFLS       Pipeline = "fls"
)

// Pipelines lists every pipeline in evaluation order.
var Pipelines = []Pipeline{PipelineESG, PipelineCategory, PipelineSentiment, PipelineFLS}

// DefaultModels maps each pipeline to its FinBERT checkpoint.
var DefaultModels = map[Pipeline]string{
	PipelineESG:       "yiyanghkust/finbert-esg",
	PipelineCategory:  "yiyanghkust/finbert-esg-9-categories",
	PipelineSentiment: "yiyanghkust/finbert-tone",
	PipelineFLS:       "yiyanghkust/finbert-fls",
}

// DefaultMaxInputChars approximates the 512-token window of the models.
const DefaultMaxInputChars = 2000

var (
	// ErrInsufficientData means a pipeline returned no predictions.
	ErrInsufficientData = errors.New("classifier returned no predictions")
	// ErrUpstreamUnavailable means the inference backend could not be reached
	// or answered with a server error.
	ErrUpstreamUnavailable = errors.New("classifier backend unavailable")
)

// Prediction is a single label with its confidence.
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classifier runs a named pipeline over text.
type Classifier interface {
	Classify(ctx context.Context, pipeline Pipeline, text string) ([]Prediction, error)
	IsConfigured() bool
}

// Best returns the highest-scoring prediction. On ties the earlier entry
// wins. An empty slice yields ErrInsufficientData.
func Best(preds []Prediction) (Prediction, error) {
	if len(preds) == 0 {
		return Prediction{}, ErrInsufficientData
	}
	best := preds[0]
	for _, p := range preds[1:] {
		if p.Score > best.Score {
			best = p
		}
	}
	return best, nil
}

// Truncate cuts text to at most maxChars runes.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxChars])
}

// Options configures CreateClassifier.
type Options struct {
	Provider       string
	HuggingFaceURL string
	APIKeyEnv      string
	SidecarURL     string
	Models         map[Pipeline]string
	MaxInputChars  int
	TimeoutSeconds int
}

// CreateClassifier builds the configured backend, falling back to the other
// one when the preferred backend is not usable. Returns nil if neither is.
func CreateClassifier(opts Options, logger *slog.Logger) Classifier {
	if logger == nil {
		logger = slog.Default()
	}

	hf := func() Classifier {
		c := NewHuggingFaceClassifier(opts.HuggingFaceURL, opts.APIKeyEnv, opts.Models, opts.MaxInputChars, opts.TimeoutSeconds)
		if c.IsConfigured() {
			logger.Info("using Hugging Face inference", "url", c.BaseURL)
			return c
		}
		return nil
	}
	sidecar := func() Classifier {
		if opts.SidecarURL == "" {
			return nil
		}
		c := NewSidecarClassifier(opts.SidecarURL, opts.MaxInputChars, opts.TimeoutSeconds)
		if c.IsConfigured() {
			logger.Info("using inference sidecar", "url", opts.SidecarURL)
			return c
		}
		return nil
	}

	order := []func() Classifier{hf, sidecar}
	if strings.ToLower(opts.Provider) == "sidecar" {
		order = []func() Classifier{sidecar, hf}
	}
	for i, try := range order {
		if c := try(); c != nil {
			return c
		}
		if i == 0 {
			logger.Warn("preferred classifier not available, trying fallback", "provider", opts.Provider)
		}
	}

	logger.Error("no classifier available; start the sidecar or set " + opts.APIKeyEnv)
	return nil
}
