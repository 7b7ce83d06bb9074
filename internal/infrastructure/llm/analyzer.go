// Package llm talks to an OpenAI-compatible chat completion API to turn
// product page text into structured sustainability factors.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ecoshop/ecoshop/internal/domain"
	"github.com/ecoshop/ecoshop/internal/logging"
)

// Defaults for the hosted Groq endpoint
const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama3-70b-8192"
)

const maxAttempts = 3

// Config holds analyzer settings
type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	Temperature     float32
	MaxTokens       int
	Timeout         time.Duration
	RequestsPerHour int
}

// Analyzer implements domain.ProductAnalyzer
type Analyzer struct {
	client      *openai.Client
	cfg         Config
	rateLimiter *rate.Limiter
	logger      logrus.FieldLogger
}

// NewAnalyzer creates an analyzer client
func NewAnalyzer(cfg Config, logger logrus.FieldLogger) (*Analyzer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("analyzer API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1500
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RequestsPerHour <= 0 {
		cfg.RequestsPerHour = 1000
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	// requests per hour as a per-second rate, burst of 10
	limiter := rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerHour)/3600), 10)

	return &Analyzer{
		client:      openai.NewClientWithConfig(clientConfig),
		cfg:         cfg,
		rateLimiter: limiter,
		logger:      logging.Component(logger, "analyzer"),
	}, nil
}

// Analyze asks the model for the structured sustainability factors of a product.
// Transient failures are retried up to three times.
func (a *Analyzer) Analyze(ctx context.Context, product domain.ProductInfo) (*domain.ProductAnalysis, error) {
	req := openai.ChatCompletionRequest{
		Model: a.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Please analyze the following product data:\n\n" + productText(product)},
		},
		Temperature:    a.cfg.Temperature,
		MaxTokens:      a.cfg.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	log := a.logger.WithFields(logrus.Fields{"brand": product.Brand, "name": product.Name})

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := a.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
		}

		resp, err := a.client.CreateChatCompletion(ctx, req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", domain.ErrAnalyzerFailure, err)
			if !retryable(err) {
				return nil, lastErr
			}
			log.WithError(err).WithField("attempt", attempt).Warn("Analyzer request failed")
			if err := backoff(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}

		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("%w: empty completion", domain.ErrAnalyzerFailure)
		}

		analysis, err := parseAnalysis(resp.Choices[0].Message.Content)
		if err != nil {
			return nil, err
		}
		if analysis.Brand == "" {
			analysis.Brand = product.Brand
		}
		if analysis.ProductName == "" {
			analysis.ProductName = product.Name
		}

		log.WithField("tokens", resp.Usage.TotalTokens).Info("Product analysed")
		return analysis, nil
	}

	return nil, lastErr
}

// retryable reports whether the API error is worth another attempt
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func backoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(time.Duration(attempt*500) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseAnalysis decodes the model output, tolerating a surrounding code fence
func parseAnalysis(content string) (*domain.ProductAnalysis, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var analysis domain.ProductAnalysis
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &analysis); err != nil {
		return nil, fmt.Errorf("%w: malformed analysis: %v", domain.ErrAnalyzerFailure, err)
	}
	return &analysis, nil
}

// productText renders the product for the prompt with specifications in a stable order
func productText(p domain.ProductInfo) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Product Title: %s\n", orNA(p.Name))
	fmt.Fprintf(&sb, "Brand: %s\n", orNA(p.Brand))
	if p.URL != "" {
		fmt.Fprintf(&sb, "URL: %s\n", p.URL)
	}

	sb.WriteString("Product Specifications:")
	if len(p.Specifications) == 0 {
		sb.WriteString(" N/A\n")
		return sb.String()
	}
	sb.WriteString("\n")

	keys := make([]string, 0, len(p.Specifications))
	for k := range p.Specifications {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s: %s\n", k, p.Specifications[k])
	}
	return sb.String()
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
