package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"github.com/fintalk/iecat/internal/common"
	"github.com/fintalk/iecat/internal/model"
)

// OpenAIClassifier implements service.ExternalClassifier with OpenAI chat
// completions.
type OpenAIClassifier struct {
	client    chatCompleter
	breaker   *gobreaker.CircuitBreaker
	limiter   *rateLimiter
	logger    *slog.Logger
	cfg       Config
	retryOpts common.RetryOptions
}

// NewOpenAIClassifier creates a classifier talking to the OpenAI API, or to
// any compatible endpoint set through Config.BaseURL.
func NewOpenAIClassifier(cfg Config, logger *slog.Logger) (*OpenAIClassifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", common.ErrMissingConfig)
	}
	cfg = cfg.withDefaults()
	return newClassifier(newOpenAIClient(cfg), cfg, logger), nil
}

func newClassifier(client chatCompleter, cfg Config, logger *slog.Logger) *OpenAIClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures > 5 {
				return true
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && ratio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &OpenAIClassifier{
		client:  client,
		breaker: breaker,
		limiter: newRateLimiter(cfg.RequestsPerMinute),
		logger:  logger,
		cfg:     cfg,
		retryOpts: common.RetryOptions{
			MaxAttempts:  cfg.MaxRetries,
			InitialDelay: cfg.RetryDelay,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// ClassifyDocument sends the complete item set and returns the validated
// category structure.
func (c *OpenAIClassifier) ClassifyDocument(ctx context.Context, items map[string]string, docType model.TransactionType) (*model.ExternalResult, error) {
	if len(items) == 0 {
		result := &model.ExternalResult{
			Categories:     make(map[string]map[string]int64),
			CategoryTotals: make(map[string]int64),
		}
		for _, category := range model.CategoriesFor(docType) {
			result.Categories[category] = map[string]int64{}
		}
		return result, nil
	}

	prompt, err := buildPrompt(items, docType)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrExternalClassifier, err)
	}

	var result *model.ExternalResult
	attempt := 0
	err = common.WithRetry(ctx, func() error {
		attempt++
		content, err := c.complete(ctx, prompt)
		if err != nil {
			c.logger.Warn("External classification attempt failed",
				"attempt", attempt,
				"doc_type", docType,
				"error", err)
			return classifyError(ctx, err)
		}

		parsed, err := ParseResponse(content)
		if err != nil {
			c.logger.Debug("Unparsable classifier response", "content", content)
			return common.Permanent(err)
		}
		result = parsed
		return nil
	}, c.retryOpts)
	if err != nil {
		if errors.Is(err, common.ErrUnparsableResponse) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", common.ErrExternalClassifier, err)
	}

	c.logger.Info("External classification complete",
		"doc_type", docType,
		"items", len(items),
		"buckets", len(result.Categories),
		"attempts", attempt)

	return result, nil
}

// BreakerState reports the circuit breaker state for health output.
func (c *OpenAIClassifier) BreakerState() string {
	return c.breaker.State().String()
}

func (c *OpenAIClassifier) complete(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	seed := c.cfg.Seed
	req := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Seed:        &seed,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.client.CreateChatCompletion(callCtx, req)
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, errors.New("no completion choices returned")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", err
	}

	content, _ := out.(string)
	if strings.TrimSpace(content) == "" {
		return "", common.Permanent(fmt.Errorf("%w: empty completion", common.ErrUnparsableResponse))
	}
	return content, nil
}

// classifyError decides whether a failed call is worth another attempt:
// rate limits, server errors and timeouts are, everything else is not.
func classifyError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return common.Permanent(err)
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return common.Permanent(err)
	}

	switch status := statusCode(err); {
	case status == http.StatusTooManyRequests:
		return &common.RetryableError{Err: fmt.Errorf("%w: %w", common.ErrRateLimit, err), Retryable: true}
	case status >= 500:
		return &common.RetryableError{Err: err, Retryable: true}
	case status > 0:
		return common.Permanent(err)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &common.RetryableError{Err: err, Retryable: true}
	}
	return common.Permanent(err)
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
