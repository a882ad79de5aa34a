// Package ai implements the AI service boundary of the sync pipeline:
// batch classification, clustering, consolidation, and translation calls
// against the Anthropic API. Retry, backoff, rate limiting, and the circuit
// breaker all live here, behind the boundary - never in the orchestration
// logic.
package ai

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-3-5-haiku-20241022"

// Client is the AI service collaborator. All four pipeline operations
// (classify, group, consolidate, translate) are request/response calls that
// go through the same retry and rate-limit machinery.
type Client struct {
	client         *anthropic.Client
	model          string
	retry          RetryConfig
	circuitBreaker *CircuitBreaker
	concurrencySem *semaphore.Weighted
	limiter        *rate.Limiter
}

// Config holds AI client configuration
type Config struct {
	APIKey string // Anthropic API key (if empty, reads from ANTHROPIC_API_KEY env var)
	Model  string // Model to use (default: DefaultModel)
	Retry  RetryConfig

	// RequestsPerSecond caps outgoing API calls client-side, on top of the
	// concurrency limit. 0 disables the limiter.
	RequestsPerSecond int
}

// NewClient creates a new AI client
func NewClient(cfg *Config) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	var circuitBreaker *CircuitBreaker
	if retry.CircuitBreakerEnabled {
		circuitBreaker = NewCircuitBreaker(retry.FailureThreshold, retry.SuccessThreshold, retry.OpenTimeout)
	}

	var concurrencySem *semaphore.Weighted
	if retry.MaxConcurrentCalls > 0 {
		concurrencySem = semaphore.NewWeighted(int64(retry.MaxConcurrentCalls))
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.RequestsPerSecond)
	}

	return &Client{
		client:         &client,
		model:          model,
		retry:          retry,
		circuitBreaker: circuitBreaker,
		concurrencySem: concurrencySem,
		limiter:        limiter,
	}, nil
}

// complete makes one model call with the given prompt, going through the
// rate limiter and the retry/backoff/circuit-breaker stack.
func (c *Client) complete(ctx context.Context, operation, prompt string, maxTokens int) (string, error) {
	startTime := time.Now()

	if maxTokens <= 0 {
		maxTokens = 4096
	}

	var response *anthropic.Message
	err := c.retryWithBackoff(ctx, operation, func(attemptCtx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(attemptCtx); err != nil {
				return err
			}
		}
		resp, apiErr := c.client.Messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(c.model),
			MaxTokens: int64(maxTokens),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if apiErr != nil {
			return apiErr
		}
		response = resp
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var responseText string
	for _, block := range response.Content {
		if block.Type == "text" {
			responseText += block.Text
		}
	}

	log.Printf("AI %s call: input=%d tokens, output=%d tokens, duration=%v",
		operation, response.Usage.InputTokens, response.Usage.OutputTokens, time.Since(startTime))

	return responseText, nil
}

// HealthCheck reports whether the client can accept calls right now.
func (c *Client) HealthCheck() error {
	if c.circuitBreaker != nil {
		state, failures, _ := c.circuitBreaker.Metrics()
		if state == CircuitOpen {
			return fmt.Errorf("AI client unavailable: %w (failures=%d, retry in %v)",
				ErrCircuitOpen, failures, c.retry.OpenTimeout)
		}
	}
	return nil
}

// truncate shortens a string for prompts and log lines.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
