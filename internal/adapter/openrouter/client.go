// Package openrouter implements the generative-text completion client
// with cache-aside semantics and bounded rate-limit retries.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/starbrewcrew/brewfinder/internal/cache"
	"github.com/starbrewcrew/brewfinder/internal/domain"
	"github.com/starbrewcrew/brewfinder/internal/observability"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	maxTokens      = 1024

	// retryBase is the first backoff delay; doubles per attempt unless
	// the provider supplies its own Retry-After.
	retryBase = 500 * time.Millisecond
)

// Completion is the provider's structured chat-completion response.
type Completion struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

// Choice is one completion alternative; we always request one.
type Choice struct {
	Message Message `json:"message"`
}

// Message carries the generated text payload.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Text returns the generated payload of the first choice, or "".
func (c Completion) Text() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Message.Content
}

// Client calls the OpenRouter chat-completions API. Responses are
// cached by prompt; rate-limit responses are retried with exponential
// backoff on the injected clock so only the calling request waits.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	store      cache.Store
	cacheTTL   time.Duration
	maxRetries int
	clock      clockwork.Clock
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a completion client. The store may be shared with
// other components; keys are namespaced with an "ai:" prefix.
func NewClient(apiKey, model string, store cache.Store, cacheTTL time.Duration, maxRetries int, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		store:      store,
		cacheTTL:   cacheTTL,
		maxRetries: maxRetries,
		clock:      clockwork.NewRealClock(),
		metrics:    metrics,
		logger:     logger,
	}
}

// Complete returns the completion for prompt, serving from cache when
// an unexpired entry exists. A present, unexpired cache entry is
// authoritative: no upstream call is made.
func (c *Client) Complete(ctx context.Context, prompt string) (Completion, error) {
	key := "ai:" + prompt

	if cached, ok := c.cacheGet(ctx, key); ok {
		return cached, nil
	}

	completion, raw, err := c.callWithRetry(ctx, prompt)
	if err != nil {
		return Completion{}, err
	}

	// A cache-store failure must not fail the request.
	if err := c.store.Set(ctx, key, raw, c.cacheTTL); err != nil {
		c.metrics.CacheOps.WithLabelValues("set", "error").Inc()
		c.logger.Warn("ai cache store failed", "error", err)
	} else {
		c.metrics.CacheOps.WithLabelValues("set", "ok").Inc()
	}

	return completion, nil
}

func (c *Client) cacheGet(ctx context.Context, key string) (Completion, bool) {
	raw, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.metrics.CacheOps.WithLabelValues("get", "error").Inc()
		c.logger.Warn("ai cache lookup failed", "error", err)
		return Completion{}, false
	}
	if !found {
		c.metrics.CacheOps.WithLabelValues("get", "miss").Inc()
		return Completion{}, false
	}

	var completion Completion
	if err := json.Unmarshal(raw, &completion); err != nil {
		c.metrics.CacheOps.WithLabelValues("get", "error").Inc()
		c.logger.Warn("ai cache entry undecodable, treating as miss", "error", err)
		return Completion{}, false
	}
	c.metrics.CacheOps.WithLabelValues("get", "hit").Inc()
	return completion, true
}

// callWithRetry performs the upstream call, retrying rate-limit
// responses up to maxRetries with exponential backoff. The wait runs on
// this request's goroutine only.
func (c *Client) callWithRetry(ctx context.Context, prompt string) (Completion, []byte, error) {
	for attempt := 0; ; attempt++ {
		completion, raw, retryAfter, err := c.call(ctx, prompt)
		if err == nil {
			c.metrics.AIRequests.WithLabelValues("success").Inc()
			return completion, raw, nil
		}
		if !errors.Is(err, domain.ErrRateLimited) {
			c.metrics.AIRequests.WithLabelValues("error").Inc()
			return Completion{}, nil, err
		}
		if attempt >= c.maxRetries {
			c.metrics.AIRequests.WithLabelValues("rate_limited").Inc()
			c.logger.Error("ai provider rate limit persisted after retries", "attempts", attempt+1)
			return Completion{}, nil, err
		}

		delay := retryAfter
		if delay <= 0 {
			delay = retryBase << attempt
		}
		c.metrics.AIRetries.Inc()
		c.logger.Warn("ai provider rate limited, backing off", "attempt", attempt+1, "delay", delay)

		select {
		case <-ctx.Done():
			return Completion{}, nil, ctx.Err()
		case <-c.clock.After(delay):
		}
	}
}

type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// call makes one upstream request. On a 429 it returns ErrRateLimited
// plus any server-supplied retry delay.
func (c *Client) call(ctx context.Context, prompt string) (Completion, []byte, time.Duration, error) {
	payload, err := json.Marshal(chatRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return Completion{}, nil, 0, fmt.Errorf("encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Completion{}, nil, 0, fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Completion{}, nil, 0, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Completion{}, nil, 0, fmt.Errorf("read completion response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return Completion{}, nil, parseRetryAfter(resp.Header.Get("Retry-After")),
			fmt.Errorf("completion request: %w", domain.ErrRateLimited)
	case resp.StatusCode != http.StatusOK:
		c.logger.Error("ai provider error response",
			"status", resp.StatusCode,
			"body", string(body),
			"request_id", resp.Header.Get("X-Request-Id"),
		)
		return Completion{}, nil, 0, fmt.Errorf("completion request: provider status %d", resp.StatusCode)
	}

	var completion Completion
	if err := json.Unmarshal(body, &completion); err != nil {
		return Completion{}, nil, 0, fmt.Errorf("decode completion response: %w", err)
	}
	return completion, body, 0, nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if (errors.As(err, &netErr) && netErr.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("completion request: %w: %v", domain.ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("completion request: %w: %v", domain.ErrUpstreamUnavailable, err)
}

// parseRetryAfter reads a Retry-After header in seconds form. HTTP-date
// form is rare from the provider and treated as absent.
func parseRetryAfter(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
