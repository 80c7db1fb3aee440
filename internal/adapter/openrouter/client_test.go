package openrouter

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/starbrewcrew/brewfinder/internal/cache"
	"github.com/starbrewcrew/brewfinder/internal/domain"
	"github.com/starbrewcrew/brewfinder/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClientFor(srvURL string, store cache.Store, clock clockwork.Clock) *Client {
	return &Client{
		apiKey:     "sk-or-test",
		model:      "openai/gpt-4o-mini",
		baseURL:    srvURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		store:      store,
		cacheTTL:   time.Hour,
		maxRetries: 3,
		clock:      clock,
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func completionJSON(t *testing.T, content string) []byte {
	t.Helper()
	raw, err := json.Marshal(Completion{
		ID:      "gen-1",
		Model:   "openai/gpt-4o-mini",
		Choices: []Choice{{Message: Message{Role: "assistant", Content: content}}},
	})
	require.NoError(t, err)
	return raw
}

func TestComplete_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-or-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "openai/gpt-4o-mini", req.Model)
		assert.Equal(t, 1024, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "hello", req.Messages[0].Content)

		_, _ = w.Write(completionJSON(t, "hi there"))
	}))
	defer srv.Close()

	c := testClientFor(srv.URL, cache.NewMemory(), clockwork.NewRealClock())
	completion, err := c.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", completion.Text())
}

func TestComplete_CacheHitSkipsUpstream(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write(completionJSON(t, "fresh"))
	}))
	defer srv.Close()

	c := testClientFor(srv.URL, cache.NewMemory(), clockwork.NewRealClock())

	first, err := c.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	second, err := c.Complete(context.Background(), "prompt")
	require.NoError(t, err)

	assert.Equal(t, first.Text(), second.Text())
	assert.Equal(t, int32(1), calls.Load(), "second call must be served from cache")
}

func TestComplete_CacheRoundTripLossless(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(completionJSON(t, `[{"name":"A","rank":1,"explanation":"x"}]`))
	}))
	defer srv.Close()

	store := cache.NewMemory()
	c := testClientFor(srv.URL, store, clockwork.NewRealClock())

	first, err := c.Complete(context.Background(), "rank them")
	require.NoError(t, err)
	srv.Close() // force any further call to fail

	second, err := c.Complete(context.Background(), "rank them")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestComplete_RetriesRateLimitThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write(completionJSON(t, "after retry"))
	}))
	defer srv.Close()

	clock := clockwork.NewFakeClock()
	c := testClientFor(srv.URL, cache.NewMemory(), clock)

	done := make(chan struct{})
	var completion Completion
	var err error
	go func() {
		defer close(done)
		completion, err = c.Complete(context.Background(), "prompt")
	}()

	// The client must honor the server-supplied 7s delay.
	clock.BlockUntil(1)
	clock.Advance(7 * time.Second)
	<-done

	require.NoError(t, err)
	assert.Equal(t, "after retry", completion.Text())
	assert.Equal(t, int32(2), calls.Load())
}

func TestComplete_RateLimitExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	clock := clockwork.NewFakeClock()
	c := testClientFor(srv.URL, cache.NewMemory(), clock)
	c.maxRetries = 2

	done := make(chan error, 1)
	go func() {
		_, err := c.Complete(context.Background(), "prompt")
		done <- err
	}()

	// No Retry-After header: deterministic exponential schedule.
	clock.BlockUntil(1)
	clock.Advance(500 * time.Millisecond)
	clock.BlockUntil(1)
	clock.Advance(time.Second)

	err := <-done
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, int32(3), calls.Load(), "initial call plus two retries")
}

func TestComplete_NonRateLimitErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	c := testClientFor(srv.URL, cache.NewMemory(), clockwork.NewRealClock())
	_, err := c.Complete(context.Background(), "prompt")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, int32(1), calls.Load())
}

func TestComplete_ConnectionRefusedClassified(t *testing.T) {
	c := testClientFor("http://127.0.0.1:1", cache.NewMemory(), clockwork.NewRealClock())
	_, err := c.Complete(context.Background(), "prompt")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

// failingStore simulates a broken cache backend.
type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, assert.AnError
}
func (failingStore) Set(context.Context, string, []byte, time.Duration) error { return assert.AnError }
func (failingStore) Delete(context.Context, string) error                     { return assert.AnError }

func TestComplete_CacheFailureDegradesToMiss(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(completionJSON(t, "still works"))
	}))
	defer srv.Close()

	c := testClientFor(srv.URL, failingStore{}, clockwork.NewRealClock())
	completion, err := c.Complete(context.Background(), "prompt")
	require.NoError(t, err, "cache failure must never fail the request")
	assert.Equal(t, "still works", completion.Text())
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 7*time.Second, parseRetryAfter("7"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-3"))
}
