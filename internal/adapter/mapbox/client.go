package mapbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/starbrewcrew/brewfinder/internal/domain"
	"github.com/starbrewcrew/brewfinder/internal/observability"
)

const (
	defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

	// MaxResults caps how many POIs one nearby query may return.
	MaxResults = 50

	// DefaultRadius is the nearby-search radius in meters.
	DefaultRadius = 25000
)

// Client talks to the Mapbox Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox places client.
func NewClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// ForwardGeocode resolves a free-text query to place/locality features.
// At most one feature is requested; an empty slice means no match.
func (c *Client) ForwardGeocode(ctx context.Context, query string) ([]domain.Place, error) {
	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(query))
	params := url.Values{
		"access_token": {c.token},
		"types":        {"place,locality"},
		"limit":        {"1"},
	}
	return c.doRequest(ctx, u+"?"+params.Encode(), "forward")
}

// Geocode resolves an address to features without a type restriction.
func (c *Client) Geocode(ctx context.Context, address string) ([]domain.Place, error) {
	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(address))
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
	}
	return c.doRequest(ctx, u+"?"+params.Encode(), "forward")
}

// NearbyCoffeePOI queries coffee points-of-interest near a coordinate.
// Mapbox expects the proximity pair in lon,lat order.
func (c *Client) NearbyCoffeePOI(ctx context.Context, longitude, latitude float64, radius int) ([]domain.Place, error) {
	if radius <= 0 {
		radius = DefaultRadius
	}
	u := fmt.Sprintf("%s/coffee.json", c.baseURL)
	params := url.Values{
		"access_token": {c.token},
		"proximity":    {fmt.Sprintf("%f,%f", longitude, latitude)},
		"types":        {"poi"},
		"limit":        {strconv.Itoa(MaxResults)},
		"radius":       {strconv.Itoa(radius)},
	}
	return c.doRequest(ctx, u+"?"+params.Encode(), "poi")
}

// Retrieve fetches a single feature by its provider ID.
func (c *Client) Retrieve(ctx context.Context, id string) ([]domain.Place, error) {
	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(id))
	params := url.Values{
		"access_token": {c.token},
	}
	return c.doRequest(ctx, u+"?"+params.Encode(), "retrieve")
}

func (c *Client) doRequest(ctx context.Context, fullURL, operation string) ([]domain.Place, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeocodeAPIDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, classifyTransportError(operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var decoded response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return decoded.Features, nil
}

// classifyTransportError maps low-level transport failures onto the
// service error taxonomy so handlers can choose 503 vs 504.
func classifyTransportError(operation string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%s geocode request: %w: %v", operation, domain.ErrUpstreamTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s geocode request: %w: %v", operation, domain.ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%s geocode request: %w: %v", operation, domain.ErrUpstreamUnavailable, err)
}

// Mapbox API response envelope. Features share the domain Place wire
// shape, so they decode directly.
type response struct {
	Features []domain.Place `json:"features"`
}
