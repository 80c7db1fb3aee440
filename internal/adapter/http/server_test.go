package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starbrewcrew/brewfinder/internal/adapter/openrouter"
	"github.com/starbrewcrew/brewfinder/internal/analytics"
	"github.com/starbrewcrew/brewfinder/internal/auth"
	"github.com/starbrewcrew/brewfinder/internal/cache"
	"github.com/starbrewcrew/brewfinder/internal/domain"
	"github.com/starbrewcrew/brewfinder/internal/observability"
	"github.com/starbrewcrew/brewfinder/internal/rank"
	"github.com/starbrewcrew/brewfinder/internal/search"
	"github.com/starbrewcrew/brewfinder/internal/storage"
)

// stubPlaces feeds canned provider responses through the real search
// service so requests exercise the full filter and transform path.
type stubPlaces struct {
	nearby   []domain.Place
	forward  []domain.Place
	geocode  []domain.Place
	retrieve []domain.Place
	err      error
}

func (s *stubPlaces) ForwardGeocode(context.Context, string) ([]domain.Place, error) {
	return s.forward, s.err
}

func (s *stubPlaces) Geocode(context.Context, string) ([]domain.Place, error) {
	return s.geocode, s.err
}

func (s *stubPlaces) NearbyCoffeePOI(context.Context, float64, float64, int) ([]domain.Place, error) {
	return s.nearby, s.err
}

func (s *stubPlaces) Retrieve(context.Context, string) ([]domain.Place, error) {
	return s.retrieve, s.err
}

// stubCompleter returns a fixed completion body.
type stubCompleter struct {
	text string
	err  error
}

func (s *stubCompleter) Complete(context.Context, string) (openrouter.Completion, error) {
	if s.err != nil {
		return openrouter.Completion{}, s.err
	}
	return openrouter.Completion{
		Choices: []openrouter.Choice{{Message: openrouter.Message{Content: s.text}}},
	}, nil
}

// memoryFavorites is an in-memory FavoritesStore for handler tests.
type memoryFavorites struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]storage.Favorite
}

func newMemoryFavorites() *memoryFavorites {
	return &memoryFavorites{nextID: 1, items: map[int64]storage.Favorite{}}
}

func (m *memoryFavorites) List(context.Context) ([]storage.Favorite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	favorites := []storage.Favorite{}
	for _, f := range m.items {
		favorites = append(favorites, f)
	}
	return favorites, nil
}

func (m *memoryFavorites) Get(_ context.Context, id int64) (storage.Favorite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.items[id]
	if !ok {
		return storage.Favorite{}, fmt.Errorf("favorite %d: %w", id, domain.ErrNotFound)
	}
	return f, nil
}

func (m *memoryFavorites) Create(_ context.Context, f storage.Favorite) (storage.Favorite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f.Name == "" {
		return storage.Favorite{}, domain.Validationf("name is required")
	}
	f.ID = m.nextID
	m.nextID++
	m.items[f.ID] = f
	return f, nil
}

func (m *memoryFavorites) Update(_ context.Context, id int64, f storage.Favorite) (storage.Favorite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return storage.Favorite{}, fmt.Errorf("favorite %d: %w", id, domain.ErrNotFound)
	}
	f.ID = id
	m.items[id] = f
	return f, nil
}

func (m *memoryFavorites) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return fmt.Errorf("favorite %d: %w", id, domain.ErrNotFound)
	}
	delete(m.items, id)
	return nil
}

type captureSender struct {
	body string
}

func (c *captureSender) SendSMS(_ context.Context, _, body string) error {
	c.body = body
	return nil
}

// recordingPublisher captures analytics events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []analytics.SearchEvent
}

func (r *recordingPublisher) Publish(_ context.Context, event analytics.SearchEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingPublisher) last(t *testing.T) analytics.SearchEvent {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.events)
	return r.events[len(r.events)-1]
}

type fixture struct {
	server *Server
	places *stubPlaces
	ai     *stubCompleter
	auth   *auth.Service
	sender *captureSender
	events *recordingPublisher
}

func newTestServer(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()

	places := &stubPlaces{}
	searcher := search.NewService(places, testMatcher(t), metrics, logger)

	ai := &stubCompleter{}
	ranker := rank.NewRanker(ai)

	sender := &captureSender{}
	authSvc := auth.NewService(sender, cache.NewMemory(), []byte("test-secret"), logger)

	events := &recordingPublisher{}

	server := NewServer(Config{
		Addr:           ":0",
		AllowedOrigins: []string{"https://app.example.com"},
		Searcher:       searcher,
		Ranker:         ranker,
		Completer:      ai,
		Auth:           authSvc,
		Favorites:      newMemoryFavorites(),
		Analytics:      events,
		Metrics:        metrics,
		Logger:         logger,
	})
	return &fixture{server: server, places: places, ai: ai, auth: authSvc, sender: sender, events: events}
}

func testMatcher(t *testing.T) *domain.FranchiseMatcher {
	t.Helper()
	return domain.NewFranchiseMatcher([]string{"Starbucks", "Dunkin' Donuts"})
}

func (f *fixture) do(t *testing.T, method, target string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, target, reader)
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/healthz", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeMap(t, rec)["status"])
}

func TestNearbyFiltersFranchises(t *testing.T) {
	f := newTestServer(t)
	f.places.nearby = []domain.Place{
		{ID: "poi.1", Text: "Starbucks", Center: []float64{-122.4, 37.8}},
		{ID: "poi.2", Text: "Ritual Coffee", Center: []float64{-122.42, 37.76}},
	}

	rec := f.do(t, http.MethodGet, "/shops/nearby?longitude=-122.41&latitude=37.77", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var shops []domain.Shop
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &shops))
	require.Len(t, shops, 1)
	assert.Equal(t, "Ritual Coffee", shops[0].Name)
}

func TestNearbyDegradesToEmptyOnUpstreamFailure(t *testing.T) {
	f := newTestServer(t)
	f.places.err = domain.ErrUpstreamUnavailable

	rec := f.do(t, http.MethodGet, "/shops/nearby?longitude=-122.41&latitude=37.77", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestNearbySkipsFeatureWithoutCenter(t *testing.T) {
	f := newTestServer(t)
	f.places.nearby = []domain.Place{
		{ID: "poi.broken", Text: "Ritual Roasters"},
		{ID: "poi.2", Text: "Four Barrel", Center: []float64{-122.42, 37.76}},
	}

	rec := f.do(t, http.MethodGet, "/shops/nearby?longitude=-122.41&latitude=37.77", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var shops []domain.Shop
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &shops))
	require.Len(t, shops, 1)
	assert.Equal(t, "Four Barrel", shops[0].Name)
}

func TestNearbyPublishesSearchEvent(t *testing.T) {
	f := newTestServer(t)
	f.places.nearby = []domain.Place{
		{ID: "poi.2", Text: "Four Barrel", Center: []float64{-122.42, 37.76}},
	}

	rec := f.do(t, http.MethodGet, "/shops/nearby?longitude=-122.41&latitude=37.77&radius=5000", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	event := f.events.last(t)
	assert.Equal(t, -122.41, event.Longitude)
	assert.Equal(t, 37.77, event.Latitude)
	assert.Equal(t, 5000, event.Radius)
	assert.Equal(t, 1, event.ShopCount)
	assert.False(t, event.Degraded)
}

func TestNearbyPublishesDegradedEvent(t *testing.T) {
	f := newTestServer(t)
	f.places.err = domain.ErrUpstreamUnavailable

	rec := f.do(t, http.MethodGet, "/shops/nearby?longitude=-122.41&latitude=37.77", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	event := f.events.last(t)
	assert.Equal(t, 0, event.ShopCount)
	assert.True(t, event.Degraded)
}

func TestNearbyRequiresCoordinates(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/shops/nearby?latitude=37.77", nil, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeMap(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["message"], "longitude")
}

func TestNearbyRejectsNegativeRadius(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/shops/nearby?longitude=1&latitude=2&radius=-5", nil, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLocationSearchRequiresQuery(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/locations/search", nil, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLocationSearchAttachesShops(t *testing.T) {
	f := newTestServer(t)
	f.places.forward = []domain.Place{
		{ID: "place.1", PlaceName: "San Francisco, California", Center: []float64{-122.41, 37.77}},
	}
	f.places.nearby = []domain.Place{
		{ID: "poi.2", Text: "Ritual Coffee", Center: []float64{-122.42, 37.76}},
	}

	rec := f.do(t, http.MethodGet, "/locations/search?query=san+francisco", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var locations []search.LocationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &locations))
	require.Len(t, locations, 1)
	assert.Equal(t, "San Francisco, California", locations[0].PlaceName)
	require.Len(t, locations[0].Shops, 1)
}

func TestShopByIDNotFound(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/shops/poi.unknown", nil, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, decodeMap(t, rec)["success"])
}

func TestCoordinatesUpstreamUnavailable(t *testing.T) {
	f := newTestServer(t)
	f.places.err = fmt.Errorf("geocode: %w", domain.ErrUpstreamUnavailable)

	rec := f.do(t, http.MethodGet, "/locations/coordinates?address=somewhere", nil, nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCoordinatesUpstreamTimeout(t *testing.T) {
	f := newTestServer(t)
	f.places.err = fmt.Errorf("geocode: %w", domain.ErrUpstreamTimeout)

	rec := f.do(t, http.MethodGet, "/locations/coordinates?address=somewhere", nil, nil)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestBounds(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodPost, "/locations/bounds", map[string]any{
		"coordinates": [][]float64{{-122.5, 37.7}, {-122.3, 37.8}},
		"padding":     0,
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		BoundingBox [][]float64 `json:"boundingBox"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.BoundingBox, 2)
	assert.Equal(t, []float64{-122.5, 37.7}, resp.BoundingBox[0])
	assert.Equal(t, []float64{-122.3, 37.8}, resp.BoundingBox[1])
}

func TestBoundsRejectsEmptyCoordinates(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodPost, "/locations/bounds", map[string]any{
		"coordinates": [][]float64{},
	}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerate(t *testing.T) {
	f := newTestServer(t)
	f.ai.text = "a fine cup"

	rec := f.do(t, http.MethodPost, "/ai/generate", map[string]any{"prompt": "describe coffee"}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeMap(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "a fine cup", body["data"])
}

func TestGenerateRequiresPrompt(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodPost, "/ai/generate", map[string]any{}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateRateLimited(t *testing.T) {
	f := newTestServer(t)
	f.ai.err = fmt.Errorf("complete: %w", domain.ErrRateLimited)

	rec := f.do(t, http.MethodPost, "/ai/generate", map[string]any{"prompt": "hi"}, nil)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestAnalyze(t *testing.T) {
	f := newTestServer(t)
	f.ai.text = `[{"name":"Ritual Coffee","rank":1,"explanation":"quiet with great espresso"}]`

	rec := f.do(t, http.MethodPost, "/ai/analyze", map[string]any{
		"coffeeShops":     []map[string]any{{"name": "Ritual Coffee"}},
		"userPreferences": "quiet",
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeMap(t, rec)
	assert.Equal(t, true, body["success"])
	insights, ok := body["data"].([]any)
	require.True(t, ok)
	require.Len(t, insights, 1)
}

func TestAnalyzeRejectsEmptyShops(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodPost, "/ai/analyze", map[string]any{
		"coffeeShops":     []any{},
		"userPreferences": "quiet",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, decodeMap(t, rec)["success"])
}

func TestAnalyzeInvalidRankingAnswer(t *testing.T) {
	f := newTestServer(t)
	f.ai.text = "sorry, I cannot rank these"

	rec := f.do(t, http.MethodPost, "/ai/analyze", map[string]any{
		"coffeeShops": []map[string]any{{"name": "Ritual Coffee"}},
	}, nil)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestEnrich(t *testing.T) {
	f := newTestServer(t)
	f.ai.text = `[{"name":"Ritual Coffee","rank":1,"explanation":"best match"}]`

	rec := f.do(t, http.MethodPost, "/ai/enrich", map[string]any{
		"searchResult": map[string]any{
			"features": []map[string]any{
				{"id": "poi.2", "text": "Ritual Coffee", "center": []float64{-122.42, 37.76}},
			},
		},
		"preferences": "espresso",
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeMap(t, rec)
	assert.Equal(t, true, body["success"])
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	shops, ok := data["coffeeShops"].([]any)
	require.True(t, ok)
	require.Len(t, shops, 1)
}

func TestVerifyWrongCodeUnauthorized(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodPost, "/auth/verify", map[string]any{
		"phoneNumber": "+14155550100",
		"code":        "000000",
	}, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestCodeRejectsInvalidPhone(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodPost, "/auth/request-code", map[string]any{
		"phoneNumber": "not a phone",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFavoritesRequireAuth(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/data/", nil, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	header := http.Header{"Authorization": []string{"Bearer not-a-token"}}
	rec = f.do(t, http.MethodGet, "/data/", nil, header)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFavoritesCRUD(t *testing.T) {
	f := newTestServer(t)
	header := http.Header{"Authorization": []string{"Bearer " + issueToken(t, f)}}

	rec := f.do(t, http.MethodPost, "/data/", map[string]any{
		"name": "Ritual Coffee",
		"city": "San Francisco",
	}, header)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeMap(t, rec)
	id := created["id"].(float64)
	require.NotZero(t, id)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/data/%d", int64(id)), nil, header)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ritual Coffee", decodeMap(t, rec)["name"])

	rec = f.do(t, http.MethodPut, fmt.Sprintf("/data/%d", int64(id)), map[string]any{
		"name":  "Ritual Coffee Roasters",
		"notes": "good wifi",
	}, header)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ritual Coffee Roasters", decodeMap(t, rec)["name"])

	rec = f.do(t, http.MethodDelete, fmt.Sprintf("/data/%d", int64(id)), nil, header)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/data/%d", int64(id)), nil, header)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFavoritesRejectsNonNumericID(t *testing.T) {
	f := newTestServer(t)
	header := http.Header{"Authorization": []string{"Bearer " + issueToken(t, f)}}

	rec := f.do(t, http.MethodGet, "/data/abc", nil, header)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// issueToken runs the real verification flow to mint a valid session token.
func issueToken(t *testing.T, f *fixture) string {
	t.Helper()

	require.NoError(t, f.auth.RequestCode(context.Background(), "+14155550100"))
	code := f.sender.body[len(f.sender.body)-6:]
	token, err := f.auth.VerifyCode(context.Background(), "+14155550100", code)
	require.NoError(t, err)
	return token
}

func TestCORSPreflightAllowedOrigin(t *testing.T) {
	f := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/shops/nearby", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSUnknownOriginGetsNoHeader(t *testing.T) {
	f := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestInvalidJSONBody(t *testing.T) {
	f := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/ai/generate", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, decodeMap(t, rec)["success"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/metrics", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownErrorIsOpaque(t *testing.T) {
	f := newTestServer(t)
	f.places.err = errors.New("database on fire")

	rec := f.do(t, http.MethodGet, "/locations/coordinates?address=x", nil, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decodeMap(t, rec)["message"])
	assert.NotContains(t, rec.Body.String(), "database on fire")
}
