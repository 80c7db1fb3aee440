// Package http exposes the coffee-shop API over HTTP.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/starbrewcrew/brewfinder/internal/adapter/openrouter"
	"github.com/starbrewcrew/brewfinder/internal/analytics"
	"github.com/starbrewcrew/brewfinder/internal/domain"
	"github.com/starbrewcrew/brewfinder/internal/observability"
	"github.com/starbrewcrew/brewfinder/internal/rank"
	"github.com/starbrewcrew/brewfinder/internal/search"
	"github.com/starbrewcrew/brewfinder/internal/storage"
)

// Searcher is the slice of the search service the handlers need.
type Searcher interface {
	SearchNearby(ctx context.Context, longitude, latitude float64, radius int) (shops []domain.Shop, degraded bool)
	SearchLocation(ctx context.Context, query string) (results []search.LocationResult, degraded bool)
	GetShop(ctx context.Context, id string) (domain.Shop, error)
	Coordinates(ctx context.Context, address string) ([]float64, error)
}

// RankService ranks and enriches shop lists via the generative-text provider.
type RankService interface {
	Rank(ctx context.Context, shops []rank.ShopSummary, preferences string) (domain.RankingResult, error)
	Enrich(ctx context.Context, result rank.SearchResult, preferences string) (rank.Enrichment, error)
}

// Completer produces raw text completions for the generate endpoint.
type Completer interface {
	Complete(ctx context.Context, prompt string) (openrouter.Completion, error)
}

// AuthService handles phone verification and session tokens.
type AuthService interface {
	RequestCode(ctx context.Context, phone string) error
	VerifyCode(ctx context.Context, phone, code string) (string, error)
	ValidateToken(token string) (string, error)
}

// FavoritesStore persists the authenticated user's saved shops.
type FavoritesStore interface {
	List(ctx context.Context) ([]storage.Favorite, error)
	Get(ctx context.Context, id int64) (storage.Favorite, error)
	Create(ctx context.Context, f storage.Favorite) (storage.Favorite, error)
	Update(ctx context.Context, id int64, f storage.Favorite) (storage.Favorite, error)
	Delete(ctx context.Context, id int64) error
}

// AnalyticsPublisher records search activity. May be nil when analytics
// publishing is disabled.
type AnalyticsPublisher interface {
	Publish(ctx context.Context, event analytics.SearchEvent)
}

// Config carries the server's dependencies.
type Config struct {
	Addr           string
	AllowedOrigins []string

	Searcher  Searcher
	Ranker    RankService
	Completer Completer
	Auth      AuthService
	Favorites FavoritesStore
	Analytics AnalyticsPublisher

	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// Server exposes the API, health, and metrics routes.
type Server struct {
	httpServer *http.Server
	searcher   Searcher
	ranker     RankService
	completer  Completer
	auth       AuthService
	favorites  FavoritesStore
	analytics  AnalyticsPublisher
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewServer builds the router and wires every handler.
func NewServer(cfg Config) *Server {
	s := &Server{
		searcher:  cfg.Searcher,
		ranker:    cfg.Ranker,
		completer: cfg.Completer,
		auth:      cfg.Auth,
		favorites: cfg.Favorites,
		analytics: cfg.Analytics,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(withCORS(cfg.AllowedOrigins))
	router.Use(s.withMetrics)

	router.Get("/healthz", s.handleHealth)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	router.Get("/locations/search", s.handleLocationSearch)
	router.Get("/locations/coordinates", s.handleCoordinates)
	router.Post("/locations/bounds", s.handleBounds)
	router.Get("/shops/nearby", s.handleNearby)
	router.Get("/shops/{id}", s.handleShop)

	router.Post("/ai/generate", s.handleGenerate)
	router.Post("/ai/analyze", s.handleAnalyze)
	router.Post("/ai/enrich", s.handleEnrich)

	router.Post("/auth/request-code", s.handleRequestCode)
	router.Post("/auth/verify", s.handleVerify)

	router.Route("/data", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/", s.handleListFavorites)
		r.Post("/", s.handleCreateFavorite)
		r.Get("/{id}", s.handleGetFavorite)
		r.Put("/{id}", s.handleUpdateFavorite)
		r.Delete("/{id}", s.handleDeleteFavorite)
	})

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// withMetrics records request counts and latency per route pattern.
func (s *Server) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(ww.Status())).Inc()
		s.metrics.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// requireAuth rejects requests without a valid bearer token.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if _, err := s.auth.ValidateToken(token); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withCORS(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{})
	allowAll := false
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin == "*" {
			allowAll = true
			continue
		}
		allowed[origin] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			_, known := allowed[origin]
			if origin == "" || (!allowAll && !known) {
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusNoContent)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response write
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Success: false, Message: message})
}

// writeDomainError maps service errors onto HTTP statuses. Unknown
// errors become an opaque 500 so internals never leak to clients.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "upstream rate limit exceeded, try again later")
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		writeError(w, http.StatusServiceUnavailable, "upstream service unavailable")
	case errors.Is(err, domain.ErrUpstreamTimeout):
		writeError(w, http.StatusGatewayTimeout, "upstream service timed out")
	case errors.Is(err, domain.ErrInvalidRanking):
		writeError(w, http.StatusBadGateway, "ranking provider returned an unusable answer")
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
