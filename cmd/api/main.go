package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/starbrewcrew/brewfinder/internal/adapter/http"
	"github.com/starbrewcrew/brewfinder/internal/adapter/mapbox"
	"github.com/starbrewcrew/brewfinder/internal/adapter/openrouter"
	"github.com/starbrewcrew/brewfinder/internal/adapter/twilio"
	"github.com/starbrewcrew/brewfinder/internal/analytics"
	"github.com/starbrewcrew/brewfinder/internal/auth"
	"github.com/starbrewcrew/brewfinder/internal/cache"
	"github.com/starbrewcrew/brewfinder/internal/config"
	"github.com/starbrewcrew/brewfinder/internal/domain"
	"github.com/starbrewcrew/brewfinder/internal/observability"
	"github.com/starbrewcrew/brewfinder/internal/rank"
	"github.com/starbrewcrew/brewfinder/internal/search"
	"github.com/starbrewcrew/brewfinder/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	// Pick the shared cache: Redis when configured and reachable,
	// otherwise the in-process store.
	store := chooseCache(cfg, logger)

	matcher, err := domain.DefaultFranchiseMatcher()
	if err != nil {
		logger.Error("failed to load franchise list", "error", err)
		os.Exit(1)
	}

	places := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
	searcher := search.NewService(places, matcher, metrics, logger)

	completer := openrouter.NewClient(cfg.OpenRouterKey, cfg.OpenRouterModel, store, cfg.AICacheTTL, cfg.AIMaxRetries, metrics, logger)
	ranker := rank.NewRanker(completer)

	sender := twilio.NewClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
	authSvc := auth.NewService(sender, store, []byte(cfg.JWTSecret), logger)

	favorites, err := storage.Open(cfg.SQLitePath)
	if err != nil {
		logger.Error("failed to open favorites store", "path", cfg.SQLitePath, "error", err)
		os.Exit(1)
	}

	var publisher *analytics.Writer
	var serverAnalytics httpadapter.AnalyticsPublisher
	if cfg.AnalyticsEnabled() {
		publisher = analytics.NewWriter(cfg.KafkaBrokers, cfg.KafkaAnalyticsTopic, logger)
		serverAnalytics = publisher
		logger.Info("search analytics enabled", "topic", cfg.KafkaAnalyticsTopic)
	}

	srv := httpadapter.NewServer(httpadapter.Config{
		Addr:           cfg.HTTPAddr,
		AllowedOrigins: cfg.AllowedOrigins,
		Searcher:       searcher,
		Ranker:         ranker,
		Completer:      completer,
		Auth:           authSvc,
		Favorites:      favorites,
		Analytics:      serverAnalytics,
		Metrics:        metrics,
		Logger:         logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("analytics writer close error", "error", err)
		}
	}
	if err := favorites.Close(); err != nil {
		logger.Error("favorites store close error", "error", err)
	}
	if closer, ok := store.(*cache.Redis); ok {
		if err := closer.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// chooseCache returns the Redis store when REDIS_ADDR is set and the
// server answers a ping, falling back to the in-memory store so the
// API keeps working without Redis.
func chooseCache(cfg *config.Config, logger *slog.Logger) cache.Store {
	if cfg.RedisAddr == "" {
		logger.Info("using in-memory cache")
		return cache.NewMemory()
	}

	redis := cache.NewRedis(cfg.RedisAddr)
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := redis.Ping(pingCtx); err != nil {
		logger.Warn("redis unreachable, falling back to in-memory cache", "addr", cfg.RedisAddr, "error", err)
		_ = redis.Close()
		return cache.NewMemory()
	}

	logger.Info("using redis cache", "addr", cfg.RedisAddr)
	return redis
}
