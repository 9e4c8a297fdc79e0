package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/gateway"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/order"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/storefront"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	if cfg.JWTSecret == "" {
		if !cfg.AllowUnverifiedTokens {
			log.Fatal("JWT_SECRET is required; set ALLOW_UNVERIFIED_TOKENS=true to run without it in development")
		}
		log.Warn("JWT_SECRET is empty, bearer tokens are not verified")
	}

	snapshots, closeSnapshots := newSnapshotStore(cfg, log)
	defer closeSnapshots()

	publisher, closePublisher := newPublisher(cfg, log)
	defer closePublisher()

	client := gateway.NewClient(cfg.BackendBaseURL, cfg.GatewayTimeout, log.Named("gateway"))
	registry := storefront.NewRegistry(
		func(sess *session.Context) storefront.Gateway { return client.For(sess) },
		snapshots,
		publisher,
		log.Named("storefront"),
	)
	defer registry.Close()

	limiter := h.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log.Named("ratelimit"))
	defer limiter.Close()

	router := h.NewRouter(h.RouterConfig{
		Registry:       registry,
		RequestTimeout: cfg.RequestTimeout,
		JWTSecret:      []byte(cfg.JWTSecret),
		RateLimiter:    limiter,
		Logger:         log.Named("http"),
	})

	corsHandler := h.NewCORS(cfg.CORSOrigins).Handler(router)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(corsHandler, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("storefront starting", zap.String("port", cfg.HTTPPort), zap.String("backend", cfg.BackendBaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("server exited")
}

func newSnapshotStore(cfg *config.Config, log *zap.Logger) (checkout.SnapshotStore, func()) {
	if cfg.RedisAddr == "" {
		log.Info("REDIS_ADDR not set, keeping checkouts in memory")
		store := checkout.NewMemoryStore(cfg.SnapshotTTL)
		return store, store.Close
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect to redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	log.Info("checkout snapshots stored in redis", zap.String("addr", cfg.RedisAddr))
	return checkout.NewRedisStore(client, cfg.SnapshotTTL), func() { _ = client.Close() }
}

func newPublisher(cfg *config.Config, log *zap.Logger) (order.Publisher, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		log.Info("KAFKA_BROKERS not set, order events are not published")
		return order.NoopPublisher{}, func() {}
	}
	p := order.NewKafkaPublisher(cfg.OrderEventsTopic, cfg.KafkaBrokers...)
	log.Info("publishing order events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.OrderEventsTopic))
	return p, func() {
		if err := p.Close(); err != nil {
			log.Warn("failed to close kafka writer", zap.Error(err))
		}
	}
}
