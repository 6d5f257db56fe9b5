// Command order-export serves order exports and picking lists over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/shop-order-export/pkg/batch"
	"github.com/Sternrassler/shop-order-export/pkg/cache"
	"github.com/Sternrassler/shop-order-export/pkg/client"
	"github.com/Sternrassler/shop-order-export/pkg/config"
	"github.com/Sternrassler/shop-order-export/pkg/export"
	"github.com/Sternrassler/shop-order-export/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load(os.Getenv("EXPORT_CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Setup(logging.Config{
		Level:   logging.LogLevel(cfg.Log.Level),
		Pretty:  cfg.Log.Pretty,
		Service: "order-export",
		Output:  os.Stderr,
	})
	logger := logging.NewLogger("order-export")

	// Setup Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to Redis")
	}
	logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")

	// Create shop client
	clientCfg := client.DefaultConfig(cfg.Shop.Name, cfg.Shop.APIVersion, cfg.Shop.AccessToken)
	clientCfg.BaseURL = cfg.Shop.BaseURL
	clientCfg.Redis = redisClient
	shopClient, err := client.New(clientCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create shop client")
	}

	cacheManager := cache.NewManager(redisClient, cfg.Cache.TTL)
	exporter := export.New(shopClient, exportConfig(cfg)).WithCache(cacheManager)

	if cfg.Shop.WebhookSecret == "" {
		logger.Warn().Msg("No webhook secret configured; /webhooks/orders is disabled")
	}

	srv := &http.Server{
		Addr: ":" + cfg.Server.Port,
		Handler: newMux(&server{
			exporter:      exporter,
			redis:         redisClient,
			invalidator:   cacheManager,
			webhookSecret: cfg.Shop.WebhookSecret,
			logger:        logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("endpoint", shopClient.Endpoint()).
			Dur("interval", cfg.Pipeline.Interval).
			Msg("Starting order export server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
}

func exportConfig(cfg *config.Config) export.Config {
	ec := export.DefaultConfig()
	ec.BatchSize = cfg.Pipeline.BatchSize
	ec.Scheduler = batch.Config{
		Interval: cfg.Pipeline.Interval,
		Timeout:  cfg.Pipeline.BatchTimeout,
	}
	ec.PageSize = cfg.Pipeline.PageSize
	ec.PaginateAll = cfg.Pipeline.PaginateAll
	ec.StatusQuery = cfg.Pipeline.StatusQuery
	return ec
}
