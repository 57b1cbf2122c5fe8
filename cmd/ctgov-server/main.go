// Command ctgov-server serves ClinicalTrials.gov search results as flattened
// tables over HTTP and keeps named datasets in Redis for later merging.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/ctgov-client/pkg/client"
	"github.com/Sternrassler/ctgov-client/pkg/logging"
	"github.com/Sternrassler/ctgov-client/pkg/store"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	// A missing .env is fine; the process environment still applies.
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logging.Setup(cfg.Logging)
	logger := logging.NewLogger(logging.ComponentServer)

	opts, err := redisOptions(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Str("redis_url", cfg.RedisURL).Msg("Invalid Redis URL")
	}
	redisClient := redis.NewClient(opts)
	defer redisClient.Close()

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("redis_addr", opts.Addr).Msg("Failed to connect to Redis")
	}
	logger.Info().Str("redis_addr", opts.Addr).Msg("Connected to Redis")

	registry, err := client.New(cfg.Client)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create registry client")
	}

	gin.SetMode(gin.ReleaseMode)
	srv := newServer(registry, store.NewStore(redisClient), cfg.DatasetTTL, logger)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.router(),
	}

	go func() {
		logger.Info().
			Str("addr", httpServer.Addr).
			Str("base_url", cfg.Client.BaseURL).
			Int("max_retries", cfg.Client.MaxRetries).
			Dur("retry_delay", cfg.Client.RetryDelay).
			Msg("Starting ctgov server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}
	logger.Info().Msg("Server stopped")
}
