package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"furniture-store/internal/config"
	"furniture-store/internal/database"
	"furniture-store/internal/events"
	"furniture-store/internal/logger"
	"furniture-store/internal/server"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

// gracefulShutdown drains in-flight requests once ctx is cancelled by a
// signal, then releases the database, Redis and Kafka handles.
func gracefulShutdown(ctx context.Context, apiServer *server.Server, logger *zap.Logger, done chan<- struct{}) {
	<-ctx.Done()
	logger.Info("Shutdown signal received, draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	close(done)
}

func newPublisher(cfg config.KafkaConfig, log *zap.Logger) events.Publisher {
	if len(cfg.Brokers) == 0 {
		log.Info("No Kafka brokers configured, order events are dropped")
		return events.NopPublisher{}
	}
	publisher, err := events.NewKafkaPublisher(cfg.Brokers, cfg.OrderTopic, log)
	if err != nil {
		log.Warn("Kafka unavailable, order events are dropped", zap.Error(err))
		return events.NopPublisher{}
	}
	log.Info("Publishing order events",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.OrderTopic),
	)
	return publisher
}

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.Server.Env)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting furniture store API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
	)

	ctx := context.Background()

	// Initialize database
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database health check", zap.Any("health", database.Health(ctx, db)))

	// Run migrations
	if err := database.RunMigrations(db, log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unreachable, rate limiting fails open", zap.Error(err))
	}

	// Create server
	srv, err := server.NewServer(cfg, log, server.Dependencies{
		DB:        db,
		Redis:     redisClient,
		Publisher: newPublisher(cfg.Kafka, log),
	})
	if err != nil {
		log.Fatal("Failed to create server", zap.Error(err))
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go srv.RunMaintenance(signalCtx)

	done := make(chan struct{})
	go gracefulShutdown(signalCtx, srv, log, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	err = srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	<-done
	log.Info("Server stopped")
}
