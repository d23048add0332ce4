package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"furniture-store/internal/config"
	"furniture-store/internal/events"
	"furniture-store/internal/health"
	"furniture-store/internal/metrics"
	custommiddleware "furniture-store/internal/middleware"
	"furniture-store/internal/repository"
	"furniture-store/internal/service"
	"furniture-store/internal/storage"
	"furniture-store/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Version is reported by the health endpoint.
var Version = "dev"

// TokenCleanupInterval is how often expired refresh tokens are purged.
const TokenCleanupInterval = time.Hour

// Dependencies are the external resources the server owns once started.
type Dependencies struct {
	DB        *sql.DB
	Redis     *redis.Client
	Publisher events.Publisher
	// Registry collects metrics; it defaults to the global prometheus
	// registry.
	Registry *prometheus.Registry
}

type Server struct {
	*http.Server
	config    *config.Config
	logger    *zap.Logger
	db        *sql.DB
	redis     *redis.Client
	publisher events.Publisher
	tokens    repository.RefreshTokenRepository
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Dependencies) (*Server, error) {
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if deps.Registry != nil {
		registerer, gatherer = deps.Registry, deps.Registry
	}

	store, err := storage.NewLocalStore(cfg.Storage.Dir, cfg.Storage.PublicBaseURL, logger)
	if err != nil {
		return nil, err
	}

	// Create router
	router := chi.NewRouter()
	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.Env == "development"))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(metrics.NewHTTPMetrics(registerer).Middleware)
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(middleware.Compress(5, "application/json"))

	// Health and metrics
	healthHandler := health.NewHandler(Version)
	if deps.DB != nil {
		healthHandler.RegisterChecker("database", health.NewDBChecker(deps.DB))
	}
	if deps.Redis != nil {
		healthHandler.RegisterChecker("redis", health.NewRedisChecker(deps.Redis))
	}
	router.Method(http.MethodGet, "/health", healthHandler)
	router.Get("/livez", health.LivenessHandler)
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Initialize repositories
	userRepo := repository.NewUserRepository(deps.DB)
	refreshTokenRepo := repository.NewRefreshTokenRepository(deps.DB)
	productRepo := repository.NewProductRepository(deps.DB)
	orderRepo := repository.NewOrderRepository(deps.DB)

	// Initialize services
	authService := service.NewAuthService(userRepo, refreshTokenRepo, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		AccessTTL:  time.Duration(cfg.JWT.AccessExpiry) * time.Minute,
		RefreshTTL: time.Duration(cfg.JWT.RefreshExpiry) * 24 * time.Hour,
	}, logger)
	productService := service.NewProductService(productRepo, logger)
	orderService := service.NewOrderService(orderRepo, deps.Publisher, logger)

	// Middleware shared by the handlers
	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	adminMiddleware := custommiddleware.RequireAdmin(authService, logger)
	var limiter func(http.Handler) http.Handler
	if deps.Redis != nil {
		limiter = custommiddleware.RateLimitMiddleware(deps.Redis, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "ratelimit:auth",
		}, logger)
	}

	// Register routes
	transport.NewAuthHandler(authService, logger).RegisterRoutes(router, authMiddleware, limiter)
	transport.NewProductHandler(productService, logger).RegisterRoutes(router, authMiddleware, adminMiddleware)
	transport.NewOrderHandler(orderService, logger).RegisterRoutes(router, authMiddleware)
	transport.NewStorageHandler(store, logger).RegisterRoutes(router, authMiddleware, adminMiddleware)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:    cfg,
		logger:    logger,
		db:        deps.DB,
		redis:     deps.Redis,
		publisher: deps.Publisher,
		tokens:    refreshTokenRepo,
	}

	return server, nil
}

// RunMaintenance purges expired refresh tokens until ctx is done.
func (s *Server) RunMaintenance(ctx context.Context) {
	ticker := time.NewTicker(TokenCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.tokens.DeleteExpired(ctx, time.Now())
			if err != nil {
				s.logger.Warn("Failed to purge expired refresh tokens", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Info("Purged expired refresh tokens", zap.Int64("count", n))
			}
		}
	}
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if err := s.publisher.Close(); err != nil {
		s.logger.Error("Failed to close event publisher", zap.Error(err))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	_ = s.logger.Sync()
	return nil
}
