package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"keyauth.backend/internal/config"
	"keyauth.backend/internal/infrastructure/datasources"
	"keyauth.backend/internal/infrastructure/metrics"
	"keyauth.backend/internal/interfaces/http/handlers"
	"keyauth.backend/internal/interfaces/http/middleware"
	"keyauth.backend/internal/usecases"
	"keyauth.backend/pkg/logger"
	"keyauth.backend/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	openStore  = datasources.OpenKeyStore
	newMetrics = metrics.New
	runServer  = func(srv *http.Server) error {
		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-quit:
			log.Println("Shutting down server...")
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(ctx)
		}
	}
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	initLog(cfg.Server.Env)
	defer logger.Sync()
	logger.Info(context.Background(), "Logger initialized", zap.String("env", cfg.Server.Env))

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := openStore(cfg)
	if err != nil {
		logger.Error(context.Background(), "Failed to open key store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
		return fmt.Errorf("failed to open key store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn(context.Background(), "Failed to close key store", zap.Error(err))
		}
	}()
	logger.Info(context.Background(), "Key store ready", zap.String("driver", store.Driver))

	recorder, err := newMetrics()
	if err != nil {
		return fmt.Errorf("failed to init metrics: %w", err)
	}

	keyUsecase := usecases.NewActivationKeyUsecase(store.Repo)
	keyUsecase.SetMetrics(recorder)
	if err := recorder.RegisterStoreSize(func() (int64, error) {
		return keyUsecase.CountKeys(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to register store gauge: %w", err)
	}

	r, err := buildRouter(cfg, routeDeps{
		keyHandler:    handlers.NewActivationKeyHandler(keyUsecase),
		systemHandler: handlers.NewSystemHandler(keyUsecase),
		verifyLimiter: newVerifyLimiter(cfg.Verify, recorder),
		idempotency:   middleware.IdempotencyMiddleware(newIdempotencyStore(store.Driver), cfg.Redis.KeyPrefix),
	}, recorder)
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	for _, route := range r.Routes() {
		logger.Debug(context.Background(), "Route registered", zap.String("method", route.Method), zap.String("path", route.Path))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      applyCORSMiddleware(r, cfg.CORS.AllowedOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info(context.Background(), "Key service starting", zap.String("addr", srv.Addr))
	if err := runServer(srv); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	logger.Info(context.Background(), "Server stopped")
	return nil
}

// buildRouter assembles the gin engine with global middleware and routes.
// Forwarding headers are honored only from cfg.Server.TrustedProxies.
func buildRouter(cfg *config.Config, d routeDeps, recorder *metrics.Recorder) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	r.Use(middleware.RecoveryMiddleware())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())

	if cfg.Metrics.Enabled && recorder != nil {
		r.Use(middleware.MetricsMiddleware(recorder))
		d.metricsHandler = gin.WrapH(recorder.Handler())
	}

	registerRoutes(r, d)
	return r, nil
}

// newVerifyLimiter returns nil when the verify limit is disabled.
func newVerifyLimiter(cfg config.VerifyConfig, rec middleware.RateLimitRecorder) gin.HandlerFunc {
	if !cfg.RateLimitEnabled() {
		return nil
	}
	return middleware.RateLimitMiddleware(cfg.RatePerMinute, cfg.Burst, rec)
}

// newIdempotencyStore shares replay state through redis when the keys live
// there; every other driver keeps it in process.
func newIdempotencyStore(driver string) middleware.IdempotencyStore {
	if driver == config.StoreDriverRedis {
		if client := redis.GetClient(); client != nil {
			return middleware.NewRedisIdempotencyStore(client)
		}
	}
	return middleware.NewMemoryIdempotencyStore()
}

func applyCORSMiddleware(h http.Handler, origins []string) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Content-Type",
			"Authorization",
			"X-Requested-With",
			middleware.IdempotencyHeader,
			middleware.RequestIDHeader,
		},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	})(h)
}
