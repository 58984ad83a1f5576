package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/civiciq/civiciq/internal/broadcast"
	"github.com/civiciq/civiciq/internal/config"
	dbRedis "github.com/civiciq/civiciq/internal/db/redis"
	"github.com/civiciq/civiciq/internal/domain"
	logpkg "github.com/civiciq/civiciq/internal/logger"
	"github.com/civiciq/civiciq/internal/metrics"
	complaintrepo "github.com/civiciq/civiciq/internal/repository/complaint"
	vectorrepo "github.com/civiciq/civiciq/internal/repository/vector"
	chiTransport "github.com/civiciq/civiciq/internal/transport/chi"
	"github.com/civiciq/civiciq/internal/transport/gemini"
	openaiEmb "github.com/civiciq/civiciq/internal/transport/openai"
	"github.com/civiciq/civiciq/internal/transport/ws"
	analyticsuc "github.com/civiciq/civiciq/internal/usecase/analytics"
	complaintuc "github.com/civiciq/civiciq/internal/usecase/complaint"
	"github.com/civiciq/civiciq/internal/usecase/dedup"
	intakeuc "github.com/civiciq/civiciq/internal/usecase/intake"
	"github.com/civiciq/civiciq/internal/usecase/ratelimit"
	rescoreuc "github.com/civiciq/civiciq/internal/usecase/rescore"
	"github.com/civiciq/civiciq/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting civiciq API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("redis_addrs", cfg.Redis.Addrs),
		zap.String("embedding_driver", cfg.AI.EmbeddingDriver),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Redis.Addrs,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create redis store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Redis.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Redis not ready", zap.Error(err))
	}
	logger.Info("Connected to redis")

	repo, err := complaintrepo.Open(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Fatal("Failed to connect to postgres", zap.Error(err))
	}
	defer repo.Close()
	logger.Info("Connected to postgres")

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	geminiClient, err := gemini.NewClient(ctx, &gemini.Config{
		APIKey:          cfg.AI.Gemini.APIKey,
		ClassifierModel: cfg.AI.Gemini.ClassifierModel,
		EmbeddingModel:  cfg.AI.Gemini.EmbeddingModel,
		Logger:          logger,
	})
	if err != nil {
		logger.Fatal("Failed to create gemini client", zap.Error(err))
	}
	defer geminiClient.Close()

	// AI providers report into /healthz alongside the stores.
	aiProbes := map[string]domain.HealthChecker{"gemini": geminiClient}

	var embedder domain.Embedder
	switch cfg.AI.EmbeddingDriver {
	case "openai":
		oe := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.AI.OpenAI.APIKey,
			BaseURL:    cfg.AI.OpenAI.BaseURL,
			Model:      cfg.AI.OpenAI.EmbeddingModel,
			Dimensions: cfg.AI.Dimensions,
			Logger:     logger,
		})
		embedder = oe
		aiProbes["openai"] = oe
	case "gemini":
		embedder = geminiClient
	default:
		logger.Fatal("Unknown embedding driver", zap.String("driver", cfg.AI.EmbeddingDriver))
	}

	settings := config.NewProvider(cfg)
	publisher := broadcast.NewPublisher(store, cfg.Broadcast.Channel, logger)

	vectors := vectorrepo.New(store, cfg.Storage.KeyPrefix)
	detector := dedup.NewDetector(vectors)
	limiter := ratelimit.NewRedisLimiter(store, cfg.Storage.KeyPrefix)

	rescoreSvc := rescoreuc.New(repo, publisher, settings, logger)
	intakeSvc := intakeuc.New(
		limiter, geminiClient, embedder, detector, repo, rescoreSvc, publisher, settings, logger,
	)
	complaintSvc := complaintuc.New(repo, rescoreSvc, publisher, logger)
	analyticsSvc := analyticsuc.NewService(repo, geminiClient, logger)

	hub := ws.NewHub(logger)

	probes := map[string]chiTransport.Pinger{
		"redis":    store,
		"postgres": repo,
	}
	for name, hc := range aiProbes {
		probes[name] = chiTransport.PingerFunc(hc.HealthCheck)
	}

	server := chiTransport.NewServer(
		intakeSvc, complaintSvc, analyticsSvc, hub.Handler(),
		probes, logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	// Background workers: event fan-out to websocket clients and the
	// periodic rescoring sweep.
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	go func() {
		if err := hub.Listen(workerCtx, store, cfg.Broadcast.Channel); err != nil {
			logger.Error("Broadcast listener stopped", zap.Error(err))
		}
	}()
	go rescoreSvc.RunPeriodic(workerCtx)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")
	stopWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
