// Package server assembles and runs the curriculum synthesis backend.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/praxislearn/curricula/internal/api"
	"github.com/praxislearn/curricula/internal/config"
	"github.com/praxislearn/curricula/internal/services/cache"
	"github.com/praxislearn/curricula/internal/services/classifier"
	"github.com/praxislearn/curricula/internal/services/database"
	"github.com/praxislearn/curricula/internal/services/providers"
	"github.com/praxislearn/curricula/internal/services/quota"
	"github.com/praxislearn/curricula/internal/services/registry"
	"github.com/praxislearn/curricula/internal/services/retrieval"
	"github.com/praxislearn/curricula/internal/services/synthesis"
	"github.com/praxislearn/curricula/internal/services/usage"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

// Server is one backend instance.
type Server struct {
	config  *config.Config
	app     *fiber.App
	builder *Builder

	redis   *redis.Client
	db      *database.DB
	limiter *quota.Limiter
	worker  *usage.Worker
}

// NewServer creates a server from an already-loaded configuration.
func NewServer(cfg *config.Config) *Server {
	if cfg == nil {
		panic("config cannot be nil - use config.LoadFromFile() or the server builder")
	}
	return &Server{config: cfg}
}

// NewServerWithBuilder creates a server with builder-supplied middleware and
// limits.
func NewServerWithBuilder(b *Builder) *Server {
	return &Server{config: b.Build(), builder: b}
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogLevel(s.config)

	listenAddr := ":" + s.config.Server.Port
	s.app = createFiberApp(s.config)

	redisClient, err := createRedisClient(s.config.RedisURL)
	if err != nil {
		return err
	}
	s.redis = redisClient
	if s.redis != nil {
		defer func() {
			if err := s.redis.Close(); err != nil {
				fiberlog.Errorf("Failed to close Redis client: %v", err)
			}
		}()
	}

	if s.config.Database != nil {
		db, err := database.New(*s.config.Database)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Migrate(); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		s.db = db
		defer func() {
			if err := s.db.Close(); err != nil {
				fiberlog.Errorf("Failed to close database connection: %v", err)
			}
		}()
	}

	s.limiter = quota.NewLimiter()
	defer s.limiter.Close()

	svc, providersHandler, usageService := s.buildSynthesis()
	if s.worker != nil {
		defer s.worker.Stop()
	}

	s.setupMiddleware()
	s.setupRoutes(svc, providersHandler, usageService)

	fmt.Printf("Curricula backend starting on %s\n", listenAddr)
	fmt.Printf("   Environment: %s\n", s.config.Server.Environment)
	fmt.Printf("   Go version: %s\n", runtime.Version())
	fmt.Printf("   GOMAXPROCS: %d\n", runtime.GOMAXPROCS(0))

	return s.listenAndWait(listenAddr)
}

// buildSynthesis wires the pipeline services from configuration.
func (s *Server) buildSynthesis() (*synthesis.Service, *api.ProvidersHandler, *usage.Service) {
	reg := registry.New(s.config.Providers)

	var responseCache synthesis.ResponseCache
	if s.config.Cache.Enabled {
		rc, err := cache.New(s.config.Cache, s.config.CacheRedisURL(), s.config.Synthesis.HistoryWindow)
		if err != nil {
			fiberlog.Errorf("Response cache unavailable, continuing without it: %v", err)
		} else {
			responseCache = rc
		}
	}

	var retriever synthesis.Retriever
	if s.config.Retrieval.Enabled {
		retriever = retrieval.NewClient(s.config.Retrieval)
	}

	var usageService *usage.Service
	var recorder synthesis.UsageRecorder
	if s.db != nil {
		usageService = usage.NewService(s.db.DB)
		s.worker = usage.NewWorker(usageService, 2, 512)
		recorder = s.worker
	}

	svc := synthesis.New(synthesis.Options{
		Config:      s.config.Synthesis,
		Registry:    reg,
		Limiter:     s.limiter,
		Cache:       responseCache,
		Retriever:   retriever,
		Invoker:     providers.NewInvoker(),
		Classifier:  classifier.New(s.config.Classifier),
		Usage:       recorder,
		RedisClient: s.redis,
		TopK:        s.config.Retrieval.TopK,
	})

	return svc, api.NewProvidersHandler(reg, s.limiter, svc), usageService
}

func (s *Server) setupRoutes(svc *synthesis.Service, providersHandler *api.ProvidersHandler, usageService *usage.Service) {
	healthHandler := api.NewHealthHandler(s.redis, s.db)
	s.app.Get("/health", healthHandler.HealthCheck)

	v1 := s.app.Group("/v1")
	v1.Post("/synthesize", api.NewSynthesizeHandler(svc).Synthesize)
	v1.Get("/providers", providersHandler.List)

	if usageService != nil {
		usageHandler := api.NewUsageHandler(usageService)
		v1.Get("/usage/summary", usageHandler.Summary)
		v1.Get("/usage/recent", usageHandler.Recent)
	}

	s.app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "curricula",
			"message": "curriculum content synthesis backend",
		})
	})
}

func (s *Server) listenAndWait(listenAddr string) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := s.app.Listen(listenAddr); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		fiberlog.Infof("Received signal: %v. Starting graceful shutdown...", sig)
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shutdownErrChan := make(chan error, 1)
	go func() {
		shutdownErrChan <- s.app.ShutdownWithTimeout(30 * time.Second)
	}()

	select {
	case err := <-shutdownErrChan:
		if err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		fiberlog.Info("Server shutdown completed successfully")
	case <-shutdownCtx.Done():
		return fmt.Errorf("shutdown timeout exceeded")
	}

	return nil
}

func createRedisClient(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		fiberlog.Info("Redis not configured - circuit breakers and redis cache disabled")
		return nil, nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.PoolSize = 50
	opt.MinIdleConns = 10
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
	opt.DialTimeout = 10 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second
	opt.MaxRetries = 3

	client := redis.NewClient(opt)
	return testRedisConnectionWithRetry(client)
}

func testRedisConnectionWithRetry(client *redis.Client) (*redis.Client, error) {
	const maxAttempts = 3
	const baseDelay = 1 * time.Second

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(ctx).Err()
		cancel()

		if err == nil {
			fiberlog.Infof("Redis connection established (attempt %d/%d)", attempt, maxAttempts)
			return client, nil
		}

		fiberlog.Warnf("Redis connection failed (attempt %d/%d): %v", attempt, maxAttempts, err)
		if attempt < maxAttempts {
			time.Sleep(time.Duration(attempt) * baseDelay)
		}
	}

	if err := client.Close(); err != nil {
		fiberlog.Errorf("Failed to close Redis client after connection failures: %v", err)
	}
	return nil, fmt.Errorf("failed to connect to Redis after %d attempts", maxAttempts)
}

func createFiberApp(cfg *config.Config) *fiber.App {
	isProd := cfg.IsProduction()

	return fiber.New(fiber.Config{
		AppName:           "Curricula v1.0",
		EnablePrintRoutes: !isProd,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       5 * time.Minute,
		ReadBufferSize:    8192,
		WriteBufferSize:   8192,
		CaseSensitive:     true,
		ServerHeader:      "Curricula",
	})
}

func setupLogLevel(cfg *config.Config) {
	switch cfg.Server.LogLevel {
	case "trace":
		fiberlog.SetLevel(fiberlog.LevelTrace)
	case "debug":
		fiberlog.SetLevel(fiberlog.LevelDebug)
	case "info":
		fiberlog.SetLevel(fiberlog.LevelInfo)
	case "warn", "warning":
		fiberlog.SetLevel(fiberlog.LevelWarn)
	case "error":
		fiberlog.SetLevel(fiberlog.LevelError)
	default:
		fiberlog.SetLevel(fiberlog.LevelInfo)
		fiberlog.Warnf("Unknown log level '%s', defaulting to 'info'", cfg.Server.LogLevel)
	}
}
