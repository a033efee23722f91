package server

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func (s *Server) setupMiddleware() {
	app := s.app
	cfg := s.config
	isProd := cfg.IsProduction()

	// Recover must run first.
	app.Use(recover.New(recover.Config{
		EnableStackTrace: !isProd,
	}))

	rlMax, rlExpiration := 300, time.Minute
	var rlKeyFunc func(*fiber.Ctx) string
	if s.builder != nil && s.builder.GetRateLimitConfig() != nil {
		rlCfg := s.builder.GetRateLimitConfig()
		rlMax, rlExpiration, rlKeyFunc = rlCfg.Max, rlCfg.Expiration, rlCfg.KeyFunc
	}
	if rlKeyFunc == nil {
		rlKeyFunc = func(c *fiber.Ctx) string { return c.IP() }
	}
	app.Use(limiter.New(limiter.Config{
		Max:               rlMax,
		Expiration:        rlExpiration,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      rlKeyFunc,
		LimitReached: func(c *fiber.Ctx) error {
			return fmt.Errorf("%d requests per %v", rlMax, rlExpiration)
		},
	}))

	// Per-request deadline. Synthesis runs long, so the ceiling is generous.
	requestTimeout := 2 * time.Minute
	if s.builder != nil && s.builder.GetTimeoutConfig() != nil {
		requestTimeout = s.builder.GetTimeoutConfig().Timeout
	}
	app.Use(func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	})

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	if isProd {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${status} ${method} ${path} ${latency} ${bytesSent}b\n",
			Output: os.Stdout,
		}))
	} else {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path} ${error}\n",
			Output: os.Stdout,
		}))
	}

	allowedOrigins := cfg.Server.AllowedOrigins
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:  allowedOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, User-Agent",
		AllowMethods:  "GET, POST, OPTIONS",
		MaxAge:        86400,
		ExposeHeaders: "Content-Length, Content-Type, X-Request-ID",
	}))

	if s.builder != nil {
		for _, middleware := range s.builder.GetMiddlewares() {
			app.Use(middleware)
		}
	}

	if !isProd {
		app.Use(pprof.New())
	}
}
