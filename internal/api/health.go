package api

import (
	"context"
	"time"

	"github.com/praxislearn/curricula/internal/services/database"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports service and dependency health.
type HealthHandler struct {
	redisClient *redis.Client
	db          *database.DB
}

func NewHealthHandler(redisClient *redis.Client, db *database.DB) *HealthHandler {
	return &HealthHandler{redisClient: redisClient, db: db}
}

// HealthCheck returns 200 when every configured dependency responds, 503
// otherwise. Dependencies that are not configured report "disabled" and do
// not degrade the service.
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	redisStatus := h.checkRedis()
	dbStatus := h.checkDatabase()

	overallStatus := "healthy"
	statusCode := fiber.StatusOK
	if redisStatus == "unhealthy" || dbStatus == "unhealthy" {
		overallStatus = "degraded"
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks": fiber.Map{
			"redis":    redisStatus,
			"database": dbStatus,
		},
	})
}

func (h *HealthHandler) checkRedis() string {
	if h.redisClient == nil {
		return "disabled"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		return "unhealthy"
	}
	return "healthy"
}

func (h *HealthHandler) checkDatabase() string {
	if h.db == nil {
		return "disabled"
	}
	if err := h.db.Ping(); err != nil {
		return "unhealthy"
	}
	return "healthy"
}
