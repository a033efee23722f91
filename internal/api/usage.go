package api

import (
	"strconv"
	"time"

	"github.com/praxislearn/curricula/internal/models"
	"github.com/praxislearn/curricula/internal/services/usage"

	"github.com/gofiber/fiber/v2"
)

// UsageHandler exposes usage accounting reads.
type UsageHandler struct {
	svc *usage.Service
}

func NewUsageHandler(svc *usage.Service) *UsageHandler {
	return &UsageHandler{svc: svc}
}

// Summary aggregates per-provider usage over a window (default 24h).
func (h *UsageHandler) Summary(c *fiber.Ctx) error {
	window := 24 * time.Hour
	if raw := c.Query("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return writeError(c, models.NewValidationError("window must be a positive duration like 1h", err))
		}
		window = parsed
	}

	summaries, err := h.svc.SummaryByProvider(c.UserContext(), window)
	if err != nil {
		return writeError(c, models.NewInternalError("failed to summarize usage", err))
	}
	return c.JSON(fiber.Map{"window": window.String(), "providers": summaries})
}

// Recent lists the newest usage rows (default 50, max 500).
func (h *UsageHandler) Recent(c *fiber.Ctx) error {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return writeError(c, models.NewValidationError("limit must be a positive integer", err))
		}
		limit = min(parsed, 500)
	}

	rows, err := h.svc.Recent(c.UserContext(), limit)
	if err != nil {
		return writeError(c, models.NewInternalError("failed to load usage", err))
	}
	return c.JSON(fiber.Map{"records": rows})
}
