// Package api holds the Fiber HTTP handlers.
package api

import (
	"context"
	"strings"

	"github.com/praxislearn/curricula/internal/models"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Synthesizer runs one synthesis pipeline invocation.
type Synthesizer interface {
	Synthesize(ctx context.Context, req *models.SynthesisRequest) (*models.SynthesisResponse, error)
}

// SynthesizeHandler handles content synthesis requests end-to-end.
type SynthesizeHandler struct {
	svc Synthesizer
}

func NewSynthesizeHandler(svc Synthesizer) *SynthesizeHandler {
	return &SynthesizeHandler{svc: svc}
}

// Synthesize parses the request body, runs the pipeline, and writes the
// answer or a sanitized error.
func (h *SynthesizeHandler) Synthesize(c *fiber.Ctx) error {
	var req models.SynthesisRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, models.NewValidationError("invalid request body", err))
	}
	if strings.TrimSpace(req.Query) == "" {
		return writeError(c, models.NewValidationError("query must not be empty", nil))
	}
	for i, turn := range req.History {
		if turn.Role != "user" && turn.Role != "assistant" {
			return writeError(c, models.NewValidationError("history role must be user or assistant", nil))
		}
		req.History[i].Content = strings.TrimSpace(turn.Content)
	}

	resp, err := h.svc.Synthesize(c.UserContext(), &req)
	if err != nil {
		fiberlog.Warnf("Synthesize request failed: %v", err)
		return writeError(c, err)
	}
	return c.JSON(resp)
}

// writeError maps application errors to HTTP responses without leaking
// internal causes.
func writeError(c *fiber.Ctx, err error) error {
	appErr := models.SanitizeError(err)
	return c.Status(appErr.GetStatusCode()).JSON(fiber.Map{"error": appErr})
}
