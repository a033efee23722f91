package api

import (
	"github.com/praxislearn/curricula/internal/services/circuitbreaker"
	"github.com/praxislearn/curricula/internal/services/quota"
	"github.com/praxislearn/curricula/internal/services/registry"

	"github.com/gofiber/fiber/v2"
)

// BreakerInspector reports the circuit state for a provider.
type BreakerInspector interface {
	BreakerState(provider string) circuitbreaker.State
}

// ProvidersHandler exposes the provider table with live quota and circuit
// state, for operators deciding which free tier is burning down.
type ProvidersHandler struct {
	registry *registry.Registry
	limiter  *quota.Limiter
	breakers BreakerInspector
}

func NewProvidersHandler(reg *registry.Registry, limiter *quota.Limiter, breakers BreakerInspector) *ProvidersHandler {
	return &ProvidersHandler{registry: reg, limiter: limiter, breakers: breakers}
}

type providerStatus struct {
	Name            string `json:"name"`
	Kind            string `json:"kind"`
	Model           string `json:"model"`
	Tier            int    `json:"tier"`
	Enabled         bool   `json:"enabled"`
	CircuitState    string `json:"circuit_state"`
	RemainingMinute int    `json:"remaining_minute"` // -1 means unlimited
	RemainingDay    int    `json:"remaining_day"`
	RateLimitRPM    int    `json:"rate_limit_rpm"`
	RateLimitRPD    int    `json:"rate_limit_rpd"`
}

// List returns every configured provider in selection order.
func (h *ProvidersHandler) List(c *fiber.Ctx) error {
	descriptors := h.registry.All()
	out := make([]providerStatus, 0, len(descriptors))

	for _, d := range descriptors {
		minute, day := h.limiter.Remaining(d.Name, d.RateLimitRPM, d.RateLimitRPD)
		state := circuitbreaker.Closed
		if h.breakers != nil {
			state = h.breakers.BreakerState(d.Name)
		}
		out = append(out, providerStatus{
			Name:            d.Name,
			Kind:            string(d.Kind),
			Model:           d.Model,
			Tier:            d.Tier,
			Enabled:         d.Enabled(),
			CircuitState:    state.String(),
			RemainingMinute: minute,
			RemainingDay:    day,
			RateLimitRPM:    d.RateLimitRPM,
			RateLimitRPD:    d.RateLimitRPD,
		})
	}

	return c.JSON(fiber.Map{"providers": out})
}
