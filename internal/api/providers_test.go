package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/praxislearn/curricula/internal/models"
	"github.com/praxislearn/curricula/internal/services/quota"
	"github.com/praxislearn/curricula/internal/services/registry"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvidersListReportsQuotaAndState(t *testing.T) {
	reg := registry.New(map[string]models.ProviderConfig{
		"gemini": {Kind: models.ProviderKindGemini, APIKey: "k", Model: "gemini-2.0-flash", Tier: 1, RateLimitRPM: 10, RateLimitRPD: 200},
		"groq":   {Kind: models.ProviderKindOpenAI, Tier: 2}, // no key, disabled
	})
	limiter := quota.NewLimiter()
	defer limiter.Close()
	limiter.Record("gemini")

	app := fiber.New()
	app.Get("/v1/providers", NewProvidersHandler(reg, limiter, nil).List)

	req := httptest.NewRequest(http.MethodGet, "/v1/providers", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Providers []providerStatus `json:"providers"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Providers, 2)

	gemini := body.Providers[0]
	assert.Equal(t, "gemini", gemini.Name)
	assert.True(t, gemini.Enabled)
	assert.Equal(t, "Closed", gemini.CircuitState)
	assert.Equal(t, 9, gemini.RemainingMinute)
	assert.Equal(t, 199, gemini.RemainingDay)

	groq := body.Providers[1]
	assert.Equal(t, "groq", groq.Name)
	assert.False(t, groq.Enabled)
	assert.Equal(t, -1, groq.RemainingMinute)
}
