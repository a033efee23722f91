package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/praxislearn/curricula/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSynthesizer struct {
	resp *models.SynthesisResponse
	err  error
	got  *models.SynthesisRequest
}

func (s *stubSynthesizer) Synthesize(_ context.Context, req *models.SynthesisRequest) (*models.SynthesisResponse, error) {
	s.got = req
	return s.resp, s.err
}

func newSynthesizeApp(svc Synthesizer) *fiber.App {
	app := fiber.New()
	app.Post("/v1/synthesize", NewSynthesizeHandler(svc).Synthesize)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestSynthesizeReturnsAnswer(t *testing.T) {
	svc := &stubSynthesizer{resp: &models.SynthesisResponse{
		Text:         "Photosynthesis converts light into chemical energy.",
		ProviderUsed: "gemini",
		ContentType:  models.ContentTypeExplanation,
	}}
	app := newSynthesizeApp(svc)

	resp := postJSON(t, app, "/v1/synthesize", `{
		"query": "explain photosynthesis",
		"history": [{"role": "user", "content": "hi"}, {"role": "assistant", "content": "hello"}],
		"preferred_provider": "gemini"
	}`)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body models.SynthesisResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "gemini", body.ProviderUsed)
	assert.Equal(t, models.ContentTypeExplanation, body.ContentType)

	require.NotNil(t, svc.got)
	assert.Equal(t, "explain photosynthesis", svc.got.Query)
	assert.Equal(t, "gemini", svc.got.PreferredProvider)
	assert.Len(t, svc.got.History, 2)
}

func TestSynthesizeRejectsMalformedBody(t *testing.T) {
	app := newSynthesizeApp(&stubSynthesizer{})

	resp := postJSON(t, app, "/v1/synthesize", `{"query": `)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSynthesizeRejectsBlankQuery(t *testing.T) {
	app := newSynthesizeApp(&stubSynthesizer{})

	resp := postJSON(t, app, "/v1/synthesize", `{"query": "   "}`)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSynthesizeRejectsUnknownHistoryRole(t *testing.T) {
	app := newSynthesizeApp(&stubSynthesizer{})

	resp := postJSON(t, app, "/v1/synthesize", `{
		"query": "explain photosynthesis",
		"history": [{"role": "system", "content": "x"}]
	}`)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSynthesizeMapsPipelineErrorsToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"exhausted", models.NewExhaustedError(3, nil), http.StatusBadGateway},
		{"timeout", models.NewTimeoutError("synthesize", nil), http.StatusGatewayTimeout},
		{"rate limit", models.NewRateLimitError("gemini"), http.StatusTooManyRequests},
		{"unexpected", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newSynthesizeApp(&stubSynthesizer{err: tt.err})

			resp := postJSON(t, app, "/v1/synthesize", `{"query": "explain photosynthesis"}`)
			defer resp.Body.Close()

			assert.Equal(t, tt.want, resp.StatusCode)

			var body struct {
				Error models.AppError `json:"error"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.NotEmpty(t, body.Error.Message)
		})
	}
}
