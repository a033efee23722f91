package registry

import (
	"testing"

	"github.com/praxislearn/curricula/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProviders() map[string]models.ProviderConfig {
	return map[string]models.ProviderConfig{
		"gemini":     {Kind: models.ProviderKindGemini, APIKey: "k1", Model: "gemini-2.0-flash", Tier: 0},
		"groq":       {Kind: models.ProviderKindOpenAI, APIKey: "k2", BaseURL: "https://api.groq.com/openai/v1", Model: "llama-3.3-70b-versatile", Tier: 1},
		"deepseek":   {Kind: models.ProviderKindOpenAI, APIKey: "k3", BaseURL: "https://api.deepseek.com/v1", Model: "deepseek-chat", Tier: 1},
		"openrouter": {Kind: models.ProviderKindOpenAI, APIKey: "", BaseURL: "https://openrouter.ai/api/v1", Model: "auto", Tier: 2},
	}
}

func names(ds []Descriptor) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Name
	}
	return out
}

func TestCandidatesTierOrder(t *testing.T) {
	r := New(testProviders())

	got := names(r.Candidates(""))
	// tier 0 first, ties broken by name; openrouter has no key and is skipped
	assert.Equal(t, []string{"gemini", "deepseek", "groq"}, got)
}

func TestCandidatesPreferredFirst(t *testing.T) {
	r := New(testProviders())

	got := names(r.Candidates("groq"))
	assert.Equal(t, []string{"groq", "gemini", "deepseek"}, got)
}

func TestCandidatesIgnoresIneligiblePreferred(t *testing.T) {
	r := New(testProviders())

	// disabled provider
	assert.Equal(t, []string{"gemini", "deepseek", "groq"}, names(r.Candidates("openrouter")))
	// unknown provider
	assert.Equal(t, []string{"gemini", "deepseek", "groq"}, names(r.Candidates("nova")))
}

func TestGetIsCaseInsensitive(t *testing.T) {
	r := New(testProviders())

	d, ok := r.Get("GROQ")
	require.True(t, ok)
	assert.Equal(t, "groq", d.Name)
	assert.True(t, d.Enabled())

	d, ok = r.Get("openrouter")
	require.True(t, ok)
	assert.False(t, d.Enabled())
}
