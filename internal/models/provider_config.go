package models

// ProviderKind identifies which SDK surface a provider speaks.
type ProviderKind string

const (
	// ProviderKindOpenAI covers every OpenAI-compatible chat completion API
	// (Groq, DeepSeek, Cerebras, SambaNova, OpenRouter, Hyperbolic, ...).
	ProviderKindOpenAI ProviderKind = "openai"
	// ProviderKindGemini uses the native Gemini SDK.
	ProviderKindGemini ProviderKind = "gemini"
	// ProviderKindAnthropic uses the native Anthropic Messages SDK.
	ProviderKindAnthropic ProviderKind = "anthropic"
)

// ProviderConfig holds the static descriptor for one upstream LLM provider.
// A provider is enabled iff an API key is configured for it.
type ProviderConfig struct {
	Kind         ProviderKind      `yaml:"kind" json:"kind"`
	APIKey       string            `yaml:"api_key" json:"api_key,omitzero"`
	BaseURL      string            `yaml:"base_url" json:"base_url,omitzero"` // Optional custom base URL (required for openai kind)
	Model        string            `yaml:"model" json:"model"`                // Model id sent upstream
	Tier         int               `yaml:"tier" json:"tier,omitzero"`         // Priority tier, lower tries first
	RateLimitRPM int               `yaml:"rate_limit_rpm" json:"rate_limit_rpm,omitzero"`
	RateLimitRPD int               `yaml:"rate_limit_rpd" json:"rate_limit_rpd,omitzero"`
	TimeoutMs    int               `yaml:"timeout_ms" json:"timeout_ms,omitzero"`
	MaxTokens    int               `yaml:"max_tokens" json:"max_tokens,omitzero"`
	Headers      map[string]string `yaml:"headers" json:"headers,omitzero"` // Optional custom headers
}
