package models

import "time"

// Cache tier constants reported on cache hits
const (
	CacheTierExact           = "exact"
	CacheTierSemanticExact   = "semantic_exact"
	CacheTierSemanticSimilar = "semantic_similar"
)

// ContentType is the pedagogical intent label assigned by the query analyzer.
// It selects which prompt template the synthesizer uses.
type ContentType string

const (
	ContentTypeExplanation     ContentType = "explanation"
	ContentTypeLessonPlan      ContentType = "lesson_plan"
	ContentTypeAssessment      ContentType = "assessment"
	ContentTypeWorksheet       ContentType = "worksheet"
	ContentTypeRubric          ContentType = "rubric"
	ContentTypeDifferentiation ContentType = "differentiation"
	ContentTypeGeneral         ContentType = "general"
)

// HistoryTurn is one prior turn of the tutoring conversation.
type HistoryTurn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// SynthesisRequest is a curriculum question plus its conversational context.
type SynthesisRequest struct {
	Query             string        `json:"query"`
	History           []HistoryTurn `json:"history,omitzero"`
	SystemInstruction string        `json:"system_instruction,omitzero"`
	PreferredProvider string        `json:"preferred_provider,omitzero"`
	GradeBand         string        `json:"grade_band,omitzero"` // e.g. "K-2", "3-5", "6-8", "9-12"
	SkipCache         bool          `json:"skip_cache,omitzero"`
}

// SynthesisResponse is the synthesized answer and where it came from.
type SynthesisResponse struct {
	Text         string      `json:"text"`
	ProviderUsed string      `json:"provider_used"`
	Model        string      `json:"model,omitzero"`
	ContentType  ContentType `json:"content_type,omitzero"`
	SLOCodes     []string    `json:"slo_codes,omitzero"`
	Sources      []Source    `json:"sources,omitzero"`
	CacheTier    string      `json:"cache_tier,omitzero"` // Empty when the answer was freshly generated
	Usage        TokenUsage  `json:"usage,omitzero"`
}

// Source cites one retrieved document chunk the answer was grounded on.
type Source struct {
	Document string  `json:"document"`
	Score    float64 `json:"score,omitzero"`
}

// TokenUsage reports upstream token accounting for a generation.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitzero"`
	CompletionTokens int `json:"completion_tokens,omitzero"`
}

// Generation is the raw result of one provider invocation.
type Generation struct {
	Text    string
	Usage   TokenUsage
	Latency time.Duration
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	FailureThreshold int `json:"failure_threshold,omitzero" yaml:"failure_threshold,omitempty"` // Number of failures before opening circuit
	SuccessThreshold int `json:"success_threshold,omitzero" yaml:"success_threshold,omitempty"` // Number of successes to close circuit
	TimeoutMs        int `json:"timeout_ms,omitzero" yaml:"timeout_ms,omitempty"`               // Time a tripped provider stays blacklisted
}

// SynthesisConfig tunes the orchestration loop.
type SynthesisConfig struct {
	TimeoutMs      int                   `yaml:"timeout_ms" json:"timeout_ms,omitzero"`           // Overall deadline for one synthesize call
	QueueDelayMs   int                   `yaml:"queue_delay_ms" json:"queue_delay_ms,omitzero"`   // Fixed inter-request delay before upstream calls
	HistoryWindow  int                   `yaml:"history_window" json:"history_window,omitzero"`   // Turns of history folded into the cache key
	TokenBudget    int                   `yaml:"token_budget" json:"token_budget,omitzero"`       // Prompt assembly budget for history trimming
	CircuitBreaker *CircuitBreakerConfig `yaml:"circuit_breaker" json:"circuit_breaker,omitzero"` // Provider failure blacklist settings
}
