package models

import "time"

// SynthesisRecord is the persisted usage row for one synthesize call.
type SynthesisRecord struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	RequestID        string `gorm:"index" json:"request_id"`
	Provider         string `gorm:"index" json:"provider"`
	Model            string `json:"model"`
	ContentType      string `json:"content_type"`
	GradeBand        string `json:"grade_band,omitzero"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	LatencyMs        int64  `json:"latency_ms"`
	CacheTier        string `json:"cache_tier,omitzero"`
	ChunksRetrieved  int    `json:"chunks_retrieved"`
	Error            string `json:"error,omitzero"`
}

// RecordSynthesisParams carries the fields of one usage row to the async writer.
type RecordSynthesisParams struct {
	RequestID        string
	Provider         string
	Model            string
	ContentType      ContentType
	GradeBand        string
	PromptTokens     int
	CompletionTokens int
	Latency          time.Duration
	CacheTier        string
	ChunksRetrieved  int
	Error            string
}
