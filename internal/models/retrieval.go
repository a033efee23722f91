package models

// Chunk is one retrieved document passage from the hosted vector database.
type Chunk struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	Score     float64  `json:"score"`
	Document  string   `json:"document,omitzero"`   // Source document name
	GradeBand string   `json:"grade_band,omitzero"` // Grade band metadata, if indexed
	SLOCodes  []string `json:"slo_codes,omitzero"`  // Curriculum-standard codes found in the chunk
}

// RetrievalConfig points at the hosted vector database used for grounding.
// Retrieval is a pass-through: embedding and search both happen upstream.
type RetrievalConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled,omitzero"`
	BaseURL   string `yaml:"base_url" json:"base_url,omitzero"` // Data-plane host of the index
	APIKey    string `yaml:"api_key" json:"api_key,omitzero"`
	Namespace string `yaml:"namespace" json:"namespace,omitzero"`
	TopK      int    `yaml:"top_k" json:"top_k,omitzero"`
	TimeoutMs int    `yaml:"timeout_ms" json:"timeout_ms,omitzero"`

	// Payload field carrying the chunk text in record metadata. Default: "content".
	ContentField string `yaml:"content_field" json:"content_field,omitzero"`
}
