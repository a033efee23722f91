// Package usage persists per-request synthesis accounting rows.
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/praxislearn/curricula/internal/models"
	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(&models.SynthesisRecord{})
}

func (s *Service) RecordSynthesis(ctx context.Context, params models.RecordSynthesisParams) (*models.SynthesisRecord, error) {
	record := models.SynthesisRecord{
		RequestID:        params.RequestID,
		Provider:         params.Provider,
		Model:            params.Model,
		ContentType:      string(params.ContentType),
		GradeBand:        params.GradeBand,
		PromptTokens:     params.PromptTokens,
		CompletionTokens: params.CompletionTokens,
		LatencyMs:        params.Latency.Milliseconds(),
		CacheTier:        params.CacheTier,
		ChunksRetrieved:  params.ChunksRetrieved,
		Error:            params.Error,
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to record synthesis usage: %w", err)
	}
	return &record, nil
}

// ProviderSummary aggregates usage for one provider over a window.
type ProviderSummary struct {
	Provider         string `json:"provider"`
	Requests         int64  `json:"requests"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
	AvgLatencyMs     int64  `json:"avg_latency_ms"`
	Errors           int64  `json:"errors"`
	CacheHits        int64  `json:"cache_hits"`
}

// SummaryByProvider aggregates the last `window` of usage per provider.
func (s *Service) SummaryByProvider(ctx context.Context, window time.Duration) ([]ProviderSummary, error) {
	since := time.Now().Add(-window)
	var out []ProviderSummary

	err := s.db.WithContext(ctx).
		Model(&models.SynthesisRecord{}).
		Select(`provider,
			COUNT(*) AS requests,
			COALESCE(SUM(prompt_tokens), 0) AS prompt_tokens,
			COALESCE(SUM(completion_tokens), 0) AS completion_tokens,
			COALESCE(AVG(latency_ms), 0) AS avg_latency_ms,
			COALESCE(SUM(CASE WHEN error <> '' THEN 1 ELSE 0 END), 0) AS errors,
			COALESCE(SUM(CASE WHEN cache_tier <> '' THEN 1 ELSE 0 END), 0) AS cache_hits`).
		Where("created_at >= ?", since).
		Group("provider").
		Order("requests DESC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to summarize usage: %w", err)
	}
	return out, nil
}

// Recent returns the newest usage rows, for the admin surface.
func (s *Service) Recent(ctx context.Context, limit int) ([]models.SynthesisRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.SynthesisRecord
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent usage: %w", err)
	}
	return rows, nil
}
