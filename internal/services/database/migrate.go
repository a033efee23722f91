package database

import (
	"github.com/praxislearn/curricula/internal/models"
)

// Migrate prepares the synthesis_records table. ClickHouse gets explicit DDL
// because GORM's AutoMigrate misreads its column introspection; every other
// driver uses AutoMigrate.
func (db *DB) Migrate() error {
	if db.driverName != "clickhouse" {
		return db.AutoMigrate(&models.SynthesisRecord{})
	}

	tableSQL := `
	CREATE TABLE IF NOT EXISTS synthesis_records (
		id UInt64,
		created_at DateTime NOT NULL DEFAULT now(),
		request_id String NOT NULL DEFAULT '',
		provider String NOT NULL DEFAULT '',
		model String NOT NULL DEFAULT '',
		content_type String NOT NULL DEFAULT '',
		grade_band String NOT NULL DEFAULT '',
		prompt_tokens Int32 NOT NULL DEFAULT 0,
		completion_tokens Int32 NOT NULL DEFAULT 0,
		latency_ms Int64 NOT NULL DEFAULT 0,
		cache_tier String NOT NULL DEFAULT '',
		chunks_retrieved Int32 NOT NULL DEFAULT 0,
		error String NOT NULL DEFAULT ''
	) ENGINE = MergeTree()
	ORDER BY (provider, created_at)
	SETTINGS index_granularity = 8192;
	`
	if err := db.Exec(tableSQL).Error; err != nil {
		return err
	}

	indexSQL := []string{
		`CREATE INDEX IF NOT EXISTS idx_synthesis_records_request_id ON synthesis_records (request_id) TYPE minmax GRANULARITY 3`,
		`CREATE INDEX IF NOT EXISTS idx_synthesis_records_created_at ON synthesis_records (created_at) TYPE minmax GRANULARITY 3`,
	}
	for _, sql := range indexSQL {
		if err := db.Exec(sql).Error; err != nil {
			// Index may already exist on older ClickHouse versions.
			continue
		}
	}
	return nil
}
