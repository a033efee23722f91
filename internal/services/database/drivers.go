package database

import (
	"fmt"

	"github.com/praxislearn/curricula/internal/models"
	"gorm.io/driver/clickhouse"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func open(config models.DatabaseConfig) (*gorm.DB, string, error) {
	switch config.Type {
	case models.SQLite:
		return openSQLite(config)
	case models.PostgreSQL:
		return openPostgreSQL(config)
	case models.MySQL:
		return openMySQL(config)
	case models.ClickHouse:
		return openClickHouse(config)
	default:
		return nil, "", fmt.Errorf("unsupported database type: %s", config.Type)
	}
}

func openSQLite(config models.DatabaseConfig) (*gorm.DB, string, error) {
	if config.FilePath == "" {
		return nil, "", fmt.Errorf("file_path is required for SQLite")
	}
	db, err := gorm.Open(sqlite.Open(config.FilePath), &gorm.Config{})
	if err != nil {
		return nil, "", fmt.Errorf("failed to open SQLite connection: %w", err)
	}
	return db, "sqlite3", nil
}

func openPostgreSQL(config models.DatabaseConfig) (*gorm.DB, string, error) {
	dsn := config.DSN
	if dsn == "" {
		sslMode := config.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			config.Host, config.Port, config.Username, config.Password, config.Database, sslMode)
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, "", fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}
	return db, "postgres", nil
}

func openMySQL(config models.DatabaseConfig) (*gorm.DB, string, error) {
	dsn := config.DSN
	if dsn == "" {
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			config.Username, config.Password, config.Host, config.Port, config.Database)
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, "", fmt.Errorf("failed to open MySQL connection: %w", err)
	}
	return db, "mysql", nil
}

func openClickHouse(config models.DatabaseConfig) (*gorm.DB, string, error) {
	dsn := config.DSN
	if dsn == "" {
		dsn = fmt.Sprintf("clickhouse://%s:%s@%s:%d/%s",
			config.Username, config.Password, config.Host, config.Port, config.Database)
	}
	db, err := gorm.Open(clickhouse.New(clickhouse.Config{
		DSN:                    dsn,
		DefaultGranularity:     3,
		DefaultCompression:     "LZ4",
		DefaultIndexType:       "minmax",
		DefaultTableEngineOpts: "ENGINE=MergeTree() ORDER BY id",
	}), &gorm.Config{
		// The ClickHouse driver mishandles prepared statements on SELECT.
		// See: https://github.com/go-gorm/gorm/issues/7493
		PrepareStmt: false,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to open ClickHouse connection: %w", err)
	}
	return db, "clickhouse", nil
}
