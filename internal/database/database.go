package database

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/curatorapp/curator/internal/config"
	"github.com/curatorapp/curator/internal/logger"
)

var DB *gorm.DB

// Initialize sets up the database connection from configuration and runs
// schema migration.
func Initialize(cfg *config.Config) error {
	var err error

	logMode := gormlogger.Warn
	if cfg.Database.LogQueries {
		logMode = gormlogger.Info
	}

	switch cfg.Database.Type {
	case "postgres":
		DB, err = connectPostgres(cfg, logMode)
	case "sqlite":
		DB, err = connectSQLite(cfg, logMode)
	default:
		return fmt.Errorf("unsupported database type: %s", cfg.Database.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(DB); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("Database initialized with %s", cfg.Database.Type)
	return nil
}

// Migrate runs AutoMigrate for all models.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&ScanJob{},
		&Collection{},
		&Media{},
		&Movie{},
		&TVShow{},
		&Season{},
		&Episode{},
		&Music{},
		&Comic{},
		&MediaCollection{},
		&ExternalID{},
		&Genre{},
		&MediaGenre{},
		&Setting{},
	)
}

func connectPostgres(cfg *config.Config, logMode gormlogger.LogLevel) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
		cfg.Database.Host, cfg.Database.Username, cfg.Database.Password, cfg.Database.Database, cfg.Database.Port)
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logMode),
	})
}

func connectSQLite(cfg *config.Config, logMode gormlogger.LogLevel) (*gorm.DB, error) {
	dbPath := cfg.Database.DatabasePath
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	return gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logMode),
	})
}

// GetDB returns the database instance.
func GetDB() *gorm.DB {
	return DB
}
