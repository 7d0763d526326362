package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" json:"server"`
	Database DatabaseConfig `yaml:"database" json:"database"`
	Scanner  ScannerConfig  `yaml:"scanner" json:"scanner"`
	Metadata MetadataConfig `yaml:"metadata" json:"metadata"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" json:"host" env:"CURATOR_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" json:"port" env:"CURATOR_PORT" default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout" env:"CURATOR_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout" env:"CURATOR_WRITE_TIMEOUT" default:"30s"`
	EnableCORS   bool          `yaml:"enable_cors" json:"enable_cors" env:"CURATOR_ENABLE_CORS" default:"true"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Type         string `yaml:"type" json:"type" env:"DATABASE_TYPE" default:"sqlite"`
	Host         string `yaml:"host" json:"host" env:"POSTGRES_HOST" default:"localhost"`
	Port         int    `yaml:"port" json:"port" env:"POSTGRES_PORT" default:"5432"`
	Username     string `yaml:"username" json:"username" env:"POSTGRES_USER" default:"curator"`
	Password     string `yaml:"password" json:"password" env:"POSTGRES_PASSWORD"`
	Database     string `yaml:"database" json:"database" env:"POSTGRES_DB" default:"curator"`
	DataDir      string `yaml:"data_dir" json:"data_dir" env:"CURATOR_DATA_DIR" default:"./curator-data"`
	DatabasePath string `yaml:"database_path" json:"database_path" env:"CURATOR_DATABASE_PATH"`
	LogQueries   bool   `yaml:"log_queries" json:"log_queries" env:"DB_LOG_QUERIES" default:"false"`
}

// ScannerConfig holds scan pipeline configuration.
type ScannerConfig struct {
	TVBatchSize        int           `yaml:"tv_batch_size" json:"tv_batch_size" env:"CURATOR_TV_BATCH_SIZE" default:"5"`
	MovieBatchSize     int           `yaml:"movie_batch_size" json:"movie_batch_size" env:"CURATOR_MOVIE_BATCH_SIZE" default:"25"`
	StaleRunningAfter  time.Duration `yaml:"stale_running_after" json:"stale_running_after" env:"CURATOR_STALE_RUNNING_AFTER" default:"24h"`
	FailedRetention    time.Duration `yaml:"failed_retention" json:"failed_retention" env:"CURATOR_FAILED_RETENTION" default:"168h"`
	WatchLibraries     bool          `yaml:"watch_libraries" json:"watch_libraries" env:"CURATOR_WATCH_LIBRARIES" default:"false"`
	BroadRootSample    int           `yaml:"broad_root_sample" json:"broad_root_sample" env:"CURATOR_BROAD_ROOT_SAMPLE" default:"50"`
	BroadRootThreshold float64       `yaml:"broad_root_threshold" json:"broad_root_threshold" env:"CURATOR_BROAD_ROOT_THRESHOLD" default:"0.7"`
}

// MetadataConfig holds metadata provider configuration.
type MetadataConfig struct {
	Enabled            bool          `yaml:"enabled" json:"enabled" env:"CURATOR_METADATA_ENABLED" default:"true"`
	RequestsPerSec     float64       `yaml:"requests_per_sec" json:"requests_per_sec" env:"CURATOR_METADATA_RPS" default:"4"`
	Burst              int           `yaml:"burst" json:"burst" env:"CURATOR_METADATA_BURST" default:"4"`
	MaxRetries         int           `yaml:"max_retries" json:"max_retries" env:"CURATOR_METADATA_MAX_RETRIES" default:"3"`
	RequestTimeout     time.Duration `yaml:"request_timeout" json:"request_timeout" env:"CURATOR_METADATA_TIMEOUT" default:"15s"`
	PreferredSource    string        `yaml:"preferred_source" json:"preferred_source" env:"CURATOR_METADATA_SOURCE" default:"tmdb"`
	AnimePreferAniList bool          `yaml:"anime_prefer_anilist" json:"anime_prefer_anilist" env:"CURATOR_ANIME_PREFER_ANILIST" default:"true"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" env:"CURATOR_LOG_LEVEL" default:"info"`
	Format string `yaml:"format" json:"format" env:"CURATOR_LOG_FORMAT" default:"text"`
}

// Manager manages application configuration.
type Manager struct {
	config     *Config
	configPath string
	mu         sync.RWMutex
}

var (
	globalManager *Manager
	once          sync.Once
)

// GetManager returns the global configuration manager instance.
func GetManager() *Manager {
	once.Do(func() {
		globalManager = &Manager{config: DefaultConfig()}
	})
	return globalManager
}

// DefaultConfig returns the default application configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			EnableCORS:   true,
		},
		Database: DatabaseConfig{
			Type:     "sqlite",
			Host:     "localhost",
			Port:     5432,
			Username: "curator",
			Database: "curator",
			DataDir:  "./curator-data",
		},
		Scanner: ScannerConfig{
			TVBatchSize:        5,
			MovieBatchSize:     25,
			StaleRunningAfter:  24 * time.Hour,
			FailedRetention:    7 * 24 * time.Hour,
			BroadRootSample:    50,
			BroadRootThreshold: 0.7,
		},
		Metadata: MetadataConfig{
			Enabled:            true,
			RequestsPerSec:     4,
			Burst:              4,
			MaxRetries:         3,
			RequestTimeout:     15 * time.Second,
			PreferredSource:    "tmdb",
			AnimePreferAniList: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from file and environment variables.
// File values override defaults; environment variables override both.
func (m *Manager) LoadConfig(configPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	newConfig := DefaultConfig()
	m.configPath = configPath

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := yaml.Unmarshal(data, newConfig); err != nil {
				return fmt.Errorf("failed to parse config file %s: %w", configPath, err)
			}
		}
	}

	if err := loadStructFromEnv(reflect.ValueOf(newConfig).Elem()); err != nil {
		return fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := validate(newConfig); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	applyDerived(newConfig)
	m.config = newConfig
	return nil
}

// GetConfig returns a copy of the current configuration.
func (m *Manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := *m.config
	return &cp
}

func loadStructFromEnv(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}
		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := loadStructFromEnv(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}
		envValue := os.Getenv(envTag)
		if envValue == "" {
			continue
		}
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set field %s: %w", fieldType.Name, err)
		}
	}
	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	default:
		return fmt.Errorf("unsupported field type: %v", field.Kind())
	}
	return nil
}

func validate(c *Config) error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Type != "sqlite" && c.Database.Type != "postgres" {
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	if c.Scanner.TVBatchSize < 1 || c.Scanner.MovieBatchSize < 1 {
		return fmt.Errorf("batch sizes must be positive")
	}
	if c.Metadata.RequestsPerSec <= 0 {
		return fmt.Errorf("invalid metadata requests_per_sec: %f", c.Metadata.RequestsPerSec)
	}
	return nil
}

func applyDerived(c *Config) {
	if c.Database.DatabasePath == "" && c.Database.Type == "sqlite" {
		c.Database.DatabasePath = filepath.Join(c.Database.DataDir, "curator.db")
	}
}

// Get returns the current global configuration.
func Get() *Config {
	return GetManager().GetConfig()
}

// Load loads configuration from the specified path into the global manager.
func Load(configPath string) error {
	return GetManager().LoadConfig(configPath)
}
