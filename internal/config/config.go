// Package config provides configuration management for patternmine.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

const (
	// DefaultWorkerPort is the default HTTP port for the worker service.
	DefaultWorkerPort = 38600

	// DefaultEmbeddingModel is the registry version of the default embedding model.
	DefaultEmbeddingModel = "minilm-rest"

	// DefaultEmbeddingDimensions matches all-MiniLM-L6-v2 output.
	DefaultEmbeddingDimensions = 384
)

// Config holds the application configuration.
type Config struct {
	// Worker settings
	WorkerPort int `json:"worker_port"`

	// Storage settings. Backend is one of "sqlite", "postgres", "redis".
	Backend     string `json:"backend"`
	DBPath      string `json:"db_path"`
	MaxConns    int    `json:"max_conns"`
	PostgresDSN string `json:"postgres_dsn"`
	RedisAddr   string `json:"redis_addr"`

	// Embedding model endpoint (OpenAI-compatible /embeddings API).
	EmbeddingModel      string `json:"embedding_model"`
	EmbeddingBaseURL    string `json:"embedding_base_url"`
	EmbeddingAPIKey     string `json:"embedding_api_key"`
	EmbeddingModelName  string `json:"embedding_model_name"`
	EmbeddingDimensions int    `json:"embedding_dimensions"`

	// Translation model endpoint (LibreTranslate-compatible /translate API).
	TranslationBaseURL string `json:"translation_base_url"`
	TranslationAPIKey  string `json:"translation_api_key"`

	// Default clustering behavior, overridable per request.
	SimilarityThreshold float64 `json:"similarity_threshold"`
	TimeWindowHours     float64 `json:"time_window_hours"`
	MinClusterSize      int     `json:"min_cluster_size"`
	UseEmbeddings       bool    `json:"use_embeddings"`
	SkipTranslation     bool    `json:"skip_translation"`
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// DataDir returns the data directory path (~/.patternmine).
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".patternmine")
}

// DBPath returns the default database file path.
func DBPath() string {
	return filepath.Join(DataDir(), "patternmine.db")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		WorkerPort:          DefaultWorkerPort,
		Backend:             "sqlite",
		DBPath:              DBPath(),
		MaxConns:            4,
		EmbeddingModel:      DefaultEmbeddingModel,
		EmbeddingDimensions: DefaultEmbeddingDimensions,
		SimilarityThreshold: 0.65,
		TimeWindowHours:     24,
		MinClusterSize:      1,
		UseEmbeddings:       true,
	}
}

// Load loads configuration from the settings file, merging with defaults.
// Environment variables take precedence over the settings file.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		var settings map[string]interface{}
		if err := json.Unmarshal(data, &settings); err == nil {
			applySettings(cfg, settings)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applySettings(cfg *Config, settings map[string]interface{}) {
	if v, ok := settings["PATTERNMINE_WORKER_PORT"].(float64); ok && v > 0 {
		cfg.WorkerPort = int(v)
	}
	if v, ok := settings["PATTERNMINE_BACKEND"].(string); ok && v != "" {
		cfg.Backend = v
	}
	if v, ok := settings["PATTERNMINE_DB_PATH"].(string); ok && v != "" {
		cfg.DBPath = v
	}
	if v, ok := settings["PATTERNMINE_MAX_CONNS"].(float64); ok && v > 0 {
		cfg.MaxConns = int(v)
	}
	if v, ok := settings["PATTERNMINE_POSTGRES_DSN"].(string); ok && v != "" {
		cfg.PostgresDSN = v
	}
	if v, ok := settings["PATTERNMINE_REDIS_ADDR"].(string); ok && v != "" {
		cfg.RedisAddr = v
	}
	if v, ok := settings["PATTERNMINE_EMBEDDING_MODEL"].(string); ok && v != "" {
		cfg.EmbeddingModel = v
	}
	if v, ok := settings["PATTERNMINE_EMBEDDING_BASE_URL"].(string); ok && v != "" {
		cfg.EmbeddingBaseURL = v
	}
	if v, ok := settings["PATTERNMINE_EMBEDDING_API_KEY"].(string); ok && v != "" {
		cfg.EmbeddingAPIKey = v
	}
	if v, ok := settings["PATTERNMINE_EMBEDDING_MODEL_NAME"].(string); ok && v != "" {
		cfg.EmbeddingModelName = v
	}
	if v, ok := settings["PATTERNMINE_EMBEDDING_DIMENSIONS"].(float64); ok && v > 0 {
		cfg.EmbeddingDimensions = int(v)
	}
	if v, ok := settings["PATTERNMINE_TRANSLATION_BASE_URL"].(string); ok && v != "" {
		cfg.TranslationBaseURL = v
	}
	if v, ok := settings["PATTERNMINE_TRANSLATION_API_KEY"].(string); ok && v != "" {
		cfg.TranslationAPIKey = v
	}
	if v, ok := settings["PATTERNMINE_SIMILARITY_THRESHOLD"].(float64); ok && v > 0 && v <= 1 {
		cfg.SimilarityThreshold = v
	}
	if v, ok := settings["PATTERNMINE_TIME_WINDOW_HOURS"].(float64); ok && v > 0 {
		cfg.TimeWindowHours = v
	}
	if v, ok := settings["PATTERNMINE_MIN_CLUSTER_SIZE"].(float64); ok && v > 0 {
		cfg.MinClusterSize = int(v)
	}
	if v, ok := settings["PATTERNMINE_USE_EMBEDDINGS"].(bool); ok {
		cfg.UseEmbeddings = v
	}
	if v, ok := settings["PATTERNMINE_SKIP_TRANSLATION"].(bool); ok {
		cfg.SkipTranslation = v
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PATTERNMINE_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv("PATTERNMINE_POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("PATTERNMINE_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("PATTERNMINE_EMBEDDING_BASE_URL"); v != "" {
		cfg.EmbeddingBaseURL = v
	}
	if v := os.Getenv("PATTERNMINE_EMBEDDING_API_KEY"); v != "" {
		cfg.EmbeddingAPIKey = v
	}
	if v := os.Getenv("PATTERNMINE_TRANSLATION_BASE_URL"); v != "" {
		cfg.TranslationBaseURL = v
	}
	if v := os.Getenv("PATTERNMINE_TRANSLATION_API_KEY"); v != "" {
		cfg.TranslationAPIKey = v
	}
}

// Get returns the global configuration, loading it if necessary.
func Get() *Config {
	configOnce.Do(func() {
		var err error
		globalConfig, err = Load()
		if err != nil {
			globalConfig = Default()
		}
	})

	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

// Reload re-reads the settings file and swaps the global configuration.
// Used by the settings watcher.
func Reload() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	configMu.Lock()
	globalConfig = cfg
	configMu.Unlock()
	return cfg, nil
}

// GetEmbeddingBaseURL returns the embedding endpoint base URL.
func GetEmbeddingBaseURL() string { return Get().EmbeddingBaseURL }

// GetEmbeddingAPIKey returns the embedding endpoint API key.
func GetEmbeddingAPIKey() string { return Get().EmbeddingAPIKey }

// GetEmbeddingModelName returns the upstream model name to request.
func GetEmbeddingModelName() string { return Get().EmbeddingModelName }

// GetEmbeddingDimensions returns the expected embedding vector size.
func GetEmbeddingDimensions() int { return Get().EmbeddingDimensions }

// GetTranslationBaseURL returns the translation endpoint base URL.
func GetTranslationBaseURL() string { return Get().TranslationBaseURL }

// GetTranslationAPIKey returns the translation endpoint API key.
func GetTranslationAPIKey() string { return Get().TranslationAPIKey }
