// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.caduceus/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider, generation model, temperature, max tokens
//   - Embedding: embedder model and vector dimension
//   - Storage: vector snapshot directory, source/chat database path
//   - Indexing: persistence cadence, retrieval depth
//
// Validation is fail-fast: Load returns an error immediately when any value
// is out of range, using sentinel errors that callers check with errors.Is.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidDimension indicates the embedding dimension is out of range.
	ErrInvalidDimension = errors.New("invalid embedding dimension")

	// ErrInvalidBatchSize indicates the snapshot cadence is out of range.
	ErrInvalidBatchSize = errors.New("invalid batch size")

	// ErrInvalidTopK indicates the retrieval depth is out of range.
	ErrInvalidTopK = errors.New("invalid top k")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 supports truncation to 768 dimensions via
	// OutputDimensionality; the vector snapshots store whatever dimension
	// is configured here, so changing it requires re-indexing.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultDimension is the default embedding vector dimension.
	DefaultDimension = 768

	// DefaultBatchSize is the number of vector insertions between
	// snapshot writes during indexing.
	DefaultBatchSize = 100

	// DefaultTopK is the number of passages retrieved for a grounded answer.
	DefaultTopK = 7
)

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration
	Provider    string  `mapstructure:"provider"`
	ModelName   string  `mapstructure:"model_name"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host"`

	// Embedding configuration
	EmbedderModel string `mapstructure:"embedder_model"`
	Dimension     int    `mapstructure:"dimension"`

	// Storage configuration
	VectorDir    string `mapstructure:"vector_dir"`    // snapshot directory for the similarity index
	DatabasePath string `mapstructure:"database_path"` // sqlite database (sources, chats)
	SourceDir    string `mapstructure:"source_dir"`    // where uploaded source files live

	// Indexing and retrieval tuning
	BatchSize int `mapstructure:"batch_size"` // persist snapshots every N insertions
	TopK      int `mapstructure:"top_k"`      // retrieval depth for grounded answers
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".caduceus")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults(configDir)

	viper.SetEnvPrefix("CADUCEUS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is not an error, defaults apply
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(configDir string) {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("temperature", 0.1)
	viper.SetDefault("max_tokens", 2048)

	// Ollama defaults
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Embedding defaults
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("dimension", DefaultDimension)

	// Storage defaults
	viper.SetDefault("vector_dir", filepath.Join(configDir, "vector_db"))
	viper.SetDefault("database_path", filepath.Join(configDir, "caduceus.db"))
	viper.SetDefault("source_dir", filepath.Join(configDir, "sources"))

	// Indexing and retrieval defaults
	viper.SetDefault("batch_size", DefaultBatchSize)
	viper.SetDefault("top_k", DefaultTopK)
}
