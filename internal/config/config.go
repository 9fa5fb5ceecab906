package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned by LoadDefault when no config file exists in the search path.
var ErrNotFound = errors.New("config file not found")

// DocumentsConfig points at the directory of documents to ingest.
type DocumentsConfig struct {
	Dir string `yaml:"dir" validate:"required"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	ChunkSize    int  `yaml:"chunk_size" validate:"required,gt=0"`
	ChunkOverlap *int `yaml:"chunk_overlap" validate:"required,gte=0"`
	Deduplicate  bool `yaml:"deduplicate"`
}

// RetrievalConfig controls nearest-neighbor retrieval and score filtering.
type RetrievalConfig struct {
	TopK                int      `yaml:"top_k" validate:"gte=0"`
	SimilarityThreshold *float64 `yaml:"similarity_threshold" validate:"required"`
}

// AnswerConfig bounds the generated texts, in characters.
type AnswerConfig struct {
	SummaryLength int `yaml:"summary_length" validate:"required,gt=0"`
	AILength      int `yaml:"ai_length" validate:"required,gt=0"`
}

// RetryConfig configures the retry policy applied to every upstream call.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" validate:"gte=0"`
	BaseDelay   time.Duration `yaml:"base_delay" validate:"gte=0"`
	MaxDelay    time.Duration `yaml:"max_delay" validate:"gte=0"`
}

// LLMConfig selects and configures the language model provider.
type LLMConfig struct {
	Provider    string      `yaml:"provider" validate:"oneof=openai ollama"`
	Model       string      `yaml:"model"`
	BaseURL     string      `yaml:"base_url"`
	APIKeyEnv   string      `yaml:"api_key_env"`
	TimeoutSecs int         `yaml:"timeout_secs" validate:"gte=0"`
	Retry       RetryConfig `yaml:"retry"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string `yaml:"type" validate:"oneof=openai ollama tfidf"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	CacheSize int    `yaml:"cache_size" validate:"gte=0"`
}

// IndexConfig configures index building and the on-disk snapshot.
type IndexConfig struct {
	Dir       string `yaml:"dir" validate:"required"`
	BatchSize int    `yaml:"batch_size" validate:"gte=0"`
	Reuse     bool   `yaml:"reuse"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	File  string `yaml:"file"`
	JSON  bool   `yaml:"json"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Documents DocumentsConfig `yaml:"documents"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Answer    AnswerConfig    `yaml:"answer"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Index     IndexConfig     `yaml:"index"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// Load reads, defaults and validates a config from the given path.
// The core settings (chunk size and overlap, similarity threshold, summary and
// answer lengths) have no defaults: a file without them is rejected.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML config data, applies defaults to optional settings and validates it.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyConfigDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docqa/config.yaml.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := DefaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	return nil, "", fmt.Errorf("%w: tried %s and %s (run `docqa config init`)", ErrNotFound, cwdPath, userPath)
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// DefaultUserConfigPath returns ~/.config/docqa/config.yaml.
func DefaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docqa", "config.yaml"), nil
}

// Template returns a complete example configuration suitable for `config init`.
func Template() *AppConfig {
	overlap := 50
	threshold := 0.5
	cfg := &AppConfig{
		Documents: DocumentsConfig{Dir: "./docs"},
		Chunker:   ChunkerConfig{ChunkSize: 500, ChunkOverlap: &overlap},
		Retrieval: RetrievalConfig{SimilarityThreshold: &threshold},
		Answer:    AnswerConfig{SummaryLength: 200, AILength: 500},
		LLM:       LLMConfig{Provider: "openai", Model: "gpt-4o-mini"},
		Embedder:  EmbedderConfig{Type: "openai", Model: "text-embedding-3-small"},
		Index:     IndexConfig{Dir: "./faiss_db"},
		Logging:   LoggingConfig{File: "qa.log"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

// Validate checks required keys and value ranges.
func Validate(cfg *AppConfig) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describe(fe))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if *cfg.Chunker.ChunkOverlap >= cfg.Chunker.ChunkSize {
		return fmt.Errorf("invalid config: chunker.chunk_overlap %d must be smaller than chunker.chunk_size %d",
			*cfg.Chunker.ChunkOverlap, cfg.Chunker.ChunkSize)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "AppConfig.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param())
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 30
	}
	if cfg.Index.BatchSize == 0 {
		cfg.Index.BatchSize = 1
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.Retry.MaxAttempts == 0 {
		cfg.LLM.Retry.MaxAttempts = 3
	}
	if cfg.LLM.Retry.BaseDelay == 0 {
		cfg.LLM.Retry.BaseDelay = time.Second
	}
	if cfg.LLM.Retry.MaxDelay == 0 {
		cfg.LLM.Retry.MaxDelay = 40 * time.Second
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "openai"
	}
	if cfg.LLM.Provider == "openai" && cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.APIKeyEnv == "" {
			cfg.Embedder.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.Model == "" {
			cfg.Embedder.Model = "text-embedding-3-small"
		}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// APIKey resolves the LLM API key from the configured environment variable.
func (c LLMConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// Timeout returns the per-call timeout, zero meaning none.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// APIKey resolves the embedder API key from the configured environment variable.
func (c EmbedderConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}
