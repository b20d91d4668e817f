// Package config loads service settings from an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort           = "8080"
	DefaultTopK           = 3
	DefaultMaxUploadBytes = 20 * 1024 * 1024
	DefaultGeminiModel    = "gemini-2.5-flash"
	DefaultTemperature    = 0.2
	DefaultEmbedCacheSize = 4096
)

// CorpusConfig selects where the case corpus is loaded from.
type CorpusConfig struct {
	Source string `yaml:"source"` // file or postgres
	Path   string `yaml:"path"`   // storage key of the JSON document
}

// EmbedderConfig selects and configures the text embedder.
type EmbedderConfig struct {
	Type          string   `yaml:"type"` // onnx or tfidf
	ORTLibrary    string   `yaml:"ort_library"`
	ModelPath     string   `yaml:"model_path"`
	TokenizerPath string   `yaml:"tokenizer_path"`
	ModelID       string   `yaml:"model_id"`
	MaxSeqLen     int      `yaml:"max_seq_len"`
	HiddenSize    int      `yaml:"hidden_size"`
	InputNames    []string `yaml:"input_names"`
	OutputName    string   `yaml:"output_name"`
	CacheSize     int      `yaml:"cache_size"` // embeddings kept in the LRU cache
}

// GeminiConfig configures the reasoning model.
type GeminiConfig struct {
	APIKey      string   `yaml:"api_key"`
	Model       string   `yaml:"model"`
	Temperature *float32 `yaml:"temperature"` // nil means DefaultTemperature
}

// StorageConfig configures the object store for uploads and the corpus file.
type StorageConfig struct {
	Type           string `yaml:"type"` // local or s3
	LocalPath      string `yaml:"local_path"`
	S3Bucket       string `yaml:"s3_bucket"`
	S3Region       string `yaml:"s3_region"`
	AWSAccessKey   string `yaml:"aws_access_key"`
	AWSSecretKey   string `yaml:"aws_secret_key"`
	ArchiveUploads bool   `yaml:"archive_uploads"`
}

// HistoryConfig toggles recording of analyses in Postgres.
type HistoryConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Config is the root configuration.
type Config struct {
	Port           string         `yaml:"port"`
	TopK           int            `yaml:"top_k"`
	MaxUploadBytes int64          `yaml:"max_upload_bytes"`
	CORSOrigins    []string       `yaml:"cors_origins"`
	Corpus         CorpusConfig   `yaml:"corpus"`
	Embedder       EmbedderConfig `yaml:"embedder"`
	Gemini         GeminiConfig   `yaml:"gemini"`
	Storage        StorageConfig  `yaml:"storage"`
	DatabaseURL    string         `yaml:"database_url"`
	History        HistoryConfig  `yaml:"history"`
	Debug          bool           `yaml:"debug"`
}

// LoadEnvFile loads .env from the working directory, then from the project root
// when running from cmd/<name>/.
func LoadEnvFile() {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../../.env"); err != nil {
			log.Printf("Warning: No .env file found, using environment variables")
		}
	}
}

// Load reads the YAML file at path (a missing file yields defaults), applies
// environment overrides and defaults, then validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
			log.Printf("Config file %s not found, using defaults", path)
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.Port == "" {
		c.Port = DefaultPort
	}
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
	if c.Corpus.Source == "" {
		c.Corpus.Source = "file"
	}
	if c.Corpus.Source == "file" && c.Corpus.Path == "" {
		c.Corpus.Path = "legal_cases.json"
	}
	if c.Embedder.Type == "" {
		c.Embedder.Type = "onnx"
	}
	if c.Embedder.MaxSeqLen <= 0 {
		c.Embedder.MaxSeqLen = 512
	}
	if c.Embedder.HiddenSize <= 0 {
		c.Embedder.HiddenSize = 768
	}
	if c.Embedder.CacheSize <= 0 {
		c.Embedder.CacheSize = DefaultEmbedCacheSize
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = DefaultGeminiModel
	}
	if c.Gemini.Temperature == nil {
		t := float32(DefaultTemperature)
		c.Gemini.Temperature = &t
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "local"
	}
	if c.Storage.Type == "local" && c.Storage.LocalPath == "" {
		c.Storage.LocalPath = "./data"
	}
	if c.Storage.Type == "s3" && c.Storage.S3Region == "" {
		c.Storage.S3Region = "us-east-1"
	}
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch c.Corpus.Source {
	case "file":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("corpus source postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown corpus source: %s", c.Corpus.Source)
	}

	switch c.Embedder.Type {
	case "onnx":
		if c.Embedder.ModelPath == "" || c.Embedder.TokenizerPath == "" {
			return errors.New("onnx embedder requires model_path and tokenizer_path")
		}
	case "tfidf":
	default:
		return fmt.Errorf("unknown embedder type: %s", c.Embedder.Type)
	}

	switch c.Storage.Type {
	case "local":
	case "s3":
		if c.Storage.S3Bucket == "" {
			return errors.New("s3 storage requires AWS_S3_BUCKET")
		}
	default:
		return fmt.Errorf("unknown storage type: %s", c.Storage.Type)
	}

	if t := c.Gemini.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("gemini temperature must be between 0 and 2, got %g", *t)
	}

	if c.History.Enabled && c.DatabaseURL == "" {
		return errors.New("analysis history requires DATABASE_URL")
	}
	return nil
}

// applyEnv overrides file values with any environment variable that is set.
func applyEnv(c *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = splitList(v)
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("PORT", &c.Port)
	num("TOP_K", &c.TopK)
	if v, ok := lookup("MAX_UPLOAD_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("MAX_UPLOAD_BYTES: %w", err))
		} else {
			c.MaxUploadBytes = n
		}
	}
	list("CORS_ORIGINS", &c.CORSOrigins)
	flag("DEBUG", &c.Debug)

	str("CORPUS_SOURCE", &c.Corpus.Source)
	str("CORPUS_PATH", &c.Corpus.Path)

	str("EMBEDDER_TYPE", &c.Embedder.Type)
	str("ORT_LIBRARY_PATH", &c.Embedder.ORTLibrary)
	str("EMBEDDER_MODEL_PATH", &c.Embedder.ModelPath)
	str("EMBEDDER_TOKENIZER_PATH", &c.Embedder.TokenizerPath)
	str("EMBEDDER_MODEL_ID", &c.Embedder.ModelID)
	num("EMBEDDER_MAX_SEQ_LEN", &c.Embedder.MaxSeqLen)
	num("EMBEDDER_HIDDEN_SIZE", &c.Embedder.HiddenSize)
	list("EMBEDDER_INPUT_NAMES", &c.Embedder.InputNames)
	str("EMBEDDER_OUTPUT_NAME", &c.Embedder.OutputName)
	num("EMBEDDER_CACHE_SIZE", &c.Embedder.CacheSize)

	str("GEMINI_API_KEY", &c.Gemini.APIKey)
	str("GEMINI_MODEL", &c.Gemini.Model)
	if v, ok := lookup("GEMINI_TEMPERATURE"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			errs = append(errs, fmt.Errorf("GEMINI_TEMPERATURE: %w", err))
		} else {
			t := float32(f)
			c.Gemini.Temperature = &t
		}
	}

	str("STORAGE_TYPE", &c.Storage.Type)
	str("STORAGE_LOCAL_PATH", &c.Storage.LocalPath)
	str("AWS_S3_BUCKET", &c.Storage.S3Bucket)
	str("AWS_REGION", &c.Storage.S3Region)
	str("AWS_ACCESS_KEY_ID", &c.Storage.AWSAccessKey)
	str("AWS_SECRET_ACCESS_KEY", &c.Storage.AWSSecretKey)
	flag("ARCHIVE_UPLOADS", &c.Storage.ArchiveUploads)

	str("DATABASE_URL", &c.DatabaseURL)
	flag("HISTORY_ENABLED", &c.History.Enabled)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %w", errors.Join(errs...))
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
