package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "inkwell.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "INKWELL_PORT")
	setString(&cfg.Server.CORSOrigin, "INKWELL_CORS_ORIGIN")

	setString(&cfg.Providers.OllamaBaseURL, "OLLAMA_BASE_URL")
	setString(&cfg.Providers.GroqBaseURL, "GROQ_BASE_URL")
	setString(&cfg.Providers.ClaudeBaseURL, "CLAUDE_BASE_URL")
	setString(&cfg.Providers.OpenAIBaseURL, "OPENAI_BASE_URL")
	setString(&cfg.Providers.GroqAPIKey, "GROQ_API_KEY")
	setString(&cfg.Providers.ClaudeAPIKey, "CLAUDE_API_KEY")
	setString(&cfg.Providers.OpenAIAPIKey, "OPENAI_API_KEY")

	setString(&cfg.Models.Default, "INKWELL_DEFAULT_MODEL")
	setString(&cfg.Models.DefaultReview, "INKWELL_DEFAULT_REVIEW_MODEL")

	setFloat64(&cfg.Recognition.ConfidenceThreshold, "INKWELL_CONFIDENCE_THRESHOLD")
	setDuration(&cfg.Recognition.Timeout, "INKWELL_RECOGNITION_TIMEOUT")
	setFloat64(&cfg.Recognition.Temperature, "INKWELL_TEMPERATURE")
	setBool(&cfg.Recognition.Preprocess, "INKWELL_PREPROCESS")

	setBool(&cfg.Cache.Enabled, "INKWELL_CACHE_ENABLED")
	setDuration(&cfg.Cache.TTL, "INKWELL_CACHE_TTL")
	setInt64(&cfg.Cache.L1MaxSizeMB, "INKWELL_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.L1Backfill, "INKWELL_CACHE_L1_BACKFILL")
	setString(&cfg.Cache.L2Backend, "INKWELL_CACHE_L2_BACKEND")
	setString(&cfg.Cache.Dir, "INKWELL_CACHE_DIR")
	setString(&cfg.Cache.NATSURL, "NATS_URL")
	setString(&cfg.Cache.NATSBucket, "INKWELL_CACHE_NATS_BUCKET")
	setBool(&cfg.Cache.Coalesce, "INKWELL_CACHE_COALESCE")

	setBool(&cfg.Storage.Enabled, "INKWELL_STORAGE_ENABLED")
	setString(&cfg.Storage.Path, "INKWELL_STORAGE_PATH")

	setString(&cfg.Logging.Level, "INKWELL_LOG_LEVEL")
	setString(&cfg.Logging.Service, "INKWELL_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "INKWELL_LOG_ASYNC")

	setInt(&cfg.Breaker.MaxFailures, "INKWELL_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "INKWELL_BREAKER_TIMEOUT")

	setString(&cfg.Telemetry.Endpoint, "INKWELL_OTLP_ENDPOINT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Providers.OllamaBaseURL == "" {
		return errors.New("providers.ollama_base_url is required")
	}
	if cfg.Models.Default == "" {
		return errors.New("models.default is required")
	}
	if cfg.Models.DefaultReview == "" {
		return errors.New("models.default_review is required")
	}
	if cfg.Recognition.ConfidenceThreshold < 0 || cfg.Recognition.ConfidenceThreshold > 1 {
		return errors.New("recognition.confidence_threshold must be in [0, 1]")
	}
	if cfg.Cache.Enabled {
		switch cfg.Cache.L2Backend {
		case "disk", "natskv":
		default:
			return fmt.Errorf("cache.l2_backend %q must be \"disk\" or \"natskv\"", cfg.Cache.L2Backend)
		}
		if cfg.Cache.L1MaxSizeMB < 1 {
			return errors.New("cache.l1_max_size_mb must be >= 1")
		}
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
