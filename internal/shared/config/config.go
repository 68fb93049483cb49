package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"resume-agent/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port             string   `yaml:"port" env:"PORT" env-default:"8080"`
	Env              string   `yaml:"env" env:"ENV" env-default:"dev"`
	LogLevel         string   `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	CORSAllowOrigins []string `yaml:"cors_allow_origins" env:"CORS_ALLOW_ORIGINS" env-separator:"," env-default:"http://localhost:5173"`

	LLMProvider       string        `yaml:"llm_provider" env:"LLM_PROVIDER" env-default:"anthropic"`
	LLMModel          string        `yaml:"llm_model" env:"LLM_MODEL"`
	AnthropicAPIKey   string        `yaml:"anthropic_api_key" env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey      string        `yaml:"openai_api_key" env:"OPENAI_API_KEY"`
	LLMTimeout        time.Duration `yaml:"llm_timeout" env:"LLM_TIMEOUT" env-default:"120s"`
	LLMMaxTokens      int           `yaml:"llm_max_tokens" env:"LLM_MAX_TOKENS" env-default:"4096"`
	LLMRetryAttempts  int           `yaml:"llm_retry_attempts" env:"LLM_RETRY_ATTEMPTS" env-default:"3"`
	LLMRetryBaseDelay time.Duration `yaml:"llm_retry_base_delay" env:"LLM_RETRY_BASE_DELAY" env-default:"300ms"`
	PromptsDir        string        `yaml:"prompts_dir" env:"PROMPTS_DIR" env-default:"PROMPTS"`

	SessionTTL           time.Duration `yaml:"session_ttl" env:"SESSION_TTL" env-default:"24h"`
	SessionSweepInterval time.Duration `yaml:"session_sweep_interval" env:"SESSION_SWEEP_INTERVAL" env-default:"5m"`

	ObjectStoreType string `yaml:"object_store" env:"OBJECT_STORE" env-default:"local"`
	LocalStoreDir   string `yaml:"local_store_dir" env:"LOCAL_STORE_DIR" env-default:"./data"`
	AWSRegion       string `yaml:"aws_region" env:"AWS_REGION"`
	S3Bucket        string `yaml:"s3_bucket" env:"S3_BUCKET"`
	S3Prefix        string `yaml:"s3_prefix" env:"S3_PREFIX"`
	SSEKMSKeyID     string `yaml:"sse_kms_key_id" env:"SSE_KMS_KEY_ID"`

	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
}

// Load reads configuration from CONFIG_FILE (YAML or .env) when set, else
// from ./.env when present, else from the environment alone. Environment
// variables override file values; unset keys take their defaults.
func Load() (Config, error) {
	var cfg Config

	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicit {
		return Config{}, fmt.Errorf("config: file %s: %w", path, err)
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: read env: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: validate: %w", err)
	}
	if cfg.Env == "production" && cfg.DatabaseURL == "" {
		telemetry.Warn("config.database_url_missing", map[string]any{"env": cfg.Env})
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Env = normalizeEnv(c.Env)
	c.ObjectStoreType = normalizeStoreType(c.ObjectStoreType)
	c.LLMProvider = strings.ToLower(strings.TrimSpace(c.LLMProvider))
	c.CORSAllowOrigins = trimAll(c.CORSAllowOrigins)
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
}

// Validate checks values that have no safe fallback.
func (c Config) Validate() error {
	switch c.LLMProvider {
	case "anthropic", "openai", "placeholder":
	default:
		return fmt.Errorf("LLM_PROVIDER %q is not one of anthropic, openai, placeholder", c.LLMProvider)
	}
	if c.LLMRetryAttempts < 1 {
		return fmt.Errorf("LLM_RETRY_ATTEMPTS must be at least 1")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.SessionSweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must be positive")
	}
	if c.ObjectStoreType == "s3" && strings.TrimSpace(c.S3Bucket) == "" {
		return fmt.Errorf("S3_BUCKET is required when OBJECT_STORE=s3")
	}
	return nil
}

// DefaultModel returns LLM_MODEL or the provider's default model.
func (c Config) DefaultModel() string {
	if m := strings.TrimSpace(c.LLMModel); m != "" {
		return m
	}
	switch c.LLMProvider {
	case "openai":
		return "gpt-4o"
	default:
		return "claude-3-5-sonnet-20241022"
	}
}

func trimAll(in []string) []string {
	var out []string
	for _, p := range in {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}
