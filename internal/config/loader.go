package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "mentoria.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML file is optional; a missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV.
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
	setString(&cfg.Server.Port, "MENTORIA_PORT")
	setString(&cfg.Server.CORSOrigin, "MENTORIA_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "MENTORIA_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "MENTORIA_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "MENTORIA_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "MENTORIA_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "MENTORIA_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setBool(&cfg.NATS.Enabled, "MENTORIA_NATS_ENABLED")
	setString(&cfg.LLM.URL, "LITELLM_URL")
	setString(&cfg.LLM.APIKey, "LITELLM_API_KEY")
	setString(&cfg.LLM.RouterModel, "MENTORIA_ROUTER_MODEL")
	setString(&cfg.LLM.SpecialistModel, "MENTORIA_SPECIALIST_MODEL")
	setString(&cfg.LLM.EmbeddingModel, "MENTORIA_EMBEDDING_MODEL")
	setInt(&cfg.LLM.MaxTokens, "MENTORIA_LLM_MAX_TOKENS")
	setDuration(&cfg.LLM.Timeout, "MENTORIA_LLM_TIMEOUT")
	setInt64(&cfg.LLM.MaxConcurrent, "MENTORIA_LLM_MAX_CONCURRENT")
	setString(&cfg.Index.URL, "VECTOR_INDEX_URL")
	setString(&cfg.Index.APIKey, "VECTOR_INDEX_API_KEY")
	setInt(&cfg.Index.TopK, "MENTORIA_INDEX_TOP_K")
	setDuration(&cfg.Index.Timeout, "MENTORIA_INDEX_TIMEOUT")
	setInt(&cfg.Chat.MessageCap, "MENTORIA_MESSAGE_CAP")
	setInt(&cfg.Chat.Window, "MENTORIA_CONTEXT_WINDOW")
	setBool(&cfg.Auth.Enabled, "MENTORIA_AUTH_ENABLED")
	setStringSlice(&cfg.Auth.TokenHashes, "MENTORIA_TOKEN_HASHES")
	setInt64(&cfg.Cache.MaxSizeMB, "MENTORIA_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.ProfileTTL, "MENTORIA_CACHE_PROFILE_TTL")
	setString(&cfg.Logging.Level, "MENTORIA_LOG_LEVEL")
	setString(&cfg.Logging.Service, "MENTORIA_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "MENTORIA_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "MENTORIA_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "MENTORIA_BREAKER_TIMEOUT")
	setFloat64(&cfg.Rate.RequestsPerSecond, "MENTORIA_RATE_RPS")
	setInt(&cfg.Rate.Burst, "MENTORIA_RATE_BURST")
	setBool(&cfg.Telemetry.Enabled, "MENTORIA_OTEL_ENABLED")
	setString(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.LLM.URL == "" {
		return errors.New("llm.url is required")
	}
	if cfg.Chat.MessageCap < 1 {
		return errors.New("chat.message_cap must be >= 1")
	}
	if cfg.Chat.Window < 1 {
		return errors.New("chat.window must be >= 1")
	}
	if cfg.Index.TopK < 1 {
		return errors.New("index.top_k must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.Auth.Enabled && len(cfg.Auth.TokenHashes) == 0 {
		return errors.New("auth.token_hashes is required when auth is enabled")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
