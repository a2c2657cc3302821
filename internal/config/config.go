// Package config loads runtime settings from an optional YAML file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreRedis    = "redis"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config holds every setting of the leadflow binary.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Addr        string `yaml:"addr"`
	FlowsDir    string `yaml:"flows_dir"`
	DefaultFlow string `yaml:"default_flow"`

	ActionTimeout        time.Duration `yaml:"action_timeout"`
	InvalidChoiceMessage string        `yaml:"invalid_choice_message"`

	// ActionsFile declares command-backed actions. A missing file is ignored.
	ActionsFile string `yaml:"actions_file"`

	Store  StoreConfig  `yaml:"store"`
	OpenAI OpenAIConfig `yaml:"openai"`
	GenAI  GenAIConfig  `yaml:"genai"`
}

// StoreConfig selects the conversation and lead persistence.
type StoreConfig struct {
	Backend string `yaml:"backend"`

	// Dir is the base path of the file backend.
	Dir string `yaml:"dir"`

	// DSN is the sqlite path or postgres connection string.
	DSN string `yaml:"dsn"`

	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	RedisTTL      time.Duration `yaml:"redis_ttl"`
	Prefix        string        `yaml:"prefix"`

	// EncryptionKey is a base64 AES-256 key. Empty stores state in clear.
	EncryptionKey string   `yaml:"encryption_key"`
	FallbackKeys  []string `yaml:"fallback_keys"`

	// PIIPatterns name the variables masked before persistence.
	PIIPatterns []string `yaml:"pii_patterns"`
}

// OpenAIConfig configures the OpenAI provider. An empty APIKey disables it.
type OpenAIConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// GenAIConfig tunes reply generation.
type GenAIConfig struct {
	BusinessName    string `yaml:"business_name"`
	DefaultVertical string `yaml:"default_vertical"`
	MaxChars        int    `yaml:"max_chars"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		LogLevel:      "info",
		LogFormat:     "text",
		Addr:          ":8080",
		FlowsDir:      "flows",
		ActionsFile:   "actions.yaml",
		ActionTimeout: 15 * time.Second,
		Store: StoreConfig{
			Backend:   StoreMemory,
			Dir:       ".leadflow/conversations",
			RedisAddr: "localhost:6379",
			Prefix:    "leadflow:",
		},
		OpenAI: OpenAIConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.4,
			MaxTokens:   200,
		},
		GenAI: GenAIConfig{
			DefaultVertical: "saude",
			MaxChars:        300,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (skipped when
// empty; LEADFLOW_CONFIG names it otherwise), then .env, then the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("LEADFLOW_CONFIG")
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	str("LEADFLOW_LOG_LEVEL", &cfg.LogLevel)
	str("LEADFLOW_LOG_FORMAT", &cfg.LogFormat)
	str("LEADFLOW_ADDR", &cfg.Addr)
	str("LEADFLOW_FLOWS_DIR", &cfg.FlowsDir)
	str("LEADFLOW_DEFAULT_FLOW", &cfg.DefaultFlow)
	str("LEADFLOW_INVALID_CHOICE_MESSAGE", &cfg.InvalidChoiceMessage)
	str("LEADFLOW_STORE", &cfg.Store.Backend)
	str("LEADFLOW_STORE_DIR", &cfg.Store.Dir)
	str("LEADFLOW_DATABASE_DSN", &cfg.Store.DSN)
	str("LEADFLOW_REDIS_ADDR", &cfg.Store.RedisAddr)
	str("LEADFLOW_REDIS_PASSWORD", &cfg.Store.RedisPassword)
	str("LEADFLOW_PREFIX", &cfg.Store.Prefix)
	str("OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	str("LEADFLOW_OPENAI_MODEL", &cfg.OpenAI.Model)
	str("LEADFLOW_BUSINESS_NAME", &cfg.GenAI.BusinessName)
	str("LEADFLOW_DEFAULT_VERTICAL", &cfg.GenAI.DefaultVertical)
	str("LEADFLOW_ACTIONS_FILE", &cfg.ActionsFile)
	str("LEADFLOW_ENCRYPTION_KEY", &cfg.Store.EncryptionKey)

	lists := map[string]*[]string{
		"LEADFLOW_FALLBACK_KEYS": &cfg.Store.FallbackKeys,
		"LEADFLOW_PII_PATTERNS":  &cfg.Store.PIIPatterns,
	}
	for key, dst := range lists {
		if v := os.Getenv(key); v != "" {
			*dst = splitList(v)
		}
	}

	durations := map[string]*time.Duration{
		"LEADFLOW_ACTION_TIMEOUT": &cfg.ActionTimeout,
		"LEADFLOW_REDIS_TTL":      &cfg.Store.RedisTTL,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}

	ints := map[string]*int{
		"LEADFLOW_REDIS_DB":          &cfg.Store.RedisDB,
		"LEADFLOW_OPENAI_MAX_TOKENS": &cfg.OpenAI.MaxTokens,
		"LEADFLOW_MAX_CHARS":         &cfg.GenAI.MaxChars,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	if v := os.Getenv("LEADFLOW_OPENAI_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("LEADFLOW_OPENAI_TEMPERATURE: %w", err)
		}
		cfg.OpenAI.Temperature = f
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate rejects settings no component can run with.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case StoreMemory, StoreFile, StoreRedis:
	case StoreSQLite, StorePostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store %s requires a DSN (LEADFLOW_DATABASE_DSN)", c.Store.Backend)
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.ActionTimeout <= 0 {
		return errors.New("action_timeout must be positive")
	}
	return nil
}
