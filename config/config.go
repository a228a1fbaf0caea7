// Package config loads service configuration from an optional YAML file,
// a .env file and ACCOUNTPLAN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// ACCOUNTPLAN_SERVER_PORT or ACCOUNTPLAN_LLM_PROVIDER.
const EnvPrefix = "ACCOUNTPLAN"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Store    StoreConfig    `mapstructure:"store"`
	Research ResearchConfig `mapstructure:"research"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port        int    `mapstructure:"port" validate:"min=1,max=65535"`
	CorsOrigins string `mapstructure:"cors_origins"`
	// BodyLimitMB bounds request bodies, audio uploads included.
	BodyLimitMB int `mapstructure:"body_limit_mb" validate:"min=1"`
}

type LLMConfig struct {
	// Provider is one of openai, anthropic, gemini or mock. An empty API key
	// for a real provider falls back to the provider SDK's own env lookup.
	Provider    string  `mapstructure:"provider" validate:"oneof=openai anthropic gemini mock"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature" validate:"min=0,max=2"`
	APIKey      string  `mapstructure:"api_key"`
	MaxTokens   int     `mapstructure:"max_tokens" validate:"min=1"`
	Stream      bool    `mapstructure:"stream"`
}

type StoreConfig struct {
	Backend  string        `mapstructure:"backend" validate:"oneof=memory redis"`
	RedisURL string        `mapstructure:"redis_url" validate:"required_if=Backend redis"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type ResearchConfig struct {
	MaxTasks    int           `mapstructure:"max_tasks" validate:"min=7,max=12"`
	MaxResults  int           `mapstructure:"max_results" validate:"min=1"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	MinInterval time.Duration `mapstructure:"min_interval"`
	UserAgent   string        `mapstructure:"user_agent"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
	File   string `mapstructure:"file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", "*")
	v.SetDefault("server.body_limit_mb", 10)

	v.SetDefault("llm.provider", "mock")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.stream", false)

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.redis_url", "")
	v.SetDefault("store.ttl", 24*time.Hour)

	v.SetDefault("research.max_tasks", 12)
	v.SetDefault("research.max_results", 5)
	v.SetDefault("research.call_timeout", 45*time.Second)
	v.SetDefault("research.min_interval", time.Second)
	v.SetDefault("research.user_agent", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
}

// Load reads configuration. path may be empty, in which case only defaults,
// .env and the environment apply. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
