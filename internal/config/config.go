// Package config loads application configuration from file and
// environment. All settings have working defaults except the translation
// API key, which must come from the environment or the config file.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Translator TranslatorConfig `mapstructure:"translator"`
	Tokenizer  TokenizerConfig  `mapstructure:"tokenizer"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Reflow     ReflowConfig     `mapstructure:"reflow"`
	Fonts      FontsConfig      `mapstructure:"fonts"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Output     OutputConfig     `mapstructure:"output"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig holds the HTTP job API settings.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// TranslatorConfig holds the LLM service settings.
type TranslatorConfig struct {
	APIKey      string `mapstructure:"api_key"`
	BaseURL     string `mapstructure:"base_url"`
	Model       string `mapstructure:"model"`
	MaxRetries  int    `mapstructure:"max_retries"`
	QPS         int    `mapstructure:"qps"`
	Parallelism int    `mapstructure:"parallelism"`
}

// TokenizerConfig holds the external tokenizer service settings.
type TokenizerConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// BatchConfig holds token budget settings.
type BatchConfig struct {
	MaxTokensPerCall     int `mapstructure:"max_tokens_per_call"`
	PromptOverheadTokens int `mapstructure:"prompt_overhead_tokens"`
	SplitStride          int `mapstructure:"split_stride"`
}

// ReflowConfig holds layout reflow settings.
type ReflowConfig struct {
	FallbackPolicy      string  `mapstructure:"fallback_policy"` // keep_source or omit
	AllowVerticalGrowth bool    `mapstructure:"allow_vertical_growth"`
	MinScale            float64 `mapstructure:"min_scale"`
}

// FontsConfig holds font resolution settings.
type FontsConfig struct {
	Dir           string   `mapstructure:"dir"`
	FallbackChain []string `mapstructure:"fallback_chain"`
}

// CacheConfig holds translation cache settings.
type CacheConfig struct {
	Path       string `mapstructure:"path"`
	MaxEntries int    `mapstructure:"max_entries"`
	MaxBytes   int64  `mapstructure:"max_bytes"`
}

// OutputConfig bounds the assembled document.
type OutputConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads configuration from the optional file path plus PDFTRANS_*
// environment variables, applying defaults for everything unset.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("PDFTRANS")
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("translator.base_url", "")
	v.SetDefault("translator.model", "gpt-4o-mini")
	v.SetDefault("translator.max_retries", 3)
	v.SetDefault("translator.qps", 4)
	v.SetDefault("translator.parallelism", 4)

	v.SetDefault("tokenizer.base_url", "http://localhost:8501")

	v.SetDefault("batch.max_tokens_per_call", 4000)
	v.SetDefault("batch.prompt_overhead_tokens", 200)
	v.SetDefault("batch.split_stride", 500)

	v.SetDefault("reflow.fallback_policy", "keep_source")
	v.SetDefault("reflow.allow_vertical_growth", false)
	v.SetDefault("reflow.min_scale", 0.6)

	v.SetDefault("fonts.dir", "fonts")
	v.SetDefault("fonts.fallback_chain", []string{"NotoSans", "NotoSansSC", "Helvetica"})

	v.SetDefault("cache.path", "translation_cache.json")
	v.SetDefault("cache.max_entries", 100000)
	v.SetDefault("cache.max_bytes", int64(256<<20))

	v.SetDefault("output.max_bytes", int64(512<<20))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("server.host", "PDFTRANS_SERVER_HOST")
	v.BindEnv("server.port", "PDFTRANS_SERVER_PORT")

	v.BindEnv("translator.api_key", "PDFTRANS_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("translator.base_url", "PDFTRANS_BASE_URL")
	v.BindEnv("translator.model", "PDFTRANS_MODEL")
	v.BindEnv("translator.max_retries", "PDFTRANS_MAX_RETRIES")
	v.BindEnv("translator.qps", "PDFTRANS_QPS")
	v.BindEnv("translator.parallelism", "PDFTRANS_PARALLELISM")

	v.BindEnv("tokenizer.base_url", "PDFTRANS_TOKENIZER_URL")

	v.BindEnv("batch.max_tokens_per_call", "PDFTRANS_MAX_TOKENS_PER_CALL")
	v.BindEnv("batch.prompt_overhead_tokens", "PDFTRANS_PROMPT_OVERHEAD_TOKENS")

	v.BindEnv("reflow.fallback_policy", "PDFTRANS_FALLBACK_POLICY")
	v.BindEnv("reflow.allow_vertical_growth", "PDFTRANS_ALLOW_VERTICAL_GROWTH")
	v.BindEnv("reflow.min_scale", "PDFTRANS_MIN_SCALE")

	v.BindEnv("fonts.dir", "PDFTRANS_FONTS_DIR")

	v.BindEnv("cache.path", "PDFTRANS_CACHE_PATH")
	v.BindEnv("cache.max_entries", "PDFTRANS_CACHE_MAX_ENTRIES")
	v.BindEnv("cache.max_bytes", "PDFTRANS_CACHE_MAX_BYTES")

	v.BindEnv("output.max_bytes", "PDFTRANS_OUTPUT_MAX_BYTES")

	v.BindEnv("log.level", "PDFTRANS_LOG_LEVEL")
	v.BindEnv("log.development", "PDFTRANS_LOG_DEVELOPMENT")
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if cfg.Translator.Model == "" {
		return fmt.Errorf("translator.model is required")
	}
	if cfg.Batch.MaxTokensPerCall < 1 {
		return fmt.Errorf("batch.max_tokens_per_call must be at least 1")
	}
	if cfg.Batch.PromptOverheadTokens < 0 {
		return fmt.Errorf("batch.prompt_overhead_tokens must be non-negative")
	}
	if cfg.Batch.PromptOverheadTokens >= cfg.Batch.MaxTokensPerCall {
		return fmt.Errorf("batch.prompt_overhead_tokens must be below batch.max_tokens_per_call")
	}
	if cfg.Reflow.FallbackPolicy != "keep_source" && cfg.Reflow.FallbackPolicy != "omit" {
		return fmt.Errorf("reflow.fallback_policy must be keep_source or omit")
	}
	if cfg.Reflow.MinScale <= 0 || cfg.Reflow.MinScale > 1 {
		return fmt.Errorf("reflow.min_scale must be in (0, 1]")
	}
	if cfg.Translator.Parallelism < 1 {
		return fmt.Errorf("translator.parallelism must be at least 1")
	}
	return nil
}
