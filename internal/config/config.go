package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Oracle     OracleConfig     `yaml:"oracle" mapstructure:"oracle"`
	Fragment   FragmentConfig   `yaml:"fragment" mapstructure:"fragment"`
	Experiment ExperimentConfig `yaml:"experiment" mapstructure:"experiment"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings for the Claude oracle.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// OracleConfig selects and tunes the entailment oracle.
type OracleConfig struct {
	Name             string  `yaml:"name" mapstructure:"name"`
	Threshold        float64 `yaml:"threshold" mapstructure:"threshold"`
	Concurrency      int     `yaml:"concurrency" mapstructure:"concurrency"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSecond    float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	Burst            int     `yaml:"burst" mapstructure:"burst"`
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
	Cache            bool    `yaml:"cache" mapstructure:"cache"`
}

// FragmentConfig configures fragment extraction.
type FragmentConfig struct {
	Window       int `yaml:"window" mapstructure:"window"`
	MaxModifiers int `yaml:"max_modifiers" mapstructure:"max_modifiers"`
}

// ExperimentConfig configures the evaluation run.
type ExperimentConfig struct {
	Name              string    `yaml:"name" mapstructure:"name"`
	Thresholds        []float64 `yaml:"thresholds" mapstructure:"thresholds"`
	StrictClosure     bool      `yaml:"strict_closure" mapstructure:"strict_closure"`
	SingleClusterGold bool      `yaml:"single_cluster_gold" mapstructure:"single_cluster_gold"`
	OutputDir         string    `yaml:"output_dir" mapstructure:"output_dir"`
}

// ServerConfig configures the results API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ENTAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "entailgraph.db")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 64)
	v.SetDefault("oracle.name", "alignment")
	v.SetDefault("oracle.threshold", 0.5)
	v.SetDefault("oracle.concurrency", 4)
	v.SetDefault("oracle.timeout_secs", 30)
	v.SetDefault("oracle.rate_per_second", 5.0)
	v.SetDefault("oracle.burst", 5)
	v.SetDefault("oracle.max_attempts", 3)
	v.SetDefault("oracle.initial_backoff_ms", 500)
	v.SetDefault("oracle.max_backoff_ms", 30000)
	v.SetDefault("oracle.failure_threshold", 5)
	v.SetDefault("oracle.reset_timeout_secs", 30)
	v.SetDefault("oracle.cache", true)
	v.SetDefault("fragment.window", 6)
	v.SetDefault("fragment.max_modifiers", 4)
	v.SetDefault("experiment.name", "default")
	v.SetDefault("experiment.thresholds", []float64{0.9})
	v.SetDefault("experiment.output_dir", "out")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes: "build",
// "evaluate", "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}

	switch mode {
	case "build", "evaluate":
		if c.Oracle.Name == "claude" && c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required for the claude oracle")
		}
		if c.Oracle.Concurrency <= 0 {
			problems = append(problems, "oracle.concurrency must be positive")
		}
		if c.Fragment.Window < 0 {
			problems = append(problems, "fragment.window must not be negative")
		}
		for _, t := range c.Experiment.Thresholds {
			if t < 0 || t > 1 {
				problems = append(problems, fmt.Sprintf("experiment.thresholds value %.2f out of [0,1]", t))
			}
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, fmt.Sprintf("server.port %d is invalid", c.Server.Port))
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
