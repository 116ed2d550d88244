package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Dyxless    SourceConfig     `yaml:"dyxless" mapstructure:"dyxless"`
	ITP        SourceConfig     `yaml:"itp" mapstructure:"itp"`
	LeakOsint  SourceConfig     `yaml:"leakosint" mapstructure:"leakosint"`
	Userbox    SourceConfig     `yaml:"userbox" mapstructure:"userbox"`
	Vektor     SourceConfig     `yaml:"vektor" mapstructure:"vektor"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Recovery   RecoveryConfig   `yaml:"recovery" mapstructure:"recovery"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// SourceConfig holds one upstream source's credentials and tuning.
type SourceConfig struct {
	Token       string  `yaml:"token" mapstructure:"token"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Priority    int     `yaml:"priority" mapstructure:"priority"`
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	RPS         float64 `yaml:"rps" mapstructure:"rps"`
}

// Timeout returns the per-call timeout as a duration.
func (c SourceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// SearchConfig tunes the fan-out engine.
type SearchConfig struct {
	Concurrency             int     `yaml:"concurrency" mapstructure:"concurrency"`
	RetryMaxAttempts        int     `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	RetryBaseDelayMs        int     `yaml:"retry_base_delay_ms" mapstructure:"retry_base_delay_ms"`
	RetryMaxDelayMs         int     `yaml:"retry_max_delay_ms" mapstructure:"retry_max_delay_ms"`
	RetryJitterFraction     float64 `yaml:"retry_jitter_fraction" mapstructure:"retry_jitter_fraction"`
	BreakerFailureThreshold int     `yaml:"breaker_failure_threshold" mapstructure:"breaker_failure_threshold"`
	BreakerResetTimeoutSecs int     `yaml:"breaker_reset_timeout_secs" mapstructure:"breaker_reset_timeout_secs"`
	DeadlineSecs            int     `yaml:"deadline_secs" mapstructure:"deadline_secs"`
}

// RecoveryConfig tunes the fallback strategy chain.
type RecoveryConfig struct {
	RetryDelayMs    int  `yaml:"retry_delay_ms" mapstructure:"retry_delay_ms"`
	DisableDegraded bool `yaml:"disable_degraded" mapstructure:"disable_degraded"`
}

// MonitoringConfig tunes the background availability checker.
type MonitoringConfig struct {
	ProbeIntervalSecs int `yaml:"probe_interval_secs" mapstructure:"probe_interval_secs"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DATATRACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)

	v.SetDefault("search.concurrency", 5)
	v.SetDefault("search.retry_max_attempts", 3)
	v.SetDefault("search.retry_base_delay_ms", 1000)
	v.SetDefault("search.retry_max_delay_ms", 10000)
	v.SetDefault("search.retry_jitter_fraction", 0)
	v.SetDefault("search.breaker_failure_threshold", 3)
	v.SetDefault("search.breaker_reset_timeout_secs", 60)
	v.SetDefault("search.deadline_secs", 45)

	v.SetDefault("recovery.retry_delay_ms", 2000)

	v.SetDefault("monitoring.probe_interval_secs", 300)

	v.SetDefault("dyxless.base_url", "https://api-dyxless.cfd")
	v.SetDefault("dyxless.priority", 1)
	v.SetDefault("dyxless.enabled", true)
	v.SetDefault("dyxless.timeout_secs", 25)
	v.SetDefault("itp.base_url", "https://api.itp-search.net")
	v.SetDefault("itp.priority", 2)
	v.SetDefault("itp.enabled", true)
	v.SetDefault("itp.timeout_secs", 25)
	v.SetDefault("leakosint.base_url", "https://leakosintapi.com")
	v.SetDefault("leakosint.priority", 3)
	v.SetDefault("leakosint.enabled", true)
	v.SetDefault("leakosint.timeout_secs", 25)
	v.SetDefault("userbox.base_url", "https://api.usersbox.ru")
	v.SetDefault("userbox.priority", 4)
	v.SetDefault("userbox.enabled", true)
	v.SetDefault("userbox.timeout_secs", 25)
	v.SetDefault("vektor.base_url", "https://infosearch54321.xyz")
	v.SetDefault("vektor.priority", 5)
	v.SetDefault("vektor.enabled", true)
	v.SetDefault("vektor.timeout_secs", 25)

	// Read config file (optional)
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
