package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the orchestrator's full configuration (spec.md §6). Field
// names match the mapstructure keys viper reads from file/env/flags.
type Config struct {
	PollIntervalS   float64 `mapstructure:"poll_interval_s" validate:"gt=0"`
	ClaimBatchSize  int     `mapstructure:"claim_batch_size" validate:"gt=0"`

	FastPoolSize  int `mapstructure:"fast_pool_size" validate:"gt=0"`
	HeavyPoolSize int `mapstructure:"heavy_pool_size" validate:"gt=0"`

	FastTimeoutS  float64 `mapstructure:"fast_timeout_s" validate:"gt=0"`
	HeavyTimeoutS float64 `mapstructure:"heavy_timeout_s" validate:"gt=0"`

	HeartbeatStaleS      float64 `mapstructure:"heartbeat_stale_s" validate:"gt=0"`
	HealthSweepIntervalS float64 `mapstructure:"health_sweep_interval_s" validate:"gt=0"`
	SoftStopGraceS       float64 `mapstructure:"soft_stop_grace_s" validate:"gt=0"`

	BatchMaxViolations int `mapstructure:"batch_max_violations" validate:"gt=0"`
	BatchMaxFiles      int `mapstructure:"batch_max_files" validate:"gt=0"`

	RoutingHighComplexityThreshold   float64 `mapstructure:"routing_high_complexity_threshold" validate:"gte=0,lte=1"`
	RoutingLowConfidenceThreshold    float64 `mapstructure:"routing_low_confidence_threshold" validate:"gte=0,lte=1"`
	RoutingMediumComplexityThreshold float64 `mapstructure:"routing_medium_complexity_threshold" validate:"gte=0,lte=1"`
	RoutingSecurityKindThreshold     float64 `mapstructure:"routing_security_kind_threshold" validate:"gte=0,lte=1"`

	PatternIndexPath         string `mapstructure:"pattern_index_path" validate:"required"`
	HeavyWorkerStartupScript string `mapstructure:"heavy_worker_startup_script" validate:"required"`

	MaxRetries int `mapstructure:"max_retries" validate:"gt=0"`

	LogLevel  string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogJSON   bool   `mapstructure:"log_json"`
	DataDir   string `mapstructure:"data_dir" validate:"required"`
	HTTPAddr  string `mapstructure:"http_addr"`

	SlackToken   string `mapstructure:"slack_token"`
	SlackChannel string `mapstructure:"slack_channel"`
	RedisAddr    string `mapstructure:"redis_addr"`
}

// Defaults mirrors spec.md §6's parenthesized defaults.
func Defaults() Config {
	return Config{
		PollIntervalS:                    5.0,
		ClaimBatchSize:                   8,
		FastPoolSize:                     3,
		HeavyPoolSize:                    2,
		FastTimeoutS:                     60,
		HeavyTimeoutS:                    300,
		HeartbeatStaleS:                  60,
		HealthSweepIntervalS:             5,
		SoftStopGraceS:                   10,
		BatchMaxViolations:               20,
		BatchMaxFiles:                    10,
		RoutingHighComplexityThreshold:   0.70,
		RoutingLowConfidenceThreshold:    0.30,
		RoutingMediumComplexityThreshold: 0.40,
		RoutingSecurityKindThreshold:     0.80,
		MaxRetries:                       3,
		LogLevel:                         "info",
		DataDir:                          "./data",
		HTTPAddr:                         ":8090",
	}
}

// Load reads configuration from (in ascending precedence) defaults, a
// config file at path (if non-empty), and QA_-prefixed environment
// variables, then validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()

	defaults := Defaults()
	v.SetConfigType("yaml")
	setDefaults(v, defaults)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("QA")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags via go-playground/validator.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config: validation failed: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("poll_interval_s", d.PollIntervalS)
	v.SetDefault("claim_batch_size", d.ClaimBatchSize)
	v.SetDefault("fast_pool_size", d.FastPoolSize)
	v.SetDefault("heavy_pool_size", d.HeavyPoolSize)
	v.SetDefault("fast_timeout_s", d.FastTimeoutS)
	v.SetDefault("heavy_timeout_s", d.HeavyTimeoutS)
	v.SetDefault("heartbeat_stale_s", d.HeartbeatStaleS)
	v.SetDefault("health_sweep_interval_s", d.HealthSweepIntervalS)
	v.SetDefault("soft_stop_grace_s", d.SoftStopGraceS)
	v.SetDefault("batch_max_violations", d.BatchMaxViolations)
	v.SetDefault("batch_max_files", d.BatchMaxFiles)
	v.SetDefault("routing_high_complexity_threshold", d.RoutingHighComplexityThreshold)
	v.SetDefault("routing_low_confidence_threshold", d.RoutingLowConfidenceThreshold)
	v.SetDefault("routing_medium_complexity_threshold", d.RoutingMediumComplexityThreshold)
	v.SetDefault("routing_security_kind_threshold", d.RoutingSecurityKindThreshold)
	v.SetDefault("max_retries", d.MaxRetries)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("http_addr", d.HTTPAddr)
}

// PollInterval, FastTimeout, HeavyTimeout, etc. convert the float-seconds
// config fields to time.Duration for components that want a Duration.
func (c Config) PollInterval() time.Duration      { return secondsToDuration(c.PollIntervalS) }
func (c Config) FastTimeout() time.Duration       { return secondsToDuration(c.FastTimeoutS) }
func (c Config) HeavyTimeout() time.Duration      { return secondsToDuration(c.HeavyTimeoutS) }
func (c Config) HeartbeatStale() time.Duration    { return secondsToDuration(c.HeartbeatStaleS) }
func (c Config) HealthSweepInterval() time.Duration { return secondsToDuration(c.HealthSweepIntervalS) }
func (c Config) SoftStopGrace() time.Duration     { return secondsToDuration(c.SoftStopGraceS) }

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
