// Package config loads spotlake's runtime configuration from an optional
// YAML file plus SPOTLAKE_-prefixed environment variables, via viper.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
)

// UpstreamConfig configures the Collector's upstream fetch. Timeout is
// loaded but not passed to the Collector, whose HTTP client uses a fixed
// 15s timeout.
type UpstreamConfig struct {
	URL     string        `yaml:"url" mapstructure:"url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// StoreConfig configures the object-store backend.
type StoreConfig struct {
	// Driver is "memory" (tests/dev) or "http" (production REST gateway).
	Driver  string `yaml:"driver" mapstructure:"driver"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ScheduleConfig configures the interval each named job runs on.
type ScheduleConfig struct {
	CollectInterval        time.Duration `yaml:"collect_interval" mapstructure:"collect_interval"`
	AggregateHourInterval  time.Duration `yaml:"aggregate_hour_interval" mapstructure:"aggregate_hour_interval"`
	AggregateDayInterval   time.Duration `yaml:"aggregate_day_interval" mapstructure:"aggregate_day_interval"`
	AggregateMonthInterval time.Duration `yaml:"aggregate_month_interval" mapstructure:"aggregate_month_interval"`
	SummarizeInterval      time.Duration `yaml:"summarize_interval" mapstructure:"summarize_interval"`
}

// ServerConfig configures the HTTP surface (/health, /metrics).
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Config is the top-level configuration document.
type Config struct {
	Upstream UpstreamConfig `yaml:"upstream" mapstructure:"upstream"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Schedule ScheduleConfig `yaml:"schedule" mapstructure:"schedule"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// Load reads configuration from ./config.yaml (if present) and
// SPOTLAKE_-prefixed environment variables, applying defaults for anything
// unset.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SPOTLAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("upstream.url", "https://api.pota.app/spot/activator")
	v.SetDefault("upstream.timeout", 15*time.Second)

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.base_url", "")

	v.SetDefault("schedule.collect_interval", 1*time.Minute)
	v.SetDefault("schedule.aggregate_hour_interval", 1*time.Hour)
	v.SetDefault("schedule.aggregate_day_interval", 24*time.Hour)
	v.SetDefault("schedule.aggregate_month_interval", 24*time.Hour)
	v.SetDefault("schedule.summarize_interval", 15*time.Minute)

	v.SetDefault("server.port", 8080)

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
