// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vietair/aqi-crawler/internal/city"
)

// Config captures every configuration knob, loaded from a YAML file and
// AQI_-prefixed environment variables.
type Config struct {
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Probe   ProbeConfig   `mapstructure:"probe"`
	Output  OutputConfig  `mapstructure:"output"`
	DB      DBConfig      `mapstructure:"db"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Cities  []city.City   `mapstructure:"cities"`
}

// CrawlerConfig governs the fetch/retry pipeline.
type CrawlerConfig struct {
	UserAgent       string        `mapstructure:"user_agent"`
	NavTimeout      time.Duration `mapstructure:"nav_timeout"`
	SelectorTimeout time.Duration `mapstructure:"selector_timeout"`
	SettleDelay     time.Duration `mapstructure:"settle_delay"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	CityQPS         float64       `mapstructure:"city_qps"`
}

// ProbeConfig controls the optional HTTP preflight.
type ProbeConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// OutputConfig sets where readings and charts land.
type OutputConfig struct {
	ResultDir  string `mapstructure:"result_dir"`
	ChartDir   string `mapstructure:"chart_dir"`
	WindowDays int    `mapstructure:"window_days"`
}

// DBConfig enables the optional Postgres mirror when DSN is set.
type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

// ArchiveConfig enables artifact upload when Bucket is set.
type ArchiveConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// ServerConfig enables the metrics endpoint when MetricsAddr is set.
type ServerConfig struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk and environment. An empty path searches
// the working directory for config.yaml; a missing file is fine, the
// compiled-in defaults cover a full run.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AQI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(cfg.Cities) == 0 {
		cfg.Cities = city.Defaults()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("crawler.nav_timeout", "45s")
	v.SetDefault("crawler.selector_timeout", "30s")
	v.SetDefault("crawler.settle_delay", "2s")
	v.SetDefault("crawler.max_attempts", 3)
	v.SetDefault("crawler.retry_backoff", "2s")
	v.SetDefault("crawler.city_qps", 0.0)

	v.SetDefault("probe.enabled", false)
	v.SetDefault("probe.timeout", "10s")

	v.SetDefault("output.result_dir", "result")
	v.SetDefault("output.chart_dir", "charts")
	v.SetDefault("output.window_days", 30)

	v.SetDefault("logging.development", false)
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Crawler.UserAgent) == "" {
		return fmt.Errorf("crawler.user_agent must be set")
	}
	if c.Crawler.NavTimeout <= 0 {
		return fmt.Errorf("crawler.nav_timeout must be > 0")
	}
	if c.Crawler.SelectorTimeout <= 0 {
		return fmt.Errorf("crawler.selector_timeout must be > 0")
	}
	if c.Crawler.MaxAttempts <= 0 {
		return fmt.Errorf("crawler.max_attempts must be > 0")
	}
	if c.Crawler.RetryBackoff < 0 {
		return fmt.Errorf("crawler.retry_backoff must be >= 0")
	}
	if c.Crawler.CityQPS < 0 {
		return fmt.Errorf("crawler.city_qps must be >= 0")
	}
	if c.Output.ResultDir == "" {
		return fmt.Errorf("output.result_dir must be set")
	}
	if c.Output.ChartDir == "" {
		return fmt.Errorf("output.chart_dir must be set")
	}
	if c.Output.WindowDays <= 0 {
		return fmt.Errorf("output.window_days must be > 0")
	}
	if len(c.Cities) == 0 {
		return fmt.Errorf("at least one city must be configured")
	}
	seen := make(map[string]struct{}, len(c.Cities))
	for i, cty := range c.Cities {
		if strings.TrimSpace(cty.Slug) == "" {
			return fmt.Errorf("cities[%d].slug must be set", i)
		}
		if strings.TrimSpace(cty.DisplayName) == "" {
			return fmt.Errorf("cities[%d].display_name must be set", i)
		}
		if !strings.HasPrefix(cty.URL, "http") {
			return fmt.Errorf("cities[%d].url %q is not an http(s) URL", i, cty.URL)
		}
		if _, dup := seen[cty.Slug]; dup {
			return fmt.Errorf("duplicate city slug %q", cty.Slug)
		}
		seen[cty.Slug] = struct{}{}
	}
	return nil
}
