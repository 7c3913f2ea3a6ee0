// Package config defines the complete runtime configuration of the
// regioflow service and the viper-based loading machinery around it.
// Configuration is layered: compiled defaults, then an optional YAML file,
// then REGIOFLOW_* environment variables, each layer overriding the last.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config is the root configuration object.  A single instance is built at
// startup and handed to component constructors; components never read
// viper or environment variables themselves.
type Config struct {
	Run      RunConfig      `mapstructure:"run" yaml:"run"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

// RunConfig carries the numeric policy knobs of a regionalization run.
// These are deliberately configuration rather than constants so that the
// sensitivity of results to the cutoff and tolerances can be explored
// without rebuilding.
type RunConfig struct {
	// Cutoff is the cumulative trade-share threshold used when selecting
	// the countries that will receive a regionalized process.  Must lie in
	// (0, 1].
	Cutoff float64 `mapstructure:"cutoff" yaml:"cutoff"`

	// ShareTolerance bounds the allowed deviation of a share set from 1.0
	// after normalization.
	ShareTolerance float64 `mapstructure:"share_tolerance" yaml:"share_tolerance"`

	// RatioClampMin and RatioClampMax bound the export ratio used when
	// deriving production from export quantities, preventing division
	// blowups on near-total exporters and importers.
	RatioClampMin float64 `mapstructure:"ratio_clamp_min" yaml:"ratio_clamp_min"`
	RatioClampMax float64 `mapstructure:"ratio_clamp_max" yaml:"ratio_clamp_max"`

	// TradeWindowYears is the number of most recent years averaged when
	// aggregating trade flows.
	TradeWindowYears int `mapstructure:"trade_window_years" yaml:"trade_window_years"`

	// TopProducers caps how many producing countries absorb redistributed
	// re-export volumes from trade hubs.
	TopProducers int `mapstructure:"top_producers" yaml:"top_producers"`

	// Workers is the number of commodities regionalized concurrently.
	Workers int `mapstructure:"workers" yaml:"workers"`

	// SingleYearCommodities lists commodity codes whose trade data is too
	// sparse or too volatile for multi-year averaging; only the latest
	// year is used for them.
	SingleYearCommodities []string `mapstructure:"single_year_commodities" yaml:"single_year_commodities"`
}

// DatabaseConfig configures the PostgreSQL connection pool shared by the
// inventory, trade and write-back stores.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	User            string        `mapstructure:"user" yaml:"user"`
	Password        string        `mapstructure:"password" yaml:"password"`
	Database        string        `mapstructure:"database" yaml:"database"`
	SSLMode         string        `mapstructure:"ssl_mode" yaml:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns" yaml:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns" yaml:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	MigrationsPath  string        `mapstructure:"migrations_path" yaml:"migrations_path"`
}

// DSN renders the pool connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// URL renders the connection string in URL form, as required by the
// migration tool.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User), url.QueryEscape(d.Password),
		d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// LogConfig mirrors logging.LogConfig; it is redeclared here so the config
// package does not depend on the logging package.
type LogConfig struct {
	Level            string   `mapstructure:"level" yaml:"level"`
	Format           string   `mapstructure:"format" yaml:"format"`
	OutputPaths      []string `mapstructure:"output_paths" yaml:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths" yaml:"error_output_paths"`
}

// MetricsConfig configures the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Address string `mapstructure:"address" yaml:"address"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// Validate checks cross-field constraints after all layers are merged.
// It returns the first violation found.
func (c *Config) Validate() error {
	if c.Run.Cutoff <= 0 || c.Run.Cutoff > 1 {
		return fmt.Errorf("config: run.cutoff must be in (0, 1], got %v", c.Run.Cutoff)
	}
	if c.Run.ShareTolerance <= 0 {
		return fmt.Errorf("config: run.share_tolerance must be positive, got %v", c.Run.ShareTolerance)
	}
	if c.Run.RatioClampMin <= 0 || c.Run.RatioClampMax >= 1 || c.Run.RatioClampMin >= c.Run.RatioClampMax {
		return fmt.Errorf("config: run ratio clamp must satisfy 0 < min < max < 1, got [%v, %v]",
			c.Run.RatioClampMin, c.Run.RatioClampMax)
	}
	if c.Run.TradeWindowYears < 1 {
		return fmt.Errorf("config: run.trade_window_years must be at least 1, got %d", c.Run.TradeWindowYears)
	}
	if c.Run.TopProducers < 1 {
		return fmt.Errorf("config: run.top_producers must be at least 1, got %d", c.Run.TopProducers)
	}
	if c.Run.Workers < 1 {
		return fmt.Errorf("config: run.workers must be at least 1, got %d", c.Run.Workers)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d out of range", c.Database.Port)
	}
	if c.Database.Database == "" {
		return fmt.Errorf("config: database.database is required")
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return fmt.Errorf("config: metrics.address is required when metrics are enabled")
	}
	return nil
}
