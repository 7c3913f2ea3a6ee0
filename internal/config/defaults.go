package config

import "time"

// Default policy values.  The cutoff and clamp bounds match the values
// used to produce the published regionalized databases; changing them
// changes result comparability.
const (
	DefaultCutoff           = 0.99
	DefaultShareTolerance   = 1e-6
	DefaultRatioClampMin    = 0.001
	DefaultRatioClampMax    = 0.999
	DefaultTradeWindowYears = 5
	DefaultTopProducers     = 5
	DefaultWorkers          = 4
)

// ApplyDefaults fills every unset field with its default value.  Called
// before the file and environment layers are merged so explicit settings
// always win.
func (c *Config) ApplyDefaults() {
	if c.Run.Cutoff == 0 {
		c.Run.Cutoff = DefaultCutoff
	}
	if c.Run.ShareTolerance == 0 {
		c.Run.ShareTolerance = DefaultShareTolerance
	}
	if c.Run.RatioClampMin == 0 {
		c.Run.RatioClampMin = DefaultRatioClampMin
	}
	if c.Run.RatioClampMax == 0 {
		c.Run.RatioClampMax = DefaultRatioClampMax
	}
	if c.Run.TradeWindowYears == 0 {
		c.Run.TradeWindowYears = DefaultTradeWindowYears
	}
	if c.Run.TopProducers == 0 {
		c.Run.TopProducers = DefaultTopProducers
	}
	if c.Run.Workers == 0 {
		c.Run.Workers = DefaultWorkers
	}

	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.User == "" {
		c.Database.User = "regioflow"
	}
	if c.Database.Database == "" {
		c.Database.Database = "regioflow"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 10
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = 2
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = time.Hour
	}
	if c.Database.ConnectTimeout == 0 {
		c.Database.ConnectTimeout = 10 * time.Second
	}
	if c.Database.MigrationsPath == "" {
		c.Database.MigrationsPath = "migrations"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if len(c.Log.OutputPaths) == 0 {
		c.Log.OutputPaths = []string{"stdout"}
	}
	if len(c.Log.ErrorOutputPaths) == 0 {
		c.Log.ErrorOutputPaths = []string{"stderr"}
	}

	if c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}
