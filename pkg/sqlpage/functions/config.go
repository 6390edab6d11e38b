package functions

import "golang.org/x/time/rate"

// Config gates and parameterizes the functions whose behavior is
// security-sensitive or environment-dependent.
type Config struct {
	AllowExec    bool
	WebRoot      string
	Version      string
	FetchLimiter *rate.Limiter
}

var defaultConfig = Config{
	Version:      "sqlpage-go/dev",
	FetchLimiter: rate.NewLimiter(rate.Limit(20), 40),
}

// Configure replaces the process-wide function configuration, called once
// during startup from the values in pkg/config.
func Configure(cfg Config) {
	if cfg.FetchLimiter == nil {
		cfg.FetchLimiter = defaultConfig.FetchLimiter
	}
	if cfg.Version == "" {
		cfg.Version = defaultConfig.Version
	}
	defaultConfig = cfg
}
