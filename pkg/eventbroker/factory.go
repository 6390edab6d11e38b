package eventbroker

import (
	"fmt"
	"os"
	"time"

	"github.com/bitechdev/ResolveSpec/pkg/config"
)

// NewProviderFromConfig creates a provider based on configuration
func NewProviderFromConfig(cfg config.EventBrokerConfig) (Provider, error) {
	switch cfg.Provider {
	case "memory":
		cleanupInterval := 5 * time.Minute
		if cfg.Database.PollInterval > 0 {
			cleanupInterval = cfg.Database.PollInterval
		}

		return NewMemoryProvider(MemoryProviderOptions{
			InstanceID:      getInstanceID(cfg.InstanceID),
			MaxEvents:       10000,
			CleanupInterval: cleanupInterval,
		}), nil

	case "redis":
		// The factory does not build a Redis provider; it is created directly with NewRedisProvider
		return nil, fmt.Errorf("redis provider is not created from configuration; use NewRedisProvider")

	case "nats":
		// The factory does not build a NATS provider; it is created directly with NewNATSProvider
		return nil, fmt.Errorf("nats provider is not created from configuration; use NewNATSProvider")

	case "database":
		// The factory does not build a database provider; it is created directly with NewDatabaseProvider
		return nil, fmt.Errorf("database provider is not created from configuration; use NewDatabaseProvider")

	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

// getInstanceID returns the instance ID, defaulting to hostname if not specified
func getInstanceID(configID string) string {
	if configID != "" {
		return configID
	}

	// Try to get hostname
	if hostname, err := os.Hostname(); err == nil {
		return hostname
	}

	// Fallback to a default
	return "resolvespec-instance"
}
