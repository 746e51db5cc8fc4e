package cache

import (
	"encoding/json"
	"os"
	"time"
)

// Config represents cache configuration
type Config struct {
	MaxEntries int `json:"maxEntries"`
	MaxTiles   int `json:"maxTiles"`
	TTLMinutes int `json:"ttlMinutes"`
}

// DefaultConfig returns default cache configuration
func DefaultConfig() *Config {
	return &Config{
		MaxEntries: 512,
		MaxTiles:   2048,
		TTLMinutes: 60,
	}
}

// TTL returns how long a lookup stays cached
func (c *Config) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// LoadConfig loads the "cache" section of a JSON config file, or returns defaults
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return config, err
	}

	var fileConfig struct {
		Cache *Config `json:"cache"`
	}
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return config, err
	}

	// Merge with defaults
	if fileConfig.Cache != nil {
		if fileConfig.Cache.MaxEntries > 0 {
			config.MaxEntries = fileConfig.Cache.MaxEntries
		}
		if fileConfig.Cache.MaxTiles > 0 {
			config.MaxTiles = fileConfig.Cache.MaxTiles
		}
		if fileConfig.Cache.TTLMinutes > 0 {
			config.TTLMinutes = fileConfig.Cache.TTLMinutes
		}
	}

	return config, nil
}
