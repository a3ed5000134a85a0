package weft

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config contains all configuration options for the weft engine
type Config struct {
	// CacheMaxSize is the maximum number of templates to cache. 0 disables caching.
	CacheMaxSize int
	// CacheTTL is the time-to-live for cached templates. 0 means no expiration.
	CacheTTL time.Duration
	// LogLevel controls the verbosity of logging (debug, info, warn, error)
	LogLevel string
	// MaxIncludeDepth controls the maximum depth of nested template includes
	MaxIncludeDepth int
	// AutoReload re-parses cached templates whose source file changed on disk
	AutoReload bool
}

var (
	globalConfig      *Config
	globalConfigMutex sync.RWMutex
	configOnce        sync.Once
)

func init() {
	// Initialize global config from environment on first use
	configOnce.Do(func() {
		globalConfig = ConfigFromEnvironment()
	})
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		CacheMaxSize:    100,
		CacheTTL:        0,
		LogLevel:        "info",
		MaxIncludeDepth: 25,
		AutoReload:      false,
	}
}

// ConfigFromEnvironment creates a configuration from environment variables
func ConfigFromEnvironment() *Config {
	config := DefaultConfig()

	// WEFT_CACHE_MAX_SIZE
	if val := os.Getenv("WEFT_CACHE_MAX_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			config.CacheMaxSize = size
		}
	}

	// WEFT_CACHE_TTL
	if val := os.Getenv("WEFT_CACHE_TTL"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			config.CacheTTL = duration
		}
	}

	// WEFT_LOG_LEVEL
	if val := os.Getenv("WEFT_LOG_LEVEL"); val != "" {
		config.LogLevel = val
	}

	// WEFT_MAX_INCLUDE_DEPTH
	if val := os.Getenv("WEFT_MAX_INCLUDE_DEPTH"); val != "" {
		if depth, err := strconv.Atoi(val); err == nil {
			config.MaxIncludeDepth = depth
		}
	}

	// WEFT_AUTO_RELOAD
	if val := os.Getenv("WEFT_AUTO_RELOAD"); val != "" {
		config.AutoReload = parseBool(val)
	}

	return config
}

// NewConfigWithDefaults creates a new configuration with defaults applied to unset fields
func NewConfigWithDefaults(overrides *Config) *Config {
	defaults := DefaultConfig()

	if overrides == nil {
		return defaults
	}

	// Create a copy of the overrides
	config := *overrides

	// Apply defaults for zero values
	if config.CacheMaxSize == 0 {
		config.CacheMaxSize = defaults.CacheMaxSize
	}

	if config.LogLevel == "" {
		config.LogLevel = defaults.LogLevel
	}

	if config.MaxIncludeDepth == 0 {
		config.MaxIncludeDepth = defaults.MaxIncludeDepth
	}

	return &config
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.CacheMaxSize < 0 {
		return errors.New("cache max size cannot be negative")
	}

	if c.CacheTTL < 0 {
		return errors.New("cache TTL cannot be negative")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"off":   true,
	}

	if !validLogLevels[c.LogLevel] {
		return errors.New("invalid log level: " + c.LogLevel)
	}

	if c.MaxIncludeDepth <= 0 {
		return errors.New("max include depth must be positive")
	}

	return nil
}

// GetGlobalConfig returns the global configuration
func GetGlobalConfig() *Config {
	globalConfigMutex.RLock()
	defer globalConfigMutex.RUnlock()

	if globalConfig == nil {
		return DefaultConfig()
	}

	// Return a copy to prevent modification
	configCopy := *globalConfig
	return &configCopy
}

// SetGlobalConfig sets the global configuration
func SetGlobalConfig(config *Config) {
	globalConfigMutex.Lock()
	globalConfig = config
	globalConfigMutex.Unlock()

	// Update logger based on new config (outside the lock to avoid deadlock)
	UpdateLoggerFromConfig()
}

// parseBool parses a boolean value from a string
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
