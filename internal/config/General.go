package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// ChainID is the chain whose pools this instance watches (e.g. "base").
	ChainID string

	// PoolWatchlist is the set of pool contract addresses to score each pass.
	PoolWatchlist []string

	// TrackerPoolCap caps how many pools the TVL tracker retains before
	// evicting the least recently written ones.
	TrackerPoolCap uint64

	// HTTPTimeoutSeconds bounds every outbound provider request.
	HTTPTimeoutSeconds uint64
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	ChainID, err = getEnv("CHAIN_ID")
	if err != nil {
		return err
	}

	watchlist, err := getEnv("POOL_WATCHLIST")
	if err != nil {
		return err
	}
	PoolWatchlist = PoolWatchlist[:0]
	for _, addr := range strings.Split(watchlist, ",") {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			PoolWatchlist = append(PoolWatchlist, addr)
		}
	}
	if len(PoolWatchlist) == 0 {
		return errors.New("POOL_WATCHLIST must contain at least one pool address")
	}

	TrackerPoolCap, err = getEnvAsUint64("TRACKER_POOL_CAP")
	if err != nil {
		return err
	}

	HTTPTimeoutSeconds, err = getEnvAsUint64("HTTP_TIMEOUT_SECONDS")
	if err != nil {
		return err
	}

	// Load endpoint configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("ChainID", ChainID).
		Int("WatchlistSize", len(PoolWatchlist)).
		Uint64("TrackerPoolCap", TrackerPoolCap).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsFloat64 retrieves an environment variable as a float64. Returns error if not set or invalid.
func getEnvAsFloat64(key string) (float64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid float64, got: " + valueStr)
	}
	return value, nil
}
