package config

import (
	"os"

	"github.com/rs/zerolog/log"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// DexScreenerAPI is the base URL of the primary pool data provider.
	DexScreenerAPI string
	// GeckoTerminalAPI is the base URL of the secondary provider used for consensus checks and price history.
	GeckoTerminalAPI string
	// DexToolsAPI is the base URL of the tertiary TVL source for single-pool consensus.
	DexToolsAPI string
	// DexToolsAPIKey authenticates requests to DexTools. Optional, requests go out unauthenticated without it.
	DexToolsAPIKey string
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	var err error

	DexScreenerAPI, err = getEnv("DEXSCREENER_API")
	if err != nil {
		return err
	}

	GeckoTerminalAPI, err = getEnv("GECKOTERMINAL_API")
	if err != nil {
		return err
	}

	DexToolsAPI, err = getEnv("DEXTOOLS_API")
	if err != nil {
		return err
	}

	DexToolsAPIKey = os.Getenv("DEXTOOLS_API_KEY")

	log.Debug().
		Str("DexScreenerAPI", DexScreenerAPI).
		Str("GeckoTerminalAPI", GeckoTerminalAPI).
		Str("DexToolsAPI", DexToolsAPI).
		Bool("DexToolsAPIKeySet", DexToolsAPIKey != "").
		Msg("Endpoint configuration loaded successfully.")

	return nil
}
