package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/poolpulse/poolpulse/internal/config"
	"github.com/poolpulse/poolpulse/internal/datafetcher"
	"github.com/poolpulse/poolpulse/internal/engine"
	"github.com/poolpulse/poolpulse/internal/logger"
	"github.com/poolpulse/poolpulse/internal/metrics"
	"github.com/poolpulse/poolpulse/internal/state"
	"github.com/poolpulse/poolpulse/internal/tracker"
	"github.com/poolpulse/poolpulse/internal/web"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	DEFAULT_LOOP_INTERVAL_MINUTES = 5
)

// main is the entry point for the pool scoring engine.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("PoolPulse Scoring Engine Starting...")

	// Initialize Database Connection
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// Load Score Weights
	weights, err := state.LoadActiveScoreWeights(engine.DEFAULT_WEIGHTS_CONFIG_NAME)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load active score weights, using defaults and saving.")
		defaultWeights := config.DefaultScoreWeights
		if _, err := state.SaveScoreWeights(defaultWeights, engine.DEFAULT_WEIGHTS_CONFIG_NAME, engine.DEFAULT_WEIGHTS_CONFIG_VERSION, true); err != nil {
			log.Fatal().Err(err).Msg("Failed to save initial default score weights.")
		}
		weights = &defaultWeights
	}
	log.Info().Msg("Score weights loaded successfully.")

	// --- 2. Data Source Initialization ---
	httpTimeout := time.Duration(config.HTTPTimeoutSeconds) * time.Second

	dexScreener := datafetcher.NewDexScreenerClient(config.DexScreenerAPI, httpTimeout)
	geckoTerminal := datafetcher.NewGeckoTerminalClient(config.GeckoTerminalAPI, httpTimeout)
	dexTools := datafetcher.NewDexToolsClient(config.DexToolsAPI, config.DexToolsAPIKey, httpTimeout)

	multiSource := datafetcher.MultiSource{
		Providers:  []datafetcher.PoolProvider{dexScreener, geckoTerminal},
		TvlSources: []datafetcher.TvlSource{dexTools},
	}

	trackerStore := tracker.NewStore(int(config.TrackerPoolCap))
	recorder := metrics.New()

	// --- 3. Create Engine Instance with Dependency Injection ---
	log.Info().Msg("Creating engine instance with dependency injection...")

	engineConfig := engine.Config{
		Provider:      dexScreener,
		Secondary:     geckoTerminal,
		History:       geckoTerminal,
		Consensus:     multiSource,
		Tracker:       trackerStore,
		Metrics:       recorder,
		Weights:       *weights,
		ConfigName:    engine.DEFAULT_WEIGHTS_CONFIG_NAME,
		ConfigVersion: engine.DEFAULT_WEIGHTS_CONFIG_VERSION,
		ChainID:       config.ChainID,
		Watchlist:     config.PoolWatchlist,
	}

	engineInstance, err := engine.NewEngine(engineConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create engine instance")
	}

	log.Info().Msg("Engine instance created successfully")

	// --- Start Web Server ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort, engineInstance)
	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting scoring API server")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 4. Start Engine Main Loop ---
	loopInterval := time.Duration(mustAtoi(os.Getenv("SCORING_INTERVAL_MINUTES"), DEFAULT_LOOP_INTERVAL_MINUTES)) * time.Minute
	log.Info().Str("interval", loopInterval.String()).Msg("Starting engine main loop")

	// Stop the loop cleanly on SIGINT/SIGTERM so the database connection is closed
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start the engine loop (this will run until the context is cancelled)
	engineInstance.RunLoop(ctx, loopInterval)

	log.Info().Msg("PoolPulse Scoring Engine stopped.")
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
