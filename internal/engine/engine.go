package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/poolpulse/poolpulse/internal/analyzer"
	"github.com/poolpulse/poolpulse/internal/config"
	"github.com/poolpulse/poolpulse/internal/datafetcher"
	"github.com/poolpulse/poolpulse/internal/logger"
	"github.com/poolpulse/poolpulse/internal/metrics"
	"github.com/poolpulse/poolpulse/internal/planner"
	"github.com/poolpulse/poolpulse/internal/state"
	"github.com/poolpulse/poolpulse/internal/tracker"
	"github.com/poolpulse/poolpulse/internal/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// Export constants for use in main.go
	DEFAULT_WEIGHTS_CONFIG_NAME    = "default_scoring_weights"
	DEFAULT_WEIGHTS_CONFIG_VERSION = 1
)

var ErrPoolNotFound = errors.New("pool not found at provider")

// PriceHistorySource supplies the hourly price series measured volatility is
// computed from.
type PriceHistorySource interface {
	FetchPriceHistory(ctx context.Context, chainID, address string) ([]types.PriceData, error)
}

// ObservationSource supplies per-source claims for cross-venue consensus
// checks on a single pool.
type ObservationSource interface {
	Observations(ctx context.Context, chainID, address string) []types.ConsensusObservation
}

// Engine drives the periodic scoring passes and serves on-demand scoring
// requests from the web layer.
type Engine struct {
	// Core dependencies
	logger    zerolog.Logger
	provider  datafetcher.PoolProvider
	secondary datafetcher.PoolProvider
	history   PriceHistorySource
	consensus ObservationSource
	tracker   *tracker.Store
	metrics   *metrics.Recorder

	// Configuration
	configName    string
	configVersion int
	chainID       string
	watchlist     []string
	allocations   types.AllocationConfig

	// Runtime state
	mu        sync.RWMutex
	weights   types.ScoreWeights
	passCount int
}

// Config holds the configuration for creating a new Engine instance
type Config struct {
	Provider      datafetcher.PoolProvider
	Secondary     datafetcher.PoolProvider
	History       PriceHistorySource
	Consensus     ObservationSource
	Tracker       *tracker.Store
	Metrics       *metrics.Recorder
	Weights       types.ScoreWeights
	ConfigName    string
	ConfigVersion int
	ChainID       string
	Watchlist     []string
	// Allocations is optional: the zero value selects the default
	// allocation config.
	Allocations types.AllocationConfig
}

// NewEngine creates a new Engine instance with dependency injection
func NewEngine(cfg Config) (*Engine, error) {
	// Validate required dependencies
	if err := validateEngineConfig(cfg); err != nil {
		return nil, fmt.Errorf("engine configuration validation failed: %w", err)
	}

	allocations := cfg.Allocations
	if allocations == (types.AllocationConfig{}) {
		allocations = config.DefaultAllocationConfig
	}

	engine := &Engine{
		logger:        logger.GetForComponent("engine_core"),
		provider:      cfg.Provider,
		secondary:     cfg.Secondary,
		history:       cfg.History,
		consensus:     cfg.Consensus,
		tracker:       cfg.Tracker,
		metrics:       cfg.Metrics,
		configName:    cfg.ConfigName,
		configVersion: cfg.ConfigVersion,
		chainID:       cfg.ChainID,
		watchlist:     cfg.Watchlist,
		allocations:   allocations,
		weights:       cfg.Weights,
		passCount:     0,
	}

	engine.logger.Info().
		Str("configName", engine.configName).
		Int("configVersion", engine.configVersion).
		Str("chainID", engine.chainID).
		Int("watchlistSize", len(engine.watchlist)).
		Str("provider", engine.provider.Name()).
		Msg("Engine instance created successfully with dependency injection")

	return engine, nil
}

// validateEngineConfig validates the Engine configuration
func validateEngineConfig(cfg Config) error {
	if cfg.Provider == nil {
		return fmt.Errorf("pool provider cannot be nil")
	}
	if cfg.Tracker == nil {
		return fmt.Errorf("tracker store cannot be nil")
	}
	if cfg.Metrics == nil {
		return fmt.Errorf("metrics recorder cannot be nil")
	}
	if err := analyzer.ValidateScoreWeights(cfg.Weights); err != nil {
		return fmt.Errorf("score weights are invalid: %w", err)
	}
	if cfg.ConfigName == "" {
		return fmt.Errorf("config name cannot be empty")
	}
	if cfg.ConfigVersion <= 0 {
		return fmt.Errorf("config version must be positive")
	}
	if cfg.ChainID == "" {
		return fmt.Errorf("chain ID cannot be empty")
	}
	if len(cfg.Watchlist) == 0 {
		return fmt.Errorf("watchlist cannot be empty")
	}
	if cfg.Allocations != (types.AllocationConfig{}) {
		if err := planner.ValidateAllocationConfig(cfg.Allocations); err != nil {
			return fmt.Errorf("allocation config is invalid: %w", err)
		}
	}
	// History and Consensus are optional: without them volatility falls back
	// to the snapshot proxy and cross-venue checks are skipped. A missing
	// Secondary only disables the batch cross-check.
	return nil
}

// RunLoop starts the main scoring loop with the specified interval
func (e *Engine) RunLoop(ctx context.Context, interval time.Duration) {
	e.logger.Info().
		Dur("interval", interval).
		Msg("Starting engine main loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run first pass immediately
	e.passCount++
	e.logger.Info().Int("pass", e.passCount).Msg("Initiating scoring pass")
	e.RunPass(ctx)
	e.logger.Info().Int("pass", e.passCount).Msg("Scoring pass completed")

	// Continue with ticker
	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("Engine loop stopped due to context cancellation")
			return
		case <-ticker.C:
			e.passCount++
			e.logger.Info().Int("pass", e.passCount).Msg("Initiating scoring pass")
			e.RunPass(ctx)
			e.logger.Info().Int("pass", e.passCount).Msg("Scoring pass completed")
		}
	}
}

// RunPass executes one complete scoring pass over the watchlist
func (e *Engine) RunPass(ctx context.Context) {
	passStartTime := time.Now()

	// Generate unique pass ID for tracing logs across the entire pass
	passID := uuid.New().String()
	passLogger := e.logger.With().Str("pass_id", passID).Logger()

	passLogger.Info().Msg("--- Starting Scoring Pass ---")

	passNumber := e.getPassNumber()
	weightsID := e.getWeightsID()
	weights := e.Weights()

	passLogger.Info().
		Int("passNumber", passNumber).
		Time("timestamp", passStartTime).
		Msg("Pass initialized")

	// --- Step 1: Data Fetching ---
	passLogger.Info().Msg("Step 1: Fetching pool snapshots...")

	fetchStart := time.Now()
	snapshots, err := e.provider.FetchPools(ctx, e.chainID, e.watchlist)
	e.metrics.ObserveFetch(e.provider.Name(), time.Since(fetchStart))
	if err != nil {
		e.metrics.RecordFetchError(e.provider.Name())
		e.metrics.RecordPass("failed")
		passLogger.Error().Err(err).Msg("Pass aborted: Failed to fetch pool snapshots.")
		return
	}
	passLogger.Info().Int("pools", len(snapshots)).Msg("Step 1: Data fetching complete.")

	// --- Step 2: Liquidity History ---
	passLogger.Info().Msg("Step 2: Recording liquidity history...")
	now := time.Now().UTC()
	for _, snap := range snapshots {
		e.tracker.Record(snap.ID(), snap.TvlUSD, now)
	}
	e.metrics.SetTrackedPools(len(e.tracker.TrackedPools()))
	passLogger.Info().Int("trackedPools", len(e.tracker.TrackedPools())).Msg("Step 2: Liquidity history recorded.")

	// --- Step 3: Consensus Cross-Check ---
	secondaryByID := e.fetchSecondary(ctx, passLogger)

	// --- Step 4: Analysis & Scoring ---
	passLogger.Info().Msg("Step 4: Scoring pools...")
	scores := make([]types.Score, 0, len(snapshots))
	suspectCount := 0
	for _, snap := range snapshots {
		var observations []types.ConsensusObservation
		if secondarySnap, ok := secondaryByID[snap.ID()]; ok {
			observations = pairObservations(e.provider.Name(), snap, e.secondary.Name(), secondarySnap)
		}

		score := e.scorePool(ctx, snap, observations, weights, passID, passLogger)
		if score.Suspect {
			suspectCount++
		}
		scores = append(scores, score)
	}
	passLogger.Info().
		Int("scored", len(scores)).
		Int("suspect", suspectCount).
		Msg("Step 4: Pool scoring complete.")

	// --- Step 5: Ranking & Persistence ---
	passLogger.Info().Msg("Step 5: Ranking and persisting scores...")
	ranked, err := analyzer.RankScores(scores, 0)
	if err != nil {
		e.metrics.RecordPass("failed")
		passLogger.Error().Err(err).Msg("Pass aborted: Failed to rank scores.")
		return
	}

	savedCount := 0
	for _, score := range ranked {
		if _, err := state.SavePoolScore(score, passNumber, weightsID); err != nil {
			passLogger.Error().Err(err).Str("pool", string(score.PoolID)).Msg("Failed to persist pool score")
			continue
		}
		savedCount++
	}

	e.metrics.SetPoolsScored(len(ranked))
	e.metrics.SetSuspectPools(suspectCount)
	e.metrics.RecordPass("ok")

	passLogger.Info().
		Int("ranked", len(ranked)).
		Int("saved", savedCount).
		Msg("Step 5: Ranking and persistence complete.")

	passEndTime := time.Now()
	passLogger.Info().Str("passDuration", passEndTime.Sub(passStartTime).String()).Msg("Scoring Pass Duration")

	passLogger.Info().Msg("--- Scoring Pass Completed Successfully ---")
}

// fetchSecondary pulls the watchlist from the secondary provider and indexes
// the result by pool ID. Returns nil when no secondary is configured or the
// fetch fails; a pass never aborts over a missing cross-check.
func (e *Engine) fetchSecondary(ctx context.Context, passLogger zerolog.Logger) map[types.PoolID]types.PoolSnapshot {
	if e.secondary == nil {
		return nil
	}

	passLogger.Info().Str("provider", e.secondary.Name()).Msg("Step 3: Cross-checking against secondary source...")

	fetchStart := time.Now()
	secondarySnaps, err := e.secondary.FetchPools(ctx, e.chainID, e.watchlist)
	e.metrics.ObserveFetch(e.secondary.Name(), time.Since(fetchStart))
	if err != nil {
		e.metrics.RecordFetchError(e.secondary.Name())
		passLogger.Warn().Err(err).Str("provider", e.secondary.Name()).Msg("Step 3: Secondary source unavailable, scoring without consensus.")
		return nil
	}

	secondaryByID := make(map[types.PoolID]types.PoolSnapshot, len(secondarySnaps))
	for _, snap := range secondarySnaps {
		secondaryByID[snap.ID()] = snap
	}
	passLogger.Info().Int("pools", len(secondaryByID)).Msg("Step 3: Consensus cross-check complete.")
	return secondaryByID
}

// pairObservations builds the two-source consensus input for one pool from
// matching primary and secondary snapshots.
func pairObservations(primaryName string, primary types.PoolSnapshot, secondaryName string, secondary types.PoolSnapshot) []types.ConsensusObservation {
	primaryTvl := primary.TvlUSD
	primaryVolume := primary.Volume24hUSD
	secondaryTvl := secondary.TvlUSD
	secondaryVolume := secondary.Volume24hUSD

	return []types.ConsensusObservation{
		{Source: primaryName, TvlUSD: &primaryTvl, Volume24hUSD: &primaryVolume},
		{Source: secondaryName, TvlUSD: &secondaryTvl, Volume24hUSD: &secondaryVolume},
	}
}

// ScorePool scores a single pool on demand, fanning out to every configured
// source so the score includes a cross-venue consensus check.
func (e *Engine) ScorePool(ctx context.Context, chainID, address string) (types.Score, types.HealthResult, error) {
	fetchStart := time.Now()
	snapshots, err := e.provider.FetchPools(ctx, chainID, []string{address})
	e.metrics.ObserveFetch(e.provider.Name(), time.Since(fetchStart))
	if err != nil {
		e.metrics.RecordFetchError(e.provider.Name())
		return types.Score{}, types.HealthResult{}, errors.Join(ErrPoolNotFound, err)
	}
	if len(snapshots) == 0 {
		return types.Score{}, types.HealthResult{}, ErrPoolNotFound
	}
	snap := snapshots[0]

	var observations []types.ConsensusObservation
	if e.consensus != nil {
		observations = e.consensus.Observations(ctx, chainID, address)
	}

	now := time.Now().UTC()
	e.tracker.Record(snap.ID(), snap.TvlUSD, now)

	passID := uuid.New().String()
	score := e.scorePool(ctx, snap, observations, e.Weights(), passID, e.logger)

	health, err := analyzer.CalculateHealthScore(snap, score.Volatility, score.FeeAPR.APRValue(), now, e.Weights())
	if err != nil {
		e.logger.Warn().Err(err).Str("pool", string(snap.ID())).Msg("Health score unavailable for on-demand request")
		health = types.HealthResult{}
	}

	// On-demand scores are persisted under the current pass number without
	// advancing it.
	passNumber, err := state.GetCurrentPassNumber()
	if err != nil {
		passNumber = 0
	}
	if _, err := state.SavePoolScore(score, passNumber, e.getWeightsID()); err != nil {
		e.logger.Error().Err(err).Str("pool", string(score.PoolID)).Msg("Failed to persist on-demand pool score")
	}

	return score, health, nil
}

// SuggestRange produces a liquidity range suggestion with fee and breach
// estimates for a single pool.
func (e *Engine) SuggestRange(ctx context.Context, chainID, address string, mode types.RiskMode, horizonDays, capitalUSD float64) (types.RangeResult, types.FeeEstimate, types.ILRiskResult, error) {
	fetchStart := time.Now()
	snapshots, err := e.provider.FetchPools(ctx, chainID, []string{address})
	e.metrics.ObserveFetch(e.provider.Name(), time.Since(fetchStart))
	if err != nil {
		e.metrics.RecordFetchError(e.provider.Name())
		return types.RangeResult{}, types.FeeEstimate{}, types.ILRiskResult{}, errors.Join(ErrPoolNotFound, err)
	}
	if len(snapshots) == 0 {
		return types.RangeResult{}, types.FeeEstimate{}, types.ILRiskResult{}, ErrPoolNotFound
	}
	snap := snapshots[0]

	weights := e.Weights()
	vol := e.estimateVolatility(ctx, snap)

	rangeResult, err := analyzer.CalculateRange(snap, vol, mode, horizonDays, weights)
	if err != nil {
		return types.RangeResult{}, types.FeeEstimate{}, types.ILRiskResult{}, err
	}

	feeAPR, err := analyzer.CalculateFeeAPR(snap.TvlUSD, snap.Fees24hUSD, snap.Fees1hUSD, snap.Fees5mUSD)
	if err != nil {
		return types.RangeResult{}, types.FeeEstimate{}, types.ILRiskResult{}, err
	}

	feeEstimate, err := analyzer.CalculateFeeEstimate(snap, feeAPR, capitalUSD, mode, weights)
	if err != nil {
		return types.RangeResult{}, types.FeeEstimate{}, types.ILRiskResult{}, err
	}

	ilRisk, err := analyzer.CalculateILRisk(snap, vol, mode, horizonDays, weights)
	if err != nil {
		return types.RangeResult{}, types.FeeEstimate{}, types.ILRiskResult{}, err
	}

	return rangeResult, feeEstimate, ilRisk, nil
}

// SuggestAllocations scores the whole watchlist and splits an advisory
// capital amount across the strongest pools.
func (e *Engine) SuggestAllocations(ctx context.Context, capitalUSD float64) (types.AllocationPlan, error) {
	fetchStart := time.Now()
	snapshots, err := e.provider.FetchPools(ctx, e.chainID, e.watchlist)
	e.metrics.ObserveFetch(e.provider.Name(), time.Since(fetchStart))
	if err != nil {
		e.metrics.RecordFetchError(e.provider.Name())
		return types.AllocationPlan{}, fmt.Errorf("failed to fetch pool snapshots for allocation plan: %w", err)
	}

	weights := e.Weights()
	now := time.Now().UTC()
	passID := uuid.New().String()

	scores := make([]types.Score, 0, len(snapshots))
	snapshotsByID := make(map[types.PoolID]types.PoolSnapshot, len(snapshots))
	for _, snap := range snapshots {
		e.tracker.Record(snap.ID(), snap.TvlUSD, now)
		snapshotsByID[snap.ID()] = snap
		scores = append(scores, e.scorePool(ctx, snap, nil, weights, passID, e.logger))
	}

	plan, err := planner.BuildAllocationPlan(scores, snapshotsByID, capitalUSD, e.allocations, weights)
	if err != nil {
		return types.AllocationPlan{}, err
	}

	e.logger.Info().
		Str("pass_id", passID).
		Int("entries", len(plan.Entries)).
		Int("skipped", len(plan.SkippedPools)).
		Float64("capitalUSD", capitalUSD).
		Float64("unallocatedUSD", plan.UnallocatedUSD).
		Msg("Allocation plan ready for watchlist")
	return plan, nil
}

// Weights returns the active scoring weights.
func (e *Engine) Weights() types.ScoreWeights {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.weights
}

// UpdateWeights validates, persists, and activates a new weights version.
// The new weights only take effect once the database write succeeds.
func (e *Engine) UpdateWeights(weights types.ScoreWeights) (int, error) {
	if err := analyzer.ValidateScoreWeights(weights); err != nil {
		return 0, errors.Join(analyzer.ErrInvalidScoreWeights, err)
	}

	version, err := state.NextScoreWeightsVersion(e.configName)
	if err != nil {
		return 0, fmt.Errorf("failed to determine next weights version: %w", err)
	}

	if _, err := state.SaveScoreWeights(weights, e.configName, version, true); err != nil {
		return 0, fmt.Errorf("failed to persist new weights version: %w", err)
	}

	e.mu.Lock()
	e.weights = weights
	e.configVersion = version
	e.mu.Unlock()

	e.logger.Info().
		Str("configName", e.configName).
		Int("version", version).
		Msg("Activated new score weights")

	return version, nil
}

// TrackedPools exposes the tracker's pool list for the web layer.
func (e *Engine) TrackedPools() []types.PoolID {
	return e.tracker.TrackedPools()
}

// scorePool runs the full per-pool pipeline. A panic while scoring one pool
// is converted into a failed score so the rest of the pass continues.
func (e *Engine) scorePool(ctx context.Context, snap types.PoolSnapshot, observations []types.ConsensusObservation, weights types.ScoreWeights, passID string, passLogger zerolog.Logger) (score types.Score) {
	now := time.Now().UTC()

	defer func() {
		if r := recover(); r != nil {
			passLogger.Error().
				Interface("panic", r).
				Str("pool", string(snap.ID())).
				Msg("Recovered from panic while scoring pool")
			score = analyzer.FailedScore(snap.ID(), now, fmt.Sprintf("scoring panicked: %v", r))
			score.PassID = passID
		}
	}()

	vol := e.estimateVolatility(ctx, snap)

	feeAPR, err := analyzer.CalculateFeeAPR(snap.TvlUSD, snap.Fees24hUSD, snap.Fees1hUSD, snap.Fees5mUSD)
	if err != nil {
		passLogger.Error().Err(err).Str("pool", string(snap.ID())).Msg("Failed to estimate fee APR")
		score = analyzer.FailedScore(snap.ID(), now, fmt.Sprintf("fee APR estimation failed: %v", err))
		score.PassID = passID
		return score
	}

	tvlDrop := e.tracker.TvlDrop(snap.ID(), snap.TvlUSD, now)
	consensus := analyzer.CalculateConsensus(snap.ID(), observations)

	executionCost, err := analyzer.CalculateExecutionCost(snap)
	if err != nil {
		passLogger.Error().Err(err).Str("pool", string(snap.ID())).Msg("Failed to estimate execution cost")
		score = analyzer.FailedScore(snap.ID(), now, fmt.Sprintf("execution cost estimation failed: %v", err))
		score.PassID = passID
		return score
	}

	input := analyzer.ComposeInput{
		Snapshot:      snap,
		Volatility:    vol,
		FeeAPR:        feeAPR,
		TvlDrop:       tvlDrop,
		Consensus:     consensus,
		ExecutionCost: executionCost,
		Now:           now,
	}

	score, err = analyzer.ComposeScore(input, weights)
	if err != nil {
		passLogger.Error().Err(err).Str("pool", string(snap.ID())).Msg("Failed to compose score")
		score = analyzer.FailedScore(snap.ID(), now, fmt.Sprintf("score composition failed: %v", err))
	}
	score.PassID = passID
	return score
}

// estimateVolatility prefers measured volatility from the price history
// source and falls back to the snapshot's 1h proxy when the series is
// missing or too short.
func (e *Engine) estimateVolatility(ctx context.Context, snap types.PoolSnapshot) types.VolatilityEstimate {
	if e.history != nil {
		fetchStart := time.Now()
		prices, err := e.history.FetchPriceHistory(ctx, snap.ChainID, snap.PoolAddress)
		e.metrics.ObserveFetch("price_history", time.Since(fetchStart))
		if err != nil {
			e.metrics.RecordFetchError("price_history")
			e.logger.Warn().
				Err(err).
				Str("pool", string(snap.ID())).
				Msg("Price history unavailable, falling back to proxy volatility")
		} else {
			estimate, estErr := analyzer.EstimateVolatility(prices)
			if estErr == nil && estimate.Known() {
				return estimate
			}
			e.logger.Debug().
				Str("pool", string(snap.ID())).
				Int("samples", len(prices)).
				Msg("Price series too short for measured volatility, falling back to proxy")
		}
	}

	proxy, err := analyzer.CalculateVolatilityProxy(snap.PriceUSD, snap.PriceUSD1hAgo)
	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("pool", string(snap.ID())).
			Msg("Proxy volatility unavailable, volatility is unknown")
		return types.VolatilityEstimate{Method: types.VolMethodProxy}
	}
	return proxy
}

// getPassNumber increments and returns the persistent pass counter from database
func (e *Engine) getPassNumber() int {
	passNumber, err := state.IncrementPassNumber()
	if err != nil {
		e.logger.Error().Err(err).Msg("Failed to increment pass number, using fallback")
		// Fallback to a simple counter if database fails
		return int(time.Now().Unix() % 1000000) // Use timestamp as fallback
	}
	return passNumber
}

// getWeightsID retrieves the current active score weights ID from database
func (e *Engine) getWeightsID() *int64 {
	weightsID, err := state.GetActiveScoreWeightsID(e.configName)
	if err != nil {
		e.logger.Error().Err(err).Str("configName", e.configName).Msg("Failed to get active score weights ID")
		return nil
	}
	return weightsID
}
