/*

This file contains the composite score assembly for a pool: health and return
sub-scores, additive risk penalties, the final 0-100 total, the recommended
risk mode, and the suspect flags that mark pools whose reported figures
should not be trusted.

*/

package analyzer

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/poolpulse/poolpulse/internal/logger"
	"github.com/poolpulse/poolpulse/internal/types"
)

var ErrInvalidPoolData = errors.New("invalid pool data")
var ErrInvalidScoreWeights = errors.New("invalid score weights")
var composeLogger = logger.GetForComponent("score_composer")

// Health sub-score blend.
const (
	composeWeightLiquidityStability = 0.4
	composeWeightAge                = 0.2
	composeWeightVolumeConsistency  = 0.4
)

// Return sub-score blend.
const (
	composeWeightVolumeTvlRatio = 0.3
	composeWeightFeeEfficiency  = 0.3
	composeWeightApr            = 0.4
	composeAprCap               = 100.0
)

// Liquidity stability slope: stability reaches zero at a 50% drawdown.
const liquidityStabilitySlope = 2.0

// Mode recommendation cutoffs.
const (
	aggressiveTotalFloor        = 70.0
	normalTotalFloor            = 50.0
	aggressiveVolatilityCeiling = 0.60
	normalVolatilityCeiling     = 1.50
	unknownVolAggressiveFloor   = 90.0
	unknownVolNormalFloor       = 75.0
)

// Divergence penalty at which sources are considered materially in conflict.
const materialInconsistencyPenalty = 15.0

// ComposeInput bundles everything one pool's composite score is built from.
// The engine assembles it; every part degrades to its zero value when the
// underlying data was unavailable.
type ComposeInput struct {
	Snapshot      types.PoolSnapshot
	Volatility    types.VolatilityEstimate
	FeeAPR        types.FeeAPRResult
	TvlDrop       types.TvlDropResult
	Consensus     types.ConsensusResult
	ExecutionCost types.ExecutionCostResult
	Now           time.Time
}

// ComposeScore produces the composite 0-100 verdict for one pool.
func ComposeScore(input ComposeInput, weights types.ScoreWeights) (types.Score, error) {
	snap := input.Snapshot

	if err := ValidatePoolSnapshot(snap); err != nil {
		composeLogger.Error().
			Str("poolID", string(snap.ID())).
			Err(err).
			Msg("Pool snapshot validation failed")
		return types.Score{}, errors.Join(ErrInvalidPoolData, err)
	}
	if err := ValidateScoreWeights(weights); err != nil {
		composeLogger.Error().
			Str("poolID", string(snap.ID())).
			Err(err).
			Msg("Score weights validation failed")
		return types.Score{}, errors.Join(ErrInvalidScoreWeights, err)
	}

	result := types.Score{
		PoolID:     snap.ID(),
		Volatility: input.Volatility,
		FeeAPR:     input.FeeAPR,
		ComputedAt: input.Now,
	}

	// --- Health Components ---
	result.Components.LiquidityStability = Clamp(100.0-liquidityStabilitySlope*input.TvlDrop.DropPercent, 0, 100)
	result.Components.AgeScore = 100.0 * freshnessComponentScore(snap.LastUpdated, input.Now)
	result.Components.VolumeConsistency = volumeConsistencyScore(snap.Volume1hUSD, snap.Volume24hUSD)

	result.HealthScore = weights.HealthWeight * (composeWeightLiquidityStability*result.Components.LiquidityStability +
		composeWeightAge*result.Components.AgeScore +
		composeWeightVolumeConsistency*result.Components.VolumeConsistency) / 100.0

	// --- Return Components ---
	result.Components.VolumeTvlRatio = volumeTvlRatioScore(snap.Volume24hUSD, snap.TvlUSD)
	result.Components.FeeEfficiency = feeEfficiencyScore(snap.Fees24hUSD, snap.Volume24hUSD, snap.FeeTier)
	result.Components.AprEstimate = input.FeeAPR.APRValue()

	result.ReturnScore = weights.ReturnWeight * (composeWeightVolumeTvlRatio*result.Components.VolumeTvlRatio +
		composeWeightFeeEfficiency*result.Components.FeeEfficiency +
		composeWeightApr*math.Min(result.Components.AprEstimate, composeAprCap)) / 100.0

	// --- Risk Penalties ---
	result.Penalties.Volatility = volatilityPenalty(input.Volatility)
	result.Penalties.LiquidityDrop = input.TvlDrop.Penalty
	result.Penalties.Inconsistency = input.Consensus.Penalty
	result.Penalties.Execution = input.ExecutionCost.Penalty

	result.RiskPenalty = math.Min(
		result.Penalties.Volatility+result.Penalties.LiquidityDrop+result.Penalties.Inconsistency+result.Penalties.Execution,
		weights.RiskWeightCap)

	result.Total = Clamp(result.HealthScore+result.ReturnScore-result.RiskPenalty, 0, 100)

	if math.IsNaN(result.Total) || math.IsInf(result.Total, 0) {
		composeLogger.Error().
			Str("poolID", string(snap.ID())).
			Float64("total", result.Total).
			Msg("Composite score calculation resulted in invalid value")
		return types.Score{}, errors.New("composite score calculation resulted in NaN or Inf")
	}

	result.RecommendedMode = RecommendMode(result.Total, input.Volatility, snap.PoolType)
	result.Suspect, result.SuspectReasons = suspectFlags(snap, input, weights)

	composeLogger.Debug().
		Str("poolID", string(snap.ID())).
		Float64("healthScore", result.HealthScore).
		Float64("returnScore", result.ReturnScore).
		Float64("riskPenalty", result.RiskPenalty).
		Float64("volatilityPenalty", result.Penalties.Volatility).
		Float64("liquidityDropPenalty", result.Penalties.LiquidityDrop).
		Float64("inconsistencyPenalty", result.Penalties.Inconsistency).
		Float64("executionPenalty", result.Penalties.Execution).
		Float64("total", result.Total).
		Str("recommendedMode", string(result.RecommendedMode)).
		Bool("suspect", result.Suspect).
		Msg("Composite score calculated")

	return result, nil
}

// FailedScore builds the well-formed zero score reported when scoring a pool
// failed outright. The pool stays visible, marked untrustworthy, instead of
// silently vanishing from the output set.
func FailedScore(poolID types.PoolID, now time.Time, reason string) types.Score {
	return types.Score{
		PoolID:          poolID,
		Total:           0,
		RecommendedMode: types.ModeDefensive,
		Suspect:         true,
		SuspectReasons:  []string{reason},
		ComputedAt:      now,
	}
}

// RecommendMode picks the widest responsible range mode for a pool. Unknown
// volatility is treated as a reason for caution, not a free pass, and stable
// pools never get an aggressive recommendation because their band width is
// capped anyway.
func RecommendMode(total float64, vol types.VolatilityEstimate, poolType types.PoolType) types.RiskMode {
	var mode types.RiskMode

	if !vol.Known() {
		switch {
		case total >= unknownVolAggressiveFloor:
			mode = types.ModeAggressive
		case total >= unknownVolNormalFloor:
			mode = types.ModeNormal
		default:
			mode = types.ModeDefensive
		}
	} else {
		switch {
		case total >= aggressiveTotalFloor && vol.Value <= aggressiveVolatilityCeiling:
			mode = types.ModeAggressive
		case total >= normalTotalFloor && vol.Value <= normalVolatilityCeiling:
			mode = types.ModeNormal
		default:
			mode = types.ModeDefensive
		}
	}

	if poolType == types.PoolTypeStable && mode == types.ModeAggressive {
		mode = types.ModeNormal
	}

	return mode
}

// volatilityPenalty converts annualized volatility into additive penalty
// points. Unmeasured volatility adds nothing here; the mode recommendation
// already answers uncertainty with caution.
func volatilityPenalty(vol types.VolatilityEstimate) float64 {
	switch {
	case !vol.Known():
		return 0
	case vol.Value > 2.0:
		return 25
	case vol.Value > 1.0:
		return 15
	case vol.Value > 0.5:
		return 8
	case vol.Value > 0.25:
		return 3
	default:
		return 0
	}
}

// volumeConsistencyScore checks whether the last hour's trading pace matches
// the daily figure. A pool whose volume arrived in one burst scores low.
func volumeConsistencyScore(volume1hUSD, volume24hUSD float64) float64 {
	if volume24hUSD <= 0 {
		return 0
	}
	ratio := volume1hUSD * 24.0 / volume24hUSD
	return Clamp(100.0*(1.0-math.Abs(1.0-ratio)), 0, 100)
}

// volumeTvlRatioScore saturates at daily turnover equal to TVL.
func volumeTvlRatioScore(volume24hUSD, tvlUSD float64) float64 {
	if tvlUSD <= 0 {
		return 0
	}
	return Clamp(volume24hUSD/tvlUSD*100.0, 0, 100)
}

// feeEfficiencyScore measures how much of the advertised fee rate the pool
// actually captures on its reported volume.
func feeEfficiencyScore(fees24hUSD, volume24hUSD, feeTier float64) float64 {
	if volume24hUSD <= 0 || feeTier <= 0 {
		return 0
	}
	return Clamp(fees24hUSD/(volume24hUSD*feeTier)*100.0, 0, 100)
}

// suspectFlags accumulates every reason a pool's reported figures look
// untrustworthy. All checks run; one hit never hides another.
func suspectFlags(snap types.PoolSnapshot, input ComposeInput, weights types.ScoreWeights) (bool, []string) {
	var reasons []string

	if snap.TvlUSD < weights.MinTVLUSD {
		reasons = append(reasons, fmt.Sprintf("tvl $%.0f below minimum $%.0f", snap.TvlUSD, weights.MinTVLUSD))
	}
	if snap.Volume24hUSD < weights.MinVolume24hUSD {
		reasons = append(reasons, fmt.Sprintf("24h volume $%.0f below minimum $%.0f", snap.Volume24hUSD, weights.MinVolume24hUSD))
	}
	if apr := input.FeeAPR.APRValue(); apr > weights.SuspectAPRCeiling {
		reasons = append(reasons, fmt.Sprintf("fee apr %.0f%% above ceiling %.0f%%", apr, weights.SuspectAPRCeiling))
	}
	if snap.Volume24hUSD > weights.SuspectVolumeTvlMultiple*snap.TvlUSD {
		reasons = append(reasons, fmt.Sprintf("24h volume $%.0f exceeds %.0fx tvl $%.0f", snap.Volume24hUSD, weights.SuspectVolumeTvlMultiple, snap.TvlUSD))
	}
	if input.Consensus.Penalty >= materialInconsistencyPenalty {
		reasons = append(reasons, fmt.Sprintf("data sources disagree materially (%s)", input.Consensus.Reason))
	}

	return len(reasons) > 0, reasons
}

// ValidatePoolSnapshot rejects snapshots whose numeric fields would poison
// downstream math. Missing windows are legal; NaN and Inf are not.
func ValidatePoolSnapshot(snap types.PoolSnapshot) error {
	if snap.ChainID == "" {
		return errors.New("chain id must not be empty")
	}
	if snap.PoolAddress == "" {
		return errors.New("pool address must not be empty")
	}

	for _, field := range []struct {
		value float64
		name  string
	}{
		{snap.FeeTier, "fee tier"},
		{snap.Price, "price"},
		{snap.PriceUSD, "price usd"},
		{snap.TvlUSD, "tvl"},
		{snap.Volume24hUSD, "volume 24h"},
		{snap.Volume1hUSD, "volume 1h"},
		{snap.Volume5mUSD, "volume 5m"},
		{snap.Fees24hUSD, "fees 24h"},
		{snap.Fees1hUSD, "fees 1h"},
		{snap.Fees5mUSD, "fees 5m"},
		{snap.PriceUSD1hAgo, "price usd 1h ago"},
	} {
		if math.IsNaN(field.value) || math.IsInf(field.value, 0) {
			return fmt.Errorf("%s must be a finite number, got %f", field.name, field.value)
		}
	}

	if snap.FeeTier < 0 || snap.FeeTier >= 1 {
		return fmt.Errorf("fee tier must be a fraction in [0, 1), got %f", snap.FeeTier)
	}

	return nil
}

// ValidateScoreWeights rejects weight sets that would make scores
// meaningless: non-finite values, composite weights that do not sum to 100,
// or empty mode tables.
func ValidateScoreWeights(weights types.ScoreWeights) error {
	for _, field := range []struct {
		value float64
		name  string
	}{
		{weights.HealthWeight, "health weight"},
		{weights.ReturnWeight, "return weight"},
		{weights.RiskWeightCap, "risk weight cap"},
		{weights.MinTVLUSD, "min tvl"},
		{weights.MinVolume24hUSD, "min volume 24h"},
		{weights.SuspectAPRCeiling, "suspect apr ceiling"},
		{weights.SuspectVolumeTvlMultiple, "suspect volume tvl multiple"},
		{weights.ZScoreDefensive, "z score defensive"},
		{weights.ZScoreNormal, "z score normal"},
		{weights.ZScoreAggressive, "z score aggressive"},
		{weights.ActiveFractionDefensive, "active fraction defensive"},
		{weights.ActiveFractionNormal, "active fraction normal"},
		{weights.ActiveFractionAggressive, "active fraction aggressive"},
		{weights.StableWidthCap, "stable width cap"},
		{weights.StableVolatilityThreshold, "stable volatility threshold"},
		{weights.DefaultVolatilityThreshold, "default volatility threshold"},
	} {
		if math.IsNaN(field.value) || math.IsInf(field.value, 0) {
			return fmt.Errorf("%s must be a finite number, got %f", field.name, field.value)
		}
	}

	if weights.HealthWeight <= 0 || weights.ReturnWeight <= 0 {
		return errors.New("health and return weights must be positive")
	}
	if math.Abs(weights.HealthWeight+weights.ReturnWeight-100.0) > 1e-9 {
		return fmt.Errorf("health and return weights must sum to 100, got %f", weights.HealthWeight+weights.ReturnWeight)
	}
	if weights.RiskWeightCap <= 0 || weights.RiskWeightCap > 100 {
		return fmt.Errorf("risk weight cap must be in (0, 100], got %f", weights.RiskWeightCap)
	}
	if weights.MinTVLUSD < 0 || weights.MinVolume24hUSD < 0 {
		return errors.New("suspect minimums must not be negative")
	}
	if weights.SuspectAPRCeiling <= 0 || weights.SuspectVolumeTvlMultiple <= 0 {
		return errors.New("suspect ceilings must be positive")
	}
	if weights.ZScoreDefensive <= 0 || weights.ZScoreNormal <= 0 || weights.ZScoreAggressive <= 0 {
		return errors.New("z scores must be positive")
	}
	if weights.ZScoreDefensive > weights.ZScoreNormal || weights.ZScoreNormal > weights.ZScoreAggressive {
		return errors.New("z scores must not decrease from defensive to aggressive")
	}
	for _, fraction := range []float64{weights.ActiveFractionDefensive, weights.ActiveFractionNormal, weights.ActiveFractionAggressive} {
		if fraction <= 0 || fraction > 1 {
			return fmt.Errorf("active fractions must be in (0, 1], got %f", fraction)
		}
	}
	if weights.StableWidthCap <= 0 || weights.StableWidthCap > maxRangeWidthPct {
		return fmt.Errorf("stable width cap must be in (0, %.2f], got %f", maxRangeWidthPct, weights.StableWidthCap)
	}
	if weights.StableVolatilityThreshold <= 0 || weights.DefaultVolatilityThreshold <= 0 {
		return errors.New("volatility thresholds must be positive")
	}

	return nil
}
