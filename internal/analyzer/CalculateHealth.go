/*

This file contains the pool health scorer. Health blends five structural
component scores, then runs the blend through multiplicative penalty gates so
that one red flag drags the whole figure down instead of averaging away.

*/

package analyzer

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/poolpulse/poolpulse/internal/logger"
	"github.com/poolpulse/poolpulse/internal/types"
)

var healthLogger = logger.GetForComponent("health_scorer")

// Component blend weights. Liquidity depth dominates; freshness only tips
// borderline pools.
const (
	healthWeightTvl       = 0.35
	healthWeightVolume    = 0.30
	healthWeightFeeYield  = 0.20
	healthWeightStability = 0.10
	healthWeightFreshness = 0.05
)

// Freshness decay: score halves roughly every 7 minutes of staleness.
const freshnessDecayMinutes = 10.0

// Penalty gate constants.
const (
	penaltyGateSlope    = 0.70
	penaltyGateOffset   = 0.30
	severeWarningFactor = 0.35
	moderateWarningFactor = 0.60
	yieldTrapFactor     = 0.55
	yieldTrapAprPct     = 300.0
	yieldTrapVolume1hUSD = 50000.0
	penaltyProductFloor = 0.15
)

// severeWarningKeywords mark a pool as likely unsafe to touch at all.
var severeWarningKeywords = []string{
	"honeypot",
	"rug",
	"scam",
	"exploit",
	"not verified",
	"unverified",
	"blacklist",
}

// moderateWarningKeywords mark a pool as needing caution, not avoidance.
var moderateWarningKeywords = []string{
	"low liquidity",
	"new pool",
	"high tax",
	"unaudited",
	"concentrated",
	"proxy contract",
}

// CalculateHealthScore produces the 0-100 health verdict for a pool from its
// snapshot, its volatility estimate, and its total APR estimate (percent).
// Missing windows degrade component scores toward zero; they never error.
func CalculateHealthScore(snap types.PoolSnapshot, vol types.VolatilityEstimate, aprTotal float64, now time.Time, weights types.ScoreWeights) (types.HealthResult, error) {
	if err := ValidatePoolSnapshot(snap); err != nil {
		healthLogger.Error().
			Str("poolID", string(snap.ID())).
			Err(err).
			Msg("Pool snapshot validation failed")
		return types.HealthResult{}, errors.Join(ErrInvalidPoolData, err)
	}
	if err := ValidateScoreWeights(weights); err != nil {
		healthLogger.Error().
			Str("poolID", string(snap.ID())).
			Err(err).
			Msg("Score weights validation failed")
		return types.HealthResult{}, errors.Join(ErrInvalidScoreWeights, err)
	}
	if math.IsNaN(aprTotal) || math.IsInf(aprTotal, 0) {
		return types.HealthResult{}, errors.New("apr total must be a finite number")
	}

	result := types.HealthResult{PoolID: snap.ID()}

	// --- Component Scores ---
	result.Components.TvlScore = tvlComponentScore(snap.TvlUSD)
	result.Components.VolumeScore = volumeComponentScore(snap.Volume1hUSD)
	result.Components.FeeYieldScore = feeYieldComponentScore(snap.Fees1hUSD, snap.TvlUSD)
	result.Components.StabilityScore = stabilityComponentScore(vol.Value, snap.PoolType, weights)
	result.Components.FreshnessScore = freshnessComponentScore(snap.LastUpdated, now)

	result.Base = healthWeightTvl*result.Components.TvlScore +
		healthWeightVolume*result.Components.VolumeScore +
		healthWeightFeeYield*result.Components.FeeYieldScore +
		healthWeightStability*result.Components.StabilityScore +
		healthWeightFreshness*result.Components.FreshnessScore

	// --- Penalty Gates ---
	// Thin TVL and thin volume gate the score multiplicatively so a deep
	// component blend cannot mask an empty pool.
	result.Penalties.TvlFactor = Clamp(penaltyGateSlope*result.Components.TvlScore+penaltyGateOffset, penaltyGateOffset, 1.0)
	result.Penalties.VolumeFactor = Clamp(penaltyGateSlope*result.Components.VolumeScore+penaltyGateOffset, penaltyGateOffset, 1.0)
	result.Penalties.WarningsFactor = warningsPenaltyFactor(snap.RiskWarnings)
	result.Penalties.YieldTrapFactor = yieldTrapPenaltyFactor(aprTotal, snap.Volume1hUSD)

	result.Penalties.Total = Clamp(
		result.Penalties.TvlFactor*result.Penalties.VolumeFactor*result.Penalties.WarningsFactor*result.Penalties.YieldTrapFactor,
		penaltyProductFloor, 1.0)

	health := math.Round(100.0 * result.Base * result.Penalties.Total)
	result.Health = int(Clamp(health, 0, 100))
	result.AprAdjusted = aprTotal * result.Penalties.Total

	if math.IsNaN(result.Base) || math.IsInf(result.Base, 0) ||
		math.IsNaN(result.AprAdjusted) || math.IsInf(result.AprAdjusted, 0) {
		return types.HealthResult{}, errors.New("health calculation resulted in NaN or Inf")
	}

	healthLogger.Debug().
		Str("poolID", string(snap.ID())).
		Float64("tvlScore", result.Components.TvlScore).
		Float64("volumeScore", result.Components.VolumeScore).
		Float64("feeYieldScore", result.Components.FeeYieldScore).
		Float64("stabilityScore", result.Components.StabilityScore).
		Float64("freshnessScore", result.Components.FreshnessScore).
		Float64("base", result.Base).
		Float64("penaltyTotal", result.Penalties.Total).
		Int("health", result.Health).
		Float64("aprAdjusted", result.AprAdjusted).
		Msg("Health score calculated")

	return result, nil
}

// tvlComponentScore maps TVL logarithmically onto [0,1]: $10k scores 0 and
// $100M scores 1.
func tvlComponentScore(tvlUSD float64) float64 {
	return Clamp((math.Log10(math.Max(tvlUSD, 1))-4.0)/4.0, 0, 1)
}

// volumeComponentScore maps 1h volume logarithmically onto [0,1]: $1k/h
// scores 0 and $10M/h scores 1.
func volumeComponentScore(volume1hUSD float64) float64 {
	return Clamp((math.Log10(math.Max(volume1hUSD, 1)+1)-3.0)/4.0, 0, 1)
}

// feeYieldComponentScore saturates at 1 when hourly fees reach 0.1% of TVL.
func feeYieldComponentScore(fees1hUSD, tvlUSD float64) float64 {
	if tvlUSD <= 0 {
		return 0
	}
	return Clamp((fees1hUSD/tvlUSD)*1000.0, 0, 1)
}

// stabilityComponentScore rewards low annualized volatility. Stable pairs are
// held to a much tighter threshold than volatile pairs.
func stabilityComponentScore(volatility float64, poolType types.PoolType, weights types.ScoreWeights) float64 {
	threshold := weights.DefaultVolatilityThreshold
	if poolType == types.PoolTypeStable {
		threshold = weights.StableVolatilityThreshold
	}
	if threshold <= 0 {
		return 0
	}
	return Clamp(1.0-volatility/threshold, 0, 1)
}

// freshnessComponentScore decays exponentially with snapshot age.
func freshnessComponentScore(lastUpdated, now time.Time) float64 {
	ageMinutes := now.Sub(lastUpdated).Minutes()
	if ageMinutes < 0 {
		ageMinutes = 0
	}
	return math.Exp(-ageMinutes / freshnessDecayMinutes)
}

// warningsPenaltyFactor scans free-text risk warnings case-insensitively.
// Any severe keyword gates at 0.35, any moderate keyword at 0.60, and when
// both classes match the minimum factor wins.
func warningsPenaltyFactor(warnings []string) float64 {
	factor := 1.0
	for _, warning := range warnings {
		lowered := strings.ToLower(warning)
		for _, keyword := range severeWarningKeywords {
			if strings.Contains(lowered, keyword) && severeWarningFactor < factor {
				factor = severeWarningFactor
			}
		}
		for _, keyword := range moderateWarningKeywords {
			if strings.Contains(lowered, keyword) && moderateWarningFactor < factor {
				factor = moderateWarningFactor
			}
		}
	}
	return factor
}

// yieldTrapPenaltyFactor flags the classic bait shape: triple-digit APR on a
// pool nobody actually trades.
func yieldTrapPenaltyFactor(aprTotal, volume1hUSD float64) float64 {
	if aprTotal > yieldTrapAprPct && volume1hUSD < yieldTrapVolume1hUSD {
		return yieldTrapFactor
	}
	return 1.0
}
