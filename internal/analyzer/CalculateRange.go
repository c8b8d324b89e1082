/*

This file contains the liquidity range model: suggested band width per risk
mode, tick alignment for concentrated pools, the probability of the price
leaving the band over a horizon, and the fee income a capital amount placed
in that band can expect.

*/

package analyzer

import (
	"errors"
	"fmt"
	"math"

	"github.com/poolpulse/poolpulse/internal/logger"
	"github.com/poolpulse/poolpulse/internal/types"
)

var rangeLogger = logger.GetForComponent("range_model")

// Band width bounds as a fraction of spot price.
const (
	minRangeWidthPct = 0.003
	maxRangeWidthPct = 0.45
)

// IL risk level cutpoints on the band breach probability.
const (
	ilRiskMediumCutoff = 0.25
	ilRiskHighCutoff   = 0.55
)

// tickBase is the Uniswap v3 style price ratio between adjacent ticks.
const tickBase = 1.0001

// modeParams resolves the width multiplier and active capital fraction for a
// risk mode from the configured tables.
func modeParams(mode types.RiskMode, weights types.ScoreWeights) (zScore, activeFraction float64, err error) {
	switch mode {
	case types.ModeDefensive:
		return weights.ZScoreDefensive, weights.ActiveFractionDefensive, nil
	case types.ModeNormal:
		return weights.ZScoreNormal, weights.ActiveFractionNormal, nil
	case types.ModeAggressive:
		return weights.ZScoreAggressive, weights.ActiveFractionAggressive, nil
	default:
		return 0, 0, fmt.Errorf("unknown risk mode %q", mode)
	}
}

// CalculateRange suggests a liquidity band for the pool at the given risk
// mode and horizon. Width scales with volatility and the square root of the
// horizon; stable pools are capped hard because a pegged pair that needs a
// wide band is a depegged pair.
func CalculateRange(snap types.PoolSnapshot, vol types.VolatilityEstimate, mode types.RiskMode, horizonDays float64, weights types.ScoreWeights) (types.RangeResult, error) {
	if err := ValidateScoreWeights(weights); err != nil {
		return types.RangeResult{}, errors.Join(ErrInvalidScoreWeights, err)
	}
	if math.IsNaN(snap.Price) || math.IsInf(snap.Price, 0) || snap.Price <= 0 {
		return types.RangeResult{}, errors.Join(ErrInvalidPoolData, fmt.Errorf("pool price must be positive to suggest a range, got %f", snap.Price))
	}
	if math.IsNaN(horizonDays) || math.IsInf(horizonDays, 0) || horizonDays <= 0 {
		return types.RangeResult{}, fmt.Errorf("horizon days must be positive, got %f", horizonDays)
	}

	zScore, _, err := modeParams(mode, weights)
	if err != nil {
		return types.RangeResult{}, err
	}

	widthPct := Clamp(zScore*vol.Value*math.Sqrt(horizonDays/daysPerYear), minRangeWidthPct, maxRangeWidthPct)
	if snap.PoolType == types.PoolTypeStable && widthPct > weights.StableWidthCap {
		widthPct = weights.StableWidthCap
	}

	lowerPrice := snap.Price * (1.0 - widthPct)
	upperPrice := snap.Price * (1.0 + widthPct)

	spacing := TickSpacingForFeeTier(snap.FeeTier)
	lowerTick, upperTick := snapRangeTicks(lowerPrice, upperPrice, spacing)

	result := types.RangeResult{
		Mode:        mode,
		HorizonDays: horizonDays,
		WidthPct:    widthPct,
		LowerPrice:  lowerPrice,
		UpperPrice:  upperPrice,
		LowerTick:   lowerTick,
		UpperTick:   upperTick,
		TickSpacing: spacing,
		OutOfRangeProbability: CalculateOutOfRangeProbability(snap.Price, upperPrice, vol.Value, horizonDays),
	}

	rangeLogger.Debug().
		Str("poolID", string(snap.ID())).
		Str("mode", string(mode)).
		Float64("horizonDays", horizonDays).
		Float64("volatility", vol.Value).
		Float64("widthPct", widthPct).
		Float64("lowerPrice", lowerPrice).
		Float64("upperPrice", upperPrice).
		Int("lowerTick", lowerTick).
		Int("upperTick", upperTick).
		Float64("outOfRangeProbability", result.OutOfRangeProbability).
		Msg("Range suggested")

	return result, nil
}

// CalculateOutOfRangeProbability estimates the chance the price exits a band
// centered on the current price within the horizon, under a zero-drift
// lognormal walk. The distance to the upper bound alone is measured and the
// one-sided tail is doubled. Zero volatility means the price is assumed not
// to move at all.
func CalculateOutOfRangeProbability(price, upperPrice, volAnn, horizonDays float64) float64 {
	if volAnn <= 0 || price <= 0 || upperPrice <= price || horizonDays <= 0 {
		return 0
	}

	horizonYears := horizonDays / daysPerYear
	d := math.Log(upperPrice/price) / (volAnn * math.Sqrt(horizonYears))

	return Clamp(2.0*(1.0-NormalCDF(d)), 0, 1)
}

// PriceToTick returns the tick index whose price interval contains p.
func PriceToTick(price float64) int {
	return int(math.Floor(math.Log(price) / math.Log(tickBase)))
}

// priceToTickCeil returns the smallest tick whose price is >= p.
func priceToTickCeil(price float64) int {
	return int(math.Ceil(math.Log(price) / math.Log(tickBase)))
}

// TickToPrice returns the price at a tick index.
func TickToPrice(tick int) float64 {
	return math.Exp(float64(tick) * math.Log(tickBase))
}

// TickSpacingForFeeTier maps a fee fraction onto the venue's tick spacing
// grid. Missing and unknown tiers fall back to the 0.3% spacing.
func TickSpacingForFeeTier(feeTier float64) int {
	switch {
	case feeTier <= 0:
		return 60
	case feeTier <= 0.0001:
		return 1
	case feeTier <= 0.0005:
		return 10
	case feeTier <= 0.003:
		return 60
	case feeTier <= 0.01:
		return 200
	default:
		return 60
	}
}

// snapRangeTicks aligns raw band prices outward onto the spacing grid: the
// lower bound rounds down, the upper bound rounds up, so the snapped band
// always contains the requested one.
func snapRangeTicks(lowerPrice, upperPrice float64, spacing int) (int, int) {
	lowerTick := PriceToTick(lowerPrice)
	upperTick := priceToTickCeil(upperPrice)

	s := float64(spacing)
	lowerSnapped := int(math.Floor(float64(lowerTick)/s)) * spacing
	upperSnapped := int(math.Ceil(float64(upperTick)/s)) * spacing

	return lowerSnapped, upperSnapped
}

// CalculateFeeEstimate projects fee income for capital placed in a suggested
// band. The pool share is the capital's fraction of TVL and the active
// fraction discounts time the band spends out of range. Projections are
// linear in time.
func CalculateFeeEstimate(snap types.PoolSnapshot, feeAPR types.FeeAPRResult, capitalUSD float64, mode types.RiskMode, weights types.ScoreWeights) (types.FeeEstimate, error) {
	if err := ValidateScoreWeights(weights); err != nil {
		return types.FeeEstimate{}, errors.Join(ErrInvalidScoreWeights, err)
	}
	if math.IsNaN(capitalUSD) || math.IsInf(capitalUSD, 0) || capitalUSD < 0 {
		return types.FeeEstimate{}, fmt.Errorf("capital must be a non-negative finite number, got %f", capitalUSD)
	}

	_, activeFraction, err := modeParams(mode, weights)
	if err != nil {
		return types.FeeEstimate{}, err
	}

	result := types.FeeEstimate{
		CapitalUSD:     capitalUSD,
		ActiveFraction: activeFraction,
	}

	if snap.TvlUSD <= 0 {
		return result, nil
	}

	result.PoolShare = capitalUSD / snap.TvlUSD
	result.ExpectedFees24hUSD = feeAPR.Fees24hEquivalent * result.PoolShare * activeFraction
	result.ExpectedFees7dUSD = result.ExpectedFees24hUSD * 7
	result.ExpectedFees30dUSD = result.ExpectedFees24hUSD * 30

	rangeLogger.Debug().
		Str("poolID", string(snap.ID())).
		Float64("capitalUSD", capitalUSD).
		Float64("poolShare", result.PoolShare).
		Float64("activeFraction", activeFraction).
		Float64("expectedFees24hUSD", result.ExpectedFees24hUSD).
		Msg("Fee estimate calculated")

	return result, nil
}

// CalculateILRisk grades impermanent-loss exposure for one (mode, horizon)
// as the probability of the price leaving the suggested band.
func CalculateILRisk(snap types.PoolSnapshot, vol types.VolatilityEstimate, mode types.RiskMode, horizonDays float64, weights types.ScoreWeights) (types.ILRiskResult, error) {
	rangeResult, err := CalculateRange(snap, vol, mode, horizonDays, weights)
	if err != nil {
		return types.ILRiskResult{}, err
	}

	level := types.ILRiskLow
	switch {
	case rangeResult.OutOfRangeProbability >= ilRiskHighCutoff:
		level = types.ILRiskHigh
	case rangeResult.OutOfRangeProbability >= ilRiskMediumCutoff:
		level = types.ILRiskMedium
	}

	return types.ILRiskResult{
		Mode:              mode,
		HorizonDays:       horizonDays,
		WidthPct:          rangeResult.WidthPct,
		BreachProbability: rangeResult.OutOfRangeProbability,
		Level:             level,
	}, nil
}
