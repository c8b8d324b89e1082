/*

This file contains the execution cost estimator. It prices the impact of two
reference trade sizes against a depth model chosen by pool type: stable
curves quote near-flat pricing around the peg, concentrated pools get deeper
as their liquidity actually trades, and constant product pools expose half
their TVL per side.

*/

package analyzer

import (
	"errors"
	"math"

	"github.com/poolpulse/poolpulse/internal/logger"
	"github.com/poolpulse/poolpulse/internal/types"
)

var impactLogger = logger.GetForComponent("impact_estimator")

// Reference trade sizes in USD.
const (
	tradeSizeSmallUSD = 100.0
	tradeSizeLargeUSD = 1000.0
)

// Depth model constants.
const (
	stableDepthMultiple  = 10.0 // Stable curves behave ~10x deeper than their TVL
	v2DepthMultiple      = 2.0  // Constant product: half the TVL sits on each side
	clConcentrationScale = 20.0 // Turnover-to-concentration scaling for CL pools
	minConcentration     = 1.0
	maxConcentration     = 10.0
	maxImpactPct         = 100.0
)

// CalculateExecutionCost estimates the price impact of $100 and $1000 trades
// and converts the large-trade impact into additive penalty points. A pool
// with no TVL is maximally penalized.
func CalculateExecutionCost(snap types.PoolSnapshot) (types.ExecutionCostResult, error) {
	if math.IsNaN(snap.TvlUSD) || math.IsInf(snap.TvlUSD, 0) ||
		math.IsNaN(snap.Volume24hUSD) || math.IsInf(snap.Volume24hUSD, 0) {
		return types.ExecutionCostResult{}, errors.Join(ErrInvalidPoolData, errors.New("tvl and volume must be finite numbers"))
	}

	result := types.ExecutionCostResult{
		PoolID: snap.ID(),
		Model:  impactModelForPoolType(snap.PoolType),
	}

	result.Impact100Pct = tradeImpactPct(tradeSizeSmallUSD, snap)
	result.Impact1000Pct = tradeImpactPct(tradeSizeLargeUSD, snap)
	result.Penalty = impactPenalty(result.Impact1000Pct)

	impactLogger.Debug().
		Str("poolID", string(snap.ID())).
		Str("model", string(result.Model)).
		Float64("tvlUSD", snap.TvlUSD).
		Float64("impact100Pct", result.Impact100Pct).
		Float64("impact1000Pct", result.Impact1000Pct).
		Float64("penalty", result.Penalty).
		Msg("Execution cost estimated")

	return result, nil
}

func impactModelForPoolType(poolType types.PoolType) types.ImpactModel {
	switch poolType {
	case types.PoolTypeStable:
		return types.ImpactModelStable
	case types.PoolTypeCL:
		return types.ImpactModelConcentrated
	default:
		return types.ImpactModelConstantProduct
	}
}

// tradeImpactPct prices one trade against the pool's depth model.
func tradeImpactPct(tradeUSD float64, snap types.PoolSnapshot) float64 {
	if snap.TvlUSD <= 0 {
		return maxImpactPct
	}

	switch snap.PoolType {
	case types.PoolTypeStable:
		return tradeUSD / (stableDepthMultiple * snap.TvlUSD) * 100.0
	case types.PoolTypeCL:
		concentration := Clamp((snap.Volume24hUSD/snap.TvlUSD)*clConcentrationScale, minConcentration, maxConcentration)
		return tradeUSD / (snap.TvlUSD * concentration) * 100.0
	default:
		return tradeUSD / (v2DepthMultiple * snap.TvlUSD) * 100.0
	}
}

// impactPenalty converts the $1000 trade impact into additive penalty points.
func impactPenalty(impact1000Pct float64) float64 {
	switch {
	case impact1000Pct < 0.1:
		return 0
	case impact1000Pct < 0.5:
		return 2
	case impact1000Pct < 1:
		return 4
	case impact1000Pct < 3:
		return 6
	case impact1000Pct < 5:
		return 8
	default:
		return 10
	}
}
