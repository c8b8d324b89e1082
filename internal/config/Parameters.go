/*

This file contains the default score weights for the engine.

These values are used whenever no active weight set exists in the database.
Each value has been chosen to keep the composite score conservative: missing
data and thin pools lose points, they never gain them.

*/

package config

import (
	"github.com/poolpulse/poolpulse/internal/types"
)

// DefaultScoreWeights provides a baseline weight set for the scoring pipeline.
// These values are used if no active weights are found in the database during
// initialization.
var DefaultScoreWeights = types.ScoreWeights{
	// --- Composite Score Weights ---
	HealthWeight: 60, // Health carries most of the composite.
	// Rationale: structural soundness (stable liquidity, consistent volume,
	// fresh data) is harder to fake than headline yield and decays slower.

	ReturnWeight: 40, // Return carries the rest; the two must sum to 100.
	// Rationale: yield matters, but a yield figure without a sound pool under
	// it is exactly the trap this engine exists to catch.

	RiskWeightCap: 30, // Additive penalties can erase at most 30 points.
	// Rationale: with four penalty sources (volatility, TVL drawdown, source
	// inconsistency, execution cost) an uncapped sum could zero out pools that
	// merely had one bad hour. 30 keeps penalties decisive but not fatal.

	// --- Suspect Pool Thresholds ---
	MinTVLUSD: 10000, // Pools under $10k TVL are flagged suspect.
	// Rationale: below this size a single wallet can fabricate every metric
	// this engine reads.

	MinVolume24hUSD: 1000, // Pools under $1k daily volume are flagged suspect.
	// Rationale: fee and volume windows from a near-dead pool are noise.

	SuspectAPRCeiling: 500, // Fee APR above 500% is treated as bait.
	// Rationale: sustained fee APRs this high only appear in pools about to
	// lose their liquidity, their price, or both.

	SuspectVolumeTvlMultiple: 10, // Volume above 10x TVL suggests wash trading.
	// Rationale: organic pools rarely turn their liquidity over ten times a
	// day; bots farming volume incentives routinely do.

	// --- Range Model: Width Multipliers ---
	ZScoreDefensive: 0.8, // Narrowest band, highest fee concentration.
	ZScoreNormal:    1.2,
	ZScoreAggressive: 1.8, // Widest band, rarely needs re-centering.
	// Rationale: multiples of annualized volatility scaled to the horizon.
	// 1.2 roughly tracks a one-sigma move; the other two bracket it.

	// --- Range Model: Active Capital Fractions ---
	ActiveFractionDefensive:  0.55, // Narrow bands sit outside the price more often.
	ActiveFractionNormal:     0.75,
	ActiveFractionAggressive: 0.95, // Wide bands are almost always in play.
	// Rationale: fee projections must discount time spent out of range, and
	// that time shrinks as the band widens.

	StableWidthCap: 0.03, // Stable pairs never need more than a 3% half-width.
	// Rationale: pegged assets that move more than 3% are depegging, and no
	// range setting rescues a depeg.

	// --- Volatility Stability Thresholds ---
	StableVolatilityThreshold: 0.35, // Annualized vol at which a stable pool scores zero stability.
	// Rationale: 35% annualized on a pegged pair already signals a broken peg.

	DefaultVolatilityThreshold: 1.20, // Same cutoff for volatile pairs.
	// Rationale: 120% annualized is routine for small caps; beyond it the
	// pool is a volatility product, not a yield product.
}

// DefaultAllocationConfig provides the baseline knobs for capital allocation
// plans.
var DefaultAllocationConfig = types.AllocationConfig{
	MinScore: 40, // Pools scoring under 40 get no allocation.
	// Rationale: below 40 either the health or the return side of the
	// composite has collapsed, and an allocation would just be averaging into
	// a known problem.

	MaxPoolWeight: 0.35, // No pool receives more than 35% of the capital.
	// Rationale: the scores are estimates from third-party data. A cap keeps
	// a single mis-scored pool from carrying the whole plan.

	MaxPools: 5, // Spread across at most five pools.
	// Rationale: past the top five the score gap to the leader usually means
	// the marginal pool adds more re-ranging work than yield.

	MinEntryUSD: 100, // Allocations under $100 are dropped as dust.
	// Rationale: entries this small earn less in fees than they cost in gas
	// to enter and exit.

	ExcludeSuspect: true, // Suspect pools never receive an allocation.
	// Rationale: a suspect flag means at least one trust check failed;
	// low-confidence scores are for reading, not for sizing capital.
}
