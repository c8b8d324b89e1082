/*

This file contains the result types produced by the estimators: volatility,
fee APR, pool health, range suggestions, consensus checks, execution cost,
and TVL drawdown tracking.

*/

package types

// VolatilityMethod records how a volatility figure was obtained.
type VolatilityMethod string

const (
	VolMethodLogReturns VolatilityMethod = "log_returns" // Measured from a price series
	VolMethodProxy      VolatilityMethod = "proxy"       // Single 1h move, or not measurable at all
)

// VolatilityEstimate is an annualized volatility figure. Value 0 means the
// input data was insufficient to measure anything.
type VolatilityEstimate struct {
	Value   float64          `json:"value"` // Annualized, as a fraction (0.80 = 80%)
	Method  VolatilityMethod `json:"method"`
	Samples int              `json:"samples"` // Price points that fed the estimate
}

// Known reports whether the estimate carries a measurable value.
func (v VolatilityEstimate) Known() bool {
	return v.Value > 0
}

// FeeAPRSource records which fee window backed an APR figure.
type FeeAPRSource string

const (
	AprSourceFees24h   FeeAPRSource = "fees_24h"     // Real 24h fees reported by the venue
	AprSourceFees1h    FeeAPRSource = "fees_1h_x24"  // 1h fees extrapolated to a day
	AprSourceFees5m    FeeAPRSource = "fees_5m_x288" // 5m fees extrapolated to a day
	AprSourceEstimated FeeAPRSource = "estimated"    // No usable window, no APR
)

// FeeAPRResult is the outcome of fee APR selection. FeeAPR is nil when no
// fee window held a positive value.
type FeeAPRResult struct {
	FeeAPR            *float64     `json:"fee_apr"` // Percent per year, nil = no data
	Source            FeeAPRSource `json:"source"`
	Fees24hEquivalent float64      `json:"fees_24h_equivalent"` // The daily fee figure the APR was built from
}

// APRValue returns the APR or 0 when no data was available.
func (f FeeAPRResult) APRValue() float64 {
	if f.FeeAPR == nil {
		return 0
	}
	return *f.FeeAPR
}

// HealthResult is the 0-100 health verdict for a pool with its full breakdown.
type HealthResult struct {
	PoolID PoolID `json:"pool_id"`
	Health int    `json:"health"` // 0-100
	Components struct {
		TvlScore       float64 `json:"tvl_score"`
		VolumeScore    float64 `json:"volume_score"`
		FeeYieldScore  float64 `json:"fee_yield_score"`
		StabilityScore float64 `json:"stability_score"`
		FreshnessScore float64 `json:"freshness_score"`
	} `json:"components"`
	Base float64 `json:"base"` // Weighted component blend before penalties
	Penalties struct {
		TvlFactor      float64 `json:"tvl_factor"`
		VolumeFactor   float64 `json:"volume_factor"`
		WarningsFactor float64 `json:"warnings_factor"`
		YieldTrapFactor float64 `json:"yield_trap_factor"`
		Total          float64 `json:"total"` // Product of the four factors, floored at 0.15
	} `json:"penalties"`
	AprAdjusted float64 `json:"apr_adjusted"` // Input APR scaled by the penalty product
}

// RangeResult is a suggested liquidity range for one (pool, mode, horizon).
type RangeResult struct {
	Mode        RiskMode `json:"mode"`
	HorizonDays float64  `json:"horizon_days"`
	WidthPct    float64  `json:"width_pct"` // Half-width as a fraction of spot
	LowerPrice  float64  `json:"lower_price"`
	UpperPrice  float64  `json:"upper_price"`
	LowerTick   int      `json:"lower_tick"` // Snapped to tick spacing, only meaningful for CL pools
	UpperTick   int      `json:"upper_tick"`
	TickSpacing int      `json:"tick_spacing"`
	OutOfRangeProbability float64 `json:"out_of_range_probability"` // 0-1 over the horizon
}

// FeeEstimate projects fee earnings for capital placed in a suggested range.
type FeeEstimate struct {
	CapitalUSD     float64 `json:"capital_usd"`
	PoolShare      float64 `json:"pool_share"`      // capital / TVL
	ActiveFraction float64 `json:"active_fraction"` // Time share the range is assumed in play
	ExpectedFees24hUSD float64 `json:"expected_fees_24h_usd"`
	ExpectedFees7dUSD  float64 `json:"expected_fees_7d_usd"`
	ExpectedFees30dUSD float64 `json:"expected_fees_30d_usd"`
}

// ILRiskLevel buckets the out-of-range probability into a coarse verdict.
type ILRiskLevel string

const (
	ILRiskLow    ILRiskLevel = "low"
	ILRiskMedium ILRiskLevel = "medium"
	ILRiskHigh   ILRiskLevel = "high"
)

// ILRiskResult describes impermanent-loss exposure for one (pool, mode, horizon).
type ILRiskResult struct {
	Mode        RiskMode    `json:"mode"`
	HorizonDays float64     `json:"horizon_days"`
	WidthPct    float64     `json:"width_pct"`
	BreachProbability float64     `json:"breach_probability"` // Chance the price leaves the band over the horizon
	Level             ILRiskLevel `json:"level"`
}

// ConsensusObservation is one source's claim about a pool's headline metrics.
// A nil field means the source does not carry that metric at all, which is
// different from claiming it is zero.
type ConsensusObservation struct {
	Source       string   `json:"source"`
	TvlUSD       *float64 `json:"tvl_usd,omitempty"`
	Volume24hUSD *float64 `json:"volume_24h_usd,omitempty"`
}

// ConsensusMetric holds one metric's readings across sources.
type ConsensusMetric struct {
	Values        map[string]float64 `json:"values"`         // source -> reported value
	DivergencePct float64            `json:"divergence_pct"` // Max pairwise divergence
}

// ConsensusResult reports how far data sources disagree about one pool.
type ConsensusResult struct {
	PoolID           PoolID                     `json:"pool_id"`
	Metrics          map[string]ConsensusMetric `json:"metrics"` // "tvl", "volume_24h"
	MaxDivergencePct float64                    `json:"max_divergence_pct"`
	Penalty          float64                    `json:"penalty"` // 0-15 additive points
	Sources          []string                   `json:"sources"`
	Reason           string                     `json:"reason,omitempty"`
}

// TvlDropResult describes a pool's drawdown from its trailing 24h TVL peak.
type TvlDropResult struct {
	PoolID      PoolID  `json:"pool_id"`
	Peak24hUSD  float64 `json:"peak_24h_usd"`
	CurrentUSD  float64 `json:"current_usd"`
	DropPercent float64 `json:"drop_percent"`
	Penalty     float64 `json:"penalty"` // 0-20 additive points
	Samples     int     `json:"samples"` // History entries inside the window
}

// ImpactModel records which curve model priced an execution-cost estimate.
type ImpactModel string

const (
	ImpactModelStable       ImpactModel = "stable"
	ImpactModelConcentrated ImpactModel = "concentrated"
	ImpactModelConstantProduct ImpactModel = "constant_product"
)

// ExecutionCostResult estimates the price impact of reference trade sizes.
type ExecutionCostResult struct {
	PoolID        PoolID      `json:"pool_id"`
	Impact100Pct  float64     `json:"impact_100_pct"`  // Price impact of a $100 trade, percent
	Impact1000Pct float64     `json:"impact_1000_pct"` // Price impact of a $1000 trade, percent
	Penalty       float64     `json:"penalty"`         // 0-10 additive points, from the $1000 impact
	Model         ImpactModel `json:"model"`
}
