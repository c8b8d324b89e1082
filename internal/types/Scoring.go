/*

This file contains the types for scoring pools, and other configurable parameters for the engine.

*/

package types

import (
	"fmt"
	"strings"
	"time"
)

// RiskMode selects how wide suggested liquidity ranges are and how much
// capital is assumed to sit inside the active band.
type RiskMode string

const (
	ModeDefensive  RiskMode = "DEFENSIVE"
	ModeNormal     RiskMode = "NORMAL"
	ModeAggressive RiskMode = "AGGRESSIVE"
)

// ParseRiskMode validates a user supplied mode string.
func ParseRiskMode(raw string) (RiskMode, error) {
	switch RiskMode(strings.ToUpper(strings.TrimSpace(raw))) {
	case ModeDefensive:
		return ModeDefensive, nil
	case ModeNormal:
		return ModeNormal, nil
	case ModeAggressive:
		return ModeAggressive, nil
	default:
		return "", fmt.Errorf("unknown risk mode %q", raw)
	}
}

// ScoreWeights holds all tunable weights, coefficients, and thresholds used
// by the scoring pipeline. Different sets of these can exist for different
// market regimes; the active set is versioned in the database.
type ScoreWeights struct {
	// --- Composite Score Weights ---
	HealthWeight float64 `json:"health_weight"` // Share of the composite total carried by the health sub-score. HealthWeight + ReturnWeight should sum to 100.
	ReturnWeight float64 `json:"return_weight"` // Share of the composite total carried by the return sub-score.
	RiskWeightCap float64 `json:"risk_weight_cap"` // Ceiling for the additive risk penalty subtracted from the composite total.

	// --- Suspect Pool Thresholds ---
	MinTVLUSD                float64 `json:"min_tvl_usd"`                 // Pools below this TVL are flagged suspect (too small to trust reported figures).
	MinVolume24hUSD          float64 `json:"min_volume_24h_usd"`          // Pools below this 24h volume are flagged suspect.
	SuspectAPRCeiling        float64 `json:"suspect_apr_ceiling"`         // Fee APRs above this percentage are considered too good to be true.
	SuspectVolumeTvlMultiple float64 `json:"suspect_volume_tvl_multiple"` // 24h volume above this multiple of TVL suggests wash trading.

	// --- Range Model: Width Multipliers (z per mode) ---
	ZScoreDefensive  float64 `json:"z_score_defensive"`  // Width multiplier for DEFENSIVE ranges.
	ZScoreNormal     float64 `json:"z_score_normal"`     // Width multiplier for NORMAL ranges.
	ZScoreAggressive float64 `json:"z_score_aggressive"` // Width multiplier for AGGRESSIVE ranges.

	// --- Range Model: Active Capital Fractions ---
	ActiveFractionDefensive  float64 `json:"active_fraction_defensive"`  // Fraction of capital assumed fee-earning in a DEFENSIVE range.
	ActiveFractionNormal     float64 `json:"active_fraction_normal"`     // Fraction of capital assumed fee-earning in a NORMAL range.
	ActiveFractionAggressive float64 `json:"active_fraction_aggressive"` // Fraction of capital assumed fee-earning in an AGGRESSIVE range.
	StableWidthCap           float64 `json:"stable_width_cap"`           // Hard cap on range width for STABLE pools, applied after clamping.

	// --- Volatility Stability Thresholds ---
	StableVolatilityThreshold  float64 `json:"stable_volatility_threshold"`  // Annualized volatility at which a STABLE pool's stability score reaches zero.
	DefaultVolatilityThreshold float64 `json:"default_volatility_threshold"` // Same threshold for every other pool type.
}

// Score is the composite output for one pool from one scoring pass.
type Score struct {
	PoolID       PoolID   `json:"pool_id"`
	Total        float64  `json:"total"`         // 0-100 composite
	HealthScore  float64  `json:"health_score"`  // 0..HealthWeight
	ReturnScore  float64  `json:"return_score"`  // 0..ReturnWeight
	RiskPenalty  float64  `json:"risk_penalty"`  // 0..RiskWeightCap
	Penalties    struct {
		Volatility    float64 `json:"volatility"`
		LiquidityDrop float64 `json:"liquidity_drop"`
		Inconsistency float64 `json:"inconsistency"`
		Execution     float64 `json:"execution"`
	} `json:"penalties"`
	Components struct {
		LiquidityStability float64 `json:"liquidity_stability"`
		AgeScore           float64 `json:"age_score"`
		VolumeConsistency  float64 `json:"volume_consistency"`
		VolumeTvlRatio     float64 `json:"volume_tvl_ratio"`
		FeeEfficiency      float64 `json:"fee_efficiency"`
		AprEstimate        float64 `json:"apr_estimate"`
	} `json:"components"`
	Volatility      VolatilityEstimate `json:"volatility"`
	FeeAPR          FeeAPRResult       `json:"fee_apr"`
	RecommendedMode RiskMode           `json:"recommended_mode"`
	Suspect         bool               `json:"suspect"`
	SuspectReasons  []string           `json:"suspect_reasons,omitempty"`
	PassID          string             `json:"pass_id"`
	ComputedAt      time.Time          `json:"computed_at"`
}
