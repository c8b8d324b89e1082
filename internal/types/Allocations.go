/*

This file contains the types for capital allocation plans, which split an
advisory capital amount across the strongest scored pools.

*/

package types

import "time"

// AllocationConfig holds the tunable knobs for building allocation plans.
type AllocationConfig struct {
	MinScore       float64 `json:"min_score"`       // Pools with a composite total below this are skipped.
	MaxPoolWeight  float64 `json:"max_pool_weight"` // Per-pool ceiling on the capital fraction, in (0, 1].
	MaxPools       int     `json:"max_pools"`       // At most this many pools receive an allocation.
	MinEntryUSD    float64 `json:"min_entry_usd"`   // Allocations below this dollar size are dropped as dust.
	ExcludeSuspect bool    `json:"exclude_suspect"` // Skip pools the scorer flagged suspect.
}

// AllocationEntry is one pool's slice of a suggested capital split.
type AllocationEntry struct {
	PoolID             PoolID   `json:"pool_id"`
	Weight             float64  `json:"weight"`                // Fraction of the plan's capital, after capping.
	CapitalUSD         float64  `json:"capital_usd"`           // Weight applied to the plan's capital.
	Score              float64  `json:"score"`                 // Composite total backing this entry.
	Mode               RiskMode `json:"mode"`                  // Recommended risk mode carried from the score.
	ExpectedFees30dUSD float64  `json:"expected_fees_30d_usd"` // Zero when no snapshot was available to project from.
}

// SkippedPool records a pool left out of an allocation plan and why.
type SkippedPool struct {
	PoolID PoolID `json:"pool_id"`
	Reason string `json:"reason"`
}

// AllocationPlan is a suggested split of capital across scored pools. Capital
// held back by the per-pool cap and dust cutoff stays unallocated rather than
// being force-distributed.
type AllocationPlan struct {
	CapitalUSD     float64           `json:"capital_usd"`
	Entries        []AllocationEntry `json:"entries"`
	UnallocatedUSD float64           `json:"unallocated_usd"`
	SkippedPools   []SkippedPool     `json:"skipped_pools,omitempty"`
	PassID         string            `json:"pass_id"`
	ComputedAt     time.Time         `json:"computed_at"`
}
