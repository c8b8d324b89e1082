/*

This file contains the allocation planner. It takes the composite scores from
a scoring pass and splits an advisory capital amount across the strongest
pools, proportional to score, with a per-pool cap and a dust cutoff.

The plan is a suggestion, not an order book: capital held back by the cap or
the cutoff is reported as unallocated instead of being force-distributed.

*/

package planner

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/poolpulse/poolpulse/internal/analyzer"
	"github.com/poolpulse/poolpulse/internal/logger"
	"github.com/poolpulse/poolpulse/internal/types"
)

var allocationLogger = logger.GetForComponent("allocation_planner")

var (
	ErrInvalidCapital          = errors.New("allocation capital is invalid")
	ErrInvalidAllocationConfig = errors.New("allocation config contains invalid values")
	ErrNoEligiblePools         = errors.New("no pools eligible for allocation")
)

// ValidateAllocationConfig checks an allocation config for usable values.
func ValidateAllocationConfig(cfg types.AllocationConfig) error {
	if math.IsNaN(cfg.MinScore) || math.IsInf(cfg.MinScore, 0) || cfg.MinScore < 0 || cfg.MinScore > 100 {
		return fmt.Errorf("minimum score must be between 0 and 100, got %f", cfg.MinScore)
	}
	if math.IsNaN(cfg.MaxPoolWeight) || math.IsInf(cfg.MaxPoolWeight, 0) || cfg.MaxPoolWeight <= 0 || cfg.MaxPoolWeight > 1 {
		return fmt.Errorf("max pool weight must be in (0, 1], got %f", cfg.MaxPoolWeight)
	}
	if cfg.MaxPools <= 0 {
		return fmt.Errorf("max pools must be positive, got %d", cfg.MaxPools)
	}
	if math.IsNaN(cfg.MinEntryUSD) || math.IsInf(cfg.MinEntryUSD, 0) || cfg.MinEntryUSD < 0 {
		return fmt.Errorf("minimum entry size cannot be negative, got %f", cfg.MinEntryUSD)
	}
	return nil
}

// BuildAllocationPlan splits capitalUSD across the strongest scored pools.
// Pools are ranked, filtered by the config's eligibility rules, and weighted
// by their share of the selected pools' total score, capped per pool. Every
// exclusion is recorded on the plan with its reason. Snapshots, where
// available, back a 30d fee projection per entry; a missing snapshot only
// costs the entry its projection.
func BuildAllocationPlan(
	scores []types.Score,
	snapshots map[types.PoolID]types.PoolSnapshot,
	capitalUSD float64,
	cfg types.AllocationConfig,
	weights types.ScoreWeights,
) (types.AllocationPlan, error) {
	if math.IsNaN(capitalUSD) || math.IsInf(capitalUSD, 0) || capitalUSD <= 0 {
		return types.AllocationPlan{}, errors.Join(ErrInvalidCapital,
			fmt.Errorf("capital must be a positive finite number, got %f", capitalUSD))
	}
	if err := ValidateAllocationConfig(cfg); err != nil {
		return types.AllocationPlan{}, errors.Join(ErrInvalidAllocationConfig, err)
	}
	if err := analyzer.ValidateScoreWeights(weights); err != nil {
		return types.AllocationPlan{}, errors.Join(analyzer.ErrInvalidScoreWeights, err)
	}

	ranked, err := analyzer.RankScores(scores, 0)
	if err != nil {
		return types.AllocationPlan{}, errors.Join(ErrNoEligiblePools, err)
	}

	plan := types.AllocationPlan{
		CapitalUSD: capitalUSD,
		ComputedAt: time.Now().UTC(),
	}

	// --- Select eligible pools, best first ---
	var selected []types.Score
	for _, score := range ranked {
		switch {
		case cfg.ExcludeSuspect && score.Suspect:
			plan.SkippedPools = append(plan.SkippedPools, types.SkippedPool{
				PoolID: score.PoolID,
				Reason: "flagged suspect",
			})
		case score.Total < cfg.MinScore:
			plan.SkippedPools = append(plan.SkippedPools, types.SkippedPool{
				PoolID: score.PoolID,
				Reason: fmt.Sprintf("score %.1f below minimum %.1f", score.Total, cfg.MinScore),
			})
		case len(selected) >= cfg.MaxPools:
			plan.SkippedPools = append(plan.SkippedPools, types.SkippedPool{
				PoolID: score.PoolID,
				Reason: fmt.Sprintf("ranked outside the top %d", cfg.MaxPools),
			})
		default:
			selected = append(selected, score)
		}
	}

	if len(selected) == 0 {
		return types.AllocationPlan{}, errors.Join(ErrNoEligiblePools,
			fmt.Errorf("all %d scored pools were excluded", len(ranked)))
	}

	totalScore := 0.0
	for _, score := range selected {
		totalScore += score.Total
	}
	if totalScore <= 0 {
		return types.AllocationPlan{}, errors.Join(ErrNoEligiblePools,
			errors.New("selected pools carry no score mass to weight by"))
	}

	// --- Size the entries ---
	allocatedUSD := 0.0
	for _, score := range selected {
		weight := score.Total / totalScore
		if weight > cfg.MaxPoolWeight {
			weight = cfg.MaxPoolWeight
		}

		entryCapitalUSD := weight * capitalUSD
		if entryCapitalUSD < cfg.MinEntryUSD {
			plan.SkippedPools = append(plan.SkippedPools, types.SkippedPool{
				PoolID: score.PoolID,
				Reason: fmt.Sprintf("allocation $%.2f below minimum $%.2f", entryCapitalUSD, cfg.MinEntryUSD),
			})
			continue
		}

		entry := types.AllocationEntry{
			PoolID:     score.PoolID,
			Weight:     weight,
			CapitalUSD: entryCapitalUSD,
			Score:      score.Total,
			Mode:       score.RecommendedMode,
		}

		if snap, ok := snapshots[score.PoolID]; ok {
			estimate, estErr := analyzer.CalculateFeeEstimate(snap, score.FeeAPR, entryCapitalUSD, score.RecommendedMode, weights)
			if estErr != nil {
				allocationLogger.Warn().
					Err(estErr).
					Str("poolID", string(score.PoolID)).
					Msg("Fee projection unavailable for allocation entry")
			} else {
				entry.ExpectedFees30dUSD = estimate.ExpectedFees30dUSD
			}
		}

		plan.Entries = append(plan.Entries, entry)
		allocatedUSD += entryCapitalUSD
		if plan.PassID == "" {
			plan.PassID = score.PassID
		}
	}

	if len(plan.Entries) == 0 {
		return types.AllocationPlan{}, errors.Join(ErrNoEligiblePools,
			errors.New("every eligible allocation fell below the minimum entry size"))
	}

	plan.UnallocatedUSD = capitalUSD - allocatedUSD

	allocationLogger.Info().
		Int("entries", len(plan.Entries)).
		Int("skipped", len(plan.SkippedPools)).
		Float64("capitalUSD", capitalUSD).
		Float64("allocatedUSD", allocatedUSD).
		Float64("unallocatedUSD", plan.UnallocatedUSD).
		Msg("Allocation plan built")

	return plan, nil
}
