package planner

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolpulse/poolpulse/internal/analyzer"
	"github.com/poolpulse/poolpulse/internal/config"
	"github.com/poolpulse/poolpulse/internal/types"
)

func scored(poolID string, total float64, suspect bool) types.Score {
	return types.Score{
		PoolID:          types.PoolID(poolID),
		Total:           total,
		RecommendedMode: types.ModeNormal,
		Suspect:         suspect,
		PassID:          "pass-1",
		ComputedAt:      time.Now().UTC(),
	}
}

func TestValidateAllocationConfig(t *testing.T) {
	t.Run("defaults_are_valid", func(t *testing.T) {
		require.NoError(t, ValidateAllocationConfig(config.DefaultAllocationConfig))
	})

	t.Run("rejects_out_of_range_values", func(t *testing.T) {
		cases := []struct {
			name    string
			mutate  func(cfg *types.AllocationConfig)
			wantMsg string
		}{
			{"negative_min_score", func(cfg *types.AllocationConfig) { cfg.MinScore = -1 }, "minimum score"},
			{"min_score_above_100", func(cfg *types.AllocationConfig) { cfg.MinScore = 101 }, "minimum score"},
			{"nan_min_score", func(cfg *types.AllocationConfig) { cfg.MinScore = math.NaN() }, "minimum score"},
			{"zero_max_weight", func(cfg *types.AllocationConfig) { cfg.MaxPoolWeight = 0 }, "max pool weight"},
			{"max_weight_above_one", func(cfg *types.AllocationConfig) { cfg.MaxPoolWeight = 1.5 }, "max pool weight"},
			{"zero_max_pools", func(cfg *types.AllocationConfig) { cfg.MaxPools = 0 }, "max pools"},
			{"negative_min_entry", func(cfg *types.AllocationConfig) { cfg.MinEntryUSD = -1 }, "minimum entry"},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				cfg := config.DefaultAllocationConfig
				tc.mutate(&cfg)
				err := ValidateAllocationConfig(cfg)
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantMsg)
			})
		}
	})
}

func TestBuildAllocationPlan(t *testing.T) {
	weights := config.DefaultScoreWeights

	t.Run("splits_capital_proportionally_with_cap", func(t *testing.T) {
		trusted := scored("ethereum:0xaaa", 80, false)
		trusted.FeeAPR = types.FeeAPRResult{Fees24hEquivalent: 1500}
		runnerUp := scored("ethereum:0xbbb", 60, false)
		flagged := scored("ethereum:0xccc", 90, true)

		snapshots := map[types.PoolID]types.PoolSnapshot{
			trusted.PoolID: {ChainID: "ethereum", PoolAddress: "0xaaa", TvlUSD: 1_000_000},
		}

		plan, err := BuildAllocationPlan(
			[]types.Score{trusted, runnerUp, flagged},
			snapshots, 10000, config.DefaultAllocationConfig, weights,
		)
		require.NoError(t, err)

		// The suspect pool ranks first on raw total but is excluded outright.
		require.Len(t, plan.SkippedPools, 1)
		assert.Equal(t, flagged.PoolID, plan.SkippedPools[0].PoolID)
		assert.Equal(t, "flagged suspect", plan.SkippedPools[0].Reason)

		// 80/140 and 60/140 both exceed the 0.35 cap, so both entries pin
		// to it and the remainder stays unallocated.
		require.Len(t, plan.Entries, 2)
		assert.Equal(t, trusted.PoolID, plan.Entries[0].PoolID)
		assert.InDelta(t, 0.35, plan.Entries[0].Weight, 1e-12)
		assert.InDelta(t, 3500, plan.Entries[0].CapitalUSD, 1e-9)
		assert.Equal(t, 80.0, plan.Entries[0].Score)
		assert.Equal(t, types.ModeNormal, plan.Entries[0].Mode)

		assert.Equal(t, runnerUp.PoolID, plan.Entries[1].PoolID)
		assert.InDelta(t, 0.35, plan.Entries[1].Weight, 1e-12)
		assert.InDelta(t, 3500, plan.Entries[1].CapitalUSD, 1e-9)

		assert.InDelta(t, 3000, plan.UnallocatedUSD, 1e-9)
		assert.Equal(t, 10000.0, plan.CapitalUSD)
		assert.Equal(t, "pass-1", plan.PassID)
		assert.False(t, plan.ComputedAt.IsZero())

		// 1500 daily fees, 3500/1M pool share, 0.75 active fraction, 30 days.
		assert.InDelta(t, 118.125, plan.Entries[0].ExpectedFees30dUSD, 1e-9)
		// No snapshot for the runner-up, so no projection.
		assert.Zero(t, plan.Entries[1].ExpectedFees30dUSD)
	})

	t.Run("uncapped_weights_sum_to_one", func(t *testing.T) {
		cfg := config.DefaultAllocationConfig
		cfg.MaxPoolWeight = 1.0

		plan, err := BuildAllocationPlan(
			[]types.Score{scored("ethereum:0xaaa", 80, false), scored("ethereum:0xbbb", 60, false)},
			nil, 10000, cfg, weights,
		)
		require.NoError(t, err)

		require.Len(t, plan.Entries, 2)
		assert.InDelta(t, 4.0/7.0, plan.Entries[0].Weight, 1e-12)
		assert.InDelta(t, 3.0/7.0, plan.Entries[1].Weight, 1e-12)
		assert.InDelta(t, 10000, plan.Entries[0].CapitalUSD+plan.Entries[1].CapitalUSD, 1e-9)
		assert.InDelta(t, 0, plan.UnallocatedUSD, 1e-9)
	})

	t.Run("skips_low_scores_and_overflow", func(t *testing.T) {
		cfg := config.DefaultAllocationConfig
		cfg.MaxPools = 1

		plan, err := BuildAllocationPlan(
			[]types.Score{
				scored("ethereum:0xaaa", 80, false),
				scored("ethereum:0xbbb", 60, false),
				scored("ethereum:0xddd", 30, false),
			},
			nil, 10000, cfg, weights,
		)
		require.NoError(t, err)

		require.Len(t, plan.Entries, 1)
		assert.Equal(t, types.PoolID("ethereum:0xaaa"), plan.Entries[0].PoolID)
		assert.InDelta(t, 0.35, plan.Entries[0].Weight, 1e-12)

		require.Len(t, plan.SkippedPools, 2)
		assert.Equal(t, types.PoolID("ethereum:0xbbb"), plan.SkippedPools[0].PoolID)
		assert.Equal(t, "ranked outside the top 1", plan.SkippedPools[0].Reason)
		assert.Equal(t, types.PoolID("ethereum:0xddd"), plan.SkippedPools[1].PoolID)
		assert.Equal(t, "score 30.0 below minimum 40.0", plan.SkippedPools[1].Reason)
	})

	t.Run("dust_entries_are_skipped", func(t *testing.T) {
		cfg := config.DefaultAllocationConfig
		cfg.MaxPoolWeight = 1.0
		cfg.MinEntryUSD = 3500

		plan, err := BuildAllocationPlan(
			[]types.Score{scored("ethereum:0xaaa", 95, false), scored("ethereum:0xbbb", 45, false)},
			nil, 10000, cfg, weights,
		)
		require.NoError(t, err)

		// 45/140 of the capital is $3214.29, under the entry floor.
		require.Len(t, plan.Entries, 1)
		assert.Equal(t, types.PoolID("ethereum:0xaaa"), plan.Entries[0].PoolID)
		require.Len(t, plan.SkippedPools, 1)
		assert.Equal(t, types.PoolID("ethereum:0xbbb"), plan.SkippedPools[0].PoolID)
		assert.Contains(t, plan.SkippedPools[0].Reason, "below minimum $3500.00")
		assert.InDelta(t, 10000-plan.Entries[0].CapitalUSD, plan.UnallocatedUSD, 1e-9)
	})

	t.Run("all_dust_is_no_eligible_pools", func(t *testing.T) {
		cfg := config.DefaultAllocationConfig
		cfg.MinEntryUSD = 5000

		_, err := BuildAllocationPlan(
			[]types.Score{scored("ethereum:0xaaa", 80, false), scored("ethereum:0xbbb", 60, false)},
			nil, 10000, cfg, weights,
		)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoEligiblePools)
		assert.Contains(t, err.Error(), "minimum entry size")
	})

	t.Run("unknown_mode_costs_only_the_projection", func(t *testing.T) {
		score := scored("ethereum:0xaaa", 80, false)
		score.RecommendedMode = types.RiskMode("")
		score.FeeAPR = types.FeeAPRResult{Fees24hEquivalent: 1500}

		snapshots := map[types.PoolID]types.PoolSnapshot{
			score.PoolID: {ChainID: "ethereum", PoolAddress: "0xaaa", TvlUSD: 1_000_000},
		}

		plan, err := BuildAllocationPlan(
			[]types.Score{score}, snapshots, 10000, config.DefaultAllocationConfig, weights,
		)
		require.NoError(t, err)
		require.Len(t, plan.Entries, 1)
		assert.Zero(t, plan.Entries[0].ExpectedFees30dUSD)
	})

	t.Run("all_suspect_is_no_eligible_pools", func(t *testing.T) {
		_, err := BuildAllocationPlan(
			[]types.Score{scored("ethereum:0xaaa", 80, true)},
			nil, 10000, config.DefaultAllocationConfig, weights,
		)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoEligiblePools)
		assert.Contains(t, err.Error(), "excluded")
	})

	t.Run("empty_scores_is_no_eligible_pools", func(t *testing.T) {
		_, err := BuildAllocationPlan(nil, nil, 10000, config.DefaultAllocationConfig, weights)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoEligiblePools)
	})

	t.Run("rejects_invalid_capital", func(t *testing.T) {
		for _, capital := range []float64{0, -100, math.NaN(), math.Inf(1)} {
			_, err := BuildAllocationPlan(
				[]types.Score{scored("ethereum:0xaaa", 80, false)},
				nil, capital, config.DefaultAllocationConfig, weights,
			)
			assert.ErrorIs(t, err, ErrInvalidCapital)
		}
	})

	t.Run("rejects_invalid_config", func(t *testing.T) {
		cfg := config.DefaultAllocationConfig
		cfg.MaxPools = 0

		_, err := BuildAllocationPlan(
			[]types.Score{scored("ethereum:0xaaa", 80, false)},
			nil, 10000, cfg, weights,
		)
		assert.ErrorIs(t, err, ErrInvalidAllocationConfig)
	})

	t.Run("rejects_invalid_weights", func(t *testing.T) {
		bad := config.DefaultScoreWeights
		bad.ReturnWeight = 30

		_, err := BuildAllocationPlan(
			[]types.Score{scored("ethereum:0xaaa", 80, false)},
			nil, 10000, config.DefaultAllocationConfig, bad,
		)
		assert.ErrorIs(t, err, analyzer.ErrInvalidScoreWeights)
	})
}
