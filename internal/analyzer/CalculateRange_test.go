package analyzer

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolpulse/poolpulse/internal/types"
)

func volatilePoolSnapshot(now time.Time) types.PoolSnapshot {
	return types.PoolSnapshot{
		ChainID:      "ethereum",
		PoolAddress:  "0xcbcdf9626bc03e24f779434178a73a0b4bad62ed",
		TokenA:       types.Token{Symbol: "WBTC", Decimals: 8},
		TokenB:       types.Token{Symbol: "WETH", Decimals: 18},
		FeeTier:      0.003,
		Price:        2000,
		PriceUSD:     2000,
		TvlUSD:       1_000_000,
		PoolType:     types.PoolTypeV2,
		Volume24hUSD: 500_000,
		LastUpdated:  now,
		Source:       "dexscreener",
	}
}

func TestCalculateRange(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	vol := types.VolatilityEstimate{Value: 0.8, Method: types.VolMethodLogReturns, Samples: 72}

	t.Run("width_scales_with_mode", func(t *testing.T) {
		snap := volatilePoolSnapshot(now)

		// z * 0.8 * sqrt(7/365) per mode.
		expected := map[types.RiskMode]float64{
			types.ModeDefensive:  0.0886304,
			types.ModeNormal:     0.1329455,
			types.ModeAggressive: 0.1994183,
		}

		for mode, width := range expected {
			result, err := CalculateRange(snap, vol, mode, 7, testWeights())
			require.NoError(t, err)
			assert.InDelta(t, width, result.WidthPct, 1e-4)
			assert.InDelta(t, snap.Price*(1-result.WidthPct), result.LowerPrice, 1e-9)
			assert.InDelta(t, snap.Price*(1+result.WidthPct), result.UpperPrice, 1e-9)
			assert.Equal(t, mode, result.Mode)
			assert.Equal(t, 7.0, result.HorizonDays)
		}
	})

	t.Run("ticks_snap_outward_on_spacing_grid", func(t *testing.T) {
		snap := volatilePoolSnapshot(now)

		result, err := CalculateRange(snap, vol, types.ModeNormal, 7, testWeights())
		require.NoError(t, err)

		assert.Equal(t, 60, result.TickSpacing)
		assert.Zero(t, result.LowerTick%60)
		assert.Zero(t, result.UpperTick%60)
		assert.Less(t, result.LowerTick, result.UpperTick)

		// The snapped tick band must contain the requested price band.
		assert.LessOrEqual(t, TickToPrice(result.LowerTick), result.LowerPrice)
		assert.GreaterOrEqual(t, TickToPrice(result.UpperTick), result.UpperPrice)
	})

	t.Run("stable_pool_width_is_capped", func(t *testing.T) {
		snap := deepStableSnapshot(now)
		snap.Price = 1.0
		wildVol := types.VolatilityEstimate{Value: 2.0, Method: types.VolMethodProxy, Samples: 2}

		result, err := CalculateRange(snap, wildVol, types.ModeNormal, 7, testWeights())
		require.NoError(t, err)
		assert.Equal(t, 0.03, result.WidthPct)
		assert.InDelta(t, 0.97, result.LowerPrice, 1e-12)
		assert.InDelta(t, 1.03, result.UpperPrice, 1e-12)
		assert.Equal(t, 10, result.TickSpacing)
	})

	t.Run("width_clamps_at_minimum", func(t *testing.T) {
		snap := volatilePoolSnapshot(now)
		calm := types.VolatilityEstimate{Value: 0.01, Method: types.VolMethodLogReturns, Samples: 72}

		result, err := CalculateRange(snap, calm, types.ModeDefensive, 1, testWeights())
		require.NoError(t, err)
		assert.Equal(t, 0.003, result.WidthPct)
	})

	t.Run("width_clamps_at_maximum", func(t *testing.T) {
		snap := volatilePoolSnapshot(now)
		wild := types.VolatilityEstimate{Value: 9, Method: types.VolMethodProxy, Samples: 2}

		result, err := CalculateRange(snap, wild, types.ModeAggressive, 30, testWeights())
		require.NoError(t, err)
		assert.Equal(t, 0.45, result.WidthPct)
	})

	t.Run("unknown_volatility_gets_floor_width", func(t *testing.T) {
		snap := volatilePoolSnapshot(now)

		result, err := CalculateRange(snap, types.VolatilityEstimate{}, types.ModeNormal, 7, testWeights())
		require.NoError(t, err)
		assert.Equal(t, 0.003, result.WidthPct)
		assert.Equal(t, 0.0, result.OutOfRangeProbability)
	})

	t.Run("non_positive_price_rejected", func(t *testing.T) {
		snap := volatilePoolSnapshot(now)
		snap.Price = 0

		_, err := CalculateRange(snap, vol, types.ModeNormal, 7, testWeights())
		assert.ErrorIs(t, err, ErrInvalidPoolData)
	})

	t.Run("non_positive_horizon_rejected", func(t *testing.T) {
		_, err := CalculateRange(volatilePoolSnapshot(now), vol, types.ModeNormal, 0, testWeights())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "horizon days")
	})

	t.Run("unknown_mode_rejected", func(t *testing.T) {
		_, err := CalculateRange(volatilePoolSnapshot(now), vol, types.RiskMode("BOLD"), 7, testWeights())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown risk mode")
	})

	t.Run("invalid_weights_rejected", func(t *testing.T) {
		weights := testWeights()
		weights.ZScoreNormal = -1

		_, err := CalculateRange(volatilePoolSnapshot(now), vol, types.ModeNormal, 7, weights)
		assert.ErrorIs(t, err, ErrInvalidScoreWeights)
	})
}

func TestCalculateOutOfRangeProbability(t *testing.T) {
	t.Run("wide_band_on_calm_pool_never_breaches", func(t *testing.T) {
		assert.InDelta(t, 0.0, CalculateOutOfRangeProbability(100, 145, 0.1, 7), 1e-6)
	})

	t.Run("hairline_band_on_wild_pool_always_breaches", func(t *testing.T) {
		assert.Greater(t, CalculateOutOfRangeProbability(100, 100.1, 2, 7), 0.95)
	})

	t.Run("known_mid_case", func(t *testing.T) {
		// d = ln(1.1) / (0.5 * sqrt(30/365)) = 0.665, doubled upper tail.
		assert.InDelta(t, 0.506, CalculateOutOfRangeProbability(100, 110, 0.5, 30), 0.005)
	})

	t.Run("monotone_in_volatility", func(t *testing.T) {
		low := CalculateOutOfRangeProbability(100, 110, 0.5, 7)
		mid := CalculateOutOfRangeProbability(100, 110, 1.0, 7)
		high := CalculateOutOfRangeProbability(100, 110, 2.0, 7)
		assert.Less(t, low, mid)
		assert.Less(t, mid, high)
	})

	t.Run("degenerate_inputs_return_zero", func(t *testing.T) {
		assert.Equal(t, 0.0, CalculateOutOfRangeProbability(100, 110, 0, 7))
		assert.Equal(t, 0.0, CalculateOutOfRangeProbability(0, 110, 0.5, 7))
		assert.Equal(t, 0.0, CalculateOutOfRangeProbability(100, 100, 0.5, 7))
		assert.Equal(t, 0.0, CalculateOutOfRangeProbability(100, 90, 0.5, 7))
		assert.Equal(t, 0.0, CalculateOutOfRangeProbability(100, 110, 0.5, 0))
	})
}

func TestTickSpacingForFeeTier(t *testing.T) {
	cases := []struct {
		name    string
		feeTier float64
		want    int
	}{
		{"missing_tier_gets_default", 0, 60},
		{"one_hundredth_percent", 0.0001, 1},
		{"below_smallest_tier", 0.00005, 1},
		{"five_hundredths_percent", 0.0005, 10},
		{"thirty_hundredths_percent", 0.003, 60},
		{"one_percent", 0.01, 200},
		{"unknown_large_tier", 0.05, 60},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, TickSpacingForFeeTier(tc.feeTier))
		})
	}
}

func TestPriceTickRoundtrip(t *testing.T) {
	for _, price := range []float64{0.0001, 0.5, 1.0, 2000, 65000} {
		tick := PriceToTick(price)
		assert.LessOrEqual(t, TickToPrice(tick), price*(1+1e-12))
		assert.Greater(t, TickToPrice(tick+1), price*(1-1e-12))
	}

	t.Run("tick_zero_is_unit_price", func(t *testing.T) {
		assert.InDelta(t, 1.0, TickToPrice(0), 1e-12)
		assert.Equal(t, 0, PriceToTick(1.0))
	})
}

func TestCalculateFeeEstimate(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	feeAPR := types.FeeAPRResult{Source: types.AprSourceFees24h, Fees24hEquivalent: 1000}

	t.Run("projects_linear_fee_income", func(t *testing.T) {
		snap := volatilePoolSnapshot(now)

		result, err := CalculateFeeEstimate(snap, feeAPR, 10_000, types.ModeNormal, testWeights())
		require.NoError(t, err)
		assert.Equal(t, 10_000.0, result.CapitalUSD)
		assert.InDelta(t, 0.01, result.PoolShare, 1e-12)
		assert.Equal(t, 0.75, result.ActiveFraction)
		assert.InDelta(t, 7.5, result.ExpectedFees24hUSD, 1e-9)
		assert.InDelta(t, 52.5, result.ExpectedFees7dUSD, 1e-9)
		assert.InDelta(t, 225.0, result.ExpectedFees30dUSD, 1e-9)
	})

	t.Run("no_tvl_projects_nothing", func(t *testing.T) {
		snap := volatilePoolSnapshot(now)
		snap.TvlUSD = 0

		result, err := CalculateFeeEstimate(snap, feeAPR, 10_000, types.ModeNormal, testWeights())
		require.NoError(t, err)
		assert.Equal(t, 0.0, result.PoolShare)
		assert.Equal(t, 0.0, result.ExpectedFees24hUSD)
		assert.Equal(t, 0.75, result.ActiveFraction)
	})

	t.Run("zero_capital_is_legal", func(t *testing.T) {
		result, err := CalculateFeeEstimate(volatilePoolSnapshot(now), feeAPR, 0, types.ModeDefensive, testWeights())
		require.NoError(t, err)
		assert.Equal(t, 0.0, result.ExpectedFees24hUSD)
	})

	t.Run("negative_capital_rejected", func(t *testing.T) {
		_, err := CalculateFeeEstimate(volatilePoolSnapshot(now), feeAPR, -5, types.ModeNormal, testWeights())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "capital")
	})

	t.Run("unknown_mode_rejected", func(t *testing.T) {
		_, err := CalculateFeeEstimate(volatilePoolSnapshot(now), feeAPR, 10_000, types.RiskMode("YOLO"), testWeights())
		assert.Error(t, err)
	})
}

func TestCalculateILRisk(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	vol := types.VolatilityEstimate{Value: 0.5, Method: types.VolMethodLogReturns, Samples: 72}

	t.Run("tight_defensive_band_is_medium", func(t *testing.T) {
		result, err := CalculateILRisk(volatilePoolSnapshot(now), vol, types.ModeDefensive, 7, testWeights())
		require.NoError(t, err)
		assert.InDelta(t, 0.436, result.BreachProbability, 0.01)
		assert.Equal(t, types.ILRiskMedium, result.Level)
	})

	t.Run("wide_aggressive_band_is_low", func(t *testing.T) {
		result, err := CalculateILRisk(volatilePoolSnapshot(now), vol, types.ModeAggressive, 7, testWeights())
		require.NoError(t, err)
		assert.InDelta(t, 0.090, result.BreachProbability, 0.01)
		assert.Equal(t, types.ILRiskLow, result.Level)
	})

	t.Run("depegging_stable_is_high", func(t *testing.T) {
		snap := deepStableSnapshot(now)
		snap.Price = 1.0
		wildVol := types.VolatilityEstimate{Value: 2.0, Method: types.VolMethodProxy, Samples: 2}

		result, err := CalculateILRisk(snap, wildVol, types.ModeNormal, 7, testWeights())
		require.NoError(t, err)
		assert.Equal(t, 0.03, result.WidthPct)
		assert.InDelta(t, 0.915, result.BreachProbability, 0.01)
		assert.Equal(t, types.ILRiskHigh, result.Level)
	})

	t.Run("invalid_range_input_propagates", func(t *testing.T) {
		snap := volatilePoolSnapshot(now)
		snap.Price = math.NaN()

		_, err := CalculateILRisk(snap, vol, types.ModeNormal, 7, testWeights())
		assert.ErrorIs(t, err, ErrInvalidPoolData)
	})
}
