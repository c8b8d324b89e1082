package analyzer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolpulse/poolpulse/internal/types"
)

func TestCalculateFeeAPR(t *testing.T) {
	t.Run("prefers_real_24h_window", func(t *testing.T) {
		result, err := CalculateFeeAPR(1_000_000, 1000, 100, 10)
		require.NoError(t, err)
		require.NotNil(t, result.FeeAPR)
		assert.InDelta(t, 36.5, *result.FeeAPR, 1e-9)
		assert.Equal(t, types.AprSourceFees24h, result.Source)
		assert.Equal(t, 1000.0, result.Fees24hEquivalent)
	})

	t.Run("extrapolates_1h_window", func(t *testing.T) {
		result, err := CalculateFeeAPR(1_000_000, 0, 50, 10)
		require.NoError(t, err)
		require.NotNil(t, result.FeeAPR)
		assert.InDelta(t, 43.8, *result.FeeAPR, 1e-9)
		assert.Equal(t, types.AprSourceFees1h, result.Source)
		assert.Equal(t, 1200.0, result.Fees24hEquivalent)
	})

	t.Run("extrapolates_5m_window", func(t *testing.T) {
		result, err := CalculateFeeAPR(1_000_000, 0, 0, 5)
		require.NoError(t, err)
		require.NotNil(t, result.FeeAPR)
		assert.InDelta(t, 52.56, *result.FeeAPR, 1e-9)
		assert.Equal(t, types.AprSourceFees5m, result.Source)
		assert.Equal(t, 1440.0, result.Fees24hEquivalent)
	})

	t.Run("no_usable_window_yields_nil", func(t *testing.T) {
		result, err := CalculateFeeAPR(1_000_000, 0, 0, 0)
		require.NoError(t, err)
		assert.Nil(t, result.FeeAPR)
		assert.Equal(t, types.AprSourceEstimated, result.Source)
		assert.Equal(t, 0.0, result.Fees24hEquivalent)
		assert.Equal(t, 0.0, result.APRValue())
	})

	t.Run("zero_tvl_yields_nil", func(t *testing.T) {
		result, err := CalculateFeeAPR(0, 1000, 100, 10)
		require.NoError(t, err)
		assert.Nil(t, result.FeeAPR)
		assert.Equal(t, types.AprSourceEstimated, result.Source)
	})

	t.Run("non_finite_input_rejected", func(t *testing.T) {
		_, err := CalculateFeeAPR(math.NaN(), 1000, 0, 0)
		assert.Error(t, err)
		_, err = CalculateFeeAPR(1_000_000, math.Inf(1), 0, 0)
		assert.Error(t, err)
	})
}
