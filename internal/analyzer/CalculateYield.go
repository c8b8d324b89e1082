/*

This file contains the fee APR estimator. Venues report fee totals over
different rolling windows with different reliability; the estimator prefers
the widest window that actually holds data and extrapolates the rest.

*/

package analyzer

import (
	"fmt"
	"math"

	"github.com/poolpulse/poolpulse/internal/logger"
	"github.com/poolpulse/poolpulse/internal/types"
)

var yieldLogger = logger.GetForComponent("yield_estimator")

// Extrapolation multipliers to a 24h equivalent.
const (
	hoursPerDay       = 24.0
	fiveMinutesPerDay = 288.0
	daysPerYear       = 365.0
)

// CalculateFeeAPR derives an annualized fee APR (percent) from whichever fee
// window holds a positive value, preferring 24h, then 1h scaled by 24, then
// 5m scaled by 288. A pool with no TVL or no usable window yields a nil APR
// with the estimated source tag; missing data is never an error. Errors are
// reserved for non-finite inputs.
func CalculateFeeAPR(tvlUSD, fees24hUSD, fees1hUSD, fees5mUSD float64) (types.FeeAPRResult, error) {
	for _, in := range []struct {
		value float64
		name  string
	}{
		{tvlUSD, "tvl"},
		{fees24hUSD, "fees 24h"},
		{fees1hUSD, "fees 1h"},
		{fees5mUSD, "fees 5m"},
	} {
		if math.IsNaN(in.value) || math.IsInf(in.value, 0) {
			return types.FeeAPRResult{}, fmt.Errorf("%s must be a finite number, got %f", in.name, in.value)
		}
	}

	noData := types.FeeAPRResult{
		FeeAPR:            nil,
		Source:            types.AprSourceEstimated,
		Fees24hEquivalent: 0,
	}

	if tvlUSD <= 0 {
		yieldLogger.Debug().
			Float64("tvlUSD", tvlUSD).
			Msg("No TVL, fee APR not computable")
		return noData, nil
	}

	var (
		fees24hEquivalent float64
		source            types.FeeAPRSource
	)
	switch {
	case fees24hUSD > 0:
		fees24hEquivalent = fees24hUSD
		source = types.AprSourceFees24h
	case fees1hUSD > 0:
		fees24hEquivalent = fees1hUSD * hoursPerDay
		source = types.AprSourceFees1h
	case fees5mUSD > 0:
		fees24hEquivalent = fees5mUSD * fiveMinutesPerDay
		source = types.AprSourceFees5m
	default:
		yieldLogger.Debug().
			Float64("tvlUSD", tvlUSD).
			Msg("No fee window held a positive value, fee APR not computable")
		return noData, nil
	}

	apr := (fees24hEquivalent / tvlUSD) * daysPerYear * 100.0

	if math.IsNaN(apr) || math.IsInf(apr, 0) {
		return types.FeeAPRResult{}, fmt.Errorf("fee APR calculation resulted in NaN or Inf (fees24hEquivalent=%f tvl=%f)", fees24hEquivalent, tvlUSD)
	}

	yieldLogger.Debug().
		Float64("tvlUSD", tvlUSD).
		Float64("fees24hEquivalent", fees24hEquivalent).
		Str("source", string(source)).
		Float64("feeAPR", apr).
		Msg("Fee APR calculated")

	return types.FeeAPRResult{
		FeeAPR:            &apr,
		Source:            source,
		Fees24hEquivalent: fees24hEquivalent,
	}, nil
}
