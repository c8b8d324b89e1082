package analyzer

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/poolpulse/poolpulse/internal/types"
)

// Volatility output bounds. Measured estimates are clamped harder at the top
// than the single-observation proxy because a real series earns more trust.
const (
	minMeasuredVolatility = 0.01
	maxMeasuredVolatility = 10.0
	minProxyVolatility    = 0.05
	maxProxyVolatility    = 3.0
)

// Sampling cadence detection: consecutive samples closer than this are
// treated as a 5-minute series, anything slower as hourly.
const fiveMinuteGapCutoff = 10 * time.Minute

// CalculateVolatility computes annualized historical volatility from a price
// series using logarithmic returns and their sample standard deviation.
// The series is sorted by timestamp first; pairs with a non-positive price on
// either side are skipped. Fewer than 3 usable points or fewer than 2 returns
// means nothing can be measured and a zero estimate with the proxy method tag
// is returned instead of an error.
// periodsPerYear must match the sampling cadence (PeriodsPerYearHourly or
// PeriodsPerYearFiveMinute).
func CalculateVolatility(prices []types.PriceData, periodsPerYear float64) (types.VolatilityEstimate, error) {
	if math.IsNaN(periodsPerYear) || math.IsInf(periodsPerYear, 0) || periodsPerYear <= 0 {
		return types.VolatilityEstimate{}, fmt.Errorf("periods per year must be a positive finite number, got %f", periodsPerYear)
	}

	// Work on a copy so callers keep their ordering.
	sorted := make([]types.PriceData, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	validPoints := 0
	for _, p := range sorted {
		if p.Price > 0 && !math.IsNaN(p.Price) && !math.IsInf(p.Price, 0) {
			validPoints++
		}
	}

	notMeasurable := types.VolatilityEstimate{
		Value:   0,
		Method:  types.VolMethodProxy,
		Samples: validPoints,
	}

	if validPoints < 3 {
		return notMeasurable, nil
	}

	// --- Calculate Logarithmic Returns ---
	logReturns := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		currentPrice := sorted[i].Price
		previousPrice := sorted[i-1].Price

		// Check for invalid prices that would break math.Log
		if previousPrice <= 0 || currentPrice <= 0 ||
			math.IsNaN(previousPrice) || math.IsNaN(currentPrice) ||
			math.IsInf(previousPrice, 0) || math.IsInf(currentPrice, 0) {
			continue // Skip this data point pair
		}

		logReturns = append(logReturns, math.Log(currentPrice/previousPrice))
	}

	if len(logReturns) < 2 {
		return notMeasurable, nil
	}

	stdDev := sampleStdDev(logReturns)
	annualized := stdDev * math.Sqrt(periodsPerYear)

	if math.IsNaN(annualized) || math.IsInf(annualized, 0) {
		return types.VolatilityEstimate{}, errors.New("volatility calculation resulted in NaN or Inf")
	}

	return types.VolatilityEstimate{
		Value:   Clamp(annualized, minMeasuredVolatility, maxMeasuredVolatility),
		Method:  types.VolMethodLogReturns,
		Samples: validPoints,
	}, nil
}

// EstimateVolatility measures volatility from a series, inferring the
// sampling cadence from the median gap between consecutive samples. Gaps of
// ten minutes or less are treated as a 5-minute series, anything slower as
// hourly.
func EstimateVolatility(prices []types.PriceData) (types.VolatilityEstimate, error) {
	periodsPerYear := PeriodsPerYearHourly
	if medianSampleGap(prices) <= fiveMinuteGapCutoff {
		periodsPerYear = PeriodsPerYearFiveMinute
	}
	return CalculateVolatility(prices, periodsPerYear)
}

// CalculateVolatilityProxy derives a coarse annualized volatility from a
// single one-hour price move. Either price being non-positive yields a zero
// estimate rather than an error.
func CalculateVolatilityProxy(priceNow, price1hAgo float64) (types.VolatilityEstimate, error) {
	if math.IsNaN(priceNow) || math.IsInf(priceNow, 0) ||
		math.IsNaN(price1hAgo) || math.IsInf(price1hAgo, 0) {
		return types.VolatilityEstimate{}, errors.New("proxy prices must be finite numbers")
	}

	if priceNow <= 0 || price1hAgo <= 0 {
		return types.VolatilityEstimate{
			Value:   0,
			Method:  types.VolMethodProxy,
			Samples: 0,
		}, nil
	}

	hourlyMove := math.Abs(math.Log(priceNow / price1hAgo))
	annualized := hourlyMove * math.Sqrt(PeriodsPerYearHourly)

	return types.VolatilityEstimate{
		Value:   Clamp(annualized, minProxyVolatility, maxProxyVolatility),
		Method:  types.VolMethodProxy,
		Samples: 2,
	}, nil
}

// medianSampleGap returns the median time gap between consecutive samples
// after sorting. Series too short to have a gap default to hourly.
func medianSampleGap(prices []types.PriceData) time.Duration {
	if len(prices) < 2 {
		return time.Hour
	}

	sorted := make([]types.PriceData, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	gaps := make([]time.Duration, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		gaps = append(gaps, sorted[i].Timestamp.Sub(sorted[i-1].Timestamp))
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i] < gaps[j] })

	return gaps[len(gaps)/2]
}
