/*

This file contains the cross-source consensus detector. Providers routinely
disagree about TVL and volume; mild disagreement is noise, heavy disagreement
means at least one source is stale, wrong, or being gamed, and the pool's
score pays for it.

*/

package analyzer

import (
	"fmt"
	"math"
	"sort"

	"github.com/poolpulse/poolpulse/internal/logger"
	"github.com/poolpulse/poolpulse/internal/types"
)

var consensusLogger = logger.GetForComponent("consensus_detector")

// Metric keys compared across sources.
const (
	MetricTvl       = "tvl"
	MetricVolume24h = "volume_24h"
)

// NoComparisonReason is reported when fewer than two sources delivered
// comparable data for a pool.
const NoComparisonReason = "no comparison possible"

// Divergence returns the relative disagreement between two readings of the
// same metric, in percent of the larger reading. A reading that is zero or
// negative while the other is positive counts as total disagreement.
func Divergence(a, b float64) float64 {
	aValid := a > 0 && !math.IsNaN(a) && !math.IsInf(a, 0)
	bValid := b > 0 && !math.IsNaN(b) && !math.IsInf(b, 0)

	switch {
	case aValid && bValid:
		hi := math.Max(a, b)
		lo := math.Min(a, b)
		return (hi - lo) / hi * 100.0
	case aValid != bValid:
		return 100.0
	default:
		return 0
	}
}

// DivergencePenalty maps a divergence percentage onto additive penalty
// points. Up to 10% disagreement is considered provider noise.
func DivergencePenalty(divergencePct float64) float64 {
	switch {
	case divergencePct <= 10:
		return 0
	case divergencePct <= 20:
		return 3
	case divergencePct <= 30:
		return 7
	case divergencePct <= 50:
		return 10
	default:
		return 15
	}
}

// CalculateConsensus compares every source's claims about a pool and grades
// the disagreement. Each metric takes its maximum pairwise divergence across
// the sources that actually report it; the pool's penalty is the worst
// metric's penalty, never a sum. Fewer than two comparable sources yields a
// zero penalty with an explicit reason, because absence of a second opinion
// is not evidence of a problem.
func CalculateConsensus(poolID types.PoolID, observations []types.ConsensusObservation) types.ConsensusResult {
	result := types.ConsensusResult{
		PoolID:  poolID,
		Metrics: make(map[string]types.ConsensusMetric),
	}

	for _, obs := range observations {
		result.Sources = append(result.Sources, obs.Source)
	}
	sort.Strings(result.Sources)

	if len(observations) < 2 {
		result.Reason = NoComparisonReason
		consensusLogger.Debug().
			Str("poolID", string(poolID)).
			Int("sources", len(observations)).
			Msg("Consensus check skipped, not enough sources")
		return result
	}

	metricValues := map[string]map[string]float64{
		MetricTvl:       {},
		MetricVolume24h: {},
	}
	for _, obs := range observations {
		if obs.TvlUSD != nil {
			metricValues[MetricTvl][obs.Source] = *obs.TvlUSD
		}
		if obs.Volume24hUSD != nil {
			metricValues[MetricVolume24h][obs.Source] = *obs.Volume24hUSD
		}
	}

	// The penalty ladder is monotone, so the worst metric's penalty is the
	// penalty of the worst divergence.
	worstMetric := ""
	for _, metric := range []string{MetricTvl, MetricVolume24h} {
		values := metricValues[metric]
		if len(values) < 2 {
			continue
		}

		maxDivergence := maxPairwiseDivergence(values)
		result.Metrics[metric] = types.ConsensusMetric{
			Values:        values,
			DivergencePct: maxDivergence,
		}

		if worstMetric == "" || maxDivergence > result.MaxDivergencePct {
			result.MaxDivergencePct = maxDivergence
			worstMetric = metric
		}
	}

	if worstMetric == "" {
		result.Reason = NoComparisonReason
		return result
	}

	result.Penalty = DivergencePenalty(result.MaxDivergencePct)

	if result.Penalty > 0 {
		result.Reason = fmt.Sprintf("%s diverges %.1f%% across %d sources", worstMetric, result.Metrics[worstMetric].DivergencePct, len(result.Metrics[worstMetric].Values))
	}

	consensusLogger.Debug().
		Str("poolID", string(poolID)).
		Strs("sources", result.Sources).
		Float64("maxDivergencePct", result.MaxDivergencePct).
		Float64("penalty", result.Penalty).
		Msg("Consensus check complete")

	return result
}

// maxPairwiseDivergence scans every source pair for a metric.
func maxPairwiseDivergence(values map[string]float64) float64 {
	sources := make([]string, 0, len(values))
	for source := range values {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	var maxDivergence float64
	for i := 0; i < len(sources); i++ {
		for j := i + 1; j < len(sources); j++ {
			if d := Divergence(values[sources[i]], values[sources[j]]); d > maxDivergence {
				maxDivergence = d
			}
		}
	}
	return maxDivergence
}
