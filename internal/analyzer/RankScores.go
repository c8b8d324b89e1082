/*

This file contains the ranking of composite scores for pass summaries and
API listings.

*/

package analyzer

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/poolpulse/poolpulse/internal/logger"
	"github.com/poolpulse/poolpulse/internal/types"
)

var rankLogger = logger.GetForComponent("score_ranker")
var ErrNoValidScores = errors.New("no pools with valid scores found")

// RankScores orders composite scores best-first and returns the top n
// (n <= 0 returns all). Trusted pools outrank suspect pools at equal totals;
// remaining ties break on pool ID so repeated passes rank identically.
// Returns an error when the input is empty or any score is non-finite.
func RankScores(scores []types.Score, n int) ([]types.Score, error) {
	if len(scores) == 0 {
		rankLogger.Error().Msg("Input scores slice is empty")
		return nil, ErrNoValidScores
	}

	ranked := make([]types.Score, len(scores))
	copy(ranked, scores)

	for _, score := range ranked {
		if math.IsNaN(score.Total) || math.IsInf(score.Total, 0) {
			rankLogger.Error().
				Str("poolID", string(score.PoolID)).
				Float64("total", score.Total).
				Msg("Pool has invalid score total")
			return nil, fmt.Errorf("pool %s has invalid score total: %f", score.PoolID, score.Total)
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Total != ranked[j].Total {
			return ranked[i].Total > ranked[j].Total
		}
		if ranked[i].Suspect != ranked[j].Suspect {
			return !ranked[i].Suspect
		}
		return ranked[i].PoolID < ranked[j].PoolID
	})

	if n > 0 && n < len(ranked) {
		ranked = ranked[:n]
	}

	for i, score := range ranked {
		rankLogger.Debug().
			Int("rank", i+1).
			Str("poolID", string(score.PoolID)).
			Float64("total", score.Total).
			Bool("suspect", score.Suspect).
			Msg("Ranked pool")
	}

	return ranked, nil
}
