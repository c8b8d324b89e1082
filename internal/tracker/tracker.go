/*

This file contains the TVL peak tracker: a bounded in-memory history of TVL
observations per pool, used to measure drawdowns from the trailing 24h peak.
Pools draining liquidity look healthy on every instantaneous metric right up
until the exit is closed; the drawdown penalty is what catches them mid-slide.

*/

package tracker

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/poolpulse/poolpulse/internal/logger"
	"github.com/poolpulse/poolpulse/internal/types"
)

var trackerLogger = logger.GetForComponent("tvl_tracker")

const (
	// debounceWindow collapses rapid re-observations into one entry so a
	// burst of polls cannot flush the 24h history.
	debounceWindow = 60 * time.Second

	// peakWindow is how far back the peak search looks.
	peakWindow = 24 * time.Hour

	// retentionWindow is how long entries are kept before eviction. Slightly
	// wider than the peak window so boundary entries are never lost early.
	retentionWindow = 25 * time.Hour

	// evictionInterval bounds how often the eviction sweep may run.
	evictionInterval = 30 * time.Minute

	// DefaultMaxPools bounds tracked pools when no cap is configured.
	DefaultMaxPools = 1000
)

type tvlEntry struct {
	Timestamp time.Time
	TvlUSD    float64
}

type poolHistory struct {
	entries   []tvlEntry
	lastWrite time.Time
}

// Store holds per-pool TVL histories. It is safe for concurrent use; the
// engine is the only writer per pool but readers (API handlers) may query at
// any time. Lifetime is owned by whoever constructs it, there is no package
// level instance.
type Store struct {
	mu           sync.Mutex
	pools        map[types.PoolID]*poolHistory
	maxPools     int
	lastEviction time.Time
}

// NewStore creates an empty tracker bounded to maxPools pools. A
// non-positive cap falls back to DefaultMaxPools.
func NewStore(maxPools int) *Store {
	if maxPools <= 0 {
		maxPools = DefaultMaxPools
	}
	return &Store{
		pools:    make(map[types.PoolID]*poolHistory),
		maxPools: maxPools,
	}
}

// Record appends a TVL observation for a pool. An observation arriving
// within 60 seconds of the pool's last recorded entry overwrites that
// entry's value in place instead of appending, keeping the original
// timestamp. Non-finite or negative values are dropped.
func (s *Store) Record(poolID types.PoolID, tvlUSD float64, now time.Time) {
	if math.IsNaN(tvlUSD) || math.IsInf(tvlUSD, 0) || tvlUSD < 0 {
		trackerLogger.Warn().
			Str("poolID", string(poolID)).
			Float64("tvlUSD", tvlUSD).
			Msg("Dropping invalid TVL observation")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history, exists := s.pools[poolID]
	if !exists {
		history = &poolHistory{}
		s.pools[poolID] = history
	}

	if n := len(history.entries); n > 0 && now.Sub(history.entries[n-1].Timestamp) < debounceWindow {
		history.entries[n-1].TvlUSD = tvlUSD
	} else {
		history.entries = append(history.entries, tvlEntry{Timestamp: now, TvlUSD: tvlUSD})
	}
	history.lastWrite = now

	s.maybeEvict(now)
}

// TvlDrop measures the pool's drawdown from its trailing 24h peak and grades
// it into additive penalty points. A pool with no usable history yields a
// zero result; a tracker that has seen nothing has no basis to penalize.
func (s *Store) TvlDrop(poolID types.PoolID, currentTvlUSD float64, now time.Time) types.TvlDropResult {
	result := types.TvlDropResult{
		PoolID:     poolID,
		CurrentUSD: currentTvlUSD,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history, exists := s.pools[poolID]
	if !exists {
		return result
	}

	cutoff := now.Add(-peakWindow)
	var peak float64
	for _, entry := range history.entries {
		if entry.Timestamp.Before(cutoff) {
			continue
		}
		result.Samples++
		if entry.TvlUSD > peak {
			peak = entry.TvlUSD
		}
	}

	if result.Samples == 0 || peak <= 0 {
		return result
	}

	result.Peak24hUSD = peak
	if currentTvlUSD < peak {
		result.DropPercent = (peak - currentTvlUSD) / peak * 100.0
	}
	result.Penalty = dropPenalty(result.DropPercent)

	trackerLogger.Debug().
		Str("poolID", string(poolID)).
		Float64("peak24hUSD", peak).
		Float64("currentUSD", currentTvlUSD).
		Float64("dropPercent", result.DropPercent).
		Float64("penalty", result.Penalty).
		Int("samples", result.Samples).
		Msg("TVL drawdown measured")

	return result
}

// TrackedPools lists the pools currently holding history, sorted by ID.
func (s *Store) TrackedPools() []types.PoolID {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]types.PoolID, 0, len(s.pools))
	for poolID := range s.pools {
		ids = append(ids, poolID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// dropPenalty grades a drawdown percentage into additive penalty points.
func dropPenalty(dropPercent float64) float64 {
	switch {
	case dropPercent >= 50:
		return 20
	case dropPercent >= 30:
		return 15
	case dropPercent >= 20:
		return 10
	case dropPercent >= 10:
		return 5
	default:
		return 0
	}
}

// maybeEvict trims stale entries and over-cap pools. Runs under the store
// lock and at most once per evictionInterval so steady Record traffic does
// not pay the sweep on every call.
func (s *Store) maybeEvict(now time.Time) {
	if now.Sub(s.lastEviction) < evictionInterval {
		return
	}
	s.lastEviction = now

	staleCutoff := now.Add(-retentionWindow)
	entriesDropped := 0
	poolsDropped := 0

	for poolID, history := range s.pools {
		kept := history.entries[:0]
		for _, entry := range history.entries {
			if entry.Timestamp.Before(staleCutoff) {
				entriesDropped++
				continue
			}
			kept = append(kept, entry)
		}
		history.entries = kept

		if len(history.entries) == 0 {
			delete(s.pools, poolID)
			poolsDropped++
		}
	}

	// Enforce the pool cap by evicting the least recently written pools.
	if len(s.pools) > s.maxPools {
		type poolAge struct {
			id        types.PoolID
			lastWrite time.Time
		}
		ages := make([]poolAge, 0, len(s.pools))
		for poolID, history := range s.pools {
			ages = append(ages, poolAge{id: poolID, lastWrite: history.lastWrite})
		}
		sort.Slice(ages, func(i, j int) bool {
			return ages[i].lastWrite.Before(ages[j].lastWrite)
		})

		for _, age := range ages[:len(s.pools)-s.maxPools] {
			delete(s.pools, age.id)
			poolsDropped++
		}
	}

	if entriesDropped > 0 || poolsDropped > 0 {
		trackerLogger.Debug().
			Int("entriesDropped", entriesDropped).
			Int("poolsDropped", poolsDropped).
			Int("trackedPools", len(s.pools)).
			Msg("Tracker eviction sweep complete")
	}
}
