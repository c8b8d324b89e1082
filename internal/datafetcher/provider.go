/*

This file contains the provider abstraction shared by every pool data
adapter: the fetch interface the engine consumes, the retrying JSON request
helper, and the multi-source fan-out used for consensus checks.

*/

package datafetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/poolpulse/poolpulse/internal/logger"
	"github.com/poolpulse/poolpulse/internal/types"
)

var fetchLogger = logger.GetForComponent("datafetcher")

var ErrProviderResponse = errors.New("provider returned an unusable response")
var ErrNoPoolData = errors.New("no pool data returned")

const (
	MAX_RETRIES     = 3
	TIMEOUT_SECONDS = 15
)

// PoolProvider is the engine-facing surface of a pool data source.
type PoolProvider interface {
	// Name identifies the provider in logs, metrics, and snapshot tags.
	Name() string
	// FetchPools returns snapshots for the requested pool addresses on one
	// chain. Providers skip entries they cannot validate rather than failing
	// the whole batch.
	FetchPools(ctx context.Context, chainID string, addresses []string) ([]types.PoolSnapshot, error)
}

// newHTTPClient builds the bounded client every adapter uses. A zero timeout
// falls back to the package default.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = TIMEOUT_SECONDS * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// fetchJSON performs a GET with retries and decodes the JSON body into
// target. Retries use linear backoff and respect context cancellation.
func fetchJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, provider string, target any) error {
	var lastErr error

	for attempt := 1; attempt <= MAX_RETRIES; attempt++ {
		fetchLogger.Debug().
			Str("provider", provider).
			Str("url", url).
			Int("attempt", attempt).
			Int("maxRetries", MAX_RETRIES).
			Msg("Making API request")

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("building request for %s: %w", provider, err)
		}
		req.Header.Set("Accept", "application/json")
		for key, value := range headers {
			req.Header.Set(key, value)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed on attempt %d: %w", attempt, err)
			fetchLogger.Warn().
				Err(err).
				Str("provider", provider).
				Int("attempt", attempt).
				Msg("HTTP request failed, will retry if attempts remain")

			if attempt < MAX_RETRIES && sleepOrDone(ctx, time.Duration(attempt)*time.Second) == nil {
				continue
			}
			break
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("%s returned status %d", provider, resp.StatusCode)
			fetchLogger.Warn().
				Str("provider", provider).
				Int("statusCode", resp.StatusCode).
				Int("attempt", attempt).
				Msg("API returned non-200 status, will retry if attempts remain")

			if attempt < MAX_RETRIES && sleepOrDone(ctx, time.Duration(attempt)*time.Second) == nil {
				continue
			}
			break
		}

		if readErr != nil {
			return fmt.Errorf("reading %s response body: %w", provider, readErr)
		}
		if len(body) == 0 {
			return errors.Join(ErrProviderResponse, fmt.Errorf("%s returned an empty body", provider))
		}

		if err := json.Unmarshal(body, target); err != nil {
			return errors.Join(ErrProviderResponse, fmt.Errorf("parsing %s response: %w", provider, err))
		}

		return nil
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%s request failed after %d attempts: %w", provider, MAX_RETRIES, lastErr)
}

// sleepOrDone waits for the backoff duration unless the context ends first,
// in which case the context error is returned.
func sleepOrDone(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// TvlSource is the reduced surface of providers that only report liquidity.
type TvlSource interface {
	Name() string
	FetchTvl(ctx context.Context, chainID, address string) (float64, error)
}

// MultiSource fans a single-pool lookup out to every configured source and
// assembles the per-source claims consensus checking runs on. Sources that
// fail inside the deadline shrink the observation set instead of aborting it.
type MultiSource struct {
	Providers  []PoolProvider
	TvlSources []TvlSource
}

// Observations queries all sources concurrently for one pool.
func (m MultiSource) Observations(ctx context.Context, chainID, address string) []types.ConsensusObservation {
	var (
		mu           sync.Mutex
		observations []types.ConsensusObservation
		wg           sync.WaitGroup
	)

	for _, provider := range m.Providers {
		wg.Add(1)
		go func(p PoolProvider) {
			defer wg.Done()

			snaps, err := p.FetchPools(ctx, chainID, []string{address})
			if err != nil || len(snaps) == 0 {
				fetchLogger.Warn().
					Err(err).
					Str("provider", p.Name()).
					Str("chainID", chainID).
					Str("address", address).
					Msg("Source dropped from consensus check")
				return
			}

			snap := snaps[0]
			tvl := snap.TvlUSD
			volume := snap.Volume24hUSD

			mu.Lock()
			observations = append(observations, types.ConsensusObservation{
				Source:       p.Name(),
				TvlUSD:       &tvl,
				Volume24hUSD: &volume,
			})
			mu.Unlock()
		}(provider)
	}

	for _, source := range m.TvlSources {
		wg.Add(1)
		go func(s TvlSource) {
			defer wg.Done()

			tvl, err := s.FetchTvl(ctx, chainID, address)
			if err != nil {
				fetchLogger.Warn().
					Err(err).
					Str("provider", s.Name()).
					Str("chainID", chainID).
					Str("address", address).
					Msg("TVL source dropped from consensus check")
				return
			}

			mu.Lock()
			observations = append(observations, types.ConsensusObservation{
				Source: s.Name(),
				TvlUSD: &tvl,
			})
			mu.Unlock()
		}(source)
	}

	wg.Wait()
	return observations
}
