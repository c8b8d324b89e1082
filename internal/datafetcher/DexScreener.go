/*

This file contains the DexScreener adapter, the primary snapshot source.
DexScreener reports price, liquidity, and traded volume per pair but no fee
totals, so fee windows are derived from volume and the pool's fee tier.

*/

package datafetcher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/poolpulse/poolpulse/internal/config"
	"github.com/poolpulse/poolpulse/internal/logger"
	"github.com/poolpulse/poolpulse/internal/types"
)

var dexScreenerLogger = logger.GetForComponent("dexscreener")

const (
	DEXSCREENER_NAME = "dexscreener"

	// DexScreener caps the pairs endpoint at 30 comma-joined addresses.
	MAX_ADDRESSES_PER_REQUEST = 30

	// Fallback fee tiers for venues that do not expose the pool's tier.
	STABLE_FEE_TIER  = 0.0005
	DEFAULT_FEE_TIER = 0.003
)

// structuralLabels are DexScreener labels that describe the pool mechanism
// rather than flag a risk.
var structuralLabels = map[string]bool{
	"v1": true, "v2": true, "v3": true, "v4": true,
	"cl": true, "clmm": true, "dyn": true, "stable": true, "wrapped": true,
}

type dexScreenerToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type dexScreenerPair struct {
	ChainID     string           `json:"chainId"`
	DexID       string           `json:"dexId"`
	PairAddress string           `json:"pairAddress"`
	Labels      []string         `json:"labels"`
	BaseToken   dexScreenerToken `json:"baseToken"`
	QuoteToken  dexScreenerToken `json:"quoteToken"`
	PriceNative string           `json:"priceNative"`
	PriceUsd    string           `json:"priceUsd"`
	Volume      struct {
		H24 float64 `json:"h24"`
		H6  float64 `json:"h6"`
		H1  float64 `json:"h1"`
		M5  float64 `json:"m5"`
	} `json:"volume"`
	PriceChange struct {
		H24 float64 `json:"h24"`
		H6  float64 `json:"h6"`
		H1  float64 `json:"h1"`
		M5  float64 `json:"m5"`
	} `json:"priceChange"`
	Liquidity struct {
		Usd   float64 `json:"usd"`
		Base  float64 `json:"base"`
		Quote float64 `json:"quote"`
	} `json:"liquidity"`
	PairCreatedAt int64 `json:"pairCreatedAt"`
}

type dexScreenerResponse struct {
	SchemaVersion string            `json:"schemaVersion"`
	Pairs         []dexScreenerPair `json:"pairs"`
}

// DexScreenerClient fetches pool snapshots from the DexScreener pairs API.
type DexScreenerClient struct {
	baseURL string
	client  *http.Client
}

// NewDexScreenerClient builds the primary adapter against the given base URL.
func NewDexScreenerClient(baseURL string, timeout time.Duration) *DexScreenerClient {
	return &DexScreenerClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(timeout),
	}
}

func (c *DexScreenerClient) Name() string {
	return DEXSCREENER_NAME
}

// FetchPools retrieves and validates snapshots for the requested addresses,
// batching requests to the provider's address limit.
func (c *DexScreenerClient) FetchPools(ctx context.Context, chainID string, addresses []string) ([]types.PoolSnapshot, error) {
	if chainID == "" {
		return nil, fmt.Errorf("chainID must not be empty")
	}
	if len(addresses) == 0 {
		return nil, fmt.Errorf("no pool addresses requested")
	}

	dexScreenerLogger.Debug().
		Str("chainID", chainID).
		Int("poolCount", len(addresses)).
		Msg("Fetching pool snapshots from DexScreener")

	var snapshots []types.PoolSnapshot
	skippedCount := 0

	for start := 0; start < len(addresses); start += MAX_ADDRESSES_PER_REQUEST {
		end := start + MAX_ADDRESSES_PER_REQUEST
		if end > len(addresses) {
			end = len(addresses)
		}
		batch := addresses[start:end]

		url := fmt.Sprintf("%s/latest/dex/pairs/%s/%s", c.baseURL, chainID, strings.Join(batch, ","))

		var response dexScreenerResponse
		if err := fetchJSON(ctx, c.client, url, nil, DEXSCREENER_NAME, &response); err != nil {
			return nil, err
		}

		for i, pair := range response.Pairs {
			snapshot, err := c.pairToSnapshot(pair)
			if err != nil {
				skippedCount++
				dexScreenerLogger.Warn().
					Err(err).
					Int("index", start+i).
					Str("pairAddress", pair.PairAddress).
					Msg("Skipping invalid pair entry")
				continue
			}
			snapshots = append(snapshots, snapshot)
		}
	}

	if len(snapshots) == 0 {
		return nil, errors.Join(ErrNoPoolData, fmt.Errorf("dexscreener returned no usable pairs for %d addresses", len(addresses)))
	}

	dexScreenerLogger.Info().
		Str("chainID", chainID).
		Int("requested", len(addresses)).
		Int("fetched", len(snapshots)).
		Int("skipped", skippedCount).
		Msg("Fetched pool snapshots from DexScreener")

	return snapshots, nil
}

// pairToSnapshot validates a single pair entry and converts it into the
// internal snapshot shape.
func (c *DexScreenerClient) pairToSnapshot(pair dexScreenerPair) (types.PoolSnapshot, error) {
	if pair.PairAddress == "" {
		return types.PoolSnapshot{}, fmt.Errorf("pair has empty address")
	}
	if pair.BaseToken.Symbol == "" || pair.QuoteToken.Symbol == "" {
		return types.PoolSnapshot{}, fmt.Errorf("pair %s has unnamed tokens", pair.PairAddress)
	}

	priceUSD, err := strconv.ParseFloat(pair.PriceUsd, 64)
	if err != nil || math.IsNaN(priceUSD) || math.IsInf(priceUSD, 0) || priceUSD <= 0 {
		return types.PoolSnapshot{}, fmt.Errorf("pair %s has unusable priceUsd %q", pair.PairAddress, pair.PriceUsd)
	}

	priceNative, err := strconv.ParseFloat(pair.PriceNative, 64)
	if err != nil || math.IsNaN(priceNative) || math.IsInf(priceNative, 0) || priceNative <= 0 {
		// Some pairs omit the native quote. The USD price carries the pool.
		priceNative = priceUSD
	}

	if pair.Liquidity.Usd < 0 || math.IsNaN(pair.Liquidity.Usd) || math.IsInf(pair.Liquidity.Usd, 0) {
		return types.PoolSnapshot{}, fmt.Errorf("pair %s has unusable liquidity %f", pair.PairAddress, pair.Liquidity.Usd)
	}
	if pair.Volume.H24 < 0 || math.IsNaN(pair.Volume.H24) || math.IsInf(pair.Volume.H24, 0) {
		return types.PoolSnapshot{}, fmt.Errorf("pair %s has unusable 24h volume %f", pair.PairAddress, pair.Volume.H24)
	}

	poolType, warnings := classifyLabels(pair.Labels)
	feeTier := feeTierForPoolType(poolType)

	snapshot := types.PoolSnapshot{
		ChainID:     pair.ChainID,
		PoolAddress: pair.PairAddress,
		TokenA: types.Token{
			Symbol:  strings.ToUpper(pair.BaseToken.Symbol),
			Address: pair.BaseToken.Address,
		},
		TokenB: types.Token{
			Symbol:  strings.ToUpper(pair.QuoteToken.Symbol),
			Address: pair.QuoteToken.Address,
		},
		FeeTier:      feeTier,
		Price:        priceNative,
		PriceUSD:     priceUSD,
		TvlUSD:       pair.Liquidity.Usd,
		PoolType:     poolType,
		IsBluechip:   config.BluechipSymbols[strings.ToUpper(pair.BaseToken.Symbol)] && config.BluechipSymbols[strings.ToUpper(pair.QuoteToken.Symbol)],
		Volume24hUSD: pair.Volume.H24,
		Volume1hUSD:  pair.Volume.H1,
		Volume5mUSD:  pair.Volume.M5,
		Fees24hUSD:   pair.Volume.H24 * feeTier,
		Fees1hUSD:    pair.Volume.H1 * feeTier,
		Fees5mUSD:    pair.Volume.M5 * feeTier,
		RiskWarnings: warnings,
		LastUpdated:  time.Now().UTC(),
		Source:       DEXSCREENER_NAME,
	}

	// DexScreener reports the 1h move as a percentage. Inverting it
	// recovers the price an hour ago for the volatility proxy.
	denominator := 1 + pair.PriceChange.H1/100
	if denominator > 0 {
		snapshot.PriceUSD1hAgo = priceUSD / denominator
	}

	return snapshot, nil
}

// classifyLabels splits provider labels into a pool type and passthrough
// risk warnings. Labels that do not describe the pool mechanism are treated
// as warnings for the health scorer.
func classifyLabels(labels []string) (types.PoolType, []string) {
	poolType := types.PoolTypeV2
	var warnings []string

	for _, label := range labels {
		normalized := strings.ToLower(strings.TrimSpace(label))
		switch {
		case normalized == "v3" || normalized == "v4" || normalized == "cl" || normalized == "clmm":
			poolType = types.PoolTypeCL
		case normalized == "stable":
			poolType = types.PoolTypeStable
		case structuralLabels[normalized]:
			// Mechanism label with no type change, such as v2 or wrapped.
		case normalized != "":
			warnings = append(warnings, normalized)
		}
	}

	return poolType, warnings
}

func feeTierForPoolType(poolType types.PoolType) float64 {
	if poolType == types.PoolTypeStable {
		return STABLE_FEE_TIER
	}
	return DEFAULT_FEE_TIER
}
