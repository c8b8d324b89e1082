/*

This file contains the GeckoTerminal adapter. It serves two roles: a second
snapshot source for cross-checking the primary's liquidity and volume claims,
and the hourly OHLCV endpoint that supplies the price series measured
volatility is computed from.

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

var geckoLogger = logger.GetForComponent("geckoterminal")

const (
	GECKOTERMINAL_NAME = "geckoterminal"

	// The multi pools endpoint accepts up to 30 comma-joined addresses.
	MAX_POOLS_PER_MULTI = 30

	OHLCV_TIMEFRAME = "hour"
	OHLCV_LIMIT     = 72
)

type geckoPoolAttributes struct {
	Address           string `json:"address"`
	Name              string `json:"name"`
	BaseTokenPriceUsd string `json:"base_token_price_usd"`
	ReserveInUsd      string `json:"reserve_in_usd"`
	VolumeUsd         struct {
		M5  string `json:"m5"`
		H1  string `json:"h1"`
		H6  string `json:"h6"`
		H24 string `json:"h24"`
	} `json:"volume_usd"`
	PriceChangePercentage struct {
		M5  string `json:"m5"`
		H1  string `json:"h1"`
		H6  string `json:"h6"`
		H24 string `json:"h24"`
	} `json:"price_change_percentage"`
}

type geckoPoolEntry struct {
	ID         string              `json:"id"`
	Type       string              `json:"type"`
	Attributes geckoPoolAttributes `json:"attributes"`
}

type geckoMultiPoolResponse struct {
	Data []geckoPoolEntry `json:"data"`
}

type geckoOhlcvResponse struct {
	Data struct {
		Attributes struct {
			OhlcvList [][]float64 `json:"ohlcv_list"`
		} `json:"attributes"`
	} `json:"data"`
}

// GeckoTerminalClient fetches pool snapshots and OHLCV history from the
// GeckoTerminal public API.
type GeckoTerminalClient struct {
	baseURL string
	client  *http.Client
}

// NewGeckoTerminalClient builds the secondary adapter against the given
// base URL.
func NewGeckoTerminalClient(baseURL string, timeout time.Duration) *GeckoTerminalClient {
	return &GeckoTerminalClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(timeout),
	}
}

func (c *GeckoTerminalClient) Name() string {
	return GECKOTERMINAL_NAME
}

// FetchPools retrieves snapshots for the requested addresses through the
// multi pools endpoint, skipping entries that fail validation.
func (c *GeckoTerminalClient) FetchPools(ctx context.Context, chainID string, addresses []string) ([]types.PoolSnapshot, error) {
	if chainID == "" {
		return nil, fmt.Errorf("chainID must not be empty")
	}
	if len(addresses) == 0 {
		return nil, fmt.Errorf("no pool addresses requested")
	}

	geckoLogger.Debug().
		Str("chainID", chainID).
		Int("poolCount", len(addresses)).
		Msg("Fetching pool snapshots from GeckoTerminal")

	var snapshots []types.PoolSnapshot
	skippedCount := 0

	for start := 0; start < len(addresses); start += MAX_POOLS_PER_MULTI {
		end := start + MAX_POOLS_PER_MULTI
		if end > len(addresses) {
			end = len(addresses)
		}
		batch := addresses[start:end]

		url := fmt.Sprintf("%s/networks/%s/pools/multi/%s", c.baseURL, chainID, strings.Join(batch, ","))

		var response geckoMultiPoolResponse
		if err := fetchJSON(ctx, c.client, url, nil, GECKOTERMINAL_NAME, &response); err != nil {
			return nil, err
		}

		for i, entry := range response.Data {
			snapshot, err := entryToSnapshot(chainID, entry)
			if err != nil {
				skippedCount++
				geckoLogger.Warn().
					Err(err).
					Int("index", start+i).
					Str("poolID", entry.ID).
					Msg("Skipping invalid pool entry")
				continue
			}
			snapshots = append(snapshots, snapshot)
		}
	}

	if len(snapshots) == 0 {
		return nil, errors.Join(ErrNoPoolData, fmt.Errorf("geckoterminal returned no usable pools for %d addresses", len(addresses)))
	}

	geckoLogger.Info().
		Str("chainID", chainID).
		Int("requested", len(addresses)).
		Int("fetched", len(snapshots)).
		Int("skipped", skippedCount).
		Msg("Fetched pool snapshots from GeckoTerminal")

	return snapshots, nil
}

// FetchPriceHistory returns up to OHLCV_LIMIT hourly close prices for one
// pool, oldest ordering not guaranteed. Candles that fail validation are
// skipped.
func (c *GeckoTerminalClient) FetchPriceHistory(ctx context.Context, chainID, address string) ([]types.PriceData, error) {
	if chainID == "" || address == "" {
		return nil, fmt.Errorf("chainID and address must not be empty")
	}

	url := fmt.Sprintf("%s/networks/%s/pools/%s/ohlcv/%s?aggregate=1&limit=%d",
		c.baseURL, chainID, address, OHLCV_TIMEFRAME, OHLCV_LIMIT)

	var response geckoOhlcvResponse
	if err := fetchJSON(ctx, c.client, url, nil, GECKOTERMINAL_NAME, &response); err != nil {
		return nil, err
	}

	candles := response.Data.Attributes.OhlcvList
	if len(candles) == 0 {
		return nil, errors.Join(ErrNoPoolData, fmt.Errorf("geckoterminal returned no candles for pool %s", address))
	}

	prices := make([]types.PriceData, 0, len(candles))
	skippedCount := 0

	for i, candle := range candles {
		if len(candle) < 5 {
			skippedCount++
			geckoLogger.Warn().
				Int("index", i).
				Int("fields", len(candle)).
				Msg("Skipping malformed candle")
			continue
		}

		timestamp := int64(candle[0])
		closePrice := candle[4]

		if timestamp <= 0 || closePrice <= 0 || math.IsNaN(closePrice) || math.IsInf(closePrice, 0) {
			skippedCount++
			geckoLogger.Warn().
				Int("index", i).
				Int64("timestamp", timestamp).
				Float64("close", closePrice).
				Msg("Skipping invalid candle")
			continue
		}

		prices = append(prices, types.PriceData{
			Timestamp: time.Unix(timestamp, 0).UTC(),
			Price:     closePrice,
		})
	}

	geckoLogger.Debug().
		Str("chainID", chainID).
		Str("address", address).
		Int("received", len(candles)).
		Int("usable", len(prices)).
		Int("skipped", skippedCount).
		Msg("Fetched OHLCV price history")

	return prices, nil
}

// entryToSnapshot validates one multi-endpoint entry and converts it into
// the internal snapshot shape.
func entryToSnapshot(chainID string, entry geckoPoolEntry) (types.PoolSnapshot, error) {
	attrs := entry.Attributes

	if attrs.Address == "" {
		return types.PoolSnapshot{}, fmt.Errorf("pool entry %s has empty address", entry.ID)
	}

	priceUSD, err := parsePositiveFloat(attrs.BaseTokenPriceUsd)
	if err != nil {
		return types.PoolSnapshot{}, fmt.Errorf("pool %s has unusable base price: %w", attrs.Address, err)
	}

	tvlUSD, err := parsePositiveFloat(attrs.ReserveInUsd)
	if err != nil {
		return types.PoolSnapshot{}, fmt.Errorf("pool %s has unusable reserve: %w", attrs.Address, err)
	}

	volume24h := parseFloatOrZero(attrs.VolumeUsd.H24)
	volume1h := parseFloatOrZero(attrs.VolumeUsd.H1)
	volume5m := parseFloatOrZero(attrs.VolumeUsd.M5)
	if volume24h < 0 {
		return types.PoolSnapshot{}, fmt.Errorf("pool %s reports negative 24h volume", attrs.Address)
	}

	symbolA, symbolB, feeTier := parsePoolName(attrs.Name)

	poolType := types.PoolTypeV2
	if feeTier > 0 {
		// Venues that put the tier in the pool name are concentrated ones.
		poolType = types.PoolTypeCL
	}
	if config.StableSymbols[symbolA] && config.StableSymbols[symbolB] {
		poolType = types.PoolTypeStable
	}
	if feeTier <= 0 {
		feeTier = feeTierForPoolType(poolType)
	}

	snapshot := types.PoolSnapshot{
		ChainID:      chainID,
		PoolAddress:  attrs.Address,
		TokenA:       types.Token{Symbol: symbolA},
		TokenB:       types.Token{Symbol: symbolB},
		FeeTier:      feeTier,
		Price:        priceUSD,
		PriceUSD:     priceUSD,
		TvlUSD:       tvlUSD,
		PoolType:     poolType,
		IsBluechip:   config.BluechipSymbols[symbolA] && config.BluechipSymbols[symbolB],
		Volume24hUSD: volume24h,
		Volume1hUSD:  volume1h,
		Volume5mUSD:  volume5m,
		Fees24hUSD:   volume24h * feeTier,
		Fees1hUSD:    volume1h * feeTier,
		Fees5mUSD:    volume5m * feeTier,
		LastUpdated:  time.Now().UTC(),
		Source:       GECKOTERMINAL_NAME,
	}

	changeH1 := parseFloatOrZero(attrs.PriceChangePercentage.H1)
	denominator := 1 + changeH1/100
	if denominator > 0 {
		snapshot.PriceUSD1hAgo = priceUSD / denominator
	}

	return snapshot, nil
}

// parsePoolName splits names like "WETH / USDC 0.05%" into the two symbols
// and the advertised fee tier as a fraction. A zero tier means the name did
// not carry one.
func parsePoolName(name string) (string, string, float64) {
	feeTier := 0.0

	fields := strings.Fields(name)
	if len(fields) > 0 {
		last := fields[len(fields)-1]
		if strings.HasSuffix(last, "%") {
			if pct, err := strconv.ParseFloat(strings.TrimSuffix(last, "%"), 64); err == nil && pct > 0 {
				feeTier = pct / 100
				fields = fields[:len(fields)-1]
			}
		}
	}

	parts := strings.Split(strings.Join(fields, " "), "/")
	if len(parts) != 2 {
		return "", "", feeTier
	}

	return strings.ToUpper(strings.TrimSpace(parts[0])), strings.ToUpper(strings.TrimSpace(parts[1])), feeTier
}

// parsePositiveFloat parses the string-encoded numbers GeckoTerminal uses
// and rejects anything that is not a finite positive value.
func parsePositiveFloat(raw string) (float64, error) {
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %q: %w", raw, err)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return 0, fmt.Errorf("value %f is not a finite positive number", value)
	}
	return value, nil
}

// parseFloatOrZero parses optional string-encoded numbers, treating absent
// or malformed values as zero.
func parseFloatOrZero(raw string) float64 {
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return value
}
