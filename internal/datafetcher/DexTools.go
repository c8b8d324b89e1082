/*

This file contains the DexTools adapter. DexTools only contributes a
liquidity figure per pool, so it participates in consensus checks as a TVL
source and never produces full snapshots.

*/

package datafetcher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/poolpulse/poolpulse/internal/logger"
)

var dexToolsLogger = logger.GetForComponent("dextools")

const DEXTOOLS_NAME = "dextools"

type dexToolsLiquidityResponse struct {
	StatusCode int `json:"statusCode"`
	Data       struct {
		Liquidity float64 `json:"liquidity"`
		Reserves  struct {
			MainToken float64 `json:"mainToken"`
			SideToken float64 `json:"sideToken"`
		} `json:"reserves"`
	} `json:"data"`
}

// DexToolsClient fetches per-pool liquidity from the DexTools public API.
type DexToolsClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewDexToolsClient builds the TVL-only adapter. The API key is required by
// the provider for every request.
func NewDexToolsClient(baseURL, apiKey string, timeout time.Duration) *DexToolsClient {
	return &DexToolsClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  newHTTPClient(timeout),
	}
}

func (c *DexToolsClient) Name() string {
	return DEXTOOLS_NAME
}

// FetchTvl returns the pool's liquidity in USD.
func (c *DexToolsClient) FetchTvl(ctx context.Context, chainID, address string) (float64, error) {
	if chainID == "" || address == "" {
		return 0, fmt.Errorf("chainID and address must not be empty")
	}

	url := fmt.Sprintf("%s/pool/%s/%s/liquidity", c.baseURL, chainID, address)

	headers := map[string]string{}
	if c.apiKey != "" {
		headers["X-API-KEY"] = c.apiKey
	}

	var response dexToolsLiquidityResponse
	if err := fetchJSON(ctx, c.client, url, headers, DEXTOOLS_NAME, &response); err != nil {
		return 0, err
	}

	if response.StatusCode != http.StatusOK {
		return 0, errors.Join(ErrProviderResponse, fmt.Errorf("dextools returned embedded status %d for pool %s", response.StatusCode, address))
	}

	liquidity := response.Data.Liquidity
	if math.IsNaN(liquidity) || math.IsInf(liquidity, 0) || liquidity < 0 {
		return 0, errors.Join(ErrProviderResponse, fmt.Errorf("dextools returned unusable liquidity %f for pool %s", liquidity, address))
	}

	dexToolsLogger.Debug().
		Str("chainID", chainID).
		Str("address", address).
		Float64("liquidityUSD", liquidity).
		Msg("Fetched pool liquidity from DexTools")

	return liquidity, nil
}
