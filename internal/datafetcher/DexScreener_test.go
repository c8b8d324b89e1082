package datafetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolpulse/poolpulse/internal/types"
)

const dexScreenerPairsBody = `{
	"schemaVersion": "1.0.0",
	"pairs": [
		{
			"chainId": "ethereum",
			"dexId": "uniswap",
			"pairAddress": "0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640",
			"labels": ["v3"],
			"baseToken": {"address": "0xc02a", "name": "Wrapped Ether", "symbol": "WETH"},
			"quoteToken": {"address": "0xa0b8", "name": "USD Coin", "symbol": "USDC"},
			"priceNative": "0.05",
			"priceUsd": "2000.5",
			"volume": {"h24": 1000000, "h6": 300000, "h1": 50000, "m5": 4000},
			"priceChange": {"h24": -1.2, "h6": 0.4, "h1": 2.0, "m5": 0.1},
			"liquidity": {"usd": 5000000, "base": 1200, "quote": 2600000},
			"pairCreatedAt": 1620158974000
		},
		{
			"chainId": "ethereum",
			"dexId": "uniswap",
			"pairAddress": "0xbadbadbadbadbadbadbadbadbadbadbadbadbad0",
			"baseToken": {"address": "0x1", "name": "Broken", "symbol": "BRK"},
			"quoteToken": {"address": "0x2", "name": "Token", "symbol": "TKN"},
			"priceNative": "1",
			"priceUsd": "not-a-number",
			"volume": {"h24": 100},
			"priceChange": {},
			"liquidity": {"usd": 1000}
		}
	]
}`

func TestDexScreenerFetchPools(t *testing.T) {
	t.Run("parses_valid_pairs_and_skips_broken_ones", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/latest/dex/pairs/ethereum/0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640", r.URL.Path)
			w.Write([]byte(dexScreenerPairsBody))
		}))
		defer server.Close()

		client := NewDexScreenerClient(server.URL, 5*time.Second)
		snapshots, err := client.FetchPools(context.Background(), "ethereum", []string{"0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640"})
		require.NoError(t, err)
		require.Len(t, snapshots, 1)

		snap := snapshots[0]
		assert.Equal(t, "ethereum", snap.ChainID)
		assert.Equal(t, "0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640", snap.PoolAddress)
		assert.Equal(t, "WETH", snap.TokenA.Symbol)
		assert.Equal(t, "USDC", snap.TokenB.Symbol)
		assert.Equal(t, types.PoolTypeCL, snap.PoolType)
		assert.Equal(t, DEFAULT_FEE_TIER, snap.FeeTier)
		assert.True(t, snap.IsBluechip)
		assert.Equal(t, 0.05, snap.Price)
		assert.Equal(t, 2000.5, snap.PriceUSD)
		assert.Equal(t, 5_000_000.0, snap.TvlUSD)
		assert.Equal(t, 1_000_000.0, snap.Volume24hUSD)
		assert.Equal(t, 50_000.0, snap.Volume1hUSD)
		assert.Equal(t, 4_000.0, snap.Volume5mUSD)
		assert.InDelta(t, 3000.0, snap.Fees24hUSD, 1e-9)
		assert.InDelta(t, 150.0, snap.Fees1hUSD, 1e-9)
		assert.InDelta(t, 12.0, snap.Fees5mUSD, 1e-9)
		assert.InDelta(t, 2000.5/1.02, snap.PriceUSD1hAgo, 1e-9)
		assert.Empty(t, snap.RiskWarnings)
		assert.Equal(t, DEXSCREENER_NAME, snap.Source)
		assert.False(t, snap.LastUpdated.IsZero())
	})

	t.Run("stable_label_sets_tier_and_type", func(t *testing.T) {
		body := `{"pairs": [{
			"chainId": "ethereum",
			"pairAddress": "0x3416cf6c708da44db2624d63ea0aaef7113527c6",
			"labels": ["v3", "stable"],
			"baseToken": {"symbol": "USDC"},
			"quoteToken": {"symbol": "USDT"},
			"priceNative": "1.0",
			"priceUsd": "1.0",
			"volume": {"h24": 2000000},
			"priceChange": {},
			"liquidity": {"usd": 30000000}
		}]}`
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))
		defer server.Close()

		client := NewDexScreenerClient(server.URL, 5*time.Second)
		snapshots, err := client.FetchPools(context.Background(), "ethereum", []string{"0x3416cf6c708da44db2624d63ea0aaef7113527c6"})
		require.NoError(t, err)
		require.Len(t, snapshots, 1)
		assert.Equal(t, types.PoolTypeStable, snapshots[0].PoolType)
		assert.Equal(t, STABLE_FEE_TIER, snapshots[0].FeeTier)
		assert.InDelta(t, 1000.0, snapshots[0].Fees24hUSD, 1e-9)
	})

	t.Run("unusable_native_price_falls_back_to_usd", func(t *testing.T) {
		body := `{"pairs": [{
			"chainId": "ethereum",
			"pairAddress": "0xaaa",
			"baseToken": {"symbol": "PEPE"},
			"quoteToken": {"symbol": "WETH"},
			"priceNative": "",
			"priceUsd": "0.0000012",
			"volume": {"h24": 100000},
			"priceChange": {},
			"liquidity": {"usd": 400000}
		}]}`
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))
		defer server.Close()

		client := NewDexScreenerClient(server.URL, 5*time.Second)
		snapshots, err := client.FetchPools(context.Background(), "ethereum", []string{"0xaaa"})
		require.NoError(t, err)
		require.Len(t, snapshots, 1)
		assert.Equal(t, 0.0000012, snapshots[0].Price)
		assert.False(t, snapshots[0].IsBluechip)
	})

	t.Run("risk_labels_become_warnings", func(t *testing.T) {
		body := `{"pairs": [{
			"chainId": "ethereum",
			"pairAddress": "0xbbb",
			"labels": ["v2", "Honeypot Risk"],
			"baseToken": {"symbol": "SCAMX"},
			"quoteToken": {"symbol": "WETH"},
			"priceNative": "0.001",
			"priceUsd": "3.5",
			"volume": {"h24": 5000},
			"priceChange": {},
			"liquidity": {"usd": 20000}
		}]}`
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))
		defer server.Close()

		client := NewDexScreenerClient(server.URL, 5*time.Second)
		snapshots, err := client.FetchPools(context.Background(), "ethereum", []string{"0xbbb"})
		require.NoError(t, err)
		require.Len(t, snapshots, 1)
		assert.Equal(t, types.PoolTypeV2, snapshots[0].PoolType)
		assert.Equal(t, []string{"honeypot risk"}, snapshots[0].RiskWarnings)
	})

	t.Run("all_pairs_unusable", func(t *testing.T) {
		body := `{"pairs": [{
			"chainId": "ethereum",
			"pairAddress": "",
			"baseToken": {"symbol": "A"},
			"quoteToken": {"symbol": "B"},
			"priceUsd": "1.0",
			"volume": {},
			"priceChange": {},
			"liquidity": {}
		}]}`
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))
		defer server.Close()

		client := NewDexScreenerClient(server.URL, 5*time.Second)
		_, err := client.FetchPools(context.Background(), "ethereum", []string{"0xccc"})
		assert.ErrorIs(t, err, ErrNoPoolData)
	})

	t.Run("batches_large_address_lists", func(t *testing.T) {
		var batchSizes []int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			segments := strings.Split(r.URL.Path, "/")
			batchSizes = append(batchSizes, len(strings.Split(segments[len(segments)-1], ",")))
			fmt.Fprintf(w, `{"pairs": [{
				"chainId": "ethereum",
				"pairAddress": "0xpool%d",
				"baseToken": {"symbol": "WETH"},
				"quoteToken": {"symbol": "USDC"},
				"priceNative": "1",
				"priceUsd": "1",
				"volume": {"h24": 1},
				"priceChange": {},
				"liquidity": {"usd": 1}
			}]}`, len(batchSizes))
		}))
		defer server.Close()

		addresses := make([]string, 35)
		for i := range addresses {
			addresses[i] = fmt.Sprintf("0x%040d", i)
		}

		client := NewDexScreenerClient(server.URL, 5*time.Second)
		snapshots, err := client.FetchPools(context.Background(), "ethereum", addresses)
		require.NoError(t, err)
		assert.Len(t, snapshots, 2)
		assert.Equal(t, []int{30, 5}, batchSizes)
	})

	t.Run("empty_arguments_rejected", func(t *testing.T) {
		client := NewDexScreenerClient("http://127.0.0.1:0", time.Second)

		_, err := client.FetchPools(context.Background(), "", []string{"0xabc"})
		assert.Error(t, err)

		_, err = client.FetchPools(context.Background(), "ethereum", nil)
		assert.Error(t, err)
	})
}

func TestClassifyLabels(t *testing.T) {
	cases := []struct {
		name         string
		labels       []string
		wantType     types.PoolType
		wantWarnings []string
	}{
		{"no_labels", nil, types.PoolTypeV2, nil},
		{"v3_is_concentrated", []string{"v3"}, types.PoolTypeCL, nil},
		{"clmm_is_concentrated", []string{"CLMM"}, types.PoolTypeCL, nil},
		{"stable_label", []string{"stable"}, types.PoolTypeStable, nil},
		{"structural_labels_stay_silent", []string{"v2", "wrapped", "dyn"}, types.PoolTypeV2, nil},
		{"risk_label_passes_through", []string{"honeypot"}, types.PoolTypeV2, []string{"honeypot"}},
		{"mixed_labels", []string{" V3 ", "Unverified Source"}, types.PoolTypeCL, []string{"unverified source"}},
		{"blank_labels_ignored", []string{"", "  "}, types.PoolTypeV2, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			poolType, warnings := classifyLabels(tc.labels)
			assert.Equal(t, tc.wantType, poolType)
			assert.Equal(t, tc.wantWarnings, warnings)
		})
	}
}
