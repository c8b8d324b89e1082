/*

This is a custom type for pool snapshots which contains all the state needed for scoring pools

*/

package types

import (
	"fmt"
	"strings"
	"time"
)

// PoolID identifies a pool across providers as "<chain>:<lowercased address>".
type PoolID string

// MakePoolID builds the canonical pool identifier from a chain ID and a pool address.
func MakePoolID(chainID, address string) PoolID {
	return PoolID(fmt.Sprintf("%s:%s", strings.ToLower(chainID), strings.ToLower(address)))
}

// PoolType describes the AMM curve family the pool belongs to.
type PoolType string

const (
	PoolTypeCL     PoolType = "CL"     // Concentrated liquidity (tick based)
	PoolTypeV2     PoolType = "V2"     // Constant product, full range
	PoolTypeStable PoolType = "STABLE" // Stable-swap curve for pegged assets
)

// NormalizePoolType maps unknown or missing pool type labels to the V2 default.
func NormalizePoolType(raw string) PoolType {
	switch PoolType(strings.ToUpper(strings.TrimSpace(raw))) {
	case PoolTypeCL:
		return PoolTypeCL
	case PoolTypeStable:
		return PoolTypeStable
	default:
		return PoolTypeV2
	}
}

type PoolSnapshot struct {
	ChainID     string   `json:"chain_id"`     // e.g., "ethereum", "base"
	PoolAddress string   `json:"pool_address"` // On-chain pool/pair contract address
	TokenA      Token    `json:"token_a"`      // Base token of the pair
	TokenB      Token    `json:"token_b"`      // Quote token of the pair
	FeeTier     float64  `json:"fee_tier"`     // Fee fraction, e.g. 0.003 for a 0.3% pool
	Price       float64  `json:"price"`        // Spot price, TokenB per TokenA
	PriceUSD    float64  `json:"price_usd"`    // USD price of TokenA
	TvlUSD      float64  `json:"tvl_usd"`      // Total Value Locked in USD
	PoolType    PoolType `json:"pool_type"`
	IsBluechip  bool     `json:"is_bluechip"` // Both tokens are majors / deep-liquidity assets

	// Rolling windows as reported by the venue. Zero means the window was
	// absent from the payload; the estimators only ever test positivity.
	Volume24hUSD float64 `json:"volume_24h_usd"`
	Volume1hUSD  float64 `json:"volume_1h_usd"`
	Volume5mUSD  float64 `json:"volume_5m_usd"`
	Fees24hUSD   float64 `json:"fees_24h_usd"`
	Fees1hUSD    float64 `json:"fees_1h_usd"`
	Fees5mUSD    float64 `json:"fees_5m_usd"`

	PriceUSD1hAgo float64   `json:"price_usd_1h_ago,omitempty"` // Optional, feeds the volatility proxy
	RiskWarnings  []string  `json:"risk_warnings,omitempty"`    // Free-text provider labels, e.g. "honeypot"
	LastUpdated   time.Time `json:"last_updated"`
	Source        string    `json:"source"` // Provider that produced this snapshot
}

// ID returns the canonical identifier for the snapshot's pool.
func (p PoolSnapshot) ID() PoolID {
	return MakePoolID(p.ChainID, p.PoolAddress)
}

// PriceData is a single observation in a price series used for volatility estimation.
type PriceData struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}
