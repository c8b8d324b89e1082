/*

This file contains the token classification tables used when providers do not
label a pool themselves.

A pair is treated as STABLE only when both sides are on the stable list, and
as bluechip only when both sides are on the bluechip list. Symbols are matched
uppercased.

If a token is missing here it simply classifies as neither, which only costs
the pool its stable fee-tier fallback and bluechip flag. But for best results
try to keep these up to date.

*/

package config

var (
	// StableSymbols marks USD-pegged tokens.
	StableSymbols = map[string]bool{
		"USDC": true, "USDT": true, "DAI": true, "FRAX": true,
		"LUSD": true, "TUSD": true, "USDE": true, "GHO": true, "USDS": true,
	}

	// BluechipSymbols marks the majors.
	BluechipSymbols = map[string]bool{
		"WETH": true, "ETH": true, "WBTC": true, "BTC": true,
		"USDC": true, "USDT": true, "DAI": true, "WSTETH": true,
		"SOL": true, "WSOL": true, "BNB": true, "WBNB": true,
		"ARB": true, "OP": true, "MATIC": true, "WMATIC": true, "AVAX": true,
	}
)
