/*

This is a custom type for tokens which contains all the state needed for assisting in scoring pools.

*/

package types

type Token struct {
	Symbol   string `json:"symbol"`   // e.g., "WETH"
	Address  string `json:"address"`  // ERC-20 style contract address
	Decimals int    `json:"decimals"` // e.g., 18
}
