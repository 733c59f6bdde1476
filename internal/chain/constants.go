package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Known chain IDs referenced by the default gas-price table.
const (
	ChainIDEthereum = 1
	ChainIDPolygon  = 137
	ChainIDArbitrum = 42161
	ChainIDOptimism = 10
)

// defaultGasPriceWei holds the per-chain gas-price defaults from
// spec.md §4.3. These are upper bounds usable when no live gas-price
// source is configured; a live oracle can be supplied to
// solverv2.NewGasPriceCache, which falls back to these values.
var defaultGasPriceWei = map[uint64]*big.Int{
	ChainIDEthereum: big.NewInt(20_000_000_000), // 20 gwei
	ChainIDPolygon:  big.NewInt(30_000_000_000), // 30 gwei
	ChainIDArbitrum: big.NewInt(100_000_000),    // 0.1 gwei
	ChainIDOptimism: big.NewInt(1_000_000),      // 0.001 gwei
}

var fallbackGasPriceWei = big.NewInt(20_000_000_000) // 20 gwei, "else" case

// DefaultGasPrice returns the hard-coded default gas price for a chain,
// falling back to the Ethereum default for unrecognized chain IDs.
func DefaultGasPrice(chainID uint64) *big.Int {
	if p, ok := defaultGasPriceWei[chainID]; ok {
		return new(big.Int).Set(p)
	}
	return new(big.Int).Set(fallbackGasPriceWei)
}

// erc20ABI covers only the calls the solver needs: reading a balance
// and approving the router as a spender.
const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

// routerABI covers the four router entry points the spec names:
// the fulfilled/unfulfilled ID lists, the per-request parameter
// lookup (returned as a named tuple, the canonical encoding per
// spec.md's open question), and the relay call itself.
const routerABI = `[
	{"constant":true,"inputs":[],"name":"getFulfilledTransfers","outputs":[{"name":"","type":"bytes32[]"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"getUnfulfilledSolverRefunds","outputs":[{"name":"","type":"bytes32[]"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"requestId","type":"bytes32"}],"name":"getSwapRequestParameters","outputs":[{"components":[
		{"name":"srcChainId","type":"uint256"},
		{"name":"dstChainId","type":"uint256"},
		{"name":"sender","type":"address"},
		{"name":"recipient","type":"address"},
		{"name":"tokenIn","type":"address"},
		{"name":"tokenOut","type":"address"},
		{"name":"amountOut","type":"uint256"},
		{"name":"verificationFee","type":"uint256"},
		{"name":"solverFee","type":"uint256"},
		{"name":"nonce","type":"uint256"},
		{"name":"executed","type":"bool"},
		{"name":"requestedAt","type":"uint256"}
	],"name":"","type":"tuple"}],"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[
		{"name":"solver","type":"address"},
		{"name":"requestId","type":"bytes32"},
		{"name":"sender","type":"address"},
		{"name":"recipient","type":"address"},
		{"name":"tokenIn","type":"address"},
		{"name":"tokenOut","type":"address"},
		{"name":"amountOut","type":"uint256"},
		{"name":"srcChainId","type":"uint256"},
		{"name":"nonce","type":"uint256"}
	],"name":"relayTokens","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

// selSwapRequestParametersMismatch is the 4-byte selector of the
// SwapRequestParametersMismatch custom error, decoded from revert data
// per spec.md §4.5/§7: a strong hint the request has not yet been
// verified on the destination chain.
const selSwapRequestParametersMismatch = "0xc4fec7e0"

// knownRevertSelectors maps 4-byte revert selectors to a human name for
// logging, per spec.md §7's "decoded selector where known".
var knownRevertSelectors = map[string]string{
	selSwapRequestParametersMismatch: "SwapRequestParametersMismatch",
}

// DecodeRevertSelector returns the known name of a revert's leading
// 4-byte selector, or "" if unrecognized.
func DecodeRevertSelector(data []byte) string {
	if len(data) < 4 {
		return ""
	}
	sel := "0x" + common.Bytes2Hex(data[:4])
	return knownRevertSelectors[sel]
}
