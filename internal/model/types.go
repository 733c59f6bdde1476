// Package model holds the wire and in-memory shapes shared by every
// solver component: swap request parameters as the router stores them,
// the per-chain state snapshot, and the decision records the evaluators
// hand to the executor.
package model

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// SwapRequestParameters is the wire shape of a request stored by the
// on-chain router.
type SwapRequestParameters struct {
	SrcChainID      *big.Int
	DstChainID      *big.Int
	Sender          common.Address
	Recipient       common.Address
	TokenIn         common.Address
	TokenOut        common.Address
	AmountOut       *big.Int
	VerificationFee *big.Int
	SolverFee       *big.Int
	Nonce           *big.Int
	Executed        bool
	RequestedAt     *big.Int
}

// Operator is a comparison used by time, price and balance conditions.
type Operator string

// Supported comparison operators.
const (
	OpGT      Operator = "gt"
	OpLT      Operator = "lt"
	OpEQ      Operator = "eq"
	OpGTE     Operator = "gte"
	OpLTE     Operator = "lte"
	OpBetween Operator = "between"
)

// ConditionKind tags which variant of Condition is populated.
type ConditionKind string

// Condition variants.
const (
	ConditionTime    ConditionKind = "time"
	ConditionPrice   ConditionKind = "price"
	ConditionBalance ConditionKind = "balance"
	ConditionCustom  ConditionKind = "custom"
)

// CustomEvaluator is the closure form of a Condition. It receives the
// per-tick cloned chain-state snapshot, keyed by normalized chain ID,
// and reports whether the condition currently holds.
type CustomEvaluator func(chains map[uint64]*ChainState) (bool, error)

// Condition is a tagged union over the four condition kinds described
// in the spec. Only the fields belonging to Kind are meaningful.
type Condition struct {
	Kind ConditionKind

	// time
	Operator     Operator
	Timestamp    int64
	EndTimestamp int64 // only used when Operator == OpBetween

	// price (compared using Operator above; Timestamp fields unused here)
	PriceToken   common.Address
	PriceChainID uint64
	PriceTarget  *big.Float
	PriceSource  string

	// balance
	BalanceChainID  uint64
	BalanceToken    *common.Address // nil means native balance
	BalanceOperator Operator
	BalanceTarget   *big.Int

	// custom
	Evaluate CustomEvaluator
}

// ChainState is the per-chain snapshot the evaluator reads and the
// chain client refreshes on every block tick.
type ChainState struct {
	NativeBalance    *big.Int
	TokenBalances    map[common.Address]*big.Int
	Transfers        []*Transfer
	AlreadyFulfilled map[string]struct{} // keyed by canonical request ID
}

// Clone returns a shallow copy of the state: a new TokenBalances map
// sharing the existing *big.Int values, while the Transfers slice and
// the AlreadyFulfilled map are shared with the original. It is safe for
// the evaluator to add/replace entries in the returned TokenBalances
// without mutating the canonical snapshot, as long as it always writes
// a new *big.Int rather than mutating one in place; the shared
// Transfers and AlreadyFulfilled must not be modified.
func (s *ChainState) Clone() *ChainState {
	if s == nil {
		return nil
	}
	clone := &ChainState{
		NativeBalance:    s.NativeBalance,
		TokenBalances:    make(map[common.Address]*big.Int, len(s.TokenBalances)),
		Transfers:        s.Transfers,
		AlreadyFulfilled: s.AlreadyFulfilled,
	}
	for addr, bal := range s.TokenBalances {
		clone.TokenBalances[addr] = bal
	}
	return clone
}

// Transfer is one unfulfilled request observed on a source chain.
type Transfer struct {
	RequestID  string // canonical 0x-prefixed 32-byte hex
	Params     SwapRequestParameters
	Conditions []Condition
	Priority   *int
}

// Trade is a decision record derived from a Transfer that the executor
// will attempt to settle on the destination chain.
type Trade struct {
	RequestID     string
	Nonce         *big.Int
	TokenInAddr   common.Address
	TokenOutAddr  common.Address
	SrcChainID    uint64
	DestChainID   uint64
	SenderAddr    common.Address
	RecipientAddr common.Address
	SwapAmount    *big.Int
}

// NormalizeChainID masks a 256-bit chain ID down to its low 64 bits,
// which is the scope every internal map keys on.
func NormalizeChainID(x *big.Int) uint64 {
	if x == nil {
		return 0
	}
	masked := new(big.Int).And(x, new(big.Int).SetUint64(^uint64(0)))
	return masked.Uint64()
}

// CanonicalizeRequestID lower-cases and 0x-prefixes a request ID,
// producing the form used for every comparison and set membership
// check. It is idempotent. It does not pad or check length: the result
// is the 66-char form only when id already carries 64 hex digits, as
// every ID produced by CanonicalizeRequestIDBytes does.
func CanonicalizeRequestID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	if !strings.HasPrefix(id, "0x") {
		id = "0x" + id
	}
	return id
}

// CanonicalizeRequestIDBytes canonicalizes a raw 32-byte request ID.
func CanonicalizeRequestIDBytes(id [32]byte) string {
	return CanonicalizeRequestID(common.Bytes2Hex(id[:]))
}

// CanonicalizeAddress lower-cases an address for storage/comparison.
func CanonicalizeAddress(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

// RequestIDToBytes32 decodes a canonical request ID back into its
// on-wire bytes32 form. An ID that does not decode to exactly 32 bytes
// is rejected with an error rather than padded or truncated.
func RequestIDToBytes32(id string) ([32]byte, error) {
	id = CanonicalizeRequestID(id)
	raw := common.FromHex(id)
	var out [32]byte
	if len(raw) != 32 {
		return out, fmt.Errorf("request id %q is not 32 bytes (got %d)", id, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
