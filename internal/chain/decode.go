package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/onlyswaps/solver/internal/model"
)

// maxChainID is 2^64, the ceiling at or above which a decoded chain ID
// cannot be plausible (it wouldn't fit NormalizeChainID's mod-2^64 scope).
var maxChainID = new(big.Int).Lsh(big.NewInt(1), 64)

// decodeSwapRequestParameters turns the raw ABI return values of
// getSwapRequestParameters into a model.SwapRequestParameters. It
// accepts the named-struct encoding (canonical, per spec.md's open
// question) and falls back to a positional-tuple decode when the named
// decode fails or looks implausible, logging loudly when it does.
func decodeSwapRequestParameters(routerABI abi.ABI, raw []byte) (model.SwapRequestParameters, error) {
	values, err := routerABI.Methods["getSwapRequestParameters"].Outputs.Unpack(raw)
	if err != nil {
		return model.SwapRequestParameters{}, fmt.Errorf("unpack getSwapRequestParameters: %w", err)
	}
	if len(values) != 1 {
		return model.SwapRequestParameters{}, fmt.Errorf("unexpected getSwapRequestParameters output count: %d", len(values))
	}

	fields, err := tupleFields(values[0])
	if err != nil {
		return model.SwapRequestParameters{}, err
	}
	if len(fields) != 12 {
		return model.SwapRequestParameters{}, fmt.Errorf("unexpected swap request tuple width: %d", len(fields))
	}

	// Named-struct order: srcChainId, dstChainId, sender, recipient,
	// tokenIn, tokenOut, amountOut, verificationFee, solverFee, nonce,
	// executed, requestedAt.
	named, namedErr := buildParams(fields, [12]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11})
	if namedErr == nil && plausibleChainIDs(named) {
		return named, nil
	}

	// Positional-tuple fallback: index 0 is sender instead of
	// srcChainId. Reorder onto the same 12 logical slots.
	log.Warn("falling back to positional swap-request tuple decode", "namedErr", namedErr)
	positional, posErr := buildParams(fields, [12]int{6, 7, 0, 1, 2, 3, 4, 5, 8, 9, 10, 11})
	if posErr != nil {
		if namedErr != nil {
			return model.SwapRequestParameters{}, fmt.Errorf("named decode failed (%v), positional decode failed (%w)", namedErr, posErr)
		}
		return model.SwapRequestParameters{}, posErr
	}
	if !plausibleChainIDs(positional) {
		return model.SwapRequestParameters{}, fmt.Errorf("positional decode produced implausible chain ids (srcChainId=%s dstChainId=%s)",
			positional.SrcChainID, positional.DstChainID)
	}
	return positional, nil
}

// plausibleChainIDs rejects any decode whose chain IDs are 2^64 or more, per
// spec.md's open question resolution.
func plausibleChainIDs(p model.SwapRequestParameters) bool {
	if p.SrcChainID == nil || p.DstChainID == nil {
		return false
	}
	return p.SrcChainID.Cmp(maxChainID) < 0 && p.DstChainID.Cmp(maxChainID) < 0
}

// buildParams assembles a SwapRequestParameters from a 12-element tuple
// slice using the given field->slot mapping order: srcChainId,
// dstChainId, sender, recipient, tokenIn, tokenOut, amountOut,
// verificationFee, solverFee, nonce, executed, requestedAt.
func buildParams(fields []interface{}, order [12]int) (model.SwapRequestParameters, error) {
	srcChainID, err := toBigInt(fields[order[0]])
	if err != nil {
		return model.SwapRequestParameters{}, fmt.Errorf("srcChainId: %w", err)
	}
	dstChainID, err := toBigInt(fields[order[1]])
	if err != nil {
		return model.SwapRequestParameters{}, fmt.Errorf("dstChainId: %w", err)
	}
	sender, err := toAddress(fields[order[2]])
	if err != nil {
		return model.SwapRequestParameters{}, fmt.Errorf("sender: %w", err)
	}
	recipient, err := toAddress(fields[order[3]])
	if err != nil {
		return model.SwapRequestParameters{}, fmt.Errorf("recipient: %w", err)
	}
	tokenIn, err := toAddress(fields[order[4]])
	if err != nil {
		return model.SwapRequestParameters{}, fmt.Errorf("tokenIn: %w", err)
	}
	tokenOut, err := toAddress(fields[order[5]])
	if err != nil {
		return model.SwapRequestParameters{}, fmt.Errorf("tokenOut: %w", err)
	}
	amountOut, err := toBigInt(fields[order[6]])
	if err != nil {
		return model.SwapRequestParameters{}, fmt.Errorf("amountOut: %w", err)
	}
	verificationFee, err := toBigInt(fields[order[7]])
	if err != nil {
		return model.SwapRequestParameters{}, fmt.Errorf("verificationFee: %w", err)
	}
	solverFee, err := toBigInt(fields[order[8]])
	if err != nil {
		return model.SwapRequestParameters{}, fmt.Errorf("solverFee: %w", err)
	}
	nonce, err := toBigInt(fields[order[9]])
	if err != nil {
		return model.SwapRequestParameters{}, fmt.Errorf("nonce: %w", err)
	}
	executed, ok := fields[order[10]].(bool)
	if !ok {
		return model.SwapRequestParameters{}, fmt.Errorf("executed: not a bool (%T)", fields[order[10]])
	}
	requestedAt, err := toBigInt(fields[order[11]])
	if err != nil {
		return model.SwapRequestParameters{}, fmt.Errorf("requestedAt: %w", err)
	}

	return model.SwapRequestParameters{
		SrcChainID:      srcChainID,
		DstChainID:      dstChainID,
		Sender:          sender,
		Recipient:       recipient,
		TokenIn:         tokenIn,
		TokenOut:        tokenOut,
		AmountOut:       amountOut,
		VerificationFee: verificationFee,
		SolverFee:       solverFee,
		Nonce:           nonce,
		Executed:        executed,
		RequestedAt:     requestedAt,
	}, nil
}

// tupleFields flattens the value abi.Unpack hands back for a tuple
// output: either a struct (via reflection, field order preserved) or
// already a []interface{}.
func tupleFields(v interface{}) ([]interface{}, error) {
	if fields, ok := v.([]interface{}); ok {
		return fields, nil
	}
	return structFieldsInOrder(v)
}

// toBigInt accepts the encodings the router might hand back for a
// numeric field: a *big.Int, a *uint256.Int, or a hex string.
func toBigInt(v interface{}) (*big.Int, error) {
	switch t := v.(type) {
	case *big.Int:
		return new(big.Int).Set(t), nil
	case *uint256.Int:
		return t.ToBig(), nil
	case string:
		s := strings.TrimPrefix(t, "0x")
		n, ok := new(big.Int).SetString(s, 16)
		if !ok {
			return nil, fmt.Errorf("cannot parse hex amount %q", t)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unsupported numeric encoding %T", v)
	}
}

// toAddress accepts an address returned either as common.Address or as
// a large integer, decoding the low-20 bytes in the latter case.
func toAddress(v interface{}) (common.Address, error) {
	switch t := v.(type) {
	case common.Address:
		return t, nil
	case *big.Int:
		return common.BigToAddress(t), nil
	case *uint256.Int:
		return common.BigToAddress(t.ToBig()), nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address encoding %T", v)
	}
}
