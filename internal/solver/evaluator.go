// Package solver implements the "simple" (v1) evaluator: a direct
// balance/fee check with no conditions, risk, or profit scoring.
package solver

import (
	"math/big"

	"github.com/ethereum/go-ethereum/log"

	"github.com/onlyswaps/solver/internal/inflight"
	"github.com/onlyswaps/solver/internal/model"
)

// minSolverFee is the v1 floor: any fee below this is not worth relaying.
var minSolverFee = big.NewInt(1)

// Evaluator produces executable trades from a single chain's snapshot
// using the direct balance/fee check described in spec.md §4.2. It
// carries no state of its own; every call is independent.
type Evaluator struct{}

// New returns a v1 Evaluator.
func New() *Evaluator { return &Evaluator{} }

// Evaluate walks chainID's transfers in source-chain order, applying
// the v1 prologue and a sequential inventory-commit debit against a
// clone of the chain snapshots passed in. clones must not be shared
// with the canonical State Store: callers should pass a fresh Clone().
func (e *Evaluator) Evaluate(chainID uint64, clones map[uint64]*model.ChainState, inFlight *inflight.Cache) []*model.Trade {
	src := clones[chainID]
	if src == nil {
		return nil
	}

	var trades []*model.Trade
	for _, transfer := range src.Transfers {
		trade := e.evaluateOne(transfer, clones, inFlight)
		if trade != nil {
			trades = append(trades, trade)
		}
	}
	return trades
}

func (e *Evaluator) evaluateOne(transfer *model.Transfer, clones map[uint64]*model.ChainState, inFlight *inflight.Cache) *model.Trade {
	requestID := model.CanonicalizeRequestID(transfer.RequestID)
	params := transfer.Params
	dstChainID := model.NormalizeChainID(params.DstChainID)
	dst := clones[dstChainID]

	if dst != nil {
		if _, fulfilled := dst.AlreadyFulfilled[requestID]; fulfilled {
			log.Info("skip: already fulfilled", "requestId", requestID)
			return nil
		}
	}

	if inFlight.Has(requestID) {
		log.Info("skip: in flight", "requestId", requestID)
		return nil
	}
	if params.Executed {
		log.Info("skip: executed", "requestId", requestID)
		return nil
	}
	if dst == nil {
		log.Info("skip: destination chain unknown", "requestId", requestID, "dstChainId", dstChainID)
		return nil
	}
	if dst.NativeBalance == nil || dst.NativeBalance.Sign() == 0 {
		log.Info("skip: destination native balance zero", "requestId", requestID, "dstChainId", dstChainID)
		return nil
	}
	balance, ok := dst.TokenBalances[params.TokenOut]
	if !ok {
		log.Info("skip: destination token balance unknown", "requestId", requestID, "token", params.TokenOut.Hex())
		return nil
	}
	if params.AmountOut == nil || balance.Cmp(params.AmountOut) < 0 {
		log.Info("skip: destination token balance insufficient", "requestId", requestID, "token", params.TokenOut.Hex())
		return nil
	}
	if params.SolverFee == nil || params.SolverFee.Cmp(minSolverFee) < 0 {
		log.Info("skip: solver fee below minimum", "requestId", requestID, "solverFee", params.SolverFee)
		return nil
	}

	// Inventory commit: debit the clone only, never the canonical store.
	dst.TokenBalances[params.TokenOut] = new(big.Int).Sub(balance, params.AmountOut)

	log.Info("execute", "requestId", requestID, "dstChainId", dstChainID, "amountOut", params.AmountOut)

	return &model.Trade{
		RequestID:     requestID,
		Nonce:         params.Nonce,
		TokenInAddr:   params.TokenIn,
		TokenOutAddr:  params.TokenOut,
		SrcChainID:    model.NormalizeChainID(params.SrcChainID),
		DestChainID:   dstChainID,
		SenderAddr:    params.Sender,
		RecipientAddr: params.Recipient,
		SwapAmount:    params.AmountOut,
	}
}
