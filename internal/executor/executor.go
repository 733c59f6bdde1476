// Package executor implements the on-destination-chain settlement
// pipeline: parameter reconciliation, approval, and relay for a list
// of Trades produced by an evaluator.
package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/onlyswaps/solver/internal/chain"
	"github.com/onlyswaps/solver/internal/inflight"
	"github.com/onlyswaps/solver/internal/journal"
	"github.com/onlyswaps/solver/internal/model"
)

// tradeDeadline bounds the combined approve+relay for a single trade,
// per spec.md §4.5.
const tradeDeadline = 10 * time.Second

// approvalSettleDelay lets a just-submitted ERC-20 allowance propagate
// before the relay call spends it, per spec.md §4.5 step 5.
const approvalSettleDelay = 500 * time.Millisecond

// ChainClient is the subset of *chain.Client the Executor depends on,
// narrow enough to fake in tests.
type ChainClient interface {
	RouterAddress() common.Address
	HasToken(addr common.Address) bool
	GetSwapRequestParameters(ctx context.Context, requestID [32]byte) (model.SwapRequestParameters, error)
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (*types.Receipt, error)
	Relay(ctx context.Context, trade *model.Trade) (*types.Receipt, error)
}

// Journal records execution outcomes independent of the log output.
// Optional: a nil Journal is a valid Executor configuration.
type Journal interface {
	Record(trade *model.Trade, status journal.Status, txHash string, execErr error, decidedAtUnix int64) error
}

// Executor consumes a per-tick trade list and settles each one on its
// destination chain, per spec.md §4.5.
type Executor struct {
	clients  map[uint64]ChainClient // destination chain id -> client
	inFlight *inflight.Cache
	journal  Journal
	now      func() time.Time
}

// New builds an Executor bound to a destination-chain client map and
// the shared In-Flight Cache. journal may be nil.
func New(clients map[uint64]ChainClient, inFlight *inflight.Cache, j Journal) *Executor {
	return &Executor{clients: clients, inFlight: inFlight, journal: j, now: time.Now}
}

// Execute settles each trade in list order. Trades are processed
// strictly one-at-a-time: a shared wallet nonce per chain requires
// approve to strictly precede the relay for the same request ID.
func (e *Executor) Execute(ctx context.Context, trades []*model.Trade) {
	for _, trade := range trades {
		e.executeOne(ctx, trade)
	}
}

func (e *Executor) executeOne(ctx context.Context, trade *model.Trade) {
	requestID := model.CanonicalizeRequestID(trade.RequestID)

	if e.inFlight.Has(requestID) {
		log.Info("skip: already in flight", "requestId", requestID)
		return
	}
	e.inFlight.Set(requestID)

	ctx, cancel := context.WithTimeout(ctx, tradeDeadline)
	defer cancel()

	if err := e.settle(ctx, trade); err != nil {
		log.Error("trade settlement failed", "requestId", requestID, "err", err)
		e.inFlight.Delete(requestID)
		e.record(trade, journal.StatusFailed, "", err)
		return
	}
}

// settle runs steps 3-6 of spec.md §4.5 for one trade.
func (e *Executor) settle(ctx context.Context, trade *model.Trade) error {
	requestID := model.CanonicalizeRequestID(trade.RequestID)

	dstClient, ok := e.clients[trade.DestChainID]
	if !ok {
		return fmt.Errorf("no chain client configured for destination chain %d", trade.DestChainID)
	}
	if !dstClient.HasToken(trade.TokenOutAddr) {
		return fmt.Errorf("token %s is not configured on destination chain %d", trade.TokenOutAddr.Hex(), trade.DestChainID)
	}

	reconciled, err := e.reconcile(ctx, dstClient, trade)
	if err != nil {
		return fmt.Errorf("reconcile parameters: %w", err)
	}

	e.record(reconciled, journal.StatusSubmitted, "", nil)

	if _, err := dstClient.Approve(ctx, reconciled.TokenOutAddr, dstClient.RouterAddress(), reconciled.SwapAmount); err != nil {
		return e.decodeAndWrap("approve", err)
	}

	select {
	case <-time.After(approvalSettleDelay):
	case <-ctx.Done():
		return fmt.Errorf("deadline exceeded waiting for allowance to settle: %w", ctx.Err())
	}

	relayReceipt, err := dstClient.Relay(ctx, reconciled)
	if err != nil {
		return e.decodeAndWrap("relay", err)
	}

	log.Info("relay succeeded", "requestId", requestID, "txHash", relayReceipt.TxHash.Hex())
	e.record(reconciled, journal.StatusSucceeded, relayReceipt.TxHash.Hex(), nil)
	return nil
}

// reconcile implements spec.md §4.1/§4.5's parameter-reconciliation
// rule: a verified on-chain record (non-zero srcChainId and sender)
// overrides the trade-carried values; otherwise the trade is used
// unchanged.
func (e *Executor) reconcile(ctx context.Context, dstClient ChainClient, trade *model.Trade) (*model.Trade, error) {
	requestIDBytes, err := model.RequestIDToBytes32(trade.RequestID)
	if err != nil {
		return nil, err
	}

	verified, err := dstClient.GetSwapRequestParameters(ctx, requestIDBytes)
	if err != nil {
		log.Info("no verified parameters found, using trade-carried values", "requestId", trade.RequestID, "err", err)
		return trade, nil
	}
	if verified.SrcChainID == nil || verified.SrcChainID.Sign() == 0 || verified.Sender == (common.Address{}) {
		return trade, nil
	}

	log.Info("reconciled trade against verified destination-chain record", "requestId", trade.RequestID)
	return &model.Trade{
		RequestID:     trade.RequestID,
		Nonce:         verified.Nonce,
		TokenInAddr:   verified.TokenIn,
		TokenOutAddr:  verified.TokenOut,
		SrcChainID:    model.NormalizeChainID(verified.SrcChainID),
		DestChainID:   trade.DestChainID,
		SenderAddr:    verified.Sender,
		RecipientAddr: verified.Recipient,
		SwapAmount:    verified.AmountOut,
	}, nil
}

func (e *Executor) decodeAndWrap(step string, err error) error {
	var data interface{ ErrorData() interface{} }
	if errors.As(err, &data) {
		var raw []byte
		switch d := data.ErrorData().(type) {
		case []byte:
			raw = d
		case string:
			raw = common.FromHex(d)
		}
		if name := chain.DecodeRevertSelector(raw); name != "" {
			return fmt.Errorf("%s reverted with %s: %w", step, name, err)
		}
	}
	return fmt.Errorf("%s failed: %w", step, err)
}

func (e *Executor) record(trade *model.Trade, status journal.Status, txHash string, execErr error) {
	if e.journal == nil {
		return
	}
	if err := e.journal.Record(trade, status, txHash, execErr, e.now().Unix()); err != nil {
		log.Warn("failed to write execution journal entry", "requestId", trade.RequestID, "err", err)
	}
}
