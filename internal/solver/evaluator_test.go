package solver

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/onlyswaps/solver/internal/inflight"
	"github.com/onlyswaps/solver/internal/model"
)

var (
	tokenOut = common.HexToAddress("0x000000000000000000000000000000000000a1")
	sender   = common.HexToAddress("0x1111111111111111111111111111111111111a")
	dest     = common.HexToAddress("0x2222222222222222222222222222222222222b")
)

func transferWith(requestID string, dstChainID uint64, amountOut, solverFee int64, executed bool) *model.Transfer {
	return &model.Transfer{
		RequestID: requestID,
		Params: model.SwapRequestParameters{
			SrcChainID: big.NewInt(31337),
			DstChainID: new(big.Int).SetUint64(dstChainID),
			Sender:     sender,
			Recipient:  dest,
			TokenIn:    tokenOut,
			TokenOut:   tokenOut,
			AmountOut:  big.NewInt(amountOut),
			SolverFee:  big.NewInt(solverFee),
			Nonce:      big.NewInt(1),
			Executed:   executed,
		},
	}
}

func destState(nativeBalance, tokenBalance int64, fulfilled ...string) *model.ChainState {
	fulfilledSet := make(map[string]struct{}, len(fulfilled))
	for _, id := range fulfilled {
		fulfilledSet[model.CanonicalizeRequestID(id)] = struct{}{}
	}
	return &model.ChainState{
		NativeBalance: big.NewInt(nativeBalance),
		TokenBalances: map[common.Address]*big.Int{
			tokenOut: big.NewInt(tokenBalance),
		},
		AlreadyFulfilled: fulfilledSet,
	}
}

func TestHappyPathSingleFulfill(t *testing.T) {
	src := &model.ChainState{Transfers: []*model.Transfer{
		transferWith("0xab01", 31338, 1_000_000_000_000_000_000, 10_000_000_000_000_000, false),
	}}
	clones := map[uint64]*model.ChainState{
		31337: src,
		31338: destState(1e18, 5_000_000_000_000_000_000),
	}

	trades := New().Evaluate(31337, clones, inflight.New())
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].RequestID != "0xab01" {
		t.Errorf("unexpected request id %q", trades[0].RequestID)
	}
	remaining := clones[31338].TokenBalances[tokenOut]
	if remaining.Cmp(big.NewInt(4_000_000_000_000_000_000)) != 0 {
		t.Errorf("expected debited balance, got %s", remaining)
	}
}

func TestAlreadyFulfilledSkipped(t *testing.T) {
	src := &model.ChainState{Transfers: []*model.Transfer{
		transferWith("0xab01", 31338, 1e18, 1e16, false),
	}}
	clones := map[uint64]*model.ChainState{
		31337: src,
		31338: destState(1e18, 5e18, "0xab01"),
	}

	trades := New().Evaluate(31337, clones, inflight.New())
	if len(trades) != 0 {
		t.Fatalf("expected 0 trades, got %d", len(trades))
	}
}

func TestFeeTooLowSkipped(t *testing.T) {
	src := &model.ChainState{Transfers: []*model.Transfer{
		transferWith("0xab01", 31338, 1e18, 0, false),
	}}
	clones := map[uint64]*model.ChainState{
		31337: src,
		31338: destState(1e18, 5e18),
	}

	trades := New().Evaluate(31337, clones, inflight.New())
	if len(trades) != 0 {
		t.Fatalf("expected 0 trades, got %d", len(trades))
	}
}

func TestTwoCandidatesOneInventory(t *testing.T) {
	src := &model.ChainState{Transfers: []*model.Transfer{
		transferWith("0xaaaa", 31338, 4_000_000_000_000_000_000, 1e16, false),
		transferWith("0xbbbb", 31338, 3_000_000_000_000_000_000, 1e16, false),
	}}
	clones := map[uint64]*model.ChainState{
		31337: src,
		31338: destState(1e18, 5_000_000_000_000_000_000),
	}

	trades := New().Evaluate(31337, clones, inflight.New())
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].RequestID != "0xaaaa" {
		t.Errorf("expected first-in-order candidate to win, got %q", trades[0].RequestID)
	}
}

func TestInFlightDeduped(t *testing.T) {
	src := &model.ChainState{Transfers: []*model.Transfer{
		transferWith("0xab01", 31338, 1e18, 1e16, false),
	}}
	clones := map[uint64]*model.ChainState{
		31337: src,
		31338: destState(1e18, 5e18),
	}
	cache := inflight.New()
	cache.Set(model.CanonicalizeRequestID("0xab01"))

	trades := New().Evaluate(31337, clones, cache)
	if len(trades) != 0 {
		t.Fatalf("expected 0 trades for in-flight request, got %d", len(trades))
	}
}

func TestExecutedFlagSkipped(t *testing.T) {
	src := &model.ChainState{Transfers: []*model.Transfer{
		transferWith("0xab01", 31338, 1e18, 1e16, true),
	}}
	clones := map[uint64]*model.ChainState{
		31337: src,
		31338: destState(1e18, 5e18),
	}

	trades := New().Evaluate(31337, clones, inflight.New())
	if len(trades) != 0 {
		t.Fatalf("expected 0 trades for executed request, got %d", len(trades))
	}
}

func TestUnknownDestinationChainSkipped(t *testing.T) {
	src := &model.ChainState{Transfers: []*model.Transfer{
		transferWith("0xab01", 99999, 1e18, 1e16, false),
	}}
	clones := map[uint64]*model.ChainState{31337: src}

	trades := New().Evaluate(31337, clones, inflight.New())
	if len(trades) != 0 {
		t.Fatalf("expected 0 trades for unknown destination, got %d", len(trades))
	}
}

func TestExactBalanceLeavesZero(t *testing.T) {
	src := &model.ChainState{Transfers: []*model.Transfer{
		transferWith("0xab01", 31338, 5e18, 1e16, false),
	}}
	clones := map[uint64]*model.ChainState{
		31337: src,
		31338: destState(1e18, 5_000_000_000_000_000_000),
	}

	trades := New().Evaluate(31337, clones, inflight.New())
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	remaining := clones[31338].TokenBalances[tokenOut]
	if remaining.Sign() != 0 {
		t.Errorf("expected balance to reach exactly zero, got %s", remaining)
	}
}
