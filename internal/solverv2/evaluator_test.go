package solverv2

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/onlyswaps/solver/internal/inflight"
	"github.com/onlyswaps/solver/internal/model"
)

var (
	v2TokenOut = common.HexToAddress("0x000000000000000000000000000000000000a1")
	v2Sender   = common.HexToAddress("0x1111111111111111111111111111111111111a")
	v2Dest     = common.HexToAddress("0x2222222222222222222222222222222222222b")
)

func v2Transfer(requestID string, dstChainID uint64, amountOut int64) *model.Transfer {
	return &model.Transfer{
		RequestID: requestID,
		Params: model.SwapRequestParameters{
			SrcChainID: big.NewInt(31337),
			DstChainID: new(big.Int).SetUint64(dstChainID),
			Sender:     v2Sender,
			Recipient:  v2Dest,
			TokenIn:    v2TokenOut,
			TokenOut:   v2TokenOut,
			AmountOut:  big.NewInt(amountOut),
			SolverFee:  big.NewInt(2_000_000_000_000_000), // above 1e15 floor
			Nonce:      big.NewInt(1),
		},
	}
}

func v2DestState(nativeBalance, tokenBalance int64) *model.ChainState {
	return &model.ChainState{
		NativeBalance:    big.NewInt(nativeBalance),
		TokenBalances:    map[common.Address]*big.Int{v2TokenOut: big.NewInt(tokenBalance)},
		AlreadyFulfilled: map[string]struct{}{},
	}
}

func fixedNow() time.Time { return time.Unix(1_700_000_000, 0) }

func TestV2HappyPath(t *testing.T) {
	src := &model.ChainState{Transfers: []*model.Transfer{
		v2Transfer("0xab01", 31338, 1_000_000_000_000_000_000),
	}}
	clones := map[uint64]*model.ChainState{
		31337: src,
		31338: v2DestState(1e18, 5_000_000_000_000_000_000),
	}

	eval := New(Options{Now: fixedNow})
	trades := eval.Evaluate(31337, clones, inflight.New())
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
}

func TestV2FeeTooLowSkipped(t *testing.T) {
	transfer := v2Transfer("0xab01", 31338, 1e18)
	transfer.Params.SolverFee = big.NewInt(500)
	src := &model.ChainState{Transfers: []*model.Transfer{transfer}}
	clones := map[uint64]*model.ChainState{
		31337: src,
		31338: v2DestState(1e18, 5e18),
	}

	eval := New(Options{Now: fixedNow})
	trades := eval.Evaluate(31337, clones, inflight.New())
	if len(trades) != 0 {
		t.Fatalf("expected 0 trades, got %d", len(trades))
	}
}

func TestV2RankedByOverallScore(t *testing.T) {
	// Two candidates on different destination chains, identical except
	// for destination balance: the one with ample balance (low liquidity
	// risk) should rank above the one that is barely covered. Both fit
	// their own chain's inventory, so both are emitted.
	lowRisk := v2Transfer("0xaaaa", 31338, 1_000_000_000_000_000_000)
	highRisk := v2Transfer("0xbbbb", 31339, 1_000_000_000_000_000_000)

	src := &model.ChainState{Transfers: []*model.Transfer{highRisk, lowRisk}}
	clones := map[uint64]*model.ChainState{
		31337: src,
		31338: v2DestState(1e18, 9_000_000_000_000_000_000), // ample
		31339: v2DestState(1e18, 1_000_000_000_000_000_000),  // exact match, worse liquidity axis
	}

	eval := New(Options{Now: fixedNow})
	trades := eval.Evaluate(31337, clones, inflight.New())
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	if trades[0].RequestID != "0xaaaa" {
		t.Errorf("expected lower-risk candidate ranked first, got %q", trades[0].RequestID)
	}
}

func TestV2InventoryExhaustedBySkip(t *testing.T) {
	first := v2Transfer("0xaaaa", 31338, 4_000_000_000_000_000_000)
	second := v2Transfer("0xbbbb", 31338, 3_000_000_000_000_000_000)

	src := &model.ChainState{Transfers: []*model.Transfer{first, second}}
	clones := map[uint64]*model.ChainState{
		31337: src,
		31338: v2DestState(1e18, 5_000_000_000_000_000_000),
	}

	eval := New(Options{Now: fixedNow})
	trades := eval.Evaluate(31337, clones, inflight.New())
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade after inventory exhaustion, got %d", len(trades))
	}
}

func TestV2ConditionFailureSkips(t *testing.T) {
	transfer := v2Transfer("0xab01", 31338, 1e18)
	transfer.Conditions = []model.Condition{{
		Kind:      model.ConditionTime,
		Operator:  model.OpGT,
		Timestamp: fixedNow().Unix() + 1000, // in the future: never met
	}}
	src := &model.ChainState{Transfers: []*model.Transfer{transfer}}
	clones := map[uint64]*model.ChainState{
		31337: src,
		31338: v2DestState(1e18, 5e18),
	}

	eval := New(Options{Now: fixedNow})
	trades := eval.Evaluate(31337, clones, inflight.New())
	if len(trades) != 0 {
		t.Fatalf("expected 0 trades for unmet condition, got %d", len(trades))
	}
}
