package solverv2

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/onlyswaps/solver/internal/model"
)

func TestEmptyConditionsAreMet(t *testing.T) {
	ok, err := EvaluateConditions(nil, nil, nil, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected empty condition list to be met")
	}
}

func TestTimeConditionAfter(t *testing.T) {
	now := time.Unix(1000, 0)
	conditions := []model.Condition{{Kind: model.ConditionTime, Operator: model.OpGT, Timestamp: 500}}

	ok, err := EvaluateConditions(conditions, nil, nil, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected time condition to be met")
	}
}

func TestTimeConditionBetween(t *testing.T) {
	now := time.Unix(1000, 0)
	conditions := []model.Condition{{Kind: model.ConditionTime, Operator: model.OpBetween, Timestamp: 900, EndTimestamp: 1100}}

	ok, err := EvaluateConditions(conditions, nil, nil, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected between condition to be met")
	}
}

func TestBalanceConditionNative(t *testing.T) {
	chainID := uint64(31338)
	clones := map[uint64]*model.ChainState{
		chainID: {NativeBalance: big.NewInt(5)},
	}
	conditions := []model.Condition{{
		Kind:            model.ConditionBalance,
		BalanceChainID:  chainID,
		BalanceOperator: model.OpGTE,
		BalanceTarget:   big.NewInt(5),
	}}

	ok, err := EvaluateConditions(conditions, clones, nil, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected balance condition to be met")
	}
}

func TestBalanceConditionUnknownChainFails(t *testing.T) {
	conditions := []model.Condition{{
		Kind:            model.ConditionBalance,
		BalanceChainID:  99,
		BalanceOperator: model.OpGTE,
		BalanceTarget:   big.NewInt(1),
	}}

	ok, err := EvaluateConditions(conditions, map[uint64]*model.ChainState{}, nil, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected balance condition against unknown chain to fail")
	}
}

type fakePriceSource struct {
	price *big.Float
	err   error
}

func (f fakePriceSource) Price(chainID uint64, token common.Address, source string) (*big.Float, error) {
	return f.price, f.err
}

func TestPriceConditionMet(t *testing.T) {
	oracle := NewPriceOracle(fakePriceSource{price: big.NewFloat(2000)})
	conditions := []model.Condition{{
		Kind:         model.ConditionPrice,
		PriceChainID: 1,
		PriceToken:   common.HexToAddress("0x1"),
		PriceSource:  "test",
		Operator:     model.OpGTE,
		PriceTarget:  big.NewFloat(1500),
	}}

	ok, err := EvaluateConditions(conditions, nil, oracle, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected price condition to be met")
	}
}

func TestPriceConditionOracleErrorFailsCondition(t *testing.T) {
	oracle := NewPriceOracle(fakePriceSource{err: errors.New("upstream down")})
	conditions := []model.Condition{{
		Kind:         model.ConditionPrice,
		PriceChainID: 1,
		PriceToken:   common.HexToAddress("0x1"),
		PriceSource:  "test",
		Operator:     model.OpGTE,
		PriceTarget:  big.NewFloat(1500),
	}}

	_, err := EvaluateConditions(conditions, nil, oracle, time.Now())
	if err == nil {
		t.Fatal("expected oracle error to propagate")
	}
}

func TestCustomConditionShortCircuits(t *testing.T) {
	calls := 0
	conditions := []model.Condition{
		{Kind: model.ConditionCustom, Evaluate: func(map[uint64]*model.ChainState) (bool, error) {
			calls++
			return false, nil
		}},
		{Kind: model.ConditionCustom, Evaluate: func(map[uint64]*model.ChainState) (bool, error) {
			calls++
			return true, nil
		}},
	}

	ok, err := EvaluateConditions(conditions, nil, nil, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected overall result to be false")
	}
	if calls != 1 {
		t.Errorf("expected short-circuit after first failure, got %d calls", calls)
	}
}
