// Package solverv2 implements the "scored" (v2) evaluator: condition
// evaluation, risk scoring, and profit-ranked candidate selection on
// top of the same prologue filters the simple evaluator applies.
package solverv2

import (
	"fmt"
	"math/big"
	"time"

	"github.com/onlyswaps/solver/internal/model"
)

// EvaluateConditions checks every condition attached to a Transfer in
// order, short-circuiting on the first failure. An empty list is
// treated as "all conditions met", per spec.md's boundary behavior.
func EvaluateConditions(conditions []model.Condition, clones map[uint64]*model.ChainState, oracle *PriceOracle, now time.Time) (bool, error) {
	for i, cond := range conditions {
		ok, err := evaluateOne(cond, clones, oracle, now)
		if err != nil {
			return false, fmt.Errorf("condition[%d] (%s): %w", i, cond.Kind, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evaluateOne(cond model.Condition, clones map[uint64]*model.ChainState, oracle *PriceOracle, now time.Time) (bool, error) {
	switch cond.Kind {
	case model.ConditionTime:
		return evaluateTime(cond, now), nil
	case model.ConditionPrice:
		return evaluatePrice(cond, oracle)
	case model.ConditionBalance:
		return evaluateBalance(cond, clones), nil
	case model.ConditionCustom:
		if cond.Evaluate == nil {
			return false, fmt.Errorf("custom condition has no evaluator")
		}
		return cond.Evaluate(clones)
	default:
		return false, fmt.Errorf("unknown condition kind %q", cond.Kind)
	}
}

func evaluateTime(cond model.Condition, now time.Time) bool {
	nowUnix := now.Unix()
	switch cond.Operator {
	case model.OpGT:
		return nowUnix > cond.Timestamp
	case model.OpLT:
		return nowUnix < cond.Timestamp
	case model.OpEQ:
		return nowUnix == cond.Timestamp
	case model.OpGTE:
		return nowUnix >= cond.Timestamp
	case model.OpLTE:
		return nowUnix <= cond.Timestamp
	case model.OpBetween:
		return nowUnix >= cond.Timestamp && nowUnix <= cond.EndTimestamp
	default:
		return false
	}
}

func evaluatePrice(cond model.Condition, oracle *PriceOracle) (bool, error) {
	if oracle == nil {
		return false, fmt.Errorf("price condition requires a price oracle")
	}
	price, err := oracle.Price(cond.PriceChainID, cond.PriceToken, cond.PriceSource)
	if err != nil {
		return false, fmt.Errorf("price lookup: %w", err)
	}
	return compareFloat(price, cond.PriceTarget, cond.Operator), nil
}

func evaluateBalance(cond model.Condition, clones map[uint64]*model.ChainState) bool {
	state := clones[cond.BalanceChainID]
	if state == nil {
		return false
	}

	var balance *big.Int
	if cond.BalanceToken == nil {
		balance = state.NativeBalance
	} else {
		balance = state.TokenBalances[*cond.BalanceToken]
	}
	if balance == nil {
		return false
	}
	return compareBigInt(balance, cond.BalanceTarget, cond.BalanceOperator)
}

func compareBigInt(value, target *big.Int, op model.Operator) bool {
	if target == nil {
		return false
	}
	cmp := value.Cmp(target)
	switch op {
	case model.OpGT:
		return cmp > 0
	case model.OpLT:
		return cmp < 0
	case model.OpEQ:
		return cmp == 0
	case model.OpGTE:
		return cmp >= 0
	case model.OpLTE:
		return cmp <= 0
	default:
		return false
	}
}

func compareFloat(value, target *big.Float, op model.Operator) bool {
	if target == nil {
		return false
	}
	cmp := value.Cmp(target)
	switch op {
	case model.OpGT:
		return cmp > 0
	case model.OpLT:
		return cmp < 0
	case model.OpEQ:
		return cmp == 0
	case model.OpGTE:
		return cmp >= 0
	case model.OpLTE:
		return cmp <= 0
	default:
		return false
	}
}
