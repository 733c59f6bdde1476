package solverv2

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/onlyswaps/solver/internal/model"
)

// DefaultRiskThreshold is the score at or above which a candidate is
// dropped, per spec.md §4.3.
const DefaultRiskThreshold = 0.3

// liquidityLowBalanceRatio is the "balance/required < 1.1" boundary
// used by the liquidity axis.
const liquidityLowBalanceRatio = 1.1

// executionLowNativeBalance is the "below 1e17" boundary used by the
// execution axis.
var executionLowNativeBalance = big.NewInt(100_000_000_000_000_000) // 1e17

// RiskScore is the averaged [0,1] score across the four risk axes from
// spec.md §4.3, along with each axis for logging.
type RiskScore struct {
	Liquidity   float64
	Fee         float64
	Execution   float64
	Counterparty float64
}

// Average returns the mean of the four axes.
func (r RiskScore) Average() float64 {
	return (r.Liquidity + r.Fee + r.Execution + r.Counterparty) / 4
}

// ScoreRisk computes the four risk axes for a candidate against the
// destination chain's cloned snapshot.
func ScoreRisk(params model.SwapRequestParameters, dst *model.ChainState, minSolverFee *big.Int) RiskScore {
	return RiskScore{
		Liquidity:    liquidityRisk(params, dst),
		Fee:          feeRisk(params, minSolverFee),
		Execution:    executionRisk(dst),
		Counterparty: counterpartyRisk(params),
	}
}

func liquidityRisk(params model.SwapRequestParameters, dst *model.ChainState) float64 {
	if dst == nil {
		return 1.0
	}
	balance, ok := dst.TokenBalances[params.TokenOut]
	if !ok || balance == nil {
		return 1.0
	}
	if params.AmountOut == nil {
		return 1.0
	}
	if balance.Cmp(params.AmountOut) < 0 {
		return 0.8
	}

	ratio := new(big.Float).Quo(new(big.Float).SetInt(balance), new(big.Float).SetInt(params.AmountOut))
	if ratio.Cmp(big.NewFloat(liquidityLowBalanceRatio)) < 0 {
		return 0.5
	}
	return 0.1
}

func feeRisk(params model.SwapRequestParameters, minSolverFee *big.Int) float64 {
	if params.SolverFee == nil || params.SolverFee.Cmp(minSolverFee) < 0 {
		return 0.9
	}
	return 0.1
}

func executionRisk(dst *model.ChainState) float64 {
	if dst == nil || dst.NativeBalance == nil || dst.NativeBalance.Sign() == 0 {
		return 1.0
	}
	if dst.NativeBalance.Cmp(executionLowNativeBalance) < 0 {
		return 0.6
	}
	return 0.2
}

func counterpartyRisk(params model.SwapRequestParameters) float64 {
	if params.Sender == (common.Address{}) || params.Recipient == (common.Address{}) {
		return 0.5
	}
	return 0.1
}
