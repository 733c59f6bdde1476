package solverv2

import (
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/onlyswaps/solver/internal/inflight"
	"github.com/onlyswaps/solver/internal/model"
)

// DefaultMinSolverFee is the v2 prologue floor, per spec.md §4.3.
var DefaultMinSolverFee = big.NewInt(1_000_000_000_000_000) // 1e15

// Options configures one Evaluator instance. All fields have working
// zero-value-adjacent defaults except Oracle, which is required only
// when a Transfer actually carries a price condition.
type Options struct {
	MinSolverFee  *big.Int
	RiskThreshold float64
	ProfitParams  ProfitParams
	Oracle        *PriceOracle
	GasPrices     *GasPriceCache
	Now           func() time.Time
}

// Evaluator produces executable trades using the scored pipeline from
// spec.md §4.3: prologue filters, condition evaluation, risk scoring,
// profit scoring, descending sort, and a sequential inventory-commit
// pass.
type Evaluator struct {
	minSolverFee  *big.Int
	riskThreshold float64
	profitParams  ProfitParams
	oracle        *PriceOracle
	gasPrices     *GasPriceCache
	now           func() time.Time
}

// New builds an Evaluator, filling in spec defaults for any zero-value
// fields of opts.
func New(opts Options) *Evaluator {
	e := &Evaluator{
		minSolverFee:  opts.MinSolverFee,
		riskThreshold: opts.RiskThreshold,
		profitParams:  opts.ProfitParams,
		oracle:        opts.Oracle,
		gasPrices:     opts.GasPrices,
		now:           opts.Now,
	}
	if e.minSolverFee == nil {
		e.minSolverFee = DefaultMinSolverFee
	}
	if e.riskThreshold == 0 {
		e.riskThreshold = DefaultRiskThreshold
	}
	var zeroProfitParams ProfitParams
	if e.profitParams == zeroProfitParams {
		e.profitParams = DefaultProfitParams
	}
	if e.gasPrices == nil {
		e.gasPrices = NewGasPriceCache(nil)
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// candidate carries a Transfer through the pipeline alongside its
// scores, so the final sort and commit pass have everything they need
// without recomputing.
type candidate struct {
	transfer    *model.Transfer
	requestID   string
	dstChainID  uint64
	risk        RiskScore
	profit      ProfitScore
	overall     float64
}

// Evaluate runs the full v2 pipeline for chainID's transfers against a
// clone of the chain snapshots. clones must not be shared with the
// canonical State Store.
func (e *Evaluator) Evaluate(chainID uint64, clones map[uint64]*model.ChainState, inFlight *inflight.Cache) []*model.Trade {
	src := clones[chainID]
	if src == nil {
		return nil
	}

	var candidates []candidate
	for _, transfer := range src.Transfers {
		c, ok := e.scoreOne(transfer, clones, inFlight)
		if ok {
			candidates = append(candidates, c)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].overall > candidates[j].overall
	})

	return e.commit(candidates, clones)
}

// scoreOne applies the prologue filter, condition evaluation, and risk
// gate to one Transfer, returning its scored candidate if it survives.
func (e *Evaluator) scoreOne(transfer *model.Transfer, clones map[uint64]*model.ChainState, inFlight *inflight.Cache) (candidate, bool) {
	requestID := model.CanonicalizeRequestID(transfer.RequestID)
	params := transfer.Params
	dstChainID := model.NormalizeChainID(params.DstChainID)
	dst := clones[dstChainID]

	if dst != nil {
		if _, fulfilled := dst.AlreadyFulfilled[requestID]; fulfilled {
			log.Info("skip: already fulfilled", "requestId", requestID)
			return candidate{}, false
		}
	}
	if inFlight.Has(requestID) {
		log.Info("skip: in flight", "requestId", requestID)
		return candidate{}, false
	}
	if params.Executed {
		log.Info("skip: executed", "requestId", requestID)
		return candidate{}, false
	}
	if dst == nil {
		log.Info("skip: destination chain unknown", "requestId", requestID, "dstChainId", dstChainID)
		return candidate{}, false
	}
	if dst.NativeBalance == nil || dst.NativeBalance.Sign() == 0 {
		log.Info("skip: destination native balance zero", "requestId", requestID)
		return candidate{}, false
	}
	balance, ok := dst.TokenBalances[params.TokenOut]
	if !ok {
		log.Info("skip: destination token balance unknown", "requestId", requestID, "token", params.TokenOut.Hex())
		return candidate{}, false
	}
	if params.AmountOut == nil || balance.Cmp(params.AmountOut) < 0 {
		log.Info("skip: destination token balance insufficient", "requestId", requestID)
		return candidate{}, false
	}
	if params.SolverFee == nil || params.SolverFee.Cmp(e.minSolverFee) < 0 {
		log.Info("skip: solver fee below minimum", "requestId", requestID, "solverFee", params.SolverFee)
		return candidate{}, false
	}

	conditionsMet, err := EvaluateConditions(transfer.Conditions, clones, e.oracle, e.now())
	if err != nil {
		log.Info("skip: condition evaluation failed", "requestId", requestID, "err", err)
		return candidate{}, false
	}
	if !conditionsMet {
		log.Info("skip: condition not met", "requestId", requestID)
		return candidate{}, false
	}

	risk := ScoreRisk(params, dst, e.minSolverFee)
	if avg := risk.Average(); avg >= e.riskThreshold {
		log.Info("skip: risk above threshold", "requestId", requestID, "risk", avg)
		return candidate{}, false
	}

	profit := ScoreProfit(params, dstChainID, e.gasPrices, e.profitParams)

	return candidate{
		transfer:   transfer,
		requestID:  requestID,
		dstChainID: dstChainID,
		risk:       risk,
		profit:     profit,
		overall:    OverallScore(profit, risk),
	}, true
}

// commit walks ranked candidates in descending score order, debiting
// the clone's destination balance for each one that still fits, per
// spec.md §4.3 step 5.
func (e *Evaluator) commit(candidates []candidate, clones map[uint64]*model.ChainState) []*model.Trade {
	var trades []*model.Trade
	for _, c := range candidates {
		dst := clones[c.dstChainID]
		params := c.transfer.Params

		balance := dst.TokenBalances[params.TokenOut]
		if balance == nil || balance.Cmp(params.AmountOut) < 0 {
			log.Info("skip: inventory exhausted by higher-ranked candidate", "requestId", c.requestID)
			continue
		}

		dst.TokenBalances[params.TokenOut] = new(big.Int).Sub(balance, params.AmountOut)

		log.Info("execute", "requestId", c.requestID, "dstChainId", c.dstChainID, "score", c.overall)

		trades = append(trades, &model.Trade{
			RequestID:     c.requestID,
			Nonce:         params.Nonce,
			TokenInAddr:   params.TokenIn,
			TokenOutAddr:  params.TokenOut,
			SrcChainID:    model.NormalizeChainID(params.SrcChainID),
			DestChainID:   c.dstChainID,
			SenderAddr:    params.Sender,
			RecipientAddr: params.Recipient,
			SwapAmount:    params.AmountOut,
		})
	}
	return trades
}
