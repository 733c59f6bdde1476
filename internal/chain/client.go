// Package chain binds a single chain ID to a single RPC endpoint and
// the solver's wallet, exposing the block-event stream and the
// fetchState/approve/relay operations spec.md §4.1 requires.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"

	"github.com/onlyswaps/solver/internal/model"
)

// fetchTimeout bounds every individual RPC call fetchState makes.
const fetchTimeout = 15 * time.Second

// Client binds one chain ID to one RPC endpoint, the solver's wallet,
// and the router/tokens configured for that chain.
type Client struct {
	chainID       uint64
	rpc           *ethclient.Client
	privateKey    *ecdsa.PrivateKey
	walletAddress common.Address
	routerAddr    common.Address
	tokens        map[common.Address]struct{}
	routerABI     abi.ABI
	erc20ABI      abi.ABI

	nonceMu sync.Mutex // serializes tx submission for the shared wallet nonce
}

// Config carries what a Client needs to bind to one network, mirroring
// a single [[networks]] table from the TOML config.
type Config struct {
	ChainID    uint64
	RPCURL     string
	RouterAddr common.Address
	Tokens     []common.Address
}

// NewClient dials the RPC endpoint and parses the ABIs a Client needs.
func NewClient(ctx context.Context, cfg Config, privateKey *ecdsa.PrivateKey) (*Client, error) {
	rpc, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.RPCURL, err)
	}

	parsedRouterABI, err := abi.JSON(strings.NewReader(routerABI))
	if err != nil {
		rpc.Close()
		return nil, fmt.Errorf("parse router abi: %w", err)
	}
	parsedERC20ABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		rpc.Close()
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	tokenSet := make(map[common.Address]struct{}, len(cfg.Tokens))
	for _, t := range cfg.Tokens {
		tokenSet[t] = struct{}{}
	}

	return &Client{
		chainID:       cfg.ChainID,
		rpc:           rpc,
		privateKey:    privateKey,
		walletAddress: crypto.PubkeyToAddress(privateKey.PublicKey),
		routerAddr:    cfg.RouterAddr,
		tokens:        tokenSet,
		routerABI:     parsedRouterABI,
		erc20ABI:      parsedERC20ABI,
	}, nil
}

// ChainID returns the normalized chain ID this client is bound to.
func (c *Client) ChainID() uint64 { return c.chainID }

// WalletAddress returns the solver's address on this chain.
func (c *Client) WalletAddress() common.Address { return c.walletAddress }

// HasToken reports whether addr is one of this chain's configured
// tokens (used by the Executor to match a trade's tokenOut before
// relaying, per spec.md §4.5).
func (c *Client) HasToken(addr common.Address) bool {
	_, ok := c.tokens[addr]
	return ok
}

// RouterAddress returns the router contract this client relays
// through, i.e. the spender the Executor approves before relaying.
func (c *Client) RouterAddress() common.Address {
	return c.routerAddr
}

// Close releases the underlying RPC transport.
func (c *Client) Close() {
	c.rpc.Close()
}

// FetchState implements the five-step contract from spec.md §4.1.
// Partial results are acceptable; full failure (no balances retrievable
// at all) is reported so the caller can skip the tick.
func (c *Client) FetchState(ctx context.Context) (*model.ChainState, error) {
	nativeBalance, err := c.nativeBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch native balance: %w", err)
	}

	tokenBalances := c.tokenBalances(ctx)
	if len(tokenBalances) == 0 && len(c.tokens) > 0 {
		log.Warn("fetchState: no token balances retrieved", "chainId", c.chainID)
	}

	fulfilled, err := c.fulfilledSet(ctx)
	if err != nil {
		log.Warn("fetchState: could not read fulfilled set", "chainId", c.chainID, "err", err)
		fulfilled = map[string]struct{}{}
	}

	transfers := c.unfulfilledTransfers(ctx)

	return &model.ChainState{
		NativeBalance:    nativeBalance,
		TokenBalances:    tokenBalances,
		Transfers:        transfers,
		AlreadyFulfilled: fulfilled,
	}, nil
}

func (c *Client) nativeBalance(ctx context.Context) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	return c.rpc.BalanceAt(ctx, c.walletAddress, nil)
}

// tokenBalances concurrently reads balanceOf(solver) for every
// configured token. Addresses whose call fails are simply absent from
// the returned map, per spec.md §4.1 step 2.
func (c *Client) tokenBalances(ctx context.Context) map[common.Address]*big.Int {
	type result struct {
		addr common.Address
		bal  *big.Int
		err  error
	}

	results := make(chan result, len(c.tokens))
	var wg sync.WaitGroup
	for token := range c.tokens {
		wg.Add(1)
		go func(token common.Address) {
			defer wg.Done()
			bal, err := c.balanceOf(ctx, token, c.walletAddress)
			results <- result{addr: token, bal: bal, err: err}
		}(token)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	out := make(map[common.Address]*big.Int)
	for r := range results {
		if r.err != nil {
			log.Warn("fetchState: balanceOf failed", "chainId", c.chainID, "token", r.addr.Hex(), "err", r.err)
			continue
		}
		out[r.addr] = r.bal
	}
	return out
}

func (c *Client) balanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	data, err := c.erc20ABI.Pack("balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}
	out, err := c.rpc.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call balanceOf: %w", err)
	}
	unpacked, err := c.erc20ABI.Unpack("balanceOf", out)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	bal, ok := unpacked[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf returned unexpected type %T", unpacked[0])
	}
	return bal, nil
}

func (c *Client) fulfilledSet(ctx context.Context) (map[string]struct{}, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	data, err := c.routerABI.Pack("getFulfilledTransfers")
	if err != nil {
		return nil, fmt.Errorf("pack getFulfilledTransfers: %w", err)
	}
	out, err := c.rpc.CallContract(ctx, ethereum.CallMsg{To: &c.routerAddr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call getFulfilledTransfers: %w", err)
	}
	unpacked, err := c.routerABI.Unpack("getFulfilledTransfers", out)
	if err != nil {
		return nil, fmt.Errorf("unpack getFulfilledTransfers: %w", err)
	}
	ids, ok := unpacked[0].([][32]byte)
	if !ok {
		return nil, fmt.Errorf("getFulfilledTransfers returned unexpected type %T", unpacked[0])
	}

	fulfilled := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		fulfilled[model.CanonicalizeRequestIDBytes(id)] = struct{}{}
	}
	return fulfilled, nil
}

// unfulfilledTransfers reads getUnfulfilledSolverRefunds and resolves
// each ID's parameters. A single failed parameter lookup drops just
// that Transfer rather than failing the whole snapshot, per spec.md
// §4.1 step 4.
func (c *Client) unfulfilledTransfers(ctx context.Context) []*model.Transfer {
	ids, err := c.unfulfilledIDs(ctx)
	if err != nil {
		log.Warn("fetchState: could not read unfulfilled refunds", "chainId", c.chainID, "err", err)
		return nil
	}

	transfers := make([]*model.Transfer, 0, len(ids))
	for _, id := range ids {
		params, err := c.GetSwapRequestParameters(ctx, id)
		if err != nil {
			log.Info("dropping transfer with unreadable parameters", "requestId", model.CanonicalizeRequestIDBytes(id), "err", err)
			continue
		}
		transfers = append(transfers, &model.Transfer{
			RequestID: model.CanonicalizeRequestIDBytes(id),
			Params:    params,
		})
	}
	return transfers
}

func (c *Client) unfulfilledIDs(ctx context.Context) ([][32]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	data, err := c.routerABI.Pack("getUnfulfilledSolverRefunds")
	if err != nil {
		return nil, fmt.Errorf("pack getUnfulfilledSolverRefunds: %w", err)
	}
	out, err := c.rpc.CallContract(ctx, ethereum.CallMsg{To: &c.routerAddr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call getUnfulfilledSolverRefunds: %w", err)
	}
	unpacked, err := c.routerABI.Unpack("getUnfulfilledSolverRefunds", out)
	if err != nil {
		return nil, fmt.Errorf("unpack getUnfulfilledSolverRefunds: %w", err)
	}
	ids, ok := unpacked[0].([][32]byte)
	if !ok {
		return nil, fmt.Errorf("getUnfulfilledSolverRefunds returned unexpected type %T", unpacked[0])
	}
	return ids, nil
}

// GetSwapRequestParameters reads and decodes one request's stored
// parameters from this chain's router.
func (c *Client) GetSwapRequestParameters(ctx context.Context, requestID [32]byte) (model.SwapRequestParameters, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	data, err := c.routerABI.Pack("getSwapRequestParameters", requestID)
	if err != nil {
		return model.SwapRequestParameters{}, fmt.Errorf("pack getSwapRequestParameters: %w", err)
	}
	out, err := c.rpc.CallContract(ctx, ethereum.CallMsg{To: &c.routerAddr, Data: data}, nil)
	if err != nil {
		return model.SwapRequestParameters{}, fmt.Errorf("call getSwapRequestParameters: %w", err)
	}
	return decodeSwapRequestParameters(c.routerABI, out)
}

// Approve submits token.approve(spender, amount) and waits for one
// confirmation, requiring receipt status success.
func (c *Client) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (*types.Receipt, error) {
	data, err := c.erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("pack approve: %w", err)
	}
	return c.sendAndWait(ctx, token, data)
}

// Relay submits router.relayTokens(...) and waits for the receipt.
func (c *Client) Relay(ctx context.Context, trade *model.Trade) (*types.Receipt, error) {
	requestID, err := model.RequestIDToBytes32(trade.RequestID)
	if err != nil {
		return nil, err
	}
	srcChainID := new(big.Int).SetUint64(trade.SrcChainID)

	data, err := c.routerABI.Pack(
		"relayTokens",
		c.walletAddress,
		requestID,
		trade.SenderAddr,
		trade.RecipientAddr,
		trade.TokenInAddr,
		trade.TokenOutAddr,
		trade.SwapAmount,
		srcChainID,
		trade.Nonce,
	)
	if err != nil {
		return nil, fmt.Errorf("pack relayTokens: %w", err)
	}
	return c.sendAndWait(ctx, c.routerAddr, data)
}

// sendAndWait signs and submits a transaction to `to` and blocks until
// its receipt is mined. Submission is serialized per client because the
// wallet's nonce is shared across concurrent trades on the same chain.
func (c *Client) sendAndWait(ctx context.Context, to common.Address, data []byte) (*types.Receipt, error) {
	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()

	nonce, err := c.rpc.PendingNonceAt(ctx, c.walletAddress)
	if err != nil {
		return nil, fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := c.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	msg := ethereum.CallMsg{From: c.walletAddress, To: &to, Data: data}
	gasLimit, err := c.rpc.EstimateGas(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}

	chainIDBig, err := c.rpc.NetworkID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch network id: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signer := types.LatestSignerForChainID(chainIDBig)
	signedTx, err := types.SignTx(tx, signer, c.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}

	if err := c.rpc.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("send tx: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, c.rpc, signedTx)
	if err != nil {
		return nil, fmt.Errorf("wait for receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("transaction %s reverted", signedTx.Hash().Hex())
	}
	return receipt, nil
}
