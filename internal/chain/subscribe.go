package chain

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
)

// pollInterval is the fallback polling cadence when a native push
// subscription is unavailable or silent, per spec.md §4.1.
const pollInterval = 2 * time.Second

// BlockEvent is one tuple emitted by a chain's block stream.
type BlockEvent struct {
	ChainID uint64
	Number  uint64
}

// Subscribe returns a lazy, infinite, non-restartable sequence of block
// events for this chain: monotonic and gap-free from the block observed
// at subscription start. It combines any native push subscription with
// a polling fallback; if both deliver the same block, it is emitted
// exactly once.
func (c *Client) Subscribe(ctx context.Context) (<-chan BlockEvent, error) {
	start, err := c.rpc.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan BlockEvent)
	go c.runSubscription(ctx, out, start)
	return out, nil
}

type blockCursor struct {
	mu   sync.Mutex
	last uint64 // last emitted block number; 0 means "none yet"
}

func (c *Client) runSubscription(ctx context.Context, out chan<- BlockEvent, startBlock uint64) {
	defer close(out)

	cursor := &blockCursor{last: startBlock - 1}
	if startBlock == 0 {
		cursor.last = 0
	}

	headers := make(chan *types.Header)
	sub, subErr := c.rpc.SubscribeNewHead(ctx, headers)
	if subErr != nil {
		log.Warn("native block subscription unavailable, relying on polling", "chainId", c.chainID, "err", subErr)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if sub != nil {
				sub.Unsubscribe()
			}
			return

		case header, ok := <-headers:
			if !ok {
				headers = nil
				continue
			}
			c.emitUpTo(ctx, out, cursor, header.Number.Uint64())

		case err, ok := <-subErrCh(sub):
			if !ok {
				continue
			}
			log.Warn("block subscription dropped, resubscribing; polling continues meanwhile", "chainId", c.chainID, "err", err)
			sub = nil
			if resub, resubErr := c.rpc.SubscribeNewHead(ctx, headers); resubErr == nil {
				sub = resub
			}

		case <-ticker.C:
			latest, err := c.rpc.BlockNumber(ctx)
			if err != nil {
				log.Warn("poll fallback failed to fetch block number", "chainId", c.chainID, "err", err)
				continue
			}
			c.emitUpTo(ctx, out, cursor, latest)
		}
	}
}

// subErrCh returns sub.Err() if sub is non-nil, or a nil channel
// (which blocks forever in a select) otherwise.
func subErrCh(sub ethereum.Subscription) <-chan error {
	if sub == nil {
		return nil
	}
	return sub.Err()
}

// emitUpTo emits every block number strictly greater than the cursor's
// last-emitted value, up to and including latest, in ascending order.
// This is what gives resume-after-reconnect its catch-up ordering and
// what makes push/poll emit each block exactly once.
func (c *Client) emitUpTo(ctx context.Context, out chan<- BlockEvent, cursor *blockCursor, latest uint64) {
	cursor.mu.Lock()
	defer cursor.mu.Unlock()

	for n := cursor.last + 1; n <= latest; n++ {
		select {
		case out <- BlockEvent{ChainID: c.chainID, Number: n}:
			cursor.last = n
		case <-ctx.Done():
			return
		}
	}
}
