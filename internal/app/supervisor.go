// Package app wires the Chain Clients, State Store, Evaluator, In-Flight
// Cache, and Executor into the steady-state loop described in
// spec.md §4.6.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ethereum/go-ethereum/log"

	"github.com/onlyswaps/solver/internal/chain"
	"github.com/onlyswaps/solver/internal/executor"
	"github.com/onlyswaps/solver/internal/inflight"
	"github.com/onlyswaps/solver/internal/model"
	"github.com/onlyswaps/solver/internal/store"
)

// errAllStreamsClosed is the sole fatal steady-state condition named
// in spec.md §7: every chain's block stream terminated on its own.
var errAllStreamsClosed = errors.New("all chain block streams closed")

// Evaluator is implemented by both the v1 and v2 evaluators; the
// supervisor is agnostic to which one is configured.
type Evaluator interface {
	Evaluate(chainID uint64, clones map[uint64]*model.ChainState, inFlight *inflight.Cache) []*model.Trade
}

// ChainClient is the subset of *chain.Client the Supervisor depends
// on, narrow enough to fake in tests.
type ChainClient interface {
	Subscribe(ctx context.Context) (<-chan chain.BlockEvent, error)
	FetchState(ctx context.Context) (*model.ChainState, error)
	Close()
}

// Supervisor owns every process-wide component and drives the
// fetch -> evaluate -> execute loop, one tick per chain block event.
type Supervisor struct {
	clients   map[uint64]ChainClient
	store     *store.State
	evaluator Evaluator
	executor  *executor.Executor
	inFlight  *inflight.Cache
}

// New builds a Supervisor over an already-constructed set of chain
// clients.
func New(clients map[uint64]ChainClient, evaluator Evaluator, exec *executor.Executor, inFlight *inflight.Cache) *Supervisor {
	return &Supervisor{
		clients:   clients,
		store:     store.New(),
		evaluator: evaluator,
		executor:  exec,
		inFlight:  inFlight,
	}
}

// Run primes the State Store, fans in every chain's block stream, and
// processes ticks until ctx is cancelled or a shutdown signal arrives.
// It returns nil on a clean shutdown and an error if every block
// stream terminated on its own (the sole fatal steady-state condition
// per spec.md §7).
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.watchSignals(cancel)

	if err := s.primeState(ctx); err != nil {
		return err
	}

	events, err := s.fanInBlocks(ctx)
	if err != nil {
		return err
	}

	streamsAlive := len(s.clients)
	for {
		select {
		case <-ctx.Done():
			s.closeClients()
			return nil

		case event, ok := <-events:
			if !ok {
				s.closeClients()
				return nil // fan-in goroutine exited after ctx cancellation
			}
			if event.closed {
				streamsAlive--
				if streamsAlive == 0 {
					s.closeClients()
					return errAllStreamsClosed
				}
				continue
			}
			s.tick(ctx, event.blockEvent)
		}
	}
}

// primeState calls fetchState once per chain at startup, per
// spec.md §4.6.
func (s *Supervisor) primeState(ctx context.Context) error {
	for chainID, client := range s.clients {
		snapshot, err := client.FetchState(ctx)
		if err != nil {
			return err
		}
		s.store.Update(chainID, snapshot)
	}
	return nil
}

type fanInEvent struct {
	blockEvent chain.BlockEvent
	closed     bool // true means the source subscription ended; blockEvent is unset
}

// fanInBlocks starts one subscription per chain and merges their
// events onto a single channel, tagging channel closure so Run can
// detect when every stream has ended.
func (s *Supervisor) fanInBlocks(ctx context.Context) (<-chan fanInEvent, error) {
	out := make(chan fanInEvent)
	var wg sync.WaitGroup

	for chainID, client := range s.clients {
		stream, err := client.Subscribe(ctx)
		if err != nil {
			return nil, err
		}

		wg.Add(1)
		go func(chainID uint64, stream <-chan chain.BlockEvent) {
			defer wg.Done()
			for {
				select {
				case event, ok := <-stream:
					if !ok {
						select {
						case out <- fanInEvent{closed: true}:
						case <-ctx.Done():
						}
						return
					}
					select {
					case out <- fanInEvent{blockEvent: event}:
					case <-ctx.Done():
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}(chainID, stream)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}

// tick implements the four steps of spec.md §4.6 for one block event.
func (s *Supervisor) tick(ctx context.Context, event chain.BlockEvent) {
	client, ok := s.clients[event.ChainID]
	if !ok {
		return
	}

	snapshot, err := client.FetchState(ctx)
	if err != nil {
		log.Warn("tick: fetchState failed, skipping", "chainId", event.ChainID, "block", event.Number, "err", err)
		return
	}
	s.store.Update(event.ChainID, snapshot)

	clones := s.store.Clone()
	trades := s.evaluator.Evaluate(event.ChainID, clones, s.inFlight)
	if len(trades) == 0 {
		return
	}

	s.executor.Execute(ctx, trades)
}

func (s *Supervisor) closeClients() {
	for _, client := range s.clients {
		client.Close()
	}
}

// watchSignals cancels ctx (via the supplied cancel func) on SIGINT,
// SIGTERM, or SIGUSR2, per spec.md §4.6.
func (s *Supervisor) watchSignals(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR2)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", "signal", sig)
		cancel()
	}()
}
