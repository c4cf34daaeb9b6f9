package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"stableledger/core/events"
	"stableledger/core/genesis"
	"stableledger/core/state"
	"stableledger/core/types"
	"stableledger/native/access"
	"stableledger/native/bank"
	"stableledger/native/minting"
	"stableledger/native/oracle"
	"stableledger/native/registry"
	"stableledger/native/rewards"
	"stableledger/storage"
)

var ErrGenesisMismatch = errors.New("ledger: stored genesis does not match genesis file")

var (
	genesisKey  = []byte("ledger/genesis")
	sequenceKey = []byte("ledger/event-seq")
)

// Observer receives the outcome of every entry point.
type Observer interface {
	ObserveOperation(operation, outcome string)
	ObserveRedeemDecision(decision string)
}

type noopObserver struct{}

func (noopObserver) ObserveOperation(string, string) {}
func (noopObserver) ObserveRedeemDecision(string)    {}

type genesisMarker struct {
	ChainID uint64
	Ledger  common.Address
	Rewards common.Address
	Stable  common.Address
}

// Ledger composes the native modules over one staged state. Every mutating
// entry point runs inside a single state transaction under the ledger lock:
// either all of its writes and events land or none do.
type Ledger struct {
	mu       sync.RWMutex
	db       storage.Database
	state    *state.Manager
	spec     *genesis.GenesisSpec
	pending  *events.Buffer
	emitter  events.Emitter
	observer Observer
	logger   *slog.Logger
	nowFn    func() int64

	book     *bank.Book
	registry *registry.Registry
	access   *access.Table
	feed     *oracle.FeedRegistry
	oracle   *oracle.StableOracle
	minting  *minting.Engine
	rewards  *rewards.Engine
}

// NewLedger wires the native modules over db using the addresses in spec.
// Call Bootstrap before serving requests.
func NewLedger(db storage.Database, spec *genesis.GenesisSpec) (*Ledger, error) {
	if db == nil {
		return nil, fmt.Errorf("database must not be nil")
	}
	if spec == nil {
		return nil, fmt.Errorf("genesis spec must not be nil")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	mgr := state.NewManager(db)
	l := &Ledger{
		db:       db,
		state:    mgr,
		spec:     spec,
		pending:  new(events.Buffer),
		emitter:  events.NoopEmitter{},
		observer: noopObserver{},
		logger:   slog.Default(),
		nowFn:    func() int64 { return time.Now().Unix() },
		book:     bank.NewBook(mgr),
		registry: registry.New(mgr),
		access:   access.NewTable(mgr),
		feed:     oracle.NewFeedRegistry(mgr),
		oracle:   oracle.NewStableOracle(mgr),
	}

	l.minting = minting.NewEngine(minting.Config{
		Address:     spec.LedgerAddress(),
		StableToken: spec.StableAddress(),
		ChainID:     spec.ChainIDBig(),
	})
	l.minting.SetState(mgr)
	l.minting.SetToken(l.book)
	l.minting.SetRegistry(l.registry)
	l.minting.SetAuthorizer(l.access)
	l.minting.SetFeed(l.feed, func(err error) bool { return errors.Is(err, oracle.ErrNoFeed) })
	l.minting.SetOracle(l.oracle, func(err error) bool { return errors.Is(err, oracle.ErrNoPrice) })

	l.rewards = rewards.NewEngine(rewards.Config{
		Address:     spec.RewardsAddress(),
		StableToken: spec.StableAddress(),
		Minter:      spec.LedgerAddress(),
		ChainID:     spec.ChainIDBig(),
	})
	l.rewards.SetState(mgr)
	l.rewards.SetToken(l.book)
	l.rewards.SetSigner(l.registry)
	l.rewards.SetAuthorizer(l.access)
	l.minting.SetRewards(l.rewards)

	l.book.SetEmitter(l.pending)
	l.registry.SetEmitter(l.pending)
	l.access.SetEmitter(l.pending)
	l.feed.SetEmitter(l.pending)
	l.oracle.SetEmitter(l.pending)
	l.minting.SetEmitter(l.pending)
	l.rewards.SetEmitter(l.pending)
	l.SetNowFunc(l.nowFn)
	return l, nil
}

// SetEmitter routes committed events downstream. Nil discards them.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetObserver installs the operation observer. Nil disables observation.
func (l *Ledger) SetObserver(observer Observer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if observer == nil {
		l.observer = noopObserver{}
		return
	}
	l.observer = observer
}

func (l *Ledger) SetLogger(logger *slog.Logger) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if logger == nil {
		logger = slog.Default()
	}
	l.logger = logger
}

// SetNowFunc overrides the clock of every module. Intended for tests.
func (l *Ledger) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	l.nowFn = now
	l.minting.SetNowFunc(now)
	l.rewards.SetNowFunc(now)
	l.feed.SetNowFunc(now)
	l.oracle.SetNowFunc(now)
}

func (l *Ledger) marker() genesisMarker {
	return genesisMarker{
		ChainID: l.spec.ChainID,
		Ledger:  l.spec.LedgerAddress(),
		Rewards: l.spec.RewardsAddress(),
		Stable:  l.spec.StableAddress(),
	}
}

// Bootstrap applies the genesis spec on first start. On later starts it only
// checks that the stored genesis matches the genesis file's addresses. It reports
// whether genesis was applied.
func (l *Ledger) Bootstrap() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var stored genesisMarker
	ok, err := l.state.KVGet(genesisKey, &stored)
	if err != nil {
		return false, err
	}
	if ok {
		if stored != l.marker() {
			return false, ErrGenesisMismatch
		}
		return false, nil
	}
	err = l.run(func() error {
		if err := genesis.Apply(l.spec, genesis.Targets{
			Book:     l.book,
			Registry: l.registry,
			Access:   l.access,
			Minting:  l.minting,
			Rewards:  l.rewards,
		}); err != nil {
			return err
		}
		return l.state.KVPut(genesisKey, l.marker())
	})
	if err != nil {
		return false, fmt.Errorf("apply genesis: %w", err)
	}
	l.logger.Info("genesis applied",
		slog.Uint64("chain_id", l.spec.ChainID),
		slog.String("ledger", l.spec.LedgerAddress().Hex()),
		slog.String("rewards", l.spec.RewardsAddress().Hex()))
	return true, nil
}

// apply runs fn as one atomic operation and reports its outcome.
func (l *Ledger) apply(operation string, fn func() error) error {
	return l.applyDecision(operation, func() (string, error) { return "", fn() })
}

// applyDecision is apply for redeem settlements: a non-empty decision
// returned by a committed fn is reported while the lock is still held.
func (l *Ledger) applyDecision(operation string, fn func() (string, error)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var decision string
	err := l.run(func() (err error) {
		decision, err = fn()
		return err
	})
	if err == nil && decision != "" {
		l.observer.ObserveRedeemDecision(decision)
	}
	outcome := "ok"
	if err != nil {
		outcome = ErrorCode(err)
		l.logger.Debug("ledger operation failed",
			slog.String("operation", operation),
			slog.String("code", outcome),
			slog.Any("error", err))
	}
	l.observer.ObserveOperation(operation, outcome)
	return err
}

func (l *Ledger) run(fn func() error) error {
	if err := l.state.Begin(); err != nil {
		return err
	}
	l.pending.Reset()
	if err := fn(); err != nil {
		l.state.Discard()
		l.pending.Reset()
		return err
	}
	stamped, err := l.stamp(l.pending.Drain())
	if err != nil {
		l.state.Discard()
		return err
	}
	if err := l.state.Commit(); err != nil {
		l.state.Discard()
		return err
	}
	for _, evt := range stamped {
		l.emitter.Emit(evt)
	}
	return nil
}

// stamp assigns ledger-wide sequence numbers and the commit time to the
// operation's events. The sequence is persisted with the operation.
func (l *Ledger) stamp(pending []events.Event) ([]events.Event, error) {
	if len(pending) == 0 {
		return nil, nil
	}
	var seq uint64
	if _, err := l.state.KVGet(sequenceKey, &seq); err != nil {
		return nil, err
	}
	now := l.nowFn()
	out := make([]events.Event, 0, len(pending))
	for _, evt := range pending {
		payload := evt.Event()
		if payload == nil {
			continue
		}
		seq++
		stamped := &types.Event{
			Type:       payload.Type,
			Attributes: payload.Attributes,
			Sequence:   seq,
			Timestamp:  now,
		}
		out = append(out, events.Typed{Evt: stamped})
	}
	if err := l.state.KVPut(sequenceKey, seq); err != nil {
		return nil, err
	}
	return out, nil
}

// view runs a read under the shared lock so it never observes staged writes.
func (l *Ledger) view(fn func() error) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return fn()
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
