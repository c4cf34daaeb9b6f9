package minting

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"stableledger/core/events"
	"stableledger/native/access"
)

var zeroAddress common.Address

// Storage abstracts the subset of state manager functionality required by the
// engine.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	KVKeys(prefix []byte) ([][]byte, error)
}

// Token moves balances of the stable asset and the collateral assets.
type Token interface {
	Decimals(token common.Address) (uint8, error)
	BalanceOf(token, account common.Address) (*big.Int, error)
	Mint(token, to common.Address, amount *big.Int) error
	Burn(token, from common.Address, amount *big.Int) error
	Transfer(token, from, to common.Address, amount *big.Int) error
	TransferFrom(token, spender, from, to common.Address, amount *big.Int) error
}

// Registry answers whitelist and signer queries.
type Registry interface {
	IsWhitelisted(addr common.Address) (bool, error)
	TrustedSigner() (common.Address, error)
}

// FeedReader returns the USD price of a collateral asset.
type FeedReader interface {
	GetPrice(asset common.Address) (price *big.Int, decimals uint8, updatedAt int64, err error)
}

// StableOracle returns the stable/USD price.
type StableOracle interface {
	Latest() (price *big.Int, decimals uint8, updatedAt int64, err error)
}

// Authorizer is the capability table consulted at privileged entry points.
type Authorizer interface {
	Require(role access.Role, account common.Address) error
}

// RewardsDepositor receives income deposits under a snapshot id.
type RewardsDepositor interface {
	DepositRewards(caller common.Address, id [32]byte, amount *big.Int) error
}

// Config carries the immutable wiring of an engine.
type Config struct {
	// Address is the ledger account that holds collateral and escrowed stable
	// units. It doubles as the EIP-712 verifying contract.
	Address     common.Address
	StableToken common.Address
	ChainID     *big.Int
}

// Engine implements minting, redemption, income and fund accounting over the
// ledger state.
type Engine struct {
	state    Storage
	token    Token
	registry Registry
	auth     Authorizer
	feed     FeedReader
	noFeed   func(error) bool
	oracle   StableOracle
	noPrice  func(error) bool
	rewards  RewardsDepositor
	emitter  events.Emitter
	nowFn    func() int64

	address common.Address
	stable  common.Address
	domain  Domain
}

// NewEngine creates an engine with a no-op emitter. Collaborators are wired
// through the setters.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		address: cfg.Address,
		stable:  cfg.StableToken,
		domain:  Domain{ChainID: cloneBigInt(cfg.ChainID), VerifyingContract: cfg.Address},
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
		noFeed:  func(error) bool { return false },
		noPrice: func(error) bool { return false },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state Storage) { e.state = state }

func (e *Engine) SetToken(token Token) { e.token = token }

func (e *Engine) SetRegistry(registry Registry) { e.registry = registry }

func (e *Engine) SetAuthorizer(auth Authorizer) { e.auth = auth }

func (e *Engine) SetRewards(rewards RewardsDepositor) { e.rewards = rewards }

// SetFeed configures the per-asset price feed. noFeed classifies the feed
// errors that mean "this asset has no feed", which skip price checks instead
// of failing the operation.
func (e *Engine) SetFeed(feed FeedReader, noFeed func(error) bool) {
	e.feed = feed
	if noFeed == nil {
		noFeed = func(error) bool { return false }
	}
	e.noFeed = noFeed
}

// SetOracle configures the stable oracle. noPrice classifies the error the
// oracle returns before its first update; only that error skips the oracle.
func (e *Engine) SetOracle(oracle StableOracle, noPrice func(error) bool) {
	e.oracle = oracle
	if noPrice == nil {
		noPrice = func(error) bool { return false }
	}
	e.noPrice = noPrice
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// Address returns the ledger account holding collateral and escrow.
func (e *Engine) Address() common.Address { return e.address }

// StableToken returns the stable asset address.
func (e *Engine) StableToken() common.Address { return e.stable }

// Domain returns the EIP-712 domain orders must be signed under.
func (e *Engine) Domain() Domain { return e.domain }

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) expired(expiry uint64) bool {
	now := e.now()
	return now > 0 && uint64(now) > expiry
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) require(role access.Role, caller common.Address) error {
	if e.auth == nil {
		return access.ErrUnauthorized
	}
	return e.auth.Require(role, caller)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil || e.token == nil || e.registry == nil {
		return errNilState
	}
	return nil
}

func feeFor(amount *big.Int, bp uint64) *big.Int {
	if amount == nil || bp == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(bp))
	return fee.Quo(fee, big.NewInt(bpScale))
}
