package rewards

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"stableledger/core/events"
	"stableledger/native/access"
)

var (
	ErrInvalidParams    = errors.New("rewards: invalid params")
	ErrInvalidClaimer   = errors.New("rewards: invalid claimer")
	ErrInvalidSignature = errors.New("rewards: invalid signature")
	ErrZeroRewards      = errors.New("rewards: zero rewards")
	ErrUnknownRewards   = errors.New("rewards: unknown rewards")
	ErrZeroAddress      = errors.New("rewards: zero address")

	errNilState = errors.New("rewards engine: state not configured")
)

// Storage abstracts the subset of state manager functionality required by the
// engine.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	KVKeys(prefix []byte) ([][]byte, error)
}

// Token moves stable units out of the rewards vault.
type Token interface {
	Transfer(token, from, to common.Address, amount *big.Int) error
}

// Signer resolves the account trusted to sign claims.
type Signer interface {
	TrustedSigner() (common.Address, error)
}

// Authorizer is the capability table consulted at privileged entry points.
type Authorizer interface {
	Require(role access.Role, account common.Address) error
}

// Reward is one pool of claimable stable units. Vault is the account the
// pool's units were deposited into; claims and sweeps are paid from it.
type Reward struct {
	ID        [32]byte
	Amount    *big.Int
	Finalized bool
	Expiry    int64
	Vault     common.Address
}

// Expired reports whether the pool closed before now.
func (r *Reward) Expired(now int64) bool {
	return r.Expiry > 0 && r.Expiry < now
}

type storedReward struct {
	Amount    *big.Int
	Finalized bool
	Expiry    uint64
	Vault     common.Address `rlp:"optional"`
}

var (
	rewardPrefix  = []byte("rewards/pool/")
	claimedPrefix = []byte("rewards/claimed/")
	vaultKey      = []byte("rewards/vault")
)

func rewardKey(id [32]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", rewardPrefix, id[:]))
}

func claimedKey(id [32]byte, claimer common.Address) []byte {
	return []byte(fmt.Sprintf("%s%x/%s", claimedPrefix, id[:], strings.ToLower(claimer.Hex())))
}

// Config carries the immutable wiring of an engine.
type Config struct {
	// Address identifies the distributor in claim signatures and is the
	// default vault.
	Address     common.Address
	StableToken common.Address
	// Minter is the only caller allowed to deposit rewards.
	Minter  common.Address
	ChainID *big.Int
}

// Engine pools income under snapshot ids and pays signed claims.
type Engine struct {
	state   Storage
	token   Token
	signer  Signer
	auth    Authorizer
	emitter events.Emitter
	nowFn   func() int64

	cfg Config
}

// NewEngine creates an engine with a no-op emitter.
func NewEngine(cfg Config) *Engine {
	if cfg.ChainID == nil {
		cfg.ChainID = big.NewInt(0)
	}
	return &Engine{
		cfg:     cfg,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

func (e *Engine) SetState(state Storage) { e.state = state }

func (e *Engine) SetToken(token Token) { e.token = token }

func (e *Engine) SetSigner(signer Signer) { e.signer = signer }

func (e *Engine) SetAuthorizer(auth Authorizer) { e.auth = auth }

// SetNowFunc overrides the time source used by the engine.
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

// Address returns the distributor identity used in claim signatures.
func (e *Engine) Address() common.Address { return e.cfg.Address }

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil || e.token == nil {
		return errNilState
	}
	return nil
}

func (e *Engine) require(role access.Role, caller common.Address) error {
	if e.auth == nil {
		return access.ErrUnauthorized
	}
	return e.auth.Require(role, caller)
}

// Vault returns the account holding pooled rewards.
func (e *Engine) Vault() (common.Address, error) {
	if e == nil || e.state == nil {
		return common.Address{}, errNilState
	}
	var vault common.Address
	ok, err := e.state.KVGet(vaultKey, &vault)
	if err != nil {
		return common.Address{}, err
	}
	if !ok || vault == (common.Address{}) {
		return e.cfg.Address, nil
	}
	return vault, nil
}

// SetVault sets the account future deposits land in. Pools already funded
// keep paying from the account they were deposited into. Callers are
// expected to have checked authority.
func (e *Engine) SetVault(vault common.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if vault == (common.Address{}) {
		return ErrZeroAddress
	}
	return e.state.KVPut(vaultKey, vault)
}

func (e *Engine) loadReward(id [32]byte) (*Reward, error) {
	var stored storedReward
	if _, err := e.state.KVGet(rewardKey(id), &stored); err != nil {
		return nil, err
	}
	amount := stored.Amount
	if amount == nil {
		amount = big.NewInt(0)
	}
	return &Reward{ID: id, Amount: amount, Finalized: stored.Finalized, Expiry: int64(stored.Expiry), Vault: stored.Vault}, nil
}

// payer returns the account holding r's units. Pools stored before a vault
// was recorded fall back to the current vault.
func (e *Engine) payer(r *Reward) (common.Address, error) {
	if r.Vault != (common.Address{}) {
		return r.Vault, nil
	}
	return e.Vault()
}

func (e *Engine) storeReward(r *Reward) error {
	return e.state.KVPut(rewardKey(r.ID), storedReward{
		Amount:    new(big.Int).Set(r.Amount),
		Finalized: r.Finalized,
		Expiry:    uint64(r.Expiry),
		Vault:     r.Vault,
	})
}

// Reward returns the pool for id. Unknown ids read as an empty open pool.
func (e *Engine) Reward(id [32]byte) (*Reward, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadReward(id)
}

// Claimed reports whether claimer has already drawn from id.
func (e *Engine) Claimed(id [32]byte, claimer common.Address) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	var claimed bool
	ok, err := e.state.KVGet(claimedKey(id, claimer), &claimed)
	if err != nil {
		return false, err
	}
	return ok && claimed, nil
}

// DepositRewards adds amount to the pool for id. The units must already sit
// in the current vault. When the pool was funded through an earlier vault its
// outstanding balance is moved to the current one so the pool keeps a single
// paying account. Only the configured minter may deposit.
func (e *Engine) DepositRewards(caller common.Address, id [32]byte, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if caller != e.cfg.Minter {
		return fmt.Errorf("%w: %s is not the minter", access.ErrUnauthorized, caller.Hex())
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidParams
	}
	reward, err := e.loadReward(id)
	if err != nil {
		return err
	}
	vault, err := e.Vault()
	if err != nil {
		return err
	}
	if reward.Vault != (common.Address{}) && reward.Vault != vault && reward.Amount.Sign() > 0 {
		if err := e.token.Transfer(e.cfg.StableToken, reward.Vault, vault, reward.Amount); err != nil {
			return err
		}
	}
	reward.Vault = vault
	reward.Amount = new(big.Int).Add(reward.Amount, amount)
	if err := e.storeReward(reward); err != nil {
		return err
	}
	e.emitter.Emit(events.RewardsDeposited{ID: id, Amount: new(big.Int).Set(amount), Timestamp: e.now()})
	return nil
}

// FinalizeRewards opens the pool for claims. A positive claim duration sets
// the expiry relative to now.
func (e *Engine) FinalizeRewards(caller common.Address, id [32]byte, claimDuration uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.require(access.RoleRewardsManager, caller); err != nil {
		return err
	}
	reward, err := e.loadReward(id)
	if err != nil {
		return err
	}
	if reward.Finalized {
		return ErrUnknownRewards
	}
	reward.Finalized = true
	if claimDuration > 0 {
		reward.Expiry = e.now() + int64(claimDuration)
	}
	if err := e.storeReward(reward); err != nil {
		return err
	}
	e.emitter.Emit(events.RewardsFinalized{ID: id, Expiry: reward.Expiry})
	return nil
}

// WithdrawExpiredRewards sweeps the remainder of an expired pool to to.
func (e *Engine) WithdrawExpiredRewards(caller common.Address, id [32]byte, to common.Address) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.require(access.RoleRewardsManager, caller); err != nil {
		return nil, err
	}
	if to == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	reward, err := e.loadReward(id)
	if err != nil {
		return nil, err
	}
	if !reward.Finalized || reward.Expiry == 0 || !reward.Expired(e.now()) || reward.Amount.Sign() == 0 {
		return nil, ErrUnknownRewards
	}
	vault, err := e.payer(reward)
	if err != nil {
		return nil, err
	}
	amount := new(big.Int).Set(reward.Amount)
	reward.Amount = big.NewInt(0)
	if err := e.storeReward(reward); err != nil {
		return nil, err
	}
	if err := e.token.Transfer(e.cfg.StableToken, vault, to, amount); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.RewardsExpiredWithdrawn{ID: id, To: to, Amount: new(big.Int).Set(amount)})
	return amount, nil
}
