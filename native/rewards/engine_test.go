package rewards

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"stableledger/core/events"
	"stableledger/core/state"
	"stableledger/crypto"
	"stableledger/native/access"
	"stableledger/native/bank"
	"stableledger/native/registry"
	"stableledger/storage"
)

var (
	stableToken = common.HexToAddress("0x5000")
	minter      = common.HexToAddress("0x6000")
	distributor = common.HexToAddress("0x7000")
	manager     = common.HexToAddress("0x8000")
	chainID     = big.NewInt(31337)
)

type harness struct {
	engine  *Engine
	book    *bank.Book
	signer  *crypto.PrivateKey
	claimer *crypto.PrivateKey
	events  *events.Buffer
	now     int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	if err := mgr.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	book := bank.NewBook(mgr)
	if err := book.RegisterToken(stableToken, "USD", 18); err != nil {
		t.Fatalf("register: %v", err)
	}
	reg := registry.New(mgr)
	signer, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("signer key: %v", err)
	}
	if err := reg.SetTrustedSigner(signer.Address()); err != nil {
		t.Fatalf("set signer: %v", err)
	}
	claimer, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("claimer key: %v", err)
	}
	table := access.NewTable(mgr)
	if err := table.Set(access.RoleRewardsManager, manager, true); err != nil {
		t.Fatalf("grant: %v", err)
	}

	h := &harness{book: book, signer: signer, claimer: claimer, events: new(events.Buffer), now: 1_700_000_000}
	engine := NewEngine(Config{Address: distributor, StableToken: stableToken, Minter: minter, ChainID: chainID})
	engine.SetState(mgr)
	engine.SetToken(book)
	engine.SetSigner(reg)
	engine.SetAuthorizer(table)
	engine.SetEmitter(h.events)
	engine.SetNowFunc(func() int64 { return h.now })
	h.engine = engine
	return h
}

func snapshot(name string) [32]byte {
	var id [32]byte
	copy(id[:], name)
	return id
}

func (h *harness) deposit(t *testing.T, id [32]byte, amount *big.Int) {
	t.Helper()
	if err := h.book.Mint(stableToken, distributor, amount); err != nil {
		t.Fatalf("fund vault: %v", err)
	}
	if err := h.engine.DepositRewards(minter, id, amount); err != nil {
		t.Fatalf("deposit: %v", err)
	}
}

func (h *harness) signedClaim(t *testing.T, key *crypto.PrivateKey, req ClaimRequest) []byte {
	t.Helper()
	sig, err := SignClaim(chainID, distributor, req, key)
	if err != nil {
		t.Fatalf("sign claim: %v", err)
	}
	return sig
}

func TestDepositRequiresMinter(t *testing.T) {
	h := newHarness(t)
	err := h.engine.DepositRewards(manager, snapshot("test"), big.NewInt(1))
	if !errors.Is(err, access.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestClaimPaysExactlyDeposited(t *testing.T) {
	h := newHarness(t)
	id := snapshot("test")
	two := big.NewInt(2)
	h.deposit(t, id, two)
	if err := h.engine.FinalizeRewards(manager, id, 0); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	claimer := h.claimer.Address()
	req := ClaimRequest{Claimer: claimer, IDs: [][32]byte{id}, Amounts: []*big.Int{two}}
	sig := h.signedClaim(t, h.signer, req)
	total, err := h.engine.ClaimRewards(claimer, req, sig)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if total.Cmp(two) != 0 {
		t.Fatalf("expected claim of 2, got %s", total)
	}
	balance, err := h.book.BalanceOf(stableToken, claimer)
	if err != nil || balance.Cmp(two) != 0 {
		t.Fatalf("unexpected claimer balance %v: %v", balance, err)
	}

	if _, err := h.engine.ClaimRewards(claimer, req, sig); !errors.Is(err, ErrZeroRewards) {
		t.Fatalf("expected ErrZeroRewards on second claim, got %v", err)
	}
}

func TestClaimCapsAtRemainingAndOncePerClaimer(t *testing.T) {
	h := newHarness(t)
	id := snapshot("cap")
	h.deposit(t, id, big.NewInt(10))
	if err := h.engine.FinalizeRewards(manager, id, 0); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	claimer := h.claimer.Address()
	req := ClaimRequest{Claimer: claimer, IDs: [][32]byte{id}, Amounts: []*big.Int{big.NewInt(4)}}
	if _, err := h.engine.ClaimRewards(claimer, req, h.signedClaim(t, h.signer, req)); err != nil {
		t.Fatalf("partial claim: %v", err)
	}
	// a partial draw still closes the pool for this claimer
	again := ClaimRequest{Claimer: claimer, IDs: [][32]byte{id}, Amounts: []*big.Int{big.NewInt(6)}}
	if _, err := h.engine.ClaimRewards(claimer, again, h.signedClaim(t, h.signer, again)); !errors.Is(err, ErrZeroRewards) {
		t.Fatalf("expected ErrZeroRewards, got %v", err)
	}

	other, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	large := ClaimRequest{Claimer: other.Address(), IDs: [][32]byte{id}, Amounts: []*big.Int{big.NewInt(100)}}
	total, err := h.engine.ClaimRewards(other.Address(), large, h.signedClaim(t, h.signer, large))
	if err != nil {
		t.Fatalf("second claimer: %v", err)
	}
	if total.Int64() != 6 {
		t.Fatalf("expected remaining 6, got %s", total)
	}
}

func TestClaimValidation(t *testing.T) {
	h := newHarness(t)
	id := snapshot("test")
	claimer := h.claimer.Address()

	mismatch := ClaimRequest{Claimer: claimer, IDs: [][32]byte{id}, Amounts: nil}
	if _, err := h.engine.ClaimRewards(claimer, mismatch, nil); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}

	req := ClaimRequest{Claimer: claimer, IDs: [][32]byte{id}, Amounts: []*big.Int{big.NewInt(1)}}
	if _, err := h.engine.ClaimRewards(manager, req, h.signedClaim(t, h.signer, req)); !errors.Is(err, ErrInvalidClaimer) {
		t.Fatalf("expected ErrInvalidClaimer, got %v", err)
	}
	if _, err := h.engine.ClaimRewards(claimer, req, h.signedClaim(t, h.claimer, req)); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	// unknown pool
	if _, err := h.engine.ClaimRewards(claimer, req, h.signedClaim(t, h.signer, req)); !errors.Is(err, ErrZeroRewards) {
		t.Fatalf("expected ErrZeroRewards, got %v", err)
	}
	// deposited but not finalized
	h.deposit(t, id, big.NewInt(5))
	if _, err := h.engine.ClaimRewards(claimer, req, h.signedClaim(t, h.signer, req)); !errors.Is(err, ErrZeroRewards) {
		t.Fatalf("expected ErrZeroRewards before finalize, got %v", err)
	}
}

func TestFinalizeOnce(t *testing.T) {
	h := newHarness(t)
	id := snapshot("test")
	if err := h.engine.FinalizeRewards(h.claimer.Address(), id, 0); !errors.Is(err, access.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := h.engine.FinalizeRewards(manager, id, 10); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	reward, err := h.engine.Reward(id)
	if err != nil {
		t.Fatalf("reward: %v", err)
	}
	if !reward.Finalized || reward.Expiry != h.now+10 {
		t.Fatalf("unexpected reward: %+v", reward)
	}
	if err := h.engine.FinalizeRewards(manager, id, 0); !errors.Is(err, ErrUnknownRewards) {
		t.Fatalf("expected ErrUnknownRewards, got %v", err)
	}
}

func TestWithdrawExpiredRewards(t *testing.T) {
	h := newHarness(t)
	id := snapshot("test")
	sink := common.HexToAddress("0x9999")
	h.deposit(t, id, big.NewInt(2))

	if _, err := h.engine.WithdrawExpiredRewards(manager, id, sink); !errors.Is(err, ErrUnknownRewards) {
		t.Fatalf("expected ErrUnknownRewards before finalize, got %v", err)
	}
	if err := h.engine.FinalizeRewards(manager, id, 60); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if _, err := h.engine.WithdrawExpiredRewards(manager, id, sink); !errors.Is(err, ErrUnknownRewards) {
		t.Fatalf("expected ErrUnknownRewards before expiry, got %v", err)
	}

	h.now += 61
	amount, err := h.engine.WithdrawExpiredRewards(manager, id, sink)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if amount.Int64() != 2 {
		t.Fatalf("expected 2 swept, got %s", amount)
	}
	balance, _ := h.book.BalanceOf(stableToken, sink)
	if balance.Int64() != 2 {
		t.Fatalf("unexpected sink balance %s", balance)
	}
	if _, err := h.engine.WithdrawExpiredRewards(manager, id, sink); !errors.Is(err, ErrUnknownRewards) {
		t.Fatalf("expected ErrUnknownRewards on second sweep, got %v", err)
	}

	claimer := h.claimer.Address()
	req := ClaimRequest{Claimer: claimer, IDs: [][32]byte{id}, Amounts: []*big.Int{big.NewInt(1)}}
	if _, err := h.engine.ClaimRewards(claimer, req, h.signedClaim(t, h.signer, req)); !errors.Is(err, ErrZeroRewards) {
		t.Fatalf("expected ErrZeroRewards after expiry, got %v", err)
	}
}

func TestWithdrawRequiresExpiry(t *testing.T) {
	h := newHarness(t)
	id := snapshot("forever")
	h.deposit(t, id, big.NewInt(3))
	if err := h.engine.FinalizeRewards(manager, id, 0); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	h.now += 1_000_000
	if _, err := h.engine.WithdrawExpiredRewards(manager, id, manager); !errors.Is(err, ErrUnknownRewards) {
		t.Fatalf("expected ErrUnknownRewards without expiry, got %v", err)
	}
}
