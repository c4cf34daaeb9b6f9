package bank

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"stableledger/core/events"
)

var (
	ErrUnknownToken          = errors.New("bank: unknown token")
	ErrTokenExists           = errors.New("bank: token already registered")
	ErrInvalidAmount         = errors.New("bank: invalid amount")
	ErrInsufficientBalance   = errors.New("bank: insufficient balance")
	ErrInsufficientAllowance = errors.New("bank: insufficient allowance")
	ErrBlacklisted           = errors.New("bank: blacklisted")
	ErrZeroAddress           = errors.New("bank: zero address")
)

// Storage abstracts the subset of state manager functionality the book needs.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	KVKeys(prefix []byte) ([][]byte, error)
}

// Token describes a registered asset.
type Token struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
}

type storedToken struct {
	Symbol   string
	Decimals uint8
	Supply   *big.Int
}

var tokenPrefix = []byte("bank/token/")

func hexKey(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func tokenKey(token common.Address) []byte {
	return []byte(string(tokenPrefix) + hexKey(token))
}

func balanceKey(token, account common.Address) []byte {
	return []byte("bank/balance/" + hexKey(token) + "/" + hexKey(account))
}

func allowanceKey(token, owner, spender common.Address) []byte {
	return []byte("bank/allowance/" + hexKey(token) + "/" + hexKey(owner) + "/" + hexKey(spender))
}

func blacklistKey(token, account common.Address) []byte {
	return []byte("bank/blacklist/" + hexKey(token) + "/" + hexKey(account))
}

// Book is a multi-token balance book kept in ledger state.
type Book struct {
	store   Storage
	emitter events.Emitter
}

func NewBook(store Storage) *Book {
	return &Book{store: store, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter used by the book.
func (b *Book) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		b.emitter = events.NoopEmitter{}
		return
	}
	b.emitter = emitter
}

// RegisterToken adds a new token with zero supply.
func (b *Book) RegisterToken(token common.Address, symbol string, decimals uint8) error {
	if token == (common.Address{}) {
		return ErrZeroAddress
	}
	ok, err := b.store.KVGet(tokenKey(token), nil)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: %s", ErrTokenExists, token.Hex())
	}
	return b.store.KVPut(tokenKey(token), storedToken{
		Symbol:   strings.ToUpper(strings.TrimSpace(symbol)),
		Decimals: decimals,
		Supply:   big.NewInt(0),
	})
}

func (b *Book) loadToken(token common.Address) (*storedToken, error) {
	var stored storedToken
	ok, err := b.store.KVGet(tokenKey(token), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, token.Hex())
	}
	if stored.Supply == nil {
		stored.Supply = big.NewInt(0)
	}
	return &stored, nil
}

// Token returns the token metadata.
func (b *Book) Token(token common.Address) (*Token, error) {
	stored, err := b.loadToken(token)
	if err != nil {
		return nil, err
	}
	return &Token{Address: token, Symbol: stored.Symbol, Decimals: stored.Decimals}, nil
}

// Tokens lists every registered token.
func (b *Book) Tokens() ([]Token, error) {
	keys, err := b.store.KVKeys(tokenPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]Token, 0, len(keys))
	for _, key := range keys {
		token, err := b.Token(common.HexToAddress(string(key[len(tokenPrefix):])))
		if err != nil {
			return nil, err
		}
		out = append(out, *token)
	}
	return out, nil
}

// Decimals returns the token's decimal scale.
func (b *Book) Decimals(token common.Address) (uint8, error) {
	stored, err := b.loadToken(token)
	if err != nil {
		return 0, err
	}
	return stored.Decimals, nil
}

// TotalSupply returns the token's outstanding supply.
func (b *Book) TotalSupply(token common.Address) (*big.Int, error) {
	stored, err := b.loadToken(token)
	if err != nil {
		return nil, err
	}
	return stored.Supply, nil
}

// BalanceOf returns the account balance. Unknown accounts hold zero.
func (b *Book) BalanceOf(token, account common.Address) (*big.Int, error) {
	if _, err := b.loadToken(token); err != nil {
		return nil, err
	}
	return b.balance(token, account)
}

func (b *Book) balance(token, account common.Address) (*big.Int, error) {
	balance := new(big.Int)
	ok, err := b.store.KVGet(balanceKey(token, account), &balance)
	if err != nil {
		return nil, err
	}
	if !ok || balance == nil {
		return big.NewInt(0), nil
	}
	return balance, nil
}

func (b *Book) writeBalance(token, account common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return b.store.KVDelete(balanceKey(token, account))
	}
	return b.store.KVPut(balanceKey(token, account), amount)
}

// IsBlacklisted reports whether account is barred from moving token.
func (b *Book) IsBlacklisted(token, account common.Address) (bool, error) {
	var listed bool
	ok, err := b.store.KVGet(blacklistKey(token, account), &listed)
	if err != nil {
		return false, err
	}
	return ok && listed, nil
}

// SetBlacklisted flags or clears an account for token.
func (b *Book) SetBlacklisted(token, account common.Address, listed bool) error {
	if _, err := b.loadToken(token); err != nil {
		return err
	}
	if account == (common.Address{}) {
		return ErrZeroAddress
	}
	var err error
	if listed {
		err = b.store.KVPut(blacklistKey(token, account), true)
	} else {
		err = b.store.KVDelete(blacklistKey(token, account))
	}
	if err != nil {
		return err
	}
	b.emitter.Emit(events.Blacklisted{Token: token, Account: account, Listed: listed})
	return nil
}

func (b *Book) checkBlacklist(token common.Address, accounts ...common.Address) error {
	for _, account := range accounts {
		if account == (common.Address{}) {
			continue
		}
		listed, err := b.IsBlacklisted(token, account)
		if err != nil {
			return err
		}
		if listed {
			return fmt.Errorf("%w: %s", ErrBlacklisted, account.Hex())
		}
	}
	return nil
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// move is the single balance mutation path. A zero from mints and a zero to
// burns.
func (b *Book) move(token, from, to common.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	stored, err := b.loadToken(token)
	if err != nil {
		return err
	}
	if err := b.checkBlacklist(token, from, to); err != nil {
		return err
	}
	if amount.Sign() == 0 {
		return nil
	}
	if from != (common.Address{}) {
		balance, err := b.balance(token, from)
		if err != nil {
			return err
		}
		if balance.Cmp(amount) < 0 {
			return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from.Hex(), balance, amount)
		}
		if err := b.writeBalance(token, from, balance.Sub(balance, amount)); err != nil {
			return err
		}
	} else {
		stored.Supply = new(big.Int).Add(stored.Supply, amount)
	}
	if to != (common.Address{}) {
		balance, err := b.balance(token, to)
		if err != nil {
			return err
		}
		if err := b.writeBalance(token, to, balance.Add(balance, amount)); err != nil {
			return err
		}
	} else {
		stored.Supply = new(big.Int).Sub(stored.Supply, amount)
	}
	if from == (common.Address{}) || to == (common.Address{}) {
		if err := b.store.KVPut(tokenKey(token), stored); err != nil {
			return err
		}
	}
	b.emitter.Emit(events.Transfer{Token: token, From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// Mint credits new supply to account.
func (b *Book) Mint(token, to common.Address, amount *big.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	return b.move(token, common.Address{}, to, amount)
}

// Burn destroys supply held by account.
func (b *Book) Burn(token, from common.Address, amount *big.Int) error {
	if from == (common.Address{}) {
		return ErrZeroAddress
	}
	return b.move(token, from, common.Address{}, amount)
}

// Transfer moves a balance between two accounts.
func (b *Book) Transfer(token, from, to common.Address, amount *big.Int) error {
	if from == (common.Address{}) || to == (common.Address{}) {
		return ErrZeroAddress
	}
	return b.move(token, from, to, amount)
}

// Approve sets the spender allowance over owner's balance.
func (b *Book) Approve(token, owner, spender common.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return ErrZeroAddress
	}
	if _, err := b.loadToken(token); err != nil {
		return err
	}
	var err error
	if amount.Sign() == 0 {
		err = b.store.KVDelete(allowanceKey(token, owner, spender))
	} else {
		err = b.store.KVPut(allowanceKey(token, owner, spender), amount)
	}
	if err != nil {
		return err
	}
	b.emitter.Emit(events.Approval{Token: token, Owner: owner, Spender: spender, Amount: new(big.Int).Set(amount)})
	return nil
}

// Allowance returns the remaining amount spender may move from owner.
func (b *Book) Allowance(token, owner, spender common.Address) (*big.Int, error) {
	allowance := new(big.Int)
	ok, err := b.store.KVGet(allowanceKey(token, owner, spender), &allowance)
	if err != nil {
		return nil, err
	}
	if !ok || allowance == nil {
		return big.NewInt(0), nil
	}
	return allowance, nil
}

// TransferFrom moves owner's balance on behalf of spender, consuming allowance.
func (b *Book) TransferFrom(token, spender, from, to common.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	allowance, err := b.Allowance(token, from, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s approved %s, needs %s", ErrInsufficientAllowance, spender.Hex(), allowance, amount)
	}
	remaining := new(big.Int).Sub(allowance, amount)
	if remaining.Sign() == 0 {
		err = b.store.KVDelete(allowanceKey(token, from, spender))
	} else {
		err = b.store.KVPut(allowanceKey(token, from, spender), remaining)
	}
	if err != nil {
		return err
	}
	return b.Transfer(token, from, to, amount)
}
