package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"stableledger/core/events"
)

// Decimals is the fixed USD scale of both reference price sources.
const Decimals uint8 = 8

var (
	ErrNoFeed       = errors.New("oracle: no feed for asset")
	ErrInvalidPrice = errors.New("oracle: invalid price")
	ErrNoPrice      = errors.New("oracle: price not published")
)

// Storage abstracts the subset of state manager functionality the oracles need.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

type storedPrice struct {
	Price     *big.Int
	UpdatedAt uint64
}

type base struct {
	store   Storage
	emitter events.Emitter
	nowFn   func() int64
}

func newBase(store Storage) base {
	return base{
		store:   store,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc overrides the time source. Passing nil restores the wall clock.
func (b *base) SetNowFunc(now func() int64) {
	if now == nil {
		b.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	b.nowFn = now
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (b *base) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		b.emitter = events.NoopEmitter{}
		return
	}
	b.emitter = emitter
}

func (b *base) write(key []byte, source string, asset common.Address, price *big.Int) error {
	if price == nil || price.Sign() < 0 {
		return ErrInvalidPrice
	}
	now := b.nowFn()
	if err := b.store.KVPut(key, storedPrice{Price: new(big.Int).Set(price), UpdatedAt: uint64(now)}); err != nil {
		return err
	}
	b.emitter.Emit(events.PriceUpdated{Source: source, Asset: asset, Price: price.String(), UpdatedAt: now})
	return nil
}

func (b *base) read(key []byte) (*big.Int, int64, bool, error) {
	var stored storedPrice
	ok, err := b.store.KVGet(key, &stored)
	if err != nil || !ok {
		return nil, 0, ok, err
	}
	price := stored.Price
	if price == nil {
		price = big.NewInt(0)
	}
	return price, int64(stored.UpdatedAt), true, nil
}

// FeedRegistry publishes a USD price per collateral asset.
type FeedRegistry struct {
	base
}

func NewFeedRegistry(store Storage) *FeedRegistry {
	return &FeedRegistry{base: newBase(store)}
}

func feedKey(asset common.Address) []byte {
	return []byte("oracle/feed/" + strings.ToLower(asset.Hex()))
}

// SetPrice records a price for asset stamped with the current time.
func (f *FeedRegistry) SetPrice(asset common.Address, price *big.Int) error {
	return f.write(feedKey(asset), "feed", asset, price)
}

// RemoveFeed drops the asset's feed so price checks are skipped for it.
func (f *FeedRegistry) RemoveFeed(asset common.Address) error {
	return f.store.KVDelete(feedKey(asset))
}

// GetPrice returns the latest price, its decimals and update time. ErrNoFeed
// is returned when the asset has never been priced.
func (f *FeedRegistry) GetPrice(asset common.Address) (*big.Int, uint8, int64, error) {
	price, updatedAt, ok, err := f.read(feedKey(asset))
	if err != nil {
		return nil, 0, 0, err
	}
	if !ok {
		return nil, 0, 0, fmt.Errorf("%w: %s", ErrNoFeed, asset.Hex())
	}
	return price, Decimals, updatedAt, nil
}

// StableOracle publishes the ledger-wide stable/USD price.
type StableOracle struct {
	base
}

var stablePriceKey = []byte("oracle/stable")

func NewStableOracle(store Storage) *StableOracle {
	return &StableOracle{base: newBase(store)}
}

// UpdatePrice records the stable/USD price stamped with the current time.
func (o *StableOracle) UpdatePrice(price *big.Int) error {
	return o.write(stablePriceKey, "stable", common.Address{}, price)
}

// Latest returns the price, its decimals and the last update time. ErrNoPrice
// is returned before the first update.
func (o *StableOracle) Latest() (*big.Int, uint8, int64, error) {
	price, updatedAt, ok, err := o.read(stablePriceKey)
	if err != nil {
		return nil, 0, 0, err
	}
	if !ok {
		return nil, 0, 0, ErrNoPrice
	}
	return price, Decimals, updatedAt, nil
}
