package oracle

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"stableledger/core/state"
	"stableledger/storage"
)

func newStore(t *testing.T) *state.Manager {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	if err := mgr.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	return mgr
}

func TestFeedRegistry(t *testing.T) {
	feed := NewFeedRegistry(newStore(t))
	feed.SetNowFunc(func() int64 { return 1_700_000_000 })
	asset := common.HexToAddress("0x1")

	if _, _, _, err := feed.GetPrice(asset); !errors.Is(err, ErrNoFeed) {
		t.Fatalf("expected ErrNoFeed, got %v", err)
	}
	if err := feed.SetPrice(asset, big.NewInt(-1)); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
	if err := feed.SetPrice(asset, big.NewInt(99_980_000)); err != nil {
		t.Fatalf("set price: %v", err)
	}
	price, dec, updatedAt, err := feed.GetPrice(asset)
	if err != nil {
		t.Fatalf("get price: %v", err)
	}
	if price.Int64() != 99_980_000 || dec != 8 || updatedAt != 1_700_000_000 {
		t.Fatalf("unexpected feed reading: %s %d %d", price, dec, updatedAt)
	}
	if err := feed.RemoveFeed(asset); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, _, _, err := feed.GetPrice(asset); !errors.Is(err, ErrNoFeed) {
		t.Fatalf("expected ErrNoFeed after removal, got %v", err)
	}
}

func TestStableOracle(t *testing.T) {
	oracle := NewStableOracle(newStore(t))
	oracle.SetNowFunc(func() int64 { return 42 })
	if _, _, _, err := oracle.Latest(); !errors.Is(err, ErrNoPrice) {
		t.Fatalf("expected ErrNoPrice, got %v", err)
	}
	if err := oracle.UpdatePrice(big.NewInt(100_000_000)); err != nil {
		t.Fatalf("update: %v", err)
	}
	price, dec, at, err := oracle.Latest()
	if err != nil || price.Int64() != 100_000_000 || dec != Decimals || at != 42 {
		t.Fatalf("unexpected oracle reading: %v %d %d %v", price, dec, at, err)
	}
}
