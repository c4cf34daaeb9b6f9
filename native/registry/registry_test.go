package registry

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"stableledger/core/events"
	"stableledger/core/state"
	"stableledger/storage"
)

func TestRegistryFlags(t *testing.T) {
	mgr := state.NewManager(storage.NewMemDB())
	if err := mgr.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	reg := New(mgr)
	buf := new(events.Buffer)
	reg.SetEmitter(buf)

	user := common.HexToAddress("0xabc")
	if ok, err := reg.IsWhitelisted(user); err != nil || ok {
		t.Fatalf("expected user not whitelisted: %v %v", ok, err)
	}
	if err := reg.SetWhitelisted(user, true); err != nil {
		t.Fatalf("whitelist: %v", err)
	}
	if ok, _ := reg.IsWhitelisted(user); !ok {
		t.Fatalf("expected user whitelisted")
	}
	if err := reg.SetWhitelisted(user, false); err != nil {
		t.Fatalf("unlist: %v", err)
	}
	if ok, _ := reg.IsWhitelisted(user); ok {
		t.Fatalf("expected user removed")
	}

	if err := reg.SetOperator(user, true); err != nil {
		t.Fatalf("operator: %v", err)
	}
	if ok, _ := reg.IsOperator(user); !ok {
		t.Fatalf("expected operator")
	}

	if err := reg.SetTrustedSigner(common.Address{}); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress, got %v", err)
	}
	if err := reg.SetTrustedSigner(user); err != nil {
		t.Fatalf("set signer: %v", err)
	}
	signer, err := reg.TrustedSigner()
	if err != nil || signer != user {
		t.Fatalf("unexpected signer %s: %v", signer.Hex(), err)
	}
	if got := len(buf.Drain()); got != 4 {
		t.Fatalf("expected 4 events, got %d", got)
	}
}
