package access

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"stableledger/core/state"
	"stableledger/storage"
)

func newTable(t *testing.T) (*Table, *state.Manager) {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	if err := mgr.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	return NewTable(mgr), mgr
}

func TestGrantRequiresAdmin(t *testing.T) {
	table, _ := newTable(t)
	admin := common.HexToAddress("0x01")
	user := common.HexToAddress("0x02")
	if err := table.Set(RoleAdmin, admin, true); err != nil {
		t.Fatalf("bootstrap admin: %v", err)
	}

	if err := table.Grant(user, RoleFundsManager, user); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := table.Grant(admin, RoleFundsManager, user); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := table.Require(RoleFundsManager, user); err != nil {
		t.Fatalf("require after grant: %v", err)
	}
	members, err := table.Members(RoleFundsManager)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 1 || members[0] != user {
		t.Fatalf("unexpected members: %v", members)
	}

	if err := table.Revoke(admin, RoleFundsManager, user); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if ok, _ := table.HasRole(RoleFundsManager, user); ok {
		t.Fatalf("role should be revoked")
	}
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" funds_manager ")
	if err != nil || role != RoleFundsManager {
		t.Fatalf("unexpected parse result: %v %v", role, err)
	}
	if _, err := ParseRole("ROOT"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestSetRejectsZeroAddress(t *testing.T) {
	table, _ := newTable(t)
	if err := table.Set(RoleAdmin, common.Address{}, true); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress, got %v", err)
	}
}
