package access

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"stableledger/core/events"
)

// Role names a capability held by a set of principals.
type Role string

const (
	RoleAdmin             Role = "DEFAULT_ADMIN"
	RoleSettingsManager   Role = "SETTINGS_MANAGER"
	RoleFundsManager      Role = "FUNDS_MANAGER"
	RoleCollateralManager Role = "COLLATERAL_MANAGER"
	RoleRewardsManager    Role = "REWARDS_MANAGER"
	RoleOperator          Role = "OPERATOR"
)

var (
	ErrUnauthorized = errors.New("access: unauthorized")
	ErrUnknownRole  = errors.New("access: unknown role")
	ErrZeroAddress  = errors.New("access: zero address")
)

var knownRoles = map[Role]struct{}{
	RoleAdmin:             {},
	RoleSettingsManager:   {},
	RoleFundsManager:      {},
	RoleCollateralManager: {},
	RoleRewardsManager:    {},
	RoleOperator:          {},
}

// ParseRole normalises a role name.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := knownRoles[role]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
	return role, nil
}

// Storage abstracts the subset of state manager functionality the table needs.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	KVKeys(prefix []byte) ([][]byte, error)
}

var rolePrefix = []byte("access/role/")

func roleKey(role Role, account common.Address) []byte {
	return []byte(string(rolePrefix) + string(role) + "/" + strings.ToLower(account.Hex()))
}

// Table is the capability table mapping each role to its members.
type Table struct {
	store   Storage
	emitter events.Emitter
}

func NewTable(store Storage) *Table {
	return &Table{store: store, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter used by the table. Passing nil resets
// the emitter to a no-op implementation.
func (t *Table) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		t.emitter = events.NoopEmitter{}
		return
	}
	t.emitter = emitter
}

// HasRole reports whether account holds role.
func (t *Table) HasRole(role Role, account common.Address) (bool, error) {
	if t == nil || t.store == nil {
		return false, nil
	}
	var member bool
	ok, err := t.store.KVGet(roleKey(role, account), &member)
	if err != nil {
		return false, err
	}
	return ok && member, nil
}

// Require returns ErrUnauthorized unless account holds role.
func (t *Table) Require(role Role, account common.Address) error {
	ok, err := t.HasRole(role, account)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s lacks %s", ErrUnauthorized, account.Hex(), role)
	}
	return nil
}

// Set writes a membership without an authority check. Used while bootstrapping
// the ledger.
func (t *Table) Set(role Role, account common.Address, member bool) error {
	if _, ok := knownRoles[role]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	if account == (common.Address{}) {
		return ErrZeroAddress
	}
	if !member {
		return t.store.KVDelete(roleKey(role, account))
	}
	return t.store.KVPut(roleKey(role, account), true)
}

// Grant adds account to role on behalf of an admin sender.
func (t *Table) Grant(sender common.Address, role Role, account common.Address) error {
	if err := t.Require(RoleAdmin, sender); err != nil {
		return err
	}
	if err := t.Set(role, account, true); err != nil {
		return err
	}
	t.emitter.Emit(events.RoleChanged{Role: string(role), Account: account, Sender: sender})
	return nil
}

// Revoke removes account from role on behalf of an admin sender.
func (t *Table) Revoke(sender common.Address, role Role, account common.Address) error {
	if err := t.Require(RoleAdmin, sender); err != nil {
		return err
	}
	if err := t.Set(role, account, false); err != nil {
		return err
	}
	t.emitter.Emit(events.RoleChanged{Role: string(role), Account: account, Sender: sender, Revoked: true})
	return nil
}

// Members lists the accounts holding role.
func (t *Table) Members(role Role) ([]common.Address, error) {
	prefix := []byte(string(rolePrefix) + string(role) + "/")
	keys, err := t.store.KVKeys(prefix)
	if err != nil {
		return nil, err
	}
	out := make([]common.Address, 0, len(keys))
	for _, key := range keys {
		out = append(out, common.HexToAddress(string(key[len(prefix):])))
	}
	return out, nil
}
