package registry

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"stableledger/core/events"
)

var ErrZeroAddress = errors.New("registry: zero address")

// Storage abstracts the subset of state manager functionality the registry needs.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

var (
	trustedSignerKey = []byte("registry/signer")
	whitelistPrefix  = "registry/whitelist/"
	operatorPrefix   = "registry/operator/"
)

func memberKey(prefix string, addr common.Address) []byte {
	return []byte(prefix + strings.ToLower(addr.Hex()))
}

// Registry tracks the trusted order signer, whitelisted wallets and price
// operators.
type Registry struct {
	store   Storage
	emitter events.Emitter
}

func New(store Storage) *Registry {
	return &Registry{store: store, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter used by the registry.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// TrustedSigner returns the configured signer or the zero address.
func (r *Registry) TrustedSigner() (common.Address, error) {
	var signer common.Address
	if _, err := r.store.KVGet(trustedSignerKey, &signer); err != nil {
		return common.Address{}, err
	}
	return signer, nil
}

func (r *Registry) SetTrustedSigner(signer common.Address) error {
	if signer == (common.Address{}) {
		return ErrZeroAddress
	}
	if err := r.store.KVPut(trustedSignerKey, signer); err != nil {
		return err
	}
	r.emitter.Emit(events.RegistryUpdated{Field: "signer", Account: signer, Enabled: true})
	return nil
}

func (r *Registry) IsWhitelisted(addr common.Address) (bool, error) {
	return r.flag(whitelistPrefix, addr)
}

func (r *Registry) SetWhitelisted(addr common.Address, allowed bool) error {
	return r.setFlag("whitelist", whitelistPrefix, addr, allowed)
}

func (r *Registry) IsOperator(addr common.Address) (bool, error) {
	return r.flag(operatorPrefix, addr)
}

func (r *Registry) SetOperator(addr common.Address, allowed bool) error {
	return r.setFlag("operator", operatorPrefix, addr, allowed)
}

func (r *Registry) flag(prefix string, addr common.Address) (bool, error) {
	var set bool
	ok, err := r.store.KVGet(memberKey(prefix, addr), &set)
	if err != nil {
		return false, err
	}
	return ok && set, nil
}

func (r *Registry) setFlag(field, prefix string, addr common.Address, allowed bool) error {
	if addr == (common.Address{}) {
		return ErrZeroAddress
	}
	var err error
	if allowed {
		err = r.store.KVPut(memberKey(prefix, addr), true)
	} else {
		err = r.store.KVDelete(memberKey(prefix, addr))
	}
	if err != nil {
		return err
	}
	r.emitter.Emit(events.RegistryUpdated{Field: field, Account: addr, Enabled: allowed})
	return nil
}
