package minting

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"stableledger/core/events"
	"stableledger/native/access"
)

type storedAsset struct {
	HeartbeatSeconds uint64
}

type storedFunds struct {
	Custody *big.Int
	Frozen  *big.Int
}

func (f *storedFunds) normalize() {
	if f.Custody == nil {
		f.Custody = big.NewInt(0)
	}
	if f.Frozen == nil {
		f.Frozen = big.NewInt(0)
	}
}

func (e *Engine) loadAsset(asset common.Address) (*storedAsset, bool, error) {
	var stored storedAsset
	ok, err := e.state.KVGet(assetKey(asset), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &stored, true, nil
}

// IsSupportedAsset reports whether asset is accepted as collateral.
func (e *Engine) IsSupportedAsset(asset common.Address) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	_, ok, err := e.loadAsset(asset)
	return ok, err
}

func (e *Engine) requireSupported(asset common.Address) (*storedAsset, error) {
	stored, ok, err := e.loadAsset(asset)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAssetAddress, asset.Hex())
	}
	return stored, nil
}

// PutAsset registers a supported asset without an authority check. Used while
// bootstrapping the ledger.
func (e *Engine) PutAsset(asset common.Address, heartbeatSeconds uint64) error {
	if asset == zeroAddress || asset == e.stable {
		return fmt.Errorf("%w: %s", ErrInvalidAssetAddress, asset.Hex())
	}
	_, ok, err := e.loadAsset(asset)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: %s already supported", ErrInvalidAssetAddress, asset.Hex())
	}
	if err := e.state.KVPut(assetKey(asset), storedAsset{HeartbeatSeconds: heartbeatSeconds}); err != nil {
		return err
	}
	e.emit(events.AssetChanged{Asset: asset, HeartbeatSeconds: heartbeatSeconds})
	return nil
}

// AddSupportedAsset admits asset as collateral with the feed heartbeat used
// for staleness checks.
func (e *Engine) AddSupportedAsset(caller, asset common.Address, heartbeatSeconds uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.require(access.RoleAdmin, caller); err != nil {
		return err
	}
	return e.PutAsset(asset, heartbeatSeconds)
}

// RemoveSupportedAsset closes asset for new orders. Its fund counters are
// retained.
func (e *Engine) RemoveSupportedAsset(caller, asset common.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.require(access.RoleAdmin, caller); err != nil {
		return err
	}
	if _, err := e.requireSupported(asset); err != nil {
		return err
	}
	if err := e.state.KVDelete(assetKey(asset)); err != nil {
		return err
	}
	e.emit(events.AssetChanged{Asset: asset, Removed: true})
	return nil
}

// SupportedAssets lists the collateral set.
func (e *Engine) SupportedAssets() ([]common.Address, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	keys, err := e.state.KVKeys(assetPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]common.Address, 0, len(keys))
	for _, key := range keys {
		out = append(out, common.HexToAddress(string(key[len(assetPrefix):])))
	}
	return out, nil
}

// IsCustodian reports whether addr may receive custody transfers.
func (e *Engine) IsCustodian(addr common.Address) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	var set bool
	ok, err := e.state.KVGet(custodianKey(addr), &set)
	if err != nil {
		return false, err
	}
	return ok && set, nil
}

// PutCustodian registers a custodian without an authority check.
func (e *Engine) PutCustodian(custodian common.Address) error {
	if custodian == zeroAddress || custodian == e.stable {
		return fmt.Errorf("%w: %s", ErrInvalidCustodianAddress, custodian.Hex())
	}
	ok, err := e.IsCustodian(custodian)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: %s already registered", ErrInvalidCustodianAddress, custodian.Hex())
	}
	if err := e.state.KVPut(custodianKey(custodian), true); err != nil {
		return err
	}
	e.emit(events.CustodianChanged{Custodian: custodian})
	return nil
}

func (e *Engine) AddCustodianAddress(caller, custodian common.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.require(access.RoleAdmin, caller); err != nil {
		return err
	}
	return e.PutCustodian(custodian)
}

func (e *Engine) RemoveCustodianAddress(caller, custodian common.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.require(access.RoleAdmin, caller); err != nil {
		return err
	}
	ok, err := e.IsCustodian(custodian)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidCustodianAddress, custodian.Hex())
	}
	if err := e.state.KVDelete(custodianKey(custodian)); err != nil {
		return err
	}
	e.emit(events.CustodianChanged{Custodian: custodian, Removed: true})
	return nil
}

func (e *Engine) loadFunds(asset common.Address) (*storedFunds, error) {
	var funds storedFunds
	if _, err := e.state.KVGet(fundsKey(asset), &funds); err != nil {
		return nil, err
	}
	funds.normalize()
	return &funds, nil
}

func (e *Engine) storeFunds(asset common.Address, funds *storedFunds) error {
	return e.state.KVPut(fundsKey(asset), funds)
}

func (e *Engine) heldBalance(asset common.Address) (*big.Int, error) {
	return e.token.BalanceOf(asset, e.address)
}

// custodyAvailable is custody minus frozen.
func (f *storedFunds) custodyAvailable() *big.Int {
	avail := new(big.Int).Sub(f.Custody, f.Frozen)
	if avail.Sign() < 0 {
		return big.NewInt(0)
	}
	return avail
}

// untrackedAvailable is the held balance not attributed to custody.
func untrackedAvailable(held *big.Int, f *storedFunds) *big.Int {
	avail := new(big.Int).Sub(held, f.Custody)
	if avail.Sign() < 0 {
		return big.NewInt(0)
	}
	return avail
}

func (e *Engine) creditCustody(asset common.Address, amount *big.Int) error {
	funds, err := e.loadFunds(asset)
	if err != nil {
		return err
	}
	funds.Custody = new(big.Int).Add(funds.Custody, amount)
	return e.storeFunds(asset, funds)
}

func (e *Engine) debitCustody(asset common.Address, amount *big.Int) error {
	funds, err := e.loadFunds(asset)
	if err != nil {
		return err
	}
	if funds.custodyAvailable().Cmp(amount) < 0 {
		return fmt.Errorf("%w: custody available %s, requested %s", ErrNotEnoughFunds, funds.custodyAvailable(), amount)
	}
	funds.Custody = new(big.Int).Sub(funds.Custody, amount)
	return e.storeFunds(asset, funds)
}

// requireUntracked fails unless the untracked pool covers amount.
func (e *Engine) requireUntracked(asset common.Address, amount *big.Int) error {
	funds, err := e.loadFunds(asset)
	if err != nil {
		return err
	}
	held, err := e.heldBalance(asset)
	if err != nil {
		return err
	}
	if avail := untrackedAvailable(held, funds); avail.Cmp(amount) < 0 {
		return fmt.Errorf("%w: untracked available %s, requested %s", ErrNotEnoughFunds, avail, amount)
	}
	return nil
}

// debitUntracked pays amount of asset out of the untracked pool.
func (e *Engine) debitUntracked(asset, to common.Address, amount *big.Int) error {
	if err := e.requireUntracked(asset, amount); err != nil {
		return err
	}
	return e.token.Transfer(asset, e.address, to, amount)
}

// Funds returns the accounting view for asset.
func (e *Engine) Funds(asset common.Address) (*AssetFunds, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	stored, supported, err := e.loadAsset(asset)
	if err != nil {
		return nil, err
	}
	funds, err := e.loadFunds(asset)
	if err != nil {
		return nil, err
	}
	held, err := e.heldBalance(asset)
	if err != nil {
		return nil, err
	}
	view := &AssetFunds{
		Asset:              asset,
		Supported:          supported,
		CustodyBalance:     new(big.Int).Set(funds.Custody),
		FrozenBalance:      new(big.Int).Set(funds.Frozen),
		HeldBalance:        new(big.Int).Set(held),
		CustodyAvailable:   funds.custodyAvailable(),
		UntrackedAvailable: untrackedAvailable(held, funds),
	}
	if stored != nil {
		view.HeartbeatSeconds = stored.HeartbeatSeconds
	}
	return view, nil
}

// FreezeFunds sets amount of asset aside from custody. The frozen balance can
// never exceed the custody balance.
func (e *Engine) FreezeFunds(caller, asset common.Address, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.require(access.RoleFundsManager, caller); err != nil {
		return err
	}
	if _, err := e.requireSupported(asset); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	funds, err := e.loadFunds(asset)
	if err != nil {
		return err
	}
	frozen := new(big.Int).Add(funds.Frozen, amount)
	if frozen.Cmp(funds.Custody) > 0 {
		return fmt.Errorf("%w: frozen %s would exceed custody %s", ErrInvalidAmount, frozen, funds.Custody)
	}
	funds.Frozen = frozen
	if err := e.storeFunds(asset, funds); err != nil {
		return err
	}
	e.emit(events.FundsFrozen{Asset: asset, Amount: new(big.Int).Set(amount)})
	return nil
}

// UnfreezeFunds releases frozen collateral back to custody-available.
func (e *Engine) UnfreezeFunds(caller, asset common.Address, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.require(access.RoleFundsManager, caller); err != nil {
		return err
	}
	if _, err := e.requireSupported(asset); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	funds, err := e.loadFunds(asset)
	if err != nil {
		return err
	}
	if funds.Frozen.Cmp(amount) < 0 {
		return fmt.Errorf("%w: frozen %s, unfreeze %s", ErrInvalidAmount, funds.Frozen, amount)
	}
	funds.Frozen = new(big.Int).Sub(funds.Frozen, amount)
	if err := e.storeFunds(asset, funds); err != nil {
		return err
	}
	e.emit(events.FundsFrozen{Asset: asset, Amount: new(big.Int).Set(amount), Unfrozen: true})
	return nil
}
