package minting

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"stableledger/core/events"
	"stableledger/native/access"
)

func (e *Engine) custodyPreflight(caller, custodian, asset common.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.require(access.RoleCollateralManager, caller); err != nil {
		return err
	}
	if _, err := e.requireSupported(asset); err != nil {
		return err
	}
	ok, err := e.IsCustodian(custodian)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidCustodianAddress, custodian.Hex())
	}
	return nil
}

// TransferToCustody moves amount of custody-available collateral to a
// registered custodian.
func (e *Engine) TransferToCustody(caller, custodian, asset common.Address, amount *big.Int) error {
	if err := e.custodyPreflight(caller, custodian, asset); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := e.debitCustody(asset, amount); err != nil {
		return err
	}
	if err := e.token.Transfer(asset, e.address, custodian, amount); err != nil {
		return err
	}
	e.emit(events.CustodyTransfer{Custodian: custodian, Asset: asset, Amount: new(big.Int).Set(amount)})
	return nil
}

// ForceTransferToCustody sweeps every custody-available unit of asset to the
// custodian and returns the amount moved.
func (e *Engine) ForceTransferToCustody(caller, custodian, asset common.Address) (*big.Int, error) {
	if err := e.custodyPreflight(caller, custodian, asset); err != nil {
		return nil, err
	}
	funds, err := e.loadFunds(asset)
	if err != nil {
		return nil, err
	}
	amount := funds.custodyAvailable()
	if amount.Sign() == 0 {
		return nil, fmt.Errorf("%w: nothing available in custody", ErrNotEnoughFunds)
	}
	if err := e.debitCustody(asset, amount); err != nil {
		return nil, err
	}
	if err := e.token.Transfer(asset, e.address, custodian, amount); err != nil {
		return nil, err
	}
	e.emit(events.CustodyTransfer{Custodian: custodian, Asset: asset, Amount: new(big.Int).Set(amount), Forced: true})
	return amount, nil
}
