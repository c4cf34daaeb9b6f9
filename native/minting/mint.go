package minting

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"stableledger/core/events"
)

// MintResult reports the stable units issued by a mint.
type MintResult struct {
	Minted *big.Int
	Fee    *big.Int
}

// checkOrderCaller runs the entry checks shared by mint and redeem requests.
func (e *Engine) checkOrderCaller(caller common.Address, order Order) (*storedAsset, error) {
	if caller != order.UserWallet {
		return nil, ErrInvalidSender
	}
	whitelisted, err := e.registry.IsWhitelisted(order.UserWallet)
	if err != nil {
		return nil, err
	}
	if !whitelisted {
		return nil, ErrNotWhitelisted
	}
	asset, err := e.requireSupported(order.CollateralAsset)
	if err != nil {
		return nil, err
	}
	if err := order.validateAmounts(); err != nil {
		return nil, err
	}
	return asset, nil
}

// Mint issues stable units against collateral pulled from the caller.
func (e *Engine) Mint(caller common.Address, order Order, signature []byte) (*MintResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if order.OrderType != OrderMint {
		return nil, ErrInvalidOrder
	}
	if err := e.guard(ModuleMint); err != nil {
		return nil, err
	}
	asset, err := e.checkOrderCaller(caller, order)
	if err != nil {
		return nil, err
	}
	if err := e.verifyOrder(order, signature); err != nil {
		return nil, err
	}
	settings, err := e.Settings()
	if err != nil {
		return nil, err
	}
	if err := e.checkMintPrice(settings, order, asset.HeartbeatSeconds); err != nil {
		return nil, err
	}
	if err := e.charge(mintWindowKey, order.StableAmount); err != nil {
		return nil, err
	}
	if err := e.consumeNonce(order); err != nil {
		return nil, err
	}
	if err := e.creditCustody(order.CollateralAsset, order.CollateralAmount); err != nil {
		return nil, err
	}

	fee := big.NewInt(0)
	if settings.InsuranceFund != zeroAddress {
		fee = feeFor(order.StableAmount, settings.MintFeeBP)
	}
	minted := new(big.Int).Sub(order.StableAmount, fee)

	if err := e.token.TransferFrom(order.CollateralAsset, e.address, caller, e.address, order.CollateralAmount); err != nil {
		return nil, err
	}
	if err := e.token.Mint(e.stable, caller, minted); err != nil {
		return nil, err
	}
	if fee.Sign() > 0 {
		if err := e.token.Mint(e.stable, settings.InsuranceFund, fee); err != nil {
			return nil, err
		}
	}
	e.emit(events.Mint{
		User:             caller,
		Asset:            order.CollateralAsset,
		CollateralAmount: cloneBigInt(order.CollateralAmount),
		StableAmount:     new(big.Int).Set(minted),
		Fee:              new(big.Int).Set(fee),
	})
	return &MintResult{Minted: minted, Fee: fee}, nil
}
