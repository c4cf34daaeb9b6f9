package minting

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"stableledger/core/events"
	"stableledger/native/access"
)

// IncomeResult reports how a deposit was split.
type IncomeResult struct {
	SnapshotID [32]byte
	Rewards    *big.Int
	Fee        *big.Int
}

// DepositIncome attributes collateral already held by the ledger to custody
// and issues the matching stable units, minus the income fee, into the
// rewards pool named by the order.
func (e *Engine) DepositIncome(caller common.Address, order Order, signature []byte) (*IncomeResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.require(access.RoleFundsManager, caller); err != nil {
		return nil, err
	}
	if order.OrderType != OrderDepositIncome {
		return nil, ErrInvalidOrder
	}
	if caller != order.UserWallet {
		return nil, ErrInvalidSender
	}
	if _, err := e.requireSupported(order.CollateralAsset); err != nil {
		return nil, err
	}
	if err := order.validateAmounts(); err != nil {
		return nil, err
	}
	if err := e.verifyOrder(order, signature); err != nil {
		return nil, err
	}
	raw, err := DecodeAdditionalData(order.AdditionalData)
	if err != nil {
		return nil, err
	}
	snapshot, err := SnapshotID(raw)
	if err != nil {
		return nil, err
	}
	if e.rewards == nil {
		return nil, errNilState
	}
	settings, err := e.Settings()
	if err != nil {
		return nil, err
	}
	if settings.RewardsAddress == zeroAddress {
		return nil, ErrZeroAddress
	}
	if err := e.requireUntracked(order.CollateralAsset, order.CollateralAmount); err != nil {
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
		fee = feeFor(order.StableAmount, settings.IncomeFeeBP)
	}
	rewards := new(big.Int).Sub(order.StableAmount, fee)
	if fee.Sign() > 0 {
		if err := e.token.Mint(e.stable, settings.InsuranceFund, fee); err != nil {
			return nil, err
		}
	}
	if err := e.token.Mint(e.stable, settings.RewardsAddress, rewards); err != nil {
		return nil, err
	}
	if err := e.rewards.DepositRewards(e.address, snapshot, rewards); err != nil {
		return nil, err
	}
	e.emit(events.IncomeDeposited{
		SnapshotID:       snapshot,
		Manager:          caller,
		Asset:            order.CollateralAsset,
		CollateralAmount: cloneBigInt(order.CollateralAmount),
		RewardsAmount:    new(big.Int).Set(rewards),
		Fee:              new(big.Int).Set(fee),
		Timestamp:        e.now(),
	})
	return &IncomeResult{SnapshotID: snapshot, Rewards: rewards, Fee: fee}, nil
}
