package minting

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"stableledger/core/events"
	"stableledger/native/access"
)

type storedRedeemRequest struct {
	ID        string
	Order     Order
	Status    uint8
	CreatedAt uint64
}

func (e *Engine) loadRedeemRequest(id string) (*RedeemRequest, error) {
	var stored storedRedeemRequest
	ok, err := e.state.KVGet(redeemRequestKey(id), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &RedeemRequest{
		ID:        stored.ID,
		Order:     stored.Order.Copy(),
		Status:    RedeemStatus(stored.Status),
		CreatedAt: int64(stored.CreatedAt),
	}, nil
}

func (e *Engine) storeRedeemRequest(req *RedeemRequest) error {
	return e.state.KVPut(redeemRequestKey(req.ID), storedRedeemRequest{
		ID:        req.ID,
		Order:     req.Order.Copy(),
		Status:    uint8(req.Status),
		CreatedAt: uint64(req.CreatedAt),
	})
}

// RedeemRequest returns the stored request or ErrInvalidRedeemRequest.
func (e *Engine) RedeemRequest(id string) (*RedeemRequest, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	req, err := e.loadRedeemRequest(id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: %q not found", ErrInvalidRedeemRequest, id)
	}
	return req, nil
}

// RedeemRequests lists every stored request in id order.
func (e *Engine) RedeemRequests() ([]*RedeemRequest, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	keys, err := e.state.KVKeys(redeemRequestPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]*RedeemRequest, 0, len(keys))
	for _, key := range keys {
		req, err := e.loadRedeemRequest(string(key[len(redeemRequestPrefix):]))
		if err != nil {
			return nil, err
		}
		if req != nil {
			out = append(out, req)
		}
	}
	return out, nil
}

// TotalRedeemLockedStable returns the stable units escrowed by pending
// requests.
func (e *Engine) TotalRedeemLockedStable() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	locked := new(big.Int)
	ok, err := e.state.KVGet(redeemLockedKey, &locked)
	if err != nil {
		return nil, err
	}
	if !ok || locked == nil {
		return big.NewInt(0), nil
	}
	return locked, nil
}

func (e *Engine) adjustLocked(delta *big.Int) error {
	locked, err := e.TotalRedeemLockedStable()
	if err != nil {
		return err
	}
	locked.Add(locked, delta)
	if locked.Sign() < 0 {
		locked.SetInt64(0)
	}
	return e.state.KVPut(redeemLockedKey, locked)
}

// RequestRedeem escrows the order's stable amount and opens a pending request
// keyed by the id carried in the order.
func (e *Engine) RequestRedeem(caller common.Address, order Order, signature []byte) (*RedeemRequest, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if order.OrderType != OrderRedeem {
		return nil, ErrInvalidOrder
	}
	if err := e.guard(ModuleRedeem); err != nil {
		return nil, err
	}
	asset, err := e.checkOrderCaller(caller, order)
	if err != nil {
		return nil, err
	}
	if err := e.verifyOrder(order, signature); err != nil {
		return nil, err
	}
	id, err := DecodeAdditionalData(order.AdditionalData)
	if err != nil {
		return nil, err
	}
	if err := exactID(id); err != nil {
		return nil, fmt.Errorf("%w: request %v", ErrInvalidRedeemRequest, err)
	}
	existing, err := e.loadRedeemRequest(id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %q already exists", ErrInvalidRedeemRequest, id)
	}
	settings, err := e.Settings()
	if err != nil {
		return nil, err
	}
	clamped, err := e.clampCollateral(settings, order.CollateralAsset, order.CollateralAmount, order.StableAmount, asset.HeartbeatSeconds)
	if err != nil {
		return nil, err
	}
	if clamped.Cmp(cloneBigInt(order.SlippageAdjustedAmount)) < 0 {
		return nil, fmt.Errorf("%w: payout %s below %s", ErrPriceSlippage, clamped, order.SlippageAdjustedAmount)
	}
	if err := e.charge(redeemWindowKey, order.StableAmount); err != nil {
		return nil, err
	}
	if err := e.consumeNonce(order); err != nil {
		return nil, err
	}
	req := &RedeemRequest{ID: id, Order: order.Copy(), Status: RedeemPending, CreatedAt: e.now()}
	if err := e.storeRedeemRequest(req); err != nil {
		return nil, err
	}
	if err := e.adjustLocked(order.StableAmount); err != nil {
		return nil, err
	}
	if err := e.token.TransferFrom(e.stable, e.address, caller, e.address, order.StableAmount); err != nil {
		return nil, err
	}
	e.emit(events.RedeemRequested{
		RequestID:        id,
		User:             caller,
		Asset:            order.CollateralAsset,
		CollateralAmount: cloneBigInt(order.CollateralAmount),
		StableAmount:     cloneBigInt(order.StableAmount),
	})
	return req, nil
}

func (e *Engine) pendingRequest(id string) (*RedeemRequest, error) {
	req, err := e.loadRedeemRequest(id)
	if err != nil {
		return nil, err
	}
	if req == nil || req.Status != RedeemPending {
		return nil, fmt.Errorf("%w: %q is not pending", ErrInvalidRedeemRequest, id)
	}
	return req, nil
}

// decideRedeem evaluates a pending request against expiry and the current
// price clamp. It reads state but never mutates it.
func (e *Engine) decideRedeem(settings Settings, req *RedeemRequest, amount *big.Int) (Decision, error) {
	if e.expired(req.Order.Expiry) {
		return reject(ReasonExpired), nil
	}
	asset, ok, err := e.loadAsset(req.Order.CollateralAsset)
	if err != nil {
		return Decision{}, err
	}
	var heartbeat uint64
	if ok {
		heartbeat = asset.HeartbeatSeconds
	}
	collateral, err := e.clampCollateral(settings, req.Order.CollateralAsset, amount, req.Order.StableAmount, heartbeat)
	if err != nil {
		return Decision{}, err
	}
	if collateral.Cmp(cloneBigInt(req.Order.SlippageAdjustedAmount)) < 0 {
		return reject(ReasonSlippage), nil
	}
	return approve(collateral), nil
}

// refundRequest records the terminal status and returns the escrow to the
// requester.
func (e *Engine) refundRequest(req *RedeemRequest, status RedeemStatus) error {
	req.Status = status
	if err := e.storeRedeemRequest(req); err != nil {
		return err
	}
	if err := e.adjustLocked(new(big.Int).Neg(req.Order.StableAmount)); err != nil {
		return err
	}
	return e.token.Transfer(e.stable, e.address, req.Order.UserWallet, req.Order.StableAmount)
}

// ApproveRedeemRequest settles a pending request. An expired request or one
// whose price-clamped payout falls below the order's bound is refunded and
// closed as rejected; that outcome is returned as a Decision, not an error.
func (e *Engine) ApproveRedeemRequest(caller common.Address, id string, amount *big.Int) (Decision, error) {
	if err := e.ready(); err != nil {
		return Decision{}, err
	}
	if err := e.require(access.RoleFundsManager, caller); err != nil {
		return Decision{}, err
	}
	if err := e.guard(ModuleRedeem); err != nil {
		return Decision{}, err
	}
	req, err := e.pendingRequest(id)
	if err != nil {
		return Decision{}, err
	}
	if amount == nil || amount.Sign() <= 0 || amount.Cmp(req.Order.CollateralAmount) > 0 {
		return Decision{}, ErrInvalidAmount
	}
	settings, err := e.Settings()
	if err != nil {
		return Decision{}, err
	}
	decision, err := e.decideRedeem(settings, req, amount)
	if err != nil {
		return Decision{}, err
	}
	if !decision.Approved() {
		if err := e.refundRequest(req, RedeemRejected); err != nil {
			return Decision{}, err
		}
		e.emit(events.RedeemRejected{
			RequestID:    req.ID,
			Manager:      caller,
			User:         req.Order.UserWallet,
			StableAmount: cloneBigInt(req.Order.StableAmount),
			Reason:       decision.Reason,
		})
		return decision, nil
	}

	if err := e.requireUntracked(req.Order.CollateralAsset, decision.Collateral); err != nil {
		return Decision{}, err
	}
	req.Status = RedeemApproved
	if err := e.storeRedeemRequest(req); err != nil {
		return Decision{}, err
	}
	if err := e.adjustLocked(new(big.Int).Neg(req.Order.StableAmount)); err != nil {
		return Decision{}, err
	}
	fee := big.NewInt(0)
	if settings.InsuranceFund != zeroAddress {
		fee = feeFor(req.Order.StableAmount, settings.RedeemFeeBP)
	}
	burned := new(big.Int).Sub(req.Order.StableAmount, fee)
	if fee.Sign() > 0 {
		if err := e.token.Transfer(e.stable, e.address, settings.InsuranceFund, fee); err != nil {
			return Decision{}, err
		}
	}
	if err := e.token.Burn(e.stable, e.address, burned); err != nil {
		return Decision{}, err
	}
	if err := e.debitUntracked(req.Order.CollateralAsset, req.Order.UserWallet, decision.Collateral); err != nil {
		return Decision{}, err
	}
	e.emit(events.RedeemApproved{
		RequestID:        req.ID,
		Manager:          caller,
		User:             req.Order.UserWallet,
		Asset:            req.Order.CollateralAsset,
		CollateralAmount: new(big.Int).Set(decision.Collateral),
		StableAmount:     burned,
		Fee:              fee,
	})
	return decision, nil
}

// RejectRedeemRequest refunds a pending request on the manager's initiative.
func (e *Engine) RejectRedeemRequest(caller common.Address, id string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.require(access.RoleFundsManager, caller); err != nil {
		return err
	}
	if err := e.guard(ModuleRedeem); err != nil {
		return err
	}
	req, err := e.pendingRequest(id)
	if err != nil {
		return err
	}
	if err := e.refundRequest(req, RedeemRejected); err != nil {
		return err
	}
	e.emit(events.RedeemRejected{
		RequestID:    req.ID,
		Manager:      caller,
		User:         req.Order.UserWallet,
		StableAmount: cloneBigInt(req.Order.StableAmount),
		Reason:       ReasonManager,
	})
	return nil
}

// WithdrawRedeemRequest refunds a pending request whose order has expired.
// Any caller may trigger it; the refund always goes to the requester.
func (e *Engine) WithdrawRedeemRequest(caller common.Address, id string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.guard(ModuleRedeem); err != nil {
		return err
	}
	req, err := e.pendingRequest(id)
	if err != nil {
		return err
	}
	if !e.expired(req.Order.Expiry) {
		return fmt.Errorf("%w: %q has not expired", ErrInvalidRedeemRequest, id)
	}
	if err := e.refundRequest(req, RedeemWithdrawn); err != nil {
		return err
	}
	e.emit(events.RedeemWithdrawn{
		RequestID:    req.ID,
		User:         req.Order.UserWallet,
		StableAmount: cloneBigInt(req.Order.StableAmount),
	})
	return nil
}
