package events

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"stableledger/core/types"
)

const (
	TypeMint               = "minting.mint"
	TypeRedeemRequested    = "minting.redeem.requested"
	TypeRedeemApproved     = "minting.redeem.approved"
	TypeRedeemRejected     = "minting.redeem.rejected"
	TypeRedeemWithdrawn    = "minting.redeem.withdrawn"
	TypeIncomeDeposited    = "minting.income.deposited"
	TypeCustodyTransfer    = "minting.custody.transfer"
	TypeFundsFrozen        = "minting.funds.frozen"
	TypeFundsUnfrozen      = "minting.funds.unfrozen"
	TypeAssetAdded         = "minting.asset.added"
	TypeAssetRemoved       = "minting.asset.removed"
	TypeCustodianAdded     = "minting.custodian.added"
	TypeCustodianRemoved   = "minting.custodian.removed"
	TypeMintingSettingsSet = "minting.settings.updated"
)

// Mint is emitted when stable units are issued against collateral.
type Mint struct {
	User             common.Address
	Asset            common.Address
	CollateralAmount *big.Int
	StableAmount     *big.Int
	Fee              *big.Int
}

func (Mint) EventType() string { return TypeMint }

func (e Mint) Event() *types.Event {
	return &types.Event{
		Type: TypeMint,
		Attributes: map[string]string{
			"user":             formatAddress(e.User),
			"asset":            formatAddress(e.Asset),
			"collateralAmount": formatAmount(e.CollateralAmount),
			"stableAmount":     formatAmount(e.StableAmount),
			"fee":              formatAmount(e.Fee),
		},
	}
}

// RedeemRequested is emitted when stable units are escrowed for redemption.
type RedeemRequested struct {
	RequestID        string
	User             common.Address
	Asset            common.Address
	CollateralAmount *big.Int
	StableAmount     *big.Int
}

func (RedeemRequested) EventType() string { return TypeRedeemRequested }

func (e RedeemRequested) Event() *types.Event {
	return &types.Event{
		Type: TypeRedeemRequested,
		Attributes: map[string]string{
			"requestId":        e.RequestID,
			"user":             formatAddress(e.User),
			"asset":            formatAddress(e.Asset),
			"collateralAmount": formatAmount(e.CollateralAmount),
			"stableAmount":     formatAmount(e.StableAmount),
		},
	}
}

// RedeemApproved is emitted when a pending request pays out collateral.
type RedeemApproved struct {
	RequestID        string
	Manager          common.Address
	User             common.Address
	Asset            common.Address
	CollateralAmount *big.Int
	StableAmount     *big.Int
	Fee              *big.Int
}

func (RedeemApproved) EventType() string { return TypeRedeemApproved }

func (e RedeemApproved) Event() *types.Event {
	return &types.Event{
		Type: TypeRedeemApproved,
		Attributes: map[string]string{
			"requestId":        e.RequestID,
			"manager":          formatAddress(e.Manager),
			"user":             formatAddress(e.User),
			"asset":            formatAddress(e.Asset),
			"collateralAmount": formatAmount(e.CollateralAmount),
			"stableAmount":     formatAmount(e.StableAmount),
			"fee":              formatAmount(e.Fee),
		},
	}
}

// RedeemRejected is emitted when a pending request is refunded by a manager,
// either explicitly or because approval found it expired or under-priced.
type RedeemRejected struct {
	RequestID    string
	Manager      common.Address
	User         common.Address
	StableAmount *big.Int
	Reason       string
}

func (RedeemRejected) EventType() string { return TypeRedeemRejected }

func (e RedeemRejected) Event() *types.Event {
	return &types.Event{
		Type: TypeRedeemRejected,
		Attributes: map[string]string{
			"requestId":    e.RequestID,
			"manager":      formatAddress(e.Manager),
			"user":         formatAddress(e.User),
			"stableAmount": formatAmount(e.StableAmount),
			"reason":       strings.TrimSpace(e.Reason),
		},
	}
}

// RedeemWithdrawn is emitted when an expired request is refunded.
type RedeemWithdrawn struct {
	RequestID    string
	User         common.Address
	StableAmount *big.Int
}

func (RedeemWithdrawn) EventType() string { return TypeRedeemWithdrawn }

func (e RedeemWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeRedeemWithdrawn,
		Attributes: map[string]string{
			"requestId":    e.RequestID,
			"user":         formatAddress(e.User),
			"stableAmount": formatAmount(e.StableAmount),
		},
	}
}

// IncomeDeposited is emitted when yield is split between insurance and rewards.
type IncomeDeposited struct {
	SnapshotID       [32]byte
	Manager          common.Address
	Asset            common.Address
	CollateralAmount *big.Int
	RewardsAmount    *big.Int
	Fee              *big.Int
	Timestamp        int64
}

func (IncomeDeposited) EventType() string { return TypeIncomeDeposited }

func (e IncomeDeposited) Event() *types.Event {
	return &types.Event{
		Type: TypeIncomeDeposited,
		Attributes: map[string]string{
			"snapshotId":       formatID(e.SnapshotID),
			"manager":          formatAddress(e.Manager),
			"asset":            formatAddress(e.Asset),
			"collateralAmount": formatAmount(e.CollateralAmount),
			"rewardsAmount":    formatAmount(e.RewardsAmount),
			"fee":              formatAmount(e.Fee),
			"timestamp":        intToString(e.Timestamp),
		},
	}
}

// CustodyTransfer is emitted when collateral leaves for a custodian.
type CustodyTransfer struct {
	Custodian common.Address
	Asset     common.Address
	Amount    *big.Int
	Forced    bool
}

func (CustodyTransfer) EventType() string { return TypeCustodyTransfer }

func (e CustodyTransfer) Event() *types.Event {
	return &types.Event{
		Type: TypeCustodyTransfer,
		Attributes: map[string]string{
			"custodian": formatAddress(e.Custodian),
			"asset":     formatAddress(e.Asset),
			"amount":    formatAmount(e.Amount),
			"forced":    strconv.FormatBool(e.Forced),
		},
	}
}

// FundsFrozen is emitted when collateral is set aside or released.
type FundsFrozen struct {
	Asset    common.Address
	Amount   *big.Int
	Unfrozen bool
}

func (e FundsFrozen) EventType() string {
	if e.Unfrozen {
		return TypeFundsUnfrozen
	}
	return TypeFundsFrozen
}

func (e FundsFrozen) Event() *types.Event {
	return &types.Event{
		Type: e.EventType(),
		Attributes: map[string]string{
			"asset":  formatAddress(e.Asset),
			"amount": formatAmount(e.Amount),
		},
	}
}

// AssetChanged is emitted when the supported collateral set changes.
type AssetChanged struct {
	Asset            common.Address
	HeartbeatSeconds uint64
	Removed          bool
}

func (e AssetChanged) EventType() string {
	if e.Removed {
		return TypeAssetRemoved
	}
	return TypeAssetAdded
}

func (e AssetChanged) Event() *types.Event {
	attrs := map[string]string{"asset": formatAddress(e.Asset)}
	if !e.Removed {
		attrs["heartbeat"] = strconv.FormatUint(e.HeartbeatSeconds, 10)
	}
	return &types.Event{Type: e.EventType(), Attributes: attrs}
}

// CustodianChanged is emitted when the custodian set changes.
type CustodianChanged struct {
	Custodian common.Address
	Removed   bool
}

func (e CustodianChanged) EventType() string {
	if e.Removed {
		return TypeCustodianRemoved
	}
	return TypeCustodianAdded
}

func (e CustodianChanged) Event() *types.Event {
	return &types.Event{
		Type:       e.EventType(),
		Attributes: map[string]string{"custodian": formatAddress(e.Custodian)},
	}
}

// SettingUpdated records a settings mutation as a key/value pair.
type SettingUpdated struct {
	Key   string
	Value string
}

func (SettingUpdated) EventType() string { return TypeMintingSettingsSet }

func (e SettingUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeMintingSettingsSet,
		Attributes: map[string]string{
			"key":   e.Key,
			"value": e.Value,
		},
	}
}
