package minting

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// OrderType selects the operation an order authorises.
type OrderType uint8

const (
	OrderMint          OrderType = 0
	OrderRedeem        OrderType = 1
	OrderDepositIncome OrderType = 2
)

func (t OrderType) String() string {
	switch t {
	case OrderMint:
		return "MINT"
	case OrderRedeem:
		return "REDEEM"
	case OrderDepositIncome:
		return "DEPOSIT_INCOME"
	default:
		return "UNKNOWN"
	}
}

// Order is an instruction priced and signed off-chain by the trusted signer.
type Order struct {
	OrderType              OrderType
	UserWallet             common.Address
	CollateralAsset        common.Address
	CollateralAmount       *big.Int
	StableAmount           *big.Int
	SlippageAdjustedAmount *big.Int
	Expiry                 uint64
	Nonce                  *big.Int
	AdditionalData         []byte
}

// Copy returns a deep copy to avoid callers mutating shared pointers.
func (o Order) Copy() Order {
	clone := o
	clone.CollateralAmount = cloneBigInt(o.CollateralAmount)
	clone.StableAmount = cloneBigInt(o.StableAmount)
	clone.SlippageAdjustedAmount = cloneBigInt(o.SlippageAdjustedAmount)
	clone.Nonce = cloneBigInt(o.Nonce)
	clone.AdditionalData = append([]byte(nil), o.AdditionalData...)
	return clone
}

// RedeemStatus is the lifecycle position of a redeem request.
type RedeemStatus uint8

const (
	RedeemPending RedeemStatus = iota
	RedeemApproved
	RedeemRejected
	RedeemWithdrawn
)

func (s RedeemStatus) String() string {
	switch s {
	case RedeemPending:
		return "PENDING"
	case RedeemApproved:
		return "APPROVED"
	case RedeemRejected:
		return "REJECTED"
	case RedeemWithdrawn:
		return "WITHDRAWN"
	default:
		return "UNKNOWN"
	}
}

// RedeemRequest holds an escrowed redemption awaiting a manager decision.
type RedeemRequest struct {
	ID        string
	Order     Order
	Status    RedeemStatus
	CreatedAt int64
}

// AssetFunds is the accounting view of one collateral asset.
type AssetFunds struct {
	Asset              common.Address
	HeartbeatSeconds   uint64
	Supported          bool
	CustodyBalance     *big.Int
	FrozenBalance      *big.Int
	HeldBalance        *big.Int
	CustodyAvailable   *big.Int
	UntrackedAvailable *big.Int
}

// DecisionKind tags the outcome of evaluating a pending redemption.
type DecisionKind uint8

const (
	DecisionApproved DecisionKind = iota + 1
	DecisionRejected
)

// Rejection reasons recorded when approval downgrades to a refund.
const (
	ReasonExpired  = "expired"
	ReasonSlippage = "slippage"
	ReasonManager  = "manager"
)

// Decision is the outcome of approving a pending redemption. Approved carries
// the collateral to pay out; Rejected carries the reason the request was
// refunded instead.
type Decision struct {
	Kind       DecisionKind
	Collateral *big.Int
	Reason     string
}

// Approved reports whether the decision pays out collateral.
func (d Decision) Approved() bool { return d.Kind == DecisionApproved }

func approve(collateral *big.Int) Decision {
	return Decision{Kind: DecisionApproved, Collateral: collateral}
}

func reject(reason string) Decision {
	return Decision{Kind: DecisionRejected, Reason: reason}
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
