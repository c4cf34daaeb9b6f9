package rpc

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"

	nativecommon "stableledger/native/common"
	"stableledger/native/minting"
	"stableledger/native/rewards"
)

// OrderJSON is the wire form of a signed order. Amounts are decimal strings
// (0x-prefixed hex is also accepted).
type OrderJSON struct {
	OrderType              uint8         `json:"orderType"`
	UserWallet             string        `json:"userWallet"`
	CollateralAsset        string        `json:"collateralAsset"`
	CollateralAmount       string        `json:"collateralAmount"`
	StableAmount           string        `json:"stableAmount"`
	SlippageAdjustedAmount string        `json:"slippageAdjustedAmount,omitempty"`
	Expiry                 uint64        `json:"expiry"`
	Nonce                  string        `json:"nonce"`
	AdditionalData         hexutil.Bytes `json:"additionalData,omitempty"`
}

// SignedOrder is the body of every order endpoint.
type SignedOrder struct {
	Order     OrderJSON     `json:"order"`
	Signature hexutil.Bytes `json:"signature"`
}

// ClaimJSON is the wire form of a rewards claim. IDs are 0x-prefixed 32-byte
// hex values.
type ClaimJSON struct {
	Claimer string   `json:"claimer"`
	IDs     []string `json:"ids"`
	Amounts []string `json:"amounts"`
}

type SignedClaim struct {
	Claim     ClaimJSON     `json:"claim"`
	Signature hexutil.Bytes `json:"signature"`
}

// NewOrderJSON renders order for the wire.
func NewOrderJSON(order minting.Order) OrderJSON {
	out := OrderJSON{
		OrderType:        uint8(order.OrderType),
		UserWallet:       order.UserWallet.Hex(),
		CollateralAsset:  order.CollateralAsset.Hex(),
		CollateralAmount: amountString(order.CollateralAmount),
		StableAmount:     amountString(order.StableAmount),
		Expiry:           order.Expiry,
		Nonce:            amountString(order.Nonce),
		AdditionalData:   append(hexutil.Bytes(nil), order.AdditionalData...),
	}
	if order.SlippageAdjustedAmount != nil {
		out.SlippageAdjustedAmount = order.SlippageAdjustedAmount.String()
	}
	return out
}

// ToOrder parses the wire form.
func (o OrderJSON) ToOrder() (minting.Order, error) {
	var (
		order minting.Order
		err   error
	)
	order.OrderType = minting.OrderType(o.OrderType)
	if order.UserWallet, err = parseAddress("userWallet", o.UserWallet); err != nil {
		return order, err
	}
	if order.CollateralAsset, err = parseAddress("collateralAsset", o.CollateralAsset); err != nil {
		return order, err
	}
	if order.CollateralAmount, err = parseAmount("collateralAmount", o.CollateralAmount); err != nil {
		return order, err
	}
	if order.StableAmount, err = parseAmount("stableAmount", o.StableAmount); err != nil {
		return order, err
	}
	if strings.TrimSpace(o.SlippageAdjustedAmount) != "" {
		if order.SlippageAdjustedAmount, err = parseAmount("slippageAdjustedAmount", o.SlippageAdjustedAmount); err != nil {
			return order, err
		}
	}
	if order.Nonce, err = parseAmount("nonce", o.Nonce); err != nil {
		return order, err
	}
	order.Expiry = o.Expiry
	order.AdditionalData = append([]byte(nil), o.AdditionalData...)
	return order, nil
}

// NewClaimJSON renders req for the wire.
func NewClaimJSON(req rewards.ClaimRequest) ClaimJSON {
	out := ClaimJSON{Claimer: req.Claimer.Hex()}
	for _, id := range req.IDs {
		out.IDs = append(out.IDs, hexutil.Encode(id[:]))
	}
	for _, amount := range req.Amounts {
		out.Amounts = append(out.Amounts, amountString(amount))
	}
	return out
}

func (c ClaimJSON) ToClaimRequest() (rewards.ClaimRequest, error) {
	var req rewards.ClaimRequest
	claimer, err := parseAddress("claimer", c.Claimer)
	if err != nil {
		return req, err
	}
	req.Claimer = claimer
	for i, raw := range c.IDs {
		id, err := ParseRewardID(raw)
		if err != nil {
			return req, fmt.Errorf("ids[%d]: %w", i, err)
		}
		req.IDs = append(req.IDs, id)
	}
	for i, raw := range c.Amounts {
		amount, err := parseAmount(fmt.Sprintf("amounts[%d]", i), raw)
		if err != nil {
			return req, err
		}
		req.Amounts = append(req.Amounts, amount)
	}
	return req, nil
}

// ParseRewardID accepts a 0x-prefixed bytes32 or a snapshot name of up to 31
// bytes.
func ParseRewardID(raw string) ([32]byte, error) {
	var id [32]byte
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		decoded, err := hexutil.Decode(raw)
		if err != nil {
			return id, fmt.Errorf("reward id: %w", err)
		}
		if len(decoded) != len(id) {
			return id, fmt.Errorf("reward id must be 32 bytes, got %d", len(decoded))
		}
		copy(id[:], decoded)
		return id, nil
	}
	return minting.SnapshotID(raw)
}

func parseAddress(field, raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, raw)
	}
	return common.HexToAddress(trimmed), nil
}

func parseAmount(field, raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%s: amount required", field)
	}
	v, ok := math.ParseBig256(trimmed)
	if !ok {
		return nil, fmt.Errorf("%s: invalid amount %q", field, raw)
	}
	return v, nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// --- Responses ---

type redeemRequestJSON struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt int64     `json:"createdAt"`
	Order     OrderJSON `json:"order"`
}

func newRedeemRequestJSON(req *minting.RedeemRequest) redeemRequestJSON {
	return redeemRequestJSON{
		ID:        req.ID,
		Status:    req.Status.String(),
		CreatedAt: req.CreatedAt,
		Order:     NewOrderJSON(req.Order),
	}
}

type fundsJSON struct {
	Asset              string `json:"asset"`
	Supported          bool   `json:"supported"`
	HeartbeatSeconds   uint64 `json:"heartbeatSeconds"`
	CustodyBalance     string `json:"custodyBalance"`
	FrozenBalance      string `json:"frozenBalance"`
	HeldBalance        string `json:"heldBalance"`
	CustodyAvailable   string `json:"custodyAvailable"`
	UntrackedAvailable string `json:"untrackedAvailable"`
}

func newFundsJSON(f *minting.AssetFunds) fundsJSON {
	return fundsJSON{
		Asset:              f.Asset.Hex(),
		Supported:          f.Supported,
		HeartbeatSeconds:   f.HeartbeatSeconds,
		CustodyBalance:     amountString(f.CustodyBalance),
		FrozenBalance:      amountString(f.FrozenBalance),
		HeldBalance:        amountString(f.HeldBalance),
		CustodyAvailable:   amountString(f.CustodyAvailable),
		UntrackedAvailable: amountString(f.UntrackedAvailable),
	}
}

type rewardJSON struct {
	ID        string `json:"id"`
	Amount    string `json:"amount"`
	Finalized bool   `json:"finalized"`
	Expiry    int64  `json:"expiry"`
	Vault     string `json:"vault,omitempty"`
}

func newRewardJSON(r *rewards.Reward) rewardJSON {
	return rewardJSON{
		ID:        hexutil.Encode(r.ID[:]),
		Amount:    amountString(r.Amount),
		Finalized: r.Finalized,
		Expiry:    r.Expiry,
		Vault:     vaultString(r.Vault),
	}
}

func vaultString(addr common.Address) string {
	if addr == (common.Address{}) {
		return ""
	}
	return addr.Hex()
}

type windowJSON struct {
	PeriodSeconds uint64 `json:"periodSeconds"`
	MaxAmount     string `json:"maxAmount"`
	PeriodStart   uint64 `json:"periodStart"`
	PeriodTotal   string `json:"periodTotal"`
}

func newWindowJSON(w nativecommon.Window) windowJSON {
	return windowJSON{
		PeriodSeconds: w.PeriodSeconds,
		MaxAmount:     amountString(w.MaxAmount),
		PeriodStart:   w.PeriodStart,
		PeriodTotal:   amountString(w.PeriodTotal),
	}
}

type settingsJSON struct {
	MintFeeBP              uint64 `json:"mintFeeBp"`
	RedeemFeeBP            uint64 `json:"redeemFeeBp"`
	IncomeFeeBP            uint64 `json:"incomeFeeBp"`
	InsuranceFund          string `json:"insuranceFund"`
	RewardsAddress         string `json:"rewardsAddress"`
	MintPaused             bool   `json:"mintPaused"`
	RedeemPaused           bool   `json:"redeemPaused"`
	FeedEnabled            bool   `json:"feedEnabled"`
	OracleEnabled          bool   `json:"oracleEnabled"`
	OracleHeartbeatSeconds uint64 `json:"oracleHeartbeatSeconds"`
}

func newSettingsJSON(s minting.Settings) settingsJSON {
	return settingsJSON{
		MintFeeBP:              s.MintFeeBP,
		RedeemFeeBP:            s.RedeemFeeBP,
		IncomeFeeBP:            s.IncomeFeeBP,
		InsuranceFund:          s.InsuranceFund.Hex(),
		RewardsAddress:         s.RewardsAddress.Hex(),
		MintPaused:             s.MintPaused,
		RedeemPaused:           s.RedeemPaused,
		FeedEnabled:            s.FeedEnabled,
		OracleEnabled:          s.OracleEnabled,
		OracleHeartbeatSeconds: s.OracleHeartbeatSecond,
	}
}
