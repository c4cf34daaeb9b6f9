package minting

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/holiman/uint256"

	"stableledger/crypto"
)

const (
	DomainName    = "StableMinting"
	DomainVersion = "1"

	// maxSnapshotIDLength leaves room for the terminating zero of a bytes32
	// encoded string.
	maxSnapshotIDLength = 31
)

// Domain binds order signatures to one ledger instance.
type Domain struct {
	ChainID           *big.Int
	VerifyingContract common.Address
}

var domainFields = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

var orderFields = []apitypes.Type{
	{Name: "orderType", Type: "uint8"},
	{Name: "userWallet", Type: "address"},
	{Name: "collateralAsset", Type: "address"},
	{Name: "collateralAmount", Type: "uint256"},
	{Name: "stableAmount", Type: "uint256"},
	{Name: "slippageAdjustedAmount", Type: "uint256"},
	{Name: "expiry", Type: "uint256"},
	{Name: "nonce", Type: "uint256"},
	{Name: "additionalData", Type: "bytes"},
}

// TypedDomain renders the EIP-712 domain for name.
func (d Domain) TypedDomain(name string) apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              name,
		Version:           DomainVersion,
		ChainId:           (*math.HexOrDecimal256)(cloneBigInt(d.ChainID)),
		VerifyingContract: d.VerifyingContract.Hex(),
	}
}

// DomainFields lists the EIP712Domain members used by every ledger payload.
func DomainFields() []apitypes.Type {
	return append([]apitypes.Type(nil), domainFields...)
}

// TypedData renders the order as an EIP-712 payload.
func (o Order) TypedData(domain Domain) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": DomainFields(),
			"Order":        orderFields,
		},
		PrimaryType: "Order",
		Domain:      domain.TypedDomain(DomainName),
		Message: apitypes.TypedDataMessage{
			"orderType":              big.NewInt(int64(o.OrderType)),
			"userWallet":             o.UserWallet.Hex(),
			"collateralAsset":        o.CollateralAsset.Hex(),
			"collateralAmount":       cloneBigInt(o.CollateralAmount),
			"stableAmount":           cloneBigInt(o.StableAmount),
			"slippageAdjustedAmount": cloneBigInt(o.SlippageAdjustedAmount),
			"expiry":                 new(big.Int).SetUint64(o.Expiry),
			"nonce":                  cloneBigInt(o.Nonce),
			"additionalData":         hexutil.Bytes(append([]byte{}, o.AdditionalData...)),
		},
	}
}

// Digest returns the EIP-712 hash the trusted signer signs.
func (o Order) Digest(domain Domain) ([]byte, error) {
	return crypto.HashTypedData(o.TypedData(domain))
}

// SignOrder produces the detached signature for order.
func SignOrder(domain Domain, order Order, key *crypto.PrivateKey) ([]byte, error) {
	digest, err := order.Digest(domain)
	if err != nil {
		return nil, err
	}
	return crypto.SignDigest(digest, key)
}

var stringArgs = func() abi.Arguments {
	typ, err := abi.NewType("string", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Type: typ}}
}()

// EncodeAdditionalData ABI-encodes an identifier for an order's payload.
func EncodeAdditionalData(id string) ([]byte, error) {
	return stringArgs.Pack(id)
}

// DecodeAdditionalData extracts the identifier carried by an order.
func DecodeAdditionalData(data []byte) (string, error) {
	values, err := stringArgs.Unpack(data)
	if err != nil {
		return "", fmt.Errorf("%w: additional data: %v", ErrInvalidOrder, err)
	}
	if len(values) != 1 {
		return "", fmt.Errorf("%w: additional data", ErrInvalidOrder)
	}
	id, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("%w: additional data", ErrInvalidOrder)
	}
	return id, nil
}

// exactID rejects empty identifiers and identifiers with surrounding
// whitespace. Ids are signed as given, so they are never normalised.
func exactID(id string) error {
	if id == "" {
		return errors.New("empty id")
	}
	if strings.TrimSpace(id) != id {
		return fmt.Errorf("id %q has surrounding whitespace", id)
	}
	return nil
}

// SnapshotID converts a reward identifier into its bytes32 form.
func SnapshotID(id string) ([32]byte, error) {
	var out [32]byte
	if err := exactID(id); err != nil {
		return out, fmt.Errorf("%w: snapshot %v", ErrInvalidOrder, err)
	}
	if len(id) > maxSnapshotIDLength {
		return out, fmt.Errorf("%w: snapshot id must be 1-%d bytes", ErrInvalidOrder, maxSnapshotIDLength)
	}
	copy(out[:], id)
	return out, nil
}

// validateAmounts requires positive collateral and stable amounts that fit in
// 256 bits, and a representable slippage bound and nonce.
func (o Order) validateAmounts() error {
	for _, v := range []*big.Int{o.CollateralAmount, o.StableAmount} {
		if v == nil || v.Sign() <= 0 {
			return ErrInvalidAmount
		}
		if _, overflow := uint256.FromBig(v); overflow {
			return fmt.Errorf("%w: exceeds 256 bits", ErrInvalidAmount)
		}
	}
	for _, v := range []*big.Int{o.SlippageAdjustedAmount, o.Nonce} {
		if v == nil {
			continue
		}
		if v.Sign() < 0 {
			return ErrInvalidAmount
		}
		if _, overflow := uint256.FromBig(v); overflow {
			return fmt.Errorf("%w: exceeds 256 bits", ErrInvalidAmount)
		}
	}
	return nil
}
