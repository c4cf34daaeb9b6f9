package minting

import (
	"errors"
	"fmt"

	nativecommon "stableledger/native/common"
)

var (
	ErrInvalidOrder            = errors.New("minting: invalid order")
	ErrNotWhitelisted          = errors.New("minting: not whitelisted")
	ErrInvalidAssetAddress     = errors.New("minting: invalid asset address")
	ErrInvalidCustodianAddress = errors.New("minting: invalid custodian address")
	ErrInvalidSignature        = errors.New("minting: invalid signature")
	ErrSignatureExpired        = errors.New("minting: signature expired")
	ErrInvalidAmount           = errors.New("minting: invalid amount")
	ErrMintPaused              = fmt.Errorf("minting: mint paused: %w", nativecommon.ErrModulePaused)
	ErrRedeemPaused            = fmt.Errorf("minting: redeem paused: %w", nativecommon.ErrModulePaused)
	ErrLimitReached            = fmt.Errorf("minting: %w", nativecommon.ErrLimitReached)
	ErrPriceSlippage           = errors.New("minting: price slippage")
	ErrInvalidNonce            = errors.New("minting: invalid nonce")
	ErrInvalidSender           = errors.New("minting: invalid sender")
	ErrInvalidRedeemRequest    = errors.New("minting: invalid redeem request")
	ErrNotEnoughFunds          = errors.New("minting: not enough funds")
	ErrInvalidPercentBP        = errors.New("minting: invalid percent bp")
	ErrInvalidPrice            = errors.New("minting: invalid price")
	ErrStalePrice              = errors.New("minting: stale price")
	ErrZeroAddress             = errors.New("minting: zero address")

	errNilState = errors.New("minting engine: state not configured")
)
