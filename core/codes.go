package core

import (
	"errors"

	"stableledger/native/access"
	"stableledger/native/bank"
	nativecommon "stableledger/native/common"
	"stableledger/native/minting"
	"stableledger/native/oracle"
	"stableledger/native/registry"
	"stableledger/native/rewards"
)

// Stable error codes reported to clients and used as metric outcomes.
const (
	CodeUnknown = "Internal"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{minting.ErrInvalidOrder, "InvalidOrder"},
	{minting.ErrNotWhitelisted, "NotWhitelisted"},
	{minting.ErrInvalidAssetAddress, "InvalidAssetAddress"},
	{minting.ErrInvalidCustodianAddress, "InvalidCustodianAddress"},
	{minting.ErrInvalidSignature, "InvalidSignature"},
	{minting.ErrSignatureExpired, "SignatureExpired"},
	{minting.ErrInvalidAmount, "InvalidAmount"},
	{minting.ErrMintPaused, "MintPaused"},
	{minting.ErrRedeemPaused, "RedeemPaused"},
	{minting.ErrLimitReached, "LimitReached"},
	{minting.ErrPriceSlippage, "PriceSlippage"},
	{minting.ErrInvalidNonce, "InvalidNonce"},
	{minting.ErrInvalidSender, "InvalidSender"},
	{minting.ErrInvalidRedeemRequest, "InvalidRedeemRequest"},
	{minting.ErrNotEnoughFunds, "NotEnoughFunds"},
	{minting.ErrInvalidPercentBP, "InvalidPercentBP"},
	{minting.ErrInvalidPrice, "InvalidPrice"},
	{minting.ErrStalePrice, "StalePrice"},
	{minting.ErrZeroAddress, "ZeroAddress"},
	{rewards.ErrInvalidParams, "InvalidParams"},
	{rewards.ErrInvalidClaimer, "InvalidClaimer"},
	{rewards.ErrInvalidSignature, "InvalidSignature"},
	{rewards.ErrZeroRewards, "ZeroRewards"},
	{rewards.ErrUnknownRewards, "UnknownRewards"},
	{rewards.ErrZeroAddress, "ZeroAddress"},
	{access.ErrUnauthorized, "Unauthorized"},
	{access.ErrUnknownRole, "UnknownRole"},
	{access.ErrZeroAddress, "ZeroAddress"},
	{registry.ErrZeroAddress, "ZeroAddress"},
	{bank.ErrUnknownToken, "UnknownToken"},
	{bank.ErrTokenExists, "TokenExists"},
	{bank.ErrInvalidAmount, "InvalidAmount"},
	{bank.ErrInsufficientBalance, "InsufficientBalance"},
	{bank.ErrInsufficientAllowance, "InsufficientAllowance"},
	{bank.ErrBlacklisted, "Blacklisted"},
	{bank.ErrZeroAddress, "ZeroAddress"},
	{oracle.ErrInvalidPrice, "InvalidPrice"},
	{oracle.ErrNoFeed, "NoFeed"},
	{oracle.ErrNoPrice, "NoPrice"},
	{nativecommon.ErrModulePaused, "Paused"},
	{nativecommon.ErrLimitReached, "LimitReached"},
}

// ErrorCode maps err to its stable code, or CodeUnknown.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range errorCodes {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return CodeUnknown
}
