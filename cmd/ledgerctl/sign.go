package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"

	"stableledger/native/minting"
	"stableledger/native/rewards"
	"stableledger/rpc"
)

var nowFn = time.Now

func parseOrderType(raw string) (minting.OrderType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "mint":
		return minting.OrderMint, nil
	case "redeem":
		return minting.OrderRedeem, nil
	case "income", "deposit-income":
		return minting.OrderDepositIncome, nil
	default:
		return 0, fmt.Errorf("unknown order type %q", raw)
	}
}

func parseAddressFlag(name, raw string) (common.Address, error) {
	if !common.IsHexAddress(strings.TrimSpace(raw)) {
		return common.Address{}, fmt.Errorf("-%s: invalid address %q", name, raw)
	}
	return common.HexToAddress(strings.TrimSpace(raw)), nil
}

func parseAmountFlag(name, raw string) (*big.Int, error) {
	v, ok := math.ParseBig256(strings.TrimSpace(raw))
	if !ok {
		return nil, fmt.Errorf("-%s: invalid amount %q", name, raw)
	}
	return v, nil
}

func runSignOrder(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("sign-order", flag.ContinueOnError)
	keystorePath := fs.String("keystore", "", "trusted signer keystore")
	chainID := fs.Uint64("chain-id", 0, "ledger chain id")
	ledger := fs.String("ledger", "", "ledger address (verifying contract)")
	kind := fs.String("type", "mint", "order type: mint, redeem or income")
	wallet := fs.String("wallet", "", "user wallet the order is issued to")
	asset := fs.String("asset", "", "collateral asset address")
	collateral := fs.String("collateral", "", "collateral amount in asset base units")
	stable := fs.String("stable", "", "stable amount in base units")
	slippage := fs.String("slippage", "", "slippage-adjusted amount (optional)")
	nonce := fs.String("nonce", "", "order nonce (defaults to the current unix nanoseconds)")
	expiresIn := fs.Duration("expires-in", 10*time.Minute, "signature validity window")
	data := fs.String("data", "", "redeem request id or income snapshot id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *chainID == 0 {
		return errors.New("-chain-id is required")
	}

	var (
		order minting.Order
		err   error
	)
	if order.OrderType, err = parseOrderType(*kind); err != nil {
		return err
	}
	verifying, err := parseAddressFlag("ledger", *ledger)
	if err != nil {
		return err
	}
	if order.UserWallet, err = parseAddressFlag("wallet", *wallet); err != nil {
		return err
	}
	if order.CollateralAsset, err = parseAddressFlag("asset", *asset); err != nil {
		return err
	}
	if order.CollateralAmount, err = parseAmountFlag("collateral", *collateral); err != nil {
		return err
	}
	if order.StableAmount, err = parseAmountFlag("stable", *stable); err != nil {
		return err
	}
	if *slippage != "" {
		if order.SlippageAdjustedAmount, err = parseAmountFlag("slippage", *slippage); err != nil {
			return err
		}
	}
	now := nowFn()
	if *nonce == "" {
		order.Nonce = big.NewInt(now.UnixNano())
	} else if order.Nonce, err = parseAmountFlag("nonce", *nonce); err != nil {
		return err
	}
	if *expiresIn <= 0 {
		return errors.New("-expires-in must be positive")
	}
	order.Expiry = uint64(now.Add(*expiresIn).Unix())
	if *data != "" {
		if order.AdditionalData, err = minting.EncodeAdditionalData(*data); err != nil {
			return err
		}
	}

	key, err := loadKey(*keystorePath)
	if err != nil {
		return err
	}
	domain := minting.Domain{ChainID: new(big.Int).SetUint64(*chainID), VerifyingContract: verifying}
	sig, err := minting.SignOrder(domain, order, key)
	if err != nil {
		return err
	}
	return writeJSON(stdout, rpc.SignedOrder{Order: rpc.NewOrderJSON(order), Signature: sig})
}

func runSignClaim(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("sign-claim", flag.ContinueOnError)
	keystorePath := fs.String("keystore", "", "trusted signer keystore")
	chainID := fs.Uint64("chain-id", 0, "ledger chain id")
	distributor := fs.String("distributor", "", "rewards distributor address")
	claimer := fs.String("claimer", "", "account entitled to the claim")
	var ids, amounts stringList
	fs.Var(&ids, "id", "reward id (snapshot name or 0x bytes32); repeatable")
	fs.Var(&amounts, "amount", "claim amount for the matching -id; repeatable")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *chainID == 0 {
		return errors.New("-chain-id is required")
	}
	if len(ids) == 0 || len(ids) != len(amounts) {
		return errors.New("each -id needs a matching -amount")
	}
	dist, err := parseAddressFlag("distributor", *distributor)
	if err != nil {
		return err
	}
	req := rewards.ClaimRequest{}
	if req.Claimer, err = parseAddressFlag("claimer", *claimer); err != nil {
		return err
	}
	for i := range ids {
		id, err := rpc.ParseRewardID(ids[i])
		if err != nil {
			return err
		}
		amount, err := parseAmountFlag("amount", amounts[i])
		if err != nil {
			return err
		}
		req.IDs = append(req.IDs, id)
		req.Amounts = append(req.Amounts, amount)
	}

	key, err := loadKey(*keystorePath)
	if err != nil {
		return err
	}
	sig, err := rewards.SignClaim(new(big.Int).SetUint64(*chainID), dist, req, key)
	if err != nil {
		return err
	}
	return writeJSON(stdout, rpc.SignedClaim{Claim: rpc.NewClaimJSON(req), Signature: sig})
}
