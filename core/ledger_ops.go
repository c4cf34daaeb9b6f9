package core

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"stableledger/native/access"
	"stableledger/native/minting"
	"stableledger/native/rewards"
)

const (
	DecisionApproved = "approved"
	DecisionWithdraw = "withdrawn"
)

func decisionLabel(d minting.Decision) string {
	if d.Approved() {
		return DecisionApproved
	}
	return "rejected_" + d.Reason
}

// --- Orders ---

func (l *Ledger) Mint(caller common.Address, order minting.Order, signature []byte) (*minting.MintResult, error) {
	var res *minting.MintResult
	err := l.apply("mint", func() (err error) {
		res, err = l.minting.Mint(caller, order, signature)
		return err
	})
	return res, err
}

func (l *Ledger) RequestRedeem(caller common.Address, order minting.Order, signature []byte) (*minting.RedeemRequest, error) {
	var req *minting.RedeemRequest
	err := l.apply("redeem_request", func() (err error) {
		req, err = l.minting.RequestRedeem(caller, order, signature)
		return err
	})
	return req, err
}

// ApproveRedeemRequest settles a pending request. A soft rejection is
// committed and reported through the returned decision.
func (l *Ledger) ApproveRedeemRequest(caller common.Address, id string, amount *big.Int) (minting.Decision, error) {
	var decision minting.Decision
	err := l.applyDecision("redeem_approve", func() (_ string, err error) {
		decision, err = l.minting.ApproveRedeemRequest(caller, id, amount)
		if err != nil {
			return "", err
		}
		return decisionLabel(decision), nil
	})
	return decision, err
}

func (l *Ledger) RejectRedeemRequest(caller common.Address, id string) error {
	return l.applyDecision("redeem_reject", func() (string, error) {
		return "rejected_" + minting.ReasonManager, l.minting.RejectRedeemRequest(caller, id)
	})
}

func (l *Ledger) WithdrawRedeemRequest(caller common.Address, id string) error {
	return l.applyDecision("redeem_withdraw", func() (string, error) {
		return DecisionWithdraw, l.minting.WithdrawRedeemRequest(caller, id)
	})
}

func (l *Ledger) DepositIncome(caller common.Address, order minting.Order, signature []byte) (*minting.IncomeResult, error) {
	var res *minting.IncomeResult
	err := l.apply("income_deposit", func() (err error) {
		res, err = l.minting.DepositIncome(caller, order, signature)
		return err
	})
	return res, err
}

// --- Funds ---

func (l *Ledger) TransferToCustody(caller, custodian, asset common.Address, amount *big.Int) error {
	return l.apply("custody_transfer", func() error {
		return l.minting.TransferToCustody(caller, custodian, asset, amount)
	})
}

func (l *Ledger) ForceTransferToCustody(caller, custodian, asset common.Address) (*big.Int, error) {
	var moved *big.Int
	err := l.apply("custody_force", func() (err error) {
		moved, err = l.minting.ForceTransferToCustody(caller, custodian, asset)
		return err
	})
	return moved, err
}

func (l *Ledger) FreezeFunds(caller, asset common.Address, amount *big.Int) error {
	return l.apply("funds_freeze", func() error {
		return l.minting.FreezeFunds(caller, asset, amount)
	})
}

func (l *Ledger) UnfreezeFunds(caller, asset common.Address, amount *big.Int) error {
	return l.apply("funds_unfreeze", func() error {
		return l.minting.UnfreezeFunds(caller, asset, amount)
	})
}

// --- Rewards ---

func (l *Ledger) FinalizeRewards(caller common.Address, id [32]byte, claimDuration uint64) error {
	return l.apply("rewards_finalize", func() error {
		return l.rewards.FinalizeRewards(caller, id, claimDuration)
	})
}

func (l *Ledger) ClaimRewards(caller common.Address, req rewards.ClaimRequest, signature []byte) (*big.Int, error) {
	var total *big.Int
	err := l.apply("rewards_claim", func() (err error) {
		total, err = l.rewards.ClaimRewards(caller, req, signature)
		return err
	})
	return total, err
}

func (l *Ledger) WithdrawExpiredRewards(caller common.Address, id [32]byte, to common.Address) (*big.Int, error) {
	var amount *big.Int
	err := l.apply("rewards_withdraw_expired", func() (err error) {
		amount, err = l.rewards.WithdrawExpiredRewards(caller, id, to)
		return err
	})
	return amount, err
}

// --- Settings ---

func (l *Ledger) SetMintFeeBP(caller common.Address, bp uint64) error {
	return l.apply("set_mint_fee", func() error { return l.minting.SetMintFeeBP(caller, bp) })
}

func (l *Ledger) SetRedeemFeeBP(caller common.Address, bp uint64) error {
	return l.apply("set_redeem_fee", func() error { return l.minting.SetRedeemFeeBP(caller, bp) })
}

func (l *Ledger) SetIncomeFeeBP(caller common.Address, bp uint64) error {
	return l.apply("set_income_fee", func() error { return l.minting.SetIncomeFeeBP(caller, bp) })
}

func (l *Ledger) SetMintLimits(caller common.Address, periodSeconds uint64, maxAmount *big.Int) error {
	return l.apply("set_mint_limits", func() error {
		return l.minting.SetMintLimits(caller, periodSeconds, maxAmount)
	})
}

func (l *Ledger) SetRedeemLimits(caller common.Address, periodSeconds uint64, maxAmount *big.Int) error {
	return l.apply("set_redeem_limits", func() error {
		return l.minting.SetRedeemLimits(caller, periodSeconds, maxAmount)
	})
}

func (l *Ledger) SetMintPaused(caller common.Address, paused bool) error {
	return l.apply("set_mint_paused", func() error { return l.minting.SetMintPaused(caller, paused) })
}

func (l *Ledger) SetRedeemPaused(caller common.Address, paused bool) error {
	return l.apply("set_redeem_paused", func() error { return l.minting.SetRedeemPaused(caller, paused) })
}

func (l *Ledger) SetInsuranceFund(caller, fund common.Address) error {
	return l.apply("set_insurance_fund", func() error { return l.minting.SetInsuranceFund(caller, fund) })
}

func (l *Ledger) SetFeedEnabled(caller common.Address, enabled bool) error {
	return l.apply("set_feed_enabled", func() error { return l.minting.SetFeedEnabled(caller, enabled) })
}

func (l *Ledger) SetOracleEnabled(caller common.Address, enabled bool) error {
	return l.apply("set_oracle_enabled", func() error { return l.minting.SetOracleEnabled(caller, enabled) })
}

func (l *Ledger) SetOracleHeartbeat(caller common.Address, seconds uint64) error {
	return l.apply("set_oracle_heartbeat", func() error { return l.minting.SetOracleHeartbeat(caller, seconds) })
}

// SetRewardsAddress moves the income destination and the vault claims are
// paid from in one step.
func (l *Ledger) SetRewardsAddress(caller, addr common.Address) error {
	return l.apply("set_rewards_address", func() error {
		if err := l.minting.SetRewardsAddress(caller, addr); err != nil {
			return err
		}
		return l.rewards.SetVault(addr)
	})
}

// --- Admin ---

func (l *Ledger) AddSupportedAsset(caller, asset common.Address, heartbeatSeconds uint64) error {
	return l.apply("asset_add", func() error {
		return l.minting.AddSupportedAsset(caller, asset, heartbeatSeconds)
	})
}

func (l *Ledger) RemoveSupportedAsset(caller, asset common.Address) error {
	return l.apply("asset_remove", func() error { return l.minting.RemoveSupportedAsset(caller, asset) })
}

func (l *Ledger) AddCustodianAddress(caller, custodian common.Address) error {
	return l.apply("custodian_add", func() error { return l.minting.AddCustodianAddress(caller, custodian) })
}

func (l *Ledger) RemoveCustodianAddress(caller, custodian common.Address) error {
	return l.apply("custodian_remove", func() error { return l.minting.RemoveCustodianAddress(caller, custodian) })
}

func (l *Ledger) GrantRole(caller common.Address, role access.Role, account common.Address) error {
	return l.apply("role_grant", func() error { return l.access.Grant(caller, role, account) })
}

func (l *Ledger) RevokeRole(caller common.Address, role access.Role, account common.Address) error {
	return l.apply("role_revoke", func() error { return l.access.Revoke(caller, role, account) })
}

func (l *Ledger) requireAdmin(caller common.Address) error {
	return l.access.Require(access.RoleAdmin, caller)
}

func (l *Ledger) SetTrustedSigner(caller, signer common.Address) error {
	return l.apply("signer_set", func() error {
		if err := l.requireAdmin(caller); err != nil {
			return err
		}
		return l.registry.SetTrustedSigner(signer)
	})
}

func (l *Ledger) SetWhitelisted(caller, account common.Address, allowed bool) error {
	return l.apply("whitelist_set", func() error {
		if err := l.requireAdmin(caller); err != nil {
			return err
		}
		return l.registry.SetWhitelisted(account, allowed)
	})
}

func (l *Ledger) SetOperator(caller, account common.Address, allowed bool) error {
	return l.apply("operator_set", func() error {
		if err := l.requireAdmin(caller); err != nil {
			return err
		}
		return l.registry.SetOperator(account, allowed)
	})
}

func (l *Ledger) SetBlacklisted(caller, token, account common.Address, listed bool) error {
	return l.apply("blacklist_set", func() error {
		if err := l.requireAdmin(caller); err != nil {
			return err
		}
		return l.book.SetBlacklisted(token, account, listed)
	})
}

// --- Oracle ---

func (l *Ledger) requireOperator(caller common.Address) error {
	ok, err := l.registry.IsOperator(caller)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s is not an operator", access.ErrUnauthorized, caller.Hex())
	}
	return nil
}

// SetAssetPrice publishes a feed price for a collateral asset.
func (l *Ledger) SetAssetPrice(caller, asset common.Address, price *big.Int) error {
	return l.apply("price_feed", func() error {
		if err := l.requireOperator(caller); err != nil {
			return err
		}
		return l.feed.SetPrice(asset, price)
	})
}

func (l *Ledger) RemoveAssetFeed(caller, asset common.Address) error {
	return l.apply("price_feed_remove", func() error {
		if err := l.requireOperator(caller); err != nil {
			return err
		}
		return l.feed.RemoveFeed(asset)
	})
}

// UpdateStablePrice publishes the stable/USD price.
func (l *Ledger) UpdateStablePrice(caller common.Address, price *big.Int) error {
	return l.apply("price_stable", func() error {
		if err := l.requireOperator(caller); err != nil {
			return err
		}
		return l.oracle.UpdatePrice(price)
	})
}

// --- Tokens ---

func (l *Ledger) Approve(caller, token, spender common.Address, amount *big.Int) error {
	return l.apply("token_approve", func() error { return l.book.Approve(token, caller, spender, amount) })
}

func (l *Ledger) Transfer(caller, token, to common.Address, amount *big.Int) error {
	return l.apply("token_transfer", func() error { return l.book.Transfer(token, caller, to, amount) })
}
