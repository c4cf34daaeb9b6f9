package core

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"stableledger/native/access"
	"stableledger/native/bank"
	nativecommon "stableledger/native/common"
	"stableledger/native/minting"
	"stableledger/native/rewards"
)

// Limits bundles both rate windows.
type Limits struct {
	Mint   nativecommon.Window
	Redeem nativecommon.Window
}

// RewardsDomain identifies the EIP-712 domain claims are signed under.
type RewardsDomain struct {
	ChainID     *big.Int
	Distributor common.Address
}

func (l *Ledger) ChainID() *big.Int { return l.spec.ChainIDBig() }

func (l *Ledger) Address() common.Address { return l.minting.Address() }

func (l *Ledger) StableToken() common.Address { return l.minting.StableToken() }

// OrderDomain returns the domain orders are signed under.
func (l *Ledger) OrderDomain() minting.Domain { return l.minting.Domain() }

func (l *Ledger) RewardsDomain() RewardsDomain {
	return RewardsDomain{ChainID: l.spec.ChainIDBig(), Distributor: l.rewards.Address()}
}

func (l *Ledger) Tokens() (out []bank.Token, err error) {
	err = l.view(func() error {
		out, err = l.book.Tokens()
		return err
	})
	return out, err
}

func (l *Ledger) BalanceOf(token, account common.Address) (out *big.Int, err error) {
	err = l.view(func() error {
		out, err = l.book.BalanceOf(token, account)
		return err
	})
	return out, err
}

func (l *Ledger) Allowance(token, owner, spender common.Address) (out *big.Int, err error) {
	err = l.view(func() error {
		out, err = l.book.Allowance(token, owner, spender)
		return err
	})
	return out, err
}

func (l *Ledger) TotalSupply(token common.Address) (out *big.Int, err error) {
	err = l.view(func() error {
		out, err = l.book.TotalSupply(token)
		return err
	})
	return out, err
}

func (l *Ledger) Funds(asset common.Address) (out *minting.AssetFunds, err error) {
	err = l.view(func() error {
		out, err = l.minting.Funds(asset)
		return err
	})
	return out, err
}

func (l *Ledger) SupportedAssets() (out []common.Address, err error) {
	err = l.view(func() error {
		out, err = l.minting.SupportedAssets()
		return err
	})
	return out, err
}

// RedeemRequest returns the stored request; unknown ids fail with
// minting.ErrInvalidRedeemRequest.
func (l *Ledger) RedeemRequest(id string) (out *minting.RedeemRequest, err error) {
	err = l.view(func() error {
		out, err = l.minting.RedeemRequest(id)
		return err
	})
	return out, err
}

func (l *Ledger) RedeemRequests() (out []*minting.RedeemRequest, err error) {
	err = l.view(func() error {
		out, err = l.minting.RedeemRequests()
		return err
	})
	return out, err
}

func (l *Ledger) TotalRedeemLockedStable() (out *big.Int, err error) {
	err = l.view(func() error {
		out, err = l.minting.TotalRedeemLockedStable()
		return err
	})
	return cloneAmount(out), err
}

func (l *Ledger) Settings() (out minting.Settings, err error) {
	err = l.view(func() error {
		out, err = l.minting.Settings()
		return err
	})
	return out, err
}

func (l *Ledger) Limits() (out Limits, err error) {
	err = l.view(func() error {
		if out.Mint, err = l.minting.MintLimit(); err != nil {
			return err
		}
		out.Redeem, err = l.minting.RedeemLimit()
		return err
	})
	return out, err
}

// Reward returns the pool for id. Unknown ids read as an empty pool.
func (l *Ledger) Reward(id [32]byte) (out *rewards.Reward, err error) {
	err = l.view(func() error {
		out, err = l.rewards.Reward(id)
		return err
	})
	return out, err
}

func (l *Ledger) Claimed(id [32]byte, claimer common.Address) (out bool, err error) {
	err = l.view(func() error {
		out, err = l.rewards.Claimed(id, claimer)
		return err
	})
	return out, err
}

func (l *Ledger) RewardsVault() (out common.Address, err error) {
	err = l.view(func() error {
		out, err = l.rewards.Vault()
		return err
	})
	return out, err
}

func (l *Ledger) HasRole(role access.Role, account common.Address) (out bool, err error) {
	err = l.view(func() error {
		out, err = l.access.HasRole(role, account)
		return err
	})
	return out, err
}

func (l *Ledger) IsWhitelisted(account common.Address) (out bool, err error) {
	err = l.view(func() error {
		out, err = l.registry.IsWhitelisted(account)
		return err
	})
	return out, err
}

func (l *Ledger) TrustedSigner() (out common.Address, err error) {
	err = l.view(func() error {
		out, err = l.registry.TrustedSigner()
		return err
	})
	return out, err
}

// VerifyOrder checks an order's signature, expiry and nonce without side
// effects.
func (l *Ledger) VerifyOrder(order minting.Order, signature []byte) error {
	return l.view(func() error { return l.minting.VerifyOrder(order, signature) })
}
