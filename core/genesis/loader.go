// core/genesis/loader.go
package genesis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"stableledger/native/access"
	"stableledger/native/bank"
	nativecommon "stableledger/native/common"
	"stableledger/native/minting"
	"stableledger/native/registry"
	"stableledger/native/rewards"
)

// Targets are the native modules a genesis spec is written into. Every write
// bypasses authority checks; callers run Apply inside a state transaction.
type Targets struct {
	Book     *bank.Book
	Registry *registry.Registry
	Access   *access.Table
	Minting  *minting.Engine
	Rewards  *rewards.Engine
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Apply writes spec into the targets in a deterministic order.
func Apply(spec *GenesisSpec, t Targets) error {
	if spec == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	if t.Book == nil || t.Registry == nil || t.Access == nil || t.Minting == nil || t.Rewards == nil {
		return fmt.Errorf("genesis targets incomplete")
	}
	if err := spec.Validate(); err != nil {
		return err
	}

	// 1) Tokens
	if err := t.Book.RegisterToken(spec.StableAddress(), spec.Stable.Symbol, spec.Stable.Decimals); err != nil {
		return fmt.Errorf("register stable: %w", err)
	}
	for _, c := range spec.Collateral {
		if err := t.Book.RegisterToken(common.HexToAddress(c.Address), c.Symbol, c.Decimals); err != nil {
			return fmt.Errorf("register %s: %w", c.Symbol, err)
		}
	}

	// 2) Roles
	for _, name := range sortedKeys(spec.Roles) {
		role, err := access.ParseRole(name)
		if err != nil {
			return err
		}
		for _, member := range spec.Roles[name] {
			if err := t.Access.Set(role, common.HexToAddress(member), true); err != nil {
				return fmt.Errorf("grant %s: %w", role, err)
			}
		}
	}

	// 3) Registry
	if err := t.Registry.SetTrustedSigner(common.HexToAddress(spec.TrustedSigner)); err != nil {
		return err
	}
	for _, addr := range spec.Whitelist {
		if err := t.Registry.SetWhitelisted(common.HexToAddress(addr), true); err != nil {
			return err
		}
	}
	for _, addr := range spec.Operators {
		if err := t.Registry.SetOperator(common.HexToAddress(addr), true); err != nil {
			return err
		}
	}

	// 4) Minting policy
	settings := minting.DefaultSettings()
	settings.MintFeeBP = spec.Settings.MintFeeBP
	settings.RedeemFeeBP = spec.Settings.RedeemFeeBP
	if spec.Settings.IncomeFeeBP != nil {
		settings.IncomeFeeBP = *spec.Settings.IncomeFeeBP
	}
	if strings.TrimSpace(spec.Settings.InsuranceFund) != "" {
		settings.InsuranceFund = common.HexToAddress(spec.Settings.InsuranceFund)
	}
	settings.FeedEnabled = !spec.Settings.DisableFeed
	settings.OracleEnabled = !spec.Settings.DisableOracle
	settings.OracleHeartbeatSecond = spec.Settings.OracleHeartbeatSeconds
	settings.RewardsAddress = spec.RewardsAddress()
	if err := t.Minting.PutSettings(settings); err != nil {
		return err
	}
	mintLimit, err := limitWindow(spec.MintLimit)
	if err != nil {
		return fmt.Errorf("mintLimit: %w", err)
	}
	redeemLimit, err := limitWindow(spec.RedeemLimit)
	if err != nil {
		return fmt.Errorf("redeemLimit: %w", err)
	}
	if err := t.Minting.PutLimits(mintLimit, redeemLimit); err != nil {
		return err
	}
	for _, c := range spec.Collateral {
		if err := t.Minting.PutAsset(common.HexToAddress(c.Address), c.HeartbeatSeconds); err != nil {
			return err
		}
	}
	for _, custodian := range spec.Custodians {
		if err := t.Minting.PutCustodian(common.HexToAddress(custodian)); err != nil {
			return err
		}
	}
	if err := t.Rewards.SetVault(spec.RewardsAddress()); err != nil {
		return err
	}

	// 5) Balances
	for _, account := range sortedKeys(spec.Alloc) {
		tokens := spec.Alloc[account]
		for _, symbol := range sortedKeys(tokens) {
			amount, err := parseAmountString(tokens[symbol])
			if err != nil {
				return err
			}
			if amount.Sign() == 0 {
				continue
			}
			token := spec.tokenBySymbol[strings.ToUpper(strings.TrimSpace(symbol))]
			if err := t.Book.Mint(token, common.HexToAddress(account), amount); err != nil {
				return fmt.Errorf("alloc %s %s: %w", account, symbol, err)
			}
		}
	}
	return nil
}

func limitWindow(spec *LimitSpec) (nativecommon.Window, error) {
	if spec == nil {
		return nativecommon.Window{}, nil
	}
	max, err := parseAmountString(spec.MaxAmount)
	if err != nil {
		return nativecommon.Window{}, err
	}
	return nativecommon.Window{PeriodSeconds: spec.PeriodSeconds, MaxAmount: max}, nil
}
