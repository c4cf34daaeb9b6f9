// core/genesis/spec.go
package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"stableledger/native/access"
	"stableledger/native/minting"
)

// GenesisSpec describes the initial ledger state written on first start.
type GenesisSpec struct {
	ChainID       uint64                       `json:"chainId"`
	Ledger        string                       `json:"ledger"`
	Rewards       string                       `json:"rewards"`
	Stable        TokenSpec                    `json:"stable"`
	Collateral    []CollateralSpec             `json:"collateral"`
	Roles         map[string][]string          `json:"roles"` // role -> []addr
	Custodians    []string                     `json:"custodians,omitempty"`
	TrustedSigner string                       `json:"trustedSigner"`
	Whitelist     []string                     `json:"whitelist,omitempty"`
	Operators     []string                     `json:"operators,omitempty"`
	Alloc         map[string]map[string]string `json:"alloc,omitempty"` // addr -> symbol -> amount
	Settings      SettingsSpec                 `json:"settings"`
	MintLimit     *LimitSpec                   `json:"mintLimit,omitempty"`
	RedeemLimit   *LimitSpec                   `json:"redeemLimit,omitempty"`

	tokenBySymbol map[string]common.Address
}

type TokenSpec struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

type CollateralSpec struct {
	TokenSpec
	HeartbeatSeconds uint64 `json:"heartbeatSeconds"`
}

type SettingsSpec struct {
	MintFeeBP              uint64  `json:"mintFeeBp"`
	RedeemFeeBP            uint64  `json:"redeemFeeBp"`
	IncomeFeeBP            *uint64 `json:"incomeFeeBp,omitempty"`
	InsuranceFund          string  `json:"insuranceFund,omitempty"`
	DisableFeed            bool    `json:"disableFeed,omitempty"`
	DisableOracle          bool    `json:"disableOracle,omitempty"`
	OracleHeartbeatSeconds uint64  `json:"oracleHeartbeatSeconds,omitempty"`
}

type LimitSpec struct {
	PeriodSeconds uint64 `json:"periodSeconds"`
	MaxAmount     string `json:"maxAmount"`
}

// LoadGenesisSpec reads and validates a JSON genesis file.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseGenesisSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseGenesisSpec decodes raw JSON, rejecting unknown fields.
func ParseGenesisSpec(raw []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

func parseAddress(field, raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, raw)
	}
	addr := common.HexToAddress(trimmed)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%s: zero address", field)
	}
	return addr, nil
}

func parseAmountString(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

func (t TokenSpec) validate() (common.Address, error) {
	addr, err := parseAddress("address", t.Address)
	if err != nil {
		return common.Address{}, err
	}
	if strings.TrimSpace(t.Symbol) == "" {
		return common.Address{}, fmt.Errorf("symbol must be provided")
	}
	if t.Decimals > 36 {
		return common.Address{}, fmt.Errorf("decimals %d out of range", t.Decimals)
	}
	return addr, nil
}

// Validate checks every address, amount and token reference.
func (s *GenesisSpec) Validate() error {
	if s.ChainID == 0 {
		return fmt.Errorf("chainId must be provided")
	}
	ledger, err := parseAddress("ledger", s.Ledger)
	if err != nil {
		return err
	}
	rewards, err := parseAddress("rewards", s.Rewards)
	if err != nil {
		return err
	}
	if ledger == rewards {
		return fmt.Errorf("rewards: must differ from ledger")
	}

	s.tokenBySymbol = make(map[string]common.Address, len(s.Collateral)+1)
	stable, err := s.Stable.validate()
	if err != nil {
		return fmt.Errorf("stable: %w", err)
	}
	s.tokenBySymbol[strings.ToUpper(strings.TrimSpace(s.Stable.Symbol))] = stable
	seen := map[common.Address]struct{}{stable: {}}
	for i := range s.Collateral {
		addr, err := s.Collateral[i].validate()
		if err != nil {
			return fmt.Errorf("collateral[%d]: %w", i, err)
		}
		if _, dup := seen[addr]; dup {
			return fmt.Errorf("collateral[%d]: duplicate address %s", i, addr.Hex())
		}
		seen[addr] = struct{}{}
		symbol := strings.ToUpper(strings.TrimSpace(s.Collateral[i].Symbol))
		if _, dup := s.tokenBySymbol[symbol]; dup {
			return fmt.Errorf("collateral[%d]: duplicate symbol %q", i, s.Collateral[i].Symbol)
		}
		s.tokenBySymbol[symbol] = addr
	}

	// roles
	roleNames := make([]string, 0, len(s.Roles))
	for role := range s.Roles {
		roleNames = append(roleNames, role)
	}
	sort.Strings(roleNames)
	for _, name := range roleNames {
		if _, err := access.ParseRole(name); err != nil {
			return fmt.Errorf("roles[%q]: %w", name, err)
		}
		for i, member := range s.Roles[name] {
			if _, err := parseAddress(fmt.Sprintf("roles[%q][%d]", name, i), member); err != nil {
				return err
			}
		}
	}
	if len(s.Roles[string(access.RoleAdmin)]) == 0 {
		return fmt.Errorf("roles: at least one %s must be provided", access.RoleAdmin)
	}

	if _, err := parseAddress("trustedSigner", s.TrustedSigner); err != nil {
		return err
	}
	for field, list := range map[string][]string{"custodians": s.Custodians, "whitelist": s.Whitelist, "operators": s.Operators} {
		for i, raw := range list {
			if _, err := parseAddress(fmt.Sprintf("%s[%d]", field, i), raw); err != nil {
				return err
			}
		}
	}

	// alloc
	for account, tokens := range s.Alloc {
		if _, err := parseAddress(fmt.Sprintf("alloc[%q]", account), account); err != nil {
			return err
		}
		for symbol, amount := range tokens {
			if _, ok := s.tokenBySymbol[strings.ToUpper(strings.TrimSpace(symbol))]; !ok {
				return fmt.Errorf("alloc[%q][%q]: undefined token", account, symbol)
			}
			if _, err := parseAmountString(amount); err != nil {
				return fmt.Errorf("alloc[%q][%q]: %w", account, symbol, err)
			}
		}
	}

	// settings
	bps := []uint64{s.Settings.MintFeeBP, s.Settings.RedeemFeeBP}
	if s.Settings.IncomeFeeBP != nil {
		bps = append(bps, *s.Settings.IncomeFeeBP)
	}
	for _, bp := range bps {
		if bp > minting.MaxFeeBP {
			return fmt.Errorf("settings: fee %d exceeds %d bp", bp, minting.MaxFeeBP)
		}
	}
	if strings.TrimSpace(s.Settings.InsuranceFund) != "" {
		if _, err := parseAddress("settings.insuranceFund", s.Settings.InsuranceFund); err != nil {
			return err
		}
	}
	for name, limit := range map[string]*LimitSpec{"mintLimit": s.MintLimit, "redeemLimit": s.RedeemLimit} {
		if limit == nil {
			continue
		}
		if _, err := parseAmountString(limit.MaxAmount); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// LedgerAddress returns the account holding collateral and escrow.
func (s *GenesisSpec) LedgerAddress() common.Address { return common.HexToAddress(s.Ledger) }

// RewardsAddress returns the rewards distributor account.
func (s *GenesisSpec) RewardsAddress() common.Address { return common.HexToAddress(s.Rewards) }

// StableAddress returns the stable token address.
func (s *GenesisSpec) StableAddress() common.Address { return common.HexToAddress(s.Stable.Address) }

// ChainIDBig returns the chain id as used in EIP-712 domains.
func (s *GenesisSpec) ChainIDBig() *big.Int { return new(big.Int).SetUint64(s.ChainID) }
