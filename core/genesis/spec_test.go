// core/genesis/spec_test.go
package genesis

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	ledgerAddr  = "0x1111111111111111111111111111111111111111"
	rewardsAddr = "0x2222222222222222222222222222222222222222"
	stableAddr  = "0x5000000000000000000000000000000000000000"
	usdcAddr    = "0x6000000000000000000000000000000000000000"
	adminAddr   = "0xad00000000000000000000000000000000000000"
	signerAddr  = "0x5100000000000000000000000000000000000000"
	userAddr    = "0xa11ce00000000000000000000000000000000000"
)

func sampleSpec() GenesisSpec {
	income := uint64(250)
	return GenesisSpec{
		ChainID: 31337,
		Ledger:  ledgerAddr,
		Rewards: rewardsAddr,
		Stable:  TokenSpec{Address: stableAddr, Symbol: "USD", Decimals: 18},
		Collateral: []CollateralSpec{
			{TokenSpec: TokenSpec{Address: usdcAddr, Symbol: "USDC", Decimals: 6}, HeartbeatSeconds: 3600},
		},
		Roles: map[string][]string{
			"DEFAULT_ADMIN":    {adminAddr},
			"SETTINGS_MANAGER": {adminAddr},
		},
		TrustedSigner: signerAddr,
		Whitelist:     []string{userAddr},
		Alloc: map[string]map[string]string{
			userAddr: {"USDC": "1000000"},
		},
		Settings:  SettingsSpec{MintFeeBP: 10, IncomeFeeBP: &income},
		MintLimit: &LimitSpec{PeriodSeconds: 60, MaxAmount: "10000000000000000000"},
	}
}

func TestLoadGenesisSpec(t *testing.T) {
	spec := sampleSpec()
	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		t.Fatalf("marshal spec: %v", err)
	}
	path := filepath.Join(t.TempDir(), "genesis.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	loaded, err := LoadGenesisSpec(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ChainIDBig().Int64() != 31337 {
		t.Fatalf("unexpected chain id %s", loaded.ChainIDBig())
	}
	if loaded.LedgerAddress().Hex() != "0x1111111111111111111111111111111111111111" {
		t.Fatalf("unexpected ledger %s", loaded.LedgerAddress().Hex())
	}
	if got := loaded.tokenBySymbol["USDC"]; got.Hex() != "0x6000000000000000000000000000000000000000" {
		t.Fatalf("expected USDC symbol lookup, got %s", got.Hex())
	}
}

func TestParseGenesisSpecRejectsUnknownFields(t *testing.T) {
	_, err := ParseGenesisSpec([]byte(`{"chainId": 1, "bogus": true}`))
	if err == nil || !strings.Contains(err.Error(), "unknown field") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}

func TestGenesisSpecValidation(t *testing.T) {
	cases := map[string]func(*GenesisSpec){
		"missing chain id":   func(s *GenesisSpec) { s.ChainID = 0 },
		"bad ledger":         func(s *GenesisSpec) { s.Ledger = "nope" },
		"ledger is rewards":  func(s *GenesisSpec) { s.Rewards = ledgerAddr },
		"duplicate asset":    func(s *GenesisSpec) { s.Collateral = append(s.Collateral, s.Collateral[0]) },
		"collateral stable":  func(s *GenesisSpec) { s.Collateral[0].Address = stableAddr },
		"unknown role":       func(s *GenesisSpec) { s.Roles["ROOT"] = []string{adminAddr} },
		"no admin":           func(s *GenesisSpec) { delete(s.Roles, "DEFAULT_ADMIN") },
		"zero signer":        func(s *GenesisSpec) { s.TrustedSigner = "0x0000000000000000000000000000000000000000" },
		"bad whitelist":      func(s *GenesisSpec) { s.Whitelist = []string{"0x12"} },
		"undefined token":    func(s *GenesisSpec) { s.Alloc[userAddr] = map[string]string{"DAI": "1"} },
		"negative alloc":     func(s *GenesisSpec) { s.Alloc[userAddr] = map[string]string{"USDC": "-1"} },
		"fee above cap":      func(s *GenesisSpec) { s.Settings.RedeemFeeBP = 5001 },
		"bad limit":          func(s *GenesisSpec) { s.MintLimit.MaxAmount = "ten" },
		"bad insurance fund": func(s *GenesisSpec) { s.Settings.InsuranceFund = "fund" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			spec := sampleSpec()
			mutate(&spec)
			if err := spec.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
	spec := sampleSpec()
	if err := spec.Validate(); err != nil {
		t.Fatalf("sample spec should validate: %v", err)
	}
}
