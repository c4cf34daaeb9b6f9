package minting

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"stableledger/core/events"
	"stableledger/native/access"
	nativecommon "stableledger/native/common"
)

const (
	bpScale = 10_000
	// MaxFeeBP caps every fee setting at half of the basis-point scale.
	MaxFeeBP = 5_000
	// DefaultIncomeFeeBP applies until the income fee is configured.
	DefaultIncomeFeeBP = 500

	ModuleMint   = "mint"
	ModuleRedeem = "redeem"
)

// Settings holds the mutable policy of the engine.
type Settings struct {
	MintFeeBP             uint64
	RedeemFeeBP           uint64
	IncomeFeeBP           uint64
	InsuranceFund         common.Address
	RewardsAddress        common.Address
	MintPaused            bool
	RedeemPaused          bool
	FeedEnabled           bool
	OracleEnabled         bool
	OracleHeartbeatSecond uint64
}

// DefaultSettings returns the settings of a freshly bootstrapped ledger.
func DefaultSettings() Settings {
	return Settings{IncomeFeeBP: DefaultIncomeFeeBP, FeedEnabled: true, OracleEnabled: true}
}

// IsPaused implements nativecommon.PauseView.
func (s Settings) IsPaused(module string) bool {
	switch module {
	case ModuleMint:
		return s.MintPaused
	case ModuleRedeem:
		return s.RedeemPaused
	default:
		return false
	}
}

// Settings returns the stored settings, or the defaults before the first write.
func (e *Engine) Settings() (Settings, error) {
	if e == nil || e.state == nil {
		return Settings{}, errNilState
	}
	settings := DefaultSettings()
	if _, err := e.state.KVGet(settingsKey, &settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// PutSettings writes settings without an authority check. Used while
// bootstrapping the ledger.
func (e *Engine) PutSettings(settings Settings) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	for _, bp := range []uint64{settings.MintFeeBP, settings.RedeemFeeBP, settings.IncomeFeeBP} {
		if bp > MaxFeeBP {
			return ErrInvalidPercentBP
		}
	}
	return e.state.KVPut(settingsKey, settings)
}

func (e *Engine) updateSettings(caller common.Address, key, value string, mutate func(*Settings) error) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.require(access.RoleSettingsManager, caller); err != nil {
		return err
	}
	settings, err := e.Settings()
	if err != nil {
		return err
	}
	if err := mutate(&settings); err != nil {
		return err
	}
	if err := e.state.KVPut(settingsKey, settings); err != nil {
		return err
	}
	e.emit(events.SettingUpdated{Key: key, Value: value})
	return nil
}

func checkBP(bp uint64) error {
	if bp > MaxFeeBP {
		return fmt.Errorf("%w: %d", ErrInvalidPercentBP, bp)
	}
	return nil
}

func (e *Engine) SetMintFeeBP(caller common.Address, bp uint64) error {
	return e.updateSettings(caller, "mintFeeBP", strconv.FormatUint(bp, 10), func(s *Settings) error {
		if err := checkBP(bp); err != nil {
			return err
		}
		s.MintFeeBP = bp
		return nil
	})
}

func (e *Engine) SetRedeemFeeBP(caller common.Address, bp uint64) error {
	return e.updateSettings(caller, "redeemFeeBP", strconv.FormatUint(bp, 10), func(s *Settings) error {
		if err := checkBP(bp); err != nil {
			return err
		}
		s.RedeemFeeBP = bp
		return nil
	})
}

func (e *Engine) SetIncomeFeeBP(caller common.Address, bp uint64) error {
	return e.updateSettings(caller, "incomeFeeBP", strconv.FormatUint(bp, 10), func(s *Settings) error {
		if err := checkBP(bp); err != nil {
			return err
		}
		s.IncomeFeeBP = bp
		return nil
	})
}

func (e *Engine) SetMintPaused(caller common.Address, paused bool) error {
	return e.updateSettings(caller, "mintPaused", strconv.FormatBool(paused), func(s *Settings) error {
		s.MintPaused = paused
		return nil
	})
}

func (e *Engine) SetRedeemPaused(caller common.Address, paused bool) error {
	return e.updateSettings(caller, "redeemPaused", strconv.FormatBool(paused), func(s *Settings) error {
		s.RedeemPaused = paused
		return nil
	})
}

// SetInsuranceFund routes fees to addr. The zero address disables fees.
func (e *Engine) SetInsuranceFund(caller, addr common.Address) error {
	return e.updateSettings(caller, "insuranceFund", addr.Hex(), func(s *Settings) error {
		s.InsuranceFund = addr
		return nil
	})
}

func (e *Engine) SetRewardsAddress(caller, addr common.Address) error {
	return e.updateSettings(caller, "rewardsAddress", addr.Hex(), func(s *Settings) error {
		if addr == zeroAddress {
			return ErrZeroAddress
		}
		s.RewardsAddress = addr
		return nil
	})
}

func (e *Engine) SetFeedEnabled(caller common.Address, enabled bool) error {
	return e.updateSettings(caller, "feedEnabled", strconv.FormatBool(enabled), func(s *Settings) error {
		s.FeedEnabled = enabled
		return nil
	})
}

func (e *Engine) SetOracleEnabled(caller common.Address, enabled bool) error {
	return e.updateSettings(caller, "oracleEnabled", strconv.FormatBool(enabled), func(s *Settings) error {
		s.OracleEnabled = enabled
		return nil
	})
}

// SetOracleHeartbeat bounds the age of the stable oracle price. Zero disables
// the staleness check.
func (e *Engine) SetOracleHeartbeat(caller common.Address, seconds uint64) error {
	return e.updateSettings(caller, "oracleHeartbeat", strconv.FormatUint(seconds, 10), func(s *Settings) error {
		s.OracleHeartbeatSecond = seconds
		return nil
	})
}

// MintLimit returns the mint rate window.
func (e *Engine) MintLimit() (nativecommon.Window, error) { return e.loadWindow(mintWindowKey) }

// RedeemLimit returns the redeem rate window.
func (e *Engine) RedeemLimit() (nativecommon.Window, error) { return e.loadWindow(redeemWindowKey) }

func (e *Engine) loadWindow(key []byte) (nativecommon.Window, error) {
	if e == nil || e.state == nil {
		return nativecommon.Window{}, errNilState
	}
	var w nativecommon.Window
	if _, err := e.state.KVGet(key, &w); err != nil {
		return nativecommon.Window{}, err
	}
	if w.MaxAmount == nil {
		w.MaxAmount = big.NewInt(0)
	}
	if w.PeriodTotal == nil {
		w.PeriodTotal = big.NewInt(0)
	}
	return w, nil
}

func (e *Engine) SetMintLimits(caller common.Address, periodSeconds uint64, maxAmount *big.Int) error {
	return e.setLimits(caller, "mintLimits", mintWindowKey, periodSeconds, maxAmount)
}

func (e *Engine) SetRedeemLimits(caller common.Address, periodSeconds uint64, maxAmount *big.Int) error {
	return e.setLimits(caller, "redeemLimits", redeemWindowKey, periodSeconds, maxAmount)
}

// PutLimits configures both rate windows without an authority check. Used
// while bootstrapping the ledger.
func (e *Engine) PutLimits(mint, redeem nativecommon.Window) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	for key, w := range map[string]nativecommon.Window{string(mintWindowKey): mint, string(redeemWindowKey): redeem} {
		if w.MaxAmount != nil && w.MaxAmount.Sign() < 0 {
			return ErrInvalidAmount
		}
		if err := e.state.KVPut([]byte(key), w.Reconfigure(w.PeriodSeconds, w.MaxAmount)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) setLimits(caller common.Address, name string, key []byte, periodSeconds uint64, maxAmount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if maxAmount == nil || maxAmount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if err := e.require(access.RoleSettingsManager, caller); err != nil {
		return err
	}
	w, err := e.loadWindow(key)
	if err != nil {
		return err
	}
	if err := e.state.KVPut(key, w.Reconfigure(periodSeconds, maxAmount)); err != nil {
		return err
	}
	e.emit(events.SettingUpdated{Key: name, Value: fmt.Sprintf("%d/%s", periodSeconds, maxAmount)})
	return nil
}

// charge applies amount to the window stored under key.
func (e *Engine) charge(key []byte, amount *big.Int) error {
	w, err := e.loadWindow(key)
	if err != nil {
		return err
	}
	next, err := nativecommon.Charge(w, uint64(max(e.now(), 0)), amount)
	if err != nil {
		return ErrLimitReached
	}
	if !w.Enabled() {
		return nil
	}
	return e.state.KVPut(key, next)
}

func (e *Engine) guard(module string) error {
	settings, err := e.Settings()
	if err != nil {
		return err
	}
	if err := nativecommon.Guard(settings, module); err != nil {
		if module == ModuleMint {
			return ErrMintPaused
		}
		return ErrRedeemPaused
	}
	return nil
}
