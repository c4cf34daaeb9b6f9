package common

import (
	"errors"
	"math/big"
)

var ErrLimitReached = errors.New("limit reached")

// Window is a rolling amount limiter. A zero MaxAmount disables the window.
type Window struct {
	PeriodSeconds uint64
	MaxAmount     *big.Int
	PeriodStart   uint64
	PeriodTotal   *big.Int
}

// Enabled reports whether the window enforces a cap.
func (w Window) Enabled() bool {
	return w.MaxAmount != nil && w.MaxAmount.Sign() > 0
}

// Reconfigure replaces the period and cap while keeping the running counters.
func (w Window) Reconfigure(periodSeconds uint64, maxAmount *big.Int) Window {
	next := w
	next.PeriodSeconds = periodSeconds
	next.MaxAmount = cloneOrZero(maxAmount)
	next.PeriodTotal = cloneOrZero(w.PeriodTotal)
	return next
}

// Charge adds amount to the window at time now. A window whose period has
// elapsed restarts at now with an empty total before charging. The returned
// Window reflects the updated counters when the cap is respected; on denial the
// previous window is returned unchanged alongside ErrLimitReached.
func Charge(w Window, now uint64, amount *big.Int) (Window, error) {
	if !w.Enabled() {
		return w, nil
	}
	next := w
	next.MaxAmount = new(big.Int).Set(w.MaxAmount)
	next.PeriodTotal = cloneOrZero(w.PeriodTotal)
	if now < w.PeriodStart || now-w.PeriodStart >= w.PeriodSeconds {
		next.PeriodStart = now
		next.PeriodTotal = new(big.Int)
	}
	if amount != nil && amount.Sign() > 0 {
		next.PeriodTotal.Add(next.PeriodTotal, amount)
	}
	if next.PeriodTotal.Cmp(next.MaxAmount) > 0 {
		return w, ErrLimitReached
	}
	return next, nil
}

func cloneOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
