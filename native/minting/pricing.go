package minting

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// feedReading is a validated price from the per-asset feed.
type feedReading struct {
	price    *big.Int
	decimals uint8
}

func pow10(exp uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil)
}

// feedPrice reads the asset feed. A nil reading with a nil error means no feed
// applies and price checks are skipped.
func (e *Engine) feedPrice(settings Settings, asset common.Address, heartbeat uint64) (*feedReading, error) {
	if e.feed == nil || !settings.FeedEnabled {
		return nil, nil
	}
	price, decimals, updatedAt, err := e.feed.GetPrice(asset)
	if err != nil {
		if e.noFeed(err) {
			return nil, nil
		}
		return nil, err
	}
	if price == nil || price.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	if updatedAt < e.now()-int64(heartbeat) {
		return nil, fmt.Errorf("%w: updated at %d, heartbeat %ds", ErrStalePrice, updatedAt, heartbeat)
	}
	return &feedReading{price: price, decimals: decimals}, nil
}

// stablePrice reads the internal oracle. A nil price means the oracle is
// disabled, has never published, or published zero.
func (e *Engine) stablePrice(settings Settings) (*big.Int, uint8, error) {
	if e.oracle == nil || !settings.OracleEnabled {
		return nil, 0, nil
	}
	price, decimals, updatedAt, err := e.oracle.Latest()
	if err != nil {
		if e.noPrice(err) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	if price == nil || price.Sign() <= 0 {
		return nil, 0, nil
	}
	if hb := settings.OracleHeartbeatSecond; hb > 0 && updatedAt < e.now()-int64(hb) {
		return nil, 0, fmt.Errorf("%w: oracle updated at %d", ErrStalePrice, updatedAt)
	}
	return price, decimals, nil
}

// decimalsPair loads the stable and collateral decimal scales.
func (e *Engine) decimalsPair(asset common.Address) (uint8, uint8, error) {
	stableDec, err := e.token.Decimals(e.stable)
	if err != nil {
		return 0, 0, err
	}
	assetDec, err := e.token.Decimals(asset)
	if err != nil {
		return 0, 0, err
	}
	return stableDec, assetDec, nil
}

// checkMintPrice enforces the feed floor: the feed value of the collateral,
// expressed in stable units, must reach the order's slippage bound.
func (e *Engine) checkMintPrice(settings Settings, order Order, heartbeat uint64) error {
	reading, err := e.feedPrice(settings, order.CollateralAsset, heartbeat)
	if err != nil || reading == nil {
		return err
	}
	stableDec, assetDec, err := e.decimalsPair(order.CollateralAsset)
	if err != nil {
		return err
	}
	value := new(big.Int).Mul(order.CollateralAmount, reading.price)
	value.Mul(value, pow10(stableDec))
	value.Quo(value, new(big.Int).Mul(pow10(reading.decimals), pow10(assetDec)))
	if value.Cmp(cloneBigInt(order.SlippageAdjustedAmount)) < 0 {
		return fmt.Errorf("%w: feed value %s below %s", ErrPriceSlippage, value, order.SlippageAdjustedAmount)
	}
	return nil
}

// collateralCandidate proposes a payout for a redemption, or nil when its
// source does not apply.
type collateralCandidate func() (*big.Int, error)

// clampCollateral returns the smallest collateral amount proposed by the
// requested amount, the asset feed and the stable oracle.
func (e *Engine) clampCollateral(settings Settings, asset common.Address, requested, stableAmount *big.Int, heartbeat uint64) (*big.Int, error) {
	var (
		reading  *feedReading
		scaleNum *big.Int
		scaleDen *big.Int
	)
	// toCollateral converts stable units at price (feed decimals, USD per
	// collateral unit) to collateral units.
	toCollateral := func(price *big.Int) *big.Int {
		out := new(big.Int).Mul(stableAmount, pow10(reading.decimals))
		out.Mul(out, scaleNum)
		return out.Quo(out, new(big.Int).Mul(price, scaleDen))
	}
	candidates := []collateralCandidate{
		func() (*big.Int, error) { return cloneBigInt(requested), nil },
		func() (*big.Int, error) {
			var err error
			reading, err = e.feedPrice(settings, asset, heartbeat)
			if err != nil || reading == nil {
				return nil, err
			}
			stableDec, assetDec, err := e.decimalsPair(asset)
			if err != nil {
				return nil, err
			}
			scaleNum, scaleDen = pow10(assetDec), pow10(stableDec)
			return toCollateral(reading.price), nil
		},
		func() (*big.Int, error) {
			if reading == nil {
				return nil, nil
			}
			oraclePrice, oracleDec, err := e.stablePrice(settings)
			if err != nil || oraclePrice == nil {
				return nil, err
			}
			assetStablePrice := new(big.Int).Mul(reading.price, pow10(oracleDec))
			assetStablePrice.Quo(assetStablePrice, oraclePrice)
			if assetStablePrice.Sign() == 0 {
				return nil, nil
			}
			return toCollateral(assetStablePrice), nil
		},
	}
	var out *big.Int
	for _, candidate := range candidates {
		amount, err := candidate()
		if err != nil {
			return nil, err
		}
		if amount == nil {
			continue
		}
		if out == nil || amount.Cmp(out) < 0 {
			out = amount
		}
	}
	return out, nil
}
