package engine

import (
	"fmt"
	"time"

	"SynthLedger/internal/event"
	"SynthLedger/internal/fixedpoint"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// RecordPriceUpdate appends a PriceUpdated event to the log. The price
// subscriber calls this after applying the observation to the feed store,
// so the event log carries every price the engine could have seen.
func (e *Engine) RecordPriceUpdate(feedID, asset string, price *uint256.Int, decimals uint8, ts time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.emit(&event.PriceUpdated{
		OpID:        uuid.New(),
		FeedID:      feedID,
		AssetSymbol: asset,
		Price:       price.Dec(),
		Decimals:    decimals,
		TimestampUs: ts.UnixMicro(),
	})
	if e.metrics != nil {
		e.metrics.PriceUpdates.WithLabelValues(asset).Inc()
	}
}

// normalizedPrice fetches the current feed price for asset and lifts it to
// wad precision.
func (e *Engine) normalizedPrice(asset CollateralAsset) (*uint256.Int, error) {
	quote, err := e.prices.LatestPrice(asset.FeedID)
	if err != nil {
		return nil, fmt.Errorf("price for %s: %w", asset.Symbol, err)
	}
	scale := fixedpoint.FeedScale(quote.Decimals)
	if scale == nil {
		return nil, fmt.Errorf("%w: feed %s reports %d decimals",
			ErrValueOverflow, asset.FeedID, quote.Decimals)
	}
	return new(uint256.Int).Mul(quote.Price, scale), nil
}

// usdValue converts a wad asset quantity to its USD wad value at the
// current feed price. Truncating division; the round-trip with
// tokenAmountFromUsd is exact for values that divide cleanly.
func (e *Engine) usdValue(asset CollateralAsset, qty *uint256.Int) (*uint256.Int, error) {
	price, err := e.normalizedPrice(asset)
	if err != nil {
		return nil, err
	}
	value, overflow := fixedpoint.MulWad(price, qty)
	if overflow {
		return nil, fmt.Errorf("%w: %s value", ErrValueOverflow, asset.Symbol)
	}
	return value, nil
}

// tokenAmountFromUsd is the exact inverse of usdValue: the wad asset
// quantity whose current USD value equals usdValue.
func (e *Engine) tokenAmountFromUsd(asset CollateralAsset, usdValue *uint256.Int) (*uint256.Int, error) {
	price, err := e.normalizedPrice(asset)
	if err != nil {
		return nil, err
	}
	qty, overflow := fixedpoint.DivWad(usdValue, price)
	if overflow {
		return nil, fmt.Errorf("%w: %s quantity", ErrValueOverflow, asset.Symbol)
	}
	return qty, nil
}
