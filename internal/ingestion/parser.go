package ingestion

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/holiman/uint256"
)

// PriceQuote is a parsed feed observation, ready to apply to the feed store.
// Price is at the feed's native decimal precision.
type PriceQuote struct {
	FeedID    string
	Asset     string
	Price     *uint256.Int
	Decimals  uint8
	Timestamp time.Time
}

type priceQuoteJSON struct {
	FeedID      string `json:"feed_id"`
	Asset       string `json:"asset"`
	Price       string `json:"price"`
	Decimals    uint8  `json:"decimals"`
	TimestampUs int64  `json:"timestamp_us"`
}

// ParsePriceQuote converts raw JSON bytes from a price subject into a
// PriceQuote. The shell validates here; a quote that parses cleanly is
// always safe to hand to the feed store.
func ParsePriceQuote(data []byte) (PriceQuote, error) {
	var j priceQuoteJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return PriceQuote{}, fmt.Errorf("parse price quote: %w", err)
	}
	if j.FeedID == "" {
		return PriceQuote{}, fmt.Errorf("parse price quote: missing feed_id")
	}
	if j.Asset == "" {
		return PriceQuote{}, fmt.Errorf("parse price quote: missing asset")
	}
	price, err := uint256.FromDecimal(j.Price)
	if err != nil {
		return PriceQuote{}, fmt.Errorf("parse price %q: %w", j.Price, err)
	}
	if price.IsZero() {
		return PriceQuote{}, fmt.Errorf("parse price quote: zero price for feed %s", j.FeedID)
	}
	if j.Decimals > 18 {
		return PriceQuote{}, fmt.Errorf("parse price quote: %d decimals exceeds 18", j.Decimals)
	}

	return PriceQuote{
		FeedID:    j.FeedID,
		Asset:     j.Asset,
		Price:     price,
		Decimals:  j.Decimals,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}
