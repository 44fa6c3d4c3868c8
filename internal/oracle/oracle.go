package oracle

import (
	"errors"
	"sync"
	"time"

	"github.com/holiman/uint256"
)

var ErrUnknownFeed = errors.New("unknown price feed")

// Quote is a price observation at the feed's native decimal precision.
// Staleness policy is the feed provider's concern, not the engine's.
type Quote struct {
	Price     *uint256.Int
	Decimals  uint8
	UpdatedAt time.Time
}

// PriceSource is the narrow capability the engine needs from an oracle:
// the current price for a feed, synchronously.
type PriceSource interface {
	LatestPrice(feedID string) (Quote, error)
}

// FeedStore is an in-memory PriceSource fed by the NATS price subscriber.
// Reads and writes may come from different goroutines.
type FeedStore struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewFeedStore() *FeedStore {
	return &FeedStore{
		quotes: make(map[string]Quote),
	}
}

// SetPrice records the latest observation for feedID.
func (fs *FeedStore) SetPrice(feedID string, price *uint256.Int, decimals uint8, updatedAt time.Time) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.quotes[feedID] = Quote{
		Price:     new(uint256.Int).Set(price),
		Decimals:  decimals,
		UpdatedAt: updatedAt,
	}
}

func (fs *FeedStore) LatestPrice(feedID string) (Quote, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	q, ok := fs.quotes[feedID]
	if !ok {
		return Quote{}, ErrUnknownFeed
	}
	return Quote{
		Price:     new(uint256.Int).Set(q.Price),
		Decimals:  q.Decimals,
		UpdatedAt: q.UpdatedAt,
	}, nil
}

// StaticSource is a fixed PriceSource for tests.
type StaticSource map[string]Quote

func (s StaticSource) LatestPrice(feedID string) (Quote, error) {
	q, ok := s[feedID]
	if !ok {
		return Quote{}, ErrUnknownFeed
	}
	return q, nil
}
