package engine

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"SynthLedger/internal/event"
	"SynthLedger/internal/ledger"
	"SynthLedger/internal/observability"
	"SynthLedger/internal/oracle"
	"SynthLedger/internal/token"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
)

// CollateralAsset is an approved deposit asset: its symbol and the price
// feed it is valued against. Immutable once registered; the approved set
// never changes within the engine's own logic.
type CollateralAsset struct {
	Symbol string
	FeedID string
}

// Params are the solvency policy constants, fixed at construction.
type Params struct {
	// LiquidationThreshold is the fraction of collateral value counted
	// toward solvency, out of LiquidationPrecision. Default 50/100: the
	// engine requires 2x over-collateralization.
	LiquidationThreshold uint64
	LiquidationPrecision uint64

	// LiquidationBonus is the extra collateral fraction awarded to a
	// liquidator, out of LiquidationPrecision. Default 10/100.
	LiquidationBonus uint64

	// MinHealthFactor is the solvency cutoff in wad fixed-point (1e18 = 1.0).
	MinHealthFactor *uint256.Int
}

// DefaultParams returns the standard policy: 50% threshold, 10% bonus,
// minimum health factor 1.0.
func DefaultParams() Params {
	return Params{
		LiquidationThreshold: 50,
		LiquidationPrecision: 100,
		LiquidationBonus:     10,
		MinHealthFactor:      new(uint256.Int).Set(wadOne),
	}
}

var wadOne = uint256.NewInt(1_000_000_000_000_000_000)

// Output is what the engine hands to the persistence and publish workers
// after a successful operation: the sequenced envelope plus the affected
// account's post-operation state (for projections).
type Output struct {
	Envelope *event.Envelope
	Account  *ledger.AccountRecord
}

// Deps are the engine's injectable collaborators. Prices, Bank, and
// Synthetic are required; everything else has a usable zero value.
type Deps struct {
	Ledger    *ledger.Ledger
	Prices    oracle.PriceSource
	Bank      token.CollateralBank
	Synthetic token.SyntheticToken
	Logger    zerolog.Logger
	Metrics   *observability.Metrics

	// PersistChan receives every output with a BLOCKING send: if the
	// persistence worker falls behind, operations stall rather than lose
	// their audit record. PublishChan is best-effort (non-blocking, drop
	// on full). Either may be nil.
	PersistChan chan<- Output
	PublishChan chan<- Output
}

// Engine enforces the over-collateralization invariant over the account
// ledger. Operations execute one at a time under a single mutex: each call
// runs to completion (success or total failure) before the next begins,
// and every ledger mutation is finished before any external collaborator
// call that could re-enter.
type Engine struct {
	mu sync.Mutex

	params Params
	assets map[string]CollateralAsset
	order  []string // registration order, for deterministic valuation sums

	ledger    *ledger.Ledger
	prices    oracle.PriceSource
	bank      token.CollateralBank
	synthetic token.SyntheticToken

	log     zerolog.Logger
	metrics *observability.Metrics

	sequence    int64
	persistChan chan<- Output
	publishChan chan<- Output
}

// New registers the approved collateral set and wires the collaborators.
// collateralTokens and priceFeeds are ordered, paired 1:1; mismatched
// lengths fail with ErrMismatchedFeedConfig before any state exists.
func New(collateralTokens, priceFeeds []string, params Params, deps Deps) (*Engine, error) {
	if len(collateralTokens) != len(priceFeeds) {
		return nil, fmt.Errorf("%w: %d tokens, %d feeds",
			ErrMismatchedFeedConfig, len(collateralTokens), len(priceFeeds))
	}
	if params.MinHealthFactor == nil {
		params = DefaultParams()
	}

	assets := make(map[string]CollateralAsset, len(collateralTokens))
	order := make([]string, 0, len(collateralTokens))
	for i, symbol := range collateralTokens {
		assets[symbol] = CollateralAsset{Symbol: symbol, FeedID: priceFeeds[i]}
		order = append(order, symbol)
	}

	led := deps.Ledger
	if led == nil {
		led = ledger.NewLedger()
	}

	return &Engine{
		params:      params,
		assets:      assets,
		order:       order,
		ledger:      led,
		prices:      deps.Prices,
		bank:        deps.Bank,
		synthetic:   deps.Synthetic,
		log:         deps.Logger,
		metrics:     deps.Metrics,
		persistChan: deps.PersistChan,
		publishChan: deps.PublishChan,
	}, nil
}

// asset resolves a symbol against the approved set.
func (e *Engine) asset(symbol string) (CollateralAsset, error) {
	a, ok := e.assets[symbol]
	if !ok {
		return CollateralAsset{}, fmt.Errorf("%w: %s", ErrNotAllowedToken, symbol)
	}
	return a, nil
}

// emit seals pending events into sequenced envelopes and hands them to the
// workers. Called only after an operation has fully succeeded.
func (e *Engine) emit(events ...event.Event) {
	now := time.Now()
	for _, evt := range events {
		payload, err := json.Marshal(evt)
		if err != nil {
			// Payloads are plain structs; a marshal failure is a bug.
			panic(fmt.Sprintf("FATAL: marshal %s event: %v", evt.EventType(), err))
		}

		env := &event.Envelope{
			Sequence:    e.sequence,
			OperationID: evt.OperationID(),
			EventType:   evt.EventType(),
			UserID:      evt.UserID(),
			Asset:       evt.Asset(),
			Timestamp:   now,
			Payload:     payload,
		}
		e.sequence++

		out := Output{Envelope: env}
		if evt.UserID() != uuid.Nil {
			out.Account = e.ledger.ExportAccount(evt.UserID())
		}

		if e.persistChan != nil {
			// Blocking send: the engine stalls until the persistence
			// worker drains, so no operation record is lost.
			e.persistChan <- out
		}
		if e.publishChan != nil {
			select {
			case e.publishChan <- out:
			default:
				if e.metrics != nil {
					e.metrics.PublishDrops.Inc()
				}
			}
		}
	}
}

// observe records per-operation metrics.
func (e *Engine) observe(op string, start time.Time, err error) {
	if e.metrics == nil {
		return
	}
	if err != nil {
		e.metrics.OpsRejected.WithLabelValues(op, rejectReason(err)).Inc()
		return
	}
	e.metrics.OpsApplied.WithLabelValues(op).Inc()
	e.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	e.metrics.EngineSequence.Set(float64(e.sequence))
}
