package ingestion

import (
	"context"
	"fmt"
	"time"

	"SynthLedger/internal/engine"
	"SynthLedger/internal/observability"
	"SynthLedger/internal/oracle"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

const (
	// PriceSubject is the wildcard subject price publishers write to,
	// one token per feed: synth.prices.{feed_id}
	PriceSubject = "synth.prices.>"

	priceStream   = "SYNTH_PRICES"
	priceConsumer = "ledger-prices"
)

// PriceSubscriber consumes feed observations from NATS JetStream and
// applies them to the feed store. The engine reads prices from the store
// at operation time; the subscriber never touches accounts directly.
type PriceSubscriber struct {
	js        jetstream.JetStream
	feeds     *oracle.FeedStore
	engine    *engine.Engine
	log       zerolog.Logger
	metrics   *observability.Metrics
	consumers []jetstream.ConsumeContext
}

func NewPriceSubscriber(
	js jetstream.JetStream,
	feeds *oracle.FeedStore,
	eng *engine.Engine,
	log zerolog.Logger,
	metrics *observability.Metrics,
) *PriceSubscriber {
	return &PriceSubscriber{
		js:      js,
		feeds:   feeds,
		engine:  eng,
		log:     log,
		metrics: metrics,
	}
}

// Subscribe creates the durable JetStream consumer for price subjects.
// Explicit ACK, max_deliver=5, ack_wait=30s.
func (ps *PriceSubscriber) Subscribe(ctx context.Context) error {
	consumer, err := ps.js.CreateOrUpdateConsumer(ctx, priceStream, jetstream.ConsumerConfig{
		Durable:       priceConsumer,
		FilterSubject: PriceSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", priceConsumer, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		quote, err := ParsePriceQuote(msg.Data())
		if err != nil {
			// Malformed quotes never become valid on redelivery.
			ps.log.Warn().Err(err).Str("subject", msg.Subject()).Msg("dropping unparseable price quote")
			if ps.metrics != nil {
				ps.metrics.PriceRejects.WithLabelValues("parse").Inc()
			}
			msg.Ack()
			return
		}

		ps.feeds.SetPrice(quote.FeedID, quote.Price, quote.Decimals, quote.Timestamp)
		if ps.engine != nil {
			ps.engine.RecordPriceUpdate(quote.FeedID, quote.Asset, quote.Price, quote.Decimals, quote.Timestamp)
		}
		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", priceConsumer, err)
	}

	ps.consumers = append(ps.consumers, cc)
	ps.log.Info().Str("subject", PriceSubject).Str("consumer", priceConsumer).Msg("subscribed")
	return nil
}

// Stop gracefully stops all consumers.
func (ps *PriceSubscriber) Stop() {
	for _, cc := range ps.consumers {
		cc.Stop()
	}
	ps.log.Info().Msg("price subscribers stopped")
}

// EnsureStreams creates the required JetStream streams if they don't exist.
// Streams use FileStorage, retention=Limits, max_age=72h.
func EnsureStreams(ctx context.Context, js jetstream.JetStream, log zerolog.Logger) error {
	streams := []jetstream.StreamConfig{
		{
			Name:      priceStream,
			Subjects:  []string{"synth.prices.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
	}

	for _, cfg := range streams {
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		log.Info().Str("stream", cfg.Name).Msg("ensured stream")
	}
	return nil
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string, log zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
