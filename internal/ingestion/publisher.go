package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"SynthLedger/internal/engine"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// OutboundPublisher publishes sealed envelopes to NATS for downstream
// consumers. Subjects follow the pattern synth.ledger.events.{event_type}.
// Publishing is best-effort: the event log in Postgres is the source of
// truth, so a failed publish is logged and skipped.
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan engine.Output
	log       zerolog.Logger
}

// outboundJSON is the wire form of an envelope. Amounts inside Payload are
// decimal strings already.
type outboundJSON struct {
	Sequence    int64           `json:"sequence"`
	OperationID string          `json:"operation_id"`
	EventType   string          `json:"event_type"`
	UserID      string          `json:"user_id,omitempty"`
	Asset       *string         `json:"asset,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Payload     json.RawMessage `json:"payload"`
}

func NewOutboundPublisher(js jetstream.JetStream, inputChan <-chan engine.Output, log zerolog.Logger) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
		log:       log,
	}
}

// Run starts the outbound publisher loop.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-op.inputChan:
			if !ok {
				return nil
			}
			if err := op.publish(ctx, out); err != nil {
				op.log.Warn().Err(err).Int64("sequence", out.Envelope.Sequence).Msg("outbound publish failed")
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, out engine.Output) error {
	env := out.Envelope

	wire := outboundJSON{
		Sequence:    env.Sequence,
		OperationID: env.OperationID.String(),
		EventType:   env.EventType.String(),
		Asset:       env.Asset,
		Timestamp:   env.Timestamp,
		Payload:     env.Payload,
	}
	if env.UserID != uuid.Nil {
		wire.UserID = env.UserID.String()
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	subject := fmt.Sprintf("synth.ledger.events.%s", env.EventType)
	_, err = op.js.Publish(ctx, subject, data)
	return err
}

// EnsureOutboundStream creates the outbound events stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream, log zerolog.Logger) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "SYNTH_LEDGER_EVENTS",
		Subjects:  []string{"synth.ledger.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	log.Info().Str("stream", "SYNTH_LEDGER_EVENTS").Msg("ensured outbound stream")
	return nil
}
