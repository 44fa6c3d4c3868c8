package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"SynthLedger/internal/engine"
	"SynthLedger/internal/observability"

	"github.com/rs/zerolog"
)

// ProjectionWorker maintains the projections.accounts table from engine
// outputs. The projection channel is best-effort: if this worker falls
// behind, drops are counted and the table can be rebuilt from snapshots
// plus the event log.
type ProjectionWorker struct {
	db        *sql.DB
	inputChan <-chan engine.Output
	metrics   *observability.Metrics
	log       zerolog.Logger
	lastSeq   int64
}

func NewProjectionWorker(
	db *sql.DB,
	inputChan <-chan engine.Output,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *ProjectionWorker {
	return &ProjectionWorker{
		db:        db,
		inputChan: inputChan,
		metrics:   metrics,
		log:       log,
	}
}

// Run starts the projection worker loop.
func (pw *ProjectionWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-pw.inputChan:
			if !ok {
				return nil
			}

			if err := pw.processOutput(ctx, out); err != nil {
				// Projections are eventually consistent and rebuildable,
				// so a failed update is logged and skipped.
				pw.log.Warn().Err(err).Int64("sequence", out.Envelope.Sequence).Msg("projection update failed")
			}

			pw.lastSeq = out.Envelope.Sequence
		}
	}
}

func (pw *ProjectionWorker) processOutput(ctx context.Context, out engine.Output) error {
	start := time.Now()

	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if out.Account != nil {
		if err := pw.upsertAccount(ctx, tx, out); err != nil {
			return fmt.Errorf("account projection: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('accounts', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, out.Envelope.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	if pw.metrics != nil {
		pw.metrics.ProjectionUpdates.Inc()
		pw.metrics.ProjectionUpdateDur.Observe(time.Since(start).Seconds())
	}
	return nil
}

func (pw *ProjectionWorker) upsertAccount(ctx context.Context, tx *sql.Tx, out engine.Output) error {
	acct := out.Account

	collateral, err := json.Marshal(acct.Collateral)
	if err != nil {
		return fmt.Errorf("marshal collateral: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO projections.accounts (user_id, debt, collateral, version, last_sequence, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			debt = $2, collateral = $3, version = $4, last_sequence = $5, updated_at = NOW()
	`, acct.UserID, acct.Debt, collateral, acct.Version, out.Envelope.Sequence)
	return err
}

// RebuildProjections clears the account projection so the worker can
// repopulate it from live outputs after a snapshot restore.
func RebuildProjections(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`TRUNCATE projections.accounts`,
		`DELETE FROM projections.watermark WHERE worker_id = 'accounts'`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}
	return nil
}
