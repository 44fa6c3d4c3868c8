package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ErrAccountNotFound is returned when no projected row exists for a user.
var ErrAccountNotFound = fmt.Errorf("account not found")

// QueryService provides read-only access to the projection tables and the
// event log. Live values (health factor, USD valuations) come from the
// engine, not from here; this surface serves historical and bulk reads.
type QueryService struct {
	db *sql.DB
}

func NewQueryService(db *sql.DB) *QueryService {
	return &QueryService{db: db}
}

// GetAccount returns the projected state for one user.
func (qs *QueryService) GetAccount(ctx context.Context, userID uuid.UUID) (*AccountResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	var (
		resp           AccountResponse
		collateralJSON []byte
	)
	err = qs.db.QueryRowContext(ctx, `
		SELECT debt, collateral, version, last_sequence, updated_at
		FROM projections.accounts
		WHERE user_id = $1
	`, userID.String()).Scan(&resp.Debt, &collateralJSON, &resp.Version, &resp.LastSequence, &resp.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(collateralJSON, &resp.Collateral); err != nil {
		return nil, fmt.Errorf("unmarshal collateral: %w", err)
	}

	resp.UserID = userID
	resp.AsOfSequence = asOfSeq
	return &resp, nil
}

// ListAccounts returns projected accounts ordered by user id, paginated
// by an exclusive afterUser cursor.
func (qs *QueryService) ListAccounts(ctx context.Context, limit int, afterUser *uuid.UUID) ([]AccountResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	query := `
		SELECT user_id, debt, collateral, version, last_sequence, updated_at
		FROM projections.accounts
	`
	args := []interface{}{}
	if afterUser != nil {
		query += " WHERE user_id > $1"
		args = append(args, afterUser.String())
	}
	query += fmt.Sprintf(" ORDER BY user_id ASC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []AccountResponse
	for rows.Next() {
		var (
			resp           AccountResponse
			userStr        string
			collateralJSON []byte
		)
		if err := rows.Scan(&userStr, &resp.Debt, &collateralJSON, &resp.Version, &resp.LastSequence, &resp.UpdatedAt); err != nil {
			return nil, err
		}
		userID, err := uuid.Parse(userStr)
		if err != nil {
			return nil, fmt.Errorf("parse user_id %q: %w", userStr, err)
		}
		if err := json.Unmarshal(collateralJSON, &resp.Collateral); err != nil {
			return nil, fmt.Errorf("unmarshal collateral: %w", err)
		}
		resp.UserID = userID
		resp.AsOfSequence = asOfSeq
		accounts = append(accounts, resp)
	}

	return accounts, rows.Err()
}

// GetEvents returns events from the log starting at fromSequence.
func (qs *QueryService) GetEvents(ctx context.Context, fromSequence int64, limit int) ([]EventResponse, error) {
	rows, err := qs.db.QueryContext(ctx, `
		SELECT sequence, event_type, operation_id, user_id, asset, payload, timestamp
		FROM event_log.events
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventResponse
	for rows.Next() {
		var e EventResponse
		if err := rows.Scan(
			&e.Sequence, &e.EventType, &e.OperationID, &e.UserID,
			&e.Asset, &e.Payload, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// GetUserEvents returns a user's events newest first, paginated by an
// exclusive beforeSequence cursor.
func (qs *QueryService) GetUserEvents(ctx context.Context, userID uuid.UUID, limit int, beforeSequence *int64) ([]EventResponse, error) {
	query := `
		SELECT sequence, event_type, operation_id, user_id, asset, payload, timestamp
		FROM event_log.events
		WHERE user_id = $1
	`
	args := []interface{}{userID.String()}
	argIdx := 2

	if beforeSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *beforeSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventResponse
	for rows.Next() {
		var e EventResponse
		if err := rows.Scan(
			&e.Sequence, &e.EventType, &e.OperationID, &e.UserID,
			&e.Asset, &e.Payload, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

func (qs *QueryService) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(last_sequence, 0) FROM projections.watermark WHERE worker_id = 'accounts'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}
