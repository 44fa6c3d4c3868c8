package event

import "github.com/google/uuid"

// SyntheticMinted records newly minted debt against a user's collateral.
type SyntheticMinted struct {
	OpID          uuid.UUID `json:"op_id"`
	User          uuid.UUID `json:"user_id"`
	Amount        string    `json:"amount"`
	ResultingDebt string    `json:"resulting_debt"`
	HealthFactor  string    `json:"health_factor"`
}

func (e *SyntheticMinted) OperationID() uuid.UUID { return e.OpID }
func (e *SyntheticMinted) EventType() EventType   { return EventTypeSyntheticMinted }
func (e *SyntheticMinted) UserID() uuid.UUID      { return e.User }
func (e *SyntheticMinted) Asset() *string         { return nil }

// SyntheticBurned records debt repaid by the holder.
type SyntheticBurned struct {
	OpID          uuid.UUID `json:"op_id"`
	User          uuid.UUID `json:"user_id"`
	Amount        string    `json:"amount"`
	ResultingDebt string    `json:"resulting_debt"`
}

func (e *SyntheticBurned) OperationID() uuid.UUID { return e.OpID }
func (e *SyntheticBurned) EventType() EventType   { return EventTypeSyntheticBurned }
func (e *SyntheticBurned) UserID() uuid.UUID      { return e.User }
func (e *SyntheticBurned) Asset() *string         { return nil }
