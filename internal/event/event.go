// Package event defines the auction journal: one persisted record per
// committed auction mutation.
package event

import (
	"encoding/json"
	"time"
)

// Type identifies an event kind.
type Type string

const (
	LotStarted     Type = "lot.started"
	LotPaused      Type = "lot.paused"
	LotResumed     Type = "lot.resumed"
	LotBidAccepted Type = "lot.bid_accepted"
	LotSold        Type = "lot.sold"
	LotUnsold      Type = "lot.unsold"
	LotReverted    Type = "lot.reverted"
)

// Event represents a single journal entry. AggregateID is the lot (player)
// id and Version is the auction state version the mutation produced.
type Event struct {
	ID          string          `json:"id" db:"id"`
	AggregateID string          `json:"aggregate_id" db:"aggregate_id"`
	Type        Type            `json:"type" db:"type"`
	Data        json.RawMessage `json:"data" db:"data"`
	Version     int64           `json:"version" db:"version"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// New builds an event with a JSON encoded payload.
func New(aggregateID string, t Type, version int64, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateID: aggregateID,
		Type:        t,
		Data:        data,
		Version:     version,
	}, nil
}

// LotStartedData is the payload for LotStarted events.
type LotStartedData struct {
	BasePrice    int64 `json:"base_price"`
	BidIncrement int64 `json:"bid_increment"`
	Duration     int   `json:"duration_seconds"`
}

// BidAcceptedData is the payload for LotBidAccepted events.
type BidAcceptedData struct {
	TeamID string `json:"team_id"`
	Amount int64  `json:"amount"`
}

// SettledData is the payload for LotSold and LotUnsold events.
type SettledData struct {
	TeamID string `json:"team_id,omitempty"`
	Price  int64  `json:"price,omitempty"`
	Auto   bool   `json:"auto"`
	Reason string `json:"reason,omitempty"`
}

// RevertedData is the payload for LotReverted events.
type RevertedData struct {
	TeamID string `json:"team_id"`
	Refund int64  `json:"refund"`
}

// PausedData is the payload for LotPaused and LotResumed events.
type PausedData struct {
	TimeRemaining int `json:"time_remaining_seconds"`
}
