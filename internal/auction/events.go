package auction

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a real-time event pushed to clients.
type EventType string

const (
	EventSnapshot      EventType = "state-snapshot"
	EventLotStarted    EventType = "lot-started"
	EventPaused        EventType = "paused"
	EventResumed       EventType = "resumed"
	EventBidAccepted   EventType = "bid-accepted"
	EventOutbid        EventType = "outbid"
	EventSettledSold   EventType = "lot-settled-sold"
	EventSettledUnsold EventType = "lot-settled-unsold"
	EventTimerTick     EventType = "timer-tick"
	EventLotReverted   EventType = "lot-reverted"
	EventRejected      EventType = "rejected"
)

// Event is the envelope pushed to real-time clients. Version is the
// auction state version the event was produced from; a client that has
// seen a higher version drops it.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	State     View      `json:"state"`
	Data      any       `json:"data,omitempty"`

	// TeamID restricts delivery to one team's connections. Empty means
	// every audience group.
	TeamID string `json:"-"`
}

// NewEvent builds an envelope around v.
func NewEvent(t EventType, v View, data any, at time.Time) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Version:   v.Version,
		Timestamp: at.UTC(),
		State:     v,
		Data:      data,
	}
}

// BidData accompanies bid-accepted and outbid.
type BidData struct {
	TeamID         string `json:"team_id"`
	TeamName       string `json:"team_name"`
	Amount         int64  `json:"amount"`
	PreviousTeamID string `json:"previous_team_id,omitempty"`
}

// SettledData accompanies lot-settled-sold and lot-settled-unsold.
type SettledData struct {
	LotID    string `json:"lot_id"`
	LotName  string `json:"lot_name"`
	TeamID   string `json:"team_id,omitempty"`
	TeamName string `json:"team_name,omitempty"`
	Price    int64  `json:"price,omitempty"`
	Auto     bool   `json:"auto"`
	Reason   string `json:"reason,omitempty"`
}

// TickData accompanies timer-tick, paused and resumed.
type TickData struct {
	TimeRemaining int `json:"time_remaining"`
}

// RevertData accompanies lot-reverted.
type RevertData struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	TeamID     string `json:"team_id"`
	TeamName   string `json:"team_name"`
	Refund     int64  `json:"refund"`
}

// RejectedData accompanies rejected.
type RejectedData struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// Publisher receives committed events in commit order. Publish is called
// while the auction is locked and must not call back into the Manager.
type Publisher interface {
	Publish(ev Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ev Event)

func (f PublisherFunc) Publish(ev Event) { f(ev) }

// Publishers fans an event out to each publisher in order.
type Publishers []Publisher

func (ps Publishers) Publish(ev Event) {
	for _, p := range ps {
		if p != nil {
			p.Publish(ev)
		}
	}
}
