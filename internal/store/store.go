package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ReaperOAK/player-auction/internal/event"
)

// Errors returned by ledger operations.
var (
	ErrNotFound        = errors.New("record not found")
	ErrConflict        = errors.New("conditional update did not match")
	ErrNegativeBalance = errors.New("budget or slots would go negative")
)

// Position is a player's playing position.
type Position string

const (
	PositionGK       Position = "GK"
	PositionDefender Position = "Defender"
	PositionMidfield Position = "Midfield"
	PositionStriker  Position = "Striker"
	PositionGirls    Position = "Girls"
)

// Valid reports whether p is one of the known positions.
func (p Position) Valid() bool {
	switch p {
	case PositionGK, PositionDefender, PositionMidfield, PositionStriker, PositionGirls:
		return true
	}
	return false
}

// Player is an auctionable player record.
type Player struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Year           int       `db:"year" json:"year"`
	Position       Position  `db:"position" json:"position"`
	BasePrice      int64     `db:"base_price" json:"base_price"`
	PlayedLastYear bool      `db:"played_last_year" json:"played_last_year"`
	SoldTo         *string   `db:"sold_to" json:"sold_to,omitempty"`
	SoldPrice      *int64    `db:"sold_price" json:"sold_price,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Sold reports whether the player has been sold in the current cycle.
func (p *Player) Sold() bool { return p.SoldTo != nil }

// PlayerPatch lists the player fields an edit may change. Nil fields are
// left as they are.
type PlayerPatch struct {
	Name           *string   `json:"name,omitempty"`
	Year           *int      `json:"year,omitempty"`
	Position       *Position `json:"position,omitempty"`
	BasePrice      *int64    `json:"base_price,omitempty"`
	PlayedLastYear *bool     `json:"played_last_year,omitempty"`
}

// Apply copies the set fields of pp onto p.
func (pp PlayerPatch) Apply(p *Player) {
	if pp.Name != nil {
		p.Name = *pp.Name
	}
	if pp.Year != nil {
		p.Year = *pp.Year
	}
	if pp.Position != nil {
		p.Position = *pp.Position
	}
	if pp.BasePrice != nil {
		p.BasePrice = *pp.BasePrice
	}
	if pp.PlayedLastYear != nil {
		p.PlayedLastYear = *pp.PlayedLastYear
	}
}

// Team is a bidding team with its remaining budget and roster slots.
type Team struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Budget    int64     `db:"budget" json:"budget"`
	SlotsLeft int       `db:"slots_left" json:"slots_left"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AuctionStatus is the persisted status of the auction singleton.
type AuctionStatus string

const (
	StatusNotStarted AuctionStatus = "not_started"
	StatusInProgress AuctionStatus = "in_progress"
	StatusPaused     AuctionStatus = "paused"
)

// AuctionState is the single auction state row.
type AuctionState struct {
	Status          AuctionStatus `db:"status"`
	CurrentLotID    *string       `db:"current_player_id"`
	CurrentBid      int64         `db:"current_bid"`
	CurrentBidderID *string       `db:"current_bidder"`
	BidIncrement    int64         `db:"bid_increment"`
	TimeRemaining   int           `db:"time_left"`
	Version         int64         `db:"version"`
	UpdatedAt       time.Time     `db:"updated_at"`
}

// PlayerFilter narrows PlayerRepository.List.
type PlayerFilter struct {
	Sold     *bool
	Position Position
}

// PlayerRepository defines player persistence operations.
type PlayerRepository interface {
	Create(ctx context.Context, p *Player) error
	Get(ctx context.Context, id string) (*Player, error)
	List(ctx context.Context, f PlayerFilter) ([]Player, error)
}

// TeamRepository defines team persistence operations.
type TeamRepository interface {
	Create(ctx context.Context, t *Team) error
	Get(ctx context.Context, id string) (*Team, error)
	List(ctx context.Context) ([]Team, error)
}

// Tx is a unit of work against the auction state, players and teams.
// Nothing written through a Tx is visible until the enclosing WithinTx
// returns nil.
type Tx interface {
	Player(ctx context.Context, id string) (*Player, error)
	Team(ctx context.Context, id string) (*Team, error)
	// AuctionState returns ErrNotFound until the row has been saved once.
	AuctionState(ctx context.Context) (*AuctionState, error)
	SaveAuctionState(ctx context.Context, s *AuctionState) error
	// MarkSold fails with ErrConflict if the player is already sold.
	MarkSold(ctx context.Context, playerID, teamID string, price int64) error
	// ClearSale fails with ErrConflict if the player is not sold.
	ClearSale(ctx context.Context, playerID string) error
	// UpdatePlayer writes the editable fields of p. Sold players are not
	// editable and fail with ErrConflict.
	UpdatePlayer(ctx context.Context, p *Player) error
	// DeletePlayer fails with ErrConflict if the player is sold.
	DeletePlayer(ctx context.Context, id string) error
	// AdjustTeam fails with ErrNegativeBalance instead of letting budget
	// or slots drop below zero.
	AdjustTeam(ctx context.Context, teamID string, budgetDelta int64, slotsDelta int) error
	Append(ctx context.Context, events ...event.Event) error
}

// Ledger runs units of work atomically.
type Ledger interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// NotFound wraps ErrNotFound with the kind and id of the missing record.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}
