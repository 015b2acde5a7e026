package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ReaperOAK/player-auction/internal/clock"
	"github.com/ReaperOAK/player-auction/internal/event"
	"github.com/ReaperOAK/player-auction/internal/store"
)

// Ledger implements store.Ledger on a single SQL transaction per unit of work.
type Ledger struct {
	db    *sqlx.DB
	clock clock.Clock
}

// NewLedger returns a new Ledger.
func NewLedger(db *sqlx.DB, clk clock.Clock) *Ledger {
	return &Ledger{db: db, clock: clk}
}

func (l *Ledger) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&pgTx{tx: tx, clock: l.clock}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	tx    *sqlx.Tx
	clock clock.Clock
}

func (t *pgTx) Player(ctx context.Context, id string) (*store.Player, error) {
	return getPlayer(ctx, t.tx, id, "FOR UPDATE")
}

func (t *pgTx) Team(ctx context.Context, id string) (*store.Team, error) {
	return getTeam(ctx, t.tx, id, "FOR UPDATE")
}

func (t *pgTx) AuctionState(ctx context.Context) (*store.AuctionState, error) {
	var s store.AuctionState
	err := t.tx.GetContext(ctx, &s,
		`SELECT status, current_player_id, current_bid, current_bidder, bid_increment, time_left, version, updated_at
		 FROM auction_state WHERE id = 1 FOR UPDATE`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("auction state: %w", store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting auction state: %w", err)
	}
	return &s, nil
}

func (t *pgTx) SaveAuctionState(ctx context.Context, s *store.AuctionState) error {
	s.UpdatedAt = t.clock.Now().UTC()
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO auction_state (id, status, current_player_id, current_bid, current_bidder, bid_increment, time_left, version, updated_at)
		 VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   status = EXCLUDED.status,
		   current_player_id = EXCLUDED.current_player_id,
		   current_bid = EXCLUDED.current_bid,
		   current_bidder = EXCLUDED.current_bidder,
		   bid_increment = EXCLUDED.bid_increment,
		   time_left = EXCLUDED.time_left,
		   version = EXCLUDED.version,
		   updated_at = EXCLUDED.updated_at`,
		s.Status, s.CurrentLotID, s.CurrentBid, s.CurrentBidderID, s.BidIncrement, s.TimeRemaining, s.Version, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving auction state: %w", err)
	}
	return nil
}

func (t *pgTx) MarkSold(ctx context.Context, playerID, teamID string, price int64) error {
	if _, err := getTeam(ctx, t.tx, teamID, ""); err != nil {
		return err
	}
	result, err := t.tx.ExecContext(ctx,
		`UPDATE players SET sold_to = $1, sold_price = $2, updated_at = $3
		 WHERE id = $4 AND sold_to IS NULL`,
		teamID, price, t.clock.Now().UTC(), playerID,
	)
	if err != nil {
		return fmt.Errorf("marking player sold: %w", err)
	}
	return t.expectOne(ctx, result, playerID, "marking player "+playerID+" sold")
}

func (t *pgTx) ClearSale(ctx context.Context, playerID string) error {
	result, err := t.tx.ExecContext(ctx,
		`UPDATE players SET sold_to = NULL, sold_price = NULL, updated_at = $1
		 WHERE id = $2 AND sold_to IS NOT NULL`,
		t.clock.Now().UTC(), playerID,
	)
	if err != nil {
		return fmt.Errorf("clearing sale: %w", err)
	}
	return t.expectOne(ctx, result, playerID, "clearing sale of player "+playerID)
}

func (t *pgTx) UpdatePlayer(ctx context.Context, p *store.Player) error {
	now := t.clock.Now().UTC()
	result, err := t.tx.ExecContext(ctx,
		`UPDATE players SET name = $1, year = $2, position = $3, base_price = $4, played_last_year = $5, updated_at = $6
		 WHERE id = $7 AND sold_to IS NULL`,
		p.Name, p.Year, p.Position, p.BasePrice, p.PlayedLastYear, now, p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating player: %w", err)
	}
	if err := t.expectOne(ctx, result, p.ID, "updating player "+p.ID); err != nil {
		return err
	}
	p.UpdatedAt = now
	return nil
}

func (t *pgTx) DeletePlayer(ctx context.Context, id string) error {
	result, err := t.tx.ExecContext(ctx,
		`DELETE FROM players WHERE id = $1 AND sold_to IS NULL`, id)
	if err != nil {
		return fmt.Errorf("deleting player: %w", err)
	}
	return t.expectOne(ctx, result, id, "deleting player "+id)
}

// expectOne turns a zero-row player update into ErrNotFound or ErrConflict.
func (t *pgTx) expectOne(ctx context.Context, result sql.Result, playerID, op string) error {
	n, _ := result.RowsAffected()
	if n == 1 {
		return nil
	}
	if _, err := getPlayer(ctx, t.tx, playerID, ""); err != nil {
		return err
	}
	return fmt.Errorf("%s: %w", op, store.ErrConflict)
}

func (t *pgTx) AdjustTeam(ctx context.Context, teamID string, budgetDelta int64, slotsDelta int) error {
	if _, err := getTeam(ctx, t.tx, teamID, ""); err != nil {
		return err
	}
	result, err := t.tx.ExecContext(ctx,
		`UPDATE teams SET budget = budget + $1, slots_left = slots_left + $2, updated_at = $3
		 WHERE id = $4 AND budget + $1 >= 0 AND slots_left + $2 >= 0`,
		budgetDelta, slotsDelta, t.clock.Now().UTC(), teamID,
	)
	if err != nil {
		return fmt.Errorf("adjusting team: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("adjusting team %s: %w", teamID, store.ErrNegativeBalance)
	}
	return nil
}

func (t *pgTx) Append(ctx context.Context, events ...event.Event) error {
	return appendEvents(ctx, t.tx, events)
}
