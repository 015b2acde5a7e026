package memstore

import (
	"context"
	"fmt"

	"github.com/ReaperOAK/player-auction/internal/clock"
	"github.com/ReaperOAK/player-auction/internal/event"
	"github.com/ReaperOAK/player-auction/internal/store"
)

type tx struct {
	d     *dataset
	clock clock.Clock
}

func (t *tx) Player(_ context.Context, id string) (*store.Player, error) {
	p, ok := t.d.players[id]
	if !ok {
		return nil, store.NotFound("player", id)
	}
	p = clonePlayer(p)
	return &p, nil
}

func (t *tx) Team(_ context.Context, id string) (*store.Team, error) {
	tm, ok := t.d.teams[id]
	if !ok {
		return nil, store.NotFound("team", id)
	}
	return &tm, nil
}

func (t *tx) AuctionState(_ context.Context) (*store.AuctionState, error) {
	if t.d.state == nil {
		return nil, fmt.Errorf("auction state: %w", store.ErrNotFound)
	}
	st := cloneState(*t.d.state)
	return &st, nil
}

func (t *tx) SaveAuctionState(_ context.Context, s *store.AuctionState) error {
	st := cloneState(*s)
	st.UpdatedAt = t.clock.Now().UTC()
	t.d.state = &st
	return nil
}

func (t *tx) MarkSold(_ context.Context, playerID, teamID string, price int64) error {
	p, ok := t.d.players[playerID]
	if !ok {
		return store.NotFound("player", playerID)
	}
	if p.SoldTo != nil {
		return fmt.Errorf("marking player %s sold: %w", playerID, store.ErrConflict)
	}
	if _, ok := t.d.teams[teamID]; !ok {
		return store.NotFound("team", teamID)
	}
	team, amount := teamID, price
	p.SoldTo = &team
	p.SoldPrice = &amount
	p.UpdatedAt = t.clock.Now().UTC()
	t.d.players[playerID] = p
	return nil
}

func (t *tx) ClearSale(_ context.Context, playerID string) error {
	p, ok := t.d.players[playerID]
	if !ok {
		return store.NotFound("player", playerID)
	}
	if p.SoldTo == nil {
		return fmt.Errorf("clearing sale of player %s: %w", playerID, store.ErrConflict)
	}
	p.SoldTo = nil
	p.SoldPrice = nil
	p.UpdatedAt = t.clock.Now().UTC()
	t.d.players[playerID] = p
	return nil
}

func (t *tx) UpdatePlayer(_ context.Context, p *store.Player) error {
	cur, ok := t.d.players[p.ID]
	if !ok {
		return store.NotFound("player", p.ID)
	}
	if cur.SoldTo != nil {
		return fmt.Errorf("updating player %s: %w", p.ID, store.ErrConflict)
	}
	cur.Name, cur.Year, cur.Position = p.Name, p.Year, p.Position
	cur.BasePrice, cur.PlayedLastYear = p.BasePrice, p.PlayedLastYear
	cur.UpdatedAt = t.clock.Now().UTC()
	t.d.players[p.ID] = cur
	p.UpdatedAt = cur.UpdatedAt
	return nil
}

func (t *tx) DeletePlayer(_ context.Context, id string) error {
	cur, ok := t.d.players[id]
	if !ok {
		return store.NotFound("player", id)
	}
	if cur.SoldTo != nil {
		return fmt.Errorf("deleting player %s: %w", id, store.ErrConflict)
	}
	delete(t.d.players, id)
	return nil
}

func (t *tx) AdjustTeam(_ context.Context, teamID string, budgetDelta int64, slotsDelta int) error {
	tm, ok := t.d.teams[teamID]
	if !ok {
		return store.NotFound("team", teamID)
	}
	if tm.Budget+budgetDelta < 0 || tm.SlotsLeft+slotsDelta < 0 {
		return fmt.Errorf("adjusting team %s: %w", teamID, store.ErrNegativeBalance)
	}
	tm.Budget += budgetDelta
	tm.SlotsLeft += slotsDelta
	tm.UpdatedAt = t.clock.Now().UTC()
	t.d.teams[teamID] = tm
	return nil
}

func (t *tx) Append(_ context.Context, events ...event.Event) error {
	t.d.events = appendEvents(t.d.events, t.clock, events)
	return nil
}
