// Package memstore provides an in-process store.Driver. Units of work run
// against a copy of the data set that replaces the live one on success, so
// a failed WithinTx leaves nothing behind.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ReaperOAK/player-auction/internal/clock"
	"github.com/ReaperOAK/player-auction/internal/config"
	"github.com/ReaperOAK/player-auction/internal/event"
	"github.com/ReaperOAK/player-auction/internal/store"
)

func init() {
	store.Register("memory", openMemory)
}

func openMemory(_ context.Context, _ config.DatabaseConfig, clk clock.Clock) (*store.Repositories, error) {
	s := New(clk)
	return s.Repositories(), nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

type dataset struct {
	players map[string]store.Player
	teams   map[string]store.Team
	state   *store.AuctionState
	events  []event.Event
}

func (d *dataset) clone() *dataset {
	c := &dataset{
		players: make(map[string]store.Player, len(d.players)),
		teams:   make(map[string]store.Team, len(d.teams)),
		events:  d.events[:len(d.events):len(d.events)],
	}
	for k, v := range d.players {
		c.players[k] = clonePlayer(v)
	}
	for k, v := range d.teams {
		c.teams[k] = v
	}
	if d.state != nil {
		st := cloneState(*d.state)
		c.state = &st
	}
	return c
}

// Store is an in-memory ledger, player/team repository and journal.
type Store struct {
	txMu  sync.Mutex // serializes writers
	mu    sync.RWMutex
	data  *dataset
	clock clock.Clock
}

// New returns an empty Store.
func New(clk clock.Clock) *Store {
	return &Store{
		clock: clk,
		data: &dataset{
			players: make(map[string]store.Player),
			teams:   make(map[string]store.Team),
		},
	}
}

// Repositories exposes s through the store interfaces.
func (s *Store) Repositories() *store.Repositories {
	return &store.Repositories{
		Players: playerRepo{s},
		Teams:   teamRepo{s},
		Ledger:  s,
		Events:  s,
		Closer:  closerFunc(func() error { return nil }),
		Ping:    func(context.Context) error { return nil },
	}
}

// WithinTx runs fn against a private copy of the data and publishes the
// copy only if fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.data.clone()
	s.mu.RUnlock()

	if err := fn(&tx{d: work, clock: s.clock}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = work
	s.mu.Unlock()
	return nil
}

func (s *Store) Append(_ context.Context, events ...event.Event) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.events = appendEvents(s.data.events, s.clock, events)
	return nil
}

func (s *Store) Load(_ context.Context, aggregateID string) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []event.Event
	for _, e := range s.data.events {
		if e.AggregateID == aggregateID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (s *Store) LoadByType(_ context.Context, eventType event.Type) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []event.Event
	for _, e := range s.data.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out, nil
}

func appendEvents(dst []event.Event, clk clock.Clock, events []event.Event) []event.Event {
	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		e.CreatedAt = clk.Now().UTC()
		dst = append(dst, e)
	}
	return dst
}

func clonePlayer(p store.Player) store.Player {
	if p.SoldTo != nil {
		v := *p.SoldTo
		p.SoldTo = &v
	}
	if p.SoldPrice != nil {
		v := *p.SoldPrice
		p.SoldPrice = &v
	}
	return p
}

func cloneState(st store.AuctionState) store.AuctionState {
	if st.CurrentLotID != nil {
		v := *st.CurrentLotID
		st.CurrentLotID = &v
	}
	if st.CurrentBidderID != nil {
		v := *st.CurrentBidderID
		st.CurrentBidderID = &v
	}
	return st
}
