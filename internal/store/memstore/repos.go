package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/ReaperOAK/player-auction/internal/store"
)

type playerRepo struct{ s *Store }

func (r playerRepo) Create(_ context.Context, p *store.Player) error {
	r.s.txMu.Lock()
	defer r.s.txMu.Unlock()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, exists := r.s.data.players[p.ID]; exists {
		return fmt.Errorf("player %s already exists", p.ID)
	}
	now := r.s.clock.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	r.s.data.players[p.ID] = clonePlayer(*p)
	return nil
}

func (r playerRepo) Get(_ context.Context, id string) (*store.Player, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.data.players[id]
	if !ok {
		return nil, store.NotFound("player", id)
	}
	p = clonePlayer(p)
	return &p, nil
}

func (r playerRepo) List(_ context.Context, f store.PlayerFilter) ([]store.Player, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]store.Player, 0, len(r.s.data.players))
	for _, p := range r.s.data.players {
		if f.Sold != nil && p.Sold() != *f.Sold {
			continue
		}
		if f.Position != "" && p.Position != f.Position {
			continue
		}
		out = append(out, clonePlayer(p))
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

type teamRepo struct{ s *Store }

func (r teamRepo) Create(_ context.Context, t *store.Team) error {
	r.s.txMu.Lock()
	defer r.s.txMu.Unlock()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	for _, existing := range r.s.data.teams {
		if existing.Name == t.Name {
			return fmt.Errorf("team name %q already taken: %w", t.Name, store.ErrConflict)
		}
	}
	now := r.s.clock.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	r.s.data.teams[t.ID] = *t
	return nil
}

func (r teamRepo) Get(_ context.Context, id string) (*store.Team, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.data.teams[id]
	if !ok {
		return nil, store.NotFound("team", id)
	}
	return &t, nil
}

func (r teamRepo) List(_ context.Context) ([]store.Team, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]store.Team, 0, len(r.s.data.teams))
	for _, t := range r.s.data.teams {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
