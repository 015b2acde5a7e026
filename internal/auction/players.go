package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ReaperOAK/player-auction/internal/store"
)

// UpdatePlayer edits an unsold player. The player on the block cannot be
// edited until its lot is settled. Edits do not change the auction state
// and publish nothing.
func (m *Manager) UpdatePlayer(ctx context.Context, playerID string, patch store.PlayerPatch) (*store.Player, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.UpdatePlayer",
		trace.WithAttributes(attribute.String("player_id", playerID)),
	)
	defer span.End()

	if err := validatePatch(playerID, &patch); err != nil {
		return nil, m.reject(ctx, "update player", failure(KindValidation, err))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.playerEditable(playerID); err != nil {
		return nil, m.reject(ctx, "update player", err)
	}

	var updated *store.Player
	err := m.ledger.WithinTx(ctx, func(tx store.Tx) error {
		p, err := m.unsoldPlayer(ctx, tx, playerID)
		if err != nil {
			return err
		}
		patch.Apply(p)
		if err := tx.UpdatePlayer(ctx, p); err != nil {
			return playerWriteError(playerID, err)
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, m.reject(ctx, "update player", err)
	}

	m.logger.InfoContext(ctx, "player updated",
		slog.String("player_id", updated.ID),
		slog.String("name", updated.Name),
		slog.Int64("base_price", updated.BasePrice),
	)
	return updated, nil
}

// DeletePlayer removes an unsold player that is not on the block.
func (m *Manager) DeletePlayer(ctx context.Context, playerID string) error {
	ctx, span := m.tracer.Start(ctx, "Manager.DeletePlayer",
		trace.WithAttributes(attribute.String("player_id", playerID)),
	)
	defer span.End()

	if playerID == "" {
		return m.reject(ctx, "delete player", failure(KindValidation, invalid("player id is required")))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.playerEditable(playerID); err != nil {
		return m.reject(ctx, "delete player", err)
	}

	err := m.ledger.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := m.unsoldPlayer(ctx, tx, playerID); err != nil {
			return err
		}
		if err := tx.DeletePlayer(ctx, playerID); err != nil {
			return playerWriteError(playerID, err)
		}
		return nil
	})
	if err != nil {
		return m.reject(ctx, "delete player", err)
	}

	m.logger.InfoContext(ctx, "player deleted", slog.String("player_id", playerID))
	return nil
}

// playerEditable must be called with m.mu held.
func (m *Manager) playerEditable(playerID string) error {
	if err := m.writable(); err != nil {
		return err
	}
	if id := m.state.CurrentLotID; id != nil && *id == playerID {
		return failure(KindPrecondition, fmt.Errorf("%w: %s", ErrPlayerInLot, playerID))
	}
	return nil
}

func (m *Manager) unsoldPlayer(ctx context.Context, tx store.Tx, playerID string) (*store.Player, error) {
	p, err := tx.Player(ctx, playerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, failure(KindPrecondition, fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID))
	}
	if err != nil {
		return nil, err
	}
	if p.Sold() {
		return nil, failure(KindPrecondition, fmt.Errorf("%w: %s", ErrPlayerSold, playerID))
	}
	return p, nil
}

func playerWriteError(playerID string, err error) error {
	if errors.Is(err, store.ErrConflict) {
		return failure(KindPrecondition, fmt.Errorf("%w: %s", ErrPlayerSold, playerID))
	}
	return err
}

func validatePatch(playerID string, patch *store.PlayerPatch) error {
	if playerID == "" {
		return invalid("player id is required")
	}
	if *patch == (store.PlayerPatch{}) {
		return invalid("no fields to update")
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return invalid("name must not be empty")
		}
		patch.Name = &name
	}
	if patch.Year != nil && *patch.Year < 0 {
		return invalid("year must not be negative")
	}
	if patch.Position != nil && !patch.Position.Valid() {
		return invalid("unknown position %q", *patch.Position)
	}
	if patch.BasePrice != nil && *patch.BasePrice < 0 {
		return invalid("base price must not be negative")
	}
	return nil
}
