package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ReaperOAK/player-auction/internal/clock"
	"github.com/ReaperOAK/player-auction/internal/store"
)

const playerColumns = `id, name, year, position, base_price, played_last_year, sold_to, sold_price, created_at, updated_at`

// PlayerRepo implements store.PlayerRepository with sqlx.
type PlayerRepo struct {
	db    *sqlx.DB
	clock clock.Clock
}

// NewPlayerRepo returns a new PlayerRepo.
func NewPlayerRepo(db *sqlx.DB, clk clock.Clock) *PlayerRepo {
	return &PlayerRepo{db: db, clock: clk}
}

func (r *PlayerRepo) Create(ctx context.Context, p *store.Player) error {
	query := `INSERT INTO players (id, name, year, position, base_price, played_last_year, created_at, updated_at)
	           VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8)
	           RETURNING id`
	now := r.clock.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	err := r.db.QueryRowContext(ctx, query,
		p.ID, p.Name, p.Year, p.Position, p.BasePrice, p.PlayedLastYear, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("creating player: %w", err)
	}
	return nil
}

func (r *PlayerRepo) Get(ctx context.Context, id string) (*store.Player, error) {
	return getPlayer(ctx, r.db, id, "")
}

func (r *PlayerRepo) List(ctx context.Context, f store.PlayerFilter) ([]store.Player, error) {
	var (
		where []string
		args  []any
	)
	if f.Sold != nil {
		if *f.Sold {
			where = append(where, "sold_to IS NOT NULL")
		} else {
			where = append(where, "sold_to IS NULL")
		}
	}
	if f.Position != "" {
		args = append(args, f.Position)
		where = append(where, fmt.Sprintf("position = $%d", len(args)))
	}

	query := `SELECT ` + playerColumns + ` FROM players`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY lower(name) ASC`

	var players []store.Player
	if err := r.db.SelectContext(ctx, &players, query, args...); err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}
	return players, nil
}

// getPlayer loads one player. lock is appended to the query, e.g. "FOR UPDATE".
func getPlayer(ctx context.Context, q sqlx.QueryerContext, id, lock string) (*store.Player, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, store.NotFound("player", id)
	}
	var p store.Player
	err := sqlx.GetContext(ctx, q, &p, `SELECT `+playerColumns+` FROM players WHERE id = $1 `+lock, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("player", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting player: %w", err)
	}
	return &p, nil
}

const teamColumns = `id, name, budget, slots_left, created_at, updated_at`

// TeamRepo implements store.TeamRepository with sqlx.
type TeamRepo struct {
	db    *sqlx.DB
	clock clock.Clock
}

// NewTeamRepo returns a new TeamRepo.
func NewTeamRepo(db *sqlx.DB, clk clock.Clock) *TeamRepo {
	return &TeamRepo{db: db, clock: clk}
}

func (r *TeamRepo) Create(ctx context.Context, t *store.Team) error {
	query := `INSERT INTO teams (id, name, budget, slots_left, created_at, updated_at)
	           VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6)
	           RETURNING id`
	now := r.clock.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	err := r.db.QueryRowContext(ctx, query, t.ID, t.Name, t.Budget, t.SlotsLeft, t.CreatedAt, t.UpdatedAt).Scan(&t.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("team name %q already taken: %w", t.Name, store.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("creating team: %w", err)
	}
	return nil
}

func (r *TeamRepo) Get(ctx context.Context, id string) (*store.Team, error) {
	return getTeam(ctx, r.db, id, "")
}

func (r *TeamRepo) List(ctx context.Context) ([]store.Team, error) {
	var teams []store.Team
	err := r.db.SelectContext(ctx, &teams, `SELECT `+teamColumns+` FROM teams ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	return teams, nil
}

func getTeam(ctx context.Context, q sqlx.QueryerContext, id, lock string) (*store.Team, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, store.NotFound("team", id)
	}
	var t store.Team
	err := sqlx.GetContext(ctx, q, &t, `SELECT `+teamColumns+` FROM teams WHERE id = $1 `+lock, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("team", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting team: %w", err)
	}
	return &t, nil
}

// isUniqueViolation recognises SQLSTATE 23505 from either registered driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
