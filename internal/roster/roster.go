// Package roster manages the players and teams taking part in the auction,
// outside the live bidding path.
package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ReaperOAK/player-auction/internal/event"
	"github.com/ReaperOAK/player-auction/internal/store"
)

// ErrInvalid is returned for roster entries that fail validation.
var ErrInvalid = errors.New("invalid roster entry")

// Service handles player and team records.
type Service struct {
	players store.PlayerRepository
	teams   store.TeamRepository
	events  event.Store
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewService returns a new roster Service.
func NewService(players store.PlayerRepository, teams store.TeamRepository, events event.Store, logger *slog.Logger, tp trace.TracerProvider) *Service {
	return &Service{
		players: players,
		teams:   teams,
		events:  events,
		logger:  logger,
		tracer:  tp.Tracer("github.com/ReaperOAK/player-auction/internal/roster"),
	}
}

// NewPlayer is the input for CreatePlayer.
type NewPlayer struct {
	Name           string         `json:"name"`
	Year           int            `json:"year"`
	Position       store.Position `json:"position"`
	BasePrice      int64          `json:"base_price"`
	PlayedLastYear bool           `json:"played_last_year"`
}

// CreatePlayer adds an unsold player.
func (s *Service) CreatePlayer(ctx context.Context, in NewPlayer) (*store.Player, error) {
	ctx, span := s.tracer.Start(ctx, "Service.CreatePlayer",
		trace.WithAttributes(
			attribute.String("name", in.Name),
			attribute.String("position", string(in.Position)),
		),
	)
	defer span.End()

	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	case !in.Position.Valid():
		return nil, fmt.Errorf("%w: unknown position %q", ErrInvalid, in.Position)
	case in.BasePrice < 0:
		return nil, fmt.Errorf("%w: base price must not be negative", ErrInvalid)
	case in.Year < 0:
		return nil, fmt.Errorf("%w: year must not be negative", ErrInvalid)
	}

	p := &store.Player{
		Name:           name,
		Year:           in.Year,
		Position:       in.Position,
		BasePrice:      in.BasePrice,
		PlayedLastYear: in.PlayedLastYear,
	}
	if err := s.players.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("creating player: %w", err)
	}

	s.logger.InfoContext(ctx, "player created",
		slog.String("player_id", p.ID),
		slog.String("name", p.Name),
		slog.Int64("base_price", p.BasePrice),
	)
	return p, nil
}

// NewTeam is the input for CreateTeam.
type NewTeam struct {
	Name      string `json:"name"`
	Budget    int64  `json:"budget"`
	SlotsLeft int    `json:"slots_left"`
}

// CreateTeam adds a bidding team.
func (s *Service) CreateTeam(ctx context.Context, in NewTeam) (*store.Team, error) {
	ctx, span := s.tracer.Start(ctx, "Service.CreateTeam",
		trace.WithAttributes(attribute.String("name", in.Name)),
	)
	defer span.End()

	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	case in.Budget < 0:
		return nil, fmt.Errorf("%w: budget must not be negative", ErrInvalid)
	case in.SlotsLeft < 0:
		return nil, fmt.Errorf("%w: slots must not be negative", ErrInvalid)
	}

	t := &store.Team{Name: name, Budget: in.Budget, SlotsLeft: in.SlotsLeft}
	if err := s.teams.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("creating team: %w", err)
	}

	s.logger.InfoContext(ctx, "team created",
		slog.String("team_id", t.ID),
		slog.String("name", t.Name),
		slog.Int64("budget", t.Budget),
		slog.Int("slots_left", t.SlotsLeft),
	)
	return t, nil
}

// Player returns one player.
func (s *Service) Player(ctx context.Context, id string) (*store.Player, error) {
	ctx, span := s.tracer.Start(ctx, "Service.Player")
	defer span.End()

	return s.players.Get(ctx, id)
}

// Players lists players matching f, ordered by name.
func (s *Service) Players(ctx context.Context, f store.PlayerFilter) ([]store.Player, error) {
	ctx, span := s.tracer.Start(ctx, "Service.Players")
	defer span.End()

	return s.players.List(ctx, f)
}

// Teams lists all teams ordered by name.
func (s *Service) Teams(ctx context.Context) ([]store.Team, error) {
	ctx, span := s.tracer.Start(ctx, "Service.Teams")
	defer span.End()

	return s.teams.List(ctx)
}

// TeamInfo is a team with the players it has won.
type TeamInfo struct {
	store.Team
	Players []store.Player `json:"players"`
	Spent   int64          `json:"spent"`
}

// Team returns a team and its won players, most expensive first.
func (s *Service) Team(ctx context.Context, id string) (*TeamInfo, error) {
	ctx, span := s.tracer.Start(ctx, "Service.Team",
		trace.WithAttributes(attribute.String("team_id", id)),
	)
	defer span.End()

	t, err := s.teams.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sold := true
	all, err := s.players.List(ctx, store.PlayerFilter{Sold: &sold})
	if err != nil {
		return nil, fmt.Errorf("listing sold players: %w", err)
	}

	info := &TeamInfo{Team: *t, Players: []store.Player{}}
	for _, p := range all {
		if p.SoldTo != nil && *p.SoldTo == t.ID {
			info.Players = append(info.Players, p)
			info.Spent += *p.SoldPrice
		}
	}
	sortByPrice(info.Players)
	return info, nil
}

// Sale is one entry of the auction history.
type Sale struct {
	PlayerID   string         `json:"player_id"`
	PlayerName string         `json:"player_name"`
	Position   store.Position `json:"position"`
	TeamID     string         `json:"team_id"`
	TeamName   string         `json:"team_name"`
	Price      int64          `json:"price"`
}

// History returns every sold player, highest price first.
func (s *Service) History(ctx context.Context) ([]Sale, error) {
	ctx, span := s.tracer.Start(ctx, "Service.History")
	defer span.End()

	sold := true
	players, err := s.players.List(ctx, store.PlayerFilter{Sold: &sold})
	if err != nil {
		return nil, fmt.Errorf("listing sold players: %w", err)
	}
	teams, err := s.teams.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	names := make(map[string]string, len(teams))
	for _, t := range teams {
		names[t.ID] = t.Name
	}

	sortByPrice(players)
	sales := make([]Sale, 0, len(players))
	for _, p := range players {
		sales = append(sales, Sale{
			PlayerID:   p.ID,
			PlayerName: p.Name,
			Position:   p.Position,
			TeamID:     *p.SoldTo,
			TeamName:   names[*p.SoldTo],
			Price:      *p.SoldPrice,
		})
	}
	return sales, nil
}

// RecentSales returns the sales still standing, newest first, read from
// the journal. A sale undone by a later revert is left out. A limit of zero
// or less returns all of them.
func (s *Service) RecentSales(ctx context.Context, limit int) ([]Sale, error) {
	ctx, span := s.tracer.Start(ctx, "Service.RecentSales",
		trace.WithAttributes(attribute.Int("limit", limit)),
	)
	defer span.End()

	sold, err := s.events.LoadByType(ctx, event.LotSold)
	if err != nil {
		return nil, fmt.Errorf("loading sold events: %w", err)
	}
	reverted, err := s.events.LoadByType(ctx, event.LotReverted)
	if err != nil {
		return nil, fmt.Errorf("loading revert events: %w", err)
	}
	undone := make(map[string]int64, len(reverted))
	for _, e := range reverted {
		undone[e.AggregateID] = max(undone[e.AggregateID], e.Version)
	}

	players, teams, err := s.names(ctx)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(sold, func(i, j int) bool { return sold[i].Version > sold[j].Version })
	sales := []Sale{}
	for _, e := range sold {
		if limit > 0 && len(sales) == limit {
			break
		}
		if undone[e.AggregateID] > e.Version {
			continue
		}
		var data event.SettledData
		if err := json.Unmarshal(e.Data, &data); err != nil {
			return nil, fmt.Errorf("decoding sale %s: %w", e.ID, err)
		}
		p, ok := players[e.AggregateID]
		if !ok {
			continue
		}
		sales = append(sales, Sale{
			PlayerID:   p.ID,
			PlayerName: p.Name,
			Position:   p.Position,
			TeamID:     data.TeamID,
			TeamName:   teams[data.TeamID],
			Price:      data.Price,
		})
	}
	return sales, nil
}

// names maps sold players by id and team ids to names.
func (s *Service) names(ctx context.Context) (map[string]store.Player, map[string]string, error) {
	sold := true
	players, err := s.players.List(ctx, store.PlayerFilter{Sold: &sold})
	if err != nil {
		return nil, nil, fmt.Errorf("listing sold players: %w", err)
	}
	teams, err := s.teams.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("listing teams: %w", err)
	}
	byID := make(map[string]store.Player, len(players))
	for _, p := range players {
		byID[p.ID] = p
	}
	teamNames := make(map[string]string, len(teams))
	for _, t := range teams {
		teamNames[t.ID] = t.Name
	}
	return byID, teamNames, nil
}

// Standing is one row of the leaderboard.
type Standing struct {
	TeamID          string `json:"team_id"`
	TeamName        string `json:"team_name"`
	TotalSpent      int64  `json:"total_spent"`
	PlayersCount    int    `json:"players_count"`
	RemainingBudget int64  `json:"remaining_budget"`
	SlotsLeft       int    `json:"slots_left"`
}

// Leaderboard ranks teams by total spent, then by name.
func (s *Service) Leaderboard(ctx context.Context) ([]Standing, error) {
	ctx, span := s.tracer.Start(ctx, "Service.Leaderboard")
	defer span.End()

	teams, err := s.teams.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	sold := true
	players, err := s.players.List(ctx, store.PlayerFilter{Sold: &sold})
	if err != nil {
		return nil, fmt.Errorf("listing sold players: %w", err)
	}

	rows := make(map[string]*Standing, len(teams))
	board := make([]Standing, len(teams))
	for i, t := range teams {
		board[i] = Standing{TeamID: t.ID, TeamName: t.Name, RemainingBudget: t.Budget, SlotsLeft: t.SlotsLeft}
		rows[t.ID] = &board[i]
	}
	for _, p := range players {
		if row, ok := rows[*p.SoldTo]; ok {
			row.TotalSpent += *p.SoldPrice
			row.PlayersCount++
		}
	}
	sort.SliceStable(board, func(i, j int) bool {
		if board[i].TotalSpent != board[j].TotalSpent {
			return board[i].TotalSpent > board[j].TotalSpent
		}
		return board[i].TeamName < board[j].TeamName
	})
	return board, nil
}

// LotEvents returns the journal of one lot in version order.
func (s *Service) LotEvents(ctx context.Context, lotID string) ([]event.Event, error) {
	ctx, span := s.tracer.Start(ctx, "Service.LotEvents",
		trace.WithAttributes(attribute.String("lot_id", lotID)),
	)
	defer span.End()

	evs, err := s.events.Load(ctx, lotID)
	if err != nil {
		return nil, fmt.Errorf("loading lot journal: %w", err)
	}
	if evs == nil {
		evs = []event.Event{}
	}
	return evs, nil
}

func sortByPrice(players []store.Player) {
	sort.SliceStable(players, func(i, j int) bool {
		return price(players[i]) > price(players[j])
	})
}

func price(p store.Player) int64 {
	if p.SoldPrice == nil {
		return 0
	}
	return *p.SoldPrice
}
