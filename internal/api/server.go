// Package api exposes the auction, roster and real-time channel over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/ReaperOAK/player-auction/internal/auction"
	"github.com/ReaperOAK/player-auction/internal/auth"
	"github.com/ReaperOAK/player-auction/internal/event"
	"github.com/ReaperOAK/player-auction/internal/roster"
	"github.com/ReaperOAK/player-auction/internal/store"
)

// Auction is the state machine behind the control and bid endpoints.
type Auction interface {
	State() auction.View
	StartLot(ctx context.Context, lotID string, increment int64, duration time.Duration) (auction.View, error)
	Pause(ctx context.Context) (auction.View, error)
	Resume(ctx context.Context) (auction.View, error)
	End(ctx context.Context) (auction.View, error)
	SubmitBid(ctx context.Context, teamID string, amount int64) (auction.View, error)
	Revert(ctx context.Context, playerID string) (auction.View, error)
	UpdatePlayer(ctx context.Context, playerID string, patch store.PlayerPatch) (*store.Player, error)
	DeletePlayer(ctx context.Context, playerID string) error
}

// Roster serves player and team records.
type Roster interface {
	CreatePlayer(ctx context.Context, in roster.NewPlayer) (*store.Player, error)
	CreateTeam(ctx context.Context, in roster.NewTeam) (*store.Team, error)
	Player(ctx context.Context, id string) (*store.Player, error)
	Players(ctx context.Context, f store.PlayerFilter) ([]store.Player, error)
	Teams(ctx context.Context) ([]store.Team, error)
	Team(ctx context.Context, id string) (*roster.TeamInfo, error)
	History(ctx context.Context) ([]roster.Sale, error)
	Leaderboard(ctx context.Context) ([]roster.Standing, error)
	LotEvents(ctx context.Context, lotID string) ([]event.Event, error)
}

// RealTime attaches websocket subscribers.
type RealTime interface {
	ServeWS(w http.ResponseWriter, r *http.Request, p auth.Principal)
}

// Server is the HTTP request surface.
type Server struct {
	auction Auction
	roster  Roster
	rt      RealTime
	logger  *slog.Logger
	handler http.Handler
}

// NewServer wires the routes behind authentication, CORS and tracing.
func NewServer(a Auction, ro Roster, rt RealTime, issuer *auth.Issuer, corsOrigins []string, logger *slog.Logger, tp trace.TracerProvider) *Server {
	s := &Server{auction: a, roster: ro, rt: rt, logger: logger}

	admin := func(h http.HandlerFunc) http.Handler { return auth.Require(h, auth.RoleAdmin) }
	team := func(h http.HandlerFunc) http.Handler { return auth.Require(h, auth.RoleTeam) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/auction/state", s.handleState)
	mux.Handle("POST /api/auction/start/{playerId}", admin(s.handleStart))
	mux.Handle("POST /api/auction/pause", admin(s.handlePause))
	mux.Handle("POST /api/auction/resume", admin(s.handleResume))
	mux.Handle("POST /api/auction/end", admin(s.handleEnd))
	mux.Handle("POST /api/auction/bid", team(s.handleBid))
	mux.HandleFunc("GET /api/auction/history", s.handleHistory)
	mux.HandleFunc("GET /api/auction/lots/{id}/events", s.handleLotEvents)

	mux.HandleFunc("GET /api/players", s.handleListPlayers)
	mux.HandleFunc("GET /api/players/{id}", s.handleGetPlayer)
	mux.Handle("POST /api/players", admin(s.handleCreatePlayer))
	mux.Handle("PUT /api/players/{id}", admin(s.handleUpdatePlayer))
	mux.Handle("DELETE /api/players/{id}", admin(s.handleDeletePlayer))
	mux.Handle("POST /api/players/{id}/revert", admin(s.handleRevert))

	mux.HandleFunc("GET /api/teams", s.handleListTeams)
	mux.Handle("GET /api/teams/me", team(s.handleMyTeam))
	mux.HandleFunc("GET /api/teams/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("GET /api/teams/{id}", s.handleGetTeam)
	mux.Handle("POST /api/teams", admin(s.handleCreateTeam))

	mux.HandleFunc("GET /ws", s.handleWS)

	c := cors.New(corsOptions(corsOrigins))
	s.handler = otelhttp.NewHandler(c.Handler(issuer.Middleware(mux)), "auctiond",
		otelhttp.WithTracerProvider(tp),
	)
	return s
}

func corsOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}
}

// CheckOrigin returns the websocket origin check matching the CORS policy.
// Requests without an Origin header come from non-browser clients and pass.
func CheckOrigin(origins []string) func(*http.Request) bool {
	c := cors.New(corsOptions(origins))
	return func(r *http.Request) bool {
		if r.Header.Get("Origin") == "" {
			return true
		}
		return c.OriginAllowed(r)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
