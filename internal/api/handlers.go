package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ReaperOAK/player-auction/internal/auction"
	"github.com/ReaperOAK/player-auction/internal/auth"
	"github.com/ReaperOAK/player-auction/internal/roster"
	"github.com/ReaperOAK/player-auction/internal/store"
)

// maxTimerSeconds bounds the timer_duration a lot may be started with.
const maxTimerSeconds = 60 * 60

// StartRequest is the body of POST /api/auction/start/{playerId}. Zero
// values use the configured defaults.
type StartRequest struct {
	BidIncrement  int64 `json:"bid_increment"`
	TimerDuration int   `json:"timer_duration"`
}

// BidRequest is the body of POST /api/auction/bid.
type BidRequest struct {
	BidAmount int64 `json:"bid_amount"`
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.auction.State())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.TimerDuration < 0 || req.TimerDuration > maxTimerSeconds {
		s.writeError(w, r, fmt.Errorf("%w: timer_duration must be between 0 and %d seconds", errBadRequest, maxTimerSeconds))
		return
	}
	v, err := s.auction.StartLot(r.Context(), r.PathValue("playerId"), req.BidIncrement, time.Duration(req.TimerDuration)*time.Second)
	s.respond(w, r, v, err)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	v, err := s.auction.Pause(r.Context())
	s.respond(w, r, v, err)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	v, err := s.auction.Resume(r.Context())
	s.respond(w, r, v, err)
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	v, err := s.auction.End(r.Context())
	s.respond(w, r, v, err)
}

func (s *Server) handleBid(w http.ResponseWriter, r *http.Request) {
	var req BidRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p := auth.FromContext(r.Context())
	v, err := s.auction.SubmitBid(r.Context(), p.ID, req.BidAmount)
	s.respond(w, r, v, err)
}

func (s *Server) handleRevert(w http.ResponseWriter, r *http.Request) {
	v, err := s.auction.Revert(r.Context(), r.PathValue("id"))
	s.respond(w, r, v, err)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, v auction.View, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sales, err := s.roster.History(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

func (s *Server) handleLotEvents(w http.ResponseWriter, r *http.Request) {
	evs, err := s.roster.LotEvents(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, evs)
}

func (s *Server) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	var f store.PlayerFilter
	q := r.URL.Query()
	if raw := q.Get("sold"); raw != "" {
		sold, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: sold must be true or false", errBadRequest))
			return
		}
		f.Sold = &sold
	}
	if raw := q.Get("position"); raw != "" {
		f.Position = store.Position(raw)
		if !f.Position.Valid() {
			s.writeError(w, r, fmt.Errorf("%w: unknown position %q", errBadRequest, raw))
			return
		}
	}
	players, err := s.roster.Players(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if players == nil {
		players = []store.Player{}
	}
	writeJSON(w, http.StatusOK, players)
}

func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	p, err := s.roster.Player(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreatePlayer(w http.ResponseWriter, r *http.Request) {
	var req roster.NewPlayer
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.roster.CreatePlayer(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdatePlayer(w http.ResponseWriter, r *http.Request) {
	var patch store.PlayerPatch
	if err := decode(r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.auction.UpdatePlayer(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePlayer(w http.ResponseWriter, r *http.Request) {
	if err := s.auction.DeletePlayer(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.roster.Teams(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if teams == nil {
		teams = []store.Team{}
	}
	writeJSON(w, http.StatusOK, teams)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := s.roster.Leaderboard(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (s *Server) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	s.writeTeam(w, r, r.PathValue("id"))
}

func (s *Server) handleMyTeam(w http.ResponseWriter, r *http.Request) {
	s.writeTeam(w, r, auth.FromContext(r.Context()).ID)
}

func (s *Server) writeTeam(w http.ResponseWriter, r *http.Request, id string) {
	info, err := s.roster.Team(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var req roster.NewTeam
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.roster.CreateTeam(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// handleWS joins the real-time channel. Admin and team subscribers must
// hold a token for that role; anyone may watch as a spectator.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	role := auth.Role(r.URL.Query().Get("role"))
	if role == "" {
		role = auth.RoleSpectator
	}
	if !role.Valid() {
		s.writeError(w, r, fmt.Errorf("%w: unknown role %q", errBadRequest, role))
		return
	}

	p := auth.FromContext(r.Context())
	switch {
	case role == auth.RoleSpectator:
		p = auth.Principal{Role: auth.RoleSpectator, ID: p.ID, Name: p.Name}
	case p == auth.Anonymous:
		writeJSON(w, http.StatusUnauthorized, ErrorBody{Error: auth.ErrNoToken.Error(), Kind: "unauthenticated", Reason: "no_token"})
		return
	case p.Role != role:
		writeJSON(w, http.StatusForbidden, ErrorBody{Error: auth.ErrForbidden.Error(), Kind: "forbidden", Reason: "role_mismatch"})
		return
	}
	s.rt.ServeWS(w, r, p)
}
