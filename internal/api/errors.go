package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ReaperOAK/player-auction/internal/auction"
	"github.com/ReaperOAK/player-auction/internal/roster"
	"github.com/ReaperOAK/player-auction/internal/store"
)

// errBadRequest marks request bodies and query strings that cannot be decoded.
var errBadRequest = errors.New("malformed request")

// ErrorBody is the JSON shape of every failed request.
type ErrorBody struct {
	Error  string        `json:"error"`
	Kind   string        `json:"kind"`
	Reason string        `json:"reason"`
	State  *auction.View `json:"state,omitempty"`
}

var kindStatus = map[auction.Kind]int{
	auction.KindValidation:        http.StatusBadRequest,
	auction.KindPrecondition:      http.StatusConflict,
	auction.KindResourceExhausted: http.StatusUnprocessableEntity,
	auction.KindStorage:           http.StatusServiceUnavailable,
	auction.KindInternal:          http.StatusInternalServerError,
}

// classify maps err onto a status code and body. Auction errors carry their
// own view; everything else is answered with the current one.
func (s *Server) classify(err error) (int, ErrorBody) {
	var ae *auction.Error
	if errors.As(err, &ae) {
		state := ae.State
		return kindStatus[ae.Kind], ErrorBody{
			Error:  ae.Err.Error(),
			Kind:   ae.Kind.String(),
			Reason: auction.Reason(ae.Err),
			State:  &state,
		}
	}

	state := s.auction.State()
	body := ErrorBody{Error: err.Error(), State: &state}
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, roster.ErrInvalid):
		body.Kind, body.Reason = auction.KindValidation.String(), "invalid_argument"
		return http.StatusBadRequest, body
	case errors.Is(err, store.ErrNotFound):
		body.Kind, body.Reason = "not_found", "not_found"
		return http.StatusNotFound, body
	case errors.Is(err, store.ErrConflict):
		body.Kind, body.Reason = auction.KindPrecondition.String(), "conflict"
		return http.StatusConflict, body
	}
	body.Kind, body.Reason = auction.KindInternal.String(), auction.KindInternal.String()
	return http.StatusInternalServerError, body
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, body := s.classify(err)
	if code >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", code),
			slog.Any("error", err),
		)
	}
	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
