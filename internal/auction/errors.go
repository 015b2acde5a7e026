package auction

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation failed.
type Kind int

const (
	// KindValidation means the input was malformed; nothing was attempted.
	KindValidation Kind = iota + 1
	// KindPrecondition means the auction is not in a state that allows the operation.
	KindPrecondition
	// KindResourceExhausted means the team lacks budget or roster slots.
	KindResourceExhausted
	// KindStorage means the ledger failed and the mutation was rolled back.
	KindStorage
	// KindInternal means an invariant was violated.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPrecondition:
		return "precondition_failed"
	case KindResourceExhausted:
		return "resource_exhausted"
	case KindStorage:
		return "storage_failure"
	case KindInternal:
		return "internal"
	}
	return "unknown"
}

// Lot lifecycle errors.
var (
	ErrInvalidLot  = errors.New("lot does not exist or is already sold")
	ErrLotActive   = errors.New("a lot is already active")
	ErrNotRunning  = errors.New("auction is not running")
	ErrNotPaused   = errors.New("auction is not paused")
	ErrNoTimeLeft  = errors.New("no time remaining on the paused lot")
	ErrNoActiveLot = errors.New("no active lot")
	ErrNotSold     = errors.New("player is not sold")
	ErrInvalidArg  = errors.New("invalid argument")
	ErrClosed      = errors.New("auction service is not serving")
	ErrPlayerInLot = errors.New("player is the current lot")
	ErrPlayerSold  = errors.New("player is already sold")
)

// Bid admission errors, in the order the rules are applied.
var (
	ErrAuctionNotActive   = errors.New("auction is not active")
	ErrBidTooLow          = errors.New("bid must be higher than the current bid")
	ErrBelowIncrement     = errors.New("bid is below the minimum increment")
	ErrInsufficientBudget = errors.New("insufficient budget")
	ErrNoSlotsLeft        = errors.New("no roster slots left")
)

// Identity errors.
var (
	ErrUnknownTeam   = errors.New("unknown team")
	ErrUnknownPlayer = errors.New("unknown player")
)

// Error is returned by every Manager mutation. State is the authoritative
// view at the time of failure so callers can resync without another fetch.
type Error struct {
	Kind  Kind
	Err   error
	State View
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind carried by err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Reason returns a short snake_case code for err, used in metrics and
// rejected events.
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.code
		}
	}
	return KindOf(err).String()
}

var reasons = []struct {
	err  error
	code string
}{
	{ErrInvalidLot, "invalid_lot"},
	{ErrLotActive, "lot_active"},
	{ErrNotRunning, "not_running"},
	{ErrNotPaused, "not_paused"},
	{ErrNoTimeLeft, "no_time_left"},
	{ErrNoActiveLot, "no_active_lot"},
	{ErrNotSold, "not_sold"},
	{ErrInvalidArg, "invalid_argument"},
	{ErrClosed, "closed"},
	{ErrPlayerInLot, "player_in_lot"},
	{ErrPlayerSold, "player_sold"},
	{ErrAuctionNotActive, "auction_not_active"},
	{ErrBidTooLow, "bid_too_low"},
	{ErrBelowIncrement, "below_increment"},
	{ErrInsufficientBudget, "insufficient_budget"},
	{ErrNoSlotsLeft, "no_slots_left"},
	{ErrUnknownTeam, "unknown_team"},
	{ErrUnknownPlayer, "unknown_player"},
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArg, fmt.Sprintf(format, args...))
}
