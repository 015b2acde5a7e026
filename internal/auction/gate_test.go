package auction_test

import (
	"errors"
	"testing"

	"github.com/ReaperOAK/player-auction/internal/auction"
	"github.com/ReaperOAK/player-auction/internal/store"
)

func TestAdmit(t *testing.T) {
	running := &store.AuctionState{Status: store.StatusInProgress, CurrentBid: 50000, BidIncrement: 10000}
	rich := &store.Team{ID: "t1", Budget: 1000000, SlotsLeft: 3}

	tests := []struct {
		name   string
		state  *store.AuctionState
		team   *store.Team
		amount int64
		want   error
	}{
		{name: "accepted at exact minimum", state: running, team: rich, amount: 60000},
		{name: "accepted above minimum", state: running, team: rich, amount: 95000},
		{
			name:   "not started",
			state:  &store.AuctionState{Status: store.StatusNotStarted},
			team:   rich,
			amount: 60000,
			want:   auction.ErrAuctionNotActive,
		},
		{
			name:   "paused",
			state:  &store.AuctionState{Status: store.StatusPaused, CurrentBid: 50000, BidIncrement: 10000},
			team:   rich,
			amount: 60000,
			want:   auction.ErrAuctionNotActive,
		},
		{name: "equal to current bid", state: running, team: rich, amount: 50000, want: auction.ErrBidTooLow},
		{name: "below current bid", state: running, team: rich, amount: 1, want: auction.ErrBidTooLow},
		{name: "below increment", state: running, team: rich, amount: 59999, want: auction.ErrBelowIncrement},
		{
			name:   "over budget",
			state:  running,
			team:   &store.Team{Budget: 59999, SlotsLeft: 3},
			amount: 60000,
			want:   auction.ErrInsufficientBudget,
		},
		{
			name:   "budget exactly matches",
			state:  running,
			team:   &store.Team{Budget: 60000, SlotsLeft: 1},
			amount: 60000,
		},
		{
			name:   "no slots",
			state:  running,
			team:   &store.Team{Budget: 1000000, SlotsLeft: 0},
			amount: 60000,
			want:   auction.ErrNoSlotsLeft,
		},
		{
			// Budget is checked before slots.
			name:   "over budget and no slots",
			state:  running,
			team:   &store.Team{Budget: 1, SlotsLeft: 0},
			amount: 60000,
			want:   auction.ErrInsufficientBudget,
		},
		{
			// Increment is checked before budget.
			name:   "below increment and over budget",
			state:  running,
			team:   &store.Team{Budget: 1, SlotsLeft: 0},
			amount: 55000,
			want:   auction.ErrBelowIncrement,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auction.Admit(tt.state, tt.team, tt.amount)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Admit() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Admit() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestReasonAndKind(t *testing.T) {
	tests := []struct {
		err    error
		reason string
		kind   auction.Kind
	}{
		{err: &auction.Error{Kind: auction.KindPrecondition, Err: auction.ErrBelowIncrement}, reason: "below_increment", kind: auction.KindPrecondition},
		{err: &auction.Error{Kind: auction.KindResourceExhausted, Err: auction.ErrNoSlotsLeft}, reason: "no_slots_left", kind: auction.KindResourceExhausted},
		{err: &auction.Error{Kind: auction.KindStorage, Err: errors.New("db down")}, reason: "storage_failure", kind: auction.KindStorage},
		{err: errors.New("plain"), reason: "internal", kind: auction.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			if got := auction.Reason(tt.err); got != tt.reason {
				t.Errorf("Reason() = %q, want %q", got, tt.reason)
			}
			if got := auction.KindOf(tt.err); got != tt.kind {
				t.Errorf("KindOf() = %v, want %v", got, tt.kind)
			}
		})
	}
}
