package auction

import (
	"errors"
	"fmt"

	"github.com/ReaperOAK/player-auction/internal/store"
)

// admitState applies the rules that depend only on the auction state.
func admitState(s *store.AuctionState, amount int64) error {
	if s.Status != store.StatusInProgress {
		return ErrAuctionNotActive
	}
	if amount <= s.CurrentBid {
		return fmt.Errorf("%w: current bid is %d", ErrBidTooLow, s.CurrentBid)
	}
	if minimum := s.CurrentBid + s.BidIncrement; amount < minimum {
		return fmt.Errorf("%w: minimum is %d", ErrBelowIncrement, minimum)
	}
	return nil
}

// admitTeam applies the rules that depend on the bidding team.
func admitTeam(t *store.Team, amount int64) error {
	if amount > t.Budget {
		return fmt.Errorf("%w: budget is %d", ErrInsufficientBudget, t.Budget)
	}
	if t.SlotsLeft <= 0 {
		return ErrNoSlotsLeft
	}
	return nil
}

// Admit reports whether team may bid amount against s. Rules are checked
// in a fixed order and the first failure is returned.
func Admit(s *store.AuctionState, t *store.Team, amount int64) error {
	if err := admitState(s, amount); err != nil {
		return err
	}
	return admitTeam(t, amount)
}

func admissionKind(err error) Kind {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrInsufficientBudget), errors.Is(err, ErrNoSlotsLeft):
		return KindResourceExhausted
	default:
		return KindPrecondition
	}
}
