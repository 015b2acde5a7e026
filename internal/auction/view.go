package auction

import (
	"strconv"
	"strings"
	"time"

	"github.com/ReaperOAK/player-auction/internal/store"
)

// Lot is the denormalized player currently up for auction.
type Lot struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Year           int            `json:"year"`
	Position       store.Position `json:"position"`
	BasePrice      int64          `json:"base_price"`
	PlayedLastYear bool           `json:"played_last_year"`
}

func lotFrom(p *store.Player) *Lot {
	return &Lot{
		ID:             p.ID,
		Name:           p.Name,
		Year:           p.Year,
		Position:       p.Position,
		BasePrice:      p.BasePrice,
		PlayedLastYear: p.PlayedLastYear,
	}
}

// Bidder identifies the leading team.
type Bidder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// View is a consistent, read-only snapshot of the auction state.
type View struct {
	Status        store.AuctionStatus `json:"status"`
	Lot           *Lot                `json:"current_player,omitempty"`
	CurrentBid    int64               `json:"current_bid"`
	Bidder        *Bidder             `json:"current_bidder,omitempty"`
	BidIncrement  int64               `json:"bid_increment"`
	TimeRemaining int                 `json:"time_remaining"`
	Version       int64               `json:"version"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// MinimumBid is the lowest amount the next bid may carry, or 0 when no
// lot is active.
func (v View) MinimumBid() int64 {
	if v.Lot == nil {
		return 0
	}
	return v.CurrentBid + v.BidIncrement
}

// Active reports whether a lot is in progress or paused.
func (v View) Active() bool {
	return v.Status == store.StatusInProgress || v.Status == store.StatusPaused
}

// FormatAmount renders a price with thousands separators.
func FormatAmount(n int64) string {
	s := strconv.FormatInt(n, 10)
	sign := ""
	if n < 0 {
		sign, s = "-", s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String()
}
