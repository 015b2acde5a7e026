package bot

import (
	"fmt"

	"github.com/ReaperOAK/player-auction/internal/auction"
)

// Announcement renders ev for the announcement channel. It reports false
// for events that are not announced.
func Announcement(ev auction.Event) (string, bool) {
	switch ev.Type {
	case auction.EventLotStarted:
		if ev.State.Lot == nil {
			return "", false
		}
		lot := ev.State.Lot
		return fmt.Sprintf("🔨 **%s** (%s) is up. Base price %s, increment %s, %ds on the clock.",
			lot.Name, lot.Position, auction.FormatAmount(lot.BasePrice), auction.FormatAmount(ev.State.BidIncrement), ev.State.TimeRemaining), true

	case auction.EventSettledSold:
		d, ok := ev.Data.(auction.SettledData)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("✅ **%s** sold to **%s** for %s.", d.LotName, d.TeamName, auction.FormatAmount(d.Price)), true

	case auction.EventSettledUnsold:
		d, ok := ev.Data.(auction.SettledData)
		if !ok {
			return "", false
		}
		if d.Reason != "" {
			return fmt.Sprintf("⚠️ **%s** went unsold (%s).", d.LotName, d.Reason), true
		}
		return fmt.Sprintf("❌ **%s** went unsold.", d.LotName), true

	case auction.EventLotReverted:
		d, ok := ev.Data.(auction.RevertData)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("↩️ Sale of **%s** to **%s** reverted, %s refunded.", d.PlayerName, d.TeamName, auction.FormatAmount(d.Refund)), true
	}
	return "", false
}
