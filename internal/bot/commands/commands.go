package commands

import (
	"context"
	"fmt"
	"log/slog"
		"strings"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ReaperOAK/player-auction/internal/auction"
	"github.com/ReaperOAK/player-auction/internal/roster"
	"github.com/ReaperOAK/player-auction/internal/store"
)

const historyLimit = 10

// StateReader returns the current auction view.
type StateReader interface {
	State() auction.View
}

// StateFunc adapts a function to StateReader.
type StateFunc func() auction.View

func (f StateFunc) State() auction.View { return f() }

// SalesReader returns the standing sales, by price or newest first.
type SalesReader interface {
	History(ctx context.Context) ([]roster.Sale, error)
	RecentSales(ctx context.Context, limit int) ([]roster.Sale, error)
}

// Handlers process Discord interactions.
type Handlers struct {
	state  StateReader
	sales  SalesReader
	logger *slog.Logger
	tracer trace.Tracer
}

// NewHandlers creates new command handlers.
func NewHandlers(state StateReader, sales SalesReader, logger *slog.Logger, tp trace.TracerProvider) *Handlers {
	return &Handlers{
		state:  state,
		sales:  sales,
		logger: logger,
		tracer: tp.Tracer("github.com/ReaperOAK/player-auction/internal/bot/commands"),
	}
}

// SlashCommands returns the slash command definitions.
func SlashCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "auction",
			Description: "Show the player currently under the hammer",
		},
		{
			Name:        "sales",
			Description: "List the most expensive players sold so far",
		},
		{
			Name:        "recent",
			Description: "List the latest sales",
		},
	}
}

// InteractionCreate handles incoming slash command interactions.
func (h *Handlers) InteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	name := i.ApplicationCommandData().Name
	ctx, span := h.tracer.Start(context.Background(), "InteractionCreate",
		trace.WithAttributes(attribute.String("command", name)),
	)
	defer span.End()

	respond(s, i, h.Reply(ctx, name))
}

// Reply renders the answer to the named command.
func (h *Handlers) Reply(ctx context.Context, name string) string {
	switch name {
	case "auction":
		return FormatState(h.state.State())
	case "sales":
		sales, err := h.sales.History(ctx)
		if err != nil {
			h.logger.ErrorContext(ctx, "loading sales failed", slog.Any("error", err))
			return "Could not load the sales right now."
		}
		return FormatSales("Top sales", sales, historyLimit)
	case "recent":
		sales, err := h.sales.RecentSales(ctx, historyLimit)
		if err != nil {
			h.logger.ErrorContext(ctx, "loading recent sales failed", slog.Any("error", err))
			return "Could not load the sales right now."
		}
		return FormatSales("Latest sales", sales, historyLimit)
	}
	return "Unknown command"
}

// FormatState describes the auction view in one message.
func FormatState(v auction.View) string {
	if v.Lot == nil {
		return "No player is up for auction."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** (%s, year %d)", v.Lot.Name, v.Lot.Position, v.Lot.Year)
	if v.Status == store.StatusPaused {
		b.WriteString(" (paused)")
	}
	b.WriteString("\n")
	if v.Bidder != nil {
		fmt.Fprintf(&b, "Leading: **%s** at %s\n", v.Bidder.Name, auction.FormatAmount(v.CurrentBid))
	} else {
		fmt.Fprintf(&b, "No bids yet, base price %s\n", auction.FormatAmount(v.CurrentBid))
	}
	fmt.Fprintf(&b, "Next bid from %s, %ds left", auction.FormatAmount(v.MinimumBid()), v.TimeRemaining)
	return b.String()
}

// FormatSales lists at most limit sales under title.
func FormatSales(title string, sales []roster.Sale, limit int) string {
	if len(sales) == 0 {
		return "Nobody has been sold yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**%s:**\n", title)
	for idx, s := range sales {
		if idx == limit {
			fmt.Fprintf(&b, "…and %d more", len(sales)-limit)
			break
		}
		fmt.Fprintf(&b, "%d. %s to %s for %s\n", idx+1, s.PlayerName, s.TeamName, auction.FormatAmount(s.Price))
	}
	return strings.TrimRight(b.String(), "\n")
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
		},
	})
}
