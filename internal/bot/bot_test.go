package bot_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ReaperOAK/player-auction/internal/auction"
	"github.com/ReaperOAK/player-auction/internal/bot"
	"github.com/ReaperOAK/player-auction/internal/bot/commands"
	"github.com/ReaperOAK/player-auction/internal/config"
	"github.com/ReaperOAK/player-auction/internal/roster"
	"github.com/ReaperOAK/player-auction/internal/store"
)

type mockSender struct {
	mu   sync.Mutex
	sent []string
	err  error
	got  chan struct{}
}

func (m *mockSender) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer func() { m.got <- struct{}{} }()
	if m.err != nil {
		return nil, m.err
	}
	m.sent = append(m.sent, channelID+"|"+content)
	return &discordgo.Message{Content: content}, nil
}

var at = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

var lotView = auction.View{
	Status:        store.StatusInProgress,
	Lot:           &auction.Lot{ID: "p-asha", Name: "Asha", Position: store.PositionStriker, BasePrice: 50000},
	CurrentBid:    50000,
	BidIncrement:  10000,
	TimeRemaining: 30,
}

func TestAnnouncement(t *testing.T) {
	tests := []struct {
		name   string
		ev     auction.Event
		want   string
		silent bool
	}{
		{
			name: "lot started",
			ev:   auction.NewEvent(auction.EventLotStarted, lotView, nil, at),
			want: "**Asha** (Striker) is up. Base price 50,000, increment 10,000, 30s",
		},
		{
			name: "sold",
			ev: auction.NewEvent(auction.EventSettledSold, auction.View{}, auction.SettledData{
				LotID: "p-asha", LotName: "Asha", TeamID: "t-falcons", TeamName: "Falcons", Price: 70000, Auto: true}, at),
			want: "**Asha** sold to **Falcons** for 70,000.",
		},
		{
			name: "unsold",
			ev:   auction.NewEvent(auction.EventSettledUnsold, auction.View{}, auction.SettledData{LotName: "Bela"}, at),
			want: "**Bela** went unsold.",
		},
		{
			name: "unsold after failure",
			ev:   auction.NewEvent(auction.EventSettledUnsold, auction.View{}, auction.SettledData{LotName: "Bela", Reason: "settlement_failed"}, at),
			want: "went unsold (settlement_failed)",
		},
		{
			name: "reverted",
			ev: auction.NewEvent(auction.EventLotReverted, auction.View{}, auction.RevertData{
				PlayerName: "Asha", TeamName: "Falcons", Refund: 70000}, at),
			want: "Sale of **Asha** to **Falcons** reverted, 70,000 refunded.",
		},
		{name: "tick", ev: auction.NewEvent(auction.EventTimerTick, lotView, auction.TickData{TimeRemaining: 29}, at), silent: true},
		{name: "bid", ev: auction.NewEvent(auction.EventBidAccepted, lotView, auction.BidData{}, at), silent: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := bot.Announcement(tt.ev)
			if ok == tt.silent {
				t.Fatalf("announced = %v, want %v", ok, !tt.silent)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("Announcement() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestBot_PostsAnnouncements(t *testing.T) {
	sender := &mockSender{got: make(chan struct{}, 8)}
	b := bot.NewAnnouncer(sender, config.DiscordConfig{ChannelID: "chan-1"}, slog.Default(), noop.NewTracerProvider())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	b.Publish(auction.NewEvent(auction.EventTimerTick, lotView, auction.TickData{TimeRemaining: 29}, at))
	b.Publish(auction.NewEvent(auction.EventSettledSold, auction.View{}, auction.SettledData{LotName: "Asha", TeamName: "Falcons", Price: 70000}, at))

	select {
	case <-sender.got:
	case <-time.After(2 * time.Second):
		t.Fatal("announcement not posted")
	}

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.sent) != 1 || !strings.HasPrefix(sender.sent[0], "chan-1|") || !strings.Contains(sender.sent[0], "sold to **Falcons**") {
		t.Errorf("sent = %v", sender.sent)
	}
}

func TestBot_SendFailureKeepsRunning(t *testing.T) {
	sender := &mockSender{got: make(chan struct{}, 8), err: errors.New("rate limited")}
	b := bot.NewAnnouncer(sender, config.DiscordConfig{ChannelID: "chan-1"}, slog.Default(), noop.NewTracerProvider())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	ev := auction.NewEvent(auction.EventSettledUnsold, auction.View{}, auction.SettledData{LotName: "Bela"}, at)
	b.Publish(ev)
	<-sender.got

	sender.mu.Lock()
	sender.err = nil
	sender.mu.Unlock()

	b.Publish(ev)
	select {
	case <-sender.got:
	case <-time.After(2 * time.Second):
		t.Fatal("second announcement not posted")
	}
}

type mockGateway struct {
	mockSender
	handlers int
	opened   int
	closed   int
	deleted  []string
}

func (g *mockGateway) AddHandler(interface{}) func() {
	g.handlers++
	return func() {}
}

func (g *mockGateway) Open() error           { g.opened++; return nil }
func (g *mockGateway) Close() error          { g.closed++; return nil }
func (g *mockGateway) ApplicationID() string { return "app-1" }

func (g *mockGateway) ApplicationCommandBulkOverwrite(appID, guildID string, cmds []*discordgo.ApplicationCommand, _ ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error) {
	out := make([]*discordgo.ApplicationCommand, len(cmds))
	for i, c := range cmds {
		out[i] = &discordgo.ApplicationCommand{ID: "cmd-" + c.Name, Name: c.Name}
	}
	return out, nil
}

func (g *mockGateway) ApplicationCommandDelete(appID, guildID, cmdID string, _ ...discordgo.RequestOption) error {
	g.deleted = append(g.deleted, cmdID)
	return nil
}

type noSales struct{}

func (noSales) History(context.Context) ([]roster.Sale, error)          { return nil, nil }
func (noSales) RecentSales(context.Context, int) ([]roster.Sale, error) { return nil, nil }

func TestBot_RestartKeepsSingleHandlerSet(t *testing.T) {
	g := &mockGateway{}
	state := commands.StateFunc(func() auction.View { return lotView })
	b := bot.NewWithGateway(g, config.DiscordConfig{GuildID: "guild-1"}, state, noSales{}, slog.Default(), noop.NewTracerProvider())

	ctx := context.Background()
	for range 3 {
		if err := b.Start(ctx); err != nil {
			t.Fatalf("Start: %v", err)
		}
		if err := b.Stop(); err != nil {
			t.Fatalf("Stop: %v", err)
		}
	}

	if g.handlers != 2 {
		t.Errorf("handlers bound = %d, want 2", g.handlers)
	}
	if g.opened != 3 || g.closed != 3 {
		t.Errorf("opened = %d, closed = %d", g.opened, g.closed)
	}
	if want := 3 * len(commands.SlashCommands()); len(g.deleted) != want {
		t.Errorf("deleted %d commands, want %d", len(g.deleted), want)
	}
}
