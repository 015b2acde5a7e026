// Package bot posts lot results to a Discord channel and answers a few
// read-only slash commands about the running auction.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ReaperOAK/player-auction/internal/auction"
	"github.com/ReaperOAK/player-auction/internal/bot/commands"
	"github.com/ReaperOAK/player-auction/internal/config"
)

const queueSize = 256

// Sender is the part of a Discord session used to post announcements.
type Sender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Gateway is the part of a Discord session the bot drives.
type Gateway interface {
	Sender
	AddHandler(handler interface{}) func()
	Open() error
	Close() error
	ApplicationID() string
	ApplicationCommandBulkOverwrite(appID, guildID string, cmds []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
	ApplicationCommandDelete(appID, guildID, cmdID string, options ...discordgo.RequestOption) error
}

type discordSession struct {
	*discordgo.Session
}

func (s discordSession) ApplicationID() string { return s.State.User.ID }

// Bot wraps the Discord session, the announcement queue and the command
// handlers.
type Bot struct {
	gateway  Gateway
	sender   Sender
	cfg      config.DiscordConfig
	logger   *slog.Logger
	tracer   trace.Tracer
	handlers *commands.Handlers
	cmds     []*discordgo.ApplicationCommand
	queue    chan auction.Event
}

// New creates a new Bot instance.
func New(cfg config.DiscordConfig, state commands.StateReader, sales commands.SalesReader, logger *slog.Logger, tp trace.TracerProvider) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	return NewWithGateway(discordSession{session}, cfg, state, sales, logger, tp), nil
}

// NewWithGateway returns a Bot driving g. Event handlers are bound once
// here; the session keeps them across Close and Open, so Start may run
// again after Stop.
func NewWithGateway(g Gateway, cfg config.DiscordConfig, state commands.StateReader, sales commands.SalesReader, logger *slog.Logger, tp trace.TracerProvider) *Bot {
	b := NewAnnouncer(g, cfg, logger, tp)
	b.gateway = g
	b.handlers = commands.NewHandlers(state, sales, logger, tp)

	g.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.logger.Info("bot is ready", slog.String("user", r.User.Username))
	})
	g.AddHandler(b.handlers.InteractionCreate)
	return b
}

// NewAnnouncer returns a Bot that only posts announcements through s.
func NewAnnouncer(s Sender, cfg config.DiscordConfig, logger *slog.Logger, tp trace.TracerProvider) *Bot {
	return &Bot{
		sender: s,
		cfg:    cfg,
		logger: logger,
		tracer: tp.Tracer("github.com/ReaperOAK/player-auction/internal/bot"),
		queue:  make(chan auction.Event, queueSize),
	}
}

// Start opens the Discord connection and registers slash commands.
func (b *Bot) Start(ctx context.Context) error {
	if err := b.gateway.Open(); err != nil {
		return fmt.Errorf("opening discord session: %w", err)
	}

	registered, err := b.gateway.ApplicationCommandBulkOverwrite(b.gateway.ApplicationID(), b.cfg.GuildID, commands.SlashCommands())
	if err != nil {
		return fmt.Errorf("registering slash commands: %w", err)
	}
	b.cmds = registered

	b.logger.InfoContext(ctx, "slash commands registered", slog.Int("count", len(registered)))
	return nil
}

// Stop deletes the registered slash commands and closes the Discord
// connection.
func (b *Bot) Stop() error {
	for _, cmd := range b.cmds {
		if err := b.gateway.ApplicationCommandDelete(b.gateway.ApplicationID(), b.cfg.GuildID, cmd.ID); err != nil {
			b.logger.Error("failed to delete command", slog.String("command", cmd.Name), slog.Any("error", err))
		}
	}
	b.cmds = nil
	return b.gateway.Close()
}

// Publish queues ev for announcement. Events that are not announced, and
// events arriving while the queue is full, are dropped.
func (b *Bot) Publish(ev auction.Event) {
	if _, ok := Announcement(ev); !ok {
		return
	}
	select {
	case b.queue <- ev:
	default:
		b.logger.Warn("announcement queue full, dropping event",
			slog.String("type", string(ev.Type)),
			slog.Int64("version", ev.Version),
		)
	}
}

// Run posts queued announcements until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.queue:
			b.announce(ctx, ev)
		}
	}
}

func (b *Bot) announce(ctx context.Context, ev auction.Event) {
	ctx, span := b.tracer.Start(ctx, "Bot.announce",
		trace.WithAttributes(
			attribute.String("type", string(ev.Type)),
			attribute.Int64("version", ev.Version),
		),
	)
	defer span.End()

	msg, _ := Announcement(ev)
	if _, err := b.sender.ChannelMessageSend(b.cfg.ChannelID, msg); err != nil {
		span.RecordError(err)
		b.logger.ErrorContext(ctx, "posting announcement failed",
			slog.String("type", string(ev.Type)),
			slog.Any("error", err),
		)
	}
}
