package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/ReaperOAK/player-auction/internal/config"
)

// Connect dials NATS, makes sure the auction stream exists and returns a
// JetStream handle with a function that closes the connection.
func Connect(ctx context.Context, cfg config.NATSConfig, logger *slog.Logger) (jetstream.JetStream, func(), error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("auctiond"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Error("NATS disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create JetStream context: %w", err)
	}
	if err := EnsureStream(ctx, js, cfg, logger); err != nil {
		nc.Close()
		return nil, nil, err
	}
	return js, nc.Close, nil
}

// StreamConfig is the stream the relay publishes into.
func StreamConfig(cfg config.NATSConfig) jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        cfg.Stream,
		Description: "Committed live auction events",
		Subjects:    []string{cfg.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      cfg.MaxAge,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Duplicates:  2 * time.Minute,
	}
}

// EnsureStream creates the stream or updates it when its limits drifted.
func EnsureStream(ctx context.Context, js jetstream.JetStream, cfg config.NATSConfig, logger *slog.Logger) error {
	want := StreamConfig(cfg)

	stream, err := js.Stream(ctx, want.Name)
	if errors.Is(err, jetstream.ErrStreamNotFound) {
		if _, err := js.CreateStream(ctx, want); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		logger.InfoContext(ctx, "created JetStream stream", slog.String("stream", want.Name))
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up stream: %w", err)
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("get stream info: %w", err)
	}
	if info.Config.MaxAge != want.MaxAge || info.Config.Duplicates != want.Duplicates {
		if _, err := js.UpdateStream(ctx, want); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
		logger.InfoContext(ctx, "updated JetStream stream", slog.String("stream", want.Name))
	}
	return nil
}
