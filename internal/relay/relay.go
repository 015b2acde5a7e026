// Package relay forwards committed auction events to a NATS JetStream
// stream for consumers outside the process.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ReaperOAK/player-auction/internal/auction"
	"github.com/ReaperOAK/player-auction/internal/config"
)

const queueSize = 1024

// ErrStopped is returned by Run once the relay has been drained.
var ErrStopped = errors.New("relay stopped")

// Sink is the subset of jetstream.JetStream the relay publishes through.
type Sink interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Relay queues auction events and publishes them in order on its own
// goroutine so the auction never waits on the broker.
type Relay struct {
	sink   Sink
	cfg    config.NATSConfig
	queue  chan auction.Event
	logger *slog.Logger

	published metric.Int64Counter
	dropped   metric.Int64Counter
}

// New returns a Relay publishing to sink.
func New(sink Sink, cfg config.NATSConfig, logger *slog.Logger, mp metric.MeterProvider) (*Relay, error) {
	meter := mp.Meter("github.com/ReaperOAK/player-auction/internal/relay")
	published, err := meter.Int64Counter("auction.relay.published",
		metric.WithDescription("Events acknowledged by JetStream"))
	if err != nil {
		return nil, err
	}
	dropped, err := meter.Int64Counter("auction.relay.dropped",
		metric.WithDescription("Events not relayed because the queue was full or publishing failed"))
	if err != nil {
		return nil, err
	}
	return &Relay{
		sink:      sink,
		cfg:       cfg,
		queue:     make(chan auction.Event, queueSize),
		logger:    logger,
		published: published,
		dropped:   dropped,
	}, nil
}

// Publish enqueues ev. When the queue is full the event is dropped.
func (r *Relay) Publish(ev auction.Event) {
	select {
	case r.queue <- ev:
	default:
		r.dropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("cause", "queue_full")))
		r.logger.Warn("relay queue full, dropping event",
			slog.String("event_id", ev.ID),
			slog.String("type", string(ev.Type)),
			slog.Int64("version", ev.Version),
		)
	}
}

// Run publishes queued events until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ErrStopped
		case ev := <-r.queue:
			if err := r.send(ctx, ev); err != nil {
				r.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("cause", "publish_failed")))
				r.logger.ErrorContext(ctx, "relaying event failed",
					slog.String("event_id", ev.ID),
					slog.String("type", string(ev.Type)),
					slog.Any("error", err),
				)
			}
		}
	}
}

// Subject returns the subject ev is published on.
func (r *Relay) Subject(ev auction.Event) string {
	return fmt.Sprintf("%s.%s", r.cfg.SubjectPrefix, ev.Type)
}

func (r *Relay) send(ctx context.Context, ev auction.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	header := nats.Header{}
	header.Set("Event-Type", string(ev.Type))
	header.Set("Event-ID", ev.ID)
	header.Set("Auction-Version", strconv.FormatInt(ev.Version, 10))
	if ev.TeamID != "" {
		header.Set("Team-ID", ev.TeamID)
	}
	if ev.State.Lot != nil {
		header.Set("Lot-ID", ev.State.Lot.ID)
	}

	ack, err := r.sink.PublishMsg(ctx, &nats.Msg{
		Subject: r.Subject(ev),
		Data:    data,
		Header:  header,
	},
		jetstream.WithMsgID(ev.ID),
		jetstream.WithExpectStream(r.cfg.Stream),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	r.published.Add(ctx, 1, metric.WithAttributes(attribute.String("type", string(ev.Type))))
	r.logger.DebugContext(ctx, "event relayed",
		slog.String("event_id", ev.ID),
		slog.String("stream", ack.Stream),
		slog.Uint64("sequence", ack.Sequence),
	)
	return nil
}
