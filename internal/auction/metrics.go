package auction

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	bidsAccepted metric.Int64Counter
	bidsRejected metric.Int64Counter
	lotsSettled  metric.Int64Counter
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	meter := mp.Meter("github.com/ReaperOAK/player-auction/internal/auction")

	accepted, err1 := meter.Int64Counter("auction.bids.accepted",
		metric.WithDescription("Bids admitted by the gate"))
	rejected, err2 := meter.Int64Counter("auction.bids.rejected",
		metric.WithDescription("Bids rejected by the gate, by reason"))
	settled, err3 := meter.Int64Counter("auction.lots.settled",
		metric.WithDescription("Lots settled, by outcome"))
	if err := errors.Join(err1, err2, err3); err != nil {
		return nil, err
	}
	return &metrics{bidsAccepted: accepted, bidsRejected: rejected, lotsSettled: settled}, nil
}

func (m *metrics) bidAccepted(ctx context.Context) {
	m.bidsAccepted.Add(ctx, 1)
}

func (m *metrics) bidRejected(ctx context.Context, err error) {
	m.bidsRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", Reason(err))))
}

func (m *metrics) lotSettled(ctx context.Context, outcome string, auto bool) {
	m.lotsSettled.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.Bool("auto", auto),
	))
}
