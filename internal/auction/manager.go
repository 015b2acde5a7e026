package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ReaperOAK/player-auction/internal/clock"
	"github.com/ReaperOAK/player-auction/internal/config"
	"github.com/ReaperOAK/player-auction/internal/event"
	"github.com/ReaperOAK/player-auction/internal/store"
)

// Manager owns the auction state. It is the only writer: every mutation
// holds mu across its ledger transaction, the in-memory commit and the
// publish, so events leave in commit order. Reads go through an atomically
// swapped View and never wait on a writer.
type Manager struct {
	mu     sync.Mutex
	state  store.AuctionState
	lot    *Lot
	bidder *Bidder
	closed bool

	view atomic.Pointer[View]

	ledger    store.Ledger
	pub       Publisher
	countdown *Countdown
	cfg       config.AuctionConfig
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *metrics
	clock     clock.Clock
}

// NewManager creates an idle Manager. Call Recover before serving.
func NewManager(ledger store.Ledger, pub Publisher, cfg config.AuctionConfig, logger *slog.Logger, tp trace.TracerProvider, mp metric.MeterProvider, clk clock.Clock) (*Manager, error) {
	met, err := newMetrics(mp)
	if err != nil {
		return nil, fmt.Errorf("creating auction metrics: %w", err)
	}
	if pub == nil {
		pub = Publishers(nil)
	}
	m := &Manager{
		ledger:  ledger,
		pub:     pub,
		cfg:     cfg,
		logger:  logger,
		tracer:  tp.Tracer("github.com/ReaperOAK/player-auction/internal/auction"),
		metrics: met,
		clock:   clk,
	}
	m.countdown = NewCountdown(clk, cfg.TickInterval, m.onTick)
	m.commit(m.idleState(store.AuctionState{Version: -1}))
	return m, nil
}

// State returns the last committed view.
func (m *Manager) State() View {
	return *m.view.Load()
}

// Countdown exposes the scheduler for inspection.
func (m *Manager) Countdown() *Countdown {
	return m.countdown
}

// Recover loads the persisted auction state, creating it when missing, and
// re-arms the countdown if a lot was in progress.
func (m *Manager) Recover(ctx context.Context) (View, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Recover")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		st     store.AuctionState
		lot    *Lot
		bidder *Bidder
	)
	err := m.ledger.WithinTx(ctx, func(tx store.Tx) error {
		cur, err := tx.AuctionState(ctx)
		if errors.Is(err, store.ErrNotFound) {
			st = m.idleState(store.AuctionState{})
			m.logger.InfoContext(ctx, "creating auction state")
			return tx.SaveAuctionState(ctx, &st)
		}
		if err != nil {
			return err
		}
		st, lot, bidder = *cur, nil, nil

		reset := func(reason string) error {
			m.logger.WarnContext(ctx, "resetting inconsistent auction state",
				slog.String("reason", reason),
				slog.Int64("version", st.Version),
			)
			st, lot, bidder = m.idleState(st), nil, nil
			return tx.SaveAuctionState(ctx, &st)
		}

		if st.Status == store.StatusNotStarted {
			if st.CurrentLotID != nil || st.CurrentBidderID != nil {
				return reset("idle state references a lot")
			}
			return nil
		}
		if st.CurrentLotID == nil {
			return reset("active state without a lot")
		}
		p, err := tx.Player(ctx, *st.CurrentLotID)
		if err != nil || p.Sold() {
			return reset("current lot missing or already sold")
		}
		lot = lotFrom(p)
		if st.CurrentBidderID != nil {
			t, err := tx.Team(ctx, *st.CurrentBidderID)
			if err != nil {
				return reset("leading bidder has no team")
			}
			bidder = &Bidder{ID: t.ID, Name: t.Name}
		}
		return nil
	})
	if err != nil {
		return View{}, m.reject(ctx, "recover", err)
	}

	m.closed = false
	m.lot, m.bidder = lot, bidder
	v := m.commit(st)
	if st.Status == store.StatusInProgress {
		m.countdown.Arm(max(st.TimeRemaining, 1))
	} else {
		m.countdown.Cancel()
	}
	m.publish(NewEvent(EventSnapshot, v, nil, m.clock.Now()))

	m.logger.InfoContext(ctx, "auction state recovered",
		slog.String("status", string(v.Status)),
		slog.Int64("version", v.Version),
		slog.Bool("countdown_armed", m.countdown.IsArmed()),
	)
	return v, nil
}

// Close stops the countdown. Mutations fail until the next Recover.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.countdown.Cancel()
}

// StartLot puts a player up for auction. A zero increment or duration
// falls back to the configured default.
func (m *Manager) StartLot(ctx context.Context, lotID string, increment int64, duration time.Duration) (View, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.StartLot",
		trace.WithAttributes(
			attribute.String("lot_id", lotID),
			attribute.Int64("bid_increment", increment),
			attribute.String("duration", duration.String()),
		),
	)
	defer span.End()

	if increment == 0 {
		increment = m.cfg.DefaultIncrement
	}
	if duration == 0 {
		duration = m.cfg.DefaultDuration
	}
	switch {
	case lotID == "":
		return View{}, m.reject(ctx, "start lot", failure(KindValidation, invalid("lot id is required")))
	case increment < 0:
		return View{}, m.reject(ctx, "start lot", failure(KindValidation, invalid("bid increment must be positive")))
	case duration < time.Second:
		return View{}, m.reject(ctx, "start lot", failure(KindValidation, invalid("timer duration must be at least one second")))
	}
	seconds := int(duration / time.Second)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writable(); err != nil {
		return View{}, m.reject(ctx, "start lot", err)
	}
	if m.state.Status != store.StatusNotStarted {
		return View{}, m.reject(ctx, "start lot", failure(KindPrecondition, ErrLotActive))
	}

	next := m.state
	var lot *Lot
	err := m.ledger.WithinTx(ctx, func(tx store.Tx) error {
		p, err := tx.Player(ctx, lotID)
		if errors.Is(err, store.ErrNotFound) {
			return failure(KindPrecondition, fmt.Errorf("%w: player %s not found", ErrInvalidLot, lotID))
		}
		if err != nil {
			return err
		}
		if p.Sold() {
			return failure(KindPrecondition, fmt.Errorf("%w: player %s already sold", ErrInvalidLot, lotID))
		}
		lot = lotFrom(p)

		next.Status = store.StatusInProgress
		next.CurrentLotID = &p.ID
		next.CurrentBid = p.BasePrice
		next.CurrentBidderID = nil
		next.BidIncrement = increment
		next.TimeRemaining = seconds
		next.Version++
		if err := tx.SaveAuctionState(ctx, &next); err != nil {
			return err
		}
		return journal(ctx, tx, p.ID, event.LotStarted, next.Version, event.LotStartedData{
			BasePrice:    p.BasePrice,
			BidIncrement: increment,
			Duration:     seconds,
		})
	})
	if err != nil {
		return View{}, m.reject(ctx, "start lot", err)
	}

	m.lot, m.bidder = lot, nil
	v := m.commit(next)
	m.countdown.Arm(seconds)
	m.publish(NewEvent(EventLotStarted, v, nil, m.clock.Now()))

	m.logger.InfoContext(ctx, "lot started",
		slog.String("lot_id", lot.ID),
		slog.String("lot_name", lot.Name),
		slog.Int64("base_price", lot.BasePrice),
		slog.Int64("bid_increment", increment),
		slog.Int("duration_seconds", seconds),
		slog.Int64("version", v.Version),
	)
	return v, nil
}

// Pause stops the countdown and keeps the remaining time.
func (m *Manager) Pause(ctx context.Context) (View, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Pause")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writable(); err != nil {
		return View{}, m.reject(ctx, "pause", err)
	}
	if m.state.Status != store.StatusInProgress {
		return View{}, m.reject(ctx, "pause", failure(KindPrecondition, ErrNotRunning))
	}

	next := m.state
	next.Status = store.StatusPaused
	next.Version++
	err := m.ledger.WithinTx(ctx, func(tx store.Tx) error {
		if err := tx.SaveAuctionState(ctx, &next); err != nil {
			return err
		}
		return journal(ctx, tx, m.lot.ID, event.LotPaused, next.Version, event.PausedData{TimeRemaining: next.TimeRemaining})
	})
	if err != nil {
		return View{}, m.reject(ctx, "pause", err)
	}

	m.countdown.Cancel()
	v := m.commit(next)
	m.publish(NewEvent(EventPaused, v, TickData{TimeRemaining: v.TimeRemaining}, m.clock.Now()))

	m.logger.InfoContext(ctx, "auction paused",
		slog.String("lot_id", m.lot.ID),
		slog.Int("time_remaining", v.TimeRemaining),
		slog.Int64("version", v.Version),
	)
	return v, nil
}

// Resume re-arms the countdown from the preserved remaining time.
func (m *Manager) Resume(ctx context.Context) (View, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Resume")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writable(); err != nil {
		return View{}, m.reject(ctx, "resume", err)
	}
	if m.state.Status != store.StatusPaused {
		return View{}, m.reject(ctx, "resume", failure(KindPrecondition, ErrNotPaused))
	}
	if m.state.TimeRemaining <= 0 {
		return View{}, m.reject(ctx, "resume", failure(KindPrecondition, ErrNoTimeLeft))
	}

	next := m.state
	next.Status = store.StatusInProgress
	next.Version++
	err := m.ledger.WithinTx(ctx, func(tx store.Tx) error {
		if err := tx.SaveAuctionState(ctx, &next); err != nil {
			return err
		}
		return journal(ctx, tx, m.lot.ID, event.LotResumed, next.Version, event.PausedData{TimeRemaining: next.TimeRemaining})
	})
	if err != nil {
		return View{}, m.reject(ctx, "resume", err)
	}

	v := m.commit(next)
	m.countdown.Arm(v.TimeRemaining)
	m.publish(NewEvent(EventResumed, v, TickData{TimeRemaining: v.TimeRemaining}, m.clock.Now()))

	m.logger.InfoContext(ctx, "auction resumed",
		slog.String("lot_id", m.lot.ID),
		slog.Int("time_remaining", v.TimeRemaining),
		slog.Int64("version", v.Version),
	)
	return v, nil
}

// SubmitBid admits a bid from teamID. An accepted bid becomes the current
// bid and resets the countdown to the configured default duration.
func (m *Manager) SubmitBid(ctx context.Context, teamID string, amount int64) (View, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.SubmitBid",
		trace.WithAttributes(
			attribute.String("team_id", teamID),
			attribute.Int64("amount", amount),
		),
	)
	defer span.End()

	rejectBid := func(err error) (View, error) {
		m.metrics.bidRejected(ctx, err)
		return View{}, m.reject(ctx, "bid", err)
	}

	switch {
	case teamID == "":
		return rejectBid(failure(KindValidation, invalid("team id is required")))
	case amount <= 0:
		return rejectBid(failure(KindValidation, invalid("bid amount must be positive")))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writable(); err != nil {
		return rejectBid(err)
	}
	if err := admitState(&m.state, amount); err != nil {
		return rejectBid(failure(admissionKind(err), err))
	}

	next := m.state
	var team *store.Team
	err := m.ledger.WithinTx(ctx, func(tx store.Tx) error {
		t, err := tx.Team(ctx, teamID)
		if errors.Is(err, store.ErrNotFound) {
			return failure(KindPrecondition, fmt.Errorf("%w: %s", ErrUnknownTeam, teamID))
		}
		if err != nil {
			return err
		}
		if err := admitTeam(t, amount); err != nil {
			return failure(admissionKind(err), err)
		}
		team = t

		next.CurrentBid = amount
		next.CurrentBidderID = &t.ID
		next.TimeRemaining = m.defaultSeconds()
		next.Version++
		if err := tx.SaveAuctionState(ctx, &next); err != nil {
			return err
		}
		return journal(ctx, tx, m.lot.ID, event.LotBidAccepted, next.Version, event.BidAcceptedData{TeamID: t.ID, Amount: amount})
	})
	if err != nil {
		return rejectBid(err)
	}

	prev := m.bidder
	m.bidder = &Bidder{ID: team.ID, Name: team.Name}
	v := m.commit(next)
	m.countdown.Arm(v.TimeRemaining)
	m.metrics.bidAccepted(ctx)

	data := BidData{TeamID: team.ID, TeamName: team.Name, Amount: amount}
	if prev != nil {
		data.PreviousTeamID = prev.ID
	}
	m.publish(NewEvent(EventBidAccepted, v, data, m.clock.Now()))
	if prev != nil && prev.ID != team.ID {
		outbid := NewEvent(EventOutbid, v, data, m.clock.Now())
		outbid.TeamID = prev.ID
		m.publish(outbid)
	}

	m.logger.InfoContext(ctx, "bid accepted",
		slog.String("lot_id", m.lot.ID),
		slog.String("team_id", team.ID),
		slog.Int64("amount", amount),
		slog.Int64("version", v.Version),
	)
	return v, nil
}

// End settles the active lot immediately.
func (m *Manager) End(ctx context.Context) (View, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.End")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writable(); err != nil {
		return View{}, m.reject(ctx, "end lot", err)
	}
	if m.state.Status == store.StatusNotStarted {
		return View{}, m.reject(ctx, "end lot", failure(KindPrecondition, ErrNoActiveLot))
	}
	return m.settleLocked(ctx, false)
}

// Revert undoes the sale of playerID, refunding its team's budget and slot.
// It does not touch the active lot.
func (m *Manager) Revert(ctx context.Context, playerID string) (View, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Revert",
		trace.WithAttributes(attribute.String("player_id", playerID)),
	)
	defer span.End()

	if playerID == "" {
		return View{}, m.reject(ctx, "revert", failure(KindValidation, invalid("player id is required")))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writable(); err != nil {
		return View{}, m.reject(ctx, "revert", err)
	}

	next := m.state
	next.Version++
	var data RevertData
	err := m.ledger.WithinTx(ctx, func(tx store.Tx) error {
		p, err := tx.Player(ctx, playerID)
		if errors.Is(err, store.ErrNotFound) {
			return failure(KindPrecondition, fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID))
		}
		if err != nil {
			return err
		}
		if !p.Sold() || p.SoldPrice == nil {
			return failure(KindPrecondition, fmt.Errorf("%w: %s", ErrNotSold, playerID))
		}
		teamID, price := *p.SoldTo, *p.SoldPrice

		t, err := tx.Team(ctx, teamID)
		if errors.Is(err, store.ErrNotFound) {
			return failure(KindInternal, fmt.Errorf("player %s sold to missing team %s", playerID, teamID))
		}
		if err != nil {
			return err
		}
		if err := tx.ClearSale(ctx, p.ID); err != nil {
			return err
		}
		if err := tx.AdjustTeam(ctx, t.ID, price, 1); err != nil {
			return err
		}
		if err := tx.SaveAuctionState(ctx, &next); err != nil {
			return err
		}
		data = RevertData{PlayerID: p.ID, PlayerName: p.Name, TeamID: t.ID, TeamName: t.Name, Refund: price}
		return journal(ctx, tx, p.ID, event.LotReverted, next.Version, event.RevertedData{TeamID: t.ID, Refund: price})
	})
	if err != nil {
		return View{}, m.reject(ctx, "revert", err)
	}

	v := m.commit(next)
	m.publish(NewEvent(EventLotReverted, v, data, m.clock.Now()))

	m.logger.InfoContext(ctx, "sale reverted",
		slog.String("player_id", data.PlayerID),
		slog.String("team_id", data.TeamID),
		slog.Int64("refund", data.Refund),
		slog.Int64("version", v.Version),
	)
	return v, nil
}

// onTick is the countdown callback. It runs under the writer lock and
// schedules the next tick only after this one has been committed.
func (m *Manager) onTick(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || !m.countdown.Claim(gen) {
		return
	}
	if m.state.Status != store.StatusInProgress {
		return
	}

	ctx, span := m.tracer.Start(context.Background(), "Manager.tick",
		trace.WithAttributes(attribute.Int("time_remaining", m.state.TimeRemaining)),
	)
	defer span.End()

	if m.state.TimeRemaining <= 1 {
		_, _ = m.settleLocked(ctx, true)
		return
	}

	next := m.state
	next.TimeRemaining--
	next.Version++
	err := m.ledger.WithinTx(ctx, func(tx store.Tx) error {
		return tx.SaveAuctionState(ctx, &next)
	})
	if err != nil {
		span.RecordError(err)
		m.logger.ErrorContext(ctx, "persisting timer tick failed, retrying",
			slog.Int("time_remaining", m.state.TimeRemaining),
			slog.Any("error", err),
		)
		m.countdown.Next(gen)
		return
	}

	v := m.commit(next)
	m.publish(NewEvent(EventTimerTick, v, TickData{TimeRemaining: v.TimeRemaining}, m.clock.Now()))
	m.countdown.Next(gen)
}

// settleLocked finalizes the active lot as sold to the leading bidder or
// unsold, then resets the auction. A manual settlement that fails leaves
// everything untouched; an automatic one resets the auction regardless.
func (m *Manager) settleLocked(ctx context.Context, auto bool) (View, error) {
	prev := m.state
	next := m.idleState(prev)
	lot := m.lot
	if lot == nil {
		err := failure(KindInternal, errors.New("active auction has no lot"))
		if !auto {
			return View{}, m.reject(ctx, "end lot", err)
		}
		return m.forceReset(ctx, nil, err), nil
	}

	data := SettledData{LotID: lot.ID, LotName: lot.Name, Auto: auto}
	err := m.ledger.WithinTx(ctx, func(tx store.Tx) error {
		if prev.CurrentBidderID == nil {
			if err := tx.SaveAuctionState(ctx, &next); err != nil {
				return err
			}
			return journal(ctx, tx, lot.ID, event.LotUnsold, next.Version, event.SettledData{Auto: auto})
		}

		bidderID := *prev.CurrentBidderID
		t, err := tx.Team(ctx, bidderID)
		if errors.Is(err, store.ErrNotFound) {
			return failure(KindInternal, fmt.Errorf("leading bidder %s has no team record", bidderID))
		}
		if err != nil {
			return err
		}
		if err := tx.MarkSold(ctx, lot.ID, t.ID, prev.CurrentBid); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return failure(KindInternal, err)
			}
			return err
		}
		if err := tx.AdjustTeam(ctx, t.ID, -prev.CurrentBid, -1); err != nil {
			if errors.Is(err, store.ErrNegativeBalance) {
				return failure(KindInternal, err)
			}
			return err
		}
		if err := tx.SaveAuctionState(ctx, &next); err != nil {
			return err
		}
		data.TeamID, data.TeamName, data.Price = t.ID, t.Name, prev.CurrentBid
		return journal(ctx, tx, lot.ID, event.LotSold, next.Version, event.SettledData{TeamID: t.ID, Price: prev.CurrentBid, Auto: auto})
	})
	if err != nil {
		if !auto {
			return View{}, m.reject(ctx, "end lot", err)
		}
		return m.forceReset(ctx, lot, err), nil
	}

	m.lot, m.bidder = nil, nil
	v := m.commit(next)
	m.countdown.Cancel()

	typ, outcome := EventSettledUnsold, "unsold"
	if data.TeamID != "" {
		typ, outcome = EventSettledSold, "sold"
	}
	m.publish(NewEvent(typ, v, data, m.clock.Now()))
	m.metrics.lotSettled(ctx, outcome, auto)

	m.logger.InfoContext(ctx, "lot settled",
		slog.String("lot_id", lot.ID),
		slog.String("outcome", outcome),
		slog.String("team_id", data.TeamID),
		slog.Int64("price", data.Price),
		slog.Bool("auto", auto),
		slog.Int64("version", v.Version),
	)
	return v, nil
}

// forceReset returns the auction to NotStarted after a failed automatic
// settlement so the lot cannot get stuck. The lot is left unsold.
func (m *Manager) forceReset(ctx context.Context, lot *Lot, cause error) View {
	const reason = "settlement_failed"
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.RecordError(cause)
		span.SetStatus(codes.Error, "automatic settlement failed")
	}
	m.logger.ErrorContext(ctx, "automatic settlement failed, resetting auction",
		slog.Any("error", cause),
	)

	next := m.idleState(m.state)
	data := SettledData{Auto: true, Reason: reason}
	if lot != nil {
		data.LotID, data.LotName = lot.ID, lot.Name
	}
	err := m.ledger.WithinTx(ctx, func(tx store.Tx) error {
		if err := tx.SaveAuctionState(ctx, &next); err != nil {
			return err
		}
		if lot == nil {
			return nil
		}
		return journal(ctx, tx, lot.ID, event.LotUnsold, next.Version, event.SettledData{Auto: true, Reason: reason})
	})
	if err != nil {
		m.logger.ErrorContext(ctx, "persisting auction reset failed, reset held in memory",
			slog.Any("error", err),
		)
	}

	m.lot, m.bidder = nil, nil
	v := m.commit(next)
	m.countdown.Cancel()
	m.publish(NewEvent(EventSettledUnsold, v, data, m.clock.Now()))
	m.metrics.lotSettled(ctx, "failed", true)
	return v
}

// idleState is the reset state that follows prev.
func (m *Manager) idleState(prev store.AuctionState) store.AuctionState {
	increment := prev.BidIncrement
	if increment <= 0 {
		increment = m.cfg.DefaultIncrement
	}
	return store.AuctionState{
		Status:        store.StatusNotStarted,
		BidIncrement:  increment,
		TimeRemaining: m.defaultSeconds(),
		Version:       prev.Version + 1,
	}
}

func (m *Manager) defaultSeconds() int {
	return int(m.cfg.DefaultDuration / time.Second)
}

func (m *Manager) writable() error {
	if m.closed {
		return failure(KindStorage, ErrClosed)
	}
	return nil
}

// commit installs next as the authoritative state and publishes its view
// to readers.
func (m *Manager) commit(next store.AuctionState) View {
	m.state = next
	v := View{
		Status:        next.Status,
		Lot:           m.lot,
		CurrentBid:    next.CurrentBid,
		Bidder:        m.bidder,
		BidIncrement:  next.BidIncrement,
		TimeRemaining: next.TimeRemaining,
		Version:       next.Version,
		UpdatedAt:     m.clock.Now().UTC(),
	}
	m.view.Store(&v)
	return v
}

func (m *Manager) publish(ev Event) {
	m.pub.Publish(ev)
}

// reject converts err into an *Error carrying the current view. Errors
// that are not already classified are ledger failures.
func (m *Manager) reject(ctx context.Context, op string, err error) error {
	ae := &Error{Kind: KindStorage, Err: err}
	var inner *Error
	if errors.As(err, &inner) {
		ae.Kind, ae.Err = inner.Kind, inner.Err
	}
	ae.State = m.State()

	span := trace.SpanFromContext(ctx)
	span.RecordError(ae.Err)

	level := slog.LevelInfo
	switch ae.Kind {
	case KindStorage, KindInternal:
		level = slog.LevelError
		span.SetStatus(codes.Error, ae.Err.Error())
	}
	m.logger.Log(ctx, level, op+" rejected",
		slog.String("kind", ae.Kind.String()),
		slog.String("reason", Reason(ae.Err)),
		slog.Any("error", ae.Err),
	)
	return ae
}

func failure(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func journal(ctx context.Context, tx store.Tx, lotID string, t event.Type, version int64, payload any) error {
	e, err := event.New(lotID, t, version, payload)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", t, err)
	}
	return tx.Append(ctx, e)
}
