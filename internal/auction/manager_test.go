package auction_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ReaperOAK/player-auction/internal/auction"
	"github.com/ReaperOAK/player-auction/internal/clock"
	"github.com/ReaperOAK/player-auction/internal/config"
	"github.com/ReaperOAK/player-auction/internal/event"
	"github.com/ReaperOAK/player-auction/internal/store"
	"github.com/ReaperOAK/player-auction/internal/store/memstore"
)

// --- test helpers ---

// recorder is a Publisher that queues every event.
type recorder struct {
	ch chan auction.Event
}

func newRecorder() *recorder { return &recorder{ch: make(chan auction.Event, 1024)} }

func (r *recorder) Publish(ev auction.Event) { r.ch <- ev }

// flakyLedger fails the next n units of work.
type flakyLedger struct {
	store.Ledger
	failures atomic.Int32
}

var errLedgerDown = errors.New("ledger unavailable")

func (l *flakyLedger) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if l.failures.Load() > 0 {
		l.failures.Add(-1)
		return errLedgerDown
	}
	return l.Ledger.WithinTx(ctx, fn)
}

type env struct {
	m      *auction.Manager
	repos  *store.Repositories
	ledger *flakyLedger
	clk    *clockwork.FakeClock
	rec    *recorder
}

var testAuctionConfig = config.AuctionConfig{
	DefaultDuration:  30 * time.Second,
	DefaultIncrement: 10000,
	TickInterval:     time.Second,
}

func newEnv(t *testing.T) *env {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC))
	repos := memstore.New(clk).Repositories()
	ctx := context.Background()

	for _, p := range []*store.Player{
		{ID: "p-asha", Name: "Asha", Year: 3, Position: store.PositionStriker, BasePrice: 50000},
		{ID: "p-bela", Name: "Bela", Year: 1, Position: store.PositionGK, BasePrice: 30000},
	} {
		if err := repos.Players.Create(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	for _, tm := range []*store.Team{
		{ID: "t-falcons", Name: "Falcons", Budget: 1000000, SlotsLeft: 5},
		{ID: "t-wolves", Name: "Wolves", Budget: 1000000, SlotsLeft: 5},
		{ID: "t-poor", Name: "Poor", Budget: 55000, SlotsLeft: 5},
		{ID: "t-full", Name: "Full", Budget: 1000000, SlotsLeft: 0},
	} {
		if err := repos.Teams.Create(ctx, tm); err != nil {
			t.Fatal(err)
		}
	}

	e := &env{repos: repos, ledger: &flakyLedger{Ledger: repos.Ledger}, clk: clk, rec: newRecorder()}
	m, err := auction.NewManager(e.ledger, e.rec, testAuctionConfig, slog.Default(),
		noop.NewTracerProvider(), metricnoop.NewMeterProvider(), clk)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	e.m = m
	t.Cleanup(m.Close)

	if _, err := m.Recover(ctx); err != nil {
		t.Fatalf("Recover() error = %v", err)
	}
	e.expect(t, auction.EventSnapshot)
	return e
}

// expect returns the next published event and checks its type.
func (e *env) expect(t *testing.T, want auction.EventType) auction.Event {
	t.Helper()
	select {
	case ev := <-e.rec.ch:
		if ev.Type != want {
			t.Fatalf("event type = %q, want %q", ev.Type, want)
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
		return auction.Event{}
	}
}

func (e *env) expectNone(t *testing.T) {
	t.Helper()
	select {
	case ev := <-e.rec.ch:
		t.Fatalf("unexpected event %q", ev.Type)
	default:
	}
}

// waitArmed blocks until the countdown has a pending tick.
func (e *env) waitArmed(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.clk.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("countdown not armed: %v", err)
	}
}

// tick advances one interval and returns the resulting event.
func (e *env) tick(t *testing.T, want auction.EventType) auction.Event {
	t.Helper()
	e.waitArmed(t)
	e.clk.Advance(time.Second)
	return e.expect(t, want)
}

func (e *env) start(t *testing.T, lotID string) auction.View {
	t.Helper()
	v, err := e.m.StartLot(context.Background(), lotID, 10000, 30*time.Second)
	if err != nil {
		t.Fatalf("StartLot(%s) error = %v", lotID, err)
	}
	e.expect(t, auction.EventLotStarted)
	return v
}

func (e *env) bid(t *testing.T, teamID string, amount int64) auction.View {
	t.Helper()
	v, err := e.m.SubmitBid(context.Background(), teamID, amount)
	if err != nil {
		t.Fatalf("SubmitBid(%s, %d) error = %v", teamID, amount, err)
	}
	e.expect(t, auction.EventBidAccepted)
	return v
}

func (e *env) team(t *testing.T, id string) *store.Team {
	t.Helper()
	tm, err := e.repos.Teams.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return tm
}

func (e *env) player(t *testing.T, id string) *store.Player {
	t.Helper()
	p, err := e.repos.Players.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func assertKind(t *testing.T, err error, kind auction.Kind, target error) *auction.Error {
	t.Helper()
	var ae *auction.Error
	if !errors.As(err, &ae) {
		t.Fatalf("error = %v (%T), want *auction.Error", err, err)
	}
	if ae.Kind != kind {
		t.Errorf("Kind = %v, want %v", ae.Kind, kind)
	}
	if target != nil && !errors.Is(err, target) {
		t.Errorf("error = %v, want %v", err, target)
	}
	return ae
}

// --- tests ---

func TestManager_RecoverCreatesDefaultState(t *testing.T) {
	e := newEnv(t)
	v := e.m.State()
	if v.Status != store.StatusNotStarted {
		t.Errorf("Status = %q, want not_started", v.Status)
	}
	if v.Lot != nil || v.Bidder != nil || v.CurrentBid != 0 {
		t.Errorf("idle view = %+v", v)
	}
	if v.TimeRemaining != 30 || v.BidIncrement != 10000 {
		t.Errorf("defaults = %ds / %d, want 30s / 10000", v.TimeRemaining, v.BidIncrement)
	}
	if e.m.Countdown().IsArmed() {
		t.Error("countdown should be idle")
	}
}

func TestManager_StartLot(t *testing.T) {
	e := newEnv(t)
	v := e.start(t, "p-asha")

	if v.Status != store.StatusInProgress {
		t.Errorf("Status = %q, want in_progress", v.Status)
	}
	if v.Lot == nil || v.Lot.ID != "p-asha" || v.Lot.Name != "Asha" {
		t.Errorf("Lot = %+v", v.Lot)
	}
	if v.CurrentBid != 50000 || v.Bidder != nil {
		t.Errorf("bid = %d by %v, want base price with no bidder", v.CurrentBid, v.Bidder)
	}
	if v.TimeRemaining != 30 || v.MinimumBid() != 60000 {
		t.Errorf("time=%d min=%d", v.TimeRemaining, v.MinimumBid())
	}
	if !e.m.Countdown().IsArmed() {
		t.Error("countdown should be armed")
	}

	evs, _ := e.repos.Events.Load(context.Background(), "p-asha")
	if len(evs) != 1 || evs[0].Type != event.LotStarted || evs[0].Version != v.Version {
		t.Errorf("journal = %+v", evs)
	}
}

func TestManager_StartLot_Errors(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T, e *env)
		lotID    string
		inc      int64
		duration time.Duration
		kind     auction.Kind
		target   error
	}{
		{name: "missing lot id", lotID: "", kind: auction.KindValidation, target: auction.ErrInvalidArg},
		{name: "negative increment", lotID: "p-asha", inc: -1, kind: auction.KindValidation, target: auction.ErrInvalidArg},
		{name: "sub-second duration", lotID: "p-asha", duration: time.Millisecond, kind: auction.KindValidation, target: auction.ErrInvalidArg},
		{name: "unknown player", lotID: "p-nobody", kind: auction.KindPrecondition, target: auction.ErrInvalidLot},
		{
			name:  "already sold",
			lotID: "p-asha",
			setup: func(t *testing.T, e *env) {
				e.start(t, "p-asha")
				e.bid(t, "t-falcons", 60000)
				if _, err := e.m.End(context.Background()); err != nil {
					t.Fatal(err)
				}
				e.expect(t, auction.EventSettledSold)
			},
			kind:   auction.KindPrecondition,
			target: auction.ErrInvalidLot,
		},
		{
			name:   "lot already active",
			lotID:  "p-bela",
			setup:  func(t *testing.T, e *env) { e.start(t, "p-asha") },
			kind:   auction.KindPrecondition,
			target: auction.ErrLotActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			if tt.setup != nil {
				tt.setup(t, e)
			}
			before := e.m.State()

			_, err := e.m.StartLot(context.Background(), tt.lotID, tt.inc, tt.duration)
			ae := assertKind(t, err, tt.kind, tt.target)
			if ae.State.Version != before.Version {
				t.Errorf("error state version = %d, want %d", ae.State.Version, before.Version)
			}
			if e.m.State().Version != before.Version {
				t.Error("failed start must not mutate state")
			}
			e.expectNone(t)
		})
	}
}

func TestManager_StartLot_Defaults(t *testing.T) {
	e := newEnv(t)
	v, err := e.m.StartLot(context.Background(), "p-bela", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if v.BidIncrement != 10000 || v.TimeRemaining != 30 {
		t.Errorf("increment=%d time=%d, want config defaults", v.BidIncrement, v.TimeRemaining)
	}
}

// Lot base 50,000, increment 10,000, 30s. A bids 60,000, B's 65,000 is
// below the increment, B's 70,000 wins when the timer runs out.
func TestManager_BiddingScenario(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.start(t, "p-asha")

	ev := e.tick(t, auction.EventTimerTick)
	if ev.State.TimeRemaining != 29 {
		t.Fatalf("after one tick remaining = %d, want 29", ev.State.TimeRemaining)
	}

	v := e.bid(t, "t-falcons", 60000)
	if v.CurrentBid != 60000 || v.Bidder.ID != "t-falcons" || v.TimeRemaining != 30 {
		t.Fatalf("after A's bid view = %+v", v)
	}

	before := e.m.State()
	_, err := e.m.SubmitBid(ctx, "t-wolves", 65000)
	ae := assertKind(t, err, auction.KindPrecondition, auction.ErrBelowIncrement)
	if ae.State.CurrentBid != 60000 || ae.State.Bidder.ID != "t-falcons" {
		t.Errorf("rejection carried state %+v", ae.State)
	}
	if after := e.m.State(); after.Version != before.Version || after.CurrentBid != 60000 {
		t.Errorf("rejected bid mutated state: %+v", after)
	}
	e.expectNone(t)

	v = e.bid(t, "t-wolves", 70000)
	if v.CurrentBid != 70000 || v.Bidder.Name != "Wolves" {
		t.Fatalf("after B's bid view = %+v", v)
	}
	outbid := e.expect(t, auction.EventOutbid)
	if outbid.TeamID != "t-falcons" {
		t.Errorf("outbid addressed to %q, want t-falcons", outbid.TeamID)
	}

	for want := 29; want >= 1; want-- {
		ev := e.tick(t, auction.EventTimerTick)
		if ev.State.TimeRemaining != want {
			t.Fatalf("remaining = %d, want %d", ev.State.TimeRemaining, want)
		}
	}
	settled := e.tick(t, auction.EventSettledSold)
	data, ok := settled.Data.(auction.SettledData)
	if !ok {
		t.Fatalf("Data = %T", settled.Data)
	}
	if data.TeamID != "t-wolves" || data.Price != 70000 || !data.Auto {
		t.Errorf("settlement = %+v", data)
	}

	final := e.m.State()
	if final.Status != store.StatusNotStarted || final.Lot != nil || final.Bidder != nil || final.CurrentBid != 0 {
		t.Errorf("state after settlement = %+v", final)
	}
	if final.TimeRemaining != 30 {
		t.Errorf("remaining after settlement = %d, want default 30", final.TimeRemaining)
	}
	if e.m.Countdown().IsArmed() {
		t.Error("no tick may be pending after settlement")
	}

	wolves := e.team(t, "t-wolves")
	if wolves.Budget != 930000 || wolves.SlotsLeft != 4 {
		t.Errorf("Wolves = %d/%d, want 930000/4", wolves.Budget, wolves.SlotsLeft)
	}
	if falcons := e.team(t, "t-falcons"); falcons.Budget != 1000000 || falcons.SlotsLeft != 5 {
		t.Errorf("Falcons changed: %+v", falcons)
	}
	p := e.player(t, "p-asha")
	if !p.Sold() || *p.SoldTo != "t-wolves" || *p.SoldPrice != 70000 {
		t.Errorf("player = %+v", p)
	}
}

func TestManager_UnsoldWhenNoBids(t *testing.T) {
	e := newEnv(t)
	if _, err := e.m.StartLot(context.Background(), "p-bela", 5000, 2*time.Second); err != nil {
		t.Fatal(err)
	}
	e.expect(t, auction.EventLotStarted)

	e.tick(t, auction.EventTimerTick)
	ev := e.tick(t, auction.EventSettledUnsold)
	if data := ev.Data.(auction.SettledData); !data.Auto || data.TeamID != "" || data.Reason != "" {
		t.Errorf("settlement = %+v", data)
	}
	if ev.State.Status != store.StatusNotStarted {
		t.Errorf("Status = %q", ev.State.Status)
	}
	if e.player(t, "p-bela").Sold() {
		t.Error("unsold lot must not be marked sold")
	}
	for _, id := range []string{"t-falcons", "t-wolves"} {
		if tm := e.team(t, id); tm.Budget != 1000000 || tm.SlotsLeft != 5 {
			t.Errorf("team %s changed: %+v", id, tm)
		}
	}

	// The lot can be auctioned again.
	e.start(t, "p-bela")
}

func TestManager_BidRejections(t *testing.T) {
	tests := []struct {
		name   string
		teamID string
		amount int64
		kind   auction.Kind
		target error
	}{
		{name: "empty team", teamID: "", amount: 60000, kind: auction.KindValidation, target: auction.ErrInvalidArg},
		{name: "non-positive amount", teamID: "t-falcons", amount: 0, kind: auction.KindValidation, target: auction.ErrInvalidArg},
		{name: "too low", teamID: "t-falcons", amount: 50000, kind: auction.KindPrecondition, target: auction.ErrBidTooLow},
		{name: "below increment", teamID: "t-falcons", amount: 55000, kind: auction.KindPrecondition, target: auction.ErrBelowIncrement},
		{name: "insufficient budget", teamID: "t-poor", amount: 60000, kind: auction.KindResourceExhausted, target: auction.ErrInsufficientBudget},
		{name: "no slots", teamID: "t-full", amount: 60000, kind: auction.KindResourceExhausted, target: auction.ErrNoSlotsLeft},
		{name: "unknown team", teamID: "t-ghost", amount: 60000, kind: auction.KindPrecondition, target: auction.ErrUnknownTeam},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			before := e.start(t, "p-asha")

			_, err := e.m.SubmitBid(context.Background(), tt.teamID, tt.amount)
			ae := assertKind(t, err, tt.kind, tt.target)
			if ae.State.Version != before.Version {
				t.Errorf("error state version = %d, want %d", ae.State.Version, before.Version)
			}
			if after := e.m.State(); after.Version != before.Version || after.CurrentBid != before.CurrentBid {
				t.Errorf("rejected bid mutated state: %+v", after)
			}
			e.expectNone(t)
		})
	}
}

func TestManager_BidWhenNotActive(t *testing.T) {
	e := newEnv(t)
	_, err := e.m.SubmitBid(context.Background(), "t-falcons", 60000)
	assertKind(t, err, auction.KindPrecondition, auction.ErrAuctionNotActive)

	e.start(t, "p-asha")
	if _, err := e.m.Pause(context.Background()); err != nil {
		t.Fatal(err)
	}
	e.expect(t, auction.EventPaused)
	_, err = e.m.SubmitBid(context.Background(), "t-falcons", 60000)
	assertKind(t, err, auction.KindPrecondition, auction.ErrAuctionNotActive)
}

func TestManager_SelfRaiseAllowedWithoutOutbid(t *testing.T) {
	e := newEnv(t)
	e.start(t, "p-asha")
	e.bid(t, "t-falcons", 60000)
	v := e.bid(t, "t-falcons", 70000)
	if v.CurrentBid != 70000 {
		t.Errorf("CurrentBid = %d", v.CurrentBid)
	}
	e.expectNone(t)
}

func TestManager_BidResetsTimer(t *testing.T) {
	e := newEnv(t)
	e.start(t, "p-asha")
	for i := 0; i < 10; i++ {
		e.tick(t, auction.EventTimerTick)
	}
	if got := e.m.State().TimeRemaining; got != 20 {
		t.Fatalf("remaining = %d, want 20", got)
	}
	v := e.bid(t, "t-falcons", 60000)
	if v.TimeRemaining != 30 {
		t.Errorf("remaining after bid = %d, want 30", v.TimeRemaining)
	}
	ev := e.tick(t, auction.EventTimerTick)
	if ev.State.TimeRemaining != 29 {
		t.Errorf("first tick after bid = %d, want 29", ev.State.TimeRemaining)
	}
}

func TestManager_PauseResumePreservesTime(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.start(t, "p-asha")
	for i := 0; i < 3; i++ {
		e.tick(t, auction.EventTimerTick)
	}

	v, err := e.m.Pause(ctx)
	if err != nil {
		t.Fatal(err)
	}
	e.expect(t, auction.EventPaused)
	if v.Status != store.StatusPaused || v.TimeRemaining != 27 {
		t.Fatalf("paused view = %+v", v)
	}
	if e.m.Countdown().IsArmed() {
		t.Fatal("pause must cancel the pending tick")
	}

	// Time passing while paused changes nothing.
	e.clk.Advance(10 * time.Second)
	e.expectNone(t)

	_, err = e.m.Pause(ctx)
	assertKind(t, err, auction.KindPrecondition, auction.ErrNotRunning)

	v, err = e.m.Resume(ctx)
	if err != nil {
		t.Fatal(err)
	}
	e.expect(t, auction.EventResumed)
	if v.Status != store.StatusInProgress || v.TimeRemaining != 27 {
		t.Fatalf("resumed view = %+v", v)
	}

	_, err = e.m.Resume(ctx)
	assertKind(t, err, auction.KindPrecondition, auction.ErrNotPaused)

	ev := e.tick(t, auction.EventTimerTick)
	if ev.State.TimeRemaining != 26 {
		t.Errorf("first tick after resume = %d, want 26", ev.State.TimeRemaining)
	}
}

func TestManager_PauseRequiresRunningLot(t *testing.T) {
	e := newEnv(t)
	_, err := e.m.Pause(context.Background())
	assertKind(t, err, auction.KindPrecondition, auction.ErrNotRunning)
	_, err = e.m.Resume(context.Background())
	assertKind(t, err, auction.KindPrecondition, auction.ErrNotPaused)
}

func TestManager_EndManual(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.m.End(ctx)
	assertKind(t, err, auction.KindPrecondition, auction.ErrNoActiveLot)

	e.start(t, "p-asha")
	e.bid(t, "t-falcons", 80000)
	if _, err := e.m.Pause(ctx); err != nil {
		t.Fatal(err)
	}
	e.expect(t, auction.EventPaused)

	v, err := e.m.End(ctx)
	if err != nil {
		t.Fatal(err)
	}
	ev := e.expect(t, auction.EventSettledSold)
	if ev.Data.(auction.SettledData).Auto {
		t.Error("manual end must not be flagged auto")
	}
	if v.Status != store.StatusNotStarted {
		t.Errorf("Status = %q", v.Status)
	}
	if tm := e.team(t, "t-falcons"); tm.Budget != 920000 || tm.SlotsLeft != 4 {
		t.Errorf("Falcons = %d/%d", tm.Budget, tm.SlotsLeft)
	}
}

func TestManager_StartAfterEndReplacesTimer(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.start(t, "p-asha")
	e.tick(t, auction.EventTimerTick)
	if _, err := e.m.End(ctx); err != nil {
		t.Fatal(err)
	}
	e.expect(t, auction.EventSettledUnsold)

	e.start(t, "p-bela")
	ev := e.tick(t, auction.EventTimerTick)
	if ev.State.TimeRemaining != 29 || ev.State.Lot.ID != "p-bela" {
		t.Errorf("tick = %+v", ev.State)
	}
	// Exactly one tick per interval.
	e.waitArmed(t)
	e.expectNone(t)
}

func TestManager_Revert(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.m.Revert(ctx, "p-asha")
	assertKind(t, err, auction.KindPrecondition, auction.ErrNotSold)
	_, err = e.m.Revert(ctx, "p-ghost")
	assertKind(t, err, auction.KindPrecondition, auction.ErrUnknownPlayer)

	e.start(t, "p-asha")
	e.bid(t, "t-falcons", 60000)
	if _, err := e.m.End(ctx); err != nil {
		t.Fatal(err)
	}
	e.expect(t, auction.EventSettledSold)

	// Revert while another lot is running.
	e.start(t, "p-bela")
	v, err := e.m.Revert(ctx, "p-asha")
	if err != nil {
		t.Fatal(err)
	}
	ev := e.expect(t, auction.EventLotReverted)
	if d := ev.Data.(auction.RevertData); d.Refund != 60000 || d.TeamID != "t-falcons" {
		t.Errorf("revert data = %+v", d)
	}
	if v.Lot == nil || v.Lot.ID != "p-bela" {
		t.Error("revert must not disturb the active lot")
	}
	if tm := e.team(t, "t-falcons"); tm.Budget != 1000000 || tm.SlotsLeft != 5 {
		t.Errorf("Falcons after revert = %d/%d", tm.Budget, tm.SlotsLeft)
	}
	if e.player(t, "p-asha").Sold() {
		t.Error("sold fields should be cleared")
	}

	_, err = e.m.Revert(ctx, "p-asha")
	assertKind(t, err, auction.KindPrecondition, auction.ErrNotSold)

	// Re-sale after revert charges the new buyer only.
	if _, err := e.m.End(ctx); err != nil {
		t.Fatal(err)
	}
	e.expect(t, auction.EventSettledUnsold)
	e.start(t, "p-asha")
	e.bid(t, "t-wolves", 90000)
	if _, err := e.m.End(ctx); err != nil {
		t.Fatal(err)
	}
	e.expect(t, auction.EventSettledSold)
	if tm := e.team(t, "t-wolves"); tm.Budget != 910000 || tm.SlotsLeft != 4 {
		t.Errorf("Wolves = %d/%d", tm.Budget, tm.SlotsLeft)
	}
	if tm := e.team(t, "t-falcons"); tm.Budget != 1000000 || tm.SlotsLeft != 5 {
		t.Errorf("Falcons = %d/%d", tm.Budget, tm.SlotsLeft)
	}
}

func TestManager_StorageFailureLeavesStateUntouched(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	before := e.start(t, "p-asha")

	e.ledger.failures.Store(1)
	_, err := e.m.SubmitBid(ctx, "t-falcons", 60000)
	assertKind(t, err, auction.KindStorage, errLedgerDown)
	if e.m.State().Version != before.Version {
		t.Error("failed bid must not commit")
	}
	e.expectNone(t)

	e.ledger.failures.Store(1)
	_, err = e.m.End(ctx)
	assertKind(t, err, auction.KindStorage, errLedgerDown)
	if e.m.State().Status != store.StatusInProgress {
		t.Error("failed manual end must leave the lot running")
	}

	// Retrying succeeds.
	e.bid(t, "t-falcons", 60000)
}

func TestManager_TickFailureRetries(t *testing.T) {
	e := newEnv(t)
	e.start(t, "p-asha")

	e.ledger.failures.Store(1)
	e.waitArmed(t)
	e.clk.Advance(time.Second)
	e.waitArmed(t) // rescheduled after the failed write
	e.expectNone(t)
	if got := e.m.State().TimeRemaining; got != 30 {
		t.Fatalf("remaining after failed tick = %d, want 30", got)
	}

	ev := e.tick(t, auction.EventTimerTick)
	if ev.State.TimeRemaining != 29 {
		t.Errorf("remaining = %d, want 29", ev.State.TimeRemaining)
	}
}

func TestManager_AutoSettlementFailureResets(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	if _, err := e.m.StartLot(ctx, "p-asha", 10000, time.Second); err != nil {
		t.Fatal(err)
	}
	e.expect(t, auction.EventLotStarted)
	e.bid(t, "t-falcons", 60000)

	// Bids reset the timer to the 30s default; run it down.
	for i := 0; i < 29; i++ {
		e.tick(t, auction.EventTimerTick)
	}
	e.ledger.failures.Store(2) // settlement and the reset write
	ev := e.tick(t, auction.EventSettledUnsold)

	data := ev.Data.(auction.SettledData)
	if !data.Auto || data.Reason != "settlement_failed" || data.LotID != "p-asha" {
		t.Errorf("settlement = %+v", data)
	}
	if v := e.m.State(); v.Status != store.StatusNotStarted || v.Lot != nil {
		t.Errorf("state = %+v, want reset", v)
	}
	if e.player(t, "p-asha").Sold() {
		t.Error("failed settlement must not sell the player")
	}
	if e.m.Countdown().IsArmed() {
		t.Error("no tick may be pending")
	}

	// The auction is usable again.
	e.start(t, "p-bela")
}

func TestManager_ConcurrentBidsStrictlyIncrease(t *testing.T) {
	e := newEnv(t)
	e.start(t, "p-asha")

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(amount int64) {
			defer wg.Done()
			team := "t-falcons"
			if amount%20000 == 0 {
				team = "t-wolves"
			}
			_, _ = e.m.SubmitBid(context.Background(), team, amount)
		}(50000 + int64(i)*10000)
	}
	wg.Wait()

	var (
		last    int64 = 50000
		version int64
		n       int
	)
	for {
		select {
		case ev := <-e.rec.ch:
			if ev.Version < version {
				t.Fatalf("event version %d after %d", ev.Version, version)
			}
			version = ev.Version
			if ev.Type != auction.EventBidAccepted {
				continue
			}
			amount := ev.Data.(auction.BidData).Amount
			if amount < last+10000 {
				t.Fatalf("accepted %d after %d", amount, last)
			}
			last = amount
			n++
		default:
			if n == 0 {
				t.Fatal("no bid accepted")
			}
			if got := e.m.State().CurrentBid; got != last {
				t.Errorf("CurrentBid = %d, want last accepted %d", got, last)
			}
			return
		}
	}
}

func TestManager_RecoverRestoresActiveLot(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.start(t, "p-asha")
	e.bid(t, "t-falcons", 60000)
	e.m.Close()

	_, err := e.m.SubmitBid(ctx, "t-wolves", 70000)
	assertKind(t, err, auction.KindStorage, auction.ErrClosed)

	rec := newRecorder()
	m2, err := auction.NewManager(e.repos.Ledger, rec, testAuctionConfig, slog.Default(),
		noop.NewTracerProvider(), metricnoop.NewMeterProvider(), e.clk)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(m2.Close)

	v, err := m2.Recover(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != store.StatusInProgress || v.Lot.ID != "p-asha" || v.Bidder.Name != "Falcons" || v.CurrentBid != 60000 {
		t.Errorf("recovered view = %+v", v)
	}
	if !m2.Countdown().IsArmed() {
		t.Error("recovery must re-arm the countdown")
	}
	if ev := <-rec.ch; ev.Type != auction.EventSnapshot || ev.Version != v.Version {
		t.Errorf("first event = %s v%d", ev.Type, ev.Version)
	}
}
