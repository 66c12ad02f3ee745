package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bidding-engine/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Fatal(string, ...interface{}) {}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func allowAll(context.Context, string, string) (bool, error) { return true, nil }

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	e, err := New(domain.AuthorizerFunc(allowAll), nopLogger{}, opts)
	require.NoError(t, err)
	return e
}

func openLot(t *testing.T, e *Engine, lot domain.Lot) {
	t.Helper()
	require.NoError(t, e.RegisterLot(lot))
	_, err := e.OpenLot(lot.ID)
	require.NoError(t, err)
}

func testLot(id string) domain.Lot {
	return domain.Lot{
		ID:            id,
		StartingPrice: 100,
		MinIncrement:  5,
		Quantity:      1,
		Currency:      "EUR",
		ScheduledEnd:  time.Now().Add(time.Hour),
	}
}

func TestSubmitScenario(t *testing.T) {
	e := newTestEngine(t, Options{})
	openLot(t, e, testLot("lot-1"))
	ctx := context.Background()

	// Starting price 100, increment 5.
	acc, err := e.Submit(ctx, "lot-1", "alice", 106)
	require.NoError(t, err)
	require.Equal(t, 106.0, acc.NewPrice)
	require.Equal(t, uint64(1), acc.Sequence)

	_, err = e.Submit(ctx, "lot-1", "bob", 108)
	var rejection *domain.Rejection
	require.ErrorAs(t, err, &rejection)
	require.Equal(t, domain.ReasonBelowMinimumIncrement, rejection.Reason)
	require.Equal(t, 111.0, rejection.MinimumBid)

	acc, err = e.Submit(ctx, "lot-1", "carol", 111)
	require.NoError(t, err)
	require.Equal(t, 111.0, acc.NewPrice)

	leader, err := e.CurrentLeader("lot-1")
	require.NoError(t, err)
	require.Equal(t, "carol", leader)

	_, err = e.Submit(ctx, "lot-1", "alice", 111)
	require.ErrorAs(t, err, &rejection)
	require.Equal(t, domain.ReasonBidTooLow, rejection.Reason)
	require.Equal(t, 111.0, rejection.CurrentPrice)
}

func TestSubmitRejectionOrder(t *testing.T) {
	deny := domain.AuthorizerFunc(func(context.Context, string, string) (bool, error) {
		return false, nil
	})
	e, err := New(deny, nopLogger{}, Options{})
	require.NoError(t, err)
	ctx := context.Background()

	var rejection *domain.Rejection

	// Unknown lot surfaces as LotNotOpen.
	_, err = e.Submit(ctx, "missing", "alice", 200)
	require.ErrorAs(t, err, &rejection)
	require.Equal(t, domain.ReasonLotNotOpen, rejection.Reason)

	// Registered but not yet open.
	require.NoError(t, e.RegisterLot(testLot("lot-1")))
	_, err = e.Submit(ctx, "lot-1", "alice", 200)
	require.ErrorAs(t, err, &rejection)
	require.Equal(t, domain.ReasonLotNotOpen, rejection.Reason)

	_, err = e.OpenLot("lot-1")
	require.NoError(t, err)

	// Amount checks take precedence over the authorization result.
	_, err = e.Submit(ctx, "lot-1", "alice", 50)
	require.ErrorAs(t, err, &rejection)
	require.Equal(t, domain.ReasonBidTooLow, rejection.Reason)

	_, err = e.Submit(ctx, "lot-1", "alice", 103)
	require.ErrorAs(t, err, &rejection)
	require.Equal(t, domain.ReasonBelowMinimumIncrement, rejection.Reason)

	_, err = e.Submit(ctx, "lot-1", "alice", 200)
	require.ErrorAs(t, err, &rejection)
	require.Equal(t, domain.ReasonUnauthorized, rejection.Reason)

	// A rejected bid never touches the ledger.
	history, err := e.History("lot-1")
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestSubmitAuthorizerFailure(t *testing.T) {
	boom := errors.New("identity service down")
	failing := domain.AuthorizerFunc(func(context.Context, string, string) (bool, error) {
		return false, boom
	})
	e, err := New(failing, nopLogger{}, Options{})
	require.NoError(t, err)
	openLot(t, e, testLot("lot-1"))

	_, err = e.Submit(context.Background(), "lot-1", "alice", 200)
	require.ErrorIs(t, err, boom)

	var rejection *domain.Rejection
	require.False(t, errors.As(err, &rejection))
}

func TestHistoryStrictlyIncreasing(t *testing.T) {
	e := newTestEngine(t, Options{})
	openLot(t, e, testLot("lot-1"))
	ctx := context.Background()

	amounts := []float64{105, 110, 120, 131, 140.5}
	for _, amount := range amounts {
		_, err := e.Submit(ctx, "lot-1", "alice", amount)
		require.NoError(t, err)
	}

	history, err := e.History("lot-1")
	require.NoError(t, err)
	require.Len(t, history, len(amounts))
	for i := 1; i < len(history); i++ {
		require.Greater(t, history[i].Amount, history[i-1].Amount)
		require.Equal(t, history[i-1].Sequence+1, history[i].Sequence)
	}

	price, err := e.CurrentPrice("lot-1")
	require.NoError(t, err)
	require.Equal(t, history[len(history)-1].Amount, price)
}

func TestConcurrentSubmissionsSameLot(t *testing.T) {
	e := newTestEngine(t, Options{})
	openLot(t, e, testLot("lot-1"))
	ctx := context.Background()

	// Each participant keeps outbidding the current price until one of their
	// bids lands. Every accepted bid must extend a strictly increasing
	// ledger; no accepted bid may be lost or duplicated.
	const participants = 32
	var wg sync.WaitGroup
	for i := 0; i < participants; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			participantID := string(rune('a'+id%26)) + "-bidder"
			for {
				price, err := e.CurrentPrice("lot-1")
				if err != nil {
					return
				}
				_, err = e.Submit(ctx, "lot-1", participantID, price+5)
				if err == nil {
					return
				}
				var rejection *domain.Rejection
				if !errors.As(err, &rejection) {
					return
				}
			}
		}(i)
	}
	wg.Wait()

	history, err := e.History("lot-1")
	require.NoError(t, err)
	require.Len(t, history, participants)

	for i := 1; i < len(history); i++ {
		require.Greater(t, history[i].Amount, history[i-1].Amount)
		require.Equal(t, history[i-1].Sequence+1, history[i].Sequence)
	}

	price, err := e.CurrentPrice("lot-1")
	require.NoError(t, err)
	require.Equal(t, history[len(history)-1].Amount, price)
}

func TestConcurrentDistinctAmounts(t *testing.T) {
	e := newTestEngine(t, Options{})
	openLot(t, e, testLot("lot-1"))
	ctx := context.Background()

	// Amounts spaced by at least the increment: whichever subset is accepted,
	// the maximum always beats the runner-up by a full increment and must end
	// up as the final price.
	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			amount := 105 + float64(i)*5
			_, _ = e.Submit(ctx, "lot-1", "bidder", amount)
		}(i)
	}
	wg.Wait()

	history, err := e.History("lot-1")
	require.NoError(t, err)
	require.NotEmpty(t, history)
	for i := 1; i < len(history); i++ {
		require.Greater(t, history[i].Amount, history[i-1].Amount)
	}

	price, err := e.CurrentPrice("lot-1")
	require.NoError(t, err)
	require.Equal(t, 105+float64(n-1)*5, price)
}

func TestCrossLotSubmissionsIndependent(t *testing.T) {
	e := newTestEngine(t, Options{})
	openLot(t, e, testLot("lot-1"))
	openLot(t, e, testLot("lot-2"))
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, lotID := range []string{"lot-1", "lot-2"} {
		wg.Add(1)
		go func(lotID string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				price, err := e.CurrentPrice(lotID)
				require.NoError(t, err)
				_, err = e.Submit(ctx, lotID, "bidder-"+lotID, price+5)
				require.NoError(t, err)
			}
		}(lotID)
	}
	wg.Wait()

	for _, lotID := range []string{"lot-1", "lot-2"} {
		price, err := e.CurrentPrice(lotID)
		require.NoError(t, err)
		require.Equal(t, 100+50*5.0, price)
	}
}

func TestAcceptedBidEmitsEvent(t *testing.T) {
	e := newTestEngine(t, Options{EventBuffer: 16})
	openLot(t, e, testLot("lot-1"))

	// Drain the lot_opened event.
	ev := <-e.Events()
	require.Equal(t, domain.EventLotOpened, ev.Type)

	_, err := e.Submit(context.Background(), "lot-1", "alice", 110)
	require.NoError(t, err)

	ev = <-e.Events()
	require.Equal(t, domain.EventBidAccepted, ev.Type)
	require.Equal(t, "lot-1", ev.LotID)
	require.Equal(t, "alice", ev.ParticipantID)
	require.Equal(t, 110.0, ev.Amount)
	require.Equal(t, uint64(1), ev.Sequence)
	require.False(t, ev.Deadline.IsZero())

	// The first accepted bid displaces nobody.
	require.Empty(t, ev.PreviousLeader)

	_, err = e.Submit(context.Background(), "lot-1", "bob", 120)
	require.NoError(t, err)

	ev = <-e.Events()
	require.Equal(t, domain.EventBidAccepted, ev.Type)
	require.Equal(t, "bob", ev.ParticipantID)
	require.Equal(t, "alice", ev.PreviousLeader)
}

func TestOpenLotAfterClose(t *testing.T) {
	e := newTestEngine(t, Options{})
	openLot(t, e, testLot("lot-1"))

	e.closeOpenLots()

	_, err := e.OpenLot("lot-1")
	require.ErrorIs(t, err, domain.ErrLotClosed)

	// The lot is still known, just closed.
	snap, err := e.Lot("lot-1")
	require.NoError(t, err)
	require.Equal(t, domain.LotClosed, snap.Lot.Status)
}

func TestEmitDropsWhenBufferFull(t *testing.T) {
	e := newTestEngine(t, Options{EventBuffer: 1})
	openLot(t, e, testLot("lot-1")) // lot_opened fills the buffer
	ctx := context.Background()

	// Nobody drains the channel; every accepted bid still lands in the ledger.
	const bids = 5
	for i := 1; i <= bids; i++ {
		acc, err := e.Submit(ctx, "lot-1", "alice", 100+float64(i)*6)
		require.NoError(t, err)
		require.Equal(t, uint64(i), acc.Sequence)
	}

	history, err := e.History("lot-1")
	require.NoError(t, err)
	require.Len(t, history, bids)

	// Only the one buffered event survived; the rest were dropped.
	ev := <-e.Events()
	require.Equal(t, domain.EventLotOpened, ev.Type)
	select {
	case ev := <-e.Events():
		t.Fatalf("expected empty event buffer, got %v", ev.Type)
	default:
	}
}

func TestExtensionWindowAccessor(t *testing.T) {
	e := newTestEngine(t, Options{})
	require.Equal(t, DefaultExtensionWindow, e.ExtensionWindow())

	e = newTestEngine(t, Options{ExtensionWindow: 42 * time.Second})
	require.Equal(t, 42*time.Second, e.ExtensionWindow())
}

func TestDeadlineExpiryClosesAllOpenLots(t *testing.T) {
	e := newTestEngine(t, Options{ExtensionWindow: 40 * time.Millisecond, EventBuffer: 64})

	lot1 := testLot("lot-1")
	lot1.ScheduledEnd = time.Now().Add(60 * time.Millisecond)
	lot2 := testLot("lot-2")
	lot2.ScheduledEnd = time.Now().Add(30 * time.Millisecond)
	openLot(t, e, lot1)
	openLot(t, e, lot2)

	_, err := e.Submit(context.Background(), "lot-2", "alice", 120)
	require.NoError(t, err)

	closed := make(map[string]domain.LotEvent)
	timeout := time.After(2 * time.Second)
	for len(closed) < 2 {
		select {
		case ev := <-e.Events():
			if ev.Type == domain.EventLotClosed {
				closed[ev.LotID] = ev
			}
		case <-timeout:
			t.Fatal("timed out waiting for lot_closed events")
		}
	}

	// lot-2's own scheduled end passed first, but it stayed open until the
	// shared deadline and closed with its winner.
	require.Equal(t, "alice", closed["lot-2"].ParticipantID)
	require.Equal(t, 120.0, closed["lot-2"].FinalPrice)

	// lot-1 closed with no bids: no winner, final price = starting price.
	require.Equal(t, "", closed["lot-1"].ParticipantID)
	require.Equal(t, 100.0, closed["lot-1"].FinalPrice)

	for _, lotID := range []string{"lot-1", "lot-2"} {
		snap, err := e.Lot(lotID)
		require.NoError(t, err)
		require.Equal(t, domain.LotClosed, snap.Lot.Status)
	}

	// Post-close submissions are rejected and the ledger stays put.
	_, err = e.Submit(context.Background(), "lot-2", "bob", 500)
	var rejection *domain.Rejection
	require.ErrorAs(t, err, &rejection)
	require.Equal(t, domain.ReasonLotNotOpen, rejection.Reason)
}

func TestRestoreLotReplaysArchive(t *testing.T) {
	e := newTestEngine(t, Options{})

	lot := testLot("lot-1")
	archived := []domain.Bid{
		{LotID: "lot-1", ParticipantID: "alice", Amount: 110, Sequence: 1},
		{LotID: "lot-1", ParticipantID: "bob", Amount: 120, Sequence: 2},
	}
	require.NoError(t, e.RestoreLot(lot, archived))
	_, err := e.OpenLot("lot-1")
	require.NoError(t, err)

	price, err := e.CurrentPrice("lot-1")
	require.NoError(t, err)
	require.Equal(t, 120.0, price)

	leader, err := e.CurrentLeader("lot-1")
	require.NoError(t, err)
	require.Equal(t, "bob", leader)

	// Sequence numbers continue from the replayed ledger.
	acc, err := e.Submit(context.Background(), "lot-1", "carol", 130)
	require.NoError(t, err)
	require.Equal(t, uint64(3), acc.Sequence)
}
