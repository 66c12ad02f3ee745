package engine

import (
	"context"
	"sync"
	"time"

	"bidding-engine/internal/domain"
	"bidding-engine/pkg/logger"
)

// Options are the engine's tuning knobs; zero values fall back to defaults.
type Options struct {
	ExtensionWindow time.Duration
	EventBuffer     int
	PaddleLow       int
	PaddleHigh      int
	Clock           func() time.Time
}

const (
	DefaultExtensionWindow = 3 * time.Minute
	DefaultEventBuffer     = 1024
)

// Engine owns the lot table, the per-lot ledgers, the shared deadline
// coordinator and the outbound event channel. All bid arbitration goes
// through Submit; everything else is a derived read.
type Engine struct {
	mu      sync.RWMutex
	lots    map[string]*lotState
	coord   *Coordinator
	auth    domain.Authorizer
	paddles *PaddleAssigner
	events  chan domain.LotEvent
	now     func() time.Time
	log     logger.Logger
}

func New(auth domain.Authorizer, log logger.Logger, opts Options) (*Engine, error) {
	if opts.ExtensionWindow <= 0 {
		opts.ExtensionWindow = DefaultExtensionWindow
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultEventBuffer
	}
	if opts.PaddleLow == 0 && opts.PaddleHigh == 0 {
		opts.PaddleLow = DefaultPaddleLow
		opts.PaddleHigh = DefaultPaddleHigh
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	paddles, err := NewPaddleAssigner(opts.PaddleLow, opts.PaddleHigh)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		lots:    make(map[string]*lotState),
		coord:   NewCoordinator(opts.ExtensionWindow),
		auth:    auth,
		paddles: paddles,
		events:  make(chan domain.LotEvent, opts.EventBuffer),
		now:     opts.Clock,
		log:     log,
	}
	e.coord.SetClock(opts.Clock)
	e.coord.SetExpireFunc(e.closeOpenLots)
	return e, nil
}

// Events is the outbound stream of accepted-bid and lot-state-change events.
// The engine never blocks on it; a full buffer drops delivery, never a bid.
func (e *Engine) Events() <-chan domain.LotEvent {
	return e.events
}

// RegisterLot adds a lot in scheduled state. The ledger exists from
// registration on and lives for the rest of the process.
func (e *Engine) RegisterLot(lot domain.Lot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.lots[lot.ID]; exists {
		return domain.ErrLotAlreadyRegistered
	}

	lot.Status = domain.LotScheduled
	e.lots[lot.ID] = newLotState(lot)
	return nil
}

// RestoreLot registers a lot with a pre-seeded ledger, used when replaying
// archived accepted bids after a restart.
func (e *Engine) RestoreLot(lot domain.Lot, bids []domain.Bid) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.lots[lot.ID]; exists {
		return domain.ErrLotAlreadyRegistered
	}

	lot.Status = domain.LotScheduled
	ls := newLotState(lot)
	ls.restore(bids)
	e.lots[lot.ID] = ls
	return nil
}

// OpenLot transitions a lot to open and joins it to the shared countdown.
// Opening an already-open lot is a no-op; opening a closed lot fails.
func (e *Engine) OpenLot(lotID string) (time.Time, error) {
	ls, err := e.lotState(lotID)
	if err != nil {
		return time.Time{}, err
	}

	ls.mu.Lock()
	switch ls.lot.Status {
	case domain.LotOpen:
		ls.mu.Unlock()
		deadline, _ := e.coord.Deadline()
		return deadline, nil
	case domain.LotClosed:
		ls.mu.Unlock()
		return time.Time{}, domain.ErrLotClosed
	}
	ls.lot.Status = domain.LotOpen
	ls.lot.UpdatedAt = e.now()
	scheduledEnd := ls.lot.ScheduledEnd

	// Lock order is always lot then coordinator.
	deadline := e.coord.LotOpened(scheduledEnd)
	ls.mu.Unlock()

	e.emit(domain.LotEvent{
		Type:      domain.EventLotOpened,
		LotID:     lotID,
		Deadline:  deadline,
		Timestamp: e.now(),
	})
	return deadline, nil
}

// closeOpenLots runs when the shared deadline elapses: every lot still open
// closes at once and a LotClosed event carries its winner and final price.
func (e *Engine) closeOpenLots() {
	e.mu.RLock()
	states := make([]*lotState, 0, len(e.lots))
	for _, ls := range e.lots {
		states = append(states, ls)
	}
	e.mu.RUnlock()

	now := e.now()
	for _, ls := range states {
		ls.mu.Lock()
		if ls.lot.Status != domain.LotOpen {
			ls.mu.Unlock()
			continue
		}
		ls.lot.Status = domain.LotClosed
		ls.lot.UpdatedAt = now
		winner := ls.leader
		finalPrice := ls.price
		lotID := ls.lot.ID
		ls.mu.Unlock()

		e.log.Info("Lot closed", "lot_id", lotID, "winner", winner, "final_price", finalPrice)
		e.emit(domain.LotEvent{
			Type:          domain.EventLotClosed,
			LotID:         lotID,
			ParticipantID: winner,
			FinalPrice:    finalPrice,
			Timestamp:     now,
		})
	}
}

// History returns the lot's accepted bids in append order.
func (e *Engine) History(lotID string) ([]domain.Bid, error) {
	ls, err := e.lotState(lotID)
	if err != nil {
		return nil, err
	}
	bids, _, _ := ls.snapshot()
	return bids, nil
}

// CurrentPrice is the amount of the last accepted bid, or the starting price
// while the ledger is empty.
func (e *Engine) CurrentPrice(lotID string) (float64, error) {
	ls, err := e.lotState(lotID)
	if err != nil {
		return 0, err
	}
	_, price, _ := ls.snapshot()
	return price, nil
}

// CurrentLeader is the participant holding the high bid; empty with no bids.
func (e *Engine) CurrentLeader(lotID string) (string, error) {
	ls, err := e.lotState(lotID)
	if err != nil {
		return "", err
	}
	_, _, leader := ls.snapshot()
	return leader, nil
}

// Leaderboard is derived from the ledger snapshot and can never disagree
// with it.
func (e *Engine) Leaderboard(lotID string) ([]domain.Standing, error) {
	ls, err := e.lotState(lotID)
	if err != nil {
		return nil, err
	}
	bids, _, _ := ls.snapshot()

	standings := rankStandings(bids)
	for i := range standings {
		standings[i].PaddleNumber = e.paddles.PaddleNumber(standings[i].ParticipantID)
	}
	return standings, nil
}

// RankOf reports a participant's rank on a lot; rank 0 means no bids, and
// isLeading holds exactly when they placed the highest accepted bid.
func (e *Engine) RankOf(lotID, participantID string) (int, bool, error) {
	ls, err := e.lotState(lotID)
	if err != nil {
		return 0, false, err
	}
	bids, _, _ := ls.snapshot()

	rank, leading := rankOf(rankStandings(bids), participantID)
	return rank, leading, nil
}

// PaddleNumber exposes the identity assigner.
func (e *Engine) PaddleNumber(participantID string) int {
	return e.paddles.PaddleNumber(participantID)
}

// Deadline reports the shared countdown; ok is false while no lots are open.
func (e *Engine) Deadline() (time.Time, bool) {
	return e.coord.Deadline()
}

// ExtensionWindow is the configured anti-snipe window.
func (e *Engine) ExtensionWindow() time.Duration {
	return e.coord.Window()
}

// LotSnapshot is the read model handed to transports.
type LotSnapshot struct {
	Lot          domain.Lot
	CurrentPrice float64
	Leader       string
	LeaderPaddle int
	BidCount     int
	Deadline     time.Time
}

func (e *Engine) Lot(lotID string) (*LotSnapshot, error) {
	ls, err := e.lotState(lotID)
	if err != nil {
		return nil, err
	}

	ls.mu.Lock()
	snap := &LotSnapshot{
		Lot:          ls.lot,
		CurrentPrice: ls.price,
		Leader:       ls.leader,
		BidCount:     len(ls.bids),
	}
	ls.mu.Unlock()

	if snap.Leader != "" {
		snap.LeaderPaddle = e.paddles.PaddleNumber(snap.Leader)
	}
	if deadline, ok := e.coord.Deadline(); ok && snap.Lot.Status == domain.LotOpen {
		snap.Deadline = deadline
	}
	return snap, nil
}

// OpenLots lists the lots currently open for bidding.
func (e *Engine) OpenLots() []string {
	e.mu.RLock()
	states := make([]*lotState, 0, len(e.lots))
	for _, ls := range e.lots {
		states = append(states, ls)
	}
	e.mu.RUnlock()

	var open []string
	for _, ls := range states {
		if ls.status() == domain.LotOpen {
			open = append(open, ls.lot.ID)
		}
	}
	return open
}

func (e *Engine) lotState(lotID string) (*lotState, error) {
	e.mu.RLock()
	ls, ok := e.lots[lotID]
	e.mu.RUnlock()
	if !ok {
		return nil, domain.ErrLotNotFound
	}
	return ls, nil
}

// emit hands an event to the distributor without ever blocking the caller.
// The ledger append has already happened; a dropped event costs a push
// update, not a bid.
func (e *Engine) emit(event domain.LotEvent) {
	select {
	case e.events <- event:
	default:
		e.log.Warn("Event buffer full, dropping event", "type", event.Type, "lot_id", event.LotID)
	}
}

// canBid evaluates the external authorization capability. It may do I/O, so
// it runs before the lot lock is taken; the result does not depend on ledger
// state, so precedence of rejection reasons is unchanged.
func (e *Engine) canBid(ctx context.Context, participantID, lotID string) (bool, error) {
	if e.auth == nil {
		return true, nil
	}
	return e.auth.CanBid(ctx, participantID, lotID)
}
