package services

import (
	"context"
	"errors"
	"time"

	"bidding-engine/internal/domain"
	"bidding-engine/internal/engine"
	"bidding-engine/pkg/logger"
	"bidding-engine/pkg/utils"
)

// LotManager sits between the catalog boundary and the engine: it persists
// lot registrations, feeds them to the engine, and drives lifecycle
// transitions. Transitions are leader-gated so a single instance owns them
// when several engines share one Redis/MySQL pair.
type LotManager struct {
	lotRepo        domain.LotRepository
	archive        domain.BidArchive
	stateCache     domain.LotStateCache
	scheduler      domain.LotScheduler
	leaderElection domain.LeaderElection
	incrementRules *IncrementRuleDao
	engine         *engine.Engine
	instanceID     string
	log            logger.Logger
}

func NewLotManager(
	lotRepo domain.LotRepository,
	archive domain.BidArchive,
	stateCache domain.LotStateCache,
	scheduler domain.LotScheduler,
	leaderElection domain.LeaderElection,
	incrementRules *IncrementRuleDao,
	eng *engine.Engine,
	instanceID string,
	log logger.Logger,
) *LotManager {
	return &LotManager{
		lotRepo:        lotRepo,
		archive:        archive,
		stateCache:     stateCache,
		scheduler:      scheduler,
		leaderElection: leaderElection,
		incrementRules: incrementRules,
		engine:         eng,
		instanceID:     instanceID,
		log:            log,
	}
}

// SetScheduler breaks the construction cycle between manager and scheduler.
func (m *LotManager) SetScheduler(scheduler domain.LotScheduler) {
	m.scheduler = scheduler
}

type RegisterLotParams struct {
	StartingPrice  float64
	MinIncrement   float64
	Quantity       int
	Currency       string
	ScheduledStart time.Time
	ScheduledEnd   time.Time
}

// RegisterLot accepts a lot from the catalog collaborator. A registration
// without an explicit increment falls back to the tiered default rules.
// Lots whose scheduled start has already passed open immediately.
func (m *LotManager) RegisterLot(ctx context.Context, params RegisterLotParams) (*domain.Lot, error) {
	minIncrement := params.MinIncrement
	if minIncrement <= 0 {
		minIncrement = m.incrementRules.GetIncrementRule(params.StartingPrice)
	}

	quantity := params.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	now := time.Now()
	lot := &domain.Lot{
		ID:             utils.GenerateID("lot"),
		StartingPrice:  params.StartingPrice,
		MinIncrement:   minIncrement,
		Quantity:       quantity,
		Currency:       params.Currency,
		ScheduledStart: params.ScheduledStart,
		ScheduledEnd:   params.ScheduledEnd,
		Status:         domain.LotScheduled,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := m.lotRepo.CreateLot(ctx, lot); err != nil {
		return nil, err
	}

	if err := m.engine.RegisterLot(*lot); err != nil {
		return nil, err
	}

	if err := m.stateCache.SetLotStatus(ctx, lot.ID, domain.LotScheduled); err != nil {
		m.log.Error("Failed to seed lot state cache", "lot_id", lot.ID, "error", err)
	}

	if !lot.ScheduledStart.After(now) {
		err := m.OpenLot(ctx, lot.ID)
		if err == nil {
			lot.Status = domain.LotOpen
			return lot, nil
		}
		if !errors.Is(err, domain.ErrNotLeader) {
			return nil, err
		}
		// Not the lifecycle leader: queue a due-now job so the leader opens
		// the lot on its next scheduler tick. The lot stays scheduled until
		// that happens.
		if err := m.scheduler.ScheduleLotOpen(ctx, lot.ID, now); err != nil {
			return nil, err
		}
		m.log.Info("Lot queued for leader to open", "lot_id", lot.ID)
		return lot, nil
	}

	if err := m.scheduler.ScheduleLotOpen(ctx, lot.ID, lot.ScheduledStart); err != nil {
		return nil, err
	}

	m.log.Info("Lot registered", "lot_id", lot.ID, "scheduled_start", lot.ScheduledStart)
	return lot, nil
}

// OpenLot transitions a lot to open and joins it to the shared countdown.
// Only the lifecycle leader may open; everyone else gets ErrNotLeader so the
// transition stays pending instead of silently passing for done.
func (m *LotManager) OpenLot(ctx context.Context, lotID string) error {
	isLeader, err := m.leaderElection.IsLeader(ctx, m.instanceID)
	if err != nil {
		return err
	}
	if !isLeader {
		return domain.ErrNotLeader
	}

	deadline, err := m.engine.OpenLot(lotID)
	if errors.Is(err, domain.ErrLotNotFound) {
		// A lot scheduled before a restart is not in the engine yet; reload
		// it from the catalog and register before opening.
		lot, repoErr := m.lotRepo.GetLot(ctx, lotID)
		if repoErr != nil {
			return repoErr
		}
		if regErr := m.engine.RegisterLot(*lot); regErr != nil && !errors.Is(regErr, domain.ErrLotAlreadyRegistered) {
			return regErr
		}
		deadline, err = m.engine.OpenLot(lotID)
	}
	if err != nil {
		return err
	}

	if err := m.lotRepo.UpdateLotStatus(ctx, lotID, domain.LotOpen); err != nil {
		return err
	}
	if err := m.stateCache.SetLotStatus(ctx, lotID, domain.LotOpen); err != nil {
		m.log.Error("Failed to cache lot status", "lot_id", lotID, "error", err)
	}

	m.log.Info("Lot opened", "lot_id", lotID, "deadline", deadline)
	return nil
}

// HandleLotClosed persists a closure the engine decided when the shared
// deadline elapsed. The ledger is already final; this only records it.
func (m *LotManager) HandleLotClosed(ctx context.Context, event *domain.LotEvent) error {
	isLeader, err := m.leaderElection.IsLeader(ctx, m.instanceID)
	if err != nil {
		return err
	}
	if !isLeader {
		// The leader persists; non-leaders still fan the closure out.
		return nil
	}

	status, err := m.stateCache.GetLotStatus(ctx, event.LotID)
	if err == nil && status == domain.LotClosed {
		return nil
	}

	if err := m.lotRepo.UpdateLotStatus(ctx, event.LotID, domain.LotClosed); err != nil {
		return err
	}
	if err := m.stateCache.SetLotStatus(ctx, event.LotID, domain.LotClosed); err != nil {
		m.log.Error("Failed to cache lot status", "lot_id", event.LotID, "error", err)
	}

	if err := m.scheduler.CancelSchedule(ctx, event.LotID); err != nil {
		m.log.Error("Failed to cancel pending schedule", "lot_id", event.LotID, "error", err)
	}

	m.log.Info("Lot closure recorded", "lot_id", event.LotID,
		"winner", event.ParticipantID, "final_price", event.FinalPrice)
	return nil
}

// RestoreOpenLots replays the archive into the engine on startup. The ledger
// is append-only, so replaying persisted accepted bids in sequence order
// reconstructs the exact pre-restart state.
func (m *LotManager) RestoreOpenLots(ctx context.Context) error {
	lots, err := m.lotRepo.GetLotsByStatus(ctx, domain.LotOpen)
	if err != nil {
		return err
	}

	for _, lot := range lots {
		archived, err := m.archive.GetAcceptedBids(ctx, lot.ID)
		if err != nil {
			return err
		}

		bids := make([]domain.Bid, len(archived))
		for i, bid := range archived {
			bids[i] = *bid
		}

		if err := m.engine.RestoreLot(*lot, bids); err != nil {
			return err
		}
		if _, err := m.engine.OpenLot(lot.ID); err != nil {
			return err
		}

		m.log.Info("Lot restored", "lot_id", lot.ID, "replayed_bids", len(bids))
	}

	return nil
}
