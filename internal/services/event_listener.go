package services

import (
	"context"
	"fmt"

	"bidding-engine/internal/domain"
	"bidding-engine/internal/engine"
	"bidding-engine/pkg/logger"
)

// EventListener consumes distributed lot events and applies their side
// effects: write-behind archival of accepted bids, WebSocket fan-out, and
// persistence of engine-decided closures.
type EventListener struct {
	archive           domain.BidArchive
	broadcaster       domain.LotBroadcaster
	notifier          domain.ParticipantNotifier
	connectionManager domain.ConnectionManager
	lotManager        *LotManager
	engine            *engine.Engine
	log               logger.Logger
}

func NewEventListener(archive domain.BidArchive, connectionManager domain.ConnectionManager,
	broadcaster domain.LotBroadcaster, notifier domain.ParticipantNotifier,
	lotManager *LotManager, eng *engine.Engine, log logger.Logger) *EventListener {
	return &EventListener{
		archive:           archive,
		broadcaster:       broadcaster,
		notifier:          notifier,
		connectionManager: connectionManager,
		lotManager:        lotManager,
		engine:            eng,
		log:               log,
	}
}

func (el *EventListener) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	el.log.Info("Starting event listener")
	return subscriber.SubscribeToLotEvents(ctx, el.handleLotEvent)
}

func (el *EventListener) handleLotEvent(event *domain.LotEvent) error {
	el.log.Debug("Handling lot event", "type", event.Type, "lot_id", event.LotID)

	switch event.Type {
	case domain.EventLotOpened:
		return el.handleLotOpened(event)
	case domain.EventBidAccepted:
		return el.handleBidAccepted(event)
	case domain.EventDeadlineExtended:
		return el.handleDeadlineExtended(event)
	case domain.EventLotClosed:
		return el.handleLotClosed(event)
	}

	return fmt.Errorf("unknown event type %q", event.Type)
}

func (el *EventListener) handleLotOpened(event *domain.LotEvent) error {
	return el.broadcaster.BroadcastToLot(context.Background(), event.LotID, map[string]interface{}{
		"type":      "lot_opened",
		"lot_id":    event.LotID,
		"deadline":  event.Deadline,
		"timestamp": event.Timestamp,
	})
}

func (el *EventListener) handleBidAccepted(event *domain.LotEvent) error {
	// Archive first: the write-behind store receives accepted bids in
	// sequence order before anyone is told about them.
	bid := &domain.Bid{
		LotID:         event.LotID,
		ParticipantID: event.ParticipantID,
		Amount:        event.Amount,
		Sequence:      event.Sequence,
		At:            event.Timestamp,
	}
	if err := el.archive.SaveAcceptedBid(context.Background(), bid); err != nil {
		el.log.Error("Failed to archive accepted bid", "lot_id", event.LotID,
			"sequence", event.Sequence, "error", err)
	}

	// The displaced leader gets a direct outbid notice on top of the lot
	// broadcast, mirroring the per-participant acceptance path.
	if event.PreviousLeader != "" && event.PreviousLeader != event.ParticipantID {
		outbid := map[string]interface{}{
			"type":          "outbid",
			"lot_id":        event.LotID,
			"current_price": event.Amount,
			"timestamp":     event.Timestamp,
		}
		if err := el.notifier.NotifyParticipant(context.Background(), event.PreviousLeader, outbid); err != nil {
			el.log.Error("Failed to notify outbid participant", "lot_id", event.LotID,
				"participant_id", event.PreviousLeader, "error", err)
		}
	}

	return el.broadcaster.BroadcastToLot(context.Background(), event.LotID, map[string]interface{}{
		"type":          "bid_update",
		"lot_id":        event.LotID,
		"current_price": event.Amount,
		"leader_paddle": el.engine.PaddleNumber(event.ParticipantID),
		"sequence":      event.Sequence,
		"deadline":      event.Deadline,
		"timestamp":     event.Timestamp,
	})
}

func (el *EventListener) handleDeadlineExtended(event *domain.LotEvent) error {
	// The countdown is shared: every participant watching any open lot gets
	// the new deadline, not only the lot that was bid on.
	return el.broadcastToOpenLots(map[string]interface{}{
		"type":      "deadline_extended",
		"deadline":  event.Deadline,
		"timestamp": event.Timestamp,
	})
}

func (el *EventListener) handleLotClosed(event *domain.LotEvent) error {
	if err := el.lotManager.HandleLotClosed(context.Background(), event); err != nil {
		el.log.Error("Failed to record lot closure", "lot_id", event.LotID, "error", err)
		return err
	}

	message := map[string]interface{}{
		"type":        "lot_closed",
		"lot_id":      event.LotID,
		"final_price": event.FinalPrice,
		"timestamp":   event.Timestamp,
	}
	if event.ParticipantID != "" {
		message["winner_paddle"] = el.engine.PaddleNumber(event.ParticipantID)
	}

	if err := el.broadcaster.BroadcastToLot(context.Background(), event.LotID, message); err != nil {
		el.log.Error("Failed to broadcast lot closed event", "error", err)
	}

	if err := el.connectionManager.CloseAndUnregisterConnections(event.LotID); err != nil {
		el.log.Error("Failed to finalize connections for lot", "lot_id",
			event.LotID, "error", err)
		return err
	}
	return nil
}

func (el *EventListener) broadcastToOpenLots(message map[string]interface{}) error {
	for _, lotID := range el.engine.OpenLots() {
		if err := el.broadcaster.BroadcastToLot(context.Background(), lotID, message); err != nil {
			el.log.Error("Failed to broadcast to lot", "lot_id", lotID, "error", err)
		}
	}
	return nil
}
