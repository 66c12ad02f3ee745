package engine

import (
	"context"
	"fmt"

	"bidding-engine/internal/domain"
)

// Submit is the single write path for bids. Validation and the ledger append
// happen as one serialized unit under the lot's lock, so concurrent
// submissions for the same lot resolve in a total order and exactly one of
// two overlapping bids can become the new leader. The outcome is resolved
// exactly once and stands whether or not the caller is still listening.
//
// Rejections come back as *domain.Rejection; any other error is an
// infrastructure failure (e.g. the authorization capability).
func (e *Engine) Submit(ctx context.Context, lotID, participantID string, amount float64) (*domain.Acceptance, error) {
	ls, err := e.lotState(lotID)
	if err != nil {
		return nil, &domain.Rejection{
			LotID:         lotID,
			ParticipantID: participantID,
			Reason:        domain.ReasonLotNotOpen,
		}
	}

	authorized, err := e.canBid(ctx, participantID, lotID)
	if err != nil {
		return nil, fmt.Errorf("authorization check: %w", err)
	}

	ls.mu.Lock()

	if ls.lot.Status != domain.LotOpen {
		rejection := &domain.Rejection{
			LotID:         lotID,
			ParticipantID: participantID,
			Reason:        domain.ReasonLotNotOpen,
			CurrentPrice:  ls.price,
		}
		ls.mu.Unlock()
		return nil, rejection
	}

	minimum := ls.price + ls.lot.MinIncrement

	if amount <= ls.price {
		rejection := &domain.Rejection{
			LotID:         lotID,
			ParticipantID: participantID,
			Reason:        domain.ReasonBidTooLow,
			CurrentPrice:  ls.price,
			MinimumBid:    minimum,
		}
		ls.mu.Unlock()
		return nil, rejection
	}

	if amount < minimum {
		rejection := &domain.Rejection{
			LotID:         lotID,
			ParticipantID: participantID,
			Reason:        domain.ReasonBelowMinimumIncrement,
			CurrentPrice:  ls.price,
			MinimumBid:    minimum,
		}
		ls.mu.Unlock()
		return nil, rejection
	}

	if !authorized {
		rejection := &domain.Rejection{
			LotID:         lotID,
			ParticipantID: participantID,
			Reason:        domain.ReasonUnauthorized,
			CurrentPrice:  ls.price,
			MinimumBid:    minimum,
		}
		ls.mu.Unlock()
		return nil, rejection
	}

	previousLeader := ls.leader
	bid := ls.append(participantID, amount, e.now())

	// Lot lock then coordinator lock, always in that order.
	deadline, extended := e.coord.NoteBid()
	ls.mu.Unlock()

	e.log.Info("Bid accepted",
		"lot_id", lotID, "participant_id", participantID,
		"amount", amount, "sequence", bid.Sequence)

	e.emit(domain.LotEvent{
		Type:           domain.EventBidAccepted,
		LotID:          lotID,
		ParticipantID:  participantID,
		Amount:         amount,
		Sequence:       bid.Sequence,
		Deadline:       deadline,
		PreviousLeader: previousLeader,
		Timestamp:      bid.At,
	})
	if extended {
		e.emit(domain.LotEvent{
			Type:      domain.EventDeadlineExtended,
			LotID:     lotID,
			Deadline:  deadline,
			Timestamp: bid.At,
		})
	}

	return &domain.Acceptance{
		LotID:         lotID,
		ParticipantID: participantID,
		NewPrice:      amount,
		Sequence:      bid.Sequence,
		Deadline:      deadline,
	}, nil
}
