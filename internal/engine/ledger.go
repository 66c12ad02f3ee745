package engine

import (
	"sync"
	"time"

	"bidding-engine/internal/domain"
)

// lotState is the per-lot unit of serialization: the lot record, its
// append-only bid ledger and the derived price/leader fields all live under
// one mutex. Bids are never mutated after append, so a copy of the slice
// taken under the lock is an immutable snapshot.
type lotState struct {
	mu     sync.Mutex
	lot    domain.Lot
	bids   []domain.Bid
	price  float64
	leader string
}

func newLotState(lot domain.Lot) *lotState {
	return &lotState{
		lot:   lot,
		price: lot.StartingPrice,
	}
}

// append records an accepted bid. Caller must hold ls.mu and have already
// validated the amount against the current price and increment.
func (ls *lotState) append(participantID string, amount float64, at time.Time) domain.Bid {
	bid := domain.Bid{
		LotID:         ls.lot.ID,
		ParticipantID: participantID,
		Amount:        amount,
		Sequence:      uint64(len(ls.bids)) + 1,
		At:            at,
	}
	ls.bids = append(ls.bids, bid)
	ls.price = amount
	ls.leader = participantID
	return bid
}

// snapshot returns a consistent view of the ledger: the bid history together
// with the price and leader derived from its last element.
func (ls *lotState) snapshot() ([]domain.Bid, float64, string) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	bids := make([]domain.Bid, len(ls.bids))
	copy(bids, ls.bids)
	return bids, ls.price, ls.leader
}

func (ls *lotState) status() domain.LotStatus {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.lot.Status
}

// restore seeds the ledger from archived bids, e.g. when replaying persisted
// accepted-bid events after a restart. Caller must hold ls.mu.
func (ls *lotState) restore(bids []domain.Bid) {
	ls.bids = append(ls.bids[:0], bids...)
	if n := len(ls.bids); n > 0 {
		ls.price = ls.bids[n-1].Amount
		ls.leader = ls.bids[n-1].ParticipantID
	} else {
		ls.price = ls.lot.StartingPrice
		ls.leader = ""
	}
}
