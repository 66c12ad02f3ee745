package domain

import "fmt"

type RejectReason string

const (
	ReasonLotNotOpen            RejectReason = "lot_not_open"
	ReasonBidTooLow             RejectReason = "bid_too_low"
	ReasonBelowMinimumIncrement RejectReason = "below_minimum_increment"
	ReasonUnauthorized          RejectReason = "unauthorized"
)

// Rejection is the outcome of a bid that did not pass validation. It is a
// normal error value: the lot and its ledger are untouched and the attached
// CurrentPrice/MinimumBid let the caller retry with a higher amount.
type Rejection struct {
	LotID         string       `json:"lot_id"`
	ParticipantID string       `json:"participant_id"`
	Reason        RejectReason `json:"reason"`
	CurrentPrice  float64      `json:"current_price"`
	MinimumBid    float64      `json:"minimum_bid"`
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("bid rejected for lot %s: %s (current price %.2f, minimum %.2f)",
		r.LotID, r.Reason, r.CurrentPrice, r.MinimumBid)
}

var ErrLotNotFound = fmt.Errorf("lot not found")
var ErrLotClosed = fmt.Errorf("lot already closed")
var ErrLotAlreadyRegistered = fmt.Errorf("lot already registered")

// ErrNotLeader reports that this instance does not hold the lifecycle lease.
// Callers must leave the transition pending so the leader picks it up.
var ErrNotLeader = fmt.Errorf("instance is not the lifecycle leader")
