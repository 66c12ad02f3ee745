package domain

import (
	"time"
)

// Lot is one auctionable unit. Title, description and other catalog metadata
// live outside the engine; the engine only arbitrates bids against it.
type Lot struct {
	ID             string
	StartingPrice  float64
	MinIncrement   float64
	Quantity       int
	Currency       string
	ScheduledStart time.Time
	ScheduledEnd   time.Time
	Status         LotStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type LotStatus int

const (
	LotScheduled LotStatus = iota
	LotOpen
	LotClosed
)

func (s LotStatus) String() string {
	switch s {
	case LotScheduled:
		return "scheduled"
	case LotOpen:
		return "open"
	case LotClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Bid is an immutable ledger record. Sequence and At are server-assigned;
// append order is the sole ordering authority.
type Bid struct {
	LotID         string    `json:"lot_id"`
	ParticipantID string    `json:"participant_id"`
	Amount        float64   `json:"amount"`
	Sequence      uint64    `json:"sequence"`
	At            time.Time `json:"at"`
}

// Acceptance is the synchronous result of a successful bid submission.
type Acceptance struct {
	LotID         string    `json:"lot_id"`
	ParticipantID string    `json:"participant_id"`
	NewPrice      float64   `json:"new_price"`
	Sequence      uint64    `json:"sequence"`
	Deadline      time.Time `json:"deadline"`
}

// Standing is one leaderboard row: a participant's best accepted amount.
type Standing struct {
	ParticipantID string  `json:"participant_id"`
	PaddleNumber  int     `json:"paddle_number"`
	Amount        float64 `json:"amount"`
	Sequence      uint64  `json:"sequence"`
}

type LotEvent struct {
	Type          LotEventType `json:"type"`
	LotID         string       `json:"lot_id"`
	ParticipantID string       `json:"participant_id,omitempty"`
	Amount        float64      `json:"amount,omitempty"`
	Sequence      uint64       `json:"sequence,omitempty"`
	Deadline      time.Time    `json:"deadline,omitempty"`
	FinalPrice    float64      `json:"final_price,omitempty"`
	// PreviousLeader is the participant displaced by an accepted bid, so the
	// distributor can tell them they were outbid.
	PreviousLeader string    `json:"previous_leader,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

type LotEventType string

const (
	EventLotOpened        LotEventType = "lot_opened"
	EventBidAccepted      LotEventType = "bid_accepted"
	EventDeadlineExtended LotEventType = "deadline_extended"
	EventLotClosed        LotEventType = "lot_closed"
)

// IncrementRules are the tiered default minimum increments keyed by starting
// price band, used when a lot registers without an explicit increment.
type IncrementRules struct {
	Rules map[string]float64 `json:"rules"`
}

type ScheduledJob struct {
	ID        string
	LotID     string
	JobType   JobType
	RunAt     time.Time
	Status    JobStatus
	CreatedAt time.Time
}

type JobType string

const (
	JobOpenLot JobType = "open_lot"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobExecuted  JobStatus = "executed"
	JobCancelled JobStatus = "cancelled"
)
