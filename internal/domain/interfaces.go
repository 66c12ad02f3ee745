package domain

import (
	"context"
	"time"
)

// Repository interfaces
type LotRepository interface {
	CreateLot(ctx context.Context, lot *Lot) error
	GetLot(ctx context.Context, lotID string) (*Lot, error)
	UpdateLotStatus(ctx context.Context, lotID string, status LotStatus) error
	GetLotsByStatus(ctx context.Context, status LotStatus) ([]*Lot, error)
}

// BidArchive is the write-behind durability sink: it receives each accepted
// bid in sequence order and can replay a lot's history after a restart.
type BidArchive interface {
	SaveAcceptedBid(ctx context.Context, bid *Bid) error
	GetAcceptedBids(ctx context.Context, lotID string) ([]*Bid, error)
}

type SchedulerRepository interface {
	CreateJob(ctx context.Context, job *ScheduledJob) error
	GetPendingJobs(ctx context.Context, before time.Time) ([]*ScheduledJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus) error
	CancelJobsForLot(ctx context.Context, lotID string) error
}

// Cache interfaces
type LotStateCache interface {
	SetLotStatus(ctx context.Context, lotID string, status LotStatus) error
	GetLotStatus(ctx context.Context, lotID string) (LotStatus, error)
}

// Authorizer is the external capability deciding whether a participant may
// bid on a lot. The engine never implements authorization itself.
type Authorizer interface {
	CanBid(ctx context.Context, participantID, lotID string) (bool, error)
}

// AuthorizerFunc adapts a plain function to the Authorizer interface.
type AuthorizerFunc func(ctx context.Context, participantID, lotID string) (bool, error)

func (f AuthorizerFunc) CanBid(ctx context.Context, participantID, lotID string) (bool, error) {
	return f(ctx, participantID, lotID)
}

// Event interfaces
type EventPublisher interface {
	PublishLotEvent(ctx context.Context, event *LotEvent) error
}

type EventSubscriber interface {
	SubscribeToLotEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *LotEvent) error

// Notification interfaces
type ParticipantNotifier interface {
	NotifyParticipant(ctx context.Context, participantID string, message interface{}) error
}

type LotBroadcaster interface {
	BroadcastToLot(ctx context.Context, lotID string, message interface{}) error
}

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// Scheduler interface
type LotScheduler interface {
	ScheduleLotOpen(ctx context.Context, lotID string, startTime time.Time) error
	CancelSchedule(ctx context.Context, lotID string) error
	Start(ctx context.Context) error
	Stop() error
}

// WebSocket interfaces
type WebSocketConnection interface {
	Send(message interface{}) error
	Close() error
	ParticipantID() string
	LotID() string
}

type ConnectionManager interface {
	RegisterConnection(participantID, lotID string, conn WebSocketConnection) error
	UnregisterConnection(participantID, lotID string) error
	GetConnectionsForLot(lotID string) []WebSocketConnection
	GetConnectionsForParticipant(participantID string) []WebSocketConnection
	BroadcastToLot(lotID string, message interface{}) error
	NotifyParticipant(participantID string, message interface{}) error
	CloseAndUnregisterConnections(lotID string) error
}
