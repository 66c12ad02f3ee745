package websocket

import (
	"context"

	"bidding-engine/internal/domain"
)

type WebSocketNotifier struct {
	connManager domain.ConnectionManager
}

func NewWebSocketNotifier(connManager domain.ConnectionManager) *WebSocketNotifier {
	return &WebSocketNotifier{connManager: connManager}
}

func (n *WebSocketNotifier) NotifyParticipant(ctx context.Context, participantID string, message interface{}) error {
	return n.connManager.NotifyParticipant(participantID, message)
}

func (n *WebSocketNotifier) BroadcastToLot(ctx context.Context, lotID string, message interface{}) error {
	return n.connManager.BroadcastToLot(lotID, message)
}
