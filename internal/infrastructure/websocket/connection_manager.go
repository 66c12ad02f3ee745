package websocket

import (
	"sync"

	"bidding-engine/internal/domain"
	"bidding-engine/pkg/logger"
)

type ConnectionManager struct {
	connections      map[string]map[string]domain.WebSocketConnection // lotID -> participantID -> connection
	participantConns map[string][]domain.WebSocketConnection          // participantID -> connections
	mutex            sync.RWMutex
	log              logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		connections:      make(map[string]map[string]domain.WebSocketConnection),
		participantConns: make(map[string][]domain.WebSocketConnection),
		log:              log,
	}
}

func (cm *ConnectionManager) RegisterConnection(participantID, lotID string, conn domain.WebSocketConnection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.connections[lotID] == nil {
		cm.connections[lotID] = make(map[string]domain.WebSocketConnection)
	}
	cm.connections[lotID][participantID] = conn

	cm.participantConns[participantID] = append(cm.participantConns[participantID], conn)

	cm.log.Info("Connection registered", "participant_id", participantID, "lot_id", lotID)
	return nil
}

func (cm *ConnectionManager) UnregisterConnection(participantID, lotID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	cm.removeLocked(participantID, lotID)

	cm.log.Info("Connection unregistered", "participant_id", participantID, "lot_id", lotID)
	return nil
}

func (cm *ConnectionManager) removeLocked(participantID, lotID string) {
	if lotConns, exists := cm.connections[lotID]; exists {
		delete(lotConns, participantID)
		if len(lotConns) == 0 {
			delete(cm.connections, lotID)
		}
	}

	if conns, exists := cm.participantConns[participantID]; exists {
		var remaining []domain.WebSocketConnection
		for _, existing := range conns {
			if existing.LotID() != lotID {
				remaining = append(remaining, existing)
			}
		}

		if len(remaining) == 0 {
			delete(cm.participantConns, participantID)
		} else {
			cm.participantConns[participantID] = remaining
		}
	}
}

func (cm *ConnectionManager) CloseAndUnregisterConnections(lotID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if lotConns, exists := cm.connections[lotID]; exists {
		for participantID, conn := range lotConns {
			if err := conn.Close(); err != nil {
				cm.log.Error("Failed to close connection", "participant_id", participantID,
					"lot_id", lotID, "error", err)
			}
			cm.removeLocked(participantID, lotID)
		}
		delete(cm.connections, lotID)
	}

	cm.log.Info("Connections closed for lot", "lot_id", lotID)
	return nil
}

func (cm *ConnectionManager) GetConnectionsForLot(lotID string) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	var connections []domain.WebSocketConnection
	for _, conn := range cm.connections[lotID] {
		connections = append(connections, conn)
	}

	return connections
}

func (cm *ConnectionManager) GetConnectionsForParticipant(participantID string) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	return cm.participantConns[participantID]
}

func (cm *ConnectionManager) BroadcastToLot(lotID string, message interface{}) error {
	connections := cm.GetConnectionsForLot(lotID)

	for _, conn := range connections {
		if err := conn.Send(message); err != nil {
			cm.log.Error("Failed to send message", "participant_id", conn.ParticipantID(),
				"lot_id", lotID, "error", err)
			// Continue to other connections
		}
	}

	return nil
}

func (cm *ConnectionManager) NotifyParticipant(participantID string, message interface{}) error {
	connections := cm.GetConnectionsForParticipant(participantID)

	for _, conn := range connections {
		if err := conn.Send(message); err != nil {
			cm.log.Error("Failed to send message", "participant_id", participantID, "error", err)
		}
	}

	return nil
}
