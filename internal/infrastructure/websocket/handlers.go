package websocket

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"bidding-engine/internal/domain"
	"bidding-engine/internal/engine"
	"bidding-engine/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

type WebSocketHandler struct {
	engine      *engine.Engine
	stateCache  domain.LotStateCache
	connManager domain.ConnectionManager
	log         logger.Logger
}

func NewWebSocketHandler(eng *engine.Engine, stateCache domain.LotStateCache,
	connManager domain.ConnectionManager, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		engine:      eng,
		stateCache:  stateCache,
		connManager: connManager,
		log:         log,
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	lotID := vars["lotID"]

	status, err := h.stateCache.GetLotStatus(r.Context(), lotID)
	if err != nil {
		h.log.Error("Failed to look up lot status", "error", err, "lot_id", lotID)
		http.Error(w, "lot lookup failed", http.StatusInternalServerError)
		return
	}

	if status == domain.LotClosed {
		h.log.Info("Rejected connection - lot is closed", "lot_id", lotID)
		http.Error(w, "lot is closed", http.StatusForbidden)
		return
	}

	participantID := r.URL.Query().Get("participant_id")
	if participantID == "" {
		http.Error(w, "participant_id required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	wsConn := NewWebSocketConnection(conn, participantID, lotID, h.log)

	if err := h.connManager.RegisterConnection(participantID, lotID, wsConn); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		conn.Close()
		return
	}

	// Joining participants get their paddle number and the current lot state
	// right away instead of waiting for the next broadcast.
	h.sendJoinedState(wsConn, participantID, lotID)

	go h.handleMessages(wsConn, participantID, lotID)
}

func (h *WebSocketHandler) sendJoinedState(conn *WebSocketConnection, participantID, lotID string) {
	msg := map[string]interface{}{
		"type":          "joined",
		"lot_id":        lotID,
		"paddle_number": h.engine.PaddleNumber(participantID),
	}

	if snap, err := h.engine.Lot(lotID); err == nil {
		msg["status"] = snap.Lot.Status.String()
		msg["current_price"] = snap.CurrentPrice
		msg["leader_paddle"] = snap.LeaderPaddle
		if !snap.Deadline.IsZero() {
			msg["deadline"] = snap.Deadline
		}
	}

	if err := conn.Send(msg); err != nil {
		h.log.Error("Failed to send joined state", "participant_id", participantID, "error", err)
	}
}

func (h *WebSocketHandler) handleMessages(conn *WebSocketConnection, participantID, lotID string) {
	defer func() {
		h.connManager.UnregisterConnection(participantID, lotID)
		conn.Close()
	}()

	for {
		var msg map[string]interface{}
		if err := conn.conn.ReadJSON(&msg); err != nil {
			h.log.Debug("Connection read ended", "participant_id", participantID, "error", err)
			break
		}

		msgType, ok := msg["type"].(string)
		if !ok {
			conn.Send(map[string]string{"type": "error", "message": "missing message type"})
			continue
		}

		switch msgType {
		case "place_bid":
			h.handleBidMessage(conn, participantID, lotID, msg)
		case "ping":
			conn.Send(map[string]string{"type": "pong"})
		}
	}
}

func (h *WebSocketHandler) handleBidMessage(conn *WebSocketConnection, participantID, lotID string, msg map[string]interface{}) {
	amount, err := parseAmount(msg["amount"])
	if err != nil {
		conn.Send(map[string]string{"type": "error", "message": "invalid amount"})
		return
	}

	acceptance, err := h.engine.Submit(context.Background(), lotID, participantID, amount)
	if err != nil {
		var rejection *domain.Rejection
		if errors.As(err, &rejection) {
			// Rejections go back to the submitting caller only, never broadcast.
			conn.Send(map[string]interface{}{
				"type":          "bid_rejected",
				"reason":        rejection.Reason,
				"current_price": rejection.CurrentPrice,
				"minimum_bid":   rejection.MinimumBid,
			})
			return
		}

		h.log.Error("Failed to place bid", "error", err)
		conn.Send(map[string]string{"type": "error", "message": "failed to place bid"})
		return
	}

	conn.Send(map[string]interface{}{
		"type":      "bid_accepted",
		"lot_id":    acceptance.LotID,
		"new_price": acceptance.NewPrice,
		"sequence":  acceptance.Sequence,
		"deadline":  acceptance.Deadline,
	})
}

func parseAmount(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, errors.New("unsupported amount type")
	}
}

type WebSocketConnection struct {
	conn          *websocket.Conn
	writeMu       sync.Mutex
	participantID string
	lotID         string
	log           logger.Logger
}

func NewWebSocketConnection(conn *websocket.Conn, participantID, lotID string, log logger.Logger) *WebSocketConnection {
	return &WebSocketConnection{
		conn:          conn,
		participantID: participantID,
		lotID:         lotID,
		log:           log,
	}
}

// Send serializes writers: the connection's own message loop and the
// broadcast fan-out both write here, and gorilla permits one writer at a time.
func (wsc *WebSocketConnection) Send(message interface{}) error {
	wsc.writeMu.Lock()
	defer wsc.writeMu.Unlock()
	return wsc.conn.WriteJSON(message)
}

func (wsc *WebSocketConnection) Close() error {
	return wsc.conn.Close()
}

func (wsc *WebSocketConnection) ParticipantID() string {
	return wsc.participantID
}

func (wsc *WebSocketConnection) LotID() string {
	return wsc.lotID
}
