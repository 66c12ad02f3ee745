package handlers

import (
	"net/http"

	"bidding-engine/internal/domain"
	"bidding-engine/internal/engine"
	"bidding-engine/internal/infrastructure/websocket"
	"bidding-engine/pkg/logger"
)

type WebSocketHandlers struct {
	wsHandler *websocket.WebSocketHandler
}

func NewWebSocketHandlers(eng *engine.Engine, stateCache domain.LotStateCache,
	connManager *websocket.ConnectionManager, log logger.Logger) *WebSocketHandlers {
	wsHandler := websocket.NewWebSocketHandler(eng, stateCache, connManager, log)
	return &WebSocketHandlers{
		wsHandler: wsHandler,
	}
}

func (h *WebSocketHandlers) HandleConnection(w http.ResponseWriter, r *http.Request) {
	h.wsHandler.HandleConnection(w, r)
}
