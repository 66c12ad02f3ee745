package handlers

import (
	"errors"
	"net/http"
	"time"

	"bidding-engine/internal/domain"
	"bidding-engine/internal/engine"
	"bidding-engine/internal/services"
	"bidding-engine/pkg/logger"

	"github.com/labstack/echo/v4"
)

type LotHandler struct {
	lotManager *services.LotManager
	engine     *engine.Engine
	log        logger.Logger
}

func NewLotHandler(lotManager *services.LotManager, eng *engine.Engine, log logger.Logger) *LotHandler {
	return &LotHandler{
		lotManager: lotManager,
		engine:     eng,
		log:        log,
	}
}

type RegisterLotRequest struct {
	StartingPrice  float64   `json:"starting_price"`
	MinIncrement   float64   `json:"min_increment"`
	Quantity       int       `json:"quantity"`
	Currency       string    `json:"currency"`
	ScheduledStart time.Time `json:"scheduled_start"`
	ScheduledEnd   time.Time `json:"scheduled_end"`
}

type RegisterLotResponse struct {
	LotID          string    `json:"lot_id"`
	StartingPrice  float64   `json:"starting_price"`
	MinIncrement   float64   `json:"min_increment"`
	ScheduledStart time.Time `json:"scheduled_start"`
	ScheduledEnd   time.Time `json:"scheduled_end"`
	Status         string    `json:"status"`
}

func (h *LotHandler) RegisterLot(c echo.Context) error {
	var req RegisterLotRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error("Failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if req.StartingPrice <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Starting price must be positive"})
	}

	if req.ScheduledEnd.Before(req.ScheduledStart) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Scheduled end must be after scheduled start"})
	}

	lot, err := h.lotManager.RegisterLot(c.Request().Context(), services.RegisterLotParams{
		StartingPrice:  req.StartingPrice,
		MinIncrement:   req.MinIncrement,
		Quantity:       req.Quantity,
		Currency:       req.Currency,
		ScheduledStart: req.ScheduledStart,
		ScheduledEnd:   req.ScheduledEnd,
	})
	if err != nil {
		h.log.Error("Failed to register lot", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to register lot"})
	}

	return c.JSON(http.StatusCreated, RegisterLotResponse{
		LotID:          lot.ID,
		StartingPrice:  lot.StartingPrice,
		MinIncrement:   lot.MinIncrement,
		ScheduledStart: lot.ScheduledStart,
		ScheduledEnd:   lot.ScheduledEnd,
		Status:         lot.Status.String(),
	})
}

type LotStateResponse struct {
	LotID         string     `json:"lot_id"`
	Status        string     `json:"status"`
	StartingPrice float64    `json:"starting_price"`
	MinIncrement  float64    `json:"min_increment"`
	Quantity      int        `json:"quantity"`
	Currency      string     `json:"currency"`
	CurrentPrice  float64    `json:"current_price"`
	LeaderPaddle  int        `json:"leader_paddle,omitempty"`
	BidCount      int        `json:"bid_count"`
	Deadline      *time.Time `json:"deadline,omitempty"`
}

func (h *LotHandler) GetLot(c echo.Context) error {
	lotID := c.Param("id")

	snap, err := h.engine.Lot(lotID)
	if err != nil {
		if errors.Is(err, domain.ErrLotNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Lot not found"})
		}
		h.log.Error("Failed to load lot", "lot_id", lotID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load lot"})
	}

	resp := LotStateResponse{
		LotID:         snap.Lot.ID,
		Status:        snap.Lot.Status.String(),
		StartingPrice: snap.Lot.StartingPrice,
		MinIncrement:  snap.Lot.MinIncrement,
		Quantity:      snap.Lot.Quantity,
		Currency:      snap.Lot.Currency,
		CurrentPrice:  snap.CurrentPrice,
		LeaderPaddle:  snap.LeaderPaddle,
		BidCount:      snap.BidCount,
	}
	if !snap.Deadline.IsZero() {
		resp.Deadline = &snap.Deadline
	}

	return c.JSON(http.StatusOK, resp)
}

type SubmitBidRequest struct {
	ParticipantID string  `json:"participant_id"`
	Amount        float64 `json:"amount"`
}

func (h *LotHandler) SubmitBid(c echo.Context) error {
	lotID := c.Param("id")

	var req SubmitBidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if req.ParticipantID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "participant_id required"})
	}

	acceptance, err := h.engine.Submit(c.Request().Context(), lotID, req.ParticipantID, req.Amount)
	if err != nil {
		var rejection *domain.Rejection
		if errors.As(err, &rejection) {
			return c.JSON(http.StatusConflict, rejection)
		}

		h.log.Error("Failed to submit bid", "lot_id", lotID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to submit bid"})
	}

	return c.JSON(http.StatusOK, acceptance)
}

func (h *LotHandler) GetHistory(c echo.Context) error {
	lotID := c.Param("id")

	history, err := h.engine.History(lotID)
	if err != nil {
		if errors.Is(err, domain.ErrLotNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Lot not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load history"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"lot_id": lotID,
		"bids":   history,
	})
}

func (h *LotHandler) GetLeaderboard(c echo.Context) error {
	lotID := c.Param("id")

	standings, err := h.engine.Leaderboard(lotID)
	if err != nil {
		if errors.Is(err, domain.ErrLotNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Lot not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load leaderboard"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"lot_id":    lotID,
		"standings": standings,
	})
}

func (h *LotHandler) GetRank(c echo.Context) error {
	lotID := c.Param("id")
	participantID := c.Param("participantID")

	rank, leading, err := h.engine.RankOf(lotID, participantID)
	if err != nil {
		if errors.Is(err, domain.ErrLotNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Lot not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to compute rank"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"lot_id":         lotID,
		"participant_id": participantID,
		"paddle_number":  h.engine.PaddleNumber(participantID),
		"rank":           rank,
		"is_leading":     leading,
	})
}

func (h *LotHandler) GetDeadline(c echo.Context) error {
	windowSeconds := int(h.engine.ExtensionWindow().Seconds())

	deadline, ok := h.engine.Deadline()
	if !ok {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"active":                   false,
			"extension_window_seconds": windowSeconds,
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"active":                   true,
		"deadline":                 deadline,
		"extension_window_seconds": windowSeconds,
	})
}
