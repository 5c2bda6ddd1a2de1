package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wfunc/gamecenter/booking"
	"github.com/wfunc/gamecenter/center"
	"github.com/wfunc/gamecenter/models"
	"github.com/wfunc/gamecenter/pricing"
	"github.com/wfunc/gamecenter/services"
	"github.com/wfunc/gamecenter/session"
)

const sessionKey = "session"

func (s *GameCenterServer) registerRoutes() {
	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics))
	}

	v1 := s.engine.Group("/api/v1")
	v1.POST("/quotes", s.handleQuote)
	v1.GET("/centers/:centerId/seats", s.handleSeats)
	v1.POST("/sessions", s.handleLogin)
	v1.DELETE("/sessions/:sessionId", s.handleLogout)

	sess := v1.Group("/sessions/:sessionId", s.requireSession())
	sess.POST("/centers/:centerId", s.handleBegin)
	sess.POST("/seats/:seatId", s.handleSelectSeat)
	sess.DELETE("/seats/:seatId", s.handleDeselectSeat)
	sess.GET("/booking", s.handleGetBooking)
	sess.PUT("/booking", s.handleUpdateBooking)
	sess.DELETE("/booking", s.handleLeave)
	sess.POST("/checkout", s.handleCheckout)
	sess.GET("/history", s.handleHistory)
	sess.GET("/stream", s.handleStream)
}

func abortError(c *gin.Context, status int, code string, err error) {
	c.AbortWithStatusJSON(status, gin.H{"code": code, "error": err.Error()})
}

// requireSession resolves :sessionId to a live session.
func (s *GameCenterServer) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := s.sessionManager.Get(c.Param("sessionId"))
		if !ok {
			abortError(c, http.StatusUnauthorized, "session_not_found", session.ErrSessionNotFound)
			return
		}
		c.Set(sessionKey, sess)
		c.Next()
	}
}

func currentSession(c *gin.Context) *session.Session {
	return c.MustGet(sessionKey).(*session.Session)
}

func activeFlow(c *gin.Context) (*booking.Flow, bool) {
	flow := currentSession(c).Flow()
	if flow == nil {
		abortError(c, http.StatusNotFound, "no_active_booking", services.ErrNoActiveFlow)
		return nil, false
	}
	return flow, true
}

type quoteRequest struct {
	SeatCount     int    `json:"seat_count" binding:"gte=0"`
	DurationHours int    `json:"duration_hours" binding:"required"`
	Tier          string `json:"tier" binding:"required"`
}

type quoteResponse struct {
	Quote   pricing.Quote     `json:"quote"`
	Amounts map[string]string `json:"amounts"`
}

// POST /api/v1/quotes
func (s *GameCenterServer) handleQuote(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	q, err := s.bookings.Calculator().ComputeQuote(req.SeatCount, req.DurationHours, pricing.Tier(req.Tier))
	if err != nil {
		abortError(c, http.StatusBadRequest, "invalid_quote", err)
		return
	}
	c.JSON(http.StatusOK, quoteResponse{Quote: q, Amounts: q.Amounts()})
}

// GET /api/v1/centers/:centerId/seats
func (s *GameCenterServer) handleSeats(c *gin.Context) {
	centerID := c.Param("centerId")
	inv, err := s.centers.Inventory(centerID)
	if err != nil {
		abortError(c, http.StatusNotFound, "center_not_found", err)
		return
	}

	var updatedAt time.Time
	if ctr, ok := s.centers.GetCenter(centerID); ok {
		updatedAt = ctr.UpdatedAt()
	}
	c.JSON(http.StatusOK, gin.H{
		"center_id":  centerID,
		"updated_at": updatedAt,
		"seats":      inv.View(nil),
		"summary":    inv.Summary(nil),
	})
}

type loginRequest struct {
	Token string `json:"token" binding:"required"`
}

// POST /api/v1/sessions
func (s *GameCenterServer) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	sess, err := s.sessionManager.Login(req.Token)
	if err != nil {
		abortError(c, http.StatusUnauthorized, "invalid_token", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"session_id": sess.ID,
		"player_id":  sess.PlayerID,
		"expires_at": sess.ExpiresAt,
	})
}

// DELETE /api/v1/sessions/:sessionId
func (s *GameCenterServer) handleLogout(c *gin.Context) {
	if err := s.sessionManager.Logout(c.Param("sessionId")); err != nil {
		abortError(c, http.StatusNotFound, "session_not_found", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/v1/sessions/:sessionId/centers/:centerId
func (s *GameCenterServer) handleBegin(c *gin.Context) {
	flow, err := s.bookings.Begin(currentSession(c), c.Param("centerId"))
	if err != nil {
		if errors.Is(err, center.ErrCenterNotFound) {
			abortError(c, http.StatusNotFound, "center_not_found", err)
			return
		}
		abortError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	c.JSON(http.StatusCreated, flow.Snapshot())
}

// DELETE /api/v1/sessions/:sessionId/booking
func (s *GameCenterServer) handleLeave(c *gin.Context) {
	if err := s.bookings.Leave(currentSession(c)); err != nil {
		abortError(c, http.StatusNotFound, "no_active_booking", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/v1/sessions/:sessionId/seats/:seatId
func (s *GameCenterServer) handleSelectSeat(c *gin.Context) {
	flow, ok := activeFlow(c)
	if !ok {
		return
	}
	if !flow.SelectSeat(c.Param("seatId")) {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"code":    "seat_not_selectable",
			"error":   "seat cannot be selected",
			"booking": flow.Snapshot(),
		})
		return
	}
	c.JSON(http.StatusOK, flow.Snapshot())
}

// DELETE /api/v1/sessions/:sessionId/seats/:seatId
func (s *GameCenterServer) handleDeselectSeat(c *gin.Context) {
	flow, ok := activeFlow(c)
	if !ok {
		return
	}
	if !flow.DeselectSeat(c.Param("seatId")) {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"code":    "seat_not_selected",
			"error":   "seat is not in the selection",
			"booking": flow.Snapshot(),
		})
		return
	}
	c.JSON(http.StatusOK, flow.Snapshot())
}

type bookingView struct {
	booking.Snapshot
	Evicted []string `json:"evicted,omitempty"`
}

// GET /api/v1/sessions/:sessionId/booking
func (s *GameCenterServer) handleGetBooking(c *gin.Context) {
	flow, ok := activeFlow(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, bookingView{Snapshot: flow.Snapshot(), Evicted: flow.TakeEvictions()})
}

// draftRequest updates only the fields present.
type draftRequest struct {
	Date          *string `json:"date" binding:"omitempty,datetime=2006-01-02"`
	StartTime     *string `json:"start_time" binding:"omitempty,datetime=15:04"`
	DurationHours *int    `json:"duration_hours" binding:"omitempty,gte=1"`
	Tier          *string `json:"tier" binding:"omitempty,min=1"`
}

// PUT /api/v1/sessions/:sessionId/booking
func (s *GameCenterServer) handleUpdateBooking(c *gin.Context) {
	flow, ok := activeFlow(c)
	if !ok {
		return
	}
	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	if err := applyDraft(flow, req); err != nil {
		status, code := statusForError(err)
		abortError(c, status, code, err)
		return
	}
	c.JSON(http.StatusOK, flow.Snapshot())
}

func applyDraft(flow *booking.Flow, req draftRequest) error {
	u := booking.DraftUpdate{
		StartTime:     req.StartTime,
		DurationHours: req.DurationHours,
	}
	if req.Date != nil {
		date, err := time.ParseInLocation(booking.DateLayout, *req.Date, time.Local)
		if err != nil {
			return err
		}
		u.Date = &date
	}
	if req.Tier != nil {
		tier := pricing.Tier(*req.Tier)
		u.Tier = &tier
	}
	return flow.UpdateDraft(u)
}

// POST /api/v1/sessions/:sessionId/checkout
func (s *GameCenterServer) handleCheckout(c *gin.Context) {
	conf, err := s.bookings.Checkout(c.Request.Context(), currentSession(c))
	if err != nil {
		status, code := statusForError(err)
		body := gin.H{"code": code, "error": err.Error()}
		var stale *booking.StaleSelectionError
		if errors.As(err, &stale) {
			body["seat_ids"] = stale.SeatIDs
		}
		c.AbortWithStatusJSON(status, body)
		return
	}
	c.JSON(http.StatusOK, conf)
}

// GET /api/v1/sessions/:sessionId/history?status=&center_id=&from=&to=&limit=
func (s *GameCenterServer) handleHistory(c *gin.Context) {
	var filter models.HistoryFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		abortError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	h, err := s.bookings.History(c.Request.Context(), currentSession(c).PlayerID, filter)
	if err != nil {
		if errors.Is(err, services.ErrHistoryUnavailable) {
			abortError(c, http.StatusServiceUnavailable, "history_unavailable", err)
			return
		}
		abortError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	c.JSON(http.StatusOK, h)
}

// statusForError maps booking errors to an HTTP status and a stable code.
func statusForError(err error) (int, string) {
	var stale *booking.StaleSelectionError
	if rej, ok := booking.AsRejection(err); ok {
		switch rej.Code {
		case booking.CodeInsufficientFunds:
			return http.StatusPaymentRequired, string(rej.Code)
		case booking.CodeSeatUnavailable:
			return http.StatusConflict, string(rej.Code)
		default:
			return http.StatusUnprocessableEntity, string(rej.Code)
		}
	}

	switch {
	case errors.As(err, &stale):
		return http.StatusConflict, "stale_selection"
	case errors.Is(err, services.ErrNoActiveFlow):
		return http.StatusNotFound, "no_active_booking"
	case errors.Is(err, booking.ErrSubmissionInProgress):
		return http.StatusConflict, "submission_in_progress"
	case errors.Is(err, booking.ErrAlreadyConfirmed):
		return http.StatusConflict, "already_confirmed"
	case errors.Is(err, booking.ErrStaleResponse):
		return http.StatusConflict, "stale_response"
	case errors.Is(err, booking.ErrInvalidBooking),
		errors.Is(err, pricing.ErrTierNotEligible):
		return http.StatusUnprocessableEntity, "invalid_booking"
	case errors.Is(err, booking.ErrInvalidStartTime),
		errors.Is(err, pricing.ErrUnknownTier),
		errors.Is(err, pricing.ErrDurationOutOfRange):
		return http.StatusBadRequest, "invalid_draft"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusBadGateway, "booking_api_error"
	}
}
