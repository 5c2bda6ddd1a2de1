// services/booking_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wfunc/gamecenter/booking"
	"github.com/wfunc/gamecenter/center"
	"github.com/wfunc/gamecenter/events"
	"github.com/wfunc/gamecenter/logger"
	"github.com/wfunc/gamecenter/models"
	"github.com/wfunc/gamecenter/persistence"
	"github.com/wfunc/gamecenter/pricing"
	"github.com/wfunc/gamecenter/seat"
	"github.com/wfunc/gamecenter/session"
)

var (
	ErrNoActiveFlow       = errors.New("session has no active booking")
	ErrHistoryUnavailable = errors.New("booking history is not configured")
)

// Wallet reports a player's balance in minor units.
type Wallet interface {
	WalletBalance(ctx context.Context, playerID string) (int64, error)
}

// FlowMetrics is the part of the monitor the service reports to.
type FlowMetrics interface {
	booking.Observer
	IncActiveFlows()
	DecActiveFlows()
}

type nopMetrics struct{}

func (nopMetrics) QuoteComputed(pricing.Quote) {}
func (nopMetrics) SelectionRejected(string) {}
func (nopMetrics) SubmissionFinished(string) {}
func (nopMetrics) StaleResponse() {}
func (nopMetrics) PhaseChanged(from, to booking.Phase) {}
func (nopMetrics) IncActiveFlows() {}
func (nopMetrics) DecActiveFlows() {}

// BookingService ties a session's flow to the center registry, the booking API and the
// history store.
type BookingService struct {
	centers *center.Manager
	calc    *pricing.Calculator
	api     booking.API
	db      persistence.Database
	wallet  Wallet
	events  events.Publisher
	metrics FlowMetrics
	policy  booking.CancellationPolicy
	now     func() time.Time
}

type Option func(*BookingService)

func WithMetrics(m FlowMetrics) Option {
	return func(s *BookingService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithWallet enables the balance check before submission.
func WithWallet(w Wallet) Option {
	return func(s *BookingService) { s.wallet = w }
}

// WithPublisher announces every confirmed booking.
func WithPublisher(p events.Publisher) Option {
	return func(s *BookingService) { s.events = p }
}

func WithCancellationPolicy(p booking.CancellationPolicy) Option {
	return func(s *BookingService) { s.policy = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *BookingService) { s.now = now }
}

// NewBookingService wires the service. db may be nil, in which case nothing is persisted.
func NewBookingService(centers *center.Manager, calc *pricing.Calculator, api booking.API, db persistence.Database, opts ...Option) *BookingService {
	s := &BookingService{
		centers: centers,
		calc:    calc,
		api:     api,
		db:      db,
		metrics: nopMetrics{},
		policy:  booking.CancellationPolicy{FreeWindow: 2 * time.Hour},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *BookingService) Calculator() *pricing.Calculator {
	return s.calc
}

// Begin starts a booking at centerID for the session, replacing any flow it had.
func (s *BookingService) Begin(sess *session.Session, centerID string) (*booking.Flow, error) {
	inv, err := s.centers.Inventory(centerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, centerID)
	}

	flow := booking.NewFlow(sess.PlayerID, centerID, s.calc,
		booking.WithInventory(inv),
		booking.WithLatestInventory(func() *seat.Inventory {
			latest, _ := s.centers.Inventory(centerID)
			return latest
		}),
		booking.WithObserver(s.metrics),
	)
	s.centers.Watch(centerID, flow.ID(), flow)
	s.metrics.IncActiveFlows()

	if old := sess.SetFlow(flow); old != nil {
		s.release(old)
	}
	logger.Log.Infow("booking started", "session", sess.ID, "player", sess.PlayerID, "center", centerID, "flow", flow.ID())
	return flow, nil
}

// Leave abandons the session's flow.
func (s *BookingService) Leave(sess *session.Session) error {
	flow := sess.SetFlow(nil)
	if flow == nil {
		return ErrNoActiveFlow
	}
	s.release(flow)
	return nil
}

// OnSessionClose is the session manager's close hook.
func (s *BookingService) OnSessionClose(sess *session.Session) {
	if err := s.Leave(sess); err == nil {
		logger.Log.Debugw("released flow of closed session", "session", sess.ID)
	}
}

func (s *BookingService) release(flow *booking.Flow) {
	flow.Cancel()
	s.centers.Unwatch(flow.CenterID(), flow.ID())
	s.metrics.DecActiveFlows()
}

// Checkout submits the flow and records the confirmed booking. With a wallet configured the
// balance is checked against the quote the submission froze, before the API is called.
func (s *BookingService) Checkout(ctx context.Context, sess *session.Session) (*booking.Confirmation, error) {
	flow := sess.Flow()
	if flow == nil {
		return nil, ErrNoActiveFlow
	}

	var gates []booking.Gate
	if s.wallet != nil {
		// 余额检查针对提交时冻结的报价
		gates = append(gates, func(ctx context.Context, q pricing.Quote) error {
			return s.checkFunds(ctx, sess.PlayerID, q)
		})
	}

	conf, err := flow.Submit(ctx, s.api, gates...)
	if err != nil {
		return nil, err
	}
	if conf.ConfirmedAt.IsZero() {
		conf.ConfirmedAt = s.now()
	}

	record := NewBookingRecord(conf, s.calc.Config().MinorUnitDigits)
	if s.db != nil {
		// 预订已确认, 历史写入失败只记录日志
		if err := s.db.SaveBooking(ctx, record); err != nil {
			logger.Log.Errorw("failed to save booking history", "booking", conf.BookingID, "player", sess.PlayerID, "error", err)
		}
	}
	if s.events != nil {
		if err := s.events.PublishBookingConfirmed(ctx, events.NewBookingConfirmed(record)); err != nil {
			logger.Log.Warnw("failed to publish booking event", "booking", conf.BookingID, "error", err)
		}
	}
	return conf, nil
}

func (s *BookingService) checkFunds(ctx context.Context, playerID string, q pricing.Quote) error {
	if s.wallet == nil {
		return nil
	}
	minor, err := s.wallet.WalletBalance(ctx, playerID)
	if err != nil {
		if !errors.Is(err, persistence.ErrRecordNotFound) {
			return fmt.Errorf("wallet balance: %w", err)
		}
		// 没有钱包按余额为零处理
		minor = 0
	}

	balance := decimal.New(minor, -q.Digits)
	if shortfall := pricing.Shortfall(balance, q); !shortfall.IsZero() {
		return &booking.RejectionError{
			Code:   booking.CodeInsufficientFunds,
			Reason: fmt.Sprintf("need %s more", shortfall.StringFixed(q.Digits)),
		}
	}
	return nil
}

// NewBookingRecord converts a confirmation into its history row.
func NewBookingRecord(conf *booking.Confirmation, digits int32) *models.BookingRecord {
	req := conf.Request
	q := req.Quote
	minor := func(d decimal.Decimal) int64 { return d.Shift(digits).IntPart() }

	return &models.BookingRecord{
		BookingID:       conf.BookingID,
		RequestID:       req.RequestID,
		PlayerID:        req.PlayerID,
		CenterID:        req.CenterID,
		SeatIDs:         req.SeatIDs,
		Date:            req.Date,
		StartTime:       req.StartTime,
		DurationHours:   req.DurationHours,
		Tier:            string(req.Tier),
		SubtotalMinor:   minor(q.Subtotal),
		ServiceFeeMinor: minor(q.ServiceFee),
		TaxMinor:        minor(q.Tax),
		TotalMinor:      minor(q.Total),
		CurrencyDigits:  digits,
		Status:          models.BookingConfirmed,
		ConfirmedAt:     conf.ConfirmedAt,
	}
}

// HistoryEntry is a stored booking plus whether it can still be cancelled for free.
type HistoryEntry struct {
	models.BookingRecord
	FreeCancellation bool `json:"free_cancellation"`
}

type History struct {
	Bookings []HistoryEntry        `json:"bookings"`
	Summary  models.BookingSummary `json:"summary"`
}

// History lists the player's bookings, newest first, with a summary of the listed rows.
func (s *BookingService) History(ctx context.Context, playerID string, filter models.HistoryFilter) (*History, error) {
	if s.db == nil {
		return nil, ErrHistoryUnavailable
	}
	records, err := s.db.ListBookings(ctx, playerID, filter)
	if err != nil {
		return nil, err
	}

	now := s.now()
	h := &History{
		Bookings: make([]HistoryEntry, 0, len(records)),
		Summary:  models.Summarize(records),
	}
	for _, r := range records {
		h.Bookings = append(h.Bookings, HistoryEntry{
			BookingRecord:    r,
			FreeCancellation: s.freeCancellation(r, now),
		})
	}
	return h, nil
}

func (s *BookingService) freeCancellation(r models.BookingRecord, now time.Time) bool {
	if r.Status != models.BookingConfirmed {
		return false
	}
	date, err := time.ParseInLocation(booking.DateLayout, r.Date, now.Location())
	if err != nil {
		return false
	}
	startsAt, err := booking.Draft{Date: date, StartTime: r.StartTime}.StartsAt()
	if err != nil {
		return false
	}
	return s.policy.FreeCancellation(startsAt, now)
}
