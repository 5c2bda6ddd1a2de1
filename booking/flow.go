// Package booking drives one player's booking at one center: seat picks, draft inputs, the
// live quote and the submission to the booking API.
package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/gamecenter/logger"
	"github.com/wfunc/gamecenter/pricing"
	"github.com/wfunc/gamecenter/seat"
	"github.com/wfunc/gamecenter/selection"
	"github.com/wfunc/gamecenter/state"
)

// Phase is the flow's position in its lifecycle.
type Phase string

const (
	PhaseBrowsing   Phase = "browsing"
	PhaseSelecting  Phase = "selecting"
	PhaseSubmitting Phase = "submitting"
	PhaseConfirmed  Phase = "confirmed"
)

// Snapshot is a consistent read of the flow.
type Snapshot struct {
	ID           string            `json:"id"`
	CenterID     string            `json:"center_id"`
	Phase        Phase             `json:"phase"`
	SeatIDs      []string          `json:"seat_ids"`
	Draft        Draft             `json:"draft"`
	EndTime      string            `json:"end_time,omitempty"`
	Quote        pricing.Quote     `json:"quote"`
	Amounts      map[string]string `json:"amounts"`
	CanSubmit    bool              `json:"can_submit"`
	Seats        []seat.View       `json:"seats"`
	Summary      seat.Summary      `json:"summary"`
	Confirmation *Confirmation     `json:"confirmation,omitempty"`
}

// Flow is safe for concurrent use. Seat operations report silent rejections as false;
// draft setters fail loudly on values outside the configured table.
type Flow struct {
	id       string
	playerID string
	centerID string
	calc     *pricing.Calculator
	observer Observer
	latest   func() *seat.Inventory

	mu         sync.Mutex
	inv        *seat.Inventory
	sel        *selection.Set
	draft      Draft
	quote      pricing.Quote
	machine    *state.BaseStateMachine
	phases     map[Phase]*state.BaseState
	generation uint64
	// reconcile once the in-flight submission returns
	pendingReconcile bool
	evictions        []string
	confirmation     *Confirmation
}

type FlowOption func(*Flow)

// WithLatestInventory lets Submit read the newest snapshot even if it has not been
// delivered through ApplySnapshot yet.
func WithLatestInventory(latest func() *seat.Inventory) FlowOption {
	return func(f *Flow) { f.latest = latest }
}

func WithObserver(o Observer) FlowOption {
	return func(f *Flow) {
		if o != nil {
			f.observer = o
		}
	}
}

// WithInventory seeds the flow with the center's current snapshot.
func WithInventory(inv *seat.Inventory) FlowOption {
	return func(f *Flow) { f.inv = inv }
}

func NewFlow(playerID, centerID string, calc *pricing.Calculator, opts ...FlowOption) *Flow {
	cfg := calc.Config()
	f := &Flow{
		id:       uuid.NewString(),
		playerID: playerID,
		centerID: centerID,
		calc:     calc,
		observer: nopObserver{},
		sel:      selection.New(),
		draft: Draft{
			DurationHours: cfg.DefaultDuration,
			Tier:          cfg.DefaultTier,
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	f.buildMachine()
	f.recomputeLocked()
	return f
}

func (f *Flow) buildMachine() {
	f.phases = make(map[Phase]*state.BaseState, 4)
	for _, p := range []Phase{PhaseBrowsing, PhaseSelecting, PhaseSubmitting, PhaseConfirmed} {
		f.phases[p] = &state.BaseState{ID: string(p)}
	}
	f.machine = state.NewStrictStateMachine(f.phases[PhaseBrowsing])

	allow := func(from, to Phase) {
		_ = f.machine.AddTransition(f.phases[from], f.phases[to], nil)
	}
	allow(PhaseBrowsing, PhaseSelecting)
	allow(PhaseSelecting, PhaseSelecting)
	allow(PhaseSelecting, PhaseBrowsing)
	allow(PhaseSelecting, PhaseSubmitting)
	allow(PhaseSubmitting, PhaseSelecting)
	allow(PhaseSubmitting, PhaseConfirmed)
	// cancelled while in flight
	allow(PhaseSubmitting, PhaseBrowsing)
}

func (f *Flow) ID() string       { return f.id }
func (f *Flow) PlayerID() string { return f.playerID }
func (f *Flow) CenterID() string { return f.centerID }

func (f *Flow) Phase() Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phaseLocked()
}

func (f *Flow) phaseLocked() Phase {
	return Phase(f.machine.GetCurrentState().GetID())
}

func (f *Flow) transitionLocked(to Phase) {
	from := f.phaseLocked()
	if from == to {
		return
	}
	if err := f.machine.ChangeState(f.phases[to]); err != nil {
		// every call site checks the phase first
		logger.Log.Errorw("booking flow transition rejected", "flow", f.id, "error", err)
		return
	}
	logger.Log.Debugw("booking flow transition", "flow", f.id, "from", from, "to", to)
	f.observer.PhaseChanged(from, to)
}

func (f *Flow) locked() bool {
	p := f.phaseLocked()
	return p == PhaseSubmitting || p == PhaseConfirmed
}

func (f *Flow) recomputeLocked() {
	q, err := f.calc.ComputeQuote(f.sel.Len(), f.draft.DurationHours, f.draft.Tier)
	if err != nil {
		// setters validate tier and duration before storing them
		logger.Log.Errorw("booking flow quote failed", "flow", f.id, "error", err)
		return
	}
	f.quote = q
	f.observer.QuoteComputed(q)
}

// syncPhaseLocked moves between browsing and selecting to match the selection size.
func (f *Flow) syncPhaseLocked() {
	switch p := f.phaseLocked(); {
	case p == PhaseBrowsing && f.sel.Len() > 0:
		f.transitionLocked(PhaseSelecting)
	case p == PhaseSelecting && f.sel.Len() == 0:
		f.transitionLocked(PhaseBrowsing)
	}
}

func (f *Flow) reject(reason string) bool {
	f.observer.SelectionRejected(reason)
	return false
}

// SelectSeat adds seatID to the selection. It returns false, leaving everything unchanged, when
// the seat is unknown, not available, already selected, the limit is reached or a submission is
// in flight.
func (f *Flow) SelectSeat(seatID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selectLocked(seatID)
}

func (f *Flow) selectLocked(seatID string) bool {
	if f.locked() {
		return f.reject(ReasonLocked)
	}
	if f.inv == nil {
		return f.reject(ReasonUnknownSeat)
	}
	st, ok := f.inv.Get(seatID)
	if !ok {
		return f.reject(ReasonUnknownSeat)
	}
	if !f.sel.Add(seatID, st, f.calc.MaxSeats()) {
		switch {
		case f.sel.Contains(seatID):
			return f.reject(ReasonDuplicate)
		case !seat.IsSelectable(st, f.sel):
			return f.reject(ReasonNotSelectable)
		default:
			return f.reject(ReasonLimitReached)
		}
	}
	f.syncPhaseLocked()
	f.recomputeLocked()
	return true
}

// DeselectSeat removes seatID. Removing the last seat returns the flow to browsing.
func (f *Flow) DeselectSeat(seatID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deselectLocked(seatID)
}

func (f *Flow) deselectLocked(seatID string) bool {
	if f.locked() {
		return f.reject(ReasonLocked)
	}
	if !f.sel.Remove(seatID) {
		return false
	}
	f.syncPhaseLocked()
	f.recomputeLocked()
	return true
}

// ToggleSeat is a grid click: it deselects a selected seat and selects any other.
func (f *Flow) ToggleSeat(seatID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sel.Contains(seatID) {
		return f.deselectLocked(seatID)
	}
	return f.selectLocked(seatID)
}

// ClearSelection empties the selection unless a submission is in flight.
func (f *Flow) ClearSelection() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.locked() {
		return f.reject(ReasonLocked)
	}
	f.sel.Clear()
	f.syncPhaseLocked()
	f.recomputeLocked()
	return true
}

func (f *Flow) mutableLocked() error {
	switch f.phaseLocked() {
	case PhaseSubmitting:
		return ErrSubmissionInProgress
	case PhaseConfirmed:
		return ErrAlreadyConfirmed
	}
	return nil
}

func (f *Flow) SetDate(date time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.mutableLocked(); err != nil {
		return err
	}
	f.draft.Date = date
	return nil
}

// SetStartTime takes "HH:MM"; an empty string clears it.
func (f *Flow) SetStartTime(start string) error {
	if start != "" {
		if _, err := time.Parse(StartTimeLayout, start); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidStartTime, start)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.mutableLocked(); err != nil {
		return err
	}
	f.draft.StartTime = start
	return nil
}

func (f *Flow) SetDuration(hours int) error {
	if err := f.calc.ValidateDuration(hours); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.mutableLocked(); err != nil {
		return err
	}
	f.draft.DurationHours = hours
	f.recomputeLocked()
	return nil
}

func (f *Flow) SetTier(tier pricing.Tier) error {
	if _, err := f.calc.Rate(tier); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.mutableLocked(); err != nil {
		return err
	}
	f.draft.Tier = tier
	f.recomputeLocked()
	return nil
}

// DraftUpdate carries the draft fields to change; nil fields are kept.
type DraftUpdate struct {
	Date          *time.Time
	StartTime     *string
	DurationHours *int
	Tier          *pricing.Tier
}

// UpdateDraft validates every field of u and applies all of them, or none on error.
func (f *Flow) UpdateDraft(u DraftUpdate) error {
	if u.StartTime != nil && *u.StartTime != "" {
		if _, err := time.Parse(StartTimeLayout, *u.StartTime); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidStartTime, *u.StartTime)
		}
	}
	if u.DurationHours != nil {
		if err := f.calc.ValidateDuration(*u.DurationHours); err != nil {
			return err
		}
	}
	if u.Tier != nil {
		if _, err := f.calc.Rate(*u.Tier); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.mutableLocked(); err != nil {
		return err
	}
	if u.Date != nil {
		f.draft.Date = *u.Date
	}
	if u.StartTime != nil {
		f.draft.StartTime = *u.StartTime
	}
	if u.DurationHours != nil {
		f.draft.DurationHours = *u.DurationHours
	}
	if u.Tier != nil {
		f.draft.Tier = *u.Tier
	}
	if u.DurationHours != nil || u.Tier != nil {
		f.recomputeLocked()
	}
	return nil
}

// Quote returns the quote for the current selection and draft.
func (f *Flow) Quote() pricing.Quote {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quote
}

func (f *Flow) canSubmitLocked() bool {
	if f.phaseLocked() != PhaseSelecting {
		return false
	}
	if !f.calc.IsValidBooking(f.sel, f.draft.Date, f.draft.StartTime, f.draft.DurationHours) {
		return false
	}
	return f.calc.CheckPremiumEligibility(f.selectedSeatsLocked(), f.draft.Tier) == nil
}

// CanSubmit gates the submit action.
func (f *Flow) CanSubmit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canSubmitLocked()
}

func (f *Flow) selectedSeatsLocked() []seat.Seat {
	ids := f.sel.IDs()
	seats := make([]seat.Seat, 0, len(ids))
	if f.inv == nil {
		return seats
	}
	for _, id := range ids {
		if st, ok := f.inv.Get(id); ok {
			seats = append(seats, st)
		}
	}
	return seats
}

func (f *Flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := Snapshot{
		ID:           f.id,
		CenterID:     f.centerID,
		Phase:        f.phaseLocked(),
		SeatIDs:      f.sel.IDs(),
		Draft:        f.draft,
		EndTime:      f.draft.EndTime(),
		Quote:        f.quote,
		Amounts:      f.quote.Amounts(),
		CanSubmit:    f.canSubmitLocked(),
		Confirmation: f.confirmation,
	}
	if f.inv != nil {
		snap.Seats = f.inv.View(f.sel)
		snap.Summary = f.inv.Summary(f.sel)
	}
	return snap
}

// ApplySnapshot installs a fresh feed snapshot. Selected seats that are gone or no longer
// available are dropped and queued for TakeEvictions. While a submission is in flight the
// selection is left alone and reconciled when the submission returns.
func (f *Flow) ApplySnapshot(inv *seat.Inventory) {
	if inv == nil || inv.CenterID() != f.centerID {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.inv = inv
	switch f.phaseLocked() {
	case PhaseSubmitting:
		f.pendingReconcile = true
	case PhaseConfirmed:
	default:
		f.reconcileLocked()
	}
}

func (f *Flow) reconcileLocked() []string {
	f.pendingReconcile = false
	if f.inv == nil {
		return nil
	}
	removed := f.sel.Reconcile(f.inv)
	if len(removed) == 0 {
		return nil
	}
	logger.Log.Infow("selected seats taken by the feed", "flow", f.id, "center", f.centerID, "seats", removed)
	f.evictions = append(f.evictions, removed...)
	f.syncPhaseLocked()
	f.recomputeLocked()
	return removed
}

// TakeEvictions returns and forgets the seats reconciliation removed since the last call.
func (f *Flow) TakeEvictions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.evictions
	f.evictions = nil
	return out
}

// Gate inspects the quote Submit is about to send. It runs after the flow entered submitting,
// so q is exactly what api receives. A non-nil error aborts the submission.
type Gate func(ctx context.Context, q pricing.Quote) error

// Submit sends the booking to api. The selection is revalidated against the latest snapshot
// first; lost seats are removed and reported as *StaleSelectionError without calling api.
// gates then run in order against the frozen quote.
// Gate failures, rejections and transport errors return the flow to selecting with the
// selection intact. If Cancel runs while a gate or api is working, the result is dropped and
// ErrStaleResponse returned.
func (f *Flow) Submit(ctx context.Context, api API, gates ...Gate) (*Confirmation, error) {
	f.mu.Lock()

	switch f.phaseLocked() {
	case PhaseSubmitting:
		f.mu.Unlock()
		return nil, ErrSubmissionInProgress
	case PhaseConfirmed:
		f.mu.Unlock()
		return nil, ErrAlreadyConfirmed
	case PhaseBrowsing:
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: no seats selected", ErrInvalidBooking)
	}

	if f.latest != nil {
		if inv := f.latest(); inv != nil && inv.CenterID() == f.centerID {
			f.inv = inv
		}
	}
	if removed := f.reconcileLocked(); len(removed) > 0 {
		f.mu.Unlock()
		f.observer.SubmissionFinished(OutcomeStale)
		return nil, &StaleSelectionError{SeatIDs: removed}
	}
	if !f.calc.IsValidBooking(f.sel, f.draft.Date, f.draft.StartTime, f.draft.DurationHours) {
		f.mu.Unlock()
		return nil, ErrInvalidBooking
	}
	if err := f.calc.CheckPremiumEligibility(f.selectedSeatsLocked(), f.draft.Tier); err != nil {
		f.mu.Unlock()
		return nil, err
	}

	req := Request{
		RequestID:     uuid.NewString(),
		PlayerID:      f.playerID,
		CenterID:      f.centerID,
		SeatIDs:       f.sel.IDs(),
		Date:          f.draft.Date.Format(DateLayout),
		StartTime:     f.draft.StartTime,
		DurationHours: f.draft.DurationHours,
		Tier:          f.draft.Tier,
		Quote:         f.quote,
	}
	gen := f.generation
	f.transitionLocked(PhaseSubmitting)
	f.mu.Unlock()

	for _, gate := range gates {
		if err := gate(ctx, req.Quote); err != nil {
			return nil, f.abortSubmit(gen, req, err)
		}
	}
	if len(gates) > 0 {
		f.mu.Lock()
		cancelled := f.generation != gen
		f.mu.Unlock()
		if cancelled {
			f.observer.StaleResponse()
			return nil, ErrStaleResponse
		}
	}

	logger.Log.Infow("submitting booking", "flow", f.id, "request", req.RequestID, "center", req.CenterID, "seats", req.SeatIDs)
	conf, err := api.Submit(ctx, req)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.generation != gen {
		logger.Log.Warnw("dropping stale booking response", "flow", f.id, "request", req.RequestID, "error", err)
		f.observer.StaleResponse()
		return nil, ErrStaleResponse
	}

	if err != nil {
		return nil, f.failLocked(req, err)
	}

	if conf.Request.RequestID == "" {
		conf.Request = req
	}
	if conf.Status == "" {
		conf.Status = OutcomeConfirmed
	}
	f.confirmation = &conf
	f.transitionLocked(PhaseConfirmed)
	f.sel.Clear()
	f.pendingReconcile = false
	f.observer.SubmissionFinished(OutcomeConfirmed)
	logger.Log.Infow("booking confirmed", "flow", f.id, "booking", conf.BookingID)
	return &conf, nil
}

// abortSubmit undoes the submitting phase after a gate refused req.
func (f *Flow) abortSubmit(gen uint64, req Request, err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.generation != gen {
		f.observer.StaleResponse()
		return ErrStaleResponse
	}
	return f.failLocked(req, err)
}

func (f *Flow) failLocked(req Request, err error) error {
	f.transitionLocked(PhaseSelecting)
	if f.pendingReconcile {
		f.reconcileLocked()
	}
	outcome := OutcomeFailed
	if _, ok := AsRejection(err); ok {
		outcome = OutcomeRejected
	}
	logger.Log.Warnw("booking submission failed", "flow", f.id, "request", req.RequestID, "outcome", outcome, "error", err)
	f.observer.SubmissionFinished(outcome)
	return err
}

// Confirmation returns the accepted booking, nil before confirmation.
func (f *Flow) Confirmation() *Confirmation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.confirmation
}

// Cancel abandons the flow: the selection is cleared and any in-flight response will be
// discarded. A confirmed flow is left as is.
func (f *Flow) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.phaseLocked() == PhaseConfirmed {
		return
	}
	f.generation++
	f.sel.Clear()
	f.pendingReconcile = false
	f.transitionLocked(PhaseBrowsing)
	f.recomputeLocked()
}

// IsStale reports whether err means the flow's selection or response went stale.
func IsStale(err error) bool {
	var stale *StaleSelectionError
	return errors.Is(err, ErrStaleResponse) || errors.As(err, &stale)
}
