package booking

import "github.com/wfunc/gamecenter/pricing"

// Observer receives flow events, typically for metrics.
type Observer interface {
	QuoteComputed(q pricing.Quote)
	SelectionRejected(reason string)
	SubmissionFinished(outcome string)
	StaleResponse()
	PhaseChanged(from, to Phase)
}

// Submission outcomes reported to Observer.
const (
	OutcomeConfirmed = "confirmed"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
	OutcomeStale     = "stale_selection"
)

// Selection rejection reasons reported to Observer.
const (
	ReasonUnknownSeat   = "unknown_seat"
	ReasonNotSelectable = "not_selectable"
	ReasonDuplicate     = "duplicate"
	ReasonLimitReached  = "limit_reached"
	ReasonLocked        = "locked"
)

type nopObserver struct{}

func (nopObserver) QuoteComputed(pricing.Quote) {}
func (nopObserver) SelectionRejected(string) {}
func (nopObserver) SubmissionFinished(string) {}
func (nopObserver) StaleResponse() {}
func (nopObserver) PhaseChanged(from, to Phase) {}
