// Package pricing turns a seat selection, a duration and a rate tier into a price quote.
package pricing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wfunc/gamecenter/seat"
)

var (
	ErrUnknownTier        = errors.New("unknown rate tier")
	ErrDurationOutOfRange = errors.New("duration out of range")
	ErrNegativeSeatCount  = errors.New("negative seat count")
	ErrTierNotEligible    = errors.New("tier not eligible for premium seat")
)

// Quote is an immutable price breakdown. Every component is already rounded to the
// currency's minor unit and Total is their exact sum.
type Quote struct {
	SeatCount     int             `json:"seat_count"`
	DurationHours int             `json:"duration_hours"`
	Tier          Tier            `json:"tier"`
	HourlyRate    decimal.Decimal `json:"hourly_rate"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	ServiceFee    decimal.Decimal `json:"service_fee"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	Digits        int32           `json:"-"`
}

// IsZero reports whether nothing is being charged.
func (q Quote) IsZero() bool {
	return q.Total.IsZero()
}

// Amounts renders the components with the currency's fixed number of digits.
func (q Quote) Amounts() map[string]string {
	return map[string]string{
		"subtotal":    q.Subtotal.StringFixed(q.Digits),
		"service_fee": q.ServiceFee.StringFixed(q.Digits),
		"tax":         q.Tax.StringFixed(q.Digits),
		"total":       q.Total.StringFixed(q.Digits),
	}
}

// MinorUnits returns Total in the currency's minor unit, e.g. cents.
func (q Quote) MinorUnits() int64 {
	return q.Total.Shift(q.Digits).IntPart()
}

// Counter is the size side of a selection set.
type Counter interface {
	Len() int
}

// Calculator is a pure function of its Config; the only outside input is the clock used by
// IsValidBooking.
type Calculator struct {
	cfg Config
	now func() time.Time
}

type Option func(*Calculator)

// WithClock replaces time.Now for date checks.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) { c.now = now }
}

func NewCalculator(cfg Config, opts ...Option) (*Calculator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	c := &Calculator{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Calculator) Config() Config {
	return c.cfg
}

func (c *Calculator) MaxSeats() int {
	return c.cfg.MaxSeats
}

// Rate looks up the hourly rate of tier.
func (c *Calculator) Rate(tier Tier) (decimal.Decimal, error) {
	rate, ok := c.cfg.TierRates[tier]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}
	return rate, nil
}

// ValidateDuration fails for hours outside the configured bounds.
func (c *Calculator) ValidateDuration(hours int) error {
	if hours < c.cfg.MinDuration || hours > c.cfg.MaxDuration {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrDurationOutOfRange, hours, c.cfg.MinDuration, c.cfg.MaxDuration)
	}
	return nil
}

// ComputeQuote prices seatCount seats for durationHours at tier.
//
//	subtotal   = rate(tier) * durationHours * seatCount
//	serviceFee = perSeatFee * seatCount
//	tax        = subtotal * taxRate
//	total      = subtotal + serviceFee + tax
//
// Each component is rounded half-up to the minor unit before summing. An unknown tier or an
// out-of-range duration is a caller error; zero seats is a valid zero quote.
func (c *Calculator) ComputeQuote(seatCount, durationHours int, tier Tier) (Quote, error) {
	if seatCount < 0 {
		return Quote{}, fmt.Errorf("%w: %d", ErrNegativeSeatCount, seatCount)
	}
	rate, err := c.Rate(tier)
	if err != nil {
		return Quote{}, err
	}
	if err := c.ValidateDuration(durationHours); err != nil {
		return Quote{}, err
	}

	q := Quote{
		SeatCount:     seatCount,
		DurationHours: durationHours,
		Tier:          tier,
		HourlyRate:    rate,
		Subtotal:      decimal.Zero,
		ServiceFee:    decimal.Zero,
		Tax:           decimal.Zero,
		Total:         decimal.Zero,
		Digits:        c.cfg.MinorUnitDigits,
	}
	if seatCount == 0 {
		return q, nil
	}

	seats := decimal.NewFromInt(int64(seatCount))
	hours := decimal.NewFromInt(int64(durationHours))

	subtotal := rate.Mul(hours).Mul(seats)
	q.Subtotal = c.round(subtotal)
	q.ServiceFee = c.round(c.cfg.PerSeatFee.Mul(seats))
	// tax is taken on the unrounded subtotal
	q.Tax = c.round(subtotal.Mul(c.cfg.TaxRate))
	q.Total = q.Subtotal.Add(q.ServiceFee).Add(q.Tax)
	return q, nil
}

// round is half-up for the non-negative amounts priced here.
func (c *Calculator) round(d decimal.Decimal) decimal.Decimal {
	return d.Round(c.cfg.MinorUnitDigits)
}

// IsValidBooking gates the submit action: a non-empty selection, a date that is today or later,
// a start time and an in-range duration.
func (c *Calculator) IsValidBooking(sel Counter, date time.Time, startTime string, durationHours int) bool {
	if sel == nil || sel.Len() == 0 {
		return false
	}
	if date.IsZero() || startTime == "" {
		return false
	}
	if c.ValidateDuration(durationHours) != nil {
		return false
	}
	return !civilDate(date).Before(civilDate(c.now()))
}

// civilDate drops the clock part, keeping the calendar day as seen in t's location.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CheckPremiumEligibility applies the premium seat policy: when PremiumSeatTiers is set, premium
// seats may only be booked under one of those tiers.
func (c *Calculator) CheckPremiumEligibility(seats []seat.Seat, tier Tier) error {
	if len(c.cfg.PremiumSeatTiers) == 0 {
		return nil
	}
	for _, allowed := range c.cfg.PremiumSeatTiers {
		if allowed == tier {
			return nil
		}
	}
	for _, s := range seats {
		if s.IsPremium {
			return fmt.Errorf("%w: seat %s under %q", ErrTierNotEligible, s.ID, tier)
		}
	}
	return nil
}

// Shortfall is how much balance is missing to pay q, zero when affordable.
func Shortfall(balance decimal.Decimal, q Quote) decimal.Decimal {
	if balance.GreaterThanOrEqual(q.Total) {
		return decimal.Zero
	}
	return q.Total.Sub(balance)
}

func CanAfford(balance decimal.Decimal, q Quote) bool {
	return Shortfall(balance, q).IsZero()
}
