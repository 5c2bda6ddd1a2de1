package pricing

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wfunc/gamecenter/config"
	"github.com/wfunc/gamecenter/seat"
)

type fixedCount int

func (f fixedCount) Len() int { return int(f) }

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func newTestCalculator(t *testing.T, mutate ...func(*Config)) *Calculator {
	t.Helper()
	cfg := DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	calc, err := NewCalculator(cfg, WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("NewCalculator failed: %v", err)
	}
	return calc
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeQuote_RegularTwoSeatsTwoHours(t *testing.T) {
	calc := newTestCalculator(t)

	q, err := calc.ComputeQuote(2, 2, TierRegular)
	if err != nil {
		t.Fatalf("ComputeQuote returned error: %v", err)
	}

	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"subtotal", q.Subtotal, "96.00"},
		{"service fee", q.ServiceFee, "5.00"},
		{"tax", q.Tax, "7.68"},
		{"total", q.Total, "108.68"},
	}
	for _, c := range checks {
		if !c.got.Equal(dec(c.want)) {
			t.Errorf("Expected %s %s, got %s", c.name, c.want, c.got)
		}
	}

	amounts := q.Amounts()
	if amounts["subtotal"] != "96.00" || amounts["total"] != "108.68" {
		t.Errorf("Expected fixed amounts 96.00/108.68, got %v", amounts)
	}
	if q.MinorUnits() != 10868 {
		t.Errorf("Expected 10868 minor units, got %d", q.MinorUnits())
	}
}

func TestComputeQuote_ZeroSeats(t *testing.T) {
	calc := newTestCalculator(t)

	for _, tier := range calc.Config().Tiers() {
		for d := 1; d <= 8; d++ {
			q, err := calc.ComputeQuote(0, d, tier)
			if err != nil {
				t.Fatalf("ComputeQuote(0, %d, %s) returned error: %v", d, tier, err)
			}
			if !q.Total.IsZero() || !q.Subtotal.IsZero() || !q.ServiceFee.IsZero() || !q.Tax.IsZero() {
				t.Errorf("Expected zero quote for 0 seats, %d hours, %s; got %+v", d, tier, q)
			}
			if !q.IsZero() {
				t.Error("IsZero should be true for an empty selection")
			}
		}
	}
}

func TestComputeQuote_InvalidInputs(t *testing.T) {
	calc := newTestCalculator(t)

	if _, err := calc.ComputeQuote(1, 2, Tier("gold")); !errors.Is(err, ErrUnknownTier) {
		t.Errorf("Expected ErrUnknownTier, got %v", err)
	}
	if _, err := calc.ComputeQuote(1, 0, TierRegular); !errors.Is(err, ErrDurationOutOfRange) {
		t.Errorf("Expected ErrDurationOutOfRange for 0 hours, got %v", err)
	}
	if _, err := calc.ComputeQuote(1, 9, TierRegular); !errors.Is(err, ErrDurationOutOfRange) {
		t.Errorf("Expected ErrDurationOutOfRange for 9 hours, got %v", err)
	}
	if _, err := calc.ComputeQuote(-1, 2, TierRegular); !errors.Is(err, ErrNegativeSeatCount) {
		t.Errorf("Expected ErrNegativeSeatCount, got %v", err)
	}
	// zero seats still reports a bad tier
	if _, err := calc.ComputeQuote(0, 2, Tier("gold")); !errors.Is(err, ErrUnknownTier) {
		t.Errorf("Expected ErrUnknownTier for empty selection, got %v", err)
	}
}

func TestComputeQuote_DeterministicAndBalanced(t *testing.T) {
	calc := newTestCalculator(t, func(c *Config) {
		// fractional rates exercise rounding
		c.TierRates[TierPremium] = dec("31.92")
		c.TierRates[TierVIP] = dec("44.999")
		c.TaxRate = dec("0.0825")
	})

	for _, tier := range calc.Config().Tiers() {
		for seats := 0; seats <= 4; seats++ {
			for d := 1; d <= 8; d++ {
				a, err := calc.ComputeQuote(seats, d, tier)
				if err != nil {
					t.Fatalf("ComputeQuote failed: %v", err)
				}
				b, _ := calc.ComputeQuote(seats, d, tier)
				if !a.Total.Equal(b.Total) || !a.Tax.Equal(b.Tax) {
					t.Fatalf("Expected identical quotes, got %+v and %+v", a, b)
				}
				sum := a.Subtotal.Add(a.ServiceFee).Add(a.Tax)
				if !a.Total.Equal(sum) {
					t.Errorf("Expected total %s to equal component sum %s", a.Total, sum)
				}
				if !a.Total.Equal(a.Total.Round(2)) {
					t.Errorf("Expected total rounded to cents, got %s", a.Total)
				}
			}
		}
	}
}

func TestComputeQuote_Monotonic(t *testing.T) {
	calc := newTestCalculator(t, func(c *Config) {
		c.TierRates[TierPremium] = dec("31.92")
	})

	for _, tier := range calc.Config().Tiers() {
		for seats := 0; seats <= 4; seats++ {
			prev := decimal.NewFromInt(-1)
			for d := 1; d <= 8; d++ {
				q, _ := calc.ComputeQuote(seats, d, tier)
				if q.Total.LessThan(prev) {
					t.Errorf("Total decreased when duration grew to %d (%s, %d seats)", d, tier, seats)
				}
				prev = q.Total
			}
		}
		for d := 1; d <= 8; d++ {
			prev := decimal.NewFromInt(-1)
			for seats := 0; seats <= 4; seats++ {
				q, _ := calc.ComputeQuote(seats, d, tier)
				if q.Total.LessThan(prev) {
					t.Errorf("Total decreased when seats grew to %d (%s, %d hours)", seats, tier, d)
				}
				prev = q.Total
			}
		}
	}
}

func TestComputeQuote_RoundHalfUp(t *testing.T) {
	// 1 seat * 1 hour * 10.00 * 0.0125 = 0.125 -> 0.13
	calc := newTestCalculator(t, func(c *Config) {
		c.TierRates[TierRegular] = dec("10")
		c.TaxRate = dec("0.0125")
		c.PerSeatFee = decimal.Zero
	})
	q, err := calc.ComputeQuote(1, 1, TierRegular)
	if err != nil {
		t.Fatalf("ComputeQuote failed: %v", err)
	}
	if !q.Tax.Equal(dec("0.13")) {
		t.Errorf("Expected tax 0.13, got %s", q.Tax)
	}
	if !q.Total.Equal(dec("10.13")) {
		t.Errorf("Expected total 10.13, got %s", q.Total)
	}
}

func TestComputeQuote_ZeroDecimalCurrency(t *testing.T) {
	calc := newTestCalculator(t, func(c *Config) {
		c.MinorUnitDigits = 0
		c.TierRates[TierRegular] = dec("2400")
		c.PerSeatFee = dec("250")
		c.TaxRate = dec("0.08")
	})
	// subtotal 2400, tax 192, fee 250
	q, err := calc.ComputeQuote(1, 1, TierRegular)
	if err != nil {
		t.Fatalf("ComputeQuote failed: %v", err)
	}
	if !q.Total.Equal(dec("2842")) {
		t.Errorf("Expected total 2842, got %s", q.Total)
	}
	if q.Amounts()["total"] != "2842" {
		t.Errorf("Expected no fraction digits, got %q", q.Amounts()["total"])
	}
	if q.MinorUnits() != 2842 {
		t.Errorf("Expected 2842 minor units, got %d", q.MinorUnits())
	}
}

func TestIsValidBooking(t *testing.T) {
	calc := newTestCalculator(t)
	today := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	tomorrow := today.AddDate(0, 0, 1)

	cases := []struct {
		name     string
		seats    Counter
		date     time.Time
		start    string
		duration int
		want     bool
	}{
		{"today", fixedCount(1), today, "14:00", 2, true},
		{"tomorrow", fixedCount(2), tomorrow, "09:00", 8, true},
		{"yesterday", fixedCount(1), yesterday, "14:00", 2, false},
		{"empty selection", fixedCount(0), today, "14:00", 2, false},
		{"nil selection", nil, today, "14:00", 2, false},
		{"missing date", fixedCount(1), time.Time{}, "14:00", 2, false},
		{"missing start", fixedCount(1), today, "", 2, false},
		{"duration too long", fixedCount(1), today, "14:00", 9, false},
		{"duration zero", fixedCount(1), today, "14:00", 0, false},
	}
	for _, c := range cases {
		if got := calc.IsValidBooking(c.seats, c.date, c.start, c.duration); got != c.want {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, got)
		}
	}
}

func TestCheckPremiumEligibility(t *testing.T) {
	premium := seat.Seat{ID: "01", Status: seat.StatusAvailable, IsPremium: true}
	standard := seat.Seat{ID: "02", Status: seat.StatusAvailable}

	open := newTestCalculator(t)
	if err := open.CheckPremiumEligibility([]seat.Seat{premium}, TierRegular); err != nil {
		t.Errorf("Expected premium seats to combine with any tier by default, got %v", err)
	}

	restricted := newTestCalculator(t, func(c *Config) {
		c.PremiumSeatTiers = []Tier{TierPremium, TierVIP}
	})
	if err := restricted.CheckPremiumEligibility([]seat.Seat{standard, premium}, TierRegular); !errors.Is(err, ErrTierNotEligible) {
		t.Errorf("Expected ErrTierNotEligible, got %v", err)
	}
	if err := restricted.CheckPremiumEligibility([]seat.Seat{premium}, TierVIP); err != nil {
		t.Errorf("Expected vip to be eligible, got %v", err)
	}
	if err := restricted.CheckPremiumEligibility([]seat.Seat{standard}, TierRegular); err != nil {
		t.Errorf("Expected standard seats to be unrestricted, got %v", err)
	}
}

func TestShortfall(t *testing.T) {
	calc := newTestCalculator(t)
	q, _ := calc.ComputeQuote(1, 2, TierRegular) // 48 + 2.50 + 3.84 = 54.34

	if got := Shortfall(dec("47.50"), q); !got.Equal(dec("6.84")) {
		t.Errorf("Expected shortfall 6.84, got %s", got)
	}
	if CanAfford(dec("47.50"), q) {
		t.Error("Expected 47.50 to be insufficient")
	}
	if !CanAfford(dec("54.34"), q) {
		t.Error("Expected exact balance to be sufficient")
	}
}

func TestConfigFromSettings(t *testing.T) {
	settings := config.Default().Booking
	cfg, err := ConfigFromSettings(settings)
	if err != nil {
		t.Fatalf("ConfigFromSettings failed: %v", err)
	}
	if !cfg.PerSeatFee.Equal(dec("2.5")) || !cfg.TaxRate.Equal(dec("0.08")) {
		t.Errorf("Expected fee 2.5 and tax 0.08, got %s and %s", cfg.PerSeatFee, cfg.TaxRate)
	}
	if !cfg.TierRates[TierVIP].Equal(dec("45")) {
		t.Errorf("Expected vip rate 45, got %s", cfg.TierRates[TierVIP])
	}
	if cfg.MaxSeats != 4 || cfg.MinDuration != 1 || cfg.MaxDuration != 8 {
		t.Errorf("Unexpected limits: %+v", cfg)
	}

	settings.PremiumSeatTiers = []string{"gold"}
	if _, err := ConfigFromSettings(settings); err == nil {
		t.Error("Expected an error for a premium tier without a rate")
	}
}

func TestNewCalculator_RejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDuration = 0
	if _, err := NewCalculator(cfg); err == nil {
		t.Error("Expected error for inverted duration bounds")
	}
}
