package pricing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/wfunc/gamecenter/config"
)

// Tier is a named pricing level.
type Tier string

const (
	TierRegular Tier = "regular"
	TierPremium Tier = "premium"
	TierVIP     Tier = "vip"
)

// Config is the consolidated pricing table in decimal form.
type Config struct {
	TierRates       map[Tier]decimal.Decimal
	PerSeatFee      decimal.Decimal
	TaxRate         decimal.Decimal
	MaxSeats        int
	MinDuration     int
	MaxDuration     int
	DefaultDuration int
	DefaultTier     Tier
	MinorUnitDigits int32
	// PremiumSeatTiers empty means premium seats combine with any tier.
	PremiumSeatTiers []Tier
}

// DefaultConfig is the table observed at the reference centers.
func DefaultConfig() Config {
	return Config{
		TierRates: map[Tier]decimal.Decimal{
			TierRegular: decimal.NewFromInt(24),
			TierPremium: decimal.NewFromInt(32),
			TierVIP:     decimal.NewFromInt(45),
		},
		PerSeatFee:      decimal.RequireFromString("2.50"),
		TaxRate:         decimal.RequireFromString("0.08"),
		MaxSeats:        4,
		MinDuration:     1,
		MaxDuration:     8,
		DefaultDuration: 2,
		DefaultTier:     TierRegular,
		MinorUnitDigits: 2,
	}
}

// ConfigFromSettings converts the loaded booking section.
func ConfigFromSettings(b config.BookingConfig) (Config, error) {
	if err := b.Validate(); err != nil {
		return Config{}, err
	}
	cfg := Config{
		TierRates:       make(map[Tier]decimal.Decimal, len(b.TierRates)),
		PerSeatFee:      decimal.NewFromFloat(b.PerSeatFee),
		TaxRate:         decimal.NewFromFloat(b.TaxRate),
		MaxSeats:        b.MaxSeatsPerBooking,
		MinDuration:     b.MinDurationHours,
		MaxDuration:     b.MaxDurationHours,
		DefaultDuration: b.DefaultDurationHours,
		DefaultTier:     Tier(b.DefaultTier),
		MinorUnitDigits: int32(b.CurrencyMinorUnitDigits),
	}
	for name, rate := range b.TierRates {
		cfg.TierRates[Tier(name)] = decimal.NewFromFloat(rate)
	}
	for _, name := range b.PremiumSeatTiers {
		cfg.PremiumSeatTiers = append(cfg.PremiumSeatTiers, Tier(name))
	}
	return cfg, nil
}

// Tiers returns the recognized tiers sorted by rate, then name.
func (c Config) Tiers() []Tier {
	tiers := make([]Tier, 0, len(c.TierRates))
	for t := range c.TierRates {
		tiers = append(tiers, t)
	}
	sort.Slice(tiers, func(i, j int) bool {
		ri, rj := c.TierRates[tiers[i]], c.TierRates[tiers[j]]
		if !ri.Equal(rj) {
			return ri.LessThan(rj)
		}
		return tiers[i] < tiers[j]
	})
	return tiers
}

func (c Config) validate() error {
	if len(c.TierRates) == 0 {
		return fmt.Errorf("pricing: no tier rates configured")
	}
	for t, r := range c.TierRates {
		if r.IsNegative() {
			return fmt.Errorf("pricing: negative rate for tier %q", t)
		}
	}
	if c.PerSeatFee.IsNegative() || c.TaxRate.IsNegative() {
		return fmt.Errorf("pricing: fees and tax must not be negative")
	}
	if c.MaxSeats < 1 {
		return fmt.Errorf("pricing: max seats must be at least 1")
	}
	if c.MinDuration < 1 || c.MaxDuration < c.MinDuration {
		return fmt.Errorf("pricing: invalid duration bounds [%d, %d]", c.MinDuration, c.MaxDuration)
	}
	if c.DefaultDuration < c.MinDuration || c.DefaultDuration > c.MaxDuration {
		return fmt.Errorf("pricing: default duration %d outside bounds", c.DefaultDuration)
	}
	if _, ok := c.TierRates[c.DefaultTier]; !ok {
		return fmt.Errorf("pricing: default tier %q has no rate", c.DefaultTier)
	}
	if c.MinorUnitDigits < 0 {
		return fmt.Errorf("pricing: negative minor unit digits")
	}
	return nil
}
