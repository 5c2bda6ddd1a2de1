package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. GAMECENTER_BOOKING_TAX_RATE.
const EnvPrefix = "GAMECENTER"

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Booking    BookingConfig    `mapstructure:"booking"`
	Feed       FeedConfig       `mapstructure:"feed"`
	BookingAPI BookingAPIConfig `mapstructure:"booking_api"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Events     EventsConfig     `mapstructure:"events"`
}

type ServerConfig struct {
	// HTTPAddress defaults to ":8080".
	HTTPAddress string `mapstructure:"http_address" validate:"required"`
}

// BookingConfig is the single pricing and selection table. Every call site that needs a rate,
// a fee or a limit reads it from here.
type BookingConfig struct {
	// TierRates maps tier name to hourly rate. Defaults: regular 24, premium 32, vip 45.
	TierRates map[string]float64 `mapstructure:"tier_rates" validate:"required,min=1,dive,keys,required,endkeys,gte=0"`
	// PerSeatFee is the flat service fee charged per seat. Default 2.50.
	PerSeatFee float64 `mapstructure:"per_seat_fee" validate:"gte=0"`
	// TaxRate is applied to the subtotal. Default 0.08.
	TaxRate float64 `mapstructure:"tax_rate" validate:"gte=0,lte=1"`
	// MaxSeatsPerBooking caps the selection set. Default 4.
	MaxSeatsPerBooking int `mapstructure:"max_seats_per_booking" validate:"gte=1"`
	// MinDurationHours and MaxDurationHours bound the session length. Defaults 1 and 8.
	MinDurationHours int `mapstructure:"min_duration_hours" validate:"gte=1"`
	MaxDurationHours int `mapstructure:"max_duration_hours" validate:"gtefield=MinDurationHours"`
	// DefaultDurationHours seeds new drafts. Default 2.
	DefaultDurationHours int `mapstructure:"default_duration_hours" validate:"gtefield=MinDurationHours,ltefield=MaxDurationHours"`
	// DefaultTier seeds new drafts. Default "regular".
	DefaultTier string `mapstructure:"default_tier" validate:"required"`
	// CurrencyMinorUnitDigits is 2 for decimal currencies, 0 for zero-decimal ones. Default 2.
	CurrencyMinorUnitDigits int `mapstructure:"currency_minor_unit_digits" validate:"gte=0,lte=4"`
	// PremiumSeatTiers lists the tiers premium seats may be booked under. Empty means any tier.
	PremiumSeatTiers []string `mapstructure:"premium_seat_tiers"`
	// FreeCancellationWindow is how long before start a booking can still be cancelled for free. Default 2h.
	FreeCancellationWindow time.Duration `mapstructure:"free_cancellation_window" validate:"gte=0"`
}

type FeedConfig struct {
	// URL of the seat-status websocket feed. Empty disables polling.
	URL string `mapstructure:"url" validate:"omitempty,url"`
	// PollInterval defaults to 15s.
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	// RequestTimeout bounds a single snapshot fetch. Default 5s.
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	// Centers lists the center ids to keep fresh.
	Centers []string `mapstructure:"centers"`
}

type BookingAPIConfig struct {
	// Address of the booking RPC service, host:port.
	Address string `mapstructure:"address" validate:"required,hostname_port"`
	// Timeout bounds a single submission. Default 10s.
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required"`
	// SessionTTL caps a session when the token carries no expiry. Default 12h.
	SessionTTL time.Duration `mapstructure:"session_ttl" validate:"gt=0"`
}

type DatabaseConfig struct {
	// Driver is "gorm" (default) or "pq".
	Driver   string         `mapstructure:"driver" validate:"oneof=gorm pq"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"gt=0"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname" validate:"required"`
	SSLMode  string `mapstructure:"sslmode"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace" validate:"required"`
}

// CacheConfig points at the redis instance holding the last seat snapshot of every center.
type CacheConfig struct {
	// RedisAddr is host:port. Empty disables the cache.
	RedisAddr string        `mapstructure:"redis_addr" validate:"omitempty,hostname_port"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db" validate:"gte=0"`
	TTL       time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

type EventsConfig struct {
	// AMQPURL of the broker. Empty disables booking events.
	AMQPURL string `mapstructure:"amqp_url" validate:"omitempty,url"`
	Queue   string `mapstructure:"queue" validate:"required"`
}

// DSN renders the libpq connection string.
func (p PostgresConfig) DSN() string {
	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, sslMode)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")

	v.SetDefault("booking.tier_rates", map[string]float64{
		"regular": 24,
		"premium": 32,
		"vip":     45,
	})
	v.SetDefault("booking.per_seat_fee", 2.50)
	v.SetDefault("booking.tax_rate", 0.08)
	v.SetDefault("booking.max_seats_per_booking", 4)
	v.SetDefault("booking.min_duration_hours", 1)
	v.SetDefault("booking.max_duration_hours", 8)
	v.SetDefault("booking.default_duration_hours", 2)
	v.SetDefault("booking.default_tier", "regular")
	v.SetDefault("booking.currency_minor_unit_digits", 2)
	v.SetDefault("booking.premium_seat_tiers", []string{})
	v.SetDefault("booking.free_cancellation_window", 2*time.Hour)

	v.SetDefault("feed.url", "")
	v.SetDefault("feed.poll_interval", 15*time.Second)
	v.SetDefault("feed.request_timeout", 5*time.Second)
	v.SetDefault("feed.centers", []string{})

	v.SetDefault("booking_api.address", "localhost:5001")
	v.SetDefault("booking_api.timeout", 10*time.Second)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.session_ttl", 12*time.Hour)

	v.SetDefault("database.driver", "gorm")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "gamecenter")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.dbname", "gamecenter")
	v.SetDefault("database.postgres.sslmode", "disable")

	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.namespace", "gamecenter")

	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", 24*time.Hour)

	v.SetDefault("events.amqp_url", "")
	v.SetDefault("events.queue", "booking.confirmed")
}

// LoadConfig reads config.yaml from path (optional), applies .env and GAMECENTER_* overrides,
// and validates the result.
func LoadConfig(path string) (*Config, error) {
	// .env 文件是可选的
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration built from defaults only, without validation of secrets.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// 默认值总是可以解码
	_ = v.Unmarshal(&cfg)
	return cfg
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the cross references of the booking table.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return c.Booking.Validate()
}

// Validate checks the parts of the booking table that struct tags cannot express.
func (b BookingConfig) Validate() error {
	if err := validate.Struct(b); err != nil {
		return fmt.Errorf("invalid booking config: %w", err)
	}
	if _, ok := b.TierRates[b.DefaultTier]; !ok {
		return fmt.Errorf("invalid booking config: default tier %q has no rate", b.DefaultTier)
	}
	for _, tier := range b.PremiumSeatTiers {
		if _, ok := b.TierRates[tier]; !ok {
			return fmt.Errorf("invalid booking config: premium seat tier %q has no rate", tier)
		}
	}
	return nil
}
