// models/gorm_models.go
package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// GormBooking 预订记录模型
type GormBooking struct {
	gorm.Model
	BookingID       string         `gorm:"uniqueIndex;not null"`
	RequestID       string         `gorm:"not null"`
	PlayerID        string         `gorm:"index;not null"`
	CenterID        string         `gorm:"index;not null"`
	SeatIDs         pq.StringArray `gorm:"type:text[];not null"`
	BookingDate     string         `gorm:"type:date;not null"`
	StartTime       string         `gorm:"not null"`
	DurationHours   int            `gorm:"not null"`
	Tier            string         `gorm:"not null"`
	SubtotalMinor   int64          `gorm:"not null"`
	ServiceFeeMinor int64          `gorm:"not null"`
	TaxMinor        int64          `gorm:"not null"`
	TotalMinor      int64          `gorm:"not null"`
	CurrencyDigits  int32          `gorm:"default:2"`
	Status          string         `gorm:"index;not null"`
	ConfirmedAt     time.Time      `gorm:"index;not null"`
}

func (GormBooking) TableName() string {
	return "bookings"
}

// GormWallet 玩家钱包
type GormWallet struct {
	PlayerID     string `gorm:"primaryKey"`
	BalanceMinor int64  `gorm:"not null;default:0"`
	UpdatedAt    time.Time
}

func (GormWallet) TableName() string {
	return "wallets"
}

func NewGormBooking(r BookingRecord) GormBooking {
	return GormBooking{
		BookingID:       r.BookingID,
		RequestID:       r.RequestID,
		PlayerID:        r.PlayerID,
		CenterID:        r.CenterID,
		SeatIDs:         pq.StringArray(r.SeatIDs),
		BookingDate:     r.Date,
		StartTime:       r.StartTime,
		DurationHours:   r.DurationHours,
		Tier:            r.Tier,
		SubtotalMinor:   r.SubtotalMinor,
		ServiceFeeMinor: r.ServiceFeeMinor,
		TaxMinor:        r.TaxMinor,
		TotalMinor:      r.TotalMinor,
		CurrencyDigits:  r.CurrencyDigits,
		Status:          r.Status,
		ConfirmedAt:     r.ConfirmedAt,
	}
}

func (g GormBooking) Record() BookingRecord {
	date := g.BookingDate
	// postgres returns date columns as timestamps
	if len(date) > 10 {
		date = date[:10]
	}
	return BookingRecord{
		BookingID:       g.BookingID,
		RequestID:       g.RequestID,
		PlayerID:        g.PlayerID,
		CenterID:        g.CenterID,
		SeatIDs:         []string(g.SeatIDs),
		Date:            date,
		StartTime:       g.StartTime,
		DurationHours:   g.DurationHours,
		Tier:            g.Tier,
		SubtotalMinor:   g.SubtotalMinor,
		ServiceFeeMinor: g.ServiceFeeMinor,
		TaxMinor:        g.TaxMinor,
		TotalMinor:      g.TotalMinor,
		CurrencyDigits:  g.CurrencyDigits,
		Status:          g.Status,
		ConfirmedAt:     g.ConfirmedAt,
	}
}
