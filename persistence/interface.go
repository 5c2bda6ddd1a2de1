// persistence/interface.go
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/wfunc/gamecenter/config"
	"github.com/wfunc/gamecenter/models"
)

// Database 预订历史存储接口. Only confirmed bookings are stored.
type Database interface {
	SaveBooking(ctx context.Context, record *models.BookingRecord) error
	ListBookings(ctx context.Context, playerID string, filter models.HistoryFilter) ([]models.BookingRecord, error)
	WalletBalance(ctx context.Context, playerID string) (int64, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
	ErrDuplicate      = fmt.Errorf("booking already stored")
)

// DefaultHistoryLimit caps a listing without an explicit limit.
const DefaultHistoryLimit = 100

const queryTimeout = 5 * time.Second

func historyLimit(f models.HistoryFilter) int {
	if f.Limit <= 0 {
		return DefaultHistoryLimit
	}
	return f.Limit
}

// Open connects the configured driver.
func Open(cfg config.DatabaseConfig) (Database, error) {
	switch cfg.Driver {
	case "pq":
		return NewPostgreSQL(cfg.Postgres)
	case "gorm", "":
		return NewGormPostgreSQL(cfg.Postgres)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
