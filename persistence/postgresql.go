// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/wfunc/gamecenter/config"
	"github.com/wfunc/gamecenter/models"
)

// PostgreSQL 数据库实现
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(cfg config.PostgresConfig) (*PostgreSQL, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// 初始化表结构
	if err := initTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return newPostgreSQLWithDB(db), nil
}

func newPostgreSQLWithDB(db *sql.DB) *PostgreSQL {
	return &PostgreSQL{db: db}
}

// initTables 初始化数据库表结构
func initTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS bookings (
            id SERIAL PRIMARY KEY,
            booking_id VARCHAR(255) UNIQUE NOT NULL,
            request_id VARCHAR(255) NOT NULL,
            player_id VARCHAR(255) NOT NULL,
            center_id VARCHAR(255) NOT NULL,
            seat_ids TEXT[] NOT NULL,
            booking_date DATE NOT NULL,
            start_time VARCHAR(5) NOT NULL,
            duration_hours INTEGER NOT NULL,
            tier VARCHAR(50) NOT NULL,
            subtotal_minor BIGINT NOT NULL,
            service_fee_minor BIGINT NOT NULL,
            tax_minor BIGINT NOT NULL,
            total_minor BIGINT NOT NULL,
            currency_digits INTEGER NOT NULL DEFAULT 2,
            status VARCHAR(50) NOT NULL,
            confirmed_at TIMESTAMP NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	// 钱包表
	_, err = db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS wallets (
            player_id VARCHAR(255) PRIMARY KEY,
            balance_minor BIGINT NOT NULL DEFAULT 0,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	// 创建索引以提高查询性能
	_, err = db.ExecContext(ctx, `
        CREATE INDEX IF NOT EXISTS idx_bookings_player_id ON bookings(player_id);
        CREATE INDEX IF NOT EXISTS idx_bookings_center_id ON bookings(center_id);
        CREATE INDEX IF NOT EXISTS idx_bookings_booking_date ON bookings(booking_date);
    `)

	return err
}

// SaveBooking 保存预订记录
func (p *PostgreSQL) SaveBooking(ctx context.Context, r *models.BookingRecord) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
        INSERT INTO bookings (booking_id, request_id, player_id, center_id, seat_ids, booking_date,
            start_time, duration_hours, tier, subtotal_minor, service_fee_minor, tax_minor,
            total_minor, currency_digits, status, confirmed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
    `

	_, err := p.db.ExecContext(ctx, query,
		r.BookingID, r.RequestID, r.PlayerID, r.CenterID, pq.Array(r.SeatIDs), r.Date,
		r.StartTime, r.DurationHours, r.Tier, r.SubtotalMinor, r.ServiceFeeMinor, r.TaxMinor,
		r.TotalMinor, r.CurrencyDigits, r.Status, r.ConfirmedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicate, r.BookingID)
	}
	return err
}

// ListBookings 查询预订历史, newest first
func (p *PostgreSQL) ListBookings(ctx context.Context, playerID string, f models.HistoryFilter) ([]models.BookingRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	conds := []string{"player_id = $1"}
	args := []interface{}{playerID}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.CenterID != "" {
		add("center_id = $%d", f.CenterID)
	}
	if !f.From.IsZero() {
		add("booking_date >= $%d", f.From.Format("2006-01-02"))
	}
	if !f.To.IsZero() {
		add("booking_date <= $%d", f.To.Format("2006-01-02"))
	}
	args = append(args, historyLimit(f))

	query := fmt.Sprintf(`
        SELECT booking_id, request_id, player_id, center_id, seat_ids, to_char(booking_date, 'YYYY-MM-DD'),
            start_time, duration_hours, tier, subtotal_minor, service_fee_minor, tax_minor,
            total_minor, currency_digits, status, confirmed_at
        FROM bookings
        WHERE %s
        ORDER BY booking_date DESC, start_time DESC
        LIMIT $%d
    `, strings.Join(conds, " AND "), len(args))

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.BookingRecord
	for rows.Next() {
		var r models.BookingRecord
		if err := rows.Scan(
			&r.BookingID, &r.RequestID, &r.PlayerID, &r.CenterID, pq.Array(&r.SeatIDs), &r.Date,
			&r.StartTime, &r.DurationHours, &r.Tier, &r.SubtotalMinor, &r.ServiceFeeMinor, &r.TaxMinor,
			&r.TotalMinor, &r.CurrencyDigits, &r.Status, &r.ConfirmedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// WalletBalance 查询钱包余额
func (p *PostgreSQL) WalletBalance(ctx context.Context, playerID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var balance int64
	query := `SELECT balance_minor FROM wallets WHERE player_id = $1`
	err := p.db.QueryRowContext(ctx, query, playerID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrRecordNotFound
		}
		return 0, err
	}
	return balance, nil
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
