// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wfunc/gamecenter/config"
	"github.com/wfunc/gamecenter/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(cfg config.PostgresConfig) (*GormPostgreSQL, error) {
	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold: time.Second,   // 慢SQL阈值
			LogLevel:      logger.Silent, // 日志级别
			Colorful:      false,         // 禁用彩色打印
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	// 获取通用数据库对象 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := db.AutoMigrate(&models.GormBooking{}, &models.GormWallet{}); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// SaveBooking 保存预订记录
func (p *GormPostgreSQL) SaveBooking(ctx context.Context, r *models.BookingRecord) error {
	row := models.NewGormBooking(*r)
	err := p.db.WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", ErrDuplicate, r.BookingID)
	}
	return err
}

// ListBookings 查询预订历史, newest first
func (p *GormPostgreSQL) ListBookings(ctx context.Context, playerID string, f models.HistoryFilter) ([]models.BookingRecord, error) {
	q := p.db.WithContext(ctx).Where("player_id = ?", playerID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.CenterID != "" {
		q = q.Where("center_id = ?", f.CenterID)
	}
	if !f.From.IsZero() {
		q = q.Where("booking_date >= ?", f.From.Format("2006-01-02"))
	}
	if !f.To.IsZero() {
		q = q.Where("booking_date <= ?", f.To.Format("2006-01-02"))
	}

	var rows []models.GormBooking
	if err := q.Order("booking_date DESC, start_time DESC").Limit(historyLimit(f)).Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]models.BookingRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.Record())
	}
	return records, nil
}

// WalletBalance 查询钱包余额
func (p *GormPostgreSQL) WalletBalance(ctx context.Context, playerID string) (int64, error) {
	var wallet models.GormWallet
	if err := p.db.WithContext(ctx).Where("player_id = ?", playerID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrRecordNotFound
		}
		return 0, err
	}
	return wallet.BalanceMinor, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
