package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"cryptodata/pkg/dataset"
	"cryptodata/pkg/logger"
)

// TradeRecord is one trade stored in the database. Seq is the record's
// position in the dataset, which only ever grows by appending.
type TradeRecord struct {
	ID uint `gorm:"primaryKey"`

	Symbol string `gorm:"type:text;not null;index:idx_trade_symbol_seq,unique"`
	Seq    int64  `gorm:"not null;index:idx_trade_symbol_seq,unique"`

	Timestamp time.Time       `gorm:"not null;index:idx_trade_timestamp"`
	Price     decimal.Decimal `gorm:"type:numeric;not null"`
	Volume    decimal.Decimal `gorm:"type:numeric;not null"`
	Side      *string         `gorm:"type:varchar(1)"`
	OrderType *string         `gorm:"type:varchar(1)"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (TradeRecord) TableName() string {
	return "trade_record"
}

// ToTradeRecord converts the record at position seq into a row for insertion
func ToTradeRecord(symbol string, seq int64, r dataset.Record) TradeRecord {
	tr := TradeRecord{
		Symbol:    symbol,
		Seq:       seq,
		Timestamp: r.Timestamp.UTC(),
		Price:     r.Price,
		Volume:    r.Volume,
	}
	if r.Side != nil {
		s := string(*r.Side)
		tr.Side = &s
	}
	if r.OrderType != nil {
		o := string(*r.OrderType)
		tr.OrderType = &o
	}
	return tr
}

// PostgresStore mirrors datasets into Postgres
type PostgresStore struct {
	DB        *gorm.DB
	batchSize int
	logger    logger.Logger
}

// NewPostgresStore connects to dsn and migrates the trade table
func NewPostgresStore(dsn string, batchSize int, log logger.Logger) (*PostgresStore, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	store := newPostgresStore(db, batchSize, log)
	if err := store.AutoMigrate(); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func newPostgresStore(db *gorm.DB, batchSize int, log logger.Logger) *PostgresStore {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &PostgresStore{
		DB:        db,
		batchSize: batchSize,
		logger:    log.WithField("component", "postgres_store"),
	}
}

// AutoMigrate creates or updates the trade table
func (p *PostgresStore) AutoMigrate() error {
	if err := p.DB.AutoMigrate(&TradeRecord{}); err != nil {
		return fmt.Errorf("auto-migrate trade table: %w", err)
	}
	return nil
}

// Name identifies the sink in logs
func (p *PostgresStore) Name() string {
	return "postgres"
}

// StoredCount returns how many rows of symbol are already mirrored
func (p *PostgresStore) StoredCount(ctx context.Context, symbol string) (int64, error) {
	var count int64
	err := p.DB.WithContext(ctx).
		Model(&TradeRecord{}).
		Where("symbol = ?", symbol).
		Count(&count).Error
	return count, err
}

// Write appends the records of d that the table does not hold yet
func (p *PostgresStore) Write(ctx context.Context, d *dataset.Dataset) error {
	stored, err := p.StoredCount(ctx, d.Symbol)
	if err != nil {
		return fmt.Errorf("failed to count stored trades: %w", err)
	}

	rows := PendingRows(d, stored)
	if len(rows) == 0 {
		p.logger.DebugWithFields("Nothing to mirror", map[string]interface{}{
			"symbol": d.Symbol,
			"stored": stored,
		})
		return nil
	}

	tx := p.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}, {Name: "seq"}},
			DoNothing: true,
		}).
		CreateInBatches(rows, p.batchSize)
	if tx.Error != nil {
		return fmt.Errorf("failed to insert trades: %w", tx.Error)
	}

	p.logger.InfoWithFields("Trades mirrored", map[string]interface{}{
		"symbol":   d.Symbol,
		"inserted": tx.RowsAffected,
		"skipped":  int64(len(rows)) - tx.RowsAffected,
	})
	return nil
}

// PendingRows converts the records after the first stored ones
func PendingRows(d *dataset.Dataset, stored int64) []TradeRecord {
	if stored < 0 {
		stored = 0
	}
	if stored >= int64(d.Len()) {
		return nil
	}

	rows := make([]TradeRecord, 0, int64(d.Len())-stored)
	for i := stored; i < int64(d.Len()); i++ {
		rows = append(rows, ToTradeRecord(d.Symbol, i, d.Records[i]))
	}
	return rows
}

// IsHealthy pings the database
func (p *PostgresStore) IsHealthy(ctx context.Context) bool {
	db, err := p.DB.DB()
	if err != nil {
		return false
	}
	return db.PingContext(ctx) == nil
}

// Close releases the connection pool
func (p *PostgresStore) Close() error {
	db, err := p.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve raw DB: %w", err)
	}
	return db.Close()
}
