package postgres

import (
	"context"
	"fmt"
	"time"

	"fxstream/internal/oanda/memorystore"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var candleNaturalKey = []clause.Column{
	{Name: "symbol"},
	{Name: "label"},
	{Name: "bucket_start"},
	{Name: "complete"},
}

// UpsertLiveCandle writes the in-progress candle of a bucket. Repeating the
// same call is harmless. A live write that arrives after its bucket was
// completed is skipped, since completed candles are written first.
func (p *PostgresClient) UpsertLiveCandle(ctx context.Context, c memorystore.Candlestick) error {
	record := ToCandleRecord(c, false)

	return p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var done int64
		if err := tx.Model(&CandleRecord{}).
			Where("symbol = ? AND label = ? AND bucket_start = ? AND complete = ?",
				record.Symbol, record.Label, record.BucketStart, true).
			Count(&done).Error; err != nil {
			return fmt.Errorf("check completed candle: %w", err)
		}
		if done > 0 {
			return nil
		}

		return tx.Clauses(clause.OnConflict{
			Columns: candleNaturalKey,
			DoUpdates: clause.AssignmentColumns([]string{
				"timeframe_id", "bucket_end", "open", "high", "low", "close", "volume", "updated_at",
			}),
		}).Create(record).Error
	})
}

// InsertCompletedCandle stores a finished candle and removes the live row of
// the same bucket. A duplicate completed row is skipped.
func (p *PostgresClient) InsertCompletedCandle(ctx context.Context, c memorystore.Candlestick) error {
	record := ToCandleRecord(c, true)

	return p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   candleNaturalKey,
			DoNothing: true,
		}).Create(record).Error; err != nil {
			return fmt.Errorf("insert completed candle: %w", err)
		}

		if err := tx.
			Where("symbol = ? AND label = ? AND bucket_start = ? AND complete = ?",
				record.Symbol, record.Label, record.BucketStart, false).
			Delete(&CandleRecord{}).Error; err != nil {
			return fmt.Errorf("delete live candle: %w", err)
		}
		return nil
	})
}

func (p *PostgresClient) GetCandle(ctx context.Context, symbol, label string, start time.Time, complete bool) (*CandleRecord, error) {
	var candle CandleRecord
	err := p.DB.WithContext(ctx).
		Where("symbol = ? AND label = ? AND bucket_start = ? AND complete = ?", symbol, label, start, complete).
		First(&candle).Error

	if err != nil {
		return nil, err
	}
	return &candle, nil
}

// ListCompletedCandles returns finished candles of one timeframe in [from, to), oldest first.
func (p *PostgresClient) ListCompletedCandles(ctx context.Context, symbol, label string, from, to time.Time) ([]CandleRecord, error) {
	var candles []CandleRecord
	err := p.DB.WithContext(ctx).
		Where("symbol = ? AND label = ? AND complete = ? AND bucket_start >= ? AND bucket_start < ?",
			symbol, label, true, from, to).
		Order("bucket_start").
		Find(&candles).Error
	return candles, err
}

func (p *PostgresClient) DeleteOldCandles(ctx context.Context, before time.Time) error {
	return p.DB.WithContext(ctx).
		Where("bucket_start < ?", before).
		Delete(&CandleRecord{}).Error
}

// ToCandleRecord converts a Candlestick into a CandleRecord for DB insertion.
func ToCandleRecord(c memorystore.Candlestick, complete bool) *CandleRecord {
	return &CandleRecord{
		Symbol:      c.Symbol,
		Label:       c.Label,
		BucketStart: c.Start,
		Complete:    complete,
		TimeframeID: c.TimeframeID,
		Minutes:     int(c.Granularity),
		BucketEnd:   c.End,
		Open:        c.Open,
		High:        c.High,
		Low:         c.Low,
		Close:       c.Close,
		Volume:      c.Volume,
	}
}
