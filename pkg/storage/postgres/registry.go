package postgres

import (
	"context"
	"fmt"
	"time"

	"fxstream/internal/oanda/memorystore"
	"fxstream/pkg/oanda"

	"gorm.io/gorm/clause"
)

// EnsureExchange creates the exchange row if missing.
func (p *PostgresClient) EnsureExchange(ctx context.Context, name string) error {
	record := &ExchangeRecord{Name: name, Heartbeat: time.Now().UTC()}
	return p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(record).Error
}

// UpdateHeartbeatRecord stores the last heartbeat time of the exchange.
func (p *PostgresClient) UpdateHeartbeatRecord(ctx context.Context, exchange string, ts time.Time) error {
	record := &ExchangeRecord{Name: exchange, Heartbeat: ts}
	return p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"heartbeat", "updated_at"}),
	}).Create(record).Error
}

// ResolveOrCreateInstrumentID upserts the instrument by (exchange, symbol) and reads back its id.
func (p *PostgresClient) ResolveOrCreateInstrumentID(ctx context.Context, key memorystore.InstrumentNaturalKey) (uint, error) {
	db := p.DB.WithContext(ctx)

	record := &InstrumentRecord{Exchange: key.Exchange, Symbol: key.Symbol, NativeSymbol: key.NativeSymbol}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "exchange"}, {Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{"native_symbol"}),
	}).Create(record).Error; err != nil {
		return 0, fmt.Errorf("upsert instrument: %w", err)
	}

	var stored InstrumentRecord
	if err := db.Where("exchange = ? AND symbol = ?", key.Exchange, key.Symbol).First(&stored).Error; err != nil {
		return 0, fmt.Errorf("read instrument: %w", err)
	}
	return stored.ID, nil
}

// ResolveOrCreateTimeframeID upserts the timeframe by (instrument_id, label) and reads back its id.
func (p *PostgresClient) ResolveOrCreateTimeframeID(ctx context.Context, key memorystore.TimeframeNaturalKey) (uint, error) {
	db := p.DB.WithContext(ctx)

	record := &TimeframeRecord{InstrumentID: key.InstrumentID, Minutes: key.Minutes, Label: key.Label}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "instrument_id"}, {Name: "label"}},
		DoUpdates: clause.AssignmentColumns([]string{"minutes"}),
	}).Create(record).Error; err != nil {
		return 0, fmt.Errorf("upsert timeframe: %w", err)
	}

	var stored TimeframeRecord
	if err := db.Where("instrument_id = ? AND label = ?", key.InstrumentID, key.Label).First(&stored).Error; err != nil {
		return 0, fmt.Errorf("read timeframe: %w", err)
	}
	return stored.ID, nil
}

// InsertTick archives a raw tick.
func (p *PostgresClient) InsertTick(ctx context.Context, exchange string, t oanda.Tick) error {
	return p.DB.WithContext(ctx).Create(&TickRecord{
		Exchange:  exchange,
		Symbol:    t.Symbol,
		Time:      t.Time,
		Bid:       t.Bid,
		Ask:       t.Ask,
		BidVolume: t.BidVolume,
		AskVolume: t.AskVolume,
	}).Error
}
