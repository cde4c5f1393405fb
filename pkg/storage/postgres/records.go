package postgres

import "time"

// ExchangeRecord tracks the venue and the last heartbeat it sent.
type ExchangeRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"type:text;not null;uniqueIndex:idx_exchange_name"`
	Heartbeat time.Time `gorm:"type:timestamptz"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (ExchangeRecord) TableName() string {
	return "exchange"
}

// InstrumentRecord is a configured instrument. (exchange, symbol) is its natural key.
type InstrumentRecord struct {
	ID           uint      `gorm:"primaryKey"`
	Exchange     string    `gorm:"type:text;not null;uniqueIndex:idx_instrument_exchange_symbol"`
	Symbol       string    `gorm:"type:text;not null;uniqueIndex:idx_instrument_exchange_symbol"`
	NativeSymbol string    `gorm:"type:text;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (InstrumentRecord) TableName() string {
	return "instrument"
}

// TimeframeRecord is an (instrument, granularity) pair. (instrument_id, label) is its natural key.
type TimeframeRecord struct {
	ID           uint      `gorm:"primaryKey"`
	InstrumentID uint      `gorm:"not null;uniqueIndex:idx_timeframe_instrument_label"`
	Label        string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_timeframe_instrument_label"`
	Minutes      int       `gorm:"not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (TimeframeRecord) TableName() string {
	return "timeframe"
}

// CandleRecord is a candlestick. Live rows (complete=false) are upserted on
// every tick; completed rows are inserted once per rollover.
type CandleRecord struct {
	ID uint `gorm:"primaryKey"`

	// unique index
	Symbol      string    `gorm:"type:text;not null;index:idx_candle_symbol;index:idx_candle_natural,unique"`
	Label       string    `gorm:"type:varchar(10);not null;index:idx_candle_natural,unique"`
	BucketStart time.Time `gorm:"type:timestamptz;not null;index:idx_candle_natural,unique"`
	Complete    bool      `gorm:"not null;index:idx_candle_natural,unique"`

	TimeframeID uint      `gorm:"not null;index:idx_candle_timeframe"`
	Minutes     int       `gorm:"not null"`
	BucketEnd   time.Time `gorm:"type:timestamptz;not null"`

	Open  float64 `gorm:"type:numeric;not null"`
	High  float64 `gorm:"type:numeric;not null"`
	Low   float64 `gorm:"type:numeric;not null"`
	Close float64 `gorm:"type:numeric;not null"`

	Volume float64 `gorm:"type:numeric;not null"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// TableName overrides the default table name for GORM.
func (CandleRecord) TableName() string {
	return "candlestick"
}

// TickRecord archives a raw bid/ask observation.
type TickRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Exchange  string    `gorm:"type:text;not null"`
	Symbol    string    `gorm:"type:text;not null;index:idx_tick_symbol_time"`
	Time      time.Time `gorm:"type:timestamptz;not null;index:idx_tick_symbol_time"`
	Bid       float64   `gorm:"type:numeric;not null"`
	Ask       float64   `gorm:"type:numeric;not null"`
	BidVolume *float64  `gorm:"type:numeric"`
	AskVolume *float64  `gorm:"type:numeric"`
}

func (TickRecord) TableName() string {
	return "tick"
}
