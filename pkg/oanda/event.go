package oanda

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// EventKind tags an Event.
type EventKind int

const (
	KindMalformed EventKind = iota
	KindHeartbeat
	KindPrice
	KindIgnored // well-formed records of a type we don't consume
)

func (k EventKind) String() string {
	switch k {
	case KindHeartbeat:
		return "heartbeat"
	case KindPrice:
		return "price"
	case KindIgnored:
		return "ignored"
	default:
		return "malformed"
	}
}

// Tick is a normalized bid/ask observation.
type Tick struct {
	Symbol    string    // canonical, e.g. "EUR/USD"
	Time      time.Time // event time
	Bid       float64
	Ask       float64
	BidVolume *float64 // liquidity at best bid, nil when absent
	AskVolume *float64
}

// BidVolumeOrZero treats a missing volume as zero.
func (t Tick) BidVolumeOrZero() float64 {
	if t.BidVolume == nil {
		return 0
	}
	return *t.BidVolume
}

// Event is the closed set of things the stream can deliver.
// Exactly one of Time (heartbeat), Tick (price) or Err (malformed) is meaningful.
type Event struct {
	Kind EventKind
	Time time.Time
	Tick Tick
	Raw  string
	Err  error
}

var (
	ErrEmptyRecord  = errors.New("empty record")
	ErrMissingField = errors.New("missing field")
	ErrInvalidPrice = errors.New("invalid price")
)

// ParseEvent decodes one stream record.
func ParseEvent(line []byte) Event {
	raw := strings.TrimSpace(string(line))
	if raw == "" {
		return Event{Kind: KindMalformed, Err: ErrEmptyRecord}
	}

	var msg StreamMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return malformed(raw, fmt.Errorf("decode record: %w", err))
	}

	switch msg.Type {
	case TypeHeartbeat:
		ts, err := parseTime(msg.Time)
		if err != nil {
			return malformed(raw, err)
		}
		return Event{Kind: KindHeartbeat, Time: ts}

	case TypePrice:
		tick, err := NormalizePrice(msg)
		if err != nil {
			return malformed(raw, err)
		}
		return Event{Kind: KindPrice, Time: tick.Time, Tick: tick}

	case "":
		return malformed(raw, fmt.Errorf("%w: type", ErrMissingField))

	default:
		return Event{Kind: KindIgnored, Raw: raw}
	}
}

// NormalizePrice converts a PRICE record into a Tick. Candles are built from
// the closeout bid; the best bid level only contributes its liquidity.
func NormalizePrice(msg StreamMessage) (Tick, error) {
	if msg.Instrument == "" {
		return Tick{}, fmt.Errorf("%w: instrument", ErrMissingField)
	}

	ts, err := parseTime(msg.Time)
	if err != nil {
		return Tick{}, err
	}

	bid, err := parsePrice("closeoutBid", msg.CloseoutBid)
	if err != nil {
		return Tick{}, err
	}
	ask, err := parsePrice("closeoutAsk", msg.CloseoutAsk)
	if err != nil {
		return Tick{}, err
	}

	return Tick{
		Symbol:    CanonicalSymbol(msg.Instrument),
		Time:      ts,
		Bid:       bid,
		Ask:       ask,
		BidVolume: topLiquidity(msg.Bids),
		AskVolume: topLiquidity(msg.Asks),
	}, nil
}

// CanonicalSymbol maps "EUR_USD" to "EUR/USD". Canonical input is returned as is.
func CanonicalSymbol(native string) string {
	return strings.Replace(native, "_", "/", 1)
}

// NativeSymbol maps "EUR/USD" to "EUR_USD".
func NativeSymbol(canonical string) string {
	return strings.Replace(canonical, "/", "_", 1)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: time", ErrMissingField)
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		// v20 accounts may be configured for unix timestamps ("1502463871.639182000")
		if unix, ok := parseUnixTime(s); ok {
			return unix, nil
		}
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return ts, nil
}

// parseUnixTime accepts "<seconds>.<fraction>" with up to nine fraction digits.
func parseUnixTime(s string) (time.Time, bool) {
	whole, frac, ok := strings.Cut(s, ".")
	if !ok || whole == "" || frac == "" || len(frac) > 9 {
		return time.Time{}, false
	}
	secs, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || secs < 0 {
		return time.Time{}, false
	}
	for _, r := range frac {
		if r < '0' || r > '9' {
			return time.Time{}, false
		}
	}
	nanos, err := strconv.ParseInt(frac+strings.Repeat("0", 9-len(frac)), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(secs, nanos).UTC(), true
}

func parsePrice(field, s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, field)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", field, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, fmt.Errorf("%w: %s=%v", ErrInvalidPrice, field, v)
	}
	return v, nil
}

func topLiquidity(levels []PriceBucket) *float64 {
	if len(levels) == 0 || levels[0].Liquidity == "" {
		return nil
	}
	v, err := levels[0].Liquidity.Float64()
	if err != nil {
		return nil
	}
	return &v
}

func malformed(raw string, err error) Event {
	return Event{Kind: KindMalformed, Raw: raw, Err: err}
}
