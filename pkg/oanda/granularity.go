package oanda

import (
	"fmt"
	"time"
)

// Granularity is a candle width in minutes.
type Granularity int

// GranularityMeta holds the default label and alignment unit of a Granularity.
type GranularityMeta struct {
	Label string
	Unit  alignUnit
}

type alignUnit int

const (
	unitMinute alignUnit = iota
	unitHour
	unitDay
)

const (
	Granularity1Min  Granularity = 1
	Granularity5Min  Granularity = 5
	Granularity10Min Granularity = 10
	Granularity15Min Granularity = 15
	Granularity30Min Granularity = 30
	Granularity1H    Granularity = 60
	Granularity2H    Granularity = 120
	Granularity4H    Granularity = 240
	Granularity6H    Granularity = 360
	Granularity12H   Granularity = 720
	Granularity1D    Granularity = 1440
)

var supportedGranularities = map[Granularity]GranularityMeta{
	Granularity1Min:  {Label: "1m", Unit: unitMinute},
	Granularity5Min:  {Label: "5m", Unit: unitMinute},
	Granularity10Min: {Label: "10m", Unit: unitMinute},
	Granularity15Min: {Label: "15m", Unit: unitMinute},
	Granularity30Min: {Label: "30m", Unit: unitMinute},
	Granularity1H:    {Label: "1h", Unit: unitHour},
	Granularity2H:    {Label: "2h", Unit: unitHour},
	Granularity4H:    {Label: "4h", Unit: unitHour},
	Granularity6H:    {Label: "6h", Unit: unitHour},
	Granularity12H:   {Label: "12h", Unit: unitHour},
	Granularity1D:    {Label: "1d", Unit: unitDay},
}

// SupportedGranularities lists every accepted width in ascending order.
func SupportedGranularities() []Granularity {
	return []Granularity{
		Granularity1Min, Granularity5Min, Granularity10Min, Granularity15Min, Granularity30Min,
		Granularity1H, Granularity2H, Granularity4H, Granularity6H, Granularity12H,
		Granularity1D,
	}
}

// IsValid reports whether g is one of the supported widths.
func (g Granularity) IsValid() bool {
	_, ok := supportedGranularities[g]
	return ok
}

// Duration returns the bucket width.
func (g Granularity) Duration() time.Duration {
	return time.Duration(g) * time.Minute
}

// DefaultLabel returns the conventional label, e.g. "5m" or "4h".
func (g Granularity) DefaultLabel() string {
	return supportedGranularities[g].Label
}

// ValidateGranularity rejects widths outside the supported set. It is meant
// to run on configuration, never on the tick path.
func ValidateGranularity(minutes int) (Granularity, error) {
	g := Granularity(minutes)
	if !g.IsValid() {
		return 0, fmt.Errorf("unsupported granularity: %d minutes", minutes)
	}
	return g, nil
}

// AlignedBucketStart returns the start of the bucket that a candle opened at
// reference t should cover. Alignment is done on the calendar of t's location.
//
// Two widths do not floor:
//   - 1m returns the next full minute strictly after t.
//   - 2h returns the boundary one step (2h) after the floored hour.
//
// Both match the live feed's existing candles and stay until product
// confirms a plain floor for them.
func AlignedBucketStart(t time.Time, g Granularity) time.Time {
	meta, ok := supportedGranularities[g]
	if !ok {
		// unreachable once config is validated
		return t.Truncate(g.Duration())
	}

	y, mo, d := t.Date()
	loc := t.Location()

	switch meta.Unit {
	case unitMinute:
		if g == Granularity1Min {
			return time.Date(y, mo, d, t.Hour(), t.Minute()+1, 0, 0, loc)
		}
		step := int(g)
		return time.Date(y, mo, d, t.Hour(), (t.Minute()/step)*step, 0, 0, loc)

	case unitHour:
		step := int(g) / 60
		hour := (t.Hour() / step) * step
		if g == Granularity2H {
			hour += step
		}
		return time.Date(y, mo, d, hour, 0, 0, 0, loc)

	default:
		return time.Date(y, mo, d, 0, 0, 0, 0, loc)
	}
}

// BucketEnd is the exclusive end of a bucket starting at start.
func BucketEnd(start time.Time, g Granularity) time.Time {
	return start.Add(g.Duration())
}
