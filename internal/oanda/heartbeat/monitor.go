package heartbeat

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Liveness is the verdict of a staleness check.
type Liveness int

const (
	Alive Liveness = iota
	Stale
)

func (l Liveness) String() string {
	if l == Stale {
		return "stale"
	}
	return "alive"
}

// FatalCondition ends the process. The supervisor exits and relies on the host
// (container orchestrator, init system) to restart it.
type FatalCondition struct {
	Reason string
	At     time.Time
	Err    error
}

func (f *FatalCondition) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("fatal: %s: %v", f.Reason, f.Err)
	}
	return "fatal: " + f.Reason
}

func (f *FatalCondition) Unwrap() error {
	return f.Err
}

// Monitor tracks the last heartbeat of the feed. OnHeartbeat and
// CheckLiveness may be called from different goroutines.
type Monitor struct {
	last    atomic.Int64 // unix nanos, 0 = none yet
	timeout time.Duration
}

func NewMonitor(timeout time.Duration) *Monitor {
	return &Monitor{timeout: timeout}
}

func (m *Monitor) Timeout() time.Duration {
	return m.timeout
}

// OnHeartbeat records the time carried by a heartbeat event.
func (m *Monitor) OnHeartbeat(ts time.Time) {
	m.last.Store(ts.UnixNano())
}

// LastHeartbeat returns the last recorded heartbeat and whether one arrived.
func (m *Monitor) LastHeartbeat() (time.Time, bool) {
	n := m.last.Load()
	if n == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, n).UTC(), true
}

// CheckLiveness reports Stale when more than the timeout has passed since
// the last heartbeat. Before the first heartbeat it is always Alive.
func (m *Monitor) CheckLiveness(now time.Time) Liveness {
	last, ok := m.LastHeartbeat()
	if !ok {
		return Alive
	}
	if now.Sub(last) > m.timeout {
		return Stale
	}
	return Alive
}

// Run evaluates liveness every interval until ctx is done. It returns a
// FatalCondition as soon as the feed is stale, or nil on cancellation.
func (m *Monitor) Run(ctx context.Context, interval time.Duration, now func() time.Time, logger *zap.Logger) *FatalCondition {
	if now == nil {
		now = time.Now
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t := now()
			if m.CheckLiveness(t) == Alive {
				continue
			}
			last, _ := m.LastHeartbeat()
			logger.Error("heartbeat stale",
				zap.Time("last_heartbeat", last),
				zap.Duration("silence", t.Sub(last)),
				zap.Duration("timeout", m.timeout))
			return &FatalCondition{
				Reason: fmt.Sprintf("no heartbeat since %s (timeout %s)", last.Format(time.RFC3339), m.timeout),
				At:     t,
			}
		}
	}
}
