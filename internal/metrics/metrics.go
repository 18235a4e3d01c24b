// Package metrics tracks a session's activity state and byte-rate
// history: the idle/active flag the host broadcasts as SESSION_STATE,
// and the 1/5/15-minute exponential moving averages it broadcasts as
// SESSION_METRICS.
package metrics

import (
	"math"
	"sync"
	"time"
)

// DefaultIdleTimeout is the duration of PTY silence after which a
// session transitions from active to idle.
const DefaultIdleTimeout = 60 * time.Second

// window durations for the three EMA rates the spec asks for.
const (
	window1  = 1 * time.Minute
	window5  = 5 * time.Minute
	window15 = 15 * time.Minute
)

// Tracker holds one session's activity and byte-rate state.
type Tracker struct {
	mu sync.Mutex

	idleTimeout  time.Duration
	lastActivity time.Time
	active       bool

	totalBytes uint64

	bps1, bps5, bps15       float64
	alpha1, alpha5, alpha15 float64
	lastSample              time.Time
	rateBaseline            uint64
}

// New creates a Tracker with the given idle timeout and sampling
// interval (the cadence at which Sample is expected to be called).
func New(idleTimeout, sampleInterval time.Duration) *Tracker {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if sampleInterval <= 0 {
		sampleInterval = time.Second
	}
	now := time.Now()
	return &Tracker{
		idleTimeout:  idleTimeout,
		lastActivity: now,
		lastSample:   now,
		active:       true,
		alpha1:       emaAlpha(sampleInterval, window1),
		alpha5:       emaAlpha(sampleInterval, window5),
		alpha15:      emaAlpha(sampleInterval, window15),
	}
}

// emaAlpha derives a smoothing constant from the sample interval and
// target window, the same decay shape the Unix load average uses:
// alpha = 1 - e^(-interval/window).
func emaAlpha(interval, window time.Duration) float64 {
	return 1 - math.Exp(-interval.Seconds()/window.Seconds())
}

// RecordOutput registers n bytes of PTY output at time now. It marks
// the session active, resetting the idle clock, and returns true if
// this output transitioned the session from idle to active.
func (t *Tracker) RecordOutput(n int, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.totalBytes += uint64(n)
	t.lastActivity = now
	wasIdle := !t.active
	t.active = true
	return wasIdle
}

// CheckIdle evaluates whether the session has been silent for longer
// than the idle timeout. It returns true exactly once per active->idle
// transition.
func (t *Tracker) CheckIdle(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return false
	}
	if now.Sub(t.lastActivity) < t.idleTimeout {
		return false
	}
	t.active = false
	return true
}

// Active reports the current activity state.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// TotalBytes returns the monotonic total of bytes recorded.
func (t *Tracker) TotalBytes() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalBytes
}

// Sample advances the EMA byte-rate windows using the bytes written
// since the previous Sample call. Call it on a fixed cadence matching
// the sampleInterval passed to New.
func (t *Tracker) Sample(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := now.Sub(t.lastSample).Seconds()
	t.lastSample = now
	if elapsed <= 0 {
		return
	}

	// The rate is the bytes recorded since the previous Sample call
	// (measured against rateBaseline) divided by the elapsed time.
	rate := float64(t.deltaSinceLastRateSample()) / elapsed

	t.bps1 += t.alpha1 * (rate - t.bps1)
	t.bps5 += t.alpha5 * (rate - t.bps5)
	t.bps15 += t.alpha15 * (rate - t.bps15)

	if t.bps1 < 0 {
		t.bps1 = 0
	}
	if t.bps5 < 0 {
		t.bps5 = 0
	}
	if t.bps15 < 0 {
		t.bps15 = 0
	}
}

// rateBaseline is the totalBytes value as of the last Sample call.
// deltaSinceLastRateSample must be called with mu held.
func (t *Tracker) deltaSinceLastRateSample() uint64 {
	delta := t.totalBytes - t.rateBaseline
	t.rateBaseline = t.totalBytes
	return delta
}

// Rates returns the current 1/5/15-minute EMA byte rates and the
// monotonic total byte count, in the order the SESSION_METRICS frame
// carries them.
func (t *Tracker) Rates() (bps1, bps5, bps15 float64, total uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bps1, t.bps5, t.bps15, t.totalBytes
}
