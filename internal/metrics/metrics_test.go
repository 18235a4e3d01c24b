package metrics

import (
	"math"
	"testing"
	"time"
)

func TestRecordOutputTransitionsIdleToActive(t *testing.T) {
	tr := New(50*time.Millisecond, time.Second)
	now := time.Now()
	tr.CheckIdle(now.Add(100 * time.Millisecond))
	if tr.Active() {
		t.Fatalf("expected idle after timeout")
	}

	transitioned := tr.RecordOutput(10, now.Add(200*time.Millisecond))
	if !transitioned {
		t.Fatalf("expected idle->active transition")
	}
	if !tr.Active() {
		t.Fatalf("expected active after output")
	}
}

func TestCheckIdleFiresOnceOnTimeout(t *testing.T) {
	tr := New(10*time.Millisecond, time.Second)
	base := time.Now()
	tr.RecordOutput(1, base)

	if tr.CheckIdle(base.Add(5 * time.Millisecond)) {
		t.Fatalf("should not be idle yet")
	}
	if !tr.CheckIdle(base.Add(20 * time.Millisecond)) {
		t.Fatalf("expected idle transition")
	}
	if tr.CheckIdle(base.Add(30 * time.Millisecond)) {
		t.Fatalf("should not re-fire once already idle")
	}
}

func TestRatesNonNegativeAndConverge(t *testing.T) {
	tr := New(time.Minute, 100*time.Millisecond)
	base := time.Now()

	for i := 0; i < 600; i++ {
		now := base.Add(time.Duration(i+1) * 100 * time.Millisecond)
		tr.RecordOutput(100, now)
		tr.Sample(now)
	}

	bps1, bps5, bps15, total := tr.Rates()
	if bps1 < 0 || bps5 < 0 || bps15 < 0 {
		t.Fatalf("rates must be non-negative: %v %v %v", bps1, bps5, bps15)
	}
	if total != 600*100 {
		t.Fatalf("total = %d, want %d", total, 600*100)
	}
	// Sustained 1000 B/s input; bps1 (fastest window) should converge
	// closer to the true rate than bps15 (slowest window) by now.
	const want = 1000.0
	if math.Abs(bps1-want) > math.Abs(bps15-want) {
		t.Fatalf("expected bps1 (%v) to converge closer to %v than bps15 (%v)", bps1, want, bps15)
	}
}
