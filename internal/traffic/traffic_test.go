package traffic

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)}
}

// TestRequestCount_Empty verifies that RequestCount returns 0 when no
// requests have been recorded within the time window.
func TestRequestCount_Empty(t *testing.T) {
	Reset()
	if n := RequestCount(1 * time.Minute); n != 0 {
		t.Errorf("RequestCount() = %d, want 0", n)
	}
}

func TestPackageLevel_RecordAndCount(t *testing.T) {
	Reset()
	defer Reset()
	RecordSuccess()
	RecordError()
	RecordDenied()
	RecordDenied()
	if n := RequestCount(time.Minute); n != 4 {
		t.Errorf("RequestCount() = %d, want 4", n)
	}
	if n := DenialCount(time.Minute); n != 2 {
		t.Errorf("DenialCount() = %d, want 2", n)
	}
	errors, total := ErrorRate(time.Minute)
	if errors != 1 || total != 2 {
		t.Errorf("ErrorRate() = (%d, %d), want (1, 2)", errors, total)
	}
}

func TestTracker_WindowExcludesOld(t *testing.T) {
	clock := newClock()
	tr := NewTracker(clock.Now)
	tr.Record(Success)
	tr.Record(Error)
	clock.Advance(90 * time.Second)
	tr.Record(Success)

	if n := tr.RequestCount(time.Minute); n != 1 {
		t.Errorf("RequestCount(1m) = %d, want 1", n)
	}
	if n := tr.RequestCount(2 * time.Minute); n != 3 {
		t.Errorf("RequestCount(2m) = %d, want 3", n)
	}
	errors, total := tr.ErrorRate(time.Minute)
	if errors != 0 || total != 1 {
		t.Errorf("ErrorRate(1m) = (%d, %d), want (0, 1)", errors, total)
	}
}

func TestTracker_PrunesBeyondRetention(t *testing.T) {
	clock := newClock()
	tr := NewTracker(clock.Now)
	for i := 0; i < 5; i++ {
		tr.Record(Denied)
	}
	clock.Advance(retention + time.Second)
	tr.Record(Success)

	tr.mu.Lock()
	remaining := len(tr.times[Denied])
	tr.mu.Unlock()
	if remaining != 0 {
		t.Errorf("denied entries after retention = %d, want 0", remaining)
	}
}

func TestTracker_IgnoresUnknownOutcome(t *testing.T) {
	tr := NewTracker(newClock().Now)
	tr.Record(Outcome(99))
	tr.Record(Outcome(-1))
	if n := tr.RequestCount(time.Hour); n != 0 {
		t.Errorf("RequestCount() = %d, want 0", n)
	}
}

func TestTracker_Concurrent(t *testing.T) {
	tr := NewTracker(time.Now)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Record(Success)
			_ = tr.RequestCount(time.Minute)
		}()
	}
	wg.Wait()
	if n := tr.Count(Success, time.Minute); n != 50 {
		t.Errorf("Count(Success) = %d, want 50", n)
	}
}
