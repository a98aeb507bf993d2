package session

import (
	"testing"
	"time"
)

type monitorFixture struct {
	clock      *fakeClock
	monitor    *Monitor
	violations []Signal
	limitHits  int
}

func newMonitorFixture(mutate func(*MonitorConfig)) *monitorFixture {
	f := &monitorFixture{clock: newFakeClock()}
	cfg := MonitorConfig{
		Clock:       f.clock,
		OnViolation: func(sig Signal, _ int) { f.violations = append(f.violations, sig) },
		OnLimit:     func() { f.limitHits++ },
	}
	if mutate != nil {
		mutate(&cfg)
	}
	f.monitor = NewMonitor(cfg)
	return f
}

func TestMonitorSafeWindowAbsorbsStartupSignals(t *testing.T) {
	f := newMonitorFixture(nil)
	f.monitor.Arm()

	// The fullscreen transition right after arming must not count.
	f.monitor.Observe(SignalFullscreenExit)
	f.clock.Advance(1999 * time.Millisecond)
	f.monitor.Observe(SignalWindowBlur)
	if got := f.monitor.Count(); got != 0 {
		t.Fatalf("count inside safe window = %d, want 0", got)
	}

	f.clock.Advance(time.Millisecond)
	f.monitor.Observe(SignalWindowBlur)
	if got := f.monitor.Count(); got != 1 {
		t.Fatalf("count after safe window = %d, want 1", got)
	}
}

func TestMonitorCooldownCollapsesBursts(t *testing.T) {
	f := newMonitorFixture(nil)
	f.monitor.Arm()
	f.clock.Advance(2 * time.Second)

	// blur + visibility change in quick succession: one violation.
	f.monitor.Observe(SignalWindowBlur)
	f.clock.Advance(100 * time.Millisecond)
	f.monitor.Observe(SignalTabHidden)
	f.clock.Advance(2 * time.Second)
	f.monitor.Observe(SignalTabHidden)
	if got := f.monitor.Count(); got != 1 {
		t.Fatalf("count inside cooldown = %d, want 1", got)
	}

	f.clock.Advance(time.Second)
	f.monitor.Observe(SignalTabHidden)
	if got := f.monitor.Count(); got != 2 {
		t.Fatalf("count after cooldown = %d, want 2", got)
	}
	if len(f.violations) != 2 {
		t.Fatalf("violation callbacks = %d, want 2", len(f.violations))
	}
}

func TestMonitorLimitFiresExactlyOnce(t *testing.T) {
	f := newMonitorFixture(nil)
	f.monitor.Arm()
	f.clock.Advance(2 * time.Second)

	for i := 0; i < 5; i++ {
		f.monitor.Observe(SignalForbiddenKey)
		f.clock.Advance(3 * time.Second)
	}

	if got := f.monitor.Count(); got != 3 {
		t.Fatalf("count = %d, want 3 (capped at limit)", got)
	}
	if f.limitHits != 1 {
		t.Fatalf("limit callbacks = %d, want 1", f.limitHits)
	}
	if len(f.violations) != 3 {
		t.Fatalf("violation callbacks = %d, want 3", len(f.violations))
	}
}

func TestMonitorSuppressedSignalsNeverCount(t *testing.T) {
	f := newMonitorFixture(nil)
	f.monitor.Arm()
	f.clock.Advance(2 * time.Second)

	for _, sig := range []Signal{
		SignalClipboardCopy,
		SignalClipboardCut,
		SignalClipboardPaste,
		SignalBackNavigation,
	} {
		f.monitor.Observe(sig)
		f.clock.Advance(3 * time.Second)
	}

	if got := f.monitor.Count(); got != 0 {
		t.Fatalf("count = %d, want 0", got)
	}
	if len(f.violations) != 0 {
		t.Fatalf("violation callbacks = %d, want 0", len(f.violations))
	}
}

func TestMonitorIgnoresSignalsWhenDisarmed(t *testing.T) {
	f := newMonitorFixture(nil)

	// Not yet armed.
	f.monitor.Observe(SignalWindowBlur)
	if got := f.monitor.Count(); got != 0 {
		t.Fatalf("count before arm = %d, want 0", got)
	}

	f.monitor.Arm()
	f.clock.Advance(2 * time.Second)
	f.monitor.Observe(SignalWindowBlur)
	f.monitor.Disarm()

	f.clock.Advance(3 * time.Second)
	f.monitor.Observe(SignalWindowBlur)
	if got := f.monitor.Count(); got != 1 {
		t.Fatalf("count after disarm = %d, want 1", got)
	}
}

func TestMonitorPriorSeedsCounterTowardLimit(t *testing.T) {
	f := newMonitorFixture(func(cfg *MonitorConfig) {
		cfg.Prior = 2
	})
	f.monitor.Arm()
	f.clock.Advance(2 * time.Second)

	if got := f.monitor.Count(); got != 2 {
		t.Fatalf("seeded count = %d, want 2", got)
	}
	f.monitor.Observe(SignalFullscreenExit)
	if got := f.monitor.Count(); got != 3 {
		t.Fatalf("count = %d, want 3", got)
	}
	if f.limitHits != 1 {
		t.Fatalf("limit callbacks = %d, want 1", f.limitHits)
	}
}

func TestSignalClassification(t *testing.T) {
	counted := []Signal{SignalFullscreenExit, SignalTabHidden, SignalWindowBlur, SignalForbiddenKey}
	suppressed := []Signal{SignalClipboardCopy, SignalClipboardCut, SignalClipboardPaste, SignalBackNavigation}

	for _, sig := range counted {
		if !sig.Counted() || !sig.Known() {
			t.Errorf("%s: Counted()=%v Known()=%v, want true/true", sig, sig.Counted(), sig.Known())
		}
	}
	for _, sig := range suppressed {
		if sig.Counted() {
			t.Errorf("%s counts toward violations, want suppressed", sig)
		}
		if !sig.Known() {
			t.Errorf("%s unknown, want known", sig)
		}
	}
	if Signal("mouse_leave").Known() {
		t.Error("unexpected signal reported as known")
	}
}

func TestManagerReusesRuntimePerStudent(t *testing.T) {
	f := newRuntimeFixture(t, nil)
	m := NewManager(nopLogger())

	built := 0
	build := func() (*Runtime, error) { built++; return f.runtime, nil }

	a, err := m.GetOrCreate(f.runtime.AssignmentID(), f.runtime.StudentID(), build)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	b, err := m.GetOrCreate(f.runtime.AssignmentID(), f.runtime.StudentID(), build)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if a != b || built != 1 {
		t.Fatalf("runtime rebuilt: built=%d", built)
	}
	if got := m.Len(); got != 1 {
		t.Fatalf("Len = %d, want 1", got)
	}

	m.Remove(f.runtime.AssignmentID(), f.runtime.StudentID())
	if _, ok := m.Get(f.runtime.AssignmentID(), f.runtime.StudentID()); ok {
		t.Fatal("runtime still registered after Remove")
	}
}
