package session

import (
	"sync"
	"time"
)

// Monitor default policy values.
const (
	DefaultSafeWindow    = 2 * time.Second
	DefaultCooldown      = 3 * time.Second
	DefaultMaxViolations = 3
)

// MonitorConfig configures an integrity Monitor.
type MonitorConfig struct {
	Clock         Clock
	SafeWindow    time.Duration
	Cooldown      time.Duration
	MaxViolations int
	// Prior seeds the counter on resume so a page reload does not reset
	// progress toward forced submission.
	Prior int

	// OnViolation fires once per counted violation with the new total.
	OnViolation func(sig Signal, count int)
	// OnLimit fires exactly once, when the counter reaches MaxViolations.
	OnLimit func()
}

// Monitor is a debounced aggregator over environment signals. Bursts of
// related events (blur immediately followed by a visibility change) are
// collapsed into a single violation by the cooldown; a safe window after
// arming absorbs the fullscreen transition at session start.
type Monitor struct {
	mu  sync.Mutex
	cfg MonitorConfig

	armed         bool
	safeUntil     time.Time
	cooldownUntil time.Time
	count         int
	limitFired    bool
}

// NewMonitor creates a Monitor, applying defaults for zero-value policy fields.
func NewMonitor(cfg MonitorConfig) *Monitor {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.SafeWindow <= 0 {
		cfg.SafeWindow = DefaultSafeWindow
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.MaxViolations <= 0 {
		cfg.MaxViolations = DefaultMaxViolations
	}
	return &Monitor{cfg: cfg, count: cfg.Prior}
}

// Arm starts counting. The safe window begins now.
func (m *Monitor) Arm() {
	m.mu.Lock()
	m.armed = true
	m.safeUntil = m.cfg.Clock.Now().Add(m.cfg.SafeWindow)
	m.cooldownUntil = time.Time{}
	m.mu.Unlock()
}

// Disarm stops counting unconditionally. Signals observed after Disarm are
// no-ops, even if they were already in flight.
func (m *Monitor) Disarm() {
	m.mu.Lock()
	m.armed = false
	m.mu.Unlock()
}

// Count returns the current violation total.
func (m *Monitor) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Observe processes one raw signal. Suppressed signal kinds never count;
// counted kinds are subject to the safe window and cooldown. Callbacks are
// invoked without holding the monitor lock.
func (m *Monitor) Observe(sig Signal) {
	m.mu.Lock()
	if !m.armed || !sig.Counted() {
		m.mu.Unlock()
		return
	}
	if m.count >= m.cfg.MaxViolations {
		// The limit already fired; the session is on its way out.
		m.mu.Unlock()
		return
	}

	now := m.cfg.Clock.Now()
	if now.Before(m.safeUntil) || now.Before(m.cooldownUntil) {
		m.mu.Unlock()
		return
	}

	m.count++
	m.cooldownUntil = now.Add(m.cfg.Cooldown)
	count := m.count

	var onLimit func()
	if count >= m.cfg.MaxViolations && !m.limitFired {
		m.limitFired = true
		onLimit = m.cfg.OnLimit
	}
	onViolation := m.cfg.OnViolation
	m.mu.Unlock()

	if onViolation != nil {
		onViolation(sig, count)
	}
	if onLimit != nil {
		onLimit()
	}
}
