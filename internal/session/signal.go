package session

import "sync"

// Signal is an environment event observed on the student's machine and
// reported to the runtime. Four of them count toward forced submission;
// clipboard and back-navigation signals are suppressed client-side and
// only logged here.
type Signal string

const (
	SignalFullscreenExit Signal = "fullscreen_exit"
	SignalTabHidden      Signal = "tab_hidden"
	SignalWindowBlur     Signal = "window_blur"
	SignalForbiddenKey   Signal = "forbidden_key"
	SignalClipboardCopy  Signal = "clipboard_copy"
	SignalClipboardCut   Signal = "clipboard_cut"
	SignalClipboardPaste Signal = "clipboard_paste"
	SignalBackNavigation Signal = "back_navigation"
)

// Counted reports whether the signal raises a violation.
func (s Signal) Counted() bool {
	switch s {
	case SignalFullscreenExit, SignalTabHidden, SignalWindowBlur, SignalForbiddenKey:
		return true
	}
	return false
}

// Known reports whether the signal is one the monitor understands.
func (s Signal) Known() bool {
	switch s {
	case SignalFullscreenExit, SignalTabHidden, SignalWindowBlur, SignalForbiddenKey,
		SignalClipboardCopy, SignalClipboardCut, SignalClipboardPaste, SignalBackNavigation:
		return true
	}
	return false
}

// SignalSource is the host-environment capability that delivers signals.
// Start registers the callback, Stop unconditionally removes it so no
// violation leaks into a later session.
type SignalSource interface {
	Start(fn func(Signal)) error
	Stop()
}

// PushSource is a SignalSource fed by explicit Push calls. The WebSocket
// handler uses one to forward client-reported events; tests drive it
// directly.
type PushSource struct {
	mu sync.Mutex
	fn func(Signal)
}

func NewPushSource() *PushSource {
	return &PushSource{}
}

func (p *PushSource) Start(fn func(Signal)) error {
	p.mu.Lock()
	p.fn = fn
	p.mu.Unlock()
	return nil
}

func (p *PushSource) Stop() {
	p.mu.Lock()
	p.fn = nil
	p.mu.Unlock()
}

// Push delivers a signal to the registered callback. A push after Stop is
// a no-op.
func (p *PushSource) Push(sig Signal) {
	p.mu.Lock()
	fn := p.fn
	p.mu.Unlock()
	if fn != nil {
		fn(sig)
	}
}
