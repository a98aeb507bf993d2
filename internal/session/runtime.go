package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/ruangujian/asesmen-backend/internal/model"
)

// DefaultAutosaveDebounce is the trailing-edge debounce for answer saves.
const DefaultAutosaveDebounce = 2 * time.Second

// Domain errors.
var (
	ErrInvalidStage    = errors.New("operation not valid in current stage")
	ErrUnknownQuestion = errors.New("question does not belong to this assignment")
	ErrContentMissing  = errors.New("assignment content not loaded")
)

// Config assembles a session runtime. Assignment, Store, and Submitter are
// required; everything else has defaults.
type Config struct {
	Assignment *model.AssignmentPayload
	StudentID  int

	Store     Store
	Submitter Submitter
	Signals   SignalSource // optional; nil means signals are pushed by the owner via Monitor()
	Clock     Clock
	Log       zerolog.Logger

	AutosaveDebounce  time.Duration
	SafeWindow        time.Duration
	ViolationCooldown time.Duration
	MaxViolations     int
	// PriorViolations seeds the violation counter on resume.
	PriorViolations int

	// OnViolation fires after each counted violation.
	OnViolation func(sig Signal, count int)
	// OnAutoSubmit fires after a timer- or violation-triggered submission
	// attempt, successful or not.
	OnAutoSubmit func(trigger model.SubmitTrigger, receipt *Receipt, err error)
	// OnAutosave fires after each debounced save cycle with the new status.
	OnAutosave func(status model.AutosaveStatus)
}

// Runtime is the authoritative state machine for one student's attempt at
// one assignment. Stages advance forward only:
//
//	OVERVIEW → INSTRUCTIONS → IN_PROGRESS → SUBMITTED
//
// SUBMITTED is terminal; every later write is rejected. The runtime owns
// all of its timers (countdown, autosave debounce) so teardown is total.
type Runtime struct {
	mu  sync.Mutex
	cfg Config

	stage     model.Stage
	current   int
	answers   map[uuid.UUID]model.Answer
	questions map[uuid.UUID]model.QuestionForStudent

	startedAt        time.Time
	remainingSeconds int
	timed            bool
	timerFired       bool

	autosaveStatus model.AutosaveStatus
	saveSeq        uint64
	online         bool

	// alive gates every timer callback: a callback that fires after
	// disarming must observe false and return.
	alive      bool
	submitting bool
	receipt    *Receipt

	timerHandle TimerHandle
	saveHandle  TimerHandle
	monitor     *Monitor
}

// New builds a Runtime in the OVERVIEW stage. Returns ErrContentMissing if
// the assignment payload has not been loaded — the session cannot leave
// OVERVIEW without content.
func New(cfg Config) (*Runtime, error) {
	if cfg.Assignment == nil || len(cfg.Assignment.Questions) == 0 {
		return nil, ErrContentMissing
	}
	if cfg.Store == nil || cfg.Submitter == nil {
		return nil, errors.New("store and submitter are required")
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.AutosaveDebounce <= 0 {
		cfg.AutosaveDebounce = DefaultAutosaveDebounce
	}
	if cfg.MaxViolations <= 0 {
		cfg.MaxViolations = DefaultMaxViolations
	}
	if cfg.Assignment.MaxViolations > 0 {
		cfg.MaxViolations = cfg.Assignment.MaxViolations
	}

	r := &Runtime{
		cfg:            cfg,
		stage:          model.StageOverview,
		answers:        make(map[uuid.UUID]model.Answer),
		questions:      make(map[uuid.UUID]model.QuestionForStudent, len(cfg.Assignment.Questions)),
		autosaveStatus: model.AutosaveSaved,
		online:         true,
	}
	for _, q := range cfg.Assignment.Questions {
		r.questions[q.ID] = q
	}

	r.monitor = NewMonitor(MonitorConfig{
		Clock:         cfg.Clock,
		SafeWindow:    cfg.SafeWindow,
		Cooldown:      cfg.ViolationCooldown,
		MaxViolations: cfg.MaxViolations,
		Prior:         cfg.PriorViolations,
		OnViolation:   r.noteViolation,
		OnLimit:       r.violationLimit,
	})

	return r, nil
}

// Start advances OVERVIEW → INSTRUCTIONS. No side effects beyond the stage
// change.
func (r *Runtime) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stage != model.StageOverview {
		return ErrInvalidStage
	}
	r.stage = model.StageInstructions
	return nil
}

// Begin advances INSTRUCTIONS → IN_PROGRESS: records the start time,
// restores any autosaved answer set (resume, not restart), arms the
// countdown when the assignment is timed, and arms the integrity monitor.
func (r *Runtime) Begin(ctx context.Context) error {
	r.mu.Lock()
	if r.stage != model.StageInstructions {
		r.mu.Unlock()
		return ErrInvalidStage
	}

	now := r.cfg.Clock.Now()
	r.stage = model.StageInProgress
	r.startedAt = now
	r.alive = true

	if d := r.cfg.Assignment.DurationSeconds; d != nil {
		r.timed = true
		r.remainingSeconds = *d
		r.timerHandle = r.cfg.Clock.AfterFunc(time.Second, r.tick)
	}
	r.mu.Unlock()

	// Restore the autosave entry before accepting new answers. The stored
	// set is authoritative until overwritten. A load failure is the
	// non-fatal AutosaveFailure kind: the student starts from a blank
	// sheet rather than being locked out.
	stored, err := r.cfg.Store.Load(ctx, r.cfg.Assignment.AssignmentID, r.cfg.StudentID)
	if err != nil {
		r.cfg.Log.Warn().Err(err).Msg("Autosave restore failed, starting empty")
		stored = nil
	}

	r.mu.Lock()
	for rawID, value := range stored {
		qid, parseErr := uuid.Parse(rawID)
		if parseErr != nil {
			continue
		}
		if _, ok := r.questions[qid]; !ok {
			continue
		}
		r.answers[qid] = model.Answer{QuestionID: qid, Value: value, SavedAt: now}
	}
	restored := len(r.answers)
	r.mu.Unlock()

	r.monitor.Arm()
	if r.cfg.Signals != nil {
		if err := r.cfg.Signals.Start(r.monitor.Observe); err != nil {
			return fmt.Errorf("start signal source: %w", err)
		}
	}

	if restored > 0 {
		r.cfg.Log.Info().Int("restored", restored).Msg("Session resumed from autosave")
	}
	return nil
}

// Answer upserts the student's answer for a question and schedules a
// debounced autosave. Edits arriving during the debounce window reset it
// (trailing edge): only the latest answer set is ever persisted.
func (r *Runtime) Answer(questionID uuid.UUID, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stage != model.StageInProgress {
		return ErrInvalidStage
	}
	if _, ok := r.questions[questionID]; !ok {
		return ErrUnknownQuestion
	}

	r.answers[questionID] = model.Answer{
		QuestionID: questionID,
		Value:      value,
		SavedAt:    r.cfg.Clock.Now(),
	}

	r.autosaveStatus = model.AutosaveSaving
	r.saveSeq++
	seq := r.saveSeq
	if r.saveHandle != nil {
		r.saveHandle.Stop()
	}
	r.saveHandle = r.cfg.Clock.AfterFunc(r.cfg.AutosaveDebounce, func() {
		r.flushAutosave(seq)
	})
	return nil
}

// Navigate moves the current-question cursor, clamped to the valid range.
// No persistence side effect.
func (r *Runtime) Navigate(index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stage != model.StageInProgress {
		return ErrInvalidStage
	}
	if index < 0 {
		index = 0
	}
	if max := len(r.cfg.Assignment.Questions) - 1; index > max {
		index = max
	}
	r.current = index
	return nil
}

// Submit finalizes the session. Idempotent: a second call while already
// SUBMITTED returns the original receipt without touching the boundary, so
// duplicate triggers (a timer tick racing a manual submit) are harmless.
//
// On boundary failure the session stays IN_PROGRESS with autosave status
// set to error; a later manual submit may retry.
func (r *Runtime) Submit(ctx context.Context, trigger model.SubmitTrigger) (*Receipt, error) {
	r.mu.Lock()
	if r.stage == model.StageSubmitted {
		receipt := r.receipt
		r.mu.Unlock()
		return receipt, nil
	}
	if r.stage != model.StageInProgress {
		r.mu.Unlock()
		return nil, ErrInvalidStage
	}
	if r.submitting {
		// A submission is already in flight; treat the duplicate trigger
		// as a no-op rather than double-calling the boundary.
		r.mu.Unlock()
		return nil, nil
	}
	r.submitting = true

	sub := &Submission{
		AssignmentID:   r.cfg.Assignment.AssignmentID,
		StudentID:      r.cfg.StudentID,
		Trigger:        trigger,
		Answers:        r.answerValuesLocked(),
		ViolationCount: r.monitor.Count(),
		SubmittedAt:    r.cfg.Clock.Now(),
	}
	r.mu.Unlock()

	receipt, err := r.cfg.Submitter.Submit(ctx, sub)

	r.mu.Lock()
	r.submitting = false
	if err != nil {
		r.autosaveStatus = model.AutosaveError
		r.mu.Unlock()
		return nil, fmt.Errorf("submit assignment: %w", err)
	}

	r.stage = model.StageSubmitted
	r.receipt = receipt
	r.disarmLocked()
	r.mu.Unlock()

	r.monitor.Disarm()
	if r.cfg.Signals != nil {
		r.cfg.Signals.Stop()
	}

	// The boundary acknowledged: the autosave entry may now be cleared.
	// Best effort — a leftover entry is reaped when the next session for
	// this assignment resumes and submits.
	if err := r.cfg.Store.Clear(ctx, r.cfg.Assignment.AssignmentID, r.cfg.StudentID); err != nil {
		r.cfg.Log.Warn().Err(err).Msg("Autosave clear after submit failed")
	}

	r.cfg.Log.Info().
		Str("trigger", string(trigger)).
		Int("answered", len(sub.Answers)).
		Int("violations", sub.ViolationCount).
		Msg("Session submitted")
	return receipt, nil
}

// Exit leaves the session without submitting: pending answers are flushed
// to the store synchronously and the timers and monitor are disarmed. The
// stage stays IN_PROGRESS and the autosave entry is kept, so the student
// can resume later. The confirmation decision belongs to the caller.
func (r *Runtime) Exit(ctx context.Context) error {
	r.mu.Lock()
	if r.stage != model.StageInProgress {
		r.mu.Unlock()
		return ErrInvalidStage
	}
	snapshot := r.answerValuesLocked()
	r.disarmLocked()
	r.mu.Unlock()

	r.monitor.Disarm()
	if r.cfg.Signals != nil {
		r.cfg.Signals.Stop()
	}

	if err := r.cfg.Store.Save(ctx, r.cfg.Assignment.AssignmentID, r.cfg.StudentID, snapshot); err != nil {
		return fmt.Errorf("flush answers on exit: %w", err)
	}
	return nil
}

// Observe feeds one environment signal into the integrity monitor.
func (r *Runtime) Observe(sig Signal) {
	r.monitor.Observe(sig)
}

// ─── Timer ─────────────────────────────────────────────────────────────

// tick runs once per second while the session is timed and in progress.
// At zero it fires the timer-expiry submission exactly once and stops. A
// failed auto-submit is not retried automatically: the next attempt must
// be manual, so a down backend is not hammered in a loop.
func (r *Runtime) tick() {
	r.mu.Lock()
	if !r.alive || r.stage != model.StageInProgress {
		r.mu.Unlock()
		return
	}
	r.remainingSeconds--
	if r.remainingSeconds > 0 {
		r.timerHandle = r.cfg.Clock.AfterFunc(time.Second, r.tick)
		r.mu.Unlock()
		return
	}
	if r.timerFired {
		r.mu.Unlock()
		return
	}
	r.timerFired = true
	r.remainingSeconds = 0
	r.mu.Unlock()

	receipt, err := r.Submit(context.Background(), model.TriggerTimerExpiry)
	if err != nil {
		r.cfg.Log.Error().Err(err).Msg("Timer-expiry submit failed, awaiting manual retry")
	}
	if hook := r.cfg.OnAutoSubmit; hook != nil {
		hook(model.TriggerTimerExpiry, receipt, err)
	}
}

// ─── Autosave ──────────────────────────────────────────────────────────

// flushAutosave is the debounce callback. seq detects edits that arrived
// while the save was in flight, so the status indicator never reports
// "saved" for a stale snapshot.
func (r *Runtime) flushAutosave(seq uint64) {
	r.mu.Lock()
	if !r.alive {
		r.mu.Unlock()
		return
	}
	snapshot := r.answerValuesLocked()
	r.mu.Unlock()

	err := r.cfg.Store.Save(context.Background(), r.cfg.Assignment.AssignmentID, r.cfg.StudentID, snapshot)

	r.mu.Lock()
	if !r.alive {
		// The session ended while the save was in flight. After a
		// submission the entry has already been cleared, so the late write
		// must be taken back rather than left to shadow the submitted
		// answers. After an Exit the entry is meant to stay.
		submitted := r.stage == model.StageSubmitted
		r.mu.Unlock()
		if err == nil && submitted {
			if clearErr := r.cfg.Store.Clear(context.Background(), r.cfg.Assignment.AssignmentID, r.cfg.StudentID); clearErr != nil {
				r.cfg.Log.Warn().Err(clearErr).Msg("Late autosave cleanup failed")
			}
		}
		return
	}
	if err != nil {
		r.autosaveStatus = model.AutosaveError
	} else if r.saveSeq == seq {
		r.autosaveStatus = model.AutosaveSaved
	}
	status := r.autosaveStatus
	r.mu.Unlock()

	if err != nil {
		// Non-fatal: a flaky store must never prevent answering. The next
		// debounce cycle retries with the newest snapshot.
		r.cfg.Log.Warn().Err(err).Msg("Autosave write failed")
	}
	if hook := r.cfg.OnAutosave; hook != nil {
		hook(status)
	}
}

// ─── Integrity callbacks ───────────────────────────────────────────────

func (r *Runtime) noteViolation(sig Signal, count int) {
	r.cfg.Log.Warn().
		Str("signal", string(sig)).
		Int("count", count).
		Msg("Integrity violation")
	if hook := r.cfg.OnViolation; hook != nil {
		hook(sig, count)
	}
}

func (r *Runtime) violationLimit() {
	receipt, err := r.Submit(context.Background(), model.TriggerViolationLimit)
	if err != nil {
		r.cfg.Log.Error().Err(err).Msg("Violation-limit submit failed")
	}
	if hook := r.cfg.OnAutoSubmit; hook != nil {
		hook(model.TriggerViolationLimit, receipt, err)
	}
}

// ─── Internal helpers ──────────────────────────────────────────────────

// disarmLocked stops every timer owned by the runtime and flips the
// liveness flag so a just-fired callback becomes a no-op. Caller holds mu.
func (r *Runtime) disarmLocked() {
	r.alive = false
	if r.timerHandle != nil {
		r.timerHandle.Stop()
		r.timerHandle = nil
	}
	if r.saveHandle != nil {
		r.saveHandle.Stop()
		r.saveHandle = nil
	}
}

func (r *Runtime) answerValuesLocked() map[string]string {
	out := make(map[string]string, len(r.answers))
	for qid, a := range r.answers {
		out[qid.String()] = a.Value
	}
	return out
}

// ─── Accessors ─────────────────────────────────────────────────────────

func (r *Runtime) Stage() model.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stage
}

func (r *Runtime) AssignmentID() uuid.UUID { return r.cfg.Assignment.AssignmentID }

func (r *Runtime) StudentID() int { return r.cfg.StudentID }

func (r *Runtime) CurrentIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *Runtime) ViolationCount() int {
	return r.monitor.Count()
}

// Monitor exposes the integrity monitor, e.g. for direct signal pushes.
func (r *Runtime) Monitor() *Monitor { return r.monitor }

// RemainingSeconds returns the countdown value, or nil when untimed.
func (r *Runtime) RemainingSeconds() *int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.timed {
		return nil
	}
	v := r.remainingSeconds
	return &v
}

func (r *Runtime) AutosaveStatus() model.AutosaveStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.autosaveStatus
}

// AnswerValues returns a copy of the current answer set.
func (r *Runtime) AnswerValues() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.answerValuesLocked()
}

// SetOnline records network reachability as reported by the client. The
// autosave path is local-first and does not consult this.
func (r *Runtime) SetOnline(online bool) {
	r.mu.Lock()
	r.online = online
	r.mu.Unlock()
}

func (r *Runtime) Online() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online
}
