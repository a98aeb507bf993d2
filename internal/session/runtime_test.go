package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/ruangujian/asesmen-backend/internal/model"
)

type runtimeFixture struct {
	clock     *fakeClock
	store     *memStore
	submitter *fakeSubmitter
	signals   *PushSource
	runtime   *Runtime
}

func newRuntimeFixture(t *testing.T, mutate func(*Config)) *runtimeFixture {
	t.Helper()

	f := &runtimeFixture{
		clock:     newFakeClock(),
		store:     newMemStore(),
		submitter: &fakeSubmitter{},
		signals:   NewPushSource(),
	}
	cfg := Config{
		Assignment: fixtureAssignment(intPtr(60)),
		StudentID:  7,
		Store:      f.store,
		Submitter:  f.submitter,
		Signals:    f.signals,
		Clock:      f.clock,
		Log:        zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	rt, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.runtime = rt
	return f
}

func (f *runtimeFixture) begin(t *testing.T) {
	t.Helper()
	if err := f.runtime.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.runtime.Begin(context.Background()); err != nil {
		t.Fatalf("Begin: %v", err)
	}
}

func TestNewRequiresContent(t *testing.T) {
	_, err := New(Config{
		Assignment: &model.AssignmentPayload{},
		Store:      newMemStore(),
		Submitter:  &fakeSubmitter{},
	})
	if err != ErrContentMissing {
		t.Fatalf("err = %v, want ErrContentMissing", err)
	}
}

func TestStageAdvancesForwardOnly(t *testing.T) {
	f := newRuntimeFixture(t, nil)
	rt := f.runtime

	if got := rt.Stage(); got != model.StageOverview {
		t.Fatalf("initial stage = %s, want OVERVIEW", got)
	}
	if err := rt.Begin(context.Background()); err != ErrInvalidStage {
		t.Fatalf("Begin from OVERVIEW err = %v, want ErrInvalidStage", err)
	}
	if err := rt.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := rt.Start(); err != ErrInvalidStage {
		t.Fatalf("second Start err = %v, want ErrInvalidStage", err)
	}
	if got := rt.Stage(); got != model.StageInstructions {
		t.Fatalf("stage = %s, want INSTRUCTIONS", got)
	}
	if err := rt.Answer(fixtureQ1, "4"); err != ErrInvalidStage {
		t.Fatalf("Answer before Begin err = %v, want ErrInvalidStage", err)
	}
	if err := rt.Begin(context.Background()); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if got := rt.Stage(); got != model.StageInProgress {
		t.Fatalf("stage = %s, want IN_PROGRESS", got)
	}
}

func TestAnswerRejectsUnknownQuestion(t *testing.T) {
	f := newRuntimeFixture(t, nil)
	f.begin(t)

	if err := f.runtime.Answer(fixtureQ1, "4"); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	unknown := f.runtime.AssignmentID() // any uuid not in the question set
	if err := f.runtime.Answer(unknown, "4"); err != ErrUnknownQuestion {
		t.Fatalf("err = %v, want ErrUnknownQuestion", err)
	}
}

func TestNavigateClampsToRange(t *testing.T) {
	f := newRuntimeFixture(t, nil)
	f.begin(t)
	rt := f.runtime

	if err := rt.Navigate(-5); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if got := rt.CurrentIndex(); got != 0 {
		t.Fatalf("index after Navigate(-5) = %d, want 0", got)
	}
	if err := rt.Navigate(99); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if got := rt.CurrentIndex(); got != 2 {
		t.Fatalf("index after Navigate(99) = %d, want 2", got)
	}
	if err := rt.Navigate(1); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if got := rt.CurrentIndex(); got != 1 {
		t.Fatalf("index = %d, want 1", got)
	}
}

func TestManualSubmitIsIdempotent(t *testing.T) {
	f := newRuntimeFixture(t, nil)
	f.begin(t)
	rt := f.runtime

	if err := rt.Answer(fixtureQ1, "4"); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	first, err := rt.Submit(context.Background(), model.TriggerManual)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if first == nil {
		t.Fatal("first receipt is nil")
	}
	if got := rt.Stage(); got != model.StageSubmitted {
		t.Fatalf("stage = %s, want SUBMITTED", got)
	}

	second, err := rt.Submit(context.Background(), model.TriggerManual)
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if second != first {
		t.Fatal("second Submit returned a different receipt")
	}
	if got := f.submitter.callCount(); got != 1 {
		t.Fatalf("boundary calls = %d, want 1", got)
	}

	sub := f.submitter.lastSubmission()
	if sub.Trigger != model.TriggerManual {
		t.Fatalf("trigger = %s, want MANUAL", sub.Trigger)
	}
	if got := sub.Answers[fixtureQ1.String()]; got != "4" {
		t.Fatalf("submitted answer = %q, want %q", got, "4")
	}

	if err := rt.Answer(fixtureQ1, "5"); err != ErrInvalidStage {
		t.Fatalf("Answer after submit err = %v, want ErrInvalidStage", err)
	}
}

func TestSubmitFailureKeepsSessionInProgress(t *testing.T) {
	f := newRuntimeFixture(t, nil)
	f.begin(t)
	rt := f.runtime
	f.submitter.setFailing(true)

	if _, err := rt.Submit(context.Background(), model.TriggerManual); err == nil {
		t.Fatal("Submit succeeded, want error")
	}
	if got := rt.Stage(); got != model.StageInProgress {
		t.Fatalf("stage = %s, want IN_PROGRESS", got)
	}
	if got := rt.AutosaveStatus(); got != model.AutosaveError {
		t.Fatalf("autosave status = %s, want error", got)
	}

	// A later manual retry goes through.
	f.submitter.setFailing(false)
	if _, err := rt.Submit(context.Background(), model.TriggerManual); err != nil {
		t.Fatalf("retry Submit: %v", err)
	}
	if got := rt.Stage(); got != model.StageSubmitted {
		t.Fatalf("stage = %s, want SUBMITTED", got)
	}
	if got := f.submitter.callCount(); got != 2 {
		t.Fatalf("boundary calls = %d, want 2", got)
	}
}

func TestTimerExpirySubmitsExactlyOnce(t *testing.T) {
	f := newRuntimeFixture(t, nil)
	f.begin(t)
	rt := f.runtime

	if err := rt.Answer(fixtureQ1, "4"); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	f.clock.Advance(59 * time.Second)
	if got := rt.RemainingSeconds(); got == nil || *got != 1 {
		t.Fatalf("remaining after 59s = %v, want 1", got)
	}
	if got := rt.Stage(); got != model.StageInProgress {
		t.Fatalf("stage after 59s = %s, want IN_PROGRESS", got)
	}

	f.clock.Advance(time.Second)
	if got := rt.Stage(); got != model.StageSubmitted {
		t.Fatalf("stage after expiry = %s, want SUBMITTED", got)
	}
	if got := rt.RemainingSeconds(); got == nil || *got != 0 {
		t.Fatalf("remaining after expiry = %v, want 0", got)
	}
	if got := f.submitter.lastSubmission().Trigger; got != model.TriggerTimerExpiry {
		t.Fatalf("trigger = %s, want TIMER_EXPIRY", got)
	}

	// Ticks after expiry are dead.
	f.clock.Advance(10 * time.Second)
	if got := f.submitter.callCount(); got != 1 {
		t.Fatalf("boundary calls = %d, want 1", got)
	}
}

func TestTimerExpiryFailureDoesNotRetry(t *testing.T) {
	var autoErrs int
	f := newRuntimeFixture(t, func(cfg *Config) {
		cfg.OnAutoSubmit = func(trigger model.SubmitTrigger, _ *Receipt, err error) {
			if trigger == model.TriggerTimerExpiry && err != nil {
				autoErrs++
			}
		}
	})
	f.begin(t)
	f.submitter.setFailing(true)

	f.clock.Advance(60 * time.Second)
	if got := f.runtime.Stage(); got != model.StageInProgress {
		t.Fatalf("stage = %s, want IN_PROGRESS", got)
	}
	if got := f.submitter.callCount(); got != 1 {
		t.Fatalf("boundary calls = %d, want 1", got)
	}
	if autoErrs != 1 {
		t.Fatalf("auto-submit error hooks = %d, want 1", autoErrs)
	}

	// No automatic retry loop on later ticks.
	f.clock.Advance(30 * time.Second)
	if got := f.submitter.callCount(); got != 1 {
		t.Fatalf("boundary calls after waiting = %d, want 1", got)
	}

	// Manual retry still works.
	f.submitter.setFailing(false)
	if _, err := f.runtime.Submit(context.Background(), model.TriggerManual); err != nil {
		t.Fatalf("manual retry: %v", err)
	}
	if got := f.runtime.Stage(); got != model.StageSubmitted {
		t.Fatalf("stage = %s, want SUBMITTED", got)
	}
}

func TestUntimedSessionHasNoCountdown(t *testing.T) {
	f := newRuntimeFixture(t, func(cfg *Config) {
		cfg.Assignment = fixtureAssignment(nil)
	})
	f.begin(t)

	if got := f.runtime.RemainingSeconds(); got != nil {
		t.Fatalf("remaining = %v, want nil", got)
	}
	f.clock.Advance(time.Hour)
	if got := f.runtime.Stage(); got != model.StageInProgress {
		t.Fatalf("stage = %s, want IN_PROGRESS", got)
	}
	if got := f.submitter.callCount(); got != 0 {
		t.Fatalf("boundary calls = %d, want 0", got)
	}
}

func TestAutosaveDebounceIsTrailingEdge(t *testing.T) {
	var statuses []model.AutosaveStatus
	f := newRuntimeFixture(t, func(cfg *Config) {
		cfg.Assignment = fixtureAssignment(nil)
		cfg.OnAutosave = func(s model.AutosaveStatus) { statuses = append(statuses, s) }
	})
	f.begin(t)
	rt := f.runtime

	if err := rt.Answer(fixtureQ1, "3"); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	f.clock.Advance(time.Second)
	if err := rt.Answer(fixtureQ1, "4"); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	// The first edit's debounce window was reset by the second edit.
	f.clock.Advance(time.Second)
	if got := f.store.saveCount(); got != 0 {
		t.Fatalf("saves after 1s = %d, want 0", got)
	}
	if got := rt.AutosaveStatus(); got != model.AutosaveSaving {
		t.Fatalf("status mid-debounce = %s, want saving", got)
	}

	f.clock.Advance(time.Second)
	if got := f.store.saveCount(); got != 1 {
		t.Fatalf("saves after debounce = %d, want 1", got)
	}
	entry, ok := f.store.saved(rt.AssignmentID(), rt.StudentID())
	if !ok {
		t.Fatal("no autosave entry written")
	}
	if got := entry[fixtureQ1.String()]; got != "4" {
		t.Fatalf("persisted value = %q, want %q (last write wins)", got, "4")
	}
	if got := rt.AutosaveStatus(); got != model.AutosaveSaved {
		t.Fatalf("status = %s, want saved", got)
	}
	if len(statuses) != 1 || statuses[0] != model.AutosaveSaved {
		t.Fatalf("autosave hooks = %v, want [saved]", statuses)
	}
}

func TestAutosaveFailureRecoversOnNextCycle(t *testing.T) {
	f := newRuntimeFixture(t, func(cfg *Config) {
		cfg.Assignment = fixtureAssignment(nil)
	})
	f.begin(t)
	rt := f.runtime
	f.store.setFailing(true)

	if err := rt.Answer(fixtureQ1, "4"); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	f.clock.Advance(2 * time.Second)
	if got := rt.AutosaveStatus(); got != model.AutosaveError {
		t.Fatalf("status after failed save = %s, want error", got)
	}

	// Answering is still allowed; the next cycle retries and clears the error.
	f.store.setFailing(false)
	if err := rt.Answer(fixtureQ2, "9"); err != nil {
		t.Fatalf("Answer during store outage aftermath: %v", err)
	}
	f.clock.Advance(2 * time.Second)
	if got := rt.AutosaveStatus(); got != model.AutosaveSaved {
		t.Fatalf("status after recovery = %s, want saved", got)
	}
	entry, _ := f.store.saved(rt.AssignmentID(), rt.StudentID())
	if len(entry) != 2 {
		t.Fatalf("persisted answers = %d, want 2", len(entry))
	}
}

func TestBeginRestoresAutosavedAnswers(t *testing.T) {
	f := newRuntimeFixture(t, func(cfg *Config) {
		cfg.PriorViolations = 2
	})
	seed := map[string]string{
		fixtureQ1.String(): "4",
		fixtureQ3.String(): "uraian lama",
		"not-a-question":   "ignored",
	}
	if err := f.store.Save(context.Background(), f.runtime.AssignmentID(), f.runtime.StudentID(), seed); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	f.begin(t)

	got := f.runtime.AnswerValues()
	if len(got) != 2 {
		t.Fatalf("restored answers = %d, want 2", len(got))
	}
	if got[fixtureQ1.String()] != "4" || got[fixtureQ3.String()] != "uraian lama" {
		t.Fatalf("restored set = %v", got)
	}
	if got := f.runtime.ViolationCount(); got != 2 {
		t.Fatalf("violation count = %d, want 2 (seeded)", got)
	}
}

func TestBeginSurvivesStoreOutage(t *testing.T) {
	f := newRuntimeFixture(t, nil)
	f.store.setFailing(true)

	f.begin(t)

	if got := f.runtime.Stage(); got != model.StageInProgress {
		t.Fatalf("stage = %s, want IN_PROGRESS", got)
	}
	if got := len(f.runtime.AnswerValues()); got != 0 {
		t.Fatalf("answers = %d, want 0", got)
	}
}

func TestSubmitClearsAutosaveEntry(t *testing.T) {
	f := newRuntimeFixture(t, nil)
	f.begin(t)
	rt := f.runtime

	if err := rt.Answer(fixtureQ1, "4"); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	f.clock.Advance(2 * time.Second)
	if _, ok := f.store.saved(rt.AssignmentID(), rt.StudentID()); !ok {
		t.Fatal("autosave entry missing before submit")
	}

	if _, err := rt.Submit(context.Background(), model.TriggerManual); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, ok := f.store.saved(rt.AssignmentID(), rt.StudentID()); ok {
		t.Fatal("autosave entry still present after submit acknowledgment")
	}
}

// submitDuringSave runs a one-shot hook before delegating Save, so a test
// can end the session while a debounced flush is in flight.
type submitDuringSave struct {
	*memStore
	hook func()
}

func (s *submitDuringSave) Save(ctx context.Context, assignmentID uuid.UUID, studentID int, answers map[string]string) error {
	if h := s.hook; h != nil {
		s.hook = nil
		h()
	}
	return s.memStore.Save(ctx, assignmentID, studentID, answers)
}

func TestSubmitDuringAutosaveFlushLeavesNoEntry(t *testing.T) {
	wrapped := &submitDuringSave{memStore: newMemStore()}
	f := newRuntimeFixture(t, func(cfg *Config) {
		cfg.Store = wrapped
	})
	rt := f.runtime
	wrapped.hook = func() {
		if _, err := rt.Submit(context.Background(), model.TriggerManual); err != nil {
			t.Errorf("Submit during flush: %v", err)
		}
	}
	f.begin(t)

	if err := rt.Answer(fixtureQ1, "4"); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	// The debounce fires; mid-save the session submits and clears its
	// entry. The flush finishing afterwards must not restore it.
	f.clock.Advance(2 * time.Second)

	if got := f.submitter.callCount(); got != 1 {
		t.Fatalf("boundary calls = %d, want 1", got)
	}
	if got := rt.Stage(); got != model.StageSubmitted {
		t.Fatalf("stage = %s, want SUBMITTED", got)
	}
	if _, ok := wrapped.saved(rt.AssignmentID(), rt.StudentID()); ok {
		t.Fatal("autosave entry present after submission; the late flush restored it")
	}
}

func TestExitFlushesAndKeepsEntry(t *testing.T) {
	f := newRuntimeFixture(t, nil)
	f.begin(t)
	rt := f.runtime

	if err := rt.Answer(fixtureQ1, "4"); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	// Exit before the debounce elapses: the flush must be synchronous.
	if err := rt.Exit(context.Background()); err != nil {
		t.Fatalf("Exit: %v", err)
	}

	entry, ok := f.store.saved(rt.AssignmentID(), rt.StudentID())
	if !ok {
		t.Fatal("autosave entry missing after exit")
	}
	if got := entry[fixtureQ1.String()]; got != "4" {
		t.Fatalf("flushed value = %q, want %q", got, "4")
	}
	if got := rt.Stage(); got != model.StageInProgress {
		t.Fatalf("stage = %s, want IN_PROGRESS (resumable)", got)
	}

	// Timers are disarmed: the countdown must not fire a submission.
	f.clock.Advance(5 * time.Minute)
	if got := f.submitter.callCount(); got != 0 {
		t.Fatalf("boundary calls after exit = %d, want 0", got)
	}
}

func TestViolationLimitForcesSubmission(t *testing.T) {
	var violations []int
	f := newRuntimeFixture(t, func(cfg *Config) {
		cfg.Assignment = fixtureAssignment(nil)
		cfg.OnViolation = func(_ Signal, count int) { violations = append(violations, count) }
	})
	f.begin(t)
	rt := f.runtime

	// Past the safe window.
	f.clock.Advance(2 * time.Second)

	f.signals.Push(SignalFullscreenExit)
	f.clock.Advance(3 * time.Second)
	f.signals.Push(SignalTabHidden)
	f.clock.Advance(3 * time.Second)
	f.signals.Push(SignalWindowBlur)

	if got := rt.Stage(); got != model.StageSubmitted {
		t.Fatalf("stage after 3 violations = %s, want SUBMITTED", got)
	}
	if got := f.submitter.callCount(); got != 1 {
		t.Fatalf("boundary calls = %d, want 1", got)
	}
	sub := f.submitter.lastSubmission()
	if sub.Trigger != model.TriggerViolationLimit {
		t.Fatalf("trigger = %s, want VIOLATION_LIMIT", sub.Trigger)
	}
	if sub.ViolationCount != 3 {
		t.Fatalf("submitted violation count = %d, want 3", sub.ViolationCount)
	}
	if len(violations) != 3 || violations[2] != 3 {
		t.Fatalf("violation hooks = %v, want [1 2 3]", violations)
	}

	// The source was stopped on submission; late signals change nothing.
	f.clock.Advance(3 * time.Second)
	f.signals.Push(SignalFullscreenExit)
	if got := rt.ViolationCount(); got != 3 {
		t.Fatalf("count after late signal = %d, want 3", got)
	}
}

func TestOnlineFlagRoundTrips(t *testing.T) {
	f := newRuntimeFixture(t, nil)
	if !f.runtime.Online() {
		t.Fatal("runtime starts offline, want online")
	}
	f.runtime.SetOnline(false)
	if f.runtime.Online() {
		t.Fatal("SetOnline(false) not observed")
	}
	f.runtime.SetOnline(true)
	if !f.runtime.Online() {
		t.Fatal("SetOnline(true) not observed")
	}
}
