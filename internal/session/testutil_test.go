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

func nopLogger() zerolog.Logger { return zerolog.Nop() }

// ─── Fake clock ────────────────────────────────────────────────────────

type fakeTimer struct {
	clock   *fakeClock
	when    time.Time
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// fakeClock drives AfterFunc timers deterministically. Advance fires due
// timers in chronological order, tolerating callbacks that schedule new
// timers or stop existing ones.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) TimerHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, when: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.when.After(target) {
				continue
			}
			if next == nil || t.when.Before(next.when) {
				next = t
			}
		}
		if next == nil {
			break
		}
		if next.when.After(c.now) {
			c.now = next.when
		}
		next.fired = true
		c.mu.Unlock()
		next.fn()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

// ─── Fake store ────────────────────────────────────────────────────────

type memStore struct {
	mu      sync.Mutex
	entries map[string]map[string]string
	saves   int
	failing bool
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]map[string]string)}
}

func storeKey(assignmentID uuid.UUID, studentID int) string {
	return fmt.Sprintf("%d:%s", studentID, assignmentID)
}

func (s *memStore) Save(_ context.Context, assignmentID uuid.UUID, studentID int, answers map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("store unavailable")
	}
	cp := make(map[string]string, len(answers))
	for k, v := range answers {
		cp[k] = v
	}
	s.entries[storeKey(assignmentID, studentID)] = cp
	s.saves++
	return nil
}

func (s *memStore) Load(_ context.Context, assignmentID uuid.UUID, studentID int) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, errors.New("store unavailable")
	}
	cp := make(map[string]string)
	for k, v := range s.entries[storeKey(assignmentID, studentID)] {
		cp[k] = v
	}
	return cp, nil
}

func (s *memStore) Clear(_ context.Context, assignmentID uuid.UUID, studentID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, storeKey(assignmentID, studentID))
	return nil
}

func (s *memStore) saved(assignmentID uuid.UUID, studentID int) (map[string]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[storeKey(assignmentID, studentID)]
	return e, ok
}

func (s *memStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *memStore) setFailing(failing bool) {
	s.mu.Lock()
	s.failing = failing
	s.mu.Unlock()
}

// ─── Fake submitter ────────────────────────────────────────────────────

type fakeSubmitter struct {
	mu      sync.Mutex
	calls   int
	failing bool
	last    *Submission
}

func (f *fakeSubmitter) Submit(_ context.Context, sub *Submission) (*Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failing {
		return nil, errors.New("backend rejected submission")
	}
	f.last = sub
	return &Receipt{Stats: model.SubmissionStats{AnsweredQuestions: len(sub.Answers)}}, nil
}

func (f *fakeSubmitter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSubmitter) lastSubmission() *Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *fakeSubmitter) setFailing(failing bool) {
	f.mu.Lock()
	f.failing = failing
	f.mu.Unlock()
}

// ─── Assignment fixture ────────────────────────────────────────────────

var (
	fixtureQ1 = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	fixtureQ2 = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	fixtureQ3 = uuid.MustParse("33333333-3333-3333-3333-333333333333")
)

func fixtureAssignment(durationSeconds *int) *model.AssignmentPayload {
	return &model.AssignmentPayload{
		AssignmentID:    uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"),
		Title:           "Ujian Harian Matematika",
		TotalMarks:      30,
		DurationSeconds: durationSeconds,
		MaxViolations:   3,
		Questions: []model.QuestionForStudent{
			{ID: fixtureQ1, Type: model.QuestionTypeMCQ, Prompt: "2+2?", Options: []string{"3", "4", "5"}, Marks: 10, OrderNum: 0},
			{ID: fixtureQ2, Type: model.QuestionTypeMCQ, Prompt: "3*3?", Options: []string{"6", "9"}, Marks: 10, OrderNum: 1},
			{ID: fixtureQ3, Type: model.QuestionTypeText, Prompt: "Jelaskan.", Marks: 10, OrderNum: 2},
		},
	}
}

func intPtr(v int) *int { return &v }
