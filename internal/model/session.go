package model

import (
	"time"

	"github.com/google/uuid"
)

// Stage enumerates assessment session phases. Transitions only advance
// forward; SUBMITTED is terminal.
type Stage string

const (
	StageOverview     Stage = "OVERVIEW"
	StageInstructions Stage = "INSTRUCTIONS"
	StageInProgress   Stage = "IN_PROGRESS"
	StageSubmitted    Stage = "SUBMITTED"
)

var stageOrder = map[Stage]int{
	StageOverview:     0,
	StageInstructions: 1,
	StageInProgress:   2,
	StageSubmitted:    3,
}

// CanAdvanceTo reports whether next is the immediate forward transition.
func (s Stage) CanAdvanceTo(next Stage) bool {
	cur, ok := stageOrder[s]
	if !ok {
		return false
	}
	n, ok := stageOrder[next]
	if !ok {
		return false
	}
	return n == cur+1
}

// Terminal reports whether no transition can leave this stage.
func (s Stage) Terminal() bool {
	return s == StageSubmitted
}

// SubmitTrigger identifies what caused a session to finalize.
type SubmitTrigger string

const (
	TriggerManual         SubmitTrigger = "MANUAL"
	TriggerTimerExpiry    SubmitTrigger = "TIMER_EXPIRY"
	TriggerViolationLimit SubmitTrigger = "VIOLATION_LIMIT"
)

// AutosaveStatus reflects the state of the debounced local save cycle.
type AutosaveStatus string

const (
	AutosaveSaved  AutosaveStatus = "saved"
	AutosaveSaving AutosaveStatus = "saving"
	AutosaveError  AutosaveStatus = "error"
)

// AssessmentSession is the persisted session row for a student's attempt.
type AssessmentSession struct {
	ID             uuid.UUID      `json:"id"`
	AssignmentID   uuid.UUID      `json:"assignment_id"`
	StudentID      int            `json:"student_id"`
	Stage          Stage          `json:"stage"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     *time.Time     `json:"finished_at,omitempty"`
	SubmitTrigger  *SubmitTrigger `json:"submit_trigger,omitempty"`
	ViolationCount int            `json:"violation_count"`
	FinalScore     *float64       `json:"final_score,omitempty"`
}

// SessionState is returned on page reload so the client can resume:
// autosaved answers, the authoritative remaining time, and the violation
// count accumulated so far.
type SessionState struct {
	AssignmentID     uuid.UUID         `json:"assignment_id"`
	StudentID        int               `json:"student_id"`
	Stage            Stage             `json:"stage"`
	AutosavedAnswers map[string]string `json:"autosaved_answers"`
	RemainingSeconds *float64          `json:"remaining_seconds,omitempty"`
	ViolationCount   int               `json:"violation_count"`
}

// JoinAssignmentRequest is the payload for a student joining an assignment.
type JoinAssignmentRequest struct {
	EntryToken string `json:"entry_token" binding:"required,min=4,max=20"`
}
