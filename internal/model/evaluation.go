package model

import (
	"github.com/google/uuid"
)

// Correctness is the tri-state evaluation outcome. PENDING is a first-class
// state for subjective answers awaiting manual grading, distinct from
// INCORRECT.
type Correctness string

const (
	CorrectnessPending   Correctness = "PENDING"
	CorrectnessCorrect   Correctness = "CORRECT"
	CorrectnessIncorrect Correctness = "INCORRECT"
)

// Resolved reports whether the answer has been graded.
func (c Correctness) Resolved() bool {
	return c == CorrectnessCorrect || c == CorrectnessIncorrect
}

// Bool maps the tri-state onto the wire representation used by older
// clients: true/false when resolved, null while pending.
func (c Correctness) Bool() *bool {
	switch c {
	case CorrectnessCorrect:
		v := true
		return &v
	case CorrectnessIncorrect:
		v := false
		return &v
	default:
		return nil
	}
}

// EvaluationRecord is the grading outcome for one answered question.
// Objective questions are resolved by the engine; subjective ones start
// PENDING and are resolved by a manual grading action.
type EvaluationRecord struct {
	QuestionID     uuid.UUID   `json:"question_id"`
	AwardedMarks   int         `json:"awarded_marks"`
	TeacherComment string      `json:"teacher_comment,omitempty"`
	Correctness    Correctness `json:"correctness"`
}

// SubmissionStats is derived from a set of evaluation records. Never
// persisted; recomputing on the same inputs yields the same output.
type SubmissionStats struct {
	TotalQuestions    int     `json:"total_questions"`
	AnsweredQuestions int     `json:"answered_questions"`
	CorrectCount      int     `json:"correct_count"`
	IncorrectCount    int     `json:"incorrect_count"`
	PendingCount      int     `json:"pending_count"`
	AwardedMarks      int     `json:"awarded_marks"`
	TotalMarks        int     `json:"total_marks"`
	PercentageScore   float64 `json:"percentage_score"`
	IsPassed          bool    `json:"is_passed"`
}

// GradeAnswerRequest is the payload for manually grading a subjective answer.
type GradeAnswerRequest struct {
	AwardedMarks   *int   `json:"awarded_marks" binding:"required,min=0"`
	IsCorrect      *bool  `json:"is_correct" binding:"required"`
	TeacherComment string `json:"teacher_comment" binding:"omitempty,max=2000"`
}
