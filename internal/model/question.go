package model

import (
	"github.com/google/uuid"
)

type QuestionType string

const (
	QuestionTypeMCQ  QuestionType = "MCQ"
	QuestionTypeText QuestionType = "TEXT"
	QuestionTypeCode QuestionType = "CODE"
)

// Objective reports whether answers of this type are graded automatically.
func (t QuestionType) Objective() bool {
	return t == QuestionTypeMCQ
}

// Question represents a single assignment question. Immutable once the
// assignment is published.
type Question struct {
	ID           uuid.UUID    `json:"id"`
	AssignmentID uuid.UUID    `json:"assignment_id"`
	Type         QuestionType `json:"type"`
	Prompt       string       `json:"prompt"`
	Options      []string     `json:"options,omitempty"` // MCQ only
	Marks        int          `json:"marks"`
	// CorrectIndex points into Options for MCQ questions. Never serialized
	// into the student payload.
	CorrectIndex *int `json:"correct_index,omitempty"`
	OrderNum     int  `json:"order_num"`
}

// CorrectOptionText returns the option text at the correct index, or ""
// when the question is not an auto-gradable MCQ.
func (q *Question) CorrectOptionText() string {
	if q.Type != QuestionTypeMCQ || q.CorrectIndex == nil {
		return ""
	}
	if *q.CorrectIndex < 0 || *q.CorrectIndex >= len(q.Options) {
		return ""
	}
	return q.Options[*q.CorrectIndex]
}

// QuestionForStudent is a question without the correct answer, sent to students.
type QuestionForStudent struct {
	ID       uuid.UUID    `json:"id"`
	Type     QuestionType `json:"type"`
	Prompt   string       `json:"prompt"`
	Options  []string     `json:"options,omitempty"`
	Marks    int          `json:"marks"`
	OrderNum int          `json:"order_num"`
}

// AddQuestionRequest is the payload for adding a question to an assignment.
type AddQuestionRequest struct {
	Type         string   `json:"type" binding:"required,oneof=MCQ TEXT CODE"`
	Prompt       string   `json:"prompt" binding:"required,min=1,max=4000"`
	Options      []string `json:"options" binding:"omitempty,max=10,dive,max=500"`
	Marks        int      `json:"marks" binding:"required,min=1,max=100"`
	CorrectIndex *int     `json:"correct_index" binding:"omitempty,min=0"`
	OrderNum     int      `json:"order_num" binding:"min=0"`
}

// ReplaceQuestionsRequest is the payload for bulk replacing questions.
type ReplaceQuestionsRequest struct {
	Questions []AddQuestionRequest `json:"questions" binding:"dive"`
}
