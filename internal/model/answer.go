package model

import (
	"time"

	"github.com/google/uuid"
)

// Answer is a student's answer to one question. At most one Answer exists
// per question per session; a later write replaces value and timestamp.
type Answer struct {
	QuestionID uuid.UUID `json:"question_id"`
	// Value holds the selected option text for MCQ, free text otherwise.
	Value   string    `json:"value"`
	SavedAt time.Time `json:"saved_at"`
}
