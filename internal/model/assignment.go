package model

import (
	"time"

	"github.com/google/uuid"
)

// AssignmentStatus enumerates the possible states of an assignment.
type AssignmentStatus string

const (
	AssignmentStatusDraft     AssignmentStatus = "DRAFT"
	AssignmentStatusPublished AssignmentStatus = "PUBLISHED"
	AssignmentStatusClosed    AssignmentStatus = "CLOSED"
)

// Assignment represents a timed, integrity-monitored assessment.
type Assignment struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	AuthorID int       `json:"author_id"`
	// TotalMarks is the sum of marks across all questions. Kept on the row
	// so the grading invariant (awarded sum never exceeds it) is checkable
	// without loading every question.
	TotalMarks int `json:"total_marks"`
	// DurationSeconds is nil for untimed assignments. No timer is armed in
	// that case; only the deadline gates late joins.
	DurationSeconds *int             `json:"duration_seconds,omitempty"`
	Deadline        *time.Time       `json:"deadline,omitempty"`
	EntryToken      string           `json:"entry_token,omitempty"`
	MaxViolations   int              `json:"max_violations"`
	QuestionCount   int              `json:"question_count"`
	Status          AssignmentStatus `json:"status"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// CreateAssignmentRequest is the payload for creating a new assignment.
type CreateAssignmentRequest struct {
	Title           string     `json:"title" binding:"required,min=3,max=255"`
	DurationSeconds *int       `json:"duration_seconds" binding:"omitempty,min=60,max=28800"`
	Deadline        *time.Time `json:"deadline" binding:"omitempty"`
	EntryToken      string     `json:"entry_token" binding:"omitempty,min=4,max=20"`
	MaxViolations   *int       `json:"max_violations" binding:"omitempty,min=1,max=10"`
}

// AssignmentPayload is the Redis-cached payload sent to students (no correct answers).
type AssignmentPayload struct {
	AssignmentID    uuid.UUID            `json:"assignment_id"`
	Title           string               `json:"title"`
	TotalMarks      int                  `json:"total_marks"`
	DurationSeconds *int                 `json:"duration_seconds,omitempty"`
	Deadline        *time.Time           `json:"deadline,omitempty"`
	MaxViolations   int                  `json:"max_violations"`
	Questions       []QuestionForStudent `json:"questions"`
}
