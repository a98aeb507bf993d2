package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ruangujian/asesmen-backend/internal/model"
)

// Store is the durable autosave persistence for in-progress answers, keyed
// by (student, assignment). It fails independently of the submission
// boundary: a write-through here never depends on it.
type Store interface {
	// Save replaces the stored answer set with the given snapshot.
	Save(ctx context.Context, assignmentID uuid.UUID, studentID int, answers map[string]string) error
	// Load returns the stored answer set, or an empty map if none exists.
	Load(ctx context.Context, assignmentID uuid.UUID, studentID int) (map[string]string, error)
	// Clear removes the entry. Called only after submission acknowledgment.
	Clear(ctx context.Context, assignmentID uuid.UUID, studentID int) error
}

// Submission is the finalized answer set handed to the submission boundary.
type Submission struct {
	AssignmentID   uuid.UUID
	StudentID      int
	Trigger        model.SubmitTrigger
	Answers        map[string]string // question id → answer value
	ViolationCount int
	SubmittedAt    time.Time
}

// Receipt is the boundary's acknowledgment of a submission.
type Receipt struct {
	Stats model.SubmissionStats `json:"stats"`
}

// Submitter is the external submission boundary. It must be safe to call
// more than once for the same session; the runtime guarantees at most one
// effective call per terminal transition under normal operation.
type Submitter interface {
	Submit(ctx context.Context, sub *Submission) (*Receipt, error)
}
