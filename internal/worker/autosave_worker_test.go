package worker

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ruangujian/asesmen-backend/internal/service"
)

// The autosave worker decodes jobs the submission service enqueues; the
// two sides of the queue must agree on the wire format.
func TestAnswerQueueWireFormat(t *testing.T) {
	job := service.AnswerJob{
		AssignmentID: uuid.New().String(),
		StudentID:    7,
		QuestionID:   uuid.New().String(),
		Value:        "jawaban",
		Timestamp:    time.Now().Unix(),
	}
	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal job: %v", err)
	}

	var payload answerPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}

	if payload.AssignmentID != job.AssignmentID ||
		payload.StudentID != job.StudentID ||
		payload.QID != job.QuestionID ||
		payload.Value != job.Value ||
		payload.Timestamp != job.Timestamp {
		t.Fatalf("queue payload mismatch:\n got %+v\nwant %+v", payload, job)
	}
}
