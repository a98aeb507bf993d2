package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/ruangujian/asesmen-backend/internal/config"
	"github.com/ruangujian/asesmen-backend/internal/evaluation"
	"github.com/ruangujian/asesmen-backend/internal/model"
	"github.com/ruangujian/asesmen-backend/internal/repository"
	"github.com/ruangujian/asesmen-backend/internal/session"
	"github.com/ruangujian/asesmen-backend/internal/store"
)

// SubmissionJob is the payload queued for the scoring worker. It carries
// everything needed to persist the submission, so the worker never has to
// re-derive grading results.
type SubmissionJob struct {
	AssignmentID string                   `json:"assignment_id"`
	StudentID    int                      `json:"student_id"`
	Trigger      model.SubmitTrigger      `json:"trigger"`
	Answers      map[string]string        `json:"answers"`
	Records      []model.EvaluationRecord `json:"records"`
	Violations   int                      `json:"violations"`
	Score        float64                  `json:"score"`
	SubmittedAt  int64                    `json:"submitted_at"`
}

// MonitorEvent is published on the assignment's monitor channel so teacher
// dashboards update live.
type MonitorEvent struct {
	Type      string `json:"type"`
	StudentID int    `json:"student_id"`
	Detail    string `json:"detail,omitempty"`
	Count     int    `json:"count,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// SubmissionService finalizes sessions. It implements session.Submitter:
// grading happens in RAM against the Redis-cached answer key, the stage
// transition is a guarded UPDATE, and the durable writes (answers,
// evaluations) are queued for the scoring worker.
type SubmissionService struct {
	assignments *AssignmentService
	sessionRepo *repository.SessionRepository
	answerStore *store.AnswerStore
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(
	assignments *AssignmentService,
	sessionRepo *repository.SessionRepository,
	answerStore *store.AnswerStore,
	rdb *redis.Client,
	log zerolog.Logger,
) *SubmissionService {
	return &SubmissionService{
		assignments: assignments,
		sessionRepo: sessionRepo,
		answerStore: answerStore,
		rdb:         rdb,
		log:         log.With().Str("component", "submission_service").Logger(),
	}
}

var _ session.Submitter = (*SubmissionService)(nil)

// Submit grades and finalizes one submission. Idempotent at the database:
// the stage-guarded UPDATE makes a duplicate call a no-op there, and the
// recomputed stats are identical because grading is deterministic.
func (s *SubmissionService) Submit(ctx context.Context, sub *session.Submission) (*session.Receipt, error) {
	payload, err := s.assignments.GetPayload(ctx, sub.AssignmentID)
	if err != nil {
		return nil, fmt.Errorf("load payload: %w", err)
	}
	key, err := s.assignments.GetAnswerKey(ctx, sub.AssignmentID)
	if err != nil {
		return nil, fmt.Errorf("load answer key: %w", err)
	}
	marks, err := s.assignments.GetMarks(ctx, sub.AssignmentID)
	if err != nil {
		// The payload carries marks too, so a missing marks hash degrades
		// rather than fails.
		s.log.Warn().Err(err).Msg("Marks cache read failed, grading from payload marks")
		marks = nil
	}

	records := evaluation.EvaluateWithKey(payload.Questions, key, marks, sub.Answers)
	stats := evaluation.ComputeStats(records, len(payload.Questions), payload.TotalMarks)

	// Queue the durable writes before flipping the stage: if the stage
	// update fails, the caller retries and the worker's upserts stay
	// idempotent.
	job := SubmissionJob{
		AssignmentID: sub.AssignmentID.String(),
		StudentID:    sub.StudentID,
		Trigger:      sub.Trigger,
		Answers:      sub.Answers,
		Records:      records,
		Violations:   sub.ViolationCount,
		Score:        stats.PercentageScore,
		SubmittedAt:  sub.SubmittedAt.Unix(),
	}
	jobJSON, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal submission job: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistSubmissionsQueue, jobJSON).Err(); err != nil {
		return nil, fmt.Errorf("queue submission: %w", err)
	}

	updated, err := s.sessionRepo.MarkSubmitted(ctx, sub.AssignmentID, sub.StudentID,
		sub.Trigger, sub.ViolationCount, stats.PercentageScore)
	if err != nil {
		return nil, fmt.Errorf("mark submitted: %w", err)
	}
	if !updated {
		s.log.Warn().
			Str("assignment_id", sub.AssignmentID.String()).
			Int("student_id", sub.StudentID).
			Msg("Duplicate submission absorbed by stage guard")
	}

	// The violation counter has served its purpose once the session ends.
	if err := s.answerStore.ClearViolations(ctx, sub.AssignmentID, sub.StudentID); err != nil {
		s.log.Warn().Err(err).Msg("Violation counter cleanup failed")
	}

	s.publishMonitorEvent(ctx, sub.AssignmentID, MonitorEvent{
		Type:      "submitted",
		StudentID: sub.StudentID,
		Detail:    string(sub.Trigger),
		Timestamp: time.Now().Unix(),
	})

	s.log.Info().
		Str("assignment_id", sub.AssignmentID.String()).
		Int("student_id", sub.StudentID).
		Str("trigger", string(sub.Trigger)).
		Float64("score", stats.PercentageScore).
		Msg("Submission graded")

	return &session.Receipt{Stats: stats}, nil
}

// AnswerJob is the payload queued for the autosave worker, one per answer
// edit, forming the durable answer trail in PostgreSQL.
type AnswerJob struct {
	AssignmentID string `json:"assignment_id"`
	StudentID    int    `json:"student_id"`
	QuestionID   string `json:"q_id"`
	Value        string `json:"value"`
	Timestamp    int64  `json:"timestamp"`
}

// QueueAnswerPersist enqueues one answer edit for background persistence.
// Best effort: the Redis autosave hash is the resume source of truth, the
// PostgreSQL trail just has to catch up eventually.
func (s *SubmissionService) QueueAnswerPersist(ctx context.Context, assignmentID uuid.UUID, studentID int, questionID, value string) {
	job := AnswerJob{
		AssignmentID: assignmentID.String(),
		StudentID:    studentID,
		QuestionID:   questionID,
		Value:        value,
		Timestamp:    time.Now().Unix(),
	}
	data, err := json.Marshal(job)
	if err != nil {
		return
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, data).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Answer enqueue failed")
	}
}

func (s *SubmissionService) publishMonitorEvent(ctx context.Context, assignmentID uuid.UUID, ev MonitorEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	channel := config.CacheKey.AssignmentMonitorChannel(assignmentID.String())
	if err := s.rdb.Publish(ctx, channel, data).Err(); err != nil {
		s.log.Debug().Err(err).Msg("Monitor event publish failed")
	}
}
