package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/ruangujian/asesmen-backend/internal/config"
	"github.com/ruangujian/asesmen-backend/internal/session"
	"github.com/ruangujian/asesmen-backend/internal/store"
)

// ViolationJob is the payload queued for the violation worker.
type ViolationJob struct {
	AssignmentID string `json:"assignment_id"`
	StudentID    int    `json:"student_id"`
	Signal       string `json:"signal"`
	Count        int    `json:"count"`
	Timestamp    int64  `json:"timestamp"`
}

// IntegrityService fans a counted violation out to its three consumers:
// the Redis counter (survives page reloads), the persistence queue, and
// the teacher monitor channel.
type IntegrityService struct {
	answerStore *store.AnswerStore
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewIntegrityService creates a new IntegrityService.
func NewIntegrityService(answerStore *store.AnswerStore, rdb *redis.Client, log zerolog.Logger) *IntegrityService {
	return &IntegrityService{
		answerStore: answerStore,
		rdb:         rdb,
		log:         log.With().Str("component", "integrity_service").Logger(),
	}
}

// RecordViolation registers one counted violation. The runtime's monitor
// already applied the safe window and cooldown; everything reaching this
// point is a real violation.
func (s *IntegrityService) RecordViolation(ctx context.Context, assignmentID uuid.UUID, studentID int, sig session.Signal, count int) {
	if _, err := s.answerStore.IncrViolations(ctx, assignmentID, studentID); err != nil {
		s.log.Warn().Err(err).Msg("Violation counter increment failed")
	}

	job := ViolationJob{
		AssignmentID: assignmentID.String(),
		StudentID:    studentID,
		Signal:       string(sig),
		Count:        count,
		Timestamp:    time.Now().Unix(),
	}
	data, err := json.Marshal(job)
	if err != nil {
		return
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, data).Err(); err != nil {
		s.log.Error().Err(err).Msg("Violation enqueue failed")
	}

	ev, err := json.Marshal(MonitorEvent{
		Type:      "violation",
		StudentID: studentID,
		Detail:    string(sig),
		Count:     count,
		Timestamp: job.Timestamp,
	})
	if err != nil {
		return
	}
	channel := config.CacheKey.AssignmentMonitorChannel(assignmentID.String())
	if err := s.rdb.Publish(ctx, channel, ev).Err(); err != nil {
		s.log.Debug().Err(err).Msg("Monitor event publish failed")
	}
}

// PriorViolations returns the persisted counter used to seed a resumed
// runtime, so a page reload cannot reset progress toward forced submission.
func (s *IntegrityService) PriorViolations(ctx context.Context, assignmentID uuid.UUID, studentID int) int {
	n, err := s.answerStore.GetViolations(ctx, assignmentID, studentID)
	if err != nil {
		s.log.Warn().Err(err).Msg("Violation counter read failed, assuming zero")
		return 0
	}
	return n
}
