package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/ruangujian/asesmen-backend/internal/repository"
)

// MonitorService orchestrates live assessment monitoring business logic.
type MonitorService struct {
	monitorRepo *repository.MonitorRepository
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(monitorRepo *repository.MonitorRepository) *MonitorService {
	return &MonitorService{monitorRepo: monitorRepo}
}

// ProgressSnapshot holds the answered count and violation count for every
// in-progress student.
type ProgressSnapshot struct {
	InProgress      []int         `json:"in_progress"`
	AnsweredCounts  map[int]int64 `json:"answered_counts"`
	ViolationCounts map[int]int64 `json:"violation_counts"`
	TotalViolations int64         `json:"total_violations"`
}

// GetProgress returns the live snapshot for an assignment. The three data
// fetches are independent and run concurrently.
func (s *MonitorService) GetProgress(ctx context.Context, assignmentID uuid.UUID) (*ProgressSnapshot, error) {
	snapshot := &ProgressSnapshot{
		AnsweredCounts:  make(map[int]int64),
		ViolationCounts: make(map[int]int64),
	}

	var (
		inProgress      []int
		answeredCounts  map[int]int64
		violationCounts map[int]int64
		inProgressErr   error
		answeredErr     error
		violationErr    error
		wg              sync.WaitGroup
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		inProgress, inProgressErr = s.monitorRepo.GetInProgressStudentIDs(ctx, assignmentID)
	}()
	go func() {
		defer wg.Done()
		answeredCounts, answeredErr = s.monitorRepo.GetAnsweredCounts(ctx, assignmentID)
	}()
	go func() {
		defer wg.Done()
		violationCounts, violationErr = s.monitorRepo.GetViolationCounts(ctx, assignmentID)
	}()
	wg.Wait()

	// Session and answer data are critical; violation counts are best-effort.
	if inProgressErr != nil {
		return nil, inProgressErr
	}
	if answeredErr != nil {
		return nil, answeredErr
	}

	snapshot.InProgress = inProgress
	if answeredCounts != nil {
		snapshot.AnsweredCounts = answeredCounts
	}
	if violationErr == nil && violationCounts != nil {
		snapshot.ViolationCounts = violationCounts
		for _, count := range violationCounts {
			snapshot.TotalViolations += count
		}
	}

	return snapshot, nil
}
