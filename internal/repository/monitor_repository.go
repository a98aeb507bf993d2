package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MonitorRepository provides data access for the live assessment monitoring
// feature: who is still working, how far along they are, and how many
// integrity violations have been recorded.
type MonitorRepository struct {
	pool *pgxpool.Pool
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool) *MonitorRepository {
	return &MonitorRepository{pool: pool}
}

// GetInProgressStudentIDs returns all student IDs with an active session
// for the given assignment.
func (r *MonitorRepository) GetInProgressStudentIDs(ctx context.Context, assignmentID uuid.UUID) ([]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT student_id FROM assessment_sessions
		 WHERE assignment_id = $1 AND stage = 'IN_PROGRESS'`, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetAnsweredCounts returns the count of answered questions for every
// student with at least one persisted answer in the given assignment.
func (r *MonitorRepository) GetAnsweredCounts(ctx context.Context, assignmentID uuid.UUID) (map[int]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT student_id, COUNT(*)
		 FROM student_answers
		 WHERE assignment_id = $1
		 GROUP BY student_id`, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int64)
	for rows.Next() {
		var sid int
		var count int64
		if err := rows.Scan(&sid, &count); err != nil {
			return nil, err
		}
		counts[sid] = count
	}
	return counts, rows.Err()
}

// GetViolationCounts returns the number of violation events recorded per
// student in the given assignment.
func (r *MonitorRepository) GetViolationCounts(ctx context.Context, assignmentID uuid.UUID) (map[int]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT student_id, COUNT(*)
		 FROM violations
		 WHERE assignment_id = $1
		 GROUP BY student_id`, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int64)
	for rows.Next() {
		var sid int
		var count int64
		if err := rows.Scan(&sid, &count); err != nil {
			return nil, err
		}
		counts[sid] = count
	}
	return counts, rows.Err()
}
