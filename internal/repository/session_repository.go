package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ruangujian/asesmen-backend/internal/model"
)

// SessionResult combines student data with their session details for the
// teacher-facing result list.
type SessionResult struct {
	StudentID      int                  `json:"student_id"`
	Name           string               `json:"name"`
	NIS            string               `json:"nis"`
	Stage          model.Stage          `json:"stage"`
	SubmitTrigger  *model.SubmitTrigger `json:"submit_trigger"`
	ViolationCount int                  `json:"violation_count"`
	FinalScore     *float64             `json:"final_score"`
	StartedAt      *time.Time           `json:"started_at"`
	FinishedAt     *time.Time           `json:"finished_at"`
}

// SessionRepository handles assessment session data access.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// GetByAssignmentAndStudent retrieves a session for an assignment-student pair.
func (r *SessionRepository) GetByAssignmentAndStudent(ctx context.Context, assignmentID uuid.UUID, studentID int) (*model.AssessmentSession, error) {
	s := &model.AssessmentSession{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, assignment_id, student_id, stage, started_at, finished_at,
		        submit_trigger, violation_count, final_score
		 FROM assessment_sessions
		 WHERE assignment_id = $1 AND student_id = $2`, assignmentID, studentID,
	).Scan(&s.ID, &s.AssignmentID, &s.StudentID, &s.Stage, &s.StartedAt,
		&s.FinishedAt, &s.SubmitTrigger, &s.ViolationCount, &s.FinalScore)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a session row when a student joins an assignment. Joining
// twice is a no-op: ON CONFLICT keeps the original row and its start time.
func (r *SessionRepository) Create(ctx context.Context, s *model.AssessmentSession) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO assessment_sessions (assignment_id, student_id, stage)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (assignment_id, student_id) DO NOTHING
		 RETURNING id, started_at`,
		s.AssignmentID, s.StudentID, model.StageInProgress,
	).Scan(&s.ID, &s.StartedAt)
}

// MarkSubmitted finalizes a session exactly once: the stage guard makes a
// duplicate submission a zero-row update, which the caller can detect.
func (r *SessionRepository) MarkSubmitted(ctx context.Context, assignmentID uuid.UUID, studentID int, trigger model.SubmitTrigger, violations int, score float64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE assessment_sessions
		 SET stage = $1, submit_trigger = $2, violation_count = $3,
		     final_score = $4, finished_at = NOW()
		 WHERE assignment_id = $5 AND student_id = $6 AND stage <> $1`,
		model.StageSubmitted, trigger, violations, score, assignmentID, studentID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateViolationCount persists the running violation counter.
func (r *SessionRepository) UpdateViolationCount(ctx context.Context, assignmentID uuid.UUID, studentID int, count int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE assessment_sessions
		 SET violation_count = GREATEST(violation_count, $1)
		 WHERE assignment_id = $2 AND student_id = $3`,
		count, assignmentID, studentID)
	return err
}

// UpdateFinalScore recomputes the stored score, used after manual grading.
func (r *SessionRepository) UpdateFinalScore(ctx context.Context, assignmentID uuid.UUID, studentID int, score float64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE assessment_sessions SET final_score = $1
		 WHERE assignment_id = $2 AND student_id = $3`,
		score, assignmentID, studentID)
	return err
}

// ListByStudent retrieves all sessions for a given student.
func (r *SessionRepository) ListByStudent(ctx context.Context, studentID int) ([]model.AssessmentSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, assignment_id, student_id, stage, started_at, finished_at,
		        submit_trigger, violation_count, final_score
		 FROM assessment_sessions
		 WHERE student_id = $1
		 ORDER BY started_at DESC`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.AssessmentSession
	for rows.Next() {
		var s model.AssessmentSession
		if err := rows.Scan(&s.ID, &s.AssignmentID, &s.StudentID, &s.Stage, &s.StartedAt,
			&s.FinishedAt, &s.SubmitTrigger, &s.ViolationCount, &s.FinalScore); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// ListByAssignment retrieves all student results for an assignment.
func (r *SessionRepository) ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]SessionResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.name, s.nis, ses.stage, ses.submit_trigger,
		        ses.violation_count, ses.final_score, ses.started_at, ses.finished_at
		 FROM assessment_sessions ses
		 JOIN students s ON ses.student_id = s.id
		 WHERE ses.assignment_id = $1
		 ORDER BY s.name ASC`, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SessionResult
	for rows.Next() {
		var res SessionResult
		if err := rows.Scan(&res.StudentID, &res.Name, &res.NIS, &res.Stage,
			&res.SubmitTrigger, &res.ViolationCount, &res.FinalScore,
			&res.StartedAt, &res.FinishedAt); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}
