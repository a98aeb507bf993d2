package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ruangujian/asesmen-backend/internal/model"
)

const assignmentColumns = `id, title, author_id, total_marks, duration_seconds, deadline,
	        entry_token, max_violations, question_count, status, created_at, updated_at`

// AssignmentRepository handles assignment data access.
type AssignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository creates a new AssignmentRepository.
func NewAssignmentRepository(pool *pgxpool.Pool) *AssignmentRepository {
	return &AssignmentRepository{pool: pool}
}

func scanAssignment(row pgx.Row) (*model.Assignment, error) {
	a := &model.Assignment{}
	err := row.Scan(&a.ID, &a.Title, &a.AuthorID, &a.TotalMarks, &a.DurationSeconds,
		&a.Deadline, &a.EntryToken, &a.MaxViolations, &a.QuestionCount,
		&a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetByID retrieves an assignment by its UUID.
func (r *AssignmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	return scanAssignment(r.pool.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`, id))
}

// GetByEntryToken retrieves a published assignment by its entry token.
func (r *AssignmentRepository) GetByEntryToken(ctx context.Context, token string) (*model.Assignment, error) {
	return scanAssignment(r.pool.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM assignments
		 WHERE entry_token = $1 AND status = $2`,
		token, model.AssignmentStatusPublished))
}

// Create inserts a new assignment in DRAFT status.
func (r *AssignmentRepository) Create(ctx context.Context, a *model.Assignment) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO assignments (title, author_id, duration_seconds, deadline, entry_token, max_violations, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		a.Title, a.AuthorID, a.DurationSeconds, a.Deadline,
		a.EntryToken, a.MaxViolations, a.Status,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

// UpdateStatus updates an assignment's status.
func (r *AssignmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.AssignmentStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE assignments SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	return err
}

// SyncQuestionTotals recomputes total_marks and question_count from the
// questions table. Called after any question mutation so the stored totals
// never drift from the question set.
func (r *AssignmentRepository) SyncQuestionTotals(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE assignments a
		 SET total_marks = q.marks, question_count = q.count, updated_at = NOW()
		 FROM (
		     SELECT COALESCE(SUM(marks), 0) AS marks, COUNT(*) AS count
		     FROM questions WHERE assignment_id = $1
		 ) q
		 WHERE a.id = $1`, id)
	return err
}

// ListByAuthor retrieves all assignments created by a teacher.
func (r *AssignmentRepository) ListByAuthor(ctx context.Context, authorID int) ([]model.Assignment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+assignmentColumns+` FROM assignments
		 WHERE author_id = $1
		 ORDER BY created_at DESC`, authorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAssignments(rows)
}

// ListPublished returns all assignments with PUBLISHED status.
// Used for cache prewarming on application startup.
func (r *AssignmentRepository) ListPublished(ctx context.Context) ([]model.Assignment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+assignmentColumns+` FROM assignments
		 WHERE status = $1
		 ORDER BY created_at DESC`, model.AssignmentStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAssignments(rows)
}

func collectAssignments(rows pgx.Rows) ([]model.Assignment, error) {
	var assignments []model.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, *a)
	}
	return assignments, rows.Err()
}
