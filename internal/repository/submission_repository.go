package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ruangujian/asesmen-backend/internal/model"
)

// SubmissionRepository handles persisted answers and their evaluations.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// UpsertAnswer creates or updates a single answer without locking.
func (r *SubmissionRepository) UpsertAnswer(ctx context.Context, assignmentID uuid.UUID, studentID int, questionID uuid.UUID, value string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO student_answers (assignment_id, student_id, question_id, value)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (assignment_id, student_id, question_id) DO UPDATE
		 SET value = EXCLUDED.value, updated_at = NOW()`,
		assignmentID, studentID, questionID, value)
	return err
}

// ReplaceAnswers upserts the full final answer set in one batch. Used when
// a submission is persisted: the submitted snapshot wins over whatever the
// autosave trail left behind.
func (r *SubmissionRepository) ReplaceAnswers(ctx context.Context, assignmentID uuid.UUID, studentID int, answers map[uuid.UUID]string) error {
	batch := &pgx.Batch{}
	for questionID, value := range answers {
		batch.Queue(
			`INSERT INTO student_answers (assignment_id, student_id, question_id, value)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (assignment_id, student_id, question_id) DO UPDATE
			 SET value = EXCLUDED.value, updated_at = NOW()`,
			assignmentID, studentID, questionID, value)
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

// GetAnswers returns the persisted answer set for a student's attempt,
// keyed by question id.
func (r *SubmissionRepository) GetAnswers(ctx context.Context, assignmentID uuid.UUID, studentID int) (map[uuid.UUID]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, value FROM student_answers
		 WHERE assignment_id = $1 AND student_id = $2`, assignmentID, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := make(map[uuid.UUID]string)
	for rows.Next() {
		var questionID uuid.UUID
		var value string
		if err := rows.Scan(&questionID, &value); err != nil {
			return nil, err
		}
		answers[questionID] = value
	}
	return answers, rows.Err()
}

// SaveEvaluations upserts evaluation records for a submission.
func (r *SubmissionRepository) SaveEvaluations(ctx context.Context, assignmentID uuid.UUID, studentID int, records []model.EvaluationRecord) error {
	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(
			`INSERT INTO evaluations (assignment_id, student_id, question_id, awarded_marks, correctness, teacher_comment)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (assignment_id, student_id, question_id) DO UPDATE
			 SET awarded_marks = EXCLUDED.awarded_marks,
			     correctness = EXCLUDED.correctness,
			     updated_at = NOW()`,
			assignmentID, studentID, rec.QuestionID, rec.AwardedMarks, rec.Correctness, rec.TeacherComment)
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

// GetEvaluations returns the evaluation records for a submission, in
// question order.
func (r *SubmissionRepository) GetEvaluations(ctx context.Context, assignmentID uuid.UUID, studentID int) ([]model.EvaluationRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT e.question_id, e.awarded_marks, e.teacher_comment, e.correctness
		 FROM evaluations e
		 JOIN questions q ON e.question_id = q.id
		 WHERE e.assignment_id = $1 AND e.student_id = $2
		 ORDER BY q.order_num`, assignmentID, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.EvaluationRecord
	for rows.Next() {
		var rec model.EvaluationRecord
		if err := rows.Scan(&rec.QuestionID, &rec.AwardedMarks, &rec.TeacherComment, &rec.Correctness); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpdateManualGrade resolves one evaluation record by a grading action. The
// correctness guard keeps already-resolved objective answers untouchable:
// only PENDING records, or records previously graded by hand, may change.
func (r *SubmissionRepository) UpdateManualGrade(ctx context.Context, assignmentID uuid.UUID, studentID int, questionID uuid.UUID, awardedMarks int, correctness model.Correctness, comment string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE evaluations e
		 SET awarded_marks = $1, correctness = $2, teacher_comment = $3, updated_at = NOW()
		 FROM questions q
		 WHERE e.question_id = q.id
		   AND e.assignment_id = $4 AND e.student_id = $5 AND e.question_id = $6
		   AND q.type <> 'MCQ'`,
		awardedMarks, correctness, comment, assignmentID, studentID, questionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
