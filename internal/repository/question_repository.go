package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ruangujian/asesmen-backend/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByAssignment retrieves all questions for an assignment, ordered by order_num.
func (r *QuestionRepository) ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, assignment_id, type, prompt, options, marks, correct_index, order_num
		 FROM questions WHERE assignment_id = $1
		 ORDER BY order_num`, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.AssignmentID, &q.Type, &q.Prompt,
			&q.Options, &q.Marks, &q.CorrectIndex, &q.OrderNum); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Create inserts a new question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (assignment_id, type, prompt, options, marks, correct_index, order_num)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		q.AssignmentID, q.Type, q.Prompt, q.Options, q.Marks, q.CorrectIndex, q.OrderNum,
	).Scan(&q.ID)
}

// ReplaceAll swaps the full question set of an assignment in one
// transaction. Existing answers reference the old rows, so this is only
// legal while the assignment is still DRAFT; the service enforces that.
func (r *QuestionRepository) ReplaceAll(ctx context.Context, assignmentID uuid.UUID, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM questions WHERE assignment_id = $1`, assignmentID); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i := range questions {
		q := &questions[i]
		batch.Queue(
			`INSERT INTO questions (assignment_id, type, prompt, options, marks, correct_index, order_num)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			assignmentID, q.Type, q.Prompt, q.Options, q.Marks, q.CorrectIndex, q.OrderNum)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
