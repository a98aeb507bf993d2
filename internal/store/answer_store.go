// Package store implements the durable autosave persistence behind the
// session runtime, backed by Redis. One hash per (student, assignment)
// holds the serialized answer map; a plain counter key tracks violations
// so a page reload cannot reset them.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/ruangujian/asesmen-backend/internal/config"
)

// AnswerStore satisfies session.Store on top of Redis.
type AnswerStore struct {
	rdb *redis.Client
}

func NewAnswerStore(rdb *redis.Client) *AnswerStore {
	return &AnswerStore{rdb: rdb}
}

// Save replaces the stored answer set with the snapshot. Delete-then-set
// in one pipeline so removed answers do not linger in the hash.
func (s *AnswerStore) Save(ctx context.Context, assignmentID uuid.UUID, studentID int, answers map[string]string) error {
	key := config.CacheKey.StudentAnswersKey(assignmentID.String(), studentID)

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key)
	if len(answers) > 0 {
		flat := make(map[string]interface{}, len(answers))
		for qid, value := range answers {
			flat[qid] = value
		}
		pipe.HSet(ctx, key, flat)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save answers: %w", err)
	}
	return nil
}

// Load returns the stored answer set. A missing entry is not an error:
// an empty map means a fresh start.
func (s *AnswerStore) Load(ctx context.Context, assignmentID uuid.UUID, studentID int) (map[string]string, error) {
	key := config.CacheKey.StudentAnswersKey(assignmentID.String(), studentID)
	answers, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	return answers, nil
}

// Clear removes the entry. Called only after submission acknowledgment.
func (s *AnswerStore) Clear(ctx context.Context, assignmentID uuid.UUID, studentID int) error {
	key := config.CacheKey.StudentAnswersKey(assignmentID.String(), studentID)
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("clear answers: %w", err)
	}
	return nil
}

// IncrViolations bumps the persisted violation counter and returns the new
// total. The counter survives reloads and reconnects.
func (s *AnswerStore) IncrViolations(ctx context.Context, assignmentID uuid.UUID, studentID int) (int, error) {
	key := config.CacheKey.StudentViolationsKey(assignmentID.String(), studentID)
	n, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr violations: %w", err)
	}
	return int(n), nil
}

// GetViolations reads the persisted violation counter; zero if absent.
func (s *AnswerStore) GetViolations(ctx context.Context, assignmentID uuid.UUID, studentID int) (int, error) {
	key := config.CacheKey.StudentViolationsKey(assignmentID.String(), studentID)
	n, err := s.rdb.Get(ctx, key).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("get violations: %w", err)
	}
	return n, nil
}

// ClearViolations resets the counter, done together with Clear after a
// successful submission.
func (s *AnswerStore) ClearViolations(ctx context.Context, assignmentID uuid.UUID, studentID int) error {
	key := config.CacheKey.StudentViolationsKey(assignmentID.String(), studentID)
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("clear violations: %w", err)
	}
	return nil
}
