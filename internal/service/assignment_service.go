package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/ruangujian/asesmen-backend/internal/config"
	"github.com/ruangujian/asesmen-backend/internal/model"
	"github.com/ruangujian/asesmen-backend/internal/repository"
)

// Domain Errors
var (
	ErrNotAssignmentAuthor    = errors.New("not the author of this assignment")
	ErrNoQuestions            = errors.New("assignment has no questions, cannot publish")
	ErrAssignmentNotDraft     = errors.New("assignment status is not DRAFT")
	ErrAssignmentNotPublished = errors.New("assignment status is not PUBLISHED")
)

// AssignmentService handles assignment business logic and Redis caching.
// Published assignments live in the "fast lane": the student payload, the
// answer key, per-question marks, and the duration are all served from
// Redis so the hot path never touches PostgreSQL.
type AssignmentService struct {
	assignmentRepo *repository.AssignmentRepository
	questionRepo   *repository.QuestionRepository
	rdb            *redis.Client
	log            zerolog.Logger
}

// NewAssignmentService creates a new AssignmentService.
func NewAssignmentService(
	assignmentRepo *repository.AssignmentRepository,
	questionRepo *repository.QuestionRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *AssignmentService {
	return &AssignmentService{
		assignmentRepo: assignmentRepo,
		questionRepo:   questionRepo,
		rdb:            rdb,
		log:            log.With().Str("component", "assignment_service").Logger(),
	}
}

// GetByID retrieves an assignment by its UUID.
func (s *AssignmentService) GetByID(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	return s.assignmentRepo.GetByID(ctx, id)
}

// ListByAuthor retrieves the assignments created by a teacher.
func (s *AssignmentService) ListByAuthor(ctx context.Context, authorID int) ([]model.Assignment, error) {
	assignments, err := s.assignmentRepo.ListByAuthor(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if assignments == nil {
		assignments = []model.Assignment{}
	}
	return assignments, nil
}

// Create inserts a new assignment as DRAFT.
func (s *AssignmentService) Create(ctx context.Context, authorID int, req *model.CreateAssignmentRequest) (*model.Assignment, error) {
	a := &model.Assignment{
		Title:           req.Title,
		AuthorID:        authorID,
		DurationSeconds: req.DurationSeconds,
		Deadline:        req.Deadline,
		EntryToken:      req.EntryToken,
		MaxViolations:   3,
		Status:          model.AssignmentStatusDraft,
	}
	if req.MaxViolations != nil {
		a.MaxViolations = *req.MaxViolations
	}
	if a.EntryToken == "" {
		a.EntryToken = uuid.New().String()[:8]
	}
	if err := s.assignmentRepo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// AddQuestion appends a question to a draft assignment and resyncs the
// stored totals.
func (s *AssignmentService) AddQuestion(ctx context.Context, assignmentID uuid.UUID, authorID int, req *model.AddQuestionRequest) (*model.Question, error) {
	if _, err := s.requireDraft(ctx, assignmentID, authorID); err != nil {
		return nil, err
	}

	q := &model.Question{
		AssignmentID: assignmentID,
		Type:         model.QuestionType(req.Type),
		Prompt:       req.Prompt,
		Options:      req.Options,
		Marks:        req.Marks,
		CorrectIndex: req.CorrectIndex,
		OrderNum:     req.OrderNum,
	}
	if err := validateQuestion(q); err != nil {
		return nil, err
	}
	if err := s.questionRepo.Create(ctx, q); err != nil {
		return nil, err
	}
	if err := s.assignmentRepo.SyncQuestionTotals(ctx, assignmentID); err != nil {
		return nil, err
	}
	return q, nil
}

// ReplaceQuestions swaps the whole question set of a draft assignment.
func (s *AssignmentService) ReplaceQuestions(ctx context.Context, assignmentID uuid.UUID, authorID int, req *model.ReplaceQuestionsRequest) error {
	if _, err := s.requireDraft(ctx, assignmentID, authorID); err != nil {
		return err
	}

	questions := make([]model.Question, len(req.Questions))
	for i, in := range req.Questions {
		questions[i] = model.Question{
			AssignmentID: assignmentID,
			Type:         model.QuestionType(in.Type),
			Prompt:       in.Prompt,
			Options:      in.Options,
			Marks:        in.Marks,
			CorrectIndex: in.CorrectIndex,
			OrderNum:     in.OrderNum,
		}
		if err := validateQuestion(&questions[i]); err != nil {
			return err
		}
	}

	if err := s.questionRepo.ReplaceAll(ctx, assignmentID, questions); err != nil {
		return err
	}
	return s.assignmentRepo.SyncQuestionTotals(ctx, assignmentID)
}

// validateQuestion enforces the MCQ shape: options with a correct index in
// range. Subjective questions must not carry either.
func validateQuestion(q *model.Question) error {
	if q.Type.Objective() {
		if len(q.Options) < 2 {
			return errors.New("MCQ question needs at least two options")
		}
		if q.CorrectIndex == nil || *q.CorrectIndex < 0 || *q.CorrectIndex >= len(q.Options) {
			return errors.New("MCQ correct_index out of range")
		}
		return nil
	}
	if len(q.Options) > 0 || q.CorrectIndex != nil {
		return errors.New("subjective question cannot carry options or correct_index")
	}
	return nil
}

// Publish changes assignment status to PUBLISHED and caches payload,
// answer key, marks, and duration in Redis.
func (s *AssignmentService) Publish(ctx context.Context, assignmentID uuid.UUID, authorID int) error {
	a, err := s.requireDraft(ctx, assignmentID, authorID)
	if err != nil {
		return err
	}

	if err := s.WarmAssignmentCache(ctx, a); err != nil {
		return err
	}
	if err := s.assignmentRepo.UpdateStatus(ctx, assignmentID, model.AssignmentStatusPublished); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	s.log.Info().Str("assignment_id", assignmentID.String()).Msg("Assignment published")
	return nil
}

// Close moves a published assignment to CLOSED. No new joins afterwards;
// in-flight sessions are allowed to finish.
func (s *AssignmentService) Close(ctx context.Context, assignmentID uuid.UUID, authorID int) error {
	a, err := s.assignmentRepo.GetByID(ctx, assignmentID)
	if err != nil {
		return fmt.Errorf("get assignment: %w", err)
	}
	if a.AuthorID != authorID {
		return ErrNotAssignmentAuthor
	}
	if a.Status != model.AssignmentStatusPublished {
		return ErrAssignmentNotPublished
	}
	if err := s.assignmentRepo.UpdateStatus(ctx, assignmentID, model.AssignmentStatusClosed); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	s.log.Info().Str("assignment_id", assignmentID.String()).Msg("Assignment closed")
	return nil
}

func (s *AssignmentService) requireDraft(ctx context.Context, assignmentID uuid.UUID, authorID int) (*model.Assignment, error) {
	a, err := s.assignmentRepo.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	if a.AuthorID != authorID {
		return nil, ErrNotAssignmentAuthor
	}
	if a.Status != model.AssignmentStatusDraft {
		return nil, ErrAssignmentNotDraft
	}
	return a, nil
}

// WarmAssignmentCache loads an assignment's payload and answer key from
// PostgreSQL into Redis. Used by Publish and PrewarmAllCaches.
func (s *AssignmentService) WarmAssignmentCache(ctx context.Context, a *model.Assignment) error {
	questions, err := s.questionRepo.ListByAssignment(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return ErrNoQuestions
	}

	// Build student-facing payload (without correct answers).
	studentQuestions := make([]model.QuestionForStudent, len(questions))
	totalMarks := 0
	for i, q := range questions {
		studentQuestions[i] = model.QuestionForStudent{
			ID:       q.ID,
			Type:     q.Type,
			Prompt:   q.Prompt,
			Options:  q.Options,
			Marks:    q.Marks,
			OrderNum: q.OrderNum,
		}
		totalMarks += q.Marks
	}

	payload := model.AssignmentPayload{
		AssignmentID:    a.ID,
		Title:           a.Title,
		TotalMarks:      totalMarks,
		DurationSeconds: a.DurationSeconds,
		Deadline:        a.Deadline,
		MaxViolations:   a.MaxViolations,
		Questions:       studentQuestions,
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	// Answer key and marks maps power RAM grading at submission time.
	answerKey := make(map[string]interface{}, len(questions))
	marks := make(map[string]interface{}, len(questions))
	for i := range questions {
		q := &questions[i]
		if q.Type.Objective() {
			answerKey[q.ID.String()] = q.CorrectOptionText()
		}
		marks[q.ID.String()] = q.Marks
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.AssignmentPayloadKey(a.ID.String()), payloadJSON, 0)
	pipe.Del(ctx, config.CacheKey.AssignmentAnswerKey(a.ID.String()))
	if len(answerKey) > 0 {
		pipe.HSet(ctx, config.CacheKey.AssignmentAnswerKey(a.ID.String()), answerKey)
	}
	pipe.Del(ctx, config.CacheKey.AssignmentMarksKey(a.ID.String()))
	pipe.HSet(ctx, config.CacheKey.AssignmentMarksKey(a.ID.String()), marks)
	if a.DurationSeconds != nil {
		pipe.Set(ctx, config.CacheKey.AssignmentDurationKey(a.ID.String()), *a.DurationSeconds, 0)
	} else {
		pipe.Del(ctx, config.CacheKey.AssignmentDurationKey(a.ID.String()))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("assignment_id", a.ID.String()).
		Int("questions", len(questions)).
		Msg("Cache warmed")
	return nil
}

// PrewarmAllCaches loads all published assignments into Redis on startup,
// avoiding lazy-loading races under thundering herd traffic.
func (s *AssignmentService) PrewarmAllCaches(ctx context.Context) error {
	assignments, err := s.assignmentRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published assignments: %w", err)
	}
	if len(assignments) == 0 {
		s.log.Info().Msg("No published assignments to prewarm")
		return nil
	}

	warmed := 0
	for i := range assignments {
		if err := s.WarmAssignmentCache(ctx, &assignments[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("assignment_id", assignments[i].ID.String()).
				Msg("Failed to warm assignment, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(assignments)).
		Msg("Prewarming complete")
	return nil
}

// GetPayload retrieves the cached student payload from Redis.
func (s *AssignmentService) GetPayload(ctx context.Context, assignmentID uuid.UUID) (*model.AssignmentPayload, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.AssignmentPayloadKey(assignmentID.String())).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrAssignmentNotPublished
		}
		return nil, fmt.Errorf("get payload: %w", err)
	}

	var payload model.AssignmentPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &payload, nil
}

// GetAnswerKey retrieves the MCQ answer key from Redis for instant grading.
func (s *AssignmentService) GetAnswerKey(ctx context.Context, assignmentID uuid.UUID) (map[string]string, error) {
	result, err := s.rdb.HGetAll(ctx, config.CacheKey.AssignmentAnswerKey(assignmentID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("get answer key: %w", err)
	}
	return result, nil
}

// GetMarks retrieves the per-question marks map from Redis.
func (s *AssignmentService) GetMarks(ctx context.Context, assignmentID uuid.UUID) (map[string]int, error) {
	raw, err := s.rdb.HGetAll(ctx, config.CacheKey.AssignmentMarksKey(assignmentID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("get marks: %w", err)
	}
	marks := make(map[string]int, len(raw))
	for qid, v := range raw {
		n, convErr := strconv.Atoi(v)
		if convErr != nil {
			return nil, fmt.Errorf("invalid marks for %s: %w", qid, convErr)
		}
		marks[qid] = n
	}
	return marks, nil
}
