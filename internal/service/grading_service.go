package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/ruangujian/asesmen-backend/internal/evaluation"
	"github.com/ruangujian/asesmen-backend/internal/model"
	"github.com/ruangujian/asesmen-backend/internal/repository"
)

var (
	ErrAnswerNotGradable = errors.New("only TEXT and CODE answers can be graded manually")
	ErrMarksOutOfRange   = errors.New("awarded marks outside the question's range")
	ErrNothingToGrade    = errors.New("no evaluation record for this answer")
)

// SubmissionDetail is the teacher-facing view of one student's submission.
type SubmissionDetail struct {
	AssignmentID uuid.UUID                `json:"assignment_id"`
	StudentID    int                      `json:"student_id"`
	Answers      map[string]string        `json:"answers"`
	Records      []model.EvaluationRecord `json:"records"`
	Stats        model.SubmissionStats    `json:"stats"`
}

// GradingService handles manual grading of subjective answers and the
// derived statistics.
type GradingService struct {
	assignmentRepo *repository.AssignmentRepository
	questionRepo   *repository.QuestionRepository
	submissionRepo *repository.SubmissionRepository
	sessionRepo    *repository.SessionRepository
	log            zerolog.Logger
}

// NewGradingService creates a new GradingService.
func NewGradingService(
	assignmentRepo *repository.AssignmentRepository,
	questionRepo *repository.QuestionRepository,
	submissionRepo *repository.SubmissionRepository,
	sessionRepo *repository.SessionRepository,
	log zerolog.Logger,
) *GradingService {
	return &GradingService{
		assignmentRepo: assignmentRepo,
		questionRepo:   questionRepo,
		submissionRepo: submissionRepo,
		sessionRepo:    sessionRepo,
		log:            log.With().Str("component", "grading_service").Logger(),
	}
}

// requireAuthor loads the assignment and rejects teachers who do not own it.
func (s *GradingService) requireAuthor(ctx context.Context, assignmentID uuid.UUID, teacherID int) (*model.Assignment, error) {
	a, err := s.assignmentRepo.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	if a.AuthorID != teacherID {
		return nil, ErrNotAssignmentAuthor
	}
	return a, nil
}

// GetSubmissionDetail returns one student's answers, evaluation records,
// and recomputed statistics.
func (s *GradingService) GetSubmissionDetail(ctx context.Context, assignmentID uuid.UUID, teacherID, studentID int) (*SubmissionDetail, error) {
	a, err := s.requireAuthor(ctx, assignmentID, teacherID)
	if err != nil {
		return nil, err
	}

	answers, err := s.submissionRepo.GetAnswers(ctx, assignmentID, studentID)
	if err != nil {
		return nil, fmt.Errorf("get answers: %w", err)
	}
	records, err := s.submissionRepo.GetEvaluations(ctx, assignmentID, studentID)
	if err != nil {
		return nil, fmt.Errorf("get evaluations: %w", err)
	}

	flat := make(map[string]string, len(answers))
	for qid, value := range answers {
		flat[qid.String()] = value
	}

	return &SubmissionDetail{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		Answers:      flat,
		Records:      records,
		Stats:        evaluation.ComputeStats(records, a.QuestionCount, a.TotalMarks),
	}, nil
}

// GradeAnswer resolves one subjective answer. Awarded marks are clamped by
// validation, never silently: out-of-range grading is an error, so the
// invariant that the awarded sum cannot exceed the assignment total holds
// by construction.
func (s *GradingService) GradeAnswer(ctx context.Context, assignmentID uuid.UUID, teacherID, studentID int, questionID uuid.UUID, req *model.GradeAnswerRequest) (*model.SubmissionStats, error) {
	a, err := s.requireAuthor(ctx, assignmentID, teacherID)
	if err != nil {
		return nil, err
	}

	questions, err := s.questionRepo.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	var question *model.Question
	for i := range questions {
		if questions[i].ID == questionID {
			question = &questions[i]
			break
		}
	}
	if question == nil {
		return nil, ErrNothingToGrade
	}
	if question.Type.Objective() {
		return nil, ErrAnswerNotGradable
	}

	awarded := *req.AwardedMarks
	if awarded < 0 || awarded > question.Marks {
		return nil, ErrMarksOutOfRange
	}

	correctness := model.CorrectnessIncorrect
	if *req.IsCorrect {
		correctness = model.CorrectnessCorrect
	}

	updated, err := s.submissionRepo.UpdateManualGrade(ctx, assignmentID, studentID,
		questionID, awarded, correctness, req.TeacherComment)
	if err != nil {
		return nil, fmt.Errorf("update grade: %w", err)
	}
	if !updated {
		return nil, ErrNothingToGrade
	}

	// Recompute and persist the final score from the full record set.
	records, err := s.submissionRepo.GetEvaluations(ctx, assignmentID, studentID)
	if err != nil {
		return nil, fmt.Errorf("get evaluations: %w", err)
	}
	stats := evaluation.ComputeStats(records, a.QuestionCount, a.TotalMarks)

	if err := s.sessionRepo.UpdateFinalScore(ctx, assignmentID, studentID, stats.PercentageScore); err != nil {
		return nil, fmt.Errorf("update final score: %w", err)
	}

	s.log.Info().
		Str("assignment_id", assignmentID.String()).
		Int("student_id", studentID).
		Str("question_id", questionID.String()).
		Int("awarded", awarded).
		Msg("Answer graded")

	return &stats, nil
}
