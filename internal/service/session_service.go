package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/ruangujian/asesmen-backend/internal/config"
	"github.com/ruangujian/asesmen-backend/internal/model"
	"github.com/ruangujian/asesmen-backend/internal/repository"
)

var (
	ErrAssignmentNotAvailable = errors.New("assignment is not available for joining")
	ErrInvalidEntryToken      = errors.New("invalid entry token")
	ErrAlreadySubmitted       = errors.New("session is already submitted")
)

// SessionService handles the student-facing session lifecycle around the
// live runtime: joining, resuming, and the persisted view of a session.
type SessionService struct {
	sessionRepo    *repository.SessionRepository
	assignmentRepo *repository.AssignmentRepository
	rdb            *redis.Client
	log            zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	sessionRepo *repository.SessionRepository,
	assignmentRepo *repository.AssignmentRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		sessionRepo:    sessionRepo,
		assignmentRepo: assignmentRepo,
		rdb:            rdb,
		log:            log.With().Str("component", "session_service").Logger(),
	}
}

// LobbyStatus represents the concrete state of an assignment in the lobby.
type LobbyStatus string

const (
	LobbyStatusAvailable  LobbyStatus = "AVAILABLE"
	LobbyStatusInProgress LobbyStatus = "IN_PROGRESS"
	LobbyStatusSubmitted  LobbyStatus = "SUBMITTED"
	LobbyStatusExpired    LobbyStatus = "EXPIRED"
)

// LobbyAssignment is an assignment as displayed in the student lobby. The
// entry token is stripped: students must receive it out of band.
type LobbyAssignment struct {
	ID              uuid.UUID   `json:"id"`
	Title           string      `json:"title"`
	DurationSeconds *int        `json:"duration_seconds,omitempty"`
	Deadline        *time.Time  `json:"deadline,omitempty"`
	QuestionCount   int         `json:"question_count"`
	TotalMarks      int         `json:"total_marks"`
	LobbyStatus     LobbyStatus `json:"lobby_status"`
	FinalScore      *float64    `json:"final_score,omitempty"`
}

// GetLobby returns the published assignments with the student's session
// status overlaid.
func (s *SessionService) GetLobby(ctx context.Context, studentID int) ([]LobbyAssignment, error) {
	assignments, err := s.assignmentRepo.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("list published: %w", err)
	}

	sessions, err := s.sessionRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	sessionMap := make(map[uuid.UUID]*model.AssessmentSession, len(sessions))
	for i := range sessions {
		sessionMap[sessions[i].AssignmentID] = &sessions[i]
	}

	lobby := make([]LobbyAssignment, 0, len(assignments))
	now := time.Now()
	for _, a := range assignments {
		entry := LobbyAssignment{
			ID:              a.ID,
			Title:           a.Title,
			DurationSeconds: a.DurationSeconds,
			Deadline:        a.Deadline,
			QuestionCount:   a.QuestionCount,
			TotalMarks:      a.TotalMarks,
			LobbyStatus:     LobbyStatusAvailable,
		}
		if sess, ok := sessionMap[a.ID]; ok {
			if sess.Stage == model.StageSubmitted {
				entry.LobbyStatus = LobbyStatusSubmitted
				entry.FinalScore = sess.FinalScore
			} else {
				entry.LobbyStatus = LobbyStatusInProgress
			}
		} else if a.Deadline != nil && a.Deadline.Before(now) {
			entry.LobbyStatus = LobbyStatusExpired
		}
		lobby = append(lobby, entry)
	}
	return lobby, nil
}

// Join validates the entry token and creates a session row. Idempotent: a
// second join returns the original session with its original start time, so
// reloading the page never restarts the countdown.
func (s *SessionService) Join(ctx context.Context, assignmentID uuid.UUID, studentID int, entryToken string) (*model.AssessmentSession, error) {
	a, err := s.assignmentRepo.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	if a.Status != model.AssignmentStatusPublished {
		return nil, ErrAssignmentNotAvailable
	}
	if a.Deadline != nil && a.Deadline.Before(time.Now()) {
		return nil, ErrAssignmentNotAvailable
	}
	if a.EntryToken != entryToken {
		return nil, ErrInvalidEntryToken
	}

	existing, err := s.sessionRepo.GetByAssignmentAndStudent(ctx, assignmentID, studentID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing session: %w", err)
	}
	if existing != nil {
		// Self-heal the cached start time for resumed sessions.
		_ = s.rdb.Set(ctx, config.CacheKey.StudentSessionStartKey(assignmentID.String(), studentID), existing.StartedAt.Unix(), 0)
		return existing, nil
	}

	session := &model.AssessmentSession{
		AssignmentID: assignmentID,
		StudentID:    studentID,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Concurrent join: the other request won the insert.
			return s.sessionRepo.GetByAssignmentAndStudent(ctx, assignmentID, studentID)
		}
		return nil, fmt.Errorf("create session: %w", err)
	}
	session.Stage = model.StageInProgress

	startKey := config.CacheKey.StudentSessionStartKey(assignmentID.String(), studentID)
	if err := s.rdb.Set(ctx, startKey, session.StartedAt.Unix(), 0).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to cache session start time")
	}

	s.log.Info().
		Str("assignment_id", assignmentID.String()).
		Int("student_id", studentID).
		Msg("Student joined assignment")
	return session, nil
}

// VerifyActiveSession checks that a student has a joined, not yet
// submitted session for the given assignment.
func (s *SessionService) VerifyActiveSession(ctx context.Context, assignmentID uuid.UUID, studentID int) error {
	sess, err := s.sessionRepo.GetByAssignmentAndStudent(ctx, assignmentID, studentID)
	if err != nil {
		return fmt.Errorf("no active session: %w", err)
	}
	if sess.Stage == model.StageSubmitted {
		return ErrAlreadySubmitted
	}
	return nil
}

// GetSessionState returns everything a reloading client needs to resume:
// the autosaved answer set, the authoritative remaining time, and the
// violation count so far.
func (s *SessionService) GetSessionState(ctx context.Context, assignmentID uuid.UUID, studentID int) (*model.SessionState, error) {
	sess, err := s.sessionRepo.GetByAssignmentAndStudent(ctx, assignmentID, studentID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	answers, err := s.rdb.HGetAll(ctx, config.CacheKey.StudentAnswersKey(assignmentID.String(), studentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get autosaved answers: %w", err)
	}

	violations, err := s.getViolationCount(ctx, assignmentID, studentID, sess)
	if err != nil {
		return nil, err
	}

	state := &model.SessionState{
		AssignmentID:     assignmentID,
		StudentID:        studentID,
		Stage:            sess.Stage,
		AutosavedAnswers: answers,
		ViolationCount:   violations,
	}

	remaining, err := s.remainingSeconds(ctx, assignmentID, studentID, sess)
	if err != nil {
		return nil, err
	}
	state.RemainingSeconds = remaining
	return state, nil
}

// remainingSeconds computes the countdown from the cached duration and
// start time; nil for untimed assignments. On a cache miss the start time
// falls back to PostgreSQL and is written back.
func (s *SessionService) remainingSeconds(ctx context.Context, assignmentID uuid.UUID, studentID int, sess *model.AssessmentSession) (*float64, error) {
	durationStr, err := s.rdb.Get(ctx, config.CacheKey.AssignmentDurationKey(assignmentID.String())).Result()
	if errors.Is(err, redis.Nil) {
		// Untimed assignment, or the cache was never warmed; consult pg.
		a, dbErr := s.assignmentRepo.GetByID(ctx, assignmentID)
		if dbErr != nil {
			return nil, fmt.Errorf("get assignment for duration: %w", dbErr)
		}
		if a.DurationSeconds == nil {
			return nil, nil
		}
		durationStr = strconv.Itoa(*a.DurationSeconds)
		_ = s.rdb.Set(ctx, config.CacheKey.AssignmentDurationKey(assignmentID.String()), durationStr, 0)
	} else if err != nil {
		return nil, fmt.Errorf("get duration: %w", err)
	}

	durationSeconds, err := strconv.Atoi(durationStr)
	if err != nil {
		return nil, fmt.Errorf("invalid duration format in cache: %w", err)
	}

	var startUnix int64
	startKey := config.CacheKey.StudentSessionStartKey(assignmentID.String(), studentID)
	val, err := s.rdb.Get(ctx, startKey).Result()
	switch {
	case errors.Is(err, redis.Nil):
		startUnix = sess.StartedAt.Unix()
		_ = s.rdb.Set(ctx, startKey, startUnix, 0)
	case err != nil:
		return nil, fmt.Errorf("get start time: %w", err)
	default:
		startUnix, err = strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid start time format in cache: %w", err)
		}
	}

	endTime := time.Unix(startUnix, 0).Add(time.Duration(durationSeconds) * time.Second)
	remaining := time.Until(endTime).Seconds()
	if remaining < 0 {
		remaining = 0
	}
	return &remaining, nil
}

// getViolationCount prefers the live Redis counter, falling back to the
// persisted session row when the counter is absent.
func (s *SessionService) getViolationCount(ctx context.Context, assignmentID uuid.UUID, studentID int, sess *model.AssessmentSession) (int, error) {
	n, err := s.rdb.Get(ctx, config.CacheKey.StudentViolationsKey(assignmentID.String(), studentID)).Int()
	if errors.Is(err, redis.Nil) {
		return sess.ViolationCount, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get violation counter: %w", err)
	}
	if sess.ViolationCount > n {
		return sess.ViolationCount, nil
	}
	return n, nil
}

// GetResults retrieves all student results for an assignment.
func (s *SessionService) GetResults(ctx context.Context, assignmentID uuid.UUID) ([]repository.SessionResult, error) {
	return s.sessionRepo.ListByAssignment(ctx, assignmentID)
}
