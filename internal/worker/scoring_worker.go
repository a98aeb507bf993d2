package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/ruangujian/asesmen-backend/internal/config"
	"github.com/ruangujian/asesmen-backend/internal/model"
	"github.com/ruangujian/asesmen-backend/internal/repository"
)

const (
	ScorePollTimeout = 1 * time.Second
	ScoreRetryDelay  = 5 * time.Second
)

// ScoringWorker consumes persist_submissions_queue and writes the durable
// record of a graded submission: the final answer set and the evaluation
// rows. The session row itself was already flipped to SUBMITTED on the hot
// path; the final-score write here is a repair for the case where that
// update raced a crash.
type ScoringWorker struct {
	submissionRepo *repository.SubmissionRepository
	sessionRepo    *repository.SessionRepository
	rdb            *redis.Client
	log            zerolog.Logger
}

func NewScoringWorker(
	submissionRepo *repository.SubmissionRepository,
	sessionRepo *repository.SessionRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *ScoringWorker {
	return &ScoringWorker{
		submissionRepo: submissionRepo,
		sessionRepo:    sessionRepo,
		rdb:            rdb,
		log:            log.With().Str("component", "scoring_worker").Logger(),
	}
}

type submissionPayload struct {
	AssignmentID string                   `json:"assignment_id"`
	StudentID    int                      `json:"student_id"`
	Trigger      model.SubmitTrigger      `json:"trigger"`
	Answers      map[string]string        `json:"answers"`
	Records      []model.EvaluationRecord `json:"records"`
	Violations   int                      `json:"violations"`
	Score        float64                  `json:"score"`
	SubmittedAt  int64                    `json:"submitted_at"`
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *ScoringWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ScoringWorker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *ScoringWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, ScorePollTimeout, config.WorkerKey.PersistSubmissionsQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var payload submissionPayload
	if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
		w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
		return
	}

	if err := w.persistSubmission(ctx, &payload); err != nil {
		w.log.Error().Err(err).
			Int("student_id", payload.StudentID).
			Str("assignment_id", payload.AssignmentID).
			Msg("Persist error, requeueing")
		w.rdb.RPush(ctx, config.WorkerKey.PersistSubmissionsQueue, result[1])
		time.Sleep(ScoreRetryDelay)
	}
}

// persistSubmission writes the answer set and evaluation rows. Every write
// is an upsert, so a requeued job that half-succeeded converges on retry.
func (w *ScoringWorker) persistSubmission(ctx context.Context, p *submissionPayload) error {
	assignmentID, err := uuid.Parse(p.AssignmentID)
	if err != nil {
		w.log.Error().Str("assignment_id", p.AssignmentID).Msg("Dropping submission with invalid UUID")
		return nil
	}

	answers := make(map[uuid.UUID]string, len(p.Answers))
	for rawID, value := range p.Answers {
		questionID, parseErr := uuid.Parse(rawID)
		if parseErr != nil {
			continue
		}
		answers[questionID] = value
	}

	if len(answers) > 0 {
		if err := w.submissionRepo.ReplaceAnswers(ctx, assignmentID, p.StudentID, answers); err != nil {
			return err
		}
	}
	if len(p.Records) > 0 {
		if err := w.submissionRepo.SaveEvaluations(ctx, assignmentID, p.StudentID, p.Records); err != nil {
			return err
		}
	}

	// The Redis autosave hash is NOT cleared here: the runtime already did
	// that when the submission was acknowledged.
	return w.sessionRepo.UpdateFinalScore(ctx, assignmentID, p.StudentID, p.Score)
}

// drain processes all remaining items in the queue before shutdown.
func (w *ScoringWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistSubmissionsQueue).Result()
		if err != nil {
			break
		}

		var payload submissionPayload
		if err := json.Unmarshal([]byte(result), &payload); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.persistSubmission(ctx, &payload); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistSubmissionsQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining submissions")
	}
}
