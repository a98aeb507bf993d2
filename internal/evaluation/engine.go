// Package evaluation turns a finalized answer set into per-question
// correctness and aggregate statistics. Everything here is a pure
// function: re-running on the same inputs yields the same outputs.
package evaluation

import (
	"github.com/ruangujian/asesmen-backend/internal/model"
)

// PassThresholdPercent is the minimum percentage score that counts as a pass.
const PassThresholdPercent = 40.0

// Evaluate produces one EvaluationRecord per answered question.
//
// MCQ answers are graded automatically by comparing the stored value with
// the option text at the question's correct index — the outcome is always
// CORRECT or INCORRECT, never PENDING. TEXT and CODE answers start PENDING
// with zero awarded marks; only an explicit manual grading action resolves
// them.
//
// answers maps question id (string form) to the answer value. Questions
// without an answer produce no record.
func Evaluate(questions []model.Question, answers map[string]string) []model.EvaluationRecord {
	records := make([]model.EvaluationRecord, 0, len(answers))

	for i := range questions {
		q := &questions[i]
		value, answered := answers[q.ID.String()]
		if !answered {
			continue
		}

		rec := model.EvaluationRecord{QuestionID: q.ID}
		if q.Type.Objective() {
			if value == q.CorrectOptionText() && value != "" {
				rec.Correctness = model.CorrectnessCorrect
				rec.AwardedMarks = q.Marks
			} else {
				rec.Correctness = model.CorrectnessIncorrect
			}
		} else {
			rec.Correctness = model.CorrectnessPending
		}
		records = append(records, rec)
	}

	return records
}

// EvaluateWithKey grades against the cached answer-key and marks maps
// instead of full question rows. This is the submission hot path: the key,
// the marks, and the student payload all come from Redis hashes warmed at
// publish, so grading never touches the database. A question absent from
// the marks map falls back to the marks carried by the payload.
func EvaluateWithKey(questions []model.QuestionForStudent, key map[string]string, marks map[string]int, answers map[string]string) []model.EvaluationRecord {
	records := make([]model.EvaluationRecord, 0, len(answers))

	for i := range questions {
		q := &questions[i]
		value, answered := answers[q.ID.String()]
		if !answered {
			continue
		}

		rec := model.EvaluationRecord{QuestionID: q.ID}
		if q.Type.Objective() {
			if correct, ok := key[q.ID.String()]; ok && value == correct && value != "" {
				rec.Correctness = model.CorrectnessCorrect
				if m, ok := marks[q.ID.String()]; ok {
					rec.AwardedMarks = m
				} else {
					rec.AwardedMarks = q.Marks
				}
			} else {
				rec.Correctness = model.CorrectnessIncorrect
			}
		} else {
			rec.Correctness = model.CorrectnessPending
		}
		records = append(records, rec)
	}

	return records
}

// ComputeStats derives aggregate statistics from a record set. totalMarks
// of zero yields a zero percentage rather than a division by zero (an
// assignment with no marked questions cannot be passed).
func ComputeStats(records []model.EvaluationRecord, totalQuestions, totalMarks int) model.SubmissionStats {
	stats := model.SubmissionStats{
		TotalQuestions:    totalQuestions,
		AnsweredQuestions: len(records),
		TotalMarks:        totalMarks,
	}

	for _, rec := range records {
		switch rec.Correctness {
		case model.CorrectnessCorrect:
			stats.CorrectCount++
		case model.CorrectnessIncorrect:
			stats.IncorrectCount++
		default:
			stats.PendingCount++
		}
		stats.AwardedMarks += rec.AwardedMarks
	}

	if totalMarks > 0 {
		stats.PercentageScore = float64(stats.AwardedMarks) / float64(totalMarks) * 100
	}
	stats.IsPassed = stats.PercentageScore >= PassThresholdPercent
	return stats
}
