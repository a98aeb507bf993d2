package evaluation

import (
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/ruangujian/asesmen-backend/internal/model"
)

var (
	qMCQ1 = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	qMCQ2 = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	qText = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	qCode = uuid.MustParse("44444444-4444-4444-4444-444444444444")
)

func intPtr(v int) *int { return &v }

func fixtureQuestions() []model.Question {
	return []model.Question{
		{ID: qMCQ1, Type: model.QuestionTypeMCQ, Options: []string{"3", "4", "5"}, CorrectIndex: intPtr(1), Marks: 10},
		{ID: qMCQ2, Type: model.QuestionTypeMCQ, Options: []string{"6", "9"}, CorrectIndex: intPtr(1), Marks: 10},
		{ID: qText, Type: model.QuestionTypeText, Marks: 20},
		{ID: qCode, Type: model.QuestionTypeCode, Marks: 20},
	}
}

func recordFor(t *testing.T, records []model.EvaluationRecord, id uuid.UUID) model.EvaluationRecord {
	t.Helper()
	for _, rec := range records {
		if rec.QuestionID == id {
			return rec
		}
	}
	t.Fatalf("no record for question %s", id)
	return model.EvaluationRecord{}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name        string
		answers     map[string]string
		wantRecords int
		check       func(t *testing.T, records []model.EvaluationRecord)
	}{
		{
			name: "mcq graded by option text",
			answers: map[string]string{
				qMCQ1.String(): "4", // correct
				qMCQ2.String(): "6", // wrong option
			},
			wantRecords: 2,
			check: func(t *testing.T, records []model.EvaluationRecord) {
				right := recordFor(t, records, qMCQ1)
				if right.Correctness != model.CorrectnessCorrect || right.AwardedMarks != 10 {
					t.Errorf("correct MCQ: got %s/%d marks, want CORRECT/10", right.Correctness, right.AwardedMarks)
				}
				wrong := recordFor(t, records, qMCQ2)
				if wrong.Correctness != model.CorrectnessIncorrect || wrong.AwardedMarks != 0 {
					t.Errorf("wrong MCQ: got %s/%d marks, want INCORRECT/0", wrong.Correctness, wrong.AwardedMarks)
				}
			},
		},
		{
			name: "subjective answers stay pending",
			answers: map[string]string{
				qText.String(): "karena gravitasi",
				qCode.String(): "print('hi')",
			},
			wantRecords: 2,
			check: func(t *testing.T, records []model.EvaluationRecord) {
				for _, id := range []uuid.UUID{qText, qCode} {
					rec := recordFor(t, records, id)
					if rec.Correctness != model.CorrectnessPending {
						t.Errorf("%s: correctness = %s, want PENDING", id, rec.Correctness)
					}
					if rec.AwardedMarks != 0 {
						t.Errorf("%s: awarded = %d, want 0 until manual grading", id, rec.AwardedMarks)
					}
				}
			},
		},
		{
			name: "empty mcq value is incorrect not correct",
			answers: map[string]string{
				qMCQ1.String(): "",
			},
			wantRecords: 1,
			check: func(t *testing.T, records []model.EvaluationRecord) {
				rec := recordFor(t, records, qMCQ1)
				if rec.Correctness != model.CorrectnessIncorrect {
					t.Errorf("empty answer correctness = %s, want INCORRECT", rec.Correctness)
				}
			},
		},
		{
			name:        "unanswered questions produce no records",
			answers:     map[string]string{},
			wantRecords: 0,
		},
		{
			name: "answers for foreign questions are ignored",
			answers: map[string]string{
				uuid.New().String(): "4",
			},
			wantRecords: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := Evaluate(fixtureQuestions(), tt.answers)
			if len(records) != tt.wantRecords {
				t.Fatalf("records = %d, want %d", len(records), tt.wantRecords)
			}
			if tt.check != nil {
				tt.check(t, records)
			}
		})
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	answers := map[string]string{
		qMCQ1.String(): "4",
		qMCQ2.String(): "9",
		qText.String(): "uraian",
	}
	first := Evaluate(fixtureQuestions(), answers)
	second := Evaluate(fixtureQuestions(), answers)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("re-evaluation differs:\n%v\n%v", first, second)
	}
}

func fixtureStudentQuestions() []model.QuestionForStudent {
	return []model.QuestionForStudent{
		{ID: qMCQ1, Type: model.QuestionTypeMCQ, Options: []string{"3", "4", "5"}, Marks: 10},
		{ID: qMCQ2, Type: model.QuestionTypeMCQ, Options: []string{"6", "9"}, Marks: 10},
		{ID: qText, Type: model.QuestionTypeText, Marks: 20},
	}
}

func TestEvaluateWithKey(t *testing.T) {
	key := map[string]string{
		qMCQ1.String(): "4",
		qMCQ2.String(): "9",
	}
	marks := map[string]int{
		qMCQ1.String(): 10,
		qMCQ2.String(): 10,
	}
	answers := map[string]string{
		qMCQ1.String(): "4",
		qMCQ2.String(): "6",
		qText.String(): "uraian panjang",
	}

	records := EvaluateWithKey(fixtureStudentQuestions(), key, marks, answers)
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}

	right := recordFor(t, records, qMCQ1)
	if right.Correctness != model.CorrectnessCorrect || right.AwardedMarks != 10 {
		t.Errorf("correct MCQ: got %s/%d, want CORRECT/10", right.Correctness, right.AwardedMarks)
	}
	wrong := recordFor(t, records, qMCQ2)
	if wrong.Correctness != model.CorrectnessIncorrect || wrong.AwardedMarks != 0 {
		t.Errorf("wrong MCQ: got %s/%d, want INCORRECT/0", wrong.Correctness, wrong.AwardedMarks)
	}
	pending := recordFor(t, records, qText)
	if pending.Correctness != model.CorrectnessPending {
		t.Errorf("subjective: correctness = %s, want PENDING", pending.Correctness)
	}
}

func TestEvaluateWithKeyAwardsFromMarksMap(t *testing.T) {
	key := map[string]string{qMCQ1.String(): "4"}
	answers := map[string]string{qMCQ1.String(): "4"}

	// The warmed marks hash is authoritative when present.
	records := EvaluateWithKey(fixtureStudentQuestions(), key, map[string]int{qMCQ1.String(): 15}, answers)
	if got := recordFor(t, records, qMCQ1).AwardedMarks; got != 15 {
		t.Errorf("awarded = %d, want 15 from the marks map", got)
	}

	// A missing or empty marks hash degrades to the payload's marks.
	records = EvaluateWithKey(fixtureStudentQuestions(), key, nil, answers)
	if got := recordFor(t, records, qMCQ1).AwardedMarks; got != 10 {
		t.Errorf("awarded = %d, want 10 from the payload fallback", got)
	}
}

func TestComputeStats(t *testing.T) {
	tests := []struct {
		name           string
		records        []model.EvaluationRecord
		totalQuestions int
		totalMarks     int
		want           model.SubmissionStats
	}{
		{
			name: "mixed outcome above threshold passes",
			records: []model.EvaluationRecord{
				{QuestionID: qMCQ1, Correctness: model.CorrectnessCorrect, AwardedMarks: 36},
				{QuestionID: qMCQ2, Correctness: model.CorrectnessCorrect, AwardedMarks: 36},
				{QuestionID: qText, Correctness: model.CorrectnessPending},
			},
			totalQuestions: 4,
			totalMarks:     90,
			want: model.SubmissionStats{
				TotalQuestions:    4,
				AnsweredQuestions: 3,
				CorrectCount:      2,
				IncorrectCount:    0,
				PendingCount:      1,
				AwardedMarks:      72,
				TotalMarks:        90,
				PercentageScore:   80,
				IsPassed:          true,
			},
		},
		{
			name: "exactly at threshold passes",
			records: []model.EvaluationRecord{
				{QuestionID: qMCQ1, Correctness: model.CorrectnessCorrect, AwardedMarks: 4},
				{QuestionID: qMCQ2, Correctness: model.CorrectnessIncorrect},
			},
			totalQuestions: 2,
			totalMarks:     10,
			want: model.SubmissionStats{
				TotalQuestions:    2,
				AnsweredQuestions: 2,
				CorrectCount:      1,
				IncorrectCount:    1,
				AwardedMarks:      4,
				TotalMarks:        10,
				PercentageScore:   40,
				IsPassed:          true,
			},
		},
		{
			name: "below threshold fails",
			records: []model.EvaluationRecord{
				{QuestionID: qMCQ1, Correctness: model.CorrectnessCorrect, AwardedMarks: 3},
			},
			totalQuestions: 2,
			totalMarks:     10,
			want: model.SubmissionStats{
				TotalQuestions:    2,
				AnsweredQuestions: 1,
				CorrectCount:      1,
				AwardedMarks:      3,
				TotalMarks:        10,
				PercentageScore:   30,
				IsPassed:          false,
			},
		},
		{
			name:           "zero total marks yields zero percent and no pass",
			records:        nil,
			totalQuestions: 0,
			totalMarks:     0,
			want: model.SubmissionStats{
				PercentageScore: 0,
				IsPassed:        false,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeStats(tt.records, tt.totalQuestions, tt.totalMarks)
			if got != tt.want {
				t.Fatalf("stats mismatch:\n got %+v\nwant %+v", got, tt.want)
			}
		})
	}
}

func TestCorrectnessHelpers(t *testing.T) {
	if model.CorrectnessPending.Resolved() {
		t.Error("PENDING reported as resolved")
	}
	if !model.CorrectnessCorrect.Resolved() || !model.CorrectnessIncorrect.Resolved() {
		t.Error("resolved states reported as unresolved")
	}
	if got := model.CorrectnessPending.Bool(); got != nil {
		t.Errorf("PENDING.Bool() = %v, want nil", *got)
	}
	if got := model.CorrectnessCorrect.Bool(); got == nil || !*got {
		t.Error("CORRECT.Bool() != true")
	}
	if got := model.CorrectnessIncorrect.Bool(); got == nil || *got {
		t.Error("INCORRECT.Bool() != false")
	}
}
