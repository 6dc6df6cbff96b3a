package grading

import (
	"context"
	"errors"
	"testing"

	"github.com/tranvq/exambank/internal/model"
	"github.com/tranvq/exambank/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type fixture struct {
	store   *store.Store
	engine  *Engine
	exam    int64
	student int64
}

// newFixture builds an exam with two 1-point multiple choice questions
// (answers A and B) owned by a teacher, plus one student.
func newFixture(t *testing.T) (fixture, map[string]int64) {
	t.Helper()
	s := newTestStore(t)

	teacher, err := s.CreateUser(model.User{
		Username: "teach", Email: "teach@example.com", PasswordHash: "h", Role: model.RoleTeacher,
	})
	if err != nil {
		t.Fatalf("create teacher: %v", err)
	}
	student, err := s.CreateUser(model.User{
		Username: "stud", Email: "stud@example.com", PasswordHash: "h", Role: model.RoleStudent,
	})
	if err != nil {
		t.Fatalf("create student: %v", err)
	}

	examID, err := s.CreateExam(model.Exam{
		Title: "Quiz", OwnerID: teacher, PassingScore: 50, IsPublic: true, Kind: model.ExamTest,
	})
	if err != nil {
		t.Fatalf("create exam: %v", err)
	}

	ids := map[string]int64{}
	for _, answer := range []string{"A", "B"} {
		id, err := s.InsertQuestion(model.Question{
			ExamID:        examID,
			Text:          "Pick " + answer,
			Kind:          model.KindMultipleChoice,
			Options:       []string{"one", "two", "three", "four"},
			CorrectAnswer: answer,
			Difficulty:    model.DifficultyEasy,
			Points:        1,
		})
		if err != nil {
			t.Fatalf("insert question: %v", err)
		}
		ids[answer] = id
	}

	return fixture{store: s, engine: New(s), exam: examID, student: student}, ids
}

func startAttempt(t *testing.T, f fixture) int64 {
	t.Helper()
	id, err := f.store.CreateAttempt(f.exam, f.student)
	if err != nil {
		t.Fatalf("CreateAttempt: %v", err)
	}
	return id
}

func TestSubmitAllCorrect(t *testing.T) {
	f, q := newFixture(t)
	attemptID := startAttempt(t, f)

	attempt, err := f.engine.Submit(context.Background(), attemptID, f.student,
		map[int64]string{q["A"]: "A", q["B"]: "B"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if attempt.Score != 2 || attempt.MaxScore != 2 {
		t.Errorf("expected 2/2, got %d/%d", attempt.Score, attempt.MaxScore)
	}
	if attempt.Percentage != 100 || !attempt.Passed {
		t.Errorf("expected 100%% passed, got %v passed=%v", attempt.Percentage, attempt.Passed)
	}
	if attempt.Status != model.AttemptGraded {
		t.Errorf("expected graded status, got %s", attempt.Status)
	}

	student, _ := f.store.GetUserByID(f.student)
	if student.Medals != 2 {
		t.Errorf("expected 2 medals (completion + pass), got %d", student.Medals)
	}
}

func TestSubmitCaseAndWhitespaceInsensitive(t *testing.T) {
	f, q := newFixture(t)
	attemptID := startAttempt(t, f)

	attempt, err := f.engine.Submit(context.Background(), attemptID, f.student,
		map[int64]string{q["A"]: "a", q["B"]: " B "})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if attempt.Score != 2 {
		t.Errorf("case/whitespace variants should match, got score %d", attempt.Score)
	}
}

func TestSubmitFailingAwardsOneMedal(t *testing.T) {
	f, q := newFixture(t)
	attemptID := startAttempt(t, f)

	attempt, err := f.engine.Submit(context.Background(), attemptID, f.student,
		map[int64]string{q["A"]: "C"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if attempt.Score != 0 || attempt.Passed {
		t.Errorf("expected 0 score and failed, got %d passed=%v", attempt.Score, attempt.Passed)
	}

	student, _ := f.store.GetUserByID(f.student)
	if student.Medals != 1 {
		t.Errorf("expected 1 completion medal on fail, got %d", student.Medals)
	}
}

func TestSubmitWrongStudent(t *testing.T) {
	f, q := newFixture(t)
	attemptID := startAttempt(t, f)

	intruder, err := f.store.CreateUser(model.User{
		Username: "other", Email: "other@example.com", PasswordHash: "h", Role: model.RoleStudent,
	})
	if err != nil {
		t.Fatalf("create intruder: %v", err)
	}

	_, err = f.engine.Submit(context.Background(), attemptID, intruder, map[int64]string{q["A"]: "A"})
	if !errors.Is(err, model.ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied, got %v", err)
	}

	// The attempt is untouched and the rightful student can still submit.
	attempt, err := f.engine.Submit(context.Background(), attemptID, f.student, map[int64]string{q["A"]: "A"})
	if err != nil {
		t.Fatalf("Submit after denied attempt: %v", err)
	}
	if attempt.Score != 1 {
		t.Errorf("expected score 1, got %d", attempt.Score)
	}
}

func TestDoubleSubmitKeepsFirstResult(t *testing.T) {
	f, q := newFixture(t)
	attemptID := startAttempt(t, f)

	first, err := f.engine.Submit(context.Background(), attemptID, f.student,
		map[int64]string{q["A"]: "A", q["B"]: "B"})
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}

	_, err = f.engine.Submit(context.Background(), attemptID, f.student,
		map[int64]string{q["A"]: "C", q["B"]: "C"})
	if !errors.Is(err, model.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on double submit, got %v", err)
	}

	after, err := f.store.GetAttempt(attemptID)
	if err != nil {
		t.Fatalf("GetAttempt: %v", err)
	}
	if after.Score != first.Score || after.Percentage != first.Percentage {
		t.Errorf("double submit changed the result: %+v vs %+v", after, first)
	}

	student, _ := f.store.GetUserByID(f.student)
	if student.Medals != 2 {
		t.Errorf("double submit must not award medals twice, got %d", student.Medals)
	}
}

func TestEssayOnlyExamScoresZero(t *testing.T) {
	f, _ := newFixture(t)

	examID, err := f.store.CreateExam(model.Exam{
		Title: "Essay exam", OwnerID: 1, PassingScore: 50, IsPublic: true, Kind: model.ExamTest,
	})
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	qID, err := f.store.InsertQuestion(model.Question{
		ExamID:     examID,
		Text:       "Discuss the causes of climate change.",
		Kind:       model.KindEssay,
		Difficulty: model.DifficultyHard,
		Points:     1,
	})
	if err != nil {
		t.Fatalf("InsertQuestion: %v", err)
	}

	attemptID, err := f.store.CreateAttempt(examID, f.student)
	if err != nil {
		t.Fatalf("CreateAttempt: %v", err)
	}
	attempt, err := f.engine.Submit(context.Background(), attemptID, f.student,
		map[int64]string{qID: "A long and thoughtful essay."})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if attempt.Score != 0 || attempt.MaxScore != 1 {
		t.Errorf("essay must contribute to max only, got %d/%d", attempt.Score, attempt.MaxScore)
	}
	if attempt.Percentage != 0 || attempt.Passed {
		t.Errorf("expected 0%% failed, got %v passed=%v", attempt.Percentage, attempt.Passed)
	}
}

func TestScoreAndPercentage(t *testing.T) {
	questions := []model.Question{
		{ID: 1, Kind: model.KindMultipleChoice, CorrectAnswer: "A", Points: 2},
		{ID: 2, Kind: model.KindTrueFalse, CorrectAnswer: "Đúng", Points: 1},
		{ID: 3, Kind: model.KindEssay, Points: 3},
	}

	score, maxScore := Score(questions, map[int64]string{1: "A", 2: "sai", 3: "essay text"})
	if score != 2 || maxScore != 6 {
		t.Errorf("expected 2/6, got %d/%d", score, maxScore)
	}

	tests := []struct {
		score, max int
		want       float64
	}{
		{0, 0, 0},
		{1, 3, 33.33},
		{2, 3, 66.67},
		{3, 3, 100},
	}
	for _, tt := range tests {
		if got := Percentage(tt.score, tt.max); got != tt.want {
			t.Errorf("Percentage(%d, %d) = %v, want %v", tt.score, tt.max, got, tt.want)
		}
	}
}
