package stats

import (
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

func setupExam(t *testing.T, s *store.Store) (examID, studentID int64) {
	t.Helper()
	teacher, err := s.CreateUser(model.User{
		Username: "teach", Email: "teach@example.com", PasswordHash: "h", Role: model.RoleTeacher,
	})
	if err != nil {
		t.Fatalf("create teacher: %v", err)
	}
	studentID, err = s.CreateUser(model.User{
		Username: "stud", Email: "stud@example.com", PasswordHash: "h", Role: model.RoleStudent,
	})
	if err != nil {
		t.Fatalf("create student: %v", err)
	}
	examID, err = s.CreateExam(model.Exam{
		Title: "Quiz", OwnerID: teacher, PassingScore: 50, IsPublic: true, Kind: model.ExamTest,
	})
	if err != nil {
		t.Fatalf("create exam: %v", err)
	}
	return examID, studentID
}

func TestRecomputeExamStats(t *testing.T) {
	s := newTestStore(t)
	a := New(s)
	examID, _ := setupExam(t, s)

	insert := func(difficulty model.Difficulty, points int) {
		_, err := s.InsertQuestion(model.Question{
			ExamID:        examID,
			Text:          "q",
			Kind:          model.KindMultipleChoice,
			Options:       []string{"a", "b", "c", "d"},
			CorrectAnswer: "A",
			Difficulty:    difficulty,
			Points:        points,
		})
		if err != nil {
			t.Fatalf("InsertQuestion: %v", err)
		}
	}
	insert(model.DifficultyEasy, 1)
	insert(model.DifficultyMedium, 2)
	insert(model.DifficultyMedium, 2)

	if err := a.RecomputeExamStats(examID); err != nil {
		t.Fatalf("RecomputeExamStats: %v", err)
	}
	exam, err := s.GetExam(examID)
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	if exam.TotalPoints != 5 || exam.QuestionCount != 3 {
		t.Errorf("expected 5 points over 3 questions, got %d/%d", exam.TotalPoints, exam.QuestionCount)
	}
	if exam.Difficulty.Easy != 1 || exam.Difficulty.Medium != 2 || exam.Difficulty.Hard != 0 {
		t.Errorf("unexpected distribution: %+v", exam.Difficulty)
	}

	// Recomputing without changes is a no-op.
	if err := a.RecomputeExamStats(examID); err != nil {
		t.Fatalf("second RecomputeExamStats: %v", err)
	}
	again, _ := s.GetExam(examID)
	if again.TotalPoints != exam.TotalPoints || again.QuestionCount != exam.QuestionCount {
		t.Errorf("recompute is not idempotent: %+v vs %+v", again, exam)
	}
}

func TestRecomputeAfterDeleteReachesZero(t *testing.T) {
	s := newTestStore(t)
	a := New(s)
	examID, _ := setupExam(t, s)

	qID, err := s.InsertQuestion(model.Question{
		ExamID:        examID,
		Text:          "q",
		Kind:          model.KindMultipleChoice,
		Options:       []string{"a", "b", "c", "d"},
		CorrectAnswer: "A",
		Difficulty:    model.DifficultyHard,
		Points:        4,
	})
	if err != nil {
		t.Fatalf("InsertQuestion: %v", err)
	}
	if err := a.RecomputeExamStats(examID); err != nil {
		t.Fatalf("RecomputeExamStats: %v", err)
	}

	if err := s.DeleteQuestion(qID); err != nil {
		t.Fatalf("DeleteQuestion: %v", err)
	}
	if err := a.RecomputeExamStats(examID); err != nil {
		t.Fatalf("RecomputeExamStats after delete: %v", err)
	}
	exam, _ := s.GetExam(examID)
	if exam.TotalPoints != 0 || exam.QuestionCount != 0 || exam.Difficulty.Hard != 0 {
		t.Errorf("rollups should be zero after removing all questions: %+v", exam)
	}
}

func TestAttemptStatistics(t *testing.T) {
	s := newTestStore(t)
	a := New(s)
	examID, studentID := setupExam(t, s)

	// No graded attempts yet: a zero record, not an error.
	st, err := a.AttemptStatistics(examID)
	if err != nil {
		t.Fatalf("AttemptStatistics: %v", err)
	}
	if st.TotalAttempts != 0 || st.PassRate != 0 {
		t.Errorf("expected zero statistics, got %+v", st)
	}

	grade := func(pct float64, passed bool) {
		id, err := s.CreateAttempt(examID, studentID)
		if err != nil {
			t.Fatalf("CreateAttempt: %v", err)
		}
		if err := s.SubmitAttempt(id, map[int64]string{}); err != nil {
			t.Fatalf("SubmitAttempt: %v", err)
		}
		if err := s.GradeAttempt(id, 0, 0, pct, passed); err != nil {
			t.Fatalf("GradeAttempt: %v", err)
		}
	}
	grade(80, true)
	grade(40, false)
	grade(60, true)

	st, err = a.AttemptStatistics(examID)
	if err != nil {
		t.Fatalf("AttemptStatistics: %v", err)
	}
	if st.TotalAttempts != 3 || st.PassedCount != 2 {
		t.Errorf("expected 3 attempts 2 passed, got %+v", st)
	}
	if st.PassRate != 66.67 {
		t.Errorf("expected pass rate 66.67, got %v", st.PassRate)
	}
	if st.AvgScore != 60 {
		t.Errorf("expected avg 60, got %v", st.AvgScore)
	}
	if st.MaxScore != 80 || st.MinScore != 40 {
		t.Errorf("unexpected min/max: %+v", st)
	}
}
