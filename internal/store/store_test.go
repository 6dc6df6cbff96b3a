package store

import (
	"errors"
	"testing"

	"github.com/tranvq/exambank/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestUser(t *testing.T, s *Store, username string, role model.Role) int64 {
	t.Helper()
	id, err := s.CreateUser(model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		Role:         role,
		FullName:     "Test " + username,
	})
	if err != nil {
		t.Fatalf("insertTestUser: %v", err)
	}
	return id
}

func insertTestExam(t *testing.T, s *Store, ownerID int64, public bool) int64 {
	t.Helper()
	id, err := s.CreateExam(model.Exam{
		Title:        "Midterm",
		Description:  "Chapter 1-5",
		OwnerID:      ownerID,
		Duration:     45,
		PassingScore: 50,
		IsPublic:     public,
		Kind:         model.ExamTest,
	})
	if err != nil {
		t.Fatalf("insertTestExam: %v", err)
	}
	return id
}

func insertTestQuestion(t *testing.T, s *Store, examID int64, answer string, difficulty model.Difficulty, points int) int64 {
	t.Helper()
	id, err := s.InsertQuestion(model.Question{
		ExamID:        examID,
		Text:          "Question with answer " + answer,
		Kind:          model.KindMultipleChoice,
		Options:       []string{"one", "two", "three", "four"},
		CorrectAnswer: answer,
		Difficulty:    difficulty,
		Points:        points,
	})
	if err != nil {
		t.Fatalf("insertTestQuestion: %v", err)
	}
	return id
}

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)

	count, err := s.UserCount()
	if err != nil {
		t.Fatalf("UserCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 users, got %d", count)
	}

	id := insertTestUser(t, s, "alice", model.RoleStudent)
	user, err := s.GetUserByID(id)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if user == nil {
		t.Fatal("expected user, got nil")
	}
	if user.Username != "alice" {
		t.Errorf("expected username alice, got %q", user.Username)
	}
	if user.AvatarURL == "" {
		t.Error("expected a default avatar URL")
	}
	if user.Medals != 0 {
		t.Errorf("expected 0 medals, got %d", user.Medals)
	}

	// Missing user is nil, not an error.
	missing, err := s.GetUserByID(9999)
	if err != nil {
		t.Fatalf("GetUserByID missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing user")
	}

	byName, err := s.GetUserByUsername("alice")
	if err != nil || byName == nil || byName.ID != id {
		t.Errorf("GetUserByUsername: got %v, %v", byName, err)
	}
	byEmail, err := s.GetUserByEmail("alice@example.com")
	if err != nil || byEmail == nil || byEmail.ID != id {
		t.Errorf("GetUserByEmail: got %v, %v", byEmail, err)
	}
}

func TestUpdateProfileKeepsAvatarWhenEmpty(t *testing.T) {
	s := newTestStore(t)
	id := insertTestUser(t, s, "bob", model.RoleStudent)

	before, _ := s.GetUserByID(id)
	if err := s.UpdateProfile(id, "Bobby", "bobby@example.com", ""); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	after, _ := s.GetUserByID(id)
	if after.FullName != "Bobby" || after.Email != "bobby@example.com" {
		t.Errorf("profile not updated: %+v", after)
	}
	if after.AvatarURL != before.AvatarURL {
		t.Errorf("empty avatar URL should keep the stored one, got %q", after.AvatarURL)
	}

	if err := s.UpdateProfile(id, "Bobby", "bobby@example.com", "/uploads/avatars/x.png"); err != nil {
		t.Fatalf("UpdateProfile with avatar: %v", err)
	}
	after, _ = s.GetUserByID(id)
	if after.AvatarURL != "/uploads/avatars/x.png" {
		t.Errorf("avatar not updated, got %q", after.AvatarURL)
	}
}

func TestAddMedals(t *testing.T) {
	s := newTestStore(t)
	id := insertTestUser(t, s, "carol", model.RoleStudent)

	if err := s.AddMedals(id, 2); err != nil {
		t.Fatalf("AddMedals: %v", err)
	}
	if err := s.AddMedals(id, 1); err != nil {
		t.Fatalf("AddMedals: %v", err)
	}
	user, _ := s.GetUserByID(id)
	if user.Medals != 3 {
		t.Errorf("expected 3 medals, got %d", user.Medals)
	}

	if err := s.AddMedals(id, 0); !errors.Is(err, model.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState for non-positive count, got %v", err)
	}
	if err := s.AddMedals(9999, 1); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing user, got %v", err)
	}
}

func TestTopStudents(t *testing.T) {
	s := newTestStore(t)
	a := insertTestUser(t, s, "a", model.RoleStudent)
	b := insertTestUser(t, s, "b", model.RoleStudent)
	insertTestUser(t, s, "teach", model.RoleTeacher)

	_ = s.AddMedals(a, 1)
	_ = s.AddMedals(b, 5)

	top, err := s.TopStudents(10)
	if err != nil {
		t.Fatalf("TopStudents: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 students, got %d", len(top))
	}
	if top[0].ID != b {
		t.Errorf("expected student b first, got %d", top[0].ID)
	}
	for _, u := range top {
		if u.Role != model.RoleStudent {
			t.Errorf("teachers must not appear on the leaderboard: %+v", u)
		}
	}
}

func TestDocumentCRUDAndSearch(t *testing.T) {
	s := newTestStore(t)
	owner := insertTestUser(t, s, "teach", model.RoleTeacher)
	other := insertTestUser(t, s, "teach2", model.RoleTeacher)

	id, err := s.CreateDocument(model.Document{
		Title:       "Vật lý 12",
		Description: "Dao động cơ",
		Content:     "Con lắc đơn dao động điều hòa",
		FileType:    "txt",
		OwnerID:     owner,
	})
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	doc, err := s.GetDocument(id)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.Title != "Vật lý 12" {
		t.Errorf("unexpected title %q", doc.Title)
	}

	if _, err := s.GetDocument(9999); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if _, err := s.CreateDocument(model.Document{Title: "Other doc", OwnerID: other}); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	mine, err := s.ListDocumentsByOwner(owner, 0)
	if err != nil {
		t.Fatalf("ListDocumentsByOwner: %v", err)
	}
	if len(mine) != 1 {
		t.Errorf("expected 1 document for owner, got %d", len(mine))
	}

	// Case-insensitive search scoped to the owner.
	found, err := s.SearchDocuments("vật lý", owner)
	if err != nil {
		t.Fatalf("SearchDocuments: %v", err)
	}
	if len(found) != 1 {
		t.Errorf("expected 1 search hit, got %d", len(found))
	}
	found, _ = s.SearchDocuments("dao động", owner)
	if len(found) != 1 {
		t.Errorf("expected description/content match, got %d hits", len(found))
	}
	found, _ = s.SearchDocuments("nonexistent", owner)
	if len(found) != 0 {
		t.Errorf("expected no hits, got %d", len(found))
	}

	if err := s.UpdateDocument(id, "Updated", "desc", "content"); err != nil {
		t.Fatalf("UpdateDocument: %v", err)
	}
	doc, _ = s.GetDocument(id)
	if doc.Title != "Updated" {
		t.Errorf("title not updated, got %q", doc.Title)
	}

	if err := s.DeleteDocument(id); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if _, err := s.GetDocument(id); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestExamRollupsAndAggregates(t *testing.T) {
	s := newTestStore(t)
	owner := insertTestUser(t, s, "teach", model.RoleTeacher)
	examID := insertTestExam(t, s, owner, true)

	exam, err := s.GetExam(examID)
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	if exam.TotalPoints != 0 || exam.QuestionCount != 0 {
		t.Errorf("new exam should have zero rollups: %+v", exam)
	}

	insertTestQuestion(t, s, examID, "A", model.DifficultyEasy, 1)
	insertTestQuestion(t, s, examID, "B", model.DifficultyEasy, 2)
	insertTestQuestion(t, s, examID, "C", model.DifficultyHard, 3)

	total, count, dist, err := s.QuestionAggregates(examID)
	if err != nil {
		t.Fatalf("QuestionAggregates: %v", err)
	}
	if total != 6 || count != 3 {
		t.Errorf("expected total 6 count 3, got %d %d", total, count)
	}
	if dist.Easy != 2 || dist.Medium != 0 || dist.Hard != 1 {
		t.Errorf("unexpected distribution: %+v", dist)
	}

	if err := s.UpdateExamRollups(examID, total, count, dist); err != nil {
		t.Fatalf("UpdateExamRollups: %v", err)
	}
	exam, _ = s.GetExam(examID)
	if exam.TotalPoints != 6 || exam.QuestionCount != 3 || exam.Difficulty.Easy != 2 {
		t.Errorf("rollups not persisted: %+v", exam)
	}
}

func TestDeleteExamKeepsAttempts(t *testing.T) {
	s := newTestStore(t)
	owner := insertTestUser(t, s, "teach", model.RoleTeacher)
	student := insertTestUser(t, s, "stud", model.RoleStudent)
	examID := insertTestExam(t, s, owner, true)
	qID := insertTestQuestion(t, s, examID, "A", model.DifficultyEasy, 1)

	attemptID, err := s.CreateAttempt(examID, student)
	if err != nil {
		t.Fatalf("CreateAttempt: %v", err)
	}

	if err := s.DeleteExam(examID); err != nil {
		t.Fatalf("DeleteExam: %v", err)
	}
	if _, err := s.GetExam(examID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound for deleted exam, got %v", err)
	}
	if _, err := s.GetQuestion(qID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected questions deleted with exam, got %v", err)
	}
	// The attempt survives for the student's history.
	if _, err := s.GetAttempt(attemptID); err != nil {
		t.Errorf("attempt should survive exam deletion: %v", err)
	}
}

func TestQuestionOptionsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	owner := insertTestUser(t, s, "teach", model.RoleTeacher)
	examID := insertTestExam(t, s, owner, false)

	id := insertTestQuestion(t, s, examID, "B", model.DifficultyMedium, 2)
	q, err := s.GetQuestion(id)
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if len(q.Options) != 4 || q.Options[1] != "two" {
		t.Errorf("options not round-tripped: %v", q.Options)
	}
	if q.CorrectAnswer != "B" || q.Points != 2 {
		t.Errorf("unexpected question fields: %+v", q)
	}

	q.Text = "Edited"
	q.Options = []string{"w", "x", "y", "z"}
	if err := s.UpdateQuestion(q); err != nil {
		t.Fatalf("UpdateQuestion: %v", err)
	}
	q, _ = s.GetQuestion(id)
	if q.Text != "Edited" || q.Options[0] != "w" {
		t.Errorf("question not updated: %+v", q)
	}

	if err := s.SetExplanation(id, "Because B."); err != nil {
		t.Fatalf("SetExplanation: %v", err)
	}
	q, _ = s.GetQuestion(id)
	if q.Explanation != "Because B." {
		t.Errorf("explanation not set: %q", q.Explanation)
	}

	missing := q
	missing.ID = 9999
	if err := s.UpdateQuestion(missing); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound updating missing question, got %v", err)
	}
}

func TestAttemptLifecycle(t *testing.T) {
	s := newTestStore(t)
	owner := insertTestUser(t, s, "teach", model.RoleTeacher)
	student := insertTestUser(t, s, "stud", model.RoleStudent)
	examID := insertTestExam(t, s, owner, true)

	id, err := s.CreateAttempt(examID, student)
	if err != nil {
		t.Fatalf("CreateAttempt: %v", err)
	}

	a, err := s.GetAttempt(id)
	if err != nil {
		t.Fatalf("GetAttempt: %v", err)
	}
	if a.Status != model.AttemptInProgress {
		t.Errorf("expected in_progress, got %s", a.Status)
	}
	if a.SubmittedAt != nil || a.GradedAt != nil {
		t.Error("timestamps should be unset on a fresh attempt")
	}

	// Grading before submission must fail.
	if err := s.GradeAttempt(id, 1, 2, 50, false); !errors.Is(err, model.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState grading an in-progress attempt, got %v", err)
	}

	answers := map[int64]string{1: "A", 2: " b "}
	if err := s.SubmitAttempt(id, answers); err != nil {
		t.Fatalf("SubmitAttempt: %v", err)
	}
	a, _ = s.GetAttempt(id)
	if a.Status != model.AttemptSubmitted || a.SubmittedAt == nil {
		t.Errorf("attempt not submitted: %+v", a)
	}
	if a.Answers[2] != " b " {
		t.Errorf("answers not stored verbatim: %v", a.Answers)
	}

	// Second submit loses and leaves the first answers intact.
	if err := s.SubmitAttempt(id, map[int64]string{1: "C"}); !errors.Is(err, model.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on double submit, got %v", err)
	}
	a, _ = s.GetAttempt(id)
	if a.Answers[1] != "A" {
		t.Errorf("double submit must not overwrite answers: %v", a.Answers)
	}

	if err := s.GradeAttempt(id, 2, 2, 100, true); err != nil {
		t.Fatalf("GradeAttempt: %v", err)
	}
	a, _ = s.GetAttempt(id)
	if a.Status != model.AttemptGraded || !a.Passed || a.Percentage != 100 || a.GradedAt == nil {
		t.Errorf("attempt not graded: %+v", a)
	}

	// Grading twice must fail too.
	if err := s.GradeAttempt(id, 0, 2, 0, false); !errors.Is(err, model.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on double grade, got %v", err)
	}

	if err := s.SubmitAttempt(9999, nil); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing attempt, got %v", err)
	}
}

func TestGradedAttemptAggregates(t *testing.T) {
	s := newTestStore(t)
	owner := insertTestUser(t, s, "teach", model.RoleTeacher)
	student := insertTestUser(t, s, "stud", model.RoleStudent)
	examID := insertTestExam(t, s, owner, true)

	_, ok, err := s.GradedAttemptAggregates(examID)
	if err != nil {
		t.Fatalf("GradedAttemptAggregates: %v", err)
	}
	if ok {
		t.Error("expected ok=false with no graded attempts")
	}

	grade := func(pct float64, passed bool) {
		id, err := s.CreateAttempt(examID, student)
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
	grade(100, true)
	grade(50, true)
	grade(30, false)

	// In-progress attempts are excluded from the aggregates.
	if _, err := s.CreateAttempt(examID, student); err != nil {
		t.Fatalf("CreateAttempt: %v", err)
	}

	stats, ok, err := s.GradedAttemptAggregates(examID)
	if err != nil {
		t.Fatalf("GradedAttemptAggregates: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true")
	}
	if stats.TotalAttempts != 3 {
		t.Errorf("expected 3 graded attempts, got %d", stats.TotalAttempts)
	}
	if stats.MaxScore != 100 || stats.MinScore != 30 {
		t.Errorf("unexpected min/max: %+v", stats)
	}
	if stats.PassedCount != 2 {
		t.Errorf("expected 2 passed, got %d", stats.PassedCount)
	}
	if stats.AvgScore != 60 {
		t.Errorf("expected avg 60, got %v", stats.AvgScore)
	}
}

func TestAuthSessions(t *testing.T) {
	s := newTestStore(t)
	id := insertTestUser(t, s, "alice", model.RoleStudent)

	token, err := s.CreateAuthSession(id)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	sess, err := s.GetAuthSession(token)
	if err != nil {
		t.Fatalf("GetAuthSession: %v", err)
	}
	if sess == nil || sess.UserID != id {
		t.Fatalf("unexpected session: %+v", sess)
	}

	if err := s.DeleteAuthSession(token); err != nil {
		t.Fatalf("DeleteAuthSession: %v", err)
	}
	sess, err = s.GetAuthSession(token)
	if err != nil {
		t.Fatalf("GetAuthSession after delete: %v", err)
	}
	if sess != nil {
		t.Error("expected nil session after delete")
	}
}
