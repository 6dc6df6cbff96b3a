// Package grading turns submitted answers into a score, a pass/fail
// verdict, and a medal reward.
package grading

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/tranvq/exambank/internal/model"
	"github.com/tranvq/exambank/internal/store"
)

// Engine grades exam attempts against their exam's question set.
type Engine struct {
	store *store.Store
}

// New creates a grading engine over the given store.
func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// Submit freezes the submitted answers onto the attempt, auto-grades
// the objective questions, and awards medals to the student.
//
// Only the attempt's own student may submit, and only while the
// attempt is in progress; a second submit is rejected with
// ErrInvalidState, never silently accepted. Essay and skill questions
// contribute their points to max_score but score zero until a manual
// grading path exists.
func (e *Engine) Submit(ctx context.Context, attemptID, studentID int64, answers map[int64]string) (model.ExamAttempt, error) {
	attempt, err := e.store.GetAttempt(attemptID)
	if err != nil {
		return model.ExamAttempt{}, err
	}
	if attempt.StudentID != studentID {
		return model.ExamAttempt{}, fmt.Errorf("attempt %d belongs to another student: %w",
			attemptID, model.ErrPermissionDenied)
	}

	exam, err := e.store.GetExam(attempt.ExamID)
	if err != nil {
		return model.ExamAttempt{}, err
	}
	questions, err := e.store.ListQuestionsByExam(exam.ID)
	if err != nil {
		return model.ExamAttempt{}, err
	}

	// Conditional update: of two racing submits exactly one advances
	// the attempt, the other observes ErrInvalidState here.
	if err := e.store.SubmitAttempt(attemptID, answers); err != nil {
		return model.ExamAttempt{}, err
	}

	score, maxScore := Score(questions, answers)
	percentage := Percentage(score, maxScore)
	passed := percentage >= float64(exam.PassingScore)

	if err := e.store.GradeAttempt(attemptID, score, maxScore, percentage, passed); err != nil {
		return model.ExamAttempt{}, err
	}

	// 1 medal for completing, 1 more for passing. Practice and test
	// exams currently award the same amounts.
	medals := 1
	if passed {
		medals++
	}
	if err := e.store.AddMedals(studentID, medals); err != nil {
		return model.ExamAttempt{}, fmt.Errorf("award medals: %w", err)
	}

	slog.Info("graded attempt",
		"attempt_id", attemptID,
		"exam_id", exam.ID,
		"student_id", studentID,
		"score", score,
		"max_score", maxScore,
		"percentage", percentage,
		"passed", passed,
		"medals", medals,
	)

	return e.store.GetAttempt(attemptID)
}

// Score computes the earned and maximum score for a set of answers.
// Every question contributes its points to the maximum; only
// auto-gradable kinds can earn points, by trimmed case-insensitive
// comparison with the stored correct answer.
func Score(questions []model.Question, answers map[int64]string) (score, maxScore int) {
	for _, q := range questions {
		maxScore += q.Points
		if !q.Kind.AutoGradable() {
			continue
		}
		if q.AnswerMatches(answers[q.ID]) {
			score += q.Points
		}
	}
	return score, maxScore
}

// Percentage returns score/maxScore as a percentage rounded to two
// decimal places. A zero maximum is defined as 0, not an error.
func Percentage(score, maxScore int) float64 {
	if maxScore == 0 {
		return 0
	}
	p := float64(score) / float64(maxScore) * 100
	return math.Round(p*100) / 100
}
