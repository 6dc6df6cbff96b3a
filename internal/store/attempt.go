package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tranvq/exambank/internal/model"
)

const attemptColumns = `id, exam_id, student_id, answers, score, max_score, percentage, passed,
	status, started_at, submitted_at, graded_at, created_at, updated_at`

// CreateAttempt starts a new in-progress attempt.
func (s *Store) CreateAttempt(examID, studentID int64) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(
		`INSERT INTO exam_attempts (exam_id, student_id, answers, status, started_at, created_at, updated_at)
		 VALUES (?, ?, '{}', ?, ?, ?, ?)`,
		examID, studentID, model.AttemptInProgress, now, now, now,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetAttempt returns an attempt by ID.
func (s *Store) GetAttempt(id int64) (model.ExamAttempt, error) {
	row := s.db.QueryRow(`SELECT `+attemptColumns+` FROM exam_attempts WHERE id = ?`, id)
	a, err := scanAttempt(row.Scan)
	if err == sql.ErrNoRows {
		return a, fmt.Errorf("attempt %d: %w", id, model.ErrNotFound)
	}
	return a, err
}

// ListAttemptsByStudent returns a student's attempts, newest first.
// A limit of 0 means no limit.
func (s *Store) ListAttemptsByStudent(studentID int64, limit int) ([]model.ExamAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM exam_attempts WHERE student_id = ? ORDER BY created_at DESC`
	args := []any{studentID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryAttempts(query, args...)
}

// ListAttemptsByExam returns an exam's attempts, newest first.
func (s *Store) ListAttemptsByExam(examID int64, limit int) ([]model.ExamAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM exam_attempts WHERE exam_id = ? ORDER BY created_at DESC`
	args := []any{examID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryAttempts(query, args...)
}

// ListAttemptsByExamAndStudent returns one student's attempts at one
// exam, newest first.
func (s *Store) ListAttemptsByExamAndStudent(examID, studentID int64) ([]model.ExamAttempt, error) {
	return s.queryAttempts(
		`SELECT `+attemptColumns+` FROM exam_attempts WHERE exam_id = ? AND student_id = ? ORDER BY created_at DESC`,
		examID, studentID,
	)
}

// SubmitAttempt freezes the answers and advances the attempt to
// submitted. The update fires only while the attempt is still in
// progress, so exactly one of two racing submits wins; the loser gets
// ErrInvalidState.
func (s *Store) SubmitAttempt(id int64, answers map[int64]string) error {
	data, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	now := time.Now().UTC()
	res, err := s.db.Exec(
		`UPDATE exam_attempts SET answers = ?, status = ?, submitted_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(data), model.AttemptSubmitted, now, now, id, model.AttemptInProgress,
	)
	if err != nil {
		return err
	}
	return s.checkTransition(res, id)
}

// GradeAttempt writes the score fields and advances the attempt to
// graded. Only fires on a submitted attempt.
func (s *Store) GradeAttempt(id int64, score, maxScore int, percentage float64, passed bool) error {
	now := time.Now().UTC()
	res, err := s.db.Exec(
		`UPDATE exam_attempts SET score = ?, max_score = ?, percentage = ?, passed = ?,
		 status = ?, graded_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		score, maxScore, percentage, passed, model.AttemptGraded, now, now, id, model.AttemptSubmitted,
	)
	if err != nil {
		return err
	}
	return s.checkTransition(res, id)
}

// checkTransition turns a zero-row conditional update into the right
// failure: missing row or wrong state.
func (s *Store) checkTransition(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var status model.AttemptStatus
	err = s.db.QueryRow(`SELECT status FROM exam_attempts WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return fmt.Errorf("attempt %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("attempt %d is %s: %w", id, status, model.ErrInvalidState)
}

// DeleteAttempt removes an attempt record.
func (s *Store) DeleteAttempt(id int64) error {
	_, err := s.db.Exec(`DELETE FROM exam_attempts WHERE id = ?`, id)
	return err
}

// GradedAttemptAggregates computes percentage aggregates over an exam's
// graded attempts. A zeroed result with ok=false means no graded
// attempts exist, which is not an error.
func (s *Store) GradedAttemptAggregates(examID int64) (stats model.AttemptStatistics, ok bool, err error) {
	err = s.db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(AVG(percentage), 0),
		        COALESCE(MAX(percentage), 0),
		        COALESCE(MIN(percentage), 0),
		        COALESCE(SUM(passed), 0)
		 FROM exam_attempts WHERE exam_id = ? AND status = ?`,
		examID, model.AttemptGraded,
	).Scan(&stats.TotalAttempts, &stats.AvgScore, &stats.MaxScore, &stats.MinScore, &stats.PassedCount)
	if err != nil {
		return stats, false, err
	}
	return stats, stats.TotalAttempts > 0, nil
}

func (s *Store) queryAttempts(query string, args ...any) ([]model.ExamAttempt, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var attempts []model.ExamAttempt
	for rows.Next() {
		a, err := scanAttempt(rows.Scan)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func scanAttempt(scan func(...any) error) (model.ExamAttempt, error) {
	var a model.ExamAttempt
	var answers string
	err := scan(&a.ID, &a.ExamID, &a.StudentID, &answers, &a.Score, &a.MaxScore,
		&a.Percentage, &a.Passed, &a.Status, &a.StartedAt, &a.SubmittedAt, &a.GradedAt,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return a, err
	}
	if err := json.Unmarshal([]byte(answers), &a.Answers); err != nil {
		return a, fmt.Errorf("unmarshal answers for attempt %d: %w", a.ID, err)
	}
	return a, nil
}
