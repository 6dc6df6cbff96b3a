package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tranvq/exambank/internal/model"
)

const examColumns = `id, title, description, owner_id, duration, passing_score, is_public, exam_kind,
	total_points, question_count, easy_count, medium_count, hard_count, created_at, updated_at`

// CreateExam inserts a new exam with zeroed rollup fields.
func (s *Store) CreateExam(e model.Exam) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(
		`INSERT INTO exams (title, description, owner_id, duration, passing_score, is_public, exam_kind, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Title, e.Description, e.OwnerID, e.Duration, e.PassingScore, e.IsPublic, e.Kind, now, now,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetExam returns an exam by ID.
func (s *Store) GetExam(id int64) (model.Exam, error) {
	var e model.Exam
	err := s.db.QueryRow(`SELECT `+examColumns+` FROM exams WHERE id = ?`, id).Scan(
		&e.ID, &e.Title, &e.Description, &e.OwnerID, &e.Duration, &e.PassingScore,
		&e.IsPublic, &e.Kind, &e.TotalPoints, &e.QuestionCount,
		&e.Difficulty.Easy, &e.Difficulty.Medium, &e.Difficulty.Hard,
		&e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return e, fmt.Errorf("exam %d: %w", id, model.ErrNotFound)
	}
	return e, err
}

// ListExamsByOwner returns an owner's exams, newest first.
// A limit of 0 means no limit.
func (s *Store) ListExamsByOwner(ownerID int64, limit int) ([]model.Exam, error) {
	query := `SELECT ` + examColumns + ` FROM exams WHERE owner_id = ? ORDER BY created_at DESC`
	args := []any{ownerID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	return collectExams(rows)
}

// ListPublicExams returns public exams, newest first.
func (s *Store) ListPublicExams(limit int) ([]model.Exam, error) {
	query := `SELECT ` + examColumns + ` FROM exams WHERE is_public = 1 ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	return collectExams(rows)
}

// SearchExams matches title or description, case-insensitively.
// An ownerID of 0 searches all exams.
func (s *Store) SearchExams(query string, ownerID int64) ([]model.Exam, error) {
	q := `SELECT ` + examColumns + ` FROM exams
		 WHERE (title LIKE ? COLLATE NOCASE OR description LIKE ? COLLATE NOCASE)`
	pattern := "%" + query + "%"
	args := []any{pattern, pattern}
	if ownerID != 0 {
		q += ` AND owner_id = ?`
		args = append(args, ownerID)
	}
	q += ` ORDER BY created_at DESC`
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	return collectExams(rows)
}

// UpdateExam replaces the teacher-editable fields. Rollup fields are
// only written through UpdateExamRollups.
func (s *Store) UpdateExam(e model.Exam) error {
	_, err := s.db.Exec(
		`UPDATE exams SET title = ?, description = ?, duration = ?, passing_score = ?,
		 is_public = ?, exam_kind = ?, updated_at = ? WHERE id = ?`,
		e.Title, e.Description, e.Duration, e.PassingScore, e.IsPublic, e.Kind,
		time.Now().UTC(), e.ID,
	)
	return err
}

// UpdateExamRollups writes the derived statistics for an exam.
func (s *Store) UpdateExamRollups(id int64, totalPoints, questionCount int, dist model.DifficultyDistribution) error {
	_, err := s.db.Exec(
		`UPDATE exams SET total_points = ?, question_count = ?,
		 easy_count = ?, medium_count = ?, hard_count = ?, updated_at = ? WHERE id = ?`,
		totalPoints, questionCount, dist.Easy, dist.Medium, dist.Hard, time.Now().UTC(), id,
	)
	return err
}

// DeleteExam removes an exam and its questions in one transaction.
// Attempts referencing the exam are kept as historical records.
func (s *Store) DeleteExam(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM questions WHERE exam_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM exams WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func collectExams(rows *sql.Rows) ([]model.Exam, error) {
	defer rows.Close()
	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.OwnerID, &e.Duration,
			&e.PassingScore, &e.IsPublic, &e.Kind, &e.TotalPoints, &e.QuestionCount,
			&e.Difficulty.Easy, &e.Difficulty.Medium, &e.Difficulty.Hard,
			&e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}
