package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tranvq/exambank/internal/model"
)

const questionColumns = `id, exam_id, question_text, question_kind, options, correct_answer,
	difficulty, points, explanation, media_url, support_content, group_prompt, created_at, updated_at`

// InsertQuestion stores a question. Callers validate the shape first.
func (s *Store) InsertQuestion(q model.Question) (int64, error) {
	opts, err := json.Marshal(q.Options)
	if err != nil {
		return 0, fmt.Errorf("marshal options: %w", err)
	}
	now := time.Now().UTC()
	res, err := s.db.Exec(
		`INSERT INTO questions (exam_id, question_text, question_kind, options, correct_answer,
		 difficulty, points, explanation, media_url, support_content, group_prompt, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ExamID, q.Text, q.Kind, string(opts), q.CorrectAnswer,
		q.Difficulty, q.Points, q.Explanation, q.MediaURL, q.SupportContent, q.GroupPrompt, now, now,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetQuestion returns a question by ID.
func (s *Store) GetQuestion(id int64) (model.Question, error) {
	row := s.db.QueryRow(`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id)
	q, err := scanQuestion(row.Scan)
	if err == sql.ErrNoRows {
		return q, fmt.Errorf("question %d: %w", id, model.ErrNotFound)
	}
	return q, err
}

// ListQuestionsByExam returns an exam's questions in creation order.
func (s *Store) ListQuestionsByExam(examID int64) ([]model.Question, error) {
	rows, err := s.db.Query(
		`SELECT `+questionColumns+` FROM questions WHERE exam_id = ? ORDER BY created_at, id`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows.Scan)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// UpdateQuestion replaces all editable fields of a question.
func (s *Store) UpdateQuestion(q model.Question) error {
	opts, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	res, err := s.db.Exec(
		`UPDATE questions SET question_text = ?, question_kind = ?, options = ?, correct_answer = ?,
		 difficulty = ?, points = ?, explanation = ?, media_url = ?, support_content = ?,
		 group_prompt = ?, updated_at = ? WHERE id = ?`,
		q.Text, q.Kind, string(opts), q.CorrectAnswer, q.Difficulty, q.Points,
		q.Explanation, q.MediaURL, q.SupportContent, q.GroupPrompt, time.Now().UTC(), q.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("question %d: %w", q.ID, model.ErrNotFound)
	}
	return nil
}

// SetExplanation stores a generated explanation on a question.
func (s *Store) SetExplanation(id int64, explanation string) error {
	_, err := s.db.Exec(
		`UPDATE questions SET explanation = ?, updated_at = ? WHERE id = ?`,
		explanation, time.Now().UTC(), id,
	)
	return err
}

// DeleteQuestion removes a question.
func (s *Store) DeleteQuestion(id int64) error {
	_, err := s.db.Exec(`DELETE FROM questions WHERE id = ?`, id)
	return err
}

// QuestionAggregates sums point values, counts questions, and buckets
// them by difficulty for one exam. Missing buckets stay zero.
func (s *Store) QuestionAggregates(examID int64) (totalPoints, questionCount int, dist model.DifficultyDistribution, err error) {
	err = s.db.QueryRow(
		`SELECT COALESCE(SUM(points), 0), COUNT(*) FROM questions WHERE exam_id = ?`, examID,
	).Scan(&totalPoints, &questionCount)
	if err != nil {
		return 0, 0, dist, err
	}

	rows, err := s.db.Query(
		`SELECT difficulty, COUNT(*) FROM questions WHERE exam_id = ? GROUP BY difficulty`, examID,
	)
	if err != nil {
		return 0, 0, dist, err
	}
	defer rows.Close()
	for rows.Next() {
		var difficulty model.Difficulty
		var count int
		if err := rows.Scan(&difficulty, &count); err != nil {
			return 0, 0, dist, err
		}
		switch difficulty {
		case model.DifficultyEasy:
			dist.Easy = count
		case model.DifficultyMedium:
			dist.Medium = count
		case model.DifficultyHard:
			dist.Hard = count
		}
	}
	return totalPoints, questionCount, dist, rows.Err()
}

func scanQuestion(scan func(...any) error) (model.Question, error) {
	var q model.Question
	var opts string
	err := scan(&q.ID, &q.ExamID, &q.Text, &q.Kind, &opts, &q.CorrectAnswer,
		&q.Difficulty, &q.Points, &q.Explanation, &q.MediaURL, &q.SupportContent,
		&q.GroupPrompt, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return q, err
	}
	if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
		return q, fmt.Errorf("unmarshal options for question %d: %w", q.ID, err)
	}
	return q, nil
}
