package model

import (
	"fmt"
	"strings"
	"time"
)

// QuestionKind determines the shape of a question's options and
// correct-answer fields.
type QuestionKind string

const (
	KindMultipleChoice QuestionKind = "multiple_choice"
	KindTrueFalse      QuestionKind = "true_false"
	KindEssay          QuestionKind = "essay"
	KindListening      QuestionKind = "listening"
	KindSpeaking       QuestionKind = "speaking"
	KindReading        QuestionKind = "reading"
	KindWriting        QuestionKind = "writing"
	KindGroup          QuestionKind = "group"
)

// MultipleChoiceLabels are the recognized answer labels for
// multiple-choice questions, in option order.
var MultipleChoiceLabels = []string{"A", "B", "C", "D"}

// Question belongs to exactly one exam. The meaning of Options and
// CorrectAnswer depends on Kind; Validate is the single choke point
// that enforces the per-kind shape.
type Question struct {
	ID             int64        `json:"id"`
	ExamID         int64        `json:"exam_id"`
	Text           string       `json:"question_text"`
	Kind           QuestionKind `json:"question_type"`
	Options        []string     `json:"options"`
	CorrectAnswer  string       `json:"correct_answer"`
	Difficulty     Difficulty   `json:"difficulty"`
	Points         int          `json:"points"`
	Explanation    string       `json:"explanation,omitempty"`
	MediaURL       string       `json:"media_url,omitempty"`
	SupportContent string       `json:"support_content,omitempty"`
	GroupPrompt    string       `json:"group_prompt,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// AutoGradable reports whether the kind is scored by exact-match
// comparison. Other kinds contribute zero until graded manually.
func (k QuestionKind) AutoGradable() bool {
	return k == KindMultipleChoice || k == KindTrueFalse
}

// SkillKind reports whether the kind requires media plus support text.
func (k QuestionKind) SkillKind() bool {
	switch k {
	case KindListening, KindSpeaking, KindReading, KindWriting:
		return true
	}
	return false
}

// Validate enforces the option/correct-answer shape for the question's
// kind. It is called on every create and edit; questions with an
// unrecognized kind or a mismatched shape are never persisted.
func (q *Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("question text is required: %w", ErrInvalidState)
	}
	switch q.Difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		return fmt.Errorf("unknown difficulty %q: %w", q.Difficulty, ErrInvalidState)
	}
	if q.Points <= 0 {
		return fmt.Errorf("points must be positive: %w", ErrInvalidState)
	}

	switch q.Kind {
	case KindMultipleChoice:
		if len(q.Options) != len(MultipleChoiceLabels) {
			return fmt.Errorf("multiple choice needs %d options, got %d: %w",
				len(MultipleChoiceLabels), len(q.Options), ErrInvalidQuestionKind)
		}
		for i, opt := range q.Options {
			if strings.TrimSpace(opt) == "" {
				return fmt.Errorf("option %s is empty: %w", MultipleChoiceLabels[i], ErrInvalidQuestionKind)
			}
		}
		if !validLabel(q.CorrectAnswer) {
			return fmt.Errorf("correct answer must be one of %v, got %q: %w",
				MultipleChoiceLabels, q.CorrectAnswer, ErrInvalidQuestionKind)
		}
	case KindTrueFalse:
		if len(q.Options) != 2 {
			return fmt.Errorf("true/false needs exactly 2 options: %w", ErrInvalidQuestionKind)
		}
		if !answerMatchesOption(q.CorrectAnswer, q.Options) {
			return fmt.Errorf("correct answer %q is not one of the two literals: %w",
				q.CorrectAnswer, ErrInvalidQuestionKind)
		}
	case KindEssay:
		if len(q.Options) != 0 {
			return fmt.Errorf("essay questions carry no options: %w", ErrInvalidQuestionKind)
		}
	case KindListening, KindSpeaking, KindReading, KindWriting:
		if len(q.Options) != 0 {
			return fmt.Errorf("%s questions carry no options: %w", q.Kind, ErrInvalidQuestionKind)
		}
		if q.MediaURL == "" {
			return fmt.Errorf("%s questions require a media reference: %w", q.Kind, ErrInvalidQuestionKind)
		}
		if strings.TrimSpace(q.SupportContent) == "" {
			return fmt.Errorf("%s questions require support content: %w", q.Kind, ErrInvalidQuestionKind)
		}
	case KindGroup:
		if len(q.Options) != 0 {
			return fmt.Errorf("group questions carry no options: %w", ErrInvalidQuestionKind)
		}
		if strings.TrimSpace(q.GroupPrompt) == "" {
			return fmt.Errorf("group questions require a shared prompt: %w", ErrInvalidQuestionKind)
		}
	default:
		return fmt.Errorf("unknown question kind %q: %w", q.Kind, ErrInvalidQuestionKind)
	}
	return nil
}

func validLabel(answer string) bool {
	for _, l := range MultipleChoiceLabels {
		if strings.EqualFold(strings.TrimSpace(answer), l) {
			return true
		}
	}
	return false
}

func answerMatchesOption(answer string, options []string) bool {
	for _, opt := range options {
		if strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(opt)) {
			return true
		}
	}
	return false
}

// AnswerMatches compares a submitted answer to the stored
// correct-answer specification: case-insensitive, whitespace-trimmed
// exact match.
func (q *Question) AnswerMatches(submitted string) bool {
	return strings.EqualFold(strings.TrimSpace(submitted), strings.TrimSpace(q.CorrectAnswer))
}
