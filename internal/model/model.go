package model

import (
	"context"
	"net/url"
	"time"
)

// Role represents a user's access level.
type Role string

const (
	// RoleTeacher can author documents, exams, and questions.
	RoleTeacher Role = "teacher"
	// RoleStudent can take public exams and collect medals.
	RoleStudent Role = "student"
)

// User represents a system user.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	FullName     string    `json:"full_name"`
	AvatarURL    string    `json:"avatar_url"`
	Medals       int       `json:"medals"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DefaultAvatarURL builds the fallback avatar for a username.
func DefaultAvatarURL(username string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(username) + "&background=667eea&color=fff"
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Document holds an uploaded or pasted source document.
type Document struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	FilePath    string    `json:"file_path"`
	FileType    string    `json:"file_type"`
	OwnerID     int64     `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ExamKind distinguishes graded tests from practice runs.
type ExamKind string

const (
	ExamTest     ExamKind = "test"
	ExamPractice ExamKind = "practice"
)

// DifficultyDistribution counts questions per difficulty bucket.
// Buckets are always present, zero when empty.
type DifficultyDistribution struct {
	Easy   int `json:"easy"`
	Medium int `json:"medium"`
	Hard   int `json:"hard"`
}

// Exam represents an exam with its derived rollup fields.
// TotalPoints, QuestionCount, and Difficulty are a pure function of the
// exam's current question set and must only be written by the stats
// aggregator, never edited by hand.
type Exam struct {
	ID            int64                  `json:"id"`
	Title         string                 `json:"title"`
	Description   string                 `json:"description"`
	OwnerID       int64                  `json:"owner_id"`
	Duration      int                    `json:"duration"` // minutes, 0 = untimed
	PassingScore  int                    `json:"passing_score"`
	IsPublic      bool                   `json:"is_public"`
	Kind          ExamKind               `json:"exam_kind"`
	TotalPoints   int                    `json:"total_points"`
	QuestionCount int                    `json:"question_count"`
	Difficulty    DifficultyDistribution `json:"difficulty_distribution"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// Difficulty represents question difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// AttemptStatus represents the state of an exam attempt.
// Transitions are strictly forward: in_progress → submitted → graded.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptGraded     AttemptStatus = "graded"
)

var attemptOrder = map[AttemptStatus]int{
	AttemptInProgress: 0,
	AttemptSubmitted:  1,
	AttemptGraded:     2,
}

// CanAdvanceTo reports whether next is the immediate successor of s.
func (s AttemptStatus) CanAdvanceTo(next AttemptStatus) bool {
	cur, ok := attemptOrder[s]
	if !ok {
		return false
	}
	n, ok := attemptOrder[next]
	if !ok {
		return false
	}
	return n == cur+1
}

// ExamAttempt represents one student's run at an exam.
// Answers is frozen once the attempt is submitted; score fields are
// frozen once it is graded.
type ExamAttempt struct {
	ID          int64            `json:"id"`
	ExamID      int64            `json:"exam_id"`
	StudentID   int64            `json:"student_id"`
	Answers     map[int64]string `json:"answers"`
	Score       int              `json:"score"`
	MaxScore    int              `json:"max_score"`
	Percentage  float64          `json:"percentage"`
	Passed      bool             `json:"passed"`
	Status      AttemptStatus    `json:"status"`
	StartedAt   time.Time        `json:"started_at"`
	SubmittedAt *time.Time       `json:"submitted_at,omitempty"`
	GradedAt    *time.Time       `json:"graded_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// AttemptStatistics aggregates graded attempts for one exam.
type AttemptStatistics struct {
	TotalAttempts int     `json:"total_attempts"`
	AvgScore      float64 `json:"avg_score"`
	MaxScore      float64 `json:"max_score"`
	MinScore      float64 `json:"min_score"`
	PassedCount   int     `json:"passed_count"`
	PassRate      float64 `json:"pass_rate"`
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}
