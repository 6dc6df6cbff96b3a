package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/tranvq/exambank/internal/model"
	"github.com/tranvq/exambank/internal/pdf"
)

type examRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Duration     int    `json:"duration"`
	PassingScore int    `json:"passing_score"`
	IsPublic     bool   `json:"is_public"`
	Kind         string `json:"exam_kind"`
}

func (h *Handler) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())

	var req examRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	exam, err := examFromRequest(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	exam.OwnerID = user.ID

	id, err := h.store.CreateExam(exam)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	created, err := h.store.GetExam(id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func examFromRequest(req examRequest) (model.Exam, error) {
	if strings.TrimSpace(req.Title) == "" {
		return model.Exam{}, fmt.Errorf("title is required")
	}
	kind := model.ExamTest
	switch req.Kind {
	case "", string(model.ExamTest):
	case string(model.ExamPractice):
		kind = model.ExamPractice
	default:
		return model.Exam{}, fmt.Errorf("unknown exam kind %q", req.Kind)
	}
	if req.Duration < 0 {
		return model.Exam{}, fmt.Errorf("duration must not be negative")
	}
	if req.PassingScore < 0 || req.PassingScore > 100 {
		return model.Exam{}, fmt.Errorf("passing score must be between 0 and 100")
	}
	return model.Exam{
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		Duration:     req.Duration,
		PassingScore: req.PassingScore,
		IsPublic:     req.IsPublic,
		Kind:         kind,
	}, nil
}

func (h *Handler) handleListExams(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	exams, err := h.store.ListExamsByOwner(user.ID, 0)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"exams": exams})
}

func (h *Handler) handleListPublicExams(w http.ResponseWriter, r *http.Request) {
	exams, err := h.store.ListPublicExams(0)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"exams": exams})
}

func (h *Handler) handleSearchExams(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	exams, err := h.store.SearchExams(r.URL.Query().Get("q"), user.ID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"exams": exams})
}

// studentQuestion is the answer-free view served to exam takers.
type studentQuestion struct {
	ID             int64              `json:"id"`
	ExamID         int64              `json:"exam_id"`
	Text           string             `json:"question_text"`
	Kind           model.QuestionKind `json:"question_type"`
	Options        []string           `json:"options"`
	Difficulty     model.Difficulty   `json:"difficulty"`
	Points         int                `json:"points"`
	MediaURL       string             `json:"media_url,omitempty"`
	SupportContent string             `json:"support_content,omitempty"`
	GroupPrompt    string             `json:"group_prompt,omitempty"`
}

func toStudentQuestions(questions []model.Question) []studentQuestion {
	out := make([]studentQuestion, len(questions))
	for i, q := range questions {
		out[i] = studentQuestion{
			ID:             q.ID,
			ExamID:         q.ExamID,
			Text:           q.Text,
			Kind:           q.Kind,
			Options:        q.Options,
			Difficulty:     q.Difficulty,
			Points:         q.Points,
			MediaURL:       q.MediaURL,
			SupportContent: q.SupportContent,
			GroupPrompt:    q.GroupPrompt,
		}
	}
	return out
}

// handleGetExam returns the exam with its questions. The owner sees
// full questions including answers; everyone else only sees public
// exams, with the correct answers and explanations stripped.
func (h *Handler) handleGetExam(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "examID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid exam ID")
		return
	}
	exam, err := h.store.GetExam(id)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	user := model.UserFromContext(r.Context())
	isOwner := exam.OwnerID == user.ID
	if !isOwner && !exam.IsPublic {
		respondError(w, http.StatusForbidden, "forbidden")
		return
	}

	questions, err := h.store.ListQuestionsByExam(exam.ID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	if isOwner {
		respondJSON(w, http.StatusOK, map[string]any{"exam": exam, "questions": questions})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"exam": exam, "questions": toStudentQuestions(questions)})
}

func (h *Handler) handleUpdateExam(w http.ResponseWriter, r *http.Request) {
	exam, ok := h.ownedExam(w, r)
	if !ok {
		return
	}

	var req examRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	updated, err := examFromRequest(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	updated.ID = exam.ID

	if err := h.store.UpdateExam(updated); err != nil {
		respondStoreError(w, err)
		return
	}
	fresh, err := h.store.GetExam(exam.ID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, fresh)
}

// handleDeleteExam removes the exam and its questions. Attempts are
// kept for the students' history.
func (h *Handler) handleDeleteExam(w http.ResponseWriter, r *http.Request) {
	exam, ok := h.ownedExam(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteExam(exam.ID); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) handleExamStatistics(w http.ResponseWriter, r *http.Request) {
	exam, ok := h.ownedExam(w, r)
	if !ok {
		return
	}
	st, err := h.stats.AttemptStatistics(exam.ID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// handleListExamAttempts lists attempts at an owned exam, optionally
// narrowed to one student via ?student_id=.
func (h *Handler) handleListExamAttempts(w http.ResponseWriter, r *http.Request) {
	exam, ok := h.ownedExam(w, r)
	if !ok {
		return
	}
	var attempts []model.ExamAttempt
	var err error
	if raw := r.URL.Query().Get("student_id"); raw != "" {
		studentID, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			respondError(w, http.StatusBadRequest, "invalid student ID")
			return
		}
		attempts, err = h.store.ListAttemptsByExamAndStudent(exam.ID, studentID)
	} else {
		attempts, err = h.store.ListAttemptsByExam(exam.ID, 0)
	}
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"attempts": attempts})
}

// handleExportExam renders the exam as a PDF paper. Flags come from
// query parameters; answer shuffling is suppressed on the answer key
// inside the renderer.
func (h *Handler) handleExportExam(w http.ResponseWriter, r *http.Request) {
	exam, ok := h.ownedExam(w, r)
	if !ok {
		return
	}
	questions, err := h.store.ListQuestionsByExam(exam.ID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if len(questions) == 0 {
		respondError(w, http.StatusBadRequest, "exam has no questions")
		return
	}

	opts := pdf.Options{
		ShuffleQuestions: queryFlag(r, "shuffle_questions"),
		ShuffleAnswers:   queryFlag(r, "shuffle_answers"),
		IncludeAnswers:   queryFlag(r, "include_answers"),
	}
	data, err := h.pdf.Render(r.Context(), exam, questions, opts)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename(exam.Title)))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

// exportFilename derives a safe download name from the exam title.
func exportFilename(title string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, strings.ContainsRune(`/\:*?"<>|`, r):
			return -1
		case r == ' ':
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		name = "exam"
	}
	return name + ".pdf"
}

func queryFlag(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

// ownedExam loads the exam from the URL and enforces ownership.
func (h *Handler) ownedExam(w http.ResponseWriter, r *http.Request) (model.Exam, bool) {
	id, err := urlID(r, "examID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid exam ID")
		return model.Exam{}, false
	}
	exam, err := h.store.GetExam(id)
	if err != nil {
		respondStoreError(w, err)
		return model.Exam{}, false
	}
	user := model.UserFromContext(r.Context())
	if exam.OwnerID != user.ID {
		respondError(w, http.StatusForbidden, "forbidden")
		return model.Exam{}, false
	}
	return exam, true
}
