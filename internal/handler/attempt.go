package handler

import (
	"errors"
	"net/http"

	"github.com/tranvq/exambank/internal/model"
)

// handleStartAttempt opens a new attempt at a public exam. Empty
// exams cannot be attempted.
func (h *Handler) handleStartAttempt(w http.ResponseWriter, r *http.Request) {
	examID, err := urlID(r, "examID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid exam ID")
		return
	}
	exam, err := h.store.GetExam(examID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	user := model.UserFromContext(r.Context())
	if !exam.IsPublic && exam.OwnerID != user.ID {
		respondError(w, http.StatusForbidden, "forbidden")
		return
	}
	if exam.QuestionCount == 0 {
		respondError(w, http.StatusBadRequest, "exam has no questions")
		return
	}

	id, err := h.store.CreateAttempt(exam.ID, user.ID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	attempt, err := h.store.GetAttempt(id)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	questions, err := h.store.ListQuestionsByExam(exam.ID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"attempt":   attempt,
		"exam":      exam,
		"questions": toStudentQuestions(questions),
	})
}

type submitRequest struct {
	Answers map[int64]string `json:"answers"`
}

// handleSubmitAttempt freezes the answers and grades the attempt in
// one step. A second submit of the same attempt is rejected without
// touching the first result.
func (h *Handler) handleSubmitAttempt(w http.ResponseWriter, r *http.Request) {
	attemptID, err := urlID(r, "attemptID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid attempt ID")
		return
	}

	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Answers == nil {
		req.Answers = map[int64]string{}
	}

	user := model.UserFromContext(r.Context())
	attempt, err := h.grader.Submit(r.Context(), attemptID, user.ID, req.Answers)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, attempt)
}

// handleGetAttempt returns a graded attempt's result. Visible to the
// student who took it and to the exam's owner. An attempt whose exam
// was deleted is still readable by its student.
func (h *Handler) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	attemptID, err := urlID(r, "attemptID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid attempt ID")
		return
	}
	attempt, err := h.store.GetAttempt(attemptID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	user := model.UserFromContext(r.Context())
	if attempt.StudentID != user.ID {
		exam, err := h.store.GetExam(attempt.ExamID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				respondError(w, http.StatusForbidden, "forbidden")
				return
			}
			respondStoreError(w, err)
			return
		}
		if exam.OwnerID != user.ID {
			respondError(w, http.StatusForbidden, "forbidden")
			return
		}
	}
	respondJSON(w, http.StatusOK, attempt)
}

// handleDeleteAttempt lets an exam owner purge one attempt record,
// for instance after a student's request.
func (h *Handler) handleDeleteAttempt(w http.ResponseWriter, r *http.Request) {
	attemptID, err := urlID(r, "attemptID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid attempt ID")
		return
	}
	attempt, err := h.store.GetAttempt(attemptID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	exam, err := h.store.GetExam(attempt.ExamID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	user := model.UserFromContext(r.Context())
	if exam.OwnerID != user.ID {
		respondError(w, http.StatusForbidden, "forbidden")
		return
	}
	if err := h.store.DeleteAttempt(attemptID); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleDashboard bundles the data for the student home screen into a
// single response.
func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())

	exams, err := h.store.ListPublicExams(0)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	attempts, err := h.store.ListAttemptsByStudent(user.ID, 5)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	students, err := h.store.TopStudents(10)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"exams":        exams,
		"attempts":     attempts,
		"top_students": students,
	})
}

func (h *Handler) handleMyAttempts(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	attempts, err := h.store.ListAttemptsByStudent(user.ID, 0)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"attempts": attempts})
}
