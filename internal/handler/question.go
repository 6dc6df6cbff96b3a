package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/tranvq/exambank/internal/fileio"
	"github.com/tranvq/exambank/internal/model"
)

// maxMediaSize caps media uploads at 64MB.
const maxMediaSize = 64 << 20

type questionRequest struct {
	Text           string             `json:"question_text"`
	Kind           model.QuestionKind `json:"question_type"`
	Options        []string           `json:"options"`
	CorrectAnswer  string             `json:"correct_answer"`
	Difficulty     model.Difficulty   `json:"difficulty"`
	Points         int                `json:"points"`
	Explanation    string             `json:"explanation"`
	MediaURL       string             `json:"media_url"`
	SupportContent string             `json:"support_content"`
	GroupPrompt    string             `json:"group_prompt"`
}

func (req questionRequest) toQuestion() model.Question {
	points := req.Points
	if points == 0 {
		points = 1
	}
	return model.Question{
		Text:           req.Text,
		Kind:           req.Kind,
		Options:        req.Options,
		CorrectAnswer:  req.CorrectAnswer,
		Difficulty:     req.Difficulty,
		Points:         points,
		Explanation:    req.Explanation,
		MediaURL:       req.MediaURL,
		SupportContent: req.SupportContent,
		GroupPrompt:    req.GroupPrompt,
	}
}

// handleAddQuestion validates and stores a question, then recomputes
// the exam rollups so listings stay consistent.
func (h *Handler) handleAddQuestion(w http.ResponseWriter, r *http.Request) {
	exam, ok := h.ownedExam(w, r)
	if !ok {
		return
	}

	var req questionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	q := req.toQuestion()
	q.ExamID = exam.ID
	if err := q.Validate(); err != nil {
		respondStoreError(w, err)
		return
	}

	id, err := h.store.InsertQuestion(q)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if err := h.stats.RecomputeExamStats(exam.ID); err != nil {
		respondStoreError(w, err)
		return
	}

	created, err := h.store.GetQuestion(id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.ownedQuestion(w, r)
	if !ok {
		return
	}

	var req questionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	q := req.toQuestion()
	q.ID = existing.ID
	q.ExamID = existing.ExamID
	if err := q.Validate(); err != nil {
		respondStoreError(w, err)
		return
	}

	if err := h.store.UpdateQuestion(q); err != nil {
		respondStoreError(w, err)
		return
	}
	if err := h.stats.RecomputeExamStats(existing.ExamID); err != nil {
		respondStoreError(w, err)
		return
	}

	updated, err := h.store.GetQuestion(existing.ID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.ownedQuestion(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteQuestion(existing.ID); err != nil {
		respondStoreError(w, err)
		return
	}
	if err := h.stats.RecomputeExamStats(existing.ExamID); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type generateRequest struct {
	DocumentID  int64              `json:"document_id"`
	DocumentIDs []int64            `json:"document_ids"`
	Count       int                `json:"count"`
	Difficulty  model.Difficulty   `json:"difficulty"`
	Kind        model.QuestionKind `json:"question_type"`
	Easy        int                `json:"easy"`
	Medium      int                `json:"medium"`
	Hard        int                `json:"hard"`
}

// handleGenerateQuestions asks the LLM for questions based on the
// combined content of the teacher's selected documents and stores the
// ones that pass validation. When the per-difficulty counts are set
// they take precedence over the flat count.
func (h *Handler) handleGenerateQuestions(w http.ResponseWriter, r *http.Request) {
	exam, ok := h.ownedExam(w, r)
	if !ok {
		return
	}

	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	docIDs := req.DocumentIDs
	if len(docIDs) == 0 && req.DocumentID != 0 {
		docIDs = []int64{req.DocumentID}
	}
	if len(docIDs) == 0 {
		respondError(w, http.StatusBadRequest, "document_ids is required")
		return
	}

	user := model.UserFromContext(r.Context())
	var contents []string
	for _, docID := range docIDs {
		doc, err := h.store.GetDocument(docID)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		if doc.OwnerID != user.ID {
			respondError(w, http.StatusForbidden, "forbidden")
			return
		}
		contents = append(contents, doc.Content)
	}
	content := strings.Join(contents, "\n\n")

	var generated []model.Question
	var err error
	if req.Easy > 0 || req.Medium > 0 || req.Hard > 0 {
		generated, err = h.llm.GenerateMixedDifficulty(r.Context(), content, req.Easy, req.Medium, req.Hard)
	} else {
		count := req.Count
		if count <= 0 {
			count = 10
		}
		difficulty := req.Difficulty
		if difficulty == "" {
			difficulty = model.DifficultyMedium
		}
		kind := req.Kind
		if kind == "" {
			kind = model.KindMultipleChoice
		}
		generated, err = h.llm.GenerateQuestions(r.Context(), content, count, difficulty, kind)
	}
	if err != nil {
		respondStoreError(w, err)
		return
	}

	var saved []model.Question
	for _, q := range generated {
		q.ExamID = exam.ID
		if err := q.Validate(); err != nil {
			slog.Warn("discarding invalid generated question", "exam_id", exam.ID, "error", err)
			continue
		}
		id, err := h.store.InsertQuestion(q)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		q.ID = id
		saved = append(saved, q)
	}
	if len(saved) > 0 {
		if err := h.stats.RecomputeExamStats(exam.ID); err != nil {
			respondStoreError(w, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"questions": saved, "generated": len(generated), "saved": len(saved)})
}

// handleGenerateExplanation fills in a question's explanation via the
// LLM and persists it.
func (h *Handler) handleGenerateExplanation(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.ownedQuestion(w, r)
	if !ok {
		return
	}

	explanation, err := h.llm.GenerateExplanation(r.Context(), existing.Text, existing.CorrectAnswer, existing.SupportContent)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if err := h.store.SetExplanation(existing.ID, explanation); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"explanation": explanation})
}

// handleUploadMedia stores an audio or video file for skill questions
// and returns its path for use as a question's media reference.
func (h *Handler) handleUploadMedia(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMediaSize)
	if err := r.ParseMultipartForm(maxMediaSize); err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	path, err := h.files.Save("media", header.Filename, file, fileio.MediaExtensions)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"media_url": "/" + path})
}

// ownedQuestion loads the question from the URL and enforces that the
// requester owns its exam.
func (h *Handler) ownedQuestion(w http.ResponseWriter, r *http.Request) (model.Question, bool) {
	id, err := urlID(r, "questionID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid question ID")
		return model.Question{}, false
	}
	q, err := h.store.GetQuestion(id)
	if err != nil {
		respondStoreError(w, err)
		return model.Question{}, false
	}
	exam, err := h.store.GetExam(q.ExamID)
	if err != nil {
		respondStoreError(w, err)
		return model.Question{}, false
	}
	user := model.UserFromContext(r.Context())
	if exam.OwnerID != user.ID {
		respondError(w, http.StatusForbidden, "forbidden")
		return model.Question{}, false
	}
	return q, true
}
