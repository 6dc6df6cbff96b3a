// Package handler exposes the HTTP API: authentication, document and
// exam management for teachers, and exam taking for students.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tranvq/exambank/internal/fileio"
	"github.com/tranvq/exambank/internal/grading"
	"github.com/tranvq/exambank/internal/llm"
	"github.com/tranvq/exambank/internal/model"
	"github.com/tranvq/exambank/internal/pdf"
	"github.com/tranvq/exambank/internal/stats"
	"github.com/tranvq/exambank/internal/store"
)

// Config holds handler-level settings.
type Config struct {
	SecureCookies bool
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	llm    *llm.Client
	grader *grading.Engine
	stats  *stats.Aggregator
	pdf    *pdf.Renderer
	files  *fileio.Saver
	config Config
}

// New creates a new Handler.
func New(s *store.Store, l *llm.Client, g *grading.Engine, a *stats.Aggregator, p *pdf.Renderer, f *fileio.Saver, cfg Config) *Handler {
	return &Handler{store: s, llm: l, grader: g, stats: a, pdf: p, files: f, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/auth/register", h.handleRegister)
	r.Post("/api/auth/login", h.handleLogin)
	r.Post("/api/auth/logout", h.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Get("/api/auth/me", h.handleMe)
		r.Put("/api/auth/profile", h.handleUpdateProfile)
		r.Put("/api/auth/password", h.handleChangePassword)
		r.Post("/api/auth/avatar", h.handleUploadAvatar)

		r.Get("/api/leaderboard", h.handleLeaderboard)
		r.Get("/api/exams/public", h.handleListPublicExams)
		r.Get("/api/exams/{examID}", h.handleGetExam)
		r.Get("/api/attempts/{attemptID}", h.handleGetAttempt)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.RoleTeacher))

			r.Post("/api/documents", h.handleCreateDocument)
			r.Get("/api/documents", h.handleListDocuments)
			r.Get("/api/documents/search", h.handleSearchDocuments)
			r.Get("/api/documents/{documentID}", h.handleGetDocument)
			r.Put("/api/documents/{documentID}", h.handleUpdateDocument)
			r.Delete("/api/documents/{documentID}", h.handleDeleteDocument)

			r.Post("/api/exams", h.handleCreateExam)
			r.Get("/api/exams", h.handleListExams)
			r.Get("/api/exams/search", h.handleSearchExams)
			r.Put("/api/exams/{examID}", h.handleUpdateExam)
			r.Delete("/api/exams/{examID}", h.handleDeleteExam)
			r.Get("/api/exams/{examID}/statistics", h.handleExamStatistics)
			r.Get("/api/exams/{examID}/attempts", h.handleListExamAttempts)
			r.Delete("/api/attempts/{attemptID}", h.handleDeleteAttempt)
			r.Get("/api/exams/{examID}/export", h.handleExportExam)
			r.Get("/api/students", h.handleListStudents)

			r.Post("/api/exams/{examID}/questions", h.handleAddQuestion)
			r.Put("/api/questions/{questionID}", h.handleUpdateQuestion)
			r.Delete("/api/questions/{questionID}", h.handleDeleteQuestion)
			r.Post("/api/questions/{questionID}/explanation", h.handleGenerateExplanation)
			r.Post("/api/exams/{examID}/questions/generate", h.handleGenerateQuestions)
			r.Post("/api/uploads/media", h.handleUploadMedia)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.RoleStudent))

			r.Get("/api/dashboard", h.handleDashboard)
			r.Post("/api/exams/{examID}/attempts", h.handleStartAttempt)
			r.Post("/api/attempts/{attemptID}/submit", h.handleSubmitAttempt)
			r.Get("/api/attempts", h.handleMyAttempts)
		})
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// respondStoreError maps domain sentinel errors to HTTP statuses.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, model.ErrPermissionDenied):
		respondError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, model.ErrInvalidState):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrInvalidQuestionKind):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrUnsupportedMediaFormat):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrExternalService):
		slog.Error("external service failure", "error", err)
		respondError(w, http.StatusBadGateway, "external service unavailable")
	default:
		slog.Error("internal error", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func urlID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
