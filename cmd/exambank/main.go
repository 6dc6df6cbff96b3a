package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/tranvq/exambank/internal/fileio"
	"github.com/tranvq/exambank/internal/grading"
	"github.com/tranvq/exambank/internal/handler"
	appI18n "github.com/tranvq/exambank/internal/i18n"
	"github.com/tranvq/exambank/internal/llm"
	"github.com/tranvq/exambank/internal/model"
	"github.com/tranvq/exambank/internal/pdf"
	"github.com/tranvq/exambank/internal/stats"
	"github.com/tranvq/exambank/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "exambank",
		Short: "Exam authoring and delivery server with AI question generation",
	}

	serve := serveCmd()
	root.AddCommand(serve)
	root.AddCommand(exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `exambank --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP exam server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "exambank.db", "SQLite database path")
	f.String("llm-url", "", "OpenAI-compatible API base URL (empty = OpenAI default)")
	f.String("llm-key", "", "API key for LLM")
	f.String("llm-model", "gpt-4o-mini", "LLM model name")
	f.StringP("lang", "l", "vi", "UI language (en, vi)")
	f.String("upload-dir", "uploads", "Directory for uploaded files")
	f.String("font-dir", "fonts", "Directory with DejaVu TTF fonts for PDF export")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("teacher-password", "", "Initial teacher password (or set EXAMBANK_TEACHER_PASSWORD)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-pdf",
		Short: "Render an exam to a PDF file without starting the server",
		RunE:  runExportPDF,
	}
	f := cmd.Flags()
	f.String("db", "exambank.db", "SQLite database path")
	f.Int64("exam-id", 0, "ID of the exam to export")
	f.StringP("output", "o", "", "Output file (default <exam title>.pdf)")
	f.Bool("include-answers", false, "Mark the correct answers in the PDF")
	f.Bool("shuffle-questions", false, "Shuffle question order")
	f.Bool("shuffle-answers", false, "Shuffle answer options")
	f.StringP("lang", "l", "vi", "PDF language (en, vi)")
	f.String("font-dir", "fonts", "Directory with DejaVu TTF fonts")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func runExportPDF(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	examID := v.GetInt64("exam-id")
	if examID == 0 {
		return fmt.Errorf("--exam-id is required")
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := appI18n.Init(v.GetString("lang")); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	exam, err := db.GetExam(examID)
	if err != nil {
		return fmt.Errorf("load exam %d: %w", examID, err)
	}
	questions, err := db.ListQuestionsByExam(examID)
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	if len(questions) == 0 {
		return fmt.Errorf("exam %q has no questions", exam.Title)
	}

	renderer := pdf.New(v.GetString("font-dir"))
	data, err := renderer.Render(cmd.Context(), exam, questions, pdf.Options{
		ShuffleQuestions: v.GetBool("shuffle-questions"),
		ShuffleAnswers:   v.GetBool("shuffle-answers"),
		IncludeAnswers:   v.GetBool("include-answers"),
	})
	if err != nil {
		return fmt.Errorf("render PDF: %w", err)
	}

	output := v.GetString("output")
	if output == "" {
		output = strings.ReplaceAll(strings.TrimSpace(exam.Title), " ", "_") + ".pdf"
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write PDF: %w", err)
	}
	slog.Info("exported exam", "exam_id", examID, "output", output, "questions", len(questions))
	return nil
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EXAMBANK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("exambank")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/exambank")
	v.AddConfigPath("/etc/exambank")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	// Open database.
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Seed default teacher user if no users exist.
	if err := seedTeacher(db, v.GetString("teacher-password")); err != nil {
		return fmt.Errorf("seed teacher: %w", err)
	}

	if err := db.CleanupExpiredSessions(); err != nil {
		slog.Warn("cleanup expired sessions", "error", err)
	}

	// Initialize i18n.
	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	llmClient := llm.New(
		v.GetString("llm-url"),
		v.GetString("llm-key"),
		v.GetString("llm-model"),
	)

	grader := grading.New(db)
	aggregator := stats.New(db)
	renderer := pdf.New(v.GetString("font-dir"))
	uploadDir := v.GetString("upload-dir")
	saver := fileio.NewSaver(uploadDir)

	h := handler.New(db, llmClient, grader, aggregator, renderer, saver, handler.Config{
		SecureCookies: v.GetBool("secure-cookies"),
	})

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))

	h.Routes(r)
	r.Handle("/"+uploadDir+"/*", http.StripPrefix("/"+uploadDir+"/", http.FileServer(http.Dir(uploadDir))))

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"db", v.GetString("db"),
		"model", v.GetString("llm-model"),
		"llm_url", v.GetString("llm-url"),
		"lang", lang,
		"upload_dir", uploadDir,
	)
	return http.ListenAndServe(addr, r)
}

func seedTeacher(db *store.Store, password string) error {
	count, err := db.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("teacher password is required: set --teacher-password flag or EXAMBANK_TEACHER_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash teacher password: %w", err)
	}

	_, err = db.CreateUser(model.User{
		Username:     "teacher",
		Email:        "teacher@example.com",
		FullName:     "Teacher",
		PasswordHash: string(hash),
		Role:         model.RoleTeacher,
	})
	if err != nil {
		return fmt.Errorf("create teacher user: %w", err)
	}

	slog.Info("seeded default teacher user", "username", "teacher")
	return nil
}
