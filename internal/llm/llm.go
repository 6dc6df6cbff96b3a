// Package llm generates exam questions and answer explanations
// through an OpenAI-compatible chat completion API.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tranvq/exambank/internal/model"
)

// maxPromptContent caps how much document text goes into a prompt so
// large uploads do not blow past the model's token limit.
const maxPromptContent = 4000

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new LLM client. baseURL may point at any
// OpenAI-compatible endpoint; empty means the default OpenAI API.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// generatedQuestion is the wire shape the model is instructed to emit.
type generatedQuestion struct {
	QuestionText  string   `json:"question_text"`
	QuestionType  string   `json:"question_type"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Difficulty    string   `json:"difficulty"`
	Explanation   string   `json:"explanation"`
}

type generatedBatch struct {
	Questions []generatedQuestion `json:"questions"`
}

// GenerateQuestions produces count questions of the given kind and
// difficulty from the document content. A response the model mangles
// into unparseable JSON yields an empty slice, not an error; callers
// can retry without treating it as an outage.
func (c *Client) GenerateQuestions(ctx context.Context, content string, count int, difficulty model.Difficulty, kind model.QuestionKind) ([]model.Question, error) {
	prompt := buildGenerationPrompt(content, count, difficulty, kind)

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w: %v", model.ErrExternalService, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("generate questions: %w: no choices returned", model.ErrExternalService)
	}

	raw := stripCodeFence(resp.Choices[0].Message.Content)
	slog.Debug("LLM generation response", "raw", raw)

	var batch generatedBatch
	if err := json.Unmarshal([]byte(raw), &batch); err != nil {
		slog.Warn("unparseable generation response", "error", err, "raw", raw)
		return nil, nil
	}

	questions := make([]model.Question, 0, len(batch.Questions))
	for _, g := range batch.Questions {
		questions = append(questions, toModelQuestion(g, difficulty, kind))
	}
	return questions, nil
}

// GenerateMixedDifficulty runs one generation batch per non-zero
// difficulty bucket and concatenates the results in easy, medium,
// hard order.
func (c *Client) GenerateMixedDifficulty(ctx context.Context, content string, easy, medium, hard int) ([]model.Question, error) {
	var questions []model.Question
	buckets := []struct {
		count      int
		difficulty model.Difficulty
	}{
		{easy, model.DifficultyEasy},
		{medium, model.DifficultyMedium},
		{hard, model.DifficultyHard},
	}
	for _, b := range buckets {
		if b.count <= 0 {
			continue
		}
		qs, err := c.GenerateQuestions(ctx, content, b.count, b.difficulty, model.KindMultipleChoice)
		if err != nil {
			return nil, err
		}
		questions = append(questions, qs...)
	}
	return questions, nil
}

// GenerateExplanation asks the model why the given answer is correct.
// questionContext is optional surrounding document text.
func (c *Client) GenerateExplanation(ctx context.Context, questionText, correctAnswer, questionContext string) (string, error) {
	prompt := buildExplanationPrompt(questionText, correctAnswer, questionContext)

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("generate explanation: %w: %v", model.ErrExternalService, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("generate explanation: %w: no choices returned", model.ErrExternalService)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

var difficultyInstructions = map[model.Difficulty]string{
	model.DifficultyEasy:   "Tạo câu hỏi dễ, phù hợp với học sinh có kiến thức cơ bản",
	model.DifficultyMedium: "Tạo câu hỏi trung bình, yêu cầu hiểu và áp dụng kiến thức",
	model.DifficultyHard:   "Tạo câu hỏi khó, yêu cầu phân tích và tổng hợp kiến thức",
}

var kindInstructions = map[model.QuestionKind]string{
	model.KindMultipleChoice: "Câu hỏi trắc nghiệm với 4 đáp án A, B, C, D",
	model.KindTrueFalse:      "Câu hỏi đúng/sai",
	model.KindEssay:          "Câu hỏi tự luận ngắn",
}

func buildGenerationPrompt(content string, count int, difficulty model.Difficulty, kind model.QuestionKind) string {
	kindInstr, ok := kindInstructions[kind]
	if !ok {
		kindInstr = kindInstructions[model.KindMultipleChoice]
	}
	diffInstr, ok := difficultyInstructions[difficulty]
	if !ok {
		diffInstr = difficultyInstructions[model.DifficultyMedium]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Bạn là một giáo viên THPT chuyên nghiệp. Hãy tạo %d câu hỏi từ tài liệu sau:\n\n", count)
	sb.WriteString(truncateContent(content, maxPromptContent))
	sb.WriteString("\n\nYêu cầu:\n")
	sb.WriteString("- Loại câu hỏi: " + kindInstr + "\n")
	sb.WriteString("- Mức độ: " + diffInstr + "\n")
	sb.WriteString("- Câu hỏi phải liên quan trực tiếp đến nội dung tài liệu\n")
	sb.WriteString("- Đáp án phải chính xác và rõ ràng\n")
	sb.WriteString("- Phù hợp với học sinh THPT\n\n")
	sb.WriteString("Trả về kết quả dưới dạng JSON với format sau:\n")
	fmt.Fprintf(&sb, `{
  "questions": [
    {
      "question_text": "Nội dung câu hỏi",
      "question_type": %q,
      "options": ["A. Đáp án 1", "B. Đáp án 2", "C. Đáp án 3", "D. Đáp án 4"],
      "correct_answer": "A",
      "difficulty": %q,
      "explanation": "Giải thích ngắn gọn"
    }
  ]
}`, kind, difficulty)
	sb.WriteString("\n\nCHÚ Ý: Chỉ trả về JSON, không thêm text nào khác.\n")
	return sb.String()
}

func buildExplanationPrompt(questionText, correctAnswer, questionContext string) string {
	var sb strings.Builder
	sb.WriteString("Bạn là một giáo viên THPT nhiệt tình. Hãy giải thích tại sao đáp án này là đúng cho câu hỏi sau:\n\n")
	sb.WriteString("Câu hỏi: " + questionText + "\n\n")
	sb.WriteString("Đáp án đúng: " + correctAnswer + "\n\n")
	if questionContext != "" {
		sb.WriteString("Bối cảnh: " + truncateContent(questionContext, 1000) + "\n\n")
	}
	sb.WriteString("Yêu cầu:\n")
	sb.WriteString("- Giải thích ngắn gọn, dễ hiểu (2-3 câu)\n")
	sb.WriteString("- Phù hợp với học sinh THPT\n")
	sb.WriteString("- Tập trung vào kiến thức cốt lõi\n")
	sb.WriteString("- Giúp học sinh hiểu sâu hơn về chủ đề\n\n")
	sb.WriteString("Chỉ trả về phần giải thích, không thêm text nào khác.\n")
	return sb.String()
}

// toModelQuestion converts a generated question to the domain shape.
// The requested kind and difficulty win over whatever the model
// echoed back, and option texts are stored without letter prefixes.
func toModelQuestion(g generatedQuestion, difficulty model.Difficulty, kind model.QuestionKind) model.Question {
	q := model.Question{
		Kind:          kind,
		Text:          strings.TrimSpace(g.QuestionText),
		CorrectAnswer: strings.TrimSpace(g.CorrectAnswer),
		Difficulty:    difficulty,
		Explanation:   strings.TrimSpace(g.Explanation),
		Points:        1,
	}
	for _, opt := range g.Options {
		q.Options = append(q.Options, stripOptionLabel(opt))
	}
	if kind == model.KindTrueFalse && len(q.Options) == 0 {
		q.Options = []string{"Đúng", "Sai"}
	}
	return q
}

// stripOptionLabel removes a leading "A. " style letter prefix the
// model adds to option texts.
func stripOptionLabel(opt string) string {
	opt = strings.TrimSpace(opt)
	if len(opt) >= 2 && opt[0] >= 'A' && opt[0] <= 'Z' && (opt[1] == '.' || opt[1] == ')') {
		return strings.TrimSpace(opt[2:])
	}
	return opt
}

// stripCodeFence removes a surrounding markdown code fence some
// models wrap JSON responses in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if after, ok := strings.CutPrefix(s, "```json"); ok {
		s = after
	} else if after, ok := strings.CutPrefix(s, "```"); ok {
		s = after
	}
	if before, ok := strings.CutSuffix(strings.TrimSpace(s), "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}

func truncateContent(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
