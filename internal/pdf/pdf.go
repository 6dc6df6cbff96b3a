// Package pdf renders an exam and its questions into a print-ready,
// paginated PDF document.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"

	appI18n "github.com/tranvq/exambank/internal/i18n"
	"github.com/tranvq/exambank/internal/model"
)

// Options controls the exam paper layout.
//
// ShuffleAnswers only applies when IncludeAnswers is false: the answer
// key view always shows options in their stored order. Shuffling is
// presentation-only; the stored correct-answer binding is never
// touched.
type Options struct {
	ShuffleQuestions bool
	ShuffleAnswers   bool
	IncludeAnswers   bool
}

// Renderer produces exam papers. fontDir may contain DejaVuSans.ttf /
// DejaVuSans-Bold.ttf for full Unicode output; without them the
// renderer falls back to the built-in Helvetica, which degrades
// Vietnamese text.
type Renderer struct {
	fontDir string
}

// New creates a renderer. An empty fontDir skips TTF lookup.
func New(fontDir string) *Renderer {
	return &Renderer{fontDir: fontDir}
}

const (
	marginLeft   = 20.0
	marginTop    = 25.0
	marginRight  = 20.0
	marginBottom = 20.0
	lineHeight   = 5.5
)

// Render lays the exam out on A4 pages. Each question together with
// its options and explanation forms an atomic block that is never
// split across a page boundary.
func (r *Renderer) Render(ctx context.Context, exam model.Exam, questions []model.Question, opts Options) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle(exam.Title, true)
	doc.SetMargins(marginLeft, marginTop, marginRight)
	doc.SetAutoPageBreak(true, marginBottom)

	family, tr := r.loadFonts(doc)
	doc.AddPage()

	pageWidth, pageHeight := doc.GetPageSize()
	contentWidth := pageWidth - marginLeft - marginRight

	// Header rule.
	doc.SetDrawColor(0x66, 0x7e, 0xea)
	doc.SetLineWidth(0.8)
	doc.Line(marginLeft, doc.GetY(), pageWidth-marginRight, doc.GetY())
	doc.Ln(6)

	// Title.
	titleKey := "PDFTestTitle"
	if exam.Kind == model.ExamPractice {
		titleKey = "PDFPracticeTitle"
	}
	doc.SetFont(family, "B", 16)
	doc.SetTextColor(0x1a, 0x1a, 0x1a)
	doc.MultiCell(contentWidth, 8, tr(appI18n.T(ctx, titleKey)+"\n"+exam.Title), "", "C", false)
	doc.Ln(3)

	// Info box.
	infoCells := []string{
		appI18n.Td(ctx, "PDFQuestionCount", map[string]any{"Count": len(questions)}),
		appI18n.Td(ctx, "PDFTotalPoints", map[string]any{"Points": exam.TotalPoints}),
	}
	if exam.Duration > 0 {
		infoCells = append([]string{
			appI18n.Td(ctx, "PDFDuration", map[string]any{"Minutes": exam.Duration}),
		}, infoCells...)
	} else {
		infoCells = append(infoCells, appI18n.T(ctx, "PDFNoTimeLimit"))
	}
	doc.SetFont(family, "", 10)
	doc.SetTextColor(0x34, 0x49, 0x5e)
	doc.SetFillColor(0xf8, 0xf9, 0xfa)
	doc.SetDrawColor(0xde, 0xe2, 0xe6)
	doc.SetLineWidth(0.3)
	cellW := contentWidth / float64(len(infoCells))
	for i, cell := range infoCells {
		border := "TB"
		if i == 0 {
			border = "LTB"
		}
		if i == len(infoCells)-1 {
			border = "TRB"
		}
		doc.CellFormat(cellW, 10, tr(cell), border, 0, "C", true, 0, "")
	}
	doc.Ln(14)

	// Instructions.
	doc.SetFont(family, "I", 10)
	doc.SetTextColor(0x55, 0x55, 0x55)
	if exam.Description != "" {
		doc.MultiCell(contentWidth, lineHeight, tr(exam.Description), "", "L", false)
		doc.Ln(2)
	}
	doc.MultiCell(contentWidth, lineHeight, tr(appI18n.T(ctx, "PDFInstructions")), "", "L", false)
	doc.Ln(6)

	// Questions, renumbered 1..N in presentation order.
	ordered := presentationOrder(questions, opts.ShuffleQuestions)
	for idx, q := range ordered {
		block := r.questionBlock(ctx, q, idx+1, opts)
		r.writeBlock(doc, family, tr, block, contentWidth, pageHeight)
	}

	// Footer.
	doc.Ln(8)
	doc.SetFont(family, "B", 10)
	doc.SetTextColor(0x1a, 0x1a, 0x1a)
	doc.CellFormat(contentWidth, 6, tr(appI18n.T(ctx, "PDFEnd")), "", 1, "C", false, 0, "")

	if doc.Err() {
		return nil, fmt.Errorf("render exam %d: %w", exam.ID, doc.Error())
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render exam %d: %w", exam.ID, err)
	}
	return buf.Bytes(), nil
}

// blockLine is one paragraph inside an atomic question block.
type blockLine struct {
	text    string
	style   string // "", "B", "I"
	size    float64
	indent  float64
	correct bool // render in the answer highlight color
}

// questionBlock assembles the lines of a single question unit.
func (r *Renderer) questionBlock(ctx context.Context, q model.Question, number int, opts Options) []blockLine {
	var lines []blockLine

	if q.GroupPrompt != "" {
		lines = append(lines, blockLine{text: q.GroupPrompt, style: "I", size: 10})
	}

	label := appI18n.Td(ctx, "PDFQuestionLabel", map[string]any{"Number": number})
	if q.Points != 1 {
		label += " " + appI18n.Td(ctx, "PDFPoints", map[string]any{"Points": q.Points})
	}
	lines = append(lines, blockLine{text: label + ": " + q.Text, style: "B", size: 10.5})

	if q.SupportContent != "" {
		lines = append(lines, blockLine{text: q.SupportContent, size: 10, indent: 5})
	}

	switch q.Kind {
	case model.KindMultipleChoice:
		for _, opt := range displayOptions(q, opts.ShuffleAnswers, opts.IncludeAnswers) {
			text := opt.label + ". " + opt.text
			if opts.IncludeAnswers && opt.correct {
				lines = append(lines, blockLine{text: text + " ✓", style: "B", size: 10, indent: 8, correct: true})
			} else {
				lines = append(lines, blockLine{text: text, size: 10, indent: 8})
			}
		}
	case model.KindTrueFalse:
		// Always the two fixed localized literals, whatever the stored
		// option list says.
		literals := []string{appI18n.T(ctx, "PDFTrue"), appI18n.T(ctx, "PDFFalse")}
		correctIdx := trueFalseIndex(q)
		for i, lit := range literals {
			text := string(rune('A'+i)) + ". " + lit
			if opts.IncludeAnswers && i == correctIdx {
				lines = append(lines, blockLine{text: text + " ✓", style: "B", size: 10, indent: 8, correct: true})
			} else {
				lines = append(lines, blockLine{text: text, size: 10, indent: 8})
			}
		}
	}

	if opts.IncludeAnswers && q.Explanation != "" {
		lines = append(lines, blockLine{
			text:    appI18n.Td(ctx, "PDFExplanation", map[string]any{"Text": q.Explanation}),
			style:   "I",
			size:    9,
			indent:  8,
			correct: true,
		})
	}
	return lines
}

// writeBlock renders a question block, moving it wholesale to the next
// page when it does not fit below the current cursor.
func (r *Renderer) writeBlock(doc *fpdf.Fpdf, family string, tr func(string) string, block []blockLine, contentWidth, pageHeight float64) {
	height := 0.0
	for _, line := range block {
		doc.SetFont(family, line.style, line.size)
		n := len(doc.SplitText(tr(line.text), contentWidth-line.indent))
		height += float64(n) * lineHeight
	}
	height += 4 // trailing gap

	if doc.GetY()+height > pageHeight-marginBottom {
		doc.AddPage()
	}

	for _, line := range block {
		doc.SetFont(family, line.style, line.size)
		if line.correct {
			doc.SetTextColor(0x27, 0xae, 0x60)
		} else {
			doc.SetTextColor(0x2c, 0x3e, 0x50)
		}
		doc.SetX(marginLeft + line.indent)
		doc.MultiCell(contentWidth-line.indent, lineHeight, tr(line.text), "", "L", false)
	}
	doc.Ln(4)
}

// loadFonts registers the Unicode TTF pair when present and returns
// the family to use plus a text translator for the fallback font.
func (r *Renderer) loadFonts(doc *fpdf.Fpdf) (string, func(string) string) {
	identity := func(s string) string { return s }
	if r.fontDir != "" {
		regular := filepath.Join(r.fontDir, "DejaVuSans.ttf")
		bold := filepath.Join(r.fontDir, "DejaVuSans-Bold.ttf")
		if fileExists(regular) && fileExists(bold) {
			doc.AddUTF8Font("DejaVu", "", regular)
			doc.AddUTF8Font("DejaVu", "B", bold)
			doc.AddUTF8Font("DejaVu", "I", regular)
			if !doc.Err() {
				return "DejaVu", identity
			}
		}
	}
	return "Helvetica", doc.UnicodeTranslatorFromDescriptor("")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// presentationOrder returns the questions in print order: a copy of
// the stored order, or a uniform random permutation when shuffling.
func presentationOrder(questions []model.Question, shuffle bool) []model.Question {
	out := make([]model.Question, len(questions))
	copy(out, questions)
	if shuffle {
		rand.Shuffle(len(out), func(i, j int) {
			out[i], out[j] = out[j], out[i]
		})
	}
	return out
}

type displayOption struct {
	label   string
	text    string
	correct bool
}

// displayOptions returns a multiple-choice question's options in
// display order, re-lettered A..D. Shuffling is suppressed on the
// answer key view so the marked option keeps its stored letter.
func displayOptions(q model.Question, shuffleAnswers, includeAnswers bool) []displayOption {
	correctIdx := correctOptionIndex(q)
	opts := make([]displayOption, len(q.Options))
	for i, text := range q.Options {
		opts[i] = displayOption{text: text, correct: i == correctIdx}
	}
	if shuffleAnswers && !includeAnswers {
		rand.Shuffle(len(opts), func(i, j int) {
			opts[i], opts[j] = opts[j], opts[i]
		})
	}
	for i := range opts {
		if i < len(model.MultipleChoiceLabels) {
			opts[i].label = model.MultipleChoiceLabels[i]
		} else {
			opts[i].label = string(rune('A' + i))
		}
	}
	return opts
}

// correctOptionIndex maps a stored correct-answer label to its option
// index, or -1 when the label is unrecognized.
func correctOptionIndex(q model.Question) int {
	answer := strings.TrimSpace(q.CorrectAnswer)
	for i, label := range model.MultipleChoiceLabels {
		if strings.EqualFold(answer, label) {
			return i
		}
	}
	return -1
}

// trueFalseIndex maps the stored answer to 0 (first literal) or
// 1 (second); unknown answers mark nothing.
func trueFalseIndex(q model.Question) int {
	for i, opt := range q.Options {
		if strings.EqualFold(strings.TrimSpace(q.CorrectAnswer), strings.TrimSpace(opt)) {
			return i
		}
	}
	return -1
}
