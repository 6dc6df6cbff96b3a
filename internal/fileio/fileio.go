// Package fileio handles stored uploads: saving files with validated
// extensions and extracting plain text from document formats.
package fileio

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"github.com/tranvq/exambank/internal/model"
)

// Extension sets per upload category. Lowercase, without the dot.
var (
	DocumentExtensions = map[string]bool{
		"pdf": true, "docx": true, "txt": true, "md": true,
	}
	MediaExtensions = map[string]bool{
		"mp3": true, "wav": true, "m4a": true,
		"mp4": true, "webm": true, "avi": true, "mov": true,
	}
	AvatarExtensions = map[string]bool{
		"png": true, "jpg": true, "jpeg": true, "gif": true, "webp": true,
	}
)

// MaxAvatarSize caps avatar uploads at 5MB.
const MaxAvatarSize = 5 << 20

// Saver writes uploads under a base directory, one subdirectory per
// category.
type Saver struct {
	baseDir string
}

// NewSaver creates a saver rooted at baseDir.
func NewSaver(baseDir string) *Saver {
	return &Saver{baseDir: baseDir}
}

// Ext returns the lowercased extension of filename without the dot.
func Ext(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// Allowed reports whether filename's extension is in the given set.
func Allowed(filename string, allowed map[string]bool) bool {
	ext := Ext(filename)
	return ext != "" && allowed[ext]
}

// Save stores the upload under baseDir/category with a random name
// that keeps the original extension, and returns the stored path.
// Uploads with an extension outside the allowed set are rejected.
func (s *Saver) Save(category, filename string, src io.Reader, allowed map[string]bool) (string, error) {
	if !Allowed(filename, allowed) {
		return "", fmt.Errorf("save %q: %w", filename, model.ErrUnsupportedMediaFormat)
	}

	dir := filepath.Join(s.baseDir, category)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	name := uuid.NewString() + "." + Ext(filename)
	path := filepath.Join(dir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	slog.Info("saved upload", "category", category, "original", filename, "path", path)
	return path, nil
}

// Remove deletes a previously stored upload. A missing file is not an
// error.
func (s *Saver) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}

// ExtractText pulls plain text out of a stored document. The format
// is chosen by extension: pdf and docx are parsed, txt and md are
// read verbatim. Unsupported extensions yield an empty string.
func ExtractText(path string) (string, error) {
	switch Ext(path) {
	case "pdf":
		return extractPDF(path)
	case "docx":
		return extractDocx(path)
	case "txt", "md":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read text file: %w", err)
		}
		return string(data), nil
	default:
		return "", nil
	}
}

func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w: %v", model.ErrExternalService, err)
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Warn("pdf page extraction failed", "path", path, "page", i, "error", err)
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}

// docx is a zip archive; the paragraphs live in word/document.xml.
// Only w:t text runs are collected, paragraphs joined by blank lines.
func extractDocx(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w: %v", model.ErrExternalService, err)
	}
	defer zr.Close()

	var docXML []byte
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return "", fmt.Errorf("open docx document.xml: %w", err)
			}
			docXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return "", fmt.Errorf("read docx document.xml: %w", err)
			}
			break
		}
	}
	if docXML == nil {
		return "", fmt.Errorf("docx %q: %w: no document.xml", path, model.ErrExternalService)
	}

	var paragraphs []string
	var current strings.Builder
	decoder := xml.NewDecoder(bytes.NewReader(docXML))
	inText := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse docx xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}
	return strings.Join(paragraphs, "\n\n"), nil
}
