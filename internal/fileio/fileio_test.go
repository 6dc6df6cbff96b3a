package fileio

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tranvq/exambank/internal/model"
)

func TestExt(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"lecture.PDF", "pdf"},
		{"notes.md", "md"},
		{"archive.tar.gz", "gz"},
		{"noext", ""},
	}
	for _, tt := range tests {
		if got := Ext(tt.in); got != tt.want {
			t.Errorf("Ext(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAllowed(t *testing.T) {
	tests := []struct {
		filename string
		set      map[string]bool
		want     bool
	}{
		{"doc.pdf", DocumentExtensions, true},
		{"doc.DOCX", DocumentExtensions, true},
		{"doc.exe", DocumentExtensions, false},
		{"noext", DocumentExtensions, false},
		{"clip.mp3", MediaExtensions, true},
		{"clip.ogg", MediaExtensions, false},
		{"face.webp", AvatarExtensions, true},
		{"face.bmp", AvatarExtensions, false},
	}
	for _, tt := range tests {
		if got := Allowed(tt.filename, tt.set); got != tt.want {
			t.Errorf("Allowed(%q) = %v, want %v", tt.filename, got, tt.want)
		}
	}
}

func TestSaverSaveAndRemove(t *testing.T) {
	dir := t.TempDir()
	s := NewSaver(dir)

	path, err := s.Save("documents", "notes.txt", strings.NewReader("hello"), DocumentExtensions)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(dir, "documents") {
		t.Errorf("unexpected path %q", path)
	}
	if Ext(path) != "txt" {
		t.Errorf("stored name should keep the extension, got %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "hello" {
		t.Errorf("stored content mismatch: %q, %v", data, err)
	}

	// Two saves of the same name must not collide.
	other, err := s.Save("documents", "notes.txt", strings.NewReader("world"), DocumentExtensions)
	if err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if other == path {
		t.Error("expected unique stored names")
	}

	if err := s.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file should be gone after Remove")
	}
	// Removing twice, or removing an empty path, is fine.
	if err := s.Remove(path); err != nil {
		t.Errorf("Remove missing file: %v", err)
	}
	if err := s.Remove(""); err != nil {
		t.Errorf("Remove empty path: %v", err)
	}
}

func TestSaverRejectsBadExtension(t *testing.T) {
	s := NewSaver(t.TempDir())
	_, err := s.Save("documents", "malware.exe", strings.NewReader("x"), DocumentExtensions)
	if !errors.Is(err, model.ErrUnsupportedMediaFormat) {
		t.Errorf("expected ErrUnsupportedMediaFormat, got %v", err)
	}
}

func TestExtractTextPlain(t *testing.T) {
	dir := t.TempDir()
	for _, ext := range []string{"txt", "md"} {
		path := filepath.Join(dir, "doc."+ext)
		if err := os.WriteFile(path, []byte("nội dung tài liệu"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		text, err := ExtractText(path)
		if err != nil {
			t.Fatalf("ExtractText(%s): %v", ext, err)
		}
		if text != "nội dung tài liệu" {
			t.Errorf("ExtractText(%s) = %q", ext, text)
		}
	}
}

func TestExtractTextUnsupported(t *testing.T) {
	text, err := ExtractText(filepath.Join(t.TempDir(), "clip.mp3"))
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if text != "" {
		t.Errorf("unsupported format should extract nothing, got %q", text)
	}
}

func TestExtractTextBrokenPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	if err := os.WriteFile(path, []byte("not a pdf"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ExtractText(path); !errors.Is(err, model.ErrExternalService) {
		t.Errorf("expected ErrExternalService, got %v", err)
	}
}
