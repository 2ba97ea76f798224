package extractor

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/vmelnikov/ragbase/internal/core/domain"
)

type storageFake struct {
	files map[string][]byte
}

func (s *storageFake) Save(_ context.Context, key string, data io.Reader) (int64, error) {
	raw, err := io.ReadAll(data)
	if err != nil {
		return 0, err
	}
	s.files[key] = raw
	return int64(len(raw)), nil
}

func (s *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.files[key])), nil
}

func (s *storageFake) Remove(_ context.Context, key string) error {
	delete(s.files, key)
	return nil
}

func TestSupported(t *testing.T) {
	e := New(nil)
	for _, name := range []string{"notes.txt", "README.md", "paper.PDF", "data.xlsx"} {
		if !e.Supported(name) {
			t.Fatalf("expected %s to be supported", name)
		}
	}
	for _, name := range []string{"image.png", "archive.zip", "noext"} {
		if e.Supported(name) {
			t.Fatalf("expected %s to be unsupported", name)
		}
	}
}

func TestExtractPlaintext(t *testing.T) {
	storage := &storageFake{files: map[string][]byte{
		"doc-1_notes.txt": []byte("  line one\nline two  \n"),
	}}
	e := New(storage)

	text, err := e.Extract(context.Background(), &domain.Document{
		Filename:    "notes.txt",
		StoragePath: "doc-1_notes.txt",
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "line one\nline two" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestExtractRejectsBinaryText(t *testing.T) {
	storage := &storageFake{files: map[string][]byte{
		"doc-1_notes.txt": {0xff, 0xfe, 0x00, 0x01},
	}}
	e := New(storage)

	_, err := e.Extract(context.Background(), &domain.Document{
		Filename:    "notes.txt",
		StoragePath: "doc-1_notes.txt",
	})
	if err == nil {
		t.Fatalf("expected error for non-UTF-8 content")
	}
}

func TestExtractUnsupportedExtension(t *testing.T) {
	storage := &storageFake{files: map[string][]byte{
		"doc-1_pic.png": []byte("not really a png"),
	}}
	e := New(storage)

	_, err := e.Extract(context.Background(), &domain.Document{
		Filename:    "pic.png",
		StoragePath: "doc-1_pic.png",
	})
	if err == nil {
		t.Fatalf("expected error for unsupported file type")
	}
}
