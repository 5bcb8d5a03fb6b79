package evidence

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveAndOpen(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	relPath, size, err := store.Save(42, "boiler.jpg", strings.NewReader("jpeg bytes"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if size != int64(len("jpeg bytes")) {
		t.Fatalf("size = %d, want %d", size, len("jpeg bytes"))
	}
	if !strings.HasPrefix(relPath, "42/") {
		t.Fatalf("expected path under item directory, got %q", relPath)
	}
	if !strings.HasSuffix(relPath, ".jpg") {
		t.Fatalf("expected .jpg extension preserved, got %q", relPath)
	}

	f, err := store.Open(relPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "jpeg bytes" {
		t.Fatalf("read back %q", data)
	}
}

func TestSaveSameFilenameTwice(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	first, _, err := store.Save(1, "photo.png", strings.NewReader("a"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	second, _, err := store.Save(1, "photo.png", strings.NewReader("b"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct paths, got %q twice", first)
	}
}

func TestOpenCannotEscapeRoot(t *testing.T) {
	root := t.TempDir()
	store, err := NewStore(filepath.Join(root, "evidence"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	secret := filepath.Join(root, "secret.txt")
	if err := os.WriteFile(secret, []byte("top"), 0644); err != nil {
		t.Fatalf("write secret: %v", err)
	}

	if _, err := store.Open("../secret.txt"); err == nil {
		t.Fatal("expected traversal to fail")
	}
}

func TestSafeExt(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"photo.JPG", ".jpg"},
		{"report.pdf", ".pdf"},
		{"noext", ""},
		{"weird.averylongextension", ""},
	}
	for _, tt := range tests {
		if got := safeExt(tt.filename); got != tt.want {
			t.Errorf("safeExt(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}
