package evidence

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store writes uploaded attachments to disk, one directory per line item.
// Files are named <timestamp>-<uuid><ext> so repeated uploads of the same
// filename never collide.
type Store struct {
	root string
}

func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create evidence root: %w", err)
	}
	return &Store{root: root}, nil
}

// Save streams r to disk and returns the path relative to the store root.
func (s *Store) Save(itemID int64, filename string, r io.Reader) (relPath string, size int64, err error) {
	dir := filepath.Join(s.root, strconv.FormatInt(itemID, 10))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", 0, fmt.Errorf("create item directory: %w", err)
	}

	name := fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString(), safeExt(filename))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create evidence file: %w", err)
	}

	size, err = io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("write evidence file: %w", err)
	}

	return filepath.ToSlash(filepath.Join(strconv.FormatInt(itemID, 10), name)), size, nil
}

// Open returns the stored file for a previously saved relative path. Paths
// are re-rooted so a crafted value cannot escape the store.
func (s *Store) Open(relPath string) (io.ReadCloser, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(relPath))
	return os.Open(filepath.Join(s.root, clean))
}

// safeExt keeps only a plausible file extension from user input.
func safeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\`) {
		return ""
	}
	return ext
}
