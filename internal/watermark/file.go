package watermark

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// FileStore persists the watermark as a decimal integer in a single file,
// written atomically via rename so a crash mid-write never corrupts it.
type FileStore struct {
	mu       sync.Mutex
	path     string
	fallback int64
}

// NewFileStore creates a file-backed store at path. The file and its parent
// directory are created on first Set.
func NewFileStore(path string, fallback int64) *FileStore {
	return &FileStore{path: path, fallback: fallback}
}

func (f *FileStore) Get(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return f.fallback, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read watermark file: %w", err)
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse watermark file %s: %w", f.path, err)
	}
	return ts, nil
}

func (f *FileStore) Set(ctx context.Context, ts int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create watermark directory: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.FormatInt(ts, 10)+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write watermark file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace watermark file: %w", err)
	}
	return nil
}

func (f *FileStore) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove watermark file: %w", err)
	}
	return nil
}
