package proofs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store keeps deposit proof files in a local directory
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("proofs directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create proofs directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Save writes a proof for a deposit request under a fresh name and returns
// its path. Earlier uploads for the same request are never overwritten.
// ext is the original file extension, e.g. ".png".
func (s *Store) Save(requestId, ext string, r io.Reader) (string, error) {
	name, err := fileName(requestId, ext)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", fmt.Errorf("failed to create proof file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write proof file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close proof file: %w", err)
	}

	zap.L().Debug("Stored deposit proof", zap.String("request_id", requestId), zap.String("path", path))
	return path, nil
}

// Delete removes a stored proof. Paths outside the store directory are
// refused and a missing file is not an error.
func (s *Store) Delete(path string) error {
	if path == "" {
		return nil
	}
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("proof path %s is outside %s", path, s.dir)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete proof file: %w", err)
	}
	return nil
}

func fileName(requestId, ext string) (string, error) {
	if requestId == "" || strings.ContainsAny(requestId, `/\`) || strings.Contains(requestId, "..") {
		return "", fmt.Errorf("invalid deposit request id %q", requestId)
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if strings.ContainsAny(ext, `/\`) {
		return "", fmt.Errorf("invalid proof extension %q", ext)
	}
	return requestId + "-" + uuid.New().String() + strings.ToLower(ext), nil
}
