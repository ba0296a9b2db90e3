package artifact

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Store manages staged inputs and produced artifacts on a local
// filesystem shared with the worker. Locations are plain paths.
type Store struct {
	uploadDir string
	logger    *slog.Logger
}

// NewStore creates the upload directory if needed.
func NewStore(uploadDir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Store{uploadDir: uploadDir, logger: logger}, nil
}

// SaveUpload stages an uploaded video under a fresh random name and
// returns its absolute path.
func (s *Store) SaveUpload(filename string, r io.Reader) (string, error) {
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".tmp"
	}

	path, err := filepath.Abs(filepath.Join(s.uploadDir, uuid.New().String()+ext))
	if err != nil {
		return "", fmt.Errorf("failed to resolve upload path: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write upload file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write upload file: %w", err)
	}

	return path, nil
}

// Readable reports whether the location exists and is a regular,
// non-empty file. Used to validate success callbacks.
func (s *Store) Readable(location string) bool {
	info, err := os.Stat(location)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

// Open opens an artifact for streaming.
func (s *Store) Open(location string) (*os.File, int64, error) {
	f, err := os.Open(location)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open artifact: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("failed to stat artifact: %w", err)
	}

	return f, info.Size(), nil
}

// Remove deletes a file. A missing file is a no-op: the worker may
// have already deleted the staged input on its side of the shared
// filesystem.
func (s *Store) Remove(location string) error {
	if location == "" {
		return nil
	}

	err := os.Remove(location)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", location, err)
	}

	if err == nil {
		s.logger.Debug("Removed file", slog.String("path", location))
	}
	return nil
}
