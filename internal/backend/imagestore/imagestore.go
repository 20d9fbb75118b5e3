package imagestore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const extension = ".png"

var (
	ErrInvalidName = errors.New("invalid image name")
	ErrNotFound    = errors.New("image not found")
)

// Store keeps uploaded PNG images in one directory under random names.
type Store struct {
	dir string
}

// New creates dir if it does not exist.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("image directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Save writes the image and returns its generated name.
func (s *Store) Save(data []byte) (string, error) {
	name := uuid.NewString() + extension
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image %s: %w", name, err)
	}
	return name, nil
}

func (s *Store) Open(name string) ([]byte, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", name, err)
	}
	return data, nil
}

// Remove deletes the image. A missing image is not an error.
func (s *Store) Remove(name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove image %s: %w", name, err)
	}
	return nil
}

// Prune removes stored images that are not in keep and were last modified no
// later than before. Files without a stored name are left alone.
func (s *Store) Prune(keep map[string]bool, before time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list image directory %s: %w", s.dir, err)
	}

	removed := 0
	var errs []error
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !IsStoredName(name) || keep[name] {
			continue
		}
		info, err := entry.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if info.ModTime().After(before) {
			continue
		}
		if err := s.Remove(name); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// IsStoredName reports whether name looks like a name produced by Save.
func IsStoredName(name string) bool {
	stem, ok := strings.CutSuffix(name, extension)
	if !ok {
		return false
	}
	_, err := uuid.Parse(stem)
	return err == nil && len(stem) == 36
}

func (s *Store) path(name string) (string, error) {
	if !IsStoredName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.dir, name), nil
}
