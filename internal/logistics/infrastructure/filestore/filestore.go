package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
)

var (
	// ErrInvalidKey is returned for keys that would escape the root.
	ErrInvalidKey = errors.New("filestore: invalid key")
	// ErrNotFound is returned when no content is stored under a key.
	ErrNotFound = errors.New("filestore: not found")
	// ErrTooLarge is returned when a payload exceeds the configured size limit.
	ErrTooLarge = errors.New("filestore: payload too large")
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Store keeps uploaded payloads on local disk, one file per key.
type Store struct {
	root    string
	maxSize int64
}

// New creates the root directory if needed. maxSize <= 0 disables the limit.
func New(root string, maxSize int64) (*Store, error) {
	if root == "" {
		return nil, errors.New("filestore: empty root")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root, maxSize: maxSize}, nil
}

// Save writes r under key and returns the stored size. The write goes to a
// temp file renamed into place, so readers never see partial content.
func (s *Store) Save(ctx context.Context, key string, r io.Reader) (int64, error) {
	path, err := s.path(key)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	src := r
	if s.maxSize > 0 {
		src = io.LimitReader(r, s.maxSize+1)
	}
	n, err := io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, err
	}
	if s.maxSize > 0 && n > s.maxSize {
		return 0, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, s.maxSize)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, err
	}
	return n, nil
}

// Open returns the content stored under key.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	_ = ctx
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// Delete removes the content under key. Missing content is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	_ = ctx
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) path(key string) (string, error) {
	if !keyPattern.MatchString(key) {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.root, key), nil
}
