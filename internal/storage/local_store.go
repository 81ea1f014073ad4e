package storage

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	apperrors "go-image-forensics/internal/errors"
)

// LocalStore writes artifacts below a root directory on disk
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, apperrors.NewIOError("cannot create artifact root", err)
	}
	return &LocalStore{root: root}, nil
}

// Root returns the directory artifacts are written under
func (s *LocalStore) Root() string {
	return s.root
}

// checkName rejects anything that could escape its directory
func checkName(dir, name string) error {
	for _, part := range []string{dir, name} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return apperrors.NewValidationError("invalid artifact path "+path.Join(dir, name), nil)
		}
	}
	return nil
}

// Put writes data atomically: concurrent writers of the same name never
// observe a partially written file.
func (s *LocalStore) Put(ctx context.Context, dir, name string, data []byte) (string, error) {
	if err := checkName(dir, name); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", apperrors.NewTimeoutError("artifact write cancelled", err)
	}

	target := filepath.Join(s.root, dir)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", apperrors.NewIOError("cannot create artifact directory", err)
	}

	tmp, err := os.CreateTemp(target, "."+name+".*.tmp")
	if err != nil {
		return "", apperrors.NewIOError("cannot create temp artifact", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", apperrors.NewIOError("cannot write artifact", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", apperrors.NewIOError("cannot flush artifact", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return "", apperrors.NewIOError("cannot set artifact permissions", err)
	}
	if err := os.Rename(tmpName, filepath.Join(target, name)); err != nil {
		os.Remove(tmpName)
		return "", apperrors.NewIOError("cannot publish artifact", err)
	}

	return path.Join(dir, name), nil
}

// Get reads a previously stored artifact
func (s *LocalStore) Get(_ context.Context, dir, name string) ([]byte, error) {
	if err := checkName(dir, name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.root, dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, apperrors.NewIOError("cannot read artifact", err)
	}
	return data, nil
}
