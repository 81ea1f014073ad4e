package storage

import (
	"context"

	apperrors "go-image-forensics/internal/errors"
)

// ErrNotFound is returned by Get for unknown artifacts
var ErrNotFound = apperrors.NewValidationError("artifact not found", nil)

// ArtifactStore persists generated images and serves them back
type ArtifactStore interface {
	Put(ctx context.Context, dir, name string, data []byte) (string, error)
	Get(ctx context.Context, dir, name string) ([]byte, error)
}
