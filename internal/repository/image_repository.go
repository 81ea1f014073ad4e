package repository

import (
	"context"
	"errors"

	apperrors "go-image-forensics/internal/errors"
	"go-image-forensics/internal/storage"
	"go-image-forensics/pkg/validation"
)

// HTTPImageRepository implements ImageRepository using an HTTP fetcher
type HTTPImageRepository struct {
	fetcher   storage.ImageFetcher
	validator *validation.InputValidator
}

// NewHTTPImageRepository creates a new HTTP-based image repository
func NewHTTPImageRepository(fetcher storage.ImageFetcher, validator *validation.InputValidator) ImageRepository {
	return &HTTPImageRepository{
		fetcher:   fetcher,
		validator: validator,
	}
}

// FetchImage retrieves an image from a URL
func (r *HTTPImageRepository) FetchImage(ctx context.Context, imageURL string) (*storage.FetchedImage, error) {
	if err := r.ValidateImageURL(imageURL); err != nil {
		return nil, err
	}

	img, err := r.fetcher.FetchImage(ctx, imageURL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError("image fetch timeout", err)
		}
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperrors.NewIOError("failed to fetch image", err)
	}
	if len(img.Data) == 0 {
		return nil, apperrors.NewValidationError("remote image is empty", nil)
	}
	return img, nil
}

// ValidateImageURL validates if the provided URL is acceptable
func (r *HTTPImageRepository) ValidateImageURL(imageURL string) error {
	return r.validator.ValidateImageURL(imageURL)
}
