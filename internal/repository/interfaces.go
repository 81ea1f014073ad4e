package repository

import (
	"context"

	"go-image-forensics/internal/storage"
)

// ImageRepository defines the interface for remote image access
type ImageRepository interface {
	// FetchImage validates the URL and downloads the image bytes
	FetchImage(ctx context.Context, imageURL string) (*storage.FetchedImage, error)

	// ValidateImageURL validates if the provided URL is acceptable
	ValidateImageURL(imageURL string) error
}
