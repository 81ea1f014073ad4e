package analyzer

import (
	"context"
	"image"

	"go-image-forensics/pkg/models"
)

// ForensicAnalyzer defines the main interface for forensic image analysis
type ForensicAnalyzer interface {
	// Analyze decodes the input once and runs every analyzer against it.
	// Only a decode failure is returned as an error; every other failure is
	// reported inside its own section of the report.
	Analyze(ctx context.Context, in Input) (*models.AnalysisReport, error)

	// Lifecycle management
	Close() error
}

// ArtifactSink persists generated images and returns the relative path under
// which callers can reference them (for example "ela_results/x_ela.png").
type ArtifactSink interface {
	Put(ctx context.Context, dir, name string, data []byte) (string, error)
}

// FeatureExtractor turns a grayscale block into a fixed-length descriptor.
// Implementations must be deterministic and safe for concurrent use.
type FeatureExtractor interface {
	Embed(block *image.Gray) ([]float64, error)
	Dimension() int
}

// MetadataReader is one independent source of embedded metadata
type MetadataReader interface {
	Name() string
	Read(ctx context.Context, in Input) (map[string]string, error)
}

// Artifact directories, relative to the sink root
const (
	DirELA      = "ela_results"
	DirLighting = "lighting_maps"
	DirNoise    = "noise_maps"
	DirCopyMove = "copy_move_maps"
	DirSource   = "images"
)
