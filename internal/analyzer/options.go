package analyzer

import "fmt"

// AnalysisOptions provides flexible configuration for the forensic analyzers
type AnalysisOptions struct {
	// Error-level analysis
	ELAQuality int

	// Noise analysis
	BlurSigma float64

	// Lighting analysis
	BoxSize int

	// Copy-move detection
	BlockSize           int
	Stride              int
	SimilarityThreshold float64
	MinBlockStdDev      float64 // blocks flatter than this are not compared
	SkipOverlapping     bool    // drop pairs whose blocks overlap

	// Digest
	ColorCountCap int

	// Performance options
	MaxWorkers int
}

// DefaultOptions returns default analysis options
func DefaultOptions() AnalysisOptions {
	return AnalysisOptions{
		ELAQuality:          90,
		BlurSigma:           1.1, // sigma of the 5x5 noise kernel
		BoxSize:             15,
		BlockSize:           32,
		Stride:              16,
		SimilarityThreshold: 0.9,
		MinBlockStdDev:      2.0,
		SkipOverlapping:     false,
		ColorCountCap:       1 << 24,
		MaxWorkers:          0, // Use default CPU count
	}
}

// WithELAQuality sets the JPEG quality used for re-encoding
func (opts AnalysisOptions) WithELAQuality(quality int) AnalysisOptions {
	opts.ELAQuality = quality
	return opts
}

// WithCopyMove overrides block tiling and the similarity threshold
func (opts AnalysisOptions) WithCopyMove(blockSize, stride int, threshold float64) AnalysisOptions {
	opts.BlockSize = blockSize
	opts.Stride = stride
	opts.SimilarityThreshold = threshold
	return opts
}

// WithMinBlockStdDev sets the flat-block cutoff; 0 compares every block
func (opts AnalysisOptions) WithMinBlockStdDev(stdDev float64) AnalysisOptions {
	opts.MinBlockStdDev = stdDev
	return opts
}

// WithoutOverlappingPairs enables the spatial pre-filter for copy-move pairs
func (opts AnalysisOptions) WithoutOverlappingPairs() AnalysisOptions {
	opts.SkipOverlapping = true
	return opts
}

// WithMaxWorkers bounds the pool used for pairwise similarity
func (opts AnalysisOptions) WithMaxWorkers(workers int) AnalysisOptions {
	opts.MaxWorkers = workers
	return opts
}

func (opts AnalysisOptions) validate() error {
	switch {
	case opts.ELAQuality < 1 || opts.ELAQuality > 100:
		return fmt.Errorf("ELA quality must be within 1..100, got %d", opts.ELAQuality)
	case opts.BlurSigma <= 0:
		return fmt.Errorf("blur sigma must be > 0, got %g", opts.BlurSigma)
	case opts.BoxSize < 1 || opts.BoxSize%2 == 0:
		return fmt.Errorf("box size must be a positive odd number, got %d", opts.BoxSize)
	case opts.BlockSize < 8:
		return fmt.Errorf("block size must be >= 8, got %d", opts.BlockSize)
	case opts.Stride < 1:
		return fmt.Errorf("stride must be >= 1, got %d", opts.Stride)
	case opts.SimilarityThreshold <= 0 || opts.SimilarityThreshold > 1:
		return fmt.Errorf("similarity threshold must be within (0, 1], got %g", opts.SimilarityThreshold)
	case opts.MinBlockStdDev < 0:
		return fmt.Errorf("minimum block std dev must be >= 0, got %g", opts.MinBlockStdDev)
	case opts.ColorCountCap < 1:
		return fmt.Errorf("color count cap must be >= 1, got %d", opts.ColorCountCap)
	}
	return nil
}
