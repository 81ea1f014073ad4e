package models

import "time"

// AnalysisReport is the merged output of every forensic analyzer for one
// uploaded image. A section that failed carries its own error string; the
// report as a whole is still valid.
type AnalysisReport struct {
	RequestID         string    `json:"request_id"`
	Timestamp         time.Time `json:"timestamp"`
	ProcessingTimeSec float64   `json:"processing_time_sec"`

	SourceImagePath  string            `json:"source_image_path"`
	MetadataPIL      map[string]string `json:"metadata_pil"`
	MetadataExifread map[string]string `json:"metadata_exifread"`

	ELAImagePath string `json:"ela_image_path"`
	ELAError     string `json:"ela_error,omitempty"`

	LightingInconsistencies LightingInconsistencies `json:"lighting_inconsistencies"`
	Hashes                  Hashes                  `json:"hashes"`
	NoiseAnalysis           NoiseAnalysis           `json:"noise_analysis"`

	LightingHistogram      []int  `json:"lighting_histogram"`
	LightingHistogramError string `json:"lighting_histogram_error,omitempty"`

	CopyMoveForgery  CopyMoveForgery  `json:"copy_move_forgery"`
	SplicingAnalysis SplicingAnalysis `json:"splicing_analysis"`

	JPEGStructureMetadata map[string]string      `json:"jpeg_structure_metadata"`
	DigestInfo            map[string]interface{} `json:"digest_info"`
	JPEGQualityDetails    map[string]interface{} `json:"jpeg_quality_details"`
}

// LightingInconsistencies summarizes the local luminance variance field
type LightingInconsistencies struct {
	MeanLocalVariance   float64 `json:"mean_local_variance"`
	StdLocalVariance    float64 `json:"std_local_variance"`
	BrightnessHistogram []int   `json:"brightness_histogram,omitempty"`
	HeatmapPath         string  `json:"heatmap_path,omitempty"`
	Error               string  `json:"error,omitempty"`
}

// Hashes holds content and perceptual identity of the upload
type Hashes struct {
	MD5        string `json:"md5"`
	SHA256     string `json:"sha256"`
	Perceptual string `json:"perceptual"`
	Error      string `json:"error,omitempty"`
}

// NoiseAnalysis holds the residual map and per-quadrant noise levels.
// RegionalVariation entries are single-key maps such as {"region_0_1": 1.25}.
type NoiseAnalysis struct {
	NoiseMapPath      string               `json:"noise_map_path"`
	RegionalVariation []map[string]float64 `json:"regional_variation"`
	Error             string               `json:"error,omitempty"`
}

// CopyMoveForgery reports duplicated block pairs
type CopyMoveForgery struct {
	MapPath        string `json:"map_path"`
	MatchesFound   int    `json:"matches_found"`
	BlocksCompared int    `json:"blocks_compared"`
	SkippedBlocks  int    `json:"skipped_blocks"`
	Error          string `json:"error"`
}

// SplicingAnalysis references the error-level map used for splicing review
type SplicingAnalysis struct {
	ELASplicingImage string `json:"ela_splicing_image"`
	MaxDifference    int    `json:"max_difference"`
	Error            string `json:"error,omitempty"`
}

// UploadFailure describes an upload that could not be decoded at all
type UploadFailure struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// ProcessImagesResponse is returned by the upload endpoint
type ProcessImagesResponse struct {
	Results  []*AnalysisReport `json:"results"`
	Failures []UploadFailure   `json:"failures,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error    string          `json:"error"`
	Message  string          `json:"message,omitempty"`
	Failures []UploadFailure `json:"failures,omitempty"`
}
