package analyzer

import (
	"context"
	"image"
	"strings"
	"testing"

	apperrors "go-image-forensics/internal/errors"
)

type panickingReader struct{}

func (panickingReader) Name() string { return "panicky" }
func (panickingReader) Read(context.Context, Input) (map[string]string, error) {
	panic("boom")
}

func newTestAnalyzer(t *testing.T, sink ArtifactSink, extractor FeatureExtractor, pil MetadataReader) ForensicAnalyzer {
	t.Helper()
	a, err := NewForensicAnalyzer(sink, extractor, pil, nil, DefaultOptions().WithMaxWorkers(2))
	if err != nil {
		t.Fatalf("Failed to create analyzer: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func grayJPEG(t *testing.T, w, h int, level uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = level
	}
	return jpegBytes(t, img, 90)
}

func TestNewForensicAnalyzer_Validation(t *testing.T) {
	if _, err := NewForensicAnalyzer(nil, NewDCTEmbedder(), nil, nil, DefaultOptions()); err == nil {
		t.Error("Expected error for missing sink")
	}
	if _, err := NewForensicAnalyzer(newMemorySink(), nil, nil, nil, DefaultOptions().WithELAQuality(0)); err == nil {
		t.Error("Expected error for invalid options")
	}
}

func TestAnalyze_UniformGrayJPEG(t *testing.T) {
	sink := newMemorySink()
	a := newTestAnalyzer(t, sink, NewDCTEmbedder(), NewGoexifReader())

	report, err := a.Analyze(context.Background(), Input{
		Filename:   "gray.jpg",
		Data:       grayJPEG(t, 100, 100, 128),
		SourcePath: "/images/gray.jpg",
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if report.RequestID == "" || report.Timestamp.IsZero() {
		t.Error("Expected request id and timestamp")
	}
	if report.SourceImagePath != "/images/gray.jpg" {
		t.Errorf("Unexpected source path %s", report.SourceImagePath)
	}
	if len(report.Hashes.MD5) != 32 || len(report.Hashes.SHA256) != 64 || len(report.Hashes.Perceptual) != 16 {
		t.Errorf("Unexpected hashes %+v", report.Hashes)
	}
	if report.ELAImagePath == "" || report.ELAError != "" {
		t.Errorf("Expected ELA artifact, got path %q err %q", report.ELAImagePath, report.ELAError)
	}
	if !strings.HasPrefix(report.ELAImagePath, DirELA+"/") {
		t.Errorf("Expected ELA under %s, got %s", DirELA, report.ELAImagePath)
	}
	if report.SplicingAnalysis.ELASplicingImage == "" {
		t.Error("Expected splicing artifact")
	}
	if len(report.NoiseAnalysis.RegionalVariation) != 4 {
		t.Errorf("Expected 4 noise regions, got %d", len(report.NoiseAnalysis.RegionalVariation))
	}
	for _, region := range report.NoiseAnalysis.RegionalVariation {
		for name, std := range region {
			if std > 0.01 {
				t.Errorf("Expected no noise in %s of a flat image, got %.2f", name, std)
			}
		}
	}
	if report.SplicingAnalysis.MaxDifference > 2 {
		t.Errorf("Expected ELA max difference near 0, got %d", report.SplicingAnalysis.MaxDifference)
	}
	if len(report.LightingHistogram) != 256 {
		t.Errorf("Expected 256 histogram bins, got %d", len(report.LightingHistogram))
	}
	if len(report.LightingInconsistencies.BrightnessHistogram) != 256 {
		t.Errorf("Expected 256 brightness bins, got %d", len(report.LightingInconsistencies.BrightnessHistogram))
	}
	if report.CopyMoveForgery.MatchesFound != 0 || report.CopyMoveForgery.Error != "" {
		t.Errorf("Expected clean copy-move result, got %+v", report.CopyMoveForgery)
	}
	if report.CopyMoveForgery.SkippedBlocks != 25 {
		t.Errorf("Expected all 25 flat blocks skipped, got %d", report.CopyMoveForgery.SkippedBlocks)
	}
	if report.MetadataPIL["Info"] != "No EXIF metadata found using goexif." {
		t.Errorf("Unexpected metadata_pil %v", report.MetadataPIL)
	}
	if report.MetadataExifread["Info"] == "" {
		t.Errorf("Expected a notice for the missing reader, got %v", report.MetadataExifread)
	}
	if report.JPEGStructureMetadata["MIME Type"] != "image/jpeg" {
		t.Errorf("Unexpected structure %v", report.JPEGStructureMetadata)
	}
	if report.DigestInfo["Dimensions"] != "100x100" {
		t.Errorf("Unexpected digest %v", report.DigestInfo)
	}
	if _, ok := report.JPEGQualityDetails["quality_estimate"]; !ok {
		t.Errorf("Expected quality estimate, got %v", report.JPEGQualityDetails)
	}
	if _, ok := sink.get(report.CopyMoveForgery.MapPath); !ok {
		t.Error("Copy-move artifact not written")
	}
}

func TestAnalyze_FailureIsolation(t *testing.T) {
	sink := newMemorySink(DirELA)
	a := newTestAnalyzer(t, sink, failingExtractor{}, panickingReader{})

	report, err := a.Analyze(context.Background(), Input{
		Filename: "noisy.png",
		Data:     pngBytes(t, noiseImage(64, 64, 21)),
	})
	if err != nil {
		t.Fatalf("Analyze should not fail on section errors: %v", err)
	}

	if report.ELAError == "" || report.SplicingAnalysis.Error == "" {
		t.Error("Expected ELA and splicing errors when the sink rejects writes")
	}
	if !strings.Contains(report.CopyMoveForgery.Error, "model crashed") {
		t.Errorf("Expected extractor failure in copy-move, got %q", report.CopyMoveForgery.Error)
	}
	if !strings.Contains(report.MetadataPIL["Error"], "panicked") {
		t.Errorf("Expected recovered panic in metadata_pil, got %v", report.MetadataPIL)
	}

	// unaffected sections
	if report.NoiseAnalysis.NoiseMapPath == "" || report.NoiseAnalysis.Error != "" {
		t.Errorf("Noise section should succeed, got %+v", report.NoiseAnalysis)
	}
	if report.LightingInconsistencies.HeatmapPath == "" {
		t.Error("Lighting section should succeed")
	}
	if report.Hashes.Perceptual == "" {
		t.Error("Hashes should succeed")
	}
	if report.JPEGQualityDetails["quality_info"] != "Not a JPEG image" {
		t.Errorf("Unexpected quality details %v", report.JPEGQualityDetails)
	}
}

func TestAnalyze_DecodeFailure(t *testing.T) {
	a := newTestAnalyzer(t, newMemorySink(), NewDCTEmbedder(), nil)

	report, err := a.Analyze(context.Background(), Input{Filename: "bad.jpg", Data: []byte("not an image")})
	if err == nil {
		t.Fatal("Expected decode error")
	}
	if report != nil {
		t.Error("Expected no report on decode failure")
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeDecode) {
		t.Errorf("Expected decode error type, got %v", err)
	}
}

func TestCapture_RecoversPanic(t *testing.T) {
	res := capture("demo", func() (int, error) {
		var m map[string]int
		m["x"] = 1
		return 0, nil
	})
	if res.Err == nil || !apperrors.IsType(res.Err, apperrors.ErrorTypeAnalysis) {
		t.Errorf("Expected analysis error from panic, got %v", res.Err)
	}
	if res.ErrString() == "" {
		t.Error("Expected rendered error")
	}
}
