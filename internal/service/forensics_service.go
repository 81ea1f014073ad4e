package service

import (
	"context"
	"path/filepath"
	"time"

	"go-image-forensics/internal/analyzer"
	"go-image-forensics/internal/logger"
	"go-image-forensics/internal/observer"
	"go-image-forensics/internal/repository"
	"go-image-forensics/internal/storage"
	"go-image-forensics/pkg/models"
	"go-image-forensics/pkg/validation"

	"github.com/sirupsen/logrus"
)

// ForensicsService runs the forensic pipeline for uploads and remote images
type ForensicsService interface {
	// AnalyzeUpload stores the original and analyzes one uploaded image
	AnalyzeUpload(ctx context.Context, filename string, data []byte, modTime time.Time) (*models.AnalysisReport, error)

	// AnalyzeURL fetches a remote image and analyzes it like an upload
	AnalyzeURL(ctx context.Context, imageURL string) (*models.AnalysisReport, error)

	// IsSupportedImage reports whether an upload should be analyzed at all
	IsSupportedImage(filename string) bool
}

type forensicsService struct {
	analyzer  analyzer.ForensicAnalyzer
	store     storage.ArtifactStore
	imageRepo repository.ImageRepository
	validator *validation.InputValidator
	events    observer.Subject
	timeout   time.Duration
}

// NewForensicsService creates a new forensics service. events may be nil.
func NewForensicsService(
	forensicAnalyzer analyzer.ForensicAnalyzer,
	store storage.ArtifactStore,
	imageRepository repository.ImageRepository,
	validator *validation.InputValidator,
	events observer.Subject,
	timeout time.Duration,
) ForensicsService {
	return &forensicsService{
		analyzer:  forensicAnalyzer,
		store:     store,
		imageRepo: imageRepository,
		validator: validator,
		events:    events,
		timeout:   timeout,
	}
}

func (s *forensicsService) IsSupportedImage(filename string) bool {
	return s.validator.IsSupportedImage(filename)
}

func (s *forensicsService) AnalyzeUpload(ctx context.Context, filename string, data []byte, modTime time.Time) (*models.AnalysisReport, error) {
	if err := s.validator.ValidateUpload(filename, int64(len(data))); err != nil {
		return nil, err
	}
	return s.analyze(ctx, analyzer.Input{
		Filename: filepath.Base(filename),
		Data:     data,
		ModTime:  modTime,
	})
}

func (s *forensicsService) AnalyzeURL(ctx context.Context, imageURL string) (*models.AnalysisReport, error) {
	start := time.Now()
	img, err := s.imageRepo.FetchImage(ctx, imageURL)
	if err != nil {
		s.publish(ctx, observer.AnalysisEvent{
			EventType:      observer.ImageFetchFailed,
			Filename:       imageURL,
			ProcessingTime: time.Since(start),
			ErrorMessage:   err.Error(),
		})
		return nil, err
	}
	s.publish(ctx, observer.AnalysisEvent{
		EventType:      observer.ImageFetched,
		Filename:       img.Filename,
		ProcessingTime: time.Since(start),
		Success:        true,
		Metadata:       map[string]interface{}{"url": imageURL, "bytes": len(img.Data)},
	})

	return s.analyze(ctx, analyzer.Input{
		Filename: img.Filename,
		Data:     img.Data,
		ModTime:  img.ModTime,
	})
}

func (s *forensicsService) analyze(ctx context.Context, in analyzer.Input) (*models.AnalysisReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	s.publish(ctx, observer.AnalysisEvent{EventType: observer.AnalysisStarted, Filename: in.Filename})

	in.SourcePath, in.Path = s.storeSource(ctx, in)

	report, err := s.analyzer.Analyze(ctx, in)
	if err != nil {
		s.publish(ctx, observer.AnalysisEvent{
			EventType:      observer.AnalysisFailed,
			Filename:       in.Filename,
			ProcessingTime: time.Since(start),
			ErrorMessage:   err.Error(),
		})
		return nil, err
	}

	for section, msg := range SectionErrors(report) {
		s.publish(ctx, observer.AnalysisEvent{
			EventType:    observer.SectionFailed,
			RequestID:    report.RequestID,
			Filename:     in.Filename,
			Section:      section,
			ErrorMessage: msg,
		})
	}
	s.publish(ctx, observer.AnalysisEvent{
		EventType:      observer.AnalysisCompleted,
		RequestID:      report.RequestID,
		Filename:       in.Filename,
		ProcessingTime: time.Since(start),
		Success:        true,
	})
	return report, nil
}

// storeSource persists the original upload. A failure here is logged and
// leaves the source path empty; the analysis itself still runs.
func (s *forensicsService) storeSource(ctx context.Context, in analyzer.Input) (sourcePath, localPath string) {
	name := analyzer.SourceArtifactName(in.Filename, in.Data)
	stored, err := s.store.Put(ctx, analyzer.DirSource, name, in.Data)
	if err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"filename": in.Filename,
			"artifact": name,
		}).Warn("Failed to store source image")
		return "", ""
	}

	// Local copies let exiftool read the file without a temp copy
	if local, ok := s.store.(interface{ Root() string }); ok {
		localPath = filepath.Join(local.Root(), filepath.FromSlash(stored))
	}
	return stored, localPath
}

func (s *forensicsService) publish(ctx context.Context, event observer.AnalysisEvent) {
	if s.events == nil {
		return
	}
	s.events.NotifyObservers(ctx, event)
}

// SectionErrors collects the per-section error strings of a report
func SectionErrors(report *models.AnalysisReport) map[string]string {
	out := make(map[string]string)
	add := func(section, msg string) {
		if msg != "" {
			out[section] = msg
		}
	}

	add("ela", report.ELAError)
	add("noise", report.NoiseAnalysis.Error)
	add("lighting", report.LightingInconsistencies.Error)
	add("lighting_histogram", report.LightingHistogramError)
	add("copy_move", report.CopyMoveForgery.Error)
	add("hashes", report.Hashes.Error)
	add("metadata_pil", report.MetadataPIL["Error"])
	add("metadata_exifread", report.MetadataExifread["Error"])
	add("jpeg_structure", report.JPEGStructureMetadata["Error"])
	if msg, ok := report.JPEGQualityDetails["error"].(string); ok {
		add("jpeg_quality", msg)
	}
	if msg, ok := report.DigestInfo["Error"].(string); ok {
		add("digest", msg)
	}
	return out
}
