package analyzer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	apperrors "go-image-forensics/internal/errors"
	"go-image-forensics/internal/logger"
	"go-image-forensics/pkg/models"
)

// coreAnalyzer implements ForensicAnalyzer and orchestrates every section
type coreAnalyzer struct {
	sink       ArtifactSink
	pil        MetadataReader
	exifread   MetadataReader
	opts       AnalysisOptions
	workerPool *WorkerPool
	histograms *histogramCalculator
	copyMove   *copyMoveDetector
	now        func() time.Time
}

// NewForensicAnalyzer wires the analyzers around one artifact sink. The
// extractor may be nil, in which case copy-move reports the model as
// unavailable. Either metadata reader may be nil as well.
func NewForensicAnalyzer(sink ArtifactSink, extractor FeatureExtractor, pil, exifread MetadataReader, opts AnalysisOptions) (ForensicAnalyzer, error) {
	if sink == nil {
		return nil, apperrors.NewInternalError("artifact sink is required", nil)
	}
	if err := opts.validate(); err != nil {
		return nil, apperrors.NewValidationError("invalid analysis options", err)
	}

	workerPool := NewWorkerPool(opts.MaxWorkers)
	workerPool.Start()

	return &coreAnalyzer{
		sink:       sink,
		pil:        pil,
		exifread:   exifread,
		opts:       opts,
		workerPool: workerPool,
		histograms: newHistogramCalculator(),
		copyMove:   &copyMoveDetector{extractor: extractor, pool: workerPool, opts: opts},
		now:        time.Now,
	}, nil
}

// runSection starts fn on its own goroutine and stores its outcome in dst
func runSection[T any](wg *sync.WaitGroup, entry *logrus.Entry, section string, dst *Result[T], fn func() (T, error)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		log := logger.ForSection(entry, section)
		log.Debug("Section started")
		*dst = capture(section, fn)
		if dst.Err != nil {
			log.WithError(dst.Err).Warn("Section failed")
			return
		}
		log.Debug("Section finished")
	}()
}

func readMetadata(ctx context.Context, r MetadataReader, in Input) (map[string]string, error) {
	if r == nil {
		return map[string]string{"Info": "metadata reader not configured"}, nil
	}
	tags, err := r.Read(ctx, in)
	if err != nil {
		return map[string]string{"Error": fmt.Sprintf("Error reading image with %s: %v", r.Name(), err)}, nil
	}
	return tags, nil
}

// Analyze decodes once and fans the decoded views out to every analyzer
func (ca *coreAnalyzer) Analyze(ctx context.Context, in Input) (*models.AnalysisReport, error) {
	start := ca.now()
	requestID := uuid.NewString()
	entry := logger.ForRequest(requestID, in.Filename)

	dec, err := Decode(in.Data)
	if err != nil {
		entry.WithError(err).Warn("Image could not be decoded")
		return nil, err
	}

	digests := computeDigests(in.Data)
	hashes := buildHashes(digests, dec)
	namer := newArtifactNamer(in.Filename, digests.SHA256)

	var (
		wg        sync.WaitGroup
		elaRes    Result[elaOutput]
		noiseRes  Result[noiseOutput]
		lightRes  Result[lightingOutput]
		histRes   Result[[]int]
		cmRes     Result[copyMoveOutput]
		pilRes    Result[map[string]string]
		exifRes   Result[map[string]string]
		structRes Result[map[string]string]
		qualRes   Result[map[string]interface{}]
		digestRes Result[map[string]interface{}]
	)

	runSection(&wg, entry, "ela", &elaRes, func() (elaOutput, error) {
		return runELA(ctx, ca.sink, namer, dec, ca.opts.ELAQuality)
	})
	runSection(&wg, entry, "noise", &noiseRes, func() (noiseOutput, error) {
		return runNoise(ctx, ca.sink, namer, dec, ca.opts.BlurSigma)
	})
	runSection(&wg, entry, "lighting", &lightRes, func() (lightingOutput, error) {
		return runLighting(ctx, ca.sink, namer, dec, ca.opts.BoxSize, ca.histograms)
	})
	runSection(&wg, entry, "lighting_histogram", &histRes, func() ([]int, error) {
		return ca.histograms.Value(dec.RGB), nil
	})
	runSection(&wg, entry, "copy_move", &cmRes, func() (copyMoveOutput, error) {
		return ca.copyMove.run(ctx, ca.sink, namer, dec)
	})
	runSection(&wg, entry, "metadata_pil", &pilRes, func() (map[string]string, error) {
		return readMetadata(ctx, ca.pil, in)
	})
	runSection(&wg, entry, "metadata_exifread", &exifRes, func() (map[string]string, error) {
		return readMetadata(ctx, ca.exifread, in)
	})
	runSection(&wg, entry, "jpeg_structure", &structRes, func() (map[string]string, error) {
		return containerStructure(in.Data)
	})
	runSection(&wg, entry, "jpeg_quality", &qualRes, func() (map[string]interface{}, error) {
		return jpegQualityDetails(in.Data, dec.Format)
	})
	runSection(&wg, entry, "digest", &digestRes, func() (map[string]interface{}, error) {
		return buildDigest(in, dec, digests, hashes.Perceptual, ca.opts.ColorCountCap, start), nil
	})

	wg.Wait()

	report := &models.AnalysisReport{
		RequestID:       requestID,
		Timestamp:       start,
		SourceImagePath: in.SourcePath,
		Hashes:          hashes,

		MetadataPIL:      errorMap(pilRes.Value, pilRes.Err, "Error"),
		MetadataExifread: errorMap(exifRes.Value, exifRes.Err, "Error"),

		ELAImagePath: elaRes.Value.Path,
		ELAError:     elaRes.ErrString(),
		SplicingAnalysis: models.SplicingAnalysis{
			ELASplicingImage: elaRes.Value.SplicingPath,
			MaxDifference:    elaRes.Value.MaxDifference,
			Error:            elaRes.ErrString(),
		},

		LightingInconsistencies: models.LightingInconsistencies{
			MeanLocalVariance:   lightRes.Value.MeanLocalVariance,
			StdLocalVariance:    lightRes.Value.StdLocalVariance,
			BrightnessHistogram: lightRes.Value.BrightnessHistogram,
			HeatmapPath:         lightRes.Value.HeatmapPath,
			Error:               lightRes.ErrString(),
		},
		LightingHistogram:      histRes.Value,
		LightingHistogramError: histRes.ErrString(),

		NoiseAnalysis: models.NoiseAnalysis{
			NoiseMapPath:      noiseRes.Value.MapPath,
			RegionalVariation: noiseRes.Value.RegionalVariation,
			Error:             noiseRes.ErrString(),
		},

		CopyMoveForgery: models.CopyMoveForgery{
			MapPath:        cmRes.Value.MapPath,
			MatchesFound:   cmRes.Value.MatchesFound,
			BlocksCompared: cmRes.Value.BlocksCompared,
			SkippedBlocks:  cmRes.Value.SkippedBlocks,
			Error:          cmRes.ErrString(),
		},

		JPEGStructureMetadata: errorMap(structRes.Value, structRes.Err, "Error"),
		DigestInfo:            errorAnyMap(digestRes.Value, digestRes.Err, "Error"),
		JPEGQualityDetails:    errorAnyMap(qualRes.Value, qualRes.Err, "error"),
	}
	report.ProcessingTimeSec = ca.now().Sub(start).Seconds()

	entry.WithFields(logrus.Fields{
		"processing_time_sec": report.ProcessingTimeSec,
		"copy_move_matches":   report.CopyMoveForgery.MatchesFound,
	}).Info("Forensic analysis completed")

	return report, nil
}

func errorMap(v map[string]string, err error, key string) map[string]string {
	if err != nil {
		return map[string]string{key: err.Error()}
	}
	return v
}

func errorAnyMap(v map[string]interface{}, err error, key string) map[string]interface{} {
	if err != nil {
		return map[string]interface{}{key: err.Error()}
	}
	return v
}

// Close releases the worker pool
func (ca *coreAnalyzer) Close() error {
	ca.workerPool.Close()
	return nil
}
