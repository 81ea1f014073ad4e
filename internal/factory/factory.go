package factory

import (
	"fmt"

	"go-image-forensics/internal/analyzer"
	"go-image-forensics/internal/config"
	"go-image-forensics/internal/storage"
)

// StorageType selects the artifact backend
type StorageType string

const (
	// LocalStorage keeps artifacts on the local file system
	LocalStorage StorageType = config.BackendLocal
	// AzureStorage keeps artifacts in an Azure blob container
	AzureStorage StorageType = config.BackendAzure
)

// StorageFactory creates artifact stores
type StorageFactory interface {
	CreateStorage(storageType StorageType) (storage.ArtifactStore, error)
}

// AnalyzerFactory creates forensic analyzers around a store
type AnalyzerFactory interface {
	CreateAnalyzer(store storage.ArtifactStore, exifread analyzer.MetadataReader) (analyzer.ForensicAnalyzer, error)
}

type storageFactory struct {
	cfg *config.Config
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config) StorageFactory {
	return &storageFactory{cfg: cfg}
}

// CreateStorage creates a storage implementation based on the specified type
func (f *storageFactory) CreateStorage(storageType StorageType) (storage.ArtifactStore, error) {
	switch storageType {
	case LocalStorage:
		return storage.NewLocalStore(f.cfg.OutputRoot)
	case AzureStorage:
		return storage.NewAzureStore(f.cfg.AzureStorageAccount, f.cfg.AzureStorageKey, f.cfg.AzureStorageContainer)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

type analyzerFactory struct {
	cfg      *config.Config
	embedder analyzer.FeatureExtractor
}

// NewAnalyzerFactory shares one embedder across every analyzer it creates
func NewAnalyzerFactory(cfg *config.Config) AnalyzerFactory {
	return &analyzerFactory{cfg: cfg, embedder: analyzer.NewDCTEmbedder()}
}

// Options translates the configuration into analysis options
func Options(cfg *config.Config) analyzer.AnalysisOptions {
	opts := analyzer.DefaultOptions().
		WithELAQuality(cfg.ELAQuality).
		WithCopyMove(cfg.CopyMoveBlockSize, cfg.CopyMoveStride, cfg.CopyMoveThreshold).
		WithMinBlockStdDev(cfg.CopyMoveMinBlockStdDev).
		WithMaxWorkers(cfg.MaxWorkers)
	if cfg.CopyMoveSkipOverlap {
		opts = opts.WithoutOverlappingPairs()
	}
	return opts
}

// CreateAnalyzer creates the analyzer with the goexif reader built in
func (f *analyzerFactory) CreateAnalyzer(store storage.ArtifactStore, exifread analyzer.MetadataReader) (analyzer.ForensicAnalyzer, error) {
	return analyzer.NewForensicAnalyzer(store, f.embedder, analyzer.NewGoexifReader(), exifread, Options(f.cfg))
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	AnalyzerFactory AnalyzerFactory
	StorageFactory  StorageFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		AnalyzerFactory: NewAnalyzerFactory(cfg),
		StorageFactory:  NewStorageFactory(cfg),
	}
}
