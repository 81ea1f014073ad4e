package container

import (
	"errors"
	"fmt"
	"net/http"

	"go-image-forensics/internal/analyzer"
	"go-image-forensics/internal/config"
	"go-image-forensics/internal/factory"
	"go-image-forensics/internal/logger"
	"go-image-forensics/internal/observer"
	"go-image-forensics/internal/repository"
	"go-image-forensics/internal/service"
	"go-image-forensics/internal/storage"
	"go-image-forensics/internal/transport"
	"go-image-forensics/pkg/validation"

	"golang.org/x/time/rate"
)

// Container holds all application dependencies
type Container struct {
	config           *config.Config
	store            storage.ArtifactStore
	exiftool         *analyzer.ExiftoolReader
	forensicAnalyzer analyzer.ForensicAnalyzer
	events           *observer.EventPublisher
	metrics          *observer.MetricsObserver
	limiter          *transport.RateLimiter
	service          service.ForensicsService
	handler          http.Handler
}

// NewContainer builds the dependency graph. The embedding basis and the
// exiftool process are created once here and shared by every request.
func NewContainer(cfg *config.Config) (*Container, error) {
	components := factory.NewComponentFactory(cfg)

	store, err := components.StorageFactory.CreateStorage(factory.StorageType(cfg.ArtifactBackend))
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact store: %w", err)
	}

	exiftool := analyzer.NewExiftoolReader()
	forensicAnalyzer, err := components.AnalyzerFactory.CreateAnalyzer(store, exiftool)
	if err != nil {
		exiftool.Close()
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}

	metrics := observer.NewMetricsObserver()
	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	validator := validation.NewInputValidator(cfg.MaxUploadFileSize)
	fetcher := storage.NewHTTPImageFetcher(cfg.MaxUploadFileSize)
	imageRepository := repository.NewHTTPImageRepository(fetcher, validator)

	forensics := service.NewForensicsService(forensicAnalyzer, store, imageRepository, validator, events, cfg.AnalysisTimeout)
	limiter := transport.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	handler := transport.NewHandler(forensics, store, metrics, limiter, cfg)

	return &Container{
		config:           cfg,
		store:            store,
		exiftool:         exiftool,
		forensicAnalyzer: forensicAnalyzer,
		events:           events,
		metrics:          metrics,
		limiter:          limiter,
		service:          forensics,
		handler:          handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Close stops background work and releases the exiftool process
func (c *Container) Close() error {
	c.limiter.Stop()
	c.events.Flush()
	return errors.Join(
		c.forensicAnalyzer.Close(),
		c.exiftool.Close(),
	)
}
