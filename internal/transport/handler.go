package transport

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go-image-forensics/internal/analyzer"
	"go-image-forensics/internal/config"
	apperrors "go-image-forensics/internal/errors"
	"go-image-forensics/internal/logger"
	"go-image-forensics/internal/observer"
	"go-image-forensics/internal/service"
	"go-image-forensics/internal/storage"
	"go-image-forensics/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// artifactDirs are exposed read-only under their own route prefix
var artifactDirs = []string{
	analyzer.DirELA,
	analyzer.DirLighting,
	analyzer.DirNoise,
	analyzer.DirCopyMove,
	analyzer.DirSource,
}

type URLRequest struct {
	URL string `json:"url" binding:"required"`
}

// NewHandler wires the routes. metrics may be nil.
func NewHandler(svc service.ForensicsService, store storage.ArtifactStore, metrics *observer.MetricsObserver, limiter *RateLimiter, cfg *config.Config) http.Handler {
	r := gin.New()

	r.Use(
		gin.Recovery(),
		requestLogger(),
		cors(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	r.GET("/", banner)
	r.GET("/health", healthCheck)
	r.GET("/metrics", metricsHandler(metrics))

	uploads := r.Group("/")
	if limiter != nil {
		uploads.Use(limiter.Middleware())
	}
	uploads.POST("/process-images", processImages(svc, cfg))
	uploads.POST("/process-url", processURL(svc, cfg))

	for _, dir := range artifactDirs {
		r.GET("/"+dir+"/:name", serveArtifact(store, dir))
	}

	return r
}

func processImages(svc service.ForensicsService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		form, err := c.MultipartForm()
		if err != nil {
			respondError(c, determineStatusCode(err), "invalid multipart form", err)
			return
		}
		files := form.File["files"]
		if len(files) == 0 {
			respondError(c, http.StatusBadRequest, "no files uploaded",
				apperrors.NewValidationError("multipart field \"files\" is empty", nil))
			return
		}

		resp := models.ProcessImagesResponse{Results: make([]*models.AnalysisReport, 0, len(files))}
		for _, fh := range files {
			if !svc.IsSupportedImage(fh.Filename) {
				logger.WithField("filename", fh.Filename).Debug("Skipping unsupported upload")
				continue
			}

			report, err := analyzeFile(ctx, svc, fh, cfg.MaxUploadFileSize)
			if err != nil {
				logger.WithError(err).WithFields(logrus.Fields{
					"filename": fh.Filename,
					"ip":       c.ClientIP(),
				}).Warn("Upload could not be analyzed")
				resp.Failures = append(resp.Failures, models.UploadFailure{
					Filename: fh.Filename,
					Error:    err.Error(),
				})
				continue
			}
			resp.Results = append(resp.Results, report)
		}

		if len(resp.Results) == 0 && len(resp.Failures) > 0 {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, models.ErrorResponse{
				Error:    http.StatusText(http.StatusUnprocessableEntity),
				Message:  "no uploaded image could be analyzed",
				Failures: resp.Failures,
			})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func analyzeFile(ctx context.Context, svc service.ForensicsService, fh *multipart.FileHeader, maxBytes int64) (*models.AnalysisReport, error) {
	if fh.Size > maxBytes {
		return nil, apperrors.NewValidationError("file exceeds upload limit", nil)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, apperrors.NewIOError("cannot open upload", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, apperrors.NewIOError("cannot read upload", err)
	}
	return svc.AnalyzeUpload(ctx, fh.Filename, data, time.Now().UTC())
}

func processURL(svc service.ForensicsService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		var req URLRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}

		report, err := svc.AnalyzeURL(ctx, strings.TrimSpace(req.URL))
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "failed to analyze image", err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func serveArtifact(store storage.ArtifactStore, dir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := store.Get(c.Request.Context(), dir, c.Param("name"))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, models.ErrorResponse{
					Error: http.StatusText(http.StatusNotFound),
				})
				return
			}
			respondError(c, apperrors.GetStatusCode(err), "cannot read artifact", err)
			return
		}
		c.Header("Cache-Control", "public, max-age=3600")
		c.Data(http.StatusOK, http.DetectContentType(data), data)
	}
}

func metricsHandler(metrics *observer.MetricsObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.JSON(http.StatusOK, gin.H{})
			return
		}
		c.JSON(http.StatusOK, metrics.GetMetrics())
	}
}

func banner(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Image Forensics API"})
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}
