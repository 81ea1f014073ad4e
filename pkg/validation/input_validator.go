package validation

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strings"

	apperrors "go-image-forensics/internal/errors"
)

// SupportedExtensions are the upload extensions the service analyzes
var SupportedExtensions = []string{".jpg", ".jpeg", ".png", ".tiff", ".tif", ".bmp", ".webp"}

// InputValidator checks uploads and remote image URLs before analysis
type InputValidator struct {
	allowedSchemes    []string
	allowedHosts      []string
	allowedExtensions []string
	maxFileSize       int64
	allowPrivateHosts bool
}

// NewInputValidator creates a validator with the default extension set.
// Literal loopback and private addresses are refused for remote URLs.
func NewInputValidator(maxFileSize int64) *InputValidator {
	return &InputValidator{
		allowedSchemes:    []string{"http", "https"},
		allowedHosts:      []string{}, // empty means all hosts allowed
		allowedExtensions: SupportedExtensions,
		maxFileSize:       maxFileSize,
	}
}

// WithAllowedHosts restricts remote URLs to the given hosts
func (v *InputValidator) WithAllowedHosts(hosts ...string) *InputValidator {
	v.allowedHosts = hosts
	return v
}

// WithPrivateHosts permits loopback and private network addresses
func (v *InputValidator) WithPrivateHosts() *InputValidator {
	v.allowPrivateHosts = true
	return v
}

// IsSupportedImage reports whether the filename has an analyzable extension
func (v *InputValidator) IsSupportedImage(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range v.allowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// ValidateUpload checks the declared name and the payload size
func (v *InputValidator) ValidateUpload(filename string, size int64) error {
	if strings.TrimSpace(filename) == "" {
		return apperrors.NewValidationError("filename cannot be empty", nil)
	}
	if !v.IsSupportedImage(filename) {
		return apperrors.NewValidationError(fmt.Sprintf("unsupported file type %q", filepath.Ext(filename)), nil)
	}
	if size == 0 {
		return apperrors.NewValidationError("file is empty", nil)
	}
	if v.maxFileSize > 0 && size > v.maxFileSize {
		return apperrors.NewValidationError(fmt.Sprintf("file exceeds %d bytes", v.maxFileSize), nil)
	}
	return nil
}

// ValidateImageURL validates a remote image location
func (v *InputValidator) ValidateImageURL(imageURL string) error {
	if strings.TrimSpace(imageURL) == "" {
		return apperrors.NewValidationError("URL cannot be empty", nil)
	}

	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return apperrors.NewValidationError("invalid URL format", err)
	}
	if !contains(v.allowedSchemes, parsedURL.Scheme) {
		return apperrors.NewValidationError("URL scheme not allowed", nil)
	}

	host := parsedURL.Hostname()
	if host == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}
	if len(v.allowedHosts) > 0 && !contains(v.allowedHosts, host) {
		return apperrors.NewValidationError("URL host not allowed", nil)
	}
	if !v.allowPrivateHosts && isInternalHost(host) {
		return apperrors.NewValidationError("URL points to an internal address", nil)
	}
	return nil
}

func isInternalHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
