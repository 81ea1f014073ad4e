package analyzer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"time"

	apperrors "go-image-forensics/internal/errors"
	"go-image-forensics/pkg/models"
)

// AnalysisReport is an alias to the shared models.AnalysisReport
type AnalysisReport = models.AnalysisReport

// Input is one uploaded image. Path optionally points at a local copy of
// Data for metadata readers that only work on files.
type Input struct {
	Filename   string
	Data       []byte
	Path       string
	ModTime    time.Time
	SourcePath string
}

// Decoded holds the two canonical views of an image. Both are shared
// read-only by every analyzer of a request and never mutated after decode.
type Decoded struct {
	Original image.Image
	RGB      *image.NRGBA
	Gray     *image.Gray
	Format   string
	Channels int
}

// Width returns the pixel width
func (d *Decoded) Width() int { return d.RGB.Bounds().Dx() }

// Height returns the pixel height
func (d *Decoded) Height() int { return d.RGB.Bounds().Dy() }

// Result is the outcome of one analyzer: a value or an error, never both
type Result[T any] struct {
	Value T
	Err   error
}

// ErrString renders the error for a report section, or "" on success
func (r Result[T]) ErrString() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// capture runs fn and converts a panic into an analysis error for section
func capture[T any](section string, fn func() (T, error)) (res Result[T]) {
	defer func() {
		if p := recover(); p != nil {
			res = Result[T]{Err: apperrors.NewAnalysisError(section+" panicked", fmt.Errorf("%v", p))}
		}
	}()
	v, err := fn()
	return Result[T]{Value: v, Err: err}
}

// artifactNamer derives collision-resistant artifact names from the content
// hash and the uploaded filename.
type artifactNamer struct {
	prefix string
}

func newArtifactNamer(filename, sha256Hex string) artifactNamer {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	stem = sanitizeStem(stem)
	if len(sha256Hex) > 12 {
		sha256Hex = sha256Hex[:12]
	}
	if sha256Hex == "" {
		return artifactNamer{prefix: stem}
	}
	return artifactNamer{prefix: sha256Hex + "_" + stem}
}

func (n artifactNamer) name(kind string) string {
	return n.prefix + "_" + kind + ".png"
}

// SourceArtifactName names the stored copy of an upload: the content hash
// prefix, the sanitized stem and the lowercased extension.
func SourceArtifactName(filename string, data []byte) string {
	sum := sha256.Sum256(data)
	namer := newArtifactNamer(filename, hex.EncodeToString(sum[:]))
	return namer.prefix + strings.ToLower(filepath.Ext(filename))
}

func sanitizeStem(stem string) string {
	var b strings.Builder
	for _, r := range stem {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "image"
	}
	return b.String()
}
