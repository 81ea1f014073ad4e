package analyzer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/barasher/go-exiftool"
	"github.com/google/uuid"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
	"github.com/rwcarlsen/goexif/tiff"

	"go-image-forensics/internal/logger"
)

var registerMakerNotes sync.Once

// GoexifReader walks every EXIF IFD, maker notes included, with goexif
type GoexifReader struct{}

// NewGoexifReader registers the maker-note parsers once per process
func NewGoexifReader() *GoexifReader {
	registerMakerNotes.Do(func() {
		exif.RegisterParsers(mknote.All...)
	})
	return &GoexifReader{}
}

// Name identifies the reader in logs
func (r *GoexifReader) Name() string { return "goexif" }

type tagCollector map[string]string

func (c tagCollector) Walk(name exif.FieldName, tag *tiff.Tag) error {
	val := tag.String()
	if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
		val = val[1 : len(val)-1]
	}
	c[string(name)] = val
	return nil
}

// Read never returns an error; problems are reported in the map itself
func (r *GoexifReader) Read(_ context.Context, in Input) (map[string]string, error) {
	if !hasEmbeddedExif(in.Data) {
		return map[string]string{"Info": "No EXIF metadata found using goexif."}, nil
	}

	x, err := exif.Decode(bytes.NewReader(in.Data))
	if err != nil && x == nil {
		return map[string]string{"Error": fmt.Sprintf("Error reading EXIF with goexif: %v", err)}, nil
	}

	tags := tagCollector{}
	if werr := x.Walk(tags); werr != nil {
		return map[string]string{"Error": fmt.Sprintf("Error walking EXIF with goexif: %v", werr)}, nil
	}
	if len(tags) == 0 {
		return map[string]string{"Info": "No EXIF metadata found using goexif."}, nil
	}
	return tags, nil
}

// exiftoolHousekeeping are file-system facts exiftool always reports; they
// say nothing about the embedded metadata.
var exiftoolHousekeeping = map[string]bool{
	"SourceFile":          true,
	"ExifToolVersion":     true,
	"FileName":            true,
	"Directory":           true,
	"FileSize":            true,
	"FileModifyDate":      true,
	"FileAccessDate":      true,
	"FileInodeChangeDate": true,
	"FilePermissions":     true,
	"FileTypeExtension":   true,
}

// ExiftoolReader delegates to a long-running exiftool process. One process
// is shared by the whole service and closed on shutdown.
type ExiftoolReader struct {
	mu      sync.Mutex
	et      *exiftool.Exiftool
	initErr error
	tempDir string
}

// NewExiftoolReader starts exiftool. A missing binary is not fatal: the
// reader then reports the tool as unavailable in every result.
func NewExiftoolReader() *ExiftoolReader {
	et, err := exiftool.NewExiftool()
	if err != nil {
		logger.WithError(err).Warn("exiftool not available, metadata_exifread will be empty")
	}
	return &ExiftoolReader{et: et, initErr: err, tempDir: os.TempDir()}
}

// Name identifies the reader in logs
func (r *ExiftoolReader) Name() string { return "exiftool" }

// Read extracts tags from in.Path, spilling in.Data to a temp file when the
// input has no local copy.
func (r *ExiftoolReader) Read(_ context.Context, in Input) (map[string]string, error) {
	if r.et == nil {
		return map[string]string{"Info": fmt.Sprintf("exiftool not available: %v", r.initErr)}, nil
	}

	path := in.Path
	if path == "" {
		tmp := filepath.Join(r.tempDir, "forensics-"+uuid.NewString()+filepath.Ext(in.Filename))
		if err := os.WriteFile(tmp, in.Data, 0o600); err != nil {
			return map[string]string{"Error": fmt.Sprintf("Error staging file for exiftool: %v", err)}, nil
		}
		defer os.Remove(tmp)
		path = tmp
	}

	r.mu.Lock()
	infos := r.et.ExtractMetadata(path)
	r.mu.Unlock()

	if len(infos) == 0 {
		return map[string]string{"Info": "No EXIF metadata found using exiftool."}, nil
	}
	if infos[0].Err != nil {
		return map[string]string{"Error": fmt.Sprintf("Error reading image with exiftool: %v", infos[0].Err)}, nil
	}

	out := make(map[string]string, len(infos[0].Fields))
	for k, v := range infos[0].Fields {
		if exiftoolHousekeeping[k] {
			continue
		}
		out[k] = strings.TrimSpace(fmt.Sprint(v))
	}
	if len(out) == 0 {
		return map[string]string{"Info": "No EXIF metadata found using exiftool."}, nil
	}
	return out, nil
}

// Close stops the exiftool process
func (r *ExiftoolReader) Close() error {
	if r.et == nil {
		return nil
	}
	return r.et.Close()
}
