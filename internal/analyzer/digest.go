package analyzer

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const digestTimeLayout = "2006-01-02 15:04:05 GMT"

var extensionTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".webp": "image/webp",
}

// fileTypeFromName resolves the declared type from the upload's extension
func fileTypeFromName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	return fmt.Sprintf("unknown (%s)", ext)
}

// countColors counts distinct colors of the source image and gives up once
// limit is exceeded.
func countColors(img image.Image, limit int) (int, bool) {
	b := img.Bounds()
	seen := make(map[uint64]struct{})
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			key := uint64(r>>8)<<24 | uint64(g>>8)<<16 | uint64(bl>>8)<<8 | uint64(a>>8)
			if _, ok := seen[key]; ok {
				continue
			}
			if len(seen) >= limit {
				return 0, false
			}
			seen[key] = struct{}{}
		}
	}
	return len(seen), true
}

func buildDigest(in Input, dec *Decoded, digests contentDigests, phash string, colorCap int, now time.Time) map[string]interface{} {
	modTime := in.ModTime
	if modTime.IsZero() {
		modTime = now
	}

	out := map[string]interface{}{
		"Filename":        filepath.Base(in.Filename),
		"Filetime":        modTime.UTC().Format(digestTimeLayout),
		"File Size":       humanize.Comma(int64(len(in.Data))) + " bytes",
		"File Type":       fileTypeFromName(in.Filename),
		"Dimensions":      fmt.Sprintf("%dx%d", dec.Width(), dec.Height()),
		"Color Channels":  dec.Channels,
		"MD5":             digests.MD5,
		"SHA1":            digests.SHA1,
		"SHA256":          digests.SHA256,
		"Perceptual Hash": phash,
		"First Analyzed":  now.UTC().Format(digestTimeLayout),
	}

	src := dec.Original
	if src == nil {
		src = dec.RGB
	}
	if n, ok := countColors(src, colorCap); ok {
		out["Unique Colors"] = n
	} else {
		out["Unique Colors"] = "Too many to count"
	}

	if !hasEmbeddedExif(in.Data) {
		out["EXIF"] = "No EXIF metadata found"
	}
	return out
}
