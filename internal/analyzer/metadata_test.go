package analyzer

import (
	"context"
	"strings"
	"testing"
	"time"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("bad time %q: %v", value, err)
	}
	return ts
}

func TestGoexifReader_NoExif(t *testing.T) {
	r := NewGoexifReader()
	tags, err := r.Read(context.Background(), Input{Data: jpegBytes(t, noiseImage(8, 8, 1), 90)})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if tags["Info"] != "No EXIF metadata found using goexif." {
		t.Errorf("Unexpected result %v", tags)
	}
}

func TestGoexifReader_ReadsMake(t *testing.T) {
	r := NewGoexifReader()
	data := withExifMake(t, jpegBytes(t, noiseImage(8, 8, 1), 90), "Test")

	tags, err := r.Read(context.Background(), Input{Data: data})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if tags["Make"] != "Test" {
		t.Errorf("Expected Make=Test, got %v", tags)
	}
}

func TestGoexifReader_CorruptExif(t *testing.T) {
	plain := jpegBytes(t, noiseImage(8, 8, 1), 90)
	// APP1 with the EXIF prefix but no TIFF body
	data := append([]byte{0xFF, 0xD8, 0xFF, 0xE1, 0x00, 0x08}, []byte("Exif\x00\x00")...)
	data = append(data, plain[2:]...)

	tags, _ := NewGoexifReader().Read(context.Background(), Input{Data: data})
	if _, ok := tags["Error"]; !ok {
		t.Errorf("Expected an Error entry, got %v", tags)
	}
}

func TestExiftoolReader(t *testing.T) {
	r := NewExiftoolReader()
	defer r.Close()

	tags, err := r.Read(context.Background(), Input{Filename: "x.jpg", Data: jpegBytes(t, noiseImage(8, 8, 1), 90)})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if r.et == nil {
		if !strings.HasPrefix(tags["Info"], "exiftool not available") {
			t.Errorf("Expected unavailable notice, got %v", tags)
		}
		return
	}
	if _, ok := tags["SourceFile"]; ok {
		t.Error("Housekeeping fields should be dropped")
	}
	if len(tags) == 0 {
		t.Error("Expected at least one entry")
	}
}
