package validation

import (
	"testing"

	apperrors "go-image-forensics/internal/errors"
)

func TestIsSupportedImage(t *testing.T) {
	v := NewInputValidator(0)

	tests := map[string]bool{
		"a.jpg":      true,
		"a.JPEG":     true,
		"scan.tif":   true,
		"x.webp":     true,
		"y.bmp":      true,
		"notes.txt":  false,
		"anim.gif":   false,
		"noext":      false,
		"archive.7z": false,
	}
	for name, want := range tests {
		if got := v.IsSupportedImage(name); got != want {
			t.Errorf("IsSupportedImage(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestValidateUpload(t *testing.T) {
	v := NewInputValidator(100)

	tests := []struct {
		name     string
		filename string
		size     int64
		wantErr  bool
	}{
		{"valid", "photo.png", 50, false},
		{"at limit", "photo.png", 100, false},
		{"too large", "photo.png", 101, true},
		{"empty", "photo.png", 0, true},
		{"no name", " ", 10, true},
		{"bad extension", "photo.exe", 10, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateUpload(tt.filename, tt.size)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if err != nil && !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}
}

func TestValidateImageURL(t *testing.T) {
	v := NewInputValidator(0)

	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://example.com/image.png", false},
		{"http://sub.example.com/a/b.jpg", false},
		{"", true},
		{"ftp://example.com/image.jpg", true},
		{"https:///image.jpg", true},
		{"http://127.0.0.1/image.jpg", true},
		{"http://localhost:8080/image.jpg", true},
		{"http://10.1.2.3/image.jpg", true},
		{"http://[::1]/image.jpg", true},
		{"://bad", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if err := v.ValidateImageURL(tt.url); (err != nil) != tt.wantErr {
				t.Errorf("ValidateImageURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestValidateImageURL_Options(t *testing.T) {
	v := NewInputValidator(0).WithAllowedHosts("images.example.com")
	if err := v.ValidateImageURL("https://other.example.com/x.png"); err == nil {
		t.Error("Expected host restriction to apply")
	}
	if err := v.ValidateImageURL("https://images.example.com/x.png"); err != nil {
		t.Errorf("Expected allowed host to pass, got %v", err)
	}

	private := NewInputValidator(0).WithPrivateHosts()
	if err := private.ValidateImageURL("http://192.168.1.1/x.png"); err != nil {
		t.Errorf("Expected private host to pass when allowed, got %v", err)
	}
}
