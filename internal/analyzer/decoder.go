package analyzer

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	apperrors "go-image-forensics/internal/errors"
)

// Decode decodes raw bytes into the canonical 8-bit RGB and grayscale
// views. Alpha is dropped, so RGBA inputs behave like their RGB composite.
func Decode(data []byte) (*Decoded, error) {
	if len(data) == 0 {
		return nil, apperrors.NewDecodeError("empty image data", nil)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewDecodeError("unsupported or corrupt image", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, apperrors.NewDecodeError("image has zero size", nil)
	}

	rect := image.Rect(0, 0, bounds.Dx(), bounds.Dy())

	rgb := image.NewNRGBA(rect)
	draw.Draw(rgb, rect, img, bounds.Min, draw.Src)
	for i := 3; i < len(rgb.Pix); i += 4 {
		rgb.Pix[i] = 0xff
	}

	gray := image.NewGray(rect)
	draw.Draw(gray, rect, rgb, image.Point{}, draw.Src)

	return &Decoded{
		Original: img,
		RGB:      rgb,
		Gray:     gray,
		Format:   format,
		Channels: channelCount(img),
	}, nil
}

// channelCount reports the number of color channels of the source model
func channelCount(img image.Image) int {
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		return 1
	case color.RGBAModel, color.RGBA64Model, color.NRGBAModel, color.NRGBA64Model:
		if opaque, ok := img.(interface{ Opaque() bool }); ok && opaque.Opaque() {
			return 3
		}
		return 4
	case color.CMYKModel:
		return 4
	default:
		return 3
	}
}
