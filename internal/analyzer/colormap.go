package analyzer

import (
	"image"
	"math"
)

// jetColor maps an 8-bit intensity onto the blue-cyan-yellow-red jet scale
func jetColor(v uint8) (r, g, b uint8) {
	x := float64(v) / 255
	channel := func(offset float64) uint8 {
		c := 1.5 - math.Abs(4*x-offset)
		c = math.Max(0, math.Min(1, c))
		return uint8(math.Round(c * 255))
	}
	return channel(3), channel(2), channel(1)
}

// jetImage renders a gray image through the jet colormap
func jetImage(gray *image.Gray) *image.NRGBA {
	out := image.NewNRGBA(gray.Rect)
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b := jetColor(gray.Pix[y*gray.Stride+x])
			i := y*out.Stride + x*4
			out.Pix[i] = r
			out.Pix[i+1] = g
			out.Pix[i+2] = b
			out.Pix[i+3] = 0xff
		}
	}
	return out
}
