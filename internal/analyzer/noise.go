package analyzer

import (
	"context"
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type noiseOutput struct {
	MapPath           string
	RegionalVariation []map[string]float64
}

// gaussianKernel5 returns the normalized 5-tap Gaussian for sigma
func gaussianKernel5(sigma float64) []float64 {
	kernel := make([]float64, 5)
	for i := range kernel {
		x := float64(i - 2)
		kernel[i] = math.Exp(-x * x / (2 * sigma * sigma))
	}
	floats.Scale(1/floats.Sum(kernel), kernel)
	return kernel
}

// gaussianBlur5 applies a separable 5x5 Gaussian with mirrored borders
// (reflect101) and rounds the result back to 8-bit levels.
func gaussianBlur5(gray *image.Gray, sigma float64) []float64 {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	kernel := gaussianKernel5(sigma)

	tmp := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+w]
		for x := 0; x < w; x++ {
			var sum float64
			for k, wt := range kernel {
				sum += wt * float64(row[reflect101(x+k-2, w)])
			}
			tmp[y*w+x] = sum
		}
	}

	out := make([]float64, w*h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			var sum float64
			for k, wt := range kernel {
				sum += wt * tmp[reflect101(y+k-2, h)*w+x]
			}
			out[y*w+x] = math.Round(math.Min(math.Max(sum, 0), 255))
		}
	}
	return out
}

// noiseResidual returns |gray - blur(gray)| per pixel in row-major order
func noiseResidual(gray *image.Gray, sigma float64) []float64 {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	residual := gaussianBlur5(gray, sigma)
	for y := 0; y < h; y++ {
		src := gray.Pix[y*gray.Stride : y*gray.Stride+w]
		for x := 0; x < w; x++ {
			residual[y*w+x] = math.Abs(float64(src[x]) - residual[y*w+x])
		}
	}
	return residual
}

// quadrantStdDevs splits the field into a 2x2 grid and reports the
// population standard deviation of each cell, rounded to two decimals.
// Odd remainders go to the second row and column.
func quadrantStdDevs(field []float64, w, h int) []map[string]float64 {
	rows := [3]int{0, h / 2, h}
	cols := [3]int{0, w / 2, w}

	out := make([]map[string]float64, 0, 4)
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			cell := make([]float64, 0, (rows[r+1]-rows[r])*(cols[c+1]-cols[c]))
			for y := rows[r]; y < rows[r+1]; y++ {
				cell = append(cell, field[y*w+cols[c]:y*w+cols[c+1]]...)
			}
			std := 0.0
			if len(cell) > 0 {
				std = math.Round(stat.PopStdDev(cell, nil)*100) / 100
			}
			out = append(out, map[string]float64{fmt.Sprintf("region_%d_%d", r, c): std})
		}
	}
	return out
}

// normalizedGray rescales the field to 0..255 using its own min and max
func normalizedGray(field []float64, w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	if len(field) == 0 {
		return img
	}
	lo, hi := field[0], field[0]
	for _, v := range field {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		return img
	}
	for i, v := range field {
		img.Pix[i] = uint8(math.Round((v - lo) / span * 255))
	}
	return img
}

func runNoise(ctx context.Context, sink ArtifactSink, namer artifactNamer, dec *Decoded, sigma float64) (noiseOutput, error) {
	w, h := dec.Width(), dec.Height()
	residual := noiseResidual(dec.Gray, sigma)
	regions := quadrantStdDevs(residual, w, h)

	data, err := encodePNG(normalizedGray(residual, w, h))
	if err != nil {
		return noiseOutput{RegionalVariation: regions}, err
	}
	path, err := sink.Put(ctx, DirNoise, namer.name("noise"), data)
	if err != nil {
		return noiseOutput{RegionalVariation: regions}, err
	}
	return noiseOutput{MapPath: path, RegionalVariation: regions}, nil
}
