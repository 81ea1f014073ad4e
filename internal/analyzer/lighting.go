package analyzer

import (
	"context"
	"image"

	"gonum.org/v1/gonum/stat"
)

type lightingOutput struct {
	MeanLocalVariance   float64
	StdLocalVariance    float64
	BrightnessHistogram []int
	HeatmapPath         string
}

// reflect101 maps an out-of-range index back into [0, n) mirroring around
// the edge pixels without repeating them (dcb|abcd|cba).
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		} else {
			i = 2*n - 2 - i
		}
	}
	return i
}

// boxFilter averages field over a size x size window using two separable
// passes with reflect-101 borders.
func boxFilter(field []float64, w, h, size int) []float64 {
	radius := size / 2
	norm := float64(size)

	tmp := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := field[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			var sum float64
			for k := -radius; k <= radius; k++ {
				sum += row[reflect101(x+k, w)]
			}
			tmp[y*w+x] = sum / norm
		}
	}

	out := make([]float64, w*h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			var sum float64
			for k := -radius; k <= radius; k++ {
				sum += tmp[reflect101(y+k, h)*w+x]
			}
			out[y*w+x] = sum / norm
		}
	}
	return out
}

// localVariance returns E[x^2] - E[x]^2 over a size x size neighbourhood
func localVariance(gray *image.Gray, size int) []float64 {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	values := make([]float64, w*h)
	squares := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := float64(gray.Pix[y*gray.Stride+x])
			values[y*w+x] = v
			squares[y*w+x] = v * v
		}
	}

	mean := boxFilter(values, w, h, size)
	meanSq := boxFilter(squares, w, h, size)

	variance := make([]float64, w*h)
	for i := range variance {
		variance[i] = meanSq[i] - mean[i]*mean[i]
	}
	return variance
}

func runLighting(ctx context.Context, sink ArtifactSink, namer artifactNamer, dec *Decoded, boxSize int, hist *histogramCalculator) (lightingOutput, error) {
	w, h := dec.Width(), dec.Height()
	variance := localVariance(dec.Gray, boxSize)

	out := lightingOutput{
		MeanLocalVariance:   stat.Mean(variance, nil),
		StdLocalVariance:    stat.PopStdDev(variance, nil),
		BrightnessHistogram: hist.Luminance(dec.Gray),
	}

	data, err := encodePNG(jetImage(normalizedGray(variance, w, h)))
	if err != nil {
		return out, err
	}
	path, err := sink.Put(ctx, DirLighting, namer.name("heatmap"), data)
	if err != nil {
		return out, err
	}
	out.HeatmapPath = path
	return out, nil
}
