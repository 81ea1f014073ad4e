package analyzer

import (
	"image"
	"runtime"
	"sync"
)

// histogramCalculator builds 256-bin intensity histograms over horizontal
// strips in parallel and merges the partial counts.
type histogramCalculator struct {
	workers int
}

func newHistogramCalculator() *histogramCalculator {
	return &histogramCalculator{workers: runtime.NumCPU()}
}

// strips runs count(y0, y1, hist) on horizontal bands of the image and sums
// the per-band histograms.
func (hc *histogramCalculator) strips(height int, count func(startY, endY int, hist *[256]int)) []int {
	numWorkers := hc.workers
	if height < numWorkers {
		numWorkers = height
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}
	rowsPerWorker := (height + numWorkers - 1) / numWorkers // ceil division

	results := make(chan [256]int, numWorkers)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		startY := i * rowsPerWorker
		endY := startY + rowsPerWorker
		if i == numWorkers-1 || endY > height {
			endY = height
		}
		if startY >= endY {
			continue
		}
		wg.Add(1)
		go func(startY, endY int) {
			defer wg.Done()
			var hist [256]int
			count(startY, endY, &hist)
			results <- hist
		}(startY, endY)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	total := make([]int, 256)
	for hist := range results {
		for i, n := range hist {
			total[i] += n
		}
	}
	return total
}

// Luminance counts the grayscale intensities
func (hc *histogramCalculator) Luminance(gray *image.Gray) []int {
	w := gray.Rect.Dx()
	return hc.strips(gray.Rect.Dy(), func(startY, endY int, hist *[256]int) {
		for y := startY; y < endY; y++ {
			row := gray.Pix[y*gray.Stride : y*gray.Stride+w]
			for _, v := range row {
				hist[v]++
			}
		}
	})
}

// Value counts the V channel of the HSV conversion
func (hc *histogramCalculator) Value(rgb *image.NRGBA) []int {
	w := rgb.Rect.Dx()
	return hc.strips(rgb.Rect.Dy(), func(startY, endY int, hist *[256]int) {
		for y := startY; y < endY; y++ {
			row := rgb.Pix[y*rgb.Stride : y*rgb.Stride+w*4]
			for x := 0; x < len(row); x += 4 {
				hist[hsvValue(row[x], row[x+1], row[x+2])]++
			}
		}
	})
}

// hsvValue is the V channel of the HSV conversion: the largest of the
// three components.
func hsvValue(r, g, b uint8) uint8 {
	return max(r, g, b)
}
