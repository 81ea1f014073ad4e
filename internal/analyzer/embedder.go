package analyzer

import (
	"image"
	"math"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	canonicalBlockSize = 32
	lowFrequencyBand   = 8
)

// DCTEmbedder describes a block by its low-frequency DCT-II coefficients.
// The basis matrix is computed once and only read afterwards, so one
// embedder can serve every request concurrently.
type DCTEmbedder struct {
	basis *mat.Dense
	band  int
}

// NewDCTEmbedder builds the orthonormal 32x32 DCT-II basis
func NewDCTEmbedder() *DCTEmbedder {
	n := canonicalBlockSize
	basis := mat.NewDense(n, n, nil)
	for k := 0; k < n; k++ {
		alpha := math.Sqrt(2 / float64(n))
		if k == 0 {
			alpha = math.Sqrt(1 / float64(n))
		}
		for i := 0; i < n; i++ {
			basis.Set(k, i, alpha*math.Cos(math.Pi*float64(2*i+1)*float64(k)/float64(2*n)))
		}
	}
	return &DCTEmbedder{basis: basis, band: lowFrequencyBand}
}

// Dimension is band*band minus the DC term
func (e *DCTEmbedder) Dimension() int {
	return e.band*e.band - 1
}

// Embed rescales the block to 32x32, removes its mean and returns the
// low-frequency coefficients in row-major order, DC excluded.
func (e *DCTEmbedder) Embed(block *image.Gray) ([]float64, error) {
	n := canonicalBlockSize
	canonical := block
	if block.Rect.Dx() != n || block.Rect.Dy() != n {
		canonical = image.NewGray(image.Rect(0, 0, n, n))
		draw.CatmullRom.Scale(canonical, canonical.Rect, block, block.Rect, draw.Src, nil)
	}

	origin := canonical.Rect.Min
	values := make([]float64, n*n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			values[y*n+x] = float64(canonical.Pix[canonical.PixOffset(origin.X+x, origin.Y+y)])
		}
	}
	mean := stat.Mean(values, nil)
	for i := range values {
		values[i] -= mean
	}

	var tmp, coeffs mat.Dense
	tmp.Mul(e.basis, mat.NewDense(n, n, values))
	coeffs.Mul(&tmp, e.basis.T())

	out := make([]float64, 0, e.Dimension())
	for u := 0; u < e.band; u++ {
		for v := 0; v < e.band; v++ {
			if u == 0 && v == 0 {
				continue
			}
			out = append(out, coeffs.At(u, v))
		}
	}
	return out, nil
}
