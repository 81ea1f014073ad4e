package analyzer

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	apperrors "go-image-forensics/internal/errors"
	"go-image-forensics/internal/logger"
)

var (
	sourceColor = color.NRGBA{G: 255, A: 255}
	targetColor = color.NRGBA{R: 255, A: 255}
)

type copyMoveOutput struct {
	MapPath        string
	MatchesFound   int
	BlocksCompared int
	SkippedBlocks  int
}

// blockPair is a matching pair of tile indices with i < j
type blockPair struct {
	i, j int
}

type copyMoveDetector struct {
	extractor FeatureExtractor
	pool      *WorkerPool
	opts      AnalysisOptions
}

const (
	keypointRadius    = 4 // non-maximum suppression radius
	keypointsPerBlock = 2
)

// keypoint is a local extremum of the band-pass luminance. Copied content
// carries its keypoints along, so windows anchored on them line up with
// the copy wherever it was pasted relative to the tiling grid.
type keypoint struct {
	pt       image.Point
	strength float64
}

// anchoredVector is the unit descriptor of one window of a block
type anchoredVector struct {
	origin image.Point
	vec    []float64
}

// tileOrigins enumerates the top-left corners of every full block in
// row-major order.
func tileOrigins(w, h, block, stride int) []image.Point {
	var origins []image.Point
	for y := 0; y+block <= h; y += stride {
		for x := 0; x+block <= w; x += stride {
			origins = append(origins, image.Pt(x, y))
		}
	}
	return origins
}

// unitVector scales v to length 1, or returns nil for a zero vector
func unitVector(v []float64) []float64 {
	n := floats.Norm(v, 2)
	if n == 0 {
		return nil
	}
	out := make([]float64, len(v))
	floats.ScaleTo(out, 1/n, v)
	return out
}

func blocksOverlap(a, b image.Point, size int) bool {
	return abs(a.X-b.X) < size && abs(a.Y-b.Y) < size
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// blockStdDev is the population standard deviation of the luminance block
func blockStdDev(gray *image.Gray, r image.Rectangle) float64 {
	values := make([]float64, 0, r.Dx()*r.Dy())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			values = append(values, float64(gray.Pix[gray.PixOffset(x, y)]))
		}
	}
	return stat.PopStdDev(values, nil)
}

// bandPass is the difference of a fine and a coarse double box blur
func bandPass(gray *image.Gray) []float64 {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	values := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			values[y*w+x] = float64(gray.Pix[y*gray.Stride+x])
		}
	}
	fine := boxFilter(boxFilter(values, w, h, 3), w, h, 3)
	coarse := boxFilter(boxFilter(values, w, h, 9), w, h, 9)
	floats.Sub(fine, coarse)
	return fine
}

// findKeypoints returns the strict local extrema of the band-pass field
// within a (2r+1)x(2r+1) neighbourhood.
func findKeypoints(gray *image.Gray) []keypoint {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	field := bandPass(gray)
	r := keypointRadius

	var kps []keypoint
	for y := r; y < h-r; y++ {
		for x := r; x < w-r; x++ {
			v := field[y*w+x]
			if v == 0 {
				continue
			}
			isMax, isMin := true, true
			for dy := -r; dy <= r && (isMax || isMin); dy++ {
				for dx := -r; dx <= r; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					q := field[(y+dy)*w+x+dx]
					if q >= v {
						isMax = false
					}
					if q <= v {
						isMin = false
					}
				}
			}
			if isMax || isMin {
				kps = append(kps, keypoint{pt: image.Pt(x, y), strength: math.Abs(v)})
			}
		}
	}
	return kps
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && a < 0 {
		q--
	}
	return q
}

// keypointsByBlock assigns every keypoint to the block whose central cell
// holds it and keeps the strongest few per block. With a stride below the
// block size the central cells tile the image, so each keypoint lands in
// exactly one block.
func (d *copyMoveDetector) keypointsByBlock(kps []keypoint) map[image.Point][]keypoint {
	size, stride := d.opts.BlockSize, d.opts.Stride
	lo, cell := 0, size
	if stride < size {
		lo, cell = (size-stride)/2, stride
	}

	buckets := make(map[image.Point][]keypoint)
	for _, k := range kps {
		ix, iy := floorDiv(k.pt.X-lo, stride), floorDiv(k.pt.Y-lo, stride)
		if ix < 0 || iy < 0 || k.pt.X-lo-ix*stride >= cell || k.pt.Y-lo-iy*stride >= cell {
			continue
		}
		key := image.Pt(ix*stride, iy*stride)
		buckets[key] = append(buckets[key], k)
	}

	for key, bucket := range buckets {
		sort.Slice(bucket, func(a, b int) bool {
			if bucket[a].strength != bucket[b].strength {
				return bucket[a].strength > bucket[b].strength
			}
			if bucket[a].pt.Y != bucket[b].pt.Y {
				return bucket[a].pt.Y < bucket[b].pt.Y
			}
			return bucket[a].pt.X < bucket[b].pt.X
		})
		if len(bucket) > keypointsPerBlock {
			buckets[key] = bucket[:keypointsPerBlock]
		}
	}
	return buckets
}

// embedBlocks describes every tile by its own window plus windows centred on
// its strongest keypoints. Tiles too flat to compare get nil.
func (d *copyMoveDetector) embedBlocks(ctx context.Context, gray *image.Gray, origins []image.Point) ([][]anchoredVector, error) {
	size := d.opts.BlockSize
	bounds := image.Rect(0, 0, gray.Rect.Dx(), gray.Rect.Dy())
	anchors := d.keypointsByBlock(findKeypoints(gray))

	descs := make([][]anchoredVector, len(origins))
	errs := make([]error, len(origins))

	err := d.pool.RunBatch(ctx, len(origins), func(i int) {
		o := origins[i]
		block := image.Rect(o.X, o.Y, o.X+size, o.Y+size)
		if blockStdDev(gray, block) < d.opts.MinBlockStdDev {
			return
		}

		windows := []image.Point{o}
		for _, k := range anchors[o] {
			origin := k.pt.Sub(image.Pt(size/2, size/2))
			if image.Rect(origin.X, origin.Y, origin.X+size, origin.Y+size).In(bounds) {
				windows = append(windows, origin)
			}
		}

		out := make([]anchoredVector, 0, len(windows))
		for _, w := range windows {
			vec, err := d.extractor.Embed(gray.SubImage(image.Rect(w.X, w.Y, w.X+size, w.Y+size)).(*image.Gray))
			if err != nil {
				errs[i] = err
				return
			}
			if unit := unitVector(vec); unit != nil {
				out = append(out, anchoredVector{origin: w, vec: unit})
			}
		}
		descs[i] = out
	})
	if err != nil {
		return nil, err
	}
	for _, e := range errs {
		if e != nil {
			return nil, e
		}
	}
	return descs, nil
}

// windowsMatch reports whether any two non-overlapping windows of the blocks
// are similar. Overlapping windows share pixels and never count as a copy.
func (d *copyMoveDetector) windowsMatch(a, b []anchoredVector) bool {
	for _, wa := range a {
		for _, wb := range b {
			if blocksOverlap(wa.origin, wb.origin, d.opts.BlockSize) {
				continue
			}
			if floats.Dot(wa.vec, wb.vec) > d.opts.SimilarityThreshold {
				return true
			}
		}
	}
	return false
}

// matchPairs compares every pair i<j of embedded tiles. Work is split by i
// across the pool so each row writes only its own slot.
func (d *copyMoveDetector) matchPairs(ctx context.Context, origins []image.Point, descs [][]anchoredVector) ([]blockPair, error) {
	rows := make([][]blockPair, len(descs))

	err := d.pool.RunBatch(ctx, len(descs), func(i int) {
		if descs[i] == nil || ctx.Err() != nil {
			return
		}
		for j := i + 1; j < len(descs); j++ {
			if descs[j] == nil {
				continue
			}
			if d.opts.SkipOverlapping && blocksOverlap(origins[i], origins[j], d.opts.BlockSize) {
				continue
			}
			if d.windowsMatch(descs[i], descs[j]) {
				rows[i] = append(rows[i], blockPair{i: i, j: j})
			}
		}
	})
	if err != nil {
		return nil, err
	}

	var pairs []blockPair
	for _, row := range rows {
		pairs = append(pairs, row...)
	}
	return pairs, nil
}

// drawRect outlines r with a stroke of the given thickness, clipped to img
func drawRect(img *image.NRGBA, r image.Rectangle, thickness int, c color.NRGBA) {
	b := img.Rect
	for t := 0; t < thickness; t++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			setClipped(img, b, x, r.Min.Y+t, c)
			setClipped(img, b, x, r.Max.Y-1-t, c)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			setClipped(img, b, r.Min.X+t, y, c)
			setClipped(img, b, r.Max.X-1-t, y, c)
		}
	}
}

func setClipped(img *image.NRGBA, b image.Rectangle, x, y int, c color.NRGBA) {
	if image.Pt(x, y).In(b) {
		img.SetNRGBA(x, y, c)
	}
}

func (d *copyMoveDetector) run(ctx context.Context, sink ArtifactSink, namer artifactNamer, dec *Decoded) (copyMoveOutput, error) {
	if d.extractor == nil {
		return copyMoveOutput{}, apperrors.NewAnalysisError("embedding model unavailable", nil)
	}

	origins := tileOrigins(dec.Width(), dec.Height(), d.opts.BlockSize, d.opts.Stride)

	descs, err := d.embedBlocks(ctx, dec.Gray, origins)
	if err != nil {
		return copyMoveOutput{}, wrapCopyMoveErr(err)
	}

	var out copyMoveOutput
	for _, v := range descs {
		if v == nil {
			out.SkippedBlocks++
		} else {
			out.BlocksCompared++
		}
	}

	pairs, err := d.matchPairs(ctx, origins, descs)
	if err != nil {
		return out, wrapCopyMoveErr(err)
	}
	out.MatchesFound = len(pairs)

	logger.WithFields(logrus.Fields{
		"blocks":  len(origins),
		"skipped": out.SkippedBlocks,
		"matches": out.MatchesFound,
	}).Debug("Copy-move comparison finished")

	annotated := image.NewNRGBA(dec.RGB.Rect)
	copy(annotated.Pix, dec.RGB.Pix)
	size := d.opts.BlockSize
	for _, p := range pairs {
		a, b := origins[p.i], origins[p.j]
		drawRect(annotated, image.Rect(a.X, a.Y, a.X+size, a.Y+size), 2, sourceColor)
		drawRect(annotated, image.Rect(b.X, b.Y, b.X+size, b.Y+size), 2, targetColor)
	}

	data, err := encodePNG(annotated)
	if err != nil {
		return out, err
	}
	path, err := sink.Put(ctx, DirCopyMove, namer.name("copymove"), data)
	if err != nil {
		return out, err
	}
	out.MapPath = path
	return out, nil
}

func wrapCopyMoveErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.NewAnalysisError("copy-move detection aborted", err)
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.NewAnalysisError("copy-move embedding failed", err)
}
