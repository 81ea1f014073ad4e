package analyzer

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/floats"
)

func newTestDetector(t *testing.T, opts AnalysisOptions, extractor FeatureExtractor) *copyMoveDetector {
	t.Helper()
	pool := NewWorkerPool(4)
	pool.Start()
	t.Cleanup(pool.Close)
	return &copyMoveDetector{extractor: extractor, pool: pool, opts: opts}
}

func decodedFromGray(gray *image.Gray) *Decoded {
	rgb := image.NewNRGBA(gray.Rect)
	for i, v := range gray.Pix {
		rgb.Pix[i*4] = v
		rgb.Pix[i*4+1] = v
		rgb.Pix[i*4+2] = v
		rgb.Pix[i*4+3] = 255
	}
	return &Decoded{RGB: rgb, Gray: gray}
}

type failingExtractor struct{}

func (failingExtractor) Embed(*image.Gray) ([]float64, error) { return nil, errors.New("model crashed") }
func (failingExtractor) Dimension() int                      { return 0 }

func TestTileOrigins(t *testing.T) {
	origins := tileOrigins(64, 48, 32, 16)
	// x in {0,16,32}, y in {0,16}
	if len(origins) != 6 {
		t.Fatalf("Expected 6 tiles, got %d", len(origins))
	}
	if origins[0] != image.Pt(0, 0) || origins[1] != image.Pt(16, 0) || origins[3] != image.Pt(0, 16) {
		t.Errorf("Expected row-major order, got %v", origins)
	}

	if n := len(tileOrigins(20, 20, 32, 16)); n != 0 {
		t.Errorf("Expected no tiles for an image smaller than a block, got %d", n)
	}
}

func TestUnitVector(t *testing.T) {
	u := unitVector([]float64{3, 4})
	if !floats.EqualApprox(u, []float64{0.6, 0.8}, 1e-12) {
		t.Errorf("Expected [0.6 0.8], got %v", u)
	}
	if unitVector([]float64{0, 0}) != nil {
		t.Error("Expected nil for a zero vector")
	}
}

// pasteGray copies the size x size square at src onto dst within gray
func pasteGray(gray *image.Gray, src, dst image.Point, size int) {
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			gray.Pix[(dst.Y+y)*gray.Stride+dst.X+x] = gray.Pix[(src.Y+y)*gray.Stride+src.X+x]
		}
	}
}

func isColor(img image.Image, x, y int, want color.NRGBA) bool {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA) == want
}

func TestCopyMove_DetectsDuplicatedBlock(t *testing.T) {
	gray := grayFromNoise(128, 128, 11)
	// copy the aligned block at (0,0) onto (64,64)
	pasteGray(gray, image.Pt(0, 0), image.Pt(64, 64), 32)
	det := newTestDetector(t, DefaultOptions(), NewDCTEmbedder())
	sink := newMemorySink()

	out, err := det.run(context.Background(), sink, newArtifactNamer("cm.png", "cccccccccccccccc"), decodedFromGray(gray))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out.MatchesFound < 1 {
		t.Errorf("Expected at least one match, got %d", out.MatchesFound)
	}
	if out.MapPath != "copy_move_maps/cccccccccccc_cm_copymove.png" {
		t.Errorf("Unexpected map path %s", out.MapPath)
	}
	data, ok := sink.get(out.MapPath)
	if !ok {
		t.Fatal("Copy-move artifact not written")
	}

	annotated, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("artifact is not a PNG: %v", err)
	}
	if !isColor(annotated, 0, 0, sourceColor) || !isColor(annotated, 31, 31, sourceColor) {
		t.Error("Expected the source block outlined in green")
	}
	if !isColor(annotated, 64, 64, targetColor) || !isColor(annotated, 95, 95, targetColor) {
		t.Error("Expected the pasted block outlined in red")
	}
	if c := color.NRGBAModel.Convert(annotated.At(40, 10)).(color.NRGBA); c.R != c.G || c.G != c.B {
		t.Errorf("Expected untouched gray pixels away from the match, got %v", c)
	}
}

func TestCopyMove_DetectsOffGridPaste(t *testing.T) {
	gray := grayFromNoise(192, 192, 13)
	// 117 is 5 px past the 16 px tiling grid on both axes
	pasteGray(gray, image.Pt(16, 16), image.Pt(117, 117), 64)
	det := newTestDetector(t, DefaultOptions(), NewDCTEmbedder())

	out, err := det.run(context.Background(), newMemorySink(), newArtifactNamer("off.png", ""), decodedFromGray(gray))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out.MatchesFound < 1 {
		t.Errorf("Expected the off-grid copy to be found, got %d matches", out.MatchesFound)
	}
}

func TestCopyMove_DetectsOffGridPasteOnSmoothTexture(t *testing.T) {
	blurred := imaging.Blur(noiseImage(192, 192, 14), 3)
	gray := image.NewGray(blurred.Rect)
	for i := range gray.Pix {
		gray.Pix[i] = blurred.Pix[i*4]
	}
	pasteGray(gray, image.Pt(16, 16), image.Pt(118, 115), 56)
	det := newTestDetector(t, DefaultOptions(), NewDCTEmbedder())

	out, err := det.run(context.Background(), newMemorySink(), newArtifactNamer("smooth.png", ""), decodedFromGray(gray))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out.MatchesFound < 1 {
		t.Errorf("Expected the off-grid copy to be found, got %d matches", out.MatchesFound)
	}
}

func TestFindKeypoints_FollowCopiedContent(t *testing.T) {
	gray := grayFromNoise(192, 192, 15)
	offset := image.Pt(101, 101)
	pasteGray(gray, image.Pt(16, 16), image.Pt(16, 16).Add(offset), 64)

	kps := findKeypoints(gray)
	at := make(map[image.Point]float64, len(kps))
	for _, k := range kps {
		at[k.pt] = k.strength
	}

	// keypoints whose support lies entirely inside the copied square
	inner := image.Rect(28, 28, 68, 68)
	found := 0
	for _, k := range kps {
		if !k.pt.In(inner) {
			continue
		}
		found++
		if s, ok := at[k.pt.Add(offset)]; !ok || s != k.strength {
			t.Errorf("Keypoint %v has no counterpart at %v", k.pt, k.pt.Add(offset))
		}
	}
	if found == 0 {
		t.Fatal("Expected keypoints inside the copied square")
	}
}

func TestFindKeypoints_FlatImage(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 48, 48))
	for i := range gray.Pix {
		gray.Pix[i] = 90
	}
	if kps := findKeypoints(gray); len(kps) != 0 {
		t.Errorf("Expected no keypoints on a flat image, got %d", len(kps))
	}
}

func TestKeypointsByBlock(t *testing.T) {
	det := newTestDetector(t, DefaultOptions(), NewDCTEmbedder())
	kps := []keypoint{
		{pt: image.Pt(8, 8), strength: 1},
		{pt: image.Pt(20, 12), strength: 3},
		{pt: image.Pt(23, 23), strength: 2},
		{pt: image.Pt(24, 8), strength: 5},
		{pt: image.Pt(5, 5), strength: 9},
	}

	buckets := det.keypointsByBlock(kps)

	first := buckets[image.Pt(0, 0)]
	if len(first) != 2 || first[0].pt != image.Pt(20, 12) || first[1].pt != image.Pt(23, 23) {
		t.Errorf("Expected the two strongest central keypoints of block (0,0), got %v", first)
	}
	if second := buckets[image.Pt(16, 0)]; len(second) != 1 || second[0].pt != image.Pt(24, 8) {
		t.Errorf("Expected (24,8) in block (16,0), got %v", second)
	}
	for key, bucket := range buckets {
		for _, k := range bucket {
			if k.pt == image.Pt(5, 5) {
				t.Errorf("Keypoint outside every central cell assigned to %v", key)
			}
		}
	}
}

func TestWindowsMatch_IgnoresOverlappingWindows(t *testing.T) {
	det := newTestDetector(t, DefaultOptions(), NewDCTEmbedder())
	vec := unitVector([]float64{1, 2, 3})

	a := []anchoredVector{{origin: image.Pt(0, 0), vec: vec}}
	near := []anchoredVector{{origin: image.Pt(20, 5), vec: vec}}
	far := []anchoredVector{{origin: image.Pt(40, 0), vec: vec}}

	if det.windowsMatch(a, near) {
		t.Error("Overlapping windows must not match")
	}
	if !det.windowsMatch(a, far) {
		t.Error("Expected identical disjoint windows to match")
	}
}

func TestCopyMove_RandomNoiseHasNoMatches(t *testing.T) {
	det := newTestDetector(t, DefaultOptions(), NewDCTEmbedder())

	out, err := det.run(context.Background(), newMemorySink(), newArtifactNamer("r.png", ""), decodedFromGray(grayFromNoise(128, 128, 12)))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out.MatchesFound != 0 {
		t.Errorf("Expected no matches in independent noise, got %d", out.MatchesFound)
	}
	if out.BlocksCompared != 49 {
		t.Errorf("Expected 49 compared blocks, got %d", out.BlocksCompared)
	}
}

func TestCopyMove_UniformImageSkipsEveryBlock(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 100, 100))
	for i := range gray.Pix {
		gray.Pix[i] = 128
	}
	det := newTestDetector(t, DefaultOptions(), NewDCTEmbedder())

	out, err := det.run(context.Background(), newMemorySink(), newArtifactNamer("u.png", ""), decodedFromGray(gray))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out.MatchesFound != 0 {
		t.Errorf("Expected 0 matches, got %d", out.MatchesFound)
	}
	if out.SkippedBlocks != 25 || out.BlocksCompared != 0 {
		t.Errorf("Expected 25 skipped / 0 compared, got %d / %d", out.SkippedBlocks, out.BlocksCompared)
	}
}

func TestCopyMove_NilExtractor(t *testing.T) {
	det := newTestDetector(t, DefaultOptions(), nil)

	_, err := det.run(context.Background(), newMemorySink(), newArtifactNamer("n.png", ""), decodedFromGray(grayFromNoise(64, 64, 1)))
	if err == nil || !strings.Contains(err.Error(), "embedding model unavailable") {
		t.Errorf("Expected unavailable model error, got %v", err)
	}
}

func TestCopyMove_ExtractorFailure(t *testing.T) {
	det := newTestDetector(t, DefaultOptions(), failingExtractor{})

	_, err := det.run(context.Background(), newMemorySink(), newArtifactNamer("f.png", ""), decodedFromGray(grayFromNoise(64, 64, 1)))
	if err == nil || !strings.Contains(err.Error(), "model crashed") {
		t.Errorf("Expected extractor error, got %v", err)
	}
}

func TestCopyMove_CancelledContext(t *testing.T) {
	det := newTestDetector(t, DefaultOptions(), NewDCTEmbedder())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := det.run(ctx, newMemorySink(), newArtifactNamer("c.png", ""), decodedFromGray(grayFromNoise(64, 64, 1)))
	if err == nil || !strings.Contains(err.Error(), "aborted") {
		t.Errorf("Expected aborted error, got %v", err)
	}
}

func TestBlocksOverlap(t *testing.T) {
	if !blocksOverlap(image.Pt(0, 0), image.Pt(16, 16), 32) {
		t.Error("Expected overlap for half-stride neighbours")
	}
	if blocksOverlap(image.Pt(0, 0), image.Pt(32, 0), 32) {
		t.Error("Expected no overlap for adjacent blocks")
	}
}
