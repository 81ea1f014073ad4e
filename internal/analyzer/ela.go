package analyzer

import (
	"bytes"
	"context"
	"image"

	"github.com/disintegration/imaging"

	apperrors "go-image-forensics/internal/errors"
)

type elaOutput struct {
	Path          string
	SplicingPath  string
	MaxDifference int
}

// errorLevel re-encodes img as JPEG at quality and returns the contrast
// stretched absolute difference together with the largest raw difference.
func errorLevel(img *image.NRGBA, quality int) (*image.NRGBA, int, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, 0, apperrors.NewAnalysisError("JPEG re-encode failed", err)
	}

	decoded, err := imaging.Decode(&buf)
	if err != nil {
		return nil, 0, apperrors.NewAnalysisError("JPEG re-decode failed", err)
	}
	resaved := imaging.Clone(decoded)

	diff := image.NewNRGBA(img.Rect)
	maxDiff := 0
	for i := 0; i < len(img.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			d := int(img.Pix[i+c]) - int(resaved.Pix[i+c])
			if d < 0 {
				d = -d
			}
			diff.Pix[i+c] = uint8(d)
			if d > maxDiff {
				maxDiff = d
			}
		}
		diff.Pix[i+3] = 0xff
	}

	scale := 1.0
	if maxDiff != 0 {
		scale = 255.0 / float64(maxDiff)
	}
	for i := 0; i < len(diff.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := float64(diff.Pix[i+c])*scale + 0.5
			if v > 255 {
				v = 255
			}
			diff.Pix[i+c] = uint8(v)
		}
	}

	return diff, maxDiff, nil
}

// runELA computes the error-level map and persists it both as the ELA
// artifact and as the splicing artifact.
func runELA(ctx context.Context, sink ArtifactSink, namer artifactNamer, dec *Decoded, quality int) (elaOutput, error) {
	elaMap, maxDiff, err := errorLevel(dec.RGB, quality)
	if err != nil {
		return elaOutput{}, err
	}

	data, err := encodePNG(elaMap)
	if err != nil {
		return elaOutput{}, err
	}

	path, err := sink.Put(ctx, DirELA, namer.name("ela"), data)
	if err != nil {
		return elaOutput{}, err
	}
	splicing, err := sink.Put(ctx, DirELA, namer.name("splicing_ela"), data)
	if err != nil {
		return elaOutput{Path: path, MaxDifference: maxDiff}, err
	}

	return elaOutput{Path: path, SplicingPath: splicing, MaxDifference: maxDiff}, nil
}

// encodePNG serializes an artifact image
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, apperrors.NewAnalysisError("PNG encode failed", err)
	}
	return buf.Bytes(), nil
}
