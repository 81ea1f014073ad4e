package analyzer

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"

	"github.com/corona10/goimagehash"

	apperrors "go-image-forensics/internal/errors"
	"go-image-forensics/pkg/models"
)

// contentDigests are the cryptographic digests of the raw upload
type contentDigests struct {
	MD5    string
	SHA1   string
	SHA256 string
}

func computeDigests(data []byte) contentDigests {
	m := md5.Sum(data)
	s1 := sha1.Sum(data)
	s256 := sha256.Sum256(data)
	return contentDigests{
		MD5:    hex.EncodeToString(m[:]),
		SHA1:   hex.EncodeToString(s1[:]),
		SHA256: hex.EncodeToString(s256[:]),
	}
}

// perceptualHash returns the 64-bit DCT perceptual hash as 16 hex digits
func perceptualHash(img image.Image) (string, error) {
	h, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return "", apperrors.NewAnalysisError("perceptual hash failed", err)
	}
	return fmt.Sprintf("%016x", h.GetHash()), nil
}

// PerceptualDistance is the Hamming distance between two hex hashes as
// produced in the hashes section of a report.
func PerceptualDistance(a, b string) (int, error) {
	var ha, hb uint64
	if _, err := fmt.Sscanf(a, "%x", &ha); err != nil {
		return 0, apperrors.NewValidationError("invalid perceptual hash", err)
	}
	if _, err := fmt.Sscanf(b, "%x", &hb); err != nil {
		return 0, apperrors.NewValidationError("invalid perceptual hash", err)
	}
	return goimagehash.NewImageHash(ha, goimagehash.PHash).Distance(goimagehash.NewImageHash(hb, goimagehash.PHash))
}

// buildHashes fills the hashes section. A perceptual hash failure leaves the
// cryptographic digests intact.
func buildHashes(digests contentDigests, dec *Decoded) models.Hashes {
	out := models.Hashes{MD5: digests.MD5, SHA256: digests.SHA256}
	phash, err := perceptualHash(dec.RGB)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Perceptual = phash
	return out
}
