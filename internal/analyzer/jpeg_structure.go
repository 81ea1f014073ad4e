package analyzer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"strings"

	apperrors "go-image-forensics/internal/errors"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

var exifPrefix = []byte("Exif\x00\x00")

// zigzag maps the k-th coefficient of a DQT table to its natural index
var zigzag = [64]int{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}

var markerNames = map[byte]string{
	0xC0: "SOF0", 0xC1: "SOF1", 0xC2: "SOF2", 0xC3: "SOF3",
	0xC4: "DHT", 0xCC: "DAC", 0xD8: "SOI", 0xD9: "EOI",
	0xDA: "SOS", 0xDB: "DQT", 0xDD: "DRI", 0xFE: "COM",
}

var compressionModes = map[byte]string{
	0xC0: "Baseline DCT, Huffman coding",
	0xC1: "Extended sequential DCT, Huffman coding",
	0xC2: "Progressive DCT, Huffman coding",
	0xC3: "Lossless, Huffman coding",
}

type jpegSegment struct {
	marker byte
	data   []byte
}

func markerName(m byte) string {
	if name, ok := markerNames[m]; ok {
		return name
	}
	if m >= 0xE0 && m <= 0xEF {
		return fmt.Sprintf("APP%d", m-0xE0)
	}
	return fmt.Sprintf("0x%02X", m)
}

// readJPEGSegments walks the header segments up to and including SOS
func readJPEGSegments(data []byte) ([]jpegSegment, error) {
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil, fmt.Errorf("not a JPEG")
	}
	segs := []jpegSegment{{marker: 0xD8}}

	i := 2
	for i < len(data) {
		if data[i] != 0xFF {
			return segs, fmt.Errorf("expected marker at offset %d", i)
		}
		// fill bytes
		for i < len(data) && data[i] == 0xFF {
			i++
		}
		if i >= len(data) {
			break
		}
		marker := data[i]
		i++

		if marker == 0xD9 || (marker >= 0xD0 && marker <= 0xD7) || marker == 0x01 {
			segs = append(segs, jpegSegment{marker: marker})
			if marker == 0xD9 {
				break
			}
			continue
		}

		if i+2 > len(data) {
			return segs, fmt.Errorf("truncated segment length for %s", markerName(marker))
		}
		segLen := int(binary.BigEndian.Uint16(data[i:i+2])) - 2
		i += 2
		if segLen < 0 || i+segLen > len(data) {
			return segs, fmt.Errorf("truncated %s segment", markerName(marker))
		}
		segs = append(segs, jpegSegment{marker: marker, data: data[i : i+segLen]})
		i += segLen

		if marker == 0xDA {
			break
		}
	}
	return segs, nil
}

// chunk is one PNG or RIFF chunk
type chunk struct {
	typ  string
	data []byte
}

func readPNGChunks(data []byte) ([]chunk, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, fmt.Errorf("not a PNG")
	}
	var chunks []chunk
	i := len(pngSignature)
	for i+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[i : i+4]))
		typ := string(data[i+4 : i+8])
		i += 8
		if length < 0 || i+length+4 > len(data) {
			return chunks, fmt.Errorf("truncated %s chunk", typ)
		}
		chunks = append(chunks, chunk{typ: typ, data: data[i : i+length]})
		i += length + 4 // skip CRC
		if typ == "IEND" {
			break
		}
	}
	return chunks, nil
}

// readWebPChunks walks the chunks of a RIFF/WEBP container. Chunk bodies
// are padded to an even length.
func readWebPChunks(data []byte) ([]chunk, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		return nil, fmt.Errorf("not a WebP")
	}
	var chunks []chunk
	i := 12
	for i+8 <= len(data) {
		typ := string(data[i : i+4])
		length := int(binary.LittleEndian.Uint32(data[i+4 : i+8]))
		i += 8
		if length < 0 || i+length > len(data) {
			return chunks, fmt.Errorf("truncated %s chunk", typ)
		}
		chunks = append(chunks, chunk{typ: typ, data: data[i : i+length]})
		i += length + length%2
	}
	return chunks, nil
}

// hasEmbeddedExif reports whether the container carries an EXIF block at all
func hasEmbeddedExif(data []byte) bool {
	switch {
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return true
	case bytes.HasPrefix(data, pngSignature):
		chunks, _ := readPNGChunks(data)
		for _, c := range chunks {
			if c.typ == "eXIf" {
				return true
			}
		}
		return false
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		chunks, _ := readWebPChunks(data)
		for _, c := range chunks {
			if c.typ == "EXIF" {
				return true
			}
		}
		return false
	default:
		segs, _ := readJPEGSegments(data)
		for _, s := range segs {
			if s.marker == 0xE1 && bytes.HasPrefix(s.data, exifPrefix) {
				return true
			}
		}
		return false
	}
}

// containerStructure describes how the file is laid out on disk
func containerStructure(data []byte) (map[string]string, error) {
	switch {
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8:
		return jpegStructure(data)
	case bytes.HasPrefix(data, pngSignature):
		return pngStructure(data)
	default:
		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, apperrors.NewAnalysisError("could not parse container", err)
		}
		return map[string]string{
			"MIME Type":    "image/" + format,
			"Image Width":  fmt.Sprintf("%d pixels", cfg.Width),
			"Image Height": fmt.Sprintf("%d pixels", cfg.Height),
		}, nil
	}
}

func jpegStructure(data []byte) (map[string]string, error) {
	segs, err := readJPEGSegments(data)
	if err != nil && len(segs) <= 1 {
		return nil, apperrors.NewAnalysisError("could not parse JPEG segments", err)
	}

	out := map[string]string{
		"MIME Type":    "image/jpeg",
		"EXIF":         "absent",
		"ICC Profile":  "absent",
		"Adobe Marker": "absent",
	}
	names := make([]string, 0, len(segs))
	var comments []string

	for _, s := range segs {
		names = append(names, markerName(s.marker))
		switch {
		case s.marker >= 0xC0 && s.marker <= 0xCF && s.marker != 0xC4 && s.marker != 0xC8 && s.marker != 0xCC:
			if len(s.data) >= 6 {
				precision := int(s.data[0])
				height := binary.BigEndian.Uint16(s.data[1:3])
				width := binary.BigEndian.Uint16(s.data[3:5])
				components := int(s.data[5])
				out["Image Width"] = fmt.Sprintf("%d pixels", width)
				out["Image Height"] = fmt.Sprintf("%d pixels", height)
				out["Bits/Pixel"] = fmt.Sprintf("%d", precision*components)
				out["Pixel Format"] = pixelFormat(components)
				if mode, ok := compressionModes[s.marker]; ok {
					out["Compression"] = mode
				} else {
					out["Compression"] = markerName(s.marker)
				}
			}
		case s.marker == 0xE0 && bytes.HasPrefix(s.data, []byte("JFIF\x00")) && len(s.data) >= 7:
			out["JFIF Version"] = fmt.Sprintf("%d.%02d", s.data[5], s.data[6])
		case s.marker == 0xE1 && bytes.HasPrefix(s.data, exifPrefix):
			out["EXIF"] = "present"
		case s.marker == 0xE2 && bytes.HasPrefix(s.data, []byte("ICC_PROFILE\x00")):
			out["ICC Profile"] = "present"
		case s.marker == 0xEE && bytes.HasPrefix(s.data, []byte("Adobe")):
			out["Adobe Marker"] = "present"
		case s.marker == 0xFE:
			comments = append(comments, strings.TrimRight(string(s.data), "\x00"))
		}
	}

	out["Segments"] = strings.Join(names, ", ")
	if len(comments) > 0 {
		out["Comment"] = strings.Join(comments, "; ")
	}
	if err != nil {
		out["Warning"] = err.Error()
	}
	return out, nil
}

func pixelFormat(components int) string {
	switch components {
	case 1:
		return "Grayscale"
	case 3:
		return "YCbCr"
	case 4:
		return "CMYK"
	default:
		return fmt.Sprintf("%d components", components)
	}
}

var pngColorTypes = map[byte]string{
	0: "Grayscale",
	2: "RGB",
	3: "Palette",
	4: "Grayscale with alpha",
	6: "RGBA",
}

func pngStructure(data []byte) (map[string]string, error) {
	chunks, err := readPNGChunks(data)
	if len(chunks) == 0 || chunks[0].typ != "IHDR" || len(chunks[0].data) < 13 {
		return nil, apperrors.NewAnalysisError("missing PNG header", err)
	}

	ihdr := chunks[0].data
	out := map[string]string{
		"MIME Type":    "image/png",
		"Image Width":  fmt.Sprintf("%d pixels", binary.BigEndian.Uint32(ihdr[0:4])),
		"Image Height": fmt.Sprintf("%d pixels", binary.BigEndian.Uint32(ihdr[4:8])),
		"Bit Depth":    fmt.Sprintf("%d", ihdr[8]),
		"Compression":  "Deflate",
		"Interlace":    "None",
	}
	if name, ok := pngColorTypes[ihdr[9]]; ok {
		out["Pixel Format"] = name
	} else {
		out["Pixel Format"] = fmt.Sprintf("color type %d", ihdr[9])
	}
	if ihdr[12] == 1 {
		out["Interlace"] = "Adam7"
	}

	names := make([]string, 0, len(chunks))
	for _, c := range chunks {
		names = append(names, c.typ)
		if c.typ == "tEXt" {
			if k, v, ok := bytes.Cut(c.data, []byte{0}); ok {
				out["Text: "+string(k)] = string(v)
			}
		}
		if c.typ == "eXIf" {
			out["EXIF"] = "present"
		}
	}
	out["Chunks"] = strings.Join(names, ", ")
	if err != nil {
		out["Warning"] = err.Error()
	}
	return out, nil
}

// quantizationTables returns every DQT table in natural order keyed by its
// destination id.
func quantizationTables(data []byte) (map[int][]int, error) {
	segs, err := readJPEGSegments(data)
	if err != nil && len(segs) <= 1 {
		return nil, err
	}

	tables := make(map[int][]int)
	for _, s := range segs {
		if s.marker != 0xDB {
			continue
		}
		p := s.data
		for len(p) > 0 {
			precision, id := p[0]>>4, int(p[0]&0x0F)
			p = p[1:]
			size := 64
			if precision == 1 {
				size = 128
			}
			if len(p) < size {
				return tables, fmt.Errorf("truncated quantization table %d", id)
			}
			natural := make([]int, 64)
			for k := 0; k < 64; k++ {
				if precision == 1 {
					natural[zigzag[k]] = int(binary.BigEndian.Uint16(p[2*k : 2*k+2]))
				} else {
					natural[zigzag[k]] = int(p[k])
				}
			}
			tables[id] = natural
			p = p[size:]
		}
	}
	return tables, nil
}

// qualityBucket gives a coarse quality estimate from the luminance table sum
func qualityBucket(luminanceSum int) string {
	switch {
	case luminanceSum < 300:
		return "High (~95-100%)"
	case luminanceSum < 500:
		return "Medium (~75-95%)"
	default:
		return "Low (<75%)"
	}
}

func jpegQualityDetails(data []byte, format string) (map[string]interface{}, error) {
	if format != "jpeg" {
		return map[string]interface{}{"quality_info": "Not a JPEG image"}, nil
	}

	tables, err := quantizationTables(data)
	if err != nil {
		return nil, apperrors.NewAnalysisError("could not read quantization tables", err)
	}

	labelled := make(map[string][][]int, len(tables))
	for id, table := range tables {
		label := "Luminance"
		if id != 0 {
			label = fmt.Sprintf("Chrominance %d", id)
		}
		matrix := make([][]int, 8)
		for r := range matrix {
			matrix[r] = table[r*8 : r*8+8]
		}
		labelled[label] = matrix
	}

	out := map[string]interface{}{
		"quality_estimate":    "Unknown",
		"quantization_tables": labelled,
	}
	if lum, ok := tables[0]; ok {
		sum := 0
		for _, q := range lum {
			sum += q
		}
		out["quality_estimate"] = qualityBucket(sum)
		out["luminance_sum"] = sum
	}
	return out, nil
}
