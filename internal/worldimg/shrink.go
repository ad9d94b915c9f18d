package worldimg

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"

	"golang.org/x/image/draw"
)

// ErrTooLarge is returned when an image cannot be brought under the byte limit.
var ErrTooLarge = errors.New("image exceeds size limit")

const (
	maxShrinkPasses = 4
	shrinkHeadroom  = 0.9
)

// FitPNG returns data unchanged when it already fits in maxBytes (or the limit
// is disabled), otherwise downscales and re-encodes it until it does.
func FitPNG(data []byte, maxBytes int) ([]byte, error) {
	if maxBytes <= 0 || len(data) <= maxBytes {
		return data, nil
	}

	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	size := len(data)

	enc := png.Encoder{CompressionLevel: png.BestCompression}
	for pass := 0; pass < maxShrinkPasses; pass++ {
		scale := math.Sqrt(float64(maxBytes)/float64(size)) * shrinkHeadroom
		if scale >= 1 {
			scale = shrinkHeadroom
		}
		w = int(float64(w) * scale)
		h = int(float64(h) * scale)
		if w < 1 || h < 1 {
			break
		}

		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)

		var buf bytes.Buffer
		if err := enc.Encode(&buf, dst); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		if buf.Len() <= maxBytes {
			return buf.Bytes(), nil
		}
		size = buf.Len()
	}
	return nil, ErrTooLarge
}
