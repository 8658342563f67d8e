package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// thumbnailMaxDim is the longest edge of generated upload thumbnails.
const thumbnailMaxDim = 320

// thumbnailJPEG decodes an image blob and scales it down so its longest edge
// is at most maxDim, re-encoding as JPEG. Images already small enough are
// re-encoded without scaling.
func thumbnailJPEG(blob []byte, maxDim int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("could not decode image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxDim || h > maxDim {
		if w >= h {
			h = h * maxDim / w
			w = maxDim
		} else {
			w = w * maxDim / h
			h = maxDim
		}
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
		src = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("could not encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
