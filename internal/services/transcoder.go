package services

import (
	"bytes"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
)

const (
	maxImageWidth  = 800
	maxImageHeight = 800
	jpegQuality    = 80
)

// ImageTranscoder resizes raw images to fit within a bounding box and
// recompresses them as JPEG. Images already within bounds are not upscaled.
type ImageTranscoder struct {
	maxWidth  int
	maxHeight int
	quality   int
}

func NewImageTranscoder() *ImageTranscoder {
	return &ImageTranscoder{
		maxWidth:  maxImageWidth,
		maxHeight: maxImageHeight,
		quality:   jpegQuality,
	}
}

func (t *ImageTranscoder) Transcode(r io.Reader) ([]byte, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > t.maxWidth || bounds.Dy() > t.maxHeight {
		img = imaging.Fit(img, t.maxWidth, t.maxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(t.quality)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
