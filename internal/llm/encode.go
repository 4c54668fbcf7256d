package llm

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

const jpegQuality = 90

// EncodeImage prepares an image for a vision request: downscale so neither
// dimension exceeds maxDim, then encode as JPEG. Returns the encoded bytes
// and the encoded dimensions.
func EncodeImage(img image.Image, maxDim int) ([]byte, int, int, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim > 0 && (w > maxDim || h > maxDim) {
		if w >= h {
			img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
		} else {
			img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
		}
		b = img.Bounds()
		w, h = b.Dx(), b.Dy()
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, 0, 0, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), w, h, nil
}

// LoadImage reads and decodes an image file, honoring EXIF orientation.
func LoadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}
	return img, nil
}
