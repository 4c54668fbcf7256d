package geometry

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// grayMat is a dense 8-bit grayscale matrix. All detection steps operate on
// it instead of image.Image to keep the inner loops allocation-free.
type grayMat struct {
	W, H int
	Pix  []uint8
}

func newGrayMat(w, h int) *grayMat {
	return &grayMat{W: w, H: h, Pix: make([]uint8, w*h)}
}

func (m *grayMat) at(x, y int) uint8 {
	return m.Pix[y*m.W+x]
}

func (m *grayMat) set(x, y int, v uint8) {
	m.Pix[y*m.W+x] = v
}

// atClamped reads with edge replication, matching border handling of the
// filters that consume it.
func (m *grayMat) atClamped(x, y int) uint8 {
	if x < 0 {
		x = 0
	} else if x >= m.W {
		x = m.W - 1
	}
	if y < 0 {
		y = 0
	} else if y >= m.H {
		y = m.H - 1
	}
	return m.Pix[y*m.W+x]
}

// grayFromImage converts an image to a grayscale matrix using the same
// luminance weighting imaging.Grayscale applies.
func grayFromImage(img image.Image) *grayMat {
	n := imaging.Grayscale(img)
	b := n.Bounds()
	m := newGrayMat(b.Dx(), b.Dy())
	for y := 0; y < m.H; y++ {
		row := n.Pix[y*n.Stride : y*n.Stride+m.W*4]
		for x := 0; x < m.W; x++ {
			m.Pix[y*m.W+x] = row[x*4]
		}
	}
	return m
}

// toImage renders the matrix as grayscale-as-RGB for downstream consumers
// that expect a color image.
func (m *grayMat) toImage() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, m.W, m.H))
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			v := m.Pix[y*m.W+x]
			out.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return out
}

// gaussianBlur5 applies a fixed 5x5 Gaussian kernel, the same smoothing the
// edge detector expects before thresholding.
func gaussianBlur5(src *grayMat) *grayMat {
	// 5x5 binomial kernel, integer weights summing to 256.
	kernel := [5][5]int{
		{1, 4, 6, 4, 1},
		{4, 16, 24, 16, 4},
		{6, 24, 36, 24, 6},
		{4, 16, 24, 16, 4},
		{1, 4, 6, 4, 1},
	}
	dst := newGrayMat(src.W, src.H)
	for y := 0; y < src.H; y++ {
		for x := 0; x < src.W; x++ {
			sum := 0
			for ky := -2; ky <= 2; ky++ {
				for kx := -2; kx <= 2; kx++ {
					sum += int(src.atClamped(x+kx, y+ky)) * kernel[ky+2][kx+2]
				}
			}
			dst.set(x, y, uint8(sum/256))
		}
	}
	return dst
}
