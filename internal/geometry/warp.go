package geometry

import (
	"image"
	"math"

	"github.com/bilbot/bilbot/internal/entity"
)

// transformHeight is the output height of the perspective correction; the
// width follows from the quad's average aspect ratio.
const transformHeight = 900

// OrderPoints arranges four arbitrary corner points into top-left,
// top-right, bottom-right, bottom-left order. The top-left corner has the
// smallest x+y sum, the bottom-right the largest; the top-right has the
// largest x-y difference, the bottom-left the smallest.
func OrderPoints(pts [4]entity.Point) entity.DocumentCorners {
	var c entity.DocumentCorners
	minSum, maxSum := math.Inf(1), math.Inf(-1)
	minDiff, maxDiff := math.Inf(1), math.Inf(-1)
	for _, p := range pts {
		sum := p.X + p.Y
		diff := p.X - p.Y
		if sum < minSum {
			minSum = sum
			c.TopLeft = p
		}
		if sum > maxSum {
			maxSum = sum
			c.BottomRight = p
		}
		if diff > maxDiff {
			maxDiff = diff
			c.TopRight = p
		}
		if diff < minDiff {
			minDiff = diff
			c.BottomLeft = p
		}
	}
	return c
}

// perspectiveWarp maps the quad described by corners onto an upright
// rectangle of height transformHeight, sampling the source bilinearly
// through the inverse homography.
func perspectiveWarp(img image.Image, corners entity.DocumentCorners) *image.NRGBA {
	topW := dist(corners.TopLeft, corners.TopRight)
	botW := dist(corners.BottomLeft, corners.BottomRight)
	leftH := dist(corners.TopLeft, corners.BottomLeft)
	rightH := dist(corners.TopRight, corners.BottomRight)

	srcW := (topW + botW) / 2
	srcH := (leftH + rightH) / 2
	if srcW < 1 || srcH < 1 {
		return imageToNRGBA(img)
	}

	outH := transformHeight
	outW := int(math.Round(float64(outH) * srcW / srcH))
	if outW < 1 {
		outW = 1
	}

	// Solve for the homography mapping destination rectangle corners back to
	// the source quad, so each output pixel pulls from the source.
	dst := [4]entity.Point{
		{X: 0, Y: 0},
		{X: float64(outW - 1), Y: 0},
		{X: float64(outW - 1), Y: float64(outH - 1)},
		{X: 0, Y: float64(outH - 1)},
	}
	src := [4]entity.Point{
		corners.TopLeft, corners.TopRight, corners.BottomRight, corners.BottomLeft,
	}
	hmat, ok := solveHomography(dst, src)
	if !ok {
		return imageToNRGBA(img)
	}

	in := imageToNRGBA(img)
	out := image.NewNRGBA(image.Rect(0, 0, outW, outH))
	for y := 0; y < outH; y++ {
		fy := float64(y)
		for x := 0; x < outW; x++ {
			fx := float64(x)
			den := hmat[6]*fx + hmat[7]*fy + hmat[8]
			if den == 0 {
				continue
			}
			sx := (hmat[0]*fx + hmat[1]*fy + hmat[2]) / den
			sy := (hmat[3]*fx + hmat[4]*fy + hmat[5]) / den
			r, g, b, a := sampleBilinear(in, sx, sy)
			i := out.PixOffset(x, y)
			out.Pix[i] = r
			out.Pix[i+1] = g
			out.Pix[i+2] = b
			out.Pix[i+3] = a
		}
	}
	return out
}

func dist(a, b entity.Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// solveHomography computes the 3x3 projective transform taking each src[i]
// to dst[i], returned row-major with h22 fixed to 1. The second return is
// false when the four points are degenerate.
func solveHomography(src, dst [4]entity.Point) ([9]float64, bool) {
	// Standard 8x8 linear system in the unknowns h0..h7.
	var m [8][9]float64
	for i := 0; i < 4; i++ {
		sx, sy := src[i].X, src[i].Y
		dx, dy := dst[i].X, dst[i].Y
		m[2*i] = [9]float64{sx, sy, 1, 0, 0, 0, -sx * dx, -sy * dx, dx}
		m[2*i+1] = [9]float64{0, 0, 0, sx, sy, 1, -sx * dy, -sy * dy, dy}
	}

	// Gaussian elimination with partial pivoting.
	for col := 0; col < 8; col++ {
		pivot := col
		for r := col + 1; r < 8; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < 1e-10 {
			return [9]float64{}, false
		}
		m[col], m[pivot] = m[pivot], m[col]
		for r := 0; r < 8; r++ {
			if r == col {
				continue
			}
			f := m[r][col] / m[col][col]
			for c := col; c < 9; c++ {
				m[r][c] -= f * m[col][c]
			}
		}
	}

	var h [9]float64
	for i := 0; i < 8; i++ {
		h[i] = m[i][8] / m[i][i]
	}
	h[8] = 1
	return h, true
}

func sampleBilinear(img *image.NRGBA, x, y float64) (r, g, b, a uint8) {
	b0 := img.Bounds()
	if x < 0 || y < 0 || x > float64(b0.Dx()-1) || y > float64(b0.Dy()-1) {
		return 0, 0, 0, 255
	}
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	x1, y1 := x0+1, y0+1
	if x1 >= b0.Dx() {
		x1 = x0
	}
	if y1 >= b0.Dy() {
		y1 = y0
	}
	fx, fy := x-float64(x0), y-float64(y0)

	blend := func(c00, c10, c01, c11 uint8) uint8 {
		top := float64(c00)*(1-fx) + float64(c10)*fx
		bot := float64(c01)*(1-fx) + float64(c11)*fx
		return uint8(math.Round(top*(1-fy) + bot*fy))
	}

	i00 := img.PixOffset(x0, y0)
	i10 := img.PixOffset(x1, y0)
	i01 := img.PixOffset(x0, y1)
	i11 := img.PixOffset(x1, y1)
	r = blend(img.Pix[i00], img.Pix[i10], img.Pix[i01], img.Pix[i11])
	g = blend(img.Pix[i00+1], img.Pix[i10+1], img.Pix[i01+1], img.Pix[i11+1])
	b = blend(img.Pix[i00+2], img.Pix[i10+2], img.Pix[i01+2], img.Pix[i11+2])
	a = blend(img.Pix[i00+3], img.Pix[i10+3], img.Pix[i01+3], img.Pix[i11+3])
	return
}

func imageToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}
