package geometry

import (
	"image"
	"image/color"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilbot/bilbot/internal/entity"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOrderPoints(t *testing.T) {
	shuffled := [4]entity.Point{
		{X: 580, Y: 40},  // top-right
		{X: 20, Y: 400},  // bottom-left
		{X: 30, Y: 50},   // top-left
		{X: 590, Y: 410}, // bottom-right
	}
	c := OrderPoints(shuffled)
	assert.Equal(t, entity.Point{X: 30, Y: 50}, c.TopLeft)
	assert.Equal(t, entity.Point{X: 580, Y: 40}, c.TopRight)
	assert.Equal(t, entity.Point{X: 590, Y: 410}, c.BottomRight)
	assert.Equal(t, entity.Point{X: 20, Y: 400}, c.BottomLeft)
}

func TestOrderPointsExtremeAspectRatio(t *testing.T) {
	// A long thin receipt strip must still label corners consistently.
	shuffled := [4]entity.Point{
		{X: 995, Y: 48},
		{X: 10, Y: 42},
		{X: 1000, Y: 12},
		{X: 5, Y: 8},
	}
	c := OrderPoints(shuffled)
	assert.Equal(t, entity.Point{X: 5, Y: 8}, c.TopLeft)
	assert.Equal(t, entity.Point{X: 1000, Y: 12}, c.TopRight)
	assert.Equal(t, entity.Point{X: 995, Y: 48}, c.BottomRight)
	assert.Equal(t, entity.Point{X: 10, Y: 42}, c.BottomLeft)
}

func TestConvexHullSquare(t *testing.T) {
	pts := []fpoint{
		{0, 0}, {10, 0}, {10, 10}, {0, 10},
		{5, 5}, {3, 7}, {8, 2}, // interior points must be discarded
	}
	hull := convexHull(pts)
	require.Len(t, hull, 4)
	assert.InDelta(t, 100, polygonArea(hull), 1e-9)
	assert.InDelta(t, 40, polygonPerimeter(hull), 1e-9)
}

func TestApproxPolyClosedSimplifiesNoisyRectangle(t *testing.T) {
	// Rectangle outline sampled every unit: many collinear vertices that
	// should collapse to the four corners.
	var poly []fpoint
	for x := 0; x <= 100; x += 5 {
		poly = append(poly, fpoint{float64(x), 0})
	}
	for y := 5; y <= 60; y += 5 {
		poly = append(poly, fpoint{100, float64(y)})
	}
	for x := 95; x >= 0; x -= 5 {
		poly = append(poly, fpoint{float64(x), 60})
	}
	for y := 55; y >= 5; y -= 5 {
		poly = append(poly, fpoint{0, float64(y)})
	}

	eps := 0.02 * polygonPerimeter(poly)
	approx := approxPolyClosed(poly, eps)
	assert.Len(t, approx, 4)
}

func TestCornerStrategies(t *testing.T) {
	square := []fpoint{{0, 0}, {100, 0}, {100, 100}, {0, 100}}
	perim := polygonPerimeter(square)

	quad, ok := approxQuad(0.02)(square, perim)
	require.True(t, ok)
	assert.Len(t, quad, 4)

	_, ok = minAreaRectQuad(square, perim)
	assert.False(t, ok, "min-area rect only applies to hulls with extra vertices")

	// A regular octagon refuses polygon approximation but still gets a
	// bounding quad from the rectangle strategy.
	var octagon []fpoint
	for i := 0; i < 8; i++ {
		a := float64(i) * math.Pi / 4
		octagon = append(octagon, fpoint{100 * math.Cos(a), 100 * math.Sin(a)})
	}
	operim := polygonPerimeter(octagon)
	_, ok = approxQuad(0.02)(octagon, operim)
	assert.False(t, ok)
	box, ok := minAreaRectQuad(octagon, operim)
	require.True(t, ok)
	assert.Len(t, box, 4)
}

func TestMinAreaRectAxisAligned(t *testing.T) {
	hull := convexHull([]fpoint{{10, 20}, {110, 20}, {110, 70}, {10, 70}})
	box, angle := minAreaRect(hull)

	area := polygonArea(box[:])
	assert.InDelta(t, 5000, area, 1e-6)
	// Axis-aligned input: the angle is a multiple of 90 degrees.
	norm := math.Mod(math.Abs(angle), 90)
	assert.True(t, norm < 1e-6 || norm > 90-1e-6, "angle %v not axis-aligned", angle)
}

func TestMinAreaRectRotated(t *testing.T) {
	// A 100x40 rectangle rotated by 30 degrees keeps its area under the
	// min-area rect.
	theta := 30 * math.Pi / 180
	cos, sin := math.Cos(theta), math.Sin(theta)
	base := []fpoint{{0, 0}, {100, 0}, {100, 40}, {0, 40}}
	var rotated []fpoint
	for _, p := range base {
		rotated = append(rotated, fpoint{p.X*cos - p.Y*sin, p.X*sin + p.Y*cos})
	}
	box, _ := minAreaRect(convexHull(rotated))
	assert.InDelta(t, 4000, polygonArea(box[:]), 1.0)
}

func TestSolveHomographyIdentity(t *testing.T) {
	quad := [4]entity.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}}
	h, ok := solveHomography(quad, quad)
	require.True(t, ok)

	// Mapping any point through the transform must be the identity.
	x, y := 37.0, 81.0
	den := h[6]*x + h[7]*y + h[8]
	assert.InDelta(t, x, (h[0]*x+h[1]*y+h[2])/den, 1e-6)
	assert.InDelta(t, y, (h[3]*x+h[4]*y+h[5])/den, 1e-6)
}

func TestSolveHomographyDegenerate(t *testing.T) {
	// All four points collinear: no valid transform.
	line := [4]entity.Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}}
	square := [4]entity.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}
	_, ok := solveHomography(line, square)
	assert.False(t, ok)
}

func TestBilateralFilterConstantImage(t *testing.T) {
	m := newGrayMat(32, 32)
	for i := range m.Pix {
		m.Pix[i] = 120
	}
	out := bilateralFilter(m, 7, 30, 30)
	for i := range out.Pix {
		require.Equal(t, uint8(120), out.Pix[i])
	}
}

func TestClaheStretchesLowContrast(t *testing.T) {
	// A dim gradient should come out with a wider value range.
	m := newGrayMat(64, 64)
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			m.set(x, y, uint8(100+x/4))
		}
	}
	out := clahe(m, 1.5, 8, 8)

	rangeOf := func(g *grayMat) int {
		lo, hi := 255, 0
		for _, v := range g.Pix {
			lo = min(lo, int(v))
			hi = max(hi, int(v))
		}
		return hi - lo
	}
	assert.Greater(t, rangeOf(out), rangeOf(m))
}

func syntheticReceiptImage() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 400, 500))
	for y := 0; y < 500; y++ {
		for x := 0; x < 400; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 20, G: 20, B: 20, A: 255})
		}
	}
	for y := 80; y < 440; y++ {
		for x := 100; x < 320; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 235, G: 235, B: 235, A: 255})
		}
	}
	return img
}

func TestNormalizeFindsDocumentCorners(t *testing.T) {
	n := NewNormalizer(Config{MaxWidth: 1200, PerspectiveCorrect: true}, discardLogger())
	res := n.Normalize(syntheticReceiptImage())

	require.NotNil(t, res.Image)
	require.NotNil(t, res.Corners)

	// The warped output has the fixed transform height and an aspect ratio
	// close to the detected quad's (220x360).
	b := res.Image.Bounds()
	assert.Equal(t, 900, b.Dy())
	assert.InDelta(t, 900.0*220.0/360.0, float64(b.Dx()), 20)

	// Detected corners sit near the bright region's boundary.
	assert.InDelta(t, 100, res.Corners.TopLeft.X, 8)
	assert.InDelta(t, 80, res.Corners.TopLeft.Y, 8)
	assert.InDelta(t, 320, res.Corners.BottomRight.X, 8)
	assert.InDelta(t, 440, res.Corners.BottomRight.Y, 8)
}

func TestNormalizeWithoutPerspectiveCorrection(t *testing.T) {
	n := NewNormalizer(Config{MaxWidth: 1200, PerspectiveCorrect: false}, discardLogger())
	res := n.Normalize(syntheticReceiptImage())

	require.NotNil(t, res.Image)
	assert.Nil(t, res.Corners)
	assert.Equal(t, 400, res.Image.Bounds().Dx())
	assert.Equal(t, 500, res.Image.Bounds().Dy())
}

func TestNormalizeDownscalesLargeInput(t *testing.T) {
	big := image.NewNRGBA(image.Rect(0, 0, 2400, 1000))
	n := NewNormalizer(Config{MaxWidth: 1200, PerspectiveCorrect: false}, discardLogger())
	res := n.Normalize(big)
	assert.Equal(t, 1200, res.Image.Bounds().Dx())
}

func TestNormalizeBlankImageFallsBack(t *testing.T) {
	// Nothing to detect: the normalizer must still return an enhanced image.
	blank := image.NewNRGBA(image.Rect(0, 0, 300, 300))
	n := NewNormalizer(Config{MaxWidth: 1200, PerspectiveCorrect: true}, discardLogger())
	res := n.Normalize(blank)

	require.NotNil(t, res.Image)
	assert.Nil(t, res.Corners)
	assert.Zero(t, res.DeskewAngle)
}
