package geometry

import (
	"image"
	"log/slog"
	"math"

	"github.com/disintegration/imaging"

	"github.com/bilbot/bilbot/internal/entity"
)

const (
	// minContourArea rejects small contours (logos, text blocks) when hunting
	// for the receipt outline.
	minContourArea = 10000

	// deskewMaxAngle caps the fallback rotation; anything larger is more
	// likely a mis-detected contour than a tilted photo.
	deskewMaxAngle = 15.0

	cannyLowThreshold  = 30
	cannyHighThreshold = 100
)

// Config controls the normalization pass.
type Config struct {
	// MaxWidth caps the working width; larger inputs are downscaled before
	// any detection runs.
	MaxWidth int

	// PerspectiveCorrect enables the contour detection and perspective warp.
	// When false only grayscale enhancement is applied.
	PerspectiveCorrect bool
}

// Result reports what the normalizer did alongside the output image.
type Result struct {
	Image *image.NRGBA

	// Corners is non-nil when a document quad was found and warped.
	Corners *entity.DocumentCorners

	// DeskewAngle is the rotation applied by the fallback path, in degrees.
	// Zero when perspective correction succeeded or no skew was detected.
	DeskewAngle float64
}

// Normalizer prepares receipt photos for extraction: downscale, find the
// document outline, correct perspective, and enhance contrast. It always
// produces a usable image; when detection fails it falls back to a simple
// deskew so the pipeline can continue with the enhanced original.
type Normalizer struct {
	cfg    Config
	logger *slog.Logger
}

func NewNormalizer(cfg Config, logger *slog.Logger) *Normalizer {
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = 1200
	}
	return &Normalizer{cfg: cfg, logger: logger}
}

// Normalize runs the full pass. It never returns an error: any detection
// failure degrades to enhancement of the (possibly deskewed) input.
func (n *Normalizer) Normalize(img image.Image) Result {
	img = n.downscale(img)

	if !n.cfg.PerspectiveCorrect {
		return Result{Image: enhance(img)}
	}

	gray := grayFromImage(img)
	blurred := gaussianBlur5(gray)
	edges := dilate(canny(blurred, cannyLowThreshold, cannyHighThreshold), 2)

	corners, ok := n.findDocumentCorners(edges)
	if ok {
		n.logger.Debug("geometry.normalize.corners_found",
			"top_left_x", corners.TopLeft.X,
			"top_left_y", corners.TopLeft.Y,
			"min_separation", corners.MinSeparation())
		warped := perspectiveWarp(img, corners)
		return Result{Image: enhance(warped), Corners: &corners}
	}

	angle := n.detectSkew(edges)
	if angle != 0 {
		n.logger.Debug("geometry.normalize.deskew", "angle", angle)
		img = imaging.Rotate(img, angle, image.White)
	} else {
		n.logger.Debug("geometry.normalize.no_contour")
	}
	return Result{Image: enhance(img), DeskewAngle: angle}
}

// WarpToCorners applies the perspective correction for corners obtained
// elsewhere (e.g. a vision model) and enhances the result.
func (n *Normalizer) WarpToCorners(img image.Image, corners entity.DocumentCorners) *image.NRGBA {
	return enhance(perspectiveWarp(n.downscale(img), corners))
}

func (n *Normalizer) downscale(img image.Image) image.Image {
	if img.Bounds().Dx() > n.cfg.MaxWidth {
		return imaging.Resize(img, n.cfg.MaxWidth, 0, imaging.Lanczos)
	}
	return img
}

// cornerStrategy reduces a convex hull to a document quad, or reports that
// it cannot. Strategies run in order; the first success wins.
type cornerStrategy struct {
	name string
	quad func(hull []fpoint, perimeter float64) ([]fpoint, bool)
}

// cornerStrategies: polygon approximation at a coarse then a fine epsilon,
// then the min-area bounding rectangle as a stand-in when the hull refuses
// to simplify to four vertices.
var cornerStrategies = []cornerStrategy{
	{"approx_eps_0.02", approxQuad(0.02)},
	{"approx_eps_0.01", approxQuad(0.01)},
	{"min_area_rect", minAreaRectQuad},
}

func approxQuad(eps float64) func(hull []fpoint, perimeter float64) ([]fpoint, bool) {
	return func(hull []fpoint, perimeter float64) ([]fpoint, bool) {
		approx := approxPolyClosed(hull, eps*perimeter)
		if len(approx) != 4 {
			return nil, false
		}
		return approx, true
	}
}

// minAreaRectQuad needs a hull with extra vertices; for four or fewer the
// approximation strategies already had their say.
func minAreaRectQuad(hull []fpoint, _ float64) ([]fpoint, bool) {
	if len(hull) <= 4 {
		return nil, false
	}
	box, _ := minAreaRect(hull)
	return box[:], true
}

// findDocumentCorners searches the edge map for the largest plausible
// document contour and reduces its convex hull to four corners via the
// strategy list.
func (n *Normalizer) findDocumentCorners(edges *grayMat) (entity.DocumentCorners, bool) {
	var best []fpoint
	bestArea := 0.0
	for _, comp := range connectedComponents(edges) {
		hull := convexHull(comp)
		area := polygonArea(hull)
		if area < minContourArea {
			continue
		}
		if area > bestArea {
			bestArea = area
			best = hull
		}
	}
	if best == nil {
		return entity.DocumentCorners{}, false
	}

	perimeter := polygonPerimeter(best)
	for _, s := range cornerStrategies {
		if quad, ok := s.quad(best, perimeter); ok {
			n.logger.Debug("geometry.corners.strategy", "strategy", s.name)
			return orderFpoints(quad), true
		}
	}
	return entity.DocumentCorners{}, false
}

// detectSkew estimates the dominant rotation of the largest edge component
// via its min-area rectangle, normalized to [-45, 45) and capped.
func (n *Normalizer) detectSkew(edges *grayMat) float64 {
	var best []fpoint
	bestArea := 0.0
	for _, comp := range connectedComponents(edges) {
		hull := convexHull(comp)
		area := polygonArea(hull)
		if area > bestArea {
			bestArea = area
			best = hull
		}
	}
	if best == nil || bestArea < minContourArea {
		return 0
	}

	_, angle := minAreaRect(best)
	for angle >= 45 {
		angle -= 90
	}
	for angle < -45 {
		angle += 90
	}
	if math.Abs(angle) > deskewMaxAngle || math.Abs(angle) < 0.5 {
		return 0
	}
	return -angle
}

func orderFpoints(pts []fpoint) entity.DocumentCorners {
	var quad [4]entity.Point
	for i := 0; i < 4 && i < len(pts); i++ {
		quad[i] = entity.Point{X: pts[i].X, Y: pts[i].Y}
	}
	return OrderPoints(quad)
}

// enhance converts to grayscale and applies denoising plus adaptive
// contrast, the final step of every normalization path.
func enhance(img image.Image) *image.NRGBA {
	gray := grayFromImage(img)
	gray = bilateralFilter(gray, 7, 30, 30)
	gray = clahe(gray, 1.5, 8, 8)
	return gray.toImage()
}
