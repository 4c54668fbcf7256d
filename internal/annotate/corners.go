package annotate

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/bilbot/bilbot/internal/entity"
)

// VisualizeCorners renders a detected document quad onto the photo: the
// outline, a marker on each corner, and its label. Used by the corner
// detection CLI to eyeball model output.
func VisualizeCorners(img image.Image, corners entity.DocumentCorners) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)

	edge := color.NRGBA{R: 42, G: 157, B: 143, A: 255}
	pts := corners.Points()
	for i := range pts {
		drawLine(out, pts[i], pts[(i+1)%4], edge)
	}

	labels := [4]string{"TL", "TR", "BR", "BL"}
	marker := color.NRGBA{R: 230, G: 57, B: 70, A: 255}
	for i, p := range pts {
		drawMarker(out, p, marker)
		drawLabel(out, int(p.X)+8, int(p.Y)-6, labels[i], marker)
	}
	return out
}

func drawMarker(img *image.NRGBA, p entity.Point, c color.NRGBA) {
	cx, cy := int(math.Round(p.X)), int(math.Round(p.Y))
	const r = 4
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				x, y := cx+dx, cy+dy
				if x >= 0 && y >= 0 && x < img.Bounds().Dx() && y < img.Bounds().Dy() {
					img.SetNRGBA(x, y, c)
				}
			}
		}
	}
}

func drawLine(img *image.NRGBA, a, b entity.Point, c color.NRGBA) {
	steps := int(math.Max(math.Abs(b.X-a.X), math.Abs(b.Y-a.Y)))
	if steps == 0 {
		steps = 1
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := int(math.Round(a.X + t*(b.X-a.X)))
		y := int(math.Round(a.Y + t*(b.Y-a.Y)))
		if x >= 0 && y >= 0 && x < img.Bounds().Dx() && y < img.Bounds().Dy() {
			img.SetNRGBA(x, y, c)
		}
	}
}
