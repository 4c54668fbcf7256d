package annotate

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/bilbot/bilbot/constants"
	"github.com/bilbot/bilbot/internal/entity"
)

// palette cycles across item boxes so adjacent lines stay distinguishable.
var palette = []color.NRGBA{
	{R: 230, G: 57, B: 70, A: 255},
	{R: 29, G: 53, B: 87, A: 255},
	{R: 42, G: 157, B: 143, A: 255},
	{R: 244, G: 162, B: 97, A: 255},
	{R: 106, G: 76, B: 147, A: 255},
	{R: 38, G: 70, B: 83, A: 255},
}

// Config carries the diagnostic thresholds.
type Config struct {
	// OverlapThreshold flags box pairs overlapping by more than this
	// fraction of either box's area.
	OverlapThreshold float64

	// DetectionRateThreshold switches the diagnostic phrasing: below it the
	// likely culprit is image quality, above it the receipt formatting.
	DetectionRateThreshold float64
}

// Annotator renders extraction results back onto the receipt image for
// human review.
type Annotator struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Annotator {
	if cfg.OverlapThreshold <= 0 {
		cfg.OverlapThreshold = 0.30
	}
	if cfg.DetectionRateThreshold <= 0 {
		cfg.DetectionRateThreshold = 0.70
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Annotator{cfg: cfg, logger: logger}
}

// Annotate draws each located item's bounding box with a numbered label,
// lists items the model could not localize, and overlays the receipt summary
// in the top-left corner.
func (a *Annotator) Annotate(img image.Image, rec *entity.ReceiptRecord) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)

	symbol := constants.CurrencySymbol(rec.Currency)
	var unboxed []string
	for i, item := range rec.Items {
		label := fmt.Sprintf("#%d: %s: %s%s", i+1, item.Name, symbol, item.Price.StringFixed(2))
		if item.BoundingBox == nil {
			unboxed = append(unboxed, label)
			continue
		}
		c := palette[i%len(palette)]
		drawRect(out, *item.BoundingBox, c, 2)
		drawLabel(out, item.BoundingBox.X1, item.BoundingBox.Y1-4, label, c)
	}

	a.drawSummary(out, rec)

	if len(unboxed) > 0 {
		y := out.Bounds().Dy() - (len(unboxed)+1)*lineHeight - 4
		drawLabel(out, 4, y, "Not located on image:", color.NRGBA{R: 180, G: 30, B: 30, A: 255})
		for i, label := range unboxed {
			drawLabel(out, 4, y+(i+1)*lineHeight, label, color.NRGBA{R: 180, G: 30, B: 30, A: 255})
		}
	}

	a.logger.Debug("annotate.done",
		"items", len(rec.Items),
		"unboxed", len(unboxed),
	)
	return out
}

func (a *Annotator) drawSummary(out *image.NRGBA, rec *entity.ReceiptRecord) {
	y := lineHeight
	dark := color.NRGBA{R: 20, G: 20, B: 20, A: 255}
	if rec.Store != "" {
		drawLabel(out, 4, y, rec.Store, dark)
		y += lineHeight
	}
	if ts, ok := rec.PurchaseTimestamp(); ok {
		layout := "2006-01-02"
		if rec.PurchaseTime != nil {
			layout = "2006-01-02 15:04"
		}
		drawLabel(out, 4, y, ts.Format(layout), dark)
		y += lineHeight
	}
	if rec.TotalAmount != nil {
		mark := ""
		c := dark
		if rec.TotalAmountValidated != nil {
			if *rec.TotalAmountValidated {
				mark = " OK"
				c = color.NRGBA{R: 20, G: 120, B: 40, A: 255}
			} else {
				mark = " MISMATCH"
				c = color.NRGBA{R: 180, G: 30, B: 30, A: 255}
			}
		}
		total := fmt.Sprintf("Total: %s%s%s",
			constants.CurrencySymbol(rec.Currency), rec.TotalAmount.StringFixed(2), mark)
		drawLabel(out, 4, y, total, c)
	}
}

const lineHeight = 14

// drawRect draws a rectangle outline clipped to the image.
func drawRect(img *image.NRGBA, box entity.BoundingBox, c color.NRGBA, thickness int) {
	for t := 0; t < thickness; t++ {
		hline(img, box.X1-t, box.X2+t, box.Y1-t, c)
		hline(img, box.X1-t, box.X2+t, box.Y2+t, c)
		vline(img, box.X1-t, box.Y1-t, box.Y2+t, c)
		vline(img, box.X2+t, box.Y1-t, box.Y2+t, c)
	}
}

func hline(img *image.NRGBA, x1, x2, y int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	for x := max(x1, 0); x <= min(x2, img.Bounds().Dx()-1); x++ {
		img.SetNRGBA(x, y, c)
	}
}

func vline(img *image.NRGBA, x, y1, y2 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	for y := max(y1, 0); y <= min(y2, img.Bounds().Dy()-1); y++ {
		img.SetNRGBA(x, y, c)
	}
}

// drawLabel renders text at (x, y baseline) over a white backing strip so it
// stays legible on busy receipt imagery.
func drawLabel(img *image.NRGBA, x, y int, text string, c color.NRGBA) {
	if text == "" {
		return
	}
	if y < lineHeight {
		y = lineHeight
	}
	face := basicfont.Face7x13
	w := font.MeasureString(face, text).Ceil()

	bg := image.Rect(x-1, y-face.Ascent, x+w+1, y+face.Descent)
	draw.Draw(img, bg.Intersect(img.Bounds()), image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: 230}), image.Point{}, draw.Over)

	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
