package annotate

import (
	"image"
	"image/color"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilbot/bilbot/internal/entity"
)

func newTestAnnotator() *Annotator {
	return New(Config{OverlapThreshold: 0.30, DetectionRateThreshold: 0.70},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func whiteImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i-3], img.Pix[i-2], img.Pix[i-1], img.Pix[i] = 255, 255, 255, 255
	}
	return img
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func boxedItem(name, price string, x1, y1, x2, y2 int) entity.ReceiptItem {
	return entity.ReceiptItem{
		Name:        name,
		Price:       dec(price),
		BoundingBox: &entity.BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2},
	}
}

func TestAnnotateDrawsBoxes(t *testing.T) {
	rec := &entity.ReceiptRecord{
		Items:    []entity.ReceiptItem{boxedItem("Milk", "1.29", 50, 100, 400, 130)},
		Currency: "USD",
	}
	out := newTestAnnotator().Annotate(whiteImage(500, 700), rec)

	// The top edge of the box is no longer white.
	px := out.NRGBAAt(200, 100)
	assert.NotEqual(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, px)
	// Output keeps the source dimensions.
	assert.Equal(t, 500, out.Bounds().Dx())
	assert.Equal(t, 700, out.Bounds().Dy())
}

func TestAnnotateHandlesUnboxedItems(t *testing.T) {
	rec := &entity.ReceiptRecord{
		Items: []entity.ReceiptItem{
			{Name: "Mystery item", Price: dec("4.20")},
		},
		Currency: "EUR",
	}
	out := newTestAnnotator().Annotate(whiteImage(500, 700), rec)
	require.NotNil(t, out)
}

func TestNarrativeValidatedTotal(t *testing.T) {
	total := dec("10.49")
	calc := dec("10.49")
	diff := dec("0")
	valid := true
	rec := &entity.ReceiptRecord{
		Items: []entity.ReceiptItem{
			boxedItem("Burger", "8.99", 10, 10, 200, 40),
			boxedItem("Fries", "1.50", 10, 50, 200, 80),
		},
		Currency:             "USD",
		TotalAmount:          &total,
		CalculatedTotal:      &calc,
		TotalDifference:      &diff,
		TotalAmountValidated: &valid,
	}
	msg := newTestAnnotator().Narrative(rec)

	assert.Contains(t, msg, "the printed total matches")
	assert.Contains(t, msg, "2 of 2 items were located on the image (100%)")
	assert.NotContains(t, msg, "sharper")
}

func TestNarrativeMismatch(t *testing.T) {
	total := dec("19.99")
	calc := dec("10.49")
	diff := dec("9.50")
	valid := false
	rec := &entity.ReceiptRecord{
		Items: []entity.ReceiptItem{
			boxedItem("Burger", "8.99", 10, 10, 200, 40),
			boxedItem("Fries", "1.50", 10, 50, 200, 80),
		},
		Currency:             "USD",
		TotalAmount:          &total,
		CalculatedTotal:      &calc,
		TotalDifference:      &diff,
		TotalAmountValidated: &valid,
	}
	msg := newTestAnnotator().Narrative(rec)

	assert.Contains(t, msg, "$19.99")
	assert.Contains(t, msg, "off by $9.50")
}

func TestNarrativeLowDetectionRateBlamesImage(t *testing.T) {
	rec := &entity.ReceiptRecord{
		Items: []entity.ReceiptItem{
			boxedItem("Burger", "8.99", 10, 10, 200, 40),
			{Name: "Fries", Price: dec("1.50")},
			{Name: "Cola", Price: dec("2.00")},
		},
	}
	msg := newTestAnnotator().Narrative(rec)

	assert.Contains(t, msg, "1 of 3 items")
	assert.Contains(t, msg, "sharper")
}

func TestNarrativeOverlapsBlameFormatting(t *testing.T) {
	// Full detection rate, two boxes sharing most of their area.
	rec := &entity.ReceiptRecord{
		Items: []entity.ReceiptItem{
			boxedItem("Burger", "8.99", 10, 10, 200, 40),
			boxedItem("Burger XL", "9.99", 10, 15, 200, 45),
		},
	}
	msg := newTestAnnotator().Narrative(rec)

	assert.Contains(t, msg, "overlap heavily")
	assert.NotContains(t, msg, "sharper")
}

func TestNarrativeHighButIncompleteRate(t *testing.T) {
	// 3 of 4 boxed, boxes disjoint: above the rate threshold, so the gap is
	// attributed to formatting, not image quality, and no overlap is flagged.
	rec := &entity.ReceiptRecord{
		Items: []entity.ReceiptItem{
			boxedItem("Burger", "8.99", 10, 10, 200, 40),
			boxedItem("Fries", "1.50", 10, 50, 200, 80),
			boxedItem("Cola", "2.00", 10, 90, 200, 120),
			{Name: "Deposit", Price: dec("0.25")},
		},
	}
	msg := newTestAnnotator().Narrative(rec)

	assert.Contains(t, msg, "3 of 4 items")
	assert.Contains(t, msg, "ambiguous formatting")
	assert.NotContains(t, msg, "sharper")
	assert.NotContains(t, msg, "overlap")
}

func TestNarrativeLowRateStillReportsOverlaps(t *testing.T) {
	rec := &entity.ReceiptRecord{
		Items: []entity.ReceiptItem{
			boxedItem("Burger", "8.99", 10, 10, 200, 40),
			boxedItem("Burger XL", "9.99", 10, 15, 200, 45),
			{Name: "Fries", Price: dec("1.50")},
			{Name: "Cola", Price: dec("2.00")},
		},
	}
	msg := newTestAnnotator().Narrative(rec)

	assert.Contains(t, msg, "overlap heavily")
	assert.Contains(t, msg, "sharper")
}

func TestNarrativeEmptyRecord(t *testing.T) {
	msg := newTestAnnotator().Narrative(&entity.ReceiptRecord{})
	assert.Contains(t, msg, "No items or total")
}

func TestCountOverlapsThreshold(t *testing.T) {
	a := newTestAnnotator()
	items := []entity.ReceiptItem{
		boxedItem("A", "1.00", 0, 0, 100, 30),
		boxedItem("B", "1.00", 0, 25, 100, 55), // ~17% overlap of each
	}
	assert.Equal(t, 0, a.countOverlaps(items))

	items[1].BoundingBox.Y1 = 10 // ~66% overlap
	assert.Equal(t, 1, a.countOverlaps(items))
}

func TestVisualizeCorners(t *testing.T) {
	img := whiteImage(400, 600)
	corners := entity.DocumentCorners{
		TopLeft:     entity.Point{X: 50, Y: 60},
		TopRight:    entity.Point{X: 350, Y: 55},
		BottomRight: entity.Point{X: 355, Y: 540},
		BottomLeft:  entity.Point{X: 45, Y: 545},
	}
	out := VisualizeCorners(img, corners)

	// Corner markers punch through the white background.
	assert.NotEqual(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, out.NRGBAAt(50, 60))
	assert.NotEqual(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, out.NRGBAAt(355, 540))
}
