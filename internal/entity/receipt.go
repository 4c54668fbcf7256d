package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// BoundingBox is a pixel rectangle (x1,y1,x2,y2) localizing one line item
// within the source image.
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (b BoundingBox) Width() int  { return b.X2 - b.X1 }
func (b BoundingBox) Height() int { return b.Y2 - b.Y1 }

func (b BoundingBox) Area() int {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Intersection returns the overlapping area between two boxes in pixels.
func (b BoundingBox) Intersection(o BoundingBox) int {
	x1 := max(b.X1, o.X1)
	y1 := max(b.Y1, o.Y1)
	x2 := min(b.X2, o.X2)
	y2 := min(b.Y2, o.Y2)
	if x2 <= x1 || y2 <= y1 {
		return 0
	}
	return (x2 - x1) * (y2 - y1)
}

// ReceiptItem is one extracted line item.
type ReceiptItem struct {
	Name        string          `json:"item"`
	Price       decimal.Decimal `json:"price"`
	BoundingBox *BoundingBox    `json:"bbox_2d,omitempty"`
}

// ReceiptRecord is the structured result of extracting purchase data from
// one receipt image. It is built incrementally by the pipeline stages and
// never mutated after handoff to storage.
type ReceiptRecord struct {
	Items         []ReceiptItem `json:"items"`
	PurchaseDate  *time.Time    `json:"purchase_date,omitempty"`
	PurchaseTime  *time.Time    `json:"purchase_time,omitempty"`
	Store         string        `json:"store,omitempty"`
	PaymentMethod string        `json:"payment_method,omitempty"`

	// Currency is an ISO-4217-like code; empty until detection ran.
	Currency string `json:"currency,omitempty"`

	TotalAmount *decimal.Decimal `json:"total_amount,omitempty"`

	// TotalAmountValidated is tri-state: true = stated total matches the
	// item sum within tolerance, false = mismatch, nil = not evaluated.
	TotalAmountValidated *bool `json:"total_amount_validated,omitempty"`

	// IsValid is the model's own plausibility assertion, if it gave one.
	IsValid *bool `json:"is_valid,omitempty"`

	// Reconciliation diagnostics, set when both a total and items exist.
	CalculatedTotal *decimal.Decimal `json:"calculated_total,omitempty"`
	TotalDifference *decimal.Decimal `json:"total_difference,omitempty"`
}

// ItemSum returns the sum of all item prices.
func (r *ReceiptRecord) ItemSum() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range r.Items {
		sum = sum.Add(it.Price)
	}
	return sum
}

// PurchaseTimestamp combines the purchase date and time-of-day into a single
// timestamp. The second return is false when no date was extracted.
func (r *ReceiptRecord) PurchaseTimestamp() (time.Time, bool) {
	if r.PurchaseDate == nil {
		return time.Time{}, false
	}
	d := *r.PurchaseDate
	if r.PurchaseTime == nil {
		return d, true
	}
	t := *r.PurchaseTime
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), t.Second(), 0, d.Location()), true
}
