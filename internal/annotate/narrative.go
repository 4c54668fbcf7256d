package annotate

import (
	"fmt"
	"strings"

	"github.com/bilbot/bilbot/constants"
	"github.com/bilbot/bilbot/internal/entity"
)

// Narrative builds the human-readable diagnostic for one extraction: how
// the reconciliation went, how many items could be localized, and whether
// overlapping boxes point at a layout problem. Telegram-friendly plain text.
func (a *Annotator) Narrative(rec *entity.ReceiptRecord) string {
	var b strings.Builder
	symbol := constants.CurrencySymbol(rec.Currency)

	// Reconciliation outcome leads: it is the first thing a reviewer wants.
	switch {
	case rec.TotalAmount == nil && len(rec.Items) == 0:
		b.WriteString("No items or total could be extracted from this receipt.")
	case rec.TotalAmountValidated == nil:
		b.WriteString(fmt.Sprintf("Extracted %d item(s); the total could not be cross-checked.", len(rec.Items)))
	case *rec.TotalAmountValidated:
		b.WriteString(fmt.Sprintf("Extracted %d item(s) summing to %s%s; the printed total matches.",
			len(rec.Items), symbol, rec.CalculatedTotal.StringFixed(2)))
	default:
		b.WriteString(fmt.Sprintf("Extracted %d item(s) summing to %s%s, but the printed total is %s%s (off by %s%s).",
			len(rec.Items), symbol, rec.CalculatedTotal.StringFixed(2),
			symbol, rec.TotalAmount.StringFixed(2),
			symbol, rec.TotalDifference.StringFixed(2)))
	}

	if len(rec.Items) == 0 {
		return b.String()
	}

	boxed := 0
	for _, item := range rec.Items {
		if item.BoundingBox != nil {
			boxed++
		}
	}
	rate := float64(boxed) / float64(len(rec.Items))
	b.WriteString(fmt.Sprintf("\n%d of %d items were located on the image (%.0f%%).",
		boxed, len(rec.Items), rate*100))

	if overlaps := a.countOverlaps(rec.Items); overlaps > 0 {
		b.WriteString(fmt.Sprintf("\n%d box pair(s) overlap heavily; these are likely detection artifacts, double-check neighboring lines.", overlaps))
	}
	switch {
	case rate < a.cfg.DetectionRateThreshold:
		b.WriteString("\nLocalization is weak; a sharper, better-lit photo or a different extraction model should improve results.")
	case rate < 1:
		b.WriteString("\nMost items were located; the missing ones probably have ambiguous formatting on the receipt.")
	}
	return b.String()
}

// countOverlaps counts item box pairs whose intersection exceeds the
// configured fraction of either box's area.
func (a *Annotator) countOverlaps(items []entity.ReceiptItem) int {
	count := 0
	for i := 0; i < len(items); i++ {
		if items[i].BoundingBox == nil {
			continue
		}
		for j := i + 1; j < len(items); j++ {
			if items[j].BoundingBox == nil {
				continue
			}
			bi, bj := *items[i].BoundingBox, *items[j].BoundingBox
			inter := float64(bi.Intersection(bj))
			if inter == 0 {
				continue
			}
			if inter > a.cfg.OverlapThreshold*float64(bi.Area()) ||
				inter > a.cfg.OverlapThreshold*float64(bj.Area()) {
				count++
			}
		}
	}
	return count
}
