package reconcile

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bilbot/bilbot/internal/entity"
)

// Engine validates a stated receipt total against the sum of its items.
type Engine struct {
	tolerance decimal.Decimal
	logger    *slog.Logger
}

// New builds an engine with an absolute tolerance expressed in the
// currency's major unit (0.01 accepts one-cent rounding).
func New(tolerance float64, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{tolerance: decimal.NewFromFloat(tolerance).Abs(), logger: logger}
}

// Reconcile returns a copy of the record with the validation fields filled
// in. The input is never mutated.
//
//   - items and a stated total: CalculatedTotal, TotalDifference and
//     TotalAmountValidated are set; the stated total is kept even on
//     mismatch, the model's word outranks arithmetic on what is printed.
//   - items but no stated total: the item sum becomes the total, but with no
//     printed figure to compare against, TotalAmountValidated stays nil.
//   - no items: nothing to check, validation fields stay nil.
func (e *Engine) Reconcile(in *entity.ReceiptRecord) *entity.ReceiptRecord {
	out := cloneRecord(in)
	if len(out.Items) == 0 {
		return out
	}

	sum := out.ItemSum()
	out.CalculatedTotal = &sum

	if out.TotalAmount == nil {
		total := sum
		out.TotalAmount = &total
		e.logger.Info("reconcile.total_filled", "calculated_total", sum.String())
		return out
	}

	diff := out.TotalAmount.Sub(sum).Abs()
	out.TotalDifference = &diff
	valid := diff.LessThanOrEqual(e.tolerance)
	out.TotalAmountValidated = &valid

	if valid {
		e.logger.Info("reconcile.total_validated",
			"stated_total", out.TotalAmount.String(),
			"calculated_total", sum.String(),
		)
	} else {
		e.logger.Warn("reconcile.total_mismatch",
			"stated_total", out.TotalAmount.String(),
			"calculated_total", sum.String(),
			"difference", diff.String(),
		)
	}
	return out
}

func cloneRecord(in *entity.ReceiptRecord) *entity.ReceiptRecord {
	out := *in
	out.Items = append([]entity.ReceiptItem(nil), in.Items...)
	out.PurchaseDate = cloneTimePtr(in.PurchaseDate)
	out.PurchaseTime = cloneTimePtr(in.PurchaseTime)
	out.TotalAmount = cloneDecimalPtr(in.TotalAmount)
	out.TotalAmountValidated = cloneBoolPtr(in.TotalAmountValidated)
	out.IsValid = cloneBoolPtr(in.IsValid)
	out.CalculatedTotal = cloneDecimalPtr(in.CalculatedTotal)
	out.TotalDifference = cloneDecimalPtr(in.TotalDifference)
	return &out
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneDecimalPtr(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func cloneBoolPtr(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}
