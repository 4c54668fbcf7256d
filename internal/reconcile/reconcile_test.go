package reconcile

import (
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilbot/bilbot/internal/entity"
)

func newTestEngine() *Engine {
	return New(0.01, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func record(prices []string, total string) *entity.ReceiptRecord {
	rec := &entity.ReceiptRecord{}
	for i, p := range prices {
		rec.Items = append(rec.Items, entity.ReceiptItem{
			Name:  string(rune('A' + i)),
			Price: decimal.RequireFromString(p),
		})
	}
	if total != "" {
		t := decimal.RequireFromString(total)
		rec.TotalAmount = &t
	}
	return rec
}

func TestReconcileMatchingTotal(t *testing.T) {
	rec := record([]string{"8.99", "1.50"}, "10.49")
	out := newTestEngine().Reconcile(rec)

	require.NotNil(t, out.TotalAmountValidated)
	assert.True(t, *out.TotalAmountValidated)
	require.NotNil(t, out.CalculatedTotal)
	assert.True(t, out.CalculatedTotal.Equal(decimal.RequireFromString("10.49")))
	require.NotNil(t, out.TotalDifference)
	assert.True(t, out.TotalDifference.IsZero())
}

func TestReconcileWithinTolerance(t *testing.T) {
	// One cent off passes at the default tolerance.
	rec := record([]string{"8.99", "1.49"}, "10.49")
	out := newTestEngine().Reconcile(rec)

	require.NotNil(t, out.TotalAmountValidated)
	assert.True(t, *out.TotalAmountValidated)
}

func TestReconcileMismatch(t *testing.T) {
	rec := record([]string{"8.99", "1.50"}, "19.99")
	out := newTestEngine().Reconcile(rec)

	require.NotNil(t, out.TotalAmountValidated)
	assert.False(t, *out.TotalAmountValidated)
	require.NotNil(t, out.TotalDifference)
	assert.True(t, out.TotalDifference.Equal(decimal.RequireFromString("9.50")))
	// Stated total survives the mismatch untouched.
	assert.True(t, out.TotalAmount.Equal(decimal.RequireFromString("19.99")))
}

func TestReconcileFillsMissingTotal(t *testing.T) {
	rec := record([]string{"8.99", "1.50"}, "")
	out := newTestEngine().Reconcile(rec)

	require.NotNil(t, out.TotalAmount)
	assert.True(t, out.TotalAmount.Equal(decimal.RequireFromString("10.49")))
	require.NotNil(t, out.CalculatedTotal)
	// A self-derived total has nothing to validate against.
	assert.Nil(t, out.TotalAmountValidated)
	assert.Nil(t, out.TotalDifference)
}

func TestReconcileNoItems(t *testing.T) {
	rec := record(nil, "12.00")
	out := newTestEngine().Reconcile(rec)

	assert.Nil(t, out.TotalAmountValidated)
	assert.Nil(t, out.CalculatedTotal)
	assert.Nil(t, out.TotalDifference)
	assert.True(t, out.TotalAmount.Equal(decimal.RequireFromString("12.00")))
}

func TestReconcileDoesNotMutateInput(t *testing.T) {
	rec := record([]string{"8.99"}, "")
	_ = newTestEngine().Reconcile(rec)

	assert.Nil(t, rec.TotalAmount)
	assert.Nil(t, rec.TotalAmountValidated)
	assert.Nil(t, rec.CalculatedTotal)
}

func TestReconcileIdempotent(t *testing.T) {
	eng := newTestEngine()
	once := eng.Reconcile(record([]string{"8.99", "1.50"}, "10.49"))
	twice := eng.Reconcile(once)

	assert.Equal(t, once, twice)
}
