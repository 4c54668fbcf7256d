package repository

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilbot/bilbot/constants"
	"github.com/bilbot/bilbot/internal/entity"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSaveUserUpsert(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db, testLogger())
	ctx := context.Background()

	require.NoError(t, repo.SaveUser(ctx, &entity.User{ID: 42, Username: "ana", FirstName: "Ana"}))
	require.NoError(t, repo.SaveUser(ctx, &entity.User{ID: 42, Username: "ana_b", FirstName: "Ana", LastName: "B"}))

	var username, lastName string
	require.NoError(t, db.QueryRow(`SELECT username, last_name FROM users WHERE id = 42`).Scan(&username, &lastName))
	assert.Equal(t, "ana_b", username)
	assert.Equal(t, "B", lastName)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSaveChat(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db, testLogger())
	require.NoError(t, repo.SaveChat(context.Background(), &entity.Chat{ID: -100, Type: "group", Title: "household"}))
}

func seedUser(t *testing.T, db *sql.DB, id int64) {
	t.Helper()
	require.NoError(t, NewUserRepository(db, testLogger()).SaveUser(context.Background(), &entity.User{ID: id, Username: "u"}))
}

func TestCreateReceiptLifecycle(t *testing.T) {
	db := testDB(t)
	repo := NewReceiptRepository(db, testLogger())
	ctx := context.Background()
	seedUser(t, db, 42)

	id, err := repo.CreateReceipt(ctx, &CreateReceiptRequest{
		UserID:    42,
		MessageID: 7,
		ImagePath: "data/images/2025/05/18/receipt_42_42_7_1747607400.jpg",
	})
	require.NoError(t, err)
	require.Positive(t, id)

	got, err := repo.GetReceipt(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusSaved, got.Status)
	// No chat for CLI submissions; the column is NULL and reads back as 0.
	assert.Zero(t, got.ChatID)
	assert.Empty(t, got.Record.Items)

	require.NoError(t, repo.UpdateStatus(ctx, id, constants.StatusProcessing))
	got, err = repo.GetReceipt(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusProcessing, got.Status)
}

func TestUpdateReceiptExtraction(t *testing.T) {
	db := testDB(t)
	repo := NewReceiptRepository(db, testLogger())
	ctx := context.Background()
	seedUser(t, db, 42)

	id, err := repo.CreateReceipt(ctx, &CreateReceiptRequest{UserID: 42, ImagePath: "x.jpg"})
	require.NoError(t, err)

	total := decimal.RequireFromString("10.49")
	valid := true
	date := time.Date(2025, 5, 18, 0, 0, 0, 0, time.UTC)
	tod := time.Date(0, 1, 1, 22, 30, 0, 0, time.UTC)
	rec := &entity.ReceiptRecord{
		Items: []entity.ReceiptItem{
			{Name: "Burger", Price: decimal.RequireFromString("8.99"),
				BoundingBox: &entity.BoundingBox{X1: 10, Y1: 40, X2: 580, Y2: 70}},
			{Name: "Fries", Price: decimal.RequireFromString("1.50")},
		},
		Store:                "Joe's Diner",
		PaymentMethod:        "cash",
		Currency:             "USD",
		PurchaseDate:         &date,
		PurchaseTime:         &tod,
		TotalAmount:          &total,
		TotalAmountValidated: &valid,
	}
	require.NoError(t, repo.UpdateReceiptExtraction(ctx, id, rec, constants.StatusExtracted))

	got, err := repo.GetReceipt(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusExtracted, got.Status)
	assert.Equal(t, "Joe's Diner", got.Record.Store)
	assert.Equal(t, "USD", got.Record.Currency)
	require.NotNil(t, got.Record.TotalAmount)
	assert.True(t, got.Record.TotalAmount.Equal(total))
	require.NotNil(t, got.Record.TotalAmountValidated)
	assert.True(t, *got.Record.TotalAmountValidated)

	require.Len(t, got.Record.Items, 2)
	assert.Equal(t, "Burger", got.Record.Items[0].Name)
	require.NotNil(t, got.Record.Items[0].BoundingBox)
	assert.Equal(t, 580, got.Record.Items[0].BoundingBox.X2)
	assert.Nil(t, got.Record.Items[1].BoundingBox)

	ts, ok := got.Record.PurchaseTimestamp()
	require.True(t, ok)
	assert.Equal(t, 22, ts.Hour())
	assert.Equal(t, 30, ts.Minute())
}

func TestUpdateReceiptExtractionReplacesItems(t *testing.T) {
	db := testDB(t)
	repo := NewReceiptRepository(db, testLogger())
	ctx := context.Background()
	seedUser(t, db, 42)

	id, err := repo.CreateReceipt(ctx, &CreateReceiptRequest{UserID: 42, ImagePath: "x.jpg"})
	require.NoError(t, err)

	first := &entity.ReceiptRecord{Items: []entity.ReceiptItem{
		{Name: "A", Price: decimal.RequireFromString("1.00")},
		{Name: "B", Price: decimal.RequireFromString("2.00")},
	}}
	require.NoError(t, repo.UpdateReceiptExtraction(ctx, id, first, constants.StatusExtracted))

	second := &entity.ReceiptRecord{Items: []entity.ReceiptItem{
		{Name: "C", Price: decimal.RequireFromString("3.00")},
	}}
	require.NoError(t, repo.UpdateReceiptExtraction(ctx, id, second, constants.StatusExtracted))

	got, err := repo.GetReceipt(ctx, id)
	require.NoError(t, err)
	require.Len(t, got.Record.Items, 1)
	assert.Equal(t, "C", got.Record.Items[0].Name)
}

func TestListReceiptsByUser(t *testing.T) {
	db := testDB(t)
	repo := NewReceiptRepository(db, testLogger())
	ctx := context.Background()
	seedUser(t, db, 1)
	seedUser(t, db, 2)

	for i := 0; i < 3; i++ {
		_, err := repo.CreateReceipt(ctx, &CreateReceiptRequest{UserID: 1, ImagePath: "a.jpg"})
		require.NoError(t, err)
	}
	_, err := repo.CreateReceipt(ctx, &CreateReceiptRequest{UserID: 2, ImagePath: "b.jpg"})
	require.NoError(t, err)

	mine, err := repo.ListReceiptsByUser(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, mine, 3)

	theirs, err := repo.ListReceiptsByUser(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, theirs, 1)
}

func TestGetReceiptNotFound(t *testing.T) {
	db := testDB(t)
	repo := NewReceiptRepository(db, testLogger())
	_, err := repo.GetReceipt(context.Background(), 999)
	assert.Error(t, err)
}

func TestUpdateStatusNotFound(t *testing.T) {
	db := testDB(t)
	repo := NewReceiptRepository(db, testLogger())
	err := repo.UpdateStatus(context.Background(), 999, constants.StatusExtracted)
	assert.Error(t, err)
}
