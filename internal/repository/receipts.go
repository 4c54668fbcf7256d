package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bilbot/bilbot/constants"
	"github.com/bilbot/bilbot/internal/common"
	"github.com/bilbot/bilbot/internal/entity"
)

// CreateReceiptRequest wraps the provenance of a freshly saved photo.
type CreateReceiptRequest struct {
	UserID    int64
	ChatID    int64
	MessageID int
	ImagePath string
}

type ReceiptRepository interface {
	// CreateReceipt registers a stored photo in status SAVED and returns its id.
	CreateReceipt(ctx context.Context, req *CreateReceiptRequest) (int64, error)

	// UpdateStatus moves a receipt through the processing lifecycle.
	UpdateStatus(ctx context.Context, id int64, status constants.ProcessingStatus) error

	// UpdateReceiptExtraction persists the extraction result: header fields on
	// the receipt row, items replaced wholesale.
	UpdateReceiptExtraction(ctx context.Context, id int64, rec *entity.ReceiptRecord, status constants.ProcessingStatus) error

	// GetReceipt loads one receipt with its items.
	GetReceipt(ctx context.Context, id int64) (*entity.Receipt, error)

	// ListReceiptsByUser returns a user's receipts, oldest first, with items.
	ListReceiptsByUser(ctx context.Context, userID int64) ([]*entity.Receipt, error)
}

type receiptRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewReceiptRepository(db *sql.DB, logger *slog.Logger) ReceiptRepository {
	return &receiptRepository{db: db, logger: logger}
}

func (r *receiptRepository) CreateReceipt(ctx context.Context, req *CreateReceiptRequest) (int64, error) {
	const q = `
INSERT INTO receipts (user_id, chat_id, message_id, image_path, status)
VALUES (?, ?, ?, ?, ?)`
	// ChatID 0 means "no chat" (CLI submissions); NULL keeps the chats FK happy.
	var chatID any
	if req.ChatID != 0 {
		chatID = req.ChatID
	}
	res, err := r.db.ExecContext(ctx, q, req.UserID, chatID, req.MessageID, req.ImagePath, string(constants.StatusSaved))
	if err != nil {
		r.logger.Error("repository.create_receipt_error", "user_id", req.UserID, "error", err)
		return 0, common.NewAppError("DATABASE_ERROR", "create receipt", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, common.NewAppError("DATABASE_ERROR", "receipt id", err)
	}
	r.logger.Info("repository.receipt_created", "receipt_id", id, "user_id", req.UserID, "image_path", req.ImagePath)
	return id, nil
}

func (r *receiptRepository) UpdateStatus(ctx context.Context, id int64, status constants.ProcessingStatus) error {
	const q = `UPDATE receipts SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, string(status), id)
	if err != nil {
		return common.NewAppError("DATABASE_ERROR", "update status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NewAppError("NOT_FOUND", "update status", common.ErrNotFound)
	}
	return nil
}

func (r *receiptRepository) UpdateReceiptExtraction(ctx context.Context, id int64, rec *entity.ReceiptRecord, status constants.ProcessingStatus) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return common.NewAppError("DATABASE_ERROR", "begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	var purchaseAt any
	if ts, ok := rec.PurchaseTimestamp(); ok {
		purchaseAt = ts.UTC()
	}
	var total any
	if rec.TotalAmount != nil {
		total = rec.TotalAmount.String()
	}
	var validated any
	if rec.TotalAmountValidated != nil {
		validated = *rec.TotalAmountValidated
	}

	const q = `
UPDATE receipts SET
	store_name = ?, purchase_at = ?, payment_method = ?, currency = ?,
	total_amount = ?, total_validated = ?, status = ?,
	updated_at = CURRENT_TIMESTAMP
WHERE id = ?`
	res, err := tx.ExecContext(ctx, q,
		rec.Store, purchaseAt, rec.PaymentMethod, rec.Currency,
		total, validated, string(status), id)
	if err != nil {
		return common.NewAppError("DATABASE_ERROR", "update receipt", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NewAppError("NOT_FOUND", "update receipt", common.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM receipt_items WHERE receipt_id = ?`, id); err != nil {
		return common.NewAppError("DATABASE_ERROR", "clear items", err)
	}
	const qi = `
INSERT INTO receipt_items (receipt_id, position, name, price, bbox_x1, bbox_y1, bbox_x2, bbox_y2)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	for i, item := range rec.Items {
		var x1, y1, x2, y2 any
		if b := item.BoundingBox; b != nil {
			x1, y1, x2, y2 = b.X1, b.Y1, b.X2, b.Y2
		}
		if _, err := tx.ExecContext(ctx, qi, id, i, item.Name, item.Price.String(), x1, y1, x2, y2); err != nil {
			return common.NewAppError("DATABASE_ERROR", "insert item", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return common.NewAppError("DATABASE_ERROR", "commit", err)
	}
	r.logger.Info("repository.receipt_updated",
		"receipt_id", id, "status", string(status), "items", len(rec.Items))
	return nil
}

func (r *receiptRepository) GetReceipt(ctx context.Context, id int64) (*entity.Receipt, error) {
	const q = `
SELECT id, user_id, COALESCE(chat_id, 0), message_id, image_path, status,
	store_name, purchase_at, payment_method, currency, total_amount,
	total_validated, created_at, updated_at
FROM receipts WHERE id = ?`
	rec, err := scanReceipt(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, common.NewAppError("NOT_FOUND", "get receipt", common.ErrNotFound)
	}
	if err != nil {
		return nil, common.NewAppError("DATABASE_ERROR", "get receipt", err)
	}
	if err := r.loadItems(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *receiptRepository) ListReceiptsByUser(ctx context.Context, userID int64) ([]*entity.Receipt, error) {
	const q = `
SELECT id, user_id, COALESCE(chat_id, 0), message_id, image_path, status,
	store_name, purchase_at, payment_method, currency, total_amount,
	total_validated, created_at, updated_at
FROM receipts WHERE user_id = ? ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, common.NewAppError("DATABASE_ERROR", "list receipts", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*entity.Receipt
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, common.NewAppError("DATABASE_ERROR", "scan receipt", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError("DATABASE_ERROR", "list receipts", err)
	}
	for _, rec := range out {
		if err := r.loadItems(ctx, rec); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (*entity.Receipt, error) {
	var (
		rec        entity.Receipt
		status     string
		purchaseAt sql.NullTime
		total      sql.NullString
		validated  sql.NullBool
	)
	err := row.Scan(&rec.ID, &rec.UserID, &rec.ChatID, &rec.MessageID, &rec.ImagePath, &status,
		&rec.Record.Store, &purchaseAt, &rec.Record.PaymentMethod, &rec.Record.Currency,
		&total, &validated, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.Status = constants.ProcessingStatus(status)
	if purchaseAt.Valid {
		t := purchaseAt.Time
		rec.Record.PurchaseDate = &t
		tod := time.Date(0, 1, 1, t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
		if t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 {
			rec.Record.PurchaseTime = &tod
		}
	}
	if total.Valid {
		d, err := decimal.NewFromString(total.String)
		if err == nil {
			rec.Record.TotalAmount = &d
		}
	}
	if validated.Valid {
		v := validated.Bool
		rec.Record.TotalAmountValidated = &v
	}
	return &rec, nil
}

func (r *receiptRepository) loadItems(ctx context.Context, rec *entity.Receipt) error {
	const q = `
SELECT name, price, bbox_x1, bbox_y1, bbox_x2, bbox_y2
FROM receipt_items WHERE receipt_id = ? ORDER BY position`
	rows, err := r.db.QueryContext(ctx, q, rec.ID)
	if err != nil {
		return common.NewAppError("DATABASE_ERROR", "load items", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			item           entity.ReceiptItem
			price          string
			x1, y1, x2, y2 sql.NullInt64
		)
		if err := rows.Scan(&item.Name, &price, &x1, &y1, &x2, &y2); err != nil {
			return common.NewAppError("DATABASE_ERROR", "scan item", err)
		}
		if d, err := decimal.NewFromString(price); err == nil {
			item.Price = d
		}
		if x1.Valid && y1.Valid && x2.Valid && y2.Valid {
			item.BoundingBox = &entity.BoundingBox{
				X1: int(x1.Int64), Y1: int(y1.Int64), X2: int(x2.Int64), Y2: int(y2.Int64),
			}
		}
		rec.Record.Items = append(rec.Record.Items, item)
	}
	return rows.Err()
}
