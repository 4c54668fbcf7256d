package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bilbot/bilbot/constants"
	"github.com/bilbot/bilbot/internal/entity"
	"github.com/bilbot/bilbot/internal/pipeline"
	"github.com/bilbot/bilbot/internal/repository"
)

const helpText = `Send me a photo of a shopping receipt and I will extract the items, prices and total for you.

Commands:
/list - your recent receipts
/export - download all your receipts as a spreadsheet
/retry - reprocess your last unprocessed receipt
/help - this message`

// maxPhotoBytes caps downloads; Telegram compresses photos well below this.
const maxPhotoBytes = 20 << 20

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	b.logger.Info("bot.command",
		"command", msg.Command(),
		"user_id", msg.From.ID,
		"chat_id", msg.Chat.ID,
	)

	switch msg.Command() {
	case "start":
		b.reply(msg.Chat.ID, 0, "Hi! I read shopping receipts.\n\n"+helpText)
	case "help":
		b.reply(msg.Chat.ID, 0, helpText)
	case "list":
		b.handleList(ctx, msg)
	case "export":
		b.handleExport(ctx, msg)
	case "retry":
		b.handleRetry(ctx, msg)
	default:
		b.reply(msg.Chat.ID, msg.MessageID, "Unknown command. Try /help.")
	}
}

func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID

	if ok, wait := b.limiter.Allow(userID); !ok {
		b.reply(msg.Chat.ID, msg.MessageID,
			fmt.Sprintf("Too many receipts at once. Please wait %d seconds and resend.",
				int(wait.Seconds())+1))
		return
	}

	if err := b.users.SaveUser(ctx, &entity.User{
		ID:        userID,
		Username:  msg.From.UserName,
		FirstName: msg.From.FirstName,
		LastName:  msg.From.LastName,
	}); err != nil {
		b.logger.Error("bot.save_user_error", "user_id", userID, "error", err)
	}
	if err := b.users.SaveChat(ctx, &entity.Chat{
		ID:    msg.Chat.ID,
		Type:  msg.Chat.Type,
		Title: msg.Chat.Title,
	}); err != nil {
		b.logger.Error("bot.save_chat_error", "chat_id", msg.Chat.ID, "error", err)
	}

	// Telegram orders photo sizes ascending; the last is the original scale.
	photo := msg.Photo[len(msg.Photo)-1]
	data, err := b.downloadFile(ctx, photo.FileID)
	if err != nil {
		b.logger.Error("bot.photo_download_error", "user_id", userID, "error", err)
		b.reply(msg.Chat.ID, msg.MessageID, "I could not download that photo, please resend it.")
		return
	}

	path := imagePath(b.cfg.Storage.ImageDir, userID, msg.Chat.ID, msg.MessageID, time.Now())
	if err := saveImage(path, data); err != nil {
		b.logger.Error("bot.photo_save_error", "user_id", userID, "path", path, "error", err)
		b.reply(msg.Chat.ID, msg.MessageID, "Something went wrong storing that photo, please resend it.")
		return
	}

	receiptID, err := b.receipts.CreateReceipt(ctx, &repository.CreateReceiptRequest{
		UserID:    userID,
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		ImagePath: path,
	})
	if err != nil {
		b.logger.Error("bot.create_receipt_error", "user_id", userID, "error", err)
		b.reply(msg.Chat.ID, msg.MessageID, "Something went wrong saving that receipt, please resend it.")
		return
	}

	// Acknowledge before processing; extraction takes a while.
	b.reply(msg.Chat.ID, msg.MessageID, "Receipt saved, reading it now...")

	b.enqueue(ctx, pipeline.Job{
		ReceiptID:   receiptID,
		ChatID:      msg.Chat.ID,
		MessageID:   msg.MessageID,
		SubmittedAt: time.Now(),
	})
}

func (b *Bot) enqueue(ctx context.Context, job pipeline.Job) {
	if err := b.queue.Enqueue(ctx, job); err != nil {
		b.logger.Error("bot.enqueue_error", "receipt_id", job.ReceiptID, "error", err)
	}
}

func (b *Bot) handleList(ctx context.Context, msg *tgbotapi.Message) {
	recs, err := b.receipts.ListReceiptsByUser(ctx, msg.From.ID)
	if err != nil {
		b.logger.Error("bot.list_error", "user_id", msg.From.ID, "error", err)
		b.reply(msg.Chat.ID, msg.MessageID, "Could not load your receipts right now.")
		return
	}
	if len(recs) == 0 {
		b.reply(msg.Chat.ID, 0, "No receipts yet. Send me a photo of one!")
		return
	}

	const maxListed = 10
	if len(recs) > maxListed {
		recs = recs[len(recs)-maxListed:]
	}

	var sb strings.Builder
	sb.WriteString("Your recent receipts:\n")
	for _, r := range recs {
		sb.WriteString(fmt.Sprintf("\n#%d %s", r.ID, formatReceiptLine(r)))
	}
	b.reply(msg.Chat.ID, 0, sb.String())
}

func formatReceiptLine(r *entity.Receipt) string {
	var parts []string
	if ts, ok := r.Record.PurchaseTimestamp(); ok {
		parts = append(parts, ts.Format("2006-01-02"))
	} else {
		parts = append(parts, r.CreatedAt.Format("2006-01-02"))
	}
	if r.Record.Store != "" {
		parts = append(parts, r.Record.Store)
	}
	if r.Record.TotalAmount != nil {
		parts = append(parts, constants.CurrencySymbol(r.Record.Currency)+r.Record.TotalAmount.StringFixed(2))
	}
	if r.Status != constants.StatusExtracted {
		parts = append(parts, strings.ToLower(string(r.Status)))
	}
	return strings.Join(parts, " | ")
}

func (b *Bot) handleExport(ctx context.Context, msg *tgbotapi.Message) {
	data, err := b.exporter.ExportReceiptsXLSX(ctx, msg.From.ID)
	if err != nil {
		b.logger.Error("bot.export_error", "user_id", msg.From.ID, "error", err)
		b.reply(msg.Chat.ID, msg.MessageID, "Export failed, please try again later.")
		return
	}

	name := fmt.Sprintf("receipts_%s.xlsx", time.Now().Format("20060102"))
	doc := tgbotapi.NewDocument(msg.Chat.ID, tgbotapi.FileBytes{Name: name, Bytes: data})
	if _, err := b.api.Send(doc); err != nil {
		b.logger.Error("bot.export_send_error", "user_id", msg.From.ID, "error", err)
	}
}

// handleRetry re-runs the newest receipt that never reached EXTRACTED.
func (b *Bot) handleRetry(ctx context.Context, msg *tgbotapi.Message) {
	recs, err := b.receipts.ListReceiptsByUser(ctx, msg.From.ID)
	if err != nil {
		b.logger.Error("bot.retry_list_error", "user_id", msg.From.ID, "error", err)
		b.reply(msg.Chat.ID, msg.MessageID, "Could not load your receipts right now.")
		return
	}
	for i := len(recs) - 1; i >= 0; i-- {
		r := recs[i]
		if r.Status == constants.StatusExtracted || r.Status == constants.StatusProcessing {
			continue
		}
		b.reply(msg.Chat.ID, 0, fmt.Sprintf("Reprocessing receipt #%d...", r.ID))
		b.enqueue(ctx, pipeline.Job{
			ReceiptID:   r.ID,
			ChatID:      msg.Chat.ID,
			MessageID:   r.MessageID,
			SubmittedAt: time.Now(),
		})
		return
	}
	b.reply(msg.Chat.ID, 0, "Nothing to retry, all your receipts are processed.")
}

func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}
