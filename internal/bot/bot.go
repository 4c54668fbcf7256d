package bot

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bilbot/bilbot/constants"
	"github.com/bilbot/bilbot/internal/common"
	"github.com/bilbot/bilbot/internal/export"
	"github.com/bilbot/bilbot/internal/pipeline"
	"github.com/bilbot/bilbot/internal/repository"
)

// Bot wires the chat frontend to the extraction pipeline: it saves incoming
// receipt photos, acknowledges immediately, and reports results when the
// background workers finish.
type Bot struct {
	api      *tgbotapi.BotAPI
	cfg      *common.Config
	users    repository.UserRepository
	receipts repository.ReceiptRepository
	exporter *export.Service
	queue    *pipeline.ProcessorQueue
	limiter  *RateLimiter
	logger   *slog.Logger
}

func New(
	token string,
	cfg *common.Config,
	users repository.UserRepository,
	receipts repository.ReceiptRepository,
	exporter *export.Service,
	proc *pipeline.Processor,
	logger *slog.Logger,
) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}

	b := &Bot{
		api:      api,
		cfg:      cfg,
		users:    users,
		receipts: receipts,
		exporter: exporter,
		limiter:  NewRateLimiter(cfg.RateLimit),
		logger:   logger,
	}
	b.queue = pipeline.NewProcessorQueue(proc, logger,
		pipeline.WithWorkers(cfg.Pipeline.Workers),
		pipeline.WithQueueSize(cfg.Pipeline.QueueSize),
		pipeline.WithProcessTimeout(cfg.Pipeline.Timeout),
		pipeline.WithResultFunc(b.notifyResult),
	)

	logger.Info("bot.authorized", "username", api.Self.UserName)
	return b, nil
}

// Run consumes updates until ctx is cancelled, then drains the queue.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.queue.Shutdown(context.Background())
			b.logger.Info("bot.stopped")
			return
		case update, ok := <-updates:
			if !ok {
				b.queue.Shutdown(context.Background())
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	switch {
	case msg.IsCommand():
		b.handleCommand(ctx, msg)
	case len(msg.Photo) > 0:
		b.handlePhoto(ctx, msg)
	}
}

// notifyResult runs on pipeline worker goroutines when a job finishes.
func (b *Bot) notifyResult(job pipeline.Job, res *pipeline.Result, err error) {
	if err != nil {
		b.reply(job.ChatID, job.MessageID,
			"Sorry, I could not process that receipt. The image is kept, try again later with /retry or send a clearer photo.")
		return
	}

	b.reply(job.ChatID, job.MessageID, res.Narrative)

	if res.AnnotatedPath != "" {
		photo := tgbotapi.NewPhoto(job.ChatID, tgbotapi.FilePath(res.AnnotatedPath))
		photo.ReplyToMessageID = job.MessageID
		if _, err := b.api.Send(photo); err != nil {
			b.logger.Warn("bot.send_annotated_error", "chat_id", job.ChatID, "error", err)
		}
	}

	if res.Status == constants.StatusIncomplete {
		b.reply(job.ChatID, job.MessageID,
			"I saved the receipt but could not extract structured data from it.")
	}
}

func (b *Bot) reply(chatID int64, messageID int, text string) {
	if text == "" {
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if messageID != 0 {
		msg.ReplyToMessageID = messageID
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("bot.send_error", "chat_id", chatID, "error", err)
	}
}
