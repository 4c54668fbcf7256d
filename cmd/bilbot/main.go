package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bilbot/bilbot/internal/bot"
	"github.com/bilbot/bilbot/internal/common"
	"github.com/bilbot/bilbot/internal/export"
	"github.com/bilbot/bilbot/internal/pipeline"
	"github.com/bilbot/bilbot/internal/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("bilbot.config_invalid", "error", err)
		os.Exit(1)
	}

	token, err := common.BotToken()
	if err != nil {
		logger.Error("bilbot.token_missing", "error", err,
			"hint", "run setup-token or set BILBOT_TOKEN")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, cfg.Database.Path)
	if err != nil {
		logger.Error("bilbot.db_open_error", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	users := repository.NewUserRepository(db, logger)
	receipts := repository.NewReceiptRepository(db, logger)

	extractor := pipeline.NewExtractor(cfg, logger)
	proc := pipeline.NewProcessor(cfg, receipts, extractor, logger)
	exporter := export.NewService(receipts, logger)

	b, err := bot.New(token, cfg, users, receipts, exporter, proc, logger)
	if err != nil {
		logger.Error("bilbot.bot_init_error", "error", err)
		os.Exit(1)
	}

	logger.Info("bilbot.started",
		"backend", cfg.LLM.Backend,
		"model", cfg.LLM.Model,
		"workers", cfg.Pipeline.Workers,
	)
	b.Run(ctx)
	logger.Info("bilbot.shutdown_complete")
}
