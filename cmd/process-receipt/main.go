// Command process-receipt runs the extraction pipeline on a single image
// file without the chat bot: useful for tuning prompts and debugging
// extraction offline.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bilbot/bilbot/constants"
	"github.com/bilbot/bilbot/internal/common"
	"github.com/bilbot/bilbot/internal/entity"
	"github.com/bilbot/bilbot/internal/pipeline"
	"github.com/bilbot/bilbot/internal/repository"
)

func main() {
	var (
		imagePath = flag.String("image", "", "path to the receipt image (required)")
		userID    = flag.Int64("user", 1, "user id to attribute the receipt to")
		asJSON    = flag.Bool("json", false, "print the full record as JSON")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if *imagePath == "" {
		fmt.Fprintln(os.Stderr, "usage: process-receipt -image <path> [-user <id>] [-json]")
		os.Exit(2)
	}
	ext := constants.NormalizeExt(filepath.Ext(*imagePath))
	if !constants.IsImageExt(ext) {
		fmt.Fprintf(os.Stderr, "unsupported image extension %q\n", ext)
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("process_receipt.config_invalid", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := repository.Open(ctx, cfg.Database.Path)
	if err != nil {
		logger.Error("process_receipt.db_open_error", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	users := repository.NewUserRepository(db, logger)
	if err := users.SaveUser(ctx, &entity.User{ID: *userID, Username: "cli"}); err != nil {
		logger.Error("process_receipt.save_user_error", "error", err)
		os.Exit(1)
	}
	receipts := repository.NewReceiptRepository(db, logger)

	id, err := receipts.CreateReceipt(ctx, &repository.CreateReceiptRequest{
		UserID:    *userID,
		ImagePath: *imagePath,
	})
	if err != nil {
		logger.Error("process_receipt.create_error", "error", err)
		os.Exit(1)
	}

	proc := pipeline.NewProcessor(cfg, receipts, pipeline.NewExtractor(cfg, logger), logger)
	res, err := proc.ProcessReceipt(ctx, id)
	if err != nil {
		logger.Error("process_receipt.failed", "receipt_id", id, "error", err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(res.Record)
	} else {
		fmt.Println(res.Narrative)
		if res.AnnotatedPath != "" {
			fmt.Printf("annotated image: %s\n", res.AnnotatedPath)
		}
	}
	fmt.Printf("receipt #%d: %s\n", id, res.Status)
}
