package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/bilbot/bilbot/constants"
	"github.com/bilbot/bilbot/internal/annotate"
	"github.com/bilbot/bilbot/internal/common"
	"github.com/bilbot/bilbot/internal/entity"
	"github.com/bilbot/bilbot/internal/geometry"
	"github.com/bilbot/bilbot/internal/llm"
	"github.com/bilbot/bilbot/internal/parser"
	"github.com/bilbot/bilbot/internal/reconcile"
	"github.com/bilbot/bilbot/internal/repository"
)

// Result is what one pipeline run hands back to the caller: the reconciled
// record, the terminal status, and the review artifacts.
type Result struct {
	ReceiptID     int64
	Record        *entity.ReceiptRecord
	Status        constants.ProcessingStatus
	Narrative     string
	AnnotatedPath string
}

// Processor runs the extraction pipeline for one stored receipt photo:
// normalize geometry, query the vision model, parse, reconcile, persist,
// and render the review annotation.
type Processor struct {
	cfg        common.PipelineConfig
	maxImgDim  int
	dataDir    string
	receipts   repository.ReceiptRepository
	normalizer *geometry.Normalizer
	extractor  llm.VisionExtractor
	parser     *parser.Parser
	reconciler *reconcile.Engine
	annotator  *annotate.Annotator
	artifacts  *llm.ArtifactStore
	logger     *slog.Logger
}

func NewProcessor(
	cfg *common.Config,
	receipts repository.ReceiptRepository,
	extractor llm.VisionExtractor,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		cfg:       cfg.Pipeline,
		maxImgDim: cfg.LLM.MaxImageDim,
		dataDir:   cfg.Storage.DataDir,
		receipts:  receipts,
		normalizer: geometry.NewNormalizer(geometry.Config{
			MaxWidth:           cfg.LLM.MaxImageDim,
			PerspectiveCorrect: cfg.Pipeline.PerspectiveCorrect,
		}, logger),
		extractor:  extractor,
		parser:     parser.New(logger),
		reconciler: reconcile.New(cfg.Pipeline.TotalTolerance, logger),
		annotator: annotate.New(annotate.Config{
			OverlapThreshold:       cfg.Pipeline.OverlapThreshold,
			DetectionRateThreshold: cfg.Pipeline.DetectionRateThreshold,
		}, logger),
		artifacts: llm.NewArtifactStore(cfg.Storage.DataDir, logger),
		logger:    logger,
	}
}

// ProcessReceipt runs the pipeline for a stored receipt. The receipt ends in
// EXTRACTED when any structured data came out, INCOMPLETE otherwise; the
// image and row are kept either way so a retry stays possible.
func (p *Processor) ProcessReceipt(ctx context.Context, receiptID int64) (*Result, error) {
	rid := uuid.New().String()
	start := time.Now()
	p.logger.Info("pipeline.process.start", "req_id", rid, "receipt_id", receiptID)

	stored, err := p.receipts.GetReceipt(ctx, receiptID)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(stored.ImagePath); err != nil {
		p.logger.Error("pipeline.image_missing", "req_id", rid, "receipt_id", receiptID, "path", stored.ImagePath)
		return nil, common.NewAppError("IMAGE_NOT_FOUND", stored.ImagePath, common.ErrImageNotFound)
	}

	if err := p.receipts.UpdateStatus(ctx, receiptID, constants.StatusProcessing); err != nil {
		return nil, err
	}

	img, err := llm.LoadImage(stored.ImagePath)
	if err != nil {
		_ = p.receipts.UpdateStatus(ctx, receiptID, constants.StatusIncomplete)
		return nil, common.NewAppError("IMAGE_DECODE_ERROR", stored.ImagePath, err)
	}

	norm := p.normalizer.Normalize(img)
	jpeg, w, h, err := llm.EncodeImage(norm.Image, p.maxImgDim)
	if err != nil {
		_ = p.receipts.UpdateStatus(ctx, receiptID, constants.StatusIncomplete)
		return nil, common.NewAppError("IMAGE_ENCODE_ERROR", stored.ImagePath, err)
	}

	raw, err := p.extractor.ExtractReceipt(ctx, llm.ExtractRequest{
		ImagePath: stored.ImagePath,
		ImageJPEG: jpeg,
		Width:     w,
		Height:    h,
	})
	if err != nil {
		if len(raw.HTTPBody) > 0 {
			p.artifacts.Save(raw.HTTPBody, "")
		}
		_ = p.receipts.UpdateStatus(ctx, receiptID, constants.StatusIncomplete)
		p.logger.Error("pipeline.process.extraction_failed",
			"req_id", rid, "receipt_id", receiptID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, common.NewAppError("EXTRACTION_ERROR", "processing incomplete", common.ErrExtraction)
	}
	p.artifacts.Save(raw.HTTPBody, raw.Content)

	record := p.parser.Parse(raw.Content)
	record = p.reconciler.Reconcile(record)

	status := constants.StatusExtracted
	if len(record.Items) == 0 && record.TotalAmount == nil {
		status = constants.StatusIncomplete
	}
	if err := p.receipts.UpdateReceiptExtraction(ctx, receiptID, record, status); err != nil {
		return nil, err
	}

	res := &Result{
		ReceiptID: receiptID,
		Record:    record,
		Status:    status,
		Narrative: p.annotator.Narrative(record),
	}
	if p.cfg.Annotate && status == constants.StatusExtracted {
		res.AnnotatedPath = p.writeAnnotated(norm.Image, record, receiptID)
	}

	p.logger.Info("pipeline.process.ok",
		"req_id", rid,
		"receipt_id", receiptID,
		"status", string(status),
		"items", len(record.Items),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// writeAnnotated renders and stores the review image. Failures only cost the
// artifact, never the pipeline run.
func (p *Processor) writeAnnotated(img image.Image, record *entity.ReceiptRecord, receiptID int64) string {
	dir := filepath.Join(p.dataDir, "annotated")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		p.logger.Warn("pipeline.annotate.mkdir_error", "dir", dir, "error", err)
		return ""
	}
	out := p.annotator.Annotate(img, record)
	path := filepath.Join(dir, fmt.Sprintf("receipt_%d_annotated.jpg", receiptID))
	if err := imaging.Save(out, path, imaging.JPEGQuality(90)); err != nil {
		p.logger.Warn("pipeline.annotate.save_error", "path", path, "error", err)
		return ""
	}
	return path
}
