// Command detect-corners asks the vision model for a receipt's corner
// coordinates and writes a visualization next to the input, for comparing
// model-based corner detection against the contour detector.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/bilbot/bilbot/internal/annotate"
	"github.com/bilbot/bilbot/internal/common"
	"github.com/bilbot/bilbot/internal/geometry"
	"github.com/bilbot/bilbot/internal/llm"
	"github.com/bilbot/bilbot/internal/pipeline"
)

func main() {
	var (
		imagePath = flag.String("image", "", "path to the receipt image (required)")
		warp      = flag.Bool("warp", false, "also write the perspective-corrected image")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if *imagePath == "" {
		fmt.Fprintln(os.Stderr, "usage: detect-corners -image <path> [-warp]")
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("detect_corners.config_invalid", "error", err)
		os.Exit(1)
	}

	img, err := llm.LoadImage(*imagePath)
	if err != nil {
		logger.Error("detect_corners.load_error", "path", *imagePath, "error", err)
		os.Exit(1)
	}
	jpeg, w, h, err := llm.EncodeImage(img, cfg.LLM.MaxImageDim)
	if err != nil {
		logger.Error("detect_corners.encode_error", "error", err)
		os.Exit(1)
	}

	extractor := pipeline.NewExtractor(cfg, logger)
	corners, err := extractor.DetectCorners(context.Background(), llm.ExtractRequest{
		ImagePath: *imagePath,
		ImageJPEG: jpeg,
		Width:     w,
		Height:    h,
	})
	if err != nil {
		logger.Error("detect_corners.failed", "error", err)
		os.Exit(1)
	}

	for i, p := range corners.Points() {
		fmt.Printf("%-12s (%.0f, %.0f)\n", [4]string{"top_left", "top_right", "bottom_right", "bottom_left"}[i], p.X, p.Y)
	}

	// The model saw the downscaled frame; visualize on the same scale.
	scaled := imaging.Resize(img, w, h, imaging.Lanczos)
	outPath := derivedPath(*imagePath, "_corners")
	if err := imaging.Save(annotate.VisualizeCorners(scaled, corners), outPath, imaging.JPEGQuality(90)); err != nil {
		logger.Error("detect_corners.save_error", "path", outPath, "error", err)
		os.Exit(1)
	}
	fmt.Printf("visualization: %s\n", outPath)

	if *warp {
		n := geometry.NewNormalizer(geometry.Config{MaxWidth: cfg.LLM.MaxImageDim, PerspectiveCorrect: true}, logger)
		warpPath := derivedPath(*imagePath, "_warped")
		if err := imaging.Save(n.WarpToCorners(img, corners), warpPath, imaging.JPEGQuality(90)); err != nil {
			logger.Error("detect_corners.warp_save_error", "path", warpPath, "error", err)
			os.Exit(1)
		}
		fmt.Printf("warped: %s\n", warpPath)
	}
}

func derivedPath(path, suffix string) string {
	if i := strings.LastIndexByte(path, '.'); i > 0 {
		return path[:i] + suffix + ".jpg"
	}
	return path + suffix + ".jpg"
}
