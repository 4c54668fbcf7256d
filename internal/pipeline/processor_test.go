package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilbot/bilbot/constants"
	"github.com/bilbot/bilbot/internal/common"
	"github.com/bilbot/bilbot/internal/entity"
	"github.com/bilbot/bilbot/internal/llm"
	"github.com/bilbot/bilbot/internal/repository"
)

type fakeExtractor struct {
	content string
	err     error
}

func (f *fakeExtractor) ExtractReceipt(context.Context, llm.ExtractRequest) (llm.RawResult, error) {
	if f.err != nil {
		return llm.RawResult{HTTPBody: []byte(`{"error": "boom"}`)}, f.err
	}
	return llm.RawResult{Content: f.content, HTTPBody: []byte(`{"ok": true}`), Model: "fake"}, nil
}

func (f *fakeExtractor) DetectCorners(context.Context, llm.ExtractRequest) (entity.DocumentCorners, error) {
	return entity.DocumentCorners{}, errors.New("not implemented")
}

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	dataDir := t.TempDir()
	return &common.Config{
		Storage: common.StorageConfig{ImageDir: filepath.Join(dataDir, "images"), DataDir: dataDir},
		LLM:     common.LLMConfig{MaxImageDim: 1200},
		Pipeline: common.PipelineConfig{
			TotalTolerance:         0.01,
			OverlapThreshold:       0.30,
			DetectionRateThreshold: 0.70,
			Annotate:               true,
			PerspectiveCorrect:     false,
		},
	}
}

func newTestPipeline(t *testing.T, extractor llm.VisionExtractor) (*Processor, repository.ReceiptRepository, *common.Config) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig(t)

	db, err := repository.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	users := repository.NewUserRepository(db, logger)
	require.NoError(t, users.SaveUser(context.Background(), &entity.User{ID: 42}))
	receipts := repository.NewReceiptRepository(db, logger)

	return NewProcessor(cfg, receipts, extractor, logger), receipts, cfg
}

func writeTestImage(t *testing.T) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 400, 600))
	for y := 0; y < 600; y++ {
		for x := 0; x < 400; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 235, G: 235, B: 235, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "receipt.jpg")
	require.NoError(t, imaging.Save(img, path))
	return path
}

func createReceipt(t *testing.T, receipts repository.ReceiptRepository, imagePath string) int64 {
	t.Helper()
	id, err := receipts.CreateReceipt(context.Background(), &repository.CreateReceiptRequest{
		UserID:    42,
		ImagePath: imagePath,
	})
	require.NoError(t, err)
	return id
}

func TestProcessReceiptHappyPath(t *testing.T) {
	extractor := &fakeExtractor{content: `{
		"items": [
			{"item": "Burger", "price": 8.99, "bbox_2d": [10, 40, 380, 70]},
			{"item": "Fries", "price": 1.50, "bbox_2d": [10, 80, 380, 110]}
		],
		"store_name": "Joe's Diner",
		"purchase_date": "2025-05-18",
		"currency": "USD",
		"total_amount": 10.49
	}`}
	proc, receipts, _ := newTestPipeline(t, extractor)
	id := createReceipt(t, receipts, writeTestImage(t))

	res, err := proc.ProcessReceipt(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, constants.StatusExtracted, res.Status)
	require.Len(t, res.Record.Items, 2)
	require.NotNil(t, res.Record.TotalAmountValidated)
	assert.True(t, *res.Record.TotalAmountValidated)
	assert.Contains(t, res.Narrative, "matches")

	// Annotated review image was written.
	require.NotEmpty(t, res.AnnotatedPath)
	_, err = os.Stat(res.AnnotatedPath)
	assert.NoError(t, err)

	// Persisted state reflects the run.
	stored, err := receipts.GetReceipt(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusExtracted, stored.Status)
	assert.Equal(t, "Joe's Diner", stored.Record.Store)
	assert.Len(t, stored.Record.Items, 2)
}

func TestProcessReceiptUnparseableGoesIncomplete(t *testing.T) {
	extractor := &fakeExtractor{content: "I cannot read this receipt, sorry."}
	proc, receipts, _ := newTestPipeline(t, extractor)
	id := createReceipt(t, receipts, writeTestImage(t))

	res, err := proc.ProcessReceipt(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusIncomplete, res.Status)
	assert.Empty(t, res.AnnotatedPath)

	stored, err := receipts.GetReceipt(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusIncomplete, stored.Status)
}

func TestProcessReceiptExtractionFailure(t *testing.T) {
	extractor := &fakeExtractor{err: errors.New("model offline")}
	proc, receipts, _ := newTestPipeline(t, extractor)
	id := createReceipt(t, receipts, writeTestImage(t))

	_, err := proc.ProcessReceipt(context.Background(), id)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExtraction)

	stored, err := receipts.GetReceipt(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusIncomplete, stored.Status)
}

func TestProcessReceiptMissingImage(t *testing.T) {
	proc, receipts, _ := newTestPipeline(t, &fakeExtractor{content: "{}"})
	id := createReceipt(t, receipts, filepath.Join(t.TempDir(), "gone.jpg"))

	_, err := proc.ProcessReceipt(context.Background(), id)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrImageNotFound)
}

func TestQueueProcessesJobs(t *testing.T) {
	extractor := &fakeExtractor{content: `{"items": [{"item": "Coffee", "price": 3.20}]}`}
	proc, receipts, _ := newTestPipeline(t, extractor)
	id := createReceipt(t, receipts, writeTestImage(t))

	results := make(chan *Result, 1)
	q := NewProcessorQueue(proc, slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithWorkers(1),
		WithQueueSize(4),
		WithProcessTimeout(30*time.Second),
		WithResultFunc(func(job Job, res *Result, err error) {
			require.NoError(t, err)
			results <- res
		}),
	)

	require.NoError(t, q.Enqueue(context.Background(), Job{ReceiptID: id, SubmittedAt: time.Now()}))

	select {
	case res := <-results:
		assert.Equal(t, constants.StatusExtracted, res.Status)
		assert.Len(t, res.Record.Items, 1)
	case <-time.After(30 * time.Second):
		t.Fatal("timed out waiting for queue result")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)
}

func TestQueueShutdownIdempotent(t *testing.T) {
	proc, _, _ := newTestPipeline(t, &fakeExtractor{content: "{}"})
	q := NewProcessorQueue(proc, slog.New(slog.NewTextHandler(io.Discard, nil)), WithWorkers(1))

	ctx := context.Background()
	q.Shutdown(ctx)
	q.Shutdown(ctx)
	assert.NoError(t, q.Enqueue(ctx, Job{ReceiptID: 1}))
}
