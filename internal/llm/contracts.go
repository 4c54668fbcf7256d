package llm

import (
	"context"

	"github.com/bilbot/bilbot/internal/entity"
)

// ExtractRequest carries one receipt photo to a vision backend. ImageJPEG is
// the already-normalized, size-capped encoding; Width and Height describe it
// so corner coordinates can be validated against the frame.
type ExtractRequest struct {
	ImagePath string
	ImageJPEG []byte
	Width     int
	Height    int
}

// RawResult is the unparsed model output: Content is the assistant message
// text, HTTPBody the full provider response for debug artifacts.
type RawResult struct {
	Content  string
	HTTPBody []byte
	Model    string
}

// VisionExtractor is the interface the pipeline depends on. Both backends
// implement it: extraction returns whatever the model said (parsing and
// normalization happen downstream), corner detection returns an ordered quad.
type VisionExtractor interface {
	ExtractReceipt(ctx context.Context, req ExtractRequest) (RawResult, error)
	DetectCorners(ctx context.Context, req ExtractRequest) (entity.DocumentCorners, error)
}
