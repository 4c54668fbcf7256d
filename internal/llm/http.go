package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Poster posts JSON bodies to provider endpoints. It owns the HTTP client,
// logs both sides of the exchange under a shared request id, and when given
// an ArtifactStore keeps a debug copy of every outgoing request so a failed
// extraction can be replayed offline.
type Poster struct {
	client    *http.Client
	artifacts *ArtifactStore
	logger    *slog.Logger
}

func NewPoster(timeout time.Duration, artifacts *ArtifactStore, logger *slog.Logger) *Poster {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poster{
		client:    &http.Client{Timeout: timeout},
		artifacts: artifacts,
		logger:    logger,
	}
}

// PostJSON sends body as JSON with optional extra headers and returns the
// raw response body and status code. A non-2xx reply returns the body
// alongside the error so callers can persist it.
func (p *Poster) PostJSON(ctx context.Context, url string, body any, headers map[string]string) ([]byte, int, error) {
	reqID := uuid.New().String()
	start := time.Now()

	bs, err := json.Marshal(body)
	if err != nil {
		p.logger.Error("llm.http.encode_error", "req_id", reqID, "error", err)
		return nil, 0, fmt.Errorf("encode json: %w", err)
	}
	if p.artifacts != nil {
		p.artifacts.SaveRequest(bs)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		p.logger.Error("llm.http.build_request_error", "req_id", reqID, "error", err)
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	p.logger.Info("llm.http.request",
		"req_id", reqID,
		"url", url,
		"content_length", len(bs),
	)

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Error("llm.http.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			p.logger.Warn("llm.http.response_body_close_error", "req_id", reqID, "error", cerr)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)

	p.logger.Info("llm.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return raw, resp.StatusCode, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return raw, resp.StatusCode, nil
}
