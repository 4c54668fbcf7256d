package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bilbot/bilbot/internal/entity"
	"github.com/bilbot/bilbot/internal/llm"
)

// chatResponse is the non-streaming /api/chat reply shape.
type chatResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// ExtractReceipt implements llm.VisionExtractor against Ollama's /api/chat,
// constraining the output with the receipt schema via the format field.
func (c *Client) ExtractReceipt(ctx context.Context, req llm.ExtractRequest) (llm.RawResult, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"backend", "ollama",
		"model", c.cfg.Model,
		"image_bytes", len(req.ImageJPEG),
		"image_path", req.ImagePath,
	)

	content, body, err := c.chat(ctx, c.cfg.Model, llm.ExtractionPrompt, req.ImageJPEG, llm.BuildReceiptJSONSchema())
	if err != nil {
		c.logger.Error("llm.extract.error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.RawResult{HTTPBody: body}, err
	}

	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"content_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return llm.RawResult{Content: content, HTTPBody: body, Model: c.cfg.Model}, nil
}

// DetectCorners asks the (smaller) corner model for the document quad.
func (c *Client) DetectCorners(ctx context.Context, req llm.ExtractRequest) (entity.DocumentCorners, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.corners.start",
		"req_id", rid,
		"backend", "ollama",
		"model", c.cfg.CornerModel,
		"width", req.Width,
		"height", req.Height,
	)

	content, _, err := c.chat(ctx, c.cfg.CornerModel, llm.CornerPrompt, req.ImageJPEG, llm.BuildCornerJSONSchema())
	if err != nil {
		c.logger.Error("llm.corners.error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.DocumentCorners{}, err
	}

	corners, err := llm.DecodeCorners(content, req.Width, req.Height, c.logger)
	if err != nil {
		c.logger.Error("llm.corners.decode_error",
			"req_id", rid, "error", err, "content", content,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.DocumentCorners{}, err
	}

	c.logger.Info("llm.corners.ok",
		"req_id", rid,
		"min_separation", corners.MinSeparation(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return corners, nil
}

func (c *Client) chat(ctx context.Context, model, prompt string, imageJPEG []byte, schema map[string]any) (string, []byte, error) {
	body := map[string]any{
		"model":  model,
		"stream": false,
		"format": schema,
		"messages": []map[string]any{
			{
				"role":    "system",
				"content": llm.SystemPrompt,
			},
			{
				"role":    "user",
				"content": prompt,
				"images":  []string{base64.StdEncoding.EncodeToString(imageJPEG)},
			},
		},
		"options": map[string]any{
			"num_ctx":     c.cfg.ContextLength,
			"temperature": 0,
		},
	}

	endpoint := strings.TrimRight(c.cfg.Host, "/") + "/api/chat"
	raw, _, err := c.post.PostJSON(ctx, endpoint, body, nil)
	if err != nil {
		return "", raw, fmt.Errorf("ollama chat: %w", err)
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", raw, fmt.Errorf("decode ollama response: %w", err)
	}
	content := strings.TrimSpace(resp.Message.Content)
	if content == "" {
		return "", raw, fmt.Errorf("empty message content in ollama response")
	}
	return content, raw, nil
}
