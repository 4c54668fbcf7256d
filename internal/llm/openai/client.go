package openai

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

// ExtractReceipt implements llm.VisionExtractor using vision chat/completions
// with the image attached as a data URL. Temperature is pinned to zero: the
// task is transcription, not generation.
func (c *Client) ExtractReceipt(ctx context.Context, req llm.ExtractRequest) (llm.RawResult, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"backend", "openai",
		"model", c.cfg.Model,
		"image_bytes", len(req.ImageJPEG),
		"image_path", req.ImagePath,
	)

	prompt := llm.ExtractionPrompt + "\n\nJSON Schema:\n" + mustJSON(llm.BuildReceiptJSONSchema())
	content, body, err := c.chat(ctx, prompt, req.ImageJPEG)
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

// DetectCorners asks the same model for the document quad. OpenAI has no
// separate small-model tier for this, so the extraction model is reused.
func (c *Client) DetectCorners(ctx context.Context, req llm.ExtractRequest) (entity.DocumentCorners, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.corners.start",
		"req_id", rid,
		"backend", "openai",
		"model", c.cfg.Model,
		"width", req.Width,
		"height", req.Height,
	)

	content, _, err := c.chat(ctx, llm.CornerPrompt, req.ImageJPEG)
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

func (c *Client) chat(ctx context.Context, prompt string, imageJPEG []byte) (string, []byte, error) {
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(imageJPEG)
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     0,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{
				"role":    "system",
				"content": llm.SystemPrompt,
			},
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": prompt},
					{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
				},
			},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, _, err := c.post.PostJSON(ctx, endpoint, body, headers)
	if err != nil {
		return "", raw, fmt.Errorf("openai chat: %w", err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", raw, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return "", raw, fmt.Errorf("no choices in openai response")
	}
	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	if content == "" {
		return "", raw, fmt.Errorf("empty message content in openai response")
	}
	return content, raw, nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
