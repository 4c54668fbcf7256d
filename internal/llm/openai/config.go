package openai

import (
	"log/slog"
	"os"
	"time"

	"github.com/bilbot/bilbot/internal/llm"
)

// Config for the OpenAI client.
type Config struct {
	APIKey  string // if empty, falls back to env OPENAI_API_KEY
	BaseURL string // default https://api.openai.com/v1
	Model   string // e.g. "gpt-4o"
	Timeout time.Duration

	// Artifacts, when set, receives a debug copy of every outgoing request.
	Artifacts *llm.ArtifactStore
}

type Client struct {
	cfg    Config
	post   *llm.Poster
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		post:   llm.NewPoster(cfg.Timeout, cfg.Artifacts, logger),
		logger: logger,
	}
}
