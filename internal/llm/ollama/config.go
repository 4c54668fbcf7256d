package ollama

import (
	"log/slog"
	"time"

	"github.com/bilbot/bilbot/internal/llm"
)

// Config for the Ollama client.
type Config struct {
	Host          string // default http://localhost:11434
	Model         string // vision model for receipt extraction
	CornerModel   string // smaller model for corner detection; falls back to Model
	ContextLength int    // num_ctx passed through to the model
	Timeout       time.Duration

	// Artifacts, when set, receives a debug copy of every outgoing request.
	Artifacts *llm.ArtifactStore
}

type Client struct {
	cfg    Config
	post   *llm.Poster
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "qwen2.5vl:32b"
	}
	if cfg.CornerModel == "" {
		cfg.CornerModel = cfg.Model
	}
	if cfg.ContextLength <= 0 {
		cfg.ContextLength = 8192
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
