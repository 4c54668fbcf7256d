package pipeline

import (
	"log/slog"

	"github.com/bilbot/bilbot/internal/common"
	"github.com/bilbot/bilbot/internal/llm"
	"github.com/bilbot/bilbot/internal/llm/ollama"
	"github.com/bilbot/bilbot/internal/llm/openai"
)

// NewExtractor builds the configured vision backend. Config validation has
// already rejected unknown backends, so this defaults to Ollama.
func NewExtractor(cfg *common.Config, logger *slog.Logger) llm.VisionExtractor {
	artifacts := llm.NewArtifactStore(cfg.Storage.DataDir, logger)
	if cfg.LLM.Backend == "openai" {
		return openai.NewClient(openai.Config{
			APIKey:    cfg.LLM.OpenAIKey,
			BaseURL:   cfg.LLM.OpenAIBaseURL,
			Model:     cfg.LLM.OpenAIModel,
			Timeout:   cfg.LLM.Timeout,
			Artifacts: artifacts,
		}, logger)
	}
	return ollama.NewClient(ollama.Config{
		Host:          cfg.LLM.OllamaHost,
		Model:         cfg.LLM.Model,
		CornerModel:   cfg.LLM.CornerModel,
		ContextLength: cfg.LLM.ContextLength,
		Timeout:       cfg.LLM.Timeout,
		Artifacts:     artifacts,
	}, logger)
}
