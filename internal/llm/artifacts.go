package llm

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// ArtifactStore writes debug copies of the provider exchange so failed
// extractions can be replayed offline:
//
//	responses/request_<ts>.json            outgoing request body
//	responses/response_<ts>_raw.json       full provider response body
//	responses/response_<ts>_processed.txt  assistant content after recovery
type ArtifactStore struct {
	dir    string
	logger *slog.Logger
}

func NewArtifactStore(dataDir string, logger *slog.Logger) *ArtifactStore {
	return &ArtifactStore{dir: filepath.Join(dataDir, "responses"), logger: logger}
}

// SaveRequest writes a debug copy of an outgoing provider request. Failures
// are logged, not returned: artifacts never block a request.
func (s *ArtifactStore) SaveRequest(body []byte) string {
	ts := time.Now().Format("20060102_150405.000000")
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.logger.Warn("llm.artifacts.mkdir_error", "dir", s.dir, "error", err)
		return ts
	}
	path := filepath.Join(s.dir, fmt.Sprintf("request_%s.json", ts))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		s.logger.Warn("llm.artifacts.write_error", "path", path, "error", err)
	}
	return ts
}

// Save writes both response artifacts and returns the shared timestamp stem.
// Failures are logged, not returned: artifacts never block the pipeline.
func (s *ArtifactStore) Save(httpBody []byte, processed string) string {
	ts := time.Now().Format("20060102_150405.000000")
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.logger.Warn("llm.artifacts.mkdir_error", "dir", s.dir, "error", err)
		return ts
	}

	rawPath := filepath.Join(s.dir, fmt.Sprintf("response_%s_raw.json", ts))
	if err := os.WriteFile(rawPath, httpBody, 0o644); err != nil {
		s.logger.Warn("llm.artifacts.write_error", "path", rawPath, "error", err)
	}

	procPath := filepath.Join(s.dir, fmt.Sprintf("response_%s_processed.txt", ts))
	if err := os.WriteFile(procPath, []byte(processed), 0o644); err != nil {
		s.logger.Warn("llm.artifacts.write_error", "path", procPath, "error", err)
	}
	return ts
}
