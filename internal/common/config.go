package common

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Storage   StorageConfig
	LLM       LLMConfig
	Pipeline  PipelineConfig
	RateLimit RateLimitConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Path string
}

// StorageConfig holds filesystem layout configuration
type StorageConfig struct {
	ImageDir string // receipt photos, organized as YYYY/MM/DD
	DataDir  string // debug artifacts: raw responses, annotated images
}

// LLMConfig holds vision-model configuration
type LLMConfig struct {
	Backend       string // "ollama" | "openai"
	OllamaHost    string
	Model         string // vision model for receipt extraction
	CornerModel   string // smaller model for corner detection
	ContextLength int    // hard upper bound on request size, not latency
	MaxImageDim   int    // downscale cap before encoding for the model
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
	Timeout       time.Duration
}

// PipelineConfig holds processing behavior and validation thresholds
type PipelineConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration

	// TotalTolerance is the absolute tolerance for total-amount validation,
	// in the receipt currency's minor unit. Known limitation: it does not
	// scale across currencies without a minor unit (e.g. JPY).
	TotalTolerance float64

	// OverlapThreshold flags bounding-box pairs whose overlap exceeds this
	// fraction of either box's area. Heuristic, no derivation.
	OverlapThreshold float64

	// DetectionRateThreshold switches the diagnostic phrasing between
	// "improve image quality" and "ambiguous formatting".
	DetectionRateThreshold float64

	Annotate           bool // write annotated review images
	PerspectiveCorrect bool // run the contour/perspective path, not just enhancement
}

// RateLimitConfig holds chat rate-limiting configuration
type RateLimitConfig struct {
	Enabled         bool
	PerUserInterval time.Duration
	GlobalPerMinute int
}

// LoadConfig loads configuration from environment variables. A .env file in
// the working directory is honored when present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Database: DatabaseConfig{
			Path: getEnv("BILBOT_DB_PATH", "data/receipts.db"),
		},
		Storage: StorageConfig{
			ImageDir: getEnv("BILBOT_IMAGE_DIR", "data/images"),
			DataDir:  getEnv("BILBOT_DATA_DIR", "data"),
		},
		LLM: LLMConfig{
			Backend:       getEnv("BILBOT_LLM_BACKEND", "ollama"),
			OllamaHost:    getEnv("OLLAMA_HOST", "http://localhost:11434"),
			Model:         getEnv("BILBOT_MODEL", "qwen2.5vl:32b"),
			CornerModel:   getEnv("BILBOT_CORNER_MODEL", "qwen2.5vl:3b"),
			ContextLength: getEnvAsInt("BILBOT_CONTEXT_LENGTH", 8192),
			MaxImageDim:   getEnvAsInt("BILBOT_MAX_IMAGE_DIM", 1200),
			OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o"),
			Timeout:       getEnvAsDuration("BILBOT_LLM_TIMEOUT", 120*time.Second),
		},
		Pipeline: PipelineConfig{
			Workers:                getEnvAsInt("BILBOT_WORKERS", 2),
			QueueSize:              getEnvAsInt("BILBOT_QUEUE_SIZE", 64),
			Timeout:                getEnvAsDuration("BILBOT_PROCESS_TIMEOUT", 3*time.Minute),
			TotalTolerance:         getEnvAsFloat("BILBOT_TOTAL_TOLERANCE", 0.01),
			OverlapThreshold:       getEnvAsFloat("BILBOT_OVERLAP_THRESHOLD", 0.30),
			DetectionRateThreshold: getEnvAsFloat("BILBOT_DETECTION_RATE_THRESHOLD", 0.70),
			Annotate:               getEnvAsBool("BILBOT_ANNOTATE", true),
			PerspectiveCorrect:     getEnvAsBool("BILBOT_PERSPECTIVE_CORRECT", true),
		},
		RateLimit: RateLimitConfig{
			Enabled:         getEnvAsBool("BILBOT_RATE_LIMIT_ENABLED", true),
			PerUserInterval: getEnvAsDuration("BILBOT_RATE_LIMIT_PER_USER", 10*time.Second),
			GlobalPerMinute: getEnvAsInt("BILBOT_RATE_LIMIT_GLOBAL_PER_MINUTE", 60),
		},
	}
}

// ValidateConfig validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return NewAppError("CONFIG_ERROR", "BILBOT_DB_PATH is required", ErrInvalidInput)
	}
	if c.Storage.ImageDir == "" {
		return NewAppError("CONFIG_ERROR", "BILBOT_IMAGE_DIR is required", ErrInvalidInput)
	}
	switch c.LLM.Backend {
	case "ollama":
		if c.LLM.OllamaHost == "" {
			return NewAppError("CONFIG_ERROR", "OLLAMA_HOST is required for the ollama backend", ErrInvalidInput)
		}
	case "openai":
		if c.LLM.OpenAIKey == "" {
			return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required for the openai backend", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", "BILBOT_LLM_BACKEND must be ollama or openai", ErrInvalidInput)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
