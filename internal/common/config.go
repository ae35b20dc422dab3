package common

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Scraper ScraperConfig
	OCR     OCRConfig
	LLM     LLMConfig
	Search  SearchConfig
	Resolve ResolveConfig
	History HistoryConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr string
}

// ScraperConfig holds county clerk site configuration
type ScraperConfig struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Pdftoppm    string
	Tesseract   string
	DPI         int
	PSM         int
	TessdataDir string
	DebugDir    string // empty disables per-record OCR text dumps
}

// LLMConfig holds extraction-service configuration
type LLMConfig struct {
	Model       string
	APIKey      string
	Temperature float32
	Timeout     time.Duration
	MaxAttempts int
}

// SearchConfig holds property-search driver configuration
type SearchConfig struct {
	BaseURL     string
	NumTabs     int
	Headless    bool
	WaitTimeout time.Duration
}

// ResolveConfig holds orchestrator batching configuration
type ResolveConfig struct {
	DocBatchSize    int
	SearchBatchSize int
	PageCeiling     int
	ScratchDir      string
}

// HistoryConfig holds run-history store configuration
type HistoryConfig struct {
	Path string
}

// LoadConfig loads configuration from environment variables. A .env file in
// the working directory is applied first when present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Addr: getEnv("HTTP_ADDR", ":8080"),
		},
		Scraper: ScraperConfig{
			BaseURL:  getEnv("HCTX_BASE_URL", "https://www.cclerk.hctx.net/applications/websearch/"),
			Username: getEnv("HCTX_USERNAME", ""),
			Password: getEnv("HCTX_PASSWORD", ""),
			Timeout:  getEnvAsDuration("HCTX_TIMEOUT", 30*time.Second),
		},
		OCR: OCRConfig{
			Pdftoppm:    getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Tesseract:   getEnv("TESSERACT_BIN", "tesseract"),
			DPI:         getEnvAsInt("OCR_DPI", 300),
			PSM:         getEnvAsInt("OCR_PSM", 6),
			TessdataDir: getEnv("TESSDATA_PREFIX", ""),
			DebugDir:    getEnv("OCR_DEBUG_DIR", ""),
		},
		LLM: LLMConfig{
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
			MaxAttempts: getEnvAsInt("OPENAI_MAX_ATTEMPTS", 3),
		},
		Search: SearchConfig{
			BaseURL:     getEnv("HCAD_BASE_URL", "https://search.hcad.org/"),
			NumTabs:     getEnvAsInt("HCAD_NUM_TABS", 5),
			Headless:    getEnvAsBool("HCAD_HEADLESS", true),
			WaitTimeout: getEnvAsDuration("HCAD_WAIT_TIMEOUT", 10*time.Second),
		},
		Resolve: ResolveConfig{
			DocBatchSize:    getEnvAsInt("DOC_BATCH_SIZE", 3),
			SearchBatchSize: getEnvAsInt("SEARCH_BATCH_SIZE", 10),
			PageCeiling:     getEnvAsInt("DOC_PAGE_CEILING", 7),
			ScratchDir:      getEnv("SCRATCH_DIR", "./tmp"),
		},
		History: HistoryConfig{
			Path: getEnv("HISTORY_DB_PATH", "harris_run_history.db"),
		},
	}
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
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

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	if c.Scraper.Username == "" || c.Scraper.Password == "" {
		return NewAppError("CONFIG_ERROR", "HCTX_USERNAME and HCTX_PASSWORD are required", ErrInvalidInput)
	}
	if c.Search.NumTabs <= 0 {
		return NewAppError("CONFIG_ERROR", "HCAD_NUM_TABS must be positive", ErrInvalidInput)
	}
	return nil
}
