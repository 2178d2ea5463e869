package common

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/register-extractor/constants"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config holds all application configuration
type Config struct {
	LLM       LLMConfig
	Images    ImageConfig
	Server    ServerConfig
	Export    ExportConfig
	Normalize NormalizeConfig
	LogLevel  slog.Level
}

// LLMConfig holds recognition-service configuration
type LLMConfig struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
}

// ImageConfig controls how uploaded pages are prepared before recognition
type ImageConfig struct {
	MaxDimension int
	JPEGQuality  int
	MaxUploadMB  int
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr string
	GRPCAddr string
}

// ExportConfig holds spreadsheet naming
type ExportConfig struct {
	FileName  string
	SheetName string
}

// NormalizeConfig carries corrections added on top of the built-in name fixes
type NormalizeConfig struct {
	ExtraNameCorrections [][2]string
}

// LoadConfig loads configuration from an optional .env file and the environment.
// Values already present in the environment win over the file.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("config.dotenv_unreadable", "error", err)
	}

	provider := strings.ToLower(getEnv("LLM_PROVIDER", ProviderGemini))
	llmCfg := LLMConfig{
		Provider:    provider,
		Temperature: getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
		Timeout:     getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
	}
	switch provider {
	case ProviderOpenAI:
		llmCfg.APIKey = getEnv("OPENAI_API_KEY", "")
		llmCfg.Model = getEnv("OPENAI_MODEL", "gpt-4o-mini")
		llmCfg.BaseURL = getEnv("OPENAI_BASE_URL", "")
	default:
		llmCfg.APIKey = getEnv("GEMINI_API_KEY", "")
		llmCfg.Model = getEnv("GEMINI_MODEL", "gemini-2.5-flash")
		llmCfg.BaseURL = getEnv("GEMINI_BASE_URL", "")
	}

	return &Config{
		LLM: llmCfg,
		Images: ImageConfig{
			MaxDimension: getEnvAsInt("IMAGE_MAX_DIMENSION", 2048),
			JPEGQuality:  getEnvAsInt("IMAGE_JPEG_QUALITY", 90),
			MaxUploadMB:  getEnvAsInt("MAX_UPLOAD_MB", 20),
		},
		Server: ServerConfig{
			HTTPAddr: getEnv("HTTP_ADDR", ":8501"),
			GRPCAddr: getEnv("GRPC_ADDR", ""),
		},
		Export: ExportConfig{
			FileName:  getEnv("EXPORT_FILE_NAME", constants.DefaultExportFileName),
			SheetName: getEnv("EXPORT_SHEET_NAME", "Records"),
		},
		Normalize: NormalizeConfig{
			ExtraNameCorrections: ParseCorrections(getEnv("NAME_CORRECTIONS", "")),
		},
		LogLevel: parseLevel(getEnv("LOG_LEVEL", "info")),
	}
}

// ParseCorrections reads "Wrong=>Right;Other=>Fixed" pairs. Malformed pairs are skipped.
func ParseCorrections(s string) [][2]string {
	var out [][2]string
	for _, pair := range strings.Split(s, ";") {
		from, to, ok := strings.Cut(pair, "=>")
		if !ok {
			continue
		}
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		if from == "" {
			continue
		}
		out = append(out, [2]string{from, to})
	}
	return out
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

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("LLM_PROVIDER", c.LLM.Provider, OneOf(ProviderGemini, ProviderOpenAI)).
		Field(apiKeyVar(c.LLM.Provider), c.LLM.APIKey, Required).
		Field("EXPORT_SHEET_NAME", c.Export.SheetName, Required, MaxLength(31))
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrConfig)
	}
	return nil
}

func apiKeyVar(provider string) string {
	if provider == ProviderOpenAI {
		return "OPENAI_API_KEY"
	}
	return "GEMINI_API_KEY"
}
