// Package provider picks the Recognizer implementation named by configuration.
package provider

import (
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/register-extractor/internal/common"
	"github.com/joseph-ayodele/register-extractor/internal/llm"
	"github.com/joseph-ayodele/register-extractor/internal/llm/gemini"
	"github.com/joseph-ayodele/register-extractor/internal/llm/openai"
)

// New returns the Recognizer for cfg.Provider.
func New(cfg common.LLMConfig, logger *slog.Logger) (llm.Recognizer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Provider {
	case common.ProviderGemini, "":
		return gemini.NewClient(gemini.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger), nil
	case common.ProviderOpenAI:
		return openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger), nil
	default:
		return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown llm provider %q", cfg.Provider), common.ErrConfig)
	}
}
