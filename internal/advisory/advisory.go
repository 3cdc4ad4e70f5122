// Package advisory answers free-form questions with a hosted language model.
package advisory

import (
	"context"
	"fmt"

	"github.com/perbu/presensi/internal/config"
)

// DefaultSystemPrompt frames every advisory question
const DefaultSystemPrompt = "You are Ancis, an assistant for Indonesian university students on KKN " +
	"(Kuliah Kerja Nyata) community service placements. Answer briefly and plainly, " +
	"in the language of the question."

// Client answers a single question. Failures are returned as *apperr.Error.
type Client interface {
	Ask(ctx context.Context, question string) (string, error)
	Name() string
}

// New creates the client for the configured provider
func New(ctx context.Context, cfg *config.Config) (Client, error) {
	apiKey := cfg.GetAdvisoryAPIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", cfg.Advisory.APIKeyEnv)
	}

	prompt := cfg.Advisory.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}

	switch cfg.Advisory.Provider {
	case config.ProviderDeepSeek:
		return NewDeepSeek(cfg.Advisory.BaseURL, apiKey, cfg.Advisory.Model, prompt, nil), nil
	case config.ProviderGemini:
		return NewGemini(ctx, apiKey, cfg.Advisory.Model, prompt)
	default:
		return nil, fmt.Errorf("unknown advisory provider: %s", cfg.Advisory.Provider)
	}
}
