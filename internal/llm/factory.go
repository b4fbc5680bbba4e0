package llm

import (
	"fmt"
	"log/slog"

	"github.com/sqlask/sqlask/internal/config"
)

// New builds the client for the configured provider. The API key comes from
// cfg only; nothing is read from the environment here.
func New(cfg config.AIConfig, logger *slog.Logger) (Client, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic, "":
		client, err := NewAnthropicClient(AnthropicConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.ProviderOpenAI:
		client, err := NewOpenAIClient(OpenAIConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.Provider)
	}
}
