package provider

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"cyberwill/backend/internal/config"
)

// New builds the binding selected by cfg.AIProvider.
func New(cfg config.Config, logger zerolog.Logger) (Provider, error) {
	timeout := time.Duration(cfg.AITimeoutSeconds) * time.Second

	switch cfg.AIProvider {
	case config.ProviderDashScope:
		return NewDashScope(DashScopeConfig{
			APIKey:  cfg.DashScopeAPIKey,
			AppID:   cfg.DashScopeAppID,
			BaseURL: cfg.DashScopeBaseURL,
			Timeout: timeout,
		}, logger.With().Str("provider", "dashscope").Logger()), nil
	case config.ProviderOpenAI:
		return NewOpenAICompatible(OpenAIConfig{
			APIKey:          cfg.OpenAIAPIKey,
			BaseURL:         cfg.OpenAIBaseURL,
			Model:           cfg.OpenAIModel,
			MaxOutputTokens: cfg.AIMaxOutputTokens,
			Timeout:         timeout,
		}, logger.With().Str("provider", "openai").Logger()), nil
	case config.ProviderMock:
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("unsupported AI_PROVIDER %q", cfg.AIProvider)
	}
}
