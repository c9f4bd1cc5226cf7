package llm

import (
	"context"
	"log/slog"

	"lantern/internal/capabilities"
	"lantern/internal/domain/models"
)

// ProbeFor returns the context-size probe implementing a provider profile's
// discovery strategy.
func ProbeFor(profile *capabilities.ProviderProfile, cfg models.LLMConfig, logger *slog.Logger) ContextSizeProbe {
	switch profile.Probe {
	case capabilities.ProbeProps:
		return NewPropsProbe(cfg.BaseURL, logger)
	case capabilities.ProbeShow:
		return NewShowProbe(cfg.BaseURL, cfg.Model, logger)
	default:
		return NewModelsProbe(cfg.BaseURL, cfg.APIKey, logger)
	}
}

// ResolveContextSize runs the profile's probe and falls back to the profile
// default when the upstream cannot report a size.
func ResolveContextSize(ctx context.Context, profile *capabilities.ProviderProfile, cfg models.LLMConfig, logger *slog.Logger) int {
	if n, ok := ProbeFor(profile, cfg, logger).TryContextSize(ctx); ok {
		return n
	}
	logger.Debug("context size probe unresolved, using profile default",
		"provider", profile.ID, "default", profile.DefaultContextWindow)
	return profile.DefaultContextWindow
}
