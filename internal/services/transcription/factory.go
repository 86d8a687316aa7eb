package transcription

import (
	"github.com/socialchef/scribe/internal/config"
	"github.com/socialchef/scribe/internal/utils"
)

// NewProvider creates the transcription provider described by cfg.
func NewProvider(cfg *config.Config) *AssemblyAIProvider {
	return NewAssemblyAIProvider(cfg.APIKey, cfg.AssemblyAIBaseURL, utils.PollConfig{
		Interval:    cfg.Pipeline.PollInterval,
		MaxAttempts: cfg.Pipeline.PollMaxAttempts,
	})
}
