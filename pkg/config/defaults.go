package config

import "time"

const (
	defaultRelayListen    = ":3000"
	defaultAllowedOrigins = "http://localhost:5173,https://localhost:5173,http://127.0.0.1:5173"

	defaultRedisPort   = 6379
	defaultTemperature = 0.7
	defaultMaxTokens   = 512
	defaultTopN        = 3

	defaultSessionProvider = "memory"
	defaultSessionTTL      = 24 * time.Hour

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "ragrelay.transcripts"

	defaultClientRelayTarget = "http://localhost:3000"
	defaultClientSeparator   = "\n"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Relay: RelayConfig{
			Listen:         defaultRelayListen,
			AllowedOrigins: defaultAllowedOrigins,
		},
		RAG: RAGConfig{
			RedisPort:   defaultRedisPort,
			Temperature: defaultTemperature,
			MaxTokens:   defaultMaxTokens,
			TopN:        defaultTopN,
		},
		Session: SessionConfig{
			Provider: defaultSessionProvider,
			TTL:      defaultSessionTTL,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
		Client: ClientConfig{
			RelayTarget: defaultClientRelayTarget,
			Separator:   defaultClientSeparator,
		},
	}
}
