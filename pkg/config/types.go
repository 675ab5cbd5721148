package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent ragrelay configuration stored as
// config.toml in the .ragrelay/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version  int            `toml:"version"`
	Relay    RelayConfig    `toml:"relay"`
	Upstream UpstreamConfig `toml:"upstream"`
	RAG      RAGConfig      `toml:"rag"`
	Storage  StorageConfig  `toml:"storage"`
	Session  SessionConfig  `toml:"session"`
	Events   EventsConfig   `toml:"events"`
	Client   ClientConfig   `toml:"client"`
}

// RelayConfig holds settings of the relay server.
type RelayConfig struct {
	Listen string `toml:"listen,omitempty"`

	// AllowedOrigins is a comma separated list of CORS origins.
	AllowedOrigins string `toml:"allowed_origins,omitempty"`

	// ForwardPartial enables forwarding the head of a data block before its
	// delimiter arrives. Off by default.
	ForwardPartial bool `toml:"forward_partial,omitempty"`

	// LogFile additionally writes JSON logs to the given path.
	LogFile string `toml:"log_file,omitempty"`
}

// UpstreamConfig holds the RAG function endpoint the relay streams from.
type UpstreamConfig struct {
	URL          string `toml:"url,omitempty"`
	FunctionsKey string `toml:"functions_key,omitempty"`

	// Timeout bounds a whole upstream request. Zero means no limit.
	Timeout time.Duration `toml:"timeout,omitempty"`
}

// RAGConfig holds the settings forwarded verbatim to the upstream function in
// every request body.
type RAGConfig struct {
	RedisHost             string  `toml:"redis_host,omitempty"`
	RedisPort             int     `toml:"redis_port,omitempty"`
	RedisPassword         string  `toml:"redis_password,omitempty"`
	EmbeddingKey          string  `toml:"openai_embedding_key,omitempty"`
	EmbeddingModel        string  `toml:"openai_embedding_model,omitempty"`
	LLMKey                string  `toml:"openai_llm_key,omitempty"`
	LLMModel              string  `toml:"openai_llm_model,omitempty"`
	LLMURL                string  `toml:"url_llm,omitempty"`
	Rule                  string  `toml:"rule,omitempty"`
	StoreCacheEndpoint    string  `toml:"store_cache_endpoint,omitempty"`
	SemanticCacheEndpoint string  `toml:"semantic_cache_endpoint,omitempty"`
	Temperature           float64 `toml:"temperature,omitempty"`
	MaxTokens             int     `toml:"max_tokens,omitempty"`
	TopN                  int     `toml:"top_n,omitempty"`
}

// StorageConfig holds transcript storage settings. An empty SQLitePath keeps
// transcripts in memory.
type StorageConfig struct {
	SQLitePath string `toml:"sqlite_path,omitempty"`
}

// SessionConfig holds the client session store settings.
type SessionConfig struct {
	// Provider is "memory" or "redis".
	Provider      string        `toml:"provider,omitempty"`
	RedisAddr     string        `toml:"redis_addr,omitempty"`
	RedisPassword string        `toml:"redis_password,omitempty"`
	TTL           time.Duration `toml:"ttl,omitempty"`
}

// EventsConfig holds transcript event publishing settings.
type EventsConfig struct {
	// Provider is "nop" or "kafka".
	Provider string `toml:"provider,omitempty"`

	// Brokers is a comma separated list of Kafka brokers.
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// relay (e.g. ragrelay chat). RelayTarget is a full URL.
type ClientConfig struct {
	RelayTarget string `toml:"relay_target,omitempty"`

	// Separator joins consecutive payloads of one answer.
	Separator string `toml:"separator,omitempty"`
}

// Origins returns the configured CORS origins, trimmed and without empties.
func (r RelayConfig) Origins() []string {
	return SplitList(r.AllowedOrigins)
}

// SplitList splits a comma separated list, dropping blank entries.
func SplitList(list string) []string {
	var out []string
	for _, item := range strings.Split(list, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func intKey(name string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.Itoa(*field(c))
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = n
			return nil
		},
	}
}

func durationKey(name string, field func(c *Config) *time.Duration) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return field(c).String()
		},
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = d
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"relay.listen":          stringKey(func(c *Config) *string { return &c.Relay.Listen }),
	"relay.allowed_origins": stringKey(func(c *Config) *string { return &c.Relay.AllowedOrigins }),
	"relay.forward_partial": {
		get: func(c *Config) string { return strconv.FormatBool(c.Relay.ForwardPartial) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for relay.forward_partial: %w", err)
			}
			c.Relay.ForwardPartial = b
			return nil
		},
	},
	"relay.log_file": stringKey(func(c *Config) *string { return &c.Relay.LogFile }),

	"upstream.url":           stringKey(func(c *Config) *string { return &c.Upstream.URL }),
	"upstream.functions_key": stringKey(func(c *Config) *string { return &c.Upstream.FunctionsKey }),
	"upstream.timeout":       durationKey("upstream.timeout", func(c *Config) *time.Duration { return &c.Upstream.Timeout }),

	"rag.redis_host":              stringKey(func(c *Config) *string { return &c.RAG.RedisHost }),
	"rag.redis_port":              intKey("rag.redis_port", func(c *Config) *int { return &c.RAG.RedisPort }),
	"rag.redis_password":          stringKey(func(c *Config) *string { return &c.RAG.RedisPassword }),
	"rag.openai_embedding_key":    stringKey(func(c *Config) *string { return &c.RAG.EmbeddingKey }),
	"rag.openai_embedding_model":  stringKey(func(c *Config) *string { return &c.RAG.EmbeddingModel }),
	"rag.openai_llm_key":          stringKey(func(c *Config) *string { return &c.RAG.LLMKey }),
	"rag.openai_llm_model":        stringKey(func(c *Config) *string { return &c.RAG.LLMModel }),
	"rag.url_llm":                 stringKey(func(c *Config) *string { return &c.RAG.LLMURL }),
	"rag.rule":                    stringKey(func(c *Config) *string { return &c.RAG.Rule }),
	"rag.store_cache_endpoint":    stringKey(func(c *Config) *string { return &c.RAG.StoreCacheEndpoint }),
	"rag.semantic_cache_endpoint": stringKey(func(c *Config) *string { return &c.RAG.SemanticCacheEndpoint }),
	"rag.temperature": {
		get: func(c *Config) string { return strconv.FormatFloat(c.RAG.Temperature, 'f', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for rag.temperature: %w", err)
			}
			c.RAG.Temperature = f
			return nil
		},
	},
	"rag.max_tokens": intKey("rag.max_tokens", func(c *Config) *int { return &c.RAG.MaxTokens }),
	"rag.top_n":      intKey("rag.top_n", func(c *Config) *int { return &c.RAG.TopN }),

	"storage.sqlite_path": stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),

	"session.provider":       stringKey(func(c *Config) *string { return &c.Session.Provider }),
	"session.redis_addr":     stringKey(func(c *Config) *string { return &c.Session.RedisAddr }),
	"session.redis_password": stringKey(func(c *Config) *string { return &c.Session.RedisPassword }),
	"session.ttl":            durationKey("session.ttl", func(c *Config) *time.Duration { return &c.Session.TTL }),

	"events.provider": stringKey(func(c *Config) *string { return &c.Events.Provider }),
	"events.brokers":  stringKey(func(c *Config) *string { return &c.Events.Brokers }),
	"events.topic":    stringKey(func(c *Config) *string { return &c.Events.Topic }),

	"client.relay_target": stringKey(func(c *Config) *string { return &c.Client.RelayTarget }),
	"client.separator":    stringKey(func(c *Config) *string { return &c.Client.Separator }),
}
