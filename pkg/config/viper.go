package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/l-messias/ragrelay/pkg/dotdir"
)

// EnvPrefix prefixes every environment variable read by ragrelay.
const EnvPrefix = "RAGRELAY"

// legacyEnv maps config keys to the bare environment variable names used by
// existing deployments of the relay. They are consulted after the prefixed
// RAGRELAY_ names.
var legacyEnv = map[string]string{
	"relay.listen":                "PORT",
	"relay.allowed_origins":       "ALLOWED_ORIGINS",
	"upstream.url":                "LINK_API_RAG",
	"upstream.functions_key":      "X_FUNCTIONS_KEY_RAG",
	"rag.redis_host":              "REDIS_HOST",
	"rag.redis_port":              "REDIS_PORT",
	"rag.redis_password":          "REDIS_PASSWORD",
	"rag.openai_embedding_key":    "OPENAI_EMBEDDING_KEY",
	"rag.openai_embedding_model":  "OPENAI_EMBEDDING_MODEL",
	"rag.openai_llm_key":          "OPENAI_LLM_KEY",
	"rag.openai_llm_model":        "OPENAI_LLM_MODEL",
	"rag.url_llm":                 "URL_LLM",
	"rag.rule":                    "DEFAULT_PROMPT",
	"rag.store_cache_endpoint":    "STORE_CACHE_ENDPOINT",
	"rag.semantic_cache_endpoint": "SEMANTIC_CACHE_ENDPOINT",
	"rag.temperature":             "TEMPERATURE",
	"rag.max_tokens":              "MAX_TOKENS",
	"rag.top_n":                   "TOP_N",
}

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the RAGRELAY_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (RAGRELAY_RELAY_LISTEN, LINK_API_RAG, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: RAGRELAY_RELAY_LISTEN, RAGRELAY_UPSTREAM_URL, etc.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, name := range legacyEnv {
		_ = v.BindEnv(key, envName(key), name)
	}

	return v, nil
}

// envName returns the prefixed environment variable name for a config key.
func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Relay
	v.SetDefault("relay.listen", d.Relay.Listen)
	v.SetDefault("relay.allowed_origins", d.Relay.AllowedOrigins)
	v.SetDefault("relay.forward_partial", d.Relay.ForwardPartial)
	v.SetDefault("relay.log_file", d.Relay.LogFile)

	// Upstream
	v.SetDefault("upstream.url", d.Upstream.URL)
	v.SetDefault("upstream.functions_key", d.Upstream.FunctionsKey)
	v.SetDefault("upstream.timeout", d.Upstream.Timeout)

	// RAG
	v.SetDefault("rag.redis_host", d.RAG.RedisHost)
	v.SetDefault("rag.redis_port", d.RAG.RedisPort)
	v.SetDefault("rag.redis_password", d.RAG.RedisPassword)
	v.SetDefault("rag.openai_embedding_key", d.RAG.EmbeddingKey)
	v.SetDefault("rag.openai_embedding_model", d.RAG.EmbeddingModel)
	v.SetDefault("rag.openai_llm_key", d.RAG.LLMKey)
	v.SetDefault("rag.openai_llm_model", d.RAG.LLMModel)
	v.SetDefault("rag.url_llm", d.RAG.LLMURL)
	v.SetDefault("rag.rule", d.RAG.Rule)
	v.SetDefault("rag.store_cache_endpoint", d.RAG.StoreCacheEndpoint)
	v.SetDefault("rag.semantic_cache_endpoint", d.RAG.SemanticCacheEndpoint)
	v.SetDefault("rag.temperature", d.RAG.Temperature)
	v.SetDefault("rag.max_tokens", d.RAG.MaxTokens)
	v.SetDefault("rag.top_n", d.RAG.TopN)

	// Storage
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)

	// Session
	v.SetDefault("session.provider", d.Session.Provider)
	v.SetDefault("session.redis_addr", d.Session.RedisAddr)
	v.SetDefault("session.redis_password", d.Session.RedisPassword)
	v.SetDefault("session.ttl", d.Session.TTL)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)

	// Client
	v.SetDefault("client.relay_target", d.Client.RelayTarget)
	v.SetDefault("client.separator", d.Client.Separator)
}

// FromViper materializes a Config from the merged viper state.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Relay: RelayConfig{
			Listen:         v.GetString("relay.listen"),
			AllowedOrigins: v.GetString("relay.allowed_origins"),
			ForwardPartial: v.GetBool("relay.forward_partial"),
			LogFile:        v.GetString("relay.log_file"),
		},
		Upstream: UpstreamConfig{
			URL:          v.GetString("upstream.url"),
			FunctionsKey: v.GetString("upstream.functions_key"),
			Timeout:      v.GetDuration("upstream.timeout"),
		},
		RAG: RAGConfig{
			RedisHost:             v.GetString("rag.redis_host"),
			RedisPort:             v.GetInt("rag.redis_port"),
			RedisPassword:         v.GetString("rag.redis_password"),
			EmbeddingKey:          v.GetString("rag.openai_embedding_key"),
			EmbeddingModel:        v.GetString("rag.openai_embedding_model"),
			LLMKey:                v.GetString("rag.openai_llm_key"),
			LLMModel:              v.GetString("rag.openai_llm_model"),
			LLMURL:                v.GetString("rag.url_llm"),
			Rule:                  v.GetString("rag.rule"),
			StoreCacheEndpoint:    v.GetString("rag.store_cache_endpoint"),
			SemanticCacheEndpoint: v.GetString("rag.semantic_cache_endpoint"),
			Temperature:           v.GetFloat64("rag.temperature"),
			MaxTokens:             v.GetInt("rag.max_tokens"),
			TopN:                  v.GetInt("rag.top_n"),
		},
		Storage: StorageConfig{
			SQLitePath: v.GetString("storage.sqlite_path"),
		},
		Session: SessionConfig{
			Provider:      v.GetString("session.provider"),
			RedisAddr:     v.GetString("session.redis_addr"),
			RedisPassword: v.GetString("session.redis_password"),
			TTL:           v.GetDuration("session.ttl"),
		},
		Events: EventsConfig{
			Provider: v.GetString("events.provider"),
			Brokers:  v.GetString("events.brokers"),
			Topic:    v.GetString("events.topic"),
		},
		Client: ClientConfig{
			RelayTarget: v.GetString("client.relay_target"),
			Separator:   v.GetString("client.separator"),
		},
	}
}
