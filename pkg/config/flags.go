package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --relay
// on both "ragrelay chat" and "ragrelay session").
type Flag struct {
	// Name is the long flag name (e.g. "upstream").
	Name string

	// Shorthand is the one-letter short flag (e.g. "u"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "upstream.url").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddBoolFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagListen         = "listen"
	FlagUpstream       = "upstream"
	FlagFunctionsKey   = "functions-key"
	FlagAllowedOrigins = "allowed-origins"
	FlagForwardPartial = "forward-partial"
	FlagSQLite         = "sqlite"
	FlagSessionStore   = "session-store"
	FlagRedisAddr      = "redis-addr"
	FlagEvents         = "events"
	FlagKafkaBrokers   = "kafka-brokers"
	FlagLogFile        = "log-file"
	FlagRelayTarget    = "relay"
	FlagSeparator      = "separator"
)

// Flags is the registry of every flag ragrelay commands share.
var Flags = FlagSet{
	FlagListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "relay.listen",
		Description: "Address for the relay to listen on",
	},
	FlagUpstream: {
		Name:        "upstream",
		Shorthand:   "u",
		ViperKey:    "upstream.url",
		Description: "RAG function endpoint to stream answers from",
	},
	FlagFunctionsKey: {
		Name:        "functions-key",
		ViperKey:    "upstream.functions_key",
		Description: "Function key sent as the code query parameter upstream",
	},
	FlagAllowedOrigins: {
		Name:        "allowed-origins",
		ViperKey:    "relay.allowed_origins",
		Description: "Comma separated list of allowed CORS origins",
	},
	FlagForwardPartial: {
		Name:        "forward-partial",
		ViperKey:    "relay.forward_partial",
		Description: "Forward the head of a data block before its delimiter arrives",
	},
	FlagSQLite: {
		Name:        "sqlite",
		Shorthand:   "s",
		ViperKey:    "storage.sqlite_path",
		Description: "Path to a SQLite database for transcripts (default: in-memory)",
	},
	FlagSessionStore: {
		Name:        "session-store",
		ViperKey:    "session.provider",
		Description: "Client session store (memory, redis)",
	},
	FlagRedisAddr: {
		Name:        "redis-addr",
		ViperKey:    "session.redis_addr",
		Description: "Redis address used by the redis session store",
	},
	FlagEvents: {
		Name:        "events",
		ViperKey:    "events.provider",
		Description: "Transcript event publisher (nop, kafka)",
	},
	FlagKafkaBrokers: {
		Name:        "kafka-brokers",
		ViperKey:    "events.brokers",
		Description: "Comma separated list of Kafka brokers",
	},
	FlagLogFile: {
		Name:        "log-file",
		ViperKey:    "relay.log_file",
		Description: "Also write JSON logs to this file",
	},
	FlagRelayTarget: {
		Name:        "relay",
		Shorthand:   "r",
		ViperKey:    "client.relay_target",
		Description: "Relay URL to connect to",
	},
	FlagSeparator: {
		Name:        "separator",
		ViperKey:    "client.separator",
		Description: "Text joining consecutive payloads of one answer",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *bool) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultBool returns the default bool value for a viper key from NewDefaultConfig.
func defaultBool(viperKey string) bool {
	v := viper.New()
	setViperDefaults(v)
	return v.GetBool(viperKey)
}
