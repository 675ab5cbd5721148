// Package configcmder provides the config command for managing persistent
// ragrelay configuration stored in the .ragrelay/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent ragrelay configuration.

Configuration is stored as config.toml in the .ragrelay/ directory and provides
default values for command flags. CLI flags and environment variables always
take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  relay.listen, relay.allowed_origins, relay.forward_partial, relay.log_file,
  upstream.url, upstream.functions_key, upstream.timeout,
  rag.redis_host, rag.openai_llm_model, rag.rule, rag.top_n, ...
  storage.sqlite_path,
  session.provider, session.redis_addr, session.ttl,
  events.provider, events.brokers, events.topic,
  client.relay_target, client.separator

Use subcommands to get, set, or list configuration values:
  ragrelay config set <key> <value>    Set a configuration value
  ragrelay config get <key>            Get a configuration value
  ragrelay config list                 List all configuration values

Examples:
  ragrelay config set upstream.url https://rag.example.com/api/rag
  ragrelay config set rag.top_n 5
  ragrelay config get upstream.url
  ragrelay config list`

const configShortDesc string = "Manage persistent ragrelay configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
