// Package ragrelaycmder
package ragrelaycmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/l-messias/ragrelay/cmd/ragrelay/chat"
	configcmder "github.com/l-messias/ragrelay/cmd/ragrelay/config"
	initcmder "github.com/l-messias/ragrelay/cmd/ragrelay/init"
	servecmder "github.com/l-messias/ragrelay/cmd/ragrelay/serve"
	versioncmder "github.com/l-messias/ragrelay/cmd/version"
)

const ragrelayLongDesc string = `ragrelay streams answers of a RAG function to chat clients.

The relay accepts chat queries, forwards them to the RAG function and reframes
its Server-Sent Events stream so every frame reaching the browser holds whole
"data:" blocks.

Run the relay using:
  ragrelay serve       Run the relay server
  ragrelay chat        Chat with a running relay from the terminal`

const ragrelayShortDesc string = "ragrelay - RAG answer stream relay"

func NewRagRelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ragrelay",
		Short: ragrelayShortDesc,
		Long:  ragrelayLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .ragrelay/ directory holding config.toml and chat state")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
