// Package initcmder provides the init command for initializing a local
// .ragrelay directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/l-messias/ragrelay/pkg/config"
)

const (
	dirName = ".ragrelay"
)

const initLongDesc string = `Initialize a new .ragrelay/ directory in the current working directory.

Creates a local .ragrelay/ directory that takes precedence over the default
~/.ragrelay/ directory for configuration and chat state, and writes a
config.toml holding the default settings.

This is useful for keeping separate relay settings per project or deployment.

Examples:
  ragrelay init
  ragrelay init --upstream https://rag.example.com/api/rag`

const initShortDesc string = "Initialize a local .ragrelay/ directory"

func NewInitCmd() *cobra.Command {
	var upstreamURL string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, upstreamURL)
		},
	}

	cmd.Flags().StringVarP(&upstreamURL, "upstream", "u", "", "RAG function endpoint written to config.toml")

	return cmd
}

func runInit(cmd *cobra.Command, upstreamURL string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)
	out := cmd.OutOrStdout()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .ragrelay directory: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	_, err = os.Stat(cfger.GetTarget())
	switch {
	case err == nil:
		fmt.Fprintf(out, "Already initialized: %s\n", dir)
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("reading config: %w", err)
	}

	cfg := config.NewDefaultConfig()
	cfg.Upstream.URL = upstreamURL
	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(out, "Initialized .ragrelay directory: %s\n", dir)
	return nil
}
