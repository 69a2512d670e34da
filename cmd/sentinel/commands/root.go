// Package commands defines all Cobra CLI commands for the sentinel binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/sentinelai/sentinel-go/internal/audit"
	"github.com/sentinelai/sentinel-go/internal/config"
	"github.com/sentinelai/sentinel-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sentinel",
		Short: "Sentinel — grounded answers over an indexed knowledge base",
		Long: `Sentinel answers questions strictly from content indexed in its own
vector store. Every query passes a keyword guard, a similarity search against
Qdrant, and a relevance threshold before any answer is generated; queries
without qualifying evidence are refused rather than answered from model
memory.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.sentinel/config.yaml).
See 'sentinel --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.sentinel/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewChatCmd(),
		NewServeCmd(),
		NewIngestCmd(),
		NewVersionCmd(),
	)

	return root
}
