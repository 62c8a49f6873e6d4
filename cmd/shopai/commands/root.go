// Package commands defines all Cobra CLI commands for the shopai binary.
package commands

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/54b3r/shopai-go/internal/audit"
	"github.com/54b3r/shopai-go/internal/config"
	"github.com/54b3r/shopai-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "shopai",
		Short: "shopai, a shopping assistant that answers from your product catalog",
		Long: `shopai answers questions about a product catalog (cameras.csv by default)
using retrieval-augmented generation. Answers come only from the catalog; if
the information is not there it says so.

The catalog is indexed into a local collection (./shopai_db) the first time
any command runs. Model provider is selected via the MODEL_PROVIDER
environment variable or a YAML config file (~/.shopai/config.yaml).
See 'shopai --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// .env is applied first; like real env vars it wins over YAML.
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, logging.New())
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Rebuilt so LOG_LEVEL / LOG_FORMAT from the config file apply.
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)
			cmd.SetContext(ctx)

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(ctx, log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.shopai/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewChatCmd(),
		NewServeCmd(),
		NewIngestCmd(),
		NewVersionCmd(),
	)

	return root
}
