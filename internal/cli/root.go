// Package cli implements cwfctl, the operator command line for the catalog
// search service.
package cli

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/config"
)

var (
	envName    string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "cwfctl",
	Short: "Operate the catalog search index and try queries",
	Long: `cwfctl - catalog search operator tool
  - rewrite a query to see the extracted price bounds and exclusions
  - run searches against the catalog index without the HTTP service
  - create, drop and inspect the catalog vector index`,
	SilenceUsage: true,
}

// Execute runs the root command. Interrupt cancels the running command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envName, "env", "", "config environment (default: $ENV or local)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "explicit config file path")
}

// loadConfig reads the service configuration selected by --config or --env.
func loadConfig() (config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	env := envName
	if env == "" {
		env = config.GetEnv()
	}
	return config.Load(env)
}
