package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "cwfctl %s\n", version.Version)
		_, _ = fmt.Fprintf(out, "  commit: %s\n", version.Commit)
		_, _ = fmt.Fprintf(out, "  built:  %s\n", version.Date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
