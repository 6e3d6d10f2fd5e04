package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the catalog vector index",
}

var indexEnsureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Create the catalog index if it does not exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := openClient(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		defer client.Close()

		created, err := client.EnsureIndex(cmd.Context())
		if err != nil {
			return err
		}
		if created {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created %s (%d dims)\n", cfg.Index.Name, cfg.Embedding.Dimensions)
		} else {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s already exists\n", cfg.Index.Name)
		}
		return nil
	},
}

var indexDropYes bool

var indexDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Drop the catalog index (indexed hashes are kept)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !indexDropYes {
			return fmt.Errorf("refusing to drop the index without --yes")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := openClient(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		defer client.Close()

		if err := client.DropIndex(cmd.Context()); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "dropped %s\n", cfg.Index.Name)
		return nil
	},
}

var indexStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report store, index and embedding health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := openClient(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		defer client.Close()

		h := client.Health(cmd.Context())
		w := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(w, "status: %s\n", h.Status)
		for _, name := range []string{"store", "index", "embedding"} {
			if v, ok := h.Checks[name]; ok {
				_, _ = fmt.Fprintf(w, "  %-10s %s\n", name, v)
			}
		}
		if h.Status != "ok" {
			return fmt.Errorf("catalog search is %s", h.Status)
		}
		return nil
	},
}

func init() {
	indexDropCmd.Flags().BoolVar(&indexDropYes, "yes", false, "confirm dropping the index")

	indexCmd.AddCommand(indexEnsureCmd, indexDropCmd, indexStatusCmd)
	rootCmd.AddCommand(indexCmd)
}
