package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"airplan/cli/internal/config"
	"airplan/cli/internal/dsn"
)

var useRetries int

var useCmd = &cobra.Command{
	Use:   "use DATABASE",
	Short: "Set the default database and write retry count",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := dsn.ValidateDatabaseName(args[0]); err != nil {
			return err
		}
		// Start from the file, not from sess.cfg, so flag overrides are not persisted.
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		cfg.Database = args[0]
		if cmd.Flags().Changed("retries") {
			cfg.WriteRetries = max(useRetries, 0)
		}
		if err := config.Save(cfg); err != nil {
			return err
		}
		pterm.Success.Printfln("Using database %s (write retries: %d)", cfg.Database, cfg.WriteRetries)
		return nil
	},
}

func init() {
	useCmd.Flags().IntVar(&useRetries, "retries", 0, "Retries when a write fails on every server")
	rootCmd.AddCommand(useCmd)
}
