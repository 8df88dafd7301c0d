package cmd

import (
	"github.com/spf13/cobra"

	"airplan/cli/internal/router"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check which database servers are reachable",
	Long: `ping runs SELECT 1 against every profile in parallel and reports each
server's status and round-trip time.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		res := withSpinner("Pinging servers...", func() router.FanOutResult {
			return sess.router.Probe(cmd.Context(), sess.database())
		})
		return renderFanOut("ping", res)
	},
}

func init() {
	rootCmd.AddCommand(pingCmd)
}
