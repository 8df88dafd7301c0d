// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for airplan.
// It wires configuration, the profile store and the database router together
// and exposes profile management, raw routed statements and the traffic
// catalog (agencies, commercials and spot schedules) as Cobra commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"airplan/cli/internal/logging"
)

var (
	showVersion bool

	flagLogLevel    string
	flagLogFormat   string
	flagMetricsFile string
	flagDatabase    string
	flagProfiles    string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "airplan",
	Short: "Schedule radio commercials across replicated database servers",
	Long: `airplan manages commercial traffic (agencies, commercials and on-air spot logs)
stored on several independently configured database servers.

Reads are raced across the first servers in priority order and the fastest
answer wins. Writes go to every server; a write accepted by at least one
server is kept, and you are warned about the servers that missed it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return openSession()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Printf("airplan %s\n", Version)
			return nil
		}
		return cmd.Help()
	},
}

// Execute runs the CLI application.
// Ctrl-C cancels the running command's context so in-flight statements are
// abandoned on every server.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	closeSession()

	if err != nil {
		fmt.Fprintln(os.Stderr, logging.PresentError("airplan", err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show CLI version information")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&flagLogFormat, "log-format", "", "Log format: console or json")
	pf.StringVar(&flagMetricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	pf.StringVar(&flagDatabase, "db", "", "Target database name (default from config)")
	pf.StringVar(&flagProfiles, "profiles", "", "Path to profiles.toml")
}
